package doc2img

import (
	"fmt"
	"path/filepath"
	"slices"
	"strings"

	"github.com/alnah/go-doc2img/internal/pipeline"
)

// Format is the declared format of an input document.
type Format string

// Supported formats.
const (
	FormatWorkbook  Format = Format(pipeline.FormatWorkbook)
	FormatDelimited Format = Format(pipeline.FormatDelimited)
	FormatText      Format = Format(pipeline.FormatText)
)

// extensionFormats is the allowlist of accepted file extensions.
var extensionFormats = map[string]Format{
	".xlsx": FormatWorkbook,
	".xlsm": FormatWorkbook,
	".xls":  FormatWorkbook,
	".csv":  FormatDelimited,
	".tsv":  FormatDelimited,
	".txt":  FormatText,
}

// Valid reports whether f is a supported format.
func (f Format) Valid() bool {
	return pipeline.Format(f).Valid()
}

// DetectFormat maps a file name to its format by extension (case-insensitive).
// Names outside the allowlist return ErrUnsupportedFormat.
func DetectFormat(name string) (Format, error) {
	ext := strings.ToLower(filepath.Ext(name))
	if f, ok := extensionFormats[ext]; ok {
		return f, nil
	}
	if ext == "" {
		return "", fmt.Errorf("%w: %q has no extension", ErrUnsupportedFormat, name)
	}
	return "", fmt.Errorf("%w: %q", ErrUnsupportedFormat, ext)
}

// SupportedExtensions returns the accepted extensions, sorted.
func SupportedExtensions() []string {
	exts := make([]string, 0, len(extensionFormats))
	for ext := range extensionFormats {
		exts = append(exts, ext)
	}
	slices.Sort(exts)
	return exts
}

// resolveFormat returns the explicit format when set, else detects it from name.
func resolveFormat(explicit Format, name string) (Format, error) {
	if explicit == "" {
		return DetectFormat(name)
	}
	if !explicit.Valid() {
		return "", fmt.Errorf("%w: %q", ErrUnsupportedFormat, explicit)
	}
	return explicit, nil
}
