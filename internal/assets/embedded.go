package assets

import (
	"embed"
	"fmt"
)

//go:embed styles/*.css
var builtinStyles embed.FS

// EmbeddedLoader serves the styles compiled into the binary.
type EmbeddedLoader struct{}

func NewEmbeddedLoader() *EmbeddedLoader { return &EmbeddedLoader{} }

// LoadStyle returns styles/{name}.css from the binary.
func (EmbeddedLoader) LoadStyle(name string) (string, error) {
	if err := ValidateStyleName(name); err != nil {
		return "", err
	}
	css, err := builtinStyles.ReadFile("styles/" + name + ".css")
	if err != nil {
		return "", fmt.Errorf("%w: built-in %q", ErrStyleNotFound, name)
	}
	return string(css), nil
}
