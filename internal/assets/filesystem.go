package assets

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// maxStyleBytes caps an override file; pages inline the whole file.
const maxStyleBytes = 256 << 10

// FilesystemLoader reads {dir}/styles/{name}.css from an override directory.
type FilesystemLoader struct {
	root string // absolute, symlinks resolved
}

// NewFilesystemLoader checks that dir is a readable directory.
func NewFilesystemLoader(dir string) (*FilesystemLoader, error) {
	if dir == "" {
		return nil, fmt.Errorf("%w: empty path", ErrInvalidStyleDir)
	}
	root, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidStyleDir, err)
	}
	if resolved, err := filepath.EvalSymlinks(root); err == nil {
		root = resolved
	}

	switch _, err := os.ReadDir(root); {
	case errors.Is(err, fs.ErrNotExist):
		return nil, fmt.Errorf("%w: %s does not exist", ErrInvalidStyleDir, root)
	case err != nil:
		// ReadDir on a regular file fails as well.
		return nil, fmt.Errorf("%w: %s: %v", ErrInvalidStyleDir, root, err)
	}

	return &FilesystemLoader{root: root}, nil
}

// LoadStyle reads the override file for name.
func (f *FilesystemLoader) LoadStyle(name string) (string, error) {
	if err := ValidateStyleName(name); err != nil {
		return "", err
	}
	path, err := f.contained(filepath.Join(f.root, "styles", name+".css"))
	if err != nil {
		return "", err
	}

	file, err := os.Open(path) // #nosec G304 -- contained in root
	if errors.Is(err, fs.ErrNotExist) {
		return "", fmt.Errorf("%w: %q in %s", ErrStyleNotFound, name, f.root)
	}
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrStyleRead, err)
	}
	defer func() { _ = file.Close() }()

	css, err := io.ReadAll(io.LimitReader(file, maxStyleBytes+1))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrStyleRead, err)
	}
	if len(css) > maxStyleBytes {
		return "", fmt.Errorf("%w: %q (max %d bytes)", ErrStyleTooLarge, name, maxStyleBytes)
	}
	return string(css), nil
}

// contained resolves path and rejects it unless it stays under root.
// A missing file keeps its unresolved path so the open reports not found.
func (f *FilesystemLoader) contained(path string) (string, error) {
	if resolved, err := filepath.EvalSymlinks(path); err == nil {
		path = resolved
	}
	if !strings.HasPrefix(path, f.root+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: %s", ErrStyleEscapes, path)
	}
	return path, nil
}
