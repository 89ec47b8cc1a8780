package assets

import (
	"errors"
	"fmt"
)

// PageStyles holds the CSS inlined into rendered pages.
type PageStyles struct {
	Table string // spreadsheet and delimited pages
	Text  string // plain text pages
}

// StyleResolver serves styles from an optional override directory, falling
// back to the embedded styles one file at a time.
type StyleResolver struct {
	override StyleLoader
	builtin  StyleLoader
}

// NewStyleResolver returns a resolver over dir. An empty dir serves the
// embedded styles only.
func NewStyleResolver(dir string) (*StyleResolver, error) {
	r := &StyleResolver{builtin: NewEmbeddedLoader()}
	if dir == "" {
		return r, nil
	}
	fsLoader, err := NewFilesystemLoader(dir)
	if err != nil {
		return nil, err
	}
	r.override = fsLoader
	return r, nil
}

// LoadStyle implements StyleLoader. Only a missing override falls back;
// a broken override file is reported.
func (r *StyleResolver) LoadStyle(name string) (string, error) {
	if r.override != nil {
		css, err := r.override.LoadStyle(name)
		if !errors.Is(err, ErrStyleNotFound) {
			return css, err
		}
	}
	return r.builtin.LoadStyle(name)
}

// Overridden reports whether an override directory is configured.
func (r *StyleResolver) Overridden() bool { return r.override != nil }

// LoadPageStyles loads both page styles from loader.
func LoadPageStyles(loader StyleLoader) (PageStyles, error) {
	var ps PageStyles
	for _, s := range []struct {
		name string
		dst  *string
	}{
		{TableStyleName, &ps.Table},
		{TextStyleName, &ps.Text},
	} {
		css, err := loader.LoadStyle(s.name)
		if err != nil {
			return PageStyles{}, fmt.Errorf("loading %s style: %w", s.name, err)
		}
		*s.dst = css
	}
	return ps, nil
}

var (
	_ StyleLoader = (*StyleResolver)(nil)
	_ StyleLoader = (*EmbeddedLoader)(nil)
	_ StyleLoader = (*FilesystemLoader)(nil)
)
