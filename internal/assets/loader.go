package assets

import "errors"

// Page style names. Each names a file {name}.css.
const (
	TableStyleName = "table"
	TextStyleName  = "text"
)

var (
	ErrStyleNotFound    = errors.New("style not found")
	ErrInvalidStyleName = errors.New("invalid style name")
	ErrInvalidStyleDir  = errors.New("invalid style directory")
	ErrStyleRead        = errors.New("failed to read style")
	ErrStyleTooLarge    = errors.New("style file too large")
	ErrStyleEscapes     = errors.New("style path escapes directory")
)

// StyleLoader returns the CSS text of a named page style.
//
// Implementations return ErrStyleNotFound for an unknown name and
// ErrInvalidStyleName for a name that could not be a file name.
type StyleLoader interface {
	LoadStyle(name string) (string, error)
}
