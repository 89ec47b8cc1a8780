package assets

import (
	"fmt"
	"strings"
	"unicode"
)

const maxStyleNameLen = 64

// ValidateStyleName accepts a bare file stem: non-empty, short, with no
// dots, separators, spaces or control characters.
func ValidateStyleName(name string) error {
	switch {
	case name == "":
		return fmt.Errorf("%w: empty", ErrInvalidStyleName)
	case len(name) > maxStyleNameLen:
		return fmt.Errorf("%w: longer than %d bytes", ErrInvalidStyleName, maxStyleNameLen)
	case strings.IndexFunc(name, badStyleRune) >= 0:
		return fmt.Errorf("%w: %q", ErrInvalidStyleName, name)
	}
	return nil
}

func badStyleRune(r rune) bool {
	return r == '.' || r == '/' || r == '\\' || unicode.IsSpace(r) || unicode.IsControl(r)
}
