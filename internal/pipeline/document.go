package pipeline

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
)

// Sentinel errors for markup conversion.
var (
	ErrUnsupportedFormat = errors.New("unsupported document format")
	ErrParse             = errors.New("failed to parse document")
)

// Format is the declared format tag of an input document.
type Format string

// Supported format tags.
const (
	FormatWorkbook  Format = "tabular-workbook"
	FormatDelimited Format = "delimited-text"
	FormatText      Format = "plain-text"
)

// Valid reports whether f is one of the supported format tags.
func (f Format) Valid() bool {
	switch f {
	case FormatWorkbook, FormatDelimited, FormatText:
		return true
	}
	return false
}

// Kind is the markup variant produced for a document.
type Kind int

// Markup variants.
const (
	KindTable Kind = iota
	KindText
)

// String returns the variant name.
func (k Kind) String() string {
	switch k {
	case KindTable:
		return "table"
	case KindText:
		return "text"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// Capture selectors: the element whose box frames the screenshot.
const (
	TableSelector = "table"
	TextSelector  = "pre#content"
)

// Document is an input document. It is not modified once created.
type Document struct {
	Name    string // original file name, used for labeling only
	Format  Format
	Content []byte
}

// BaseName returns the document name without directory and extension.
func (d Document) BaseName() string {
	base := filepath.Base(d.Name)
	base = strings.TrimSuffix(base, filepath.Ext(base))
	if base == "" || base == "." || base == string(filepath.Separator) {
		return "document"
	}
	return base
}

// Sheet is one tabular unit. Rows are rectangular: every row holds exactly
// Columns cells, missing cells being empty strings.
type Sheet struct {
	Name    string
	Rows    [][]string
	Columns int
}

// newSheet pads rows to the widest row.
func newSheet(name string, rows [][]string) Sheet {
	cols := 0
	for _, r := range rows {
		cols = max(cols, len(r))
	}
	padded := make([][]string, len(rows))
	for i, r := range rows {
		row := make([]string, cols)
		copy(row, r)
		padded[i] = row
	}
	return Sheet{Name: name, Rows: padded, Columns: cols}
}

// Markup is one renderable page.
type Markup struct {
	Kind     Kind
	Name     string // sheet name, or document base name for text
	Index    int    // position in the document, 0-based
	HTML     string
	Selector string
}

// Capture is a screenshot normalized to PNG.
type Capture struct {
	PNG    []byte
	Width  int
	Height int
}

// Styles holds the CSS embedded in each markup variant.
type Styles struct {
	Table string
	Text  string
}

// ToMarkup converts doc into one Markup per sheet (tabular formats) or
// exactly one Markup (plain text). A workbook with no non-empty sheet yields
// an empty slice and no error.
func ToMarkup(doc Document, styles Styles) ([]Markup, error) {
	switch doc.Format {
	case FormatWorkbook:
		sheets, err := ParseWorkbook(doc.Content)
		if err != nil {
			return nil, err
		}
		return tableMarkups(sheets, styles.Table), nil

	case FormatDelimited:
		sheet, err := ParseDelimited(doc.BaseName(), DecodeText(doc.Content))
		if err != nil {
			return nil, err
		}
		if len(sheet.Rows) == 0 {
			return []Markup{}, nil
		}
		return tableMarkups([]Sheet{sheet}, styles.Table), nil

	case FormatText:
		name := doc.BaseName()
		return []Markup{{
			Kind:     KindText,
			Name:     name,
			Index:    0,
			HTML:     RenderText(name, DecodeText(doc.Content), styles.Text),
			Selector: TextSelector,
		}}, nil

	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, doc.Format)
	}
}

func tableMarkups(sheets []Sheet, css string) []Markup {
	out := make([]Markup, 0, len(sheets))
	for i, s := range sheets {
		out = append(out, Markup{
			Kind:     KindTable,
			Name:     s.Name,
			Index:    i,
			HTML:     RenderTable(s, css),
			Selector: TableSelector,
		})
	}
	return out
}
