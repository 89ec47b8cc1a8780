package pipeline

import (
	"strings"
)

var textEscaper = strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;")

// EscapeText escapes the three characters that carry markup meaning in
// element content: &, < and >. html.UnescapeString reverses it exactly.
func EscapeText(s string) string {
	return textEscaper.Replace(s)
}

// RenderTable builds a page holding sheet as a single table. Row 1 is a
// header row (th cells, class "header"); every other row uses td cells.
// Each row emits exactly sheet.Columns cells.
func RenderTable(sheet Sheet, css string) string {
	var b strings.Builder
	writeHead(&b, sheet.Name, css)

	b.WriteString("<table>\n")
	for i, row := range sheet.Rows {
		cell := "td"
		if i == 0 {
			cell = "th"
			b.WriteString(`<tr class="header">`)
		} else {
			b.WriteString("<tr>")
		}
		for c := range sheet.Columns {
			var v string
			if c < len(row) {
				v = row[c]
			}
			b.WriteString("<" + cell + ">")
			b.WriteString(EscapeText(v))
			b.WriteString("</" + cell + ">")
		}
		b.WriteString("</tr>\n")
	}
	b.WriteString("</table>\n")

	writeTail(&b)
	return b.String()
}

// RenderText builds a page embedding text verbatim in a preformatted block.
// A newline directly after the opening tag is dropped by HTML parsers, so
// one is always written before the content.
func RenderText(name, text, css string) string {
	var b strings.Builder
	writeHead(&b, name, css)

	b.WriteString(`<pre id="content">` + "\n")
	b.WriteString(EscapeText(text))
	b.WriteString("</pre>\n")

	writeTail(&b)
	return b.String()
}

func writeHead(b *strings.Builder, title, css string) {
	b.WriteString("<!DOCTYPE html>\n<html>\n<head>\n")
	b.WriteString(`<meta charset="utf-8">` + "\n")
	b.WriteString("<title>" + EscapeText(title) + "</title>\n")
	if css != "" {
		b.WriteString("<style>" + sanitizeCSS(css) + "</style>\n")
	}
	b.WriteString("</head>\n<body>\n")
}

func writeTail(b *strings.Builder) {
	b.WriteString("</body>\n</html>\n")
}

// sanitizeCSS escapes sequences that could break out of a <style> block.
func sanitizeCSS(css string) string {
	return strings.ReplaceAll(css, "</", `<\/`)
}
