package pipeline

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"
)

// candidateDelimiters are tried in order; ties go to the earlier one.
var candidateDelimiters = []rune{',', ';', '\t', '|'}

// ParseDelimited splits text into records on line breaks and fields on the
// delimiter detected from the first record. Quoted fields may contain the
// delimiter and line breaks. Ragged records are padded to the widest one.
// Blank lines between records are kept as empty rows; leading and trailing
// blank lines are dropped.
func ParseDelimited(name, text string) (Sheet, error) {
	if strings.TrimSpace(text) == "" {
		return Sheet{Name: name}, nil
	}

	r := csv.NewReader(strings.NewReader(text))
	r.Comma = SniffDelimiter(text)
	r.LazyQuotes = true
	r.FieldsPerRecord = -1

	var rows [][]string
	var end int64
	for {
		rec, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return Sheet{}, fmt.Errorf("%w: %s: %v", ErrParse, name, err)
		}
		// csv.Reader skips empty lines; count them back from the raw text.
		if len(rows) > 0 {
			for range blankLines(text[end:]) {
				rows = append(rows, nil)
			}
		}
		rows = append(rows, rec)
		end = r.InputOffset()
	}
	return newSheet(name, rows), nil
}

// blankLines counts the empty lines at the start of s.
func blankLines(s string) int {
	n := 0
	for {
		switch {
		case strings.HasPrefix(s, "\r\n"):
			s = s[2:]
		case strings.HasPrefix(s, "\n"):
			s = s[1:]
		default:
			return n
		}
		n++
	}
}

// SniffDelimiter returns the candidate delimiter occurring most often
// outside quotes in the first record, or ',' when none occurs.
func SniffDelimiter(text string) rune {
	counts := make(map[rune]int, len(candidateDelimiters))
	inQuotes := false
	for _, c := range text {
		if c == '"' {
			inQuotes = !inQuotes
			continue
		}
		if !inQuotes && (c == '\n' || c == '\r') {
			break
		}
		if !inQuotes {
			counts[c]++
		}
	}

	best, bestCount := ',', 0
	for _, d := range candidateDelimiters {
		if counts[d] > bestCount {
			best, bestCount = d, counts[d]
		}
	}
	return best
}
