package extract

import "strings"

// RawLine is one non-empty line of extracted text. SourceIndex is the line's
// position in the original document, kept for traceability through parsing
// and matching.
type RawLine struct {
	SourceIndex int
	Text        string
}

// Segment splits raw text into trimmed, non-empty lines. Blank and
// whitespace-only lines are dropped but original indices are retained.
// Case is left untouched; consumers normalize as needed.
func Segment(text string) []RawLine {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	parts := strings.Split(text, "\n")
	out := make([]RawLine, 0, len(parts))
	for i, p := range parts {
		trimmed := strings.TrimSpace(p)
		if trimmed == "" {
			continue
		}
		out = append(out, RawLine{SourceIndex: i, Text: trimmed})
	}
	return out
}
