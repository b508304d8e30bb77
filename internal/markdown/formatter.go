// Package markdown shapes extracted PDF text: a storage-side cleanup pass and
// an optional render pass that promotes likely section headings. The stored
// text stays plain; heading promotion is applied only when a caller asks for
// the rendered form.
package markdown

import (
	"strings"
	"unicode"
)

// Format normalizes extracted text for storage: CRLF to LF, trailing
// whitespace stripped per line, runs of blank lines collapsed to one.
func Format(text string) string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	lines := strings.Split(text, "\n")

	var out []string
	blanks := 0
	for _, line := range lines {
		line = strings.TrimRight(line, " \t")
		if line == "" {
			blanks++
			if blanks > 1 {
				continue
			}
		} else {
			blanks = 0
		}
		out = append(out, line)
	}
	return strings.TrimSpace(strings.Join(out, "\n"))
}

// Render promotes stand-alone lines that look like section headings to
// level-two markdown headings. Paragraph text is passed through unchanged.
func Render(text string) string {
	lines := strings.Split(text, "\n")
	for i, line := range lines {
		if isHeading(line, surroundedByBlank(lines, i)) {
			lines[i] = "## " + strings.TrimSpace(line)
		}
	}
	return strings.Join(lines, "\n")
}

// TitleFromText returns the first non-empty line with any leading '#' markers
// stripped, or fallback when the text has no usable line.
func TitleFromText(text, fallback string) string {
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(strings.TrimLeft(strings.TrimSpace(line), "#"))
		if line != "" {
			return line
		}
	}
	return fallback
}

func surroundedByBlank(lines []string, i int) bool {
	above := i == 0 || strings.TrimSpace(lines[i-1]) == ""
	below := i == len(lines)-1 || strings.TrimSpace(lines[i+1]) == ""
	return above && below
}

// isHeading applies the shape heuristic: short, stand-alone, starts with an
// uppercase letter or a digit (numbered sections), and no sentence-ending
// punctuation.
func isHeading(line string, standAlone bool) bool {
	s := strings.TrimSpace(line)
	if s == "" || !standAlone || len(s) > 60 {
		return false
	}
	if strings.HasSuffix(s, ".") || strings.HasSuffix(s, ",") || strings.HasSuffix(s, ";") {
		return false
	}
	r := []rune(s)[0]
	return unicode.IsUpper(r) || unicode.IsDigit(r)
}
