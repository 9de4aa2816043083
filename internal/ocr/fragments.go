package ocr

import (
	"regexp"
	"strings"
	"unicode"

	"github.com/stroyassist/defectbot/internal/document"
)

var (
	reCRLF       = regexp.MustCompile(`\r\n?`)
	reTabs       = regexp.MustCompile(`\t+`)
	reMultiSpace = regexp.MustCompile(` {2,}`)
	reBoxNoise   = regexp.MustCompile(`(?m)^\s*[_\-=]{3,}\s*$`)
	reListMarker = regexp.MustCompile(`^\s*([-•*—]|\d+[.)])\s+`)
)

// normalize collapses noisy whitespace and strips ruled-line artifacts.
// Conservative: keeps line breaks.
func normalize(s string) string {
	if s == "" {
		return s
	}
	s = reCRLF.ReplaceAllString(s, "\n")
	s = reTabs.ReplaceAllString(s, " ")
	s = reMultiSpace.ReplaceAllString(s, " ")
	s = reBoxNoise.ReplaceAllString(s, "")
	lines := strings.Split(s, "\n")
	for i := range lines {
		lines[i] = strings.TrimRight(lines[i], " ")
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}

// splitFragments turns raw page text into categorized elements. Headings and
// list items stand alone; consecutive prose lines merge into one paragraph
// element. Whitespace-only input yields nothing.
func splitFragments(text string) []document.TextElement {
	text = normalize(text)
	if text == "" {
		return nil
	}

	var elements []document.TextElement
	var paragraph []string

	flush := func() {
		if len(paragraph) == 0 {
			return
		}
		elements = append(elements, document.NewTextElement("NarrativeText", strings.Join(paragraph, " ")))
		paragraph = paragraph[:0]
	}

	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		switch {
		case line == "":
			flush()
		case reListMarker.MatchString(line):
			flush()
			elements = append(elements, document.NewTextElement("ListItem", line))
		case isTitleLine(line):
			flush()
			elements = append(elements, document.NewTextElement("Title", line))
		default:
			paragraph = append(paragraph, line)
		}
	}
	flush()
	return elements
}

// isTitleLine matches short, mostly-uppercase lines ("АКТ ОСМОТРА", "ВЫВОДЫ").
func isTitleLine(line string) bool {
	runes := []rune(line)
	if len(runes) > 64 {
		return false
	}
	var letters, upper int
	for _, r := range runes {
		if unicode.IsLetter(r) {
			letters++
			if unicode.IsUpper(r) {
				upper++
			}
		}
	}
	return letters >= 3 && upper*10 >= letters*7
}
