// Package document holds the structured OCR result: a document is an ordered
// list of pages, a page an ordered list of text elements. JSON field names are
// frozen because the on-disk artifact is read back by the relevance stage.
package document

import (
	"fmt"
	"strings"
)

// TextElement is one recognized fragment on a page.
type TextElement struct {
	Category string `json:"category"`
	Content  string `json:"content"`
	Type     string `json:"type"`
}

// Page is one document page. PageNumber is 1-based and unique within a
// Document; numbers increase but need not be contiguous when empty pages
// were dropped. TotalElements always equals len(Elements).
type Page struct {
	PageNumber    int           `json:"page_number"`
	FullText      string        `json:"full_text"`
	Elements      []TextElement `json:"elements"`
	TotalElements int           `json:"total_elements"`
}

// Document is the OCR output for one file. TotalPages always equals
// len(Pages). Read-only after the OCR stage produces it.
type Document struct {
	Filename   string `json:"filename"`
	TotalPages int    `json:"total_pages"`
	Pages      []Page `json:"pages"`
}

// NewTextElement builds a fragment with the fixed "text" type tag.
func NewTextElement(category, content string) TextElement {
	return TextElement{Category: category, Content: strings.TrimSpace(content), Type: "text"}
}

// NewPage derives FullText and TotalElements from the element slice exactly
// once. Counts are never recomputed behind the caller's back afterwards.
func NewPage(pageNumber int, elements []TextElement) Page {
	return Page{
		PageNumber:    pageNumber,
		FullText:      JoinElements(elements),
		Elements:      elements,
		TotalElements: len(elements),
	}
}

// NewDocument derives TotalPages from the page slice.
func NewDocument(filename string, pages []Page) Document {
	return Document{
		Filename:   filename,
		TotalPages: len(pages),
		Pages:      pages,
	}
}

// JoinElements renders a page's full text: element contents separated by a
// single space.
func JoinElements(elements []TextElement) string {
	parts := make([]string, 0, len(elements))
	for _, el := range elements {
		parts = append(parts, el.Content)
	}
	return strings.Join(parts, " ")
}

// GetPage returns the page with the given number.
func (d Document) GetPage(pageNumber int) (Page, bool) {
	for _, page := range d.Pages {
		if page.PageNumber == pageNumber {
			return page, true
		}
	}
	return Page{}, false
}

// HasPage reports whether a page number exists in the document.
func (d Document) HasPage(pageNumber int) bool {
	_, ok := d.GetPage(pageNumber)
	return ok
}

// PageNumbers lists the page numbers in document order.
func (d Document) PageNumbers() []int {
	nums := make([]int, 0, len(d.Pages))
	for _, page := range d.Pages {
		nums = append(nums, page.PageNumber)
	}
	return nums
}

// AllText renders the document as plain text: every page opens with a
// "=== Страница N ===" banner, elements are joined with newlines, pages are
// separated by a blank line. This is the .txt artifact format.
func (d Document) AllText() string {
	pages := make([]string, 0, len(d.Pages))
	for _, page := range d.Pages {
		lines := make([]string, 0, len(page.Elements))
		for _, el := range page.Elements {
			lines = append(lines, el.Content)
		}
		pages = append(pages, fmt.Sprintf("=== Страница %d ===\n", page.PageNumber)+strings.Join(lines, "\n"))
	}
	return strings.Join(pages, "\n\n")
}

// ElementsByCategory collects elements with a given category label across
// all pages, in document order.
func (d Document) ElementsByCategory(category string) []TextElement {
	var out []TextElement
	for _, page := range d.Pages {
		for _, el := range page.Elements {
			if el.Category == category {
				out = append(out, el)
			}
		}
	}
	return out
}
