package ocr

import (
	"fmt"

	"github.com/ledongthuc/pdf"
)

// readTextLayer extracts the embedded text of every page, 1-based. Pages
// without a text object are simply absent from the map. The parser can panic
// on malformed xref tables, so the recover turns that into an error.
func readTextLayer(path string) (texts map[int]string, total int, err error) {
	defer func() {
		if r := recover(); r != nil {
			texts, total = nil, 0
			err = fmt.Errorf("pdf parse: %v", r)
		}
	}()

	f, reader, err := pdf.Open(path)
	if err != nil {
		return nil, 0, fmt.Errorf("open pdf: %w", err)
	}
	defer func() { _ = f.Close() }()

	total = reader.NumPage()
	texts = make(map[int]string, total)
	for i := 1; i <= total; i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		content, err := page.GetPlainText(nil)
		if err != nil {
			continue
		}
		texts[i] = content
	}
	return texts, total, nil
}
