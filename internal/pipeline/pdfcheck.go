package pipeline

import (
	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
)

// PDFValidator checks that a file parses as a PDF and returns its page count.
type PDFValidator func(path string) (int, error)

// ValidatePDF is the production validator. Relaxed mode accepts the mildly
// malformed files scanners and office suites emit.
func ValidatePDF(path string) (int, error) {
	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed
	if err := api.ValidateFile(path, conf); err != nil {
		return 0, err
	}
	return api.PageCountFile(path)
}
