// internal/printer/verify.go
package printer

import (
	"fmt"

	"github.com/pdfcpu/pdfcpu/pkg/api"
)

// PageCounter reports the number of pages of a rendered document
type PageCounter func(path string) (int, error)

// PDFPageCount reads the page count with pdfcpu
func PDFPageCount(path string) (int, error) {
	n, err := api.PageCountFile(path)
	if err != nil {
		return 0, fmt.Errorf("invalid PDF %s: %w", path, err)
	}
	return n, nil
}
