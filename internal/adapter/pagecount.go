package adapter

import (
	"fmt"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/rs/zerolog/log"
)

// PDFCounter counts pages with pdfcpu and falls back to a second inspector
// for files pdfcpu refuses to parse.
type PDFCounter struct {
	fallback PageCounter
}

func NewPDFCounter(fallback PageCounter) *PDFCounter {
	return &PDFCounter{fallback: fallback}
}

func (c *PDFCounter) PageCount(pdfPath string) (int, error) {
	n, err := api.PageCountFile(pdfPath)
	if err == nil {
		return n, nil
	}
	if c.fallback == nil {
		return 0, fmt.Errorf("pdf page count failed: %w", err)
	}
	log.Warn().Err(err).Str("pdf", pdfPath).Msg("pdfcpu page count failed, using fallback")
	n, ferr := c.fallback.PageCount(pdfPath)
	if ferr != nil {
		return 0, fmt.Errorf("pdf page count failed: %v; fallback: %w", err, ferr)
	}
	return n, nil
}
