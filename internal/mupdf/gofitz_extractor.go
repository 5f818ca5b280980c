package mupdf

import (
	"context"
	"fmt"
	"strings"

	"github.com/gen2brain/go-fitz"
	"github.com/rs/zerolog/log"
)

// GoFitzExtractor reads page layout through the embedded MuPDF library (no external tools needed).
type GoFitzExtractor struct{}

// NewGoFitzExtractor creates a new go-fitz based extractor
func NewGoFitzExtractor() *GoFitzExtractor {
	return &GoFitzExtractor{}
}

// PageCount returns the number of pages in a PDF using go-fitz
func (g *GoFitzExtractor) PageCount(pdfPath string) (int, error) {
	doc, err := fitz.New(pdfPath)
	if err != nil {
		return 0, fmt.Errorf("failed to open PDF: %w", err)
	}
	defer doc.Close()

	return doc.NumPage(), nil
}

// PageTexts returns layout-aware markdown for every page, indexed from 0.
// A page that cannot be read yields an empty string rather than failing the document.
func (g *GoFitzExtractor) PageTexts(ctx context.Context, pdfPath string) ([]string, error) {
	doc, err := fitz.New(pdfPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open PDF: %w", err)
	}
	defer doc.Close()

	texts := make([]string, doc.NumPage())
	for i := range texts {
		if err := ctx.Err(); err != nil {
			return texts, err
		}
		texts[i] = g.pageText(doc, i)
	}
	return texts, nil
}

func (g *GoFitzExtractor) pageText(doc *fitz.Document, index int) string {
	pageNum := index + 1
	src, err := doc.HTML(index, false)
	if err == nil {
		md, perr := LayoutMarkdown(src, pageNum)
		if perr == nil {
			return md
		}
		err = perr
	}
	log.Warn().Err(err).Int("page", pageNum).Msg("layout extraction failed, falling back to plain text")

	raw, err := doc.Text(index)
	if err != nil {
		log.Warn().Err(err).Int("page", pageNum).Msg("failed to extract text from page")
		return ""
	}
	return cleanText(raw, pageNum)
}

// cleanText tidies plain extraction output: blank lines, bare page numbers
// and glyph noise are dropped and soft-wrapped lines are rejoined.
func cleanText(text string, pageNum int) string {
	var kept []string
	for _, line := range strings.Split(text, "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || trimmed == fmt.Sprint(pageNum) || isNoise(trimmed) {
			continue
		}
		kept = append(kept, trimmed)
	}
	return strings.TrimSpace(fixBrokenLines(kept))
}

// fixBrokenLines rejoins a line with its successor when the first does not
// end a sentence and the second starts lower-case.
func fixBrokenLines(lines []string) string {
	var fixed []string
	for i := 0; i < len(lines); i++ {
		cur := lines[i]
		if i < len(lines)-1 {
			next := lines[i+1]
			last := cur[len(cur)-1]
			sentenceEnd := strings.IndexByte(".!?:;", last) >= 0
			if !sentenceEnd && next[0] >= 'a' && next[0] <= 'z' && !strings.HasSuffix(cur, "-") {
				fixed = append(fixed, cur+" "+next)
				i++
				continue
			}
		}
		fixed = append(fixed, cur)
	}
	return strings.Join(fixed, "\n\n")
}
