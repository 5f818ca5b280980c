package adapter

import (
	"context"
	"errors"
	"path/filepath"

	"github.com/rs/zerolog/log"

	"github.com/local/pagerender/internal/converter"
	"github.com/local/pagerender/internal/document"
	"github.com/local/pagerender/internal/slides"
)

type pdfAdapter struct{ deps Deps }

func (a *pdfAdapter) Kind() document.Kind { return document.KindPDF }

func (a *pdfAdapter) Prepare(ctx context.Context, _ string, inputPath string) (*Source, error) {
	return fromPDF(ctx, a.deps, inputPath)
}

type wordAdapter struct{ deps Deps }

func (a *wordAdapter) Kind() document.Kind { return document.KindWord }

func (a *wordAdapter) Prepare(ctx context.Context, workspace, inputPath string) (*Source, error) {
	pdfPath, err := toPDF(ctx, a.deps, workspace, inputPath, converter.FilterPDF)
	if err != nil {
		return nil, err
	}
	return fromPDF(ctx, a.deps, pdfPath)
}

type slideAdapter struct{ deps Deps }

func (a *slideAdapter) Kind() document.Kind { return document.KindSlides }

// Prepare renders visible slides only. Hidden slides are exported to the PDF
// as well so a visible slide keeps its deck number as its PDF page number.
// Without a readable deck the hidden slides cannot be picked out, so the
// export leaves them out instead.
func (a *slideAdapter) Prepare(ctx context.Context, workspace, inputPath string) (*Source, error) {
	deck, derr := a.deps.Deck(inputPath)
	if derr != nil {
		log.Warn().Err(derr).Str("file", filepath.Base(inputPath)).Msg("could not read slide deck, rendering every exported page")
	}
	if derr != nil || len(deck) == 0 {
		pdfPath, err := toPDF(ctx, a.deps, workspace, inputPath, converter.FilterPDF)
		if err != nil {
			return nil, err
		}
		return fromPDF(ctx, a.deps, pdfPath)
	}

	pdfPath, err := toPDF(ctx, a.deps, workspace, inputPath, converter.FilterImpressAllSlides)
	if err != nil {
		return nil, err
	}

	pages, err := countPages(a.deps, pdfPath)
	if err != nil {
		return nil, err
	}

	visible := slides.Visible(deck)
	sequential := pages != len(deck) && pages == len(visible)
	if pages != len(deck) && !sequential {
		log.Warn().Int("pdf_pages", pages).Int("slides", len(deck)).Int("visible", len(visible)).Msg("slide count does not match converted PDF")
	}

	src := &Source{PDFPath: pdfPath, Texts: map[int]string{}}
	var missingText []int
	for i, s := range visible {
		page := s.Number
		if sequential {
			page = i + 1
		}
		if page > pages {
			log.Warn().Int("slide", s.Number).Int("pdf_pages", pages).Msg("slide missing from converted PDF, skipping")
			continue
		}
		idx := len(src.Tasks)
		src.Tasks = append(src.Tasks, document.PageTask{Index: idx, SourcePageNumber: page})
		if s.Text != "" {
			src.Texts[idx] = s.Text
		} else {
			missingText = append(missingText, idx)
		}
	}

	// Slides whose shapes carry no text (pictures, SmartArt) fall back to the PDF layout.
	if len(missingText) > 0 && a.deps.Text != nil {
		texts, err := a.deps.Text.PageTexts(ctx, pdfPath)
		if err != nil {
			log.Warn().Err(err).Msg("layout text unavailable for slides without text")
		}
		for _, idx := range missingText {
			if p := src.Tasks[idx].SourcePageNumber; p-1 < len(texts) {
				src.Texts[idx] = texts[p-1]
			}
		}
	}
	return src, nil
}

func toPDF(ctx context.Context, deps Deps, workspace, inputPath, filter string) (string, error) {
	if deps.Office == nil {
		return "", document.ConversionError("No document converter configured", nil)
	}
	res := deps.Office.ConvertToPDF(ctx, converter.Job{
		InputPath: inputPath,
		OutputDir: filepath.Join(workspace, "pdf"),
		Filter:    filter,
		Timeout:   deps.ConvertTimeout,
	})
	if !res.Success {
		log.Error().Str("error", res.Error).Str("output", res.Output).Dur("duration", res.Duration).Msg("conversion to PDF failed")
		return "", document.ConversionError("Failed to convert document to PDF", errors.New(res.Error))
	}
	return res.OutputPath, nil
}

func countPages(deps Deps, pdfPath string) (int, error) {
	n, err := deps.Pages.PageCount(pdfPath)
	if err != nil {
		return 0, document.ConversionError("Failed to read PDF", err)
	}
	return n, nil
}

// fromPDF maps every PDF page to a task and attaches layout text.
func fromPDF(ctx context.Context, deps Deps, pdfPath string) (*Source, error) {
	n, err := countPages(deps, pdfPath)
	if err != nil {
		return nil, err
	}
	src := &Source{PDFPath: pdfPath, Texts: make(map[int]string, n)}
	if n == 0 {
		return src, nil
	}

	var texts []string
	if deps.Text != nil {
		texts, err = deps.Text.PageTexts(ctx, pdfPath)
		if err != nil {
			log.Warn().Err(err).Str("pdf", filepath.Base(pdfPath)).Msg("layout text extraction incomplete")
		}
	}
	for i := 0; i < n; i++ {
		src.Tasks = append(src.Tasks, document.PageTask{Index: i, SourcePageNumber: i + 1})
		if i < len(texts) {
			src.Texts[i] = texts[i]
		}
	}
	return src, nil
}
