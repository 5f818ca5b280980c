// Package adapter turns an uploaded document into a PDF plus the list of
// pages to render, one strategy per document kind.
package adapter

import (
	"context"
	"fmt"
	"time"

	"github.com/local/pagerender/internal/converter"
	"github.com/local/pagerender/internal/document"
	"github.com/local/pagerender/internal/slides"
)

// Converter produces a PDF from an office document.
type Converter interface {
	ConvertToPDF(ctx context.Context, job converter.Job) converter.Result
}

// PageCounter inspects a PDF once per job.
type PageCounter interface {
	PageCount(pdfPath string) (int, error)
}

// TextReader extracts markdown for every page of a PDF.
type TextReader interface {
	PageTexts(ctx context.Context, pdfPath string) ([]string, error)
}

// DeckReader lists the slides of a .pptx in presentation order.
type DeckReader func(path string) ([]slides.Slide, error)

// Source is what the render stage consumes.
type Source struct {
	PDFPath string
	Tasks   []document.PageTask
	Texts   map[int]string // keyed by PageTask.Index
}

// Text returns the extracted markdown for the task at index.
func (s *Source) Text(index int) string {
	return s.Texts[index]
}

// Adapter prepares one kind of document inside a job workspace.
type Adapter interface {
	Kind() document.Kind
	Prepare(ctx context.Context, workspace, inputPath string) (*Source, error)
}

// Deps are shared by every adapter.
type Deps struct {
	Office         Converter
	Pages          PageCounter
	Text           TextReader
	Deck           DeckReader
	ConvertTimeout time.Duration
}

// New returns the adapter for kind.
func New(kind document.Kind, deps Deps) (Adapter, error) {
	if deps.Deck == nil {
		deps.Deck = slides.ReadDeck
	}
	switch kind {
	case document.KindPDF:
		return &pdfAdapter{deps: deps}, nil
	case document.KindSlides:
		return &slideAdapter{deps: deps}, nil
	case document.KindWord:
		return &wordAdapter{deps: deps}, nil
	}
	return nil, fmt.Errorf("no adapter for document kind %q", kind)
}

// All builds one adapter per supported kind.
func All(deps Deps) map[document.Kind]Adapter {
	out := make(map[document.Kind]Adapter, len(document.Kinds))
	for _, k := range document.Kinds {
		a, _ := New(k, deps)
		out[k] = a
	}
	return out
}
