package adapter

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/local/pagerender/internal/converter"
	"github.com/local/pagerender/internal/document"
	"github.com/local/pagerender/internal/slides"
)

type fakeOffice struct {
	fail bool
	jobs []converter.Job
}

func (f *fakeOffice) ConvertToPDF(_ context.Context, job converter.Job) converter.Result {
	f.jobs = append(f.jobs, job)
	if f.fail {
		return converter.Result{Error: "conversion failed: exit status 1"}
	}
	if err := os.MkdirAll(job.OutputDir, 0o755); err != nil {
		return converter.Result{Error: err.Error()}
	}
	out := filepath.Join(job.OutputDir, "converted.pdf")
	if err := os.WriteFile(out, []byte("%PDF-1.4"), 0o644); err != nil {
		return converter.Result{Error: err.Error()}
	}
	return converter.Result{Success: true, OutputPath: out}
}

type fakeCounter struct {
	n   int
	err error
}

func (f fakeCounter) PageCount(string) (int, error) { return f.n, f.err }

type fakeText struct {
	texts []string
	calls int
}

func (f *fakeText) PageTexts(context.Context, string) ([]string, error) {
	f.calls++
	return f.texts, nil
}

func deck(hidden ...int) DeckReader {
	return func(string) ([]slides.Slide, error) {
		out := []slides.Slide{
			{Number: 1, Text: "# Intro"},
			{Number: 2, Text: "# Backup"},
			{Number: 3, Text: "# Close"},
		}
		for _, h := range hidden {
			out[h-1].Hidden = true
		}
		return out, nil
	}
}

func TestSlideAdapterSkipsHiddenSlides(t *testing.T) {
	office := &fakeOffice{}
	a, err := New(document.KindSlides, Deps{Office: office, Pages: fakeCounter{n: 3}, Deck: deck(2), Text: &fakeText{}})
	require.NoError(t, err)

	src, err := a.Prepare(context.Background(), t.TempDir(), "deck.pptx")
	require.NoError(t, err)

	assert.Equal(t, []document.PageTask{{Index: 0, SourcePageNumber: 1}, {Index: 1, SourcePageNumber: 3}}, src.Tasks)
	assert.Equal(t, "# Intro", src.Text(0))
	assert.Equal(t, "# Close", src.Text(1))
	require.Len(t, office.jobs, 1)
	assert.Equal(t, converter.FilterImpressAllSlides, office.jobs[0].Filter)
}

func TestSlideAdapterConverterDroppedHiddenSlides(t *testing.T) {
	a, _ := New(document.KindSlides, Deps{Office: &fakeOffice{}, Pages: fakeCounter{n: 2}, Deck: deck(2)})

	src, err := a.Prepare(context.Background(), t.TempDir(), "deck.pptx")
	require.NoError(t, err)
	assert.Equal(t, []document.PageTask{{Index: 0, SourcePageNumber: 1}, {Index: 1, SourcePageNumber: 2}}, src.Tasks)
	assert.Equal(t, "# Close", src.Text(1))
}

func TestSlideAdapterFallsBackToLayoutText(t *testing.T) {
	reader := func(string) ([]slides.Slide, error) {
		return []slides.Slide{{Number: 1, Text: "# Words"}, {Number: 2}}, nil
	}
	text := &fakeText{texts: []string{"layout one", "layout two"}}
	a, _ := New(document.KindSlides, Deps{Office: &fakeOffice{}, Pages: fakeCounter{n: 2}, Deck: reader, Text: text})

	src, err := a.Prepare(context.Background(), t.TempDir(), "deck.pptx")
	require.NoError(t, err)
	assert.Equal(t, "# Words", src.Text(0))
	assert.Equal(t, "layout two", src.Text(1))
}

func TestSlideAdapterUnreadableDeck(t *testing.T) {
	reader := func(string) ([]slides.Slide, error) { return nil, errors.New("zip: not a valid zip file") }
	office := &fakeOffice{}
	a, _ := New(document.KindSlides, Deps{Office: office, Pages: fakeCounter{n: 2}, Deck: reader, Text: &fakeText{texts: []string{"a", "b"}}})

	src, err := a.Prepare(context.Background(), t.TempDir(), "deck.pptx")
	require.NoError(t, err)
	assert.Len(t, src.Tasks, 2)
	assert.Equal(t, "b", src.Text(1))
	require.Len(t, office.jobs, 1)
	assert.Equal(t, converter.FilterPDF, office.jobs[0].Filter)
}

func TestSlideAdapterEmptyDeckExportsVisibleSlidesOnly(t *testing.T) {
	office := &fakeOffice{}
	empty := func(string) ([]slides.Slide, error) { return nil, nil }
	a, _ := New(document.KindSlides, Deps{Office: office, Pages: fakeCounter{n: 1}, Deck: empty})

	src, err := a.Prepare(context.Background(), t.TempDir(), "deck.pptx")
	require.NoError(t, err)
	assert.Len(t, src.Tasks, 1)
	require.Len(t, office.jobs, 1)
	assert.Equal(t, converter.FilterPDF, office.jobs[0].Filter)
}

func TestPDFAdapter(t *testing.T) {
	text := &fakeText{texts: []string{"# One", "# Two"}}
	a, _ := New(document.KindPDF, Deps{Pages: fakeCounter{n: 3}, Text: text})

	src, err := a.Prepare(context.Background(), t.TempDir(), "in.pdf")
	require.NoError(t, err)
	assert.Equal(t, "in.pdf", src.PDFPath)
	require.Len(t, src.Tasks, 3)
	for i, task := range src.Tasks {
		assert.Equal(t, i, task.Index)
		assert.Equal(t, i+1, task.SourcePageNumber)
	}
	assert.Equal(t, "# Two", src.Text(1))
	assert.Empty(t, src.Text(2))
}

func TestPDFAdapterZeroPages(t *testing.T) {
	text := &fakeText{}
	a, _ := New(document.KindPDF, Deps{Pages: fakeCounter{n: 0}, Text: text})

	src, err := a.Prepare(context.Background(), t.TempDir(), "in.pdf")
	require.NoError(t, err)
	assert.Empty(t, src.Tasks)
	assert.Zero(t, text.calls)
}

func TestAdapterErrors(t *testing.T) {
	t.Run("unreadable pdf", func(t *testing.T) {
		a, _ := New(document.KindPDF, Deps{Pages: fakeCounter{err: errors.New("malformed xref")}})
		_, err := a.Prepare(context.Background(), t.TempDir(), "in.pdf")
		assert.True(t, document.IsType(err, document.ErrorTypeConversion))
	})

	t.Run("word conversion failure", func(t *testing.T) {
		a, _ := New(document.KindWord, Deps{Office: &fakeOffice{fail: true}, Pages: fakeCounter{n: 1}})
		_, err := a.Prepare(context.Background(), t.TempDir(), "in.docx")
		require.Error(t, err)
		assert.True(t, document.IsType(err, document.ErrorTypeConversion))
		assert.Contains(t, err.Error(), "exit status 1")
	})

	t.Run("unknown kind", func(t *testing.T) {
		_, err := New(document.Kind("xlsx"), Deps{})
		assert.Error(t, err)
	})
}

func TestWordAdapterUsesConvertedPDF(t *testing.T) {
	office := &fakeOffice{}
	a, _ := New(document.KindWord, Deps{Office: office, Pages: fakeCounter{n: 2}, Text: &fakeText{}})
	ws := t.TempDir()

	src, err := a.Prepare(context.Background(), ws, "in.docx")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(ws, "pdf", "converted.pdf"), src.PDFPath)
	assert.Equal(t, converter.FilterPDF, office.jobs[0].Filter)
	assert.Len(t, src.Tasks, 2)
}

func TestAll(t *testing.T) {
	all := All(Deps{})
	require.Len(t, all, 3)
	for k, a := range all {
		assert.Equal(t, k, a.Kind())
	}
}
