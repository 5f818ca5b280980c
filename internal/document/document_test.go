package document

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestErrorClassification(t *testing.T) {
	cause := errors.New("exit status 1")
	err := fmt.Errorf("job abc: %w", ConversionError("Failed to convert document to PDF", cause))

	assert.Equal(t, ErrorTypeConversion, TypeOf(err))
	assert.True(t, IsType(err, ErrorTypeConversion))
	assert.False(t, IsType(err, ErrorTypeValidation))
	assert.Equal(t, "Failed to convert document to PDF", MessageOf(err))
	assert.ErrorIs(t, err, cause)

	plain := errors.New("plain")
	assert.Equal(t, ErrorType(""), TypeOf(plain))
	assert.Equal(t, "plain", MessageOf(plain))
	assert.Empty(t, MessageOf(nil))
	assert.False(t, IsType(nil, ErrorTypeValidation))
}

func TestOrientationOf(t *testing.T) {
	assert.Equal(t, Landscape, OrientationOf(1280, 720))
	assert.Equal(t, Portrait, OrientationOf(556, 720))
	assert.Equal(t, Portrait, OrientationOf(720, 720), "square pages are portrait")
}

func TestParseKind(t *testing.T) {
	for in, want := range map[string]Kind{"pdf": KindPDF, ".PPTX": KindSlides, " docx ": KindWord} {
		got, ok := ParseKind(in)
		assert.True(t, ok, in)
		assert.Equal(t, want, got, in)
	}
	_, ok := ParseKind("txt")
	assert.False(t, ok)
	assert.Equal(t, ".pdf", KindPDF.Extension())
}

func TestFailedCarriesTimeout(t *testing.T) {
	task := PageTask{Index: 3, SourcePageNumber: 5}

	r := Failed(task, PageTimeoutError("Page processing timeout", nil), time.Second)
	assert.False(t, r.Success)
	assert.True(t, r.TimedOut)
	assert.Equal(t, 3, r.Index)
	assert.Equal(t, 5, r.SourcePageNumber)
	assert.Equal(t, "Page processing timeout", r.Error)

	r = Failed(task, PageProcessError("decode failed", nil), time.Second)
	assert.False(t, r.TimedOut)
}

func TestNewStats(t *testing.T) {
	s := NewStats(10*time.Second, 4)
	assert.InDelta(t, 10.0, s.TotalTime, 1e-9)
	assert.Equal(t, 4, s.PagesProcessed)
	assert.InDelta(t, 2.5, s.AvgTimePerPage, 1e-9)

	assert.Zero(t, NewStats(time.Second, 0).AvgTimePerPage)
}
