// Package document holds the request, page and job types shared by every stage of the render pipeline.
package document

import (
	"strings"
	"time"
)

// Kind is the document format a request was submitted as.
type Kind string

const (
	KindPDF    Kind = "pdf"
	KindSlides Kind = "pptx"
	KindWord   Kind = "docx"
)

// Kinds lists every supported kind in endpoint order.
var Kinds = []Kind{KindPDF, KindSlides, KindWord}

// Extension returns the dotted file extension for the kind.
func (k Kind) Extension() string { return "." + string(k) }

// ParseKind maps a path segment or extension to a Kind.
func ParseKind(s string) (Kind, bool) {
	s = strings.TrimPrefix(strings.ToLower(strings.TrimSpace(s)), ".")
	for _, k := range Kinds {
		if string(k) == s {
			return k, true
		}
	}
	return "", false
}

// RenderRequest is one uploaded document.
type RenderRequest struct {
	Filename string
	Data     []byte
	Kind     Kind
}

// PageTask identifies one page to rasterize. Index is the 0-based output position;
// SourcePageNumber is the 1-based page in the intermediate PDF.
type PageTask struct {
	Index            int
	SourcePageNumber int
}

type Orientation string

const (
	Landscape Orientation = "landscape"
	Portrait  Orientation = "portrait"
)

// OrientationOf is landscape iff width > height.
func OrientationOf(width, height int) Orientation {
	if width > height {
		return Landscape
	}
	return Portrait
}

type Dimensions struct {
	Width       int         `json:"width"`
	Height      int         `json:"height"`
	Orientation Orientation `json:"orientation"`
}

// PageResult is the outcome of one PageTask.
type PageResult struct {
	Index            int
	SourcePageNumber int
	Success          bool
	Image            string // base64 PNG, set iff Success
	Dimensions       Dimensions
	Text             string
	Error            string
	TimedOut         bool
	Duration         time.Duration
}

// Failed builds a failure result for task.
func Failed(task PageTask, err error, d time.Duration) PageResult {
	return PageResult{
		Index:            task.Index,
		SourcePageNumber: task.SourcePageNumber,
		Error:            MessageOf(err),
		TimedOut:         IsType(err, ErrorTypePageTimeout),
		Duration:         d,
	}
}

type JobStatus string

const (
	StatusSuccess JobStatus = "success"
	StatusError   JobStatus = "error"
)

type Stats struct {
	TotalTime      float64 `json:"total_time"`
	PagesProcessed int     `json:"pages_processed"`
	AvgTimePerPage float64 `json:"avg_time_per_page"`
}

// JobResult is the final aggregate returned to the caller.
type JobResult struct {
	JobID   string
	Kind    Kind
	Status  JobStatus
	Pages   []PageResult
	Failed  []PageResult
	Stats   Stats
	Message string
}

// NewStats derives per-page averages from the successful page count.
func NewStats(total time.Duration, processed int) Stats {
	s := Stats{TotalTime: total.Seconds(), PagesProcessed: processed}
	if processed > 0 {
		s.AvgTimePerPage = s.TotalTime / float64(processed)
	}
	return s
}
