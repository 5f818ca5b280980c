package imagerender

import (
	"context"
	"fmt"
	"image/png"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/local/pagerender/internal/document"
)

// Rasterizer turns one PDF page into a PNG file.
type Rasterizer interface {
	RenderPage(ctx context.Context, pdfPath, prefix string, page int) (string, error)
}

// PageJob is everything needed to render one page.
type PageJob struct {
	PDFPath string
	OutDir  string
	Task    document.PageTask
	Text    string
	Mode    Mode
}

// Renderer runs the rasterize, normalize, encode sequence for single pages.
type Renderer struct {
	raster Rasterizer
	out    Output
}

func NewRenderer(raster Rasterizer, out Output) *Renderer {
	return &Renderer{raster: raster, out: out.withDefaults()}
}

// Render never panics and never returns an error: failures are reported in the result.
func (r *Renderer) Render(ctx context.Context, job PageJob) (res document.PageResult) {
	start := time.Now()
	page := job.Task.SourcePageNumber
	lg := log.With().Int("index", job.Task.Index).Int("page", page).Logger()

	defer func() {
		if p := recover(); p != nil {
			res = document.Failed(job.Task, document.PageProcessError(fmt.Sprintf("panic rendering page %d: %v", page, p), nil), time.Since(start))
			lg.Error().Interface("panic", p).Msg("page render panicked")
		}
	}()

	fail := func(err error) document.PageResult {
		d := time.Since(start)
		lg.Warn().Err(err).Dur("duration", d).Msg("page render failed")
		return document.Failed(job.Task, err, d)
	}

	prefix := filepath.Join(job.OutDir, fmt.Sprintf("page-%04d", page))
	imagePath, err := r.raster.RenderPage(ctx, job.PDFPath, prefix, page)
	if err != nil {
		return fail(err)
	}
	defer os.Remove(imagePath)

	f, err := os.Open(imagePath)
	if err != nil {
		return fail(document.PageProcessError(fmt.Sprintf("open image for page %d", page), err))
	}
	img, err := png.Decode(f)
	f.Close()
	if err != nil {
		return fail(document.PageProcessError(fmt.Sprintf("decode image for page %d", page), err))
	}

	// The outer deadline may pass during any of the CPU-bound steps; nobody is waiting for the result then.
	abandoned := func() (document.PageResult, bool) {
		if err := ctx.Err(); err != nil {
			return fail(document.PageTimeoutError(fmt.Sprintf("page %d abandoned", page), err)), true
		}
		return document.PageResult{}, false
	}
	if res, stop := abandoned(); stop {
		return res
	}

	normalized, err := r.out.Normalize(img, job.Mode)
	if err != nil {
		return fail(document.PageProcessError(fmt.Sprintf("normalize page %d", page), err))
	}
	if res, stop := abandoned(); stop {
		return res
	}
	data, err := EncodePNG(normalized)
	if err != nil {
		return fail(document.PageProcessError(fmt.Sprintf("encode page %d", page), err))
	}
	if res, stop := abandoned(); stop {
		return res
	}

	d := time.Since(start)
	dims := DimensionsOf(normalized)
	lg.Debug().Int("width", dims.Width).Int("height", dims.Height).Int("png_bytes", len(data)).Dur("duration", d).Msg("page rendered")
	return document.PageResult{
		Index:            job.Task.Index,
		SourcePageNumber: page,
		Success:          true,
		Image:            EncodeToBase64(data),
		Dimensions:       dims,
		Text:             job.Text,
		Duration:         d,
	}
}
