package imagerender

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"github.com/local/pagerender/internal/document"
	"github.com/local/pagerender/internal/sysproc"
)

const (
	DefaultDPI              = 600
	DefaultRasterizeTimeout = 30 * time.Second
)

// Pdftoppm rasterizes single PDF pages with poppler's pdftoppm.
type Pdftoppm struct {
	Binary  string
	DPI     int
	Timeout time.Duration
}

func NewPdftoppm(binary string, dpi int, timeout time.Duration) *Pdftoppm {
	if binary == "" {
		binary = "pdftoppm"
	}
	if dpi <= 0 {
		dpi = DefaultDPI
	}
	if timeout <= 0 {
		timeout = DefaultRasterizeTimeout
	}
	return &Pdftoppm{Binary: binary, DPI: dpi, Timeout: timeout}
}

// Available reports whether the rasterizer binary can be found.
func (p *Pdftoppm) Available() error {
	_, err := exec.LookPath(p.Binary)
	return err
}

// RenderPage writes page (1-based) of pdfPath to prefix+".png" and returns that path.
// Exceeding the timeout kills the rasterizer's process group.
func (p *Pdftoppm) RenderPage(ctx context.Context, pdfPath, prefix string, page int) (string, error) {
	rctx, cancel := context.WithTimeout(ctx, p.Timeout)
	defer cancel()

	args := []string{
		"-png",
		"-r", strconv.Itoa(p.DPI),
		"-q",
		"-singlefile",
		"-f", strconv.Itoa(page),
		"-l", strconv.Itoa(page),
		pdfPath, prefix,
	}
	cmd := sysproc.Command(rctx, p.Binary, args...)
	cmd.Env = append(os.Environ(), "LANG=C.UTF-8", "LC_ALL=C.UTF-8")
	out, err := cmd.CombinedOutput()
	if rctx.Err() != nil {
		return "", document.PageTimeoutError(fmt.Sprintf("rasterizer timed out on page %d", page), rctx.Err())
	}
	if err != nil {
		msg := fmt.Sprintf("rasterizer failed on page %d", page)
		if detail := strings.TrimSpace(string(out)); detail != "" {
			msg += ": " + detail
		}
		return "", document.PageProcessError(msg, err)
	}

	imagePath := prefix + ".png"
	if _, err := os.Stat(imagePath); err != nil {
		return "", document.PageProcessError(fmt.Sprintf("rasterizer produced no image for page %d", page), err)
	}
	return imagePath, nil
}
