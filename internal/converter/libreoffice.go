package converter

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/local/pagerender/internal/metrics"
	"github.com/local/pagerender/internal/sysproc"
)

const (
	// FilterPDF is the generic writer/calc export filter.
	FilterPDF = "pdf"
	// FilterImpressAllSlides exports hidden slides too so PDF page n is slide n.
	FilterImpressAllSlides = `pdf:impress_pdf_Export:{"ExportHiddenSlides":{"type":"boolean","value":"true"}}`

	defaultTimeout = 120 * time.Second
)

// LibreOffice converts office documents to PDF with a headless soffice
// process per conversion, each with its own throwaway user profile.
type LibreOffice struct {
	binary    string
	timeout   time.Duration
	semaphore chan struct{}
}

// Job represents a document conversion job
type Job struct {
	InputPath string
	OutputDir string
	Filter    string
	Timeout   time.Duration
}

// Result represents the result of a conversion operation
type Result struct {
	Success    bool
	OutputPath string
	Error      string
	Output     string
	TimedOut   bool
	Duration   time.Duration
}

// NewLibreOffice creates a converter. An empty binary is resolved from PATH
// as soffice, then libreoffice.
func NewLibreOffice(binary string, timeout time.Duration, maxParallel int) *LibreOffice {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	if maxParallel <= 0 {
		maxParallel = 1
	}
	return &LibreOffice{
		binary:    binary,
		timeout:   timeout,
		semaphore: make(chan struct{}, maxParallel),
	}
}

// Binary returns the resolved executable path.
func (l *LibreOffice) Binary() (string, error) {
	if l.binary != "" {
		return exec.LookPath(l.binary)
	}
	for _, name := range []string{"soffice", "libreoffice"} {
		if p, err := exec.LookPath(name); err == nil {
			return p, nil
		}
	}
	return "", errors.New("neither soffice nor libreoffice found in PATH")
}

// Available reports whether a converter binary can be found.
func (l *LibreOffice) Available() error {
	_, err := l.Binary()
	return err
}

// ConvertToPDF converts job.InputPath into job.OutputDir/<basename>.pdf.
// The conversion is abandoned, and its process group killed, when ctx ends or the timeout elapses.
func (l *LibreOffice) ConvertToPDF(ctx context.Context, job Job) Result {
	start := time.Now()
	res := l.convert(ctx, job, start)
	res.Duration = time.Since(start)
	metrics.ObserveConversion(res.Success, res.Duration)
	return res
}

func (l *LibreOffice) convert(ctx context.Context, job Job, start time.Time) Result {
	select {
	case l.semaphore <- struct{}{}:
		defer func() { <-l.semaphore }()
	case <-ctx.Done():
		return Result{Error: fmt.Sprintf("waiting for converter slot: %v", ctx.Err())}
	}

	bin, err := l.Binary()
	if err != nil {
		return Result{Error: err.Error()}
	}
	if err := validateInput(job.InputPath); err != nil {
		return Result{Error: fmt.Sprintf("input validation failed: %v", err)}
	}
	if err := os.MkdirAll(job.OutputDir, 0o755); err != nil {
		return Result{Error: fmt.Sprintf("failed to create output directory: %v", err)}
	}

	profileDir := filepath.Join(os.TempDir(), "lo_profile_"+uuid.NewString())
	if err := os.MkdirAll(profileDir, 0o755); err != nil {
		return Result{Error: fmt.Sprintf("failed to create profile directory: %v", err)}
	}
	defer os.RemoveAll(profileDir)

	filter := job.Filter
	if filter == "" {
		filter = FilterPDF
	}
	timeout := job.Timeout
	if timeout <= 0 {
		timeout = l.timeout
	}
	cctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := sysproc.Command(cctx, bin,
		"-env:UserInstallation=file://"+profileDir,
		"--headless",
		"--norestore",
		"--nolockcheck",
		"--convert-to", filter,
		"--outdir", job.OutputDir,
		job.InputPath,
	)
	cmd.Env = append(os.Environ(), "HOME="+profileDir)
	var out bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &out

	log.Debug().Str("cmd", strings.Join(cmd.Args, " ")).Msg("LibreOffice command")

	if err := cmd.Run(); err != nil {
		if cctx.Err() != nil {
			return Result{
				Error:    fmt.Sprintf("conversion timeout after %v", timeout),
				Output:   out.String(),
				TimedOut: errors.Is(cctx.Err(), context.DeadlineExceeded),
			}
		}
		return Result{Error: fmt.Sprintf("conversion failed: %v", err), Output: out.String()}
	}

	expected := expectedOutputPath(job.InputPath, job.OutputDir)
	if _, err := os.Stat(expected); err != nil {
		// Some builds ignore the basename on odd inputs; accept a lone PDF in the outdir.
		matches, _ := filepath.Glob(filepath.Join(job.OutputDir, "*.pdf"))
		if len(matches) != 1 {
			return Result{Error: fmt.Sprintf("output file not created: %v", err), Output: out.String()}
		}
		expected = matches[0]
	}

	log.Info().Str("output", expected).Dur("duration", time.Since(start)).Msg("conversion successful")
	return Result{Success: true, OutputPath: expected}
}

func validateInput(filePath string) error {
	info, err := os.Stat(filePath)
	if err != nil {
		return fmt.Errorf("file not found: %w", err)
	}
	if info.IsDir() {
		return fmt.Errorf("path is a directory, not a file")
	}
	if info.Size() == 0 {
		return fmt.Errorf("file is empty")
	}
	return nil
}

// expectedOutputPath is where soffice writes the PDF for inputPath.
func expectedOutputPath(inputPath, outputDir string) string {
	base := filepath.Base(inputPath)
	return filepath.Join(outputDir, strings.TrimSuffix(base, filepath.Ext(base))+".pdf")
}
