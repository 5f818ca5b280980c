package orchestrator

import (
    "bytes"
    "context"
    "fmt"
    "io"
    "os"
    "path/filepath"
    "sort"
    "time"

    "github.com/google/uuid"
    "github.com/rs/zerolog"

    "github.com/local/pagerender/internal/document"
    "github.com/local/pagerender/internal/executor"
    "github.com/local/pagerender/internal/imagerender"
    "github.com/local/pagerender/internal/logger"
    "github.com/local/pagerender/internal/metrics"
)

// WorkspacePrefix names every per-job scratch directory.
const WorkspacePrefix = "pagerender-"

// Process runs one document through validation, conversion and page
// rendering. It returns an error only when no page could be produced.
func (o *Orchestrator) Process(ctx context.Context, req document.RenderRequest) (*document.JobResult, error) {
    start := time.Now()
    jobID := uuid.NewString()
    lg := logger.ForJob(jobID, string(req.Kind))
    lg.Info().Str("file", req.Filename).Int("bytes", len(req.Data)).Msg("job received")

    res, err := o.run(ctx, jobID, req, lg, start)
    elapsed := time.Since(start)
    end := time.Now()
    if err != nil {
        lg.Error().Err(err).Str("error_type", string(document.TypeOf(err))).Dur("duration", elapsed).Msg("job failed")
        metrics.ObserveJob(string(req.Kind), string(document.StatusError), elapsed)
        o.setStatus(ctx, lg, jobID, Status{Status: string(document.StatusError), Progress: 100, Message: document.MessageOf(err), Start: &start, End: &end,
            Metadata: map[string]any{"kind": string(req.Kind), "file": req.Filename}})
        return nil, err
    }

    lg.Info().Int("pages", len(res.Pages)).Int("failed", len(res.Failed)).Dur("duration", elapsed).Msg("job completed")
    metrics.ObserveJob(string(req.Kind), string(document.StatusSuccess), elapsed)
    o.setStatus(ctx, lg, jobID, Status{Status: string(document.StatusSuccess), Progress: 100, Message: "completed", Start: &start, End: &end,
        Metadata: map[string]any{"kind": string(req.Kind), "file": req.Filename, "pages_processed": res.Stats.PagesProcessed,
            "pages_failed": len(res.Failed), "total_time": res.Stats.TotalTime}})
    return res, nil
}

func (o *Orchestrator) run(ctx context.Context, jobID string, req document.RenderRequest, lg zerolog.Logger, start time.Time) (*document.JobResult, error) {
    ad, ok := o.deps.Adapters[req.Kind]
    if !ok {
        return nil, document.ValidationError(fmt.Sprintf("Unsupported document type %q", req.Kind), nil)
    }
    if _, err := o.deps.Validator.ValidateUpload(req.Filename, req.Data, req.Kind); err != nil {
        return nil, err
    }

    meta := map[string]any{"kind": string(req.Kind), "file": req.Filename}
    o.setStatus(ctx, lg, jobID, Status{Status: "queued", Message: "waiting for a job slot", Start: &start, Metadata: meta})
    release, err := o.deps.Limiter.Acquire(ctx)
    if err != nil {
        return nil, fmt.Errorf("waiting for job slot: %w", err)
    }
    defer release()

    workspace, err := os.MkdirTemp(o.deps.Options.WorkspaceRoot, WorkspacePrefix+"*")
    if err != nil {
        return nil, fmt.Errorf("create workspace: %w", err)
    }
    defer func() {
        if err := os.RemoveAll(workspace); err != nil {
            lg.Warn().Err(err).Str("workspace", workspace).Msg("workspace cleanup failed")
        }
    }()

    input := filepath.Join(workspace, "input"+req.Kind.Extension())
    if err := os.WriteFile(input, req.Data, 0o600); err != nil {
        return nil, fmt.Errorf("persist upload: %w", err)
    }

    o.setStatus(ctx, lg, jobID, Status{Status: "converting", Progress: 5, Message: "preparing pages", Start: &start, Metadata: meta})
    src, err := ad.Prepare(ctx, workspace, input)
    if err != nil {
        if document.TypeOf(err) == "" {
            err = document.ConversionError("Failed to prepare document", err)
        }
        return nil, err
    }
    if len(src.Tasks) == 0 {
        return nil, document.EmptyResultError("No pages found in document")
    }

    touchWorkspace(workspace)
    pagesDir := filepath.Join(workspace, "pages")
    if err := os.MkdirAll(pagesDir, 0o755); err != nil {
        return nil, fmt.Errorf("create pages dir: %w", err)
    }
    mode := imagerender.ModeDocument
    if req.Kind == document.KindSlides {
        mode = imagerender.ModeSlide
    }

    workers := o.deps.Planner.Workers(ctx)
    metrics.SetWorkers(workers)
    lg.Info().Int("pages", len(src.Tasks)).Int("workers", workers).Msg("rendering pages")

    total := len(src.Tasks)
    done := 0
    results := executor.Run(ctx, src.Tasks, executor.Options{
        Workers:     workers,
        TaskTimeout: o.deps.Options.PageTimeout,
        ChunkPause:  o.deps.Options.ChunkPause,
        Logger:      &lg,
        OnChunk: func(r executor.ChunkReport) {
            touchWorkspace(workspace)
            done += r.Tasks
            o.setStatus(ctx, lg, jobID, Status{Status: "rendering", Progress: 10 + 85*done/total,
                Message: fmt.Sprintf("rendered chunk %d/%d", r.Chunk, r.Chunks), Start: &start,
                Metadata: map[string]any{"kind": string(req.Kind), "file": req.Filename, "total_pages": total, "pages_done": done}})
        },
    }, func(ctx context.Context, task document.PageTask) document.PageResult {
        return o.deps.Pages.Render(ctx, imagerender.PageJob{PDFPath: src.PDFPath, OutDir: pagesDir, Task: task, Text: src.Text(task.Index), Mode: mode})
    })

    pages, failed := partition(results)
    for _, r := range results {
        metrics.ObservePage(string(req.Kind), r.Success, r.TimedOut, r.Duration)
    }
    for _, f := range failed {
        lg.Warn().Int("index", f.Index).Int("page", f.SourcePageNumber).Bool("timed_out", f.TimedOut).Dur("duration", f.Duration).Str("error", f.Error).Msg("page failed")
    }
    if len(pages) == 0 {
        return nil, document.EmptyResultError("Failed to process any pages successfully")
    }

    return &document.JobResult{
        JobID:  jobID,
        Kind:   req.Kind,
        Status: document.StatusSuccess,
        Pages:  pages,
        Failed: failed,
        Stats:  document.NewStats(time.Since(start), len(pages)),
    }, nil
}

// partition splits results into successes and failures, each sorted by Index.
func partition(results []document.PageResult) (pages, failed []document.PageResult) {
    for _, r := range results {
        if r.Success {
            pages = append(pages, r)
        } else {
            failed = append(failed, r)
        }
    }
    sort.Slice(pages, func(i, j int) bool { return pages[i].Index < pages[j].Index })
    sort.Slice(failed, func(i, j int) bool { return failed[i].Index < failed[j].Index })
    return pages, failed
}

func (o *Orchestrator) setStatus(ctx context.Context, lg zerolog.Logger, jobID string, st Status) {
    if err := o.deps.Status.Set(context.WithoutCancel(ctx), jobID, st); err != nil {
        lg.Warn().Err(err).Str("status", st.Status).Msg("status update failed")
    }
}

func extOf(name string) string { return filepath.Ext(name) }

// readAll reads an upload, sizing the buffer from the multipart header.
func readAll(r io.Reader, size int64) ([]byte, error) {
    var buf bytes.Buffer
    if size > 0 { buf.Grow(int(size)) }
    if _, err := io.Copy(&buf, r); err != nil { return nil, err }
    return buf.Bytes(), nil
}

type noopStatus struct{}

func (noopStatus) Set(context.Context, string, Status) error { return nil }
func (noopStatus) Get(context.Context, string) (Status, bool, error) { return Status{}, false, nil }
