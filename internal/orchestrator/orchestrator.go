package orchestrator

import (
    "context"
    "encoding/json"
    "errors"
    "net/http"
    "strings"
    "time"

    "github.com/rs/zerolog/log"

    "github.com/local/pagerender/internal/adapter"
    "github.com/local/pagerender/internal/document"
    "github.com/local/pagerender/internal/fetch"
    "github.com/local/pagerender/internal/filetype"
    "github.com/local/pagerender/internal/imagerender"
    "github.com/local/pagerender/internal/limiter"
    "github.com/local/pagerender/internal/metrics"
    "github.com/local/pagerender/internal/statuscheck"
    "github.com/local/pagerender/internal/store"
)

// Status is the per-job record kept in the status store.
type Status = store.Status

type StatusStore interface {
    Set(ctx context.Context, jobID string, st Status) error
    Get(ctx context.Context, jobID string) (Status, bool, error)
}

// Validator checks an upload against the endpoint it was sent to.
type Validator interface {
    ValidateUpload(filename string, data []byte, kind document.Kind) (*filetype.FileTypeInfo, error)
}

// PageRenderer renders one page; failures come back inside the result.
type PageRenderer interface {
    Render(ctx context.Context, job imagerender.PageJob) document.PageResult
}

// WorkerPlanner sizes the per-job page pool.
type WorkerPlanner interface {
    Workers(ctx context.Context) int
}

// Fetcher loads documents referenced by URL.
type Fetcher interface {
    Fetch(ctx context.Context, ref string) (*fetch.Object, error)
}

// Checker reports dependency health for /status.
type Checker interface {
    Summary(ctx context.Context) statuscheck.Summary
}

type Options struct {
    PageTimeout    time.Duration
    ChunkPause     time.Duration
    WorkspaceRoot  string
    MaxUploadBytes int64
}

type Dependencies struct {
    Validator Validator
    Adapters  map[document.Kind]adapter.Adapter
    Pages     PageRenderer
    Planner   WorkerPlanner
    Limiter   *limiter.JobLimiter
    Status    StatusStore
    Fetcher   Fetcher
    Checker   Checker
    Options   Options
}

type Orchestrator struct {
    deps Dependencies
}

func New(deps Dependencies) *Orchestrator {
    if deps.Validator == nil { deps.Validator = filetype.New() }
    if deps.Limiter == nil { deps.Limiter = limiter.New(0) }
    if deps.Status == nil { deps.Status = noopStatus{} }
    if deps.Options.MaxUploadBytes <= 0 { deps.Options.MaxUploadBytes = 100 << 20 }
    return &Orchestrator{deps: deps}
}

func (o *Orchestrator) RegisterRoutes(mux *http.ServeMux) {
    mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request){ w.WriteHeader(http.StatusOK); _,_ = w.Write([]byte("ok")) })
    for _, kind := range document.Kinds {
        mux.HandleFunc("/"+string(kind)+"/convert", o.handleConvert(kind))
        mux.HandleFunc("/"+string(kind)+"/convert_ref", o.handleConvertRef(kind))
    }
    mux.HandleFunc("/jobs/", o.handleJob)
    mux.HandleFunc("/status", o.handleStatus)
    mux.Handle("/metrics", metrics.Handler())
}

type slideResp struct {
    Index      int                 `json:"index"`
    Data       string              `json:"data"`
    Success    bool                `json:"success"`
    Dimensions document.Dimensions `json:"dimensions"`
    Meta       slideMeta           `json:"meta"`
}

type slideMeta struct {
    Text       string `json:"text"`
    Format     string `json:"format"`
    PageNumber int    `json:"page_number"`
}

type failedResp struct {
    Index      int    `json:"index"`
    PageNumber int    `json:"page_number"`
    Error      string `json:"error"`
    TimedOut   bool   `json:"timed_out"`
}

type convertResp struct {
    Status          string         `json:"status"`
    JobID           string         `json:"job_id"`
    Slides          []slideResp    `json:"slides"`
    ProcessingStats document.Stats `json:"processing_stats"`
    FailedPages     []failedResp   `json:"failed_pages"`
}

type errorResp struct {
    Status  string `json:"status"`
    Message string `json:"message"`
}

type convertRefReq struct {
    FileURL string `json:"file_url"`
}

func (o *Orchestrator) handleConvert(kind document.Kind) http.HandlerFunc {
    return func(w http.ResponseWriter, r *http.Request) {
        if r.Method != http.MethodPost { w.WriteHeader(http.StatusMethodNotAllowed); return }
        r.Body = http.MaxBytesReader(w, r.Body, o.deps.Options.MaxUploadBytes)
        if err := r.ParseMultipartForm(32 << 20); err != nil {
            var tooBig *http.MaxBytesError
            if errors.As(err, &tooBig) {
                writeError(w, http.StatusRequestEntityTooLarge, "Uploaded file is too large"); return
            }
            writeError(w, http.StatusBadRequest, "Invalid multipart form"); return
        }
        defer r.MultipartForm.RemoveAll()
        file, hdr, err := r.FormFile("file")
        if err != nil { writeError(w, http.StatusBadRequest, "No file uploaded"); return }
        defer file.Close()
        // reject by name before reading the body into memory
        if !strings.EqualFold(extOf(hdr.Filename), kind.Extension()) {
            writeError(w, http.StatusBadRequest, filetype.InvalidTypeMessage(kind)); return
        }
        data, err := readAll(file, hdr.Size)
        if err != nil { writeError(w, http.StatusInternalServerError, "Failed to read upload"); return }
        o.respond(w, r, document.RenderRequest{Filename: hdr.Filename, Data: data, Kind: kind})
    }
}

func (o *Orchestrator) handleConvertRef(kind document.Kind) http.HandlerFunc {
    return func(w http.ResponseWriter, r *http.Request) {
        if r.Method != http.MethodPost { w.WriteHeader(http.StatusMethodNotAllowed); return }
        if o.deps.Fetcher == nil { writeError(w, http.StatusNotImplemented, "Remote sources are not configured"); return }
        defer r.Body.Close()
        var req convertRefReq
        if err := json.NewDecoder(r.Body).Decode(&req); err != nil || strings.TrimSpace(req.FileURL) == "" {
            writeError(w, http.StatusBadRequest, "Request body must be JSON with a file_url"); return
        }
        obj, err := o.deps.Fetcher.Fetch(r.Context(), strings.TrimSpace(req.FileURL))
        if err != nil {
            log.Warn().Err(err).Str("file_url", req.FileURL).Msg("fetch failed")
            writeJobError(w, err); return
        }
        o.respond(w, r, document.RenderRequest{Filename: obj.Name, Data: obj.Data, Kind: kind})
    }
}

func (o *Orchestrator) respond(w http.ResponseWriter, r *http.Request, req document.RenderRequest) {
    res, err := o.Process(r.Context(), req)
    if err != nil { writeJobError(w, err); return }
    writeJSON(w, http.StatusOK, toResponse(res))
}

func toResponse(res *document.JobResult) convertResp {
    out := convertResp{
        Status:          string(res.Status),
        JobID:           res.JobID,
        Slides:          make([]slideResp, 0, len(res.Pages)),
        ProcessingStats: res.Stats,
        FailedPages:     make([]failedResp, 0, len(res.Failed)),
    }
    for _, p := range res.Pages {
        out.Slides = append(out.Slides, slideResp{
            Index:      p.Index,
            Data:       imagerender.DataURL(p.Image),
            Success:    true,
            Dimensions: p.Dimensions,
            Meta:       slideMeta{Text: p.Text, Format: "markdown", PageNumber: p.SourcePageNumber},
        })
    }
    for _, f := range res.Failed {
        out.FailedPages = append(out.FailedPages, failedResp{Index: f.Index, PageNumber: f.SourcePageNumber, Error: f.Error, TimedOut: f.TimedOut})
    }
    return out
}

func (o *Orchestrator) handleJob(w http.ResponseWriter, r *http.Request) {
    if r.Method != http.MethodGet { w.WriteHeader(http.StatusMethodNotAllowed); return }
    id := strings.TrimPrefix(r.URL.Path, "/jobs/")
    if id == "" || strings.Contains(id, "/") { http.Error(w, "not found", http.StatusNotFound); return }
    st, ok, err := o.deps.Status.Get(r.Context(), id)
    if err != nil { http.Error(w, "error", http.StatusInternalServerError); return }
    if !ok { http.Error(w, "not found", http.StatusNotFound); return }
    writeJSON(w, http.StatusOK, map[string]any{
        "job_id":     id,
        "status":     st.Status,
        "progress":   st.Progress,
        "message":    st.Message,
        "start_time": st.Start,
        "end_time":   st.End,
        "metadata":   st.Metadata,
    })
}

func (o *Orchestrator) handleStatus(w http.ResponseWriter, r *http.Request) {
    if o.deps.Checker == nil { http.Error(w, "status checks not configured", http.StatusNotFound); return }
    writeJSON(w, http.StatusOK, o.deps.Checker.Summary(r.Context()))
}

// writeJobError maps validation failures to 400 and everything else to 500.
func writeJobError(w http.ResponseWriter, err error) {
    code := http.StatusInternalServerError
    if document.IsType(err, document.ErrorTypeValidation) { code = http.StatusBadRequest }
    writeError(w, code, document.MessageOf(err))
}

func writeError(w http.ResponseWriter, code int, msg string) {
    writeJSON(w, code, errorResp{Status: string(document.StatusError), Message: msg})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
    w.Header().Set("Content-Type", "application/json")
    w.WriteHeader(code)
    _ = json.NewEncoder(w).Encode(v)
}
