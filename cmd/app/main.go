package main

import (
    "context"
    "fmt"
    "net/http"
    "os/signal"
    "syscall"

    "github.com/joho/godotenv"
    "github.com/rs/zerolog/log"

    "github.com/local/pagerender/internal/adapter"
    cfgpkg "github.com/local/pagerender/internal/config"
    "github.com/local/pagerender/internal/converter"
    "github.com/local/pagerender/internal/fetch"
    "github.com/local/pagerender/internal/filetype"
    "github.com/local/pagerender/internal/imagerender"
    "github.com/local/pagerender/internal/limiter"
    logpkg "github.com/local/pagerender/internal/logger"
    "github.com/local/pagerender/internal/metrics"
    "github.com/local/pagerender/internal/mupdf"
    "github.com/local/pagerender/internal/orchestrator"
    "github.com/local/pagerender/internal/planner"
    "github.com/local/pagerender/internal/statuscheck"
    "github.com/local/pagerender/internal/storage"
    "github.com/local/pagerender/internal/store"
)

func main() {
    _ = godotenv.Load()
    cfg := cfgpkg.FromEnv()

    // Init logging
    logOpts := logpkg.Options{
        Service: "pagerender",
        Level:   cfg.Logging.Level,
        Pretty:  cfg.Logging.Pretty,
        File:    cfg.Logging.File,
        Rotation: logpkg.Rotation{
            MaxSizeMB:  cfg.Logging.MaxSizeMB,
            MaxBackups: cfg.Logging.MaxBackups,
            MaxAgeDays: cfg.Logging.MaxAgeDays,
            Compress:   cfg.Logging.Compress,
        },
    }
    if cfg.Axiom.Send {
        logOpts.Axiom = &logpkg.AxiomOptions{Token: cfg.Axiom.APIKey, OrgID: cfg.Axiom.OrgID, Dataset: cfg.Axiom.Dataset}
    }
    if err := logpkg.Init(logOpts); err != nil {
        log.Warn().Err(err).Msg("logger init incomplete")
    }
    defer logpkg.Close()
    metrics.Init()

    ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
    defer stop()

    // Converters
    office := converter.NewLibreOffice(cfg.Tools.SofficeBin, cfg.Tools.ConvertTimeout, cfg.Limits.MaxConcurrentJobs)
    if err := office.Available(); err != nil {
        log.Warn().Err(err).Msg("LibreOffice not found; pptx and docx jobs will fail")
    }
    raster := imagerender.NewPdftoppm(cfg.Tools.PdftoppmBin, cfg.Render.DPI, cfg.Render.RasterizeTimeout)
    if err := raster.Available(); err != nil {
        log.Warn().Err(err).Msg("pdftoppm not found; every page will fail")
    }
    fitz := mupdf.NewGoFitzExtractor()
    adapters := adapter.All(adapter.Deps{
        Office:         office,
        Pages:          adapter.NewPDFCounter(fitz),
        Text:           fitz,
        ConvertTimeout: cfg.Tools.ConvertTimeout,
    })
    renderer := imagerender.NewRenderer(raster, imagerender.Output{
        DocumentHeight: cfg.Render.DocumentHeight,
        SlideWidth:     cfg.Render.SlideWidth,
        SlideHeight:    cfg.Render.SlideHeight,
    })
    jobs := limiter.New(cfg.Limits.MaxConcurrentJobs)

    deps := orchestrator.Dependencies{
        Validator: filetype.New(),
        Adapters:  adapters,
        Pages:     renderer,
        Planner:   planner.New(planner.Options{WorkerMemory: cfg.Limits.WorkerMemoryBytes, HardCap: cfg.Limits.WorkerHardCap}),
        Limiter:   jobs,
        Options: orchestrator.Options{
            PageTimeout:    cfg.Render.PageTimeout,
            ChunkPause:     cfg.Render.ChunkPause,
            MaxUploadBytes: cfg.HTTP.MaxUploadBytes,
        },
    }
    checks := statuscheck.Options{Office: office, Rasterize: raster, Slots: jobs}

    // Status store (optional)
    if cfg.Status.RedisURL != "" {
        rs, err := store.NewRedisStatus(ctx, cfg.Status.RedisURL, cfg.Status.TTL)
        if err != nil {
            log.Warn().Err(err).Msg("redis status store unavailable; job status disabled")
        } else {
            defer rs.Close()
            deps.Status = rs
            checks.Redis = rs
        }
    }

    // Remote sources: http(s) always, s3 when a bucket is configured
    var objects fetch.ObjectStore
    if cfg.S3.Bucket != "" {
        s3c, err := storage.NewS3Client(ctx, storage.Options{
            Region:          cfg.S3.Region,
            Bucket:          cfg.S3.Bucket,
            AccessKeyID:     cfg.S3.AccessKeyID,
            SecretAccessKey: cfg.S3.SecretAccessKey,
        })
        if err != nil {
            log.Warn().Err(err).Msg("s3 client unavailable; s3:// sources disabled")
        } else {
            objects = s3c
            checks.S3 = s3c
        }
    }
    deps.Fetcher = fetch.New(objects, cfg.S3.FetchTimeout, cfg.HTTP.MaxUploadBytes).AllowHosts(cfg.S3.FetchAllowedHosts...)
    deps.Checker = statuscheck.New(checks)

    orch := orchestrator.New(deps)
    mux := http.NewServeMux()
    orch.RegisterRoutes(mux)

    go orchestrator.RunSweeper(ctx, "", cfg.Tools.WorkspaceMaxAge, cfg.Tools.WorkspaceMaxAge/4)

    srv := &http.Server{Addr: ":"+cfg.HTTP.Port, Handler: mux}

    go func(){
        log.Info().Int("max_jobs", cfg.Limits.MaxConcurrentJobs).Msgf("HTTP server listening on :%s", cfg.HTTP.Port)
        if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
            log.Fatal().Err(err).Msg("http server error")
        }
    }()

    // Graceful shutdown
    <-ctx.Done()
    shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
    defer cancel()
    if err := srv.Shutdown(shutdownCtx); err != nil {
        log.Warn().Err(err).Msg("shutdown did not finish cleanly")
    }
    fmt.Println("shutdown complete")
}
