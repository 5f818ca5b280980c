package config

import (
    "os"
    "strconv"
    "strings"
    "time"
)

// LoggingConfig holds logging-related configuration.
type LoggingConfig struct {
    Level        string
    Pretty       bool
    File         string
    MaxSizeMB    int
    MaxBackups   int
    MaxAgeDays   int
    Compress     bool
}

// AxiomConfig holds Axiom logging configuration.
type AxiomConfig struct {
    Send    bool
    APIKey  string
    OrgID   string
    Dataset string
}

// HTTPConfig controls the public listener and upload limits.
type HTTPConfig struct {
    Port            string
    MaxUploadBytes  int64
    ShutdownTimeout time.Duration
}

// LimitsConfig bounds how much work the process takes on at once.
type LimitsConfig struct {
    MaxConcurrentJobs int
    WorkerHardCap     int
    WorkerMemoryBytes uint64
}

// RenderConfig defines rasterization and post-processing parameters.
type RenderConfig struct {
    DPI               int
    RasterizeTimeout  time.Duration
    PageTimeout       time.Duration
    ChunkPause        time.Duration
    DocumentHeight    int
    SlideWidth        int
    SlideHeight       int
}

// ToolsConfig names the external binaries and their limits.
type ToolsConfig struct {
    PdftoppmBin     string
    SofficeBin      string
    ConvertTimeout  time.Duration
    WorkspaceMaxAge time.Duration
}

// StatusConfig configures the optional Redis job status store.
type StatusConfig struct {
    RedisURL string
    TTL      time.Duration
}

// S3Config configures by-reference source fetching.
type S3Config struct {
    Region            string
    Bucket            string
    AccessKeyID       string
    SecretAccessKey   string
    FetchTimeout      time.Duration
    // FetchAllowedHosts may resolve to private or loopback addresses.
    FetchAllowedHosts []string
}

// Config is the top-level configuration.
type Config struct {
    Logging LoggingConfig
    Axiom   AxiomConfig
    HTTP    HTTPConfig
    Limits  LimitsConfig
    Render  RenderConfig
    Tools   ToolsConfig
    Status  StatusConfig
    S3      S3Config
}

// FromEnv loads configuration from environment with sensible defaults.
func FromEnv() Config {
    cfg := Config{}

    cfg.Logging = LoggingConfig{
        Level:      getEnv("LOG_LEVEL", "info"),
        Pretty:     parseBool(getEnv("LOG_PRETTY", devDefaultPretty())),
        File:       getEnv("LOG_FILE", "logs/pagerender.log"),
        MaxSizeMB:  parseInt(getEnv("LOG_MAX_SIZE_MB", "100"), 100),
        MaxBackups: parseInt(getEnv("LOG_MAX_BACKUPS", "10"), 10),
        MaxAgeDays: parseInt(getEnv("LOG_MAX_AGE_DAYS", "30"), 30),
        Compress:   parseBool(getEnv("LOG_COMPRESS", "true")),
    }

    baseDataset := getEnv("AXIOM_DATASET", "dev")
    cfg.Axiom = AxiomConfig{
        Send:    parseBool(getEnv("SEND_LOGS_TO_AXIOM", "0")),
        APIKey:  getEnv("AXIOM_API_KEY", ""),
        OrgID:   getEnv("AXIOM_ORG_ID", ""),
        Dataset: baseDataset + "_pagerender",
    }

    cfg.HTTP = HTTPConfig{
        Port:            getEnv("PORT", "8080"),
        MaxUploadBytes:  int64(parseInt(getEnv("MAX_UPLOAD_MB", "100"), 100)) << 20,
        ShutdownTimeout: parseDuration(getEnv("SHUTDOWN_TIMEOUT", "10s"), 10*time.Second),
    }

    cfg.Limits = LimitsConfig{
        MaxConcurrentJobs: atLeastOne(parseInt(getEnv("MAX_CONCURRENT_JOBS", "4"), 4)),
        WorkerHardCap:     atLeastOne(parseInt(getEnv("WORKER_HARD_CAP", "8"), 8)),
        WorkerMemoryBytes: uint64(atLeastOne(parseInt(getEnv("WORKER_MEMORY_MB", "500"), 500))) << 20,
    }

    cfg.Render = RenderConfig{
        DPI:              parseInt(getEnv("RENDER_DPI", "600"), 600),
        RasterizeTimeout: parseDuration(getEnv("RASTERIZE_TIMEOUT", "30s"), 30*time.Second),
        PageTimeout:      parseDuration(getEnv("PAGE_TIMEOUT", "60s"), 60*time.Second),
        ChunkPause:       parseDuration(getEnv("CHUNK_PAUSE", "100ms"), 100*time.Millisecond),
        DocumentHeight:   parseInt(getEnv("DOC_TARGET_HEIGHT", "720"), 720),
        SlideWidth:       parseInt(getEnv("SLIDE_WIDTH", "2560"), 2560),
        SlideHeight:      parseInt(getEnv("SLIDE_HEIGHT", "1440"), 1440),
    }

    cfg.Tools = ToolsConfig{
        PdftoppmBin:     getEnv("PDFTOPPM_BIN", "pdftoppm"),
        SofficeBin:      getEnv("SOFFICE_BIN", ""),
        ConvertTimeout:  parseDuration(getEnv("CONVERT_TIMEOUT", "120s"), 120*time.Second),
        WorkspaceMaxAge: parseDuration(getEnv("WORKSPACE_MAX_AGE", "1h"), time.Hour),
    }

    cfg.Status = StatusConfig{
        RedisURL: getEnv("REDIS_URL", ""),
        TTL:      parseDuration(getEnv("STATUS_TTL", "24h"), 24*time.Hour),
    }

    cfg.S3 = S3Config{
        Region:            getEnv("AWS_REGION", "us-east-1"),
        Bucket:            getEnv("AWS_S3_BUCKET", ""),
        AccessKeyID:       getEnv("AWS_ACCESS_KEY_ID", ""),
        SecretAccessKey:   getEnv("AWS_SECRET_ACCESS_KEY", ""),
        FetchTimeout:      parseDuration(getEnv("FETCH_TIMEOUT", "60s"), 60*time.Second),
        FetchAllowedHosts: parseList(getEnv("FETCH_ALLOWED_HOSTS", "")),
    }

    return cfg
}

// Helpers
func getEnv(key, def string) string {
    if v := os.Getenv(key); v != "" {
        return v
    }
    return def
}

func parseInt(s string, def int) int {
    if s == "" { return def }
    if n, err := strconv.Atoi(strings.TrimSpace(s)); err == nil { return n }
    return def
}

func parseBool(s string) bool {
    v := strings.ToLower(strings.TrimSpace(s))
    return v == "1" || v == "true" || v == "yes" || v == "on"
}

func parseDuration(s string, def time.Duration) time.Duration {
    if s == "" { return def }
    if d, err := time.ParseDuration(s); err == nil && d > 0 { return d }
    return def
}

func parseList(s string) []string {
    var out []string
    for _, part := range strings.Split(s, ",") {
        if part = strings.TrimSpace(part); part != "" {
            out = append(out, part)
        }
    }
    return out
}

func atLeastOne(n int) int {
    if n < 1 { return 1 }
    return n
}

func devDefaultPretty() string {
    env := strings.ToLower(os.Getenv("ENVIRONMENT"))
    if env == "dev" || env == "development" || env == "local" { return "true" }
    return "false"
}
