package logger

import (
    "context"
    "encoding/json"
    "fmt"
    "io"
    "os"
    "path/filepath"
    "sync"
    "time"

    "github.com/axiomhq/axiom-go/axiom"
    "github.com/axiomhq/axiom-go/axiom/ingest"
    "github.com/rs/zerolog"
    "github.com/rs/zerolog/log"
    lumberjack "gopkg.in/natefinch/lumberjack.v2"
)

const defaultService = "pagerender"

// Options selects the sinks of the process logger. Stdout is always written.
type Options struct {
    Service string
    Level   string
    Pretty  bool

    // File enables a rotated log file at this path.
    File     string
    Rotation Rotation

    // Axiom forwards info and above when set.
    Axiom *AxiomOptions
}

// Rotation limits for the log file.
type Rotation struct {
    MaxSizeMB  int
    MaxBackups int
    MaxAgeDays int
    Compress   bool
}

type AxiomOptions struct {
    Token   string
    OrgID   string
    Dataset string
}

var shipper *axiomShipper

// Init points log.Logger at the configured sinks. A failing Axiom client only
// disables remote shipping.
func Init(opts Options) error {
    if opts.Service == "" {
        opts.Service = defaultService
    }
    sinks := []io.Writer{console(opts.Pretty)}

    if opts.File != "" {
        w, err := rotatedFile(opts.File, opts.Rotation)
        if err != nil {
            return err
        }
        sinks = append(sinks, w)
    }

    if ax := opts.Axiom; ax != nil && ax.Token != "" {
        s, err := newAxiomShipper(ax.Token, ax.OrgID, ax.Dataset)
        switch {
        case err != nil:
            fmt.Fprintf(os.Stderr, "axiom shipping off: %v\n", err)
        default:
            shipper = s
            sinks = append(sinks, &axiomWriter{shipper: s, service: opts.Service})
        }
    }

    lvl, err := zerolog.ParseLevel(opts.Level)
    if err != nil || lvl == zerolog.NoLevel {
        lvl = zerolog.InfoLevel
    }
    zerolog.TimeFieldFormat = time.RFC3339
    zerolog.DurationFieldUnit = time.Millisecond
    log.Logger = zerolog.New(zerolog.MultiLevelWriter(sinks...)).
        Level(lvl).
        With().Timestamp().Str("service", opts.Service).
        Logger()
    return nil
}

func console(pretty bool) io.Writer {
    if !pretty {
        return os.Stdout
    }
    return zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.Kitchen}
}

func rotatedFile(path string, r Rotation) (io.Writer, error) {
    if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
        return nil, fmt.Errorf("log dir for %s: %w", path, err)
    }
    return &lumberjack.Logger{
        Filename:   path,
        MaxSize:    r.MaxSizeMB,
        MaxBackups: r.MaxBackups,
        MaxAge:     r.MaxAgeDays,
        Compress:   r.Compress,
    }, nil
}

// Close drains the Axiom buffer, if shipping is on.
func Close() {
    if shipper == nil {
        return
    }
    if err := shipper.Close(); err != nil {
        fmt.Fprintln(os.Stderr, err)
    }
    shipper = nil
}

// ForJob returns a child of the global logger tagged with the job identity.
func ForJob(jobID, kind string) zerolog.Logger {
    return log.Logger.With().Str("job_id", jobID).Str("kind", kind).Logger()
}

// axiomWriter turns zerolog JSON lines into Axiom events.
type axiomWriter struct {
    shipper *axiomShipper
    service string
}

func (w *axiomWriter) Write(p []byte) (int, error) {
    ev := axiom.Event{}
    if json.Unmarshal(p, &ev) != nil {
        ev = axiom.Event{zerolog.MessageFieldName: string(p), zerolog.LevelFieldName: zerolog.InfoLevel.String()}
    }
    if lvl, _ := ev[zerolog.LevelFieldName].(string); lvl == zerolog.DebugLevel.String() || lvl == zerolog.TraceLevel.String() {
        return len(p), nil
    }
    if ev["service"] == nil {
        ev["service"] = w.service
    }
    if ev[ingest.TimestampField] == nil {
        ev[ingest.TimestampField] = time.Now()
    }
    w.shipper.Send(ev)
    return len(p), nil
}

// axiomShipper feeds the Axiom client's channel ingestion, which batches up to
// the channel capacity and flushes once a second.
type axiomShipper struct {
    client  *axiom.Client
    dataset string
    events  chan axiom.Event
    mu      sync.RWMutex
    closed  bool
    drained chan struct{}
}

const (
    axiomBuffer       = 1000
    axiomDrainTimeout = 15 * time.Second
)

func newAxiomShipper(token, orgID, dataset string) (*axiomShipper, error) {
    if dataset == "" {
        dataset = "dev_" + defaultService
    }
    clientOpts := []axiom.Option{axiom.SetToken(token)}
    if orgID != "" {
        clientOpts = append(clientOpts, axiom.SetOrganizationID(orgID))
    }
    c, err := axiom.NewClient(clientOpts...)
    if err != nil {
        return nil, fmt.Errorf("axiom client: %w", err)
    }
    s := &axiomShipper{
        client:  c,
        dataset: dataset,
        events:  make(chan axiom.Event, axiomBuffer),
        drained: make(chan struct{}),
    }
    go s.ingest()
    return s, nil
}

// Send never blocks; events are dropped when the buffer is full or the shipper is closed.
func (s *axiomShipper) Send(ev axiom.Event) {
    s.mu.RLock()
    defer s.mu.RUnlock()
    if s.closed { return }
    select {
    case s.events <- ev:
    default:
    }
}

// ingest restarts channel ingestion after a failed batch and returns once the
// channel is closed and drained.
func (s *axiomShipper) ingest() {
    defer close(s.drained)
    for {
        _, err := s.client.IngestChannel(context.Background(), s.dataset, s.events)
        if err == nil { return }
        fmt.Fprintf(os.Stderr, "axiom ingest failed: %v\n", err)
        time.Sleep(time.Second)
    }
}

func (s *axiomShipper) Close() error {
    s.mu.Lock()
    if !s.closed {
        s.closed = true
        close(s.events)
    }
    s.mu.Unlock()
    select {
    case <-s.drained:
        return nil
    case <-time.After(axiomDrainTimeout):
        return fmt.Errorf("axiom: pending events not flushed within %v", axiomDrainTimeout)
    }
}
