package statuscheck

import (
    "context"
    "errors"
    "time"
)

// Pinger models the minimal Redis capability we need for status checks.
type Pinger interface {
    Ping(ctx context.Context) error
}

// BucketChecker confirms the configured S3 bucket is reachable.
type BucketChecker interface {
    CheckBucket(ctx context.Context) error
}

// Binary is an external tool the pipeline shells out to.
type Binary interface {
    Available() error
}

// Slots reports job admission state.
type Slots interface {
    InFlight() int64
    Capacity() int64
}

// Checker aggregates health checks for the converter, rasterizer and optional backends.
type Checker struct {
    office    Binary
    rasterize Binary
    redis     Pinger
    s3        BucketChecker
    slots     Slots
}

// Options configures the Checker. Nil backends are reported as not configured.
type Options struct {
    Office    Binary
    Rasterize Binary
    Redis     Pinger
    S3        BucketChecker
    Slots     Slots
}

// Status represents the readiness of a subsystem.
type Status struct {
    OK      bool   `json:"ok"`
    Message string `json:"message"`
}

// JobSlots is the admission snapshot.
type JobSlots struct {
    InFlight int64 `json:"in_flight"`
    Capacity int64 `json:"capacity"`
}

// Summary bundles all subsystem statuses.
type Summary struct {
    LibreOffice Status    `json:"libreoffice"`
    Pdftoppm    Status    `json:"pdftoppm"`
    MuPDF       Status    `json:"mupdf"`
    Redis       Status    `json:"redis"`
    S3          Status    `json:"s3"`
    Jobs        *JobSlots `json:"jobs,omitempty"`
}

// New creates a new Checker with the provided options.
func New(opts Options) *Checker {
    return &Checker{
        office:    opts.Office,
        rasterize: opts.Rasterize,
        redis:     opts.Redis,
        s3:        opts.S3,
        slots:     opts.Slots,
    }
}

// Summary returns the current status snapshot.
func (c *Checker) Summary(ctx context.Context) Summary {
    s := Summary{
        LibreOffice: checkBinary(c.office, "Running"),
        Pdftoppm:    checkBinary(c.rasterize, "Available"),
        MuPDF:       Status{OK: true, Message: "Embedded"},
        Redis:       c.checkRedis(ctx),
        S3:          c.checkS3(ctx),
    }
    if c.slots != nil {
        s.Jobs = &JobSlots{InFlight: c.slots.InFlight(), Capacity: c.slots.Capacity()}
    }
    return s
}

func checkBinary(b Binary, okMsg string) Status {
    if b == nil {
        return Status{OK: false, Message: "Not configured"}
    }
    if err := b.Available(); err != nil {
        return Status{OK: false, Message: "Binary not found"}
    }
    return Status{OK: true, Message: okMsg}
}

func (c *Checker) checkRedis(ctx context.Context) Status {
    if c.redis == nil {
        return Status{OK: false, Message: "Not configured"}
    }
    ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
    defer cancel()
    if err := c.redis.Ping(ctx); err != nil {
        return Status{OK: false, Message: trimError(err)}
    }
    return Status{OK: true, Message: "Connected"}
}

func (c *Checker) checkS3(ctx context.Context) Status {
    if c.s3 == nil {
        return Status{OK: false, Message: "Bucket not configured"}
    }
    ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
    defer cancel()
    if err := c.s3.CheckBucket(ctx); err != nil {
        return Status{OK: false, Message: trimError(err)}
    }
    return Status{OK: true, Message: "Connected"}
}

func trimError(err error) string {
    if err == nil {
        return ""
    }
    var netErr interface{ Timeout() bool }
    if errors.As(err, &netErr) && netErr.Timeout() {
        return "timeout"
    }
    if errors.Is(err, context.DeadlineExceeded) {
        return "timeout"
    }
    msg := err.Error()
    if len(msg) > 120 {
        return msg[:120]
    }
    return msg
}
