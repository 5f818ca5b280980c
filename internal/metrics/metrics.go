package metrics

import (
    "net/http"
    "time"

    "github.com/prometheus/client_golang/prometheus"
    "github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "pagerender"

var (
    jobsTotal = prometheus.NewCounterVec(
        prometheus.CounterOpts{
            Namespace: namespace,
            Name:      "jobs_total",
            Help:      "Render jobs by document kind and result",
        },
        []string{"kind", "result"},
    )

    jobDuration = prometheus.NewHistogramVec(
        prometheus.HistogramOpts{
            Namespace: namespace,
            Name:      "job_duration_seconds",
            Help:      "Wall time of render jobs by document kind",
            Buckets:   []float64{1, 2, 5, 10, 20, 40, 80, 160, 320},
        },
        []string{"kind"},
    )

    pagesTotal = prometheus.NewCounterVec(
        prometheus.CounterOpts{
            Namespace: namespace,
            Name:      "pages_total",
            Help:      "Rendered pages by document kind and result (success, failed, timeout)",
        },
        []string{"kind", "result"},
    )

    pageDuration = prometheus.NewHistogramVec(
        prometheus.HistogramOpts{
            Namespace: namespace,
            Name:      "page_duration_seconds",
            Help:      "Per-page render duration by document kind",
            Buckets:   prometheus.DefBuckets,
        },
        []string{"kind"},
    )

    conversionDuration = prometheus.NewHistogramVec(
        prometheus.HistogramOpts{
            Namespace: namespace,
            Name:      "conversion_duration_seconds",
            Help:      "Office to PDF conversion duration by result",
            Buckets:   []float64{0.5, 1, 2, 5, 10, 30, 60, 120},
        },
        []string{"result"},
    )

    jobsInflight = prometheus.NewGauge(
        prometheus.GaugeOpts{
            Namespace: namespace,
            Name:      "jobs_inflight",
            Help:      "Jobs currently holding a global slot",
        },
    )

    workers = prometheus.NewGauge(
        prometheus.GaugeOpts{
            Namespace: namespace,
            Name:      "workers",
            Help:      "Worker pool size chosen for the most recent job",
        },
    )
)

// Init registers collectors.
func Init() {
    prometheus.MustRegister(jobsTotal, jobDuration, pagesTotal, pageDuration, conversionDuration, jobsInflight, workers)
}

// Handler returns the http.Handler for /metrics
func Handler() http.Handler { return promhttp.Handler() }

func ObserveJob(kind, result string, dur time.Duration) {
    jobsTotal.WithLabelValues(kind, result).Inc()
    jobDuration.WithLabelValues(kind).Observe(dur.Seconds())
}

func ObservePage(kind string, success, timedOut bool, dur time.Duration) {
    result := "success"
    switch {
    case timedOut:
        result = "timeout"
    case !success:
        result = "failed"
    }
    pagesTotal.WithLabelValues(kind, result).Inc()
    pageDuration.WithLabelValues(kind).Observe(dur.Seconds())
}

func ObserveConversion(ok bool, dur time.Duration) {
    conversionDuration.WithLabelValues(boolToResult(ok)).Observe(dur.Seconds())
}

func SetInflight(n int64) { jobsInflight.Set(float64(n)) }
func SetWorkers(n int)    { workers.Set(float64(n)) }

func boolToResult(b bool) string { if b { return "success" }; return "failed" }
