package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestObservePageResults(t *testing.T) {
	before := map[string]float64{
		"success": testutil.ToFloat64(pagesTotal.WithLabelValues("pdf", "success")),
		"failed":  testutil.ToFloat64(pagesTotal.WithLabelValues("pdf", "failed")),
		"timeout": testutil.ToFloat64(pagesTotal.WithLabelValues("pdf", "timeout")),
	}

	ObservePage("pdf", true, false, time.Second)
	ObservePage("pdf", false, false, time.Second)
	ObservePage("pdf", false, true, time.Minute)

	for result, n := range before {
		assert.Equal(t, n+1, testutil.ToFloat64(pagesTotal.WithLabelValues("pdf", result)), result)
	}
}

func TestObserveJobAndGauges(t *testing.T) {
	before := testutil.ToFloat64(jobsTotal.WithLabelValues("pptx", "error"))
	ObserveJob("pptx", "error", 3*time.Second)
	assert.Equal(t, before+1, testutil.ToFloat64(jobsTotal.WithLabelValues("pptx", "error")))

	SetInflight(3)
	SetWorkers(5)
	assert.Equal(t, 3.0, testutil.ToFloat64(jobsInflight))
	assert.Equal(t, 5.0, testutil.ToFloat64(workers))
}
