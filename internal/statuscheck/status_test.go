package statuscheck

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeBinary struct{ err error }

func (f fakeBinary) Available() error { return f.err }

type fakePinger struct{ err error }

func (f fakePinger) Ping(context.Context) error { return f.err }

type fakeBucket struct{ err error }

func (f fakeBucket) CheckBucket(context.Context) error { return f.err }

type fakeSlots struct{}

func (fakeSlots) InFlight() int64 { return 1 }
func (fakeSlots) Capacity() int64 { return 4 }

func TestSummaryAllHealthy(t *testing.T) {
	c := New(Options{
		Office:    fakeBinary{},
		Rasterize: fakeBinary{},
		Redis:     fakePinger{},
		S3:        fakeBucket{},
		Slots:     fakeSlots{},
	})

	s := c.Summary(context.Background())

	assert.True(t, s.LibreOffice.OK)
	assert.True(t, s.Pdftoppm.OK)
	assert.True(t, s.MuPDF.OK)
	assert.True(t, s.Redis.OK)
	assert.True(t, s.S3.OK)
	require.NotNil(t, s.Jobs)
	assert.Equal(t, JobSlots{InFlight: 1, Capacity: 4}, *s.Jobs)
}

func TestSummaryReportsFailures(t *testing.T) {
	c := New(Options{
		Office:    fakeBinary{err: errors.New("missing")},
		Rasterize: fakeBinary{err: errors.New("missing")},
		Redis:     fakePinger{err: errors.New("connection refused")},
		S3:        fakeBucket{err: context.DeadlineExceeded},
	})

	s := c.Summary(context.Background())

	assert.Equal(t, Status{OK: false, Message: "Binary not found"}, s.LibreOffice)
	assert.Equal(t, Status{OK: false, Message: "Binary not found"}, s.Pdftoppm)
	assert.Equal(t, Status{OK: false, Message: "connection refused"}, s.Redis)
	assert.Equal(t, Status{OK: false, Message: "timeout"}, s.S3)
	assert.Nil(t, s.Jobs)
}

func TestSummaryUnconfiguredBackends(t *testing.T) {
	s := New(Options{}).Summary(context.Background())

	assert.Equal(t, "Not configured", s.LibreOffice.Message)
	assert.Equal(t, "Not configured", s.Redis.Message)
	assert.Equal(t, "Bucket not configured", s.S3.Message)
}
