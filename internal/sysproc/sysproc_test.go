//go:build unix

package sysproc

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCommandKillsProcessGroupOnTimeout(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	// The shell forks a grandchild that keeps stdout open; only a group kill ends both.
	cmd := Command(ctx, "/bin/sh", "-c", "sleep 30 & sleep 30")
	start := time.Now()
	_, err := cmd.CombinedOutput()

	require.Error(t, err)
	assert.ErrorIs(t, ctx.Err(), context.DeadlineExceeded)
	assert.Less(t, time.Since(start), 10*time.Second)
}

func TestCommandRunsToCompletion(t *testing.T) {
	out, err := Command(context.Background(), "/bin/sh", "-c", "printf ok").Output()
	require.NoError(t, err)
	assert.Equal(t, "ok", string(out))
}
