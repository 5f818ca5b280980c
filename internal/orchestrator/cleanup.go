package orchestrator

import (
    "context"
    "os"
    "path/filepath"
    "strings"
    "time"

    "github.com/rs/zerolog/log"
)

// SweepWorkspaces removes job workspaces under root (os.TempDir when empty)
// untouched for maxAge. Live jobs refresh their workspace after every chunk
// and remove it themselves, so anything this finds was left by a process that
// died mid-job.
func SweepWorkspaces(root string, maxAge time.Duration) int {
    if root == "" { root = os.TempDir() }
    entries, err := os.ReadDir(root)
    if err != nil {
        log.Warn().Err(err).Str("root", root).Msg("workspace sweep failed")
        return 0
    }
    now := time.Now()
    removed := 0
    for _, e := range entries {
        if !e.IsDir() || !strings.HasPrefix(e.Name(), WorkspacePrefix) { continue }
        info, err := e.Info()
        if err != nil || now.Sub(info.ModTime()) < maxAge { continue }
        path := filepath.Join(root, e.Name())
        if err := os.RemoveAll(path); err != nil {
            log.Warn().Err(err).Str("workspace", path).Msg("stale workspace not removed")
            continue
        }
        removed++
    }
    if removed > 0 {
        log.Info().Int("removed", removed).Str("root", root).Msg("stale workspaces removed")
    }
    return removed
}

// RunSweeper sweeps once immediately and then every interval until ctx ends.
func RunSweeper(ctx context.Context, root string, maxAge, interval time.Duration) {
    if interval <= 0 { interval = maxAge }
    SweepWorkspaces(root, maxAge)
    t := time.NewTicker(interval)
    defer t.Stop()
    for {
        select {
        case <-ctx.Done():
            return
        case <-t.C:
            SweepWorkspaces(root, maxAge)
        }
    }
}

// touchWorkspace marks a live workspace as recently used.
func touchWorkspace(dir string) {
    now := time.Now()
    if err := os.Chtimes(dir, now, now); err != nil {
        log.Debug().Err(err).Str("workspace", dir).Msg("workspace touch failed")
    }
}
