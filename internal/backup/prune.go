package backup

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/crucial707/dbkeeper/internal/metrics"
	"github.com/crucial707/dbkeeper/internal/models"
)

// Pruner enforces the per-job retention limit: 30 archives for daily jobs,
// 12 for weekly and monthly. Scoped to the job-id + cadence pair, so jobs
// never prune each other's files.
type Pruner struct {
	Dir string
	Log *slog.Logger
}

// Prune deletes the oldest archives for job beyond its retention limit.
// The glob deliberately matches ".sql*": uncompressed leftovers from a
// failed archive step count against the quota too, same as the compressed
// files they stand in for. Individual delete failures are logged and
// skipped; an over-quota file is picked up again on the next run.
func (p *Pruner) Prune(job models.Job) error {
	pattern := filepath.Join(p.Dir, fmt.Sprintf("backup--%s--%s--*.sql*", job.ID, job.Cadence))
	files, err := filepath.Glob(pattern)
	if err != nil {
		return fmt.Errorf("glob archives: %w", err)
	}

	limit := job.RetentionLimit()
	if len(files) <= limit {
		return nil
	}

	type entry struct {
		path  string
		mtime time.Time
	}
	entries := make([]entry, 0, len(files))
	for _, f := range files {
		info, err := os.Stat(f)
		if err != nil {
			p.Log.Warn("stat archive for pruning", "file", f, "err", err)
			continue
		}
		entries = append(entries, entry{path: f, mtime: info.ModTime()})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].mtime.Before(entries[j].mtime) })

	excess := len(entries) - limit
	for i := 0; i < excess; i++ {
		if err := os.Remove(entries[i].path); err != nil {
			p.Log.Warn("delete old archive", "file", entries[i].path, "err", err)
			continue
		}
		metrics.ArchivesPruned.Inc()
		p.Log.Info("pruned old archive", "job_id", job.ID, "file", filepath.Base(entries[i].path))
	}
	return nil
}
