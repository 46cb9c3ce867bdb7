package backup

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/crucial707/dbkeeper/internal/metrics"
	"github.com/crucial707/dbkeeper/internal/models"
)

// Dumper yields the database's portable text form. The executor does not
// know the storage engine's wire protocol; it only concatenates what the
// dumper writes.
type Dumper interface {
	ListTables(ctx context.Context) ([]string, error)
	SchemaOf(ctx context.Context, table string) (string, error)
	// DumpTable writes one row-insertion statement per row of table to w.
	DumpTable(ctx context.Context, table string, w io.Writer) error
}

// Archiver compresses a finished dump file.
type Archiver interface {
	Compress(format, src, dst string) error
}

// Mailer delivers a finished archive as an attachment.
type Mailer interface {
	Send(to, subject, body, attachmentPath string) error
}

// Executor orchestrates one backup run: dump, archive, deliver or prune.
// Collaborator failures past the dump are downgraded to logged warnings;
// the backup artifact must not be lost because compression or mail failed.
type Executor struct {
	Dump    Dumper
	Archive Archiver
	Mail    Mailer // nil when SMTP is not configured
	Pruner  *Pruner
	Dir     string
	Now     func() time.Time
	Log     *slog.Logger
}

// Run performs one backup for job. It writes exactly one artifact on
// success; the timestamped name never overwrites a prior archive.
func (e *Executor) Run(ctx context.Context, job models.Job) error {
	start := time.Now()
	outcome := "ok"
	defer func() {
		metrics.RecordBackupRun(outcome, time.Since(start).Seconds())
	}()

	if err := os.MkdirAll(e.Dir, 0o755); err != nil {
		outcome = "error"
		return fmt.Errorf("create backup dir: %w", err)
	}

	ts := e.Now()
	base := Basename(job.ID, job.Cadence, ts)
	sqlPath := filepath.Join(e.Dir, base)

	if err := e.writeDump(ctx, sqlPath); err != nil {
		outcome = "error"
		// Do not leave a truncated dump behind.
		_ = os.Remove(sqlPath)
		return fmt.Errorf("dump: %w", err)
	}

	artifact := sqlPath
	switch job.Format {
	case models.FormatZip, models.FormatTar:
		dst := sqlPath + "." + job.Format
		if err := e.Archive.Compress(job.Format, sqlPath, dst); err != nil {
			// Degrade to the uncompressed file rather than losing the backup.
			outcome = "degraded"
			e.Log.Warn("archive failed, keeping uncompressed dump", "job_id", job.ID, "format", job.Format, "err", err)
			_ = os.Remove(dst)
		} else {
			_ = os.Remove(sqlPath)
			artifact = dst
		}
	}

	if job.Storage == models.StorageEmail {
		subject := "Database Backup - " + ts.Format(timeLayout)
		if e.Mail == nil {
			outcome = "degraded"
			e.Log.Warn("mail not configured, backup kept on server", "job_id", job.ID, "to", job.Email)
		} else if err := e.Mail.Send(job.Email, subject, "Attached is your database backup.", artifact); err != nil {
			outcome = "degraded"
			e.Log.Warn("mail delivery failed", "job_id", job.ID, "to", job.Email, "err", err)
		}
	}

	if job.Storage == models.StorageServer {
		if err := e.Pruner.Prune(job); err != nil {
			outcome = "degraded"
			e.Log.Warn("retention pruning failed", "job_id", job.ID, "err", err)
		}
	}

	e.Log.Info("backup finished", "job_id", job.ID, "artifact", filepath.Base(artifact), "took_ms", time.Since(start).Milliseconds())
	return nil
}

// writeDump streams schema and rows for every table into path.
func (e *Executor) writeDump(ctx context.Context, path string) error {
	tables, err := e.Dump.ListTables(ctx)
	if err != nil {
		return fmt.Errorf("list tables: %w", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	for _, table := range tables {
		ddl, err := e.Dump.SchemaOf(ctx, table)
		if err != nil {
			return fmt.Errorf("schema of %s: %w", table, err)
		}
		if _, err := fmt.Fprintf(f, "\n\n%s;\n\n", ddl); err != nil {
			return err
		}
		if err := e.Dump.DumpTable(ctx, table, f); err != nil {
			return fmt.Errorf("rows of %s: %w", table, err)
		}
	}
	return f.Close()
}
