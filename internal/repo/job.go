package repo

import (
	"context"
	"database/sql"

	"github.com/crucial707/dbkeeper/internal/models"
)

const jobColumns = "id, title, cadence, hour, minute, weekday, month_day, storage, format, email, created_at, updated_at"

// JobRepo persists backup job definitions.
type JobRepo struct {
	DB *sql.DB
}

// NewJobRepo returns a new JobRepo.
func NewJobRepo(db *sql.DB) *JobRepo {
	return &JobRepo{DB: db}
}

// Count returns the total number of jobs.
func (r *JobRepo) Count(ctx context.Context) (int, error) {
	var n int
	err := r.DB.QueryRowContext(ctx, "SELECT COUNT(*) FROM backup_jobs").Scan(&n)
	return n, err
}

// List returns jobs, most recently created first. limit/offset for pagination.
func (r *JobRepo) List(ctx context.Context, limit, offset int) ([]models.Job, error) {
	query := `
		SELECT ` + jobColumns + `
		FROM backup_jobs
		ORDER BY created_at DESC
		LIMIT $1 OFFSET $2
	`
	rows, err := r.DB.QueryContext(ctx, query, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanJobs(rows)
}

// ListAll returns every job, oldest first. Used by the scheduler to rebuild
// timers on startup and by the maintenance sweeps.
func (r *JobRepo) ListAll(ctx context.Context) ([]models.Job, error) {
	query := `
		SELECT ` + jobColumns + `
		FROM backup_jobs
		ORDER BY created_at
	`
	rows, err := r.DB.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanJobs(rows)
}

// GetByID returns one job by id, or nil when it does not exist.
func (r *JobRepo) GetByID(ctx context.Context, id string) (*models.Job, error) {
	query := `
		SELECT ` + jobColumns + `
		FROM backup_jobs
		WHERE id = $1
	`
	j := &models.Job{}
	err := r.DB.QueryRowContext(ctx, query, id).Scan(
		&j.ID, &j.Title, &j.Cadence, &j.Hour, &j.Minute, &j.Weekday,
		&j.MonthDay, &j.Storage, &j.Format, &j.Email, &j.CreatedAt, &j.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return j, nil
}

// Create inserts a new job and returns it with timestamps set.
func (r *JobRepo) Create(ctx context.Context, job models.Job) (*models.Job, error) {
	query := `
		INSERT INTO backup_jobs (id, title, cadence, hour, minute, weekday, month_day, storage, format, email)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING ` + jobColumns + `
	`
	j := &models.Job{}
	err := r.DB.QueryRowContext(ctx, query,
		job.ID, job.Title, job.Cadence, job.Hour, job.Minute, job.Weekday,
		job.MonthDay, job.Storage, job.Format, job.Email,
	).Scan(
		&j.ID, &j.Title, &j.Cadence, &j.Hour, &j.Minute, &j.Weekday,
		&j.MonthDay, &j.Storage, &j.Format, &j.Email, &j.CreatedAt, &j.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return j, nil
}

// Update rewrites every mutable field for the given id (last writer wins).
// Returns false when no row matched.
func (r *JobRepo) Update(ctx context.Context, job models.Job) (bool, error) {
	res, err := r.DB.ExecContext(ctx, `
		UPDATE backup_jobs
		SET title = $1, cadence = $2, hour = $3, minute = $4, weekday = $5,
		    month_day = $6, storage = $7, format = $8, email = $9, updated_at = now()
		WHERE id = $10`,
		job.Title, job.Cadence, job.Hour, job.Minute, job.Weekday,
		job.MonthDay, job.Storage, job.Format, job.Email, job.ID,
	)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// Delete removes a job by id. Returns false when no row matched.
func (r *JobRepo) Delete(ctx context.Context, id string) (bool, error) {
	res, err := r.DB.ExecContext(ctx, `DELETE FROM backup_jobs WHERE id = $1`, id)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func scanJobs(rows *sql.Rows) ([]models.Job, error) {
	var list []models.Job
	for rows.Next() {
		var j models.Job
		if err := rows.Scan(
			&j.ID, &j.Title, &j.Cadence, &j.Hour, &j.Minute, &j.Weekday,
			&j.MonthDay, &j.Storage, &j.Format, &j.Email, &j.CreatedAt, &j.UpdatedAt,
		); err != nil {
			return nil, err
		}
		list = append(list, j)
	}
	return list, rows.Err()
}
