package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/crucial707/dbkeeper/internal/models"
	"github.com/crucial707/dbkeeper/internal/repo"
)

// JobScheduler is the slice of the scheduler the admin surface needs. An
// edit must unschedule-then-reschedule; a delete must unschedule before the
// row disappears.
type JobScheduler interface {
	Schedule(job models.Job) time.Time
	Unschedule(id string) bool
	Trigger(id string)
}

// JobHandler handles backup job CRUD and keeps the scheduler in sync with
// every mutation.
type JobHandler struct {
	Repo  *repo.JobRepo
	Sched JobScheduler
}

type jobInput struct {
	Title    string `json:"title"`
	Cadence  string `json:"cadence"`
	Hour     int    `json:"hour"`
	Minute   int    `json:"minute"`
	Weekday  int    `json:"weekday"`
	MonthDay int    `json:"month_day"`
	Storage  string `json:"storage"`
	Format   string `json:"format"`
	Email    string `json:"email"`
}

func (in jobInput) toJob(id string) models.Job {
	return models.Job{
		ID:       id,
		Title:    strings.TrimSpace(in.Title),
		Cadence:  in.Cadence,
		Hour:     in.Hour,
		Minute:   in.Minute,
		Weekday:  in.Weekday,
		MonthDay: in.MonthDay,
		Storage:  in.Storage,
		Format:   in.Format,
		Email:    strings.TrimSpace(in.Email),
	}
}

type jobResponse struct {
	models.Job
	NextRun time.Time `json:"next_run"`
}

// ListJobs returns paginated jobs (query: limit, offset) as {"items": [...], "total": n}.
func (h *JobHandler) ListJobs(w http.ResponseWriter, r *http.Request) {
	limit := 50
	offset := 0
	if l := r.URL.Query().Get("limit"); l != "" {
		if n, err := strconv.Atoi(l); err == nil && n > 0 && n <= 100 {
			limit = n
		}
	}
	if o := r.URL.Query().Get("offset"); o != "" {
		if n, err := strconv.Atoi(o); err == nil && n >= 0 {
			offset = n
		}
	}

	list, err := h.Repo.List(r.Context(), limit, offset)
	if err != nil {
		JSONError(w, ErrMessageInternal, http.StatusInternalServerError)
		return
	}
	total, err := h.Repo.Count(r.Context())
	if err != nil {
		JSONError(w, ErrMessageInternal, http.StatusInternalServerError)
		return
	}

	if list == nil {
		list = []models.Job{}
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"items": list,
		"total": total,
	})
}

// GetJob returns one job by id.
func (h *JobHandler) GetJob(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	j, err := h.Repo.GetByID(r.Context(), id)
	if err != nil {
		JSONError(w, ErrMessageInternal, http.StatusInternalServerError)
		return
	}
	if j == nil {
		JSONError(w, "job not found", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(j)
}

// CreateJob validates and stores a new job, then arms its timer. The id is
// generated here; "--" can never appear in it, keeping archive filenames
// parseable.
func (h *JobHandler) CreateJob(w http.ResponseWriter, r *http.Request) {
	var input jobInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		JSONError(w, "invalid JSON", http.StatusBadRequest)
		return
	}

	job := input.toJob("job_" + uuid.NewString())
	if fields := job.Validate(); len(fields) > 0 {
		JSONValidationError(w, "validation failed", fields, http.StatusBadRequest)
		return
	}

	created, err := h.Repo.Create(r.Context(), job)
	if err != nil {
		slog.Error("create job", "err", err)
		JSONError(w, ErrMessageInternal, http.StatusInternalServerError)
		return
	}

	next := h.Sched.Schedule(*created)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(jobResponse{Job: *created, NextRun: next})
}

// UpdateJob rewrites a job in place (same id) and re-arms its timer with
// the new parameters.
func (h *JobHandler) UpdateJob(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var input jobInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		JSONError(w, "invalid JSON", http.StatusBadRequest)
		return
	}

	job := input.toJob(id)
	if fields := job.Validate(); len(fields) > 0 {
		JSONValidationError(w, "validation failed", fields, http.StatusBadRequest)
		return
	}

	ok, err := h.Repo.Update(r.Context(), job)
	if err != nil {
		// Store write failed; the existing timer stays armed with the old
		// parameters rather than leaving the job unarmed.
		slog.Error("update job", "job_id", id, "err", err)
		JSONError(w, ErrMessageInternal, http.StatusInternalServerError)
		return
	}
	if !ok {
		JSONError(w, "job not found", http.StatusNotFound)
		return
	}

	updated, err := h.Repo.GetByID(r.Context(), id)
	if err != nil || updated == nil {
		JSONError(w, ErrMessageInternal, http.StatusInternalServerError)
		return
	}

	h.Sched.Unschedule(id)
	next := h.Sched.Schedule(*updated)

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(jobResponse{Job: *updated, NextRun: next})
}

// DeleteJob unschedules the job first, then removes it from the store, so
// no firing can arrive for a job that is about to disappear.
func (h *JobHandler) DeleteJob(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	h.Sched.Unschedule(id)

	ok, err := h.Repo.Delete(r.Context(), id)
	if err != nil {
		slog.Error("delete job", "job_id", id, "err", err)
		JSONError(w, ErrMessageInternal, http.StatusInternalServerError)
		return
	}
	if !ok {
		JSONError(w, "job not found", http.StatusNotFound)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// RunJob fires a job immediately, through the same dedup path as a timer
// firing: a run already in flight within the lock TTL absorbs this one.
func (h *JobHandler) RunJob(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	j, err := h.Repo.GetByID(r.Context(), id)
	if err != nil {
		JSONError(w, ErrMessageInternal, http.StatusInternalServerError)
		return
	}
	if j == nil {
		JSONError(w, "job not found", http.StatusNotFound)
		return
	}

	h.Sched.Trigger(id)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	json.NewEncoder(w).Encode(map[string]string{"job_id": id, "status": "started"})
}
