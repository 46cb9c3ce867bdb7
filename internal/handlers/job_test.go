package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/go-chi/chi/v5"

	"github.com/crucial707/dbkeeper/internal/models"
	"github.com/crucial707/dbkeeper/internal/repo"
)

var jobCols = []string{"id", "title", "cadence", "hour", "minute", "weekday", "month_day", "storage", "format", "email", "created_at", "updated_at"}

func requestWithChiURLParams(method, path string, body []byte, params map[string]string) *http.Request {
	var r *http.Request
	if body != nil {
		r = httptest.NewRequest(method, path, bytes.NewReader(body))
	} else {
		r = httptest.NewRequest(method, path, nil)
	}
	rctx := chi.NewRouteContext()
	for k, v := range params {
		rctx.URLParams.Add(k, v)
	}
	r = r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
	return r
}

// fakeScheduler records calls so tests can assert the handler kept the
// scheduler in sync with each mutation.
type fakeScheduler struct {
	scheduled   []string
	unscheduled []string
	triggered   []string
	next        time.Time
}

func (s *fakeScheduler) Schedule(job models.Job) time.Time {
	s.scheduled = append(s.scheduled, job.ID)
	return s.next
}

func (s *fakeScheduler) Unschedule(id string) bool {
	s.unscheduled = append(s.unscheduled, id)
	return true
}

func (s *fakeScheduler) Trigger(id string) {
	s.triggered = append(s.triggered, id)
}

func TestJobHandler_ListJobs(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	now := time.Now()
	mock.ExpectQuery(`SELECT id, title, cadence`).
		WithArgs(50, 0).
		WillReturnRows(sqlmock.NewRows(jobCols).
			AddRow("job_1", "Nightly", "daily", 2, 0, 0, 0, "server", "zip", "", now, now))
	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM backup_jobs`).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

	h := &JobHandler{Repo: repo.NewJobRepo(db), Sched: &fakeScheduler{}}

	req := httptest.NewRequest("GET", "/jobs", nil)
	rr := httptest.NewRecorder()
	h.ListJobs(rr, req)

	if rr.Code != http.StatusOK {
		t.Errorf("ListJobs status: got %d, want 200", rr.Code)
	}
	var resp struct {
		Items []models.Job `json:"items"`
		Total int          `json:"total"`
	}
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Total != 1 || len(resp.Items) != 1 || resp.Items[0].ID != "job_1" {
		t.Errorf("unexpected list: %+v", resp)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("expectations: %v", err)
	}
}

func TestJobHandler_CreateJob_SchedulesIt(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	now := time.Now()
	mock.ExpectQuery(`INSERT INTO backup_jobs`).
		WillReturnRows(sqlmock.NewRows(jobCols).
			AddRow("job_1", "Nightly", "daily", 2, 0, 0, 0, "server", "zip", "", now, now))

	sched := &fakeScheduler{next: now.Add(24 * time.Hour)}
	h := &JobHandler{Repo: repo.NewJobRepo(db), Sched: sched}

	body, _ := json.Marshal(map[string]interface{}{
		"title": "Nightly", "cadence": "daily", "hour": 2, "minute": 0,
		"storage": "server", "format": "zip",
	})
	req := httptest.NewRequest("POST", "/jobs", bytes.NewReader(body))
	rr := httptest.NewRecorder()
	h.CreateJob(rr, req)

	if rr.Code != http.StatusCreated {
		t.Fatalf("CreateJob status: got %d, want 201, body %s", rr.Code, rr.Body.String())
	}
	if len(sched.scheduled) != 1 {
		t.Errorf("expected 1 Schedule call, got %d", len(sched.scheduled))
	}
	var resp struct {
		ID      string    `json:"id"`
		NextRun time.Time `json:"next_run"`
	}
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.ID != "job_1" || resp.NextRun.IsZero() {
		t.Errorf("unexpected response: %+v", resp)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("expectations: %v", err)
	}
}

func TestJobHandler_CreateJob_Validation(t *testing.T) {
	db, _, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	sched := &fakeScheduler{}
	h := &JobHandler{Repo: repo.NewJobRepo(db), Sched: sched}

	tests := []struct {
		name  string
		body  map[string]interface{}
		field string
	}{
		{"missing title", map[string]interface{}{"cadence": "daily", "storage": "server", "format": "zip"}, "title"},
		{"bad cadence", map[string]interface{}{"title": "x", "cadence": "hourly", "storage": "server", "format": "zip"}, "cadence"},
		{"bad hour", map[string]interface{}{"title": "x", "cadence": "daily", "hour": 24, "storage": "server", "format": "zip"}, "hour"},
		{"bad weekday", map[string]interface{}{"title": "x", "cadence": "weekly", "weekday": 7, "storage": "server", "format": "zip"}, "weekday"},
		{"bad month day", map[string]interface{}{"title": "x", "cadence": "monthly", "month_day": 32, "storage": "server", "format": "zip"}, "month_day"},
		{"email missing", map[string]interface{}{"title": "x", "cadence": "daily", "storage": "email", "format": "zip"}, "email"},
		{"bad format", map[string]interface{}{"title": "x", "cadence": "daily", "storage": "server", "format": "7z"}, "format"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			body, _ := json.Marshal(tc.body)
			req := httptest.NewRequest("POST", "/jobs", bytes.NewReader(body))
			rr := httptest.NewRecorder()
			h.CreateJob(rr, req)

			if rr.Code != http.StatusBadRequest {
				t.Fatalf("status: got %d, want 400", rr.Code)
			}
			var resp struct {
				Fields map[string]string `json:"fields"`
			}
			if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
				t.Fatalf("decode response: %v", err)
			}
			if _, ok := resp.Fields[tc.field]; !ok {
				t.Errorf("expected field error for %q, got %v", tc.field, resp.Fields)
			}
		})
	}
	if len(sched.scheduled) != 0 {
		t.Errorf("invalid jobs must never reach the scheduler, got %v", sched.scheduled)
	}
}

func TestJobHandler_UpdateJob_ReschedulesIt(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	now := time.Now()
	mock.ExpectExec(`UPDATE backup_jobs`).
		WithArgs("Weekly now", "weekly", 3, 30, 5, 0, "server", "tar", "", "job_1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(`SELECT id, title, cadence`).
		WithArgs("job_1").
		WillReturnRows(sqlmock.NewRows(jobCols).
			AddRow("job_1", "Weekly now", "weekly", 3, 30, 5, 0, "server", "tar", "", now, now))

	sched := &fakeScheduler{next: now.Add(72 * time.Hour)}
	h := &JobHandler{Repo: repo.NewJobRepo(db), Sched: sched}

	body, _ := json.Marshal(map[string]interface{}{
		"title": "Weekly now", "cadence": "weekly", "hour": 3, "minute": 30,
		"weekday": 5, "storage": "server", "format": "tar",
	})
	req := requestWithChiURLParams("PUT", "/jobs/job_1", body, map[string]string{"id": "job_1"})
	rr := httptest.NewRecorder()
	h.UpdateJob(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("UpdateJob status: got %d, want 200, body %s", rr.Code, rr.Body.String())
	}
	if len(sched.unscheduled) != 1 || sched.unscheduled[0] != "job_1" {
		t.Errorf("expected Unschedule(job_1), got %v", sched.unscheduled)
	}
	if len(sched.scheduled) != 1 || sched.scheduled[0] != "job_1" {
		t.Errorf("expected Schedule(job_1), got %v", sched.scheduled)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("expectations: %v", err)
	}
}

func TestJobHandler_UpdateJob_StoreErrorKeepsTimer(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	mock.ExpectExec(`UPDATE backup_jobs`).
		WillReturnError(errors.New("connection reset"))

	sched := &fakeScheduler{}
	h := &JobHandler{Repo: repo.NewJobRepo(db), Sched: sched}

	body, _ := json.Marshal(map[string]interface{}{
		"title": "x", "cadence": "daily", "storage": "server", "format": "zip",
	})
	req := requestWithChiURLParams("PUT", "/jobs/job_1", body, map[string]string{"id": "job_1"})
	rr := httptest.NewRecorder()
	h.UpdateJob(rr, req)

	if rr.Code != http.StatusInternalServerError {
		t.Fatalf("status: got %d, want 500", rr.Code)
	}
	if len(sched.unscheduled) != 0 {
		t.Errorf("failed update must leave the timer armed, got Unschedule calls %v", sched.unscheduled)
	}
}

func TestJobHandler_UpdateJob_NotFound(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	mock.ExpectExec(`UPDATE backup_jobs`).
		WillReturnResult(sqlmock.NewResult(0, 0))

	h := &JobHandler{Repo: repo.NewJobRepo(db), Sched: &fakeScheduler{}}

	body, _ := json.Marshal(map[string]interface{}{
		"title": "x", "cadence": "daily", "storage": "server", "format": "zip",
	})
	req := requestWithChiURLParams("PUT", "/jobs/missing", body, map[string]string{"id": "missing"})
	rr := httptest.NewRecorder()
	h.UpdateJob(rr, req)

	if rr.Code != http.StatusNotFound {
		t.Errorf("status: got %d, want 404", rr.Code)
	}
}

func TestJobHandler_DeleteJob_UnschedulesFirst(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	mock.ExpectExec(`DELETE FROM backup_jobs`).
		WithArgs("job_1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	sched := &fakeScheduler{}
	h := &JobHandler{Repo: repo.NewJobRepo(db), Sched: sched}

	req := requestWithChiURLParams("DELETE", "/jobs/job_1", nil, map[string]string{"id": "job_1"})
	rr := httptest.NewRecorder()
	h.DeleteJob(rr, req)

	if rr.Code != http.StatusNoContent {
		t.Errorf("status: got %d, want 204", rr.Code)
	}
	if len(sched.unscheduled) != 1 || sched.unscheduled[0] != "job_1" {
		t.Errorf("expected Unschedule(job_1), got %v", sched.unscheduled)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("expectations: %v", err)
	}
}

func TestJobHandler_RunJob(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	now := time.Now()
	mock.ExpectQuery(`SELECT id, title, cadence`).
		WithArgs("job_1").
		WillReturnRows(sqlmock.NewRows(jobCols).
			AddRow("job_1", "Nightly", "daily", 2, 0, 0, 0, "server", "zip", "", now, now))

	sched := &fakeScheduler{}
	h := &JobHandler{Repo: repo.NewJobRepo(db), Sched: sched}

	req := requestWithChiURLParams("POST", "/jobs/job_1/run", nil, map[string]string{"id": "job_1"})
	rr := httptest.NewRecorder()
	h.RunJob(rr, req)

	if rr.Code != http.StatusAccepted {
		t.Fatalf("status: got %d, want 202", rr.Code)
	}
	if len(sched.triggered) != 1 || sched.triggered[0] != "job_1" {
		t.Errorf("expected Trigger(job_1), got %v", sched.triggered)
	}
}

func TestJobHandler_RunJob_NotFound(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	mock.ExpectQuery(`SELECT id, title, cadence`).
		WithArgs("missing").
		WillReturnRows(sqlmock.NewRows(jobCols))

	sched := &fakeScheduler{}
	h := &JobHandler{Repo: repo.NewJobRepo(db), Sched: sched}

	req := requestWithChiURLParams("POST", "/jobs/missing/run", nil, map[string]string{"id": "missing"})
	rr := httptest.NewRecorder()
	h.RunJob(rr, req)

	if rr.Code != http.StatusNotFound {
		t.Errorf("status: got %d, want 404", rr.Code)
	}
	if len(sched.triggered) != 0 {
		t.Errorf("missing job must not be triggered, got %v", sched.triggered)
	}
}
