package schedule

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/crucial707/dbkeeper/internal/metrics"
	"github.com/crucial707/dbkeeper/internal/models"
)

// JobStore is the durable job list the scheduler reads from. The job is
// re-fetched at fire time so edits made between arming and firing take
// effect, and deletions drop the firing.
type JobStore interface {
	GetByID(ctx context.Context, id string) (*models.Job, error)
	ListAll(ctx context.Context) ([]models.Job, error)
}

// Executor runs one backup for one job.
type Executor interface {
	Run(ctx context.Context, job models.Job) error
}

// Scheduler owns at most one outstanding one-shot timer per job. Timers are
// transient: a restarted process calls Rebuild to re-arm everything from the
// store. Firings run in the timer's own goroutine, so a blocked backup never
// prevents arming or cancelling other jobs' timers.
type Scheduler struct {
	store JobStore
	exec  Executor
	clock Clock
	lock  *ExecutionLock
	log   *slog.Logger

	mu     sync.Mutex
	timers map[string]*time.Timer
	closed bool
}

// New returns a stopped-state scheduler; call Rebuild to arm persisted jobs.
func New(store JobStore, exec Executor, clock Clock, log *slog.Logger) *Scheduler {
	return &Scheduler{
		store:  store,
		exec:   exec,
		clock:  clock,
		lock:   NewExecutionLock(LockTTL),
		log:    log,
		timers: make(map[string]*time.Timer),
	}
}

// Schedule arms the timer for job, cancelling any existing one first. It
// returns the armed fire time. Safe to call repeatedly with the same job.
func (s *Scheduler) Schedule(job models.Job) time.Time {
	now := s.clock.Now()
	next := NextFire(job, now)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return next
	}
	s.armLocked(job.ID, next.Sub(now))
	s.log.Info("job armed", "job_id", job.ID, "next_run", next)
	return next
}

// armLocked stops any existing timer for id and arms a new one. The new
// timer's identity travels into the firing closure so the fire path can
// tell its own map entry from a replacement armed later. Caller holds mu.
func (s *Scheduler) armLocked(id string, d time.Duration) {
	if t, ok := s.timers[id]; ok {
		t.Stop()
	}
	var t *time.Timer
	t = time.AfterFunc(d, func() { s.fire(id, t) })
	s.timers[id] = t
	metrics.JobsArmed.Set(float64(len(s.timers)))
}

// Unschedule cancels job id's timer. Returns false when none was armed.
func (s *Scheduler) Unschedule(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.timers[id]
	if !ok {
		return false
	}
	t.Stop()
	delete(s.timers, id)
	metrics.JobsArmed.Set(float64(len(s.timers)))
	s.log.Info("job unscheduled", "job_id", id)
	return true
}

// Armed reports whether job id currently has an outstanding timer.
func (s *Scheduler) Armed(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.timers[id]
	return ok
}

// Rebuild arms every job in the store. Called once at startup: in-memory
// timers do not survive a restart.
func (s *Scheduler) Rebuild(ctx context.Context) error {
	jobs, err := s.store.ListAll(ctx)
	if err != nil {
		return err
	}
	for _, job := range jobs {
		s.Schedule(job)
	}
	s.log.Info("scheduler rebuilt", "jobs", len(jobs))
	return nil
}

// EnsureArmed arms any stored job that has no outstanding timer. It never
// touches an already-armed job, so repeated sweeps cannot push a pending
// firing around. Used by the periodic maintenance sweep as a safety net.
func (s *Scheduler) EnsureArmed(ctx context.Context) {
	jobs, err := s.store.ListAll(ctx)
	if err != nil {
		s.log.Error("ensure-armed sweep: list jobs", "err", err)
		return
	}
	for _, job := range jobs {
		if !s.Armed(job.ID) {
			s.log.Warn("job had no timer, re-arming", "job_id", job.ID)
			s.Schedule(job)
		}
	}
}

// Trigger fires job id out of band (admin "run now"), through the same
// dedup-and-rearm path as a timer firing. Runs asynchronously. Any armed
// timer stays in place until the terminal re-arm replaces it.
func (s *Scheduler) Trigger(id string) {
	go s.fire(id, nil)
}

// Close cancels every timer. Further Schedule calls are no-ops.
func (s *Scheduler) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	for id, t := range s.timers {
		t.Stop()
		delete(s.timers, id)
	}
	metrics.JobsArmed.Set(0)
	s.log.Info("scheduler stopped")
}

// fire handles one delivery for job id: collapse duplicates, re-fetch the
// job, run the backup, and re-arm. Re-arming happens even when the run
// fails so one bad backup does not stop the cadence.
//
// from is the timer this delivery came from, nil for out-of-band triggers.
// Only that exact timer may be removed from the map: a trigger or a stale
// delivery must not evict a live timer armed for the same job.
func (s *Scheduler) fire(id string, from *time.Timer) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	if from != nil && s.timers[id] == from {
		delete(s.timers, id)
		metrics.JobsArmed.Set(float64(len(s.timers)))
	}
	s.mu.Unlock()

	if !s.lock.TryAcquire(id) {
		s.log.Info("duplicate firing collapsed", "job_id", id)
		return
	}

	ctx := context.Background()
	job, err := s.store.GetByID(ctx, id)
	if err != nil {
		// Store unavailable: retry the whole firing after the minimum lead
		// instead of losing the job's cadence.
		s.log.Error("fetch job at fire time, retrying", "job_id", id, "err", err)
		s.mu.Lock()
		if !s.closed {
			s.armLocked(id, minLead)
		}
		s.mu.Unlock()
		return
	}
	if job == nil {
		s.log.Info("job deleted, dropping firing", "job_id", id)
		s.Unschedule(id)
		return
	}

	if err := s.exec.Run(ctx, *job); err != nil {
		s.log.Warn("backup run failed", "job_id", id, "err", err)
	}
	s.Schedule(*job)
}
