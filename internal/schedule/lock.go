package schedule

import (
	"sync"
	"time"
)

// LockTTL bounds how long a firing's lock entry suppresses another firing
// for the same job. It also bounds how long a crashed in-flight run blocks
// a retried firing.
const LockTTL = 5 * time.Minute

// ExecutionLock collapses duplicate deliveries of the same logical firing.
// An entry that exists and is unexpired means a run for that job is in
// progress or finished very recently. It is not a general mutex: entries
// are not released on completion, they age out.
type ExecutionLock struct {
	mu   sync.Mutex
	ttl  time.Duration
	held map[string]time.Time

	now func() time.Time
}

// NewExecutionLock returns a lock with the given TTL. ttl <= 0 uses LockTTL.
func NewExecutionLock(ttl time.Duration) *ExecutionLock {
	if ttl <= 0 {
		ttl = LockTTL
	}
	return &ExecutionLock{
		ttl:  ttl,
		held: make(map[string]time.Time),
		now:  time.Now,
	}
}

// TryAcquire records a firing for jobID. It returns false when an unexpired
// entry already exists, in which case the caller must drop the firing.
func (l *ExecutionLock) TryAcquire(jobID string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	if at, ok := l.held[jobID]; ok && now.Sub(at) < l.ttl {
		return false
	}
	l.held[jobID] = now

	// Opportunistic sweep so deleted jobs do not accumulate entries forever.
	for id, at := range l.held {
		if now.Sub(at) >= l.ttl {
			delete(l.held, id)
		}
	}
	return true
}
