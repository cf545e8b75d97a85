package admission

import (
	"math/rand"
	"sync"
	"time"
)

// gcOneIn is the average number of TryRun calls between opportunistic
// garbage collections of stale throttle records.
const gcOneIn = 32

// Throttle enforces at-most-once-per-cooldown semantics for a named
// operation per client, independent of the general rate limiter. A client
// well within its request quota can still be throttled on one expensive
// operation.
type Throttle struct {
	mu      sync.Mutex
	records map[string]throttleRecord
}

type throttleRecord struct {
	last     time.Time
	cooldown time.Duration
}

// NewThrottle creates an empty throttle.
func NewThrottle() *Throttle {
	return &Throttle{records: make(map[string]throttleRecord)}
}

// TryRun reports whether operation may run now for clientKey, recording the
// execution when permitted. retryAfter is whole seconds until the cooldown
// elapses, zero when permitted.
func (t *Throttle) TryRun(operation, clientKey string, cooldown time.Duration, now time.Time) (permitted bool, retryAfter int) {
	t.mu.Lock()
	defer t.mu.Unlock()

	// Low-traffic structure: clean up inline on a small fraction of calls
	// instead of running a dedicated goroutine.
	if rand.Intn(gcOneIn) == 0 {
		t.gcLocked(now)
	}

	key := operation + "|" + clientKey
	rec, ok := t.records[key]
	if !ok || now.Sub(rec.last) >= cooldown {
		t.records[key] = throttleRecord{last: now, cooldown: cooldown}
		return true, 0
	}
	return false, retryAfterSeconds(rec.last.Add(cooldown), now)
}

// gcLocked drops records older than twice their cooldown. Caller holds the
// lock.
func (t *Throttle) gcLocked(now time.Time) {
	for key, rec := range t.records {
		if now.Sub(rec.last) > 2*rec.cooldown {
			delete(t.records, key)
		}
	}
}
