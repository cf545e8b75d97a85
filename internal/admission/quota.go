package admission

import (
	"context"
	"hash/fnv"
	"sync"
	"time"

	"go.uber.org/zap"
)

const (
	// quotaShards spreads client records across independent locks so
	// unrelated clients never contend with each other.
	quotaShards = 64

	// DefaultSweepInterval is how often the background sweep removes
	// records whose window has fully passed.
	DefaultSweepInterval = time.Minute
)

// MemoryStore is the in-process quota store: sharded maps of sliding
// windows keyed by client+policy. Timestamps outside the window are purged
// lazily on each admit; the periodic sweep only removes whole records that
// no longer matter.
type MemoryStore struct {
	shards   [quotaShards]*quotaShard
	interval time.Duration
	log      *zap.Logger
}

type quotaShard struct {
	mu      sync.Mutex
	records map[string]*quotaRecord
}

type quotaRecord struct {
	stamps  []time.Time
	resetAt time.Time
}

// NewMemoryStore creates an in-memory quota store. sweepInterval controls
// the background expiry sweep; pass 0 for DefaultSweepInterval.
func NewMemoryStore(sweepInterval time.Duration, log *zap.Logger) *MemoryStore {
	if sweepInterval <= 0 {
		sweepInterval = DefaultSweepInterval
	}
	s := &MemoryStore{interval: sweepInterval, log: log}
	for i := range s.shards {
		s.shards[i] = &quotaShard{records: make(map[string]*quotaRecord)}
	}
	return s
}

func (s *MemoryStore) shard(key string) *quotaShard {
	h := fnv.New32a()
	_, _ = h.Write([]byte(key))
	return s.shards[h.Sum32()%quotaShards]
}

// Admit applies the sliding-window check for key under policy. The whole
// sequence runs under the shard lock, so concurrent admits for the same key
// are strictly serialized. Only admitted requests consume a window slot.
func (s *MemoryStore) Admit(ctx context.Context, key string, policy Policy, now time.Time) (Decision, error) {
	_ = ctx // no I/O in the in-memory path

	sh := s.shard(key)
	sh.mu.Lock()
	defer sh.mu.Unlock()

	rec, ok := sh.records[key]
	if !ok {
		rec = &quotaRecord{}
		sh.records[key] = rec
	}

	cutoff := now.Add(-policy.Window)
	kept := rec.stamps[:0]
	for _, ts := range rec.stamps {
		if ts.After(cutoff) {
			kept = append(kept, ts)
		}
	}
	rec.stamps = kept

	if len(rec.stamps) >= policy.MaxRequests {
		resetAt := rec.stamps[0].Add(policy.Window)
		rec.resetAt = resetAt
		return Decision{
			Allowed:    false,
			Limit:      policy.MaxRequests,
			Remaining:  0,
			ResetAt:    resetAt,
			RetryAfter: retryAfterSeconds(resetAt, now),
		}, nil
	}

	rec.stamps = append(rec.stamps, now)
	rec.resetAt = now.Add(policy.Window)
	return Decision{
		Allowed:   true,
		Limit:     policy.MaxRequests,
		Remaining: policy.MaxRequests - len(rec.stamps),
		ResetAt:   rec.resetAt,
	}, nil
}

// Ping implements Store. The in-memory store is always reachable.
func (s *MemoryStore) Ping(ctx context.Context) error {
	return nil
}

// Start runs the expiry sweep loop until ctx is cancelled. Call in its own
// goroutine after construction; cancel the context at shutdown.
func (s *MemoryStore) Start(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.sweep(time.Now())
		}
	}
}

// sweep removes records whose window reset has passed, bounding memory
// growth from one-shot clients. Each shard lock is held only long enough to
// walk that shard's records.
func (s *MemoryStore) sweep(now time.Time) {
	removed := 0
	for _, sh := range s.shards {
		sh.mu.Lock()
		for key, rec := range sh.records {
			if rec.resetAt.Before(now) {
				delete(sh.records, key)
				removed++
			}
		}
		sh.mu.Unlock()
	}
	if removed > 0 && s.log != nil {
		s.log.Debug("quota_sweep_removed_records",
			zap.Int("removed", removed),
		)
	}
}

// size reports the number of live records, for tests and diagnostics.
func (s *MemoryStore) size() int {
	n := 0
	for _, sh := range s.shards {
		sh.mu.Lock()
		n += len(sh.records)
		sh.mu.Unlock()
	}
	return n
}
