package admission

import (
	"context"
	"sync"
	"testing"
	"time"
)

func testPolicy(window time.Duration, maxRequests int) Policy {
	return Policy{
		Name:        "test",
		Window:      window,
		MaxRequests: maxRequests,
		Message:     "limited",
	}
}

func TestMemoryStore_SlidingWindowScenario(t *testing.T) {
	t.Parallel()

	store := NewMemoryStore(time.Minute, nil)
	pol := testPolicy(60*time.Second, 3)
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	ctx := context.Background()

	// 3 calls at t=0,1,2ms are admitted with remaining 2,1,0
	for i, wantRemaining := range []int{2, 1, 0} {
		now := base.Add(time.Duration(i) * time.Millisecond)
		d, err := store.Admit(ctx, "ip:1.2.3.4", pol, now)
		if err != nil {
			t.Fatalf("Admit %d returned error: %v", i, err)
		}
		if !d.Allowed {
			t.Fatalf("Call %d: expected allowed", i)
		}
		if d.Remaining != wantRemaining {
			t.Errorf("Call %d: expected remaining %d, got %d", i, wantRemaining, d.Remaining)
		}
	}

	// 4th call at t=3ms is rejected with retry-after ~60s
	d, err := store.Admit(ctx, "ip:1.2.3.4", pol, base.Add(3*time.Millisecond))
	if err != nil {
		t.Fatalf("Admit returned error: %v", err)
	}
	if d.Allowed {
		t.Fatal("4th call within window: expected rejection")
	}
	if d.Remaining != 0 {
		t.Errorf("Expected remaining 0, got %d", d.Remaining)
	}
	if d.RetryAfter != 60 {
		t.Errorf("Expected retry-after 60, got %d", d.RetryAfter)
	}
	wantReset := base.Add(60 * time.Second)
	if !d.ResetAt.Equal(wantReset) {
		t.Errorf("Expected reset at %v, got %v", wantReset, d.ResetAt)
	}

	// 5th call at t=60001ms is admitted: the oldest timestamp expired
	d, err = store.Admit(ctx, "ip:1.2.3.4", pol, base.Add(60001*time.Millisecond))
	if err != nil {
		t.Fatalf("Admit returned error: %v", err)
	}
	if !d.Allowed {
		t.Fatal("Call past the window: expected admission")
	}
}

func TestMemoryStore_RejectionsDoNotConsumeQuota(t *testing.T) {
	t.Parallel()

	store := NewMemoryStore(time.Minute, nil)
	pol := testPolicy(time.Minute, 2)
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	ctx := context.Background()

	// Exhaust the window
	for i := 0; i < 2; i++ {
		if d, _ := store.Admit(ctx, "ip:9.9.9.9", pol, base); !d.Allowed {
			t.Fatalf("Setup call %d unexpectedly rejected", i)
		}
	}

	// Hammer with rejected calls
	for i := 0; i < 50; i++ {
		if d, _ := store.Admit(ctx, "ip:9.9.9.9", pol, base.Add(time.Second)); d.Allowed {
			t.Fatal("Expected rejection while window is full")
		}
	}

	// Once the window slides past the two admitted calls, admission resumes
	// immediately: the 50 rejections must not have counted.
	d, _ := store.Admit(ctx, "ip:9.9.9.9", pol, base.Add(61*time.Second))
	if !d.Allowed {
		t.Fatal("Expected admission after window slid past admitted calls")
	}
	if d.Remaining != 1 {
		t.Errorf("Expected remaining 1, got %d", d.Remaining)
	}
}

func TestMemoryStore_ConcurrentAdmitsSingleSlot(t *testing.T) {
	t.Parallel()

	// With one slot and many simultaneous admits for the same key, exactly
	// one must win. Repeat to give races a chance to surface.
	for round := 0; round < 50; round++ {
		store := NewMemoryStore(time.Minute, nil)
		pol := testPolicy(time.Minute, 1)
		now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

		const goroutines = 8
		var wg sync.WaitGroup
		var mu sync.Mutex
		admitted := 0

		for i := 0; i < goroutines; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				d, err := store.Admit(context.Background(), "ip:race", pol, now)
				if err != nil {
					t.Errorf("Admit returned error: %v", err)
					return
				}
				if d.Allowed {
					mu.Lock()
					admitted++
					mu.Unlock()
				}
			}()
		}
		wg.Wait()

		if admitted != 1 {
			t.Fatalf("Round %d: expected exactly 1 admission, got %d", round, admitted)
		}
	}
}

func TestMemoryStore_KeysAreIndependent(t *testing.T) {
	t.Parallel()

	store := NewMemoryStore(time.Minute, nil)
	pol := testPolicy(time.Minute, 1)
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	ctx := context.Background()

	if d, _ := store.Admit(ctx, "ip:a", pol, now); !d.Allowed {
		t.Fatal("First key: expected admission")
	}
	if d, _ := store.Admit(ctx, "ip:a", pol, now); d.Allowed {
		t.Fatal("First key: expected rejection on second call")
	}
	if d, _ := store.Admit(ctx, "ip:b", pol, now); !d.Allowed {
		t.Fatal("Second key must not be affected by the first key's quota")
	}
}

func TestMemoryStore_SweepRemovesExpiredRecords(t *testing.T) {
	t.Parallel()

	store := NewMemoryStore(time.Minute, nil)
	pol := testPolicy(time.Minute, 5)
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	ctx := context.Background()

	for _, key := range []string{"ip:a", "ip:b", "ip:c"} {
		if _, err := store.Admit(ctx, key, pol, base); err != nil {
			t.Fatalf("Admit returned error: %v", err)
		}
	}
	if got := store.size(); got != 3 {
		t.Fatalf("Expected 3 records before sweep, got %d", got)
	}

	// Before the windows reset, nothing is removed
	store.sweep(base.Add(30 * time.Second))
	if got := store.size(); got != 3 {
		t.Errorf("Expected 3 records after early sweep, got %d", got)
	}

	// Past the windows, all records go
	store.sweep(base.Add(2 * time.Minute))
	if got := store.size(); got != 0 {
		t.Errorf("Expected 0 records after sweep, got %d", got)
	}
}
