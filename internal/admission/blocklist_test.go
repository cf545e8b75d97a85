package admission

import (
	"testing"
	"time"
)

func TestIPBlocker_PermanentBlock(t *testing.T) {
	t.Parallel()

	b := NewIPBlocker()
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	if b.IsBlocked("1.2.3.4", now) {
		t.Fatal("Fresh blocker should not report any IP blocked")
	}

	b.Block("1.2.3.4", 0)
	if !b.IsBlocked("1.2.3.4", now) {
		t.Fatal("Expected permanent block to be reported")
	}
	if !b.IsBlocked("1.2.3.4", now.Add(100*24*time.Hour)) {
		t.Fatal("Permanent block must never expire")
	}

	b.Unblock("1.2.3.4")
	if b.IsBlocked("1.2.3.4", now) {
		t.Fatal("Expected IP unblocked after Unblock")
	}
}

func TestIPBlocker_TemporaryBlockSelfExpires(t *testing.T) {
	t.Parallel()

	b := NewIPBlocker()
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	until := now.Add(10 * time.Minute)

	b.blockUntil("5.6.7.8", until)

	if !b.IsBlocked("5.6.7.8", now) {
		t.Fatal("Expected temporary block to be reported before expiry")
	}
	if !b.IsBlocked("5.6.7.8", until.Add(-time.Second)) {
		t.Fatal("Expected temporary block just before expiry")
	}

	// Past expiry: reported unblocked and the entry is dropped
	if b.IsBlocked("5.6.7.8", until.Add(time.Second)) {
		t.Fatal("Expected temporary block expired")
	}
	b.mu.RLock()
	_, stillThere := b.temporary["5.6.7.8"]
	b.mu.RUnlock()
	if stillThere {
		t.Error("Expired entry should have been deleted by its own lookup")
	}

	// Idempotent: a second lookup after expiry stays unblocked
	if b.IsBlocked("5.6.7.8", until.Add(2*time.Second)) {
		t.Fatal("Expected expiry to be idempotent")
	}
}

func TestIPBlocker_PermanentWinsOverTemporary(t *testing.T) {
	t.Parallel()

	b := NewIPBlocker()
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name  string
		until time.Time
	}{
		{"unexpired temporary entry", now.Add(time.Hour)},
		{"expired temporary entry", now.Add(-time.Hour)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b.Block("9.9.9.9", 0)
			b.blockUntil("9.9.9.9", tt.until)

			if !b.IsBlocked("9.9.9.9", now) {
				t.Fatal("Permanent block must win regardless of the temporary entry")
			}
		})
	}
}

func TestIPBlocker_Entries(t *testing.T) {
	t.Parallel()

	b := NewIPBlocker()
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	b.Block("1.1.1.1", 0)
	b.blockUntil("2.2.2.2", now.Add(time.Hour))
	b.blockUntil("3.3.3.3", now.Add(-time.Hour)) // expired, must be skipped

	entries := b.Entries(now)
	if len(entries) != 2 {
		t.Fatalf("Expected 2 entries, got %d", len(entries))
	}
	if entries[0].IP != "1.1.1.1" || !entries[0].Permanent {
		t.Errorf("Expected first entry to be permanent 1.1.1.1, got %+v", entries[0])
	}
	if entries[1].IP != "2.2.2.2" || entries[1].Permanent || entries[1].UnblockAt == nil {
		t.Errorf("Expected second entry to be temporary 2.2.2.2, got %+v", entries[1])
	}
}
