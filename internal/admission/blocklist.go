package admission

import (
	"sort"
	"sync"
	"time"
)

// IPBlocker tracks administratively blocked source addresses. It is checked
// on every request but written only by admin action, so a reader-writer
// lock fits the access pattern. Blocked addresses are rejected before any
// quota bookkeeping runs, so an attacker cannot poison shared state for
// legitimate callers behind the same NAT.
type IPBlocker struct {
	mu        sync.RWMutex
	permanent map[string]struct{}
	temporary map[string]time.Time
}

// BlockEntry describes one blocked address for the admin API.
type BlockEntry struct {
	IP        string     `json:"ip"`
	Permanent bool       `json:"permanent"`
	UnblockAt *time.Time `json:"unblock_at,omitempty"`
}

// NewIPBlocker creates an empty blocklist.
func NewIPBlocker() *IPBlocker {
	return &IPBlocker{
		permanent: make(map[string]struct{}),
		temporary: make(map[string]time.Time),
	}
}

// IsBlocked reports whether ip is currently blocked. A permanent entry wins
// over any temporary one. A temporary entry found expired is deleted on the
// spot, so no stale state outlives its own check.
func (b *IPBlocker) IsBlocked(ip string, now time.Time) bool {
	b.mu.RLock()
	if _, ok := b.permanent[ip]; ok {
		b.mu.RUnlock()
		return true
	}
	until, ok := b.temporary[ip]
	b.mu.RUnlock()

	if !ok {
		return false
	}
	if now.Before(until) {
		return true
	}

	b.mu.Lock()
	// Re-check under the write lock: an admin may have re-blocked with a
	// later expiry between the two lock acquisitions.
	if cur, ok := b.temporary[ip]; ok && !now.Before(cur) {
		delete(b.temporary, ip)
		b.updateGaugeLocked()
	}
	b.mu.Unlock()
	return false
}

// Block adds ip to the blocklist. A non-positive duration blocks
// permanently; otherwise the block expires after d.
func (b *IPBlocker) Block(ip string, d time.Duration) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if d <= 0 {
		b.permanent[ip] = struct{}{}
		delete(b.temporary, ip)
	} else {
		b.temporary[ip] = time.Now().Add(d)
	}
	b.updateGaugeLocked()
}

// blockUntil records a temporary block with an explicit expiry instant.
// Used by tests and by callers that already computed the deadline.
func (b *IPBlocker) blockUntil(ip string, until time.Time) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.temporary[ip] = until
	b.updateGaugeLocked()
}

// Unblock removes ip from both the permanent set and the temporary map.
func (b *IPBlocker) Unblock(ip string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.permanent, ip)
	delete(b.temporary, ip)
	b.updateGaugeLocked()
}

// Entries lists current blocks for the admin API, skipping temporary
// entries that have already expired.
func (b *IPBlocker) Entries(now time.Time) []BlockEntry {
	b.mu.RLock()
	defer b.mu.RUnlock()

	out := make([]BlockEntry, 0, len(b.permanent)+len(b.temporary))
	for ip := range b.permanent {
		out = append(out, BlockEntry{IP: ip, Permanent: true})
	}
	for ip, until := range b.temporary {
		if _, alsoPermanent := b.permanent[ip]; alsoPermanent {
			continue
		}
		if !now.Before(until) {
			continue
		}
		u := until
		out = append(out, BlockEntry{IP: ip, UnblockAt: &u})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].IP < out[j].IP })
	return out
}

func (b *IPBlocker) updateGaugeLocked() {
	activeBlocks.Set(float64(len(b.permanent) + len(b.temporary)))
}
