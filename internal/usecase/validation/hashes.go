package validation

import (
	"sync"
	"time"
)

// HashWindow remembers content hashes for a rolling window. It only sees
// what this process validated, so duplicate detection is best effort:
// concurrent generations may both record the same hash first.
type HashWindow struct {
	mu   sync.Mutex
	seen map[string]hashEntry
}

type hashEntry struct {
	itemID int64
	at     time.Time
}

// NewHashWindow returns an empty window.
func NewHashWindow() *HashWindow {
	return &HashWindow{seen: make(map[string]hashEntry)}
}

// Observe records hash for itemID and reports the first item that carried
// the same hash within window, if it is a different item.
func (h *HashWindow) Observe(hash string, itemID int64, now time.Time, window time.Duration) (int64, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for k, e := range h.seen {
		if now.Sub(e.at) > window {
			delete(h.seen, k)
		}
	}

	if e, ok := h.seen[hash]; ok {
		if e.itemID != itemID {
			return e.itemID, true
		}
		return 0, false
	}
	h.seen[hash] = hashEntry{itemID: itemID, at: now}
	return 0, false
}

// Len reports how many hashes are currently remembered.
func (h *HashWindow) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.seen)
}
