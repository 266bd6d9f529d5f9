package notify

import (
	"slices"
	"sync"
	"time"
)

// Deferred holds items whose notification was throttled. Each item is queued
// at most once; rescheduling keeps the earlier due time.
type Deferred struct {
	mu  sync.Mutex
	due map[int64]time.Time
}

// NewDeferred returns an empty queue.
func NewDeferred() *Deferred {
	return &Deferred{due: make(map[int64]time.Time)}
}

// Schedule queues itemID for at. It reports false when the item was already
// queued.
func (d *Deferred) Schedule(itemID int64, at time.Time) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	if prev, ok := d.due[itemID]; ok {
		if at.Before(prev) {
			d.due[itemID] = at
		}
		return false
	}
	d.due[itemID] = at
	return true
}

// PopDue removes and returns the items due at or before now, earliest first.
func (d *Deferred) PopDue(now time.Time) []int64 {
	d.mu.Lock()
	defer d.mu.Unlock()

	var ids []int64
	for id, at := range d.due {
		if !at.After(now) {
			ids = append(ids, id)
		}
	}
	slices.SortFunc(ids, func(a, b int64) int {
		if c := d.due[a].Compare(d.due[b]); c != 0 {
			return c
		}
		switch {
		case a < b:
			return -1
		case a > b:
			return 1
		}
		return 0
	})
	for _, id := range ids {
		delete(d.due, id)
	}
	return ids
}

// Len returns the number of queued items.
func (d *Deferred) Len() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.due)
}
