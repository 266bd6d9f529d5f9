package notify

import (
	"sync/atomic"
	"time"
)

// Throttle enforces the minimum spacing between notification bursts and
// counts completed bursts. It is shared by every caller in the process.
//
// A burst is reserved with a compare-and-swap on the in-flight flag, so two
// overlapping events can never both pass the check.
type Throttle struct {
	last     atomic.Int64 // unix nanos of the last completed burst, 0 if none
	inFlight atomic.Bool
	lifetime atomic.Int64
}

// NewThrottle returns a throttle with no burst on record.
func NewThrottle() *Throttle {
	return &Throttle{}
}

// TryBegin reserves a burst starting at now. It fails while another burst is
// in flight or before last+interval. A successful call must be followed by
// Complete.
func (t *Throttle) TryBegin(now time.Time, interval time.Duration) bool {
	if !t.inFlight.CompareAndSwap(false, true) {
		return false
	}
	if last := t.last.Load(); last != 0 && now.UnixNano() < last+int64(interval) {
		t.inFlight.Store(false)
		return false
	}
	return true
}

// Complete records the end of the reserved burst at now.
func (t *Throttle) Complete(now time.Time) {
	t.last.Store(now.UnixNano())
	t.lifetime.Add(1)
	t.inFlight.Store(false)
}

// NextAllowed returns the earliest time a new burst may begin.
func (t *Throttle) NextAllowed(interval time.Duration) time.Time {
	last := t.last.Load()
	if last == 0 {
		return time.Time{}
	}
	return time.Unix(0, last+int64(interval)).UTC()
}

// Lifetime returns the number of completed bursts.
func (t *Throttle) Lifetime() int64 {
	return t.lifetime.Load()
}

// CountManual adds a burst that bypassed the throttle to the lifetime count.
func (t *Throttle) CountManual() {
	t.lifetime.Add(1)
}
