// Package progress tracks how far a table scan has advanced.
package progress

import (
	"fmt"
	"sync"
)

const notStarted = "Scanning Progress: Not started or no data available."

// Snapshot is a consistent copy of the tracker counters.
type Snapshot struct {
	Current int64
	Total   int64
}

// Tracker holds the fetched/total row counters of the running scan. The zero
// value is ready to use and safe for concurrent use.
type Tracker struct {
	mu      sync.Mutex
	current int64
	total   int64
}

// Reset starts a new query with the given total; negative totals count as unknown.
func (t *Tracker) Reset(total int64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.current = 0
	t.total = max(total, 0)
}

// Add advances the fetched counter by n rows. Once a total is known the
// counter never passes it, even if rows were inserted after the count.
func (t *Tracker) Add(n int) {
	if n <= 0 {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.current += int64(n)
	if t.total > 0 && t.current > t.total {
		t.current = t.total
	}
}

func (t *Tracker) Snapshot() Snapshot {
	t.mu.Lock()
	defer t.mu.Unlock()
	return Snapshot{Current: t.current, Total: t.total}
}

// Percent returns 100*current/total; ok is false while the total is unknown.
func (t *Tracker) Percent() (float64, bool) {
	return t.Snapshot().Percent()
}

func (t *Tracker) Report() string {
	return t.Snapshot().Report()
}

func (s Snapshot) Percent() (float64, bool) {
	if s.Total <= 0 {
		return 0, false
	}
	return float64(s.Current) / float64(s.Total) * 100, true
}

func (s Snapshot) Report() string {
	pct, ok := s.Percent()
	if !ok {
		return notStarted
	}
	return fmt.Sprintf("Scanning Progress: %.2f%%", pct)
}
