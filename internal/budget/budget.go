package budget

import "sync"

// Meter is a run-wide request allowance: a fixed pool of calls with no
// refill. The ingestion driver checks it before every upstream fetch so a
// single run can never exceed its configured API budget, no matter how
// many queries and pages are configured.
type Meter struct {
	mu        sync.Mutex
	limit     int
	remaining int
	spent     int
}

// NewMeter creates a meter allowing n calls. n <= 0 means unlimited.
func NewMeter(n int) *Meter {
	return &Meter{limit: n, remaining: n}
}

// Allow consumes one call from the allowance. Returns false once the
// budget is exhausted.
func (m *Meter) Allow() bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.limit <= 0 {
		m.spent++
		return true
	}
	if m.remaining <= 0 {
		return false
	}
	m.remaining--
	m.spent++
	return true
}

// Spent returns the number of calls consumed so far.
func (m *Meter) Spent() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.spent
}

// Remaining returns the calls left, or -1 for an unlimited meter.
func (m *Meter) Remaining() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.limit <= 0 {
		return -1
	}
	return m.remaining
}
