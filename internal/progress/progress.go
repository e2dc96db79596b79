// Package progress prints lightweight status lines for long-running
// commands. Output goes to stderr so reports on stdout stay clean.
package progress

import (
	"fmt"
	"os"
	"strings"
	"time"
)

// Indicator tracks one operation. With a known total it renders a bar,
// otherwise a running counter.
type Indicator struct {
	enabled    bool
	message    string
	total      int
	current    int
	startTime  time.Time
	lastUpdate time.Time
}

// Simple returns a counter-style indicator.
func Simple(message string, quiet bool) *Indicator {
	return &Indicator{enabled: !quiet, message: message}
}

// WithTotal returns a bar-style indicator for a known item count.
func WithTotal(message string, total int, quiet bool) *Indicator {
	return &Indicator{enabled: !quiet, message: message, total: total}
}

// Start begins timing and prints the opening line.
func (p *Indicator) Start() {
	if !p.enabled {
		return
	}
	p.startTime = time.Now()
	p.lastUpdate = p.startTime
	fmt.Fprintf(os.Stderr, "%s...\n", p.message)
}

// Update moves the indicator to current. Redraws are throttled to
// avoid flooding the terminal.
func (p *Indicator) Update(current int) {
	if !p.enabled {
		return
	}
	p.current = current

	now := time.Now()
	if now.Sub(p.lastUpdate) < 100*time.Millisecond && current < p.total {
		return
	}
	p.lastUpdate = now

	if p.total > 0 {
		pct := float64(current) / float64(p.total) * 100
		fmt.Fprintf(os.Stderr, "\r%s [%s] %d/%d (%.0f%%)", p.message, bar(pct), current, p.total, pct)
	} else {
		fmt.Fprintf(os.Stderr, "\r%s: %d rows", p.message, current)
	}
}

// Finish prints the closing line with the elapsed time.
func (p *Indicator) Finish() {
	if !p.enabled {
		return
	}
	fmt.Fprintf(os.Stderr, "\r%s: done, %d rows in %s\n", p.message, p.current, formatDuration(time.Since(p.startTime)))
}

// FinishWithError prints the closing line for a failed operation.
func (p *Indicator) FinishWithError(err error) {
	if !p.enabled {
		return
	}
	fmt.Fprintf(os.Stderr, "\r%s: failed after %s: %v\n", p.message, formatDuration(time.Since(p.startTime)), err)
}

func bar(pct float64) string {
	const width = 20
	filled := int(pct / 100 * width)
	if filled > width {
		filled = width
	}
	return strings.Repeat("=", filled) + strings.Repeat("-", width-filled)
}

func formatDuration(d time.Duration) string {
	switch {
	case d < time.Second:
		return fmt.Sprintf("%dms", d.Milliseconds())
	case d < time.Minute:
		return fmt.Sprintf("%.1fs", d.Seconds())
	case d < time.Hour:
		return fmt.Sprintf("%.1fm", d.Minutes())
	}
	return fmt.Sprintf("%.1fh", d.Hours())
}
