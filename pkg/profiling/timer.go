// Package profiling records a timing breakdown of one command run.
package profiling

import (
	"fmt"
	"io"
	"strings"
	"sync"
	"time"
)

// Phase is one timed step. Phases begun while another is open are nested
// under it. A nil Phase is valid and End is a no-op.
type Phase struct {
	Name     string
	Depth    int
	Start    time.Time
	Duration time.Duration

	timer *Timer
	ended bool
}

// End records the phase duration.
func (p *Phase) End() {
	if p == nil {
		return
	}
	p.timer.end(p)
}

// Timer collects phases in the order they begin.
type Timer struct {
	mu      sync.Mutex
	enabled bool
	start   time.Time
	phases  []*Phase
	open    []*Phase
}

var std = &Timer{}

// Enable turns on the process-wide timer. Calling it again is a no-op.
func Enable() {
	std.mu.Lock()
	defer std.mu.Unlock()
	if std.enabled {
		return
	}
	std.enabled = true
	std.start = time.Now()
}

// Enabled reports whether phases are being recorded.
func Enabled() bool {
	std.mu.Lock()
	defer std.mu.Unlock()
	return std.enabled
}

// Reset disables the timer and forgets recorded phases.
func Reset() {
	std.mu.Lock()
	defer std.mu.Unlock()
	std.enabled = false
	std.start = time.Time{}
	std.phases = nil
	std.open = nil
}

// Begin opens a phase; the caller ends it, usually with defer. It returns nil
// while the timer is disabled.
func Begin(name string) *Phase {
	return std.begin(name)
}

// Track times fn as a phase and returns its error.
func Track(name string, fn func() error) error {
	p := Begin(name)
	defer p.End()
	return fn()
}

// Report writes the recorded phases with their share of the total run time.
func Report(w io.Writer) {
	std.report(w)
}

func (t *Timer) begin(name string) *Phase {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.enabled {
		return nil
	}
	p := &Phase{Name: name, Depth: len(t.open), Start: time.Now(), timer: t}
	t.phases = append(t.phases, p)
	t.open = append(t.open, p)
	return p
}

func (t *Timer) end(p *Phase) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if p.ended {
		return
	}
	p.ended = true
	p.Duration = time.Since(p.Start)

	// Phases may end out of order when spawned concurrently.
	for i := len(t.open) - 1; i >= 0; i-- {
		if t.open[i] == p {
			t.open = append(t.open[:i], t.open[i+1:]...)
			break
		}
	}
}

func (t *Timer) report(w io.Writer) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.enabled {
		return
	}

	total := time.Since(t.start)
	fmt.Fprintf(w, "\nTiming (total %s)\n", total.Round(100*time.Microsecond))
	for _, p := range t.phases {
		d := p.Duration
		suffix := ""
		if !p.ended {
			d = time.Since(p.Start)
			suffix = " (running)"
		}
		share := 0.0
		if total > 0 {
			share = float64(d) / float64(total) * 100
		}
		fmt.Fprintf(w, "%s- %s %s %.1f%%%s\n",
			strings.Repeat("  ", p.Depth), p.Name, d.Round(100*time.Microsecond), share, suffix)
	}
}
