package cli

import (
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/mattn/go-isatty"
)

// ProgressReporter shows the elapsed time of a long operation. On a terminal
// the status line is redrawn in place; elsewhere only the final line is
// written.
type ProgressReporter struct {
	mu      sync.Mutex
	out     io.Writer
	label   string
	tty     bool
	start   time.Time
	stop    chan struct{}
	stopped chan struct{}
}

// NewProgressReporter creates a reporter writing to out.
func NewProgressReporter(out io.Writer, label string) *ProgressReporter {
	tty := false
	if f, ok := out.(*os.File); ok {
		tty = isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
	}
	return &ProgressReporter{
		out:   out,
		label: label,
		tty:   tty,
	}
}

// Start begins timing and, on a terminal, redraws the status line until Done.
func (p *ProgressReporter) Start() {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.start = time.Now()
	if !p.tty || p.stop != nil {
		return
	}
	p.stop = make(chan struct{})
	p.stopped = make(chan struct{})
	go p.loop(p.stop, p.stopped)
}

func (p *ProgressReporter) loop(stop <-chan struct{}, stopped chan<- struct{}) {
	defer close(stopped)
	ticker := time.NewTicker(200 * time.Millisecond)
	defer ticker.Stop()
	for {
		p.render()
		select {
		case <-stop:
			return
		case <-ticker.C:
		}
	}
}

func (p *ProgressReporter) render() {
	p.mu.Lock()
	defer p.mu.Unlock()
	elapsed := time.Since(p.start).Round(time.Second)
	fmt.Fprintf(p.out, "\r\033[K%s... [%s]", p.label, elapsed)
}

// Done stops the status line and writes summary with the total duration.
func (p *ProgressReporter) Done(summary string) {
	p.mu.Lock()
	stop, stopped := p.stop, p.stopped
	p.stop = nil
	p.mu.Unlock()

	if stop != nil {
		close(stop)
		<-stopped
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.tty {
		fmt.Fprint(p.out, "\r\033[K")
	}
	elapsed := time.Since(p.start).Round(time.Millisecond)
	fmt.Fprintf(p.out, "%s in %s\n", summary, elapsed)
}
