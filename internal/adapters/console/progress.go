// Package console renders pipeline progress on a terminal. It implements
// ports.ProgressHandler: stage titles as they start, an in-place counter for
// bounded stages, and the collected report lines once the run finishes.
package console

import (
	"fmt"
	"io"
	"sync"
	"sync/atomic"
)

const (
	colorReset = "\033[0m"
	colorBold  = "\033[1m"
	colorCyan  = "\033[36m"
	colorGray  = "\033[90m"
)

// Progress prints pipeline stages to out. The color flag doubles as the
// terminal switch: in-place counter updates use ANSI carriage control, so
// they are emitted only when color is on. Quiet silences everything; the
// cancel flag keeps working either way.
type Progress struct {
	out   io.Writer
	color bool
	quiet bool

	canceled atomic.Bool

	mu      sync.Mutex
	max     int
	n       int
	open    bool // an in-place counter line is on screen
	reports []string
}

// NewProgress returns a handler writing to out.
func NewProgress(out io.Writer, color, quiet bool) *Progress {
	return &Progress{out: out, color: color, quiet: quiet}
}

// SetTitle announces the next stage, closing any counter still on screen.
func (p *Progress) SetTitle(title string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closeLine()
	p.max = 0
	p.n = 0
	if p.quiet {
		return
	}
	if p.color {
		fmt.Fprintf(p.out, "%s▸%s %s\n", colorCyan, colorReset, title)
	} else {
		fmt.Fprintf(p.out, "▸ %s\n", title)
	}
}

// SetMax fixes the number of work units of the current stage.
func (p *Progress) SetMax(n int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.max = n
	p.n = 0
}

// Step marks one unit of work done. The counter redraws in place at most one
// hundred times per stage to keep slow terminals out of the hot loop.
func (p *Progress) Step() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.n++
	if p.quiet || !p.color || p.max <= 0 {
		return
	}
	if stride := p.max / 100; stride > 1 && p.n%stride != 0 && p.n != p.max {
		return
	}
	fmt.Fprintf(p.out, "\r%s  %d/%d%s", colorGray, p.n, p.max, colorReset)
	p.open = true
}

// Report appends one line to the processing report shown by Done.
func (p *Progress) Report(line string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.reports = append(p.reports, line)
}

// Cancel requests a non-destructive early stop. Safe from signal handlers.
func (p *Progress) Cancel() {
	p.canceled.Store(true)
}

// Canceled reports whether a stop was requested.
func (p *Progress) Canceled() bool {
	return p.canceled.Load()
}

// Done closes the last counter and prints the collected report lines.
func (p *Progress) Done() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closeLine()
	if p.quiet || len(p.reports) == 0 {
		return
	}
	if p.color {
		fmt.Fprintf(p.out, "%sProcessing report%s\n", colorBold, colorReset)
	} else {
		fmt.Fprintln(p.out, "Processing report")
	}
	for _, line := range p.reports {
		fmt.Fprintf(p.out, "  %s\n", line)
	}
}

// Lines returns the report lines collected so far.
func (p *Progress) Lines() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	lines := make([]string, len(p.reports))
	copy(lines, p.reports)
	return lines
}

// closeLine ends an in-place counter line. Callers hold p.mu.
func (p *Progress) closeLine() {
	if p.open {
		fmt.Fprintln(p.out)
		p.open = false
	}
}
