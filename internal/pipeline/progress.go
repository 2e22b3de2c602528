package pipeline

import (
	"fmt"
	"io"
	"strings"
	"sync"
)

// progress draws a live "\r"-overwritten counter. A nil writer disables it;
// piped output gets no progress line since per-file warnings already leave
// enough breadcrumbs.
type progress struct {
	mu     sync.Mutex
	w      io.Writer
	total  int
	done   int
	failed int
}

func newProgress(w io.Writer, total int) *progress {
	return &progress{w: w, total: total}
}

// step records one finished file and redraws the line.
func (p *progress) step(name string, failed bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.done++
	if failed {
		p.failed++
	}
	if p.w == nil || p.total == 0 {
		return
	}
	pct := p.done * 100 / p.total
	status := fmt.Sprintf("  Scanning [%d/%d] %d%% ", p.done, p.total, pct)
	if p.failed > 0 {
		status += fmt.Sprintf("(%d failed) ", p.failed)
	}

	maxName := 40
	if len(name) > maxName {
		name = name[:maxName-1] + "…"
	}
	status += name

	// Pad to 80 chars to overwrite previous longer lines, then \r.
	if len(status) < 80 {
		status += strings.Repeat(" ", 80-len(status))
	}
	fmt.Fprintf(p.w, "\r%s", status)
}

// interrupt clears the line, runs fn (typically a log call), and lets the
// next step redraw.
func (p *progress) interrupt(fn func()) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.clearLocked()
	fn()
}

func (p *progress) clear() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.clearLocked()
}

func (p *progress) clearLocked() {
	if p.w == nil {
		return
	}
	fmt.Fprintf(p.w, "\r%s\r", strings.Repeat(" ", 80))
}
