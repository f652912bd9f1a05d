package migrate

import (
	"fmt"
	"io"
	"strings"
	"sync"
	"time"
)

// Phase is one layer of the staged guild migration: Structure,
// Channels, Permissions, Assets.
type Phase struct {
	Name  string
	Index int // 1-based
	Total int
}

// ProgressReporter receives live updates while a run executes.
type ProgressReporter interface {
	StartPhase(phase Phase, totalItems int)
	Progress(phase Phase, completed, totalItems int)
	CompletePhase(phase Phase, totalItems int, elapsed time.Duration)
	// Warn surfaces a non-fatal condition mid-run.
	Warn(msg string)
}

// CLIReporter renders each phase as a single terminal line, rewritten
// in place as ops complete and finalized with a count and duration.
type CLIReporter struct {
	mu      sync.Mutex
	w       io.Writer
	lineLen int
}

// NewCLIReporter returns a reporter writing to w, which should be a
// terminal; the rendering relies on carriage returns.
func NewCLIReporter(w io.Writer) *CLIReporter {
	return &CLIReporter{w: w}
}

func (r *CLIReporter) StartPhase(phase Phase, totalItems int) {
	if totalItems == 0 {
		r.render(phase, "nothing to create", false)
		return
	}
	r.render(phase, fmt.Sprintf("0 of %d", totalItems), false)
}

func (r *CLIReporter) Progress(phase Phase, completed, totalItems int) {
	if totalItems == 0 {
		return
	}
	r.render(phase, fmt.Sprintf("%d of %d", completed, totalItems), false)
}

func (r *CLIReporter) CompletePhase(phase Phase, totalItems int, elapsed time.Duration) {
	status := "nothing to create"
	if totalItems > 0 {
		status = fmt.Sprintf("%d done in %s", totalItems, formatDuration(elapsed))
	}
	r.render(phase, status, true)
}

// Warn breaks out of the current progress line so the message is not
// overwritten by the next render.
func (r *CLIReporter) Warn(msg string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.lineLen > 0 {
		fmt.Fprintln(r.w)
		r.lineLen = 0
	}
	fmt.Fprintf(r.w, "  warning: %s\n", msg)
}

func (r *CLIReporter) render(phase Phase, status string, final bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	line := fmt.Sprintf("  %-12s %s", phase.Name, status)
	// Pad over whatever the previous, possibly longer, render left behind.
	if pad := r.lineLen - len(line); pad > 0 {
		line += strings.Repeat(" ", pad)
	}
	if final {
		fmt.Fprintf(r.w, "\r%s\n", line)
		r.lineLen = 0
		return
	}
	fmt.Fprintf(r.w, "\r%s", line)
	r.lineLen = len(line)
}

// NopReporter discards all updates, for --json runs and tests.
type NopReporter struct{}

func (NopReporter) StartPhase(Phase, int)                   {}
func (NopReporter) Progress(Phase, int, int)                {}
func (NopReporter) CompletePhase(Phase, int, time.Duration) {}
func (NopReporter) Warn(string)                             {}

func formatDuration(d time.Duration) string {
	switch {
	case d < time.Second:
		return d.Round(time.Millisecond).String()
	case d < time.Minute:
		return d.Round(100 * time.Millisecond).String()
	}
	return d.Round(time.Second).String()
}

// FormatBytes renders a byte count for payload limit messages. The
// ceilings are binary, so the units are too.
func FormatBytes(n int64) string {
	const (
		kib = 1 << 10
		mib = 1 << 20
	)
	switch {
	case n >= mib:
		return fmt.Sprintf("%.1f MiB", float64(n)/mib)
	case n >= kib:
		return fmt.Sprintf("%.1f KiB", float64(n)/kib)
	}
	return fmt.Sprintf("%d B", n)
}
