package ui

import (
	"fmt"
	"io"
	"time"

	"github.com/briandowns/spinner"
)

// StepSpinner animates the sequential steps of a migration run:
// reading snapshots, creating the destination guild. In plain mode it
// prints one line per step instead, keeping piped and CI output
// readable.
type StepSpinner struct {
	w     io.Writer
	spin  *spinner.Spinner
	msg   string
	plain bool
}

// NewStepSpinner returns a spinner writing to w. plain disables the
// animation.
func NewStepSpinner(w io.Writer, plain bool) *StepSpinner {
	return &StepSpinner{w: w, plain: plain}
}

// Start begins a step. The previous step, if any, must have been
// closed with Done or Fail.
func (s *StepSpinner) Start(msg string) {
	s.msg = msg
	if s.plain {
		fmt.Fprintf(s.w, "- %s\n", msg)
		return
	}
	s.spin = spinner.New(spinner.CharSets[14], 80*time.Millisecond, spinner.WithWriter(s.w))
	s.spin.Suffix = " " + msg
	s.spin.Start()
}

// Done closes the current step as succeeded.
func (s *StepSpinner) Done() {
	s.finish(StyleSuccess.Render(SymbolCheck))
}

// Fail closes the current step as failed.
func (s *StepSpinner) Fail() {
	s.finish(StyleError.Render(SymbolCross))
}

func (s *StepSpinner) finish(mark string) {
	if s.plain {
		fmt.Fprintf(s.w, "%s %s\n", mark, s.msg)
		return
	}
	if s.spin != nil {
		s.spin.Stop()
		s.spin = nil
	}
	fmt.Fprintf(s.w, "\r%s %s\n", mark, s.msg)
}

// Stop discards the current step without a status line, for signal
// cleanup paths.
func (s *StepSpinner) Stop() {
	if s.spin != nil {
		s.spin.Stop()
		s.spin = nil
	}
}
