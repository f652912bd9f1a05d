package migrate

import (
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/google/uuid"
)

// OpResult records one successful creation.
type OpResult struct {
	Kind   EntityKind `json:"kind"`
	Name   string     `json:"name"`
	Remote RemoteID   `json:"remoteId"`
}

// OpFailure records one failed operation and why.
type OpFailure struct {
	Kind   EntityKind `json:"kind"`
	Name   string     `json:"name"`
	Code   Code       `json:"code"`
	Reason string     `json:"reason"`
}

// RunReport is the outcome of one migration run. A run that was aborted
// (credential failure, planner cycle) sets Aborted; per-operation
// failures do not.
type RunReport struct {
	RunID       uuid.UUID   `json:"runId"`
	Succeeded   []OpResult  `json:"succeeded"`
	Failed      []OpFailure `json:"failed"`
	Warnings    []string    `json:"warnings,omitempty"`
	Aborted     bool        `json:"aborted"`
	AbortReason string      `json:"abortReason,omitempty"`
	Elapsed     time.Duration `json:"elapsedNs"`
}

// NewRunReport creates an empty report with a fresh run id.
func NewRunReport() *RunReport {
	return &RunReport{RunID: uuid.New()}
}

// OK reports whether the run completed with zero failures. Drives the
// process exit status.
func (r *RunReport) OK() bool {
	return !r.Aborted && len(r.Failed) == 0
}

// PrintSummary writes a human-readable run summary: counts per failure
// code and the specific entities affected, so the user can inspect and
// retry the remainder by hand.
func (r *RunReport) PrintSummary(w io.Writer) {
	fmt.Fprintln(w)
	fmt.Fprintln(w, "  Migration Summary")
	fmt.Fprintln(w)
	fmt.Fprintf(w, "  Run:       %s\n", r.RunID)
	fmt.Fprintf(w, "  Succeeded: %d\n", len(r.Succeeded))
	fmt.Fprintf(w, "  Failed:    %d\n", len(r.Failed))

	if len(r.Failed) > 0 {
		byCode := make(map[Code][]OpFailure)
		for _, f := range r.Failed {
			byCode[f.Code] = append(byCode[f.Code], f)
		}
		codes := make([]string, 0, len(byCode))
		for c := range byCode {
			codes = append(codes, string(c))
		}
		sort.Strings(codes)

		fmt.Fprintln(w)
		for _, c := range codes {
			failures := byCode[Code(c)]
			fmt.Fprintf(w, "  %s (%d):\n", c, len(failures))
			for _, f := range failures {
				fmt.Fprintf(w, "    - %s %q: %s\n", f.Kind, f.Name, f.Reason)
			}
		}
	}

	if r.Aborted {
		fmt.Fprintln(w)
		fmt.Fprintf(w, "  Run aborted: %s\n", r.AbortReason)
	}

	if len(r.Warnings) > 0 {
		fmt.Fprintln(w)
		fmt.Fprintln(w, "  Warnings:")
		for _, warn := range r.Warnings {
			fmt.Fprintf(w, "    - %s\n", warn)
		}
	}
	fmt.Fprintln(w)
}

// PlanRow is one entity kind's pre-flight tally.
type PlanRow struct {
	Kind     EntityKind `json:"kind"`
	Total    int        `json:"total"`
	Matched  int        `json:"matched"`
	ToCreate int        `json:"toCreate"`
}

// PlanReport summarizes what a migration will do, shown before proceeding.
type PlanReport struct {
	SourceGuild string    `json:"sourceGuild"`
	Destination string    `json:"destination"` // "new guild" or the existing guild name/id
	Rows        []PlanRow `json:"rows"`
	Warnings    []string  `json:"warnings,omitempty"`
}

// PrintReport writes a formatted pre-flight report to w.
func (p *PlanReport) PrintReport(w io.Writer) {
	fmt.Fprintln(w)
	fmt.Fprintf(w, "  Migration Plan: %s -> %s\n", p.SourceGuild, p.Destination)
	fmt.Fprintln(w)
	fmt.Fprintf(w, "  %-12s %8s %9s %10s\n", "Kind", "Source", "Matched", "To create")
	for _, row := range p.Rows {
		fmt.Fprintf(w, "  %-12s %8d %9d %10d\n", row.Kind, row.Total, row.Matched, row.ToCreate)
	}
	fmt.Fprintln(w)

	if len(p.Warnings) > 0 {
		fmt.Fprintln(w, "  Warnings:")
		for _, warn := range p.Warnings {
			fmt.Fprintf(w, "    - %s\n", warn)
		}
		fmt.Fprintln(w)
	}
}
