package core

import (
	"fmt"
	"io"
	"strings"
	"sync"
	"text/tabwriter"
	"time"
)

// EmailOutcome is what happened to one email during a run
type EmailOutcome struct {
	EmailID  string
	From     string
	Subject  string
	Decision *Decision
	Applied  bool
	Skipped  bool
	Err      error
}

// RunSummary reports a scan: decisions made, how they were sourced, and every
// warning raised along the way
type RunSummary struct {
	RunID      string
	StartedAt  time.Time
	FinishedAt time.Time
	DryRun     bool

	Total    int
	RuleOnly int
	Merged   int
	AIOnly   int
	Applied  int
	Failed   int
	Skipped  int

	Corrections    int
	ProfileUpdated bool
	// Reported lists divergences left to the user, such as rules overridden by hand
	Reported []string
	Warnings []string
	Outcomes []EmailOutcome

	mu sync.Mutex
}

// NewRunSummary starts a summary for one run
func NewRunSummary(runID string, dryRun bool) *RunSummary {
	return &RunSummary{
		RunID:     runID,
		StartedAt: time.Now(),
		DryRun:    dryRun,
	}
}

// Record adds the outcome of one email
func (s *RunSummary) Record(outcome EmailOutcome) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.Outcomes = append(s.Outcomes, outcome)
	if outcome.Skipped {
		s.Skipped++
		return
	}

	s.Total++
	if outcome.Decision != nil {
		switch outcome.Decision.Source {
		case SourceRule:
			s.RuleOnly++
		case SourceMerged:
			s.Merged++
		case SourceAI:
			s.AIOnly++
		}
	}
	switch {
	case outcome.Err != nil:
		s.Failed++
	case outcome.Applied:
		s.Applied++
	}
}

// Warn records a non-fatal problem
func (s *RunSummary) Warn(err error) {
	if err == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Warnings = append(s.Warnings, err.Error())
}

// Report records a divergence the user should look at
func (s *RunSummary) Report(msg string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Reported = append(s.Reported, msg)
}

// Finish stamps the end of the run
func (s *RunSummary) Finish() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.FinishedAt = time.Now()
}

// Render writes a human readable report of the run
func (s *RunSummary) Render(out io.Writer) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintf(w, "Email\tFrom\tSubject\tLabels\tAction\tSource\tStatus\n")
	fmt.Fprintf(w, "-----\t----\t-------\t------\t------\t------\t------\n")
	for _, o := range s.Outcomes {
		if o.Skipped {
			continue
		}
		labels, action, source := "", "-", "-"
		if o.Decision != nil {
			labels = strings.Join(o.Decision.Labels, ",")
			if o.Decision.Action != ActionNone {
				action = string(o.Decision.Action)
			}
			source = string(o.Decision.Source)
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			shorten(o.EmailID, 16), shorten(o.From, 30), shorten(o.Subject, 40),
			labels, action, source, o.status(s.DryRun))
	}
	if err := w.Flush(); err != nil {
		return err
	}

	fmt.Fprintf(out, "\nClassified %d emails (%d rule-only, %d merged, %d ai-only), %d applied, %d failed, %d skipped\n",
		s.Total, s.RuleOnly, s.Merged, s.AIOnly, s.Applied, s.Failed, s.Skipped)
	if s.Corrections > 0 {
		updated := "unchanged"
		if s.ProfileUpdated {
			updated = "updated"
		}
		fmt.Fprintf(out, "Learned from %d corrections, profile %s\n", s.Corrections, updated)
	}
	for _, r := range s.Reported {
		fmt.Fprintf(out, "review: %s\n", r)
	}
	for _, warn := range s.Warnings {
		fmt.Fprintf(out, "warning: %s\n", warn)
	}
	return nil
}

func (o EmailOutcome) status(dryRun bool) string {
	switch {
	case o.Err != nil:
		return "failed: " + o.Err.Error()
	case o.Applied:
		return "applied"
	case dryRun:
		return "dry-run"
	default:
		return "pending"
	}
}

func shorten(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
