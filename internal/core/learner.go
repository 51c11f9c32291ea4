package core

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/mikey/email-assistant/internal/labels"
	"github.com/mikey/email-assistant/internal/markdown"
	"go.uber.org/zap"
)

// CorrectionsSection is the guidance section the learner maintains
const CorrectionsSection = "Learned Corrections"

// DivergenceKind names how a user's final state differs from a decision
type DivergenceKind string

const (
	// DivergenceMissingLabel is a label the user added that the decision lacked
	DivergenceMissingLabel DivergenceKind = "missing_label"
	// DivergenceUnexpectedLabel is a decided label the user removed
	DivergenceUnexpectedLabel DivergenceKind = "unexpected_label"
	DivergenceWrongAction     DivergenceKind = "wrong_action"
	DivergenceFalseNeedsReply DivergenceKind = "false_needs_reply"
	DivergenceMissedReply     DivergenceKind = "missed_needs_reply"
)

// Divergence is one difference between a decision and the observed state
type Divergence struct {
	Kind     DivergenceKind
	Label    string
	Decided  ActionKind
	Observed ActionKind
	// RuleAttributable marks divergences caused by a rule, which are
	// reported to the user rather than learned from
	RuleAttributable bool
}

// Diverge lists the divergences in a correction
func Diverge(c Correction, filter *labels.Filter) []Divergence {
	var out []Divergence
	decided := filter.UserLabels(c.Decision.Labels)

	for _, l := range decided {
		if !labels.Has(c.Actual.Labels, l) {
			out = append(out, Divergence{
				Kind:             DivergenceUnexpectedLabel,
				Label:            l,
				RuleAttributable: labels.Has(c.Decision.RuleLabels, l),
			})
		}
	}
	for _, l := range c.Actual.Labels {
		if !labels.Has(decided, l) {
			out = append(out, Divergence{Kind: DivergenceMissingLabel, Label: l})
		}
	}

	if actionDiverges(c.Decision.Action, c.Actual.Action) {
		out = append(out, Divergence{
			Kind:             DivergenceWrongAction,
			Decided:          c.Decision.Action,
			Observed:         c.Actual.Action,
			RuleAttributable: c.Decision.ActionSource == SourceRule,
		})
	}

	switch {
	case c.Decision.NeedsReply && !c.Actual.NeedsReply:
		out = append(out, Divergence{Kind: DivergenceFalseNeedsReply})
	case !c.Decision.NeedsReply && c.Actual.NeedsReply:
		out = append(out, Divergence{Kind: DivergenceMissedReply})
	}
	return out
}

// actionDiverges reports whether the user overrode a decided action. Filing
// mail away after reading it is normal use, so archiving or deleting an email
// that was left in the inbox, or deleting an archived one, is not a divergence.
// Spam changes in either direction always are.
func actionDiverges(decided, observed ActionKind) bool {
	switch {
	case decided == observed:
		return false
	case decided == ActionSpam || observed == ActionSpam:
		return true
	case decided == ActionNone:
		return false
	case decided == ActionArchive && observed == ActionDelete:
		return false
	default:
		return true
	}
}

// LearnOutcome is the result of a learning pass. Changed is false when the
// profile was left as it was.
type LearnOutcome struct {
	Changed  bool
	Profile  *Profile
	Reported []string
	Applied  []Correction
	Warnings []error
}

const learnPrompt = `The user corrected these email classifications. Propose guidance that prevents these mistakes.

Corrections:
%s

Current profile:
%s

Reply with a fenced markdown block holding only new bullet points ("- ...") for the "%s" section.
Do not repeat guidance the profile already has and do not restate the whole profile.
If no meaningful pattern can be extracted, respond with just: %s`

// Learner turns user corrections into free-text guidance
type Learner struct {
	client  ReasoningClient
	store   ProfileStore
	labels  *labels.Filter
	timeout time.Duration
	logger  *zap.Logger
}

// NewLearner creates a learner. timeout bounds the single reasoning call of a
// learning pass.
func NewLearner(client ReasoningClient, store ProfileStore, filter *labels.Filter, timeout time.Duration, logger *zap.Logger) *Learner {
	return &Learner{
		client:  client,
		store:   store,
		labels:  filter,
		timeout: timeout,
		logger:  logger,
	}
}

// Learn folds AI-attributable corrections into the corrections section of the
// profile text. Rule-attributable divergences are only reported. Existing
// guidance lines are never removed and structured rules are never touched.
// Corrections already recorded in the profile are not learned again.
func (l *Learner) Learn(ctx context.Context, corrections []Correction, profile *Profile) (*LearnOutcome, error) {
	outcome := &LearnOutcome{Profile: profile}

	current, _ := markdown.Section(profile.Text, CorrectionsSection)
	existing := bulletSet(current)

	var pending []Correction
	var records []string
	for _, c := range corrections {
		var aiDivergences []Divergence
		for _, d := range Diverge(c, l.labels) {
			if d.RuleAttributable {
				outcome.Reported = append(outcome.Reported, describeRuleDivergence(c, d))
				continue
			}
			aiDivergences = append(aiDivergences, d)
		}
		if len(aiDivergences) == 0 {
			continue
		}
		line := describeCorrection(c, aiDivergences)
		if _, ok := existing[normalizeBullet(line)]; ok {
			continue
		}
		pending = append(pending, c)
		records = append(records, line)
	}

	if len(pending) == 0 {
		l.logger.Debug("No AI-attributable corrections to learn",
			zap.Int("corrections", len(corrections)),
			zap.Int("reported", len(outcome.Reported)))
		return outcome, nil
	}

	guidance, err := l.propose(ctx, records, profile.Text)
	if err != nil {
		l.logger.Warn("Failed to get guidance update, recording corrections only", zap.Error(err))
		outcome.Warnings = append(outcome.Warnings, fmt.Errorf("learning: %w", err))
	}

	merged, added := mergeBullets(current, append(guidance, records...))
	if added == 0 {
		return outcome, nil
	}

	if err := l.store.RewriteText(CorrectionsSection, merged); err != nil {
		return nil, fmt.Errorf("failed to write learned corrections: %w", err)
	}

	updated := *profile
	updated.Text = markdown.Replace(profile.Text, CorrectionsSection, merged)
	outcome.Profile = &updated
	outcome.Changed = true
	outcome.Applied = pending

	l.logger.Info("Learned from corrections",
		zap.Int("corrections", len(pending)),
		zap.Int("lines_added", added))
	return outcome, nil
}

// propose asks the reasoning service for new guidance lines
func (l *Learner) propose(ctx context.Context, records []string, profileText string) ([]string, error) {
	callCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), l.timeout)
	defer cancel()

	prompt := fmt.Sprintf(learnPrompt, strings.Join(records, "\n"), profileText, CorrectionsSection, NoUpdateMarker)
	reply, err := l.client.Complete(callCtx, prompt)
	if err != nil {
		return nil, classifyCallError(callCtx, err)
	}
	if strings.Contains(reply, NoUpdateMarker) {
		return nil, nil
	}

	var lines []string
	for _, line := range strings.Split(ExtractFenced(reply), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if !strings.HasPrefix(line, "- ") {
			line = "- " + strings.TrimLeft(line, "-* ")
		}
		lines = append(lines, line)
	}
	return lines, nil
}

// mergeBullets appends lines missing from body and reports how many were added
func mergeBullets(body string, lines []string) (string, int) {
	seen := bulletSet(body)
	out := strings.Trim(body, "\n")
	added := 0
	for _, line := range lines {
		key := normalizeBullet(line)
		if key == "" {
			continue
		}
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		if out != "" {
			out += "\n"
		}
		out += line
		added++
	}
	return out, added
}

func bulletSet(body string) map[string]struct{} {
	set := make(map[string]struct{})
	for _, line := range strings.Split(body, "\n") {
		if key := normalizeBullet(line); key != "" {
			set[key] = struct{}{}
		}
	}
	return set
}

func normalizeBullet(line string) string {
	line = strings.TrimSpace(line)
	line = strings.TrimSpace(strings.TrimLeft(line, "-*"))
	return strings.ToLower(strings.Join(strings.Fields(line), " "))
}

func describeCorrection(c Correction, divergences []Divergence) string {
	var parts []string
	var removed, added []string
	for _, d := range divergences {
		switch d.Kind {
		case DivergenceUnexpectedLabel:
			removed = append(removed, d.Label)
		case DivergenceMissingLabel:
			added = append(added, d.Label)
		case DivergenceWrongAction:
			parts = append(parts, fmt.Sprintf("action should be %s, not %s", actionName(d.Observed), actionName(d.Decided)))
		case DivergenceFalseNeedsReply:
			parts = append(parts, "does not need a reply")
		case DivergenceMissedReply:
			parts = append(parts, "needs a reply")
		}
	}
	if len(added) > 0 {
		parts = append([]string{"should be labeled " + strings.Join(added, ", ")}, parts...)
	}
	if len(removed) > 0 {
		parts = append([]string{"should not be labeled " + strings.Join(removed, ", ")}, parts...)
	}
	return fmt.Sprintf("- Email from %s (subject %q) %s", c.From, c.Subject, strings.Join(parts, "; "))
}

func describeRuleDivergence(c Correction, d Divergence) string {
	rules := strings.Join(c.Decision.MatchedRules, ", ")
	switch d.Kind {
	case DivergenceUnexpectedLabel:
		return fmt.Sprintf("label %q set by rule (%s) was removed from email from %s (subject %q)", d.Label, rules, c.From, c.Subject)
	default:
		return fmt.Sprintf("action %s set by rule (%s) was changed to %s for email from %s (subject %q)",
			actionName(d.Decided), rules, actionName(d.Observed), c.From, c.Subject)
	}
}

func actionName(k ActionKind) string {
	if k == ActionNone {
		return "inbox"
	}
	return string(k)
}
