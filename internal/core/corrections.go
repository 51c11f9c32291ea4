package core

import (
	"context"
	"errors"

	"github.com/mikey/email-assistant/internal/labels"
	"go.uber.org/zap"
)

// Observe derives the state a user left an email in from its provider labels.
// Spam and trash win over the inbox check; a message outside the inbox is
// archived.
func Observe(email *Email, filter *labels.Filter) ObservedState {
	state := ObservedState{
		Labels:     filter.UserLabels(email.Labels),
		NeedsReply: email.NeedsReply,
	}
	for _, l := range email.Labels {
		if filter.IsNeedsReply(l) {
			state.NeedsReply = true
		}
	}

	switch {
	case labels.Has(email.Labels, "SPAM"):
		state.Action = ActionSpam
	case labels.Has(email.Labels, "TRASH"):
		state.Action = ActionDelete
	case !labels.Has(email.Labels, "INBOX"):
		state.Action = ActionArchive
	}
	return state
}

// Baseline returns the user's final state as a decision, so later changes
// are measured against it instead of the original classification
func (c Correction) Baseline() Decision {
	d := Decision{
		EmailID:    c.EmailID,
		Labels:     append([]string{}, c.Actual.Labels...),
		Action:     c.Actual.Action,
		NeedsReply: c.Actual.NeedsReply,
		Source:     c.Decision.Source,
	}
	for _, l := range c.Decision.RuleLabels {
		if labels.Has(d.Labels, l) {
			d.RuleLabels = append(d.RuleLabels, l)
		}
	}
	if c.Decision.Action == d.Action {
		d.ActionSource = c.Decision.ActionSource
	}
	return d
}

// CorrectionDetector compares recorded decisions with what the provider shows
type CorrectionDetector struct {
	provider Provider
	store    DecisionStore
	labels   *labels.Filter
	logger   *zap.Logger
}

// NewCorrectionDetector creates a new correction detector
func NewCorrectionDetector(provider Provider, store DecisionStore, filter *labels.Filter, logger *zap.Logger) *CorrectionDetector {
	return &CorrectionDetector{
		provider: provider,
		store:    store,
		labels:   filter,
		logger:   logger,
	}
}

// Detect returns a correction for every recorded decision the user has since
// changed. Records of messages that no longer exist are dropped. Records that
// could not be checked are kept and returned as warnings.
func (d *CorrectionDetector) Detect(ctx context.Context) ([]Correction, []error) {
	records, err := d.store.List(ctx)
	if err != nil {
		return nil, []error{err}
	}

	var corrections []Correction
	var warnings []error
	for _, rec := range records {
		if ctx.Err() != nil {
			warnings = append(warnings, ctx.Err())
			break
		}

		email, err := d.provider.Get(ctx, rec.EmailID)
		if errors.Is(err, ErrNotFound) {
			d.logger.Debug("Dropping decision for removed email", zap.String("email_id", rec.EmailID))
			if err := d.store.Delete(ctx, rec.EmailID); err != nil {
				warnings = append(warnings, err)
			}
			continue
		}
		if err != nil {
			warnings = append(warnings, &ProviderError{Op: "get", EmailID: rec.EmailID, Err: err})
			continue
		}

		c := Correction{
			EmailID:  rec.EmailID,
			From:     rec.From,
			Subject:  rec.Subject,
			Decision: rec.Decision,
			Actual:   Observe(email, d.labels),
		}
		if len(Diverge(c, d.labels)) > 0 {
			corrections = append(corrections, c)
		}
	}

	d.logger.Info("Checked recorded decisions",
		zap.Int("records", len(records)),
		zap.Int("corrections", len(corrections)))
	return corrections, warnings
}
