package core

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/mikey/email-assistant/internal/labels"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// ServiceOptions tunes a classification run
type ServiceOptions struct {
	Concurrency int
	DryRun      bool
	Retention   time.Duration
}

// AssistantService runs classification passes and user actions against a
// mailbox
type AssistantService struct {
	profiles ProfileStore
	provider Provider
	store    DecisionStore
	matcher  *Matcher
	judge    *Judge
	learner  *Learner
	detector *CorrectionDetector
	notifier SummaryNotifier
	labels   *labels.Filter
	opts     ServiceOptions
	logger   *zap.Logger
}

// NewAssistantService creates a new assistant service. notifier may be nil.
func NewAssistantService(
	profiles ProfileStore,
	provider Provider,
	store DecisionStore,
	judge *Judge,
	learner *Learner,
	notifier SummaryNotifier,
	filter *labels.Filter,
	opts ServiceOptions,
	logger *zap.Logger,
) *AssistantService {
	if opts.Concurrency <= 0 {
		opts.Concurrency = 1
	}
	return &AssistantService{
		profiles: profiles,
		provider: provider,
		store:    store,
		matcher:  NewMatcher(),
		judge:    judge,
		learner:  learner,
		detector: NewCorrectionDetector(provider, store, filter, logger),
		notifier: notifier,
		labels:   filter,
		opts:     opts,
		logger:   logger,
	}
}

// Scan learns from corrections to earlier decisions and classifies up to
// limit inbox emails. Per-email failures are isolated and reported in the
// summary; an error is returned only when the run cannot proceed at all.
func (s *AssistantService) Scan(ctx context.Context, limit int) (*RunSummary, error) {
	summary := NewRunSummary(uuid.NewString(), s.opts.DryRun)
	logger := s.logger.With(zap.String("run_id", summary.RunID))

	profile, warnings, err := s.loadProfile()
	if err != nil {
		return nil, err
	}
	for _, w := range warnings {
		summary.Warn(w)
	}

	corrections, unresolved := s.detector.Detect(ctx)
	for _, w := range unresolved {
		summary.Warn(fmt.Errorf("unresolved correction: %w", w))
	}

	emails, err := s.provider.Fetch(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch emails: %w", err)
	}
	logger.Info("Fetched emails", zap.Int("count", len(emails)), zap.Int("limit", limit))

	var g errgroup.Group
	g.SetLimit(s.opts.Concurrency)
	for _, email := range emails {
		email := email
		if ctx.Err() != nil {
			summary.Record(EmailOutcome{EmailID: email.ID, From: email.From, Subject: email.Subject, Skipped: true})
			continue
		}
		if _, err := s.store.Get(ctx, email.ID); err == nil {
			logger.Debug("Skipping already classified email", zap.String("email_id", email.ID))
			summary.Record(EmailOutcome{EmailID: email.ID, From: email.From, Subject: email.Subject, Skipped: true})
			continue
		}

		g.Go(func() error {
			if ctx.Err() != nil {
				summary.Record(EmailOutcome{EmailID: email.ID, From: email.From, Subject: email.Subject, Skipped: true})
				return nil
			}
			summary.Record(s.classifyAndApply(ctx, profile, email, summary))
			return nil
		})
	}
	_ = g.Wait()

	if ctx.Err() != nil {
		summary.Warn(fmt.Errorf("run interrupted, learning skipped: %w", ctx.Err()))
	} else {
		s.learn(ctx, corrections, profile, summary)
	}

	if err := s.store.Cleanup(context.WithoutCancel(ctx)); err != nil {
		summary.Warn(fmt.Errorf("decision store cleanup: %w", err))
	}

	summary.Finish()
	logger.Info("Scan finished",
		zap.Int("total", summary.Total),
		zap.Int("rule_only", summary.RuleOnly),
		zap.Int("merged", summary.Merged),
		zap.Int("ai_only", summary.AIOnly),
		zap.Int("applied", summary.Applied),
		zap.Int("failed", summary.Failed),
		zap.Int("skipped", summary.Skipped),
		zap.Int("warnings", len(summary.Warnings)))

	if s.notifier != nil && summary.Total > 0 {
		if err := s.notifier.Notify(context.WithoutCancel(ctx), summary); err != nil {
			logger.Warn("Failed to send run summary", zap.Error(err))
		}
	}
	return summary, nil
}

// Learn feeds corrections to earlier decisions into the profile without
// classifying new mail
func (s *AssistantService) Learn(ctx context.Context) (*RunSummary, error) {
	summary := NewRunSummary(uuid.NewString(), s.opts.DryRun)

	profile, warnings, err := s.loadProfile()
	if err != nil {
		return nil, err
	}
	for _, w := range warnings {
		summary.Warn(w)
	}

	corrections, unresolved := s.detector.Detect(ctx)
	for _, w := range unresolved {
		summary.Warn(fmt.Errorf("unresolved correction: %w", w))
	}
	s.learn(ctx, corrections, profile, summary)

	summary.Finish()
	return summary, nil
}

// Classify computes the decision for one email without applying or recording it
func (s *AssistantService) Classify(ctx context.Context, email *Email) (*Decision, []error, error) {
	profile, warnings, err := s.loadProfile()
	if err != nil {
		return nil, nil, err
	}
	decision, aiErr := s.decide(ctx, profile, email)
	if aiErr != nil {
		warnings = append(warnings, aiErr)
	}
	return &decision, warnings, nil
}

// loadProfile reads the profile and checks every rule once, so broken rules
// are reported per run rather than per email
func (s *AssistantService) loadProfile() (*Profile, []error, error) {
	profile, err := s.profiles.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load profile: %w", err)
	}
	warnings := append([]error{}, profile.Warnings...)
	for _, r := range profile.Rules {
		if err := s.matcher.Validate(r); err != nil {
			warnings = append(warnings, err)
		}
	}
	return profile, warnings, nil
}

// decide runs both layers for one email. No AI call is started once ctx is
// cancelled. A non-nil error means the decision fell back to rules only.
func (s *AssistantService) decide(ctx context.Context, profile *Profile, email *Email) (Decision, error) {
	results, _ := s.matcher.Evaluate(email, profile.Rules)

	var suggestion *Suggestion
	var aiErr error
	if err := ctx.Err(); err != nil {
		aiErr = err
	} else {
		suggestion, aiErr = s.judge.Classify(ctx, email, profile.Text)
	}
	if aiErr != nil {
		s.logger.Warn("AI judgment failed, using rules only",
			zap.String("email_id", email.ID),
			zap.Error(aiErr))
		return Resolve(email, results, suggestion, aiErr), fmt.Errorf("email %s: %w", email.ID, aiErr)
	}
	return Resolve(email, results, suggestion, nil), nil
}

func (s *AssistantService) classifyAndApply(ctx context.Context, profile *Profile, email *Email, summary *RunSummary) EmailOutcome {
	decision, aiErr := s.decide(ctx, profile, email)
	if aiErr != nil {
		summary.Warn(aiErr)
	}

	outcome := EmailOutcome{EmailID: email.ID, From: email.From, Subject: email.Subject, Decision: &decision}
	if s.opts.DryRun {
		return outcome
	}

	// Applying is one unit of work and is not cut short by cancellation
	applyCtx := context.WithoutCancel(ctx)
	if err := s.provider.Apply(applyCtx, email.ID, &decision); err != nil {
		var provErr *ProviderError
		if !errors.As(err, &provErr) {
			err = &ProviderError{Op: "apply", EmailID: email.ID, Err: err}
		}
		s.logger.Error("Failed to apply decision", zap.String("email_id", email.ID), zap.Error(err))
		summary.Warn(err)
		outcome.Err = err
		return outcome
	}
	outcome.Applied = true

	// A rule-only fallback is not recorded, so the email is judged again
	// once the reasoning service is back
	if aiErr != nil {
		return outcome
	}

	now := time.Now()
	record := &DecisionRecord{
		Decision:   decision,
		From:       email.From,
		Subject:    email.Subject,
		RecordedAt: now,
		ExpiresAt:  s.expiry(now),
	}
	if err := s.store.Put(applyCtx, record); err != nil {
		summary.Warn(fmt.Errorf("email %s: failed to record decision: %w", email.ID, err))
	}
	if ai := aiLabels(&decision); len(ai) > 0 {
		if err := s.store.RememberLabels(applyCtx, ai); err != nil {
			summary.Warn(fmt.Errorf("email %s: failed to remember labels: %w", email.ID, err))
		}
	}
	return outcome
}

func (s *AssistantService) learn(ctx context.Context, corrections []Correction, profile *Profile, summary *RunSummary) {
	summary.Corrections = len(corrections)
	if len(corrections) == 0 {
		return
	}
	if s.opts.DryRun {
		for _, c := range corrections {
			summary.Report(describeCorrection(c, Diverge(c, s.labels)))
		}
		return
	}

	outcome, err := s.learner.Learn(ctx, corrections, profile)
	if err != nil {
		// Records are kept so the corrections are seen again next run
		summary.Warn(err)
		return
	}
	summary.ProfileUpdated = outcome.Changed
	for _, r := range outcome.Reported {
		summary.Report(r)
	}
	for _, w := range outcome.Warnings {
		summary.Warn(w)
	}

	s.rebase(ctx, corrections)
}

// rebase replaces consumed corrections with the user's final state, so each
// correction is learned once and the email is not classified again
func (s *AssistantService) rebase(ctx context.Context, corrections []Correction) {
	now := time.Now()
	for _, c := range corrections {
		record := &DecisionRecord{
			Decision:   c.Baseline(),
			From:       c.From,
			Subject:    c.Subject,
			RecordedAt: now,
			ExpiresAt:  s.expiry(now),
		}
		if err := s.store.Put(ctx, record); err != nil {
			s.logger.Warn("Failed to rebase recorded decision", zap.String("email_id", c.EmailID), zap.Error(err))
		}
	}
}

// expiry returns when a record made at now expires. A non-positive retention
// keeps records forever.
func (s *AssistantService) expiry(now time.Time) time.Time {
	if s.opts.Retention <= 0 {
		return time.Time{}
	}
	return now.Add(s.opts.Retention)
}

// aiLabels returns the decision labels no rule contributed
func aiLabels(d *Decision) []string {
	var out []string
	for _, l := range d.Labels {
		if !labels.Has(d.RuleLabels, l) {
			out = append(out, l)
		}
	}
	return out
}
