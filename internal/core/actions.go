package core

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/mikey/email-assistant/internal/labels"
	"go.uber.org/zap"
)

// UserActionKind is a manual action taken through the CLI
type UserActionKind string

const (
	UserArchive UserActionKind = "archive"
	UserDelete  UserActionKind = "delete"
	UserSpam    UserActionKind = "spam"
	UserUnspam  UserActionKind = "unspam"
	UserLabel   UserActionKind = "label"
)

// UserAction is a manual action on one email
type UserAction struct {
	Kind  UserActionKind
	Label string
}

// ApplyUserAction performs a manual action and learns from it as a one-off
// correction of the decision recorded for the email. Without a recorded
// decision the email's state before the action stands in for it.
func (s *AssistantService) ApplyUserAction(ctx context.Context, id string, action UserAction) (*LearnOutcome, error) {
	before, err := s.provider.Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get email %s: %w", id, err)
	}

	if err := s.performUserAction(ctx, id, action); err != nil {
		return nil, &ProviderError{Op: string(action.Kind), EmailID: id, Err: err}
	}
	s.logger.Info("Applied user action",
		zap.String("email_id", id),
		zap.String("action", string(action.Kind)))

	observed := Observe(before, s.labels)
	decision := Decision{EmailID: id, Labels: observed.Labels, Action: observed.Action, NeedsReply: observed.NeedsReply}
	if rec, err := s.store.Get(ctx, id); err == nil {
		decision = rec.Decision
	} else if !errors.Is(err, ErrNotFound) {
		s.logger.Warn("Failed to read recorded decision", zap.String("email_id", id), zap.Error(err))
	}

	switch action.Kind {
	case UserArchive:
		observed.Action = ActionArchive
	case UserDelete:
		observed.Action = ActionDelete
	case UserSpam:
		observed.Action = ActionSpam
	case UserUnspam:
		observed.Action = ActionNone
	case UserLabel:
		if !labels.Has(observed.Labels, action.Label) {
			observed.Labels = append(observed.Labels, action.Label)
		}
	}

	if s.opts.DryRun {
		return &LearnOutcome{}, nil
	}

	profile, _, err := s.loadProfile()
	if err != nil {
		return nil, err
	}
	correction := Correction{
		EmailID:  id,
		From:     before.From,
		Subject:  before.Subject,
		Decision: decision,
		Actual:   observed,
	}
	outcome, err := s.learner.Learn(ctx, []Correction{correction}, profile)
	if err != nil {
		return nil, err
	}
	s.rebase(ctx, []Correction{correction})
	return outcome, nil
}

func (s *AssistantService) performUserAction(ctx context.Context, id string, action UserAction) error {
	if s.opts.DryRun {
		return nil
	}
	switch action.Kind {
	case UserArchive:
		return s.provider.Archive(ctx, id)
	case UserDelete:
		return s.provider.Delete(ctx, id)
	case UserSpam:
		return s.provider.MarkSpam(ctx, id)
	case UserUnspam:
		return s.provider.Unspam(ctx, id)
	case UserLabel:
		if strings.TrimSpace(action.Label) == "" {
			return fmt.Errorf("label action without a name")
		}
		return s.provider.AddLabel(ctx, id, action.Label)
	default:
		return fmt.Errorf("unknown action %q", action.Kind)
	}
}

// LabelInfo is a provider label annotated with its origin
type LabelInfo struct {
	Label
	AICreated bool
}

// Labels lists provider labels and marks the ones the AI layer introduced
func (s *AssistantService) Labels(ctx context.Context) ([]LabelInfo, error) {
	list, err := s.provider.ListLabels(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list labels: %w", err)
	}
	ai, err := s.store.AILabels(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list AI labels: %w", err)
	}

	out := make([]LabelInfo, 0, len(list))
	for _, l := range list {
		out = append(out, LabelInfo{Label: l, AICreated: !l.System && labels.Has(ai, l.Name)})
	}
	return out, nil
}

// CleanupLabels deletes AI-introduced labels that no message carries any more,
// along with their profile sections. Structured rules are left alone.
func (s *AssistantService) CleanupLabels(ctx context.Context) ([]string, error) {
	infos, err := s.Labels(ctx)
	if err != nil {
		return nil, err
	}

	var removed []string
	for _, info := range infos {
		if !info.AICreated || info.Messages > 0 {
			continue
		}
		if s.opts.DryRun {
			removed = append(removed, info.Name)
			continue
		}
		if err := s.provider.DeleteLabel(ctx, info.Name); err != nil {
			return removed, &ProviderError{Op: "delete label", EmailID: info.Name, Err: err}
		}
		if err := s.store.ForgetLabel(ctx, info.Name); err != nil {
			return removed, err
		}
		if err := s.profiles.RemoveSection(info.Name); err != nil {
			return removed, err
		}
		s.logger.Info("Removed unused label", zap.String("label", info.Name))
		removed = append(removed, info.Name)
	}
	return removed, nil
}
