package core

import (
	"context"
)

// ReasoningClient sends a prompt to an external model and returns its free-form reply
type ReasoningClient interface {
	// Complete returns the model's answer to prompt
	Complete(ctx context.Context, prompt string) (string, error)

	// Name identifies the model, for logs and decisions
	Name() string
}

// Provider is the mailbox the tool classifies
type Provider interface {
	// Fetch returns up to limit inbox messages
	Fetch(ctx context.Context, limit int) ([]*Email, error)

	// Get returns the current state of one message, ErrNotFound when it is gone
	Get(ctx context.Context, id string) (*Email, error)

	// Apply executes a decision: labels first, then the terminal action
	Apply(ctx context.Context, id string, decision *Decision) error

	Archive(ctx context.Context, id string) error
	Delete(ctx context.Context, id string) error
	MarkSpam(ctx context.Context, id string) error
	Unspam(ctx context.Context, id string) error
	AddLabel(ctx context.Context, id string, label string) error
	ListLabels(ctx context.Context) ([]Label, error)
	DeleteLabel(ctx context.Context, label string) error
}

// DecisionStore keeps decisions between runs
type DecisionStore interface {
	// Get retrieves the recorded decision for an email, ErrNotFound if none
	Get(ctx context.Context, emailID string) (*DecisionRecord, error)

	// Put records a decision, replacing any previous one
	Put(ctx context.Context, record *DecisionRecord) error

	// Delete removes a recorded decision
	Delete(ctx context.Context, emailID string) error

	// List returns all live records
	List(ctx context.Context) ([]*DecisionRecord, error)

	// Cleanup removes expired records
	Cleanup(ctx context.Context) error

	// RememberLabels notes labels the AI layer introduced
	RememberLabels(ctx context.Context, labels []string) error

	// AILabels lists labels the AI layer introduced
	AILabels(ctx context.Context) ([]string, error)

	// ForgetLabel drops a label from the AI label registry
	ForgetLabel(ctx context.Context, label string) error
}

// ProfileStore owns the persisted profile
type ProfileStore interface {
	Load() (*Profile, error)
	Save(profile *Profile) error
	AppendRule(rule Rule) error
	RewriteText(sectionID string, newText string) error
	RemoveSection(sectionID string) error
}

// SummaryNotifier delivers a run summary somewhere outside the terminal
type SummaryNotifier interface {
	Notify(ctx context.Context, summary *RunSummary) error
}
