package core

import (
	"time"
)

// Email represents one message as seen by the classifier. It is a read-only
// snapshot owned by the provider.
type Email struct {
	ID         string
	From       string
	To         []string
	Subject    string
	Body       string
	Labels     []string
	NeedsReply bool
}

// Field names an Email attribute a Condition can inspect
type Field string

const (
	FieldFrom    Field = "from"
	FieldTo      Field = "to"
	FieldSubject Field = "subject"
	FieldBody    Field = "body"
	FieldLabels  Field = "labels"
)

// Operator is the comparison a Condition applies to a field value
type Operator string

const (
	OpContains Operator = "contains"
	OpEquals   Operator = "equals"
	OpMatches  Operator = "matches"
)

// Condition is a predicate over one field, optionally combined with a nested
// condition through And or Or. Trees are decoded from rule files and cannot
// reference themselves.
type Condition struct {
	Field Field
	Op    Operator
	Value string
	And   *Condition
	Or    *Condition

	// AndFlag holds the legacy string form of "and" (e.g. "archive"), which
	// depended on the AI outcome and is no longer evaluated.
	AndFlag string
}

// ActionKind is what a rule or a decision does with an email
type ActionKind string

const (
	ActionNone    ActionKind = ""
	ActionLabel   ActionKind = "label"
	ActionArchive ActionKind = "archive"
	ActionDelete  ActionKind = "delete"
	ActionSpam    ActionKind = "spam"
)

// IsTerminal reports whether the action moves the email out of the inbox.
// At most one terminal action applies per email.
func (k ActionKind) IsTerminal() bool {
	return k == ActionArchive || k == ActionDelete || k == ActionSpam
}

// Action is a rule's effect
type Action struct {
	Kind  ActionKind
	Label string
}

// Rule is a user-authored, deterministic classification rule. Rules are
// ordered and the order is significant.
type Rule struct {
	Name        string
	Description string
	Condition   Condition
	Action      Action
	// Source is the rule file the rule was loaded from
	Source string
}

// Profile is the free-text guidance plus the ordered rules, loaded once per run
type Profile struct {
	Text  string
	Rules []Rule
	// Warnings holds non-fatal load problems, such as corrupt rule files
	Warnings []error
}

// Source tells which layer produced a decision
type Source string

const (
	SourceRule   Source = "rule"
	SourceAI     Source = "ai"
	SourceMerged Source = "merged"
)

// Suggestion is the AI layer's advisory classification
type Suggestion struct {
	Labels     []string
	Action     ActionKind
	NeedsReply bool
	Confidence *float64
	Model      string
}

// RuleResult is the outcome of evaluating one rule against one email
type RuleResult struct {
	Rule    Rule
	Matched bool
}

// Decision is the resolved outcome for one email, handed to the provider
type Decision struct {
	EmailID string
	Labels  []string
	Action  ActionKind
	// NeedsReply is copied from the AI suggestion
	NeedsReply bool
	Source     Source

	// RuleLabels are the labels contributed by matched rules
	RuleLabels []string
	// ActionSource is the layer that supplied Action, empty when there is none
	ActionSource Source
	MatchedRules []string
	Confidence   *float64
}

// DecisionRecord is a decision kept between runs so corrections can be detected
type DecisionRecord struct {
	Decision
	From       string
	Subject    string
	RecordedAt time.Time
	ExpiresAt  time.Time
}

// ObservedState is what the provider currently shows for an email
type ObservedState struct {
	Labels     []string
	Action     ActionKind
	NeedsReply bool
}

// Correction records a divergence between a recorded decision and the state
// the user left the email in
type Correction struct {
	EmailID  string
	From     string
	Subject  string
	Decision Decision
	Actual   ObservedState
}

// Label is a provider label
type Label struct {
	ID       string
	Name     string
	System   bool
	Messages int
}
