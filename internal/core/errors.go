package core

import (
	"errors"
	"fmt"
)

var (
	// ErrAdapterUnavailable is returned when the reasoning service cannot be reached
	ErrAdapterUnavailable = errors.New("reasoning service unavailable")
	// ErrTimeout is returned when the reasoning service does not answer in time
	ErrTimeout = errors.New("reasoning service timed out")
	// ErrMalformedResponse is returned when a reply cannot be parsed into a suggestion
	ErrMalformedResponse = errors.New("malformed reasoning response")

	// ErrNotFound is returned by providers and stores for unknown ids
	ErrNotFound = errors.New("not found")
	// ErrProfileUnusable is returned when no rule and no guidance could be loaded
	ErrProfileUnusable = errors.New("profile has no usable rules or guidance")
)

// AdapterError is a failed AI judgment. Kind is one of ErrAdapterUnavailable,
// ErrTimeout or ErrMalformedResponse.
type AdapterError struct {
	Kind error
	Err  error
}

func (e *AdapterError) Error() string {
	if e.Err == nil {
		return e.Kind.Error()
	}
	return fmt.Sprintf("%v: %v", e.Kind, e.Err)
}

// Is matches the failure kind
func (e *AdapterError) Is(target error) bool {
	return target == e.Kind
}

func (e *AdapterError) Unwrap() error {
	return e.Err
}

// ProfileCorruptError reports a rule file that could not be loaded
type ProfileCorruptError struct {
	Path string
	Err  error
}

func (e *ProfileCorruptError) Error() string {
	return fmt.Sprintf("profile corrupt: %s: %v", e.Path, e.Err)
}

func (e *ProfileCorruptError) Unwrap() error {
	return e.Err
}

// RuleConfigError reports a rule that cannot be evaluated
type RuleConfigError struct {
	Rule   string
	Reason string
}

func (e *RuleConfigError) Error() string {
	return fmt.Sprintf("rule %q skipped: %s", e.Rule, e.Reason)
}

// ProviderError reports a failed provider operation for one email
type ProviderError struct {
	Op      string
	EmailID string
	Err     error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("provider %s %s: %v", e.Op, e.EmailID, e.Err)
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}
