package core

import (
	"fmt"
	"regexp"
	"strings"
	"sync"
)

// Matcher evaluates rule conditions against emails. It holds no per-email
// state and is safe for concurrent use.
type Matcher struct {
	patterns sync.Map // pattern -> *regexp.Regexp or error
}

// NewMatcher creates a new rule matcher
func NewMatcher() *Matcher {
	return &Matcher{}
}

// Evaluate reports, for every rule in declared order, whether it matches the
// email. Rules that cannot be evaluated are reported unmatched and returned
// as *RuleConfigError warnings.
func (m *Matcher) Evaluate(email *Email, rules []Rule) ([]RuleResult, []error) {
	results := make([]RuleResult, 0, len(rules))
	var warnings []error

	for _, rule := range rules {
		matched, err := m.match(email, &rule.Condition)
		if err != nil {
			warnings = append(warnings, &RuleConfigError{Rule: rule.Name, Reason: err.Error()})
			matched = false
		}
		results = append(results, RuleResult{Rule: rule, Matched: matched})
	}

	return results, warnings
}

// Validate checks that a rule can be evaluated
func (m *Matcher) Validate(rule Rule) error {
	if _, err := m.match(&Email{}, &rule.Condition); err != nil {
		return &RuleConfigError{Rule: rule.Name, Reason: err.Error()}
	}
	return nil
}

func (m *Matcher) match(email *Email, c *Condition) (bool, error) {
	if c.Field == "" {
		return false, fmt.Errorf("condition has no field")
	}
	if c.AndFlag != "" {
		return false, fmt.Errorf(`legacy "and": %q depends on the AI verdict and is not supported; `+
			`remove it to apply the action on every match, or replace it with a nested condition `+
			`such as "and": {"field": "subject", "contains": "..."}`, c.AndFlag)
	}

	values, err := fieldValues(email, c.Field)
	if err != nil {
		return false, err
	}
	matched, err := m.apply(c.Op, values, c.Value)
	if err != nil {
		return false, err
	}

	// Both branches are evaluated so a broken sub-condition is always reported
	if c.And != nil {
		andMatched, err := m.match(email, c.And)
		if err != nil {
			return false, fmt.Errorf("and: %w", err)
		}
		matched = matched && andMatched
	}
	if c.Or != nil {
		orMatched, err := m.match(email, c.Or)
		if err != nil {
			return false, fmt.Errorf("or: %w", err)
		}
		matched = matched || orMatched
	}
	return matched, nil
}

// apply tests a field's values. equals must hit one value; contains and
// matches see multi-valued fields joined with ", ".
func (m *Matcher) apply(op Operator, values []string, want string) (bool, error) {
	value := strings.Join(values, ", ")
	switch op {
	case OpContains:
		return strings.Contains(value, strings.ToLower(want)), nil
	case OpEquals:
		want = strings.ToLower(strings.TrimSpace(want))
		for _, v := range values {
			if v == want {
				return true, nil
			}
		}
		return value == want, nil
	case OpMatches:
		re, err := m.compile(want)
		if err != nil {
			return false, err
		}
		return re.MatchString(value), nil
	case "":
		return false, fmt.Errorf("condition has no operator")
	default:
		return false, fmt.Errorf("unknown operator %q", op)
	}
}

func (m *Matcher) compile(pattern string) (*regexp.Regexp, error) {
	if cached, ok := m.patterns.Load(pattern); ok {
		if re, ok := cached.(*regexp.Regexp); ok {
			return re, nil
		}
		return nil, cached.(error)
	}

	re, err := regexp.Compile("(?i)" + pattern)
	if err != nil {
		err = fmt.Errorf("invalid pattern %q: %w", pattern, err)
		m.patterns.Store(pattern, err)
		return nil, err
	}
	m.patterns.Store(pattern, re)
	return re, nil
}

// fieldValues extracts the lowercased values of a field
func fieldValues(email *Email, field Field) ([]string, error) {
	var vs []string
	switch field {
	case FieldFrom:
		vs = []string{email.From}
	case FieldTo:
		vs = email.To
	case FieldSubject:
		vs = []string{email.Subject}
	case FieldBody:
		vs = []string{email.Body}
	case FieldLabels:
		vs = email.Labels
	default:
		return nil, fmt.Errorf("unknown field %q", field)
	}
	out := make([]string, len(vs))
	for i, v := range vs {
		out[i] = strings.ToLower(strings.TrimSpace(v))
	}
	return out, nil
}
