package core

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testEmail() *Email {
	return &Email{
		ID:      "m1",
		From:    "Jane Doe <jane@Example.com>",
		To:      []string{"work@example.com", "me@home.net"},
		Subject: "Your Invoice #1234",
		Body:    "Thanks for shopping with ACME.",
		Labels:  []string{"INBOX", "Receipts"},
	}
}

func leaf(field Field, op Operator, value string) Condition {
	return Condition{Field: field, Op: op, Value: value}
}

func TestMatcherOperators(t *testing.T) {
	tests := []struct {
		name string
		cond Condition
		want bool
	}{
		{"contains from", leaf(FieldFrom, OpContains, "example.com"), true},
		{"contains is case insensitive", leaf(FieldSubject, OpContains, "INVOICE"), true},
		{"contains miss", leaf(FieldBody, OpContains, "newsletter"), false},
		{"contains any recipient", leaf(FieldTo, OpContains, "me@home.net"), true},
		{"equals subject", leaf(FieldSubject, OpEquals, "your invoice #1234"), true},
		{"equals is exact", leaf(FieldSubject, OpEquals, "invoice"), false},
		{"matches pattern", leaf(FieldSubject, OpMatches, `invoice #\d+`), true},
		{"matches anchored miss", leaf(FieldSubject, OpMatches, `^invoice`), false},
		{"labels field", leaf(FieldLabels, OpContains, "receipts"), true},
		{"equals one of several recipients", leaf(FieldTo, OpEquals, "Work@Example.com"), true},
		{"equals one label", leaf(FieldLabels, OpEquals, "receipts"), true},
		{"equals needs a whole recipient", leaf(FieldTo, OpEquals, "work@example"), false},
	}

	m := NewMatcher()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rules := []Rule{{Name: tt.name, Condition: tt.cond, Action: Action{Kind: ActionArchive}}}
			results, warnings := m.Evaluate(testEmail(), rules)
			require.Empty(t, warnings)
			require.Len(t, results, 1)
			assert.Equal(t, tt.want, results[0].Matched)
		})
	}
}

func TestMatcherComposites(t *testing.T) {
	fromACME := leaf(FieldBody, OpContains, "acme")
	fromOther := leaf(FieldBody, OpContains, "globex")

	and := leaf(FieldSubject, OpContains, "invoice")
	and.And = &fromACME
	andMiss := leaf(FieldSubject, OpContains, "invoice")
	andMiss.And = &fromOther
	or := leaf(FieldSubject, OpContains, "lottery")
	or.Or = &fromACME
	orMiss := leaf(FieldSubject, OpContains, "lottery")
	orMiss.Or = &fromOther

	m := NewMatcher()
	results, warnings := m.Evaluate(testEmail(), []Rule{
		{Name: "and", Condition: and},
		{Name: "and miss", Condition: andMiss},
		{Name: "or", Condition: or},
		{Name: "or miss", Condition: orMiss},
	})
	require.Empty(t, warnings)
	assert.Equal(t, []bool{true, false, true, false}, matchedFlags(results))
}

func TestMatcherEvaluatesEveryRuleInOrder(t *testing.T) {
	rules := []Rule{
		{Name: "first", Condition: leaf(FieldFrom, OpContains, "jane"), Action: Action{Kind: ActionLabel, Label: "A"}},
		{Name: "second", Condition: leaf(FieldFrom, OpContains, "nobody")},
		{Name: "third", Condition: leaf(FieldSubject, OpContains, "invoice"), Action: Action{Kind: ActionLabel, Label: "B"}},
	}
	results, _ := NewMatcher().Evaluate(testEmail(), rules)
	require.Len(t, results, 3)
	assert.Equal(t, "first", results[0].Rule.Name)
	assert.Equal(t, "third", results[2].Rule.Name)
	assert.Equal(t, []bool{true, false, true}, matchedFlags(results))
}

func TestMatcherConfigErrors(t *testing.T) {
	nestedEmpty := leaf(FieldFrom, OpContains, "jane")
	nestedEmpty.And = &Condition{}

	rules := []Rule{
		{Name: "empty", Condition: Condition{}},
		{Name: "bad field", Condition: leaf("cc", OpContains, "x")},
		{Name: "bad op", Condition: leaf(FieldFrom, "startswith", "x")},
		{Name: "bad regex", Condition: leaf(FieldFrom, OpMatches, "(")},
		{Name: "legacy and", Condition: Condition{Field: FieldFrom, Op: OpContains, Value: "jane", AndFlag: "archive"}},
		{Name: "nested empty", Condition: nestedEmpty},
		{Name: "good", Condition: leaf(FieldFrom, OpContains, "jane")},
	}

	m := NewMatcher()
	results, warnings := m.Evaluate(testEmail(), rules)
	require.Len(t, results, len(rules))
	assert.Equal(t, []bool{false, false, false, false, false, false, true}, matchedFlags(results))
	require.Len(t, warnings, 6)

	var cfgErr *RuleConfigError
	require.True(t, errors.As(warnings[0], &cfgErr))
	assert.Equal(t, "empty", cfgErr.Rule)
	assert.Contains(t, warnings[4].Error(), `"and": {"field"`)

	// The failed pattern is cached and reported again
	_, warnings = m.Evaluate(testEmail(), rules[3:4])
	assert.Len(t, warnings, 1)
	assert.Error(t, m.Validate(rules[3]))
	assert.NoError(t, m.Validate(rules[6]))
}

func matchedFlags(results []RuleResult) []bool {
	out := make([]bool, len(results))
	for i, r := range results {
		out[i] = r.Matched
	}
	return out
}
