package core

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/mikey/email-assistant/internal/labels"
	"github.com/stretchr/testify/assert"
)

func matched(name string, action Action) RuleResult {
	return RuleResult{Rule: Rule{Name: name, Action: action}, Matched: true}
}

func unmatched(name string, action Action) RuleResult {
	return RuleResult{Rule: Rule{Name: name, Action: action}}
}

func TestResolveRuleTerminalBeatsAI(t *testing.T) {
	email := &Email{ID: "m1", To: []string{"work@example.com"}}
	rules := []Rule{{
		Name:      "Archive work emails",
		Condition: leaf(FieldTo, OpContains, "work@example.com"),
		Action:    Action{Kind: ActionDelete},
	}}
	results, _ := NewMatcher().Evaluate(email, rules)

	for _, s := range []*Suggestion{
		nil,
		{Action: ActionArchive},
		{Action: ActionSpam, Labels: []string{"Junk"}},
	} {
		d := Resolve(email, results, s, nil)
		assert.Equal(t, ActionDelete, d.Action)
		assert.Equal(t, SourceRule, d.ActionSource)
	}
}

func TestResolveArchiveRuleOverridesAIDelete(t *testing.T) {
	d := Resolve(&Email{ID: "m1"},
		[]RuleResult{matched("archive", Action{Kind: ActionArchive})},
		&Suggestion{Action: ActionDelete}, nil)
	assert.Equal(t, ActionArchive, d.Action)
	assert.Equal(t, SourceMerged, d.Source)
}

func TestResolveFirstTerminalRuleWins(t *testing.T) {
	d := Resolve(&Email{ID: "m1"}, []RuleResult{
		unmatched("spam", Action{Kind: ActionSpam}),
		matched("archive", Action{Kind: ActionArchive}),
		matched("delete", Action{Kind: ActionDelete}),
	}, nil, nil)
	assert.Equal(t, ActionArchive, d.Action)
	assert.Equal(t, []string{"archive", "delete"}, d.MatchedRules)
}

func TestResolveAIOnly(t *testing.T) {
	d := Resolve(&Email{ID: "m1"},
		[]RuleResult{unmatched("r", Action{Kind: ActionDelete})},
		&Suggestion{Labels: []string{"Newsletter"}, Action: ActionArchive}, nil)

	want := Decision{
		EmailID:      "m1",
		Labels:       []string{"Newsletter"},
		Action:       ActionArchive,
		ActionSource: SourceAI,
		Source:       SourceAI,
	}
	if diff := cmp.Diff(want, d); diff != "" {
		t.Errorf("decision mismatch (-want +got):\n%s", diff)
	}
}

func TestResolveMergedLabels(t *testing.T) {
	d := Resolve(&Email{ID: "m1"},
		[]RuleResult{matched("work", Action{Kind: ActionLabel, Label: "Work"})},
		&Suggestion{Labels: []string{"FollowUp", "work"}, NeedsReply: true}, nil)

	assert.Equal(t, []string{"Work", "FollowUp"}, d.Labels)
	assert.Equal(t, []string{"Work"}, d.RuleLabels)
	assert.Equal(t, ActionNone, d.Action)
	assert.Equal(t, SourceMerged, d.Source)
	assert.True(t, d.NeedsReply)
}

func TestResolveAIFailure(t *testing.T) {
	d := Resolve(&Email{ID: "m1"},
		[]RuleResult{matched("work", Action{Kind: ActionLabel, Label: "Work"})},
		&Suggestion{Labels: []string{"Ignored"}, Action: ActionSpam},
		&AdapterError{Kind: ErrTimeout})

	assert.Equal(t, []string{"Work"}, d.Labels)
	assert.Equal(t, ActionNone, d.Action)
	assert.Equal(t, SourceRule, d.Source)
	assert.False(t, d.NeedsReply)

	empty := Resolve(&Email{ID: "m2"}, nil, nil, &AdapterError{Kind: ErrAdapterUnavailable})
	assert.Equal(t, SourceRule, empty.Source)
	assert.Empty(t, empty.Labels)
}

var labelGen = gen.OneConstOf("Work", "Finance", "Travel", "Newsletter", "FollowUp", "Receipts", "Urgent")

var actionGen = gen.OneConstOf(ActionNone, ActionLabel, ActionArchive, ActionDelete, ActionSpam)

type ruleSpec struct {
	Matched bool
	Kind    ActionKind
	Label   string
}

func genRuleResults() gopter.Gen {
	return gen.SliceOf(gopter.CombineGens(gen.Bool(), actionGen, labelGen).Map(func(v []interface{}) ruleSpec {
		return ruleSpec{Matched: v[0].(bool), Kind: v[1].(ActionKind), Label: v[2].(string)}
	})).Map(func(specs []ruleSpec) []RuleResult {
		out := make([]RuleResult, len(specs))
		for i, s := range specs {
			a := Action{Kind: s.Kind}
			if s.Kind == ActionLabel {
				a.Label = s.Label
			}
			out[i] = RuleResult{Rule: Rule{Name: s.Label, Action: a}, Matched: s.Matched}
		}
		return out
	})
}

func TestResolveProperties(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	email := &Email{ID: "m1"}

	properties.Property("final labels contain every rule and AI label", prop.ForAll(
		func(results []RuleResult, aiLabels []string, aiAction ActionKind) bool {
			d := Resolve(email, results, &Suggestion{Labels: aiLabels, Action: aiAction}, nil)
			for _, r := range results {
				if r.Matched && r.Rule.Action.Kind == ActionLabel && !labels.Has(d.Labels, r.Rule.Action.Label) {
					return false
				}
			}
			for _, l := range aiLabels {
				if !labels.Has(d.Labels, l) {
					return false
				}
			}
			return true
		},
		genRuleResults(), gen.SliceOf(labelGen), actionGen,
	))

	properties.Property("a matched terminal rule always supplies the action", prop.ForAll(
		func(results []RuleResult, aiAction ActionKind) bool {
			d := Resolve(email, results, &Suggestion{Action: aiAction}, nil)
			for _, r := range results {
				if r.Matched && r.Rule.Action.Kind.IsTerminal() {
					return d.Action == r.Rule.Action.Kind && d.ActionSource == SourceRule
				}
			}
			return d.ActionSource != SourceRule
		},
		genRuleResults(), actionGen,
	))

	properties.Property("AI failure yields the rule-only decision", prop.ForAll(
		func(results []RuleResult, aiLabels []string, aiAction ActionKind) bool {
			failed := Resolve(email, results, &Suggestion{Labels: aiLabels, Action: aiAction, NeedsReply: true}, &AdapterError{Kind: ErrMalformedResponse})
			ruleOnly := Resolve(email, results, nil, nil)
			return failed.Source == SourceRule && cmp.Equal(failed, ruleOnly)
		},
		genRuleResults(), gen.SliceOf(labelGen), actionGen,
	))

	properties.Property("source reflects contributing layers", prop.ForAll(
		func(results []RuleResult) bool {
			anyMatched := false
			for _, r := range results {
				anyMatched = anyMatched || r.Matched
			}
			d := Resolve(email, results, &Suggestion{}, nil)
			if anyMatched {
				return d.Source == SourceMerged
			}
			return d.Source == SourceAI
		},
		genRuleResults(),
	))

	properties.TestingRun(t)
}
