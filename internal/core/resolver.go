package core

import (
	"strings"
)

// Resolve merges rule results and the AI suggestion into the final decision.
//
// Rules are authoritative: the first matched rule with a terminal action
// supplies the action, and labels of all matched rules are kept. The AI
// suggestion adds labels, copies its needs-reply flag, and supplies the
// terminal action only when no rule did. When aiErr is set or there is no
// suggestion the decision is built from rules alone and its source is rule.
func Resolve(email *Email, results []RuleResult, suggestion *Suggestion, aiErr error) Decision {
	d := Decision{EmailID: email.ID}
	labels := newLabelSet()

	for _, r := range results {
		if !r.Matched {
			continue
		}
		d.MatchedRules = append(d.MatchedRules, r.Rule.Name)

		switch {
		case r.Rule.Action.Kind == ActionLabel:
			if labels.add(r.Rule.Action.Label) {
				d.RuleLabels = append(d.RuleLabels, strings.TrimSpace(r.Rule.Action.Label))
			}
		case r.Rule.Action.Kind.IsTerminal() && d.Action == ActionNone:
			d.Action = r.Rule.Action.Kind
			d.ActionSource = SourceRule
		}
	}
	ruleFired := len(d.MatchedRules) > 0

	if aiErr != nil || suggestion == nil {
		d.Labels = labels.items
		d.Source = SourceRule
		return d
	}

	for _, l := range suggestion.Labels {
		labels.add(l)
	}
	d.NeedsReply = suggestion.NeedsReply
	if d.Action == ActionNone && suggestion.Action.IsTerminal() {
		d.Action = suggestion.Action
		d.ActionSource = SourceAI
	}
	d.Confidence = suggestion.Confidence

	d.Labels = labels.items
	if ruleFired {
		d.Source = SourceMerged
	} else {
		d.Source = SourceAI
	}
	return d
}

// labelSet keeps labels in insertion order, ignoring case for duplicates
type labelSet struct {
	seen  map[string]struct{}
	items []string
}

func newLabelSet() *labelSet {
	return &labelSet{seen: make(map[string]struct{})}
}

func (s *labelSet) add(label string) bool {
	label = strings.TrimSpace(label)
	if label == "" {
		return false
	}
	key := strings.ToLower(label)
	if _, ok := s.seen[key]; ok {
		return false
	}
	s.seen[key] = struct{}{}
	s.items = append(s.items, label)
	return true
}
