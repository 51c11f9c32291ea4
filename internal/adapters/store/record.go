package store

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/mikey/email-assistant/internal/core"
)

// storedDecision is the persisted form of a decision
type storedDecision struct {
	Labels       []string `json:"labels,omitempty"`
	Action       string   `json:"action,omitempty"`
	NeedsReply   bool     `json:"needs_reply,omitempty"`
	Source       string   `json:"source"`
	RuleLabels   []string `json:"rule_labels,omitempty"`
	ActionSource string   `json:"action_source,omitempty"`
	MatchedRules []string `json:"matched_rules,omitempty"`
	Confidence   *float64 `json:"confidence,omitempty"`
}

// decisionRow is one row of the decisions table. Times are unix seconds so
// both SQL dialects compare them the same way.
type decisionRow struct {
	EmailID    string `db:"email_id"`
	From       string `db:"from_addr"`
	Subject    string `db:"subject"`
	Decision   string `db:"decision"`
	RecordedAt int64  `db:"recorded_at"`
	ExpiresAt  int64  `db:"expires_at"`
}

func encodeDecision(d core.Decision) (string, error) {
	data, err := json.Marshal(storedDecision{
		Labels:       d.Labels,
		Action:       string(d.Action),
		NeedsReply:   d.NeedsReply,
		Source:       string(d.Source),
		RuleLabels:   d.RuleLabels,
		ActionSource: string(d.ActionSource),
		MatchedRules: d.MatchedRules,
		Confidence:   d.Confidence,
	})
	if err != nil {
		return "", fmt.Errorf("failed to encode decision: %w", err)
	}
	return string(data), nil
}

func decodeDecision(emailID, data string) (core.Decision, error) {
	var s storedDecision
	if err := json.Unmarshal([]byte(data), &s); err != nil {
		return core.Decision{}, fmt.Errorf("failed to decode decision for %s: %w", emailID, err)
	}
	return core.Decision{
		EmailID:      emailID,
		Labels:       s.Labels,
		Action:       core.ActionKind(s.Action),
		NeedsReply:   s.NeedsReply,
		Source:       core.Source(s.Source),
		RuleLabels:   s.RuleLabels,
		ActionSource: core.Source(s.ActionSource),
		MatchedRules: s.MatchedRules,
		Confidence:   s.Confidence,
	}, nil
}

func toRow(r *core.DecisionRecord) (*decisionRow, error) {
	data, err := encodeDecision(r.Decision)
	if err != nil {
		return nil, err
	}
	return &decisionRow{
		EmailID:    r.EmailID,
		From:       r.From,
		Subject:    r.Subject,
		Decision:   data,
		RecordedAt: unixOrZero(r.RecordedAt),
		ExpiresAt:  unixOrZero(r.ExpiresAt),
	}, nil
}

func fromRow(row *decisionRow) (*core.DecisionRecord, error) {
	d, err := decodeDecision(row.EmailID, row.Decision)
	if err != nil {
		return nil, err
	}
	return &core.DecisionRecord{
		Decision:   d,
		From:       row.From,
		Subject:    row.Subject,
		RecordedAt: timeOrZero(row.RecordedAt),
		ExpiresAt:  timeOrZero(row.ExpiresAt),
	}, nil
}

// expired reports whether a record has passed its expiry. A zero expiry never
// expires.
func expired(r *core.DecisionRecord, now time.Time) bool {
	return !r.ExpiresAt.IsZero() && !now.Before(r.ExpiresAt)
}

// unixOrZero maps the zero time to 0, which the store reads as "no expiry"
func unixOrZero(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.Unix()
}

func timeOrZero(sec int64) time.Time {
	if sec == 0 {
		return time.Time{}
	}
	return time.Unix(sec, 0)
}

func foldKey(s string) string {
	return strings.ToLower(s)
}
