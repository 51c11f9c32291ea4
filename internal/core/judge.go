package core

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mikey/email-assistant/internal/labels"
	"github.com/mikey/email-assistant/internal/utils"
	"go.uber.org/zap"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// judgment is the JSON object the model is asked to return
type judgment struct {
	IsSpam     *bool    `json:"is_spam"`
	Theme      []string `json:"theme"`
	Action     []string `json:"action"`
	Labels     []string `json:"labels"`
	Archive    bool     `json:"archive"`
	Delete     bool     `json:"delete"`
	NeedsReply bool     `json:"needs_reply"`
	Confidence *float64 `json:"confidence"`
}

const classifyPrompt = `You are an email classifier. Analyze this email and assign appropriate labels.

<profile>
%s
</profile>

<email>
From: %s
To: %s
Subject: %s
Body: %s
</email>

Classify this email:
- is_spam: true ONLY if clearly malicious/scam/phishing, false for newsletters and promotions
- theme: 1-2 labels describing what the email is about. Examples: "Receipts", "Bills", "Finance", "Health", "Shopping", "Travel", "Work", "Personal", "Social", "Security", "Shipping", "Updates"
- action: 0+ labels for what to do. Options:
  - "Newsletters" - regular subscription content
  - "Promotional" - ads, sales, marketing
  - "%s" - expects a response (questions, requests, invitations)
  - "Priority" - requires attention today
  - "Urgent" - time-sensitive, security alerts are always Urgent
  - "FYI" - group thread, you are CC'd or just informed
- archive: true if the email does not need to stay in the inbox. NEVER archive Security emails
- delete: true if the email matches auto-delete guidance in the profile
- needs_reply: true if the sender expects a reply
- confidence: number between 0 and 1

Respond with JSON only:
{"is_spam": false, "theme": ["Finance"], "action": ["Priority"], "archive": false, "delete": false, "needs_reply": false, "confidence": 0.8}`

// Judge asks the reasoning service for an advisory classification
type Judge struct {
	client      ReasoningClient
	text        *utils.TextProcessor
	labels      *labels.Filter
	timeout     time.Duration
	maxBodySize int
	logger      *zap.Logger
}

// NewJudge creates a judge. timeout bounds every single call; maxBodySize is
// the number of body characters sent with the prompt.
func NewJudge(
	client ReasoningClient,
	text *utils.TextProcessor,
	filter *labels.Filter,
	timeout time.Duration,
	maxBodySize int,
	logger *zap.Logger,
) *Judge {
	return &Judge{
		client:      client,
		text:        text,
		labels:      filter,
		timeout:     timeout,
		maxBodySize: maxBodySize,
		logger:      logger,
	}
}

// Prompt renders the classification prompt for an email
func (j *Judge) Prompt(email *Email, profileText string) string {
	return fmt.Sprintf(classifyPrompt,
		strings.TrimSpace(profileText),
		email.From,
		strings.Join(email.To, ", "),
		email.Subject,
		j.text.ProcessText(email.Body, j.maxBodySize),
		j.labels.NeedsReplyLabel(),
	)
}

// Classify returns the model's suggestion for an email. Failures are
// *AdapterError values of kind ErrAdapterUnavailable, ErrTimeout or
// ErrMalformedResponse.
//
// The call is detached from ctx cancellation so an in-flight request can
// finish; it is bounded by the per-call timeout instead.
func (j *Judge) Classify(ctx context.Context, email *Email, profileText string) (*Suggestion, error) {
	callCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), j.timeout)
	defer cancel()

	start := time.Now()
	reply, err := j.client.Complete(callCtx, j.Prompt(email, profileText))
	if err != nil {
		return nil, classifyCallError(callCtx, err)
	}

	j.logger.Debug("Received classification",
		zap.String("email_id", email.ID),
		zap.String("model", j.client.Name()),
		zap.Duration("elapsed", time.Since(start)))

	suggestion, err := j.parse(reply)
	if err != nil {
		return nil, &AdapterError{Kind: ErrMalformedResponse, Err: err}
	}
	suggestion.Model = j.client.Name()
	return suggestion, nil
}

func (j *Judge) parse(reply string) (*Suggestion, error) {
	raw, err := ExtractJSON(reply)
	if err != nil {
		return nil, err
	}

	var resp judgment
	if err := json.Unmarshal([]byte(raw), &resp); err != nil {
		return nil, fmt.Errorf("failed to parse classification JSON: %w", err)
	}
	if resp.IsSpam == nil {
		return nil, fmt.Errorf("classification has no is_spam field")
	}

	s := &Suggestion{NeedsReply: resp.NeedsReply}
	if resp.Confidence != nil && *resp.Confidence >= 0 && *resp.Confidence <= 1 {
		s.Confidence = resp.Confidence
	}

	// Casers keep state and are not safe for concurrent use
	caser := cases.Title(language.Und, cases.NoLower)
	set := newLabelSet()
	for _, group := range [][]string{resp.Theme, resp.Action, resp.Labels} {
		for _, l := range group {
			l = strings.TrimSpace(l)
			switch {
			case j.labels.IsNeedsReply(l):
				s.NeedsReply = true
			case j.labels.IsSystem(l):
			default:
				set.add(caser.String(l))
			}
		}
	}
	s.Labels = set.items

	switch {
	case *resp.IsSpam:
		s.Action = ActionSpam
	case resp.Delete:
		s.Action = ActionDelete
	case resp.Archive:
		s.Action = ActionArchive
	}
	return s, nil
}

func classifyCallError(callCtx context.Context, err error) error {
	var adapterErr *AdapterError
	if errors.As(err, &adapterErr) {
		return adapterErr
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(callCtx.Err(), context.DeadlineExceeded) {
		return &AdapterError{Kind: ErrTimeout, Err: err}
	}
	return &AdapterError{Kind: ErrAdapterUnavailable, Err: err}
}
