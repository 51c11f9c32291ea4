package core

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/mikey/email-assistant/internal/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const defaultTestTimeout = 2 * time.Second

func TestExtractJSON(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"bare", `{"is_spam": false}`, `{"is_spam": false}`},
		{"trailing text", `{"a": {"b": 1}} and more {}`, `{"a": {"b": 1}}`},
		{"brace in string", `{"a": "}{"}`, `{"a": "}{"}`},
		{"fenced", "Here you go:\n```json\n{\"is_spam\": true}\n```\n", `{"is_spam": true}`},
		{"embedded", `Sure! {"is_spam": false} hope this helps`, `{"is_spam": false}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ExtractJSON(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	_, err := ExtractJSON("no json here")
	assert.Error(t, err)
}

func TestExtractFenced(t *testing.T) {
	assert.Equal(t, "- one\n- two", ExtractFenced("Update:\n```markdown\n- one\n- two\n```\nDone"))
	assert.Equal(t, "- plain", ExtractFenced("  - plain \n"))
}

func TestJudgeClassify(t *testing.T) {
	client := &fakeClient{reply: "```json\n" + `{"is_spam": false, "theme": ["finance", "Classified"], "action": ["newsletters", "Needs-Reply", "IMPORTANT"], "archive": true, "delete": false, "confidence": 0.8}` + "\n```"}
	email := testEmail()
	email.Body = strings.Repeat("x", 5000)

	s, err := testJudge(client).Classify(context.Background(), email, "## Spam Patterns\n- lottery")
	require.NoError(t, err)

	assert.Equal(t, []string{"Finance", "Newsletters"}, s.Labels)
	assert.Equal(t, ActionArchive, s.Action)
	assert.True(t, s.NeedsReply)
	require.NotNil(t, s.Confidence)
	assert.InDelta(t, 0.8, *s.Confidence, 1e-9)
	assert.Equal(t, "fake-model", s.Model)

	require.Len(t, client.prompts, 1)
	prompt := client.prompts[0]
	assert.Contains(t, prompt, "- lottery")
	assert.Contains(t, prompt, "Your Invoice #1234")
	assert.NotContains(t, prompt, strings.Repeat("x", 1001))
}

func TestJudgeTerminalPriority(t *testing.T) {
	tests := []struct {
		reply string
		want  ActionKind
	}{
		{`{"is_spam": true, "archive": true, "delete": true}`, ActionSpam},
		{`{"is_spam": false, "archive": true, "delete": true}`, ActionDelete},
		{`{"is_spam": false, "archive": true}`, ActionArchive},
		{`{"is_spam": false, "labels": ["Work"]}`, ActionNone},
	}
	for _, tt := range tests {
		s, err := testJudge(&fakeClient{reply: tt.reply}).Classify(context.Background(), testEmail(), "")
		require.NoError(t, err)
		assert.Equal(t, tt.want, s.Action, tt.reply)
	}
}

func TestJudgeFailures(t *testing.T) {
	tests := []struct {
		name   string
		client *fakeClient
		kind   error
	}{
		{"unavailable", &fakeClient{err: errors.New("connection refused")}, ErrAdapterUnavailable},
		{"malformed text", &fakeClient{reply: "I cannot classify this"}, ErrMalformedResponse},
		{"malformed shape", &fakeClient{reply: `{"labels": "Work"}`}, ErrMalformedResponse},
		{"missing is_spam", &fakeClient{reply: `{"theme": ["Work"]}`}, ErrMalformedResponse},
		{"timeout", &fakeClient{fn: func(ctx context.Context, _ string) (string, error) {
			<-ctx.Done()
			return "", ctx.Err()
		}}, ErrTimeout},
		{"passthrough", &fakeClient{err: &AdapterError{Kind: ErrTimeout}}, ErrTimeout},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			judge := NewJudge(tt.client, utils.NewTextProcessor(zap.NewNop()), testFilter(), 50*time.Millisecond, 1000, zap.NewNop())
			s, err := judge.Classify(context.Background(), testEmail(), "")
			assert.Nil(t, s)
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.kind)

			var adapterErr *AdapterError
			assert.True(t, errors.As(err, &adapterErr))
		})
	}
}

func TestJudgeInFlightCallSurvivesCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	client := &fakeClient{fn: func(callCtx context.Context, _ string) (string, error) {
		cancel()
		select {
		case <-callCtx.Done():
			return "", callCtx.Err()
		case <-time.After(20 * time.Millisecond):
			return `{"is_spam": false, "theme": ["Work"]}`, nil
		}
	}}

	s, err := testJudge(client).Classify(ctx, testEmail(), "")
	require.NoError(t, err)
	assert.Equal(t, []string{"Work"}, s.Labels)
}
