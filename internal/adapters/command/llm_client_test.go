package command

import (
	"context"
	"os/exec"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func requireShell(t *testing.T) {
	t.Helper()
	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("sh not available")
	}
}

func TestUnwrapResult(t *testing.T) {
	assert.Equal(t, `{"is_spam": false}`, unwrapResult([]byte(`{"type":"result","result":"{\"is_spam\": false}"}`)))
	assert.Equal(t, `{"is_spam": true}`, unwrapResult([]byte(`{"is_spam": true}`)))
	assert.Equal(t, "plain text\n", unwrapResult([]byte("plain text\n")))
}

func TestName(t *testing.T) {
	assert.Equal(t, "claude/haiku", NewCommandClient("/usr/bin/claude", []string{"-p", "--model", "haiku"}, zap.NewNop()).Name())
	assert.Equal(t, "llm", NewCommandClient("llm", nil, zap.NewNop()).Name())
}

func TestCompletePassesPromptOnStdin(t *testing.T) {
	requireShell(t)
	c := NewCommandClient("sh", []string{"-c", "cat"}, zap.NewNop())
	out, err := c.Complete(context.Background(), "hello prompt")
	require.NoError(t, err)
	assert.Equal(t, "hello prompt", out)
}

func TestCompleteReportsFailure(t *testing.T) {
	requireShell(t)
	c := NewCommandClient("sh", []string{"-c", "echo quota exceeded >&2; exit 3"}, zap.NewNop())
	_, err := c.Complete(context.Background(), "x")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "quota exceeded")
}

func TestCompleteHonorsDeadline(t *testing.T) {
	requireShell(t)
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	c := NewCommandClient("sh", []string{"-c", "exec sleep 5"}, zap.NewNop())
	_, err := c.Complete(ctx, "x")
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
