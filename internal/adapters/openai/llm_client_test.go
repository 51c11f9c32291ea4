package openai

import (
	"context"
	"errors"
	"testing"

	"github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type stubCompleter struct {
	req  openai.ChatCompletionRequest
	resp openai.ChatCompletionResponse
	err  error
}

func (s *stubCompleter) CreateChatCompletion(_ context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error) {
	s.req = req
	return s.resp, s.err
}

func newTestClient(stub *stubCompleter) *OpenAIClient {
	c := NewOpenAIClient("key", "", "gpt-4o-mini", 500, 0.1, 0.9, zap.NewNop())
	c.client = stub
	return c
}

func TestComplete(t *testing.T) {
	stub := &stubCompleter{resp: openai.ChatCompletionResponse{
		Choices: []openai.ChatCompletionChoice{{Message: openai.ChatCompletionMessage{Content: `{"is_spam": false}`}}},
	}}
	c := newTestClient(stub)

	out, err := c.Complete(context.Background(), "classify this")
	require.NoError(t, err)
	assert.Equal(t, `{"is_spam": false}`, out)
	assert.Equal(t, "gpt-4o-mini", c.Name())

	require.Len(t, stub.req.Messages, 2)
	assert.Equal(t, openai.ChatMessageRoleUser, stub.req.Messages[1].Role)
	assert.Equal(t, "classify this", stub.req.Messages[1].Content)
	assert.Equal(t, 500, stub.req.MaxTokens)
}

func TestCompleteErrors(t *testing.T) {
	_, err := newTestClient(&stubCompleter{err: errors.New("401")}).Complete(context.Background(), "x")
	assert.ErrorContains(t, err, "401")

	_, err = newTestClient(&stubCompleter{}).Complete(context.Background(), "x")
	assert.ErrorContains(t, err, "empty response")
}
