package command

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"
)

// CommandClient is an implementation of the ReasoningClient interface that
// runs a local command line client, such as `claude -p`. The prompt is written
// to the command's stdin and its stdout is the reply.
type CommandClient struct {
	path   string
	args   []string
	logger *zap.Logger
}

// NewCommandClient creates a new command client
func NewCommandClient(path string, args []string, logger *zap.Logger) *CommandClient {
	return &CommandClient{
		path:   path,
		args:   args,
		logger: logger,
	}
}

// Name returns the command name and its model argument when there is one
func (c *CommandClient) Name() string {
	name := filepath.Base(c.path)
	for i, a := range c.args {
		if a == "--model" && i+1 < len(c.args) {
			return name + "/" + c.args[i+1]
		}
	}
	return name
}

// Complete runs the command with the prompt on stdin. The process is killed
// when ctx ends.
func (c *CommandClient) Complete(ctx context.Context, prompt string) (string, error) {
	cmd := exec.CommandContext(ctx, c.path, c.args...)
	cmd.Stdin = strings.NewReader(prompt)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	// Children holding stdout open must not outlive a killed command
	cmd.WaitDelay = time.Second

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return "", fmt.Errorf("command %s: %w", c.path, ctx.Err())
		}
		return "", fmt.Errorf("command %s failed: %w: %s", c.path, err, strings.TrimSpace(stderr.String()))
	}

	out := unwrapResult(stdout.Bytes())
	c.logger.Debug("Command completion finished",
		zap.String("command", c.path),
		zap.Int("length", len(out)))
	return out, nil
}

// unwrapResult returns the "result" field of a JSON output envelope, or the
// raw output when it is not one
func unwrapResult(out []byte) string {
	var envelope struct {
		Result  *string `json:"result"`
		IsError bool    `json:"is_error"`
	}
	if err := json.Unmarshal(bytes.TrimSpace(out), &envelope); err == nil && envelope.Result != nil {
		return *envelope.Result
	}
	return string(out)
}
