package notify

import (
	"bytes"
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"os"
	"time"

	"github.com/emersion/go-message/mail"
	"github.com/emersion/go-sasl"
	"github.com/emersion/go-smtp"
	"github.com/mikey/email-assistant/internal/config"
	"github.com/mikey/email-assistant/internal/core"
	"go.uber.org/zap"
)

// SMTPNotifier mails the run summary through an SMTP relay
type SMTPNotifier struct {
	cfg    config.NotifyConfig
	logger *zap.Logger
	dial   func(ctx context.Context, addr string) (net.Conn, error)
}

// NewSMTPNotifier creates a new SMTP notifier
func NewSMTPNotifier(cfg config.NotifyConfig, logger *zap.Logger) *SMTPNotifier {
	dialer := &net.Dialer{Timeout: 10 * time.Second}
	return &SMTPNotifier{
		cfg:    cfg,
		logger: logger,
		dial: func(ctx context.Context, addr string) (net.Conn, error) {
			return dialer.DialContext(ctx, "tcp", addr)
		},
	}
}

// Notify sends the rendered summary to the configured recipients
func (n *SMTPNotifier) Notify(ctx context.Context, summary *core.RunSummary) error {
	if len(n.cfg.To) == 0 {
		return fmt.Errorf("no summary recipients configured")
	}

	msg, err := n.compose(summary)
	if err != nil {
		return err
	}
	if err := n.send(ctx, msg); err != nil {
		return err
	}

	n.logger.Info("Sent run summary",
		zap.String("run_id", summary.RunID),
		zap.Strings("to", n.cfg.To))
	return nil
}

// compose builds a plain text message holding the summary table
func (n *SMTPNotifier) compose(summary *core.RunSummary) ([]byte, error) {
	var body bytes.Buffer
	if err := summary.Render(&body); err != nil {
		return nil, fmt.Errorf("failed to render summary: %w", err)
	}

	var h mail.Header
	h.SetDate(time.Now())
	h.SetAddressList("From", []*mail.Address{{Name: "email-assistant", Address: n.cfg.From}})
	to := make([]*mail.Address, 0, len(n.cfg.To))
	for _, addr := range n.cfg.To {
		to = append(to, &mail.Address{Address: addr})
	}
	h.SetAddressList("To", to)
	h.SetSubject(subject(summary))
	if err := h.GenerateMessageID(); err != nil {
		return nil, fmt.Errorf("failed to generate message id: %w", err)
	}
	h.SetContentType("text/plain", map[string]string{"charset": "utf-8"})

	var buf bytes.Buffer
	w, err := mail.CreateSingleInlineWriter(&buf, h)
	if err != nil {
		return nil, fmt.Errorf("failed to create message: %w", err)
	}
	if _, err := w.Write(body.Bytes()); err != nil {
		w.Close()
		return nil, fmt.Errorf("failed to write message body: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("failed to close message: %w", err)
	}
	return buf.Bytes(), nil
}

func subject(s *core.RunSummary) string {
	subj := fmt.Sprintf("email-assistant: %d emails classified", s.Total)
	if s.DryRun {
		subj += " (dry run)"
	}
	if len(s.Warnings) > 0 {
		subj += fmt.Sprintf(", %d warnings", len(s.Warnings))
	}
	return subj
}

// send delivers msg over a fresh SMTP connection
func (n *SMTPNotifier) send(ctx context.Context, msg []byte) error {
	conn, err := n.dial(ctx, n.cfg.SMTPAddress)
	if err != nil {
		return fmt.Errorf("failed to connect to %s: %w", n.cfg.SMTPAddress, err)
	}

	deadline := time.Now().Add(30 * time.Second)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	if err := conn.SetDeadline(deadline); err != nil {
		conn.Close()
		return fmt.Errorf("failed to set connection deadline: %w", err)
	}

	hostname, err := os.Hostname()
	if err != nil {
		hostname = "localhost"
	}

	c := smtp.NewClient(conn)
	defer c.Close()

	if err := c.Hello(hostname); err != nil {
		return fmt.Errorf("EHLO failed: %w", err)
	}
	if n.cfg.Username != "" {
		if ok, _ := c.Extension("STARTTLS"); ok {
			host, _, _ := net.SplitHostPort(n.cfg.SMTPAddress)
			if err := c.StartTLS(&tls.Config{ServerName: host, MinVersion: tls.VersionTLS12}); err != nil {
				return fmt.Errorf("STARTTLS failed: %w", err)
			}
		}
		if err := c.Auth(sasl.NewPlainClient("", n.cfg.Username, n.cfg.Password)); err != nil {
			return fmt.Errorf("authentication failed: %w", err)
		}
	}

	if err := c.Mail(n.cfg.From, nil); err != nil {
		return fmt.Errorf("MAIL FROM failed: %w", err)
	}

	recipientOK := false
	for _, rcpt := range n.cfg.To {
		if err := c.Rcpt(rcpt, nil); err != nil {
			n.logger.Warn("RCPT TO failed for recipient",
				zap.String("recipient", rcpt),
				zap.Error(err))
			continue
		}
		recipientOK = true
	}
	if !recipientOK {
		return fmt.Errorf("all recipients were rejected")
	}

	wc, err := c.Data()
	if err != nil {
		return fmt.Errorf("DATA command failed: %w", err)
	}
	if _, err := wc.Write(msg); err != nil {
		wc.Close()
		return fmt.Errorf("failed to send message data: %w", err)
	}
	if err := wc.Close(); err != nil {
		return fmt.Errorf("failed to close data writer: %w", err)
	}

	if err := c.Quit(); err != nil {
		n.logger.Warn("QUIT command failed", zap.Error(err))
	}
	return nil
}
