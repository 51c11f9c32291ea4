package gmail

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"sync"

	"github.com/emersion/go-message/mail"
	"github.com/mikey/email-assistant/internal/adapters/mailparse"
	"github.com/mikey/email-assistant/internal/core"
	"go.uber.org/zap"
	gmailapi "google.golang.org/api/gmail/v1"
	"google.golang.org/api/googleapi"
)

const (
	labelInbox = "INBOX"
	labelSpam  = "SPAM"
)

// Provider is a Gmail implementation of the core Provider interface. Label
// names are mapped to Gmail label ids, creating user labels on first use.
type Provider struct {
	svc        *gmailapi.Service
	user       string
	needsReply string
	logger     *zap.Logger

	mu     sync.Mutex
	byName map[string]*gmailapi.Label
	byID   map[string]*gmailapi.Label
}

// NewProvider creates a new Gmail provider for the given user ("me" for the
// authenticated account)
func NewProvider(svc *gmailapi.Service, user string, needsReplyLabel string, logger *zap.Logger) *Provider {
	return &Provider{
		svc:        svc,
		user:       user,
		needsReply: needsReplyLabel,
		logger:     logger,
	}
}

// mapError turns a missing message or label into core.ErrNotFound
func mapError(err error) error {
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) && apiErr.Code == http.StatusNotFound {
		return fmt.Errorf("%w: %v", core.ErrNotFound, err)
	}
	return err
}

// loadLabels refreshes the label cache
func (p *Provider) loadLabels(ctx context.Context) error {
	resp, err := p.svc.Users.Labels.List(p.user).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("failed to list Gmail labels: %w", err)
	}
	p.byName = make(map[string]*gmailapi.Label, len(resp.Labels))
	p.byID = make(map[string]*gmailapi.Label, len(resp.Labels))
	for _, l := range resp.Labels {
		p.byName[strings.ToLower(l.Name)] = l
		p.byID[l.Id] = l
	}
	return nil
}

func (p *Provider) ensureCache(ctx context.Context) error {
	if p.byName != nil {
		return nil
	}
	return p.loadLabels(ctx)
}

// labelID returns the id for a label name, creating the label when create is set
func (p *Provider) labelID(ctx context.Context, name string, create bool) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.ensureCache(ctx); err != nil {
		return "", err
	}
	if l, ok := p.byName[strings.ToLower(name)]; ok {
		return l.Id, nil
	}
	if !create {
		return "", fmt.Errorf("label %s: %w", name, core.ErrNotFound)
	}

	l, err := p.svc.Users.Labels.Create(p.user, &gmailapi.Label{
		Name:                  name,
		LabelListVisibility:   "labelShow",
		MessageListVisibility: "show",
	}).Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("failed to create label %s: %w", name, err)
	}
	p.byName[strings.ToLower(l.Name)] = l
	p.byID[l.Id] = l
	p.logger.Info("Created Gmail label", zap.String("label", name))
	return l.Id, nil
}

// labelNames maps label ids to names
func (p *Provider) labelNames(ctx context.Context, ids []string) ([]string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.ensureCache(ctx); err != nil {
		return nil, err
	}
	names := make([]string, 0, len(ids))
	for _, id := range ids {
		if l, ok := p.byID[id]; ok {
			names = append(names, l.Name)
		} else {
			names = append(names, id)
		}
	}
	return names, nil
}

// toEmail converts a full-format Gmail message
func (p *Provider) toEmail(ctx context.Context, msg *gmailapi.Message) (*core.Email, error) {
	labels, err := p.labelNames(ctx, msg.LabelIds)
	if err != nil {
		return nil, err
	}

	email := &core.Email{ID: msg.Id, Labels: labels}
	if msg.Payload != nil {
		email.From = header(msg.Payload.Headers, "From")
		email.Subject = header(msg.Payload.Headers, "Subject")
		if to, err := mail.ParseAddressList(header(msg.Payload.Headers, "To")); err == nil {
			for _, a := range to {
				email.To = append(email.To, a.Address)
			}
		}
		email.Body = messageBody(msg.Payload)
	}
	if email.Body == "" {
		email.Body = msg.Snippet
	}
	for _, l := range labels {
		if p.needsReply != "" && strings.EqualFold(l, p.needsReply) {
			email.NeedsReply = true
		}
	}
	return email, nil
}

func header(headers []*gmailapi.MessagePartHeader, name string) string {
	for _, h := range headers {
		if strings.EqualFold(h.Name, name) {
			return h.Value
		}
	}
	return ""
}

// messageBody returns the first text/plain part, or the visible text of the
// first text/html part
func messageBody(part *gmailapi.MessagePart) string {
	if text := findPart(part, "text/plain"); text != "" {
		return text
	}
	if html := findPart(part, "text/html"); html != "" {
		return mailparse.HTMLText(html)
	}
	return ""
}

func findPart(part *gmailapi.MessagePart, mimeType string) string {
	if part == nil {
		return ""
	}
	if strings.HasPrefix(part.MimeType, mimeType) && part.Body != nil && part.Body.Data != "" {
		if data, err := decodeBody(part.Body.Data); err == nil {
			return data
		}
	}
	for _, p := range part.Parts {
		if text := findPart(p, mimeType); text != "" {
			return text
		}
	}
	return ""
}

// decodeBody decodes Gmail's base64url body data, padded or not
func decodeBody(data string) (string, error) {
	b, err := base64.RawURLEncoding.DecodeString(strings.TrimRight(data, "="))
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// Fetch returns up to limit inbox messages
func (p *Provider) Fetch(ctx context.Context, limit int) ([]*core.Email, error) {
	call := p.svc.Users.Messages.List(p.user).LabelIds(labelInbox).Context(ctx)
	if limit > 0 {
		call = call.MaxResults(int64(limit))
	}
	resp, err := call.Do()
	if err != nil {
		return nil, fmt.Errorf("failed to list Gmail messages: %w", err)
	}

	emails := make([]*core.Email, 0, len(resp.Messages))
	for _, ref := range resp.Messages {
		email, err := p.Get(ctx, ref.Id)
		if err != nil {
			if errors.Is(err, core.ErrNotFound) {
				continue
			}
			return emails, err
		}
		emails = append(emails, email)
	}

	p.logger.Debug("Fetched inbox messages", zap.Int("count", len(emails)))
	return emails, nil
}

// Get returns the current state of a message
func (p *Provider) Get(ctx context.Context, id string) (*core.Email, error) {
	msg, err := p.svc.Users.Messages.Get(p.user, id).Format("full").Context(ctx).Do()
	if err != nil {
		return nil, mapError(err)
	}
	return p.toEmail(ctx, msg)
}

func (p *Provider) modify(ctx context.Context, id string, add, remove []string) error {
	if len(add) == 0 && len(remove) == 0 {
		return nil
	}
	_, err := p.svc.Users.Messages.Modify(p.user, id, &gmailapi.ModifyMessageRequest{
		AddLabelIds:    add,
		RemoveLabelIds: remove,
	}).Context(ctx).Do()
	return mapError(err)
}

// Apply adds the decision's labels, then performs its terminal action
func (p *Provider) Apply(ctx context.Context, id string, d *core.Decision) error {
	names := append([]string{}, d.Labels...)
	if d.NeedsReply && p.needsReply != "" {
		names = append(names, p.needsReply)
	}

	var add []string
	for _, name := range names {
		labelID, err := p.labelID(ctx, name, true)
		if err != nil {
			return err
		}
		add = append(add, labelID)
	}

	var remove []string
	switch d.Action {
	case core.ActionArchive:
		remove = append(remove, labelInbox)
	case core.ActionSpam:
		add = append(add, labelSpam)
		remove = append(remove, labelInbox)
	}
	if err := p.modify(ctx, id, add, remove); err != nil {
		return err
	}

	if d.Action == core.ActionDelete {
		return p.Delete(ctx, id)
	}
	return nil
}

// Archive removes a message from the inbox
func (p *Provider) Archive(ctx context.Context, id string) error {
	return p.modify(ctx, id, nil, []string{labelInbox})
}

// Delete moves a message to the trash
func (p *Provider) Delete(ctx context.Context, id string) error {
	_, err := p.svc.Users.Messages.Trash(p.user, id).Context(ctx).Do()
	return mapError(err)
}

// MarkSpam moves a message to spam
func (p *Provider) MarkSpam(ctx context.Context, id string) error {
	return p.modify(ctx, id, []string{labelSpam}, []string{labelInbox})
}

// Unspam moves a message from spam back to the inbox
func (p *Provider) Unspam(ctx context.Context, id string) error {
	return p.modify(ctx, id, []string{labelInbox}, []string{labelSpam})
}

// AddLabel adds a label to a message, creating it if needed
func (p *Provider) AddLabel(ctx context.Context, id string, label string) error {
	labelID, err := p.labelID(ctx, label, true)
	if err != nil {
		return err
	}
	return p.modify(ctx, id, []string{labelID}, nil)
}

// ListLabels lists all labels with their message counts
func (p *Provider) ListLabels(ctx context.Context) ([]core.Label, error) {
	p.mu.Lock()
	err := p.loadLabels(ctx)
	ids := make([]string, 0, len(p.byID))
	for id := range p.byID {
		ids = append(ids, id)
	}
	p.mu.Unlock()
	if err != nil {
		return nil, err
	}

	out := make([]core.Label, 0, len(ids))
	for _, id := range ids {
		l, err := p.svc.Users.Labels.Get(p.user, id).Context(ctx).Do()
		if err != nil {
			return nil, fmt.Errorf("failed to get label %s: %w", id, mapError(err))
		}
		out = append(out, core.Label{
			ID:       l.Id,
			Name:     l.Name,
			System:   l.Type == "system",
			Messages: int(l.MessagesTotal),
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// DeleteLabel deletes a user label
func (p *Provider) DeleteLabel(ctx context.Context, label string) error {
	labelID, err := p.labelID(ctx, label, false)
	if err != nil {
		return err
	}
	if err := p.svc.Users.Labels.Delete(p.user, labelID).Context(ctx).Do(); err != nil {
		return mapError(err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if l, ok := p.byID[labelID]; ok {
		delete(p.byName, strings.ToLower(l.Name))
		delete(p.byID, labelID)
	}
	return nil
}
