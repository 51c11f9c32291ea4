package imap

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net"
	"sort"
	"sync"

	"github.com/emersion/go-imap/v2"
	"github.com/emersion/go-imap/v2/imapclient"
	"github.com/mikey/email-assistant/internal/adapters/mailparse"
	"github.com/mikey/email-assistant/internal/config"
	"github.com/mikey/email-assistant/internal/core"
	"go.uber.org/zap"
)

// Provider is an IMAP implementation of the core Provider interface. Emails
// are identified by Message-ID, labels are IMAP keywords and the terminal
// actions move messages between the configured folders.
type Provider struct {
	cfg        config.IMAPConfig
	password   string
	needsReply string
	logger     *zap.Logger

	mu     sync.Mutex
	client *imapclient.Client
}

// NewProvider creates a new IMAP provider. The connection is opened on first use.
func NewProvider(cfg config.IMAPConfig, password string, needsReplyLabel string, logger *zap.Logger) *Provider {
	return &Provider{
		cfg:        cfg,
		password:   password,
		needsReply: needsReplyLabel,
		logger:     logger,
	}
}

// Close logs out and closes the connection
func (p *Provider) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.client == nil {
		return nil
	}
	err := p.client.Logout().Wait()
	p.client.Close()
	p.client = nil
	return err
}

func (p *Provider) connect() (*imapclient.Client, error) {
	addr := net.JoinHostPort(p.cfg.Host, p.cfg.Port)

	var client *imapclient.Client
	var err error
	if p.cfg.TLS {
		client, err = imapclient.DialTLS(addr, nil)
	} else {
		client, err = imapclient.DialStartTLS(addr, nil)
	}
	if err != nil {
		return nil, fmt.Errorf("connecting to IMAP %s: %w", addr, err)
	}

	if err := client.Login(p.cfg.Username, p.password).Wait(); err != nil {
		client.Close()
		return nil, fmt.Errorf("authentication failed for %s: %w", p.cfg.Username, err)
	}
	p.logger.Debug("Connected to IMAP server", zap.String("addr", addr))
	return client, nil
}

// session runs fn on the shared connection. IMAP commands are sequential, so
// callers are serialized. A failed command drops the connection so the next
// call reconnects.
func (p *Provider) session(ctx context.Context, fn func(c *imapclient.Client) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.client == nil {
		c, err := p.connect()
		if err != nil {
			return err
		}
		p.client = c
	}

	err := fn(p.client)
	if err != nil && !errors.Is(err, core.ErrNotFound) {
		p.client.Close()
		p.client = nil
	}
	return err
}

// folders returns the configured folders and their label roles
func (p *Provider) folders() []folder {
	return []folder{
		{name: p.cfg.Inbox, role: labelInbox},
		{name: p.cfg.ArchiveMailbox},
		{name: p.cfg.JunkMailbox, role: labelSpam},
		{name: p.cfg.TrashMailbox, role: labelTrash},
	}
}

type folder struct {
	name string
	role string
}

// located is a message found in one folder
type located struct {
	folder folder
	uid    imap.UID
}

// locate finds a message by Message-ID and leaves its folder selected
func (p *Provider) locate(c *imapclient.Client, id string) (*located, error) {
	criteria := &imap.SearchCriteria{
		Header:  []imap.SearchCriteriaHeaderField{{Key: "Message-ID", Value: id}},
		NotFlag: []imap.Flag{imap.FlagDeleted},
	}
	for _, f := range p.folders() {
		if f.name == "" {
			continue
		}
		if _, err := c.Select(f.name, nil).Wait(); err != nil {
			p.logger.Debug("Skipping unavailable folder", zap.String("folder", f.name), zap.Error(err))
			continue
		}
		data, err := c.UIDSearch(criteria, nil).Wait()
		if err != nil {
			return nil, fmt.Errorf("searching %s: %w", f.name, err)
		}
		if uids := data.AllUIDs(); len(uids) > 0 {
			return &located{folder: f, uid: uids[len(uids)-1]}, nil
		}
	}
	return nil, core.ErrNotFound
}

// fetchEmails fetches and parses messages of the selected folder
func (p *Provider) fetchEmails(c *imapclient.Client, role string, uids []imap.UID) ([]*core.Email, error) {
	section := &imap.FetchItemBodySection{Peek: true}
	opts := &imap.FetchOptions{
		Flags:       true,
		UID:         true,
		BodySection: []*imap.FetchItemBodySection{section},
	}

	msgs, err := c.Fetch(imap.UIDSetNum(uids...), opts).Collect()
	if err != nil {
		return nil, fmt.Errorf("fetching messages: %w", err)
	}

	emails := make([]*core.Email, 0, len(msgs))
	for _, msg := range msgs {
		email, err := mailparse.Parse(bytes.NewReader(msg.FindBodySection(section)))
		if err != nil {
			p.logger.Warn("Skipping unparsable message", zap.Uint32("uid", uint32(msg.UID)), zap.Error(err))
			continue
		}
		if email.ID == "" {
			p.logger.Warn("Skipping message without Message-ID", zap.Uint32("uid", uint32(msg.UID)))
			continue
		}
		email.Labels = messageLabels(role, msg.Flags)
		email.NeedsReply = p.needsReply != "" && hasKeyword(msg.Flags, keyword(p.needsReply))
		emails = append(emails, email)
	}
	return emails, nil
}

func hasKeyword(flags []imap.Flag, k imap.Flag) bool {
	for _, f := range flags {
		if f == k {
			return true
		}
	}
	return false
}

// Fetch returns up to limit of the newest inbox messages
func (p *Provider) Fetch(ctx context.Context, limit int) ([]*core.Email, error) {
	var emails []*core.Email
	err := p.session(ctx, func(c *imapclient.Client) error {
		if _, err := c.Select(p.cfg.Inbox, nil).Wait(); err != nil {
			return fmt.Errorf("selecting %s: %w", p.cfg.Inbox, err)
		}
		data, err := c.UIDSearch(&imap.SearchCriteria{NotFlag: []imap.Flag{imap.FlagDeleted}}, nil).Wait()
		if err != nil {
			return fmt.Errorf("searching messages: %w", err)
		}

		uids := data.AllUIDs()
		if len(uids) == 0 {
			return nil
		}
		if limit > 0 && len(uids) > limit {
			uids = uids[len(uids)-limit:]
		}

		emails, err = p.fetchEmails(c, labelInbox, uids)
		return err
	})
	if err != nil {
		return nil, err
	}

	p.logger.Debug("Fetched inbox messages", zap.Int("count", len(emails)))
	return emails, nil
}

// Get returns the current state of a message, wherever it was moved
func (p *Provider) Get(ctx context.Context, id string) (*core.Email, error) {
	var email *core.Email
	err := p.session(ctx, func(c *imapclient.Client) error {
		loc, err := p.locate(c, id)
		if err != nil {
			return err
		}
		emails, err := p.fetchEmails(c, loc.folder.role, []imap.UID{loc.uid})
		if err != nil {
			return err
		}
		if len(emails) == 0 {
			return core.ErrNotFound
		}
		email = emails[0]
		return nil
	})
	return email, err
}

// Apply adds the decision's labels as keywords, then performs its terminal action
func (p *Provider) Apply(ctx context.Context, id string, d *core.Decision) error {
	return p.session(ctx, func(c *imapclient.Client) error {
		loc, err := p.locate(c, id)
		if err != nil {
			return err
		}

		labels := append([]string{}, d.Labels...)
		if d.NeedsReply && p.needsReply != "" {
			labels = append(labels, p.needsReply)
		}
		if err := addKeywords(c, loc.uid, labels); err != nil {
			return err
		}

		switch d.Action {
		case core.ActionArchive:
			return p.moveTo(c, loc, p.cfg.ArchiveMailbox)
		case core.ActionDelete:
			return p.moveTo(c, loc, p.cfg.TrashMailbox)
		case core.ActionSpam:
			return p.moveTo(c, loc, p.cfg.JunkMailbox)
		}
		return nil
	})
}

func addKeywords(c *imapclient.Client, uid imap.UID, labels []string) error {
	if len(labels) == 0 {
		return nil
	}
	flags := make([]imap.Flag, 0, len(labels))
	for _, l := range labels {
		flags = append(flags, keyword(l))
	}
	err := c.Store(imap.UIDSetNum(uid), &imap.StoreFlags{
		Op:     imap.StoreFlagsAdd,
		Silent: true,
		Flags:  flags,
	}, nil).Close()
	if err != nil {
		return fmt.Errorf("adding keywords: %w", err)
	}
	return nil
}

// moveTo moves a located message into the target folder unless it is already there
func (p *Provider) moveTo(c *imapclient.Client, loc *located, target string) error {
	if loc.folder.name == target {
		return nil
	}
	if _, err := c.Move(imap.UIDSetNum(loc.uid), target).Wait(); err != nil {
		return fmt.Errorf("moving message to %s: %w", target, err)
	}
	return nil
}

func (p *Provider) move(ctx context.Context, id string, target string) error {
	return p.session(ctx, func(c *imapclient.Client) error {
		loc, err := p.locate(c, id)
		if err != nil {
			return err
		}
		return p.moveTo(c, loc, target)
	})
}

// Archive moves a message to the archive folder
func (p *Provider) Archive(ctx context.Context, id string) error {
	return p.move(ctx, id, p.cfg.ArchiveMailbox)
}

// Delete moves a message to the trash folder
func (p *Provider) Delete(ctx context.Context, id string) error {
	return p.move(ctx, id, p.cfg.TrashMailbox)
}

// MarkSpam moves a message to the junk folder
func (p *Provider) MarkSpam(ctx context.Context, id string) error {
	return p.move(ctx, id, p.cfg.JunkMailbox)
}

// Unspam moves a message from the junk folder back to the inbox
func (p *Provider) Unspam(ctx context.Context, id string) error {
	return p.session(ctx, func(c *imapclient.Client) error {
		loc, err := p.locate(c, id)
		if err != nil {
			return err
		}
		if loc.folder.role != labelSpam {
			return nil
		}
		return p.moveTo(c, loc, p.cfg.Inbox)
	})
}

// AddLabel adds a keyword to a message
func (p *Provider) AddLabel(ctx context.Context, id string, label string) error {
	return p.session(ctx, func(c *imapclient.Client) error {
		loc, err := p.locate(c, id)
		if err != nil {
			return err
		}
		return addKeywords(c, loc.uid, []string{label})
	})
}

// ListLabels lists folder roles and the keywords the server knows, with the
// number of messages carrying each
func (p *Provider) ListLabels(ctx context.Context) ([]core.Label, error) {
	counts := make(map[string]int)
	system := make(map[string]bool)
	err := p.session(ctx, func(c *imapclient.Client) error {
		for _, f := range p.folders() {
			if f.name == "" {
				continue
			}
			data, err := c.Select(f.name, nil).Wait()
			if err != nil {
				continue
			}
			if f.role != "" {
				counts[f.role] += int(data.NumMessages)
				system[f.role] = true
			}

			checked := make(map[imap.Flag]bool)
			for _, k := range append(data.Flags, data.PermanentFlags...) {
				if !isKeyword(k) || checked[k] {
					continue
				}
				checked[k] = true
				found, err := c.UIDSearch(&imap.SearchCriteria{Flag: []imap.Flag{k}}, nil).Wait()
				if err != nil {
					return fmt.Errorf("counting %s in %s: %w", k, f.name, err)
				}
				counts[string(k)] += len(found.AllUIDs())
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	out := make([]core.Label, 0, len(counts))
	for id, n := range counts {
		name := id
		if !system[id] {
			name = labelName(imap.Flag(id))
		}
		out = append(out, core.Label{ID: id, Name: name, System: system[id], Messages: n})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// DeleteLabel removes a keyword from every message in the configured folders
func (p *Provider) DeleteLabel(ctx context.Context, label string) error {
	k := keyword(label)
	return p.session(ctx, func(c *imapclient.Client) error {
		for _, f := range p.folders() {
			if f.name == "" {
				continue
			}
			if _, err := c.Select(f.name, nil).Wait(); err != nil {
				continue
			}
			found, err := c.UIDSearch(&imap.SearchCriteria{Flag: []imap.Flag{k}}, nil).Wait()
			if err != nil {
				return fmt.Errorf("searching %s in %s: %w", k, f.name, err)
			}
			uids := found.AllUIDs()
			if len(uids) == 0 {
				continue
			}
			err = c.Store(imap.UIDSetNum(uids...), &imap.StoreFlags{
				Op:     imap.StoreFlagsDel,
				Silent: true,
				Flags:  []imap.Flag{k},
			}, nil).Close()
			if err != nil {
				return fmt.Errorf("removing %s in %s: %w", k, f.name, err)
			}
		}
		return nil
	})
}
