package core

import (
	"context"
	"sort"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/mikey/email-assistant/internal/labels"
	"github.com/mikey/email-assistant/internal/markdown"
	"github.com/mikey/email-assistant/internal/utils"
	"go.uber.org/zap"
)

// fakeClient answers prompts with a canned reply or a custom function
type fakeClient struct {
	reply string
	err   error
	fn    func(ctx context.Context, prompt string) (string, error)

	calls   atomic.Int32
	mu      sync.Mutex
	prompts []string
}

func (c *fakeClient) Complete(ctx context.Context, prompt string) (string, error) {
	c.calls.Add(1)
	c.mu.Lock()
	c.prompts = append(c.prompts, prompt)
	c.mu.Unlock()
	if c.fn != nil {
		return c.fn(ctx, prompt)
	}
	return c.reply, c.err
}

func (c *fakeClient) Name() string { return "fake-model" }

// fakeProvider is an in-memory mailbox
type fakeProvider struct {
	mu       sync.Mutex
	emails   map[string]*Email
	order    []string
	applied  map[string]*Decision
	applyErr map[string]error
	deleted  []string
	known    map[string]bool
}

func newFakeProvider(emails ...*Email) *fakeProvider {
	p := &fakeProvider{
		emails:   make(map[string]*Email),
		applied:  make(map[string]*Decision),
		applyErr: make(map[string]error),
		known:    make(map[string]bool),
	}
	for _, e := range emails {
		p.emails[e.ID] = e
		p.order = append(p.order, e.ID)
		for _, l := range e.Labels {
			p.known[l] = true
		}
	}
	return p
}

func (p *fakeProvider) Fetch(_ context.Context, limit int) ([]*Email, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []*Email
	for _, id := range p.order {
		e := p.emails[id]
		if e == nil || !labels.Has(e.Labels, "INBOX") {
			continue
		}
		if limit > 0 && len(out) == limit {
			break
		}
		out = append(out, e)
	}
	return out, nil
}

func (p *fakeProvider) Get(_ context.Context, id string) (*Email, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	e, ok := p.emails[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *e
	cp.Labels = append([]string{}, e.Labels...)
	return &cp, nil
}

func (p *fakeProvider) Apply(ctx context.Context, id string, d *Decision) error {
	p.mu.Lock()
	if err := p.applyErr[id]; err != nil {
		p.mu.Unlock()
		return err
	}
	p.applied[id] = d
	p.mu.Unlock()

	for _, l := range d.Labels {
		if err := p.AddLabel(ctx, id, l); err != nil {
			return err
		}
	}
	switch d.Action {
	case ActionArchive:
		return p.Archive(ctx, id)
	case ActionDelete:
		return p.Delete(ctx, id)
	case ActionSpam:
		return p.MarkSpam(ctx, id)
	}
	return nil
}

func (p *fakeProvider) setLabels(id string, fn func([]string) []string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	e, ok := p.emails[id]
	if !ok {
		return ErrNotFound
	}
	e.Labels = fn(e.Labels)
	return nil
}

func without(list []string, drop ...string) []string {
	var out []string
	for _, l := range list {
		if !labels.Has(drop, l) {
			out = append(out, l)
		}
	}
	return out
}

func (p *fakeProvider) Archive(_ context.Context, id string) error {
	return p.setLabels(id, func(l []string) []string { return without(l, "INBOX") })
}

func (p *fakeProvider) Delete(_ context.Context, id string) error {
	p.mu.Lock()
	p.deleted = append(p.deleted, id)
	p.mu.Unlock()
	return p.setLabels(id, func(l []string) []string { return append(without(l, "INBOX"), "TRASH") })
}

func (p *fakeProvider) MarkSpam(_ context.Context, id string) error {
	return p.setLabels(id, func(l []string) []string { return append(without(l, "INBOX"), "SPAM") })
}

func (p *fakeProvider) Unspam(_ context.Context, id string) error {
	return p.setLabels(id, func(l []string) []string { return append(without(l, "SPAM"), "INBOX") })
}

func (p *fakeProvider) AddLabel(_ context.Context, id string, label string) error {
	p.mu.Lock()
	p.known[label] = true
	p.mu.Unlock()
	return p.setLabels(id, func(l []string) []string {
		if labels.Has(l, label) {
			return l
		}
		return append(l, label)
	})
}

func (p *fakeProvider) RemoveLabel(id string, label string) {
	_ = p.setLabels(id, func(l []string) []string { return without(l, label) })
}

func (p *fakeProvider) ListLabels(_ context.Context) ([]Label, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	counts := make(map[string]int)
	for name := range p.known {
		counts[name] = 0
	}
	for _, e := range p.emails {
		for _, l := range e.Labels {
			counts[l]++
		}
	}
	var out []Label
	for name, n := range counts {
		out = append(out, Label{ID: name, Name: name, System: strings.ToUpper(name) == name, Messages: n})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (p *fakeProvider) DeleteLabel(_ context.Context, label string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.known, label)
	for _, e := range p.emails {
		e.Labels = without(e.Labels, label)
	}
	return nil
}

// fakeStore is an in-memory decision store
type fakeStore struct {
	mu      sync.Mutex
	records map[string]*DecisionRecord
	ai      []string
}

func newFakeStore() *fakeStore {
	return &fakeStore{records: make(map[string]*DecisionRecord)}
}

func (s *fakeStore) Get(_ context.Context, id string) (*DecisionRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.records[id]
	if !ok {
		return nil, ErrNotFound
	}
	return r, nil
}

func (s *fakeStore) Put(_ context.Context, r *DecisionRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[r.EmailID] = r
	return nil
}

func (s *fakeStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.records, id)
	return nil
}

func (s *fakeStore) List(_ context.Context) ([]*DecisionRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*DecisionRecord
	for _, r := range s.records {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].EmailID < out[j].EmailID })
	return out, nil
}

func (s *fakeStore) Cleanup(context.Context) error { return nil }

func (s *fakeStore) RememberLabels(_ context.Context, ls []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, l := range ls {
		if !labels.Has(s.ai, l) {
			s.ai = append(s.ai, l)
		}
	}
	return nil
}

func (s *fakeStore) AILabels(context.Context) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string{}, s.ai...), nil
}

func (s *fakeStore) ForgetLabel(_ context.Context, label string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ai = without(s.ai, label)
	return nil
}

// fakeProfiles keeps the profile in memory and counts writes
type fakeProfiles struct {
	mu     sync.Mutex
	text   string
	rules  []Rule
	writes int
}

func (f *fakeProfiles) Load() (*Profile, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return &Profile{Text: f.text, Rules: append([]Rule{}, f.rules...)}, nil
}

func (f *fakeProfiles) Save(p *Profile) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.text, f.rules = p.Text, p.Rules
	f.writes++
	return nil
}

func (f *fakeProfiles) AppendRule(r Rule) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rules = append(f.rules, r)
	f.writes++
	return nil
}

func (f *fakeProfiles) RewriteText(id, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.text = markdown.Replace(f.text, id, text)
	f.writes++
	return nil
}

func (f *fakeProfiles) RemoveSection(id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.text, _ = markdown.Remove(f.text, id)
	f.writes++
	return nil
}

func testFilter() *labels.Filter {
	return labels.NewFilter([]string{"Classified"}, "Needs-Reply", zap.NewNop())
}

func testJudge(client ReasoningClient) *Judge {
	return NewJudge(client, utils.NewTextProcessor(zap.NewNop()), testFilter(), defaultTestTimeout, 1000, zap.NewNop())
}
