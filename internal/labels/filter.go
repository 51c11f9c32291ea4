package labels

import (
	"strings"

	"go.uber.org/zap"
)

// systemLabels are provider-managed labels that never carry a user decision
var systemLabels = []string{
	"INBOX", "SENT", "DRAFT", "DRAFTS", "TRASH", "SPAM", "JUNK",
	"STARRED", "IMPORTANT", "UNREAD", "CHAT",
}

// Filter separates user labels from provider system labels
type Filter struct {
	ignored    map[string]struct{}
	needsReply string
	logger     *zap.Logger
}

// NewFilter creates a label filter. Labels in ignore are treated like system
// labels; needsReply names the label that flags a thread as awaiting a reply.
func NewFilter(ignore []string, needsReply string, logger *zap.Logger) *Filter {
	ignored := make(map[string]struct{}, len(systemLabels)+len(ignore))
	for _, l := range systemLabels {
		ignored[l] = struct{}{}
	}
	for _, l := range ignore {
		l = strings.ToUpper(strings.TrimSpace(l))
		if l != "" {
			ignored[l] = struct{}{}
		}
	}

	if len(ignore) > 0 && logger != nil {
		logger.Debug("Initialized label filter", zap.Strings("ignore", ignore))
	}

	return &Filter{
		ignored:    ignored,
		needsReply: needsReply,
		logger:     logger,
	}
}

// IsSystem reports whether a label is managed by the provider or ignored
func (f *Filter) IsSystem(label string) bool {
	upper := strings.ToUpper(strings.TrimSpace(label))
	if upper == "" {
		return true
	}
	if _, ok := f.ignored[upper]; ok {
		return true
	}
	// Gmail categories and IMAP system flags
	return strings.HasPrefix(upper, "CATEGORY_") || strings.HasPrefix(upper, `\`)
}

// IsNeedsReply reports whether label is the needs-reply marker
func (f *Filter) IsNeedsReply(label string) bool {
	return f.needsReply != "" && strings.EqualFold(strings.TrimSpace(label), f.needsReply)
}

// NeedsReplyLabel returns the name of the needs-reply marker label
func (f *Filter) NeedsReplyLabel() string {
	return f.needsReply
}

// UserLabels returns the labels a user or the classifier put on a message,
// without system labels or the needs-reply marker. Duplicates differing only
// in case are dropped; the first spelling is kept.
func (f *Filter) UserLabels(labels []string) []string {
	seen := make(map[string]struct{}, len(labels))
	result := make([]string, 0, len(labels))
	for _, l := range labels {
		l = strings.TrimSpace(l)
		if f.IsSystem(l) || f.IsNeedsReply(l) {
			continue
		}
		key := strings.ToLower(l)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		result = append(result, l)
	}
	return result
}

// Has reports whether labels contains name, ignoring case
func Has(labels []string, name string) bool {
	for _, l := range labels {
		if strings.EqualFold(l, name) {
			return true
		}
	}
	return false
}
