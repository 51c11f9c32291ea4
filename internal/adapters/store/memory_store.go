package store

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/mikey/email-assistant/internal/core"
	"github.com/mikey/email-assistant/internal/labels"
	"go.uber.org/zap"
)

// MemoryStore is an in-memory implementation of the DecisionStore interface
type MemoryStore struct {
	records     map[string]*core.DecisionRecord
	aiLabels    []string
	mu          sync.RWMutex
	logger      *zap.Logger
	cleanupFreq time.Duration
	stopCh      chan struct{}
	stopOnce    sync.Once
}

// NewMemoryStore creates a new in-memory store. A positive cleanupFreq starts
// a background expiry task.
func NewMemoryStore(logger *zap.Logger, cleanupFreq time.Duration) *MemoryStore {
	s := &MemoryStore{
		records:     make(map[string]*core.DecisionRecord),
		logger:      logger,
		cleanupFreq: cleanupFreq,
		stopCh:      make(chan struct{}),
	}

	if cleanupFreq > 0 {
		go startCleanupTask(s, cleanupFreq, s.stopCh, logger)
	}

	return s
}

// Get retrieves the live record for an email
func (s *MemoryStore) Get(_ context.Context, emailID string) (*core.DecisionRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, ok := s.records[emailID]
	if !ok || expired(r, time.Now()) {
		return nil, core.ErrNotFound
	}
	cp := *r
	return &cp, nil
}

// Put stores a record, replacing any previous one
func (s *MemoryStore) Put(_ context.Context, record *core.DecisionRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cp := *record
	s.records[record.EmailID] = &cp
	return nil
}

// Delete removes a record
func (s *MemoryStore) Delete(_ context.Context, emailID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.records, emailID)
	return nil
}

// List returns live records ordered by email id
func (s *MemoryStore) List(_ context.Context) ([]*core.DecisionRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	now := time.Now()
	out := make([]*core.DecisionRecord, 0, len(s.records))
	for _, r := range s.records {
		if expired(r, now) {
			continue
		}
		cp := *r
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].EmailID < out[j].EmailID })
	return out, nil
}

// Cleanup removes expired records
func (s *MemoryStore) Cleanup(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	expiredCount := 0
	for id, r := range s.records {
		if expired(r, now) {
			delete(s.records, id)
			expiredCount++
		}
	}

	s.logger.Debug("Cleaned up expired decisions", zap.Int("expired_count", expiredCount))
	return nil
}

// RememberLabels adds labels to the AI label registry
func (s *MemoryStore) RememberLabels(_ context.Context, names []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, l := range names {
		if !labels.Has(s.aiLabels, l) {
			s.aiLabels = append(s.aiLabels, l)
		}
	}
	return nil
}

// AILabels returns the registered AI labels in insertion order
func (s *MemoryStore) AILabels(_ context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return append([]string{}, s.aiLabels...), nil
}

// ForgetLabel removes a label from the AI label registry
func (s *MemoryStore) ForgetLabel(_ context.Context, label string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := s.aiLabels[:0]
	for _, l := range s.aiLabels {
		if !strings.EqualFold(l, label) {
			out = append(out, l)
		}
	}
	s.aiLabels = out
	return nil
}

// Stop stops the background cleanup task
func (s *MemoryStore) Stop() {
	s.stopOnce.Do(func() { close(s.stopCh) })
}

// startCleanupTask periodically removes expired records until stopCh closes
func startCleanupTask(s core.DecisionStore, freq time.Duration, stopCh <-chan struct{}, logger *zap.Logger) {
	ticker := time.NewTicker(freq)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if err := s.Cleanup(context.Background()); err != nil {
				logger.Error("Failed to clean up decision store", zap.Error(err))
			}
		case <-stopCh:
			return
		}
	}
}
