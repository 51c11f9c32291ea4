package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/mikey/email-assistant/internal/core"
	"go.uber.org/zap"
)

// dialect holds the statements that differ between SQL engines
type dialect struct {
	name           string
	schema         []string
	upsertDecision string
	insertLabel    string
}

// SQLStore is a DecisionStore backed by a SQL database through sqlx
type SQLStore struct {
	db          *sqlx.DB
	dialect     dialect
	logger      *zap.Logger
	cleanupFreq time.Duration
	stopCh      chan struct{}
	stopOnce    sync.Once
}

// newSQLStore applies the schema and starts the cleanup task when
// cleanupFreq is positive
func newSQLStore(db *sqlx.DB, d dialect, logger *zap.Logger, cleanupFreq time.Duration) (*SQLStore, error) {
	for _, stmt := range d.schema {
		if _, err := db.Exec(stmt); err != nil {
			return nil, fmt.Errorf("failed to create %s schema: %w", d.name, err)
		}
	}

	s := &SQLStore{
		db:          db,
		dialect:     d,
		logger:      logger,
		cleanupFreq: cleanupFreq,
		stopCh:      make(chan struct{}),
	}
	if cleanupFreq > 0 {
		go startCleanupTask(s, cleanupFreq, s.stopCh, logger)
	}
	return s, nil
}

// Get retrieves the live record for an email
func (s *SQLStore) Get(ctx context.Context, emailID string) (*core.DecisionRecord, error) {
	var row decisionRow
	err := s.db.GetContext(ctx, &row, `
		SELECT email_id, from_addr, subject, decision, recorded_at, expires_at
		FROM decisions
		WHERE email_id = ? AND (expires_at = 0 OR expires_at > ?)
	`, emailID, time.Now().Unix())
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, core.ErrNotFound
		}
		return nil, fmt.Errorf("failed to query decision: %w", err)
	}
	return fromRow(&row)
}

// Put stores a record, replacing any previous one
func (s *SQLStore) Put(ctx context.Context, record *core.DecisionRecord) error {
	row, err := toRow(record)
	if err != nil {
		return err
	}
	if _, err := s.db.NamedExecContext(ctx, s.dialect.upsertDecision, row); err != nil {
		return fmt.Errorf("failed to store decision for %s: %w", record.EmailID, err)
	}
	return nil
}

// Delete removes a record
func (s *SQLStore) Delete(ctx context.Context, emailID string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM decisions WHERE email_id = ?`, emailID); err != nil {
		return fmt.Errorf("failed to delete decision: %w", err)
	}
	return nil
}

// List returns live records ordered by email id
func (s *SQLStore) List(ctx context.Context) ([]*core.DecisionRecord, error) {
	var rows []decisionRow
	err := s.db.SelectContext(ctx, &rows, `
		SELECT email_id, from_addr, subject, decision, recorded_at, expires_at
		FROM decisions
		WHERE expires_at = 0 OR expires_at > ?
		ORDER BY email_id
	`, time.Now().Unix())
	if err != nil {
		return nil, fmt.Errorf("failed to list decisions: %w", err)
	}

	out := make([]*core.DecisionRecord, 0, len(rows))
	for i := range rows {
		r, err := fromRow(&rows[i])
		if err != nil {
			s.logger.Warn("Skipping unreadable decision", zap.String("email_id", rows[i].EmailID), zap.Error(err))
			continue
		}
		out = append(out, r)
	}
	return out, nil
}

// Cleanup removes expired records
func (s *SQLStore) Cleanup(ctx context.Context) error {
	result, err := s.db.ExecContext(ctx, `
		DELETE FROM decisions
		WHERE expires_at > 0 AND expires_at <= ?
	`, time.Now().Unix())
	if err != nil {
		return fmt.Errorf("failed to clean up expired decisions: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		s.logger.Warn("Failed to get rows affected during cleanup", zap.Error(err))
	} else {
		s.logger.Debug("Cleaned up expired decisions", zap.Int64("expired_count", rowsAffected))
	}
	return nil
}

// RememberLabels adds labels to the AI label registry
func (s *SQLStore) RememberLabels(ctx context.Context, labels []string) error {
	if len(labels) == 0 {
		return nil
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	known, err := registeredLabels(ctx, tx)
	if err != nil {
		return err
	}
	now := time.Now().Unix()
	for _, l := range labels {
		if _, ok := known[foldKey(l)]; ok {
			continue
		}
		if _, err := tx.ExecContext(ctx, s.dialect.insertLabel, l, now); err != nil {
			return fmt.Errorf("failed to register label %s: %w", l, err)
		}
		known[foldKey(l)] = struct{}{}
	}
	return tx.Commit()
}

// AILabels returns the registered AI labels in registration order
func (s *SQLStore) AILabels(ctx context.Context) ([]string, error) {
	var names []string
	if err := s.db.SelectContext(ctx, &names, `SELECT name FROM ai_labels ORDER BY created_at, name`); err != nil {
		return nil, fmt.Errorf("failed to list AI labels: %w", err)
	}
	return names, nil
}

// ForgetLabel removes a label from the AI label registry
func (s *SQLStore) ForgetLabel(ctx context.Context, label string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM ai_labels WHERE LOWER(name) = LOWER(?)`, label); err != nil {
		return fmt.Errorf("failed to forget label %s: %w", label, err)
	}
	return nil
}

// Stop stops the background cleanup task and closes the database connection
func (s *SQLStore) Stop() {
	s.stopOnce.Do(func() {
		close(s.stopCh)
		if err := s.db.Close(); err != nil {
			s.logger.Error("Failed to close database", zap.String("dialect", s.dialect.name), zap.Error(err))
		}
	})
}

func registeredLabels(ctx context.Context, tx *sqlx.Tx) (map[string]struct{}, error) {
	var names []string
	if err := tx.SelectContext(ctx, &names, `SELECT name FROM ai_labels`); err != nil {
		return nil, fmt.Errorf("failed to list AI labels: %w", err)
	}
	known := make(map[string]struct{}, len(names))
	for _, n := range names {
		known[foldKey(n)] = struct{}{}
	}
	return known, nil
}
