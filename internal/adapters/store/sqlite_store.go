package store

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"
)

var sqliteDialect = dialect{
	name: "sqlite",
	schema: []string{
		`CREATE TABLE IF NOT EXISTS decisions (
			email_id TEXT PRIMARY KEY,
			from_addr TEXT NOT NULL DEFAULT '',
			subject TEXT NOT NULL DEFAULT '',
			decision TEXT NOT NULL,
			recorded_at INTEGER NOT NULL,
			expires_at INTEGER NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_decisions_expires_at ON decisions(expires_at)`,
		`CREATE TABLE IF NOT EXISTS ai_labels (
			name TEXT PRIMARY KEY COLLATE NOCASE,
			created_at INTEGER NOT NULL
		)`,
	},
	upsertDecision: `
		INSERT OR REPLACE INTO decisions (email_id, from_addr, subject, decision, recorded_at, expires_at)
		VALUES (:email_id, :from_addr, :subject, :decision, :recorded_at, :expires_at)`,
	insertLabel: `INSERT OR IGNORE INTO ai_labels (name, created_at) VALUES (?, ?)`,
}

// NewSQLiteStore opens (or creates) a SQLite decision store at dbPath
func NewSQLiteStore(dbPath string, logger *zap.Logger, cleanupFreq time.Duration) (*SQLStore, error) {
	if dbPath != ":memory:" && !strings.HasPrefix(dbPath, "file:") {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create SQLite directory: %w", err)
		}
	}

	db, err := sqlx.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open SQLite database: %w", err)
	}
	// One connection keeps writes serialized and lets :memory: databases work
	db.SetMaxOpenConns(1)

	s, err := newSQLStore(db, sqliteDialect, logger, cleanupFreq)
	if err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}
