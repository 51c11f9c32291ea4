package store

import (
	"fmt"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"
)

var mysqlDialect = dialect{
	name: "mysql",
	schema: []string{
		`CREATE TABLE IF NOT EXISTS decisions (
			email_id VARCHAR(255) PRIMARY KEY,
			from_addr VARCHAR(512) NOT NULL DEFAULT '',
			subject TEXT NOT NULL,
			decision TEXT NOT NULL,
			recorded_at BIGINT NOT NULL,
			expires_at BIGINT NOT NULL,
			INDEX idx_decisions_expires_at (expires_at)
		)`,
		`CREATE TABLE IF NOT EXISTS ai_labels (
			name VARCHAR(255) PRIMARY KEY,
			created_at BIGINT NOT NULL
		)`,
	},
	upsertDecision: `
		INSERT INTO decisions (email_id, from_addr, subject, decision, recorded_at, expires_at)
		VALUES (:email_id, :from_addr, :subject, :decision, :recorded_at, :expires_at)
		ON DUPLICATE KEY UPDATE
			from_addr = VALUES(from_addr),
			subject = VALUES(subject),
			decision = VALUES(decision),
			recorded_at = VALUES(recorded_at),
			expires_at = VALUES(expires_at)`,
	insertLabel: `INSERT IGNORE INTO ai_labels (name, created_at) VALUES (?, ?)`,
}

// NewMySQLStore connects to MySQL and prepares the decision tables
func NewMySQLStore(dsn string, logger *zap.Logger, cleanupFreq time.Duration) (*SQLStore, error) {
	db, err := sqlx.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open MySQL database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to MySQL database: %w", err)
	}

	s, err := newSQLStore(db, mysqlDialect, logger, cleanupFreq)
	if err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}
