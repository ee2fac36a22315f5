// Package prefs persists the user's display preferences in SQLite so they
// survive restarts.
package prefs

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	_ "github.com/mattn/go-sqlite3"
)

// Preferences are the toggles that shape the rendered dashboard.
type Preferences struct {
	ShortenNames          bool `json:"shortenNames"`
	ShowOppositeDirection bool `json:"showOppositeDirection"`
	ShowElevatorAlerts    bool `json:"showElevatorAlerts"`
	ShowHelpGuide         bool `json:"showHelpGuide"`
}

// Defaults are the preferences for a fresh install: the help guide shows
// until the user dismisses it, everything else stays off.
var Defaults = Preferences{ShowHelpGuide: true}

const (
	keyShortenNames          = "shortenNames"
	keyShowOppositeDirection = "showOppositeDirection"
	keyShowElevatorAlerts    = "showElevatorAlerts"
	keyShowHelpGuide         = "showHelpGuide"
)

// Store wraps a SQLite database holding preference key-value rows.
type Store struct {
	db     *sql.DB
	logger *slog.Logger
}

// Open creates or opens the preferences database at the given path and
// applies migrations. Pass ":memory:" for an ephemeral store.
func Open(path string, logger *slog.Logger) (*Store, error) {
	dsn := fmt.Sprintf("file:%s?_journal_mode=WAL&_busy_timeout=5000", path)
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	s := &Store{db: db, logger: logger}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate database: %w", err)
	}

	logger.Info("preferences database opened", "path", path)
	return s, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	for i, stmt := range migrations {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("migration %d: %w", i, err)
		}
	}
	return nil
}

var migrations = []string{
	`CREATE TABLE IF NOT EXISTS preferences (
		key   TEXT PRIMARY KEY,
		value INTEGER NOT NULL DEFAULT 0
	)`,
}

// Load reads all preferences, falling back to Defaults for unset keys.
func (s *Store) Load(ctx context.Context) (Preferences, error) {
	p := Defaults
	rows, err := s.db.QueryContext(ctx, `SELECT key, value FROM preferences`)
	if err != nil {
		return p, fmt.Errorf("load preferences: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var key string
		var value int
		if err := rows.Scan(&key, &value); err != nil {
			return p, fmt.Errorf("scan preference: %w", err)
		}
		set := value != 0
		switch key {
		case keyShortenNames:
			p.ShortenNames = set
		case keyShowOppositeDirection:
			p.ShowOppositeDirection = set
		case keyShowElevatorAlerts:
			p.ShowElevatorAlerts = set
		case keyShowHelpGuide:
			p.ShowHelpGuide = set
		default:
			s.logger.Warn("unknown preference key", "key", key)
		}
	}
	return p, rows.Err()
}

// Save writes all preferences in one transaction.
func (s *Store) Save(ctx context.Context, p Preferences) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	for key, value := range map[string]bool{
		keyShortenNames:          p.ShortenNames,
		keyShowOppositeDirection: p.ShowOppositeDirection,
		keyShowElevatorAlerts:    p.ShowElevatorAlerts,
		keyShowHelpGuide:         p.ShowHelpGuide,
	} {
		v := 0
		if value {
			v = 1
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT OR REPLACE INTO preferences (key, value) VALUES (?, ?)`,
			key, v); err != nil {
			return fmt.Errorf("save preference %s: %w", key, err)
		}
	}
	return tx.Commit()
}
