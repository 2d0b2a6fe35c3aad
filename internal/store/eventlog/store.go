package eventlog

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"tactix/internal/alert"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// Record is one persisted alert fire.
type Record struct {
	EventID   string         `json:"event_id"`
	Symbol    string         `json:"symbol"`
	RuleID    string         `json:"rule_id"`
	FiredAt   int64          `json:"fired_at"`
	Meta      map[string]any `json:"meta,omitempty"`
	CreatedAt int64          `json:"created_at"`
}

// Store is the append-only alert event log. It never updates or deletes
// rows; the HTTP surface reads the tail for display.
type Store struct {
	mu   sync.Mutex
	db   *sql.DB
	path string
}

func NewStore(path string) (*Store, error) {
	if path == "" {
		return nil, fmt.Errorf("event log path is required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&cache=shared", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(2)
	db.SetMaxIdleConns(2)
	if err := ensureSchema(db); err != nil {
		db.Close()
		return nil, err
	}
	return &Store{db: db, path: path}, nil
}

func ensureSchema(db *sql.DB) error {
	_, err := db.Exec(`CREATE TABLE IF NOT EXISTS alert_events (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		event_id TEXT NOT NULL UNIQUE,
		symbol TEXT NOT NULL,
		rule_id TEXT NOT NULL,
		fired_at INTEGER NOT NULL,
		meta_json TEXT,
		created_at INTEGER NOT NULL
	)`)
	if err != nil {
		return err
	}
	_, err = db.Exec(`CREATE INDEX IF NOT EXISTS idx_alert_events_symbol ON alert_events(symbol, fired_at)`)
	return err
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Append writes one fire event and returns its generated event id.
func (s *Store) Append(ctx context.Context, evt alert.FireEvent) (string, error) {
	if s == nil || s.db == nil {
		return "", fmt.Errorf("event log not initialized")
	}
	eventID := uuid.NewString()
	var metaJSON []byte
	if len(evt.Meta) > 0 {
		raw, err := json.Marshal(evt.Meta)
		if err == nil {
			metaJSON = raw
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO alert_events (event_id, symbol, rule_id, fired_at, meta_json, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		eventID, evt.Symbol, evt.RuleID, evt.FiredAt.Unix(), string(metaJSON), time.Now().Unix())
	if err != nil {
		return "", err
	}
	return eventID, nil
}

// Recent returns up to limit events, newest first.
func (s *Store) Recent(ctx context.Context, limit int) ([]Record, error) {
	if s == nil || s.db == nil {
		return nil, fmt.Errorf("event log not initialized")
	}
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT event_id, symbol, rule_id, fired_at, meta_json, created_at
		FROM alert_events ORDER BY fired_at DESC, id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Record
	for rows.Next() {
		var rec Record
		var metaJSON sql.NullString
		if err := rows.Scan(&rec.EventID, &rec.Symbol, &rec.RuleID, &rec.FiredAt, &metaJSON, &rec.CreatedAt); err != nil {
			return nil, err
		}
		if metaJSON.Valid && metaJSON.String != "" {
			_ = json.Unmarshal([]byte(metaJSON.String), &rec.Meta)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}
