// Package eventlog keeps an append-only audit trail of domain events in
// its own SQLite file, separate from the operational database so audits
// never contend with the trading path.
package eventlog

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"hansu/internal/bus"
	"hansu/internal/logger"
)

type Store struct {
	mu   sync.Mutex
	db   *sql.DB
	path string
}

// Record is one persisted audit row.
type Record struct {
	ID        int64           `json:"id"`
	EventID   string          `json:"event_id"`
	Type      string          `json:"type"`
	AccountID string          `json:"account_id"`
	Symbol    string          `json:"symbol"`
	Payload   json.RawMessage `json:"payload"`
	TS        int64           `json:"ts"`
}

func New(path string) (*Store, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, fmt.Errorf("eventlog: 路径不能为空")
	}
	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}
	db, err := sql.Open("sqlite", fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)", path))
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	s := &Store{db: db, path: path}
	if err := s.migrate(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) migrate() error {
	_, err := s.db.Exec(`CREATE TABLE IF NOT EXISTS event_log (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		event_id TEXT NOT NULL,
		type TEXT NOT NULL,
		account_id TEXT NOT NULL DEFAULT '',
		symbol TEXT NOT NULL DEFAULT '',
		payload TEXT NOT NULL DEFAULT '{}',
		ts INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_event_log_ts ON event_log(ts);
	CREATE INDEX IF NOT EXISTS idx_event_log_account ON event_log(account_id, symbol);`)
	if err != nil {
		return fmt.Errorf("eventlog: 建表失败: %w", err)
	}
	return nil
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Append writes one event row. Failures are returned but callers
// generally log and continue; the audit trail never blocks trading.
func (s *Store) Append(ctx context.Context, evt bus.Event) error {
	if s == nil || s.db == nil {
		return nil
	}
	payload, err := json.Marshal(evt.Payload)
	if err != nil {
		payload = []byte("{}")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO event_log (event_id, type, account_id, symbol, payload, ts) VALUES (?, ?, ?, ?, ?, ?)`,
		evt.ID, string(evt.Type), evt.AccountID, evt.Symbol, string(payload), evt.At.UnixMilli())
	return err
}

// Attach subscribes the audit trail to every durable event type on the
// bus. Price ticks are deliberately excluded.
func (s *Store) Attach(b *bus.Bus) {
	handler := func(evt bus.Event) {
		if err := s.Append(context.Background(), evt); err != nil {
			logger.Warnf("事件审计写入失败 type=%s: %v", evt.Type, err)
		}
	}
	for _, t := range []bus.EventType{
		bus.EvtOrderCreated, bus.EvtOrderExecuted, bus.EvtOrderFailed,
		bus.EvtPositionOpened, bus.EvtPositionUpdated, bus.EvtPositionClosed,
	} {
		b.Subscribe(t, handler)
	}
}

// ListRecent returns the newest rows, for the observer API.
func (s *Store) ListRecent(ctx context.Context, accountID string, limit int) ([]Record, error) {
	if s == nil || s.db == nil {
		return nil, fmt.Errorf("eventlog 未初始化")
	}
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	query := `SELECT id, event_id, type, account_id, symbol, payload, ts FROM event_log`
	args := []any{}
	if accountID != "" {
		query += ` WHERE account_id = ?`
		args = append(args, accountID)
	}
	query += ` ORDER BY ts DESC, id DESC LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		var r Record
		var payload string
		if err := rows.Scan(&r.ID, &r.EventID, &r.Type, &r.AccountID, &r.Symbol, &payload, &r.TS); err != nil {
			return nil, err
		}
		r.Payload = json.RawMessage(payload)
		out = append(out, r)
	}
	return out, rows.Err()
}

// Prune removes rows older than the retention window.
func (s *Store) Prune(ctx context.Context, retain time.Duration) error {
	if s == nil || s.db == nil || retain <= 0 {
		return nil
	}
	cutoff := time.Now().Add(-retain).UnixMilli()
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.db.ExecContext(ctx, `DELETE FROM event_log WHERE ts < ?`, cutoff)
	return err
}
