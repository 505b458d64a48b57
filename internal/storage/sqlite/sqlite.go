package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3" // sqlite driver

	"sysconsole/internal/storage"
)

const (
	defaultLimit = 50
	maxLimit     = 500
)

// Store реализует storage.Store поверх SQLite.
type Store struct {
	db *sql.DB
}

// Open инициализирует соединение и выполняет миграции.
func Open(path string) (*Store, error) {
	dsn := fmt.Sprintf("file:%s?_journal=WAL&_busy_timeout=5000", path)
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if err := migrate(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Store{db: db}, nil
}

func migrate(db *sql.DB) error {
	schema := []string{
		`CREATE TABLE IF NOT EXISTS metrics (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			ts DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			module TEXT NOT NULL,
			payload BLOB NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_metrics_module_ts ON metrics(module, ts);`,
		`CREATE TABLE IF NOT EXISTS action_log (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			ts DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			session TEXT,
			source TEXT,
			subject TEXT,
			component TEXT NOT NULL,
			action TEXT NOT NULL,
			outcome TEXT,
			status TEXT
		);`,
		`CREATE INDEX IF NOT EXISTS idx_action_log_ts ON action_log(ts);`,
		`CREATE INDEX IF NOT EXISTS idx_action_log_component_ts ON action_log(component, ts);`,
	}
	for _, stmt := range schema {
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}
	}
	return nil
}

// SaveAction добавляет запись в журнал действий.
func (s *Store) SaveAction(ctx context.Context, e storage.ActionEntry) error {
	ts := e.TS
	if ts.IsZero() {
		ts = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx, `INSERT INTO action_log(session, source, subject, component, action, outcome, status, ts) VALUES(?,?,?,?,?,?,?,?)`,
		e.Session, e.Source, e.Subject, e.Component, e.Action, e.Outcome, e.Status, ts.UTC())
	if err != nil {
		return fmt.Errorf("insert action: %w", err)
	}
	return nil
}

// QueryActions возвращает журнал по фильтрам, новые записи первыми.
func (s *Store) QueryActions(ctx context.Context, q storage.ActionQuery) ([]storage.ActionEntry, error) {
	limit := q.Limit
	if limit <= 0 {
		limit = defaultLimit
	}
	if limit > maxLimit {
		limit = maxLimit
	}
	from := q.From
	if from.IsZero() {
		from = time.Unix(0, 0).UTC()
	}
	to := q.To
	if to.IsZero() {
		to = time.Now().UTC()
	}

	rows, err := s.db.QueryContext(ctx, `
SELECT session, source, subject, component, action, outcome, status, ts
FROM action_log
WHERE ts >= ? AND ts <= ? AND (? = '' OR component = ?)
ORDER BY ts DESC, id DESC
LIMIT ?`, from.UTC(), to.UTC(), q.Component, q.Component, limit)
	if err != nil {
		return nil, fmt.Errorf("query actions: %w", err)
	}
	defer rows.Close()

	entries := make([]storage.ActionEntry, 0, limit)
	for rows.Next() {
		var e storage.ActionEntry
		var ts string
		if err := rows.Scan(&e.Session, &e.Source, &e.Subject, &e.Component, &e.Action, &e.Outcome, &e.Status, &ts); err != nil {
			return nil, fmt.Errorf("scan action: %w", err)
		}
		if e.TS, err = parseSQLiteTS(ts); err != nil {
			return nil, fmt.Errorf("parse action timestamp: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate actions: %w", err)
	}
	return entries, nil
}

// SaveMetric сохраняет метрику.
func (s *Store) SaveMetric(ctx context.Context, rec storage.MetricRecord) error {
	ts := rec.TS
	if ts.IsZero() {
		ts = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx, `INSERT INTO metrics(module, payload, ts) VALUES(?,?,?)`, rec.Module, rec.Payload, ts.UTC())
	if err != nil {
		return fmt.Errorf("insert metric: %w", err)
	}
	return nil
}

// LatestMetric возвращает последнюю метрику по модулю.
func (s *Store) LatestMetric(ctx context.Context, module string) (storage.MetricRecord, error) {
	row := s.db.QueryRowContext(ctx, `SELECT module, payload, ts FROM metrics WHERE module = ? ORDER BY ts DESC, id DESC LIMIT 1`, module)
	var rec storage.MetricRecord
	var ts string
	if err := row.Scan(&rec.Module, &rec.Payload, &ts); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return storage.MetricRecord{}, fmt.Errorf("latest metric %q: %w", module, storage.ErrNotFound)
		}
		return storage.MetricRecord{}, fmt.Errorf("query latest metric: %w", err)
	}
	parsedTS, err := parseSQLiteTS(ts)
	if err != nil {
		return storage.MetricRecord{}, fmt.Errorf("parse metric timestamp: %w", err)
	}
	rec.TS = parsedTS
	return rec, nil
}

// Prune удаляет записи старше before и возвращает их число.
func (s *Store) Prune(ctx context.Context, before time.Time) (int64, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin prune: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var total int64
	for _, table := range []string{"action_log", "metrics"} {
		res, err := tx.ExecContext(ctx, `DELETE FROM `+table+` WHERE ts < ?`, before.UTC())
		if err != nil {
			return 0, fmt.Errorf("prune %s: %w", table, err)
		}
		n, _ := res.RowsAffected()
		total += n
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit prune: %w", err)
	}
	return total, nil
}

func parseSQLiteTS(v string) (time.Time, error) {
	layouts := []string{
		time.RFC3339Nano,
		"2006-01-02 15:04:05.999999999-07:00",
		"2006-01-02 15:04:05.999999999",
		"2006-01-02 15:04:05",
	}
	for _, layout := range layouts {
		if ts, err := time.Parse(layout, v); err == nil {
			return ts.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unsupported sqlite time format: %q", v)
}

// Close закрывает соединение.
func (s *Store) Close() error {
	return s.db.Close()
}

// MarshalPayload сериализует данные метрики.
func MarshalPayload(data interface{}) ([]byte, error) {
	buf, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("marshal payload: %w", err)
	}
	return buf, nil
}
