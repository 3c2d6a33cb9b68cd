package recorder

import (
	"database/sql"
	"fmt"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
	_ "modernc.org/sqlite"
)

// SQLiteRecorder persists refresh outcomes to a SQLite database.
type SQLiteRecorder struct {
	db *sql.DB
	mu sync.Mutex
}

// NewSQLiteRecorder opens (or creates) the SQLite database and runs migrations.
func NewSQLiteRecorder(dbPath string) (*SQLiteRecorder, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}

	r := &SQLiteRecorder{db: db}
	if err := r.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	log.Infof("sqlite recorder opened: %s", dbPath)
	return r, nil
}

func (r *SQLiteRecorder) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS refresh_events (
			id          INTEGER PRIMARY KEY AUTOINCREMENT,
			timestamp   INTEGER NOT NULL,
			kind        TEXT NOT NULL,
			series_key  TEXT,
			ok          INTEGER NOT NULL,
			error       TEXT,
			count       INTEGER,
			duration_ms INTEGER
		)`,
		`CREATE INDEX IF NOT EXISTS idx_refresh_ts ON refresh_events(timestamp)`,
		`CREATE INDEX IF NOT EXISTS idx_refresh_kind ON refresh_events(kind, series_key)`,
	}

	for _, s := range stmts {
		if _, err := r.db.Exec(s); err != nil {
			return fmt.Errorf("exec %q: %w", s[:40], err)
		}
	}
	return nil
}

func (r *SQLiteRecorder) RecordRefresh(evt *RefreshEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	at := evt.At
	if at.IsZero() {
		at = time.Now()
	}
	ok := 0
	if evt.OK {
		ok = 1
	}
	_, err := r.db.Exec(`INSERT INTO refresh_events
		(timestamp, kind, series_key, ok, error, count, duration_ms)
		VALUES (?,?,?,?,?,?,?)`,
		at.UnixMilli(), evt.Kind, evt.Key, ok, evt.Error, evt.Count, evt.Duration.Milliseconds(),
	)
	return err
}

// Recent returns up to limit events, newest first.
func (r *SQLiteRecorder) Recent(limit int) ([]RefreshEvent, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	rows, err := r.db.Query(`SELECT timestamp, kind, series_key, ok, error, count, duration_ms
		FROM refresh_events ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query refresh events: %w", err)
	}
	defer rows.Close()

	var out []RefreshEvent
	for rows.Next() {
		var (
			ts, durMs   int64
			ok, count   int
			key, errMsg sql.NullString
			evt         RefreshEvent
		)
		if err := rows.Scan(&ts, &evt.Kind, &key, &ok, &errMsg, &count, &durMs); err != nil {
			return nil, fmt.Errorf("scan refresh event: %w", err)
		}
		evt.At = time.UnixMilli(ts)
		evt.Key = key.String
		evt.OK = ok == 1
		evt.Error = errMsg.String
		evt.Count = count
		evt.Duration = time.Duration(durMs) * time.Millisecond
		out = append(out, evt)
	}
	return out, rows.Err()
}

func (r *SQLiteRecorder) Close() error {
	log.Info("closing sqlite recorder")
	return r.db.Close()
}
