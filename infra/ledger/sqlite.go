// Package ledger provides the SQLite-backed performance event stream.
package ledger

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	coreledger "github.com/sasyevadam01/sl-enterprise-sub002/core/ledger"
	"github.com/sasyevadam01/sl-enterprise-sub002/core/model"
)

// SQLiteStore persists performance events. Rows are only ever inserted.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens or creates the database at path and ensures schema.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	schema := `CREATE TABLE IF NOT EXISTS performance_events (
        id INTEGER PRIMARY KEY AUTOINCREMENT,
        operator_id TEXT NOT NULL,
        event_type TEXT NOT NULL,
        points_delta INTEGER NOT NULL,
        reaction_seconds REAL,
        request_id TEXT,
        ts INTEGER NOT NULL
    );
    CREATE INDEX IF NOT EXISTS idx_perf_operator_ts ON performance_events(operator_id, ts);`
	if _, err := db.Exec(schema); err != nil {
		if cerr := db.Close(); cerr != nil {
			return nil, fmt.Errorf("close db: %v (schema err: %w)", cerr, err)
		}
		return nil, err
	}
	return &SQLiteStore{db: db}, nil
}

// Close closes the underlying database.
func (s *SQLiteStore) Close() error { return s.db.Close() }

// Append inserts the event.
func (s *SQLiteStore) Append(ctx context.Context, ev model.PerformanceEvent) error {
	var reaction any
	if ev.ReactionSeconds != nil {
		reaction = *ev.ReactionSeconds
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO performance_events (operator_id, event_type, points_delta, reaction_seconds, request_id, ts)
         VALUES (?, ?, ?, ?, ?, ?)`,
		ev.OperatorID, string(ev.Type), ev.PointsDelta, reaction, ev.RequestID, ev.Timestamp.Unix())
	return err
}

// Query returns events matching q in append order.
func (s *SQLiteStore) Query(ctx context.Context, q coreledger.Query) ([]model.PerformanceEvent, error) {
	query := `SELECT operator_id, event_type, points_delta, reaction_seconds, request_id, ts
        FROM performance_events WHERE 1=1`
	var args []any
	if q.OperatorID != "" {
		query += ` AND operator_id = ?`
		args = append(args, q.OperatorID)
	}
	if !q.From.IsZero() {
		query += ` AND ts >= ?`
		args = append(args, q.From.Unix())
	}
	if !q.To.IsZero() {
		query += ` AND ts < ?`
		args = append(args, q.To.Unix())
	}
	query += ` ORDER BY id`
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	var res []model.PerformanceEvent
	for rows.Next() {
		var (
			ev       model.PerformanceEvent
			evType   string
			reaction sql.NullFloat64
			ts       int64
		)
		if err := rows.Scan(&ev.OperatorID, &evType, &ev.PointsDelta, &reaction, &ev.RequestID, &ts); err != nil {
			return nil, err
		}
		ev.Type = model.PerformanceEventType(evType)
		ev.Timestamp = time.Unix(ts, 0).UTC()
		if reaction.Valid {
			v := reaction.Float64
			ev.ReactionSeconds = &v
		}
		res = append(res, ev)
	}
	return res, rows.Err()
}
