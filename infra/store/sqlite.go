// Package store provides the SQLite-backed request store. The conditional
// UPDATE on (id, status) gives Transition true check-and-set semantics.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/sasyevadam01/sl-enterprise-sub002/core/model"
	"github.com/sasyevadam01/sl-enterprise-sub002/core/request"
)

// SQLiteStore persists dispatch requests in a SQLite database.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens or creates the database at path and ensures schema.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// SQLite serializes writers; single connection avoids busy errors.
	db.SetMaxOpenConns(1)
	schema := `CREATE TABLE IF NOT EXISTS requests (
        id TEXT PRIMARY KEY,
        kind TEXT NOT NULL,
        requester_id TEXT NOT NULL,
        target_location_id TEXT NOT NULL,
        description TEXT,
        quantity REAL,
        unit TEXT,
        status TEXT NOT NULL,
        manual_urgent INTEGER NOT NULL DEFAULT 0,
        auto_urgent INTEGER NOT NULL DEFAULT 0,
        urgent_since INTEGER,
        created_at INTEGER NOT NULL,
        assigned_to TEXT NOT NULL DEFAULT '',
        eta_minutes INTEGER NOT NULL DEFAULT 0,
        taken_at INTEGER,
        completed_at INTEGER,
        cancelled_at INTEGER,
        cancelled_reason TEXT,
        cancelled_by TEXT,
        confirmation_code TEXT
    );
    CREATE INDEX IF NOT EXISTS idx_requests_status ON requests(status);
    CREATE INDEX IF NOT EXISTS idx_requests_assigned ON requests(assigned_to);`
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

const columns = `id, kind, requester_id, target_location_id, description, quantity, unit,
    status, manual_urgent, auto_urgent, urgent_since, created_at, assigned_to,
    eta_minutes, taken_at, completed_at, cancelled_at, cancelled_reason,
    cancelled_by, confirmation_code`

func (s *SQLiteStore) Create(ctx context.Context, r model.DispatchRequest) (model.DispatchRequest, error) {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO requests (`+columns+`) VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)`,
		bindValues(r)...)
	if err != nil {
		return model.DispatchRequest{}, err
	}
	return r, nil
}

func (s *SQLiteStore) Get(ctx context.Context, id string) (model.DispatchRequest, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+columns+` FROM requests WHERE id = ?`, id)
	r, err := scanRequest(row)
	if errors.Is(err, sql.ErrNoRows) {
		return model.DispatchRequest{}, request.ErrNotFound
	}
	return r, err
}

func (s *SQLiteStore) List(ctx context.Context, f request.Filter) ([]model.DispatchRequest, error) {
	query := `SELECT ` + columns + ` FROM requests WHERE 1=1`
	var args []any
	if len(f.Statuses) > 0 {
		query += ` AND status IN (?` + strings.Repeat(",?", len(f.Statuses)-1) + `)`
		for _, st := range f.Statuses {
			args = append(args, string(st))
		}
	}
	if f.AssignedTo != "" {
		query += ` AND assigned_to = ?`
		args = append(args, f.AssignedTo)
	}
	if f.RequesterID != "" {
		query += ` AND requester_id = ?`
		args = append(args, f.RequesterID)
	}
	if f.LocationID != "" {
		query += ` AND target_location_id = ?`
		args = append(args, f.LocationID)
	}
	if !f.CreatedFrom.IsZero() {
		query += ` AND created_at >= ?`
		args = append(args, f.CreatedFrom.Unix())
	}
	if !f.CreatedTo.IsZero() {
		query += ` AND created_at <= ?`
		args = append(args, f.CreatedTo.Unix())
	}
	query += ` ORDER BY created_at, id`
	if f.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, f.Limit)
	} else if f.Offset > 0 {
		query += ` LIMIT -1`
	}
	if f.Offset > 0 {
		query += ` OFFSET ?`
		args = append(args, f.Offset)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	var res []model.DispatchRequest
	for rows.Next() {
		r, err := scanRequest(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, r)
	}
	return res, rows.Err()
}

func (s *SQLiteStore) Transition(ctx context.Context, id string, expected model.RequestStatus, apply func(*model.DispatchRequest) error) (model.DispatchRequest, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return model.DispatchRequest{}, err
	}
	defer func() { _ = tx.Rollback() }()

	row := tx.QueryRowContext(ctx, `SELECT `+columns+` FROM requests WHERE id = ?`, id)
	r, err := scanRequest(row)
	if errors.Is(err, sql.ErrNoRows) {
		return model.DispatchRequest{}, request.ErrNotFound
	}
	if err != nil {
		return model.DispatchRequest{}, err
	}
	if r.Status != expected {
		return model.DispatchRequest{}, request.ErrConflict
	}
	if err := apply(&r); err != nil {
		return model.DispatchRequest{}, err
	}
	// The status predicate makes the write a compare-and-set even outside
	// the transaction: a racing transition leaves RowsAffected at zero.
	res, err := tx.ExecContext(ctx, `UPDATE requests SET
        kind=?, requester_id=?, target_location_id=?, description=?, quantity=?, unit=?,
        status=?, manual_urgent=?, auto_urgent=?, urgent_since=?, created_at=?, assigned_to=?,
        eta_minutes=?, taken_at=?, completed_at=?, cancelled_at=?, cancelled_reason=?,
        cancelled_by=?, confirmation_code=?
        WHERE id=? AND status=?`,
		append(bindValues(r)[1:], id, string(expected))...)
	if err != nil {
		return model.DispatchRequest{}, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return model.DispatchRequest{}, err
	}
	if n == 0 {
		return model.DispatchRequest{}, request.ErrConflict
	}
	if err := tx.Commit(); err != nil {
		return model.DispatchRequest{}, err
	}
	return r, nil
}

func bindValues(r model.DispatchRequest) []any {
	return []any{
		r.ID, string(r.Kind), r.RequesterID, r.TargetLocationID, r.Description,
		r.Quantity, r.Unit, string(r.Status), boolInt(r.ManualUrgent), boolInt(r.AutoUrgent),
		nullTime(r.UrgentSince), r.CreatedAt.Unix(), r.AssignedTo, r.PromisedETAMinutes,
		nullTime(r.TakenAt), nullTime(r.CompletedAt), nullTime(r.CancelledAt),
		r.CancelledReason, string(r.CancelledBy), r.ConfirmationCode,
	}
}

type scannable interface {
	Scan(dest ...any) error
}

func scanRequest(row scannable) (model.DispatchRequest, error) {
	var (
		r                               model.DispatchRequest
		kind, status, cancelledBy       string
		manualUrgent, autoUrgent        int
		urgentSince, takenAt            sql.NullInt64
		completedAt, cancelledAt        sql.NullInt64
		createdAt                       int64
		description, unit               sql.NullString
		cancelledReason, confirmationCd sql.NullString
		quantity                        sql.NullFloat64
	)
	err := row.Scan(&r.ID, &kind, &r.RequesterID, &r.TargetLocationID, &description,
		&quantity, &unit, &status, &manualUrgent, &autoUrgent, &urgentSince, &createdAt,
		&r.AssignedTo, &r.PromisedETAMinutes, &takenAt, &completedAt, &cancelledAt,
		&cancelledReason, &cancelledBy, &confirmationCd)
	if err != nil {
		return model.DispatchRequest{}, err
	}
	r.Kind = model.RequestKind(kind)
	r.Status = model.RequestStatus(status)
	r.CancelledBy = model.ActorRole(cancelledBy)
	r.ManualUrgent = manualUrgent != 0
	r.AutoUrgent = autoUrgent != 0
	r.CreatedAt = time.Unix(createdAt, 0).UTC()
	r.UrgentSince = timePtr(urgentSince)
	r.TakenAt = timePtr(takenAt)
	r.CompletedAt = timePtr(completedAt)
	r.CancelledAt = timePtr(cancelledAt)
	r.Description = description.String
	r.Unit = unit.String
	r.CancelledReason = cancelledReason.String
	r.ConfirmationCode = confirmationCd.String
	r.Quantity = quantity.Float64
	return r, nil
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func nullTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.Unix()
}

func timePtr(v sql.NullInt64) *time.Time {
	if !v.Valid {
		return nil
	}
	t := time.Unix(v.Int64, 0).UTC()
	return &t
}
