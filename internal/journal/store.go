// Package journal persists modal lifecycle events and toasts so a session
// can be inspected after the fact.
package journal

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/sadsciencee/modalkit/internal/db"
	"github.com/sadsciencee/modalkit/internal/events"
)

// ErrNotFound is returned when a session has no journal entries.
var ErrNotFound = errors.New("session not found")

// DefaultLimit bounds List when no limit is given.
const DefaultLimit = 200

// Session summarizes the journal entries of one modal id.
type Session struct {
	ID        string
	Events    int
	Toasts    int
	FirstSeen time.Time
	LastSeen  time.Time
}

// Store reads and writes journal entries.
type Store struct {
	db *db.DB
}

// NewStore creates a store over an opened database.
func NewStore(database *db.DB) *Store {
	return &Store{db: database}
}

// Record stores a lifecycle event.
func (s *Store) Record(ctx context.Context, e events.ModalEvent) error {
	ts := e.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO modal_events (session_id, side, type, kind, detail, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
		e.SessionID, string(e.Side), string(e.Type), e.Kind, e.Detail, ts.UnixMilli())
	if err != nil {
		return fmt.Errorf("recording event: %w", err)
	}
	return nil
}

// RecordBatch stores events in one transaction.
func (s *Store) RecordBatch(ctx context.Context, batch []events.ModalEvent) error {
	if len(batch) == 0 {
		return nil
	}
	return s.db.WithTx(ctx, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx,
			`INSERT INTO modal_events (session_id, side, type, kind, detail, created_at) VALUES (?, ?, ?, ?, ?, ?)`)
		if err != nil {
			return fmt.Errorf("preparing insert: %w", err)
		}
		defer stmt.Close()

		for _, e := range batch {
			ts := e.Timestamp
			if ts.IsZero() {
				ts = time.Now()
			}
			if _, err := stmt.ExecContext(ctx, e.SessionID, string(e.Side), string(e.Type), e.Kind, e.Detail, ts.UnixMilli()); err != nil {
				return fmt.Errorf("recording event: %w", err)
			}
		}
		return nil
	})
}

// RecordToast stores a toast.
func (s *Store) RecordToast(ctx context.Context, t events.ToastEvent) error {
	ts := t.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO toasts (session_id, message, is_error, created_at) VALUES (?, ?, ?, ?)`,
		t.SessionID, t.Message, t.IsError, ts.UnixMilli())
	if err != nil {
		return fmt.Errorf("recording toast: %w", err)
	}
	return nil
}

// List returns the most recent events, oldest first. An empty sessionID
// lists every session; limit <= 0 means DefaultLimit.
func (s *Store) List(ctx context.Context, sessionID string, limit int) ([]events.ModalEvent, error) {
	if limit <= 0 {
		limit = DefaultLimit
	}

	query := `SELECT session_id, side, type, kind, detail, created_at FROM (
		SELECT id, session_id, side, type, kind, detail, created_at FROM modal_events
		WHERE (? = '' OR session_id = ?)
		ORDER BY id DESC LIMIT ?
	) ORDER BY id ASC`

	rows, err := s.db.QueryContext(ctx, query, sessionID, sessionID, limit)
	if err != nil {
		return nil, fmt.Errorf("listing events: %w", err)
	}
	defer rows.Close()

	var out []events.ModalEvent
	for rows.Next() {
		var (
			e         events.ModalEvent
			side, typ string
			createdAt int64
		)
		if err := rows.Scan(&e.SessionID, &side, &typ, &e.Kind, &e.Detail, &createdAt); err != nil {
			return nil, fmt.Errorf("scanning event: %w", err)
		}
		e.Side = events.Side(side)
		e.Type = events.ModalEventType(typ)
		e.Timestamp = time.UnixMilli(createdAt)
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("listing events: %w", err)
	}
	return out, nil
}

// Toasts returns the toasts raised by sessionID, oldest first.
func (s *Store) Toasts(ctx context.Context, sessionID string) ([]events.ToastEvent, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT session_id, message, is_error, created_at FROM toasts WHERE session_id = ? ORDER BY id ASC`,
		sessionID)
	if err != nil {
		return nil, fmt.Errorf("listing toasts: %w", err)
	}
	defer rows.Close()

	var out []events.ToastEvent
	for rows.Next() {
		var (
			t         events.ToastEvent
			createdAt int64
		)
		if err := rows.Scan(&t.SessionID, &t.Message, &t.IsError, &createdAt); err != nil {
			return nil, fmt.Errorf("scanning toast: %w", err)
		}
		t.Timestamp = time.UnixMilli(createdAt)
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("listing toasts: %w", err)
	}
	return out, nil
}

const sessionsQuery = `SELECT e.session_id, e.events, e.first_seen, e.last_seen,
		(SELECT COUNT(*) FROM toasts t WHERE t.session_id = e.session_id)
	FROM (
		SELECT session_id, COUNT(*) AS events, MIN(created_at) AS first_seen, MAX(created_at) AS last_seen
		FROM modal_events GROUP BY session_id
	) e`

// Sessions summarizes every journaled session, most recently active first.
func (s *Store) Sessions(ctx context.Context) ([]Session, error) {
	rows, err := s.db.QueryContext(ctx, sessionsQuery+` ORDER BY e.last_seen DESC, e.session_id`)
	if err != nil {
		return nil, fmt.Errorf("listing sessions: %w", err)
	}
	defer rows.Close()

	var out []Session
	for rows.Next() {
		sess, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, sess)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("listing sessions: %w", err)
	}
	return out, nil
}

// Session summarizes one session.
func (s *Store) Session(ctx context.Context, id string) (Session, error) {
	row := s.db.QueryRowContext(ctx, sessionsQuery+` WHERE e.session_id = ?`, id)
	sess, err := scanSession(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Session{}, ErrNotFound
	}
	return sess, err
}

// Prune deletes entries older than before and reports how many events went.
func (s *Store) Prune(ctx context.Context, before time.Time) (int64, error) {
	var n int64
	err := s.db.WithTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `DELETE FROM modal_events WHERE created_at < ?`, before.UnixMilli())
		if err != nil {
			return fmt.Errorf("pruning events: %w", err)
		}
		n, _ = res.RowsAffected()
		if _, err := tx.ExecContext(ctx, `DELETE FROM toasts WHERE created_at < ?`, before.UnixMilli()); err != nil {
			return fmt.Errorf("pruning toasts: %w", err)
		}
		return nil
	})
	return n, err
}

type scanner interface {
	Scan(dest ...any) error
}

func scanSession(row scanner) (Session, error) {
	var (
		sess        Session
		first, last int64
	)
	if err := row.Scan(&sess.ID, &sess.Events, &first, &last, &sess.Toasts); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Session{}, err
		}
		return Session{}, fmt.Errorf("scanning session: %w", err)
	}
	sess.FirstSeen = time.UnixMilli(first)
	sess.LastSeen = time.UnixMilli(last)
	return sess, nil
}
