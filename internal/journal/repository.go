package journal

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/nerrad567/posebridge/internal/bridge"
)

// List limits.
const (
	DefaultLimit = 50
	MaxLimit     = 500
)

// timestampLayout is fixed-width so created_at sorts as text.
const timestampLayout = "2006-01-02T15:04:05.000000000Z07:00"

// Entry is one recorded connection state transition.
type Entry struct {
	ID        string    `json:"id"`
	SessionID string    `json:"session_id"`
	From      string    `json:"from"`
	To        string    `json:"to"`
	Reason    string    `json:"reason,omitempty"`
	SlotCount int       `json:"slot_count"`
	CreatedAt time.Time `json:"created_at"`
}

// EntryFromTransition converts a bridge transition into a journal entry.
func EntryFromTransition(t bridge.Transition) Entry {
	return Entry{
		SessionID: t.SessionID,
		From:      t.From.String(),
		To:        t.To.String(),
		Reason:    t.Reason,
		SlotCount: t.SlotCount,
		CreatedAt: t.At,
	}
}

// Repository stores and lists journal entries.
type Repository interface {
	Create(ctx context.Context, e *Entry) error
	List(ctx context.Context, limit int) ([]Entry, error)
	ListSession(ctx context.Context, sessionID string, limit int) ([]Entry, error)
	Prune(ctx context.Context, olderThan time.Duration) (int64, error)
}

// SQLiteRepository keeps the journal in the connection_transitions table.
type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository creates a repository over db.
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

// Create inserts an entry. ID and CreatedAt are generated if empty.
func (r *SQLiteRepository) Create(ctx context.Context, e *Entry) error {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now()
	}
	e.CreatedAt = e.CreatedAt.UTC()

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO connection_transitions (id, session_id, from_state, to_state, reason, slot_count, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.SessionID, e.From, e.To, e.Reason, e.SlotCount,
		e.CreatedAt.Format(timestampLayout),
	)
	if err != nil {
		return fmt.Errorf("inserting journal entry: %w", err)
	}
	return nil
}

// List returns the most recent entries, newest first.
func (r *SQLiteRepository) List(ctx context.Context, limit int) ([]Entry, error) {
	return r.query(ctx,
		`SELECT id, session_id, from_state, to_state, reason, slot_count, created_at
		 FROM connection_transitions
		 ORDER BY created_at DESC, rowid DESC
		 LIMIT ?`,
		clampLimit(limit),
	)
}

// ListSession returns the most recent entries of one connect session.
func (r *SQLiteRepository) ListSession(ctx context.Context, sessionID string, limit int) ([]Entry, error) {
	return r.query(ctx,
		`SELECT id, session_id, from_state, to_state, reason, slot_count, created_at
		 FROM connection_transitions
		 WHERE session_id = ?
		 ORDER BY created_at DESC, rowid DESC
		 LIMIT ?`,
		sessionID, clampLimit(limit),
	)
}

// Prune deletes entries older than olderThan.
//
// Returns:
//   - int64: Number of entries deleted
//   - error: nil on success, otherwise the underlying database error
func (r *SQLiteRepository) Prune(ctx context.Context, olderThan time.Duration) (int64, error) {
	if olderThan <= 0 {
		return 0, fmt.Errorf("pruning journal: retention must be positive")
	}

	cutoff := time.Now().UTC().Add(-olderThan).Format(timestampLayout)
	result, err := r.db.ExecContext(ctx,
		"DELETE FROM connection_transitions WHERE created_at < ?",
		cutoff,
	)
	if err != nil {
		return 0, fmt.Errorf("pruning journal: %w", err)
	}

	deleted, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("checking pruned rows: %w", err)
	}
	return deleted, nil
}

func (r *SQLiteRepository) query(ctx context.Context, query string, args ...any) ([]Entry, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying journal: %w", err)
	}
	defer rows.Close()

	entries := []Entry{}
	for rows.Next() {
		var e Entry
		var createdAt string
		if err := rows.Scan(&e.ID, &e.SessionID, &e.From, &e.To, &e.Reason, &e.SlotCount, &createdAt); err != nil {
			return nil, fmt.Errorf("scanning journal entry: %w", err)
		}
		e.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt)
		if err != nil {
			return nil, fmt.Errorf("parsing journal timestamp %q: %w", createdAt, err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating journal: %w", err)
	}
	return entries, nil
}

func clampLimit(limit int) int {
	if limit <= 0 {
		return DefaultLimit
	}
	return min(limit, MaxLimit)
}
