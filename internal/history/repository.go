// Package history stores content state transitions in SQLite so operators
// can see how a content moved through its lifecycle.
package history

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/nerrad567/gray-logic-compositor/internal/content"
)

const (
	// DefaultLimit is used when ListTransitions is called with limit <= 0.
	DefaultLimit = 50
	// MaxLimit caps ListTransitions.
	MaxLimit = 200

	// timeFormat is fixed-width so created_at sorts lexically.
	timeFormat = "2006-01-02T15:04:05.000000000Z"
)

// ErrInvalidTransition is returned when a transition is missing its states.
var ErrInvalidTransition = errors.New("history: transition requires from and to states")

// Transition is one recorded content state change.
type Transition struct {
	ID        string             `json:"id"`
	ContentID content.ContentID  `json:"content_id"`
	Category  content.CategoryID `json:"category"`
	From      string             `json:"from"`
	To        string             `json:"to"`
	Result    string             `json:"result"`

	// Tick is the controller time (milliseconds) of the change.
	Tick      uint64    `json:"tick"`
	CreatedAt time.Time `json:"created_at"`
}

// Repository defines the history operations used by the compositor.
type Repository interface {
	RecordTransition(ctx context.Context, tr *Transition) error
	ListTransitions(ctx context.Context, id content.ContentID, limit int) ([]Transition, error)
	Prune(ctx context.Context, olderThan time.Time) (int64, error)
}

// SQLiteRepository implements Repository over the content_history table.
type SQLiteRepository struct {
	db *sql.DB
}

var _ Repository = (*SQLiteRepository)(nil)

// NewSQLiteRepository creates a repository. The content_history migration
// must already be applied.
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

// RecordTransition inserts tr. ID, Result and CreatedAt are filled in when empty.
func (r *SQLiteRepository) RecordTransition(ctx context.Context, tr *Transition) error {
	if tr.From == "" || tr.To == "" {
		return ErrInvalidTransition
	}
	if tr.ID == "" {
		tr.ID = "hst-" + uuid.NewString()
	}
	if tr.Result == "" {
		tr.Result = content.ResultOK.String()
	}
	if tr.CreatedAt.IsZero() {
		tr.CreatedAt = time.Now()
	}
	tr.CreatedAt = tr.CreatedAt.UTC()

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO content_history (id, content_id, category_id, from_state, to_state, result, tick, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		tr.ID,
		int64(tr.ContentID), //nolint:gosec // SQLite INTEGER is signed; round-trips through uint64
		int64(tr.Category),  //nolint:gosec // As above
		tr.From, tr.To, tr.Result,
		int64(tr.Tick), //nolint:gosec // As above
		tr.CreatedAt.Format(timeFormat),
	)
	if err != nil {
		return fmt.Errorf("inserting transition for content %d: %w", tr.ContentID, err)
	}
	return nil
}

// ListTransitions returns the newest transitions of one content first.
// limit defaults to DefaultLimit and is capped at MaxLimit. An unknown
// content has an empty history.
func (r *SQLiteRepository) ListTransitions(ctx context.Context, id content.ContentID, limit int) ([]Transition, error) {
	if limit <= 0 {
		limit = DefaultLimit
	}
	limit = min(limit, MaxLimit)

	rows, err := r.db.QueryContext(ctx,
		`SELECT id, content_id, category_id, from_state, to_state, result, tick, created_at
		 FROM content_history
		 WHERE content_id = ?
		 ORDER BY created_at DESC, rowid DESC
		 LIMIT ?`,
		int64(id), //nolint:gosec // See RecordTransition
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("querying transitions: %w", err)
	}
	defer rows.Close()

	transitions := make([]Transition, 0)
	for rows.Next() {
		var tr Transition
		var contentID, cat, tick int64
		var createdAt string
		if err := rows.Scan(&tr.ID, &contentID, &cat, &tr.From, &tr.To, &tr.Result, &tick, &createdAt); err != nil {
			return nil, fmt.Errorf("scanning transition: %w", err)
		}
		tr.ContentID = content.ContentID(uint64(contentID)) //nolint:gosec // Stored from a uint64
		tr.Category = content.CategoryID(uint64(cat))       //nolint:gosec // Stored from a uint64
		tr.Tick = uint64(tick)                              //nolint:gosec // Stored from a uint64

		tr.CreatedAt, err = time.Parse(timeFormat, createdAt)
		if err != nil {
			return nil, fmt.Errorf("parsing transition timestamp %q: %w", createdAt, err)
		}
		transitions = append(transitions, tr)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating transitions: %w", err)
	}
	return transitions, nil
}

// Prune deletes transitions recorded before olderThan and returns how many
// were removed.
func (r *SQLiteRepository) Prune(ctx context.Context, olderThan time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx,
		"DELETE FROM content_history WHERE created_at < ?",
		olderThan.UTC().Format(timeFormat),
	)
	if err != nil {
		return 0, fmt.Errorf("pruning transitions: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("counting pruned transitions: %w", err)
	}
	return n, nil
}
