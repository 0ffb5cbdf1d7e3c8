package session

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
)

const (
	selectSessionSQL = `SELECT user_id, current_state, context, updated_at FROM user_states WHERE user_id = $1`
	upsertSessionSQL = `INSERT INTO user_states (user_id, current_state, context, updated_at)
VALUES ($1, $2, $3, $4)
ON CONFLICT (user_id) DO UPDATE
SET current_state = EXCLUDED.current_state, context = EXCLUDED.context, updated_at = EXCLUDED.updated_at`
)

type sessionRow struct {
	UserID       int64     `db:"user_id"`
	CurrentState string    `db:"current_state"`
	Context      []byte    `db:"context"`
	UpdatedAt    time.Time `db:"updated_at"`
}

// PostgresStore keeps sessions in the user_states table.
type PostgresStore struct {
	db *sqlx.DB
}

// NewPostgresStore wraps an open connection pool.
func NewPostgresStore(db *sqlx.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// Load implements Store.
func (p *PostgresStore) Load(ctx context.Context, userID int64) (Session, error) {
	var row sessionRow
	if err := p.db.GetContext(ctx, &row, selectSessionSQL, userID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Session{}, ErrNotFound
		}
		return Session{}, fmt.Errorf("load session %d: %w", userID, err)
	}
	raw := row.Context
	if len(raw) == 0 {
		raw = emptyContext
	}
	return Session{
		UserID:    row.UserID,
		Mode:      Mode(row.CurrentState),
		Context:   raw,
		UpdatedAt: row.UpdatedAt,
	}, nil
}

// Save implements Store.
func (p *PostgresStore) Save(ctx context.Context, s Session) error {
	raw := s.Context
	if len(raw) == 0 {
		raw = emptyContext
	}
	if _, err := p.db.ExecContext(ctx, upsertSessionSQL, s.UserID, string(s.Mode), []byte(raw), s.UpdatedAt); err != nil {
		return fmt.Errorf("save session %d: %w", s.UserID, err)
	}
	return nil
}
