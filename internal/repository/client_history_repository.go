package repository

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Marga-Ghale/ora-ops-console/internal/types"
)

// ClientHistoryEntry is one immutable audit record. Seq is the monotonic
// insertion order and breaks CreatedAt ties.
type ClientHistoryEntry struct {
	Seq         int64
	ID          string
	ClientID    string
	ActorID     string
	ActionType  types.HistoryAction
	Description string
	CreatedAt   time.Time
}

// ClientHistoryRepository is append-only: there is no update or delete.
type ClientHistoryRepository interface {
	Append(ctx context.Context, entry *ClientHistoryEntry) error
	// ListByClient returns entries newest first.
	ListByClient(ctx context.Context, clientID string) ([]*ClientHistoryEntry, error)
}

type pgClientHistoryRepository struct {
	pool *pgxpool.Pool
}

func NewClientHistoryRepository(pool *pgxpool.Pool) ClientHistoryRepository {
	return &pgClientHistoryRepository{pool: pool}
}

func (r *pgClientHistoryRepository) Append(ctx context.Context, e *ClientHistoryEntry) error {
	query := `
		INSERT INTO client_history (client_id, actor_id, action_type, description)
		VALUES ($1, $2, $3, $4)
		RETURNING seq, id, created_at
	`
	return r.pool.QueryRow(ctx, query, e.ClientID, e.ActorID, e.ActionType, e.Description).
		Scan(&e.Seq, &e.ID, &e.CreatedAt)
}

func (r *pgClientHistoryRepository) ListByClient(ctx context.Context, clientID string) ([]*ClientHistoryEntry, error) {
	query := `
		SELECT seq, id, client_id, actor_id, action_type, description, created_at
		FROM client_history WHERE client_id::text = $1
		ORDER BY created_at DESC, seq DESC
	`
	rows, err := r.pool.Query(ctx, query, clientID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []*ClientHistoryEntry
	for rows.Next() {
		e := &ClientHistoryEntry{}
		if err := rows.Scan(
			&e.Seq, &e.ID, &e.ClientID, &e.ActorID, &e.ActionType, &e.Description, &e.CreatedAt,
		); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
