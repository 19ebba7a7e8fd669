package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/Marga-Ghale/ora-ops-console/internal/types"
)

type Client struct {
	ID                string
	Email             string
	Name              string
	CompanyName       string
	Phone             *string
	Website           *string
	LifecycleStatus   types.LifecycleStatus
	Weightage         types.Weightage
	RelationshipLevel types.RelationshipLevel
	Source            types.ClientSource
	IsHighRisk        bool
	LeadScore         *int
	ExpectedValue     decimal.NullDecimal
	OwnerID           string
	Notes             *string
	IsArchived        bool
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// Clone returns a deep copy so callers can diff against the original.
func (c *Client) Clone() *Client {
	cp := *c
	cp.Phone = clonePtr(c.Phone)
	cp.Website = clonePtr(c.Website)
	cp.Notes = clonePtr(c.Notes)
	cp.LeadScore = clonePtr(c.LeadScore)
	return &cp
}

func clonePtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

type ClientFilter struct {
	LifecycleStatus *types.LifecycleStatus
	Weightage       *types.Weightage
	OwnerID         *string
	// nil lists only non-archived clients
	IsArchived *bool
	Search     string
	Limit      int
	Offset     int
}

// ClientMutation receives the locked current row and mutates it in place.
// It reports whether anything changed; false skips the write.
type ClientMutation func(current *Client) (changed bool, err error)

type ClientRepository interface {
	// Create fails with ErrConflict when the email is taken case-insensitively.
	Create(ctx context.Context, client *Client) error
	FindByID(ctx context.Context, id string) (*Client, error)
	List(ctx context.Context, filter ClientFilter) ([]*Client, error)
	// Update runs mutate against the current row under a row lock and
	// persists the result in the same transaction.
	Update(ctx context.Context, id string, mutate ClientMutation) (*Client, error)
}

const clientColumns = `
	id, email, name, company_name, phone, website, lifecycle_status, weightage,
	relationship_level, source, is_high_risk, lead_score, expected_value, owner_id,
	notes, is_archived, created_at, updated_at`

type pgClientRepository struct {
	pool *pgxpool.Pool
	tx   *TxRunner
}

func NewClientRepository(pool *pgxpool.Pool) ClientRepository {
	return &pgClientRepository{pool: pool, tx: NewTxRunner(pool)}
}

func scanClient(row pgx.Row) (*Client, error) {
	c := &Client{}
	err := row.Scan(
		&c.ID, &c.Email, &c.Name, &c.CompanyName, &c.Phone, &c.Website,
		&c.LifecycleStatus, &c.Weightage, &c.RelationshipLevel, &c.Source,
		&c.IsHighRisk, &c.LeadScore, &c.ExpectedValue, &c.OwnerID,
		&c.Notes, &c.IsArchived, &c.CreatedAt, &c.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return c, nil
}

func (r *pgClientRepository) Create(ctx context.Context, c *Client) error {
	query := `
		INSERT INTO clients (
			email, name, company_name, phone, website, lifecycle_status, weightage,
			relationship_level, source, is_high_risk, lead_score, expected_value,
			owner_id, notes, is_archived
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
		RETURNING id, created_at, updated_at
	`
	err := r.pool.QueryRow(ctx, query,
		c.Email, c.Name, c.CompanyName, c.Phone, c.Website, c.LifecycleStatus, c.Weightage,
		c.RelationshipLevel, c.Source, c.IsHighRisk, c.LeadScore, c.ExpectedValue,
		c.OwnerID, c.Notes, c.IsArchived,
	).Scan(&c.ID, &c.CreatedAt, &c.UpdatedAt)
	if isUniqueViolation(err) {
		return ErrConflict
	}
	return err
}

func (r *pgClientRepository) FindByID(ctx context.Context, id string) (*Client, error) {
	query := `SELECT ` + clientColumns + ` FROM clients WHERE id::text = $1`
	return scanClient(r.pool.QueryRow(ctx, query, id))
}

func (r *pgClientRepository) List(ctx context.Context, f ClientFilter) ([]*Client, error) {
	var (
		conditions []string
		args       []any
	)
	add := func(cond string, arg any) {
		args = append(args, arg)
		conditions = append(conditions, fmt.Sprintf(cond, len(args)))
	}

	archived := false
	if f.IsArchived != nil {
		archived = *f.IsArchived
	}
	add("is_archived = $%d", archived)

	if f.LifecycleStatus != nil {
		add("lifecycle_status = $%d", *f.LifecycleStatus)
	}
	if f.Weightage != nil {
		add("weightage = $%d", *f.Weightage)
	}
	if f.OwnerID != nil {
		add("owner_id::text = $%d", *f.OwnerID)
	}
	if s := strings.TrimSpace(f.Search); s != "" {
		args = append(args, "%"+strings.ToLower(s)+"%")
		n := len(args)
		conditions = append(conditions, fmt.Sprintf(
			"(LOWER(name) LIKE $%d OR LOWER(company_name) LIKE $%d OR LOWER(email) LIKE $%d)", n, n, n))
	}

	query := `SELECT ` + clientColumns + ` FROM clients WHERE ` + strings.Join(conditions, " AND ") +
		` ORDER BY created_at DESC, id`
	if f.Limit > 0 {
		args = append(args, f.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}
	if f.Offset > 0 {
		args = append(args, f.Offset)
		query += fmt.Sprintf(" OFFSET $%d", len(args))
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var clients []*Client
	for rows.Next() {
		c, err := scanClient(rows)
		if err != nil {
			return nil, err
		}
		clients = append(clients, c)
	}
	return clients, rows.Err()
}

func (r *pgClientRepository) Update(ctx context.Context, id string, mutate ClientMutation) (*Client, error) {
	var result *Client
	err := r.tx.RunInTx(ctx, func(tx pgx.Tx) error {
		current, err := scanClient(tx.QueryRow(ctx,
			`SELECT `+clientColumns+` FROM clients WHERE id::text = $1 FOR UPDATE`, id))
		if err != nil {
			return err
		}

		changed, err := mutate(current)
		if err != nil {
			return err
		}
		if !changed {
			result = current
			return nil
		}

		err = tx.QueryRow(ctx, `
			UPDATE clients SET
				name = $2, company_name = $3, phone = $4, website = $5,
				lifecycle_status = $6, weightage = $7, relationship_level = $8, source = $9,
				is_high_risk = $10, lead_score = $11, expected_value = $12, owner_id = $13,
				notes = $14, is_archived = $15, updated_at = NOW()
			WHERE id = $1
			RETURNING updated_at
		`,
			current.ID, current.Name, current.CompanyName, current.Phone, current.Website,
			current.LifecycleStatus, current.Weightage, current.RelationshipLevel, current.Source,
			current.IsHighRisk, current.LeadScore, current.ExpectedValue, current.OwnerID,
			current.Notes, current.IsArchived,
		).Scan(&current.UpdatedAt)
		if err != nil {
			return err
		}
		result = current
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}
