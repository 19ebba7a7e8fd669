package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Marga-Ghale/ora-ops-console/internal/types"
)

type User struct {
	ID                 string
	Email              string
	Password           string
	Name               string
	Role               types.Role
	IsActive           bool
	MustChangePassword bool
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

type RefreshToken struct {
	ID        string
	Token     string
	UserID    string
	ExpiresAt time.Time
	CreatedAt time.Time
}

// AccessChange inspects the target user and the current number of active
// admins and mutates target in place. Returning an error aborts the change.
type AccessChange func(target *User, activeAdmins int) error

type UserRepository interface {
	Create(ctx context.Context, user *User) error
	FindByID(ctx context.Context, id string) (*User, error)
	FindByEmail(ctx context.Context, email string) (*User, error)
	FindByIDs(ctx context.Context, ids []string) (map[string]*User, error)
	FindAll(ctx context.Context) ([]*User, error)
	CountActiveAdmins(ctx context.Context) (int, error)
	UpdatePassword(ctx context.Context, id, passwordHash string, mustChange bool) error
	// ChangeAccess applies a role/activity change atomically with the
	// active-admin count it was checked against.
	ChangeAccess(ctx context.Context, id string, change AccessChange) (*User, error)
	SaveRefreshToken(ctx context.Context, token *RefreshToken) error
	FindRefreshToken(ctx context.Context, token string) (*RefreshToken, error)
	DeleteRefreshToken(ctx context.Context, token string) error
	DeleteUserRefreshTokens(ctx context.Context, userID string) error
	DeleteExpiredRefreshTokens(ctx context.Context, now time.Time) (int, error)
}

// adminAggregateLock keys the advisory lock that serializes every change
// affecting the set of active admins.
const adminAggregateLock int64 = 0x0AD1_0001

const userColumns = `id, email, password, name, role, is_active, must_change_password, created_at, updated_at`

type pgUserRepository struct {
	pool *pgxpool.Pool
	tx   *TxRunner
}

func NewUserRepository(pool *pgxpool.Pool) UserRepository {
	return &pgUserRepository{pool: pool, tx: NewTxRunner(pool)}
}

func scanUser(row pgx.Row) (*User, error) {
	user := &User{}
	err := row.Scan(
		&user.ID, &user.Email, &user.Password, &user.Name, &user.Role,
		&user.IsActive, &user.MustChangePassword, &user.CreatedAt, &user.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return user, nil
}

func (r *pgUserRepository) Create(ctx context.Context, user *User) error {
	query := `
		INSERT INTO users (email, password, name, role, is_active, must_change_password)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at, updated_at
	`
	err := r.pool.QueryRow(ctx, query,
		user.Email, user.Password, user.Name, user.Role, user.IsActive, user.MustChangePassword,
	).Scan(&user.ID, &user.CreatedAt, &user.UpdatedAt)
	if isUniqueViolation(err) {
		return ErrConflict
	}
	return err
}

func (r *pgUserRepository) FindByID(ctx context.Context, id string) (*User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id::text = $1`
	return scanUser(r.pool.QueryRow(ctx, query, id))
}

func (r *pgUserRepository) FindByEmail(ctx context.Context, email string) (*User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE LOWER(email) = LOWER($1)`
	return scanUser(r.pool.QueryRow(ctx, query, email))
}

func (r *pgUserRepository) FindByIDs(ctx context.Context, ids []string) (map[string]*User, error) {
	users := make(map[string]*User, len(ids))
	if len(ids) == 0 {
		return users, nil
	}

	query := `SELECT ` + userColumns + ` FROM users WHERE id::text = ANY($1)`
	rows, err := r.pool.Query(ctx, query, ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users[user.ID] = user
	}
	return users, rows.Err()
}

func (r *pgUserRepository) FindAll(ctx context.Context) ([]*User, error) {
	query := `SELECT ` + userColumns + ` FROM users ORDER BY name`
	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users []*User
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, user)
	}
	return users, rows.Err()
}

func (r *pgUserRepository) CountActiveAdmins(ctx context.Context) (int, error) {
	return countActiveAdmins(ctx, r.pool)
}

func countActiveAdmins(ctx context.Context, db DBTX) (int, error) {
	var n int
	err := db.QueryRow(ctx,
		`SELECT COUNT(*) FROM users WHERE role = $1 AND is_active`, types.RoleAdmin,
	).Scan(&n)
	return n, err
}

func (r *pgUserRepository) UpdatePassword(ctx context.Context, id, passwordHash string, mustChange bool) error {
	query := `
		UPDATE users SET password = $2, must_change_password = $3, updated_at = NOW()
		WHERE id::text = $1
	`
	tag, err := r.pool.Exec(ctx, query, id, passwordHash, mustChange)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *pgUserRepository) ChangeAccess(ctx context.Context, id string, change AccessChange) (*User, error) {
	var updated *User
	err := r.tx.RunInTx(ctx, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock($1)`, adminAggregateLock); err != nil {
			return fmt.Errorf("failed to lock admin aggregate: %w", err)
		}

		target, err := scanUser(tx.QueryRow(ctx,
			`SELECT `+userColumns+` FROM users WHERE id::text = $1 FOR UPDATE`, id))
		if err != nil {
			return err
		}

		admins, err := countActiveAdmins(ctx, tx)
		if err != nil {
			return err
		}

		if err := change(target, admins); err != nil {
			return err
		}

		err = tx.QueryRow(ctx, `
			UPDATE users SET role = $2, is_active = $3, updated_at = NOW()
			WHERE id = $1
			RETURNING updated_at
		`, target.ID, target.Role, target.IsActive).Scan(&target.UpdatedAt)
		if err != nil {
			return err
		}
		updated = target
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

func (r *pgUserRepository) SaveRefreshToken(ctx context.Context, token *RefreshToken) error {
	query := `
		INSERT INTO refresh_tokens (token, user_id, expires_at)
		VALUES ($1, $2, $3)
		RETURNING id, created_at
	`
	return r.pool.QueryRow(ctx, query, token.Token, token.UserID, token.ExpiresAt).
		Scan(&token.ID, &token.CreatedAt)
}

func (r *pgUserRepository) FindRefreshToken(ctx context.Context, token string) (*RefreshToken, error) {
	query := `
		SELECT id, token, user_id, expires_at, created_at
		FROM refresh_tokens WHERE token = $1
	`
	rt := &RefreshToken{}
	err := r.pool.QueryRow(ctx, query, token).Scan(
		&rt.ID, &rt.Token, &rt.UserID, &rt.ExpiresAt, &rt.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return rt, nil
}

func (r *pgUserRepository) DeleteRefreshToken(ctx context.Context, token string) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM refresh_tokens WHERE token = $1`, token)
	return err
}

func (r *pgUserRepository) DeleteUserRefreshTokens(ctx context.Context, userID string) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM refresh_tokens WHERE user_id::text = $1`, userID)
	return err
}

func (r *pgUserRepository) DeleteExpiredRefreshTokens(ctx context.Context, now time.Time) (int, error) {
	tag, err := r.pool.Exec(ctx, `DELETE FROM refresh_tokens WHERE expires_at < $1`, now)
	if err != nil {
		return 0, err
	}
	return int(tag.RowsAffected()), nil
}
