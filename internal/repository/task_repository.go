package repository

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Marga-Ghale/ora-ops-console/internal/types"
)

type Task struct {
	ID          string
	Title       string
	Description *string
	Status      types.TaskStatus
	Priority    types.TaskPriority
	ClientID    *string
	AssigneeID  *string
	CreatedBy   string
	DueDate     *time.Time
	CompletedAt *time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// TaskMutation mutates the locked task in place.
type TaskMutation func(task *Task) error

type TaskRepository interface {
	Create(ctx context.Context, task *Task) error
	FindByID(ctx context.Context, id string) (*Task, error)
	FindByAssignee(ctx context.Context, assigneeID string) ([]*Task, error)
	FindByClient(ctx context.Context, clientID string) ([]*Task, error)
	// FindOverdue returns open tasks with an assignee whose due date is before now.
	FindOverdue(ctx context.Context, now time.Time) ([]*Task, error)
	Update(ctx context.Context, id string, mutate TaskMutation) (*Task, error)
}

const taskColumns = `
	id, title, description, status, priority, client_id, assignee_id, created_by,
	due_date, completed_at, created_at, updated_at`

type pgTaskRepository struct {
	pool *pgxpool.Pool
	tx   *TxRunner
}

func NewTaskRepository(pool *pgxpool.Pool) TaskRepository {
	return &pgTaskRepository{pool: pool, tx: NewTxRunner(pool)}
}

func scanTask(row pgx.Row) (*Task, error) {
	t := &Task{}
	err := row.Scan(
		&t.ID, &t.Title, &t.Description, &t.Status, &t.Priority, &t.ClientID, &t.AssigneeID,
		&t.CreatedBy, &t.DueDate, &t.CompletedAt, &t.CreatedAt, &t.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return t, nil
}

func (r *pgTaskRepository) queryTasks(ctx context.Context, query string, args ...any) ([]*Task, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tasks []*Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, t)
	}
	return tasks, rows.Err()
}

func (r *pgTaskRepository) Create(ctx context.Context, t *Task) error {
	query := `
		INSERT INTO tasks (title, description, status, priority, client_id, assignee_id, created_by, due_date)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id, created_at, updated_at
	`
	return r.pool.QueryRow(ctx, query,
		t.Title, t.Description, t.Status, t.Priority, t.ClientID, t.AssigneeID, t.CreatedBy, t.DueDate,
	).Scan(&t.ID, &t.CreatedAt, &t.UpdatedAt)
}

func (r *pgTaskRepository) FindByID(ctx context.Context, id string) (*Task, error) {
	return scanTask(r.pool.QueryRow(ctx, `SELECT `+taskColumns+` FROM tasks WHERE id::text = $1`, id))
}

func (r *pgTaskRepository) FindByAssignee(ctx context.Context, assigneeID string) ([]*Task, error) {
	return r.queryTasks(ctx, `
		SELECT `+taskColumns+` FROM tasks
		WHERE assignee_id::text = $1
		ORDER BY due_date ASC NULLS LAST, created_at DESC
	`, assigneeID)
}

func (r *pgTaskRepository) FindByClient(ctx context.Context, clientID string) ([]*Task, error) {
	return r.queryTasks(ctx, `
		SELECT `+taskColumns+` FROM tasks
		WHERE client_id::text = $1
		ORDER BY created_at DESC
	`, clientID)
}

func (r *pgTaskRepository) FindOverdue(ctx context.Context, now time.Time) ([]*Task, error) {
	return r.queryTasks(ctx, `
		SELECT `+taskColumns+` FROM tasks
		WHERE status <> $1 AND assignee_id IS NOT NULL AND due_date < $2
		ORDER BY due_date ASC
	`, types.TaskDone, now)
}

func (r *pgTaskRepository) Update(ctx context.Context, id string, mutate TaskMutation) (*Task, error) {
	var result *Task
	err := r.tx.RunInTx(ctx, func(tx pgx.Tx) error {
		task, err := scanTask(tx.QueryRow(ctx,
			`SELECT `+taskColumns+` FROM tasks WHERE id::text = $1 FOR UPDATE`, id))
		if err != nil {
			return err
		}
		if err := mutate(task); err != nil {
			return err
		}
		err = tx.QueryRow(ctx, `
			UPDATE tasks SET
				title = $2, description = $3, status = $4, priority = $5, client_id = $6,
				assignee_id = $7, due_date = $8, completed_at = $9, updated_at = NOW()
			WHERE id = $1
			RETURNING updated_at
		`,
			task.ID, task.Title, task.Description, task.Status, task.Priority, task.ClientID,
			task.AssigneeID, task.DueDate, task.CompletedAt,
		).Scan(&task.UpdatedAt)
		if err != nil {
			return err
		}
		result = task
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}
