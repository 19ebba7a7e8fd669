package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/Marga-Ghale/ora-ops-console/internal/repository"
	"github.com/Marga-Ghale/ora-ops-console/internal/types"
)

// ============================================
// Task Service
// ============================================

type TaskService interface {
	Create(ctx context.Context, actor Identity, req CreateTaskRequest) (*repository.Task, error)
	GetByID(ctx context.Context, actor Identity, taskID string) (*repository.Task, error)
	ListMyTasks(ctx context.Context, actor Identity) ([]*repository.Task, error)
	ListForClient(ctx context.Context, actor Identity, clientID string) ([]*repository.Task, error)
	Assign(ctx context.Context, actor Identity, taskID, assigneeID string) (*repository.Task, error)
	UpdateStatus(ctx context.Context, actor Identity, taskID string, status types.TaskStatus) (*repository.Task, error)
	// FindOverdue is used by the reminder job, not by callers.
	FindOverdue(ctx context.Context, now time.Time) ([]*repository.Task, error)
}

type CreateTaskRequest struct {
	Title       string
	Description *string
	Priority    types.TaskPriority
	ClientID    *string
	AssigneeID  *string
	DueDate     *time.Time
}

type taskService struct {
	taskRepo   repository.TaskRepository
	clientRepo repository.ClientRepository
	ownership  OwnershipRegistry
	events     EventPublisher
	log        *zap.Logger
}

func NewTaskService(
	taskRepo repository.TaskRepository,
	clientRepo repository.ClientRepository,
	ownership OwnershipRegistry,
	events EventPublisher,
	log *zap.Logger,
) TaskService {
	return &taskService{
		taskRepo:   taskRepo,
		clientRepo: clientRepo,
		ownership:  ownership,
		events:     events,
		log:        log,
	}
}

func taskErr(op string, err error) error {
	switch {
	case errors.Is(err, repository.ErrNotFound):
		return notFound("task")
	case errors.Is(err, ErrForbidden), errors.Is(err, ErrValidation), errors.Is(err, ErrNotFound):
		return err
	default:
		return internal(op, err)
	}
}

// resolveAssignee enforces the stricter task rule: active employees only.
func (s *taskService) resolveAssignee(ctx context.Context, assigneeID string) (*repository.User, error) {
	user, err := s.ownership.Resolve(ctx, assigneeID, "assignee")
	if err != nil {
		return nil, err
	}
	if !s.ownership.IsAssignableTaskAssignee(user) {
		return nil, invalid("assignee must be an active employee")
	}
	return user, nil
}

func (s *taskService) Create(ctx context.Context, actor Identity, req CreateTaskRequest) (*repository.Task, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}

	title := strings.TrimSpace(req.Title)
	if title == "" {
		return nil, invalid("title is required")
	}
	if req.Priority == "" {
		req.Priority = types.PriorityMedium
	}
	if !types.IsValidTaskPriority(req.Priority) {
		return nil, invalid("invalid priority")
	}

	if req.ClientID != nil {
		if _, err := s.clientRepo.FindByID(ctx, *req.ClientID); err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return nil, notFound("client")
			}
			return nil, internal("find client", err)
		}
	}
	if req.AssigneeID != nil {
		if _, err := s.resolveAssignee(ctx, *req.AssigneeID); err != nil {
			return nil, err
		}
	}

	task := &repository.Task{
		Title:       title,
		Description: req.Description,
		Status:      types.TaskTodo,
		Priority:    req.Priority,
		ClientID:    req.ClientID,
		AssigneeID:  req.AssigneeID,
		CreatedBy:   actor.UserID,
		DueDate:     req.DueDate,
	}
	if err := s.taskRepo.Create(ctx, task); err != nil {
		return nil, internal("create task", err)
	}

	if task.AssigneeID != nil {
		s.events.BroadcastTaskAssigned(*task.AssigneeID, taskPayload(task), actor.UserID)
	}
	return task, nil
}

func (s *taskService) GetByID(ctx context.Context, actor Identity, taskID string) (*repository.Task, error) {
	if err := requireIdentity(actor); err != nil {
		return nil, err
	}
	task, err := s.taskRepo.FindByID(ctx, taskID)
	if err != nil {
		return nil, taskErr("find task", err)
	}
	if !canWorkOn(actor, task) {
		return nil, forbidden("insufficient permissions")
	}
	return task, nil
}

func canWorkOn(actor Identity, task *repository.Task) bool {
	return actor.IsAdmin() || (task.AssigneeID != nil && *task.AssigneeID == actor.UserID)
}

func (s *taskService) ListMyTasks(ctx context.Context, actor Identity) ([]*repository.Task, error) {
	if err := requireIdentity(actor); err != nil {
		return nil, err
	}
	tasks, err := s.taskRepo.FindByAssignee(ctx, actor.UserID)
	if err != nil {
		return nil, internal("list tasks", err)
	}
	return tasks, nil
}

func (s *taskService) ListForClient(ctx context.Context, actor Identity, clientID string) ([]*repository.Task, error) {
	if err := requireIdentity(actor); err != nil {
		return nil, err
	}
	client, err := s.clientRepo.FindByID(ctx, clientID)
	if err != nil {
		return nil, clientErr("find client", err)
	}
	if err := CheckClientAccess(actor, ActionView, snapshotOf(client), nil); err != nil {
		return nil, err
	}
	tasks, err := s.taskRepo.FindByClient(ctx, clientID)
	if err != nil {
		return nil, internal("list client tasks", err)
	}
	return tasks, nil
}

func (s *taskService) Assign(ctx context.Context, actor Identity, taskID, assigneeID string) (*repository.Task, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	if _, err := s.resolveAssignee(ctx, assigneeID); err != nil {
		return nil, err
	}

	changed := false
	task, err := s.taskRepo.Update(ctx, taskID, func(t *repository.Task) error {
		if t.AssigneeID != nil && *t.AssigneeID == assigneeID {
			return nil
		}
		t.AssigneeID = &assigneeID
		changed = true
		return nil
	})
	if err != nil {
		return nil, taskErr("assign task", err)
	}

	if changed {
		s.events.BroadcastTaskAssigned(assigneeID, taskPayload(task), actor.UserID)
		s.log.Info("task assigned",
			zap.String("task_id", task.ID),
			zap.String("assignee_id", assigneeID),
			zap.String("actor_id", actor.UserID),
		)
	}
	return task, nil
}

func (s *taskService) UpdateStatus(ctx context.Context, actor Identity, taskID string, status types.TaskStatus) (*repository.Task, error) {
	if err := requireIdentity(actor); err != nil {
		return nil, err
	}
	if !types.IsValidTaskStatus(status) {
		return nil, invalid("invalid status")
	}

	task, err := s.taskRepo.Update(ctx, taskID, func(t *repository.Task) error {
		if !canWorkOn(actor, t) {
			return forbidden("only the assignee or an admin may change task status")
		}
		if t.Status == status {
			return nil
		}
		t.Status = status
		if status == types.TaskDone {
			now := time.Now()
			t.CompletedAt = &now
		} else {
			t.CompletedAt = nil
		}
		return nil
	})
	if err != nil {
		return nil, taskErr("update task status", err)
	}
	return task, nil
}

func (s *taskService) FindOverdue(ctx context.Context, now time.Time) ([]*repository.Task, error) {
	tasks, err := s.taskRepo.FindOverdue(ctx, now)
	if err != nil {
		return nil, internal("find overdue tasks", err)
	}
	return tasks, nil
}

func taskPayload(t *repository.Task) map[string]interface{} {
	payload := map[string]interface{}{
		"id":       t.ID,
		"title":    t.Title,
		"status":   t.Status,
		"priority": t.Priority,
	}
	if t.ClientID != nil {
		payload["clientId"] = *t.ClientID
	}
	if t.DueDate != nil {
		payload["dueDate"] = t.DueDate
	}
	return payload
}
