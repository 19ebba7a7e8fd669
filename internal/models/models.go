package models

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/Marga-Ghale/ora-ops-console/internal/types"
)

// ============================================
// Auth DTOs
// ============================================

type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

type RefreshRequest struct {
	RefreshToken string `json:"refreshToken" binding:"required"`
}

type ChangePasswordRequest struct {
	CurrentPassword string `json:"currentPassword" binding:"required"`
	NewPassword     string `json:"newPassword" binding:"required"`
}

type AuthResponse struct {
	User         UserResponse `json:"user"`
	AccessToken  string       `json:"accessToken"`
	RefreshToken string       `json:"refreshToken"`
}

type TokenResponse struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}

// ============================================
// User DTOs
// ============================================

type UserResponse struct {
	ID                 string     `json:"id"`
	Email              string     `json:"email"`
	Name               string     `json:"name"`
	Role               types.Role `json:"role"`
	IsActive           bool       `json:"isActive"`
	MustChangePassword bool       `json:"mustChangePassword"`
	CreatedAt          time.Time  `json:"createdAt"`
}

type UserSummaryResponse struct {
	ID    string     `json:"id"`
	Name  string     `json:"name"`
	Email string     `json:"email"`
	Role  types.Role `json:"role"`
}

type CreateUserRequest struct {
	Name  string     `json:"name" binding:"required,min=2"`
	Email string     `json:"email" binding:"required,email"`
	Role  types.Role `json:"role"`
}

// CreateUserResponse carries the temporary password only when it could
// not be emailed.
type CreateUserResponse struct {
	User              UserResponse `json:"user"`
	TemporaryPassword string       `json:"temporaryPassword,omitempty"`
	Emailed           bool         `json:"emailed"`
}

type ChangeAccessRequest struct {
	Role     *types.Role `json:"role"`
	IsActive *bool       `json:"isActive"`
}

// ============================================
// Client DTOs
// ============================================

type ClientResponse struct {
	ID                string                  `json:"id"`
	Name              string                  `json:"name"`
	CompanyName       string                  `json:"companyName"`
	Email             string                  `json:"email"`
	Phone             *string                 `json:"phone"`
	Website           *string                 `json:"website"`
	LifecycleStatus   types.LifecycleStatus   `json:"lifecycleStatus"`
	Weightage         types.Weightage         `json:"weightage"`
	RelationshipLevel types.RelationshipLevel `json:"relationshipLevel"`
	Source            types.ClientSource      `json:"source"`
	IsHighRisk        bool                    `json:"isHighRisk"`
	LeadScore         *int                    `json:"leadScore"`
	ExpectedValue     decimal.NullDecimal     `json:"expectedValue"`
	OwnerID           string                  `json:"ownerId"`
	Owner             *UserSummaryResponse    `json:"owner,omitempty"`
	Notes             *string                 `json:"notes"`
	IsArchived        bool                    `json:"isArchived"`
	CreatedAt         time.Time               `json:"createdAt"`
	UpdatedAt         time.Time               `json:"updatedAt"`
}

// ArchiveRequest carries exactly one of archive or unarchive.
type ArchiveRequest struct {
	Archive   *bool `json:"archive"`
	Unarchive *bool `json:"unarchive"`
}

type HistoryEntryResponse struct {
	ID          string               `json:"id"`
	ClientID    string               `json:"clientId"`
	ActorID     string               `json:"actorId"`
	Actor       *UserSummaryResponse `json:"actor,omitempty"`
	ActionType  types.HistoryAction  `json:"actionType"`
	Description string               `json:"description"`
	CreatedAt   time.Time            `json:"createdAt"`
}

// ============================================
// Task DTOs
// ============================================

type CreateTaskRequest struct {
	Title       string             `json:"title" binding:"required"`
	Description *string            `json:"description"`
	Priority    types.TaskPriority `json:"priority"`
	ClientID    *string            `json:"clientId"`
	AssigneeID  *string            `json:"assigneeId"`
	DueDate     *time.Time         `json:"dueDate"`
}

type AssignTaskRequest struct {
	AssigneeID string `json:"assigneeId" binding:"required"`
}

type UpdateTaskStatusRequest struct {
	Status types.TaskStatus `json:"status" binding:"required"`
}

type TaskResponse struct {
	ID          string             `json:"id"`
	Title       string             `json:"title"`
	Description *string            `json:"description,omitempty"`
	Status      types.TaskStatus   `json:"status"`
	Priority    types.TaskPriority `json:"priority"`
	ClientID    *string            `json:"clientId,omitempty"`
	AssigneeID  *string            `json:"assigneeId,omitempty"`
	CreatedBy   string             `json:"createdBy"`
	DueDate     *time.Time         `json:"dueDate,omitempty"`
	CompletedAt *time.Time         `json:"completedAt,omitempty"`
	CreatedAt   time.Time          `json:"createdAt"`
	UpdatedAt   time.Time          `json:"updatedAt"`
}

// ============================================
// Common
// ============================================

type ErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

type MessageResponse struct {
	Message string `json:"message"`
}
