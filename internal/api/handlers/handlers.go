package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/Marga-Ghale/ora-ops-console/internal/models"
	"github.com/Marga-Ghale/ora-ops-console/internal/repository"
	"github.com/Marga-Ghale/ora-ops-console/internal/service"
)

// Handlers contains all HTTP handlers
type Handlers struct {
	Auth   *AuthHandler
	User   *UserHandler
	Client *ClientHandler
	Task   *TaskHandler
}

// NewHandlers creates all handlers
func NewHandlers(services *service.Services, log *zap.Logger) *Handlers {
	return &Handlers{
		Auth:   &AuthHandler{authService: services.Auth, userService: services.User, log: log},
		User:   &UserHandler{userService: services.User, log: log},
		Client: &ClientHandler{clientService: services.Client, taskService: services.Task, log: log},
		Task:   &TaskHandler{taskService: services.Task, log: log},
	}
}

// ============================================
// Error Mapping
// ============================================

const (
	codeValidation    = "VALIDATION_ERROR"
	codeUnauthorized  = "UNAUTHORIZED"
	codeForbidden     = "FORBIDDEN"
	codeNotFound      = "NOT_FOUND"
	codeConflict      = "CONFLICT"
	codeInternalError = "INTERNAL_ERROR"
)

func writeError(c *gin.Context, status int, code, message string) {
	c.JSON(status, models.ErrorResponse{Error: models.ErrorDetail{Code: code, Message: message}})
}

// reason strips the sentinel prefix so clients see only the explanation.
func reason(err, sentinel error) string {
	return strings.TrimPrefix(err.Error(), sentinel.Error()+": ")
}

// handleServiceError maps the service error taxonomy onto HTTP.
func handleServiceError(c *gin.Context, log *zap.Logger, err error) {
	switch {
	case errors.Is(err, service.ErrUnauthenticated):
		writeError(c, http.StatusUnauthorized, codeUnauthorized, reason(err, service.ErrUnauthenticated))
	case errors.Is(err, service.ErrForbidden):
		writeError(c, http.StatusForbidden, codeForbidden, reason(err, service.ErrForbidden))
	case errors.Is(err, service.ErrNotFound):
		msg := reason(err, service.ErrNotFound)
		if msg != service.ErrNotFound.Error() {
			msg += " not found"
		}
		writeError(c, http.StatusNotFound, codeNotFound, msg)
	case errors.Is(err, service.ErrConflict):
		writeError(c, http.StatusConflict, codeConflict, reason(err, service.ErrConflict))
	case errors.Is(err, service.ErrValidation):
		writeError(c, http.StatusBadRequest, codeValidation, reason(err, service.ErrValidation))
	default:
		_ = c.Error(err)
		log.Error("request failed",
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Error(err),
		)
		writeError(c, http.StatusInternalServerError, codeInternalError, "internal server error")
	}
}

func bindError(c *gin.Context, err error) {
	writeError(c, http.StatusBadRequest, codeValidation, err.Error())
}

// ============================================
// Response Mappers
// ============================================

func toUserResponse(u *repository.User) models.UserResponse {
	return models.UserResponse{
		ID:                 u.ID,
		Email:              u.Email,
		Name:               u.Name,
		Role:               u.Role,
		IsActive:           u.IsActive,
		MustChangePassword: u.MustChangePassword,
		CreatedAt:          u.CreatedAt,
	}
}

func toUserResponses(users []*repository.User) []models.UserResponse {
	out := make([]models.UserResponse, len(users))
	for i, u := range users {
		out[i] = toUserResponse(u)
	}
	return out
}

func toSummaryResponse(s *service.UserSummary) *models.UserSummaryResponse {
	if s == nil {
		return nil
	}
	return &models.UserSummaryResponse{ID: s.ID, Name: s.Name, Email: s.Email, Role: s.Role}
}

func toClientResponse(d *service.ClientDetail) models.ClientResponse {
	return models.ClientResponse{
		ID:                d.ID,
		Name:              d.Name,
		CompanyName:       d.CompanyName,
		Email:             d.Email,
		Phone:             d.Phone,
		Website:           d.Website,
		LifecycleStatus:   d.LifecycleStatus,
		Weightage:         d.Weightage,
		RelationshipLevel: d.RelationshipLevel,
		Source:            d.Source,
		IsHighRisk:        d.IsHighRisk,
		LeadScore:         d.LeadScore,
		ExpectedValue:     d.ExpectedValue,
		OwnerID:           d.OwnerID,
		Owner:             toSummaryResponse(d.Owner),
		Notes:             d.Notes,
		IsArchived:        d.IsArchived,
		CreatedAt:         d.CreatedAt,
		UpdatedAt:         d.UpdatedAt,
	}
}

func toHistoryResponse(e *service.HistoryEntryDetail) models.HistoryEntryResponse {
	return models.HistoryEntryResponse{
		ID:          e.ID,
		ClientID:    e.ClientID,
		ActorID:     e.ActorID,
		Actor:       toSummaryResponse(e.Actor),
		ActionType:  e.ActionType,
		Description: e.Description,
		CreatedAt:   e.CreatedAt,
	}
}

func toTaskResponse(t *repository.Task) models.TaskResponse {
	return models.TaskResponse{
		ID:          t.ID,
		Title:       t.Title,
		Description: t.Description,
		Status:      t.Status,
		Priority:    t.Priority,
		ClientID:    t.ClientID,
		AssigneeID:  t.AssigneeID,
		CreatedBy:   t.CreatedBy,
		DueDate:     t.DueDate,
		CompletedAt: t.CompletedAt,
		CreatedAt:   t.CreatedAt,
		UpdatedAt:   t.UpdatedAt,
	}
}

func toTaskResponses(tasks []*repository.Task) []models.TaskResponse {
	out := make([]models.TaskResponse, len(tasks))
	for i, t := range tasks {
		out[i] = toTaskResponse(t)
	}
	return out
}
