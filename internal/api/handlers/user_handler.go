package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/Marga-Ghale/ora-ops-console/internal/api/middleware"
	"github.com/Marga-Ghale/ora-ops-console/internal/models"
	"github.com/Marga-Ghale/ora-ops-console/internal/service"
)

// ============================================
// User Handler
// ============================================

type UserHandler struct {
	userService service.UserService
	log         *zap.Logger
}

func (h *UserHandler) GetCurrentUser(c *gin.Context) {
	identity := middleware.GetIdentity(c)

	user, err := h.userService.GetByID(c.Request.Context(), identity, identity.UserID)
	if err != nil {
		handleServiceError(c, h.log, err)
		return
	}

	c.JSON(http.StatusOK, toUserResponse(user))
}

func (h *UserHandler) List(c *gin.Context) {
	users, err := h.userService.List(c.Request.Context(), middleware.GetIdentity(c))
	if err != nil {
		handleServiceError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, toUserResponses(users))
}

// ListAssignableOwners returns the users a client may be assigned to.
func (h *UserHandler) ListAssignableOwners(c *gin.Context) {
	users, err := h.userService.ListAssignableOwners(c.Request.Context(), middleware.GetIdentity(c))
	if err != nil {
		handleServiceError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, toUserResponses(users))
}

func (h *UserHandler) Create(c *gin.Context) {
	var req models.CreateUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	created, err := h.userService.Create(c.Request.Context(), middleware.GetIdentity(c), service.CreateUserRequest{
		Name:  req.Name,
		Email: req.Email,
		Role:  req.Role,
	})
	if err != nil {
		handleServiceError(c, h.log, err)
		return
	}

	c.JSON(http.StatusCreated, models.CreateUserResponse{
		User:              toUserResponse(created.User),
		TemporaryPassword: created.TemporaryPassword,
		Emailed:           created.Emailed,
	})
}

// ChangeAccess updates a user's role and/or active flag.
func (h *UserHandler) ChangeAccess(c *gin.Context) {
	var req models.ChangeAccessRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	user, err := h.userService.ChangeAccess(c.Request.Context(), middleware.GetIdentity(c), c.Param("id"), service.AccessRequest{
		Role:     req.Role,
		IsActive: req.IsActive,
	})
	if err != nil {
		handleServiceError(c, h.log, err)
		return
	}

	c.JSON(http.StatusOK, toUserResponse(user))
}
