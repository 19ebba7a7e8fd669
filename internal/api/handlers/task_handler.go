package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/Marga-Ghale/ora-ops-console/internal/api/middleware"
	"github.com/Marga-Ghale/ora-ops-console/internal/models"
	"github.com/Marga-Ghale/ora-ops-console/internal/service"
)

type TaskHandler struct {
	taskService service.TaskService
	log         *zap.Logger
}

// ============================================
// TASK CRUD
// ============================================

func (h *TaskHandler) Create(c *gin.Context) {
	var req models.CreateTaskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	task, err := h.taskService.Create(c.Request.Context(), middleware.GetIdentity(c), service.CreateTaskRequest{
		Title:       req.Title,
		Description: req.Description,
		Priority:    req.Priority,
		ClientID:    req.ClientID,
		AssigneeID:  req.AssigneeID,
		DueDate:     req.DueDate,
	})
	if err != nil {
		handleServiceError(c, h.log, err)
		return
	}

	c.JSON(http.StatusCreated, toTaskResponse(task))
}

func (h *TaskHandler) Get(c *gin.Context) {
	task, err := h.taskService.GetByID(c.Request.Context(), middleware.GetIdentity(c), c.Param("id"))
	if err != nil {
		handleServiceError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, toTaskResponse(task))
}

func (h *TaskHandler) ListMine(c *gin.Context) {
	tasks, err := h.taskService.ListMyTasks(c.Request.Context(), middleware.GetIdentity(c))
	if err != nil {
		handleServiceError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, toTaskResponses(tasks))
}

// ============================================
// TASK ASSIGNMENT & STATUS
// ============================================

func (h *TaskHandler) Assign(c *gin.Context) {
	var req models.AssignTaskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	task, err := h.taskService.Assign(c.Request.Context(), middleware.GetIdentity(c), c.Param("id"), req.AssigneeID)
	if err != nil {
		handleServiceError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, toTaskResponse(task))
}

func (h *TaskHandler) UpdateStatus(c *gin.Context) {
	var req models.UpdateTaskStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	task, err := h.taskService.UpdateStatus(c.Request.Context(), middleware.GetIdentity(c), c.Param("id"), req.Status)
	if err != nil {
		handleServiceError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, toTaskResponse(task))
}
