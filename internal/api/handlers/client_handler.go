package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/Marga-Ghale/ora-ops-console/internal/api/middleware"
	"github.com/Marga-Ghale/ora-ops-console/internal/models"
	"github.com/Marga-Ghale/ora-ops-console/internal/repository"
	"github.com/Marga-Ghale/ora-ops-console/internal/service"
	"github.com/Marga-Ghale/ora-ops-console/internal/types"
)

// ============================================
// Client Handler
// ============================================

type ClientHandler struct {
	clientService service.ClientService
	taskService   service.TaskService
	log           *zap.Logger
}

// bindFieldMap decodes the body as a JSON object, keeping each value raw so
// the service can tell absent, null and empty apart.
func bindFieldMap(c *gin.Context) (map[string]json.RawMessage, bool) {
	var raw map[string]json.RawMessage
	if err := c.ShouldBindJSON(&raw); err != nil || raw == nil {
		writeError(c, http.StatusBadRequest, codeValidation, "request body must be a JSON object")
		return nil, false
	}
	return raw, true
}

func (h *ClientHandler) Create(c *gin.Context) {
	raw, ok := bindFieldMap(c)
	if !ok {
		return
	}
	client, err := h.clientService.CreateFromFields(c.Request.Context(), middleware.GetIdentity(c), raw)
	if err != nil {
		handleServiceError(c, h.log, err)
		return
	}
	c.JSON(http.StatusCreated, toClientResponse(client))
}

func (h *ClientHandler) Get(c *gin.Context) {
	client, err := h.clientService.Get(c.Request.Context(), middleware.GetIdentity(c), c.Param("id"))
	if err != nil {
		handleServiceError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, toClientResponse(client))
}

func (h *ClientHandler) List(c *gin.Context) {
	filter, err := parseClientFilter(c)
	if err != nil {
		writeError(c, http.StatusBadRequest, codeValidation, err.Error())
		return
	}

	clients, err := h.clientService.List(c.Request.Context(), middleware.GetIdentity(c), filter)
	if err != nil {
		handleServiceError(c, h.log, err)
		return
	}

	response := make([]models.ClientResponse, len(clients))
	for i, cl := range clients {
		response[i] = toClientResponse(cl)
	}
	c.JSON(http.StatusOK, response)
}

func parseClientFilter(c *gin.Context) (repository.ClientFilter, error) {
	var filter repository.ClientFilter

	if v := c.Query("lifecycleStatus"); v != "" {
		status := types.LifecycleStatus(v)
		if !types.IsValidLifecycleStatus(status) {
			return filter, errors.New("invalid lifecycleStatus")
		}
		filter.LifecycleStatus = &status
	}
	if v := c.Query("weightage"); v != "" {
		w := types.Weightage(v)
		if !types.IsValidWeightage(w) {
			return filter, errors.New("invalid weightage")
		}
		filter.Weightage = &w
	}
	if v := c.Query("ownerId"); v != "" {
		filter.OwnerID = &v
	}
	if v := c.Query("isArchived"); v != "" {
		archived, err := strconv.ParseBool(v)
		if err != nil {
			return filter, errors.New("isArchived must be true or false")
		}
		filter.IsArchived = &archived
	}
	filter.Search = strings.TrimSpace(c.Query("search"))

	for name, dst := range map[string]*int{"limit": &filter.Limit, "offset": &filter.Offset} {
		v := c.Query(name)
		if v == "" {
			continue
		}
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return filter, errors.New(name + " must be a non-negative integer")
		}
		*dst = n
	}
	return filter, nil
}

// Update applies a partial field map.
func (h *ClientHandler) Update(c *gin.Context) {
	raw, ok := bindFieldMap(c)
	if !ok {
		return
	}
	client, err := h.clientService.UpdateFromFields(c.Request.Context(), middleware.GetIdentity(c), c.Param("id"), raw)
	if err != nil {
		handleServiceError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, toClientResponse(client))
}

// SetArchived handles {archive: true} and {unarchive: true}.
func (h *ClientHandler) SetArchived(c *gin.Context) {
	var req models.ArchiveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	archive := req.Archive != nil && *req.Archive
	unarchive := req.Unarchive != nil && *req.Unarchive
	if archive == unarchive {
		writeError(c, http.StatusBadRequest, codeValidation, "send either {archive: true} or {unarchive: true}")
		return
	}

	identity := middleware.GetIdentity(c)
	var (
		client *service.ClientDetail
		err    error
	)
	if archive {
		client, err = h.clientService.Archive(c.Request.Context(), identity, c.Param("id"))
	} else {
		client, err = h.clientService.Unarchive(c.Request.Context(), identity, c.Param("id"))
	}
	if err != nil {
		// Archiving twice is a bad request rather than a resource conflict.
		if errors.Is(err, service.ErrConflict) {
			writeError(c, http.StatusBadRequest, codeConflict, reason(err, service.ErrConflict))
			return
		}
		handleServiceError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, toClientResponse(client))
}

func (h *ClientHandler) History(c *gin.Context) {
	entries, err := h.clientService.History(c.Request.Context(), middleware.GetIdentity(c), c.Param("id"))
	if err != nil {
		handleServiceError(c, h.log, err)
		return
	}

	response := make([]models.HistoryEntryResponse, len(entries))
	for i, e := range entries {
		response[i] = toHistoryResponse(e)
	}
	c.JSON(http.StatusOK, response)
}

func (h *ClientHandler) Tasks(c *gin.Context) {
	tasks, err := h.taskService.ListForClient(c.Request.Context(), middleware.GetIdentity(c), c.Param("id"))
	if err != nil {
		handleServiceError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, toTaskResponses(tasks))
}
