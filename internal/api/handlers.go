package api

import (
	"errors"
	"net/http"

	"taskhub/internal/middleware"
	"taskhub/internal/models"
	"taskhub/internal/realtime"
	"taskhub/internal/services"
	"taskhub/internal/store"
	"taskhub/internal/validation"

	"github.com/gin-gonic/gin"
	"github.com/xeipuuv/gojsonschema"
)

// Handlers contains all HTTP handlers
type Handlers struct {
	registry   *services.Registry
	claims     *services.ClaimCoordinator
	completion *services.CompletionHandler
	advisor    *services.AdvisorService
	jwtService *services.JWTService
	hub        *realtime.Hub
	schema     *gojsonschema.Schema
}

// NewHandlers creates a new handlers instance
func NewHandlers(
	registry *services.Registry,
	claims *services.ClaimCoordinator,
	completion *services.CompletionHandler,
	advisor *services.AdvisorService,
	jwtService *services.JWTService,
	hub *realtime.Hub,
	schema *gojsonschema.Schema,
) *Handlers {
	return &Handlers{
		registry:   registry,
		claims:     claims,
		completion: completion,
		advisor:    advisor,
		jwtService: jwtService,
		hub:        hub,
		schema:     schema,
	}
}

// errStatus maps engine error kinds to HTTP status codes
func errStatus(err error) int {
	switch {
	case errors.Is(err, models.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, models.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, models.ErrAlreadyClaimed), errors.Is(err, models.ErrConflict):
		return http.StatusConflict
	case errors.Is(err, models.ErrInvalidState):
		return http.StatusUnprocessableEntity
	}
	return http.StatusInternalServerError
}

func abortWithError(c *gin.Context, err error) {
	c.JSON(errStatus(err), gin.H{"error": err.Error()})
}

// CreateTaskHandler handles POST /api/tasks
func (h *Handlers) CreateTaskHandler(c *gin.Context) {
	var req models.CreateTaskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := validation.ValidateCreateTask(&req, h.schema); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	claims := middleware.GetClaims(c)
	task, err := h.registry.CreateTask(c.Request.Context(), req, claims.UserID)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, models.TaskResponse{Task: task, Steps: services.ComputeSteps(task)})
}

// ListTasksHandler handles GET /api/tasks
// Query params: assignee, creator, status, type; "me" resolves to the caller.
func (h *Handlers) ListTasksHandler(c *gin.Context) {
	claims := middleware.GetClaims(c)

	filter := store.TaskFilter{
		CreatorID:  c.Query("creator"),
		AssigneeID: c.Query("assignee"),
		Status:     models.TaskStatus(c.Query("status")),
		Type:       models.TaskType(c.Query("type")),
	}
	if filter.CreatorID == "me" {
		filter.CreatorID = claims.UserID
	}
	if filter.AssigneeID == "me" {
		filter.AssigneeID = claims.UserID
	}

	tasks, err := h.registry.ListTasks(c.Request.Context(), filter)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"tasks": tasks})
}

// ListAvailableTasksHandler handles GET /api/tasks/available
func (h *Handlers) ListAvailableTasksHandler(c *gin.Context) {
	claims := middleware.GetClaims(c)
	tasks, err := h.registry.ListAvailableTasks(c.Request.Context(), claims.Role)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"tasks": tasks})
}

// GetTaskHandler handles GET /api/tasks/:id
func (h *Handlers) GetTaskHandler(c *gin.Context) {
	task, err := h.registry.GetTask(c.Request.Context(), c.Param("id"))
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, models.TaskResponse{Task: task, Steps: services.ComputeSteps(task)})
}

// GetTaskEventsHandler handles GET /api/tasks/:id/events
func (h *Handlers) GetTaskEventsHandler(c *gin.Context) {
	events, err := h.registry.GetTaskEvents(c.Request.Context(), c.Param("id"))
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"events": events})
}

// ClaimTaskHandler handles POST /api/tasks/:id/claim
func (h *Handlers) ClaimTaskHandler(c *gin.Context) {
	claims := middleware.GetClaims(c)
	task, err := h.claims.Claim(c.Request.Context(), c.Param("id"), claims.UserID, claims.Role)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, models.TaskResponse{Task: task, Steps: services.ComputeSteps(task)})
}

// CompleteTaskHandler handles POST /api/tasks/:id/complete
func (h *Handlers) CompleteTaskHandler(c *gin.Context) {
	var req models.CompleteRequest
	_ = c.ShouldBindJSON(&req) // notes are optional; an empty body is fine

	claims := middleware.GetClaims(c)
	task, err := h.completion.Complete(c.Request.Context(), c.Param("id"), claims.UserID, claims.Role, req.Notes)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, models.TaskResponse{Task: task, Steps: services.ComputeSteps(task)})
}

// ReassignTaskHandler handles POST /api/tasks/:id/reassign (manager only)
func (h *Handlers) ReassignTaskHandler(c *gin.Context) {
	var req models.ReassignRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	claims := middleware.GetClaims(c)
	task, err := h.claims.Reassign(c.Request.Context(), c.Param("id"), req.NewUserID, req.RoleHint, claims.UserID, claims.Role)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, models.TaskResponse{Task: task, Steps: services.ComputeSteps(task)})
}

// CancelTaskHandler handles POST /api/tasks/:id/cancel (manager only)
func (h *Handlers) CancelTaskHandler(c *gin.Context) {
	var req models.CancelRequest
	_ = c.ShouldBindJSON(&req) // reason is optional

	claims := middleware.GetClaims(c)
	task, err := h.registry.Cancel(c.Request.Context(), c.Param("id"), claims.UserID, claims.Role, req.Reason)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, models.TaskResponse{Task: task})
}

// SuggestHandler handles POST /api/advisor/suggest
func (h *Handlers) SuggestHandler(c *gin.Context) {
	if h.advisor == nil || !h.advisor.Enabled() {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "advisor is not configured"})
		return
	}

	var req models.SuggestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	suggestions, err := h.advisor.Suggest(c.Request.Context(), req.Situation)
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, models.SuggestResponse{Suggestions: suggestions})
}

// MintTokenHandler handles POST /api/auth/token, the development token mint
func (h *Handlers) MintTokenHandler(c *gin.Context) {
	var req models.AuthTokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	token, err := h.jwtService.GenerateToken(req.UserID, req.UserName, req.Role)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to generate token"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"token": token})
}
