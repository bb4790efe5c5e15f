package sync

import (
	"errors"
	"net/http"

	"github.com/dnelles/task-tracker/internal/middleware"
	"github.com/gin-gonic/gin"
)

type Handler struct {
	dispatcher *Dispatcher
}

func NewHandler(dispatcher *Dispatcher) *Handler {
	return &Handler{dispatcher: dispatcher}
}

func (h *Handler) RegisterRoutes(r *gin.Engine, requireAuth gin.HandlerFunc) {
	r.POST("/google/sync", requireAuth, h.Sync)
}

type syncRequest struct {
	TaskIDs []string `json:"taskIds"`
}

func (h *Handler) Sync(c *gin.Context) {
	uid, _ := middleware.UserIDFromContext(c.Request.Context())

	var req syncRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	result, err := h.dispatcher.Sync(c.Request.Context(), uid, req.TaskIDs)
	switch {
	case errors.Is(err, ErrEmptySelection):
		c.JSON(http.StatusBadRequest, gin.H{"error": "empty selection"})
		return
	case errors.Is(err, ErrNotConnected):
		c.String(http.StatusNotFound, "Not connected")
		return
	case err != nil:
		c.String(http.StatusInternalServerError, err.Error())
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"synced": result.Synced,
		"failed": result.Failed,
		"result": result.Outcome(),
		"errors": result.Errors,
	})
}
