package activity

import (
	"net/http"

	"github.com/dnelles/task-tracker/internal/middleware"
	"github.com/gin-gonic/gin"
)

type Handler struct {
	store Store
}

func NewHandler(store Store) *Handler {
	return &Handler{store: store}
}

func (h *Handler) RegisterRoutes(r *gin.Engine, requireAuth gin.HandlerFunc) {
	api := r.Group("/api/activity")
	api.Use(requireAuth)
	api.POST("", h.Append)
	api.GET("", h.List)
}

type appendRequest struct {
	Message string `json:"message"`
}

func (h *Handler) Append(c *gin.Context) {
	uid, _ := middleware.UserIDFromContext(c.Request.Context())

	var req appendRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Message == "" {
		c.String(http.StatusBadRequest, "Missing message")
		return
	}

	if err := h.store.Append(c.Request.Context(), uid, req.Message); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"status": "error"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "success"})
}

func (h *Handler) List(c *gin.Context) {
	uid, _ := middleware.UserIDFromContext(c.Request.Context())

	entries, err := h.store.List(c.Request.Context(), uid, 100)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list activity"})
		return
	}
	if entries == nil {
		entries = []Entry{}
	}

	c.JSON(http.StatusOK, gin.H{"entries": entries})
}
