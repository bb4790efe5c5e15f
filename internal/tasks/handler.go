package tasks

import (
	"fmt"
	"net/http"
	"time"

	"github.com/dnelles/task-tracker/internal/logger"
	"github.com/dnelles/task-tracker/internal/middleware"
	"github.com/gin-gonic/gin"
)

type Handler struct {
	store     Store
	adminUIDs map[string]bool
}

func NewHandler(store Store, adminUIDs []string) *Handler {
	admins := make(map[string]bool, len(adminUIDs))
	for _, uid := range adminUIDs {
		admins[uid] = true
	}
	return &Handler{
		store:     store,
		adminUIDs: admins,
	}
}

// RegisterRoutes mounts the task CRUD, stats, CSV and admin endpoints.
// Everything here requires a verified identity.
func (h *Handler) RegisterRoutes(r *gin.Engine, requireAuth gin.HandlerFunc) {
	api := r.Group("/api/tasks")
	api.Use(requireAuth)
	api.GET("", h.List)
	api.POST("", h.Create)
	api.GET("/stats", h.Stats)
	api.GET("/export", h.ExportCSV)
	api.POST("/import", h.ImportCSV)
	api.PATCH("/:id", h.Update)
	api.DELETE("/:id", h.Delete)

	admin := r.Group("/admin")
	admin.Use(requireAuth)
	admin.GET("/tasks", h.AdminList)
}

type createRequest struct {
	Title     string     `json:"title" binding:"required"`
	Category  string     `json:"category"`
	ClassName string     `json:"className"`
	Notes     string     `json:"notes"`
	Link      string     `json:"link"`
	DueDate   *time.Time `json:"dueDate"`
}

func (h *Handler) Create(c *gin.Context) {
	uid, _ := middleware.UserIDFromContext(c.Request.Context())

	var req createRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	category := NormalizeCategory(req.Category)
	className := req.ClassName
	if category != CategorySchool {
		className = ""
	}

	task := Task{
		UserID:    uid,
		Title:     req.Title,
		Category:  category,
		ClassName: className,
		Notes:     req.Notes,
		Link:      req.Link,
		DueDate:   req.DueDate,
	}

	if err := h.store.Create(c.Request.Context(), &task); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create task"})
		return
	}

	c.JSON(http.StatusCreated, task)
}

func (h *Handler) List(c *gin.Context) {
	uid, _ := middleware.UserIDFromContext(c.Request.Context())

	from, err := parseDateQuery(c.Query("from"), false)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid from date"})
		return
	}
	to, err := parseDateQuery(c.Query("to"), true)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid to date"})
		return
	}

	ts, err := h.store.List(c.Request.Context(), uid, from, to)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list tasks"})
		return
	}
	if ts == nil {
		ts = []Task{}
	}

	c.JSON(http.StatusOK, gin.H{"tasks": ts})
}

type updateRequest struct {
	Title            *string    `json:"title"`
	Category         *string    `json:"category"`
	ClassName        *string    `json:"className"`
	Notes            *string    `json:"notes"`
	Link             *string    `json:"link"`
	DueDate          *time.Time `json:"dueDate"`
	ClearDueDate     bool       `json:"clearDueDate"`
	Completed        *bool      `json:"completed"`
	TimeSpentSeconds *int64     `json:"timeSpentSeconds"`
	Progress         *int       `json:"progress"`
}

func (h *Handler) Update(c *gin.Context) {
	uid, _ := middleware.UserIDFromContext(c.Request.Context())
	id := c.Param("id")

	var req updateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	task, err := h.store.Get(c.Request.Context(), uid, id)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load task"})
		return
	}
	if task == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "task not found"})
		return
	}

	if req.Title != nil {
		task.Title = *req.Title
	}
	if req.Category != nil {
		task.Category = NormalizeCategory(*req.Category)
		if task.Category != CategorySchool {
			task.ClassName = ""
		}
	}
	if req.ClassName != nil && task.Category == CategorySchool {
		task.ClassName = *req.ClassName
	}
	if req.Notes != nil {
		task.Notes = *req.Notes
	}
	if req.Link != nil {
		task.Link = *req.Link
	}
	if req.DueDate != nil {
		task.DueDate = req.DueDate
	} else if req.ClearDueDate {
		task.DueDate = nil
	}
	if req.Completed != nil && *req.Completed != task.Completed {
		task.Completed = *req.Completed
		if task.Completed {
			now := time.Now()
			task.CompletedAt = &now
		} else {
			task.CompletedAt = nil
		}
	}
	if req.TimeSpentSeconds != nil {
		task.TimeSpentSeconds = *req.TimeSpentSeconds
	}
	if req.Progress != nil {
		task.Progress = ClampProgress(*req.Progress)
	}

	if err := h.store.Save(c.Request.Context(), *task); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to update task"})
		return
	}

	c.JSON(http.StatusOK, task)
}

func (h *Handler) Delete(c *gin.Context) {
	uid, _ := middleware.UserIDFromContext(c.Request.Context())

	if err := h.store.Delete(c.Request.Context(), uid, c.Param("id")); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to delete task"})
		return
	}

	c.Status(http.StatusNoContent)
}

func (h *Handler) Stats(c *gin.Context) {
	uid, _ := middleware.UserIDFromContext(c.Request.Context())

	ts, err := h.store.List(c.Request.Context(), uid, nil, nil)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list tasks"})
		return
	}

	c.JSON(http.StatusOK, ComputeStats(ts))
}

func (h *Handler) ExportCSV(c *gin.Context) {
	uid, _ := middleware.UserIDFromContext(c.Request.Context())

	ts, err := h.store.List(c.Request.Context(), uid, nil, nil)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list tasks"})
		return
	}

	filename := fmt.Sprintf("tasks_export_%s.csv", time.Now().Format("2006-01-02"))
	c.Header("Content-Type", "text/csv; charset=utf-8")
	c.Header("Content-Disposition", `attachment; filename="`+filename+`"`)
	c.Status(http.StatusOK)

	if err := WriteCSV(c.Writer, ts); err != nil {
		logger.Error("csv export failed", map[string]any{
			"uid":   uid,
			"error": err.Error(),
		})
	}
}

func (h *Handler) ImportCSV(c *gin.Context) {
	uid, _ := middleware.UserIDFromContext(c.Request.Context())

	imported, rowErrs, err := ReadCSV(c.Request.Body)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if len(rowErrs) > 0 {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":  "fix errors before importing",
			"rows":   rowErrs,
			"valid":  len(imported),
			"failed": len(rowErrs),
		})
		return
	}
	if len(imported) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "no valid tasks to import"})
		return
	}

	for i := range imported {
		imported[i].UserID = uid
	}

	if err := h.store.CreateBatch(c.Request.Context(), imported); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "import failed"})
		return
	}

	logger.Info("tasks imported", map[string]any{
		"uid":   uid,
		"count": len(imported),
	})

	c.JSON(http.StatusOK, gin.H{"imported": len(imported)})
}

// AdminList returns every user's tasks grouped by uid. Restricted to the
// configured admin allowlist.
func (h *Handler) AdminList(c *gin.Context) {
	uid, _ := middleware.UserIDFromContext(c.Request.Context())
	if !h.adminUIDs[uid] {
		c.JSON(http.StatusForbidden, gin.H{"error": "forbidden"})
		return
	}

	ts, err := h.store.ListAll(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list tasks"})
		return
	}

	grouped := make(map[string][]Task)
	for _, t := range ts {
		grouped[t.UserID] = append(grouped[t.UserID], t)
	}

	c.JSON(http.StatusOK, gin.H{"users": grouped})
}

func parseDateQuery(raw string, endOfDay bool) (*time.Time, error) {
	if raw == "" {
		return nil, nil
	}
	t, err := time.ParseInLocation(csvDateLayout, raw, time.Local)
	if err != nil {
		return nil, err
	}
	if endOfDay {
		t = t.Add(24*time.Hour - time.Nanosecond)
	}
	return &t, nil
}
