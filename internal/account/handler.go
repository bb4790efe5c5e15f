package account

import (
	"net/http"
	"time"

	"github.com/dnelles/task-tracker/internal/logger"
	"github.com/dnelles/task-tracker/internal/middleware"
	"github.com/gin-gonic/gin"
)

type Handler struct {
	service *Service
	signer  *Signer
	ttl     time.Duration
}

func NewHandler(service *Service, signer *Signer, ttl time.Duration) *Handler {
	return &Handler{
		service: service,
		signer:  signer,
		ttl:     ttl,
	}
}

type registerRequest struct {
	Email     string `json:"email" binding:"required"`
	Password  string `json:"password" binding:"required"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
}

type loginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

func (h *Handler) Register(c *gin.Context) {
	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	uid, err := h.service.Register(
		c.Request.Context(),
		req.Email,
		req.Password,
		req.FirstName,
		req.LastName,
	)
	if err != nil {
		switch err {
		case ErrAlreadyRegistered:
			c.JSON(http.StatusConflict, gin.H{"error": "account already exists"})
		default:
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		}
		return
	}

	token, err := h.signer.Mint(uid, h.ttl)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "token error"})
		return
	}

	logger.Info("account registered", map[string]any{"uid": uid})

	c.JSON(http.StatusCreated, gin.H{
		"uid":   uid,
		"token": token,
	})
}

func (h *Handler) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	uid, err := h.service.Authenticate(
		c.Request.Context(),
		req.Email,
		req.Password,
	)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
		return
	}

	token, err := h.signer.Mint(uid, h.ttl)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "token error"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"uid":   uid,
		"token": token,
	})
}

func (h *Handler) Me(c *gin.Context) {
	uid, ok := middleware.UserIDFromContext(c.Request.Context())
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	user, err := h.service.Profile(c.Request.Context(), uid)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load profile"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"uid":         user.ID,
		"email":       user.Email,
		"displayName": user.DisplayName(),
	})
}
