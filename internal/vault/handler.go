package vault

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/dnelles/task-tracker/internal/google"
	"github.com/dnelles/task-tracker/internal/logger"
	"github.com/dnelles/task-tracker/internal/middleware"
	"github.com/gin-gonic/gin"
	"golang.org/x/oauth2"
)

// OAuthProvider is the slice of the provider client the vault endpoints
// need. Satisfied by *google.Provider.
type OAuthProvider interface {
	AuthCodeURL(state string, redirectURL string) string
	Exchange(ctx context.Context, code string, redirectURL string) (*oauth2.Token, error)
	Refresh(ctx context.Context, refreshToken string) (accessToken string, expiresIn int64, err error)
	Revoke(ctx context.Context, refreshToken string) error
}

type Handler struct {
	provider      OAuthProvider
	store         Store
	states        *StateSigner
	clientBaseURL string
}

func NewHandler(
	provider OAuthProvider,
	store Store,
	states *StateSigner,
	clientBaseURL string,
) *Handler {
	if clientBaseURL == "" {
		clientBaseURL = "/"
	}
	return &Handler{
		provider:      provider,
		store:         store,
		states:        states,
		clientBaseURL: clientBaseURL,
	}
}

// RegisterRoutes mounts the vault endpoints. Start and Callback are
// public: both run inside top-level browser navigations where no bearer
// header can be attached. Everything else requires a verified identity.
func (h *Handler) RegisterRoutes(r *gin.Engine, requireAuth gin.HandlerFunc) {
	r.GET("/google/start", h.Start)
	r.GET("/google/callback", h.Callback)

	authed := r.Group("/google")
	authed.Use(requireAuth)
	authed.GET("/status", h.Status)
	authed.POST("/refresh", h.Refresh)
	authed.POST("/revoke", h.Revoke)
}

func (h *Handler) Start(c *gin.Context) {
	uid := c.Query("uid")
	if uid == "" {
		c.String(http.StatusBadRequest, "Missing uid")
		return
	}

	state, err := h.states.Issue(c.Request.Context(), uid)
	if err != nil {
		c.String(http.StatusInternalServerError, "Failed to start authorization")
		return
	}

	c.Redirect(http.StatusFound, h.provider.AuthCodeURL(state, callbackURL(c)))
}

func (h *Handler) Callback(c *gin.Context) {
	code := c.Query("code")
	state := c.Query("state")
	if code == "" || state == "" {
		c.String(http.StatusBadRequest, "Missing code or state")
		return
	}

	uid, err := h.states.Redeem(c.Request.Context(), state)
	if err != nil {
		c.String(http.StatusBadRequest, "Invalid state")
		return
	}

	token, err := h.provider.Exchange(c.Request.Context(), code, callbackURL(c))
	if err != nil {
		logger.Error("google token exchange failed", map[string]any{
			"uid":   uid,
			"error": err.Error(),
		})
		c.String(http.StatusInternalServerError, err.Error())
		return
	}

	// Google elides the refresh token when the user had already granted
	// consent, despite prompt=consent. Nothing may be persisted then.
	if token.RefreshToken == "" {
		c.Redirect(http.StatusFound, h.clientRedirect("needs_consent"))
		return
	}

	rec := TokenRecord{
		UID:          uid,
		Provider:     google.ProviderTag,
		RefreshToken: token.RefreshToken,
		CreatedAt:    time.Now(),
	}
	if err := h.store.Upsert(c.Request.Context(), rec); err != nil {
		c.String(http.StatusInternalServerError, "Failed to persist token")
		return
	}

	logger.Info("google account connected", map[string]any{"uid": uid})

	c.Redirect(http.StatusFound, h.clientRedirect("connected"))
}

func (h *Handler) Status(c *gin.Context) {
	uid, _ := middleware.UserIDFromContext(c.Request.Context())

	rec, err := h.store.Get(c.Request.Context(), uid)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load token"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"connected": rec != nil})
}

type refreshResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int64  `json:"expires_in"`
}

func (h *Handler) Refresh(c *gin.Context) {
	uid, _ := middleware.UserIDFromContext(c.Request.Context())

	rec, err := h.store.Get(c.Request.Context(), uid)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load token"})
		return
	}
	if rec == nil {
		c.String(http.StatusNotFound, "Not connected")
		return
	}

	accessToken, expiresIn, err := h.provider.Refresh(c.Request.Context(), rec.RefreshToken)
	if err != nil {
		// The one place a revoked or expired refresh token surfaces.
		c.String(http.StatusInternalServerError, err.Error())
		return
	}

	c.JSON(http.StatusOK, refreshResponse{
		AccessToken: accessToken,
		ExpiresIn:   expiresIn,
	})
}

func (h *Handler) Revoke(c *gin.Context) {
	uid, _ := middleware.UserIDFromContext(c.Request.Context())

	rec, err := h.store.Get(c.Request.Context(), uid)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load token"})
		return
	}

	if rec != nil {
		// Revocation at the provider is advisory cleanup; deleting the
		// record is what stops access, so a provider failure is logged
		// and swallowed.
		if err := h.provider.Revoke(c.Request.Context(), rec.RefreshToken); err != nil {
			logger.Warn("google revoke call failed", map[string]any{
				"uid":   uid,
				"error": err.Error(),
			})
		}
		if err := h.store.Delete(c.Request.Context(), uid); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to delete token"})
			return
		}
	}

	c.JSON(http.StatusOK, gin.H{"ok": true})
}

// callbackURL rebuilds this service's own callback address from the
// incoming request, honoring X-Forwarded-Proto behind a proxy. The
// provider's registered redirect URI must match.
func callbackURL(c *gin.Context) string {
	scheme := c.GetHeader("X-Forwarded-Proto")
	if scheme == "" {
		scheme = "http"
	}
	return scheme + "://" + c.Request.Host + "/google/callback"
}

func (h *Handler) clientRedirect(signal string) string {
	base := strings.TrimSuffix(h.clientBaseURL, "/")
	return base + "/?google=" + signal
}
