package app

import (
	"context"

	"github.com/dnelles/task-tracker/internal/account"
	"github.com/dnelles/task-tracker/internal/activity"
	"github.com/dnelles/task-tracker/internal/config"
	"github.com/dnelles/task-tracker/internal/google"
	"github.com/dnelles/task-tracker/internal/middleware"
	"github.com/dnelles/task-tracker/internal/obs"
	syncsvc "github.com/dnelles/task-tracker/internal/sync"
	"github.com/dnelles/task-tracker/internal/tasks"
	"github.com/dnelles/task-tracker/internal/vault"

	"github.com/gin-gonic/gin"
)

func setupHTTP(ctx context.Context, cfg config.Config) (*gin.Engine, func() error, error) {

	infra, err := setupInfra(ctx, cfg)
	if err != nil {
		return nil, nil, err
	}

	// ----------------------------
	// Dependencies
	// ----------------------------

	signer, err := account.NewSigner(
		cfg.AuthProjectID,
		cfg.AuthClientEmail,
		cfg.AuthPrivateKey,
		cfg.AuthSecret,
	)
	if err != nil {
		return nil, nil, err
	}

	googleProvider, err := google.New(
		ctx,
		cfg.GoogleClientID,
		cfg.GoogleClientSecret,
	)
	if err != nil {
		return nil, nil, err
	}

	accountService := account.NewService(infra.DB)
	accountHandler := account.NewHandler(accountService, signer, cfg.IdentityTTL)

	tokenStore := vault.NewPostgresStore(infra.DB)
	stateSigner := vault.NewStateSigner(
		cfg.AuthSecret,
		cfg.OAuthStateTTL,
		vault.NewRedisNonceStore(infra.Redis.Client),
	)
	vaultHandler := vault.NewHandler(googleProvider, tokenStore, stateSigner, cfg.ClientBaseURL)

	taskStore := tasks.NewPostgresStore(infra.DB)
	taskHandler := tasks.NewHandler(taskStore, cfg.AdminUIDs)

	dispatcher := syncsvc.NewDispatcher(
		tokenStore,
		googleProvider,
		taskStore,
		google.NewTasksClient(),
	)
	syncHandler := syncsvc.NewHandler(dispatcher)

	activityHandler := activity.NewHandler(activity.NewPostgresStore(infra.DB))

	authMiddleware := middleware.NewAuthMiddleware(signer)
	requireAuth := middleware.GinRequireAuth(authMiddleware)

	// ----------------------------
	// Router
	// ----------------------------

	obs.Init()

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(obs.Instrument())

	router.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})
	router.GET("/metrics", gin.WrapH(obs.Handler()))

	// ----------------------------
	// Public routes
	// ----------------------------

	router.POST("/auth/register", accountHandler.Register)
	router.POST("/auth/login", accountHandler.Login)
	router.GET("/auth/me", requireAuth, accountHandler.Me)

	// ----------------------------
	// Feature routes
	// ----------------------------

	vaultHandler.RegisterRoutes(router, requireAuth)
	syncHandler.RegisterRoutes(router, requireAuth)
	taskHandler.RegisterRoutes(router, requireAuth)
	activityHandler.RegisterRoutes(router, requireAuth)

	// ----------------------------
	// Cleanup
	// ----------------------------

	return router, func() error {
		if err := infra.Redis.Close(); err != nil {
			return err
		}
		return infra.DB.Close()
	}, nil
}
