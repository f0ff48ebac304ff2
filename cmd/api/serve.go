package main

import (
	"context"
	"errors"
	"net/http"
	"time"

	_ "academy/api/swagger" // swagger docs
	"academy/internal/database"
	"academy/internal/handler"
	"academy/internal/middleware"
	"academy/internal/repository"
	"academy/internal/service"
	"academy/internal/websocket"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"
)

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the HTTP API",
		RunE:  runServe,
	}
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, log, db, err := bootstrap()
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	if err := database.Migrate(db); err != nil {
		return err
	}

	ctx := cmd.Context()
	if cfg.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	// Set up WebSocket Hub
	wsHub := websocket.NewHub(log)
	go wsHub.Run(ctx)

	// Set up dependencies (Repository -> Service -> Handler)
	auth := middleware.NewAuthenticator(cfg.Auth.JWTSecret)
	txManager := repository.NewTransactionManager(db)
	statusRepo := repository.NewFinancialStatusRepository(db)

	activityService := service.NewActivityService(repository.NewActivityRepository(db), log)
	settingsService := service.NewSettingsService(
		repository.NewSettingsRepository(db),
		repository.NewPenaltySettingRepository(db),
		activityService,
	)
	taxService := service.NewTaxService(settingsService)
	paymentService := service.NewPaymentService(service.PaymentDeps{
		ClaimRepo:        repository.NewClaimRepository(db),
		RegistrationRepo: repository.NewRegistrationRepository(db),
		StatusRepo:       statusRepo,
		TxManager:        txManager,
		Activity:         activityService,
		Notifier:         wsHub,
		Logger:           log,
	})
	financialService := service.NewFinancialService(statusRepo, txManager, settingsService, activityService, wsHub, log)

	// Set up Gin Router
	router := gin.New()
	router.Use(gin.Recovery(), middleware.RequestLogger(log))

	corsConfig := cors.DefaultConfig()
	corsConfig.AllowOrigins = cfg.HTTP.CORSOrigins
	corsConfig.AllowCredentials = true
	corsConfig.AllowHeaders = []string{"Origin", "Content-Length", "Content-Type", "Authorization", "Accept", middleware.RequestIDHeader}
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"}
	router.Use(cors.New(corsConfig))

	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "OK", "ws_clients": wsHub.ClientCount()})
	})

	router.GET("/ws", func(c *gin.Context) {
		websocket.ServeWs(wsHub, c, auth.Secret())
	})

	api := router.Group("")
	handler.NewSettingsHandler(settingsService, auth).RegisterRoutes(api)
	handler.NewTaxHandler(taxService, auth).RegisterRoutes(api)
	handler.NewPaymentHandler(paymentService, auth).RegisterRoutes(api)
	handler.NewFinancialHandler(financialService, auth).RegisterRoutes(api)
	handler.NewActivityHandler(activityService, auth).RegisterRoutes(api)

	srv := &http.Server{
		Addr:              ":" + cfg.HTTP.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("server listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
