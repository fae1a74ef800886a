package main

import (
	"context"
	"net/http"
	"os"
	ossignal "os/signal"
	"syscall"
	"time"

	"github.com/alicesotero/CoLab/internal/core/domain"
	"github.com/alicesotero/CoLab/internal/core/services"
	httphandlers "github.com/alicesotero/CoLab/internal/handlers/http"
	"github.com/alicesotero/CoLab/internal/infrastructure/middleware"
	"github.com/alicesotero/CoLab/internal/infrastructure/monitoring"
	"github.com/alicesotero/CoLab/internal/infrastructure/repositories"
	"github.com/alicesotero/CoLab/internal/infrastructure/signal"
	"github.com/alicesotero/CoLab/pkg/auth"
	"github.com/alicesotero/CoLab/pkg/config"
	"github.com/alicesotero/CoLab/pkg/logger"
	"github.com/alicesotero/CoLab/pkg/tracing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func main() {
	// Try multiple config paths
	configPaths := []string{
		"configs/config.yaml",
		"./configs/config.yaml",
		"/etc/colab/config.yaml",
		"config.yaml",
	}

	var cfg *config.Config
	var err error

	for _, path := range configPaths {
		cfg, err = config.Load(path)
		if err == nil {
			break
		}
	}
	if err != nil {
		cfg = config.DefaultConfig()
	}

	zapLogger := logger.New(cfg.Logging.Level, cfg.Logging.Format)
	defer zapLogger.Sync()
	log := zapLogger.Sugar()

	tracer, err := tracing.Init(tracing.Config{
		Enabled:     cfg.Tracing.Enabled,
		ServiceName: cfg.Tracing.ServiceName,
		JaegerURL:   cfg.Tracing.JaegerURL,
		Environment: cfg.Tracing.Environment,
		SampleRate:  cfg.Tracing.SampleRate,
	})
	if err != nil {
		log.Fatalw("failed to initialize tracing", "error", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		tracer.Shutdown(shutdownCtx)
	}()

	repoFactory, err := repositories.NewFactory(cfg, log)
	if err != nil {
		log.Fatalw("failed to create repository factory", "error", err)
	}
	defer repoFactory.Close()

	userRepo := repoFactory.CreateUserRepository()
	messageRepo, err := repoFactory.CreateMessageRepository()
	if err != nil {
		log.Fatalw("failed to create message repository", "error", err)
	}

	roomNames := make([]domain.RoomName, 0, len(cfg.Rooms.Names))
	for _, name := range cfg.Rooms.Names {
		roomNames = append(roomNames, domain.RoomName(name))
	}
	defaultAllowed := make([]domain.RoomName, 0, len(cfg.Rooms.DefaultAllowed))
	for _, name := range cfg.Rooms.DefaultAllowed {
		defaultAllowed = append(defaultAllowed, domain.RoomName(name))
	}

	tokens := auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL)

	directory := services.NewRoomDirectory(roomNames, userRepo, messageRepo, cfg.Rooms.HistoryWindow, cfg.Storage.AdapterTimeout, log)
	relay := services.NewSignalingRelay(directory, log)
	directory.SetDepartureListener(relay)
	registry := services.NewSessionRegistry(userRepo, directory, tokens, defaultAllowed, cfg.Storage.AdapterTimeout, log)
	router := services.NewMessageRouter(directory, messageRepo, cfg.Storage.AdapterTimeout, log)
	admin := services.NewAdminService(userRepo, registry, cfg.Storage.AdapterTimeout, log)

	bootCtx, bootCancel := context.WithTimeout(context.Background(), 10*time.Second)
	if err := registry.EnsureRootAdmin(bootCtx, cfg.Auth.RootAdmin.Password); err != nil {
		bootCancel()
		log.Fatalw("failed to provision root admin", "error", err)
	}
	bootCancel()

	collector := monitoring.NewPrometheusCollector()

	wsServer := signal.NewWebSocketServer(registry, directory, router, relay, admin, collector, cfg, log)
	authHandler := httphandlers.NewAuthHandler(registry, tokens)

	healthChecker := monitoring.NewHealthChecker(2*time.Second, log)
	healthChecker.AddCheck("storage", repoFactory.HealthCheck)

	if cfg.Logging.Level != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}
	engine := gin.New()
	engine.Use(middleware.RecoveryMiddleware(log))
	engine.Use(middleware.ErrorHandlerMiddleware(log))
	if cfg.Tracing.Enabled {
		engine.Use(middleware.TracingMiddleware())
	}
	engine.Use(middleware.NewHTTPRateLimitMiddleware(cfg))

	authHandler.SetupRoutes(engine)
	engine.GET("/ws", gin.WrapF(wsServer.HandleWebSocket))
	engine.GET("/health", healthChecker.Handler())
	if cfg.Monitoring.PrometheusEnabled {
		engine.GET(cfg.Monitoring.MetricsPath, gin.WrapH(promhttp.Handler()))
	}

	srv := &http.Server{
		Addr:         cfg.Server.Address,
		Handler:      engine,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	serverErr := make(chan error, 1)
	go func() {
		log.Infow("starting room broker", "address", cfg.Server.Address, "backend", cfg.Storage.Backend)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErr <- err
		}
	}()

	sigChan := make(chan os.Signal, 1)
	ossignal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serverErr:
		log.Fatalw("server failed", "error", err)
	case sig := <-sigChan:
		log.Infow("received shutdown signal", "signal", sig)
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Errorw("error during server shutdown", "error", err)
		if closeErr := srv.Close(); closeErr != nil {
			log.Errorw("error force closing server", "error", closeErr)
		}
	} else {
		log.Info("server shutdown gracefully")
	}
}
