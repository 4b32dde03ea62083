package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"

	"portal-realtime/internal/broker"
	"portal-realtime/internal/listeners"
	"portal-realtime/internal/repositories"
	"portal-realtime/internal/routes"
	"portal-realtime/internal/services"
	"portal-realtime/pkg/api"
	"portal-realtime/pkg/config"
	"portal-realtime/pkg/database/postgresql"
	"portal-realtime/pkg/eventbus"
	apperrors "portal-realtime/pkg/errors"
	applogger "portal-realtime/pkg/logger"
	"portal-realtime/pkg/middleware"
	"portal-realtime/pkg/service"
	"portal-realtime/pkg/validation"
	"portal-realtime/pkg/websocket"
)

func main() {
	cfg := config.New()
	logger := applogger.NewLogger(cfg.Log.Level, cfg.Log.File)
	defer func() { _ = logger.Sync() }()

	if cfg.JWT.SecretKey == "" {
		logger.Fatal("JWT_SECRET_KEY is required")
	}
	if cfg.Relay.PublishKeyHash == "" {
		logger.Warn("RELAY_PUBLISH_KEY_HASH is empty, publishing is disabled")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	e := echo.New()
	e.HideBanner = true
	e.Use(echomw.RecoverWithConfig(echomw.RecoverConfig{
		DisableStackAll: true,
		StackSize:       1 << 10,
		LogErrorFunc: func(c echo.Context, err error, stack []byte) error {
			logger.Error("panic recovered",
				zap.String("method", c.Request().Method),
				zap.String("uri", c.Request().RequestURI),
				zap.Error(err),
				zap.String("stack", string(stack)),
			)
			if !c.Response().Committed {
				_ = api.ErrorResponse(c, apperrors.NewHttpError(http.StatusInternalServerError, "internal server error", err, nil), logger)
			}
			return err
		},
	}))
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins:     cfg.Server.AllowedOrigins,
		AllowMethods:     []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowHeaders:     []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept, echo.HeaderAuthorization, middleware.PublishKeyHeader},
		AllowCredentials: true,
		ExposeHeaders:    []string{echo.HeaderContentDisposition},
	}))
	e.Use(middleware.RequestLogger(logger))
	e.Validator = validation.New()

	var cache repositories.CacheRepositoryInterface = repositories.NewMemoryCacheRepository()
	var relayBroker broker.Broker = broker.NewMemory(1024)
	if cfg.Redis.Enabled {
		redisClient := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Address,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer redisClient.Close()
		if _, err := redisClient.Ping(ctx).Result(); err != nil {
			logger.Fatal("redis unreachable", zap.Error(err), zap.String("address", cfg.Redis.Address))
		}
		cache = repositories.NewRedisCacheRepository(redisClient)
		relayBroker = broker.NewRedis(redisClient, broker.DefaultTopic, logger)
		logger.Info("using Redis for sequences, access cache and fan-out", zap.String("address", cfg.Redis.Address))
	}

	var eventLog repositories.EventLogRepositoryInterface = repositories.NewMemoryEventLog(cfg.Relay.MemoryLogSize)
	var txManager repositories.TxManagerInterface = repositories.NewLocalTxManager()
	if cfg.Postgres.Enabled {
		dbConn, err := postgresql.ConnectDB(ctx, cfg.Postgres.DSN, logger)
		if err != nil {
			logger.Fatal("postgres unreachable", zap.Error(err))
		}
		defer dbConn.Close()
		if err := postgresql.Migrate(dbConn); err != nil {
			logger.Fatal("migrations failed", zap.Error(err))
		}
		eventLog = repositories.NewEventLogRepository(dbConn)
		txManager = repositories.NewTxManager(dbConn)
	}

	bus := eventbus.New(logger)
	jwtSvc := service.NewJWTService(cfg.JWT.SecretKey, 24*time.Hour, logger)
	relayService := services.NewRelayService(cache, eventLog, txManager, relayBroker, bus, cfg.Relay.ReplayLimit, logger)
	authService := services.NewChannelAuthService(cache, nil, cfg.Relay.BackendBaseURL, cfg.Relay.AccessCacheTTL, logger)

	hub := websocket.NewHub(authService, relayService, cfg.Relay.ReplayLimit, logger)
	listeners.NewDeliveryListener(hub, logger).Register(bus)

	go hub.Run(ctx)
	go func() {
		if err := relayBroker.Run(ctx, relayService.Deliver); err != nil {
			logger.Error("broker stopped", zap.Error(err))
			stop()
		}
	}()

	routes.InitRouter(e, routes.Dependencies{
		Hub:          hub,
		RelayService: relayService,
		Authorizer:   authService,
		JWTService:   jwtSvc,
		Config:       cfg,
		Logger:       logger,
	})

	go func() {
		logger.Info("relay listening", zap.String("port", cfg.Server.Port))
		if err := e.Start(":" + cfg.Server.Port); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("server failed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown failed", zap.Error(err))
	}
	logger.Info("relay stopped")
}
