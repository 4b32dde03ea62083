package routes

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"portal-realtime/internal/services"
	"portal-realtime/pkg/config"
	"portal-realtime/pkg/middleware"
	"portal-realtime/pkg/service"
	"portal-realtime/pkg/websocket"
)

// Dependencies are the long-lived components the relay routes are built on.
type Dependencies struct {
	Hub          *websocket.Hub
	RelayService services.RelayServiceInterface
	Authorizer   websocket.Authorizer
	JWTService   service.JWTService
	Config       *config.Config
	Logger       *zap.Logger
}

func InitRouter(e *echo.Echo, deps Dependencies) {
	deps.Logger.Info("InitRouter: registering relay routes")

	authMW := middleware.NewAuthMiddleware(deps.JWTService, deps.Config.Relay.PublishKeyHash, deps.Logger)

	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]interface{}{
			"status":  "ok",
			"clients": deps.Hub.ClientCount(),
		})
	})

	runWebSocketRouter(e, deps)

	api := e.Group("/api")
	runEventRouter(api, deps, authMW)
}
