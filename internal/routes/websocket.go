package routes

import (
	"github.com/labstack/echo/v4"

	"portal-realtime/internal/controllers"
)

func runWebSocketRouter(e *echo.Echo, deps Dependencies) {
	wsController := controllers.NewWebSocketController(deps.Hub, deps.JWTService, deps.Config.Server.AllowedOrigins, deps.Logger)
	e.GET("/ws", wsController.ServeWs)
}
