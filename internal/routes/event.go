package routes

import (
	"github.com/labstack/echo/v4"

	"portal-realtime/internal/controllers"
	"portal-realtime/pkg/middleware"
	"portal-realtime/pkg/service"
)

func runEventRouter(api *echo.Group, deps Dependencies, authMW *middleware.AuthMiddleware) {
	eventController := controllers.NewEventController(deps.RelayService, deps.Authorizer, deps.Logger)

	api.POST("/events", eventController.Publish, authMW.Publisher)

	secure := api.Group("/channels", authMW.Auth)
	secure.GET("/:channel/events", eventController.History)
	secure.GET("/:channel/events/export", eventController.Export, authMW.RequireRole(service.RoleAdmin))
}
