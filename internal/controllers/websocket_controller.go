package controllers

import (
	"net/http"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"portal-realtime/pkg/api"
	apperrors "portal-realtime/pkg/errors"
	"portal-realtime/pkg/service"
	appwebsocket "portal-realtime/pkg/websocket"
)

type WebSocketController struct {
	hub        *appwebsocket.Hub
	jwtService service.JWTService
	upgrader   websocket.Upgrader
	logger     *zap.Logger
}

// NewWebSocketController accepts browser origins from allowedOrigins; "*" allows any.
func NewWebSocketController(hub *appwebsocket.Hub, jwtService service.JWTService, allowedOrigins []string, logger *zap.Logger) *WebSocketController {
	allowed := make(map[string]struct{}, len(allowedOrigins))
	for _, o := range allowedOrigins {
		allowed[o] = struct{}{}
	}
	return &WebSocketController{
		hub:        hub,
		jwtService: jwtService,
		logger:     logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				if origin == "" {
					return true
				}
				if _, ok := allowed["*"]; ok {
					return true
				}
				_, ok := allowed[origin]
				return ok
			},
		},
	}
}

// ServeWs authenticates by the token query parameter before upgrading.
func (c *WebSocketController) ServeWs(ctx echo.Context) error {
	tokenString := ctx.QueryParam("token")
	if tokenString == "" {
		return api.ErrorResponse(ctx, apperrors.ErrUnauthorized, c.logger)
	}
	claims, err := c.jwtService.ValidateToken(tokenString)
	if err != nil {
		return api.ErrorResponse(ctx, err, c.logger)
	}

	conn, err := c.upgrader.Upgrade(ctx.Response(), ctx.Request(), nil)
	if err != nil {
		c.logger.Warn("websocket upgrade failed", zap.Error(err))
		return nil
	}

	client := appwebsocket.NewClient(c.hub, conn, claims)
	c.hub.Register(client)

	go client.WritePump()
	go client.ReadPump()

	c.logger.Info("websocket client connected", zap.String("user", claims.UserID), zap.String("client", client.ID))
	return nil
}
