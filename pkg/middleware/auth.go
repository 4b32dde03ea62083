package middleware

import (
	"context"
	"strings"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"portal-realtime/pkg/api"
	"portal-realtime/pkg/contextkeys"
	apperrors "portal-realtime/pkg/errors"
	"portal-realtime/pkg/service"
)

const PublishKeyHeader = "X-Relay-Key"

type AuthMiddleware struct {
	jwtService     service.JWTService
	publishKeyHash []byte
	logger         *zap.Logger
}

func NewAuthMiddleware(jwtSvc service.JWTService, publishKeyHash string, logger *zap.Logger) *AuthMiddleware {
	return &AuthMiddleware{
		jwtService:     jwtSvc,
		publishKeyHash: []byte(publishKeyHash),
		logger:         logger,
	}
}

// Auth validates the bearer token and stores its claims in the request context.
func (m *AuthMiddleware) Auth(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		authHeader := c.Request().Header.Get(echo.HeaderAuthorization)
		if authHeader == "" {
			m.logger.Debug("AuthMiddleware: empty Authorization header")
			return api.ErrorResponse(c, apperrors.ErrEmptyAuthHeader, m.logger)
		}

		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			m.logger.Debug("AuthMiddleware: malformed Authorization header")
			return api.ErrorResponse(c, apperrors.ErrInvalidAuthHeader, m.logger)
		}

		claims, err := m.jwtService.ValidateToken(parts[1])
		if err != nil {
			m.logger.Warn("AuthMiddleware: token rejected", zap.Error(err))
			return api.ErrorResponse(c, err, m.logger)
		}

		c.SetRequest(c.Request().WithContext(WithClaims(c.Request().Context(), claims)))
		return next(c)
	}
}

// RequireRole lets through only callers whose token carries one of roles.
func (m *AuthMiddleware) RequireRole(roles ...string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			claims, err := ClaimsFromContext(c.Request().Context())
			if err != nil {
				return api.ErrorResponse(c, apperrors.ErrUnauthorized, m.logger)
			}
			for _, role := range roles {
				if claims.Role == role {
					return next(c)
				}
			}
			m.logger.Warn("AuthMiddleware: role not allowed", zap.String("userID", claims.UserID), zap.String("role", claims.Role))
			return api.ErrorResponse(c, apperrors.ErrForbidden, m.logger)
		}
	}
}

// Publisher authenticates backend publishers by the bcrypt-hashed shared key.
func (m *AuthMiddleware) Publisher(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		key := c.Request().Header.Get(PublishKeyHeader)
		if key == "" || len(m.publishKeyHash) == 0 {
			return api.ErrorResponse(c, apperrors.ErrInvalidPublishKey, m.logger)
		}
		if err := bcrypt.CompareHashAndPassword(m.publishKeyHash, []byte(key)); err != nil {
			m.logger.Warn("AuthMiddleware: publisher key rejected", zap.String("remote", c.RealIP()))
			return api.ErrorResponse(c, apperrors.ErrInvalidPublishKey, m.logger)
		}
		return next(c)
	}
}

func WithClaims(ctx context.Context, claims *service.JwtCustomClaim) context.Context {
	return context.WithValue(ctx, contextkeys.ClaimsKey, claims)
}

func ClaimsFromContext(ctx context.Context) (*service.JwtCustomClaim, error) {
	claims, ok := ctx.Value(contextkeys.ClaimsKey).(*service.JwtCustomClaim)
	if !ok || claims == nil {
		return nil, apperrors.ErrClaimsNotFoundInContext
	}
	return claims, nil
}
