package service

import (
	stderrors "errors"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"

	"portal-realtime/pkg/errors"
)

const (
	RoleAdmin  = "ADMIN"
	RoleClient = "CLIENT"
)

// JwtCustomClaim mirrors the access token the backend issues at /auth/login.
type JwtCustomClaim struct {
	UserID     string `json:"sub_id"`
	Email      string `json:"email"`
	Role       string `json:"role"`
	BusinessID string `json:"businessId"`
	// Raw is the token the claims were parsed from, forwarded to the backend.
	Raw        string `json:"-"`
	jwt.RegisteredClaims
}

type JWTService interface {
	GenerateToken(claims JwtCustomClaim) (string, error)
	ValidateToken(tokenString string) (*JwtCustomClaim, error)
	GetAccessTokenTTL() time.Duration
}

type jwtService struct {
	SecretKey      string
	AccessTokenExp time.Duration
	logger         *zap.Logger
}

func NewJWTService(secretKey string, accessTokenExp time.Duration, logger *zap.Logger) JWTService {
	return &jwtService{
		SecretKey:      secretKey,
		AccessTokenExp: accessTokenExp,
		logger:         logger,
	}
}

func (service *jwtService) GenerateToken(claims JwtCustomClaim) (string, error) {
	now := time.Now()
	claims.IssuedAt = jwt.NewNumericDate(now)
	if claims.ExpiresAt == nil {
		claims.ExpiresAt = jwt.NewNumericDate(now.Add(service.AccessTokenExp))
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, &claims)
	return token.SignedString([]byte(service.SecretKey))
}

func (s *jwtService) GetAccessTokenTTL() time.Duration {
	return s.AccessTokenExp
}

func (service *jwtService) ValidateToken(tokenString string) (*JwtCustomClaim, error) {
	token, err := jwt.ParseWithClaims(tokenString, &JwtCustomClaim{}, func(token *jwt.Token) (interface{}, error) {
		switch token.Method.(type) {
		case *jwt.SigningMethodHMAC:
			return []byte(service.SecretKey), nil
		default:
			return nil, errors.ErrInvalidSigningMethod
		}
	}, jwt.WithLeeway(5*time.Second))

	if err != nil {
		service.logger.Debug("token parse failed", zap.Error(err))
		switch {
		case stderrors.Is(err, jwt.ErrTokenExpired):
			return nil, errors.ErrTokenExpired
		case stderrors.Is(err, jwt.ErrTokenNotValidYet), stderrors.Is(err, jwt.ErrTokenUsedBeforeIssued):
			return nil, errors.ErrTokenNotYetValid
		case stderrors.Is(err, errors.ErrInvalidSigningMethod):
			return nil, errors.ErrInvalidSigningMethod
		}
		return nil, errors.ErrInvalidToken
	}

	claims, ok := token.Claims.(*JwtCustomClaim)
	if !ok || !token.Valid || claims.UserID == "" {
		return nil, errors.ErrInvalidToken
	}
	claims.Raw = tokenString

	return claims, nil
}
