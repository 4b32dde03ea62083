package service

import (
	"testing"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"portal-realtime/pkg/errors"
)

func TestGenerateAndValidate(t *testing.T) {
	svc := NewJWTService("secret", time.Hour, zap.NewNop())

	token, err := svc.GenerateToken(JwtCustomClaim{UserID: "u1", Email: "ann@agency.io", Role: RoleAdmin, BusinessID: "b1"})
	require.NoError(t, err)

	claims, err := svc.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, "u1", claims.UserID)
	assert.Equal(t, "ann@agency.io", claims.Email)
	assert.Equal(t, RoleAdmin, claims.Role)
	assert.Equal(t, "b1", claims.BusinessID)
	assert.Equal(t, time.Hour, svc.GetAccessTokenTTL())
}

func TestValidateRejectsExpired(t *testing.T) {
	svc := NewJWTService("secret", time.Hour, zap.NewNop())

	token, err := svc.GenerateToken(JwtCustomClaim{
		UserID: "u1",
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Hour)),
		},
	})
	require.NoError(t, err)

	_, err = svc.ValidateToken(token)
	assert.ErrorIs(t, err, errors.ErrTokenExpired)
}

func TestValidateRejectsForeignSecret(t *testing.T) {
	issuer := NewJWTService("other", time.Hour, zap.NewNop())
	token, err := issuer.GenerateToken(JwtCustomClaim{UserID: "u1"})
	require.NoError(t, err)

	svc := NewJWTService("secret", time.Hour, zap.NewNop())
	_, err = svc.ValidateToken(token)
	assert.ErrorIs(t, err, errors.ErrInvalidToken)
}

func TestValidateRejectsMissingSubject(t *testing.T) {
	svc := NewJWTService("secret", time.Hour, zap.NewNop())
	token, err := svc.GenerateToken(JwtCustomClaim{Email: "nobody@x.io"})
	require.NoError(t, err)

	_, err = svc.ValidateToken(token)
	assert.ErrorIs(t, err, errors.ErrInvalidToken)
}
