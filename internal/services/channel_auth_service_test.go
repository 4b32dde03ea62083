package services

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"portal-realtime/internal/repositories"
	apperrors "portal-realtime/pkg/errors"
	"portal-realtime/pkg/service"
)

func newBackend(t *testing.T, calls *int32) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(calls, 1)
		if r.Header.Get("Authorization") != "Bearer tok-1" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		switch r.URL.Path {
		case "/projects/7":
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte(`{"id":"7"}`))
		case "/projects/500":
			w.WriteHeader(http.StatusInternalServerError)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestChannelAuthService_Business(t *testing.T) {
	svc := NewChannelAuthService(repositories.NewMemoryCacheRepository(), nil, "http://unused", time.Minute, zap.NewNop())
	ctx := context.Background()
	claims := &service.JwtCustomClaim{UserID: "u-1", BusinessID: "b-1"}

	assert.NoError(t, svc.Authorize(ctx, claims, "business-b-1"))
	assert.ErrorIs(t, svc.Authorize(ctx, claims, "business-b-2"), apperrors.ErrForbidden)
	assert.ErrorIs(t, svc.Authorize(ctx, &service.JwtCustomClaim{UserID: "u-2"}, "business-b-1"), apperrors.ErrForbidden)
	assert.ErrorIs(t, svc.Authorize(ctx, claims, "bogus"), apperrors.ErrInvalidChannel)
	assert.ErrorIs(t, svc.Authorize(ctx, nil, "business-b-1"), apperrors.ErrUnauthorized)
}

func TestChannelAuthService_ProjectUsesBackendAndCache(t *testing.T) {
	var calls int32
	backend := newBackend(t, &calls)
	svc := NewChannelAuthService(repositories.NewMemoryCacheRepository(), backend.Client(), backend.URL+"/", time.Minute, zap.NewNop())
	ctx := context.Background()
	claims := &service.JwtCustomClaim{UserID: "u-1", Raw: "tok-1"}

	require.NoError(t, svc.Authorize(ctx, claims, "project-7"))
	require.NoError(t, svc.Authorize(ctx, claims, "project-7"))
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))

	assert.ErrorIs(t, svc.Authorize(ctx, claims, "project-8"), apperrors.ErrForbidden)
	assert.ErrorIs(t, svc.Authorize(ctx, claims, "project-8"), apperrors.ErrForbidden)
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestChannelAuthService_BackendFailureIsNotCached(t *testing.T) {
	var calls int32
	backend := newBackend(t, &calls)
	svc := NewChannelAuthService(repositories.NewMemoryCacheRepository(), backend.Client(), backend.URL, time.Minute, zap.NewNop())
	ctx := context.Background()
	claims := &service.JwtCustomClaim{UserID: "u-1", Raw: "tok-1"}

	assert.ErrorIs(t, svc.Authorize(ctx, claims, "project-500"), apperrors.ErrForbidden)
	assert.ErrorIs(t, svc.Authorize(ctx, claims, "project-500"), apperrors.ErrForbidden)
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}
