package services

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"portal-realtime/internal/repositories"
	"portal-realtime/pkg/channel"
	apperrors "portal-realtime/pkg/errors"
	"portal-realtime/pkg/service"
)

const (
	accessKeyPrefix = "relay:access:"
	accessGranted   = "1"
	accessDenied    = "0"
)

// ChannelAuthService decides who may subscribe to which channel.
type ChannelAuthService struct {
	cache          repositories.CacheRepositoryInterface
	httpClient     *http.Client
	backendBaseURL string
	ttl            time.Duration
	logger         *zap.Logger
}

func NewChannelAuthService(
	cache repositories.CacheRepositoryInterface,
	httpClient *http.Client,
	backendBaseURL string,
	ttl time.Duration,
	logger *zap.Logger,
) *ChannelAuthService {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 5 * time.Second}
	}
	return &ChannelAuthService{
		cache:          cache,
		httpClient:     httpClient,
		backendBaseURL: strings.TrimRight(backendBaseURL, "/"),
		ttl:            ttl,
		logger:         logger,
	}
}

// Authorize lets a business member into business-{id} and defers project
// channels to the backend's own access check on /projects/{id}.
func (s *ChannelAuthService) Authorize(ctx context.Context, claims *service.JwtCustomClaim, channelName string) error {
	if claims == nil {
		return apperrors.ErrUnauthorized
	}
	name, err := channel.Parse(channelName)
	if err != nil {
		return err
	}

	switch name.Scope {
	case channel.ScopeBusiness:
		if claims.BusinessID == "" || claims.BusinessID != name.ID {
			return apperrors.ErrForbidden
		}
		return nil
	case channel.ScopeProject:
		return s.authorizeProject(ctx, claims, name)
	}
	return apperrors.ErrInvalidChannel
}

func (s *ChannelAuthService) authorizeProject(ctx context.Context, claims *service.JwtCustomClaim, name channel.Name) error {
	key := accessKeyPrefix + claims.UserID + ":" + name.String()

	cached, err := s.cache.Get(ctx, key)
	switch {
	case err == nil && cached == accessGranted:
		return nil
	case err == nil && cached == accessDenied:
		return apperrors.ErrForbidden
	case err != nil && !errors.Is(err, repositories.ErrCacheMiss):
		s.logger.Warn("access cache read failed", zap.String("key", key), zap.Error(err))
	}

	allowed, err := s.backendAllows(ctx, claims.Raw, name.ID)
	if err != nil {
		s.logger.Warn("backend access check failed",
			zap.String("user", claims.UserID),
			zap.String("channel", name.String()),
			zap.Error(err),
		)
		return apperrors.ErrForbidden
	}

	value := accessDenied
	if allowed {
		value = accessGranted
	}
	if err := s.cache.Set(ctx, key, value, s.ttl); err != nil {
		s.logger.Warn("access cache write failed", zap.String("key", key), zap.Error(err))
	}
	if !allowed {
		return apperrors.ErrForbidden
	}
	return nil
}

// backendAllows returns an error only when the backend gave no usable answer.
func (s *ChannelAuthService) backendAllows(ctx context.Context, token, projectID string) (bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.backendBaseURL+"/projects/"+url.PathEscape(projectID), nil)
	if err != nil {
		return false, err
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return false, err
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return true, nil
	case resp.StatusCode == http.StatusUnauthorized,
		resp.StatusCode == http.StatusForbidden,
		resp.StatusCode == http.StatusNotFound:
		return false, nil
	}
	return false, fmt.Errorf("backend responded %d", resp.StatusCode)
}
