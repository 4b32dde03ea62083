// Package apiclient is the typed client of the portal backend REST API.
// Every record is decoded and validated at this boundary; a payload that
// does not fit comes back as *apperrors.DecodeError.
package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	apperrors "portal-realtime/pkg/errors"
)

// Validator checks a decoded record; *validation.CustomValidator satisfies it.
type Validator interface {
	Validate(i interface{}) error
}

// TokenFunc returns the bearer token to send, or "" for anonymous calls.
type TokenFunc func() string

type Client struct {
	baseURL    string
	token      TokenFunc
	httpClient *http.Client
	validator  Validator
	logger     *zap.Logger
}

func New(baseURL string, token TokenFunc, validator Validator, logger *zap.Logger) *Client {
	if token == nil {
		token = func() string { return "" }
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		token:      token,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		validator:  validator,
		logger:     logger,
	}
}

// WithHTTPClient swaps the transport, mostly for tests.
func (c *Client) WithHTTPClient(h *http.Client) *Client {
	c.httpClient = h
	return c
}

type errorBody struct {
	Message json.RawMessage `json:"message"`
}

func (c *Client) do(ctx context.Context, method, path string, body interface{}) ([]byte, error) {
	var bodyReader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("marshaling request body: %w", err)
		}
		bodyReader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token := c.token(); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("executing request %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response body: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		c.logger.Debug("backend error", zap.String("method", method), zap.String("path", path), zap.Int("status", resp.StatusCode))
		return nil, &apperrors.StatusError{Code: resp.StatusCode, Message: errorMessage(respBody)}
	}
	return respBody, nil
}

// errorMessage extracts "message" from an error body; it may be a string or a list.
func errorMessage(body []byte) string {
	var eb errorBody
	if json.Unmarshal(body, &eb) != nil || len(eb.Message) == 0 {
		return ""
	}
	var single string
	if json.Unmarshal(eb.Message, &single) == nil {
		return single
	}
	var list []string
	if json.Unmarshal(eb.Message, &list) == nil {
		return strings.Join(list, "; ")
	}
	return ""
}

// Decode parses one record of type T and validates it.
func Decode[T any](entity string, data []byte, v Validator) (T, error) {
	var out T
	if err := json.Unmarshal(data, &out); err != nil {
		return out, &apperrors.DecodeError{Entity: entity, Err: err}
	}
	if v != nil {
		if err := v.Validate(&out); err != nil {
			return out, &apperrors.DecodeError{Entity: entity, Err: err}
		}
	}
	return out, nil
}

// DecodeList parses a JSON array of T, validating every element.
func DecodeList[T any](entity string, data []byte, v Validator) ([]T, error) {
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, &apperrors.DecodeError{Entity: entity, Err: err}
	}
	out := make([]T, 0, len(raw))
	for i, item := range raw {
		rec, err := Decode[T](entity, item, v)
		if err != nil {
			return nil, &apperrors.DecodeError{Entity: fmt.Sprintf("%s[%d]", entity, i), Err: err}
		}
		out = append(out, rec)
	}
	return out, nil
}

func getOne[T any](ctx context.Context, c *Client, entity, path string) (T, error) {
	var zero T
	body, err := c.do(ctx, http.MethodGet, path, nil)
	if err != nil {
		return zero, err
	}
	return Decode[T](entity, body, c.validator)
}

func getList[T any](ctx context.Context, c *Client, entity, path string) ([]T, error) {
	body, err := c.do(ctx, http.MethodGet, path, nil)
	if err != nil {
		return nil, err
	}
	return DecodeList[T](entity, body, c.validator)
}

func send[T any](ctx context.Context, c *Client, method, entity, path string, in interface{}) (T, error) {
	var zero T
	body, err := c.do(ctx, method, path, in)
	if err != nil {
		return zero, err
	}
	return Decode[T](entity, body, c.validator)
}
