package errors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStatusCode(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want int
	}{
		{"http error wins", NewHttpError(http.StatusTeapot, "teapot", ErrNotFound, nil), http.StatusTeapot},
		{"invalid input", NewInvalidInputError("bad %s", "field"), http.StatusBadRequest},
		{"wrapped channel", fmt.Errorf("publish: %w", ErrInvalidChannel), http.StatusBadRequest},
		{"expired token", ErrTokenExpired, http.StatusUnauthorized},
		{"publisher key", ErrInvalidPublishKey, http.StatusUnauthorized},
		{"forbidden", fmt.Errorf("x: %w", ErrForbidden), http.StatusForbidden},
		{"not found", ErrNotFound, http.StatusNotFound},
		{"unknown", errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, StatusCode(tc.err))
		})
	}
}

func TestStatusErrorMatchesSentinels(t *testing.T) {
	err := fmt.Errorf("list comments: %w", &StatusError{Code: http.StatusForbidden})
	assert.ErrorIs(t, err, ErrForbidden)
	assert.NotErrorIs(t, err, ErrNotFound)

	assert.ErrorIs(t, &StatusError{Code: http.StatusUnprocessableEntity}, ErrBadRequest)
	assert.ErrorIs(t, &StatusError{Code: http.StatusUnauthorized}, ErrUnauthorized)
}

func TestDecodeErrorUnwraps(t *testing.T) {
	inner := errors.New("missing id")
	err := fmt.Errorf("fetch: %w", &DecodeError{Entity: "comment", Err: inner})

	var decodeErr *DecodeError
	assert.True(t, errors.As(err, &decodeErr))
	assert.Equal(t, "comment", decodeErr.Entity)
	assert.ErrorIs(t, err, inner)
	assert.Equal(t, "decode comment: missing id", decodeErr.Error())
}
