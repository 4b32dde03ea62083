package api

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	apperrors "portal-realtime/pkg/errors"
)

type Response[T any] struct {
	Status  bool   `json:"status"`
	Message string `json:"message"`
	Body    T      `json:"body,omitempty"`
}

type ListBody[T any] struct {
	List []T   `json:"list"`
	Next int64 `json:"next,omitempty"`
}

// SuccessOne returns a single object.
func SuccessOne[T any](c echo.Context, code int, message string, data T) error {
	return c.JSON(code, Response[T]{
		Status:  true,
		Message: message,
		Body:    data,
	})
}

// SuccessList returns a list; next is the cursor for the following page, zero when exhausted.
func SuccessList[T any](c echo.Context, message string, list []T, next int64) error {
	if list == nil {
		list = make([]T, 0)
	}
	return c.JSON(http.StatusOK, Response[ListBody[T]]{
		Status:  true,
		Message: message,
		Body:    ListBody[T]{List: list, Next: next},
	})
}

func ErrorResponse(c echo.Context, err error, logger *zap.Logger) error {
	code := apperrors.StatusCode(err)
	msg := err.Error()

	// For HttpError only the user-facing message goes out.
	var httpErr *apperrors.HttpError
	if errors.As(err, &httpErr) {
		msg = httpErr.Message
	}
	if code >= http.StatusInternalServerError {
		if logger != nil {
			logger.Error("request failed",
				zap.String("method", c.Request().Method),
				zap.String("uri", c.Request().RequestURI),
				zap.Error(err),
			)
		}
		msg = http.StatusText(code)
	}

	return c.JSON(code, Response[any]{
		Status:  false,
		Message: msg,
	})
}
