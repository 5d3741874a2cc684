package http

import (
	"context"
	"errors"
	"net/http"

	"dispatch/internal/core/application/reconciler"
	"dispatch/internal/core/domain/model/courier"
	"dispatch/internal/core/domain/model/order"
	"dispatch/internal/pkg/errs"

	"github.com/labstack/echo/v4"
)

// statusOf maps domain and store errors to HTTP status codes.
func statusOf(err error) int {
	switch {
	case errors.Is(err, errs.ErrObjectNotFound),
		errors.Is(err, reconciler.ErrSubscriptionClosed):
		return http.StatusNotFound
	case errors.Is(err, courier.ErrCourierIsNotApproved):
		return http.StatusForbidden
	case errors.Is(err, order.ErrNotAvailable),
		errors.Is(err, order.ErrIllegalTransition):
		return http.StatusConflict
	case errors.Is(err, order.ErrCodeMismatch):
		return http.StatusUnprocessableEntity
	case errors.Is(err, errs.ErrValueIsInvalid),
		errors.Is(err, errs.ErrValueIsRequired),
		errors.Is(err, errs.ErrValueIsOutOfRange):
		return http.StatusBadRequest
	case errors.Is(err, errs.ErrStoreIsUnavailable),
		errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) writeError(ctx echo.Context, err error) error {
	code := statusOf(err)
	message := err.Error()
	if code == http.StatusInternalServerError {
		s.logger.ErrorContext(ctx.Request().Context(), "Request failed",
			"path", ctx.Path(), "error", err)
		message = http.StatusText(code)
	}

	return ctx.JSON(code, Error{Code: code, Message: message})
}
