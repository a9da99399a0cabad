package middleware

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"go-directory-wiki/internal/logger"
	"go-directory-wiki/internal/response"
	"go-directory-wiki/internal/service"
	"go-directory-wiki/internal/view"
)

// AppError represents a custom error type for the application.
type AppError struct {
	Error   error
	Message string
	Code    int
}

// AppHandler is a custom handler function type that returns an AppError.
type AppHandler func(http.ResponseWriter, *http.Request) *AppError

// BadRequest wraps invalid input.
func BadRequest(err error) *AppError {
	return &AppError{Error: err, Message: err.Error(), Code: http.StatusBadRequest}
}

// FromError maps a service error to the status code and message shown to clients.
func FromError(err error) *AppError {
	var (
		notFound   *service.NotFoundError
		duplicate  *service.DuplicateSlugError
		stale      *service.StaleVersionError
		validation *service.ValidationError
		timeout    *service.TimeoutError
		transient  *service.TransientStoreError
		recovery   *service.RecoveryFailedError
	)
	switch {
	case errors.As(err, &recovery):
		return &AppError{Error: err, Message: "The page could not be saved and is temporarily unavailable. An operator has been alerted.", Code: http.StatusInternalServerError}
	case errors.As(err, &validation):
		return BadRequest(err)
	case errors.As(err, &notFound):
		return &AppError{Error: err, Message: err.Error(), Code: http.StatusNotFound}
	case errors.As(err, &duplicate), errors.As(err, &stale):
		return &AppError{Error: err, Message: err.Error(), Code: http.StatusConflict}
	case errors.As(err, &timeout):
		return &AppError{Error: err, Message: "The data store did not respond in time", Code: http.StatusGatewayTimeout}
	case errors.As(err, &transient):
		return &AppError{Error: err, Message: "The data store is unavailable", Code: http.StatusServiceUnavailable}
	default:
		return &AppError{Error: err, Message: "Internal Server Error", Code: http.StatusInternalServerError}
	}
}

// Error is a middleware that converts handler errors into responses: the JSON
// envelope under /api and an error page everywhere else.
func Error(log logger.Logger, v *view.View) func(AppHandler) http.Handler {
	return func(next AppHandler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rec := recover(); rec != nil {
					err, ok := rec.(error)
					if !ok {
						err = fmt.Errorf("%v", rec)
					}
					log.Error(err, "Panic recovered")
					write(w, r, v, log, &AppError{Error: err, Message: "Internal Server Error", Code: http.StatusInternalServerError})
				}
			}()

			if appErr := next(w, r); appErr != nil {
				var recovery *service.RecoveryFailedError
				switch {
				case errors.As(appErr.Error, &recovery):
					log.With(map[string]interface{}{
						"page_id": recovery.PageID,
						"version": recovery.Version,
					}).Error(appErr.Error, "MANUAL INTERVENTION REQUIRED: page has no published version")
				case appErr.Code >= http.StatusInternalServerError:
					log.Error(appErr.Error, appErr.Message)
				default:
					log.Debug(fmt.Sprintf("%s %s: %d %s", r.Method, r.URL.Path, appErr.Code, appErr.Message))
				}
				write(w, r, v, log, appErr)
			}
		})
	}
}

func write(w http.ResponseWriter, r *http.Request, v *view.View, log logger.Logger, appErr *AppError) {
	if v == nil || strings.HasPrefix(r.URL.Path, "/api/") {
		response.Error(w, appErr.Code, appErr.Message)
		return
	}
	data := map[string]interface{}{
		"StatusCode": appErr.Code,
		"StatusText": appErr.Message,
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(appErr.Code)
	if err := v.Render(w, "error.html", data); err != nil {
		log.Error(err, "Failed to render error page")
	}
}
