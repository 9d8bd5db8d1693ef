package handler

import (
	stderrors "errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"

	"storefront/internal/errors"
)

// fail converts a service error into an HTTP error carrying an
// errors.ErrorResponse. The original error is kept as the internal cause.
func fail(err error) error {
	httpErr := errors.MapErrorToHTTP(err)
	return echo.NewHTTPError(httpErr.StatusCode, httpErr.ToErrorResponse()).SetInternal(err)
}

func badRequest(message, code string) error {
	return echo.NewHTTPError(http.StatusBadRequest, errors.ErrorResponse{
		Error: message,
		Code:  code,
	})
}

// ErrorHandler renders every error as an errors.ErrorResponse body. Server
// side failures are logged with their underlying cause, which never reaches
// the client.
func ErrorHandler(log logrus.FieldLogger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}

		status, body := errorBody(err)
		if status >= http.StatusInternalServerError {
			cause := err
			var he *echo.HTTPError
			if stderrors.As(err, &he) && he.Internal != nil {
				cause = he.Internal
			}
			log.WithError(cause).WithFields(logrus.Fields{
				"method":     c.Request().Method,
				"uri":        c.Request().RequestURI,
				"request_id": c.Response().Header().Get(echo.HeaderXRequestID),
			}).Error("request failed")
		}

		var writeErr error
		if c.Request().Method == http.MethodHead {
			writeErr = c.NoContent(status)
		} else {
			writeErr = c.JSON(status, body)
		}
		if writeErr != nil {
			log.WithError(writeErr).Warn("write error response")
		}
	}
}

func errorBody(err error) (int, errors.ErrorResponse) {
	var he *echo.HTTPError
	if stderrors.As(err, &he) {
		switch msg := he.Message.(type) {
		case errors.ErrorResponse:
			return he.Code, msg
		case string:
			return he.Code, errors.ErrorResponse{Error: msg}
		default:
			return he.Code, errors.ErrorResponse{Error: http.StatusText(he.Code)}
		}
	}
	httpErr := errors.MapErrorToHTTP(err)
	return httpErr.StatusCode, httpErr.ToErrorResponse()
}
