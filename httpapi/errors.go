package httpapi

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
)

var errMalformedBody = echo.NewHTTPError(http.StatusBadRequest, "Malformed JSON body")

type errorResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// errorHandler renders errors that never reached a pipeline (router misses,
// malformed bodies, auth guard rejections) in the same envelope the pipeline
// uses.
func (s *Server) errorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	code := http.StatusInternalServerError
	message := "Server error"

	var echoErr *echo.HTTPError
	if errors.As(err, &echoErr) {
		code = echoErr.Code
		if msg, ok := echoErr.Message.(string); ok {
			message = msg
		} else {
			message = http.StatusText(code)
		}
	} else {
		s.logger.ErrorContext(c.Request().Context(), "unhandled error",
			"error", err,
			"path", c.Request().URL.Path,
		)
	}

	var writeErr error
	if c.Request().Method == http.MethodHead {
		writeErr = c.NoContent(code)
	} else {
		writeErr = c.JSON(code, errorResponse{Success: false, Message: message})
	}
	if writeErr != nil {
		s.logger.ErrorContext(c.Request().Context(), "write error response", "error", writeErr)
	}
}
