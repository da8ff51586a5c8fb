package errors

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

// NewHTTPErrorHandler renders every error as {"message": "..."} with the status code
// carried by the error. Errors that are neither HttpError nor echo.HTTPError are
// reported as 500 without leaking their message.
func NewHTTPErrorHandler(logger *zap.SugaredLogger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		e := HttpError{}
		if errors.As(err, &e) {
			c.Echo().DefaultHTTPErrorHandler(echo.NewHTTPError(e.Code, err.Error()), c)
			return
		}

		he := &echo.HTTPError{}
		if errors.As(err, &he) {
			c.Echo().DefaultHTTPErrorHandler(he, c)
			return
		}

		logger.Errorw("unexpected error", "method", c.Request().Method, "path", c.Path(), "error", err)
		c.Echo().DefaultHTTPErrorHandler(echo.NewHTTPError(http.StatusInternalServerError, http.StatusText(http.StatusInternalServerError)), c)
	}
}
