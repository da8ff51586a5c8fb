package api

import (
	"io"
	"net/http"

	"github.com/labstack/echo/v4"
)

func (h *Handler) GetSettings(ec echo.Context) error {
	lab, err := h.settings.Get(ec.Request().Context())
	if err != nil {
		return err
	}

	return ec.JSON(http.StatusOK, lab)
}

// UpdateSettings merges the request body into the stored profile, so clients may send
// only the fields they change.
func (h *Handler) UpdateSettings(ec echo.Context) error {
	patch, err := io.ReadAll(ec.Request().Body)
	if err != nil {
		return err
	}

	lab, err := h.settings.Update(ec.Request().Context(), patch, actor(ec))
	if err != nil {
		return err
	}

	return ec.JSON(http.StatusOK, lab)
}
