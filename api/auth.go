package api

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/pathline/lis/users"
)

type credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (h *Handler) Register(ec echo.Context) error {
	ctx := ec.Request().Context()
	registration := users.Registration{}
	if err := ec.Bind(&registration); err != nil {
		return err
	}

	session, err := h.auth.Register(ctx, registration)
	if err != nil {
		return err
	}

	return ec.JSON(http.StatusCreated, session)
}

func (h *Handler) Login(ec echo.Context) error {
	ctx := ec.Request().Context()
	creds := credentials{}
	if err := ec.Bind(&creds); err != nil {
		return err
	}

	session, err := h.auth.Login(ctx, creds.Email, creds.Password)
	if err != nil {
		return err
	}

	return ec.JSON(http.StatusOK, session)
}

func (h *Handler) Me(ec echo.Context) error {
	user, err := h.auth.Me(ec.Request().Context())
	if err != nil {
		return err
	}

	return ec.JSON(http.StatusOK, user)
}
