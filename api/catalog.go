package api

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/pathline/lis/departments"
	"github.com/pathline/lis/labtests"
)

func (h *Handler) ListDepartments(ec echo.Context) error {
	page, err := pagination(ec)
	if err != nil {
		return err
	}

	list, err := h.departments.List(ec.Request().Context(), page)
	if err != nil {
		return err
	}

	return ec.JSON(http.StatusOK, list)
}

func (h *Handler) CreateDepartment(ec echo.Context) error {
	department := departments.Department{}
	if err := ec.Bind(&department); err != nil {
		return err
	}

	result, err := h.departments.Create(ec.Request().Context(), &department)
	if err != nil {
		return err
	}

	return ec.JSON(http.StatusCreated, result)
}

func (h *Handler) GetDepartment(ec echo.Context) error {
	result, err := h.departments.Get(ec.Request().Context(), ec.Param("id"))
	if err != nil {
		return err
	}

	return ec.JSON(http.StatusOK, result)
}

func (h *Handler) UpdateDepartment(ec echo.Context) error {
	update := departments.DepartmentUpdate{}
	if err := ec.Bind(&update); err != nil {
		return err
	}

	result, err := h.departments.Update(ec.Request().Context(), ec.Param("id"), &update)
	if err != nil {
		return err
	}

	return ec.JSON(http.StatusOK, result)
}

func (h *Handler) DeleteDepartment(ec echo.Context) error {
	if err := h.departments.Archive(ec.Request().Context(), ec.Param("id")); err != nil {
		return err
	}

	return ec.JSON(http.StatusOK, message{Message: "Department deleted"})
}

func (h *Handler) ListTests(ec echo.Context) error {
	page, err := pagination(ec)
	if err != nil {
		return err
	}

	filter := labtests.Filter{
		DepartmentId: queryParam(ec, "department"),
		Search:       queryParam(ec, "search"),
	}
	list, err := h.tests.List(ec.Request().Context(), filter, page)
	if err != nil {
		return err
	}

	return ec.JSON(http.StatusOK, list)
}

func (h *Handler) CreateTest(ec echo.Context) error {
	test := labtests.Test{}
	if err := ec.Bind(&test); err != nil {
		return err
	}

	result, err := h.tests.Create(ec.Request().Context(), &test)
	if err != nil {
		return err
	}

	return ec.JSON(http.StatusCreated, result)
}

func (h *Handler) GetTest(ec echo.Context) error {
	result, err := h.tests.Get(ec.Request().Context(), ec.Param("id"))
	if err != nil {
		return err
	}

	return ec.JSON(http.StatusOK, result)
}

func (h *Handler) UpdateTest(ec echo.Context) error {
	update := labtests.TestUpdate{}
	if err := ec.Bind(&update); err != nil {
		return err
	}

	result, err := h.tests.Update(ec.Request().Context(), ec.Param("id"), &update)
	if err != nil {
		return err
	}

	return ec.JSON(http.StatusOK, result)
}

func (h *Handler) DeleteTest(ec echo.Context) error {
	if err := h.tests.Archive(ec.Request().Context(), ec.Param("id")); err != nil {
		return err
	}

	return ec.JSON(http.StatusOK, message{Message: "Test deleted"})
}
