package api

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/pathline/lis/daterange"
	"github.com/pathline/lis/patients"
)

func (h *Handler) ListPatients(ec echo.Context) error {
	page, err := pagination(ec)
	if err != nil {
		return err
	}
	timeRange, err := h.timeRange(ec, daterange.AllTime)
	if err != nil {
		return err
	}

	filter := patients.Filter{
		Search:    queryParam(ec, "search"),
		TimeRange: timeRange,
	}
	list, err := h.patients.List(ec.Request().Context(), &filter, page)
	if err != nil {
		return err
	}

	return ec.JSON(http.StatusOK, list)
}

func (h *Handler) CreatePatient(ec echo.Context) error {
	patient := patients.Patient{}
	if err := ec.Bind(&patient); err != nil {
		return err
	}

	result, err := h.patients.Create(ec.Request().Context(), patient)
	if err != nil {
		return err
	}

	return ec.JSON(http.StatusCreated, result)
}

func (h *Handler) GetPatient(ec echo.Context) error {
	result, err := h.patients.Get(ec.Request().Context(), ec.Param("id"))
	if err != nil {
		return err
	}

	return ec.JSON(http.StatusOK, result)
}

func (h *Handler) UpdatePatient(ec echo.Context) error {
	update := patients.PatientUpdate{}
	if err := ec.Bind(&update); err != nil {
		return err
	}

	result, err := h.patients.Update(ec.Request().Context(), ec.Param("id"), update)
	if err != nil {
		return err
	}

	return ec.JSON(http.StatusOK, result)
}

func (h *Handler) DeletePatient(ec echo.Context) error {
	if err := h.patients.Delete(ec.Request().Context(), ec.Param("id"), deletionMetadata(ec)); err != nil {
		return err
	}

	return ec.JSON(http.StatusOK, message{Message: "Patient deleted"})
}
