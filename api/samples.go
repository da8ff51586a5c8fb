package api

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/pathline/lis/daterange"
	"github.com/pathline/lis/samples"
)

type statusChange struct {
	Status  samples.Status `json:"status"`
	Remarks *string        `json:"remarks,omitempty"`
}

func (h *Handler) ListSamples(ec echo.Context) error {
	page, err := pagination(ec)
	if err != nil {
		return err
	}
	timeRange, err := h.timeRange(ec, daterange.AllTime)
	if err != nil {
		return err
	}

	filter := samples.Filter{
		TimeRange: timeRange,
		Search:    queryParam(ec, "search"),
	}
	if status := ec.QueryParam("status"); status != "" {
		for _, s := range strings.Split(status, ",") {
			if s = strings.TrimSpace(s); s != "" {
				filter.Statuses = append(filter.Statuses, samples.Status(s))
			}
		}
	}
	if filter.PatientId, err = patientParam(ec); err != nil {
		return err
	}

	list, err := h.samples.List(ec.Request().Context(), filter, page)
	if err != nil {
		return err
	}

	return ec.JSON(http.StatusOK, list)
}

func (h *Handler) GetSample(ec echo.Context) error {
	sample, err := h.samples.Get(ec.Request().Context(), ec.Param("id"))
	if err != nil {
		return err
	}

	return ec.JSON(http.StatusOK, sample)
}

func (h *Handler) UpdateSample(ec echo.Context) error {
	update := samples.SampleUpdate{}
	if err := ec.Bind(&update); err != nil {
		return err
	}

	sample, err := h.samples.Update(ec.Request().Context(), ec.Param("id"), update)
	if err != nil {
		return err
	}

	return ec.JSON(http.StatusOK, sample)
}

func (h *Handler) UpdateSampleStatus(ec echo.Context) error {
	change := statusChange{}
	if err := ec.Bind(&change); err != nil {
		return err
	}

	sample, err := h.samples.UpdateStatus(ec.Request().Context(), ec.Param("id"), samples.StatusChange{
		Status:  change.Status,
		Actor:   actor(ec),
		Remarks: change.Remarks,
	})
	if err != nil {
		return err
	}

	return ec.JSON(http.StatusOK, sample)
}

func (h *Handler) DeleteSample(ec echo.Context) error {
	if err := h.samples.Delete(ec.Request().Context(), ec.Param("id"), deletionMetadata(ec)); err != nil {
		return err
	}

	return ec.JSON(http.StatusOK, message{Message: "Sample and associated results deleted"})
}
