package api

import (
	"bytes"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/pathline/lis/results"
)

type submission struct {
	SampleId string                `json:"sampleId"`
	Results  []results.ResultInput `json:"results"`
}

func (h *Handler) PendingReports(ec echo.Context) error {
	page, err := pagination(ec)
	if err != nil {
		return err
	}

	pending, err := h.results.Pending(ec.Request().Context(), page)
	if err != nil {
		return err
	}

	return ec.JSON(http.StatusOK, pending)
}

func (h *Handler) SubmitResults(ec echo.Context) error {
	body := submission{}
	if err := ec.Bind(&body); err != nil {
		return err
	}

	stored, err := h.results.Submit(ec.Request().Context(), body.SampleId, body.Results, actor(ec))
	if err != nil {
		return err
	}

	return ec.JSON(http.StatusOK, stored)
}

func (h *Handler) ApproveResults(ec echo.Context) error {
	approval, err := h.results.Approve(ec.Request().Context(), ec.Param("sampleId"), actor(ec))
	if err != nil {
		return err
	}

	return ec.JSON(http.StatusOK, approval)
}

func (h *Handler) PrintReport(ec echo.Context) error {
	report, err := h.results.Report(ec.Request().Context(), ec.Param("sampleId"))
	if err != nil {
		return err
	}

	var buf bytes.Buffer
	if err := h.renderer.Report(&buf, report); err != nil {
		return fmt.Errorf("unable to render report: %w", err)
	}

	return ec.HTMLBlob(http.StatusOK, buf.Bytes())
}
