package api

import (
	"bytes"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/pathline/lis/billing"
	"github.com/pathline/lis/daterange"
	"github.com/pathline/lis/errors"
)

func (h *Handler) CreateInvoice(ec echo.Context) error {
	create := billing.CreateInvoice{}
	if err := ec.Bind(&create); err != nil {
		return err
	}
	create.CreatedBy = actor(ec)

	invoice, err := h.billing.Create(ec.Request().Context(), create)
	if err != nil {
		return err
	}

	return ec.JSON(http.StatusCreated, invoice)
}

func (h *Handler) ListInvoices(ec echo.Context) error {
	page, err := pagination(ec)
	if err != nil {
		return err
	}
	timeRange, err := h.timeRange(ec, daterange.AllTime)
	if err != nil {
		return err
	}

	filter := billing.Filter{
		TimeRange: timeRange,
		Search:    queryParam(ec, "search"),
	}
	if status := ec.QueryParam("status"); status != "" {
		s := billing.Status(status)
		filter.Status = &s
	}
	if filter.PatientId, err = patientParam(ec); err != nil {
		return err
	}

	list, err := h.billing.List(ec.Request().Context(), filter, page)
	if err != nil {
		return err
	}

	return ec.JSON(http.StatusOK, list)
}

func (h *Handler) GetInvoice(ec echo.Context) error {
	invoice, err := h.billing.Get(ec.Request().Context(), ec.Param("id"))
	if err != nil {
		return err
	}

	return ec.JSON(http.StatusOK, invoice)
}

func (h *Handler) RecordPayment(ec echo.Context) error {
	payment := billing.Payment{}
	if err := ec.Bind(&payment); err != nil {
		return err
	}
	payment.ReceivedBy = actor(ec)

	invoice, err := h.billing.RecordPayment(ec.Request().Context(), ec.Param("id"), payment)
	if err != nil {
		return err
	}

	return ec.JSON(http.StatusOK, invoice)
}

func (h *Handler) InvoiceStats(ec echo.Context) error {
	timeRange, err := h.timeRange(ec, daterange.AllTime)
	if err != nil {
		return err
	}

	stats, err := h.billing.Stats(ec.Request().Context(), timeRange)
	if err != nil {
		return err
	}

	return ec.JSON(http.StatusOK, stats)
}

func (h *Handler) DailyInvoiceStats(ec echo.Context) error {
	timeRange, err := h.timeRange(ec, daterange.Last7Days)
	if err != nil {
		return err
	}

	stats, err := h.billing.DailyStats(ec.Request().Context(), timeRange)
	if err != nil {
		return err
	}

	return ec.JSON(http.StatusOK, stats)
}

func (h *Handler) PrintInvoice(ec echo.Context) error {
	ctx := ec.Request().Context()
	invoice, err := h.billing.Get(ctx, ec.Param("id"))
	if err != nil {
		return err
	}
	lab, err := h.settings.Get(ctx)
	if err != nil {
		return err
	}

	var buf bytes.Buffer
	if err := h.renderer.Invoice(&buf, lab, invoice); err != nil {
		return fmt.Errorf("unable to render invoice: %w", err)
	}

	return ec.HTMLBlob(http.StatusOK, buf.Bytes())
}

func (h *Handler) DeleteInvoice(ec echo.Context) error {
	if err := h.billing.Delete(ec.Request().Context(), ec.Param("id"), deletionMetadata(ec)); err != nil {
		return err
	}

	return ec.JSON(http.StatusOK, message{Message: "Invoice and associated sample deleted"})
}

func patientParam(ec echo.Context) (*primitive.ObjectID, error) {
	value := ec.QueryParam("patient")
	if value == "" {
		return nil, nil
	}
	id, err := primitive.ObjectIDFromHex(value)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid patient id", errors.BadRequest)
	}
	return &id, nil
}
