package api

import (
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/pathline/lis/daterange"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

func (h *Handler) Dashboard(ec echo.Context) error {
	timeRange, err := h.timeRange(ec, daterange.Last7Days)
	if err != nil {
		return err
	}

	dashboard, err := h.analytics.Dashboard(ec.Request().Context(), timeRange)
	if err != nil {
		return err
	}

	return ec.JSON(http.StatusOK, dashboard)
}

func (h *Handler) ExportAnalytics(ec echo.Context) error {
	timeRange, err := h.timeRange(ec, daterange.Last7Days)
	if err != nil {
		return err
	}

	file, err := h.analytics.Export(ec.Request().Context(), timeRange)
	if err != nil {
		return err
	}

	filename := "analytics.xlsx"
	if !timeRange.IsZero() {
		filename = fmt.Sprintf("analytics-%s-%s.xlsx",
			timeRange.From.In(h.resolver.Location()).Format(daterange.DateLayout),
			timeRange.To.In(h.resolver.Location()).Format(daterange.DateLayout),
		)
	}

	res := ec.Response()
	res.Header().Set(echo.HeaderContentType, xlsxContentType)
	res.Header().Set(echo.HeaderContentDisposition, fmt.Sprintf("attachment; filename=%q", filename))
	res.WriteHeader(http.StatusOK)
	return file.Write(res)
}
