package metrics_test

import (
	"net/http"
	"net/http/httptest"

	"github.com/labstack/echo/v4"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/pathline/lis/metrics"
)

var _ = Describe("Collector", func() {
	var collector *metrics.Collector
	var e *echo.Echo

	BeforeEach(func() {
		registry := prometheus.NewRegistry()
		collector = metrics.NewCollectorWithRegistry(registry, registry)

		e = echo.New()
		e.Use(collector.Middleware())
		e.GET("/api/samples/:id", func(c echo.Context) error {
			return c.NoContent(http.StatusNoContent)
		})
		e.GET("/api/broken", func(c echo.Context) error {
			return echo.NewHTTPError(http.StatusBadRequest, "broken")
		})
		e.GET("/metrics", collector.Handler())
	})

	It("counts requests by route template", func() {
		for _, id := range []string{"a", "b"} {
			rec := httptest.NewRecorder()
			e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/samples/"+id, nil))
			Expect(rec.Code).To(Equal(http.StatusNoContent))
		}

		count := testutil.ToFloat64(collector.RequestsTotal.WithLabelValues(http.MethodGet, "/api/samples/:id", "204"))
		Expect(count).To(Equal(2.0))
	})

	It("records the status written by the error handler", func() {
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/broken", nil))
		Expect(rec.Code).To(Equal(http.StatusBadRequest))

		count := testutil.ToFloat64(collector.RequestsTotal.WithLabelValues(http.MethodGet, "/api/broken", "400"))
		Expect(count).To(Equal(1.0))
	})

	It("exposes the collectors", func() {
		collector.InvoicesCreated.Inc()

		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
		Expect(rec.Code).To(Equal(http.StatusOK))
		Expect(rec.Body.String()).To(ContainSubstring("lis_billing_invoices_created_total 1"))
	})
})
