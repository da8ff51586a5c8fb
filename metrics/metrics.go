package metrics

import (
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "lis"

type Collector struct {
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec

	InvoicesCreated   prometheus.Counter
	AmountBilled      prometheus.Counter
	PaymentsRecorded  *prometheus.CounterVec
	SampleTransitions *prometheus.CounterVec
	ResultsSubmitted  prometheus.Counter
	ResultsApproved   prometheus.Counter

	gatherer prometheus.Gatherer
}

// NewCollector registers the collectors with the default registry.
func NewCollector() *Collector {
	return NewCollectorWithRegistry(prometheus.DefaultRegisterer, prometheus.DefaultGatherer)
}

func NewCollectorWithRegistry(reg prometheus.Registerer, gatherer prometheus.Gatherer) *Collector {
	factory := promauto.With(reg)
	return &Collector{
		RequestsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests by method, route and status code.",
		}, []string{"method", "route", "status"}),

		RequestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request latency distribution.",
			Buckets:   []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0},
		}, []string{"method", "route"}),

		InvoicesCreated: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "billing",
			Name:      "invoices_created_total",
			Help:      "Total number of invoices created.",
		}),

		AmountBilled: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "billing",
			Name:      "amount_billed_total",
			Help:      "Sum of final amounts of created invoices.",
		}),

		PaymentsRecorded: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "billing",
			Name:      "payments_recorded_total",
			Help:      "Payments recorded against existing invoices by mode.",
		}, []string{"mode"}),

		SampleTransitions: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "samples",
			Name:      "transitions_total",
			Help:      "Sample status transitions.",
		}, []string{"from", "to"}),

		ResultsSubmitted: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "results",
			Name:      "submitted_total",
			Help:      "Test results entered or updated.",
		}),

		ResultsApproved: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "results",
			Name:      "approved_total",
			Help:      "Test results approved.",
		}),

		gatherer: gatherer,
	}
}

// Middleware records request counts and latency keyed by the matched route.
func (c *Collector) Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			start := time.Now()
			err := next(ctx)
			if err != nil {
				ctx.Error(err)
			}

			route := ctx.Path()
			if route == "" {
				route = "unmatched"
			}
			method := ctx.Request().Method
			status := strconv.Itoa(ctx.Response().Status)

			c.RequestsTotal.WithLabelValues(method, route, status).Inc()
			c.RequestDuration.WithLabelValues(method, route).Observe(time.Since(start).Seconds())
			return nil
		}
	}
}

func (c *Collector) Handler() echo.HandlerFunc {
	return echo.WrapHandler(promhttp.HandlerFor(c.gatherer, promhttp.HandlerOpts{}))
}
