package api

import (
	"context"
	"fmt"
	"net/http"

	"github.com/brpaz/echozap"
	"github.com/getkin/kin-openapi/openapi3filter"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	oapiMiddleware "github.com/oapi-codegen/echo-middleware"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/fx"
	"go.uber.org/zap"

	analyticsRepository "github.com/pathline/lis/analytics/repository"
	analyticsService "github.com/pathline/lis/analytics/service"
	"github.com/pathline/lis/auth"
	"github.com/pathline/lis/authz"
	"github.com/pathline/lis/billing"
	billingRepository "github.com/pathline/lis/billing/repository"
	billingService "github.com/pathline/lis/billing/service"
	"github.com/pathline/lis/codes"
	"github.com/pathline/lis/config"
	"github.com/pathline/lis/daterange"
	"github.com/pathline/lis/deletions"
	departmentsRepository "github.com/pathline/lis/departments/repository"
	"github.com/pathline/lis/errors"
	labtestsRepository "github.com/pathline/lis/labtests/repository"
	"github.com/pathline/lis/logger"
	"github.com/pathline/lis/metrics"
	"github.com/pathline/lis/outbox"
	"github.com/pathline/lis/patients"
	patientsRepository "github.com/pathline/lis/patients/repository"
	patientsService "github.com/pathline/lis/patients/service"
	"github.com/pathline/lis/render"
	"github.com/pathline/lis/results"
	resultsRepository "github.com/pathline/lis/results/repository"
	resultsService "github.com/pathline/lis/results/service"
	"github.com/pathline/lis/samples"
	samplesRepository "github.com/pathline/lis/samples/repository"
	samplesService "github.com/pathline/lis/samples/service"
	settingsRepository "github.com/pathline/lis/settings/repository"
	settingsService "github.com/pathline/lis/settings/service"
	"github.com/pathline/lis/store"
	usersRepository "github.com/pathline/lis/users/repository"
)

func Start(e *echo.Echo, cfg *config.Config, logger *zap.SugaredLogger, lifecycle fx.Lifecycle) {
	lifecycle.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			address := fmt.Sprintf(":%d", cfg.HttpPort)
			go func() {
				if err := e.Start(address); err != nil && err != http.ErrServerClosed {
					logger.Errorw("http server stopped", "error", err)
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			return e.Shutdown(ctx)
		},
	})
}

func SetReady(healthCheck *HealthCheck, db *mongo.Database, lifecycle fx.Lifecycle) {
	lifecycle.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			if err := db.Client().Ping(ctx, nil); err != nil {
				return err
			}

			// Hooks run in dependency order, so every repository has created its indexes by now
			healthCheck.SetReady(true)
			return nil
		},
	})
}

type ServerParams struct {
	fx.In

	Handler       *Handler
	HealthCheck   *HealthCheck
	Authorizer    authz.RequestAuthorizer
	Authenticator auth.Authenticator
	Metrics       *metrics.Collector
	Logger        *zap.Logger
	Sugar         *zap.SugaredLogger
}

func NewServer(p ServerParams) (*echo.Echo, error) {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	swagger, err := GetSwagger()
	if err != nil {
		return nil, err
	}

	// Do not validate servers in the open api spec
	swagger.Servers = nil

	// Skip auth, validation and logging for readiness probe and metrics routes
	probes := RouteSkipper("/ready", "/metrics")
	authMiddleware := auth.NewAuthMiddleware(p.Authenticator, auth.AuthMiddlewareOpts{
		Skipper: RouteSkipper("/ready", "/metrics", "/api/auth/register", "/api/auth/login"),
	})
	requestValidator := oapiMiddleware.OapiRequestValidatorWithOptions(swagger, &oapiMiddleware.Options{
		Options: openapi3filter.Options{
			AuthenticationFunc: p.Authorizer.Authorize,
		},
		Skipper: probes,
	})
	accessLog := echozap.ZapLogger(p.Logger)

	e.Use(middleware.Recover())
	e.Use(middleware.RequestIDWithConfig(middleware.RequestIDConfig{
		Generator: uuid.NewString,
	}))
	e.Use(func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if probes(c) {
				return next(c)
			}
			return accessLog(next)(c)
		}
	})
	e.Use(p.Metrics.Middleware())
	e.Use(authMiddleware)
	e.Use(requestValidator)

	e.HTTPErrorHandler = errors.NewHTTPErrorHandler(p.Sugar)

	e.GET("/ready", p.HealthCheck.Ready)
	e.GET("/metrics", p.Metrics.Handler())
	RegisterHandlers(e, p.Handler)

	return e, nil
}

// RegisterHandlers mounts every operation of the openapi document.
func RegisterHandlers(e *echo.Echo, h *Handler) {
	a := e.Group("/api")

	a.POST("/auth/register", h.Register)
	a.POST("/auth/login", h.Login)
	a.GET("/auth/me", h.Me)

	a.GET("/departments", h.ListDepartments)
	a.POST("/departments", h.CreateDepartment)
	a.GET("/departments/:id", h.GetDepartment)
	a.PUT("/departments/:id", h.UpdateDepartment)
	a.DELETE("/departments/:id", h.DeleteDepartment)

	a.GET("/tests", h.ListTests)
	a.POST("/tests", h.CreateTest)
	a.GET("/tests/:id", h.GetTest)
	a.PUT("/tests/:id", h.UpdateTest)
	a.DELETE("/tests/:id", h.DeleteTest)

	a.GET("/patients", h.ListPatients)
	a.POST("/patients", h.CreatePatient)
	a.GET("/patients/:id", h.GetPatient)
	a.PUT("/patients/:id", h.UpdatePatient)
	a.DELETE("/patients/:id", h.DeletePatient)

	a.POST("/billing/create", h.CreateInvoice)
	a.GET("/billing", h.ListInvoices)
	a.GET("/billing/stats", h.InvoiceStats)
	a.GET("/billing/daily-stats", h.DailyInvoiceStats)
	a.GET("/billing/print/:id", h.PrintInvoice)
	a.GET("/billing/:id", h.GetInvoice)
	a.PUT("/billing/:id/payment", h.RecordPayment)
	a.DELETE("/billing/:id", h.DeleteInvoice)

	a.GET("/samples", h.ListSamples)
	a.GET("/samples/:id", h.GetSample)
	a.PUT("/samples/:id", h.UpdateSample)
	a.PUT("/samples/:id/status", h.UpdateSampleStatus)
	a.DELETE("/samples/:id", h.DeleteSample)

	a.GET("/reports/pending", h.PendingReports)
	a.POST("/reports/submit", h.SubmitResults)
	a.PUT("/reports/approve/:sampleId", h.ApproveResults)
	a.GET("/reports/print/:sampleId", h.PrintReport)

	a.GET("/settings", h.GetSettings)
	a.PUT("/settings", h.UpdateSettings)

	a.GET("/analytics", h.Dashboard)
	a.GET("/analytics/export", h.ExportAnalytics)
}

// Repositories provides the storage layer shared by the server and the command line tools.
func Repositories() []fx.Option {
	return []fx.Option{
		fx.Provide(
			logger.NewProductionLogger,
			logger.Suggar,
			config.NewConfig,
			store.NewConfig,
			store.NewClientWithRetry,
			store.NewDatabase,
			metrics.NewCollector,
			daterange.NewResolver,
			codes.NewGenerator,
			outbox.NewRepository,
			deletions.NewRepositoryFactory[patients.Patient]("patient", []string{"_id"}),
			deletions.NewRepositoryFactory[billing.Invoice]("invoice", []string{"_id"}),
			deletions.NewRepositoryFactory[samples.Sample](samples.DeletionsType, []string{"_id"}),
			deletions.NewRepositoryFactory[results.Result]("result", []string{"_id"}),
			departmentsRepository.NewRepository,
			labtestsRepository.NewRepository,
			patientsRepository.NewRepository,
			usersRepository.NewRepository,
			samplesRepository.NewRepository,
			resultsRepository.NewRepository,
			billingRepository.NewRepository,
			settingsRepository.NewRepository,
			analyticsRepository.NewRepository,
		),
	}
}

// Services provides the domain services on top of Repositories.
func Services() []fx.Option {
	return []fx.Option{
		fx.Provide(
			samples.NewWorkflow,
			patientsService.NewService,
			samplesService.NewService,
			resultsService.NewService,
			billingService.NewService,
			settingsService.NewService,
			analyticsService.NewService,
			auth.NewTokenManager,
			auth.NewService,
		),
	}
}

func Dependencies() []fx.Option {
	deps := append(Repositories(), Services()...)
	return append(deps,
		fx.Provide(
			auth.NewAuthenticator,
			authz.NewRequestAuthorizer,
			render.NewRenderer,
			NewHealthCheck,
			NewHandler,
			NewServer,
		),
		fx.Invoke(SetReady),
	)
}

func MainLoop() {
	fx.New(append(Dependencies(), fx.Invoke(Start))...).Run()
}
