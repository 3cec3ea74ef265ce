package server

import (
	"context"
	"errors"
	"net"
	"net/http"

	"github.com/gin-gonic/gin"
	auditdomain "github.com/railzwaylabs/agencyops/internal/audit/domain"
	cascadedomain "github.com/railzwaylabs/agencyops/internal/cascade/domain"
	catalogdomain "github.com/railzwaylabs/agencyops/internal/catalog/domain"
	"github.com/railzwaylabs/agencyops/internal/config"
	contractdomain "github.com/railzwaylabs/agencyops/internal/contract/domain"
	installmentdomain "github.com/railzwaylabs/agencyops/internal/installment/domain"
	subscriptiondomain "github.com/railzwaylabs/agencyops/internal/subscription/domain"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// CapabilityResolver maps the caller's role to what it may change.
type CapabilityResolver interface {
	Capabilities(role string) subscriptiondomain.Capabilities
}

type Params struct {
	fx.In

	Cfg             config.Config
	Log             *zap.Logger
	DB              *gorm.DB
	Catalog         catalogdomain.Catalog
	ContractSvc     contractdomain.Service
	SubscriptionSvc subscriptiondomain.Service
	InstallmentSvc  installmentdomain.Service
	CascadeSvc      cascadedomain.Service
	AuditSvc        auditdomain.Service `optional:"true"`
	Authorizer      CapabilityResolver
	Tracer          trace.TracerProvider `optional:"true"`
}

type Server struct {
	cfg             config.Config
	log             *zap.Logger
	db              *gorm.DB
	catalog         catalogdomain.Catalog
	contractSvc     contractdomain.Service
	subscriptionSvc subscriptiondomain.Service
	installmentSvc  installmentdomain.Service
	cascadeSvc      cascadedomain.Service
	auditSvc        auditdomain.Service
	authorizer      CapabilityResolver
	tracer          trace.Tracer

	engine *gin.Engine
}

func NewServer(p Params) *Server {
	s := &Server{
		cfg:             p.Cfg,
		log:             p.Log.Named("http"),
		db:              p.DB,
		catalog:         p.Catalog,
		contractSvc:     p.ContractSvc,
		subscriptionSvc: p.SubscriptionSvc,
		installmentSvc:  p.InstallmentSvc,
		cascadeSvc:      p.CascadeSvc,
		auditSvc:        p.AuditSvc,
		authorizer:      p.Authorizer,
	}
	if p.Tracer != nil {
		s.tracer = p.Tracer.Tracer("github.com/railzwaylabs/agencyops/internal/server")
	}

	if p.Cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	s.engine = gin.New()
	s.engine.Use(gin.Recovery())
	s.registerRoutes()
	return s
}

func (s *Server) Handler() http.Handler {
	return s.engine
}

func (s *Server) registerRoutes() {
	s.engine.GET("/healthz", s.Health)
	s.engine.GET("/metrics", gin.WrapH(metricsHandler()))

	api := s.engine.Group("/api")
	api.Use(
		s.RequestID(),
		s.RequestLogger(),
		s.Tracing(),
		s.OrgContext(),
		s.SimulatedDate(),
	)

	api.GET("/catalog/plans", s.ListPlans)
	api.GET("/catalog/services", s.ListServices)

	api.GET("/clients/:client_id/contracts", s.ListClientContracts)
	api.GET("/clients/:client_id/subscriptions", s.ListClientSubscriptions)
	api.GET("/clients/:client_id/installments", s.ListClientInstallments)

	api.POST("/contracts", s.CreateContract)
	api.GET("/contracts/:id", s.GetContract)
	api.PATCH("/contracts/:id", s.UpdateContract)
	api.DELETE("/contracts/:id", s.DeleteContract)
	api.POST("/contracts/:id/cancel", s.CancelContract)
	api.GET("/contracts/:id/subscriptions", s.ListContractSubscriptions)

	api.GET("/subscriptions/suggest-dates", s.SuggestSubscriptionDates)
	api.POST("/subscriptions", s.CreateSubscription)
	api.GET("/subscriptions/:id", s.GetSubscription)
	api.PATCH("/subscriptions/:id", s.UpdateSubscription)
	api.DELETE("/subscriptions/:id", s.DeleteSubscription)
	api.POST("/subscriptions/:id/cancel", s.CancelSubscription)
	api.POST("/subscriptions/:id/propagate-end-date", s.PropagateEndDate)
	api.GET("/subscriptions/:id/installments", s.ListSubscriptionInstallments)

	api.POST("/cascades/plan", s.PlanCascade)
	api.POST("/cascades/execute", s.ExecuteCascade)

	api.GET("/audit/export", s.ExportAuditLogs)
	api.GET("/audit/:target_type/:target_id", s.ListAuditLogs)
}

// RegisterHTTP serves the API for the lifetime of the app.
func RegisterHTTP(lc fx.Lifecycle, s *Server, cfg config.Config, log *zap.Logger) {
	srv := &http.Server{
		Addr:    cfg.HTTP.Addr,
		Handler: s.Handler(),
	}
	logger := log.Named("http")

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			ln, err := net.Listen("tcp", srv.Addr)
			if err != nil {
				return err
			}
			logger.Info("http server listening", zap.String("addr", ln.Addr().String()))
			go func() {
				if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
					logger.Error("http server stopped", zap.Error(err))
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			ctx, cancel := context.WithTimeout(ctx, cfg.HTTP.ShutdownTimeout)
			defer cancel()
			return srv.Shutdown(ctx)
		},
	})
}
