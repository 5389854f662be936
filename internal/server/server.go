package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/smallbiznis/samda/internal/audit"
	"github.com/smallbiznis/samda/internal/config"
	"github.com/smallbiznis/samda/internal/customer"
	customerdomain "github.com/smallbiznis/samda/internal/customer/domain"
	"github.com/smallbiznis/samda/internal/invoice"
	invoicedomain "github.com/smallbiznis/samda/internal/invoice/domain"
	"github.com/smallbiznis/samda/internal/observability"
	obslogger "github.com/smallbiznis/samda/internal/observability/logger"
	obsmetrics "github.com/smallbiznis/samda/internal/observability/metrics"
	obstracing "github.com/smallbiznis/samda/internal/observability/tracing"
	"github.com/smallbiznis/samda/internal/payment"
	paymentdomain "github.com/smallbiznis/samda/internal/payment/domain"
	"github.com/smallbiznis/samda/internal/seed"
	"github.com/smallbiznis/samda/internal/sequence"
	"github.com/smallbiznis/samda/internal/tax"
	taxdomain "github.com/smallbiznis/samda/internal/tax/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("http.server",
	fx.Provide(registerGin),
	audit.Module,
	sequence.Module,
	tax.Module,
	customer.Module,
	invoice.Module,
	payment.Module,
	seed.Module,
	fx.Invoke(NewServer),
	fx.Invoke(run),
)

type EngineParams struct {
	fx.In

	ObsCfg  observability.Config
	Log     *zap.Logger
	Metrics *obsmetrics.Metrics `optional:"true"`
}

func NewEngine(p EngineParams) *gin.Engine {
	if !p.ObsCfg.Debug() {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(obslogger.GinMiddleware(p.Log))
	r.Use(obstracing.GinMiddleware())
	r.Use(p.Metrics.GinMiddleware())
	r.Use(ErrorHandlingMiddleware())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return r
}

func registerGin(p EngineParams) *gin.Engine {
	return NewEngine(p)
}

func run(lc fx.Lifecycle, cfg config.Config, r *gin.Engine, log *zap.Logger) {
	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				log.Info("http server listening", zap.String("addr", srv.Addr))
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					log.Fatal("http server stopped", zap.Error(err))
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	})
}

type Server struct {
	engine      *gin.Engine
	customerSvc customerdomain.Service
	taxSvc      taxdomain.Service
	invoiceSvc  invoicedomain.Service
	paymentSvc  paymentdomain.Service
}

type ServerParams struct {
	fx.In

	Gin         *gin.Engine
	CustomerSvc customerdomain.Service
	TaxSvc      taxdomain.Service
	InvoiceSvc  invoicedomain.Service
	PaymentSvc  paymentdomain.Service
}

func NewServer(p ServerParams) *Server {
	svc := &Server{
		engine:      p.Gin,
		customerSvc: p.CustomerSvc,
		taxSvc:      p.TaxSvc,
		invoiceSvc:  p.InvoiceSvc,
		paymentSvc:  p.PaymentSvc,
	}

	svc.registerAPIRoutes()
	svc.registerFallback()

	return svc
}

func (s *Server) Engine() *gin.Engine {
	return s.engine
}

func (s *Server) registerAPIRoutes() {
	api := s.engine.Group("/api")

	api.GET("/dashboard", s.GetDashboard)

	api.POST("/customers", s.CreateCustomer)
	api.GET("/customers", s.ListCustomers)
	api.GET("/customers/:id", s.GetCustomerByID)
	api.DELETE("/customers/:id", s.DeleteCustomer)

	api.POST("/tax-profiles", s.CreateTaxProfile)
	api.GET("/tax-profiles", s.ListTaxProfiles)
	api.GET("/tax-profiles/active", s.GetActiveTaxProfile)
	api.POST("/tax-profiles/:id/deactivate", s.DeactivateTaxProfile)

	api.POST("/invoices", s.CreateInvoice)
	api.GET("/invoices", s.ListInvoices)
	api.GET("/invoices/:id", s.GetInvoiceByID)
	api.PATCH("/invoices/:id", s.UpdateInvoiceDraft)
	api.DELETE("/invoices/:id", s.DeleteInvoice)
	api.PUT("/invoices/:id/lines", s.ReplaceInvoiceLines)
	api.POST("/invoices/:id/recompute", s.RecomputeInvoice)
	api.POST("/invoices/:id/issue", s.IssueInvoice)
	api.POST("/invoices/:id/void", s.VoidInvoice)

	api.POST("/payments", s.RecordPayment)
	api.GET("/payments", s.ListRecentPayments)
	api.GET("/payments/:id", s.GetPaymentByID)
	api.POST("/payments/:id/allocations", s.AllocatePayment)
	api.GET("/payments/:id/allocations", s.ListPaymentAllocations)
	api.POST("/payments/:id/receipt", s.IssueReceipt)

	api.GET("/receipts/:id", s.GetReceipt)
}

func (s *Server) registerFallback() {
	s.engine.NoRoute(func(c *gin.Context) {
		AbortWithError(c, ErrNotFound)
	})
}
