package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/utafrali/pos-register/internal/service"
	"github.com/utafrali/pos-register/pkg/health"
	"github.com/utafrali/pos-register/pkg/middleware"
)

const serviceName = "pos-register"

// RouterConfig carries the HTTP concerns configured per deployment.
type RouterConfig struct {
	Validator      middleware.TokenValidator
	CORS           middleware.CORSConfig
	RequestTimeout time.Duration
	// DiscountLimit throttles PUT /discount per terminal. Zero PerMinute
	// disables it.
	DiscountLimit middleware.RateLimitConfig
}

// NewRouter creates a chi router with all register routes registered.
func NewRouter(
	registerService *service.RegisterService,
	healthHandler *health.Handler,
	cfg RouterConfig,
	logger *slog.Logger,
) http.Handler {
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 30 * time.Second
	}

	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.CORS(cfg.CORS))
	r.Use(middleware.Recovery(logger))
	r.Use(chimw.Compress(5))
	r.Use(chimw.Timeout(cfg.RequestTimeout))
	r.Use(middleware.RequestLogging(logger))
	r.Use(middleware.PrometheusMetrics(serviceName))
	r.Use(middleware.Tracing(serviceName))
	r.Use(middleware.RequestLogger(logger))

	// Health check endpoints
	r.Get("/health/live", healthHandler.LivenessHandler())
	r.Get("/health/ready", healthHandler.ReadinessHandler())
	r.Handle("/metrics", promhttp.Handler())

	h := NewRegisterHandler(registerService, logger)

	r.Route("/api/v1/register", func(r chi.Router) {
		r.Use(ContentTypeJSON)
		r.Use(middleware.Auth(cfg.Validator))
		r.Use(middleware.Terminal)
		r.Use(ForwardBearer)

		r.Get("/", h.GetRegister)
		r.Delete("/", h.ClearCart)

		r.Post("/items", h.AddItem)
		r.Put("/items/{productId}", h.UpdateQuantity)
		r.Delete("/items/{productId}", h.RemoveItem)
		r.Post("/items/{productId}/void", h.VoidItem)
		r.Post("/void", h.VoidOrder)

		if cfg.DiscountLimit.PerMinute > 0 {
			r.With(middleware.RateLimit(cfg.DiscountLimit, middleware.TerminalKey, logger)).
				Put("/discount", h.ApplyDiscount)
		} else {
			r.Put("/discount", h.ApplyDiscount)
		}
		r.Delete("/discount", h.RemoveDiscount)
		r.Put("/customer", h.SetCustomer)

		r.Post("/hold", h.HoldOrder)
		r.Get("/held", h.ListHeldOrders)
		r.Post("/held/{heldId}/retrieve", h.RetrieveHeldOrder)
		r.Delete("/held/{heldId}", h.DeleteHeldOrder)

		r.Post("/checkout", h.Checkout)
		r.Post("/tax-rate/refresh", h.RefreshTaxRate)

		r.With(middleware.RequireRole("manager", "admin")).Get("/audit", h.ListAudit)
	})

	return r
}
