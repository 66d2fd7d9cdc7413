package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/angelmondragon/shopcart-backend/api/controllers"
	cartcontrollers "github.com/angelmondragon/shopcart-backend/api/controllers/cart"
	"github.com/angelmondragon/shopcart-backend/api/middleware"
	"github.com/angelmondragon/shopcart-backend/internal/cart"
	"github.com/angelmondragon/shopcart-backend/pkg/auth/session"
	"github.com/angelmondragon/shopcart-backend/pkg/config"
	"github.com/angelmondragon/shopcart-backend/pkg/logger"
	"github.com/angelmondragon/shopcart-backend/pkg/metrics"
	pkgredis "github.com/angelmondragon/shopcart-backend/pkg/redis"
)

// Params carries everything the HTTP surface depends on. Redis, the session
// checker and the metrics registry are optional.
type Params struct {
	Config      *config.Config
	Logger      *logger.Logger
	DB          controllers.Pinger
	Redis       *pkgredis.Client
	Sessions    session.AccessSessionChecker
	CartService cart.Service
	Registry    *prometheus.Registry
	HTTPMetrics *metrics.HTTPMetrics
}

func NewRouter(p Params) http.Handler {
	cfg := p.Config
	logg := p.Logger

	// a nil *Client must not leak into the interfaces as a typed nil
	var (
		idempotencyStore pkgredis.IdempotencyStore
		rateLimiter      pkgredis.RateLimiter
	)
	checks := map[string]controllers.Pinger{}
	if p.DB != nil {
		checks["database"] = p.DB
	}
	if p.Redis != nil {
		idempotencyStore = p.Redis
		rateLimiter = p.Redis
		checks["redis"] = p.Redis
	}

	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Tracing(nil),
		middleware.Logging(logg),
		middleware.Metrics(p.HTTPMetrics),
		middleware.CORS(cfg.CORS),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, checks))
	})

	if p.Registry != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(p.Registry, promhttp.HandlerOpts{}))
	}

	r.Route("/api/v1/cart", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, p.Sessions, logg))
		r.Use(middleware.CartRateLimit(cfg.CartLimits, rateLimiter, logg))

		r.Get("/", cartcontrollers.CartFetch(p.CartService, logg))
		r.With(middleware.Idempotency(idempotencyStore, cfg.Idempotency, logg)).
			Post("/", cartcontrollers.CartAdd(p.CartService, logg))
		r.Delete("/", cartcontrollers.CartClear(p.CartService, logg))
		r.Get("/count", cartcontrollers.CartCount(p.CartService, logg))
		r.Patch("/{lineId}", cartcontrollers.CartUpdateItem(p.CartService, logg))
		r.Delete("/{lineId}", cartcontrollers.CartRemoveItem(p.CartService, logg))
	})

	return r
}
