package middleware

import (
	"context"
	"net/http"
	"strconv"

	"github.com/angelmondragon/shopcart-backend/api/responses"
	"github.com/angelmondragon/shopcart-backend/pkg/config"
	pkgerrors "github.com/angelmondragon/shopcart-backend/pkg/errors"
	"github.com/angelmondragon/shopcart-backend/pkg/logger"
	pkgredis "github.com/angelmondragon/shopcart-backend/pkg/redis"
)

// CartRateLimit caps cart mutations per authenticated user in a fixed window.
// Reads are never throttled.
func CartRateLimit(cfg config.CartRateLimitConfig, limiter pkgredis.RateLimiter, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if limiter == nil || cfg.MutationWindow <= 0 || cfg.MutationLimit <= 0 {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			userID := UserIDFromContext(r.Context())
			if !isMutation(r.Method) || userID == "" {
				next.ServeHTTP(w, r)
				return
			}

			ctx := r.Context()
			allowed, count, err := limiter.FixedWindowAllow(ctx, "cart:"+userID, int64(cfg.MutationLimit), cfg.MutationWindow)
			if err != nil {
				responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "rate limiting"))
				return
			}
			if !allowed {
				respondRateLimited(ctx, logg, w, cfg, count)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func isMutation(method string) bool {
	switch method {
	case http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete:
		return true
	}
	return false
}

func respondRateLimited(ctx context.Context, logg *logger.Logger, w http.ResponseWriter, cfg config.CartRateLimitConfig, count int64) {
	if logg != nil {
		logCtx := logg.WithFields(ctx, map[string]any{
			"attempts":       count,
			"limit":          cfg.MutationLimit,
			"window_seconds": int(cfg.MutationWindow.Seconds()),
		})
		logg.Warn(logCtx, "cart.rate_limit.blocked")
	}
	w.Header().Set("Retry-After", strconv.Itoa(int(cfg.MutationWindow.Seconds())))
	responses.WriteError(ctx, nil, w, pkgerrors.New(pkgerrors.CodeRateLimit, "too many cart updates, slow down"))
}
