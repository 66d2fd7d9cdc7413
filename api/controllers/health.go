package controllers

import (
	"context"
	"net/http"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/angelmondragon/shopcart-backend/api/responses"
	"github.com/angelmondragon/shopcart-backend/pkg/config"
	pkgerrors "github.com/angelmondragon/shopcart-backend/pkg/errors"
	"github.com/angelmondragon/shopcart-backend/pkg/logger"
)

const (
	envHeader         = "X-Shopcart-Env"
	readinessTimeout  = 2 * time.Second
	readinessStatusOK = "ok"
)

// Pinger is any dependency that can report reachability.
type Pinger interface {
	Ping(context.Context) error
}

func HealthLive(cfg *config.Config) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set(envHeader, cfg.App.Env)
		responses.WriteSuccess(w, map[string]string{"status": "live"})
	}
}

// HealthReady pings every dependency concurrently and answers 503 when any fails.
// Nil entries are skipped so optional dependencies can be left out.
func HealthReady(cfg *config.Config, logg *logger.Logger, checks map[string]Pinger) http.HandlerFunc {
	names := make([]string, 0, len(checks))
	for name, p := range checks {
		if p != nil {
			names = append(names, name)
		}
	}
	sort.Strings(names)

	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set(envHeader, cfg.App.Env)

		ctx, cancel := context.WithTimeout(r.Context(), readinessTimeout)
		defer cancel()

		var (
			mu      sync.Mutex
			results = make(map[string]string, len(names))
			failed  bool
		)
		var g errgroup.Group
		for _, name := range names {
			pinger := checks[name]
			g.Go(func() error {
				status := readinessStatusOK
				if err := pinger.Ping(ctx); err != nil {
					status = err.Error()
					if logg != nil {
						logg.Error(logg.WithField(ctx, "dependency", name), "health.ready.failed", err)
					}
				}
				mu.Lock()
				defer mu.Unlock()
				results[name] = status
				if status != readinessStatusOK {
					failed = true
				}
				return nil
			})
		}
		_ = g.Wait()

		if failed {
			responses.WriteError(r.Context(), nil, w, pkgerrors.New(pkgerrors.CodeDependency, "dependency unavailable").WithDetails(results))
			return
		}
		responses.WriteSuccess(w, map[string]any{"status": "ready", "checks": results})
	}
}
