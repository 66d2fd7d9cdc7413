package middleware

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"

	"github.com/angelmondragon/shopcart-backend/api/responses"
	"github.com/angelmondragon/shopcart-backend/pkg/config"
	pkgerrors "github.com/angelmondragon/shopcart-backend/pkg/errors"
	"github.com/angelmondragon/shopcart-backend/pkg/logger"
	pkgredis "github.com/angelmondragon/shopcart-backend/pkg/redis"
)

const (
	idempotencyHeader       = "Idempotency-Key"
	idempotencyReplayHeader = "Idempotent-Replayed"
	maxIdempotencyKeyLength = 255
	defaultIdempotencyTTL   = 24 * time.Hour
	// pendingTTL bounds how long a crashed request can hold a reservation.
	pendingTTL = time.Minute
)

type idempotencyRule struct {
	method  string
	pattern string
}

// Adding to the cart applies a delta, so a retried POST would double-count.
var idempotencyRules = []idempotencyRule{
	{method: http.MethodPost, pattern: "/api/v1/cart"},
}

type recordState string

const (
	statePending  recordState = "pending"
	stateComplete recordState = "complete"
)

// idempotencyRecord is the value kept under a key: a reservation while the
// first request runs, then the response it produced.
type idempotencyRecord struct {
	State       recordState `json:"state"`
	RequestHash string      `json:"request_hash"`
	Status      int         `json:"status,omitempty"`
	ContentType string      `json:"content_type,omitempty"`
	Body        []byte      `json:"body,omitempty"`
}

// Idempotency makes covered requests safe to retry. The key is reserved with
// SETNX before the handler runs, so concurrent duplicates cannot both apply
// their delta; a duplicate either replays the stored response or is told the
// original is still in flight. Failed attempts release the key.
func Idempotency(store pkgredis.IdempotencyStore, cfg config.IdempotencyConfig, logg *logger.Logger) func(http.Handler) http.Handler {
	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = defaultIdempotencyTTL
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !coveredRoute(r.Method, routePattern(r)) {
				next.ServeHTTP(w, r)
				return
			}

			clientKey, err := idempotencyKeyFrom(r, cfg.RequireKey)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, err)
				return
			}
			if clientKey == "" || store == nil {
				next.ServeHTTP(w, r)
				return
			}

			body, err := io.ReadAll(r.Body)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "read request"))
				return
			}
			r.Body = io.NopCloser(bytes.NewReader(body))

			ctx := r.Context()
			guard := idempotencyGuard{
				store: store,
				key:   store.IdempotencyKey(requestScope(r), clientKey),
				hash:  hashBody(body),
			}

			reserved, err := guard.reserve(ctx)
			if err != nil {
				responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reserve idempotency key"))
				return
			}
			if !reserved {
				if err := guard.replay(ctx, w); err != nil {
					responses.WriteError(ctx, logg, w, err)
				}
				return
			}

			rec := &responseCapture{ResponseWriter: w}
			next.ServeHTTP(rec, r)

			// the outcome is recorded even if the client went away mid-request
			ctx = context.WithoutCancel(ctx)
			if status := rec.statusCode(); status >= http.StatusOK && status < http.StatusMultipleChoices {
				logError(ctx, logg, "persist idempotency record", guard.complete(ctx, rec, ttl))
				return
			}
			logError(ctx, logg, "release idempotency key", guard.release(ctx))
		})
	}
}

func idempotencyKeyFrom(r *http.Request, required bool) (string, error) {
	key := strings.TrimSpace(r.Header.Get(idempotencyHeader))
	switch {
	case key == "" && required:
		return "", pkgerrors.New(pkgerrors.CodeValidation, "Idempotency-Key header required")
	case len(key) > maxIdempotencyKeyLength:
		return "", pkgerrors.New(pkgerrors.CodeValidation, "Idempotency-Key header too long")
	}
	return key, nil
}

// requestScope keeps keys from colliding across users and endpoints.
func requestScope(r *http.Request) string {
	return strings.Join([]string{UserIDFromContext(r.Context()), r.Method, r.URL.Path}, "|")
}

type idempotencyGuard struct {
	store pkgredis.IdempotencyStore
	key   string
	hash  string
}

func (g idempotencyGuard) reserve(ctx context.Context) (bool, error) {
	payload, err := json.Marshal(idempotencyRecord{State: statePending, RequestHash: g.hash})
	if err != nil {
		return false, err
	}
	return g.store.SetNX(ctx, g.key, string(payload), pendingTTL)
}

func (g idempotencyGuard) complete(ctx context.Context, rec *responseCapture, ttl time.Duration) error {
	payload, err := json.Marshal(idempotencyRecord{
		State:       stateComplete,
		RequestHash: g.hash,
		Status:      rec.statusCode(),
		ContentType: rec.Header().Get("Content-Type"),
		Body:        rec.body.Bytes(),
	})
	if err != nil {
		return err
	}
	return g.store.Set(ctx, g.key, string(payload), ttl)
}

func (g idempotencyGuard) release(ctx context.Context) error {
	return g.store.Del(ctx, g.key)
}

// replay answers a duplicate request from the stored record.
func (g idempotencyGuard) replay(ctx context.Context, w http.ResponseWriter) error {
	stored, err := g.store.Get(ctx, g.key)
	if errors.Is(err, redis.Nil) {
		// released by a failed original between our SETNX and GET
		return errRequestInFlight()
	}
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load idempotency record")
	}

	var record idempotencyRecord
	if err := json.Unmarshal([]byte(stored), &record); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode idempotency record")
	}
	if record.RequestHash != g.hash {
		return pkgerrors.New(pkgerrors.CodeIdempotency, "idempotency key reused with different request body")
	}
	if record.State != stateComplete {
		return errRequestInFlight()
	}

	if record.ContentType != "" {
		w.Header().Set("Content-Type", record.ContentType)
	}
	w.Header().Set(idempotencyReplayHeader, "true")
	w.WriteHeader(record.Status)
	_, _ = w.Write(record.Body)
	return nil
}

func errRequestInFlight() error {
	return pkgerrors.New(pkgerrors.CodeIdempotency, "a request with this idempotency key is still in progress")
}

func hashBody(payload []byte) string {
	sum := sha256.Sum256(payload)
	return hex.EncodeToString(sum[:])
}

func routePattern(r *http.Request) string {
	if r == nil {
		return ""
	}
	// a trailing wildcard means routing has not reached the endpoint yet
	if ctx := chi.RouteContext(r.Context()); ctx != nil {
		if pattern := ctx.RoutePattern(); pattern != "" && !strings.HasSuffix(pattern, "*") {
			return trimTrailingSlash(pattern)
		}
	}
	return trimTrailingSlash(r.URL.Path)
}

func trimTrailingSlash(path string) string {
	if len(path) > 1 {
		return strings.TrimSuffix(path, "/")
	}
	return path
}

func coveredRoute(method, pattern string) bool {
	for _, rule := range idempotencyRules {
		if rule.method == method && rule.pattern == pattern {
			return true
		}
	}
	return false
}

// responseCapture tees the response so a successful one can be stored.
type responseCapture struct {
	http.ResponseWriter
	body   bytes.Buffer
	status int
}

func (r *responseCapture) WriteHeader(code int) {
	if r.status == 0 {
		r.status = code
	}
	r.ResponseWriter.WriteHeader(code)
}

func (r *responseCapture) Write(b []byte) (int, error) {
	if r.status == 0 {
		r.status = http.StatusOK
	}
	r.body.Write(b)
	return r.ResponseWriter.Write(b)
}

func (r *responseCapture) statusCode() int {
	if r.status == 0 {
		return http.StatusOK
	}
	return r.status
}

func logError(ctx context.Context, logg *logger.Logger, msg string, err error) {
	if logg == nil || err == nil {
		return
	}
	logg.Error(ctx, msg, err)
}
