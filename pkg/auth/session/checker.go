package session

import (
	"context"
	"errors"
	"fmt"
	"strings"

	redislib "github.com/redis/go-redis/v9"
)

// AccessSessionChecker exposes the read-only surface needed by middleware.
type AccessSessionChecker interface {
	HasSession(ctx context.Context, accessID string) (bool, error)
}

type sessionStore interface {
	Get(context.Context, string) (string, error)
}

type sessionKeyer interface {
	AccessSessionKey(accessID string) string
}

// Checker looks up access sessions written by the identity provider. Sessions
// are keyed by the token jti so revoking a session invalidates the token early.
type Checker struct {
	store sessionStore
	keyer sessionKeyer
}

// RedisStore is satisfied by *pkg/redis.Client.
type RedisStore interface {
	sessionStore
	sessionKeyer
}

// NewChecker builds a session checker backed by Redis.
func NewChecker(client RedisStore) (*Checker, error) {
	if client == nil {
		return nil, fmt.Errorf("redis client is required")
	}
	return &Checker{store: client, keyer: client}, nil
}

// HasSession reports whether the provided access ID still has an active session.
func (c *Checker) HasSession(ctx context.Context, accessID string) (bool, error) {
	if strings.TrimSpace(accessID) == "" {
		return false, fmt.Errorf("access id is required")
	}
	if _, err := c.store.Get(ctx, c.keyer.AccessSessionKey(accessID)); err != nil {
		if errors.Is(err, redislib.Nil) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}
