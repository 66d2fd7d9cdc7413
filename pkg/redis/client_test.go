package redis

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/angelmondragon/shopcart-backend/pkg/config"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFixedWindowAllow(t *testing.T) {
	ctx := context.Background()
	mock := newMockCmdable()
	client := &Client{store: mock}

	allowed, count, err := client.FixedWindowAllow(ctx, "cart:u1", 2, time.Minute)
	require.NoError(t, err)
	assert.True(t, allowed)
	assert.EqualValues(t, 1, count)
	require.Len(t, mock.expireCalls, 1)
	assert.Equal(t, "sc:rate_limit:cart:u1", mock.expireCalls[0].key)
	assert.Equal(t, time.Minute, mock.expireCalls[0].ttl)

	allowed, count, err = client.FixedWindowAllow(ctx, "cart:u1", 2, time.Minute)
	require.NoError(t, err)
	assert.True(t, allowed)
	assert.EqualValues(t, 2, count)
	assert.Len(t, mock.expireCalls, 1, "expire is only set on the first increment")

	allowed, _, err = client.FixedWindowAllow(ctx, "cart:u1", 2, time.Minute)
	require.NoError(t, err)
	assert.False(t, allowed)

	allowed, _, err = client.FixedWindowAllow(ctx, "cart:u2", 2, time.Minute)
	require.NoError(t, err)
	assert.True(t, allowed, "scopes are counted independently")
}

func TestFixedWindowAllowPropagatesErrors(t *testing.T) {
	mock := newMockCmdable()
	mock.incrErr = errors.New("connection refused")
	client := &Client{store: mock}

	allowed, _, err := client.FixedWindowAllow(context.Background(), "cart:u1", 2, time.Minute)
	require.Error(t, err)
	assert.False(t, allowed)
}

func TestSetNXAndGet(t *testing.T) {
	ctx := context.Background()
	client := &Client{store: newMockCmdable()}

	_, err := client.Get(ctx, "missing")
	assert.ErrorIs(t, err, redis.Nil)

	ok, err := client.SetNX(ctx, "k", "first", time.Hour)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = client.SetNX(ctx, "k", "second", time.Hour)
	require.NoError(t, err)
	assert.False(t, ok)

	value, err := client.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "first", value)

	require.NoError(t, client.Set(ctx, "k", "third", 0))
	value, err = client.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "third", value)

	require.NoError(t, client.Del(ctx, "k"))
	require.NoError(t, client.Del(ctx, "k"), "deleting a missing key succeeds")
	_, err = client.Get(ctx, "k")
	assert.ErrorIs(t, err, redis.Nil)
}

func TestUninitializedClient(t *testing.T) {
	ctx := context.Background()
	var nilClient *Client
	assert.Error(t, nilClient.Ping(ctx))
	assert.NoError(t, nilClient.Close())

	empty := &Client{}
	_, err := empty.Get(ctx, "k")
	assert.Error(t, err)
	_, _, err = empty.FixedWindowAllow(ctx, "scope", 1, time.Second)
	assert.Error(t, err)
}

func TestKeyBuilders(t *testing.T) {
	client := &Client{}
	assert.Equal(t, "sc:idempotency:scope:id", client.IdempotencyKey("scope", "id"))
	assert.Equal(t, "sc:rate_limit:scope", client.RateLimitKey(" scope "))
	assert.Equal(t, "sc:session:access:jti-1", client.AccessSessionKey("jti-1"))
	assert.Equal(t, "sc:idempotency:id", client.IdempotencyKey("", "id"), "empty parts are skipped")
}

func TestOptionsFromConfig(t *testing.T) {
	_, err := optionsFromConfig(config.RedisConfig{})
	require.Error(t, err)

	opts, err := optionsFromConfig(config.RedisConfig{
		Address:  "localhost:6379",
		DB:       3,
		PoolSize: 7,
	})
	require.NoError(t, err)
	assert.Equal(t, "localhost:6379", opts.Addr)
	assert.Equal(t, 3, opts.DB)
	assert.Equal(t, 7, opts.PoolSize)

	opts, err = optionsFromConfig(config.RedisConfig{
		URL:         "redis://:secret@cache:6380/2",
		DialTimeout: 2 * time.Second,
	})
	require.NoError(t, err)
	assert.Equal(t, "cache:6380", opts.Addr)
	assert.Equal(t, "secret", opts.Password)
	assert.Equal(t, 2, opts.DB)
	assert.Equal(t, 2*time.Second, opts.DialTimeout)

	_, err = optionsFromConfig(config.RedisConfig{URL: "://bad"})
	assert.Error(t, err)
}

type mockCmdable struct {
	data        map[string]string
	incr        map[string]int64
	incrErr     error
	expireCalls []expireCall
}

type expireCall struct {
	key string
	ttl time.Duration
}

func newMockCmdable() *mockCmdable {
	return &mockCmdable{
		data: make(map[string]string),
		incr: make(map[string]int64),
	}
}

func (m *mockCmdable) Ping(context.Context) *redis.StatusCmd {
	return redis.NewStatusResult("PONG", nil)
}

func (m *mockCmdable) Set(_ context.Context, key string, value any, _ time.Duration) *redis.StatusCmd {
	m.data[key] = fmt.Sprint(value)
	return redis.NewStatusResult("OK", nil)
}

func (m *mockCmdable) Get(_ context.Context, key string) *redis.StringCmd {
	v, ok := m.data[key]
	if !ok {
		return redis.NewStringResult("", redis.Nil)
	}
	return redis.NewStringResult(v, nil)
}

func (m *mockCmdable) SetNX(_ context.Context, key string, value any, _ time.Duration) *redis.BoolCmd {
	if _, exists := m.data[key]; exists {
		return redis.NewBoolResult(false, nil)
	}
	m.data[key] = fmt.Sprint(value)
	return redis.NewBoolResult(true, nil)
}

func (m *mockCmdable) Del(_ context.Context, keys ...string) *redis.IntCmd {
	var removed int64
	for _, key := range keys {
		if _, ok := m.data[key]; ok {
			delete(m.data, key)
			removed++
		}
	}
	return redis.NewIntResult(removed, nil)
}

func (m *mockCmdable) Incr(_ context.Context, key string) *redis.IntCmd {
	if m.incrErr != nil {
		return redis.NewIntResult(0, m.incrErr)
	}
	m.incr[key]++
	return redis.NewIntResult(m.incr[key], nil)
}

func (m *mockCmdable) Expire(_ context.Context, key string, expiration time.Duration) *redis.BoolCmd {
	m.expireCalls = append(m.expireCalls, expireCall{key: key, ttl: expiration})
	return redis.NewBoolResult(true, nil)
}
