package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

type summary struct {
	Count int `json:"count"`
}

func newTestCache(t *testing.T) *JSONCache {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewJSONCache(client, "billing", time.Minute)
}

func TestFetchJSONCachesUntilBump(t *testing.T) {
	ctx := context.Background()
	c := newTestCache(t)
	calls := 0
	loader := func(context.Context) (any, error) {
		calls++
		return summary{Count: calls}, nil
	}

	key, err := c.BuildKey(ctx, "tenant_a", "analytics", "2025-01-01")
	require.NoError(t, err)
	require.Equal(t, "billing:tenant_a:analytics:2025-01-01:v1", key)

	var got summary
	require.NoError(t, c.FetchJSON(ctx, key, &got, loader))
	require.Equal(t, 1, got.Count)
	require.NoError(t, c.FetchJSON(ctx, key, &got, loader))
	require.Equal(t, 1, got.Count)
	require.Equal(t, 1, calls)

	require.NoError(t, c.Bump(ctx, "tenant_a"))
	key, err = c.BuildKey(ctx, "tenant_a", "analytics", "2025-01-01")
	require.NoError(t, err)
	require.Equal(t, "billing:tenant_a:analytics:2025-01-01:v2", key)
	require.NoError(t, c.FetchJSON(ctx, key, &got, loader))
	require.Equal(t, 2, got.Count)
}

func TestScopesAreIndependent(t *testing.T) {
	ctx := context.Background()
	c := newTestCache(t)
	require.NoError(t, c.Bump(ctx, "tenant_a"))
	require.NoError(t, c.Bump(ctx, "tenant_a"))

	verA, err := c.Version(ctx, "tenant_a")
	require.NoError(t, err)
	verB, err := c.Version(ctx, "tenant_b")
	require.NoError(t, err)
	require.Equal(t, int64(2), verA)
	require.Equal(t, int64(1), verB)
}

func TestNilClientCallsLoader(t *testing.T) {
	ctx := context.Background()
	c := NewJSONCache(nil, "billing", time.Minute)
	var got summary
	require.NoError(t, c.FetchJSON(ctx, "k", &got, func(context.Context) (any, error) {
		return summary{Count: 9}, nil
	}))
	require.Equal(t, 9, got.Count)

	boom := errors.New("boom")
	err := c.FetchJSON(ctx, "k", &got, func(context.Context) (any, error) { return nil, boom })
	require.ErrorIs(t, err, boom)
	require.NoError(t, c.Bump(ctx, "tenant_a"))
}

type failingSet struct{}

func (failingSet) DialHook(next redis.DialHook) redis.DialHook { return next }

func (failingSet) ProcessHook(next redis.ProcessHook) redis.ProcessHook {
	return func(ctx context.Context, cmd redis.Cmder) error {
		if cmd.Name() == "set" {
			err := errors.New("READONLY You can't write against a read only replica.")
			cmd.SetErr(err)
			return err
		}
		return next(ctx, cmd)
	}
}

func (failingSet) ProcessPipelineHook(next redis.ProcessPipelineHook) redis.ProcessPipelineHook {
	return next
}

func TestFetchJSONFallsBackToLoaderWhenReadFails(t *testing.T) {
	ctx := context.Background()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	t.Cleanup(func() { _ = client.Close() })
	c := NewJSONCache(client, "billing", time.Minute)

	key, err := c.BuildKey(ctx, "tenant_a", "analytics")
	require.NoError(t, err)

	mr.SetError("LOADING Redis is loading the dataset in memory")
	var got summary
	require.NoError(t, c.FetchJSON(ctx, key, &got, func(context.Context) (any, error) {
		return summary{Count: 7}, nil
	}))
	require.Equal(t, 7, got.Count)

	mr.SetError("")
	require.False(t, mr.Exists(key))
	require.NoError(t, c.FetchJSON(ctx, key, &got, func(context.Context) (any, error) {
		return summary{Count: 8}, nil
	}))
	require.Equal(t, 8, got.Count)
}

func TestFetchJSONServesLoaderWhenWriteFails(t *testing.T) {
	ctx := context.Background()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	client.AddHook(failingSet{})
	t.Cleanup(func() { _ = client.Close() })
	c := NewJSONCache(client, "billing", time.Minute)

	key, err := c.BuildKey(ctx, "tenant_a", "analytics")
	require.NoError(t, err)
	var got summary
	require.NoError(t, c.FetchJSON(ctx, key, &got, func(context.Context) (any, error) {
		return summary{Count: 3}, nil
	}))
	require.Equal(t, 3, got.Count)
	require.False(t, mr.Exists(key))
}
