package bus

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type prereqQuery struct {
	Code string
}

func (q prereqQuery) Validate() error {
	if q.Code == "" {
		return errors.New("code is required")
	}
	return nil
}

// mapCache is a minimal Cache for exercising the middleware in isolation.
type mapCache struct {
	entries map[string]interface{}
}

func newMapCache() *mapCache {
	return &mapCache{entries: make(map[string]interface{})}
}

func (c *mapCache) Get(_ context.Context, key string) (interface{}, bool) {
	value, found := c.entries[key]
	return value, found
}

func (c *mapCache) Set(_ context.Context, key string, value interface{}, _ time.Duration) error {
	c.entries[key] = value
	return nil
}

func TestQueryBus_DispatchesToRegisteredHandler(t *testing.T) {
	queryBus := NewQueryBus()
	err := queryBus.Register(prereqQuery{}, QueryHandlerFunc(func(_ context.Context, query Query) (interface{}, error) {
		return "handled " + query.(prereqQuery).Code, nil
	}))
	require.NoError(t, err)

	result, err := queryBus.Ask(context.Background(), prereqQuery{Code: "CMPUT 301"})

	require.NoError(t, err)
	assert.Equal(t, "handled CMPUT 301", result)
}

func TestQueryBus_RejectsDuplicateRegistration(t *testing.T) {
	queryBus := NewQueryBus()
	handler := QueryHandlerFunc(func(context.Context, Query) (interface{}, error) { return nil, nil })

	require.NoError(t, queryBus.Register(prereqQuery{}, handler))
	assert.Error(t, queryBus.Register(prereqQuery{}, handler))
}

func TestQueryBus_ValidatesBeforeDispatch(t *testing.T) {
	queryBus := NewQueryBus()
	calls := 0
	require.NoError(t, queryBus.Register(prereqQuery{}, QueryHandlerFunc(func(context.Context, Query) (interface{}, error) {
		calls++
		return nil, nil
	})))

	_, err := queryBus.Ask(context.Background(), prereqQuery{})

	assert.Error(t, err)
	assert.Equal(t, 0, calls, "invalid queries never reach the handler")
}

func TestCachingMiddleware_ReusesResultWithinScope(t *testing.T) {
	calls := 0
	handler := QueryHandlerFunc(func(_ context.Context, query Query) (interface{}, error) {
		calls++
		return []string{"CMPUT 201"}, nil
	})
	caching := NewCachingMiddleware(newMapCache(), time.Minute, func(context.Context) string { return "v1" })
	wrapped := caching.Wrap(handler)

	first, err := wrapped.Handle(context.Background(), prereqQuery{Code: "CMPUT 301"})
	require.NoError(t, err)
	second, err := wrapped.Handle(context.Background(), prereqQuery{Code: "CMPUT 301"})
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, 1, calls, "repeated query within one catalog version is served from cache")
}

func TestCachingMiddleware_ScopeChangeBypassesStaleEntries(t *testing.T) {
	// Simulates a catalog swap: the handler answers from whichever graph is
	// active, and the scope reports the active version id.
	activeVersion := "v1"
	prereqsByVersion := map[string][]string{
		"v1": {"CMPUT 201"},
		"v2": {"CMPUT 204"},
	}
	handler := QueryHandlerFunc(func(_ context.Context, query Query) (interface{}, error) {
		return prereqsByVersion[activeVersion], nil
	})
	caching := NewCachingMiddleware(newMapCache(), time.Minute, func(context.Context) string { return activeVersion })
	wrapped := caching.Wrap(handler)

	before, err := wrapped.Handle(context.Background(), prereqQuery{Code: "CMPUT 301"})
	require.NoError(t, err)
	assert.Equal(t, []string{"CMPUT 201"}, before)

	activeVersion = "v2"

	after, err := wrapped.Handle(context.Background(), prereqQuery{Code: "CMPUT 301"})
	require.NoError(t, err)
	assert.Equal(t, []string{"CMPUT 204"}, after,
		"a query after activation must reflect the new catalog, not the cached result of the old one")
}

func TestCachingMiddleware_KeysIncludeEveryQueryField(t *testing.T) {
	handler := QueryHandlerFunc(func(_ context.Context, query Query) (interface{}, error) {
		return query.(prereqQuery).Code, nil
	})
	caching := NewCachingMiddleware(newMapCache(), time.Minute, nil)
	wrapped := caching.Wrap(handler)

	first, err := wrapped.Handle(context.Background(), prereqQuery{Code: "CMPUT 174"})
	require.NoError(t, err)
	second, err := wrapped.Handle(context.Background(), prereqQuery{Code: "CMPUT 175"})
	require.NoError(t, err)

	assert.NotEqual(t, first, second)
}

func TestCachingMiddleware_DoesNotCacheErrors(t *testing.T) {
	calls := 0
	handler := QueryHandlerFunc(func(context.Context, Query) (interface{}, error) {
		calls++
		return nil, errors.New("transient failure")
	})
	caching := NewCachingMiddleware(newMapCache(), time.Minute, nil)
	wrapped := caching.Wrap(handler)

	_, err := wrapped.Handle(context.Background(), prereqQuery{Code: "CMPUT 174"})
	assert.Error(t, err)
	_, err = wrapped.Handle(context.Background(), prereqQuery{Code: "CMPUT 174"})
	assert.Error(t, err)

	assert.Equal(t, 2, calls)
}
