package nominatim

import (
	"context"
	"errors"
	"testing"

	"github.com/couchcryptid/wildfire-analysis/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// --- mock for cache tests ---

type countingSearcher struct {
	calls  int
	result []domain.GeoPoint
	err    error
}

func (m *countingSearcher) Search(_ context.Context, _ string, _ int, _ string) ([]domain.GeoPoint, error) {
	m.calls++
	return m.result, m.err
}

// --- CachedSearcher tests ---

func TestCachedSearcher_CacheHit(t *testing.T) {
	inner := &countingSearcher{result: []domain.GeoPoint{{Name: "Chico", Latitude: 39.73, Longitude: -121.84}}}
	cached := NewCachedSearcher(inner, 10, testMetrics())

	r1, err := cached.Search(context.Background(), "Chico", 5, "us")
	require.NoError(t, err)
	assert.Equal(t, "Chico", r1[0].Name)

	r2, err := cached.Search(context.Background(), "  CHICO ", 5, "US")
	require.NoError(t, err)
	assert.Equal(t, "Chico", r2[0].Name)

	assert.Equal(t, 1, inner.calls, "should only call inner once")
}

func TestCachedSearcher_ReturnsCopies(t *testing.T) {
	inner := &countingSearcher{result: []domain.GeoPoint{{Name: "Chico"}}}
	cached := NewCachedSearcher(inner, 10, testMetrics())

	r1, _ := cached.Search(context.Background(), "Chico", 5, "")
	r1[0].Name = "mutated"

	r2, _ := cached.Search(context.Background(), "Chico", 5, "")
	assert.Equal(t, "Chico", r2[0].Name)
}

func TestCachedSearcher_DifferentKeysMiss(t *testing.T) {
	inner := &countingSearcher{result: []domain.GeoPoint{{Name: "Place"}}}
	cached := NewCachedSearcher(inner, 10, testMetrics())

	_, _ = cached.Search(context.Background(), "Chico", 5, "")
	_, _ = cached.Search(context.Background(), "Chico", 10, "")
	_, _ = cached.Search(context.Background(), "Chico", 5, "ca")

	assert.Equal(t, 3, inner.calls)
}

func TestCachedSearcher_EmptyAndErrorsNotCached(t *testing.T) {
	inner := &countingSearcher{}
	cached := NewCachedSearcher(inner, 10, testMetrics())

	_, _ = cached.Search(context.Background(), "Nowhere", 5, "")
	_, _ = cached.Search(context.Background(), "Nowhere", 5, "")
	assert.Equal(t, 2, inner.calls)

	inner.err = errors.New("boom")
	_, err := cached.Search(context.Background(), "Other", 5, "")
	require.Error(t, err)
	assert.Zero(t, cached.cache.size())
}

// --- LRU cache unit tests ---

func TestLRUCache_BasicGetPut(t *testing.T) {
	c := newLRUCache(3)

	c.put("a", []domain.GeoPoint{{Name: "A"}})
	c.put("b", []domain.GeoPoint{{Name: "B"}})

	result, ok := c.get("a")
	assert.True(t, ok)
	assert.Equal(t, "A", result[0].Name)

	_, ok = c.get("missing")
	assert.False(t, ok)
}

func TestLRUCache_Eviction(t *testing.T) {
	c := newLRUCache(2)

	c.put("a", []domain.GeoPoint{{Name: "A"}})
	c.put("b", []domain.GeoPoint{{Name: "B"}})
	c.put("c", []domain.GeoPoint{{Name: "C"}}) // evicts "a"

	_, ok := c.get("a")
	assert.False(t, ok, "a should have been evicted")

	result, ok := c.get("b")
	assert.True(t, ok)
	assert.Equal(t, "B", result[0].Name)
	assert.Equal(t, 2, c.size())
}

func TestLRUCache_AccessPromotesEntry(t *testing.T) {
	c := newLRUCache(2)

	c.put("a", []domain.GeoPoint{{Name: "A"}})
	c.put("b", []domain.GeoPoint{{Name: "B"}})
	c.get("a")
	c.put("c", []domain.GeoPoint{{Name: "C"}}) // evicts "b"

	_, ok := c.get("a")
	assert.True(t, ok)
	_, ok = c.get("b")
	assert.False(t, ok)
}

func TestLRUCache_UpdateExisting(t *testing.T) {
	c := newLRUCache(2)

	c.put("a", []domain.GeoPoint{{Name: "A"}})
	c.put("a", []domain.GeoPoint{{Name: "A2"}})

	result, ok := c.get("a")
	assert.True(t, ok)
	assert.Equal(t, "A2", result[0].Name)
	assert.Equal(t, 1, c.size())
}
