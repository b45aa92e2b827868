package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"product-catalog/internal/domain"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestCache(t *testing.T) (*ListCache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewListCache(client, time.Minute, zap.NewNop()), mr
}

func countingLoader(calls *int, total int) func(context.Context) (*domain.ProductPage, error) {
	return func(context.Context) (*domain.ProductPage, error) {
		*calls++
		return &domain.ProductPage{
			Products:   []*domain.Product{{UID: "a", Name: "Widget", Price: 10, SKU: "W-1"}},
			Pagination: domain.NewPagination(1, 10, total),
		}, nil
	}
}

func TestFetchPageCachesUntilBump(t *testing.T) {
	c, _ := newTestCache(t)
	ctx := context.Background()
	q := domain.NewProductQuery()
	calls := 0

	first, err := c.FetchPage(ctx, q, countingLoader(&calls, 1))
	require.NoError(t, err)
	second, err := c.FetchPage(ctx, q, countingLoader(&calls, 1))
	require.NoError(t, err)

	assert.Equal(t, 1, calls)
	assert.Equal(t, first.Pagination, second.Pagination)
	require.Len(t, second.Products, 1)
	assert.Equal(t, "Widget", second.Products[0].Name)

	require.NoError(t, c.Bump(ctx))

	_, err = c.FetchPage(ctx, q, countingLoader(&calls, 2))
	require.NoError(t, err)
	assert.Equal(t, 2, calls)
}

func TestFetchPageKeysByQuery(t *testing.T) {
	c, _ := newTestCache(t)
	ctx := context.Background()
	calls := 0

	q := domain.NewProductQuery()
	_, err := c.FetchPage(ctx, q, countingLoader(&calls, 1))
	require.NoError(t, err)

	q.Search = "phone"
	_, err = c.FetchPage(ctx, q, countingLoader(&calls, 1))
	require.NoError(t, err)

	assert.Equal(t, 2, calls)
}

func TestFetchPageEntriesExpire(t *testing.T) {
	c, mr := newTestCache(t)
	ctx := context.Background()
	q := domain.NewProductQuery()
	calls := 0

	_, err := c.FetchPage(ctx, q, countingLoader(&calls, 1))
	require.NoError(t, err)

	mr.FastForward(2 * time.Minute)

	_, err = c.FetchPage(ctx, q, countingLoader(&calls, 1))
	require.NoError(t, err)
	assert.Equal(t, 2, calls)
}

func TestFetchPageFallsBackWhenRedisIsDown(t *testing.T) {
	c, mr := newTestCache(t)
	mr.Close()
	calls := 0

	page, err := c.FetchPage(context.Background(), domain.NewProductQuery(), countingLoader(&calls, 3))

	require.NoError(t, err)
	assert.Equal(t, 3, page.Pagination.Total)
	assert.Equal(t, 1, calls)
}

func TestFetchPageDoesNotCacheLoaderErrors(t *testing.T) {
	c, _ := newTestCache(t)
	ctx := context.Background()
	boom := errors.New("boom")

	_, err := c.FetchPage(ctx, domain.NewProductQuery(), func(context.Context) (*domain.ProductPage, error) {
		return nil, boom
	})
	assert.ErrorIs(t, err, boom)

	calls := 0
	_, err = c.FetchPage(ctx, domain.NewProductQuery(), countingLoader(&calls, 1))
	require.NoError(t, err)
	assert.Equal(t, 1, calls)
}

func TestNilCacheCallsLoader(t *testing.T) {
	var c *ListCache
	calls := 0

	_, err := c.FetchPage(context.Background(), domain.NewProductQuery(), countingLoader(&calls, 1))
	require.NoError(t, err)
	_, err = c.FetchPage(context.Background(), domain.NewProductQuery(), countingLoader(&calls, 1))
	require.NoError(t, err)

	assert.Equal(t, 2, calls)
	assert.NoError(t, c.Bump(context.Background()))
}

func TestKeyDistinguishesBounds(t *testing.T) {
	q := domain.NewProductQuery()
	min := 10.0
	withMin := q
	withMin.MinPrice = &min
	withMax := q
	withMax.MaxPrice = &min

	assert.NotEqual(t, Key(withMin, 1), Key(withMax, 1))
	assert.NotEqual(t, Key(q, 1), Key(q, 2))
}
