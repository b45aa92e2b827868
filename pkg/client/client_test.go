package client

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var pngBytes = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR\x00\x00\x00\x01\x00\x00\x00\x01\x08\x06\x00\x00\x00\x1f\x15\xc4\x89")

type fakeAPI struct {
	gets    atomic.Int32
	release chan struct{}
	last    *http.Request
	body    []byte
	mu      sync.Mutex
}

func (f *fakeAPI) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)
	f.mu.Lock()
	f.last = r
	f.body = body
	f.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")

	switch {
	case r.Method == http.MethodGet && r.URL.Path == "/products":
		f.gets.Add(1)
		if f.release != nil {
			<-f.release
		}
		w.Write([]byte(`{"products":[{"uid":"a","name":"Phone","price":100,"sku":"PH-1"}],"pagination":{"page":1,"limit":10,"total":1,"pages":1}}`))
	case r.Method == http.MethodGet && r.URL.Path == "/products/missing":
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"error":{"code":"Not Found","message":"product with uid \"missing\" not found","timestamp":"2026-01-01T00:00:00Z"}}`))
	case r.Method == http.MethodPost && r.URL.Path == "/products":
		if strings.Contains(string(body), `"sku":""`) {
			w.WriteHeader(http.StatusBadRequest)
			w.Write([]byte(`{"error":{"code":"Bad Request","message":"validation failed","details":{"validation_errors":[{"field":"sku","message":"This field is required"}]}}}`))
			return
		}
		w.WriteHeader(http.StatusCreated)
		w.Write(body)
	case r.URL.Path == "/products/a/image":
		w.Write([]byte(`{"uid":"a","name":"Phone","price":100,"sku":"PH-1","imageUrl":"http://x/uploads/1.png"}`))
	default:
		w.Write([]byte(`{"uid":"a","name":"Phone","price":150,"sku":"PH-1"}`))
	}
}

func (f *fakeAPI) lastRequest() (*http.Request, []byte) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.last, f.body
}

func newTestClient(t *testing.T, api *fakeAPI, opts ...Option) *Client {
	t.Helper()
	srv := httptest.NewServer(api)
	t.Cleanup(srv.Close)
	return New(srv.URL+"/", opts...)
}

func TestListProductsIsCachedUntilMutation(t *testing.T) {
	api := &fakeAPI{}
	c := newTestClient(t, api)
	ctx := context.Background()

	page, err := c.ListProducts(ctx, ListOptions{})
	require.NoError(t, err)
	require.Len(t, page.Products, 1)
	assert.Equal(t, "Phone", page.Products[0].Name)
	assert.Equal(t, 1, page.Pagination.Total)

	_, err = c.ListProducts(ctx, ListOptions{})
	require.NoError(t, err)
	assert.Equal(t, int32(1), api.gets.Load())

	price := 150.0
	_, err = c.UpdateProduct(ctx, "a", UpdateProductInput{Price: &price})
	require.NoError(t, err)

	_, err = c.ListProducts(ctx, ListOptions{})
	require.NoError(t, err)
	assert.Equal(t, int32(2), api.gets.Load())
}

func TestCacheExpires(t *testing.T) {
	api := &fakeAPI{}
	c := newTestClient(t, api, WithCacheTTL(time.Minute))
	now := time.Now()
	c.now = func() time.Time { return now }
	ctx := context.Background()

	_, err := c.ListProducts(ctx, ListOptions{})
	require.NoError(t, err)

	now = now.Add(2 * time.Minute)
	_, err = c.ListProducts(ctx, ListOptions{})
	require.NoError(t, err)
	assert.Equal(t, int32(2), api.gets.Load())
}

func TestCacheDisabled(t *testing.T) {
	api := &fakeAPI{}
	c := newTestClient(t, api, WithCacheTTL(0))

	for i := 0; i < 3; i++ {
		_, err := c.ListProducts(context.Background(), ListOptions{})
		require.NoError(t, err)
	}
	assert.Equal(t, int32(3), api.gets.Load())
}

func TestConcurrentListsShareOneRequest(t *testing.T) {
	api := &fakeAPI{release: make(chan struct{})}
	c := newTestClient(t, api)

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := c.ListProducts(context.Background(), ListOptions{})
			assert.NoError(t, err)
		}()
	}

	require.Eventually(t, func() bool { return api.gets.Load() == 1 }, time.Second, 5*time.Millisecond)
	time.Sleep(20 * time.Millisecond)
	close(api.release)
	wg.Wait()

	assert.Equal(t, int32(1), api.gets.Load())
}

func TestGetAfterMutationDoesNotJoinEarlierRequest(t *testing.T) {
	var (
		mu    sync.Mutex
		price = 100
		gets  atomic.Int32
	)
	firstRead := make(chan struct{})
	releaseFirst := make(chan struct{})

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if r.Method == http.MethodPatch {
			mu.Lock()
			price = 150
			mu.Unlock()
			w.Write([]byte(`{"uid":"a","name":"Phone","price":150,"sku":"PH-1"}`))
			return
		}

		mu.Lock()
		current := price
		mu.Unlock()
		if gets.Add(1) == 1 {
			close(firstRead)
			<-releaseFirst
		}
		w.Write([]byte(`{"uid":"a","name":"Phone","price":` + strconv.Itoa(current) + `,"sku":"PH-1"}`))
	}))
	t.Cleanup(srv.Close)
	c := New(srv.URL)
	ctx := context.Background()

	firstDone := make(chan *Product, 1)
	go func() {
		p, err := c.GetProduct(ctx, "a")
		assert.NoError(t, err)
		firstDone <- p
	}()
	<-firstRead

	newPrice := 150.0
	_, err := c.UpdateProduct(ctx, "a", UpdateProductInput{Price: &newPrice})
	require.NoError(t, err)

	second, err := c.GetProduct(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, 150.0, second.Price)

	close(releaseFirst)
	first := <-firstDone
	require.NotNil(t, first)
	assert.Equal(t, 100.0, first.Price)
	assert.Equal(t, int32(2), gets.Load())

	cached, err := c.GetProduct(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, 150.0, cached.Price)
	assert.Equal(t, int32(2), gets.Load())
}

func TestListOptionsEncoding(t *testing.T) {
	api := &fakeAPI{}
	c := newTestClient(t, api)

	limit, minPrice := 0, 9.5
	_, err := c.ListProducts(context.Background(), ListOptions{
		Page: 2, Limit: &limit, Search: "pho", SortBy: "price", SortOrder: "asc", MinPrice: &minPrice,
	})
	require.NoError(t, err)

	last, _ := api.lastRequest()
	q := last.URL.Query()
	assert.Equal(t, "2", q.Get("page"))
	assert.Equal(t, "0", q.Get("limit"))
	assert.Equal(t, "pho", q.Get("search"))
	assert.Equal(t, "price", q.Get("sortBy"))
	assert.Equal(t, "asc", q.Get("sortOrder"))
	assert.Equal(t, "9.5", q.Get("minPrice"))
	assert.False(t, q.Has("maxPrice"))
}

func TestNotFoundDecodesEnvelope(t *testing.T) {
	c := newTestClient(t, &fakeAPI{})

	_, err := c.GetProduct(context.Background(), "missing")

	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.True(t, apiErr.NotFound())
	assert.Contains(t, apiErr.Message, "missing")
}

func TestValidationErrorsAreExposed(t *testing.T) {
	c := newTestClient(t, &fakeAPI{})

	_, err := c.CreateProduct(context.Background(), CreateProductInput{Name: "x", Price: 1})

	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusBadRequest, apiErr.StatusCode)
	assert.Equal(t, []FieldError{{Field: "sku", Message: "This field is required"}}, apiErr.Fields)
}

func TestCreateProductSendsJSON(t *testing.T) {
	api := &fakeAPI{}
	c := newTestClient(t, api)

	p, err := c.CreateProduct(context.Background(), CreateProductInput{Name: "Phone", Price: 100, SKU: "PH-1"})
	require.NoError(t, err)
	assert.Equal(t, "PH-1", p.SKU)

	last, body := api.lastRequest()
	var sent map[string]interface{}
	require.NoError(t, json.Unmarshal(body, &sent))
	assert.NotContains(t, sent, "description")
	assert.NotContains(t, sent, "imageUrl")
	assert.Equal(t, "application/json", last.Header.Get("Content-Type"))
}

func TestUploadImageSendsMultipart(t *testing.T) {
	api := &fakeAPI{}
	c := newTestClient(t, api)

	p, err := c.UploadImage(context.Background(), "a", "photo.png", strings.NewReader(string(pngBytes)))
	require.NoError(t, err)
	require.NotNil(t, p.ImageURL)

	last, body := api.lastRequest()
	assert.True(t, strings.HasPrefix(last.Header.Get("Content-Type"), "multipart/form-data"))
	assert.Contains(t, string(body), "Content-Type: image/png")
	assert.Contains(t, string(body), `filename="photo.png"`)
}

func TestDeleteCallsPaths(t *testing.T) {
	api := &fakeAPI{}
	c := newTestClient(t, api)
	ctx := context.Background()

	_, err := c.DeleteImage(ctx, "a")
	require.NoError(t, err)
	last, _ := api.lastRequest()
	assert.Equal(t, http.MethodDelete, last.Method)
	assert.Equal(t, "/products/a/image", last.URL.Path)

	_, err = c.DeleteProduct(ctx, "b")
	require.NoError(t, err)
	last, _ = api.lastRequest()
	assert.Equal(t, "/products/b", last.URL.Path)
}
