// Package client is a typed HTTP client for the product catalog API.
//
// GET responses are cached in memory for a short TTL and concurrent
// identical GETs share one request. Every mutation clears the cache.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"golang.org/x/sync/singleflight"
)

// DefaultCacheTTL is how long GET responses are reused.
const DefaultCacheTTL = 30 * time.Second

// Client talks to the catalog API.
type Client struct {
	baseURL    string
	httpClient *http.Client
	ttl        time.Duration
	now        func() time.Time

	group singleflight.Group

	mu         sync.Mutex
	cache      map[string]cacheEntry
	generation uint64
}

type cacheEntry struct {
	body    []byte
	expires time.Time
}

// Option customises a Client.
type Option func(*Client)

// WithHTTPClient replaces the default http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithCacheTTL sets how long GET responses are cached. Zero disables caching.
func WithCacheTTL(ttl time.Duration) Option {
	return func(c *Client) { c.ttl = ttl }
}

// New creates a client for the API at baseURL, e.g. http://localhost:8080.
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 30 * time.Second},
		ttl:        DefaultCacheTTL,
		now:        time.Now,
		cache:      make(map[string]cacheEntry),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// ListProducts fetches one page of products.
func (c *Client) ListProducts(ctx context.Context, opts ListOptions) (*ProductPage, error) {
	path := "/products"
	if q := opts.values().Encode(); q != "" {
		path += "?" + q
	}

	var page ProductPage
	if err := c.get(ctx, path, &page); err != nil {
		return nil, err
	}
	return &page, nil
}

// GetProduct fetches a product by uid.
func (c *Client) GetProduct(ctx context.Context, uid string) (*Product, error) {
	var p Product
	if err := c.get(ctx, productPath(uid), &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// CreateProduct creates a product.
func (c *Client) CreateProduct(ctx context.Context, input CreateProductInput) (*Product, error) {
	var p Product
	if err := c.sendJSON(ctx, http.MethodPost, "/products", input, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// UpdateProduct applies a partial update.
func (c *Client) UpdateProduct(ctx context.Context, uid string, input UpdateProductInput) (*Product, error) {
	var p Product
	if err := c.sendJSON(ctx, http.MethodPatch, productPath(uid), input, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// DeleteProduct removes a product and returns it as it was.
func (c *Client) DeleteProduct(ctx context.Context, uid string) (*Product, error) {
	var p Product
	if err := c.mutate(ctx, http.MethodDelete, productPath(uid), nil, "", &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// UploadImage attaches the image read from r, replacing any existing one.
func (c *Client) UploadImage(ctx context.Context, uid, filename string, r io.Reader) (*Product, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read image: %w", err)
	}

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)

	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename=%q`, filename))
	header.Set("Content-Type", mimetype.Detect(data).String())

	part, err := mw.CreatePart(header)
	if err != nil {
		return nil, err
	}
	if _, err := part.Write(data); err != nil {
		return nil, err
	}
	if err := mw.Close(); err != nil {
		return nil, err
	}

	var p Product
	if err := c.mutate(ctx, http.MethodPost, productPath(uid)+"/image", &body, mw.FormDataContentType(), &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// DeleteImage detaches the product's image.
func (c *Client) DeleteImage(ctx context.Context, uid string) (*Product, error) {
	var p Product
	if err := c.mutate(ctx, http.MethodDelete, productPath(uid)+"/image", nil, "", &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// InvalidateCache drops every cached response.
func (c *Client) InvalidateCache() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cache = make(map[string]cacheEntry)
	c.generation++
}

func productPath(uid string) string {
	return "/products/" + url.PathEscape(uid)
}

func (c *Client) get(ctx context.Context, path string, out interface{}) error {
	if body, ok := c.cached(path); ok {
		return json.Unmarshal(body, out)
	}

	// Requests are shared only within one cache generation, so a GET issued
	// after a mutation never joins a request that started before it.
	gen := c.currentGeneration()
	key := strconv.FormatUint(gen, 10) + ":" + path

	resultChan := c.group.DoChan(key, func() (interface{}, error) {
		body, err := c.do(context.WithoutCancel(ctx), http.MethodGet, path, nil, "")
		if err != nil {
			return nil, err
		}
		c.store(path, body, gen)
		return body, nil
	})

	select {
	case <-ctx.Done():
		return ctx.Err()
	case res := <-resultChan:
		if res.Err != nil {
			return res.Err
		}
		return json.Unmarshal(res.Val.([]byte), out)
	}
}

func (c *Client) sendJSON(ctx context.Context, method, path string, in, out interface{}) error {
	raw, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("failed to encode request: %w", err)
	}
	return c.mutate(ctx, method, path, bytes.NewReader(raw), "application/json", out)
}

func (c *Client) mutate(ctx context.Context, method, path string, body io.Reader, contentType string, out interface{}) error {
	defer c.InvalidateCache()

	resp, err := c.do(ctx, method, path, body, contentType)
	if err != nil {
		return err
	}
	return json.Unmarshal(resp, out)
}

func (c *Client) do(ctx context.Context, method, path string, body io.Reader, contentType string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode >= http.StatusBadRequest {
		return nil, newAPIError(resp.StatusCode, raw)
	}
	return raw, nil
}

func (c *Client) cached(key string) ([]byte, bool) {
	if c.ttl <= 0 {
		return nil, false
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.cache[key]
	if !ok {
		return nil, false
	}
	if c.now().After(entry.expires) {
		delete(c.cache, key)
		return nil, false
	}
	return entry.body, true
}

func (c *Client) currentGeneration() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.generation
}

// store keeps a response unless a mutation happened since the request started.
func (c *Client) store(key string, body []byte, gen uint64) {
	if c.ttl <= 0 {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	if gen != c.generation {
		return
	}
	c.cache[key] = cacheEntry{body: body, expires: c.now().Add(c.ttl)}
}

func (o ListOptions) values() url.Values {
	v := url.Values{}
	if o.Page > 0 {
		v.Set("page", strconv.Itoa(o.Page))
	}
	if o.Limit != nil {
		v.Set("limit", strconv.Itoa(*o.Limit))
	}
	if o.Search != "" {
		v.Set("search", o.Search)
	}
	if o.SortBy != "" {
		v.Set("sortBy", o.SortBy)
	}
	if o.SortOrder != "" {
		v.Set("sortOrder", o.SortOrder)
	}
	if o.MinPrice != nil {
		v.Set("minPrice", strconv.FormatFloat(*o.MinPrice, 'f', -1, 64))
	}
	if o.MaxPrice != nil {
		v.Set("maxPrice", strconv.FormatFloat(*o.MaxPrice, 'f', -1, 64))
	}
	return v
}
