package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"product-catalog/pkg/client"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recorded struct {
	method string
	path   string
	query  string
	body   map[string]interface{}
}

func newAPI(t *testing.T, status int, response string) (string, *recorded) {
	t.Helper()
	rec := &recorded{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec.method, rec.path, rec.query = r.Method, r.URL.Path, r.URL.RawQuery
		if r.Header.Get("Content-Type") == "application/json" {
			raw, _ := io.ReadAll(r.Body)
			_ = json.Unmarshal(raw, &rec.body)
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		w.Write([]byte(response))
	}))
	t.Cleanup(srv.Close)
	return srv.URL, rec
}

const phone = `{"uid":"a","name":"Phone","price":100,"sku":"PH-1"}`

func TestGetPrintsProduct(t *testing.T) {
	url, rec := newAPI(t, http.StatusOK, phone)
	var out bytes.Buffer

	require.NoError(t, run(context.Background(), []string{"-url", url, "get", "a"}, &out))

	assert.Equal(t, "/products/a", rec.path)
	var p client.Product
	require.NoError(t, json.Unmarshal(out.Bytes(), &p))
	assert.Equal(t, "Phone", p.Name)
}

func TestListPassesFlags(t *testing.T) {
	url, rec := newAPI(t, http.StatusOK, `{"products":[],"pagination":{"page":1,"limit":0,"total":0,"pages":0}}`)
	var out bytes.Buffer

	err := run(context.Background(), []string{"-url", url, "list", "-limit", "0", "-sort-by", "price", "-order", "asc", "-min-price", "5"}, &out)
	require.NoError(t, err)

	assert.Equal(t, "limit=0&minPrice=5&sortBy=price&sortOrder=asc", rec.query)
}

func TestUpdateSendsOnlyGivenFlags(t *testing.T) {
	url, rec := newAPI(t, http.StatusOK, phone)

	require.NoError(t, run(context.Background(), []string{"-url", url, "update", "a", "-price", "150"}, io.Discard))

	assert.Equal(t, http.MethodPatch, rec.method)
	assert.Equal(t, map[string]interface{}{"price": 150.0}, rec.body)
}

func TestCreateSendsBody(t *testing.T) {
	url, rec := newAPI(t, http.StatusCreated, phone)

	require.NoError(t, run(context.Background(), []string{"-url", url, "create", "-name", "Phone", "-price", "100", "-sku", "PH-1"}, io.Discard))

	assert.Equal(t, http.MethodPost, rec.method)
	assert.Equal(t, "Phone", rec.body["name"])
	assert.Equal(t, 100.0, rec.body["price"])
}

func TestUploadReadsFile(t *testing.T) {
	url, rec := newAPI(t, http.StatusOK, phone)
	path := filepath.Join(t.TempDir(), "photo.gif")
	require.NoError(t, os.WriteFile(path, []byte("GIF89a"), 0o600))

	require.NoError(t, run(context.Background(), []string{"-url", url, "upload", "a", path}, io.Discard))
	assert.Equal(t, "/products/a/image", rec.path)
}

func TestAPIErrorsAreReturned(t *testing.T) {
	url, _ := newAPI(t, http.StatusNotFound, `{"error":{"code":"Not Found","message":"product with uid \"a\" not found"}}`)

	err := run(context.Background(), []string{"-url", url, "rm-image", "a"}, io.Discard)

	var apiErr *client.APIError
	require.True(t, errors.As(err, &apiErr))
	assert.True(t, apiErr.NotFound())
}

func TestUsageErrors(t *testing.T) {
	for _, args := range [][]string{{}, {"explode"}, {"get"}, {"upload", "a"}} {
		err := run(context.Background(), args, io.Discard)
		assert.Error(t, err, "%v", args)
	}
}
