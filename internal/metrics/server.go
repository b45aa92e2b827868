package metrics

import (
	"net/http"
	"time"
)

// NewServer builds the HTTP server that exposes /metrics on its own port.
func NewServer(port string, c *Catalog) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", c.Handler())

	return &http.Server{
		Addr:              ":" + port,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
}
