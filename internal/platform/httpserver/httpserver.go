package httpserver

import (
	"net/http"
	"time"
)

// New builds an HTTP server with timeouts suited to the sync API: requests
// are short CRUD round-trips, never long polls (push rides on the adapter's
// own transport, not on HTTP).
func New(addr string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       2 * time.Minute,
	}
}
