// Package server implements the HTTP server lifecycle for the gateway.
package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"
)

// CreateServer creates the HTTP server with conservative timeouts. The write
// timeout does not apply to upgraded WebSocket connections.
func CreateServer(port string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              port,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
}

// StartGateway creates a gateway and starts its run loop.
func StartGateway(st Store, opts ...Option) *Gateway {
	g := NewGateway(st, opts...)
	go g.Run()
	return g
}

// StartServer starts the HTTP server and blocks until it exits. A graceful
// shutdown is not reported as an error.
func StartServer(server *http.Server) error {
	slog.Info("server listening", "addr", server.Addr)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// ShutdownServer stops accepting requests and then shuts the gateway down,
// closing every WebSocket connection.
func ShutdownServer(server *http.Server, g *Gateway, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	var errs []error
	if err := server.Shutdown(ctx); err != nil {
		errs = append(errs, err)
	}
	if g != nil {
		remaining := timeout
		if deadline, ok := ctx.Deadline(); ok {
			remaining = time.Until(deadline)
		}
		if err := g.Shutdown(remaining); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
