// Package server wires HTTP handlers into a chi router for the gateway.
package server

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// SetupRoutes returns a router serving the gateway endpoints: the banner,
// health check, WebSocket endpoint and test page. Callers mount further
// routes on the returned router.
func SetupRoutes(g *Gateway) *chi.Mux {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	r.Get("/", IndexHandler)
	r.Get("/healthz", HealthHandler(g))
	r.HandleFunc("/ws", WebSocketHandler(g))
	r.Get("/test", TestPageHandler)
	return r
}
