package httpx

import (
	"net/http"

	"log/slog"

	"github.com/mayankgaur0405/Dev2Gether/internal/app"
	"github.com/mayankgaur0405/Dev2Gether/internal/room"
	"github.com/mayankgaur0405/Dev2Gether/internal/ws"
	"github.com/mayankgaur0405/Dev2Gether/pkg/metrics"
)

// NewRouter wires up all HTTP routes, middleware, and handlers
func NewRouter(cfg app.Config, logger *slog.Logger, hub *ws.Hub, reg *room.Registry) http.Handler {
	mw := NewMiddleware(cfg)
	api := &RoomsAPI{Reg: reg}

	mux := http.NewServeMux()

	// Health / readiness / metrics
	mux.Handle("/healthz", http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(200) }))
	mux.Handle("/readyz", http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(200) }))
	mux.Handle("/metrics", metrics.Handler())

	// WebSocket endpoint
	mux.Handle("/ws", http.HandlerFunc(hub.ServeWS))

	// Rooms endpoints (read-only)
	mux.Handle("/api/rooms", http.HandlerFunc(api.List))
	mux.Handle("/api/rooms/{id}", http.HandlerFunc(api.Get))

	// CORS + rate limit applied globally
	return mw.Wrap(mux)
}
