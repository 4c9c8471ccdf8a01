package api

import (
	"log/slog"
	"net/http"

	"github.com/zephyrus-green/ferrycast/internal/handlers"
)

// NewRouter wires the HTTP handlers and returns an http.Handler.
// stream serves the WebSocket snapshot feed and may be nil.
func NewRouter(svc *handlers.Service, stream http.Handler, logger *slog.Logger) http.Handler {
	if logger == nil {
		logger = slog.Default()
	}
	mux := http.NewServeMux()

	mux.HandleFunc("GET /ferry", svc.Ferry)
	mux.HandleFunc("GET /volume", svc.Volume)
	mux.HandleFunc("POST /volume", svc.PublishVolume)
	mux.HandleFunc("GET /health", svc.Health)
	mux.HandleFunc("GET /status", svc.Status)
	if stream != nil {
		mux.Handle("GET /ws", stream)
	}

	return loggingMiddleware(logger, mux)
}
