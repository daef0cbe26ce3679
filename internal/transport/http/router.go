package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"nostrpush/internal/handler"
	"nostrpush/internal/httputil"
	authmw "nostrpush/internal/transport/http/middleware"
)

// RouterConfig holds the dependencies needed to create routes
type RouterConfig struct {
	DeviceHandler *handler.DeviceHandler
}

// NewRouter creates and configures a new Chi router with all route groups
func NewRouter(cfg RouterConfig) chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)

	// Health check endpoint (useful for deployment/monitoring)
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		httputil.WriteJSON(w, 200, map[string]string{"status": "ok"})
	})

	// Device registration - NIP-98 signed requests only
	r.Group(func(r chi.Router) {
		r.Use(authmw.NostrAuthMiddleware)

		r.Post("/user-info", cfg.DeviceHandler.Register)
		r.Delete("/user-info", cfg.DeviceHandler.Unregister)
	})

	return r
}
