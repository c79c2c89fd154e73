package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/dropDatabas3/portero/internal/app"
	httpx "github.com/dropDatabas3/portero/internal/http"
)


// NewHealthzHandler: liveness pura, no toca dependencias.
func NewHealthzHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		httpx.WriteJSON(w, http.StatusOK, map[string]any{"status": "ok"})
	}
}

// NewReadyzHandler: readiness con ping al cache. El store no expone ping
// propio; si el cache responde, el proceso está listo para servir.
func NewReadyzHandler(c *app.Container) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		if err := c.Cache.Ping(ctx); err != nil {
			httpx.WriteJSON(w, http.StatusServiceUnavailable, map[string]any{
				"status": "degraded",
				"cache":  err.Error(),
			})
			return
		}
		httpx.WriteJSON(w, http.StatusOK, map[string]any{"status": "ready"})
	}
}
