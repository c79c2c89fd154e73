// Package router arma el chi.Router del servicio: endpoints OAuth2/OIDC por
// domain, discovery de claves y operabilidad (health + metrics).
package router

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/dropDatabas3/portero/internal/app"
	httpx "github.com/dropDatabas3/portero/internal/http"
	"github.com/dropDatabas3/portero/internal/http/handlers"
)

// New construye el router completo sobre el Container ya cableado.
func New(c *app.Container) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))

	auth := handlers.NewClientAuthenticator(c.Store)

	metricsHandler := httpx.RegisterMetrics(prometheus.DefaultRegisterer)

	r.Get("/healthz", handlers.NewHealthzHandler())
	r.Get("/readyz", handlers.NewReadyzHandler(c))
	r.Method(http.MethodGet, "/metrics", metricsHandler)

	r.Route("/d/{domain}", func(r chi.Router) {
		r.Method(http.MethodPost, "/oauth/token",
			httpx.MetricsMiddleware("oauth_token",
				httpx.RateLimitMiddleware(c.Limiter, handlers.NewOAuthTokenHandler(c, auth))))
		r.Method(http.MethodPost, "/oauth/authorize",
			httpx.MetricsMiddleware("oauth_authorize", handlers.NewOAuthAuthorizeHandler(c, auth)))
		r.Method(http.MethodPost, "/oauth/introspect",
			httpx.MetricsMiddleware("oauth_introspect", handlers.NewOAuthIntrospectHandler(c, auth)))
		r.Method(http.MethodPost, "/oauth/revoke",
			httpx.MetricsMiddleware("oauth_revoke", handlers.NewOAuthRevokeHandler(c, auth)))
		r.Method(http.MethodGet, "/.well-known/jwks.json",
			httpx.MetricsMiddleware("jwks", handlers.NewJWKSHandler(c)))
	})

	return r
}
