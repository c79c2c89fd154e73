package handlers

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/dropDatabas3/portero/internal/app"
	"github.com/dropDatabas3/portero/internal/grant"
	httpx "github.com/dropDatabas3/portero/internal/http"
	"github.com/dropDatabas3/portero/internal/store/core"
	"github.com/dropDatabas3/portero/internal/token"
	"github.com/dropDatabas3/portero/internal/validation"
)

// NewOAuthTokenHandler arma el handler del token endpoint de un domain.
// Parsea el form, autentica al client y delega en el grant dispatcher.
func NewOAuthTokenHandler(c *app.Container, auth *ClientAuthenticator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		// OAuth2: application/x-www-form-urlencoded
		r.Body = http.MaxBytesReader(w, r.Body, 64<<10) // 64KB
		if err := r.ParseForm(); err != nil {
			httpx.WriteError(w, http.StatusBadRequest, "invalid_request", "malformed form body", 3001)
			return
		}

		ctx := r.Context()
		domain, err := c.Store.GetDomainBySlug(ctx, chi.URLParam(r, "domain"))
		if err != nil {
			status := http.StatusInternalServerError
			if errors.Is(err, core.ErrNotFound) {
				status = http.StatusNotFound
			}
			httpx.WriteError(w, status, "invalid_request", "unknown domain", 3002)
			return
		}

		client, err := auth.Authenticate(ctx, r, domain, false)
		if err != nil {
			httpx.WriteOAuthError(w, err, 3003)
			return
		}

		treq := token.ParseTokenRequest(r.PostForm)
		if treq.GrantType == "" {
			httpx.WriteError(w, http.StatusBadRequest, "invalid_request", "grant_type is required", 3004)
			return
		}
		if bad, ok := validation.ValidScopeNames(treq.Scope); !ok {
			httpx.WriteError(w, http.StatusBadRequest, "invalid_scope", "malformed scope name: "+bad, 3007)
			return
		}
		if treq.GrantType == token.GrantHybrid {
			// Grant interno del authorization endpoint, no es un grant de wire.
			httpx.WriteError(w, http.StatusBadRequest, "unsupported_grant_type", "unsupported grant_type", 3006)
			return
		}

		ex := &grant.Exchange{Domain: domain, Client: client, Request: treq}
		issued, err := c.Dispatcher.Dispatch(ctx, ex)
		if err != nil {
			httpx.WriteOAuthError(w, err, 3005)
			return
		}

		// Respuestas con tokens nunca se cachean.
		w.Header().Set("Cache-Control", "no-store")
		w.Header().Set("Pragma", "no-cache")

		resp := map[string]any{}
		if issued != nil {
			resp = issued.Response()
		}
		if ex.IDToken != "" {
			resp["id_token"] = ex.IDToken
		}
		httpx.WriteJSON(w, http.StatusOK, resp)
	}
}
