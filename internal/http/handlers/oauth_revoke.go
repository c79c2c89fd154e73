package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/dropDatabas3/portero/internal/app"
	httpx "github.com/dropDatabas3/portero/internal/http"
	"github.com/dropDatabas3/portero/internal/store/core"
)

// NewOAuthRevokeHandler: RFC 7009. Token desconocido => 200 igual, la
// revocación es idempotente a proposito.
func NewOAuthRevokeHandler(c *app.Container, auth *ClientAuthenticator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Cache-Control", "no-store")

		if err := r.ParseForm(); err != nil {
			httpx.WriteError(w, http.StatusBadRequest, "invalid_request", "malformed form body", 3201)
			return
		}

		ctx := r.Context()
		domain, err := c.Store.GetDomainBySlug(ctx, chi.URLParam(r, "domain"))
		if err != nil {
			status := http.StatusInternalServerError
			if errors.Is(err, core.ErrNotFound) {
				status = http.StatusNotFound
			}
			httpx.WriteError(w, status, "invalid_request", "unknown domain", 3202)
			return
		}
		client, err := auth.Authenticate(ctx, r, domain, false)
		if err != nil {
			httpx.WriteOAuthError(w, err, 3203)
			return
		}

		tok := strings.TrimSpace(r.PostForm.Get("token"))
		if tok == "" {
			httpx.WriteError(w, http.StatusBadRequest, "invalid_request", "token is required", 3204)
			return
		}
		hint := strings.TrimSpace(r.PostForm.Get("token_type_hint"))
		if !validHint(hint) {
			httpx.WriteError(w, http.StatusBadRequest, "unsupported_token_type", "unknown token_type_hint", 3205)
			return
		}

		if err := c.Introspect.Revoke(ctx, tok, hint, client); err != nil {
			httpx.WriteOAuthError(w, err, 3206)
			return
		}
		w.WriteHeader(http.StatusOK)
	}
}
