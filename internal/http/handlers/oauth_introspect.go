package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/dropDatabas3/portero/internal/app"
	httpx "github.com/dropDatabas3/portero/internal/http"
	"github.com/dropDatabas3/portero/internal/store/core"
	"github.com/dropDatabas3/portero/internal/tokensvc"
)

// validHint valida el token_type_hint en el borde: un hint desconocido se
// rechaza acá con unsupported_token_type, nunca llega al Token Service.
func validHint(hint string) bool {
	return hint == "" || hint == tokensvc.HintAccessToken || hint == tokensvc.HintRefreshToken
}

// NewOAuthIntrospectHandler: RFC 7662. Requiere client confidencial.
func NewOAuthIntrospectHandler(c *app.Container, auth *ClientAuthenticator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Cache-Control", "no-store")
		w.Header().Set("Pragma", "no-cache")

		if err := r.ParseForm(); err != nil {
			httpx.WriteError(w, http.StatusBadRequest, "invalid_request", "malformed form body", 3101)
			return
		}

		ctx := r.Context()
		domain, err := c.Store.GetDomainBySlug(ctx, chi.URLParam(r, "domain"))
		if err != nil {
			status := http.StatusInternalServerError
			if errors.Is(err, core.ErrNotFound) {
				status = http.StatusNotFound
			}
			httpx.WriteError(w, status, "invalid_request", "unknown domain", 3102)
			return
		}
		if _, err := auth.Authenticate(ctx, r, domain, true); err != nil {
			httpx.WriteOAuthError(w, err, 3103)
			return
		}

		tok := strings.TrimSpace(r.PostForm.Get("token"))
		if tok == "" {
			httpx.WriteError(w, http.StatusBadRequest, "invalid_request", "token is required", 3104)
			return
		}
		hint := strings.TrimSpace(r.PostForm.Get("token_type_hint"))
		if !validHint(hint) {
			httpx.WriteError(w, http.StatusBadRequest, "unsupported_token_type", "unknown token_type_hint", 3105)
			return
		}

		resp, err := c.Introspect.Introspect(ctx, tok, hint)
		if err != nil {
			httpx.WriteOAuthError(w, err, 3106)
			return
		}
		httpx.WriteJSON(w, http.StatusOK, resp)
	}
}
