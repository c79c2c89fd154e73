package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/dropDatabas3/portero/internal/app"
	"github.com/dropDatabas3/portero/internal/grant"
	httpx "github.com/dropDatabas3/portero/internal/http"
	"github.com/dropDatabas3/portero/internal/resource"
	"github.com/dropDatabas3/portero/internal/store/core"
	"github.com/dropDatabas3/portero/internal/token"
)

// NewOAuthAuthorizeHandler es el leg de emisión del authorization endpoint.
// Lo invoca el frontend de login DESPUÉS de autenticar al usuario: el
// subject viene en el form como un hecho ya verificado, este handler no
// hace login. Con response_type "code" emite solo el code; con un
// response_type híbrido delega en el grant handler híbrido.
func NewOAuthAuthorizeHandler(c *app.Container, auth *ClientAuthenticator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			httpx.WriteError(w, http.StatusBadRequest, "invalid_request", "malformed form body", 3301)
			return
		}

		ctx := r.Context()
		domain, err := c.Store.GetDomainBySlug(ctx, chi.URLParam(r, "domain"))
		if err != nil {
			status := http.StatusInternalServerError
			if errors.Is(err, core.ErrNotFound) {
				status = http.StatusNotFound
			}
			httpx.WriteError(w, status, "invalid_request", "unknown domain", 3302)
			return
		}

		client, err := auth.Authenticate(ctx, r, domain, false)
		if err != nil {
			httpx.WriteOAuthError(w, err, 3303)
			return
		}

		treq := token.ParseTokenRequest(r.PostForm)
		treq.SubjectHint = strings.TrimSpace(r.PostForm.Get("subject"))
		if treq.ResponseType == "" {
			httpx.WriteError(w, http.StatusBadRequest, "invalid_request", "response_type is required", 3304)
			return
		}
		if treq.SubjectHint == "" {
			httpx.WriteError(w, http.StatusBadRequest, "invalid_request", "subject is required", 3305)
			return
		}

		w.Header().Set("Cache-Control", "no-store")
		w.Header().Set("Pragma", "no-cache")

		// response_type "code" a secas: flujo code clásico, sin tokens acá.
		if treq.ResponseType == "code" {
			if treq.RedirectURI == "" {
				httpx.WriteError(w, http.StatusBadRequest, "invalid_request", "redirect_uri is required", 3306)
				return
			}
			if !client.AllowsGrant(token.GrantAuthorizationCode) {
				httpx.WriteError(w, http.StatusBadRequest, "unauthorized_client", "client cannot use the authorization code flow", 3307)
				return
			}
			// Los resources se validan acá, antes de quedar grabados en el
			// code: el canje posterior solo chequea subset contra esto.
			if err := resource.ValidateRequested(treq.Resources, domain.ProtectedResources); err != nil {
				httpx.WriteOAuthError(w, err, 3310)
				return
			}
			code, err := c.Codes.Issue(ctx, &grant.AuthorizationCode{
				DomainID:        domain.ID,
				ClientID:        client.ClientID,
				Subject:         treq.SubjectHint,
				Scope:           treq.Scope,
				Resources:       treq.Resources,
				RedirectURI:     treq.RedirectURI,
				CodeChallenge:   treq.CodeChallenge,
				ChallengeMethod: treq.ChallengeMethod,
				Nonce:           treq.Nonce,
				State:           treq.State,
			})
			if err != nil {
				httpx.WriteOAuthError(w, err, 3308)
				return
			}
			resp := map[string]any{"code": code}
			if treq.State != "" {
				resp["state"] = treq.State
			}
			httpx.WriteJSON(w, http.StatusOK, resp)
			return
		}

		// Híbrido: el dispatcher resuelve por el grant interno.
		treq.GrantType = token.GrantHybrid
		ex := &grant.Exchange{Domain: domain, Client: client, Request: treq}
		issued, err := c.Dispatcher.Dispatch(ctx, ex)
		if err != nil {
			httpx.WriteOAuthError(w, err, 3309)
			return
		}

		resp := map[string]any{"code": ex.Code}
		if issued != nil {
			for k, v := range issued.Response() {
				resp[k] = v
			}
		}
		if ex.IDToken != "" {
			resp["id_token"] = ex.IDToken
		}
		if treq.State != "" {
			resp["state"] = treq.State
		}
		httpx.WriteJSON(w, http.StatusOK, resp)
	}
}
