package handlers

import (
	"net/http"

	"github.com/dropDatabas3/portero/internal/app"
	httpx "github.com/dropDatabas3/portero/internal/http"
)

// NewJWKSHandler publica las claves públicas de firma. Solo material RSA
// público; HMAC y "none" no tienen nada que exponer.
func NewJWKSHandler(c *app.Container) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Cache-Control", "public, max-age=300")
		httpx.WriteJSON(w, http.StatusOK, c.Signers.JWKS())
	}
}
