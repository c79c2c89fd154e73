package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"github.com/dropDatabas3/portero/internal/oautherr"
	"github.com/dropDatabas3/portero/internal/store/core"
)

// ClientAuthenticator autentica clients OAuth2 por Basic auth o por
// client_id/client_secret en el form (RFC 6749 §2.3.1).
type ClientAuthenticator struct {
	clients core.ClientReader
}

func NewClientAuthenticator(clients core.ClientReader) *ClientAuthenticator {
	return &ClientAuthenticator{clients: clients}
}

// Authenticate resuelve y verifica el client del request. Con requireSecret
// los clients públicos quedan afuera (introspección/revocación); sin él, un
// client público pasa solo con client_id (authorization_code + PKCE).
func (a *ClientAuthenticator) Authenticate(ctx context.Context, r *http.Request, domain *core.Domain, requireSecret bool) (*core.Client, error) {
	clientID, secret, fromBasic := r.BasicAuth()
	if !fromBasic {
		clientID = strings.TrimSpace(r.PostForm.Get("client_id"))
		secret = r.PostForm.Get("client_secret")
	}
	if clientID == "" {
		return nil, oautherr.E(oautherr.InvalidClient, "client authentication required")
	}

	cl, err := a.clients.GetClientByClientID(ctx, domain.ID, clientID)
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			return nil, oautherr.E(oautherr.InvalidClient, "unknown client")
		}
		return nil, err
	}

	if cl.SecretHash == nil {
		// Client público: no tiene secreto que verificar.
		if requireSecret {
			return nil, oautherr.E(oautherr.InvalidClient, "confidential client required")
		}
		return cl, nil
	}
	if bcrypt.CompareHashAndPassword([]byte(*cl.SecretHash), []byte(secret)) != nil {
		return nil, oautherr.E(oautherr.InvalidClient, "invalid client credentials")
	}
	return cl, nil
}
