package grant

import (
	"context"

	"github.com/dropDatabas3/portero/internal/oautherr"
	"github.com/dropDatabas3/portero/internal/resource"
	"github.com/dropDatabas3/portero/internal/store/core"
	"github.com/dropDatabas3/portero/internal/token"
	"github.com/dropDatabas3/portero/internal/tokensvc"
)

// clientCredentialsHandler: el client es su propio resource owner. Sin
// refresh token: el client puede volver a pedir cuando quiera.
type clientCredentialsHandler struct {
	svc *tokensvc.Service
}

func NewClientCredentialsHandler(svc *tokensvc.Service) Handler {
	return &clientCredentialsHandler{svc: svc}
}

func (h *clientCredentialsHandler) Name() string { return "client_credentials" }

func (h *clientCredentialsHandler) CanHandle(grantType string, client *core.Client, _ *core.Domain) bool {
	return grantType == token.GrantClientCredentials && client.AllowsGrant(grantType)
}

func (h *clientCredentialsHandler) ParseRequest(_ context.Context, ex *Exchange) error {
	if ex.Client.ClientType != "confidential" {
		return oautherr.E(oautherr.UnauthorizedClient, "client_credentials requires a confidential client")
	}
	return nil
}

func (h *clientCredentialsHandler) ResolveOwner(_ context.Context, ex *Exchange) error {
	ex.Subject = ex.Client.ClientID
	return nil
}

func (h *clientCredentialsHandler) Grant(ctx context.Context, ex *Exchange) (*token.Token, error) {
	if err := resource.ValidateRequested(ex.Request.Resources, ex.Domain.ProtectedResources); err != nil {
		return nil, err
	}
	scope := ex.Request.Scope
	if len(scope) == 0 {
		scope = ex.Client.Scopes
	} else if err := scopeAllowed(scope, ex.Client.Scopes); err != nil {
		return nil, err
	}

	req := &token.OAuth2Request{
		DomainID:  ex.Domain.ID,
		ClientID:  ex.Client.ClientID,
		Subject:   ex.Subject,
		GrantType: token.GrantClientCredentials,
		Scope:     scope,
		Resources: ex.Request.Resources,
	}
	return h.svc.Create(ctx, req, ex.Domain, ex.Client, nil)
}

// scopeAllowed verifica que lo pedido esté dentro de lo registrado para el
// client.
func scopeAllowed(requested, registered []string) error {
	have := make(map[string]struct{}, len(registered))
	for _, sc := range registered {
		have[sc] = struct{}{}
	}
	for _, sc := range requested {
		if _, ok := have[sc]; !ok {
			return oautherr.Ef(oautherr.InvalidScope, "scope %q not allowed for client", sc)
		}
	}
	return nil
}
