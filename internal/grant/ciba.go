package grant

import (
	"context"
	"errors"

	"github.com/dropDatabas3/portero/internal/oautherr"
	"github.com/dropDatabas3/portero/internal/resource"
	"github.com/dropDatabas3/portero/internal/store/core"
	"github.com/dropDatabas3/portero/internal/token"
	"github.com/dropDatabas3/portero/internal/tokensvc"
)

// cibaHandler resuelve el grant urn:openid:params:grant-type:ciba contra la
// authentication request registrada por el backchannel endpoint.
//
// Regla dura: el client_id de la request recuperada tiene que ser el del
// client que pide el token. Si no coincide —o la request no existe— el error
// externo es exactamente el mismo, para no revelar cuál mitad falló.
type cibaHandler struct {
	svc     *tokensvc.Service
	backch  core.BackchannelReader
	users   core.UserReader
	pending *oautherr.Error
}

func NewCIBAHandler(svc *tokensvc.Service, backch core.BackchannelReader, users core.UserReader) Handler {
	return &cibaHandler{
		svc:     svc,
		backch:  backch,
		users:   users,
		pending: oautherr.E("authorization_pending", "user has not yet authorized the request"),
	}
}

func (h *cibaHandler) Name() string { return "ciba" }

func (h *cibaHandler) CanHandle(grantType string, client *core.Client, _ *core.Domain) bool {
	return grantType == token.GrantCIBA && client.AllowsGrant(grantType)
}

func (h *cibaHandler) ParseRequest(_ context.Context, ex *Exchange) error {
	if ex.Request.AuthReqID == "" {
		return oautherr.E(oautherr.InvalidRequest, "auth_req_id is required")
	}
	return nil
}

func (h *cibaHandler) ResolveOwner(ctx context.Context, ex *Exchange) error {
	bcr, err := h.backch.GetBackchannelRequest(ctx, ex.Request.AuthReqID)
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			return oautherr.AuthenticationRequestNotFound()
		}
		return err
	}
	if bcr.ClientID != ex.Client.ClientID {
		return oautherr.AuthenticationRequestNotFound()
	}
	switch bcr.Status {
	case core.BackchannelAuthorized:
		// seguimos
	case core.BackchannelPending:
		return h.pending
	default:
		return oautherr.E(oautherr.InvalidGrant, "authentication request was denied")
	}

	// Usuario pre-autenticado grabado contra la request. Cualquier falla de
	// lookup sale como InvalidGrant, nunca el error crudo.
	u, err := h.users.GetUserBySubject(ctx, ex.Domain.ID, bcr.Subject)
	if err != nil {
		return oautherr.E(oautherr.InvalidGrant, "subject could not be resolved")
	}
	ex.User = u
	ex.Subject = bcr.Subject
	ex.Request.Scope = bcr.Scope
	return nil
}

func (h *cibaHandler) Grant(ctx context.Context, ex *Exchange) (*token.Token, error) {
	if err := resource.ValidateRequested(ex.Request.Resources, ex.Domain.ProtectedResources); err != nil {
		return nil, err
	}

	req := &token.OAuth2Request{
		DomainID:        ex.Domain.ID,
		ClientID:        ex.Client.ClientID,
		Subject:         ex.Subject,
		GrantType:       token.GrantCIBA,
		Scope:           ex.Request.Scope,
		Resources:       ex.Request.Resources,
		SupportsRefresh: true,
	}
	issued, err := h.svc.Create(ctx, req, ex.Domain, ex.Client, ex.User)
	if err != nil {
		return nil, err
	}

	if hasScope(ex.Request.Scope, "openid") {
		idt, err := mintPairedIDToken(h.svc, ex, pairedHashes{accessToken: issued.Value})
		if err != nil {
			return nil, err
		}
		ex.IDToken = idt
	}
	return issued, nil
}
