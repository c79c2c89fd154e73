package grant

import (
	"context"

	"github.com/dropDatabas3/portero/internal/oautherr"
	"github.com/dropDatabas3/portero/internal/resource"
	"github.com/dropDatabas3/portero/internal/store/core"
	"github.com/dropDatabas3/portero/internal/token"
	"github.com/dropDatabas3/portero/internal/tokensvc"
)

// tokenExchangeHandler implementa RFC 8693. Apagado por domain por defecto:
// el predicado rechaza aun para su grant nominal si el domain no lo habilitó.
//
// Produce un access token, o un ExchangedIDToken si piden id_token. En ambos
// casos el refresh queda deshabilitado sin importar la config del client, y
// la expiración se acota con el tope de exchange del domain.
type tokenExchangeHandler struct {
	svc   *tokensvc.Service
	users core.UserReader
}

func NewTokenExchangeHandler(svc *tokensvc.Service, users core.UserReader) Handler {
	return &tokenExchangeHandler{svc: svc, users: users}
}

func (h *tokenExchangeHandler) Name() string { return "token_exchange" }

func (h *tokenExchangeHandler) CanHandle(grantType string, client *core.Client, domain *core.Domain) bool {
	return grantType == token.GrantTokenExchange &&
		domain.TokenExchangeEnabled &&
		client.AllowsGrant(grantType)
}

func (h *tokenExchangeHandler) ParseRequest(_ context.Context, ex *Exchange) error {
	r := ex.Request
	if r.SubjectToken == "" || r.SubjectTokenType == "" {
		return oautherr.E(oautherr.InvalidRequest, "subject_token and subject_token_type are required")
	}
	switch r.SubjectTokenType {
	case token.TypeAccessToken, token.TypeRefreshToken, token.TypeJWT:
		return nil
	default:
		return oautherr.Ef(oautherr.InvalidRequest, "unsupported subject_token_type %q", r.SubjectTokenType)
	}
}

func (h *tokenExchangeHandler) ResolveOwner(ctx context.Context, ex *Exchange) error {
	hint := tokensvc.HintAccessToken
	if ex.Request.SubjectTokenType == token.TypeRefreshToken {
		hint = tokensvc.HintRefreshToken
	}
	subject, err := h.svc.Introspect(ctx, ex.Request.SubjectToken, hint)
	if err != nil {
		return err
	}
	if subject == nil {
		return oautherr.E(oautherr.InvalidGrant, "subject token is invalid or expired")
	}
	ex.Subject = subject.Subject
	if u, err := h.users.GetUserBySubject(ctx, ex.Domain.ID, subject.Subject); err == nil {
		ex.User = u
	}
	// El scope del token nuevo parte del scope del token sujeto.
	ex.authorized = subject.Scope
	return nil
}

func (h *tokenExchangeHandler) Grant(ctx context.Context, ex *Exchange) (*token.Token, error) {
	if err := resource.ValidateRequested(ex.Request.Resources, ex.Domain.ProtectedResources); err != nil {
		return nil, err
	}

	scope := ex.Request.Scope
	if len(scope) == 0 {
		scope = ex.authorized
	} else if err := scopeAllowed(scope, ex.authorized); err != nil {
		return nil, oautherr.E(oautherr.InvalidScope, "requested scope exceeds subject token")
	}

	wantsIDToken := ex.Request.RequestedTokenType == token.TypeIDToken

	req := &token.OAuth2Request{
		DomainID:  ex.Domain.ID,
		ClientID:  ex.Client.ClientID,
		Subject:   ex.Subject,
		GrantType: token.GrantTokenExchange,
		Scope:     scope,
		Resources: ex.Request.Resources,
		Audience:  ex.Request.Audience,

		// Refresh apagado por contrato, gane lo que gane el client.
		SupportsRefresh: false,
		IssuedTokenTyp:  token.TypeAccessToken,
		ExchangeTTL:     ex.Domain.ExchangeMaxTTL,
		ExchangedID:     wantsIDToken,
	}
	if wantsIDToken {
		req.IssuedTokenTyp = token.TypeIDToken
		req.Scope = nil // la variante exchanged-ID no transporta scope
	}
	return h.svc.Create(ctx, req, ex.Domain, ex.Client, ex.User)
}
