package grant

import (
	"context"

	"github.com/dropDatabas3/portero/internal/oautherr"
	"github.com/dropDatabas3/portero/internal/resource"
	"github.com/dropDatabas3/portero/internal/store/core"
	"github.com/dropDatabas3/portero/internal/token"
	"github.com/dropDatabas3/portero/internal/tokensvc"
)

// AssertionVerifier verifica la assertion externa de un extension grant
// (JWT-bearer o similar) y devuelve subject + claims. Colaborador externo,
// enchufable por domain.
type AssertionVerifier interface {
	Verify(ctx context.Context, assertion string, domain *core.Domain) (subject string, claims map[string]any, err error)
}

// extensionHandler corre el extension grant configurado en el domain. El
// identificador de grant es configurable (domain.ExtensionGrantType); el
// predicado solo acepta si el domain tiene uno configurado.
type extensionHandler struct {
	svc      *tokensvc.Service
	verifier AssertionVerifier
	users    core.UserReader

	// mappedClaims son los nombres de claims de la assertion que se copian
	// al additional-information del usuario resultante.
	mappedClaims []string
}

func NewExtensionHandler(svc *tokensvc.Service, verifier AssertionVerifier, users core.UserReader, mappedClaims []string) Handler {
	return &extensionHandler{svc: svc, verifier: verifier, users: users, mappedClaims: mappedClaims}
}

func (h *extensionHandler) Name() string { return "extension" }

func (h *extensionHandler) CanHandle(grantType string, client *core.Client, domain *core.Domain) bool {
	return domain.ExtensionGrantType != "" &&
		grantType == domain.ExtensionGrantType &&
		client.AllowsGrant(grantType)
}

func (h *extensionHandler) ParseRequest(_ context.Context, ex *Exchange) error {
	if ex.Request.Assertion == "" {
		return oautherr.E(oautherr.InvalidRequest, "assertion is required")
	}
	return nil
}

func (h *extensionHandler) ResolveOwner(ctx context.Context, ex *Exchange) error {
	subject, claims, err := h.verifier.Verify(ctx, ex.Request.Assertion, ex.Domain)
	if err != nil {
		// La causa real queda en el server; afuera solo invalid_grant.
		return oautherr.E(oautherr.InvalidGrant, "assertion verification failed")
	}
	ex.Subject = subject
	if u, err := h.users.GetUserBySubject(ctx, ex.Domain.ID, subject); err == nil {
		ex.User = u
	}
	// Claims mapper: copia los claims configurados de la assertion.
	ex.mapped = map[string]any{}
	for _, name := range h.mappedClaims {
		if v, ok := claims[name]; ok {
			ex.mapped[name] = v
		}
	}
	return nil
}

func (h *extensionHandler) Grant(ctx context.Context, ex *Exchange) (*token.Token, error) {
	if err := resource.ValidateRequested(ex.Request.Resources, ex.Domain.ProtectedResources); err != nil {
		return nil, err
	}

	req := &token.OAuth2Request{
		DomainID:        ex.Domain.ID,
		ClientID:        ex.Client.ClientID,
		Subject:         ex.Subject,
		GrantType:       ex.Request.GrantType,
		Scope:           ex.Request.Scope,
		Resources:       ex.Request.Resources,
		SupportsRefresh: true,
	}
	for k, v := range ex.mapped {
		req.SetAttribute(k, v)
	}
	return h.svc.Create(ctx, req, ex.Domain, ex.Client, ex.User)
}
