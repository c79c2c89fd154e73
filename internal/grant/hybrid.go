package grant

import (
	"context"
	"strings"

	"github.com/dropDatabas3/portero/internal/oautherr"
	"github.com/dropDatabas3/portero/internal/resource"
	"github.com/dropDatabas3/portero/internal/store/core"
	"github.com/dropDatabas3/portero/internal/token"
	"github.com/dropDatabas3/portero/internal/tokensvc"
)

// hybridHandler es el leg de tokens del flujo híbrido OIDC, invocado desde
// el authorization endpoint con un usuario ya autenticado.
//
// Siempre emite primero el authorization code. Para response_type
// "code id_token" además emite un ID token en este mismo leg, con c_hash
// atando el code; para los otros response types híbridos emite un access
// token en este leg en su lugar. El canje posterior del code pasa por el
// handler de authorization_code como siempre.
type hybridHandler struct {
	svc   *tokensvc.Service
	codes *Codes
	users core.UserReader
}

func NewHybridHandler(svc *tokensvc.Service, codes *Codes, users core.UserReader) Handler {
	return &hybridHandler{svc: svc, codes: codes, users: users}
}

func (h *hybridHandler) Name() string { return "hybrid" }

func (h *hybridHandler) CanHandle(grantType string, client *core.Client, _ *core.Domain) bool {
	return grantType == token.GrantHybrid && client.AllowsGrant(token.GrantAuthorizationCode)
}

func (h *hybridHandler) ParseRequest(_ context.Context, ex *Exchange) error {
	r := ex.Request
	parts := strings.Fields(r.ResponseType)
	if len(parts) < 2 || !containsStr(parts, "code") {
		return oautherr.E(oautherr.InvalidRequest, "hybrid flow requires a composite response_type with code")
	}
	if r.RedirectURI == "" {
		return oautherr.E(oautherr.InvalidRequest, "redirect_uri is required")
	}
	if r.SubjectHint == "" {
		return oautherr.E(oautherr.InvalidRequest, "authenticated subject is required")
	}
	return nil
}

func (h *hybridHandler) ResolveOwner(ctx context.Context, ex *Exchange) error {
	// El subject ya lo autenticó el authorization endpoint; acá solo se
	// materializa el usuario.
	u, err := h.users.GetUserBySubject(ctx, ex.Domain.ID, ex.Request.SubjectHint)
	if err != nil {
		return oautherr.E(oautherr.InvalidGrant, "subject could not be resolved")
	}
	ex.User = u
	ex.Subject = u.Subject
	return nil
}

// Grant devuelve el access token del leg cuando el response type lo incluye;
// para "code id_token" devuelve token nil y deja code + id_token en ex.
func (h *hybridHandler) Grant(ctx context.Context, ex *Exchange) (*token.Token, error) {
	if err := resource.ValidateRequested(ex.Request.Resources, ex.Domain.ProtectedResources); err != nil {
		return nil, err
	}

	// El code sale siempre, pase lo que pase con el resto del leg.
	code, err := h.codes.Issue(ctx, &AuthorizationCode{
		DomainID:        ex.Domain.ID,
		ClientID:        ex.Client.ClientID,
		Subject:         ex.Subject,
		Scope:           ex.Request.Scope,
		Resources:       ex.Request.Resources,
		RedirectURI:     ex.Request.RedirectURI,
		CodeChallenge:   ex.Request.CodeChallenge,
		ChallengeMethod: ex.Request.ChallengeMethod,
		Nonce:           ex.Request.Nonce,
		State:           ex.Request.State,
	})
	if err != nil {
		return nil, err
	}
	ex.Code = code

	parts := strings.Fields(ex.Request.ResponseType)
	if containsStr(parts, "id_token") && !containsStr(parts, "token") {
		// "code id_token": ID token en el leg de autorización, c_hash = code.
		idt, err := mintPairedIDToken(h.svc, ex, pairedHashes{
			code:  code,
			state: ex.Request.State,
			nonce: ex.Request.Nonce,
		})
		if err != nil {
			return nil, err
		}
		ex.IDToken = idt
		return nil, nil
	}

	// Otros response types híbridos: access token en el leg de autorización.
	req := &token.OAuth2Request{
		DomainID:  ex.Domain.ID,
		ClientID:  ex.Client.ClientID,
		Subject:   ex.Subject,
		GrantType: token.GrantHybrid,
		Scope:     ex.Request.Scope,
		Resources: ex.Request.Resources,
	}
	issued, err := h.svc.Create(ctx, req, ex.Domain, ex.Client, ex.User)
	if err != nil {
		return nil, err
	}

	if containsStr(parts, "id_token") {
		// "code id_token token": ambos hashes.
		idt, err := mintPairedIDToken(h.svc, ex, pairedHashes{
			accessToken: issued.Value,
			code:        code,
			state:       ex.Request.State,
			nonce:       ex.Request.Nonce,
		})
		if err != nil {
			return nil, err
		}
		ex.IDToken = idt
	}
	return issued, nil
}

func containsStr(vs []string, want string) bool {
	for _, v := range vs {
		if v == want {
			return true
		}
	}
	return false
}
