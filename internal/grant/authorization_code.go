package grant

import (
	"context"
	"strings"

	"github.com/dropDatabas3/portero/internal/idtoken"
	"github.com/dropDatabas3/portero/internal/oautherr"
	"github.com/dropDatabas3/portero/internal/resource"
	tokens "github.com/dropDatabas3/portero/internal/security/token"
	"github.com/dropDatabas3/portero/internal/store/core"
	"github.com/dropDatabas3/portero/internal/token"
	"github.com/dropDatabas3/portero/internal/tokensvc"
)

// authorizationCodeHandler canjea un authorization code (con PKCE S256) por
// access token + refresh + id_token si el scope incluye openid.
type authorizationCodeHandler struct {
	svc   *tokensvc.Service
	codes *Codes
	users core.UserReader
}

func NewAuthorizationCodeHandler(svc *tokensvc.Service, codes *Codes, users core.UserReader) Handler {
	return &authorizationCodeHandler{svc: svc, codes: codes, users: users}
}

func (h *authorizationCodeHandler) Name() string { return "authorization_code" }

func (h *authorizationCodeHandler) CanHandle(grantType string, client *core.Client, _ *core.Domain) bool {
	return grantType == token.GrantAuthorizationCode && client.AllowsGrant(grantType)
}

func (h *authorizationCodeHandler) ParseRequest(_ context.Context, ex *Exchange) error {
	r := ex.Request
	if r.Code == "" || r.RedirectURI == "" || r.CodeVerifier == "" {
		return oautherr.E(oautherr.InvalidRequest, "code, redirect_uri and code_verifier are required")
	}
	return nil
}

func (h *authorizationCodeHandler) ResolveOwner(ctx context.Context, ex *Exchange) error {
	ac, err := h.codes.Consume(ctx, ex.Request.Code)
	if err != nil {
		return err
	}
	if ac == nil {
		return oautherr.E(oautherr.InvalidGrant, "invalid authorization code")
	}
	// Coherencia client/redirect_uri con lo autorizado.
	if ac.ClientID != ex.Client.ClientID || ac.RedirectURI != ex.Request.RedirectURI {
		return oautherr.E(oautherr.InvalidGrant, "client or redirect_uri mismatch")
	}
	// PKCE S256
	if !strings.EqualFold(ac.ChallengeMethod, "S256") ||
		!tokens.ConstantTimeEqual(ac.CodeChallenge, tokens.SHA256Base64URL(ex.Request.CodeVerifier)) {
		return oautherr.E(oautherr.InvalidGrant, "PKCE verification failed")
	}

	// El subject ya se resolvió en el paso de autorización: pasa sin tocar.
	ex.Subject = ac.Subject
	if u, err := h.users.GetUserBySubject(ctx, ex.Domain.ID, ac.Subject); err == nil {
		ex.User = u
	}
	ex.Request.Scope = ac.Scope
	ex.Request.Nonce = ac.Nonce
	// Los recursos autorizados quedan disponibles para el chequeo subset.
	ex.Request.State = ac.State
	ex.authorized = ac.Resources
	return nil
}

func (h *authorizationCodeHandler) Grant(ctx context.Context, ex *Exchange) (*token.Token, error) {
	resources, err := resource.ValidateConsistency(ex.Request.Resources, ex.authorized, h.svc.ResourceConsistencyEnabled())
	if err != nil {
		return nil, err
	}
	if len(resources) == 0 {
		resources = ex.authorized
	}
	// El subset no alcanza: lo efectivo también tiene que estar registrado
	// en el domain, aunque venga arrastrado desde el code.
	if err := resource.ValidateRequested(resources, ex.Domain.ProtectedResources); err != nil {
		return nil, err
	}

	req := &token.OAuth2Request{
		DomainID:        ex.Domain.ID,
		ClientID:        ex.Client.ClientID,
		Subject:         ex.Subject,
		GrantType:       token.GrantAuthorizationCode,
		Scope:           ex.Request.Scope,
		Resources:       resources,
		SupportsRefresh: true,
	}
	issued, err := h.svc.Create(ctx, req, ex.Domain, ex.Client, ex.User)
	if err != nil {
		return nil, err
	}

	if hasScope(ex.Request.Scope, "openid") {
		idt, err := mintPairedIDToken(h.svc, ex, pairedHashes{accessToken: issued.Value, nonce: ex.Request.Nonce})
		if err != nil {
			return nil, err
		}
		ex.IDToken = idt
	}
	return issued, nil
}

func hasScope(scope []string, want string) bool {
	for _, sc := range scope {
		if sc == want {
			return true
		}
	}
	return false
}

// pairedHashes son los payloads de binding del ID token pareado. Vacío = ese
// hash no se emite.
type pairedHashes struct {
	accessToken string // → at_hash
	code        string // → c_hash
	state       string // → s_hash
	nonce       string
}

// mintPairedIDToken emite el ID token pareado del response usando el MISMO
// provider que firmó (o firmaría) el access token del response.
func mintPairedIDToken(svc *tokensvc.Service, ex *Exchange, ph pairedHashes) (string, error) {
	provider, err := svc.SelectProvider(ex.Client, ex.Domain)
	if err != nil {
		return "", err
	}
	var userClaims map[string]any
	if ex.User != nil {
		userClaims = ex.User.Claims
	}
	idt, _, err := idtoken.Issue(idtoken.Input{
		Provider:        provider,
		Issuer:          ex.Domain.Issuer,
		Subject:         ex.Subject,
		ClientID:        ex.Client.ClientID,
		TTL:             svc.IDTokenTTL(),
		Nonce:           ph.nonce,
		UserClaims:      userClaims,
		RequestedClaims: ex.Client.RequestedClaims,
		AccessToken:     ph.accessToken,
		Code:            ph.code,
		State:           ph.state,
	})
	return idt, err
}
