package tokensvc

import (
	"context"
	"errors"
	"testing"
	"time"

	jwtv5 "github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"

	"github.com/dropDatabas3/portero/internal/oautherr"
	"github.com/dropDatabas3/portero/internal/rules"
	"github.com/dropDatabas3/portero/internal/signing"
	"github.com/dropDatabas3/portero/internal/store/core"
	"github.com/dropDatabas3/portero/internal/store/memory"
	"github.com/dropDatabas3/portero/internal/token"
)

const testSecret = "secreto-de-test-hs256"

type fixture struct {
	store  *memory.Store
	svc    *Service
	domain *core.Domain
	client *core.Client
	user   *core.User
}

func newFixture(t *testing.T, hook *rules.Hook) *fixture {
	t.Helper()
	st := memory.New()
	domain := &core.Domain{
		ID:                 "dom-1",
		Slug:               "acme",
		Issuer:             "https://acme.example",
		ProtectedResources: []string{"https://api.example/orders", "https://api.example/billing"},
		AllowRefreshTokens: true,
		DefaultSigningAlg:  "HS256",
	}
	client := &core.Client{
		ID:              "c-1",
		DomainID:        domain.ID,
		ClientID:        "web-app",
		ClientType:      "confidential",
		GrantTypes:      []string{token.GrantAuthorizationCode, token.GrantRefreshToken},
		SupportsRefresh: true,
	}
	user := &core.User{
		ID:       "u-1",
		DomainID: domain.ID,
		Subject:  "user-1",
		Email:    "ana@example.com",
		Claims:   map[string]any{"name": "Ana"},
	}
	st.PutDomain(domain)
	st.PutClient(client)
	st.PutUser(user)

	reg := signing.NewStaticRegistry(
		[]signing.Provider{signing.NewHMACProvider("k1", "HS256", []byte(testSecret))},
		nil, nil,
	)
	svc := New(st, reg, hook, Config{
		AccessTTL:           15 * time.Minute,
		RefreshTTL:          24 * time.Hour,
		ResourceConsistency: true,
	})
	return &fixture{store: st, svc: svc, domain: domain, client: client, user: user}
}

func baseRequest(f *fixture) *token.OAuth2Request {
	return &token.OAuth2Request{
		DomainID:        f.domain.ID,
		ClientID:        f.client.ClientID,
		Subject:         f.user.Subject,
		GrantType:       token.GrantAuthorizationCode,
		Scope:           []string{"openid", "profile"},
		SupportsRefresh: true,
	}
}

func parseClaims(t *testing.T, raw string) jwtv5.MapClaims {
	t.Helper()
	tok, err := jwtv5.Parse(raw, func(*jwtv5.Token) (any, error) { return []byte(testSecret), nil },
		jwtv5.WithValidMethods([]string{"HS256"}))
	require.NoError(t, err)
	return tok.Claims.(jwtv5.MapClaims)
}

func TestCreate_AccessWithPairedRefresh(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	issued, err := f.svc.Create(ctx, baseRequest(f), f.domain, f.client, f.user)
	require.NoError(t, err)
	require.Equal(t, token.KindAccess, issued.Kind)
	require.NotEmpty(t, issued.RefreshToken)

	claims := parseClaims(t, issued.Value)
	require.Equal(t, "https://acme.example", claims["iss"])
	require.Equal(t, "user-1", claims["sub"])
	require.Equal(t, "web-app", claims["client_id"])
	require.Equal(t, "dom-1", claims["did"])
	require.Equal(t, "openid profile", claims["scope"])
	// sin resources ni audience la aud es el client
	require.Equal(t, "web-app", claims["aud"])
	require.NotEmpty(t, claims["jti"])

	// round-trip por introspección: access por valor
	tk, err := f.svc.Introspect(ctx, issued.Value, "")
	require.NoError(t, err)
	require.NotNil(t, tk)
	require.Equal(t, token.KindAccess, tk.Kind)
	require.Equal(t, "user-1", tk.Subject)

	// refresh encontrado con hint equivocado (fallback de dos fases)
	tk, err = f.svc.Introspect(ctx, issued.RefreshToken, HintAccessToken)
	require.NoError(t, err)
	require.NotNil(t, tk)
	require.Equal(t, token.KindRefresh, tk.Kind)
}

func TestCreate_RefreshGating(t *testing.T) {
	ctx := context.Background()

	// el grant no soporta refresh
	f := newFixture(t, nil)
	req := baseRequest(f)
	req.SupportsRefresh = false
	issued, err := f.svc.Create(ctx, req, f.domain, f.client, f.user)
	require.NoError(t, err)
	require.Empty(t, issued.RefreshToken)

	// el domain lo tiene apagado
	f = newFixture(t, nil)
	f.domain.AllowRefreshTokens = false
	issued, err = f.svc.Create(ctx, baseRequest(f), f.domain, f.client, f.user)
	require.NoError(t, err)
	require.Empty(t, issued.RefreshToken)

	// el client lo tiene apagado
	f = newFixture(t, nil)
	f.client.SupportsRefresh = false
	issued, err = f.svc.Create(ctx, baseRequest(f), f.domain, f.client, f.user)
	require.NoError(t, err)
	require.Empty(t, issued.RefreshToken)
}

func TestCreate_ResourcesBecomeAudience(t *testing.T) {
	f := newFixture(t, nil)
	req := baseRequest(f)
	req.Resources = []string{"https://api.example/orders"}

	issued, err := f.svc.Create(context.Background(), req, f.domain, f.client, f.user)
	require.NoError(t, err)
	claims := parseClaims(t, issued.Value)
	aud, ok := claims["aud"].([]any)
	require.True(t, ok, "aud must be a list when resources are present")
	require.Equal(t, []any{"https://api.example/orders"}, aud)
}

func TestCreate_ExchangeTTLCap(t *testing.T) {
	f := newFixture(t, nil)
	req := baseRequest(f)
	req.SupportsRefresh = false
	req.ExchangeTTL = time.Minute

	issued, err := f.svc.Create(context.Background(), req, f.domain, f.client, f.user)
	require.NoError(t, err)
	require.LessOrEqual(t, issued.ExpiresIn(), int64(60))
}

func TestCreate_ExchangedIDVariant(t *testing.T) {
	f := newFixture(t, nil)
	f.client.RequestedClaims = []string{"name"}
	req := baseRequest(f)
	req.SupportsRefresh = false
	req.ExchangedID = true
	req.IssuedTokenTyp = token.TypeIDToken

	issued, err := f.svc.Create(context.Background(), req, f.domain, f.client, f.user)
	require.NoError(t, err)
	require.Equal(t, token.KindExchangedID, issued.Kind)
	require.Empty(t, issued.RefreshToken, "exchanged ID tokens never pair a refresh")

	claims := parseClaims(t, issued.Value)
	require.Equal(t, "https://acme.example", claims["iss"])
	require.Equal(t, "web-app", claims["aud"])
	require.Equal(t, "Ana", claims["name"])

	resp := issued.Response()
	require.Len(t, resp, 4)
	require.Equal(t, token.TypeIDToken, resp["issued_token_type"])
}

// abortEngine falla PRE_TOKEN; swallowEngine falla POST_TOKEN.
type abortEngine struct{}

func (abortEngine) Fire(_ context.Context, fc *rules.FiredContext) error {
	if fc.Point == rules.PreToken {
		return oautherr.E(oautherr.InvalidRequest, "policy rejected the mint")
	}
	return nil
}

type postFailEngine struct{ fired *bool }

func (e postFailEngine) Fire(_ context.Context, fc *rules.FiredContext) error {
	if fc.Point == rules.PostToken {
		*e.fired = true
		return errors.New("post hook exploded")
	}
	return nil
}

type injectEngine struct{}

func (injectEngine) Fire(_ context.Context, fc *rules.FiredContext) error {
	if fc.Point == rules.PreToken {
		fc.Attributes["tier"] = "gold"
		fc.Attributes["iss"] = "https://evil.example"
	}
	return nil
}

func TestCreate_PreHookAborts(t *testing.T) {
	f := newFixture(t, rules.NewHook(abortEngine{}))
	_, err := f.svc.Create(context.Background(), baseRequest(f), f.domain, f.client, f.user)
	require.Error(t, err)
	require.True(t, oautherr.Is(err, oautherr.InvalidRequest))
}

func TestCreate_PostHookErrorsAreSwallowed(t *testing.T) {
	var fired bool
	f := newFixture(t, rules.NewHook(postFailEngine{fired: &fired}))
	issued, err := f.svc.Create(context.Background(), baseRequest(f), f.domain, f.client, f.user)
	require.NoError(t, err, "POST_TOKEN failures must never fail the mint")
	require.NotNil(t, issued)
	require.True(t, fired)
}

func TestCreate_PreHookInjectsAttributes(t *testing.T) {
	f := newFixture(t, rules.NewHook(injectEngine{}))
	issued, err := f.svc.Create(context.Background(), baseRequest(f), f.domain, f.client, f.user)
	require.NoError(t, err)

	claims := parseClaims(t, issued.Value)
	require.Equal(t, "gold", claims["tier"])
	require.Equal(t, "https://acme.example", claims["iss"], "attributes must not override standard claims")
	require.Equal(t, "gold", issued.AdditionalInfo["tier"])
}

func TestRefresh_NarrowingOnly(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	first, err := f.svc.Create(ctx, baseRequest(f), f.domain, f.client, f.user)
	require.NoError(t, err)

	// achicar está permitido
	issued, err := f.svc.Refresh(ctx, first.RefreshToken, &token.TokenRequest{Scope: []string{"openid"}}, f.domain, f.client)
	require.NoError(t, err)
	require.Equal(t, []string{"openid"}, issued.Scope)
	require.NotEmpty(t, issued.RefreshToken)
	require.NotEqual(t, first.RefreshToken, issued.RefreshToken, "refresh must rotate")

	// agrandar no
	second := issued.RefreshToken
	_, err = f.svc.Refresh(ctx, second, &token.TokenRequest{Scope: []string{"openid", "admin"}}, f.domain, f.client)
	require.True(t, oautherr.Is(err, oautherr.InvalidGrant))
}

func TestRefresh_EmptyScopeInherits(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	first, err := f.svc.Create(ctx, baseRequest(f), f.domain, f.client, f.user)
	require.NoError(t, err)

	issued, err := f.svc.Refresh(ctx, first.RefreshToken, &token.TokenRequest{}, f.domain, f.client)
	require.NoError(t, err)
	require.ElementsMatch(t, []string{"openid", "profile"}, issued.Scope)
}

func TestRefresh_RotatedTokenCannotBeReused(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	first, err := f.svc.Create(ctx, baseRequest(f), f.domain, f.client, f.user)
	require.NoError(t, err)

	_, err = f.svc.Refresh(ctx, first.RefreshToken, &token.TokenRequest{}, f.domain, f.client)
	require.NoError(t, err)

	// el refresh viejo quedó revocado por la rotación
	_, err = f.svc.Refresh(ctx, first.RefreshToken, &token.TokenRequest{}, f.domain, f.client)
	require.True(t, oautherr.Is(err, oautherr.InvalidGrant))
}

func TestRefresh_WrongClient(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	first, err := f.svc.Create(ctx, baseRequest(f), f.domain, f.client, f.user)
	require.NoError(t, err)

	other := &core.Client{ID: "c-2", DomainID: f.domain.ID, ClientID: "other-app", SupportsRefresh: true}
	_, err = f.svc.Refresh(ctx, first.RefreshToken, &token.TokenRequest{}, f.domain, other)
	require.True(t, oautherr.Is(err, oautherr.InvalidGrant))
}

func TestRefresh_ResourceConsistency(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	req := baseRequest(f)
	req.Resources = []string{"https://api.example/orders"}
	first, err := f.svc.Create(ctx, req, f.domain, f.client, f.user)
	require.NoError(t, err)

	// subconjunto pasa
	_, err = f.svc.Refresh(ctx, first.RefreshToken, &token.TokenRequest{
		Resources: []string{"https://api.example/orders"},
	}, f.domain, f.client)
	require.NoError(t, err)

	// pedir un resource que el refresh no tenía falla con invalid_target
	req2 := baseRequest(f)
	req2.Resources = []string{"https://api.example/orders"}
	again, err := f.svc.Create(ctx, req2, f.domain, f.client, f.user)
	require.NoError(t, err)
	_, err = f.svc.Refresh(ctx, again.RefreshToken, &token.TokenRequest{
		Resources: []string{"https://api.example/billing"},
	}, f.domain, f.client)
	require.True(t, oautherr.Is(err, oautherr.InvalidResource))
}

// denyRefreshEngine aborta PRE_TOKEN solo para el grant de refresh, y solo
// mientras deny esté prendido.
type denyRefreshEngine struct{ deny *bool }

func (e denyRefreshEngine) Fire(_ context.Context, fc *rules.FiredContext) error {
	if fc.Point == rules.PreToken && *e.deny && fc.Request.GrantType == token.GrantRefreshToken {
		return oautherr.E(oautherr.InvalidRequest, "refresh denied by policy")
	}
	return nil
}

func TestRefresh_FailedMintDoesNotRotate(t *testing.T) {
	deny := false
	f := newFixture(t, rules.NewHook(denyRefreshEngine{deny: &deny}))
	ctx := context.Background()
	first, err := f.svc.Create(ctx, baseRequest(f), f.domain, f.client, f.user)
	require.NoError(t, err)

	deny = true
	_, err = f.svc.Refresh(ctx, first.RefreshToken, &token.TokenRequest{}, f.domain, f.client)
	require.True(t, oautherr.Is(err, oautherr.InvalidRequest))

	// el refresh original sigue vivo: la rotación no puede correr antes de
	// que el mint pase el hook
	tk, err := f.svc.Introspect(ctx, first.RefreshToken, HintRefreshToken)
	require.NoError(t, err)
	require.NotNil(t, tk, "a failed refresh must not revoke the original token")

	deny = false
	issued, err := f.svc.Refresh(ctx, first.RefreshToken, &token.TokenRequest{}, f.domain, f.client)
	require.NoError(t, err, "the same token must still redeem once policy allows")
	require.NotEmpty(t, issued.RefreshToken)
}

func TestRefresh_UnknownToken(t *testing.T) {
	f := newFixture(t, nil)
	_, err := f.svc.Refresh(context.Background(), "no-existe", &token.TokenRequest{}, f.domain, f.client)
	require.True(t, oautherr.Is(err, oautherr.InvalidGrant))
}

func TestIntrospect_UnknownIsNilNil(t *testing.T) {
	f := newFixture(t, nil)
	tk, err := f.svc.Introspect(context.Background(), "nunca-emitido", "")
	require.NoError(t, err)
	require.Nil(t, tk)
}

func TestIntrospect_SkipsRevokedRefresh(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	first, err := f.svc.Create(ctx, baseRequest(f), f.domain, f.client, f.user)
	require.NoError(t, err)

	_, err = f.svc.Refresh(ctx, first.RefreshToken, &token.TokenRequest{}, f.domain, f.client)
	require.NoError(t, err)

	tk, err := f.svc.Introspect(ctx, first.RefreshToken, HintRefreshToken)
	require.NoError(t, err)
	require.Nil(t, tk, "a rotated-out refresh token is inactive")
}

func TestDelete_Idempotent(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	issued, err := f.svc.Create(ctx, baseRequest(f), f.domain, f.client, f.user)
	require.NoError(t, err)

	require.NoError(t, f.svc.DeleteAccessToken(ctx, issued.Value))
	require.NoError(t, f.svc.DeleteAccessToken(ctx, issued.Value), "second delete must also succeed")
	tk, err := f.svc.Introspect(ctx, issued.Value, HintAccessToken)
	require.NoError(t, err)
	require.Nil(t, tk)

	require.NoError(t, f.svc.DeleteRefreshToken(ctx, issued.RefreshToken))
	require.NoError(t, f.svc.DeleteRefreshToken(ctx, issued.RefreshToken))
}

func TestSelectProvider_ClientAlgWins(t *testing.T) {
	st := memory.New()
	hs256 := signing.NewHMACProvider("k1", "HS256", []byte(testSecret))
	hs512 := signing.NewHMACProvider("k2", "HS512", []byte(testSecret))
	reg := signing.NewStaticRegistry([]signing.Provider{hs256, hs512}, nil, hs256)
	svc := New(st, reg, nil, Config{})

	domain := &core.Domain{DefaultSigningAlg: "HS256"}
	client := &core.Client{SigningAlg: "HS512"}
	p, err := svc.SelectProvider(client, domain)
	require.NoError(t, err)
	require.Equal(t, "HS512", p.Alg())

	client.SigningAlg = ""
	p, err = svc.SelectProvider(client, domain)
	require.NoError(t, err)
	require.Equal(t, "HS256", p.Alg())
}
