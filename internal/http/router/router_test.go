package router

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/dropDatabas3/portero/internal/app"
	"github.com/dropDatabas3/portero/internal/cache"
	"github.com/dropDatabas3/portero/internal/grant"
	"github.com/dropDatabas3/portero/internal/introspect"
	tokens "github.com/dropDatabas3/portero/internal/security/token"
	"github.com/dropDatabas3/portero/internal/signing"
	"github.com/dropDatabas3/portero/internal/store/core"
	"github.com/dropDatabas3/portero/internal/store/memory"
	"github.com/dropDatabas3/portero/internal/token"
	"github.com/dropDatabas3/portero/internal/tokensvc"
)

const clientSecret = "secreto-del-cliente"

func newServer(t *testing.T) (*httptest.Server, *memory.Store) {
	t.Helper()
	st := memory.New()
	domain := &core.Domain{
		ID:                 "dom-1",
		Slug:               "acme",
		Issuer:             "https://acme.example",
		AllowRefreshTokens: true,
		DefaultSigningAlg:  "HS256",
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(clientSecret), bcrypt.MinCost)
	require.NoError(t, err)
	secretHash := string(hash)
	st.PutDomain(domain)
	st.PutClient(&core.Client{
		ID:         "c-1",
		DomainID:   domain.ID,
		ClientID:   "web-app",
		ClientType: "confidential",
		SecretHash: &secretHash,
		GrantTypes: []string{
			token.GrantAuthorizationCode,
			token.GrantClientCredentials,
			token.GrantRefreshToken,
		},
		Scopes:          []string{"openid", "profile"},
		SupportsRefresh: true,
	})
	st.PutUser(&core.User{
		ID:       "u-1",
		DomainID: domain.ID,
		Subject:  "user-1",
		Claims:   map[string]any{"name": "Ana"},
	})

	reg := signing.NewStaticRegistry(
		[]signing.Provider{signing.NewHMACProvider("k1", "HS256", []byte("secreto-hs"))},
		nil, nil,
	)
	svc := tokensvc.New(st, reg, nil, tokensvc.Config{
		AccessTTL:           15 * time.Minute,
		RefreshTTL:          24 * time.Hour,
		IDTokenTTL:          time.Hour,
		ResourceConsistency: true,
	})
	codes := grant.NewCodes(cache.NewMemory("t"), 2*time.Minute)
	dispatcher := grant.NewDispatcher(
		grant.NewAuthorizationCodeHandler(svc, codes, st),
		grant.NewClientCredentialsHandler(svc),
		grant.NewRefreshHandler(svc),
		grant.NewHybridHandler(svc, codes, st),
	)

	c := &app.Container{
		Store:      st,
		Cache:      cache.NewMemory("t"),
		Signers:    reg,
		TokenSvc:   svc,
		Dispatcher: dispatcher,
		Introspect: introspect.New(svc),
		Codes:      codes,
	}
	srv := httptest.NewServer(New(c))
	t.Cleanup(srv.Close)
	return srv, st
}

func postForm(t *testing.T, srv *httptest.Server, path string, form url.Values) (int, map[string]any) {
	t.Helper()
	resp, err := http.Post(srv.URL+path, "application/x-www-form-urlencoded",
		strings.NewReader(form.Encode()))
	require.NoError(t, err)
	defer resp.Body.Close()

	var body map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	return resp.StatusCode, body
}

func TestTokenEndpoint_ClientCredentials(t *testing.T) {
	srv, _ := newServer(t)
	status, body := postForm(t, srv, "/d/acme/oauth/token", url.Values{
		"grant_type":    {"client_credentials"},
		"client_id":     {"web-app"},
		"client_secret": {clientSecret},
	})
	require.Equal(t, http.StatusOK, status)
	require.NotEmpty(t, body["access_token"])
	require.Equal(t, "Bearer", body["token_type"])
	require.NotContains(t, body, "refresh_token")
}

func TestTokenEndpoint_UnknownDomain(t *testing.T) {
	srv, _ := newServer(t)
	status, body := postForm(t, srv, "/d/nadie/oauth/token", url.Values{
		"grant_type": {"client_credentials"},
		"client_id":  {"web-app"},
	})
	require.Equal(t, http.StatusNotFound, status)
	require.Equal(t, "invalid_request", body["error"])
}

func TestTokenEndpoint_BadClientSecret(t *testing.T) {
	srv, _ := newServer(t)
	status, body := postForm(t, srv, "/d/acme/oauth/token", url.Values{
		"grant_type":    {"client_credentials"},
		"client_id":     {"web-app"},
		"client_secret": {"equivocado"},
	})
	require.Equal(t, http.StatusUnauthorized, status)
	require.Equal(t, "invalid_client", body["error"])
}

func TestTokenEndpoint_HybridIsNotAWireGrant(t *testing.T) {
	srv, _ := newServer(t)
	status, body := postForm(t, srv, "/d/acme/oauth/token", url.Values{
		"grant_type":    {"hybrid"},
		"client_id":     {"web-app"},
		"client_secret": {clientSecret},
	})
	require.Equal(t, http.StatusBadRequest, status)
	require.Equal(t, "unsupported_grant_type", body["error"])
}

func TestTokenEndpoint_MalformedScope(t *testing.T) {
	srv, _ := newServer(t)
	status, body := postForm(t, srv, "/d/acme/oauth/token", url.Values{
		"grant_type":    {"client_credentials"},
		"client_id":     {"web-app"},
		"client_secret": {clientSecret},
		"scope":         {"OpenID!"},
	})
	require.Equal(t, http.StatusBadRequest, status)
	require.Equal(t, "invalid_scope", body["error"])
}

func TestAuthorizeThenRedeemCode(t *testing.T) {
	srv, _ := newServer(t)

	status, body := postForm(t, srv, "/d/acme/oauth/authorize", url.Values{
		"response_type":         {"code"},
		"client_id":             {"web-app"},
		"client_secret":         {clientSecret},
		"subject":               {"user-1"},
		"redirect_uri":          {"https://app.example/cb"},
		"scope":                 {"openid profile"},
		"state":                 {"st-1"},
		"code_challenge":        {tokens.SHA256Base64URL("un-verifier")},
		"code_challenge_method": {"S256"},
	})
	require.Equal(t, http.StatusOK, status)
	require.Equal(t, "st-1", body["state"])
	code, _ := body["code"].(string)
	require.NotEmpty(t, code)

	status, body = postForm(t, srv, "/d/acme/oauth/token", url.Values{
		"grant_type":    {"authorization_code"},
		"client_id":     {"web-app"},
		"client_secret": {clientSecret},
		"code":          {code},
		"redirect_uri":  {"https://app.example/cb"},
		"code_verifier": {"un-verifier"},
	})
	require.Equal(t, http.StatusOK, status)
	require.NotEmpty(t, body["access_token"])
	require.NotEmpty(t, body["refresh_token"])
	require.NotEmpty(t, body["id_token"], "openid scope pairs an ID token")
}

func TestAuthorize_UnregisteredResourceRejected(t *testing.T) {
	srv, _ := newServer(t)
	// el domain no registró resources: cualquier resource pedido rebota antes
	// de que se emita el code
	status, body := postForm(t, srv, "/d/acme/oauth/authorize", url.Values{
		"response_type":         {"code"},
		"client_id":             {"web-app"},
		"client_secret":         {clientSecret},
		"subject":               {"user-1"},
		"redirect_uri":          {"https://app.example/cb"},
		"scope":                 {"openid"},
		"resource":              {"https://evil.example/api"},
		"code_challenge":        {tokens.SHA256Base64URL("un-verifier")},
		"code_challenge_method": {"S256"},
	})
	require.Equal(t, http.StatusBadRequest, status)
	require.Equal(t, "invalid_target", body["error"])
}

func TestAuthorize_HybridCodeIDToken(t *testing.T) {
	srv, _ := newServer(t)
	status, body := postForm(t, srv, "/d/acme/oauth/authorize", url.Values{
		"response_type": {"code id_token"},
		"client_id":     {"web-app"},
		"client_secret": {clientSecret},
		"subject":       {"user-1"},
		"redirect_uri":  {"https://app.example/cb"},
		"scope":         {"openid"},
		"nonce":         {"n-1"},
	})
	require.Equal(t, http.StatusOK, status)
	require.NotEmpty(t, body["code"])
	require.NotEmpty(t, body["id_token"])
	require.NotContains(t, body, "access_token")
}

func TestIntrospectAndRevoke(t *testing.T) {
	srv, _ := newServer(t)
	_, minted := postForm(t, srv, "/d/acme/oauth/token", url.Values{
		"grant_type":    {"client_credentials"},
		"client_id":     {"web-app"},
		"client_secret": {clientSecret},
	})
	access := minted["access_token"].(string)

	status, body := postForm(t, srv, "/d/acme/oauth/introspect", url.Values{
		"client_id":     {"web-app"},
		"client_secret": {clientSecret},
		"token":         {access},
	})
	require.Equal(t, http.StatusOK, status)
	require.Equal(t, true, body["active"])
	require.Equal(t, "access_token", body["token_type"])

	// hint desconocido se rechaza en el borde
	status, body = postForm(t, srv, "/d/acme/oauth/introspect", url.Values{
		"client_id":       {"web-app"},
		"client_secret":   {clientSecret},
		"token":           {access},
		"token_type_hint": {"saml_token"},
	})
	require.Equal(t, http.StatusBadRequest, status)
	require.Equal(t, "unsupported_token_type", body["error"])

	// revocar y verificar que quedó inactivo
	resp, err := http.Post(srv.URL+"/d/acme/oauth/revoke", "application/x-www-form-urlencoded",
		strings.NewReader(url.Values{
			"client_id":     {"web-app"},
			"client_secret": {clientSecret},
			"token":         {access},
		}.Encode()))
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	status, body = postForm(t, srv, "/d/acme/oauth/introspect", url.Values{
		"client_id":     {"web-app"},
		"client_secret": {clientSecret},
		"token":         {access},
	})
	require.Equal(t, http.StatusOK, status)
	require.Equal(t, false, body["active"])
}

func TestJWKS_OnlyRSAKeys(t *testing.T) {
	srv, _ := newServer(t)
	resp, err := http.Get(srv.URL + "/d/acme/.well-known/jwks.json")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body map[string][]map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	// el registry solo tiene HMAC: el set sale vacío, nunca con secretos
	require.Empty(t, body["keys"])
}

func TestHealthz(t *testing.T) {
	srv, _ := newServer(t)
	resp, err := http.Get(srv.URL + "/healthz")
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
}
