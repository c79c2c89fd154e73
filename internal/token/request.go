package token

import (
	"net/url"
	"strings"
	"time"
)

// TokenRequest son los parámetros crudos del token endpoint. Se arma una vez
// por request; solo el grant handler que lo resuelve lo muta, y después se
// congela antes del mint.
type TokenRequest struct {
	GrantType string
	ClientID  string
	Scope     []string
	Resources []string

	// authorization_code / híbrido
	Code         string
	RedirectURI  string
	CodeVerifier string

	// refresh_token
	RefreshToken string

	// CIBA
	AuthReqID string

	// Token exchange (RFC 8693)
	SubjectToken       string
	SubjectTokenType   string
	RequestedTokenType string
	Audience           []string

	// Flujo híbrido (leg de autorización)
	ResponseType    string
	State           string
	Nonce           string
	CodeChallenge   string
	ChallengeMethod string

	// Extension grant (JWT-bearer y similares)
	Assertion string

	// Hint de subject (extension grants que lo traen explícito)
	SubjectHint string
}

// ParseTokenRequest levanta un TokenRequest desde el form del endpoint.
// Scope va separado por espacios; resource y audience pueden repetirse.
func ParseTokenRequest(form url.Values) *TokenRequest {
	return &TokenRequest{
		GrantType:          strings.TrimSpace(form.Get("grant_type")),
		ClientID:           strings.TrimSpace(form.Get("client_id")),
		Scope:              splitScope(form.Get("scope")),
		Resources:          trimAll(form["resource"]),
		Code:               strings.TrimSpace(form.Get("code")),
		RedirectURI:        strings.TrimSpace(form.Get("redirect_uri")),
		CodeVerifier:       strings.TrimSpace(form.Get("code_verifier")),
		RefreshToken:       strings.TrimSpace(form.Get("refresh_token")),
		AuthReqID:          strings.TrimSpace(form.Get("auth_req_id")),
		SubjectToken:       strings.TrimSpace(form.Get("subject_token")),
		SubjectTokenType:   strings.TrimSpace(form.Get("subject_token_type")),
		RequestedTokenType: strings.TrimSpace(form.Get("requested_token_type")),
		Audience:           trimAll(form["audience"]),
		Assertion:          strings.TrimSpace(form.Get("assertion")),
		ResponseType:       strings.TrimSpace(form.Get("response_type")),
		State:              strings.TrimSpace(form.Get("state")),
		Nonce:              strings.TrimSpace(form.Get("nonce")),
		CodeChallenge:      strings.TrimSpace(form.Get("code_challenge")),
		ChallengeMethod:    strings.TrimSpace(form.Get("code_challenge_method")),
	}
}

func splitScope(s string) []string {
	return strings.Fields(s)
}

func trimAll(vs []string) []string {
	out := make([]string, 0, len(vs))
	for _, v := range vs {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}

// OAuth2Request es el request resuelto y autoritativo que llega al mint.
// Un OAuth2Request produce exactamente un token (más un refresh opcional).
type OAuth2Request struct {
	DomainID  string
	ClientID  string
	Subject   string
	GrantType string
	Scope     []string
	Resources []string
	Audience  []string

	// Bolsa de atributos del execution context; la leen/escriben los hooks
	// de policy (PRE_TOKEN) y los handlers.
	Attributes map[string]any

	// Flags de emisión
	SupportsRefresh bool
	IssuedTokenTyp  string        // URN a reportar (token exchange)
	ExchangeTTL     time.Duration // tope de expiración de exchange; 0 = sin tope
	ExchangedID     bool          // el resultado es un ExchangedIDToken

	frozen bool
}

// SetAttribute escribe un atributo del execution context. Panic si el
// request ya fue congelado: mutar después del freeze es un bug del caller.
func (r *OAuth2Request) SetAttribute(k string, v any) {
	if r.frozen {
		panic("oauth2 request: set attribute after freeze")
	}
	if r.Attributes == nil {
		r.Attributes = map[string]any{}
	}
	r.Attributes[k] = v
}

// MergeAttributes vuelca los atributos de un contexto disparado (hook) sobre
// el request; el hook pisa lo que ya había.
func (r *OAuth2Request) MergeAttributes(attrs map[string]any) {
	for k, v := range attrs {
		r.SetAttribute(k, v)
	}
}

// Freeze congela el request antes del mint.
func (r *OAuth2Request) Freeze() { r.frozen = true }

// Frozen reporta si el request ya no admite mutación.
func (r *OAuth2Request) Frozen() bool { return r.frozen }
