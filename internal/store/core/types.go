package core

import "time"

// Domain es un tenant del authorization server: issuer propio, clients
// propios, claves propias y política propia. El core la lee, nunca la muta.
type Domain struct {
	ID     string `json:"id"`
	Slug   string `json:"slug"`
	Name   string `json:"name"`
	Issuer string `json:"issuer"`

	// Registro de protected resources (RFC 8707). Todo "resource" pedido en
	// el token endpoint tiene que estar acá.
	ProtectedResources []string `json:"protected_resources"`

	// RFC 8693 apagado por defecto; se habilita por domain.
	TokenExchangeEnabled bool `json:"token_exchange_enabled"`

	// Política de refresh a nivel domain (el client puede restringir más).
	AllowRefreshTokens bool `json:"allow_refresh_tokens"`

	// Alg de firma por defecto cuando el client no pide uno ("RS256", etc).
	DefaultSigningAlg string `json:"default_signing_alg"`

	// Tope de vida para tokens emitidos por token exchange. 0 = sin tope.
	ExchangeMaxTTL time.Duration `json:"exchange_max_ttl"`

	// Identificador del extension grant configurado (JWT-bearer o similar).
	// Vacío = sin extension grant.
	ExtensionGrantType string `json:"extension_grant_type,omitempty"`

	Settings  map[string]any `json:"settings,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
}

// Client OAuth2 scoped a un domain. Inmutable durante un request.
type Client struct {
	ID           string   `json:"id"`
	DomainID     string   `json:"domain_id"`
	Name         string   `json:"name"`
	ClientID     string   `json:"client_id"`
	ClientType   string   `json:"client_type"` // confidential|public
	SecretHash   *string  `json:"-"`
	GrantTypes   []string `json:"grant_types"`
	RedirectURIs []string `json:"redirect_uris"`
	Scopes       []string `json:"scopes"`

	// Referencia a un certificado/clave registrada; si está, manda sobre
	// cualquier preferencia de alg.
	CertificateID *string `json:"certificate_id,omitempty"`

	// Preferencia de alg de firma del client ("RS256", "HS512", ...).
	SigningAlg string `json:"signing_alg,omitempty"`

	// Claims del ID token que el client declaró querer. Vacío = set estándar.
	RequestedClaims []string `json:"requested_claims,omitempty"`

	SupportsRefresh bool      `json:"supports_refresh"`
	CreatedAt       time.Time `json:"created_at"`
}

// AllowsGrant reporta si el client tiene habilitado el grant type.
func (c *Client) AllowsGrant(grantType string) bool {
	for _, g := range c.GrantTypes {
		if g == grantType {
			return true
		}
	}
	return false
}

// User es el resource owner. Claims alimenta el ID token (filtrado por el
// builder); ProviderLinks NUNCA sale en un token.
type User struct {
	ID            string         `json:"id"`
	DomainID      string         `json:"domain_id"`
	Subject       string         `json:"subject"`
	Email         string         `json:"email"`
	Status        string         `json:"status"`
	Claims        map[string]any `json:"claims,omitempty"`
	ProviderLinks map[string]any `json:"-"`
	CreatedAt     time.Time      `json:"created_at"`
}

// RefreshToken persistido. El valor opaco nunca se guarda: solo su hash.
type RefreshToken struct {
	ID          string
	DomainID    string
	ClientID    string
	Subject     string
	TokenHash   string
	Scope       []string
	Resources   []string
	IssuedAt    time.Time
	ExpiresAt   time.Time
	RotatedFrom *string
	RevokedAt   *time.Time
}

// AccessTokenRecord es la fila persistida de un access token emitido.
// Value puede ser un JWT o un opaco; la clave de lookup es el hash del valor.
type AccessTokenRecord struct {
	ID             string // jti
	DomainID       string
	ClientID       string
	Subject        string
	TokenHash      string
	Scope          []string
	Resources      []string
	AdditionalInfo map[string]any
	IssuedAt       time.Time
	ExpiresAt      time.Time
}

// BackchannelStatus es el estado de una authentication request CIBA.
type BackchannelStatus string

const (
	BackchannelPending    BackchannelStatus = "pending"
	BackchannelAuthorized BackchannelStatus = "authorized"
	BackchannelDenied     BackchannelStatus = "denied"
)

// BackchannelRequest es una authentication request CIBA ya registrada por el
// backchannel endpoint (colaborador externo). El core solo la lee.
type BackchannelRequest struct {
	AuthReqID string
	DomainID  string
	ClientID  string
	Subject   string
	Scope     []string
	Status    BackchannelStatus
	ExpiresAt time.Time
}
