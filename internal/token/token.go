// Package token define el modelo de tokens del core: access, refresh y el
// ID token intercambiado (RFC 8693), más las formas request/response.
//
// La serialización es por variante y es contrato duro: un exchanged ID token
// emite access_token/token_type/expires_in/issued_token_type y NADA más
// (sin scope, sin refresh_token). No usar un serializador genérico.
package token

import (
	"encoding/json"
	"strings"
	"time"
)

// Kind discrimina la variante del token.
type Kind string

const (
	KindAccess      Kind = "access"
	KindRefresh     Kind = "refresh"
	KindExchangedID Kind = "exchanged_id"
)

// Identificadores de token type (RFC 8693 §3).
const (
	TypeAccessToken  = "urn:ietf:params:oauth:token-type:access_token"
	TypeRefreshToken = "urn:ietf:params:oauth:token-type:refresh_token"
	TypeIDToken      = "urn:ietf:params:oauth:token-type:id_token"
	TypeJWT          = "urn:ietf:params:oauth:token-type:jwt"
)

// Grant types soportados por el dispatcher (literales de wire, no tocar).
const (
	GrantAuthorizationCode = "authorization_code"
	GrantClientCredentials = "client_credentials"
	GrantRefreshToken      = "refresh_token"
	GrantCIBA              = "urn:openid:params:grant-type:ciba"
	GrantTokenExchange     = "urn:ietf:params:oauth:grant-type:token-exchange"
	GrantHybrid            = "hybrid" // leg interno del flujo híbrido, no llega por wire
)

// Token es la unión etiquetada. Los campos comunes viven acá; qué campos
// salen en la respuesta depende de Kind.
type Token struct {
	Kind           Kind
	Value          string // JWT u opaco
	TokenType      string // casi siempre "Bearer"
	ExpiresAt      time.Time
	Scope          []string
	ClientID       string
	Subject        string
	DomainID       string
	IssuedTokenTyp string // URN RFC 8693, opcional
	RefreshToken   string // solo en access tokens con refresh pareado
	AdditionalInfo map[string]any
	Upgraded       bool // UMA
}

// ExpiresIn devuelve los segundos restantes de vida, mínimo 0.
func (t *Token) ExpiresIn() int64 {
	d := time.Until(t.ExpiresAt)
	if d < 0 {
		return 0
	}
	return int64(d.Seconds())
}

// ScopeString devuelve el scope como lista separada por espacios.
func (t *Token) ScopeString() string {
	return JoinScope(t.Scope)
}

// JoinScope arma la representación wire del scope (separado por espacios).
func JoinScope(scope []string) string {
	return strings.Join(scope, " ")
}

// Response arma el body JSON del token endpoint para esta variante.
// El set de campos por variante es parte del contrato wire (RFC 8693):
// no agregar campos "por las dudas".
func (t *Token) Response() map[string]any {
	resp := map[string]any{
		"access_token": t.Value,
		"token_type":   t.TokenType,
		"expires_in":   t.ExpiresIn(),
	}

	switch t.Kind {
	case KindExchangedID:
		// Variante RFC 8693 con ID token: SOLO los cuatro campos base.
		resp["issued_token_type"] = t.IssuedTokenTyp
		return resp

	case KindAccess:
		if t.IssuedTokenTyp != "" {
			resp["issued_token_type"] = t.IssuedTokenTyp
		}
		if len(t.Scope) > 0 {
			resp["scope"] = t.ScopeString()
		}
		if t.RefreshToken != "" {
			resp["refresh_token"] = t.RefreshToken
		}
		for k, v := range t.AdditionalInfo {
			// additional info no puede pisar campos estándar
			if _, dup := resp[k]; !dup {
				resp[k] = v
			}
		}
		if t.Upgraded {
			resp["upgraded"] = true
		}
		return resp

	default:
		return resp
	}
}

// MarshalJSON serializa vía Response para que el contrato por variante
// aplique también cuando el token se encodea directo.
func (t *Token) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.Response())
}

// NewAccessToken construye la variante access.
func NewAccessToken(value, clientID, subject, domainID string, scope []string, expiresAt time.Time) *Token {
	return &Token{
		Kind:      KindAccess,
		Value:     value,
		TokenType: "Bearer",
		ClientID:  clientID,
		Subject:   subject,
		DomainID:  domainID,
		Scope:     scope,
		ExpiresAt: expiresAt,
	}
}

// NewRefreshToken construye la variante refresh.
func NewRefreshToken(value, clientID, subject, domainID string, scope []string, expiresAt time.Time) *Token {
	return &Token{
		Kind:      KindRefresh,
		Value:     value,
		TokenType: "Bearer",
		ClientID:  clientID,
		Subject:   subject,
		DomainID:  domainID,
		Scope:     scope,
		ExpiresAt: expiresAt,
	}
}

// NewExchangedIDToken construye la variante RFC 8693 que transporta un ID
// token como access_token. Sin scope y sin refresh por contrato.
func NewExchangedIDToken(value, clientID, subject, domainID string, expiresAt time.Time) *Token {
	return &Token{
		Kind:           KindExchangedID,
		Value:          value,
		TokenType:      "Bearer",
		ClientID:       clientID,
		Subject:        subject,
		DomainID:       domainID,
		ExpiresAt:      expiresAt,
		IssuedTokenTyp: TypeIDToken,
	}
}
