// Package idtoken arma y firma ID tokens OIDC: claims estándar, claims de
// usuario filtrados por lo que el client declaró, hashes de binding del flujo
// híbrido/exchange, y firma delegada en internal/signing.
package idtoken

import (
	"time"

	jwtv5 "github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/dropDatabas3/portero/internal/signing"
)

// excludedClaims son claims internos de linkage con providers de identidad.
// NUNCA salen en un ID token, incluso si aparecen en el perfil del usuario.
var excludedClaims = map[string]struct{}{
	"provider":         {},
	"provider_user_id": {},
	"provider_links":   {},
	"identities":       {},
	"connection":       {},
}

// reservedClaims no pueden ser pisados ni por el perfil ni por extras.
var reservedClaims = map[string]struct{}{
	"iss": {}, "sub": {}, "aud": {}, "exp": {}, "iat": {}, "jti": {},
	"azp": {}, "nonce": {}, "at_hash": {}, "c_hash": {}, "s_hash": {},
}

// Input es todo lo que necesita un mint de ID token. Provider tiene que ser
// el mismo que firmó (o va a firmar) el access token del mismo response.
type Input struct {
	Provider signing.Provider

	Issuer   string
	Subject  string
	ClientID string
	TTL      time.Duration
	Nonce    string

	// Claims del perfil del usuario, a filtrar por RequestedClaims.
	UserClaims map[string]any
	// Claims que el client declaró requeridos/esenciales. Vacío = ninguno
	// del perfil (solo los estándar).
	RequestedClaims []string

	// Payloads de binding; vacío = no se emite ese hash.
	Code        string // → c_hash
	AccessToken string // → at_hash
	State       string // → s_hash

	// Claims extra ya autorizados (p.ej. inyectados por policy hooks).
	Extra map[string]any

	Now func() time.Time
}

// Build arma los claims SIN firmar. El ensamblado ocurre siempre antes de la
// firma; útil por separado para tests.
func Build(in Input) (jwtv5.MapClaims, error) {
	now := time.Now
	if in.Now != nil {
		now = in.Now
	}
	iat := now()

	claims := jwtv5.MapClaims{
		"iss": in.Issuer,
		"sub": in.Subject,
		"aud": in.ClientID,
		"azp": in.ClientID,
		"iat": iat.Unix(),
		"exp": iat.Add(in.TTL).Unix(),
		"jti": uuid.New().String(),
	}
	if in.Nonce != "" {
		claims["nonce"] = in.Nonce
	}

	// Perfil: solo lo que el client pidió, menos el set excluido.
	for _, name := range in.RequestedClaims {
		if _, banned := excludedClaims[name]; banned {
			continue
		}
		if _, reserved := reservedClaims[name]; reserved {
			continue
		}
		if v, ok := in.UserClaims[name]; ok {
			claims[name] = v
		}
	}

	// Extras de policy: mismas reglas de exclusión/reserva.
	for name, v := range in.Extra {
		if _, banned := excludedClaims[name]; banned {
			continue
		}
		if _, reserved := reservedClaims[name]; reserved {
			continue
		}
		claims[name] = v
	}

	// Hashes de binding, con el alg del provider que va a firmar.
	alg := in.Provider.Alg()
	if in.Code != "" {
		h, err := LeftmostHash(in.Code, alg)
		if err != nil {
			return nil, err
		}
		claims["c_hash"] = h
	}
	if in.AccessToken != "" {
		h, err := LeftmostHash(in.AccessToken, alg)
		if err != nil {
			return nil, err
		}
		claims["at_hash"] = h
	}
	if in.State != "" {
		h, err := LeftmostHash(in.State, alg)
		if err != nil {
			return nil, err
		}
		claims["s_hash"] = h
	}

	return claims, nil
}

// Issue arma y firma el ID token. Devuelve el JWT y su expiry.
func Issue(in Input) (string, time.Time, error) {
	claims, err := Build(in)
	if err != nil {
		return "", time.Time{}, err
	}
	signed, err := signing.Sign(in.Provider, claims)
	if err != nil {
		return "", time.Time{}, err
	}
	exp := time.Unix(claims["exp"].(int64), 0)
	return signed, exp, nil
}
