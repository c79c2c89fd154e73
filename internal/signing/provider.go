// Package signing resuelve con qué clave y algoritmo se firma cada mint.
//
// El registry es un lookup inyectado de solo lectura (nada de globales
// mutables): provider por alg, por certificado, default del domain y el
// provider "none". La selección corre UNA vez por mint y el provider elegido
// firma tanto el access token (si es JWT) como el ID token pareado.
package signing

import (
	"crypto/rsa"
	"errors"
	"fmt"

	jwtv5 "github.com/golang-jwt/jwt/v5"
)

// AlgNone es el alg reservado para tokens sin firma.
const AlgNone = "none"

// ErrNoneKey se devuelve cuando alguien intenta sacar una clave del provider
// "none". Falla dura: ese provider existe solo para el caso alg:none literal.
var ErrNoneKey = errors.New("signing: none provider holds no key material")

// Provider entrega material de firma para un alg concreto.
type Provider interface {
	KID() string
	Alg() string
	// Key devuelve la clave privada de firma.
	Key() (any, error)
	// PublicKey devuelve la clave de verificación (pública o secreta HMAC).
	PublicKey() (any, error)
}

// Registry es el lookup de providers. Solo lectura.
type Registry interface {
	ByAlgorithm(alg string) (Provider, bool)
	ByCertificateID(certID string) (Provider, bool)
	Default() Provider
	None() Provider
}

// Select resuelve el provider para un mint: certificado del client si está y
// resuelve; si no, el alg pedido si algún provider lo anuncia; si no, el
// default del domain.
func Select(reg Registry, certID *string, alg string) (Provider, error) {
	if certID != nil && *certID != "" {
		if p, ok := reg.ByCertificateID(*certID); ok {
			return p, nil
		}
	}
	if alg != "" {
		if p, ok := reg.ByAlgorithm(alg); ok {
			return p, nil
		}
	}
	if p := reg.Default(); p != nil {
		return p, nil
	}
	return nil, fmt.Errorf("signing: no provider for alg %q", alg)
}

// Sign firma claims con el provider dado y setea kid/alg en el header.
func Sign(p Provider, claims jwtv5.MapClaims) (string, error) {
	method := jwtv5.GetSigningMethod(p.Alg())
	if method == nil {
		return "", fmt.Errorf("signing: unknown alg %q", p.Alg())
	}
	key, err := p.Key()
	if err != nil {
		return "", err
	}
	tok := jwtv5.NewWithClaims(method, claims)
	if kid := p.KID(); kid != "" {
		tok.Header["kid"] = kid
	}
	return tok.SignedString(key)
}

// AlgForRSAKey deriva el alg por tamaño de clave cuando no vino explícito.
// Claves <2048 las filtra el registro de claves aguas arriba, no este paso.
func AlgForRSAKey(key *rsa.PrivateKey) string {
	bits := key.N.BitLen()
	switch {
	case bits >= 4096:
		return "RS512"
	case bits >= 3072:
		return "RS384"
	default:
		return "RS256"
	}
}
