package signing

import (
	"crypto/rsa"
	"encoding/base64"
	"math/big"
)

// StaticRegistry es un Registry armado en el arranque a partir de la config
// del domain. Inmutable después de construido; seguro para uso concurrente.
type StaticRegistry struct {
	byAlg  map[string]Provider
	byCert map[string]Provider
	def    Provider
	none   Provider
}

// NewStaticRegistry arma el registry. El primer provider de cada alg gana;
// def tiene que estar entre los providers o ser nil (se usa el primero).
func NewStaticRegistry(providers []Provider, byCert map[string]Provider, def Provider) *StaticRegistry {
	r := &StaticRegistry{
		byAlg:  make(map[string]Provider, len(providers)),
		byCert: make(map[string]Provider, len(byCert)),
		none:   NewNoneProvider(),
		def:    def,
	}
	for _, p := range providers {
		if _, dup := r.byAlg[p.Alg()]; !dup {
			r.byAlg[p.Alg()] = p
		}
		if r.def == nil {
			r.def = p
		}
	}
	for id, p := range byCert {
		r.byCert[id] = p
	}
	return r
}

func (r *StaticRegistry) ByAlgorithm(alg string) (Provider, bool) {
	if alg == AlgNone {
		return r.none, true
	}
	p, ok := r.byAlg[alg]
	return p, ok
}

func (r *StaticRegistry) ByCertificateID(certID string) (Provider, bool) {
	p, ok := r.byCert[certID]
	return p, ok
}

func (r *StaticRegistry) Default() Provider { return r.def }
func (r *StaticRegistry) None() Provider    { return r.none }

// ----- JWKS (serialización) -----

type jwk struct {
	Kty string `json:"kty"`
	Kid string `json:"kid"`
	Alg string `json:"alg"`
	Use string `json:"use"`
	N   string `json:"n,omitempty"`
	E   string `json:"e,omitempty"`
}

// JWKS devuelve el set de claves públicas RSA publicable del registry.
// Los providers simétricos (HMAC) y "none" no se publican.
func (r *StaticRegistry) JWKS() map[string]any {
	keys := make([]jwk, 0, len(r.byAlg))
	seen := map[string]bool{}
	for _, p := range r.byAlg {
		pub, err := p.PublicKey()
		if err != nil {
			continue
		}
		rsaPub, ok := pub.(*rsa.PublicKey)
		if !ok || seen[p.KID()] {
			continue
		}
		seen[p.KID()] = true
		keys = append(keys, jwk{
			Kty: "RSA",
			Kid: p.KID(),
			Alg: p.Alg(),
			Use: "sig",
			N:   base64.RawURLEncoding.EncodeToString(rsaPub.N.Bytes()),
			E:   base64.RawURLEncoding.EncodeToString(big.NewInt(int64(rsaPub.E)).Bytes()),
		})
	}
	return map[string]any{"keys": keys}
}
