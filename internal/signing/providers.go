package signing

import (
	"crypto/rsa"
)

// rsaProvider firma con una clave RSA registrada.
type rsaProvider struct {
	kid string
	alg string
	key *rsa.PrivateKey
}

// NewRSAProvider crea un provider RSA. Si alg viene vacío se deriva del
// tamaño de la clave.
func NewRSAProvider(kid, alg string, key *rsa.PrivateKey) Provider {
	if alg == "" {
		alg = AlgForRSAKey(key)
	}
	return &rsaProvider{kid: kid, alg: alg, key: key}
}

func (p *rsaProvider) KID() string { return p.kid }
func (p *rsaProvider) Alg() string { return p.alg }

func (p *rsaProvider) Key() (any, error)       { return p.key, nil }
func (p *rsaProvider) PublicKey() (any, error) { return &p.key.PublicKey, nil }

// hmacProvider firma con un secreto compartido (HS256/384/512).
type hmacProvider struct {
	kid    string
	alg    string
	secret []byte
}

func NewHMACProvider(kid, alg string, secret []byte) Provider {
	return &hmacProvider{kid: kid, alg: alg, secret: secret}
}

func (p *hmacProvider) KID() string { return p.kid }
func (p *hmacProvider) Alg() string { return p.alg }

func (p *hmacProvider) Key() (any, error)       { return p.secret, nil }
func (p *hmacProvider) PublicKey() (any, error) { return p.secret, nil }

// noneProvider representa alg:none. Cualquier intento de sacarle material de
// clave es falla dura, nunca un no-op silencioso.
type noneProvider struct{}

// NewNoneProvider devuelve el provider del alg "none".
func NewNoneProvider() Provider { return noneProvider{} }

func (noneProvider) KID() string { return "" }
func (noneProvider) Alg() string { return AlgNone }

func (noneProvider) Key() (any, error)       { return nil, ErrNoneKey }
func (noneProvider) PublicKey() (any, error) { return nil, ErrNoneKey }
