package signing

import (
	"crypto/rand"
	"crypto/rsa"
	"errors"
	"testing"

	jwtv5 "github.com/golang-jwt/jwt/v5"
)

func testRegistry(t *testing.T) (*StaticRegistry, Provider, Provider) {
	t.Helper()
	hs := NewHMACProvider("hs-1", "HS256", []byte("secreto"))
	hs512 := NewHMACProvider("hs-2", "HS512", []byte("secreto"))
	reg := NewStaticRegistry(
		[]Provider{hs, hs512},
		map[string]Provider{"cert-abc": hs512},
		hs,
	)
	return reg, hs, hs512
}

func TestSelect_CertificateWins(t *testing.T) {
	reg, _, hs512 := testRegistry(t)
	cert := "cert-abc"
	p, err := Select(reg, &cert, "HS256")
	if err != nil {
		t.Fatal(err)
	}
	if p != hs512 {
		t.Fatalf("certificate binding must win over alg, got %s", p.KID())
	}
}

func TestSelect_AlgThenDefault(t *testing.T) {
	reg, hs, hs512 := testRegistry(t)

	p, err := Select(reg, nil, "HS512")
	if err != nil || p != hs512 {
		t.Fatalf("got (%v, %v)", p, err)
	}

	// alg desconocido cae al default
	p, err = Select(reg, nil, "ES256")
	if err != nil || p != hs {
		t.Fatalf("got (%v, %v)", p, err)
	}

	// certificado inexistente: sigue con alg
	miss := "cert-nope"
	p, err = Select(reg, &miss, "HS512")
	if err != nil || p != hs512 {
		t.Fatalf("got (%v, %v)", p, err)
	}
}

func TestSelect_NoProviders(t *testing.T) {
	reg := NewStaticRegistry(nil, nil, nil)
	if _, err := Select(reg, nil, "RS256"); err == nil {
		t.Fatal("expected error with empty registry")
	}
}

func TestNoneProvider_HardFailure(t *testing.T) {
	p := NewNoneProvider()
	if _, err := p.Key(); !errors.Is(err, ErrNoneKey) {
		t.Fatalf("Key: want ErrNoneKey, got %v", err)
	}
	if _, err := p.PublicKey(); !errors.Is(err, ErrNoneKey) {
		t.Fatalf("PublicKey: want ErrNoneKey, got %v", err)
	}
}

func TestRegistry_NoneByAlgorithm(t *testing.T) {
	reg, _, _ := testRegistry(t)
	p, ok := reg.ByAlgorithm(AlgNone)
	if !ok {
		t.Fatal("none provider must resolve by alg")
	}
	if _, err := p.Key(); err == nil {
		t.Fatal("none provider must refuse to hand out keys")
	}
}

func TestAlgForRSAKey(t *testing.T) {
	k2048, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatal(err)
	}
	if alg := AlgForRSAKey(k2048); alg != "RS256" {
		t.Fatalf("2048 bits: got %s", alg)
	}
	k3072, err := rsa.GenerateKey(rand.Reader, 3072)
	if err != nil {
		t.Fatal(err)
	}
	if alg := AlgForRSAKey(k3072); alg != "RS384" {
		t.Fatalf("3072 bits: got %s", alg)
	}
	k4096, err := rsa.GenerateKey(rand.Reader, 4096)
	if err != nil {
		t.Fatal(err)
	}
	if alg := AlgForRSAKey(k4096); alg != "RS512" {
		t.Fatalf("4096 bits: got %s", alg)
	}
}

func TestSign_SetsKIDHeader(t *testing.T) {
	p := NewHMACProvider("kid-7", "HS256", []byte("secreto"))
	raw, err := Sign(p, jwtv5.MapClaims{"sub": "u1"})
	if err != nil {
		t.Fatal(err)
	}
	tok, err := jwtv5.Parse(raw, func(*jwtv5.Token) (any, error) { return []byte("secreto"), nil },
		jwtv5.WithValidMethods([]string{"HS256"}))
	if err != nil || !tok.Valid {
		t.Fatalf("parse: %v", err)
	}
	if tok.Header["kid"] != "kid-7" {
		t.Fatalf("kid = %v", tok.Header["kid"])
	}
}

func TestJWKS_OnlyRSAPublic(t *testing.T) {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatal(err)
	}
	rsaP := NewRSAProvider("rsa-1", "", key)
	if rsaP.Alg() != "RS256" {
		t.Fatalf("derived alg = %s", rsaP.Alg())
	}
	hmacP := NewHMACProvider("hs-1", "HS256", []byte("secreto"))
	reg := NewStaticRegistry([]Provider{rsaP, hmacP}, nil, rsaP)

	jwks := reg.JWKS()
	keys, ok := jwks["keys"].([]jwk)
	if !ok {
		t.Fatalf("unexpected jwks shape: %T", jwks["keys"])
	}
	if len(keys) != 1 {
		t.Fatalf("got %d keys, want 1 (HMAC must not be published)", len(keys))
	}
	if keys[0].Kid != "rsa-1" || keys[0].Kty != "RSA" || keys[0].N == "" {
		t.Fatalf("bad jwk: %+v", keys[0])
	}
}
