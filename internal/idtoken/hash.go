package idtoken

import (
	"crypto/sha256"
	"crypto/sha512"
	"encoding/base64"
	"fmt"
	"hash"
	"strings"
)

// LeftmostHash calcula el hash OIDC (at_hash / c_hash / s_hash): digest de la
// familia del alg de firma sobre los bytes ASCII del payload, mitad izquierda,
// base64url sin padding.
//
// Tiene que usarse el MISMO alg con el que se firma el ID token; un mismatch
// acá es un bug, no una variante válida.
func LeftmostHash(payload, alg string) (string, error) {
	h, err := digestForAlg(alg)
	if err != nil {
		return "", err
	}
	h.Write([]byte(payload))
	sum := h.Sum(nil)
	return base64.RawURLEncoding.EncodeToString(sum[:len(sum)/2]), nil
}

// digestForAlg mapea la familia del alg (RS256/ES384/HS512/PS256...) a su
// función de digest. "none" no tiene digest real: falla duro.
func digestForAlg(alg string) (hash.Hash, error) {
	switch {
	case strings.HasSuffix(alg, "256"):
		return sha256.New(), nil
	case strings.HasSuffix(alg, "384"):
		return sha512.New384(), nil
	case strings.HasSuffix(alg, "512"):
		return sha512.New(), nil
	default:
		return nil, fmt.Errorf("idtoken: no digest for alg %q", alg)
	}
}
