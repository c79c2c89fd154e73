// Package assertion verifica las assertions de extension grants tipo
// JWT-bearer. La verificación resuelve claves contra el mismo registry de
// firma del domain: la parte confiada firma con una clave registrada.
package assertion

import (
	"context"
	"errors"
	"fmt"
	"time"

	jwtv5 "github.com/golang-jwt/jwt/v5"

	"github.com/dropDatabas3/portero/internal/signing"
	"github.com/dropDatabas3/portero/internal/store/core"
)

var validMethods = []string{"RS256", "RS384", "RS512", "HS256", "HS384", "HS512"}

// JWTVerifier valida assertions JWT firmadas con una clave del registry.
type JWTVerifier struct {
	signers signing.Registry
}

func NewJWTVerifier(signers signing.Registry) *JWTVerifier {
	return &JWTVerifier{signers: signers}
}

// Verify chequea firma, aud = issuer del domain, exp/nbf con leeway y que
// haya sub. Devuelve subject y las claims completas.
func (v *JWTVerifier) Verify(_ context.Context, assertion string, domain *core.Domain) (string, map[string]any, error) {
	keyfunc := func(t *jwtv5.Token) (any, error) {
		p, ok := v.signers.ByAlgorithm(t.Method.Alg())
		if !ok {
			return nil, fmt.Errorf("assertion: no key for alg %q", t.Method.Alg())
		}
		return p.PublicKey()
	}

	tok, err := jwtv5.Parse(assertion, keyfunc,
		jwtv5.WithValidMethods(validMethods),
		jwtv5.WithAudience(domain.Issuer),
		jwtv5.WithExpirationRequired(),
		jwtv5.WithLeeway(30*time.Second),
	)
	if err != nil || !tok.Valid {
		return "", nil, errors.New("assertion: invalid jwt")
	}

	claims, ok := tok.Claims.(jwtv5.MapClaims)
	if !ok {
		return "", nil, errors.New("assertion: unexpected claims type")
	}
	sub, _ := claims["sub"].(string)
	if sub == "" {
		return "", nil, errors.New("assertion: sub is required")
	}

	out := make(map[string]any, len(claims))
	for k, c := range claims {
		out[k] = c
	}
	return sub, out, nil
}
