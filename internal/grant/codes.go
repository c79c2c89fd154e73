package grant

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/dropDatabas3/portero/internal/cache"
	tokens "github.com/dropDatabas3/portero/internal/security/token"
)

// AuthorizationCode es lo que el paso de autorización dejó grabado para el
// canje posterior en el token endpoint. Un solo uso.
type AuthorizationCode struct {
	DomainID        string    `json:"domain_id"`
	ClientID        string    `json:"client_id"`
	Subject         string    `json:"subject"`
	Scope           []string  `json:"scope"`
	Resources       []string  `json:"resources"` // autorizados en ese paso
	RedirectURI     string    `json:"redirect_uri"`
	CodeChallenge   string    `json:"code_challenge"`
	ChallengeMethod string    `json:"challenge_method"`
	Nonce           string    `json:"nonce,omitempty"`
	State           string    `json:"state,omitempty"`
	ExpiresAt       time.Time `json:"expires_at"`
}

// Codes guarda y consume authorization codes en el cache con TTL. La key es
// el hash del code: el valor crudo nunca toca el cache.
type Codes struct {
	cache cache.Client
	ttl   time.Duration
}

func NewCodes(c cache.Client, ttl time.Duration) *Codes {
	if ttl == 0 {
		ttl = 2 * time.Minute
	}
	return &Codes{cache: c, ttl: ttl}
}

func codeKey(code string) string {
	return "oauth:code:" + tokens.SHA256Base64URL(code)
}

// Issue genera un code nuevo y lo graba.
func (c *Codes) Issue(ctx context.Context, ac *AuthorizationCode) (string, error) {
	raw, err := tokens.GenerateOpaqueToken(32)
	if err != nil {
		return "", err
	}
	ac.ExpiresAt = time.Now().Add(c.ttl)
	b, err := json.Marshal(ac)
	if err != nil {
		return "", err
	}
	if err := c.cache.Set(ctx, codeKey(raw), b, c.ttl); err != nil {
		return "", err
	}
	return raw, nil
}

// Consume carga y borra el code (1 uso). (nil, nil) si no existe o expiró.
func (c *Codes) Consume(ctx context.Context, code string) (*AuthorizationCode, error) {
	key := codeKey(code)
	b, err := c.cache.Get(ctx, key)
	if err != nil {
		if errors.Is(err, cache.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}
	_ = c.cache.Delete(ctx, key)

	var ac AuthorizationCode
	if err := json.Unmarshal(b, &ac); err != nil {
		return nil, nil // code corrupto = code inválido
	}
	if time.Now().After(ac.ExpiresAt) {
		return nil, nil
	}
	return &ac, nil
}
