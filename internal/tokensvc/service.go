// Package tokensvc es el Token Service: única fuente de verdad del ciclo de
// vida de access y refresh tokens (create / refresh / introspect / delete).
//
// Cada mint corre la secuencia fija: PRE_TOKEN hook → freeze → firma →
// persistencia → POST_TOKEN hook. PRE_TOKEN puede abortar; POST_TOKEN nunca.
package tokensvc

import (
	"context"
	"errors"
	"time"

	jwtv5 "github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/dropDatabas3/portero/internal/idtoken"
	"github.com/dropDatabas3/portero/internal/oautherr"
	"github.com/dropDatabas3/portero/internal/observability/logger"
	"github.com/dropDatabas3/portero/internal/resource"
	"github.com/dropDatabas3/portero/internal/rules"
	tokens "github.com/dropDatabas3/portero/internal/security/token"
	"github.com/dropDatabas3/portero/internal/signing"
	"github.com/dropDatabas3/portero/internal/store/core"
	"github.com/dropDatabas3/portero/internal/token"
)

// Hints de introspección/revocación (RFC 7662 / RFC 7009).
const (
	HintAccessToken  = "access_token"
	HintRefreshToken = "refresh_token"
)

// Config del servicio.
type Config struct {
	AccessTTL  time.Duration
	RefreshTTL time.Duration
	IDTokenTTL time.Duration

	// ResourceConsistency habilita el chequeo subset de RFC 8707 entre el
	// paso de autorización y el token endpoint. Default true; false es el
	// modo legacy documentado.
	ResourceConsistency bool
}

type Service struct {
	repo    core.Repository
	signers signing.Registry
	hook    *rules.Hook
	cfg     Config
	log     *zap.Logger
	now     func() time.Time
}

func New(repo core.Repository, signers signing.Registry, hook *rules.Hook, cfg Config) *Service {
	if hook == nil {
		hook = rules.NewHook(nil)
	}
	if cfg.AccessTTL == 0 {
		cfg.AccessTTL = 15 * time.Minute
	}
	if cfg.RefreshTTL == 0 {
		cfg.RefreshTTL = 30 * 24 * time.Hour
	}
	if cfg.IDTokenTTL == 0 {
		cfg.IDTokenTTL = cfg.AccessTTL
	}
	return &Service{
		repo:    repo,
		signers: signers,
		hook:    hook,
		cfg:     cfg,
		log:     logger.Named("tokensvc"),
		now:     time.Now,
	}
}

// WithNow inyecta el reloj (tests).
func (s *Service) WithNow(now func() time.Time) *Service {
	s.now = now
	return s
}

// ResourceConsistencyEnabled expone el flag para los grant handlers.
func (s *Service) ResourceConsistencyEnabled() bool { return s.cfg.ResourceConsistency }

// IDTokenTTL expone el TTL configurado de ID tokens.
func (s *Service) IDTokenTTL() time.Duration { return s.cfg.IDTokenTTL }

// SelectProvider resuelve el signer para un mint: certificado del client →
// alg del client → alg default del domain. Se llama una vez por mint y el
// provider elegido firma access e ID token del mismo response.
func (s *Service) SelectProvider(client *core.Client, domain *core.Domain) (signing.Provider, error) {
	alg := client.SigningAlg
	if alg == "" {
		alg = domain.DefaultSigningAlg
	}
	return signing.Select(s.signers, client.CertificateID, alg)
}

// Create emite el token que pide el OAuth2Request ya resuelto: un access
// token (con refresh pareado si el grant y el domain lo permiten) o un
// ExchangedIDToken. Exactamente un token por request.
func (s *Service) Create(ctx context.Context, req *token.OAuth2Request, domain *core.Domain, client *core.Client, user *core.User) (*token.Token, error) {
	start := s.now()

	// PRE_TOKEN: la policy puede inyectar atributos o abortar el mint.
	if err := s.hook.Pre(ctx, req, client, user); err != nil {
		observeFailure(req.GrantType, failureClass(err))
		return nil, err
	}
	req.Freeze()

	provider, err := s.SelectProvider(client, domain)
	if err != nil {
		observeFailure(req.GrantType, "technical")
		return nil, err
	}

	var issued *token.Token
	if req.ExchangedID {
		issued, err = s.mintExchangedID(ctx, req, domain, client, user, provider)
	} else {
		issued, err = s.mintAccess(ctx, req, domain, client, provider)
	}
	if err != nil {
		observeFailure(req.GrantType, failureClass(err))
		return nil, err
	}

	// POST_TOKEN: fire-and-observe, nunca tumba el request.
	s.hook.Post(ctx, req, issued, client, user)

	observeIssued(req.GrantType, string(issued.Kind))
	observeMint(req.GrantType, s.now().Sub(start).Seconds())
	return issued, nil
}

func (s *Service) mintAccess(ctx context.Context, req *token.OAuth2Request, domain *core.Domain, client *core.Client, provider signing.Provider) (*token.Token, error) {
	now := s.now()
	ttl := s.cfg.AccessTTL
	if req.ExchangeTTL > 0 && req.ExchangeTTL < ttl {
		ttl = req.ExchangeTTL
	}
	exp := now.Add(ttl)
	jti := uuid.New().String()

	claims := jwtv5.MapClaims{
		"iss":       domain.Issuer,
		"sub":       req.Subject,
		"client_id": req.ClientID,
		"did":       domain.ID,
		"scope":     token.JoinScope(req.Scope),
		"iat":       now.Unix(),
		"exp":       exp.Unix(),
		"jti":       jti,
	}
	if aud := append(append([]string{}, req.Resources...), req.Audience...); len(aud) > 0 {
		claims["aud"] = aud
	} else {
		claims["aud"] = req.ClientID
	}
	// Atributos inyectados por policy: visibles en el token, sin pisar
	// claims estándar.
	for k, v := range req.Attributes {
		if _, dup := claims[k]; !dup {
			claims[k] = v
		}
	}

	value, err := signing.Sign(provider, claims)
	if err != nil {
		return nil, err
	}

	rec := &core.AccessTokenRecord{
		ID:             jti,
		DomainID:       domain.ID,
		ClientID:       req.ClientID,
		Subject:        req.Subject,
		TokenHash:      tokens.SHA256Base64URL(value),
		Scope:          req.Scope,
		Resources:      req.Resources,
		AdditionalInfo: cloneAttrs(req.Attributes),
		IssuedAt:       now,
		ExpiresAt:      exp,
	}
	if err := s.repo.CreateAccessToken(ctx, rec); err != nil {
		return nil, err
	}

	issued := token.NewAccessToken(value, req.ClientID, req.Subject, domain.ID, req.Scope, exp)
	issued.IssuedTokenTyp = req.IssuedTokenTyp
	issued.AdditionalInfo = cloneAttrs(req.Attributes)

	if req.SupportsRefresh && domain.AllowRefreshTokens && client.SupportsRefresh {
		raw, err := s.createRefresh(ctx, req, domain, nil)
		if err != nil {
			return nil, err
		}
		issued.RefreshToken = raw
	}
	return issued, nil
}

func (s *Service) mintExchangedID(ctx context.Context, req *token.OAuth2Request, domain *core.Domain, client *core.Client, user *core.User, provider signing.Provider) (*token.Token, error) {
	ttl := s.cfg.IDTokenTTL
	if req.ExchangeTTL > 0 && req.ExchangeTTL < ttl {
		ttl = req.ExchangeTTL
	}

	var userClaims map[string]any
	if user != nil {
		userClaims = user.Claims
	}
	value, exp, err := idtoken.Issue(idtoken.Input{
		Provider:        provider,
		Issuer:          domain.Issuer,
		Subject:         req.Subject,
		ClientID:        req.ClientID,
		TTL:             ttl,
		UserClaims:      userClaims,
		RequestedClaims: client.RequestedClaims,
		Extra:           req.Attributes,
		Now:             s.now,
	})
	if err != nil {
		return nil, err
	}

	rec := &core.AccessTokenRecord{
		ID:        uuid.New().String(),
		DomainID:  domain.ID,
		ClientID:  req.ClientID,
		Subject:   req.Subject,
		TokenHash: tokens.SHA256Base64URL(value),
		AdditionalInfo: map[string]any{
			"issued_token_type": token.TypeIDToken,
		},
		IssuedAt:  s.now(),
		ExpiresAt: exp,
	}
	if err := s.repo.CreateAccessToken(ctx, rec); err != nil {
		return nil, err
	}

	// Variante RFC 8693: sin scope, sin refresh, sin confirmation method.
	return token.NewExchangedIDToken(value, req.ClientID, req.Subject, domain.ID, exp), nil
}

func (s *Service) createRefresh(ctx context.Context, req *token.OAuth2Request, domain *core.Domain, rotatedFrom *string) (string, error) {
	raw, err := tokens.GenerateOpaqueToken(32)
	if err != nil {
		return "", err
	}
	now := s.now()
	_, err = s.repo.CreateRefreshToken(ctx, &core.RefreshToken{
		DomainID:    domain.ID,
		ClientID:    req.ClientID,
		Subject:     req.Subject,
		TokenHash:   tokens.SHA256Base64URL(raw),
		Scope:       req.Scope,
		Resources:   req.Resources,
		IssuedAt:    now,
		ExpiresAt:   now.Add(s.cfg.RefreshTTL),
		RotatedFrom: rotatedFrom,
	})
	if err != nil {
		return "", err
	}
	return raw, nil
}

// Refresh valida y rota un refresh token y re-emite el access token. El scope
// solo puede achicarse: pedir scope que el refresh no tenía es InvalidGrant.
func (s *Service) Refresh(ctx context.Context, rawRefresh string, treq *token.TokenRequest, domain *core.Domain, client *core.Client) (*token.Token, error) {
	rt, err := s.repo.GetRefreshTokenByHash(ctx, tokens.SHA256Base64URL(rawRefresh))
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			return nil, oautherr.E(oautherr.InvalidGrant, "invalid refresh token")
		}
		return nil, err
	}
	now := s.now()
	if rt.RevokedAt != nil || !now.Before(rt.ExpiresAt) {
		return nil, oautherr.E(oautherr.InvalidGrant, "refresh token revoked or expired")
	}
	// El refresh pertenece a un client; otro client no lo puede usar.
	if rt.ClientID != client.ClientID {
		return nil, oautherr.E(oautherr.InvalidGrant, "refresh token does not belong to client")
	}

	scope, err := narrowScope(rt.Scope, treq.Scope)
	if err != nil {
		return nil, err
	}
	resources, err := resource.ValidateConsistency(treq.Resources, rt.Resources, s.cfg.ResourceConsistency)
	if err != nil {
		return nil, err
	}
	if len(resources) == 0 {
		resources = rt.Resources
	}

	req := &token.OAuth2Request{
		DomainID:  domain.ID,
		ClientID:  client.ClientID,
		Subject:   rt.Subject,
		GrantType: token.GrantRefreshToken,
		Scope:     scope,
		Resources: resources,
	}
	var user *core.User
	if u, err := s.repo.GetUserBySubject(ctx, domain.ID, rt.Subject); err == nil {
		user = u
	}

	// El mint va primero: si el hook PRE_TOKEN aborta o la firma falla, el
	// refresh original queda intacto y la sesión del client sigue viva.
	issued, err := s.Create(ctx, req, domain, client, user)
	if err != nil {
		return nil, err
	}

	// Rotación recién con el access token ya emitido: refresh nuevo
	// encadenado al viejo, viejo revocado.
	newRaw, err := s.createRefresh(ctx, req, domain, &rt.ID)
	if err != nil {
		if derr := s.DeleteAccessToken(ctx, issued.Value); derr != nil {
			s.log.Warn("rollback minted access failed", zap.Error(derr))
		}
		return nil, err
	}
	if err := s.repo.RevokeRefreshToken(ctx, rt.ID); err != nil {
		s.log.Warn("revoke rotated refresh failed", zap.String("id", rt.ID), zap.Error(err))
	}
	issued.RefreshToken = newRaw
	return issued, nil
}

// narrowScope aplica narrowing-only: vacío hereda el scope original; todo lo
// pedido tiene que estar en el original.
func narrowScope(original, requested []string) ([]string, error) {
	if len(requested) == 0 {
		return original, nil
	}
	have := make(map[string]struct{}, len(original))
	for _, sc := range original {
		have[sc] = struct{}{}
	}
	for _, sc := range requested {
		if _, ok := have[sc]; !ok {
			return nil, oautherr.Ef(oautherr.InvalidGrant, "scope %q exceeds original grant", sc)
		}
	}
	return requested, nil
}

// Introspect busca el token en los dos stores respetando el hint: primero el
// sugerido, después el otro. Devuelve (nil, nil) si no está en ninguno: la
// ausencia no es error. El token encontrado conserva su kind real.
func (s *Service) Introspect(ctx context.Context, value, hint string) (*token.Token, error) {
	order := []string{HintAccessToken, HintRefreshToken}
	if hint == HintRefreshToken {
		order = []string{HintRefreshToken, HintAccessToken}
	}
	hash := tokens.SHA256Base64URL(value)
	for _, kind := range order {
		var (
			tk  *token.Token
			err error
		)
		if kind == HintAccessToken {
			tk, err = s.lookupAccess(ctx, value, hash)
		} else {
			tk, err = s.lookupRefresh(ctx, value, hash)
		}
		if err != nil {
			return nil, err
		}
		if tk != nil {
			return tk, nil
		}
	}
	return nil, nil
}

func (s *Service) lookupAccess(ctx context.Context, value, hash string) (*token.Token, error) {
	rec, err := s.repo.GetAccessTokenByHash(ctx, hash)
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}
	tk := token.NewAccessToken(value, rec.ClientID, rec.Subject, rec.DomainID, rec.Scope, rec.ExpiresAt)
	tk.AdditionalInfo = rec.AdditionalInfo
	return tk, nil
}

func (s *Service) lookupRefresh(ctx context.Context, value, hash string) (*token.Token, error) {
	rt, err := s.repo.GetRefreshTokenByHash(ctx, hash)
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}
	if rt.RevokedAt != nil || !s.now().Before(rt.ExpiresAt) {
		return nil, nil
	}
	return token.NewRefreshToken(value, rt.ClientID, rt.Subject, rt.DomainID, rt.Scope, rt.ExpiresAt), nil
}

// DeleteAccessToken borra por valor. Idempotente: ausencia no es error.
func (s *Service) DeleteAccessToken(ctx context.Context, value string) error {
	return s.repo.DeleteAccessToken(ctx, tokens.SHA256Base64URL(value))
}

// DeleteRefreshToken borra por valor. Idempotente.
func (s *Service) DeleteRefreshToken(ctx context.Context, value string) error {
	return s.repo.DeleteRefreshToken(ctx, tokens.SHA256Base64URL(value))
}

func cloneAttrs(attrs map[string]any) map[string]any {
	if len(attrs) == 0 {
		return nil
	}
	out := make(map[string]any, len(attrs))
	for k, v := range attrs {
		out[k] = v
	}
	return out
}

// failureClass separa errores de negocio de fallas técnicas para métricas y
// logging: una falla de store NO es culpa del client.
func failureClass(err error) string {
	if oautherr.AsError(err) != nil {
		return "business"
	}
	return "technical"
}
