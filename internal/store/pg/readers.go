package pg

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"github.com/dropDatabas3/portero/internal/store/core"
)

func notFound(err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return core.ErrNotFound
	}
	return err
}

func (s *Store) GetDomainByID(ctx context.Context, id string) (*core.Domain, error) {
	const q = `
		SELECT id, slug, name, issuer, protected_resources, token_exchange_enabled,
		       allow_refresh_tokens, default_signing_alg, exchange_max_ttl_seconds,
		       extension_grant_type, created_at
		FROM domains WHERE id = $1`
	return s.scanDomain(s.pool.QueryRow(ctx, q, id))
}

func (s *Store) GetDomainBySlug(ctx context.Context, slug string) (*core.Domain, error) {
	const q = `
		SELECT id, slug, name, issuer, protected_resources, token_exchange_enabled,
		       allow_refresh_tokens, default_signing_alg, exchange_max_ttl_seconds,
		       extension_grant_type, created_at
		FROM domains WHERE slug = $1`
	return s.scanDomain(s.pool.QueryRow(ctx, q, slug))
}

func (s *Store) scanDomain(row pgx.Row) (*core.Domain, error) {
	var d core.Domain
	var exchangeTTLSecs int64
	err := row.Scan(&d.ID, &d.Slug, &d.Name, &d.Issuer, &d.ProtectedResources,
		&d.TokenExchangeEnabled, &d.AllowRefreshTokens, &d.DefaultSigningAlg,
		&exchangeTTLSecs, &d.ExtensionGrantType, &d.CreatedAt)
	if err != nil {
		return nil, notFound(err)
	}
	d.ExchangeMaxTTL = secondsToDuration(exchangeTTLSecs)
	return &d, nil
}

func (s *Store) GetClientByClientID(ctx context.Context, domainID, clientID string) (*core.Client, error) {
	const q = `
		SELECT id, domain_id, name, client_id, client_type, secret_hash, grant_types,
		       redirect_uris, scopes, certificate_id, signing_alg, requested_claims,
		       supports_refresh, created_at
		FROM clients WHERE domain_id = $1 AND client_id = $2`
	var c core.Client
	err := s.pool.QueryRow(ctx, q, domainID, clientID).Scan(
		&c.ID, &c.DomainID, &c.Name, &c.ClientID, &c.ClientType, &c.SecretHash,
		&c.GrantTypes, &c.RedirectURIs, &c.Scopes, &c.CertificateID, &c.SigningAlg,
		&c.RequestedClaims, &c.SupportsRefresh, &c.CreatedAt)
	if err != nil {
		return nil, notFound(err)
	}
	return &c, nil
}

func (s *Store) GetUserByID(ctx context.Context, domainID, id string) (*core.User, error) {
	const q = `
		SELECT id, domain_id, subject, email, status, claims, created_at
		FROM users WHERE domain_id = $1 AND id = $2`
	return s.scanUser(s.pool.QueryRow(ctx, q, domainID, id))
}

func (s *Store) GetUserBySubject(ctx context.Context, domainID, subject string) (*core.User, error) {
	const q = `
		SELECT id, domain_id, subject, email, status, claims, created_at
		FROM users WHERE domain_id = $1 AND subject = $2`
	return s.scanUser(s.pool.QueryRow(ctx, q, domainID, subject))
}

func (s *Store) scanUser(row pgx.Row) (*core.User, error) {
	var u core.User
	if err := row.Scan(&u.ID, &u.DomainID, &u.Subject, &u.Email, &u.Status, &u.Claims, &u.CreatedAt); err != nil {
		return nil, notFound(err)
	}
	return &u, nil
}

func (s *Store) GetBackchannelRequest(ctx context.Context, authReqID string) (*core.BackchannelRequest, error) {
	const q = `
		SELECT auth_req_id, domain_id, client_id, subject, scope, status, expires_at
		FROM backchannel_requests
		WHERE auth_req_id = $1 AND expires_at > NOW()`
	var r core.BackchannelRequest
	err := s.pool.QueryRow(ctx, q, authReqID).Scan(
		&r.AuthReqID, &r.DomainID, &r.ClientID, &r.Subject, &r.Scope, &r.Status, &r.ExpiresAt)
	if err != nil {
		return nil, notFound(err)
	}
	return &r, nil
}
