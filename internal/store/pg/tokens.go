package pg

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/dropDatabas3/portero/internal/store/core"
)

func secondsToDuration(secs int64) time.Duration {
	return time.Duration(secs) * time.Second
}

func (s *Store) CreateAccessToken(ctx context.Context, rec *core.AccessTokenRecord) error {
	const q = `
		INSERT INTO access_tokens
			(id, domain_id, client_id, subject, token_hash, scope, resources,
			 additional_info, issued_at, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`
	_, err := s.pool.Exec(ctx, q, rec.ID, rec.DomainID, rec.ClientID, rec.Subject,
		rec.TokenHash, rec.Scope, rec.Resources, rec.AdditionalInfo,
		rec.IssuedAt, rec.ExpiresAt)
	return err
}

func (s *Store) GetAccessTokenByHash(ctx context.Context, tokenHash string) (*core.AccessTokenRecord, error) {
	const q = `
		SELECT id, domain_id, client_id, subject, token_hash, scope, resources,
		       additional_info, issued_at, expires_at
		FROM access_tokens
		WHERE token_hash = $1 AND expires_at > NOW()`
	var rec core.AccessTokenRecord
	err := s.pool.QueryRow(ctx, q, tokenHash).Scan(
		&rec.ID, &rec.DomainID, &rec.ClientID, &rec.Subject, &rec.TokenHash,
		&rec.Scope, &rec.Resources, &rec.AdditionalInfo, &rec.IssuedAt, &rec.ExpiresAt)
	if err != nil {
		return nil, notFound(err)
	}
	return &rec, nil
}

// DeleteAccessToken es idempotente: 0 filas afectadas no es error.
func (s *Store) DeleteAccessToken(ctx context.Context, tokenHash string) error {
	const q = `DELETE FROM access_tokens WHERE token_hash = $1`
	_, err := s.pool.Exec(ctx, q, tokenHash)
	return err
}

func (s *Store) CreateRefreshToken(ctx context.Context, rt *core.RefreshToken) (string, error) {
	const q = `
		INSERT INTO refresh_tokens
			(id, domain_id, client_id, subject, token_hash, scope, resources,
			 issued_at, expires_at, rotated_from)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING id`
	if rt.ID == "" {
		rt.ID = uuid.New().String()
	}
	var id string
	err := s.pool.QueryRow(ctx, q, rt.ID, rt.DomainID, rt.ClientID, rt.Subject,
		rt.TokenHash, rt.Scope, rt.Resources, rt.IssuedAt, rt.ExpiresAt, rt.RotatedFrom).Scan(&id)
	if err != nil {
		return "", err
	}
	return id, nil
}

func (s *Store) GetRefreshTokenByHash(ctx context.Context, tokenHash string) (*core.RefreshToken, error) {
	const q = `
		SELECT id, domain_id, client_id, subject, token_hash, scope, resources,
		       issued_at, expires_at, rotated_from, revoked_at
		FROM refresh_tokens WHERE token_hash = $1`
	var rt core.RefreshToken
	err := s.pool.QueryRow(ctx, q, tokenHash).Scan(
		&rt.ID, &rt.DomainID, &rt.ClientID, &rt.Subject, &rt.TokenHash,
		&rt.Scope, &rt.Resources, &rt.IssuedAt, &rt.ExpiresAt, &rt.RotatedFrom, &rt.RevokedAt)
	if err != nil {
		return nil, notFound(err)
	}
	return &rt, nil
}

// DeleteRefreshToken es idempotente.
func (s *Store) DeleteRefreshToken(ctx context.Context, tokenHash string) error {
	const q = `DELETE FROM refresh_tokens WHERE token_hash = $1`
	_, err := s.pool.Exec(ctx, q, tokenHash)
	return err
}

func (s *Store) RevokeRefreshToken(ctx context.Context, id string) error {
	const q = `UPDATE refresh_tokens SET revoked_at = NOW() WHERE id = $1 AND revoked_at IS NULL`
	_, err := s.pool.Exec(ctx, q, id)
	return err
}
