package core

import (
	"context"
	"time"
)

// DomainReader expone la config de tenants. Solo lectura desde el core.
type DomainReader interface {
	GetDomainByID(ctx context.Context, id string) (*Domain, error)
	GetDomainBySlug(ctx context.Context, slug string) (*Domain, error)
}

// ClientReader resuelve clients dentro de un domain.
type ClientReader interface {
	GetClientByClientID(ctx context.Context, domainID, clientID string) (*Client, error)
}

// UserReader resuelve resource owners.
type UserReader interface {
	GetUserByID(ctx context.Context, domainID, id string) (*User, error)
	GetUserBySubject(ctx context.Context, domainID, subject string) (*User, error)
}

// TokenRepository es el único estado mutable que toca el core. El store
// garantiza unicidad por hash en create y delete atómico; acá no hay locks.
type TokenRepository interface {
	CreateAccessToken(ctx context.Context, rec *AccessTokenRecord) error
	GetAccessTokenByHash(ctx context.Context, tokenHash string) (*AccessTokenRecord, error)
	// DeleteAccessToken es idempotente: borrar lo que no existe no es error.
	DeleteAccessToken(ctx context.Context, tokenHash string) error

	CreateRefreshToken(ctx context.Context, rt *RefreshToken) (string, error)
	GetRefreshTokenByHash(ctx context.Context, tokenHash string) (*RefreshToken, error)
	// DeleteRefreshToken es idempotente.
	DeleteRefreshToken(ctx context.Context, tokenHash string) error
	RevokeRefreshToken(ctx context.Context, id string) error
}

// BackchannelReader lee authentication requests CIBA registradas por el
// backchannel endpoint (externo a este core).
type BackchannelReader interface {
	GetBackchannelRequest(ctx context.Context, authReqID string) (*BackchannelRequest, error)
}

// Repository agrega todo lo que el core consume del store.
type Repository interface {
	Ping(ctx context.Context) error

	DomainReader
	ClientReader
	UserReader
	TokenRepository
	BackchannelReader
}

// Now permite inyectar reloj en tests; los stores lo usan para expiry.
type Now func() time.Time
