// Package cache provee el cache efímero del core: authorization codes y
// lookups calientes de backchannel requests, con TTL.
//
// Backends:
//   - memory (in-process, dev/tests)
//   - redis (distribuido, producción)
package cache

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound se devuelve cuando la key no existe o expiró.
var ErrNotFound = errors.New("cache: key not found")

// Client define las operaciones de cache.
type Client interface {
	// Get obtiene un valor. ErrNotFound si no existe.
	Get(ctx context.Context, key string) ([]byte, error)

	// Set guarda un valor con TTL. ttl 0 = no expira.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// Delete elimina una key. Borrar lo inexistente no es error.
	Delete(ctx context.Context, key string) error

	// Ping verifica la conexión.
	Ping(ctx context.Context) error

	// Close cierra la conexión.
	Close() error
}

// Config para construir un cliente.
type Config struct {
	Driver string // "memory" | "redis"
	Addr   string
	DB     int
	Prefix string
}

// New crea el cliente según el driver. Default: memory.
func New(cfg Config) (Client, error) {
	switch cfg.Driver {
	case "redis":
		return NewRedis(cfg.Addr, cfg.DB, cfg.Prefix), nil
	default:
		return NewMemory(cfg.Prefix), nil
	}
}
