// Package rate limita requests al token endpoint por ventana fija. La clave
// de limitación la decide el caller (client_id, IP).
package rate

import (
	"context"
	"strconv"
	"strings"
	"time"

	rdb "github.com/redis/go-redis/v9"
)

type Result struct {
	Allowed     bool
	Remaining   int64
	RetryAfter  time.Duration
	WindowTTL   time.Duration
	CurrentHits int64
}

type Limiter interface {
	Allow(ctx context.Context, key string) (Result, error)
}

// windowResult arma el Result de una ventana fija a partir del conteo. left
// es lo que queda de ventana; si el backend no lo sabe (TTL negativo) se usa
// la ventana completa.
func windowResult(hits, max int64, left, window time.Duration) Result {
	if left < 0 {
		left = window
	}
	remaining := max - hits
	if remaining < 0 {
		remaining = 0
	}
	res := Result{
		Allowed:     hits <= max,
		Remaining:   remaining,
		CurrentHits: hits,
		WindowTTL:   left,
	}
	if !res.Allowed {
		res.RetryAfter = left
	}
	return res
}

// RedisLimiter cuenta por ventana fija con un INCR + EXPIRE NX atómicos en
// un solo pipeline. El contador es compartido: todas las réplicas del
// servicio ven el mismo presupuesto.
type RedisLimiter struct {
	client *rdb.Client
	prefix string
	max    int64
	window time.Duration
}

func NewRedisLimiter(client *rdb.Client, prefix string, max int, window time.Duration) *RedisLimiter {
	if prefix == "" {
		prefix = "portero:rl:"
	}
	return &RedisLimiter{
		client: client,
		prefix: prefix,
		max:    int64(max),
		window: window,
	}
}

// bucket nombra la key de la ventana actual; el timestamp truncado en la key
// hace que las ventanas viejas mueran solas por TTL.
func (l *RedisLimiter) bucket(key string, winStart time.Time) string {
	return l.prefix + strings.ReplaceAll(key, " ", "_") + ":" + strconv.FormatInt(winStart.Unix(), 10)
}

func (l *RedisLimiter) Allow(ctx context.Context, key string) (Result, error) {
	winStart := time.Now().UTC().Truncate(l.window)
	bucket := l.bucket(key, winStart)

	pipe := l.client.TxPipeline()
	incr := pipe.Incr(ctx, bucket)
	// NX: el expiry lo fija el primer hit de la ventana y nadie lo renueva.
	pipe.ExpireNX(ctx, bucket, l.window)
	ttl := pipe.TTL(ctx, bucket)
	if _, err := pipe.Exec(ctx); err != nil {
		return Result{}, err
	}

	return windowResult(incr.Val(), l.max, ttl.Val(), l.window), nil
}
