package rate

import (
	"context"
	"sync"
	"time"
)

// MemoryLimiter: ventana fija en proceso. Para despliegues de una réplica o
// dev; con varias réplicas usar el limiter de redis.
type MemoryLimiter struct {
	mu     sync.Mutex
	hits   map[string]*window
	max    int64
	window time.Duration
}

type window struct {
	start time.Time
	count int64
}

func NewMemoryLimiter(max int, win time.Duration) *MemoryLimiter {
	return &MemoryLimiter{
		hits:   make(map[string]*window),
		max:    int64(max),
		window: win,
	}
}

func (l *MemoryLimiter) Allow(_ context.Context, key string) (Result, error) {
	now := time.Now().UTC()
	winStart := now.Truncate(l.window)

	l.mu.Lock()
	defer l.mu.Unlock()

	w := l.hits[key]
	if w == nil || !w.start.Equal(winStart) {
		w = &window{start: winStart}
		l.hits[key] = w
	}
	w.count++

	// poda oportunista de ventanas viejas
	if len(l.hits) > 4096 {
		for k, old := range l.hits {
			if !old.start.Equal(winStart) {
				delete(l.hits, k)
			}
		}
	}

	return windowResult(w.count, l.max, l.window-now.Sub(winStart), l.window), nil
}
