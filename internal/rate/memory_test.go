package rate

import (
	"context"
	"testing"
	"time"
)

func TestMemoryLimiter_EnforcesMax(t *testing.T) {
	l := NewMemoryLimiter(3, time.Hour)
	ctx := context.Background()

	for i := 1; i <= 3; i++ {
		res, err := l.Allow(ctx, "web-app")
		if err != nil {
			t.Fatalf("allow %d: %v", i, err)
		}
		if !res.Allowed {
			t.Fatalf("hit %d must be allowed", i)
		}
		if res.CurrentHits != int64(i) {
			t.Fatalf("hit %d: CurrentHits = %d", i, res.CurrentHits)
		}
	}

	res, err := l.Allow(ctx, "web-app")
	if err != nil {
		t.Fatalf("allow: %v", err)
	}
	if res.Allowed {
		t.Fatal("fourth hit must be rejected")
	}
	if res.Remaining != 0 {
		t.Fatalf("Remaining = %d, want 0", res.Remaining)
	}
	if res.RetryAfter <= 0 {
		t.Fatalf("RetryAfter = %v, want > 0", res.RetryAfter)
	}
}

func TestMemoryLimiter_KeysAreIndependent(t *testing.T) {
	l := NewMemoryLimiter(1, time.Hour)
	ctx := context.Background()

	if res, _ := l.Allow(ctx, "a"); !res.Allowed {
		t.Fatal("first hit for a")
	}
	if res, _ := l.Allow(ctx, "a"); res.Allowed {
		t.Fatal("second hit for a must be rejected")
	}
	if res, _ := l.Allow(ctx, "b"); !res.Allowed {
		t.Fatal("b has its own window")
	}
}
