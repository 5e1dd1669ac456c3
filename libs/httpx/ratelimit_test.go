package httpx

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func TestMemoryRateLimiter_WindowResets(t *testing.T) {
	now := time.Date(2022, 2, 14, 9, 0, 0, 0, time.UTC)
	rl := NewMemoryRateLimiter(2, time.Minute)
	rl.now = func() time.Time { return now }

	for i := 0; i < 2; i++ {
		if _, ok, _ := rl.Allow(context.Background(), "1.2.3.4"); !ok {
			t.Fatalf("expected request %d to pass", i)
		}
	}
	if _, ok, _ := rl.Allow(context.Background(), "1.2.3.4"); ok {
		t.Fatalf("expected third request to be limited")
	}
	if _, ok, _ := rl.Allow(context.Background(), "5.6.7.8"); !ok {
		t.Fatalf("expected other client to pass")
	}

	now = now.Add(61 * time.Second)
	if remaining, ok, _ := rl.Allow(context.Background(), "1.2.3.4"); !ok || remaining != 1 {
		t.Fatalf("expected fresh window, got ok=%v remaining=%d", ok, remaining)
	}
}

func TestRedisRateLimiter(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()

	rl := NewRedisRateLimiter(rdb, 3, time.Minute, "slots")
	for i := 0; i < 3; i++ {
		if _, ok, err := rl.Allow(context.Background(), "1.2.3.4"); err != nil || !ok {
			t.Fatalf("expected request %d to pass, got ok=%v err=%v", i, ok, err)
		}
	}
	if _, ok, err := rl.Allow(context.Background(), "1.2.3.4"); err != nil || ok {
		t.Fatalf("expected fourth request to be limited, got ok=%v err=%v", ok, err)
	}
	if ttl := mr.TTL("slots:1.2.3.4"); ttl <= 0 {
		t.Fatalf("expected window expiry on key, got %s", ttl)
	}
}

type failingLimiter struct{}

func (failingLimiter) Allow(context.Context, string) (int, bool, error) {
	return 0, false, errors.New("redis down")
}
func (failingLimiter) Limit() int { return 10 }

func TestRateLimitMiddleware(t *testing.T) {
	ok := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusOK) })

	h := RateLimit(NewMemoryRateLimiter(1, time.Minute), nil, false)(ok)
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "10.0.0.1:5555"

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	RateLimit(failingLimiter{}, nil, false)(ok).ServeHTTP(rec, req)
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 when failing closed, got %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	fallback := FallbackLimiter{Primary: failingLimiter{}, Secondary: NewMemoryRateLimiter(5, time.Minute)}
	RateLimit(fallback, nil, false)(ok).ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected fallback limiter to admit request, got %d", rec.Code)
	}
}
