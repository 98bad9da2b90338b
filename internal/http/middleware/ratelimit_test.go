package middleware

import (
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

func TestKeyByShopOrIP(t *testing.T) {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	// Deterministic IP for ClientIP()
	req.RemoteAddr = net.JoinHostPort("203.0.113.9", "12345")

	c, _ := gin.CreateTestContext(w)
	c.Request = req

	// IP fallback when no shop was resolved
	key := KeyByShopOrIP()(c)
	if !strings.HasPrefix(key, "ip:") || !strings.Contains(key, "203.0.113.9") {
		t.Fatalf("expected ip-based key, got %q", key)
	}

	// Prefer the tenant shop once ShopContext resolved it
	c.Set(ctxKeyShop, "acme.myshopify.com")
	if key2 := KeyByShopOrIP()(c); key2 != "shop:acme.myshopify.com" {
		t.Fatalf("expected shop-based key, got %q", key2)
	}
}

func TestNewRateLimiter_BurstCoercion_AndVisitorReuse(t *testing.T) {
	rl := NewRateLimiter(2.0, 0, KeyByShopOrIP()) // burst<=0 coerced to 1
	if rl.burst != 1 {
		t.Fatalf("burst coercion failed, got %d", rl.burst)
	}

	lim := rl.getVisitor("k1")
	if lim == nil {
		t.Fatal("expected limiter")
	}
	// Same key reuses the same bucket
	if got := rl.getVisitor("k1"); got != lim {
		t.Fatal("expected same limiter instance to be reused")
	}
}

func TestRateLimiter_getVisitor_GC(t *testing.T) {
	rl := NewRateLimiter(1.0, 1, KeyByShopOrIP())
	// Immediate TTL so anything old gets evicted
	rl.ttl = 1 * time.Nanosecond

	rl.mu.Lock()
	rl.visitors["shop:stale.myshopify.com"] = &visitor{
		limiter:  rate.NewLimiter(1, 1),
		lastSeen: time.Now().Add(-time.Hour),
	}
	// Force cleanup to fire on the next lookup
	rl.cleanupN = 4999
	rl.mu.Unlock()

	_ = rl.getVisitor("shop:fresh.myshopify.com")

	rl.mu.Lock()
	_, existsStale := rl.visitors["shop:stale.myshopify.com"]
	_, existsFresh := rl.visitors["shop:fresh.myshopify.com"]
	rl.mu.Unlock()

	if existsStale {
		t.Fatal("expected the stale visitor to be evicted by opportunistic GC")
	}
	if !existsFresh {
		t.Fatal("expected the fresh visitor to be created")
	}
}

func TestRateLimiter_Handler_AllowThenDeny(t *testing.T) {
	// rps=1, burst=1 -> first immediate request allowed, second denied
	rl := NewRateLimiter(1.0, 1, KeyByShopOrIP())

	r := gin.New()
	// A request-id header like the real stack sets, so the 429 JSON carries it
	r.Use(func(c *gin.Context) { c.Header("X-Request-ID", "rid-1"); c.Next() })
	r.Use(rl.Handler())
	r.GET("/ok", func(c *gin.Context) { c.String(http.StatusOK, "ok") })

	w1 := httptest.NewRecorder()
	r.ServeHTTP(w1, httptest.NewRequest(http.MethodGet, "/ok", nil))
	if w1.Code != http.StatusOK {
		t.Fatalf("first request should be allowed, got %d", w1.Code)
	}

	w2 := httptest.NewRecorder()
	r.ServeHTTP(w2, httptest.NewRequest(http.MethodGet, "/ok", nil))
	if w2.Code != http.StatusTooManyRequests {
		t.Fatalf("second request should be rate-limited, got %d", w2.Code)
	}
	if got := w2.Header().Get("Retry-After"); got != "1" {
		t.Fatalf("Retry-After = %q, want 1", got)
	}
	var body map[string]any
	if err := json.Unmarshal(w2.Body.Bytes(), &body); err != nil {
		t.Fatalf("invalid JSON body: %v", err)
	}
	if body["code"] != "rate_limited" || body["message"] != "rate limit exceeded" {
		t.Fatalf("unexpected JSON body: %v", body)
	}
	if body["request_id"] != "rid-1" {
		t.Fatalf("request_id = %v", body["request_id"])
	}
}

func TestRateLimiter_Handler_BucketsAreIndependentPerShop(t *testing.T) {
	rl := NewRateLimiter(1.0, 1, KeyByShopOrIP())

	r := gin.New()
	// Resolve the shop from the query like ShopContext would
	r.Use(func(c *gin.Context) {
		if s := c.Query("shop"); s != "" {
			c.Set(ctxKeyShop, s)
		}
		c.Next()
	})
	r.Use(rl.Handler())
	r.GET("/ok", func(c *gin.Context) { c.Status(http.StatusOK) })

	// Drain acme's bucket
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ok?shop=acme.myshopify.com", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("acme first request: %d", w.Code)
	}
	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ok?shop=acme.myshopify.com", nil))
	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("acme second request: %d, want 429", w.Code)
	}

	// A different tenant still has a full bucket
	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ok?shop=other.myshopify.com", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("other shop must not share acme's bucket: %d", w.Code)
	}
}
