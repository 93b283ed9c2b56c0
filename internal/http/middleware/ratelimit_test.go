package middleware

import (
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestKeyByUserOrIP(t *testing.T) {
	gin.SetMode(gin.TestMode)
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	c.Request = httptest.NewRequest(http.MethodGet, "/", nil)
	c.Request.RemoteAddr = net.JoinHostPort("203.0.113.9", "12345")
	key := KeyByUserOrIP()

	if got := key(c); got != "ip:203.0.113.9" {
		t.Fatalf("no identity: %q", got)
	}
	c.Set(userIDKey, AnonymousUser)
	if got := key(c); got != "ip:203.0.113.9" {
		t.Fatalf("anonymous shoppers must be keyed by IP, got %q", got)
	}
	c.Set(userIDKey, "u123")
	if got := key(c); got != "user:u123" {
		t.Fatalf("identified caller: %q", got)
	}
}

func TestNewRateLimiter_DefaultsAndVisitorReuse(t *testing.T) {
	rl := NewRateLimiter(2, 0, nil)
	if rl.burst != 1 || rl.keyFn == nil {
		t.Fatalf("defaults not applied: burst=%d keyFn=%v", rl.burst, rl.keyFn != nil)
	}
	lim := rl.getVisitor("k1")
	if rl.getVisitor("k1") != lim {
		t.Fatalf("expected same limiter instance to be reused")
	}
}

func TestRateLimiter_EvictsIdleBucketsBeforeLookup(t *testing.T) {
	rl := NewRateLimiter(1, 1, nil)
	rl.gcEvery = 2
	now := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	rl.now = func() time.Time { return now }

	old := rl.getVisitor("old")
	now = now.Add(rl.ttl)

	// The GC pass runs on this lookup and drops the idle bucket first, so
	// "old" comes back fresh rather than revived.
	if got := rl.getVisitor("old"); got == old {
		t.Fatalf("idle bucket was revived instead of evicted")
	}
	rl.mu.Lock()
	n := len(rl.visitors)
	rl.mu.Unlock()
	if n != 1 {
		t.Fatalf("visitors = %d; want 1", n)
	}
}

func TestIsRateBypass(t *testing.T) {
	gin.SetMode(gin.TestMode)
	c, _ := gin.CreateTestContext(httptest.NewRecorder())

	if IsRateBypass(c) {
		t.Fatalf("expected false by default")
	}
	c.Set(ctxKeyRateBypass, true)
	if !IsRateBypass(c) {
		t.Fatalf("expected true when set")
	}
	c.Set(ctxKeyRateBypass, "yes")
	if IsRateBypass(c) {
		t.Fatalf("non-bool must read as false")
	}
}

func TestRateLimiter_Handler_DenyRetryAfterAndBypass(t *testing.T) {
	gin.SetMode(gin.TestMode)

	// One token, refilled every 4s.
	rl := NewRateLimiter(0.25, 1, KeyByUserOrIP())
	now := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	rl.now = func() time.Time { return now }

	r := gin.New()
	r.Use(func(c *gin.Context) { c.Header("X-Request-ID", "rid-1"); c.Next() })
	r.Use(Identity())
	r.Use(func(c *gin.Context) {
		if c.GetHeader("X-Replay") != "" {
			c.Set(ctxKeyRateBypass, true)
		}
		c.Next()
	})
	r.Use(rl.Handler())
	r.GET("/ok", func(c *gin.Context) { c.String(http.StatusOK, "ok") })

	get := func(user string, replay bool) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, "/ok", nil)
		req.Header.Set(HeaderUserID, user)
		if replay {
			req.Header.Set("X-Replay", "1")
		}
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		return w
	}

	base := testutil.ToFloat64(rateLimited.WithLabelValues("user"))

	if w := get("alice", false); w.Code != http.StatusOK {
		t.Fatalf("first request: %d", w.Code)
	}
	w := get("alice", false)
	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("second request: %d", w.Code)
	}
	if got := w.Header().Get("Retry-After"); got != "4" {
		t.Fatalf("Retry-After = %q; want 4", got)
	}
	var body map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("invalid JSON body: %v", err)
	}
	if body["code"] != "rate_limited" || body["request_id"] != "rid-1" {
		t.Fatalf("unexpected body: %v", body)
	}
	if got := testutil.ToFloat64(rateLimited.WithLabelValues("user")); got != base+1 {
		t.Fatalf("rate_limited_total{user} = %v; want %v", got, base+1)
	}

	// Another caller has its own bucket; replays skip the limiter.
	if w := get("bob", false); w.Code != http.StatusOK {
		t.Fatalf("other user: %d", w.Code)
	}
	if w := get("alice", true); w.Code != http.StatusOK {
		t.Fatalf("replay: %d", w.Code)
	}

	// A rejected request does not consume the pending token.
	now = now.Add(4 * time.Second)
	if w := get("alice", false); w.Code != http.StatusOK {
		t.Fatalf("after refill: %d", w.Code)
	}
}

func TestRetryAfterSeconds(t *testing.T) {
	cases := map[time.Duration]int{0: 1, 200 * time.Millisecond: 1, time.Second: 1, 1500 * time.Millisecond: 2}
	for d, want := range cases {
		if got := retryAfterSeconds(d); got != want {
			t.Fatalf("retryAfterSeconds(%v) = %d; want %d", d, got, want)
		}
	}
}
