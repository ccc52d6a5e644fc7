package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
)

func TestKeyByTokenOrIP(t *testing.T) {
	gin.SetMode(gin.TestMode)
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	c.Request = httptest.NewRequest(http.MethodGet, "/", nil)
	c.Request.RemoteAddr = "203.0.113.7:1234"
	key := KeyByTokenOrIP()

	if got := key(c); got != "ip:203.0.113.7" {
		t.Fatalf("anonymous key = %q", got)
	}
	c.Request.Header.Set(HeaderAdminToken, "top-secret")
	got := key(c)
	if !strings.HasPrefix(got, "token:") || strings.Contains(got, "top-secret") || len(got) != len("token:")+16 {
		t.Fatalf("token key = %q", got)
	}
}

func TestRateLimiter_EvictsIdleBuckets(t *testing.T) {
	rl := NewRateLimiter(1, 0, KeyByTokenOrIP())
	if rl.burst != 1 {
		t.Fatalf("burst = %d; want 1", rl.burst)
	}
	now := time.Unix(0, 0)
	rl.now = func() time.Time { return now }
	rl.gcEveryN = 2

	a := rl.limiterFor("a")
	if rl.limiterFor("a") != a {
		t.Fatalf("bucket not reused")
	}
	now = now.Add(rl.ttl)
	_ = rl.limiterFor("b")
	// This lookup runs collection before "a" is touched.
	if got := rl.limiterFor("a"); got == a {
		t.Fatalf("idle bucket survived collection")
	}
	if rl.Len() != 2 {
		t.Fatalf("buckets = %d; want 2", rl.Len())
	}
}

func TestRateLimiter_Handler(t *testing.T) {
	gin.SetMode(gin.TestMode)
	rl := NewRateLimiter(0.001, 1, KeyByTokenOrIP())
	r := gin.New()
	r.Use(RequestID(), rl.Handler())
	r.GET("/x", func(c *gin.Context) { c.Status(http.StatusOK) })

	do := func(token string) *httptest.ResponseRecorder {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/x", nil)
		if token != "" {
			req.Header.Set(HeaderAdminToken, token)
		}
		r.ServeHTTP(w, req)
		return w
	}

	if w := do(""); w.Code != http.StatusOK {
		t.Fatalf("first request -> %d", w.Code)
	}
	w := do("")
	if w.Code != http.StatusTooManyRequests || w.Header().Get("Retry-After") != "1" {
		t.Fatalf("second request -> %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), `"too_many_requests"`) {
		t.Fatalf("body = %s", w.Body.String())
	}
	if w := do("tok"); w.Code != http.StatusOK {
		t.Fatalf("token bucket is separate from the IP bucket, got %d", w.Code)
	}
}
