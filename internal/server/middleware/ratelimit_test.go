package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
)

func newLimitedRouter(rl *RateLimiter) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(rl.Handler())
	r.GET("/ping", func(c *gin.Context) { c.String(http.StatusOK, "pong") })
	return r
}

func TestRateLimiter_AllowsUpToMax(t *testing.T) {
	rl := NewRateLimiter(10*time.Second, 3)
	r := newLimitedRouter(rl)

	for i := range 3 {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/ping", nil)
		req.RemoteAddr = "10.0.0.1:1234"
		r.ServeHTTP(w, req)
		if w.Code != http.StatusOK {
			t.Fatalf("request %d: status %d, want 200", i+1, w.Code)
		}
	}

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	req.RemoteAddr = "10.0.0.1:1234"
	r.ServeHTTP(w, req)
	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("over-limit request: status %d, want 429", w.Code)
	}
	if w.Header().Get("Retry-After") == "" {
		t.Error("429 response missing Retry-After header")
	}
}

func TestRateLimiter_PerClient(t *testing.T) {
	rl := NewRateLimiter(10*time.Second, 1)
	r := newLimitedRouter(rl)

	for _, addr := range []string{"10.0.0.1:1", "10.0.0.2:1"} {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/ping", nil)
		req.RemoteAddr = addr
		r.ServeHTTP(w, req)
		if w.Code != http.StatusOK {
			t.Fatalf("client %s: status %d, want 200", addr, w.Code)
		}
	}
}

func TestRateLimiter_WindowResets(t *testing.T) {
	rl := NewRateLimiter(10*time.Second, 1)
	now := time.Date(2026, time.March, 2, 9, 0, 0, 0, time.UTC)
	rl.nowF = func() time.Time { return now }

	if ok, _ := rl.allow("c1"); !ok {
		t.Fatal("first request should pass")
	}
	if ok, retry := rl.allow("c1"); ok || retry < 1 {
		t.Fatalf("second request: ok=%v retry=%d, want blocked with retry >= 1", ok, retry)
	}

	now = now.Add(11 * time.Second)
	if ok, _ := rl.allow("c1"); !ok {
		t.Fatal("request after window should pass")
	}
}

func TestClientCheck(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(ClientCheck([]string{"Chrome", "Firefox"}, []string{"Linux", "Android"}))
	r.GET("/ping", func(c *gin.Context) { c.String(http.StatusOK, "pong") })

	cases := []struct {
		name    string
		browser string
		os      string
		want    int
	}{
		{"no headers", "", "", http.StatusOK},
		{"allowed pair", "Chrome", "Linux", http.StatusOK},
		{"case insensitive", "firefox", "android", http.StatusOK},
		{"blocked browser", "Netscape", "Linux", http.StatusForbidden},
		{"blocked os", "Chrome", "TempleOS", http.StatusForbidden},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodGet, "/ping", nil)
			if tc.browser != "" {
				req.Header.Set("X-Client-Browser", tc.browser)
			}
			if tc.os != "" {
				req.Header.Set("X-Client-OS", tc.os)
			}
			r.ServeHTTP(w, req)
			if w.Code != tc.want {
				t.Errorf("status %d, want %d", w.Code, tc.want)
			}
		})
	}
}
