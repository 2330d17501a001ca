package middleware

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"microblog/internal/logging"
	"microblog/internal/metrics"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func TestRequestID(t *testing.T) {
	r := gin.New()
	r.Use(RequestID())
	var seen string
	r.GET("/", func(c *gin.Context) {
		seen = logging.RequestIDFromContext(c.Request.Context())
		c.Status(http.StatusOK)
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	got := w.Header().Get(RequestIDHeader)
	if got == "" || got != seen {
		t.Errorf("generated id: header %q, context %q", got, seen)
	}

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(RequestIDHeader, "upstream-1")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if got := w.Header().Get(RequestIDHeader); got != "upstream-1" || seen != "upstream-1" {
		t.Errorf("upstream id not reused: header %q, context %q", got, seen)
	}
}

func TestRecovery(t *testing.T) {
	r := gin.New()
	r.Use(Recovery())
	r.GET("/boom", func(c *gin.Context) { panic("boom") })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/boom", nil))
	if w.Code != http.StatusInternalServerError {
		t.Errorf("status = %d", w.Code)
	}
	if body := w.Body.String(); body != `{"error":"Internal server error"}` {
		t.Errorf("body = %s", body)
	}
}

func sessionRouter(value any) *gin.Engine {
	r := gin.New()
	r.Use(sessions.Sessions("test", cookie.NewStore([]byte("secret"))))
	r.GET("/set", func(c *gin.Context) {
		s := sessions.Default(c)
		s.Set(SessionUserKey, value)
		s.Save()
		c.Status(http.StatusOK)
	})
	r.GET("/who", SessionUser(), func(c *gin.Context) {
		c.String(http.StatusOK, SessionUserID(c))
	})
	return r
}

func roundTrip(r *gin.Engine) string {
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/set", nil))
	req := httptest.NewRequest(http.MethodGet, "/who", nil)
	for _, c := range w.Result().Cookies() {
		req.AddCookie(c)
	}
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w.Body.String()
}

func TestSessionUser(t *testing.T) {
	if got := roundTrip(sessionRouter("user-1")); got != "user-1" {
		t.Errorf("session user = %q, want user-1", got)
	}
	if got := roundTrip(sessionRouter(int64(7))); got != "" {
		t.Errorf("malformed session user = %q, want empty", got)
	}

	r := sessionRouter("x")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/who", nil))
	if w.Code != http.StatusOK || w.Body.String() != "" {
		t.Errorf("anonymous request = %d %q", w.Code, w.Body.String())
	}
}

func TestRateLimiter(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	rl := NewRateLimiter(2, time.Minute)
	rl.now = func() time.Time { return now }

	if !rl.Allow("1.1.1.1") || !rl.Allow("1.1.1.1") {
		t.Fatal("burst not allowed")
	}
	if rl.Allow("1.1.1.1") {
		t.Error("third request within the window allowed")
	}
	if !rl.Allow("2.2.2.2") {
		t.Error("limit shared across IPs")
	}

	now = now.Add(30 * time.Second)
	if !rl.Allow("1.1.1.1") {
		t.Error("token not refilled after half a window")
	}

	now = now.Add(2 * time.Hour)
	rl.Allow("3.3.3.3")
	rl.mu.Lock()
	n := len(rl.limiters)
	rl.mu.Unlock()
	if n != 1 {
		t.Errorf("idle limiters not swept: %d left", n)
	}
}

func TestRateLimitMiddleware(t *testing.T) {
	r := gin.New()
	r.POST("/auth/login", RateLimit(NewRateLimiter(1, time.Minute)), func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	codes := make([]int, 0, 2)
	for i := 0; i < 2; i++ {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/auth/login", nil))
		codes = append(codes, w.Code)
	}
	if codes[0] != http.StatusOK || codes[1] != http.StatusTooManyRequests {
		t.Errorf("codes = %v", codes)
	}
}

func TestStatusLabel(t *testing.T) {
	for code, want := range map[int]string{200: "2xx", 201: "2xx", 304: "3xx", 404: "4xx", 503: "5xx"} {
		if got := statusLabel(code); got != want {
			t.Errorf("statusLabel(%d) = %s, want %s", code, got, want)
		}
	}
}

func TestStandard_PanicIsLoggedAndCounted(t *testing.T) {
	var buf bytes.Buffer
	logging.Init(logging.Config{Level: "info", Format: "json", Output: &buf})
	t.Cleanup(func() { logging.Init(logging.Config{Level: "info", Format: "json"}) })

	r := gin.New()
	r.Use(Standard()...)
	r.GET("/explode", func(c *gin.Context) { panic("boom") })

	counter := metrics.HTTPRequestsTotal.WithLabelValues(http.MethodGet, "/explode", "5xx")
	before := testutil.ToFloat64(counter)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/explode", nil))
	if w.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d", w.Code)
	}
	if d := testutil.ToFloat64(counter) - before; d != 1 {
		t.Errorf("5xx sample delta = %v, want 1", d)
	}
	if out := buf.String(); !strings.Contains(out, `"message":"request"`) || !strings.Contains(out, `"status":500`) {
		t.Errorf("no access log line for the panicking request:\n%s", out)
	}
}
