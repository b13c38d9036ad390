package middleware

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/goccy/go-json"

	"github.com/park285/child-safety-server-go/internal/cache"
	"github.com/park285/child-safety-server-go/internal/config"
	"github.com/park285/child-safety-server-go/internal/safety"
)

func serve(router *gin.Engine, method, path, remoteAddr string) int {
	req := httptest.NewRequest(method, path, nil)
	req.RemoteAddr = remoteAddr
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	return resp.Code
}

func TestRateLimit(t *testing.T) {
	gin.SetMode(gin.TestMode)
	cfg := &config.Config{HTTPRateLimit: config.HTTPRateLimitConfig{
		RequestsPerMinute: 1,
		CacheSize:         10,
		CacheTTLSeconds:   int(time.Minute.Seconds()),
	}}

	router := gin.New()
	router.Use(RateLimit(cfg))
	router.POST("/validate-child-message", func(c *gin.Context) { c.Status(http.StatusOK) })
	router.GET("/health", func(c *gin.Context) { c.Status(http.StatusOK) })

	if code := serve(router, http.MethodPost, "/validate-child-message", "1.2.3.4:1234"); code != http.StatusOK {
		t.Fatalf("expected ok, got %d", code)
	}
	if code := serve(router, http.MethodPost, "/validate-child-message", "1.2.3.4:1234"); code != http.StatusTooManyRequests {
		t.Fatalf("expected rate limit, got %d", code)
	}
	if code := serve(router, http.MethodPost, "/validate-child-message", "5.6.7.8:1234"); code != http.StatusOK {
		t.Fatalf("expected other client to pass, got %d", code)
	}
	for range 3 {
		if code := serve(router, http.MethodGet, "/health", "1.2.3.4:1234"); code != http.StatusOK {
			t.Fatalf("expected health to be exempt, got %d", code)
		}
	}
}

func TestRateLimitWindowRollover(t *testing.T) {
	gin.SetMode(gin.TestMode)
	now := time.Date(2026, 1, 1, 12, 0, 5, 0, time.UTC)
	counter := cache.NewTTLCache[string, int](10, 2*time.Minute)

	router := gin.New()
	router.Use(rateLimitWithCounter(1, counter, func() time.Time { return now }))
	router.GET("/api/test", func(c *gin.Context) { c.Status(http.StatusOK) })

	if code := serve(router, http.MethodGet, "/api/test", "1.2.3.4:1234"); code != http.StatusOK {
		t.Fatalf("expected ok, got %d", code)
	}
	if code := serve(router, http.MethodGet, "/api/test", "1.2.3.4:1234"); code != http.StatusTooManyRequests {
		t.Fatalf("expected rate limit, got %d", code)
	}

	now = now.Add(time.Minute)
	if code := serve(router, http.MethodGet, "/api/test", "1.2.3.4:1234"); code != http.StatusOK {
		t.Fatalf("expected ok in next window, got %d", code)
	}
}

func TestRateLimitDisabled(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(RateLimit(&config.Config{}))
	router.GET("/api/test", func(c *gin.Context) { c.Status(http.StatusOK) })

	for range 5 {
		if code := serve(router, http.MethodGet, "/api/test", "1.2.3.4:1234"); code != http.StatusOK {
			t.Fatalf("expected ok when disabled, got %d", code)
		}
	}
}

func TestRateLimitIdentityPrefersAPIKey(t *testing.T) {
	gin.SetMode(gin.TestMode)
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	c.Request = httptest.NewRequest(http.MethodGet, "/api/test", nil)
	c.Request.Header.Set("X-API-Key", "secret")
	if got := rateLimitIdentity(c); got != "key:"+hashKey("secret") || len(got) != len("key:")+16 {
		t.Fatalf("unexpected identity: %q", got)
	}

	c.Request.Header.Del("X-API-Key")
	c.Request.Header.Set("X-Forwarded-For", "9.9.9.9, 10.0.0.1")
	if got := rateLimitIdentity(c); got != "ip:9.9.9.9" {
		t.Fatalf("unexpected forwarded identity: %q", got)
	}
}

func TestRateLimitClassifyKeepsResultShape(t *testing.T) {
	gin.SetMode(gin.TestMode)
	counter := cache.NewTTLCache[string, int](10, 2*time.Minute)

	router := gin.New()
	router.Use(rateLimitWithCounter(1, counter, time.Now))
	router.POST("/validate-child-message", func(c *gin.Context) { c.Status(http.StatusOK) })
	router.GET("/api/test", func(c *gin.Context) { c.Status(http.StatusOK) })

	serve(router, http.MethodPost, "/validate-child-message", "1.2.3.4:1234")
	req := httptest.NewRequest(http.MethodPost, "/validate-child-message", nil)
	req.RemoteAddr = "1.2.3.4:1234"
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	if resp.Code != http.StatusTooManyRequests {
		t.Fatalf("expected rate limit, got %d", resp.Code)
	}

	var payload struct {
		IsAllowed    *bool    `json:"isAllowed"`
		FlagLevel    string   `json:"flagLevel"`
		FlagReasons  []string `json:"flagReasons"`
		ParentNotify *bool    `json:"parentNotify"`
		ActionTaken  string   `json:"actionTaken"`
		ErrorCode    string   `json:"error_code"`
	}
	if err := json.Unmarshal(resp.Body.Bytes(), &payload); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if payload.IsAllowed == nil || !*payload.IsAllowed || payload.ParentNotify == nil || payload.ActionTaken != "strict_mode" {
		t.Fatalf("missing result fields: %s", resp.Body.String())
	}
	if len(payload.FlagReasons) != 1 || payload.FlagReasons[0] != safety.ReasonRateLimited || payload.ErrorCode != "HTTP_RATE_LIMIT" {
		t.Fatalf("unexpected payload: %s", resp.Body.String())
	}

	serve(router, http.MethodGet, "/api/test", "1.2.3.4:1234")
	req = httptest.NewRequest(http.MethodGet, "/api/test", nil)
	req.RemoteAddr = "1.2.3.4:1234"
	resp = httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	if resp.Code != http.StatusTooManyRequests || bytes.Contains(resp.Body.Bytes(), []byte("flagLevel")) {
		t.Fatalf("expected plain error envelope for operational path: %d %s", resp.Code, resp.Body.String())
	}
}
