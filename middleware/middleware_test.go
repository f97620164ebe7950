package middleware

import (
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"partygame/logger"
	"partygame/services"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestMain(m *testing.M) {
	gin.SetMode(gin.TestMode)
	logger.Set(zap.NewNop())
	os.Exit(m.Run())
}

func serve(r *gin.Engine, req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestRequestID_GeneratesAndPropagates(t *testing.T) {
	r := gin.New()
	r.Use(RequestID())
	var seen string
	r.GET("/", func(c *gin.Context) {
		seen = c.GetString(RequestIDKey)
		c.Status(http.StatusOK)
	})

	w := serve(r, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.NotEmpty(t, seen)
	assert.Equal(t, seen, w.Header().Get(RequestIDHeader))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(RequestIDHeader, "abc-123")
	w = serve(r, req)
	assert.Equal(t, "abc-123", seen)
	assert.Equal(t, "abc-123", w.Header().Get(RequestIDHeader))
}

func TestGinLogger_RecordsRequest(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	logger.Set(zap.New(core))
	t.Cleanup(func() { logger.Set(zap.NewNop()) })

	r := gin.New()
	r.Use(RequestID(), GinLogger())
	r.GET("/api/games", func(c *gin.Context) { c.Status(http.StatusTeapot) })

	req := httptest.NewRequest(http.MethodGet, "/api/games?x=1", nil)
	req.Header.Set(RequestIDHeader, "req-1")
	serve(r, req)

	entries := logs.FilterMessage("HTTP request").All()
	require.Len(t, entries, 1)
	fields := entries[0].ContextMap()
	assert.Equal(t, "/api/games", fields["path"])
	assert.Equal(t, "x=1", fields["query"])
	assert.Equal(t, int64(http.StatusTeapot), fields["status"])
	assert.Equal(t, "req-1", fields["request_id"])
}

func TestGinRecovery_Returns500(t *testing.T) {
	r := gin.New()
	r.Use(RequestID(), GinLogger(), GinRecovery())
	r.GET("/boom", func(c *gin.Context) { panic("boom") })

	w := serve(r, httptest.NewRequest(http.MethodGet, "/boom", nil))
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.JSONEq(t, `{"error":"Internal server error"}`, w.Body.String())
}

func TestAllowsAnyOrigin(t *testing.T) {
	assert.True(t, AllowsAnyOrigin(nil))
	assert.True(t, AllowsAnyOrigin([]string{"https://a.example", "*"}))
	assert.False(t, AllowsAnyOrigin([]string{"https://a.example"}))
}

func TestCORS_RestrictedOrigins(t *testing.T) {
	r := gin.New()
	r.Use(CORS([]string{"https://party.example"}))
	r.GET("/", func(c *gin.Context) { c.Status(http.StatusOK) })

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Origin", "https://party.example")
	w := serve(r, req)
	assert.Equal(t, "https://party.example", w.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Origin", "https://evil.example")
	w = serve(r, req)
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestIPRateLimiter_PerIPBudget(t *testing.T) {
	limiter := NewIPRateLimiter(1, 2)
	now := time.Now()
	limiter.now = func() time.Time { return now }

	assert.True(t, limiter.Allow("1.1.1.1"))
	assert.True(t, limiter.Allow("1.1.1.1"))
	assert.False(t, limiter.Allow("1.1.1.1"))
	assert.True(t, limiter.Allow("2.2.2.2"), "other IPs have their own bucket")

	now = now.Add(time.Second)
	assert.True(t, limiter.Allow("1.1.1.1"))
}

func TestIPRateLimiter_SweepsIdleBuckets(t *testing.T) {
	limiter := NewIPRateLimiter(1, 1)
	now := time.Now()
	limiter.now = func() time.Time { return now }

	limiter.Allow("1.1.1.1")
	now = now.Add(2 * limiterIdleTTL)
	limiter.Allow("2.2.2.2")

	limiter.mu.Lock()
	defer limiter.mu.Unlock()
	assert.NotContains(t, limiter.limiters, "1.1.1.1")
	assert.Contains(t, limiter.limiters, "2.2.2.2")
}

func TestRateLimit_Middleware(t *testing.T) {
	r := gin.New()
	r.Use(RateLimit(NewIPRateLimiter(0.001, 1)))
	r.GET("/", func(c *gin.Context) { c.Status(http.StatusOK) })

	assert.Equal(t, http.StatusOK, serve(r, httptest.NewRequest(http.MethodGet, "/", nil)).Code)
	assert.Equal(t, http.StatusTooManyRequests, serve(r, httptest.NewRequest(http.MethodGet, "/", nil)).Code)

	open := gin.New()
	open.Use(RateLimit(NewIPRateLimiter(0, 0)))
	open.GET("/", func(c *gin.Context) { c.Status(http.StatusOK) })
	for i := 0; i < 5; i++ {
		assert.Equal(t, http.StatusOK, serve(open, httptest.NewRequest(http.MethodGet, "/", nil)).Code)
	}
}

func hostAuthRouter(tokens *services.HostTokens, required bool) *gin.Engine {
	r := gin.New()
	r.POST("/games/:id/end", HostAuth(tokens, required), func(c *gin.Context) {
		_, authed := c.Get(HostClaimsKey)
		c.JSON(http.StatusOK, gin.H{"authed": authed})
	})
	return r
}

func endRequest(gameID, token string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/games/"+gameID+"/end", nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return req
}

func TestHostAuth(t *testing.T) {
	tokens := services.NewHostTokens("secret", time.Hour)
	token, err := tokens.Issue("GAME01", "host")
	require.NoError(t, err)

	optional := hostAuthRouter(tokens, false)
	required := hostAuthRouter(tokens, true)

	tests := []struct {
		name   string
		router *gin.Engine
		gameID string
		token  string
		status int
	}{
		{"optional without token", optional, "GAME01", "", http.StatusOK},
		{"required without token", required, "GAME01", "", http.StatusUnauthorized},
		{"valid token", required, "GAME01", token, http.StatusOK},
		{"lowercase path", required, "game01", token, http.StatusOK},
		{"other game", required, "GAME02", token, http.StatusForbidden},
		{"garbage token", optional, "GAME01", "garbage", http.StatusUnauthorized},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := serve(tt.router, endRequest(tt.gameID, tt.token))
			assert.Equal(t, tt.status, w.Code, w.Body.String())
		})
	}
}
