package security

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestGateway(t *testing.T) (*gin.Engine, *Gate) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	logger := zap.NewNop()
	store := NewReputationStore(DefaultSuspiciousThreshold, logger)
	healer := NewAutoHealer(NewReputationStore(DefaultSuspiciousThreshold, logger), nil, logger)
	limiter := NewRateLimiter(logger)

	gate := NewGate(GateConfig{
		AllowedOrigins: []string{"anmilktea.com", "*.vercel.app"},
	}, limiter, store, healer, logger)

	router := gin.New()
	router.Use(Headers())
	router.Use(gate.Middleware())
	router.Any("/api/orders", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"ok": true}) })
	router.GET("/api/menu", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"ok": true}) })
	router.GET("/health", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"ok": true}) })
	return router, gate
}

func doRequest(router *gin.Engine, method, target, ip string, mutate ...func(*http.Request)) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, nil)
	req.RemoteAddr = ip + ":40000"
	for _, m := range mutate {
		m(req)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestGate_SQLInjectionBlocksIPAcrossEndpoints(t *testing.T) {
	router, _ := newTestGateway(t)
	ip := "203.0.113.7"

	w := doRequest(router, http.MethodGet, "/api/menu?q=foo%27+OR+%271%27%3D%271", ip)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	// The 7-day block now denies every endpoint for this IP
	w = doRequest(router, http.MethodGet, "/api/menu", ip)
	assert.Equal(t, http.StatusForbidden, w.Code)

	// Other IPs are unaffected
	w = doRequest(router, http.MethodGet, "/api/menu", "203.0.113.8")
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestGate_RateLimitEscalatesToBlock(t *testing.T) {
	router, _ := newTestGateway(t)
	ip := "203.0.113.20"

	for i := 0; i < 5; i++ {
		w := doRequest(router, http.MethodGet, "/api/orders", ip)
		require.Equal(t, http.StatusOK, w.Code, "request %d should pass", i+1)
	}

	w := doRequest(router, http.MethodGet, "/api/orders", ip)
	assert.Equal(t, http.StatusTooManyRequests, w.Code)

	retryAfter, err := strconv.Atoi(w.Header().Get("Retry-After"))
	require.NoError(t, err)
	assert.InDelta(t, 300, retryAfter, 5)

	// Still blocked moments later
	w = doRequest(router, http.MethodGet, "/api/orders", ip)
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
}

func TestGate_ScannerUserAgentDenied(t *testing.T) {
	router, gate := newTestGateway(t)

	w := doRequest(router, http.MethodGet, "/api/menu", "203.0.113.30", func(r *http.Request) {
		r.Header.Set("User-Agent", "sqlmap/1.7-dev (https://sqlmap.org)")
	})
	assert.Equal(t, http.StatusForbidden, w.Code)

	stats := gate.healer.GetStats(1)
	assert.Equal(t, 1, stats.IncidentsByType[string(IncidentSuspiciousIP)])
}

func TestGate_SensitivePathsReturn404(t *testing.T) {
	router, _ := newTestGateway(t)

	for i, target := range []string{"/.env", "/.git/config", "/wp-admin/setup.php", "/phpmyadmin/index.php"} {
		ip := fmt.Sprintf("203.0.113.%d", 40+i)
		w := doRequest(router, http.MethodGet, target, ip)
		assert.Equal(t, http.StatusNotFound, w.Code, "path %s", target)
	}
}

// Repeated probing of sensitive paths escalates into a block.
func TestGate_SensitivePathProbesEscalate(t *testing.T) {
	router, _ := newTestGateway(t)
	ip := "203.0.113.45"

	for i := 0; i < 3; i++ {
		w := doRequest(router, http.MethodGet, "/.env", ip)
		assert.Equal(t, http.StatusNotFound, w.Code)
	}

	w := doRequest(router, http.MethodGet, "/api/menu", ip)
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestGate_OriginValidation(t *testing.T) {
	router, _ := newTestGateway(t)
	ip := "203.0.113.50"

	t.Run("no origin header passes", func(t *testing.T) {
		w := doRequest(router, http.MethodGet, "/api/menu", ip)
		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("allowed exact host", func(t *testing.T) {
		w := doRequest(router, http.MethodGet, "/api/menu", ip, func(r *http.Request) {
			r.Header.Set("Origin", "https://anmilktea.com")
		})
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "https://anmilktea.com", w.Header().Get("Access-Control-Allow-Origin"))
	})

	t.Run("wildcard suffix", func(t *testing.T) {
		w := doRequest(router, http.MethodGet, "/api/menu", ip, func(r *http.Request) {
			r.Header.Set("Origin", "https://preview-abc123.vercel.app")
		})
		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("unknown origin denied", func(t *testing.T) {
		w := doRequest(router, http.MethodGet, "/api/menu", ip, func(r *http.Request) {
			r.Header.Set("Origin", "https://evil.example")
		})
		assert.Equal(t, http.StatusForbidden, w.Code)
	})
}

func TestGate_MethodAndContentType(t *testing.T) {
	router, _ := newTestGateway(t)
	ip := "203.0.113.60"

	w := doRequest(router, http.MethodPut, "/api/orders", ip)
	assert.Equal(t, http.StatusMethodNotAllowed, w.Code)

	w = doRequest(router, http.MethodPost, "/api/orders", ip, func(r *http.Request) {
		r.Body = http.NoBody
		r.ContentLength = 12
		r.Header.Set("Content-Type", "text/plain")
	})
	assert.Equal(t, http.StatusUnsupportedMediaType, w.Code)
}

func TestGate_SecurityHeadersOnEveryResponse(t *testing.T) {
	router, _ := newTestGateway(t)

	w := doRequest(router, http.MethodGet, "/api/menu", "203.0.113.70")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Security-Policy"), "default-src 'self'")
	assert.Equal(t, "DENY", w.Header().Get("X-Frame-Options"))
	assert.Equal(t, "nosniff", w.Header().Get("X-Content-Type-Options"))
	assert.True(t, strings.HasPrefix(w.Header().Get("Strict-Transport-Security"), "max-age="))
	assert.Empty(t, w.Header().Get("Server"))
	assert.Empty(t, w.Header().Get("X-Powered-By"))
}

func TestGate_SkipsFrameworkAndStaticPaths(t *testing.T) {
	router, gate := newTestGateway(t)

	// A blocked IP still reaches /health
	gate.store.Block("203.0.113.80", time.Hour)
	w := doRequest(router, http.MethodGet, "/health", "203.0.113.80")
	assert.Equal(t, http.StatusOK, w.Code)
}
