package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
	"golang.org/x/time/rate"
)

func TestRateLimitRejectsAfterBurst(t *testing.T) {
	gin.SetMode(gin.TestMode)
	limiter := NewRateLimiter(rate.Every(time.Hour), 2, time.Minute)
	defer limiter.Stop()

	router := gin.New()
	router.Use(RateLimitWith(limiter))
	router.GET("/api/ping", func(c *gin.Context) { c.Status(http.StatusOK) })

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/api/ping", nil)
		req.RemoteAddr = "10.0.0.1:1234"
		router.ServeHTTP(rec, req)
		codes = append(codes, rec.Code)
	}

	assert.Equal(t, []int{200, 200, 429}, codes)
}

func TestRateLimiterIsPerIP(t *testing.T) {
	limiter := NewRateLimiter(rate.Every(time.Hour), 1, time.Minute)
	defer limiter.Stop()

	assert.True(t, limiter.GetLimiter("a").Allow())
	assert.False(t, limiter.GetLimiter("a").Allow())
	assert.True(t, limiter.GetLimiter("b").Allow())
}

func TestRateLimiterEvictsIdleEntries(t *testing.T) {
	limiter := NewRateLimiter(rate.Every(time.Hour), 1, time.Minute)
	defer limiter.Stop()

	limiter.GetLimiter("a")
	limiter.evict(time.Now().Add(2 * time.Minute))

	limiter.mu.Lock()
	defer limiter.mu.Unlock()
	assert.Empty(t, limiter.ips)
}

func TestCORSAllowsConfiguredOrigin(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(CORS("http://localhost:3000/, https://shop.example.com"))
	router.GET("/x", func(c *gin.Context) { c.Status(http.StatusOK) })

	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	req.Header.Set("Origin", "https://shop.example.com")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, "https://shop.example.com", rec.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest(http.MethodGet, "/x", nil)
	req.Header.Set("Origin", "https://evil.example.com")
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestRequestLoggerLevelFollowsStatus(t *testing.T) {
	gin.SetMode(gin.TestMode)
	core, logs := observer.New(zap.DebugLevel)

	router := gin.New()
	router.Use(RequestLogger(zap.New(core)))
	router.GET("/ok", func(c *gin.Context) { c.Status(http.StatusOK) })
	router.GET("/bad", func(c *gin.Context) { c.Status(http.StatusBadRequest) })
	router.GET("/boom", func(c *gin.Context) { c.Status(http.StatusInternalServerError) })

	for _, path := range []string{"/ok", "/bad", "/boom"} {
		router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, path, nil))
	}

	entries := logs.All()
	if assert.Len(t, entries, 3) {
		assert.Equal(t, zap.InfoLevel, entries[0].Level)
		assert.Equal(t, zap.WarnLevel, entries[1].Level)
		assert.Equal(t, zap.ErrorLevel, entries[2].Level)
	}
}

func TestPrometheusMiddlewareUsesRouteTemplate(t *testing.T) {
	gin.SetMode(gin.TestMode)
	reg := prometheus.NewRegistry()
	metrics := NewPrometheusMetrics(reg, "shop")

	router := gin.New()
	router.Use(metrics.Middleware())
	router.GET("/api/v1/products/:Id", func(c *gin.Context) { c.Status(http.StatusOK) })
	router.GET("/metrics", metrics.Handler())

	router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/v1/products/abc", nil))
	router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/v1/products/def", nil))

	assert.Equal(t, 2.0, testutil.ToFloat64(metrics.requests.WithLabelValues("GET", "/api/v1/products/:Id", "200")))

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Contains(t, rec.Body.String(), "http_request_duration_seconds")
}

type recordingMetrics struct {
	mu     sync.Mutex
	counts map[string]int
	done   chan struct{}
}

func (r *recordingMetrics) RecordCount(ctx context.Context, name string, dims map[string]string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.counts[name]++
	if name == "HTTP4xxErrors" {
		close(r.done)
	}
	return nil
}

func (r *recordingMetrics) RecordValue(ctx context.Context, name string, v float64, dims map[string]string) error {
	return nil
}

func (r *recordingMetrics) RecordLatency(ctx context.Context, name string, d time.Duration, dims map[string]string) error {
	return nil
}

func (r *recordingMetrics) IsEnabled() bool { return true }

func TestMetricsMiddlewareRecordsClientErrors(t *testing.T) {
	gin.SetMode(gin.TestMode)
	rec := &recordingMetrics{counts: map[string]int{}, done: make(chan struct{})}

	router := gin.New()
	router.Use(MetricsMiddleware(rec, "shop"))
	router.GET("/x", func(c *gin.Context) { c.Status(http.StatusNotFound) })
	router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/x", nil))

	select {
	case <-rec.done:
	case <-time.After(time.Second):
		t.Fatal("metrics were not recorded")
	}

	rec.mu.Lock()
	defer rec.mu.Unlock()
	assert.Equal(t, 1, rec.counts["HTTPRequests"])
	assert.Equal(t, 1, rec.counts["HTTPErrors"])
}
