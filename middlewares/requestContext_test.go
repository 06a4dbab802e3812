package middlewares

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/mmdatafocus/supplies_backend/config"
	"github.com/mmdatafocus/supplies_backend/utils"
)

func serve(r *gin.Engine, path string, headers ...string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestReadinessGateWithoutDatabase(t *testing.T) {
	gin.SetMode(gin.TestMode)
	prev := config.GetDB()
	config.SetDB(nil)
	t.Cleanup(func() { config.SetDB(prev) })

	r := gin.New()
	r.Use(ReadinessGate(false))
	r.GET("/healthz", func(c *gin.Context) { c.Status(http.StatusOK) })
	r.GET("/api/ping", func(c *gin.Context) { c.Status(http.StatusOK) })

	if w := serve(r, "/healthz"); w.Code != http.StatusNoContent {
		t.Fatalf("healthz: got %d", w.Code)
	}
	if w := serve(r, "/api/ping"); w.Code != http.StatusServiceUnavailable {
		t.Fatalf("ping before ready: got %d", w.Code)
	}
}

func TestCorrelationAndIdempotencyReachTheContext(t *testing.T) {
	gin.SetMode(gin.TestMode)

	var gotCid, gotKey string
	r := gin.New()
	r.Use(CorrelationMiddleware(), IdempotencyMiddleware())
	r.GET("/", func(c *gin.Context) {
		gotCid, _ = utils.GetCorrelationIdFromContext(c.Request.Context())
		gotKey, _ = utils.GetIdempotencyKeyFromContext(c.Request.Context())
		c.Status(http.StatusOK)
	})

	w := serve(r, "/", CorrelationIdHeader, "cid-1", IdempotencyKeyHeader, " key-1 ")
	if gotCid != "cid-1" || w.Header().Get(CorrelationIdHeader) != "cid-1" {
		t.Fatalf("correlation id: ctx %q header %q", gotCid, w.Header().Get(CorrelationIdHeader))
	}
	if gotKey != "key-1" {
		t.Fatalf("idempotency key: got %q", gotKey)
	}

	serve(r, "/")
	if gotCid == "" || gotCid == "cid-1" {
		t.Fatalf("expected a fresh correlation id, got %q", gotCid)
	}
}

func TestRateLimiterWithoutRedisPassesThrough(t *testing.T) {
	gin.SetMode(gin.TestMode)
	rl := NewRateLimiter(nil, 1, time.Minute)

	r := gin.New()
	r.Use(rl.RateLimitMiddleware)
	r.GET("/", func(c *gin.Context) { c.Status(http.StatusOK) })

	for i := 0; i < 3; i++ {
		if w := serve(r, "/"); w.Code != http.StatusOK {
			t.Fatalf("request %d: got %d", i, w.Code)
		}
	}
}
