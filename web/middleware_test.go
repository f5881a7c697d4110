package web

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

func TestRateLimiterBlocksAfterBurst(t *testing.T) {
	gin.SetMode(gin.TestMode)
	g := gin.New()
	g.Use(RateLimitMiddleware(NewRateLimiter(rate.Limit(1), 2)))
	g.GET("/", func(c *gin.Context) { c.Status(http.StatusOK) })

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		w := httptest.NewRecorder()
		req := httptest.NewRequest("GET", "/", nil)
		req.RemoteAddr = "10.0.0.1:1234"
		g.ServeHTTP(w, req)
		codes = append(codes, w.Code)
	}

	if codes[0] != http.StatusOK || codes[1] != http.StatusOK {
		t.Errorf("Requests within the burst should pass, got %v", codes)
	}
	if codes[2] != http.StatusTooManyRequests {
		t.Errorf("The request beyond the burst should be limited, got %v", codes)
	}
}

func TestRateLimiterPerIP(t *testing.T) {
	gin.SetMode(gin.TestMode)
	g := gin.New()
	g.Use(RateLimitMiddleware(NewRateLimiter(rate.Limit(1), 1)))
	g.GET("/", func(c *gin.Context) { c.Status(http.StatusOK) })

	first := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/", nil)
	req.RemoteAddr = "10.0.0.1:1234"
	g.ServeHTTP(first, req)

	// A different client keeps its own bucket.
	second := httptest.NewRecorder()
	req = httptest.NewRequest("GET", "/", nil)
	req.RemoteAddr = "10.0.0.2:1234"
	g.ServeHTTP(second, req)

	if first.Code != http.StatusOK || second.Code != http.StatusOK {
		t.Errorf("Each IP gets its own budget, got %d and %d", first.Code, second.Code)
	}
}

func TestMaxBytesMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	g := gin.New()
	g.POST("/", MaxBytesMiddleware(10), func(c *gin.Context) { c.Status(http.StatusOK) })

	w := httptest.NewRecorder()
	req := httptest.NewRequest("POST", "/", strings.NewReader("well within"))
	req.ContentLength = 100
	g.ServeHTTP(w, req)

	if w.Code != http.StatusRequestEntityTooLarge {
		t.Errorf("Expected 413 for an oversized body, got %d", w.Code)
	}

	w = httptest.NewRecorder()
	req = httptest.NewRequest("POST", "/", strings.NewReader("tiny"))
	g.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("Expected 200 for a small body, got %d", w.Code)
	}
}
