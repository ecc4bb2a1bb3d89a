package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func TestRateLimit_PerIP(t *testing.T) {
	gin.SetMode(gin.TestMode)

	router := gin.New()
	router.Use(RateLimit(t.Context(), 2, 200*time.Millisecond, "Muitas importações, tente novamente em instantes"))
	router.POST("/import", func(c *gin.Context) {
		c.String(200, "ok")
	})

	doReq := func(ip string) *httptest.ResponseRecorder {
		req := httptest.NewRequest("POST", "/import", nil)
		req.RemoteAddr = ip + ":12345"
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		return w
	}

	assert.Equal(t, 200, doReq("192.168.1.1").Code)
	assert.Equal(t, 200, doReq("192.168.1.1").Code)
	w := doReq("192.168.1.1")
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Contains(t, w.Body.String(), "Muitas importações")

	assert.Equal(t, 200, doReq("192.168.1.2").Code)

	time.Sleep(250 * time.Millisecond)
	assert.Equal(t, 200, doReq("192.168.1.1").Code)
}

func TestRateLimit_PerAccount(t *testing.T) {
	gin.SetMode(gin.TestMode)

	router := gin.New()
	router.Use(func(c *gin.Context) {
		SetCurrentUserID(c, c.GetHeader("X-Test-User"))
		c.Next()
	})
	router.Use(RateLimit(t.Context(), 1, time.Minute, "limite"))
	router.POST("/import", func(c *gin.Context) {
		c.String(200, "ok")
	})

	doReq := func(user string) int {
		req := httptest.NewRequest("POST", "/import", nil)
		req.Header.Set("X-Test-User", user)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		return w.Code
	}

	assert.Equal(t, 200, doReq("family-a"))
	assert.Equal(t, http.StatusTooManyRequests, doReq("family-a"))
	assert.Equal(t, 200, doReq("family-b"), "same IP, other account")
}

func TestRateLimit_Disabled(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(RateLimit(t.Context(), 0, time.Minute, "limite"))
	router.GET("/", func(c *gin.Context) { c.String(200, "ok") })

	for i := 0; i < 5; i++ {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest("GET", "/", nil))
		assert.Equal(t, 200, w.Code)
	}
}

func TestRateLimiter_SweepDropsIdleKeys(t *testing.T) {
	l := NewRateLimiter(t.Context(), 1, time.Minute)
	start := time.Date(2024, 3, 5, 12, 0, 0, 0, time.UTC)

	assert.True(t, l.Allow("family-a", start))
	assert.False(t, l.Allow("family-a", start.Add(30*time.Second)))
	assert.True(t, l.Allow("family-b", start.Add(50*time.Second)))

	l.sweep(start.Add(90 * time.Second))
	assert.Equal(t, 1, l.keys())

	l.sweep(start.Add(2 * time.Minute))
	assert.Equal(t, 0, l.keys())
	assert.True(t, l.Allow("family-a", start.Add(2*time.Minute)))
}

func TestRateLimiter_SweeperStopsWithContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	l := NewRateLimiter(ctx, 5, time.Minute)

	select {
	case <-l.done:
		t.Fatal("sweeper exited before cancel")
	default:
	}

	cancel()
	select {
	case <-l.done:
	case <-time.After(time.Second):
		t.Fatal("sweeper still running after cancel")
	}
}
