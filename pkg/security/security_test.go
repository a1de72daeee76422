package security

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func TestIPLimiter_BurstThenRefill(t *testing.T) {
	l := NewIPLimiter(2, time.Minute)
	now := time.Date(2026, 3, 4, 10, 0, 0, 0, time.UTC)

	assert.True(t, l.Allow("10.0.0.1", now))
	assert.True(t, l.Allow("10.0.0.1", now))
	assert.False(t, l.Allow("10.0.0.1", now))

	// 其他 IP 不受影响
	assert.True(t, l.Allow("10.0.0.2", now))

	assert.True(t, l.Allow("10.0.0.1", now.Add(30*time.Second)))
}

func TestIPLimiter_Sweep(t *testing.T) {
	l := NewIPLimiter(10, time.Minute)
	now := time.Date(2026, 3, 4, 10, 0, 0, 0, time.UTC)
	l.Allow("10.0.0.1", now)
	l.Allow("10.0.0.2", now.Add(3*time.Minute))

	assert.Equal(t, 1, l.Sweep(now.Add(4*time.Minute)))
	assert.Equal(t, 0, l.Sweep(now.Add(4*time.Minute)))
}

func TestCORS(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(CORS([]string{"https://edu.example.com"}))
	r.GET("/ping", func(c *gin.Context) { c.Status(http.StatusOK) })

	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	req.Header.Set("Origin", "https://edu.example.com")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, "https://edu.example.com", w.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest(http.MethodGet, "/ping", nil)
	req.Header.Set("Origin", "https://evil.example.com")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest(http.MethodOptions, "/ping", nil)
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusNoContent, w.Code)
}
