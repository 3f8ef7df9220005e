package security

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func newTestRouter(mw gin.HandlerFunc) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(mw)
	r.GET("/api/tryouts", func(c *gin.Context) { c.Status(http.StatusOK) })
	r.GET("/healthz", func(c *gin.Context) { c.Status(http.StatusOK) })
	return r
}

func TestSecureNoStoreOnAPIRoutes(t *testing.T) {
	r := newTestRouter(Secure())

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/tryouts", nil))
	assert.Equal(t, "no-store", w.Header().Get("Cache-Control"))
	assert.Equal(t, "nosniff", w.Header().Get("X-Content-Type-Options"))

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Empty(t, w.Header().Get("Cache-Control"))
}

func TestCORSOnlyAllowsWhitelistedOrigin(t *testing.T) {
	r := newTestRouter(CORS([]string{"https://exam.example.com"}))

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/tryouts", nil)
	req.Header.Set("Origin", "https://exam.example.com")
	r.ServeHTTP(w, req)
	assert.Equal(t, "https://exam.example.com", w.Header().Get("Access-Control-Allow-Origin"))
	assert.Contains(t, w.Header().Values("Vary"), "Origin")

	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/api/tryouts", nil)
	req.Header.Set("Origin", "https://evil.example.com")
	r.ServeHTTP(w, req)
	assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
}

// 逐题自动保存会在短时间内连发几十个请求，限流要放过这种突发
func TestRateLimiterToleratesAutosaveBurst(t *testing.T) {
	r := newTestRouter(RateLimiter(6000, time.Minute))

	for i := 0; i < 40; i++ {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/tryouts", nil))
		assert.Equal(t, http.StatusOK, w.Code)
	}
}

func TestRateLimiterBlocksFlood(t *testing.T) {
	r := newTestRouter(RateLimiter(60, time.Minute))

	limited := false
	for i := 0; i < 200; i++ {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/tryouts", nil))
		if w.Code == http.StatusTooManyRequests {
			limited = true
			break
		}
	}
	assert.True(t, limited)
}
