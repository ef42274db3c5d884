package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/fasticket/backend/internal/auth"
	"github.com/fasticket/backend/pkg/ratelimit"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newRouter(mw ...gin.HandlerFunc) *gin.Engine {
	r := gin.New()
	r.Use(mw...)
	r.GET("/me", func(c *gin.Context) {
		id, ok := UserID(c)
		if !ok {
			c.String(http.StatusOK, "anonymous")
			return
		}
		c.String(http.StatusOK, id.String())
	})
	return r
}

func get(r http.Handler, header string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	if header != "" {
		req.Header.Set("Authorization", header)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestJWT(t *testing.T) {
	svc := auth.NewJWTService("secret", "", "")
	userID := uuid.New()
	token, err := svc.Generate(userID, "ada@example.com", time.Hour)
	require.NoError(t, err)

	r := newRouter(JWT(svc))

	assert.Equal(t, http.StatusUnauthorized, get(r, "").Code)
	assert.Equal(t, http.StatusUnauthorized, get(r, "Token "+token).Code)
	assert.Equal(t, http.StatusUnauthorized, get(r, "Bearer garbage").Code)

	w := get(r, "Bearer "+token)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, userID.String(), w.Body.String())
}

func TestOptionalJWT(t *testing.T) {
	svc := auth.NewJWTService("secret", "", "")
	userID := uuid.New()
	token, err := svc.Generate(userID, "ada@example.com", time.Hour)
	require.NoError(t, err)

	r := newRouter(OptionalJWT(svc))

	assert.Equal(t, "anonymous", get(r, "").Body.String())
	assert.Equal(t, "anonymous", get(r, "Bearer garbage").Body.String())
	assert.Equal(t, userID.String(), get(r, "Bearer "+token).Body.String())
}

func TestCORS(t *testing.T) {
	r := newRouter(CORS("http://localhost:3000"))

	req := httptest.NewRequest(http.MethodOptions, "/me", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "http://localhost:3000", w.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("Origin", "http://evil.test")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
}

func TestParseOrigins(t *testing.T) {
	o := ParseOrigins(" https://fasticket.app , http://localhost:3000,")
	assert.Len(t, o, 2)
	assert.True(t, o.Allows("https://fasticket.app"))
	assert.False(t, o.Allows("https://other.app"))

	assert.True(t, ParseOrigins("*").Allows("https://other.app"))
	assert.True(t, ParseOrigins("").AllowsAll())
}

func TestRateLimit(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	r := newRouter(RateLimit(ratelimit.New(rdb, "test:"), "bookings", 2, time.Minute, zap.NewNop()))

	assert.Equal(t, http.StatusOK, get(r, "").Code)
	w := get(r, "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "0", w.Header().Get("X-RateLimit-Remaining"))

	w = get(r, "")
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.NotEmpty(t, w.Header().Get("Retry-After"))
}

func TestRateLimit_FailsOpen(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	mr.Close()

	r := newRouter(RateLimit(ratelimit.New(rdb, "test:"), "bookings", 1, time.Minute, nil))
	assert.Equal(t, http.StatusOK, get(r, "").Code)
	assert.Equal(t, http.StatusOK, get(r, "").Code)
}
