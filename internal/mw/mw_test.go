package mw

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func serve(r *gin.Engine, method, path string, header http.Header) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	for k, v := range header {
		req.Header[http.CanonicalHeaderKey(k)] = v
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestCache(t *testing.T) {
	rc := NewResponseCache(time.Minute)
	calls := 0
	r := gin.New()
	r.Use(Cache(rc))
	r.GET("/rooms", func(c *gin.Context) {
		calls++
		c.JSON(http.StatusOK, gin.H{"calls": calls})
	})
	r.GET("/missing", func(c *gin.Context) {
		calls++
		c.JSON(http.StatusNotFound, gin.H{"error": "nope"})
	})

	first := serve(r, http.MethodGet, "/rooms", nil)
	second := serve(r, http.MethodGet, "/rooms", nil)
	assert.Equal(t, first.Body.String(), second.Body.String())
	assert.Equal(t, "HIT", second.Header().Get("X-Cache"))
	assert.Equal(t, "application/json; charset=utf-8", second.Header().Get("Content-Type"))
	assert.Equal(t, 1, calls)

	fresh := serve(r, http.MethodGet, "/rooms", http.Header{"Cache-Control": {"no-cache"}})
	assert.JSONEq(t, `{"calls":2}`, fresh.Body.String())

	rc.Invalidate()
	assert.Equal(t, 0, rc.Len())
	serve(r, http.MethodGet, "/rooms", nil)
	assert.Equal(t, 3, calls)

	serve(r, http.MethodGet, "/missing", nil)
	serve(r, http.MethodGet, "/missing", nil)
	assert.Equal(t, 5, calls, "error responses are not cached")
}

func TestRateLimiter(t *testing.T) {
	limiter := NewIPRateLimiter(rate.Limit(1), 2)
	r := gin.New()
	r.Use(RateLimiter(limiter))
	r.GET("/", func(c *gin.Context) { c.Status(http.StatusOK) })

	assert.Equal(t, http.StatusOK, serve(r, http.MethodGet, "/", nil).Code)
	assert.Equal(t, http.StatusOK, serve(r, http.MethodGet, "/", nil).Code)
	w := serve(r, http.MethodGet, "/", nil)
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "1", w.Header().Get("Retry-After"))
}

func TestIPRateLimiter_Evict(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	limiter := NewIPRateLimiter(rate.Limit(1), 1)
	limiter.now = func() time.Time { return now }

	limiter.GetLimiter("10.0.0.1")
	now = now.Add(10 * time.Minute)
	limiter.GetLimiter("10.0.0.2")

	assert.Equal(t, 1, limiter.Evict(5*time.Minute))
	assert.Equal(t, 1, limiter.Len())
}

func TestRequestID(t *testing.T) {
	r := gin.New()
	r.Use(RequestID())
	r.GET("/", func(c *gin.Context) { c.String(http.StatusOK, GetRequestID(c)) })

	w := serve(r, http.MethodGet, "/", nil)
	_, err := uuid.Parse(w.Header().Get(RequestIDHeader))
	require.NoError(t, err)
	assert.Equal(t, w.Header().Get(RequestIDHeader), w.Body.String())

	id := uuid.NewString()
	w = serve(r, http.MethodGet, "/", http.Header{RequestIDHeader: {id}})
	assert.Equal(t, id, w.Body.String())

	w = serve(r, http.MethodGet, "/", http.Header{RequestIDHeader: {"not-a-uuid"}})
	assert.NotEqual(t, "not-a-uuid", w.Body.String())
}

func signed(t *testing.T, secret string, method jwt.SigningMethod, exp time.Time) string {
	token := jwt.NewWithClaims(method, jwt.RegisteredClaims{
		Subject:   "dashboard",
		ExpiresAt: jwt.NewNumericDate(exp),
	})
	s, err := token.SignedString([]byte(secret))
	require.NoError(t, err)
	return s
}

func TestBearerAuth(t *testing.T) {
	r := gin.New()
	r.Use(BearerAuth("s3cret"))
	r.POST("/control", func(c *gin.Context) { c.String(http.StatusOK, Subject(c)) })

	w := serve(r, http.MethodPost, "/control", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	good := signed(t, "s3cret", jwt.SigningMethodHS256, time.Now().Add(time.Hour))
	w = serve(r, http.MethodPost, "/control", http.Header{"Authorization": {"Bearer " + good}})
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "dashboard", w.Body.String())

	for name, token := range map[string]string{
		"wrong secret": signed(t, "other", jwt.SigningMethodHS256, time.Now().Add(time.Hour)),
		"wrong alg":    signed(t, "s3cret", jwt.SigningMethodHS512, time.Now().Add(time.Hour)),
		"expired":      signed(t, "s3cret", jwt.SigningMethodHS256, time.Now().Add(-time.Hour)),
	} {
		w = serve(r, http.MethodPost, "/control", http.Header{"Authorization": {"Bearer " + token}})
		assert.Equal(t, http.StatusUnauthorized, w.Code, name)
	}
}

func TestBearerAuth_Disabled(t *testing.T) {
	r := gin.New()
	r.Use(BearerAuth(""))
	r.POST("/control", func(c *gin.Context) { c.Status(http.StatusOK) })
	assert.Equal(t, http.StatusOK, serve(r, http.MethodPost, "/control", nil).Code)
}
