package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/arstate/FAFA-BIMBEL/internal/config"
	"github.com/arstate/FAFA-BIMBEL/internal/model"
	"github.com/arstate/FAFA-BIMBEL/internal/service"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testAuth() *service.AuthService {
	return service.NewAuthService(&config.Config{
		JWTSecret:  "test-secret",
		JWTExpiry:  time.Hour,
		BcryptCost: 4,
		AdminPIN:   "1509",
	})
}

func guarded(mw gin.HandlerFunc) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/p", mw, func(c *gin.Context) {
		c.String(http.StatusOK, GetClaims(c).UserID)
	})
	return r
}

func call(r *gin.Engine, target, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, target, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestJWTMiddleware(t *testing.T) {
	auth := testAuth()
	adminTok, err := auth.GenerateAdminToken()
	require.NoError(t, err)
	studentTok, err := auth.GenerateStudentToken(&model.User{ID: "u1", Username: "budi", Name: "Budi"})
	require.NoError(t, err)

	tests := []struct {
		name   string
		mw     gin.HandlerFunc
		token  string
		status int
	}{
		{"admin route with admin token", RequireAdminJWT(auth), adminTok, http.StatusOK},
		{"admin route with student token", RequireAdminJWT(auth), studentTok, http.StatusForbidden},
		{"student route with student token", RequireStudentJWT(auth), studentTok, http.StatusOK},
		{"student route with admin token", RequireStudentJWT(auth), adminTok, http.StatusForbidden},
		{"any role", RequireAuth(auth), studentTok, http.StatusOK},
		{"missing token", RequireAuth(auth), "", http.StatusUnauthorized},
		{"garbage token", RequireAuth(auth), "not-a-jwt", http.StatusUnauthorized},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := call(guarded(tt.mw), "/p", tt.token)
			assert.Equal(t, tt.status, w.Code)
		})
	}

	t.Run("query token fallback", func(t *testing.T) {
		w := call(guarded(RequireAuth(auth)), "/p?token="+studentTok, "")
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "u1", w.Body.String())
	})

	t.Run("websocket auth reads the query only", func(t *testing.T) {
		r := guarded(RequireWSAuth(auth))
		assert.Equal(t, http.StatusUnauthorized, call(r, "/p", adminTok).Code)
		assert.Equal(t, http.StatusOK, call(r, "/p?token="+adminTok, "").Code)
	})
}

func TestRateLimiter(t *testing.T) {
	clock := time.Date(2025, 3, 1, 8, 0, 0, 0, time.UTC)
	rl := NewRateLimiter(2, time.Minute)
	rl.now = func() time.Time { return clock }
	r := gin.New()
	r.GET("/open", rl.Middleware(), func(c *gin.Context) { c.Status(http.StatusNoContent) })

	assert.Equal(t, http.StatusNoContent, call(r, "/open", "").Code)
	assert.Equal(t, http.StatusNoContent, call(r, "/open", "").Code)

	clock = clock.Add(20 * time.Second)
	w := call(r, "/open", "")
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "40", w.Header().Get("Retry-After"))

	clock = clock.Add(40 * time.Second)
	assert.Equal(t, http.StatusNoContent, call(r, "/open", "").Code)
}
