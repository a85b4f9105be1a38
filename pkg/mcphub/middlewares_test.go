package mcphub

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func TestCombineAuthTokens(t *testing.T) {
	t.Run("Should put global tokens ahead of client tokens and drop duplicates/empties", func(t *testing.T) {
		got := combineAuthTokens([]string{"g1", "", "shared"}, []string{"shared", "c1"})
		assert.Equal(t, []string{"g1", "shared", "c1"}, got)
	})
}

func TestAdminAuthMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)

	newRouter := func(cfg *Config) *gin.Engine {
		r := gin.New()
		r.Use(adminAuthMiddleware(cfg))
		r.GET("/admin/ping", func(c *gin.Context) { c.Status(http.StatusOK) })
		return r
	}

	t.Run("Should reject requests with no Authorization header", func(t *testing.T) {
		r := newRouter(&Config{AdminTokens: []string{"tok"}})
		req := httptest.NewRequest(http.MethodGet, "/admin/ping", nil)
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("Should reject an unknown bearer token", func(t *testing.T) {
		r := newRouter(&Config{AdminTokens: []string{"tok"}})
		req := httptest.NewRequest(http.MethodGet, "/admin/ping", nil)
		req.Header.Set("Authorization", "Bearer wrong")
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("Should accept a token from AdminTokens or GlobalAuthTokens", func(t *testing.T) {
		r := newRouter(&Config{AdminTokens: []string{"tok"}, GlobalAuthTokens: []string{"glob"}})
		for _, tok := range []string{"tok", "glob"} {
			req := httptest.NewRequest(http.MethodGet, "/admin/ping", nil)
			req.Header.Set("Authorization", "Bearer "+tok)
			rec := httptest.NewRecorder()
			r.ServeHTTP(rec, req)
			assert.Equal(t, http.StatusOK, rec.Code)
		}
	})

	t.Run("Should reject every request when no tokens are configured", func(t *testing.T) {
		r := newRouter(&Config{})
		req := httptest.NewRequest(http.MethodGet, "/admin/ping", nil)
		req.Header.Set("Authorization", "Bearer anything")
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})
}

func TestRecoverMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)

	t.Run("Should turn a panic into a 500 instead of crashing", func(t *testing.T) {
		r := gin.New()
		r.Use(recoverMiddleware("test"))
		r.GET("/boom", func(c *gin.Context) { panic("kaboom") })

		req := httptest.NewRequest(http.MethodGet, "/boom", nil)
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusInternalServerError, rec.Code)
	})
}
