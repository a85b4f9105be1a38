package adapter

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mcphub-io/mcphub/pkg/corekit"
)

func TestEngine_Execute_HappyPathAndCache(t *testing.T) {
	t.Run("Should execute a GET tool and serve the second identical call from cache", func(t *testing.T) {
		var calls int32
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			atomic.AddInt32(&calls, 1)
			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(`{"ok":true}`))
		}))
		defer srv.Close()

		engine := NewEngine(corekit.EnvMap{})
		defer engine.Close()

		cfg := &ApiToolConfig{
			ID:   "tool1",
			Name: "tool1",
			API:  APICallConfig{URL: srv.URL, Method: MethodGET},
			Cache: CacheConfig{Enabled: true, TTLSeconds: 60},
		}

		result1, err := engine.Execute(context.Background(), cfg, map[string]any{})
		require.NoError(t, err)
		assert.False(t, result1.IsError)
		assert.Contains(t, result1.Text, "ok")

		result2, err := engine.Execute(context.Background(), cfg, map[string]any{})
		require.NoError(t, err)
		assert.Equal(t, result1, result2)
		assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
	})
}

func TestEngine_Execute_BearerAuthWithEnv(t *testing.T) {
	t.Run("Should apply a bearer token resolved from the environment", func(t *testing.T) {
		var gotAuth string
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			gotAuth = r.Header.Get("Authorization")
			w.Write([]byte(`{}`))
		}))
		defer srv.Close()

		engine := NewEngine(corekit.EnvMap{"API_TOKEN": "sekret"})
		defer engine.Close()

		cfg := &ApiToolConfig{
			ID:   "secure",
			Name: "secure",
			API:  APICallConfig{URL: srv.URL, Method: MethodGET},
			Security: SecurityConfig{Authentication: AuthConfig{Type: AuthBearer, Token: "{{env.API_TOKEN}}"}},
		}

		result, err := engine.Execute(context.Background(), cfg, map[string]any{})
		require.NoError(t, err)
		assert.False(t, result.IsError)
		assert.Equal(t, "Bearer sekret", gotAuth)
	})
}

func TestEngine_Execute_ValidationFailure(t *testing.T) {
	t.Run("Should short-circuit before any HTTP call when args fail validation", func(t *testing.T) {
		var called bool
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			called = true
		}))
		defer srv.Close()

		engine := NewEngine(corekit.EnvMap{})
		defer engine.Close()

		cfg := &ApiToolConfig{
			ID:   "tool1",
			Name: "tool1",
			API:  APICallConfig{URL: srv.URL, Method: MethodGET},
			Parameters: map[string]any{
				"type":     "object",
				"required": []any{"name"},
				"properties": map[string]any{
					"name": map[string]any{"type": "string"},
				},
			},
		}

		result, err := engine.Execute(context.Background(), cfg, map[string]any{})
		require.NoError(t, err)
		assert.True(t, result.IsError)
		assert.False(t, called)
	})
}

func TestEngine_Execute_RetryOnTransientStatus(t *testing.T) {
	t.Run("Should retry a 503 response and eventually succeed", func(t *testing.T) {
		var attempts int32
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			n := atomic.AddInt32(&attempts, 1)
			if n < 2 {
				w.WriteHeader(http.StatusServiceUnavailable)
				return
			}
			w.Write([]byte(`{"ok":true}`))
		}))
		defer srv.Close()

		engine := NewEngine(corekit.EnvMap{})
		defer engine.Close()

		cfg := &ApiToolConfig{
			ID:   "flaky",
			Name: "flaky",
			API:  APICallConfig{URL: srv.URL, Method: MethodGET, Retries: 2},
		}

		result, err := engine.Execute(context.Background(), cfg, map[string]any{})
		require.NoError(t, err)
		assert.False(t, result.IsError)
		assert.GreaterOrEqual(t, atomic.LoadInt32(&attempts), int32(2))
	})

	t.Run("Should fail after exhausting retries against a permanently failing backend", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		}))
		defer srv.Close()

		engine := NewEngine(corekit.EnvMap{})
		defer engine.Close()

		cfg := &ApiToolConfig{
			ID:   "down",
			Name: "down",
			API:  APICallConfig{URL: srv.URL, Method: MethodGET, Retries: 1},
		}

		_, err := engine.Execute(context.Background(), cfg, map[string]any{})
		assert.Error(t, err)
	})
}

func TestEngine_Execute_DisabledTool(t *testing.T) {
	t.Run("Should return an error result without making any call", func(t *testing.T) {
		engine := NewEngine(corekit.EnvMap{})
		defer engine.Close()

		cfg := &ApiToolConfig{ID: "off", Name: "off", Disabled: true, DisabledWhy: "missing env vars: [X]"}
		result, err := engine.Execute(context.Background(), cfg, map[string]any{})
		require.NoError(t, err)
		assert.True(t, result.IsError)
	})
}

func TestEngine_Execute_ResponseTransform(t *testing.T) {
	t.Run("Should apply the configured jsonata-substitute transform on success", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{"value": 41}`))
		}))
		defer srv.Close()

		engine := NewEngine(corekit.EnvMap{})
		defer engine.Close()

		cfg := &ApiToolConfig{
			ID:   "transform",
			Name: "transform",
			API:  APICallConfig{URL: srv.URL, Method: MethodGET},
			Response: ResponseConfig{JSONata: "body.value + 1.0"},
		}

		result, err := engine.Execute(context.Background(), cfg, map[string]any{})
		require.NoError(t, err)
		assert.False(t, result.IsError)
		assert.Equal(t, "42", result.Text)
	})
}
