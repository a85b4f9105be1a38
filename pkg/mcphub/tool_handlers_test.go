package mcphub

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServerWithTool(t *testing.T) (*Server, *Registry) {
	t.Helper()
	registry := NewRegistry()
	require.NoError(t, registry.Register(context.Background(), &Tool{
		Name:   "echo",
		Origin: ToolOrigin{Kind: OriginBackend, ServerID: "srv1", ToolID: "echo"},
	}))
	tracer := NewTracer(defaultTraceCapacity)
	resolver := NewResolver(registry)
	resolver.SetGroups([]*Group{{ID: DefaultGroupID, Servers: []string{"srv1"}}})
	lifecycle := NewLifecycleManager(registry, tracer, DefaultLifecycleConfig())
	service := NewHubService(NewMemoryStorage(), lifecycle, registry, resolver, tracer, nil)
	return NewServer(DefaultConfig(), service), registry
}

func TestToolHandlers_ListTools(t *testing.T) {
	t.Run("Should list tools visible in the default group", func(t *testing.T) {
		srv, _ := newTestServerWithTool(t)
		req := httptest.NewRequest(http.MethodGet, "/mcp/default/tools", nil)
		rec := httptest.NewRecorder()
		srv.Router.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), "echo")
	})
}

func TestToolHandlers_CallTool(t *testing.T) {
	t.Run("Should reject a call with no tool name", func(t *testing.T) {
		srv, _ := newTestServerWithTool(t)
		req := httptest.NewRequest(http.MethodPost, "/mcp/default/tools/call", bytes.NewReader([]byte(`{}`)))
		req.Header.Set("Content-Type", "application/json")
		rec := httptest.NewRecorder()
		srv.Router.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("Should reject malformed JSON", func(t *testing.T) {
		srv, _ := newTestServerWithTool(t)
		req := httptest.NewRequest(http.MethodPost, "/mcp/default/tools/call", bytes.NewReader([]byte(`not json`)))
		req.Header.Set("Content-Type", "application/json")
		rec := httptest.NewRecorder()
		srv.Router.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("Should report 404 for an unknown tool name", func(t *testing.T) {
		srv, _ := newTestServerWithTool(t)
		body, _ := json.Marshal(map[string]any{"name": "ghost"})
		req := httptest.NewRequest(http.MethodPost, "/mcp/default/tools/call", bytes.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		rec := httptest.NewRecorder()
		srv.Router.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("Should report a bad gateway when the origin backend is not connected", func(t *testing.T) {
		srv, _ := newTestServerWithTool(t)
		body, _ := json.Marshal(map[string]any{"name": "echo", "arguments": map[string]any{}})
		req := httptest.NewRequest(http.MethodPost, "/mcp/default/tools/call", bytes.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		rec := httptest.NewRecorder()
		srv.Router.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusBadGateway, rec.Code)
	})

	t.Run("Should report 404 for a group that cannot see the tool", func(t *testing.T) {
		srv, _ := newTestServerWithTool(t)
		body, _ := json.Marshal(map[string]any{"name": "echo"})
		req := httptest.NewRequest(http.MethodPost, "/mcp/other-group/tools/call", bytes.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		rec := httptest.NewRecorder()
		srv.Router.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}

func TestStatusForError(t *testing.T) {
	t.Run("Should map validation errors to 400", func(t *testing.T) {
		assert.Equal(t, http.StatusBadRequest, statusForError(NewValidationError("bad", nil)))
	})

	t.Run("Should map system errors to 500", func(t *testing.T) {
		assert.Equal(t, http.StatusInternalServerError, statusForError(NewSystemError(CodeInternal, nil, "boom")))
	})
}
