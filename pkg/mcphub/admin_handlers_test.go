package mcphub

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestAdminServer(t *testing.T) *Server {
	t.Helper()
	svc := newTestHubService(t)
	cfg := DefaultConfig()
	cfg.AdminTokens = []string{"secret"}
	return NewServer(cfg, svc)
}

func doAdmin(t *testing.T, srv *Server, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var r *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		r = bytes.NewReader(data)
	} else {
		r = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, r)
	req.Header.Set("Authorization", "Bearer secret")
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	srv.Router.ServeHTTP(rec, req)
	return rec
}

func TestAdminHandlers_MCPCrud(t *testing.T) {
	t.Run("Should add, get, list, update, and remove an MCP definition", func(t *testing.T) {
		srv := newTestAdminServer(t)

		add := doAdmin(t, srv, http.MethodPost, "/admin/mcps", &ServerConfig{
			Name: "srv1", Transport: TransportStdio, Command: "echo",
		})
		assert.Equal(t, http.StatusCreated, add.Code)

		get := doAdmin(t, srv, http.MethodGet, "/admin/mcps/srv1", nil)
		assert.Equal(t, http.StatusOK, get.Code)

		list := doAdmin(t, srv, http.MethodGet, "/admin/mcps", nil)
		assert.Equal(t, http.StatusOK, list.Code)
		assert.Contains(t, list.Body.String(), "srv1")

		update := doAdmin(t, srv, http.MethodPut, "/admin/mcps/srv1", &ServerConfig{
			Transport: TransportStdio, Command: "cat",
		})
		assert.Equal(t, http.StatusOK, update.Code)

		remove := doAdmin(t, srv, http.MethodDelete, "/admin/mcps/srv1", nil)
		assert.Equal(t, http.StatusOK, remove.Code)

		missing := doAdmin(t, srv, http.MethodGet, "/admin/mcps/srv1", nil)
		assert.Equal(t, http.StatusNotFound, missing.Code)
	})

	t.Run("Should reject a duplicate name with 409", func(t *testing.T) {
		srv := newTestAdminServer(t)
		cfg := &ServerConfig{Name: "dup", Transport: TransportStdio, Command: "echo"}
		assert.Equal(t, http.StatusCreated, doAdmin(t, srv, http.MethodPost, "/admin/mcps", cfg).Code)
		assert.Equal(t, http.StatusConflict, doAdmin(t, srv, http.MethodPost, "/admin/mcps", cfg).Code)
	})

	t.Run("Should reject an invalid body with 400", func(t *testing.T) {
		srv := newTestAdminServer(t)
		rec := doAdmin(t, srv, http.MethodPost, "/admin/mcps", &ServerConfig{Name: "bad", Transport: "bogus"})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("Should 404 updating or removing an unknown MCP", func(t *testing.T) {
		srv := newTestAdminServer(t)
		assert.Equal(t, http.StatusNotFound,
			doAdmin(t, srv, http.MethodPut, "/admin/mcps/ghost", &ServerConfig{Transport: TransportStdio, Command: "echo"}).Code)
		assert.Equal(t, http.StatusNotFound, doAdmin(t, srv, http.MethodDelete, "/admin/mcps/ghost", nil).Code)
	})

	t.Run("Should redact env and header secrets in list/get responses", func(t *testing.T) {
		srv := newTestAdminServer(t)
		cfg := &ServerConfig{
			Name: "secretive", Transport: TransportStdio, Command: "echo",
			Env: map[string]string{"API_TOKEN": "shh"},
		}
		require.Equal(t, http.StatusCreated, doAdmin(t, srv, http.MethodPost, "/admin/mcps", cfg).Code)

		get := doAdmin(t, srv, http.MethodGet, "/admin/mcps/secretive", nil)
		assert.NotContains(t, get.Body.String(), "shh")
	})
}

func TestAdminHandlers_ReloadDiagnosticsTraces(t *testing.T) {
	t.Run("Should accept a reload payload", func(t *testing.T) {
		srv := newTestAdminServer(t)
		rec := doAdmin(t, srv, http.MethodPost, "/admin/reload", map[string]any{
			"servers": []*ServerConfig{},
			"groups":  []*Group{{ID: DefaultGroupID, Servers: []string{}}},
		})
		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("Should report diagnostics", func(t *testing.T) {
		srv := newTestAdminServer(t)
		rec := doAdmin(t, srv, http.MethodGet, "/admin/diagnostics", nil)
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), "servers")
	})

	t.Run("Should report traces", func(t *testing.T) {
		srv := newTestAdminServer(t)
		rec := doAdmin(t, srv, http.MethodGet, "/admin/traces", nil)
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), "traces")
	})
}
