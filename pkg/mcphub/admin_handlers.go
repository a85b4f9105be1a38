package mcphub

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/mcphub-io/mcphub/pkg/corekit"
)

// adminHandlers exposes CRUD over backend server registrations plus the
// reload/diagnostics/traces operational surface.
type adminHandlers struct {
	service *HubService
}

func newAdminHandlers(service *HubService) *adminHandlers {
	return &adminHandlers{service: service}
}

func (h *adminHandlers) addMCP(c *gin.Context) {
	var cfg ServerConfig
	if err := c.ShouldBindJSON(&cfg); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}
	if err := h.service.CreateMCP(c.Request.Context(), &cfg); err != nil {
		status := http.StatusBadRequest
		if err.Error() == "mcp already exists" {
			status = http.StatusConflict
			c.JSON(status, gin.H{"error": "MCP already exists"})
			return
		}
		c.JSON(status, gin.H{"error": "Invalid request"})
		return
	}
	c.JSON(http.StatusCreated, gin.H{
		"message": "MCP definition added successfully",
		"name":    cfg.Name,
	})
}

func (h *adminHandlers) updateMCP(c *gin.Context) {
	name := c.Param("name")
	var cfg ServerConfig
	if err := c.ShouldBindJSON(&cfg); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}
	if err := h.service.UpdateMCP(c.Request.Context(), name, &cfg); err != nil {
		if err.Error() == "mcp not found" {
			c.JSON(http.StatusNotFound, gin.H{"error": "MCP not found"})
			return
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "MCP definition updated successfully", "name": name})
}

func (h *adminHandlers) removeMCP(c *gin.Context) {
	name := c.Param("name")
	if err := h.service.RemoveMCP(c.Request.Context(), name); err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "MCP not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "MCP definition removed successfully", "name": name})
}

func (h *adminHandlers) listMCPs(c *gin.Context) {
	mcps, err := h.service.ListMCPs()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}
	for _, cfg := range mcps {
		redactServerConfigSecrets(cfg)
	}
	c.JSON(http.StatusOK, gin.H{"mcps": mcps})
}

func (h *adminHandlers) getMCP(c *gin.Context) {
	cfg, err := h.service.GetMCP(c.Param("name"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "MCP not found"})
		return
	}
	redactServerConfigSecrets(cfg)
	c.JSON(http.StatusOK, cfg)
}

// redactServerConfigSecrets scrubs credential-shaped env vars and headers
// before a ServerConfig crosses the admin HTTP boundary.
func redactServerConfigSecrets(cfg *ServerConfig) {
	if cfg == nil {
		return
	}
	cfg.Env = corekit.RedactHeaders(cfg.Env)
	cfg.Headers = corekit.RedactHeaders(cfg.Headers)
}

func (h *adminHandlers) reload(c *gin.Context) {
	var body struct {
		Servers []*ServerConfig `json:"servers"`
		Groups  []*Group        `json:"groups"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}
	h.service.Reload(c.Request.Context(), body.Servers, body.Groups)
	c.JSON(http.StatusOK, gin.H{"message": "reload complete"})
}

func (h *adminHandlers) diagnostics(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"diagnostics": h.service.Diagnostics()})
}

func (h *adminHandlers) traces(c *gin.Context) {
	serverID := c.Query("server")
	kind := MessageKind(c.Query("kind"))
	limit := 100
	if v := c.Query("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			limit = n
		}
	}
	c.JSON(http.StatusOK, gin.H{"traces": h.service.Traces(serverID, kind, limit)})
}
