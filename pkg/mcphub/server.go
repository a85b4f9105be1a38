package mcphub

import (
	"context"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/mcphub-io/mcphub/pkg/logger"
)

// Server is the hub's HTTP façade: health/ping, the tool-router API, and the
// admin management surface.
type Server struct {
	config *Config
	Router *gin.Engine

	httpServer *http.Server
}

func NewServer(config *Config, service *HubService) *Server {
	if config == nil {
		config = DefaultConfig()
	}

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())

	s := &Server{config: config, Router: router}

	router.GET("/healthz", s.handleHealthz)
	router.GET("/api/v1/ping", s.handlePing)

	toolH := newToolHandlers(service)
	toolRoutes := router.Group("/mcp")
	toolRoutes.Use(recoverMiddleware("mcp"))
	toolRoutes.GET("/:group/tools", toolH.listTools)
	toolRoutes.POST("/:group/tools/call", toolH.callTool)

	admin := newAdminHandlers(service)
	adminRoutes := router.Group("/admin")
	adminRoutes.Use(recoverMiddleware("admin"), s.adminIPAllowlistMiddleware(), adminAuthMiddleware(config))
	adminRoutes.POST("/mcps", admin.addMCP)
	adminRoutes.PUT("/mcps/:name", admin.updateMCP)
	adminRoutes.DELETE("/mcps/:name", admin.removeMCP)
	adminRoutes.GET("/mcps", admin.listMCPs)
	adminRoutes.GET("/mcps/:name", admin.getMCP)
	adminRoutes.POST("/reload", admin.reload)
	adminRoutes.GET("/diagnostics", admin.diagnostics)
	adminRoutes.GET("/traces", admin.traces)

	return s
}

func (s *Server) handleHealthz(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "healthy",
		"timestamp": time.Now().UTC(),
		"version":   "1.0.0",
	})
}

func (s *Server) handlePing(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"message": "pong"})
}

// Start runs the HTTP server until ctx is canceled, then shuts it down
// gracefully within config.ShutdownTimeout.
func (s *Server) Start(ctx context.Context) error {
	s.httpServer = &http.Server{
		Addr:              s.config.Host + ":" + s.config.Port,
		Handler:           s.Router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.config.ShutdownTimeout)
		defer cancel()
		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			logger.FromContext(ctx).Error("server shutdown error", "error", err)
		}
		return ctx.Err()
	case err := <-errCh:
		return err
	}
}

// getClientIP resolves the caller's address, honoring X-Forwarded-For /
// X-Real-IP only when the immediate peer is a trusted proxy.
func (s *Server) getClientIP(c *gin.Context) string {
	remoteIP := remoteIPOf(c.Request.RemoteAddr)
	if !s.isTrustedProxy(remoteIP) {
		return remoteIP
	}

	if fwd := c.GetHeader("X-Forwarded-For"); fwd != "" {
		parts := strings.Split(fwd, ",")
		return strings.TrimSpace(parts[0])
	}
	if real := c.GetHeader("X-Real-IP"); real != "" {
		return strings.TrimSpace(real)
	}
	return remoteIP
}

func remoteIPOf(remoteAddr string) string {
	host, _, err := net.SplitHostPort(remoteAddr)
	if err != nil {
		return remoteAddr
	}
	return host
}

// adminIPAllowlistMiddleware rejects admin requests whose resolved client
// IP isn't in config.AllowIPs, ahead of token verification. An empty
// allow-list enforces no restriction.
func (s *Server) adminIPAllowlistMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !s.isAllowedAdminIP(s.getClientIP(c)) {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "Forbidden"})
			return
		}
		c.Next()
	}
}

// isTrustedProxy reports whether ip matches one of config.TrustedProxies,
// each entry being either an exact IP or a CIDR range. Malformed entries
// never match anything; they are not treated as errors.
func (s *Server) isTrustedProxy(ip string) bool {
	return ipMatchesAny(ip, s.config.TrustedProxies)
}

// isAllowedAdminIP reports whether ip matches one of config.AllowIPs. An
// empty allow-list means no IP restriction is enforced.
func (s *Server) isAllowedAdminIP(ip string) bool {
	if len(s.config.AllowIPs) == 0 {
		return true
	}
	return ipMatchesAny(ip, s.config.AllowIPs)
}

// ipMatchesAny reports whether ip matches one of entries, each either an
// exact IP or a CIDR range. Malformed entries never match anything; they
// are not treated as errors.
func ipMatchesAny(ip string, entries []string) bool {
	parsed := net.ParseIP(ip)
	if parsed == nil {
		return false
	}
	for _, entry := range entries {
		if entry == ip {
			return true
		}
		if _, cidr, err := net.ParseCIDR(entry); err == nil && cidr.Contains(parsed) {
			return true
		}
	}
	return false
}
