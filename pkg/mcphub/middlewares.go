package mcphub

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/mcphub-io/mcphub/pkg/logger"
)

// recoverMiddleware turns a panic in handler into a logged 500 instead of
// crashing the process, tagging the log line with the route name.
func recoverMiddleware(name string) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if rec := recover(); rec != nil {
				logger.FromContext(c.Request.Context()).Error("panic recovered", "route", name, "recover", rec)
				c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
					"error":   "Internal server error",
					"details": "An unexpected error occurred",
				})
			}
		}()
		c.Next()
	}
}

// wrapWithGinMiddlewares adapts a plain http.Handler into a gin.HandlerFunc
// running the given middlewares first.
func wrapWithGinMiddlewares(handler http.Handler, middlewares ...gin.HandlerFunc) gin.HandlerFunc {
	return func(c *gin.Context) {
		for _, m := range middlewares {
			m(c)
			if c.IsAborted() {
				return
			}
		}
		if handler == nil {
			c.JSON(http.StatusInternalServerError, gin.H{
				"error":   "Handler not initialized",
				"details": "Handler not initialized",
			})
			return
		}
		handler.ServeHTTP(c.Writer, c.Request)
	}
}

// combineAuthTokens merges globalTokens ahead of clientTokens, preserving
// order and dropping duplicates/empties, so one hub-wide admin credential
// always authorizes alongside any request-scoped token.
func combineAuthTokens(globalTokens, clientTokens []string) []string {
	seen := make(map[string]bool, len(globalTokens)+len(clientTokens))
	var out []string
	for _, list := range [][]string{globalTokens, clientTokens} {
		for _, t := range list {
			if t == "" || seen[t] {
				continue
			}
			seen[t] = true
			out = append(out, t)
		}
	}
	return out
}

// adminAuthMiddleware requires a Bearer token present in cfg.AdminTokens
// (combined with GlobalAuthTokens) to reach the admin surface.
func adminAuthMiddleware(cfg *Config) gin.HandlerFunc {
	tokens := combineAuthTokens(cfg.GlobalAuthTokens, cfg.AdminTokens)
	allowed := make(map[string]bool, len(tokens))
	for _, t := range tokens {
		allowed[t] = true
	}
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") || !allowed[parts[1]] {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
			return
		}
		c.Next()
	}
}
