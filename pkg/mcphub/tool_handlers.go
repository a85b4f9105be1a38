package mcphub

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// toolHandlers exposes the group-scoped tool-router API: list the tools
// visible in a group and invoke one, a surface the underlying backends never
// had since it proxied raw transports instead of routing by tool name.
type toolHandlers struct {
	service *HubService
}

func newToolHandlers(service *HubService) *toolHandlers {
	return &toolHandlers{service: service}
}

func (h *toolHandlers) listTools(c *gin.Context) {
	group := c.Param("group")
	c.JSON(http.StatusOK, gin.H{"tools": h.service.ListTools(group)})
}

func (h *toolHandlers) callTool(c *gin.Context) {
	group := c.Param("group")

	var body struct {
		Name      string         `json:"name"`
		Arguments map[string]any `json:"arguments"`
	}
	if err := c.ShouldBindJSON(&body); err != nil || body.Name == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}

	result, err := h.service.CallTool(c.Request.Context(), group, body.Name, body.Arguments)
	if err != nil {
		if hubErr, ok := AsHubError(err); ok {
			c.JSON(statusForError(hubErr), gin.H{"error": hubErr.Error(), "code": hubErr.Code})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, result)
}

// statusForError maps a taxonomy error to the HTTP status a caller should
// see, per-code where the category alone would be misleading.
func statusForError(e *Error) int {
	switch e.Code {
	case CodeToolNotFound, CodeGroupNotFound:
		return http.StatusNotFound
	case CodeAccessDenied:
		return http.StatusForbidden
	case CodeBadArgs, CodeBadRequestFormat, CodeMissingParam, CodeTypeMismatch, CodeBadValue:
		return http.StatusBadRequest
	}
	switch e.Category {
	case CategoryValidation:
		return http.StatusBadRequest
	case CategoryConnection:
		return http.StatusBadGateway
	case CategoryConfiguration:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}
