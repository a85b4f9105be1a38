package mcphub

import (
	"time"

	"github.com/google/uuid"
)

// ToolOriginKind distinguishes a tool backed by a connected MCP server from
// one synthesized by the API-to-MCP adapter.
type ToolOriginKind string

const (
	OriginBackend ToolOriginKind = "backend"
	OriginAdapter ToolOriginKind = "adapter"
)

// ToolOrigin identifies where a Tool's implementation lives.
type ToolOrigin struct {
	Kind     ToolOriginKind `json:"kind"`
	ServerID string         `json:"serverId,omitempty"`
	ToolID   string         `json:"toolId,omitempty"`
}

// Tool is the uniform descriptor the registry, resolver, and router share.
type Tool struct {
	Name        string         `json:"name"`
	Description string         `json:"description,omitempty"`
	InputSchema map[string]any `json:"inputSchema,omitempty"`
	Origin      ToolOrigin     `json:"origin"`
}

// Group is a declarative visibility/invocation policy over a set of servers.
type Group struct {
	ID      string   `json:"id"`
	Name    string   `json:"name,omitempty"`
	Servers []string `json:"servers"`
	// Tools, when non-empty, is an explicit allow-list of tool names.
	// Empty means "every tool belonging to Servers".
	Tools []string `json:"tools,omitempty"`
}

const DefaultGroupID = "default"

// MessageKind distinguishes the three shapes of MCP traffic the tracer observes.
type MessageKind string

const (
	MessageRequest      MessageKind = "request"
	MessageResponse     MessageKind = "response"
	MessageNotification MessageKind = "notification"
)

// MessageRecord is one entry in a per-server ring buffer of observed traffic.
type MessageRecord struct {
	ID              string      `json:"id"`
	ServerID        string      `json:"serverId"`
	Type            MessageKind `json:"type"`
	Method          string      `json:"method"`
	Content         any         `json:"content,omitempty"`
	Timestamp       time.Time   `json:"timestamp"`
	ExecutionTimeMs int64       `json:"executionTimeMs,omitempty"`
}

func newMessageRecord(serverID string, kind MessageKind, method string, content any) MessageRecord {
	return MessageRecord{
		ID:        uuid.NewString(),
		ServerID:  serverID,
		Type:      kind,
		Method:    method,
		Content:   content,
		Timestamp: time.Now(),
	}
}

// ContentBlock is a tagged union; the hub only produces "text" blocks.
// Backend content of any other kind is rendered into a text block by
// backendResultToToolResult, not passed through; Rest is never serialized.
type ContentBlock struct {
	Kind string         `json:"kind"`
	Text string         `json:"text,omitempty"`
	Rest map[string]any `json:"-"`
}

// TextBlock builds a {kind:"text", text:...} content block.
func TextBlock(text string) ContentBlock {
	return ContentBlock{Kind: "text", Text: text}
}

// ToolResult is the uniform outcome of a CallTool invocation.
type ToolResult struct {
	Content []ContentBlock `json:"content"`
	IsError bool           `json:"isError"`
}

// ErrorResult builds a failure ToolResult with the taxonomy-formatted message
// "<category>: <detail>", matching the error-handling design's response shape.
func ErrorResult(category, detail string) *ToolResult {
	return &ToolResult{
		IsError: true,
		Content: []ContentBlock{TextBlock(category + ": " + detail)},
	}
}

// TextResult builds a successful single-text-block ToolResult.
func TextResult(text string) *ToolResult {
	return &ToolResult{Content: []ContentBlock{TextBlock(text)}}
}

// Diagnostics is the aggregated status payload returned by the hub service.
type Diagnostics struct {
	Servers struct {
		Total     int                    `json:"total"`
		Connected int                    `json:"connected"`
		Details   map[string]ServerStatus `json:"details"`
	} `json:"servers"`
	Groups struct {
		Count int `json:"count"`
	} `json:"groups"`
	Tools struct {
		Total int `json:"total"`
	} `json:"tools"`
}
