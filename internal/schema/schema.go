// Package schema defines the data model shared across the gateway:
// chat messages, tool results, intent classifications, and the JSON
// envelopes exchanged over the WebSocket transport.
package schema

import (
	"time"
)

// Role identifies who (or what) produced a chat message.
type Role string

const (
	RoleUser          Role = "user"
	RoleAssistant     Role = "assistant"
	RoleSystem        Role = "system"
	RoleToolExecution Role = "tool_execution"
	RoleError         Role = "error"
)

// ToolStatus is the lifecycle state of a single tool execution.
type ToolStatus string

const (
	StatusPending   ToolStatus = "pending"
	StatusRunning   ToolStatus = "running"
	StatusCompleted ToolStatus = "completed"
	StatusFailed    ToolStatus = "failed"
)

// ContentType tags a content block variant.
type ContentType string

const (
	ContentText  ContentType = "text"
	ContentCode  ContentType = "code"
	ContentImage ContentType = "image"
	ContentData  ContentType = "data"
	ContentError ContentType = "error"
)

// ToolResult is the outcome of one tool execution attempt. A failed
// result always carries a non-empty Error. ExecutionTime is in seconds
// and is stamped by the safe-execution wrapper, never by the tool.
type ToolResult struct {
	ToolName      string         `json:"tool_name"`
	Status        ToolStatus     `json:"status"`
	Result        map[string]any `json:"result,omitempty"`
	Error         string         `json:"error,omitempty"`
	ExecutionTime float64        `json:"execution_time,omitempty"`
}

// Content is a single block of a message. Content holds either a string
// or structured data depending on Type.
type Content struct {
	Type     ContentType    `json:"type"`
	Content  any            `json:"content"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// ChatMessage is one entry in a session's conversation history.
type ChatMessage struct {
	ID          string       `json:"id"`
	Role        Role         `json:"type"`
	Content     []Content    `json:"content"`
	Timestamp   time.Time    `json:"timestamp"`
	UserID      string       `json:"user_id,omitempty"`
	SessionID   string       `json:"session_id,omitempty"`
	ToolResults []ToolResult `json:"tool_results,omitempty"`
}

// PrimaryContent returns the payload of the first content block when it
// is a string, or "" otherwise. Used when flattening history into
// classification context.
func (m *ChatMessage) PrimaryContent() string {
	if len(m.Content) == 0 {
		return ""
	}
	if s, ok := m.Content[0].Content.(string); ok {
		return s
	}
	return ""
}

// UserQuery is an incoming request to process one user message.
type UserQuery struct {
	Message   string `json:"message"`
	SessionID string `json:"session_id,omitempty"`
	UserID    string `json:"user_id,omitempty"`
}

// AgentResponse is the final structured response for one query.
// ProcessingTime is in seconds.
type AgentResponse struct {
	MessageID      string    `json:"message_id"`
	ResponseType   Role      `json:"response_type"`
	Content        []Content `json:"content"`
	ToolsUsed      []string  `json:"tools_used,omitempty"`
	ProcessingTime float64   `json:"processing_time"`
	SessionID      string    `json:"session_id,omitempty"`
}

// ParamSpec describes one parameter of a tool: its type, constraints,
// and optional default.
type ParamSpec struct {
	Type        string   `json:"type"`
	Description string   `json:"description,omitempty"`
	Default     any      `json:"default,omitempty"`
	Minimum     *float64 `json:"minimum,omitempty"`
	Maximum     *float64 `json:"maximum,omitempty"`
	Enum        []string `json:"enum,omitempty"`
}

// ToolDefinition is the immutable description of a tool's contract.
type ToolDefinition struct {
	Name           string               `json:"name"`
	Description    string               `json:"description"`
	Parameters     map[string]ParamSpec `json:"parameters"`
	RequiredParams []string             `json:"required_params"`
	Category       string               `json:"category"`
	Enabled        bool                 `json:"enabled"`
}

// IntentClassification is the structured outcome of classifying one
// message. SuggestedTools is never empty and every name in it has an
// entry in Parameters.
type IntentClassification struct {
	Intent         string                    `json:"intent"`
	Confidence     float64                   `json:"confidence"`
	SuggestedTools []string                  `json:"suggested_tools"`
	Parameters     map[string]map[string]any `json:"parameters"`
	Reasoning      string                    `json:"reasoning,omitempty"`
}

// SessionStats summarizes one session for the stats endpoints.
type SessionStats struct {
	SessionID          string  `json:"session_id"`
	CreatedAt          float64 `json:"created_at"`
	MessageCount       int     `json:"message_count"`
	ConversationLength int     `json:"conversation_length"`
	LastActivity       string  `json:"last_activity,omitempty"`
}
