// Package conversations persists agent conversation history. Two
// implementations are provided: a SQL store (sqlite or postgres) and a
// JSON-lines file store with one file per thread.
package conversations

import (
	"context"

	"github.com/agentry-ai/agentry/llm"
)

// Message roles as stored.
const (
	roleUser      = "user"
	roleAssistant = "assistant"
	roleTool      = "tool"
	roleSystem    = "system"
)

// Record is a single stored conversation entry.
type Record struct {
	Role      string `json:"role"`
	Content   string `json:"content"`
	ToolName  string `json:"tool_name,omitempty"`
	ToolID    string `json:"tool_id,omitempty"`
	CreatedAt int64  `json:"created_at"`
}

// Store persists conversation messages and reloads them as provider-neutral
// llm.Message history. It satisfies agent.MessagePersister.
type Store interface {
	// AppendUserMessage saves a user text message.
	AppendUserMessage(ctx context.Context, agentID, threadID, content string) error

	// AppendAssistantMessage saves an assistant text-only message.
	AppendAssistantMessage(ctx context.Context, agentID, threadID, content string) error

	// AppendToolCall saves an assistant tool use. Inserts are idempotent on
	// (agentID, threadID, toolID) so a crashed run can safely replay.
	AppendToolCall(ctx context.Context, agentID, threadID, toolID, toolName string, toolInput any) error

	// AppendToolResult saves the result of a tool call, idempotent like
	// AppendToolCall.
	AppendToolResult(ctx context.Context, agentID, threadID, toolID, toolName string, result any, isError bool) error

	// AppendSystemMessage saves a system message.
	AppendSystemMessage(ctx context.Context, agentID, threadID, content, breakType string) error

	// LoadHistory returns the conversation for (agentID, threadID) as
	// llm.Message history ready to feed back into a run.
	LoadHistory(ctx context.Context, agentID, threadID string) ([]llm.Message, error)
}

// toolUsePayload is the JSON shape stored for assistant tool calls.
type toolUsePayload struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Input any    `json:"input"`
}

// toolResultPayload is the JSON shape stored for tool results.
type toolResultPayload struct {
	ID      string `json:"id"`
	Result  string `json:"result"`
	IsError bool   `json:"is_error"`
}
