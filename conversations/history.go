package conversations

import (
	"encoding/json"

	"github.com/agentry-ai/agentry/llm"
)

// recordsToMessages rebuilds llm.Message history from stored records.
//
// Assistant tool call rows and tool result rows are merged into the block
// structure providers expect: consecutive tool_use blocks join the preceding
// assistant message, and consecutive tool_result blocks become a single user
// message. Duplicate (role, tool_id) rows from replays are dropped. System
// rows are skipped since the system prompt is supplied per request.
func recordsToMessages(records []Record) []llm.Message {
	var messages []llm.Message
	seenToolRows := make(map[string]bool)

	appendBlock := func(role llm.MessageRole, block llm.ContentBlock) {
		if n := len(messages); n > 0 && messages[n-1].Role == role {
			messages[n-1].Content = append(messages[n-1].Content, block)
			return
		}
		messages = append(messages, llm.Message{
			Role:    role,
			Content: []llm.ContentBlock{block},
		})
	}

	for _, rec := range records {
		switch rec.Role {
		case roleUser:
			messages = append(messages, llm.NewTextMessage(llm.RoleUser, rec.Content))

		case roleAssistant:
			if rec.ToolID == "" {
				messages = append(messages, llm.NewTextMessage(llm.RoleAssistant, rec.Content))
				continue
			}
			if seenToolRows[roleAssistant+":"+rec.ToolID] {
				continue
			}
			seenToolRows[roleAssistant+":"+rec.ToolID] = true

			var payload toolUsePayload
			if err := json.Unmarshal([]byte(rec.Content), &payload); err != nil {
				continue
			}
			input, _ := payload.Input.(map[string]any)
			if input == nil {
				input = make(map[string]any)
			}
			appendBlock(llm.RoleAssistant, llm.ContentBlock{
				Type: llm.ContentBlockTypeToolUse,
				ToolUse: &llm.ToolUseBlock{
					ID:    payload.ID,
					Name:  payload.Name,
					Input: input,
				},
			})

		case roleTool:
			if rec.ToolID == "" || seenToolRows[roleTool+":"+rec.ToolID] {
				continue
			}
			seenToolRows[roleTool+":"+rec.ToolID] = true

			var payload toolResultPayload
			if err := json.Unmarshal([]byte(rec.Content), &payload); err != nil {
				continue
			}
			appendBlock(llm.RoleUser, llm.ContentBlock{
				Type: llm.ContentBlockTypeToolResult,
				ToolResult: &llm.ToolResultBlock{
					ID:      payload.ID,
					Content: payload.Result,
					IsError: payload.IsError,
				},
			})
		}
	}

	return messages
}
