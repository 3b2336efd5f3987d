package gemini

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/agentry-ai/agentry/llm"
	"github.com/google/uuid"
)

// Gemini does not assign IDs to function calls, so we synthesize IDs that
// embed the function name. Tool results are matched back to the originating
// function by parsing the name out of the ID. The random suffix keeps IDs
// unique across responses in a thread; persistence layers deduplicate tool
// rows by ID, so reusing one would drop later calls on reload.
const toolIDSeparator = "-call-"

func toolCallID(name string) string {
	return name + toolIDSeparator + uuid.NewString()
}

func toolNameFromID(id string) string {
	if i := strings.LastIndex(id, toolIDSeparator); i >= 0 {
		return id[:i]
	}
	return id
}

// toGeminiContents converts llm.Messages to Gemini content entries.
// Gemini uses role "model" for assistant turns and expects tool results
// as functionResponse parts in a user turn.
func toGeminiContents(msgs []llm.Message) ([]content, error) {
	result := make([]content, 0, len(msgs))
	for _, msg := range msgs {
		c, err := toGeminiContent(msg)
		if err != nil {
			return nil, fmt.Errorf("failed to convert message: %w", err)
		}
		if len(c.Parts) == 0 {
			continue
		}
		result = append(result, c)
	}
	return result, nil
}

func toGeminiContent(msg llm.Message) (content, error) {
	role := "user"
	if msg.Role == llm.RoleAssistant {
		role = "model"
	}

	parts := make([]part, 0, len(msg.Content))
	for _, block := range msg.Content {
		switch block.Type {
		case llm.ContentBlockTypeText:
			if block.Text != "" {
				parts = append(parts, part{Text: block.Text})
			}
		case llm.ContentBlockTypeToolUse:
			if block.ToolUse != nil {
				parts = append(parts, part{
					FunctionCall: &functionCall{
						Name: block.ToolUse.Name,
						Args: block.ToolUse.Input,
					},
				})
			}
		case llm.ContentBlockTypeToolResult:
			if block.ToolResult != nil {
				parts = append(parts, part{
					FunctionResponse: &functionResponse{
						Name:     toolNameFromID(block.ToolResult.ID),
						Response: toolResultPayload(block.ToolResult),
					},
				})
			}
		}
	}

	return content{Role: role, Parts: parts}, nil
}

// toolResultPayload converts a tool result into the JSON object Gemini
// expects as a functionResponse. Non-object results are wrapped.
func toolResultPayload(tr *llm.ToolResultBlock) map[string]interface{} {
	var obj map[string]interface{}
	if err := json.Unmarshal([]byte(tr.Content), &obj); err == nil && obj != nil {
		if tr.IsError {
			obj["is_error"] = true
		}
		return obj
	}

	payload := map[string]interface{}{"result": tr.Content}
	if tr.IsError {
		payload["is_error"] = true
	}
	return payload
}

// toGeminiTools converts llm.ToolSpecs to Gemini function declarations.
func toGeminiTools(specs []llm.ToolSpec) []toolDeclaration {
	if len(specs) == 0 {
		return nil
	}

	decls := make([]functionDeclaration, 0, len(specs))
	for _, spec := range specs {
		decl := functionDeclaration{
			Name:        spec.Name,
			Description: spec.Description,
		}
		schemaType := spec.Schema.Type
		if schemaType == "" {
			schemaType = "object"
		}
		decl.Parameters = &schemaObject{
			Type:       schemaType,
			Properties: spec.Schema.Properties,
			Required:   spec.Schema.Required,
		}
		decls = append(decls, decl)
	}

	return []toolDeclaration{{FunctionDeclarations: decls}}
}

// fromGeminiCandidate converts a response candidate to content blocks.
func fromGeminiCandidate(cand candidate) []llm.ContentBlock {
	blocks := make([]llm.ContentBlock, 0, len(cand.Content.Parts))
	for _, p := range cand.Content.Parts {
		switch {
		case p.FunctionCall != nil:
			input := p.FunctionCall.Args
			if input == nil {
				input = make(map[string]interface{})
			}
			blocks = append(blocks, llm.ContentBlock{
				Type: llm.ContentBlockTypeToolUse,
				ToolUse: &llm.ToolUseBlock{
					ID:    toolCallID(p.FunctionCall.Name),
					Name:  p.FunctionCall.Name,
					Input: input,
				},
			})
		case p.Text != "":
			blocks = append(blocks, llm.ContentBlock{
				Type: llm.ContentBlockTypeText,
				Text: p.Text,
			})
		}
	}
	return blocks
}

// mapFinishReason maps Gemini finish reasons to provider-neutral stop reasons.
func mapFinishReason(reason string, hasToolCall bool) string {
	if hasToolCall {
		return "tool_use"
	}
	switch reason {
	case "STOP":
		return "end_turn"
	case "MAX_TOKENS":
		return "max_tokens"
	case "SAFETY", "RECITATION":
		return "content_filter"
	default:
		return "end_turn"
	}
}

func fromGeminiUsage(meta *usageMetadata) *llm.Usage {
	if meta == nil {
		return nil
	}
	return &llm.Usage{
		InputTokens:  meta.PromptTokenCount,
		OutputTokens: meta.CandidatesTokenCount,
	}
}
