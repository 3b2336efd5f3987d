package bedrock

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/agentry-ai/agentry/llm"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime/document"
	bedrocktypes "github.com/aws/aws-sdk-go-v2/service/bedrockruntime/types"
)

// sanitizeToolName replaces characters Bedrock rejects in tool names.
// Converse requires names matching [a-zA-Z0-9_-]+.
func sanitizeToolName(name string) string {
	var b strings.Builder
	b.Grow(len(name))
	for _, ch := range name {
		switch {
		case ch >= 'a' && ch <= 'z', ch >= 'A' && ch <= 'Z', ch >= '0' && ch <= '9', ch == '_', ch == '-':
			b.WriteRune(ch)
		default:
			b.WriteRune('_')
		}
	}
	return b.String()
}

// toConverseMessages converts llm.Messages to Converse API messages.
// The Converse API requires strictly alternating user/assistant turns,
// so consecutive messages with the same role are merged.
func toConverseMessages(msgs []llm.Message, nameMap map[string]string) ([]bedrocktypes.SystemContentBlock, []bedrocktypes.Message, error) {
	var systemBlocks []bedrocktypes.SystemContentBlock
	var converseMessages []bedrocktypes.Message

	appendBlocks := func(role bedrocktypes.ConversationRole, blocks []bedrocktypes.ContentBlock) {
		if len(blocks) == 0 {
			return
		}
		if n := len(converseMessages); n > 0 && converseMessages[n-1].Role == role {
			converseMessages[n-1].Content = append(converseMessages[n-1].Content, blocks...)
			return
		}
		converseMessages = append(converseMessages, bedrocktypes.Message{
			Role:    role,
			Content: blocks,
		})
	}

	for _, msg := range msgs {
		if msg.Role == llm.RoleSystem {
			for _, block := range msg.Content {
				if block.Type == llm.ContentBlockTypeText && block.Text != "" {
					systemBlocks = append(systemBlocks, &bedrocktypes.SystemContentBlockMemberText{
						Value: block.Text,
					})
				}
			}
			continue
		}

		role := bedrocktypes.ConversationRoleUser
		if msg.Role == llm.RoleAssistant {
			role = bedrocktypes.ConversationRoleAssistant
		}

		var blocks []bedrocktypes.ContentBlock
		for _, block := range msg.Content {
			switch block.Type {
			case llm.ContentBlockTypeText:
				if block.Text != "" {
					blocks = append(blocks, &bedrocktypes.ContentBlockMemberText{
						Value: block.Text,
					})
				}

			case llm.ContentBlockTypeToolUse:
				if block.ToolUse == nil {
					continue
				}
				input := block.ToolUse.Input
				if input == nil {
					input = map[string]interface{}{}
				}
				sanitized := sanitizeToolName(block.ToolUse.Name)
				nameMap[sanitized] = block.ToolUse.Name
				blocks = append(blocks, &bedrocktypes.ContentBlockMemberToolUse{
					Value: bedrocktypes.ToolUseBlock{
						ToolUseId: aws.String(block.ToolUse.ID),
						Name:      aws.String(sanitized),
						Input:     document.NewLazyDocument(input),
					},
				})

			case llm.ContentBlockTypeToolResult:
				if block.ToolResult == nil {
					continue
				}
				blocks = append(blocks, toConverseToolResult(block.ToolResult))
			}
		}

		appendBlocks(role, blocks)
	}

	if len(converseMessages) == 0 {
		return nil, nil, fmt.Errorf("no valid messages to send")
	}

	return systemBlocks, converseMessages, nil
}

// toConverseToolResult converts a tool result block, preferring a JSON
// document when the content parses as JSON.
func toConverseToolResult(tr *llm.ToolResultBlock) bedrocktypes.ContentBlock {
	var resultContent bedrocktypes.ToolResultContentBlock

	var contentData interface{}
	if err := json.Unmarshal([]byte(tr.Content), &contentData); err == nil && contentData != nil {
		resultContent = &bedrocktypes.ToolResultContentBlockMemberJson{
			Value: document.NewLazyDocument(contentData),
		}
	} else {
		resultContent = &bedrocktypes.ToolResultContentBlockMemberText{
			Value: tr.Content,
		}
	}

	status := bedrocktypes.ToolResultStatusSuccess
	if tr.IsError {
		status = bedrocktypes.ToolResultStatusError
	}

	return &bedrocktypes.ContentBlockMemberToolResult{
		Value: bedrocktypes.ToolResultBlock{
			ToolUseId: aws.String(tr.ID),
			Content:   []bedrocktypes.ToolResultContentBlock{resultContent},
			Status:    status,
		},
	}
}

// toConverseTools converts llm.ToolSpecs to a Converse ToolConfiguration.
func toConverseTools(specs []llm.ToolSpec, nameMap map[string]string) *bedrocktypes.ToolConfiguration {
	if len(specs) == 0 {
		return nil
	}

	var converseTools []bedrocktypes.Tool
	for _, spec := range specs {
		sanitized := sanitizeToolName(spec.Name)
		nameMap[sanitized] = spec.Name

		schemaType := spec.Schema.Type
		if schemaType == "" {
			schemaType = "object"
		}
		schemaMap := map[string]interface{}{
			"type": schemaType,
		}
		if spec.Schema.Properties != nil {
			schemaMap["properties"] = spec.Schema.Properties
		}
		if len(spec.Schema.Required) > 0 {
			schemaMap["required"] = spec.Schema.Required
		}
		for k, v := range spec.Schema.ExtraFields {
			schemaMap[k] = v
		}

		converseTools = append(converseTools, &bedrocktypes.ToolMemberToolSpec{
			Value: bedrocktypes.ToolSpecification{
				Name:        aws.String(sanitized),
				Description: aws.String(spec.Description),
				InputSchema: &bedrocktypes.ToolInputSchemaMemberJson{
					Value: document.NewLazyDocument(schemaMap),
				},
			},
		})
	}

	return &bedrocktypes.ToolConfiguration{Tools: converseTools}
}

// fromConverseOutput converts a Converse API response to an llm.Response,
// mapping sanitized tool names back to their originals.
func fromConverseOutput(output *bedrockruntime.ConverseOutput, nameMap map[string]string) (*llm.Response, error) {
	content := make([]llm.ContentBlock, 0)

	if output.Output != nil {
		message, ok := output.Output.(*bedrocktypes.ConverseOutputMemberMessage)
		if !ok {
			return nil, fmt.Errorf("unexpected converse output type %T", output.Output)
		}

		for _, block := range message.Value.Content {
			switch b := block.(type) {
			case *bedrocktypes.ContentBlockMemberText:
				if b.Value != "" {
					content = append(content, llm.ContentBlock{
						Type: llm.ContentBlockTypeText,
						Text: b.Value,
					})
				}

			case *bedrocktypes.ContentBlockMemberToolUse:
				name := aws.ToString(b.Value.Name)
				if original, found := nameMap[name]; found {
					name = original
				}

				input := make(map[string]interface{})
				if b.Value.Input != nil {
					if err := b.Value.Input.UnmarshalSmithyDocument(&input); err != nil {
						input = make(map[string]interface{})
					}
				}

				content = append(content, llm.ContentBlock{
					Type: llm.ContentBlockTypeToolUse,
					ToolUse: &llm.ToolUseBlock{
						ID:    aws.ToString(b.Value.ToolUseId),
						Name:  name,
						Input: input,
					},
				})
			}
		}
	}

	var usage *llm.Usage
	if output.Usage != nil {
		usage = &llm.Usage{
			InputTokens:  int64(aws.ToInt32(output.Usage.InputTokens)),
			OutputTokens: int64(aws.ToInt32(output.Usage.OutputTokens)),
		}
	}

	return &llm.Response{
		Content:    content,
		Usage:      usage,
		StopReason: string(output.StopReason),
	}, nil
}
