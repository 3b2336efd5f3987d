package bedrock

import (
	"testing"

	"github.com/agentry-ai/agentry/llm"
	"github.com/aws/aws-sdk-go-v2/aws"
	bedrocktypes "github.com/aws/aws-sdk-go-v2/service/bedrockruntime/types"
)

func TestSanitizeToolName(t *testing.T) {
	cases := map[string]string{
		"execute_command":      "execute_command",
		"filesystem:read_file": "filesystem_read_file",
		"a.b c":                "a_b_c",
		"list-issues":          "list-issues",
	}
	for in, want := range cases {
		if got := sanitizeToolName(in); got != want {
			t.Errorf("sanitizeToolName(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestToConverseMessages_MergesConsecutiveRoles(t *testing.T) {
	nameMap := make(map[string]string)
	msgs := []llm.Message{
		llm.NewTextMessage(llm.RoleUser, "first"),
		llm.NewTextMessage(llm.RoleUser, "second"),
		llm.NewTextMessage(llm.RoleAssistant, "reply"),
	}

	_, converseMsgs, err := toConverseMessages(msgs, nameMap)
	if err != nil {
		t.Fatalf("toConverseMessages failed: %v", err)
	}

	if len(converseMsgs) != 2 {
		t.Fatalf("Expected consecutive user messages merged into 2 turns, got %d", len(converseMsgs))
	}
	if converseMsgs[0].Role != bedrocktypes.ConversationRoleUser {
		t.Errorf("Expected first turn role user, got %s", converseMsgs[0].Role)
	}
	if len(converseMsgs[0].Content) != 2 {
		t.Errorf("Expected 2 content blocks in merged user turn, got %d", len(converseMsgs[0].Content))
	}
}

func TestToConverseMessages_SystemAndToolUse(t *testing.T) {
	nameMap := make(map[string]string)
	msgs := []llm.Message{
		llm.NewTextMessage(llm.RoleSystem, "you are helpful"),
		llm.NewTextMessage(llm.RoleUser, "run it"),
		llm.NewToolUseMessage([]llm.ToolUseBlock{
			{ID: "tu_1", Name: "shell:execute_command", Input: map[string]interface{}{"command": "ls"}},
		}),
		llm.NewToolResultMessage([]llm.ToolResultBlock{
			{ID: "tu_1", Content: `{"stdout":"go.mod"}`},
		}),
	}

	systemBlocks, converseMsgs, err := toConverseMessages(msgs, nameMap)
	if err != nil {
		t.Fatalf("toConverseMessages failed: %v", err)
	}

	if len(systemBlocks) != 1 {
		t.Fatalf("Expected 1 system block, got %d", len(systemBlocks))
	}

	// user, assistant(tool use), user(tool result)
	if len(converseMsgs) != 3 {
		t.Fatalf("Expected 3 turns, got %d", len(converseMsgs))
	}

	toolUse, ok := converseMsgs[1].Content[0].(*bedrocktypes.ContentBlockMemberToolUse)
	if !ok {
		t.Fatalf("Expected tool use block, got %T", converseMsgs[1].Content[0])
	}
	if aws.ToString(toolUse.Value.Name) != "shell_execute_command" {
		t.Errorf("Expected sanitized tool name, got %q", aws.ToString(toolUse.Value.Name))
	}
	if nameMap["shell_execute_command"] != "shell:execute_command" {
		t.Errorf("Expected name map entry back to original, got %v", nameMap)
	}

	var input map[string]interface{}
	if err := toolUse.Value.Input.UnmarshalSmithyDocument(&input); err != nil {
		t.Fatalf("Failed to unmarshal tool input document: %v", err)
	}
	if input["command"] != "ls" {
		t.Errorf("Expected tool input to round-trip through the document, got %v", input)
	}

	toolResult, ok := converseMsgs[2].Content[0].(*bedrocktypes.ContentBlockMemberToolResult)
	if !ok {
		t.Fatalf("Expected tool result block, got %T", converseMsgs[2].Content[0])
	}
	if aws.ToString(toolResult.Value.ToolUseId) != "tu_1" {
		t.Errorf("Expected tool use ID 'tu_1', got %q", aws.ToString(toolResult.Value.ToolUseId))
	}
	if _, ok := toolResult.Value.Content[0].(*bedrocktypes.ToolResultContentBlockMemberJson); !ok {
		t.Errorf("Expected JSON tool result content for JSON payload, got %T", toolResult.Value.Content[0])
	}
}

func TestToConverseToolResult_PlainText(t *testing.T) {
	block := toConverseToolResult(&llm.ToolResultBlock{ID: "tu_2", Content: "command failed", IsError: true})

	result, ok := block.(*bedrocktypes.ContentBlockMemberToolResult)
	if !ok {
		t.Fatalf("Expected tool result member, got %T", block)
	}
	if result.Value.Status != bedrocktypes.ToolResultStatusError {
		t.Errorf("Expected error status, got %s", result.Value.Status)
	}
	if _, ok := result.Value.Content[0].(*bedrocktypes.ToolResultContentBlockMemberText); !ok {
		t.Errorf("Expected text content for non-JSON payload, got %T", result.Value.Content[0])
	}
}

func TestToConverseTools(t *testing.T) {
	nameMap := make(map[string]string)
	specs := []llm.ToolSpec{
		{
			Name:        "github:list_issues",
			Description: "List issues for a repository",
			Schema: llm.ToolSchema{
				Type: "object",
				Properties: map[string]interface{}{
					"repo": map[string]interface{}{"type": "string"},
				},
				Required: []string{"repo"},
			},
		},
	}

	cfg := toConverseTools(specs, nameMap)
	if cfg == nil || len(cfg.Tools) != 1 {
		t.Fatalf("Expected tool configuration with 1 tool, got %v", cfg)
	}

	spec, ok := cfg.Tools[0].(*bedrocktypes.ToolMemberToolSpec)
	if !ok {
		t.Fatalf("Expected tool spec member, got %T", cfg.Tools[0])
	}
	if aws.ToString(spec.Value.Name) != "github_list_issues" {
		t.Errorf("Expected sanitized name, got %q", aws.ToString(spec.Value.Name))
	}
	if nameMap["github_list_issues"] != "github:list_issues" {
		t.Errorf("Expected reverse mapping, got %v", nameMap)
	}
}

func TestBedrockStream_ReplaysResponse(t *testing.T) {
	resp := &llm.Response{
		Content: []llm.ContentBlock{
			{Type: llm.ContentBlockTypeText, Text: "checking"},
			{Type: llm.ContentBlockTypeToolUse, ToolUse: &llm.ToolUseBlock{ID: "tu_1", Name: "read_file", Input: map[string]interface{}{"path": "go.mod"}}},
		},
		Usage:      &llm.Usage{InputTokens: 10, OutputTokens: 5},
		StopReason: "tool_use",
	}

	stream := newBedrockStream(resp)

	var types []llm.StreamEventType
	for stream.Next() {
		types = append(types, stream.Event().Type)
	}
	if err := stream.Err(); err != nil {
		t.Fatalf("Unexpected stream error: %v", err)
	}

	expected := []llm.StreamEventType{
		llm.StreamEventTypeStart,
		llm.StreamEventTypeContentDelta,
		llm.StreamEventTypeContentBlock,
		llm.StreamEventTypeMessageDelta,
		llm.StreamEventTypeStop,
	}
	if len(types) != len(expected) {
		t.Fatalf("Expected %d events, got %d (%v)", len(expected), len(types), types)
	}
	for i, want := range expected {
		if types[i] != want {
			t.Errorf("Event %d: expected %s, got %s", i, want, types[i])
		}
	}
}
