package gemini

import (
	"testing"

	"github.com/agentry-ai/agentry/llm"
)

func TestToGeminiContents_Roles(t *testing.T) {
	msgs := []llm.Message{
		llm.NewTextMessage(llm.RoleUser, "hello"),
		llm.NewTextMessage(llm.RoleAssistant, "hi there"),
	}

	contents, err := toGeminiContents(msgs)
	if err != nil {
		t.Fatalf("toGeminiContents failed: %v", err)
	}

	if len(contents) != 2 {
		t.Fatalf("Expected 2 contents, got %d", len(contents))
	}
	if contents[0].Role != "user" {
		t.Errorf("Expected role 'user', got '%s'", contents[0].Role)
	}
	if contents[1].Role != "model" {
		t.Errorf("Expected role 'model' for assistant, got '%s'", contents[1].Role)
	}
	if contents[0].Parts[0].Text != "hello" {
		t.Errorf("Expected text 'hello', got '%s'", contents[0].Parts[0].Text)
	}
}

func TestToGeminiContents_ToolRoundTrip(t *testing.T) {
	id := toolCallID("read_file")
	msgs := []llm.Message{
		llm.NewToolUseMessage([]llm.ToolUseBlock{
			{ID: id, Name: "read_file", Input: map[string]interface{}{"path": "main.go"}},
		}),
		llm.NewToolResultMessage([]llm.ToolResultBlock{
			{ID: id, Content: `{"content":"package main"}`},
		}),
	}

	contents, err := toGeminiContents(msgs)
	if err != nil {
		t.Fatalf("toGeminiContents failed: %v", err)
	}

	if contents[0].Parts[0].FunctionCall == nil {
		t.Fatal("Expected functionCall part")
	}
	if contents[0].Parts[0].FunctionCall.Name != "read_file" {
		t.Errorf("Expected function name 'read_file', got '%s'", contents[0].Parts[0].FunctionCall.Name)
	}

	fr := contents[1].Parts[0].FunctionResponse
	if fr == nil {
		t.Fatal("Expected functionResponse part")
	}
	// Function name must be recovered from the synthesized tool call ID
	if fr.Name != "read_file" {
		t.Errorf("Expected function name 'read_file' from ID, got '%s'", fr.Name)
	}
	if fr.Response["content"] != "package main" {
		t.Errorf("Expected parsed JSON response, got %v", fr.Response)
	}
}

func TestToolCallID_UniquePerCall(t *testing.T) {
	first := toolCallID("execute_command")
	second := toolCallID("execute_command")
	if first == second {
		t.Fatalf("Tool call IDs must differ between responses, got %q twice", first)
	}
	if toolNameFromID(first) != "execute_command" || toolNameFromID(second) != "execute_command" {
		t.Errorf("Tool name should round-trip from IDs %q and %q", first, second)
	}
}

func TestFromGeminiCandidate_RepeatedCallsGetDistinctIDs(t *testing.T) {
	cand := candidate{
		Content: content{
			Role: "model",
			Parts: []part{
				{FunctionCall: &functionCall{Name: "read_file", Args: map[string]interface{}{"path": "a.go"}}},
			},
		},
	}

	firstTurn := fromGeminiCandidate(cand)
	secondTurn := fromGeminiCandidate(cand)
	if firstTurn[0].ToolUse.ID == secondTurn[0].ToolUse.ID {
		t.Errorf("Same function called in two responses must get distinct IDs, got %q", firstTurn[0].ToolUse.ID)
	}
}

func TestToolResultPayload_NonJSON(t *testing.T) {
	payload := toolResultPayload(&llm.ToolResultBlock{ID: "x", Content: "plain text", IsError: true})
	if payload["result"] != "plain text" {
		t.Errorf("Expected non-JSON content wrapped under 'result', got %v", payload)
	}
	if payload["is_error"] != true {
		t.Errorf("Expected is_error flag, got %v", payload)
	}
}

func TestToGeminiTools(t *testing.T) {
	specs := []llm.ToolSpec{
		{
			Name:        "execute_command",
			Description: "Run a shell command",
			Schema: llm.ToolSchema{
				Type: "object",
				Properties: map[string]interface{}{
					"command": map[string]interface{}{"type": "string"},
				},
				Required: []string{"command"},
			},
		},
	}

	decls := toGeminiTools(specs)
	if len(decls) != 1 || len(decls[0].FunctionDeclarations) != 1 {
		t.Fatalf("Expected 1 tool declaration block with 1 function, got %v", decls)
	}

	fn := decls[0].FunctionDeclarations[0]
	if fn.Name != "execute_command" {
		t.Errorf("Expected name 'execute_command', got '%s'", fn.Name)
	}
	if fn.Parameters == nil || fn.Parameters.Type != "object" {
		t.Errorf("Expected object parameters schema, got %v", fn.Parameters)
	}
	if len(fn.Parameters.Required) != 1 || fn.Parameters.Required[0] != "command" {
		t.Errorf("Expected required ['command'], got %v", fn.Parameters.Required)
	}
}

func TestFromGeminiCandidate_FunctionCall(t *testing.T) {
	cand := candidate{
		Content: content{
			Role: "model",
			Parts: []part{
				{Text: "Let me check."},
				{FunctionCall: &functionCall{Name: "file_info", Args: map[string]interface{}{"path": "go.mod"}}},
			},
		},
		FinishReason: "STOP",
	}

	blocks := fromGeminiCandidate(cand)
	if len(blocks) != 2 {
		t.Fatalf("Expected 2 blocks, got %d", len(blocks))
	}
	if blocks[0].Type != llm.ContentBlockTypeText {
		t.Errorf("Expected text block first, got %s", blocks[0].Type)
	}
	if blocks[1].Type != llm.ContentBlockTypeToolUse {
		t.Fatalf("Expected tool use block, got %s", blocks[1].Type)
	}
	if blocks[1].ToolUse.Name != "file_info" {
		t.Errorf("Expected tool name 'file_info', got '%s'", blocks[1].ToolUse.Name)
	}
	if toolNameFromID(blocks[1].ToolUse.ID) != "file_info" {
		t.Errorf("Tool ID should round-trip the function name, got '%s'", blocks[1].ToolUse.ID)
	}
}

func TestMapFinishReason(t *testing.T) {
	if got := mapFinishReason("STOP", false); got != "end_turn" {
		t.Errorf("STOP should map to end_turn, got %s", got)
	}
	if got := mapFinishReason("MAX_TOKENS", false); got != "max_tokens" {
		t.Errorf("MAX_TOKENS should map to max_tokens, got %s", got)
	}
	if got := mapFinishReason("SAFETY", false); got != "content_filter" {
		t.Errorf("SAFETY should map to content_filter, got %s", got)
	}
	if got := mapFinishReason("STOP", true); got != "tool_use" {
		t.Errorf("Function call should map to tool_use, got %s", got)
	}
}
