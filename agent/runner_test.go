package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"testing"

	"github.com/agentry-ai/agentry/llm"
	"github.com/rs/zerolog"
)

// fakeLLMClient returns scripted responses in order.
type fakeLLMClient struct {
	responses []*llm.Response
	streams   [][]*llm.StreamEvent
	calls     int
	lastReq   *llm.Request
}

func (f *fakeLLMClient) Synchronous(ctx context.Context, req *llm.Request) (*llm.Response, error) {
	f.lastReq = req
	if f.calls >= len(f.responses) {
		return nil, fmt.Errorf("no more scripted responses")
	}
	resp := f.responses[f.calls]
	f.calls++
	return resp, nil
}

func (f *fakeLLMClient) Stream(ctx context.Context, req *llm.Request) (llm.Stream, error) {
	if f.calls >= len(f.streams) {
		return nil, fmt.Errorf("no more scripted streams")
	}
	events := f.streams[f.calls]
	f.calls++
	return &fakeStream{events: events, current: -1}, nil
}

type fakeStream struct {
	events  []*llm.StreamEvent
	current int
}

func (s *fakeStream) Next() bool {
	if s.current+1 >= len(s.events) {
		return false
	}
	s.current++
	return true
}

func (s *fakeStream) Event() *llm.StreamEvent { return s.events[s.current] }
func (s *fakeStream) Err() error              { return nil }
func (s *fakeStream) Close() error            { return nil }

// fakeToolExecutor records calls and returns scripted results.
type fakeToolExecutor struct {
	results map[string]any
	errs    map[string]error
	calls   []string
}

func (f *fakeToolExecutor) Handle(ctx context.Context, toolName, agentID string, inputJSON []byte) (any, error) {
	f.calls = append(f.calls, toolName)
	if err, ok := f.errs[toolName]; ok {
		return nil, err
	}
	if result, ok := f.results[toolName]; ok {
		return result, nil
	}
	return nil, fmt.Errorf("unknown tool: %s", toolName)
}

func textResponse(text string) *llm.Response {
	return &llm.Response{
		Content: []llm.ContentBlock{
			{Type: llm.ContentBlockTypeText, Text: text},
		},
		Usage:      &llm.Usage{InputTokens: 10, OutputTokens: 5},
		StopReason: "end_turn",
	}
}

func toolUseResponse(id, name string, input map[string]any) *llm.Response {
	return &llm.Response{
		Content: []llm.ContentBlock{
			{
				Type:    llm.ContentBlockTypeToolUse,
				ToolUse: &llm.ToolUseBlock{ID: id, Name: name, Input: input},
			},
		},
		Usage:      &llm.Usage{InputTokens: 10, OutputTokens: 5},
		StopReason: "tool_use",
	}
}

// recordedClient wraps a client the way AgentRunner does, so call metrics
// flow through the middleware rather than the loop itself.
func recordedClient(client llm.Client, metrics *llm.Metrics) llm.Client {
	return llm.WrapWithMiddleware(client, llm.NewMetricsRecorder(metrics))
}

func TestExecuteToolLoop_TextOnly(t *testing.T) {
	client := &fakeLLMClient{responses: []*llm.Response{textResponse("hello there")}}
	exec := &fakeToolExecutor{}
	metrics := llm.NewMetrics()

	req := &llm.Request{
		Model:    "test-model",
		Messages: []llm.Message{llm.NewTextMessage(llm.RoleUser, "hi")},
	}

	result, err := executeToolLoop(context.Background(), recordedClient(client, metrics), req, "agent-1", "thread-1", exec, nil, metrics, zerolog.Nop())
	if err != nil {
		t.Fatalf("executeToolLoop failed: %v", err)
	}
	if result != "hello there" {
		t.Errorf("expected 'hello there', got %q", result)
	}
	if len(exec.calls) != 0 {
		t.Errorf("expected no tool calls, got %v", exec.calls)
	}

	snap := metrics.Snapshot()
	if snap.Calls != 1 {
		t.Errorf("expected 1 recorded call, got %d", snap.Calls)
	}
	if snap.InputTokens != 10 || snap.OutputTokens != 5 {
		t.Errorf("unexpected token totals: in=%d out=%d", snap.InputTokens, snap.OutputTokens)
	}
}

func TestExecuteToolLoop_WithToolCall(t *testing.T) {
	client := &fakeLLMClient{responses: []*llm.Response{
		toolUseResponse("tool-1", "lookup", map[string]any{"key": "x"}),
		textResponse("the answer is 42"),
	}}
	exec := &fakeToolExecutor{results: map[string]any{"lookup": map[string]any{"value": 42}}}
	metrics := llm.NewMetrics()

	req := &llm.Request{
		Model:    "test-model",
		Messages: []llm.Message{llm.NewTextMessage(llm.RoleUser, "what is x?")},
	}

	result, err := executeToolLoop(context.Background(), recordedClient(client, metrics), req, "agent-1", "thread-1", exec, nil, metrics, zerolog.Nop())
	if err != nil {
		t.Fatalf("executeToolLoop failed: %v", err)
	}
	if result != "the answer is 42" {
		t.Errorf("expected final text, got %q", result)
	}
	if len(exec.calls) != 1 || exec.calls[0] != "lookup" {
		t.Errorf("expected single lookup call, got %v", exec.calls)
	}

	snap := metrics.Snapshot()
	if snap.Calls != 2 {
		t.Errorf("expected 2 recorded calls, got %d", snap.Calls)
	}
	if len(snap.ToolCallTimes["lookup"]) != 1 {
		t.Errorf("expected tool call time recorded for lookup, got %v", snap.ToolCallTimes)
	}
}

func TestExecuteToolLoop_ForwardsTemperature(t *testing.T) {
	client := &fakeLLMClient{responses: []*llm.Response{textResponse("ok")}}
	exec := &fakeToolExecutor{}

	temp := 0.7
	req := &llm.Request{
		Model:       "test-model",
		Messages:    []llm.Message{llm.NewTextMessage(llm.RoleUser, "hi")},
		Temperature: &temp,
	}

	if _, err := executeToolLoop(context.Background(), client, req, "agent-1", "thread-1", exec, nil, nil, zerolog.Nop()); err != nil {
		t.Fatalf("executeToolLoop failed: %v", err)
	}

	if client.lastReq == nil || client.lastReq.Temperature == nil || *client.lastReq.Temperature != 0.7 {
		t.Errorf("expected temperature 0.7 on the request, got %+v", client.lastReq)
	}
}

func TestExecuteToolLoop_RepeatedFailureBreaks(t *testing.T) {
	// Model keeps issuing the same failing tool call
	responses := make([]*llm.Response, 0, maxRepeatedFailures+1)
	for i := 0; i <= maxRepeatedFailures; i++ {
		responses = append(responses, toolUseResponse(fmt.Sprintf("tool-%d", i), "broken", map[string]any{"key": "x"}))
	}
	client := &fakeLLMClient{responses: responses}
	exec := &fakeToolExecutor{errs: map[string]error{"broken": fmt.Errorf("boom")}}

	req := &llm.Request{
		Model:    "test-model",
		Messages: []llm.Message{llm.NewTextMessage(llm.RoleUser, "go")},
	}

	_, err := executeToolLoop(context.Background(), client, req, "agent-1", "thread-1", exec, nil, nil, zerolog.Nop())
	if err == nil {
		t.Fatal("expected repeated failure error, got nil")
	}
	if !strings.Contains(err.Error(), "repeatedly failed") {
		t.Errorf("expected repeated failure error, got: %v", err)
	}
	if len(exec.calls) != maxRepeatedFailures {
		t.Errorf("expected %d tool attempts, got %d", maxRepeatedFailures, len(exec.calls))
	}
}

func TestExecuteToolLoop_MaxIterations(t *testing.T) {
	// Model issues a different successful tool call every turn, never finishing
	responses := make([]*llm.Response, maxIterations)
	for i := range responses {
		responses[i] = toolUseResponse(fmt.Sprintf("tool-%d", i), "lookup", map[string]any{"i": i})
	}
	client := &fakeLLMClient{responses: responses}
	exec := &fakeToolExecutor{results: map[string]any{"lookup": "ok"}}

	req := &llm.Request{
		Model:    "test-model",
		Messages: []llm.Message{llm.NewTextMessage(llm.RoleUser, "go")},
	}

	_, err := executeToolLoop(context.Background(), client, req, "agent-1", "thread-1", exec, nil, nil, zerolog.Nop())
	if err == nil {
		t.Fatal("expected max iterations error, got nil")
	}
	if !strings.Contains(err.Error(), "maximum iterations") {
		t.Errorf("expected max iterations error, got: %v", err)
	}
}

func TestExecuteToolLoopStream_TextAndTool(t *testing.T) {
	toolInput, _ := json.Marshal(map[string]any{"key": "x"})
	client := &fakeLLMClient{streams: [][]*llm.StreamEvent{
		{
			{Type: llm.StreamEventTypeStart},
			{Type: llm.StreamEventTypeContentBlock, Delta: &llm.StreamDelta{
				Type:    llm.StreamDeltaTypeToolUse,
				ToolUse: &llm.ToolUseBlock{ID: "tool-1", Name: "lookup"},
			}},
			{Type: llm.StreamEventTypeContentDelta, Delta: &llm.StreamDelta{
				Type:      llm.StreamDeltaTypeToolInput,
				ToolInput: string(toolInput),
			}},
			{Type: llm.StreamEventTypeStop, Usage: &llm.Usage{InputTokens: 8, OutputTokens: 3}},
		},
		{
			{Type: llm.StreamEventTypeStart},
			{Type: llm.StreamEventTypeContentDelta, Delta: &llm.StreamDelta{
				Type: llm.StreamDeltaTypeText,
				Text: "found ",
			}},
			{Type: llm.StreamEventTypeContentDelta, Delta: &llm.StreamDelta{
				Type: llm.StreamDeltaTypeText,
				Text: "it",
			}},
			{Type: llm.StreamEventTypeStop, Usage: &llm.Usage{InputTokens: 12, OutputTokens: 2}},
		},
	}}
	exec := &fakeToolExecutor{results: map[string]any{"lookup": "ok"}}
	metrics := llm.NewMetrics()

	var streamed strings.Builder
	callback := func(text string) error {
		streamed.WriteString(text)
		return nil
	}

	req := &llm.Request{
		Model:    "test-model",
		Messages: []llm.Message{llm.NewTextMessage(llm.RoleUser, "what is x?")},
	}

	result, err := executeToolLoopStream(context.Background(), recordedClient(client, metrics), req, "agent-1", "thread-1", exec, nil, metrics, callback, zerolog.Nop())
	if err != nil {
		t.Fatalf("executeToolLoopStream failed: %v", err)
	}
	if result != "found it" {
		t.Errorf("expected 'found it', got %q", result)
	}
	if streamed.String() != "found it" {
		t.Errorf("expected streamed text 'found it', got %q", streamed.String())
	}
	if len(exec.calls) != 1 || exec.calls[0] != "lookup" {
		t.Errorf("expected single lookup call, got %v", exec.calls)
	}

	snap := metrics.Snapshot()
	if snap.Calls != 2 {
		t.Errorf("expected 2 recorded calls, got %d", snap.Calls)
	}
	if snap.InputTokens != 20 {
		t.Errorf("expected 20 input tokens, got %d", snap.InputTokens)
	}
	if len(snap.TimeToFirstToken) != 2 {
		t.Errorf("expected 2 first-token samples, got %d", len(snap.TimeToFirstToken))
	}
}

func TestTruncateToolResult(t *testing.T) {
	if got := truncateToolResult("short", 100); got != "short" {
		t.Errorf("expected unchanged string, got %q", got)
	}
	long := strings.Repeat("a", 150)
	got := truncateToolResult(long, 100)
	if !strings.HasSuffix(got, "... (truncated)") {
		t.Errorf("expected truncation suffix, got %q", got[len(got)-30:])
	}
	if len(got) != 100+len("... (truncated)") {
		t.Errorf("unexpected truncated length %d", len(got))
	}
}
