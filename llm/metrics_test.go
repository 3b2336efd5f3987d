package llm

import (
	"context"
	"testing"
	"time"
)

func TestMetrics_RecordCall(t *testing.T) {
	m := NewMetrics()
	m.RecordCall(&Usage{InputTokens: 100, OutputTokens: 20}, 250*time.Millisecond)
	m.RecordCall(&Usage{InputTokens: 50, OutputTokens: 10}, 100*time.Millisecond)

	snap := m.Snapshot()
	if snap.InputTokens != 150 {
		t.Errorf("Expected 150 input tokens, got %d", snap.InputTokens)
	}
	if snap.OutputTokens != 30 {
		t.Errorf("Expected 30 output tokens, got %d", snap.OutputTokens)
	}
	if snap.TotalTokens != 180 {
		t.Errorf("Expected 180 total tokens, got %d", snap.TotalTokens)
	}
	if snap.Calls != 2 {
		t.Errorf("Expected 2 calls, got %d", snap.Calls)
	}
	if len(snap.ResponseTimes) != 2 {
		t.Errorf("Expected 2 response times, got %d", len(snap.ResponseTimes))
	}
}

func TestMetrics_RecordCall_NilUsage(t *testing.T) {
	m := NewMetrics()
	m.RecordCall(nil, 10*time.Millisecond)

	snap := m.Snapshot()
	if snap.Calls != 1 {
		t.Errorf("Expected 1 call, got %d", snap.Calls)
	}
	if snap.TotalTokens != 0 {
		t.Errorf("Expected 0 tokens for nil usage, got %d", snap.TotalTokens)
	}
}

func TestMetrics_RecordToolCall(t *testing.T) {
	m := NewMetrics()
	m.RecordToolCall("execute_command", 50*time.Millisecond)
	m.RecordToolCall("execute_command", 70*time.Millisecond)
	m.RecordToolCall("read_file", 5*time.Millisecond)

	snap := m.Snapshot()
	if len(snap.ToolCallTimes["execute_command"]) != 2 {
		t.Errorf("Expected 2 timings for execute_command, got %d", len(snap.ToolCallTimes["execute_command"]))
	}
	if len(snap.ToolCallTimes["read_file"]) != 1 {
		t.Errorf("Expected 1 timing for read_file, got %d", len(snap.ToolCallTimes["read_file"]))
	}
}

func TestMetrics_Merge(t *testing.T) {
	a := NewMetrics()
	a.RecordCall(&Usage{InputTokens: 10, OutputTokens: 5}, time.Millisecond)
	a.RecordToolCall("read_file", time.Millisecond)

	b := NewMetrics()
	b.RecordCall(&Usage{InputTokens: 20, OutputTokens: 5}, time.Millisecond)
	b.RecordFirstToken(30 * time.Millisecond)

	a.Merge(b)
	snap := a.Snapshot()
	if snap.InputTokens != 30 {
		t.Errorf("Expected 30 input tokens after merge, got %d", snap.InputTokens)
	}
	if snap.Calls != 2 {
		t.Errorf("Expected 2 calls after merge, got %d", snap.Calls)
	}
	if len(snap.TimeToFirstToken) != 1 {
		t.Errorf("Expected 1 first-token timing after merge, got %d", len(snap.TimeToFirstToken))
	}
}

func TestMetricsRecorder_Synchronous(t *testing.T) {
	metrics := NewMetrics()
	recorder := NewMetricsRecorder(metrics)
	ctx := context.Background()

	req := &Request{Model: "test-model"}
	if _, err := recorder.BeforeRequest(ctx, req); err != nil {
		t.Fatalf("BeforeRequest failed: %v", err)
	}

	resp := &Response{Usage: &Usage{InputTokens: 42, OutputTokens: 7}}
	if _, err := recorder.AfterResponse(ctx, req, resp); err != nil {
		t.Fatalf("AfterResponse failed: %v", err)
	}

	snap := metrics.Snapshot()
	if snap.InputTokens != 42 {
		t.Errorf("Expected 42 input tokens, got %d", snap.InputTokens)
	}
	if snap.Calls != 1 {
		t.Errorf("Expected 1 call, got %d", snap.Calls)
	}
	if len(snap.ResponseTimes) != 1 {
		t.Errorf("Expected 1 response time, got %d", len(snap.ResponseTimes))
	}
}

func TestMetricsRecorder_Stream(t *testing.T) {
	metrics := NewMetrics()
	recorder := NewMetricsRecorder(metrics)
	ctx := context.Background()

	req := &Request{Model: "test-model"}
	if _, err := recorder.BeforeStream(ctx, req); err != nil {
		t.Fatalf("BeforeStream failed: %v", err)
	}

	// First content delta records time to first token, once
	delta := &StreamEvent{Type: StreamEventTypeContentDelta, Delta: &StreamDelta{Type: StreamDeltaTypeText, Text: "hi"}}
	if _, err := recorder.OnStreamEvent(ctx, req, delta); err != nil {
		t.Fatalf("OnStreamEvent failed: %v", err)
	}
	if _, err := recorder.OnStreamEvent(ctx, req, delta); err != nil {
		t.Fatalf("OnStreamEvent failed: %v", err)
	}

	stop := &StreamEvent{Type: StreamEventTypeStop, Usage: &Usage{InputTokens: 10, OutputTokens: 2}, Done: true}
	if _, err := recorder.OnStreamEvent(ctx, req, stop); err != nil {
		t.Fatalf("OnStreamEvent failed: %v", err)
	}

	snap := metrics.Snapshot()
	if len(snap.TimeToFirstToken) != 1 {
		t.Errorf("Expected 1 first-token timing, got %d", len(snap.TimeToFirstToken))
	}
	if snap.TotalTokens != 12 {
		t.Errorf("Expected 12 total tokens, got %d", snap.TotalTokens)
	}
	if snap.Calls != 1 {
		t.Errorf("Expected 1 call, got %d", snap.Calls)
	}
}
