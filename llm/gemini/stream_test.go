package gemini

import (
	"context"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/agentry-ai/agentry/llm"
	"github.com/rs/zerolog"
)

// blockingReader blocks reads until closed, simulating a stalled SSE body.
type blockingReader struct {
	unblock chan struct{}
	once    sync.Once
}

func (r *blockingReader) Read(p []byte) (int, error) {
	<-r.unblock
	return 0, io.EOF
}

func (r *blockingReader) Close() error {
	r.once.Do(func() { close(r.unblock) })
	return nil
}

func TestGeminiStream_Events(t *testing.T) {
	body := strings.Join([]string{
		`data: {"candidates":[{"content":{"role":"model","parts":[{"text":"checking "}]}}]}`,
		`data: {"candidates":[{"content":{"role":"model","parts":[{"functionCall":{"name":"read_file","args":{"path":"go.mod"}}}]}}],"usageMetadata":{"promptTokenCount":12,"candidatesTokenCount":7}}`,
		``,
	}, "\n")

	stream := newGeminiStream(context.Background(), io.NopCloser(strings.NewReader(body)), zerolog.Nop())

	var types []llm.StreamEventType
	var toolID string
	for stream.Next() {
		ev := stream.Event()
		types = append(types, ev.Type)
		if ev.Delta != nil && ev.Delta.ToolUse != nil {
			toolID = ev.Delta.ToolUse.ID
		}
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
	if toolNameFromID(toolID) != "read_file" {
		t.Errorf("Expected tool ID carrying function name, got %q", toolID)
	}
}

func TestGeminiStream_CloseUnblocksNext(t *testing.T) {
	stream := newGeminiStream(context.Background(), &blockingReader{unblock: make(chan struct{})}, zerolog.Nop())

	advanced := make(chan bool, 1)
	go func() {
		// Consume the start event, then block waiting for the stalled body.
		for stream.Next() {
		}
		advanced <- true
	}()

	time.Sleep(20 * time.Millisecond)
	if err := stream.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	select {
	case <-advanced:
	case <-time.After(2 * time.Second):
		t.Fatal("Next did not return after Close")
	}
}
