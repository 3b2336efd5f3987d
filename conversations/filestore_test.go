package conversations

import (
	"context"
	"testing"

	"github.com/agentry-ai/agentry/llm"
)

func TestFileStoreRoundTrip(t *testing.T) {
	store, err := NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("create file store: %v", err)
	}
	ctx := context.Background()

	if err := store.AppendUserMessage(ctx, "agent-1", "thread-1", "run the report"); err != nil {
		t.Fatalf("append user message: %v", err)
	}
	if err := store.AppendToolCall(ctx, "agent-1", "thread-1", "tool-1", "shell_execute", map[string]any{"command": "ls"}); err != nil {
		t.Fatalf("append tool call: %v", err)
	}
	if err := store.AppendToolResult(ctx, "agent-1", "thread-1", "tool-1", "shell_execute", map[string]any{"exit_code": 0}, false); err != nil {
		t.Fatalf("append tool result: %v", err)
	}
	if err := store.AppendAssistantMessage(ctx, "agent-1", "thread-1", "done"); err != nil {
		t.Fatalf("append assistant message: %v", err)
	}

	history, err := store.LoadHistory(ctx, "agent-1", "thread-1")
	if err != nil {
		t.Fatalf("load history: %v", err)
	}
	if len(history) != 4 {
		t.Fatalf("expected 4 messages, got %d", len(history))
	}
	if history[0].Role != llm.RoleUser {
		t.Errorf("expected user role first, got %s", history[0].Role)
	}
	if tu := history[1].Content[0].ToolUse; tu == nil || tu.Name != "shell_execute" {
		t.Errorf("unexpected tool use block: %+v", tu)
	}
	if history[3].Content[0].Text != "done" {
		t.Errorf("unexpected final message: %+v", history[3])
	}
}

func TestFileStoreMissingThread(t *testing.T) {
	store, err := NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("create file store: %v", err)
	}

	history, err := store.LoadHistory(context.Background(), "agent-1", "no-such-thread")
	if err != nil {
		t.Fatalf("load history: %v", err)
	}
	if len(history) != 0 {
		t.Errorf("expected empty history, got %d messages", len(history))
	}
}

func TestFileStoreDuplicateToolRowsCollapse(t *testing.T) {
	store, err := NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("create file store: %v", err)
	}
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if err := store.AppendToolCall(ctx, "agent-1", "thread-1", "tool-1", "lookup", map[string]any{"key": "x"}); err != nil {
			t.Fatalf("append tool call %d: %v", i, err)
		}
	}

	history, err := store.LoadHistory(ctx, "agent-1", "thread-1")
	if err != nil {
		t.Fatalf("load history: %v", err)
	}
	if len(history) != 1 || len(history[0].Content) != 1 {
		t.Fatalf("expected duplicates collapsed to a single block, got %+v", history)
	}
}

func TestFileStoreListThreads(t *testing.T) {
	store, err := NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("create file store: %v", err)
	}
	ctx := context.Background()

	for _, thread := range []string{"alpha", "beta"} {
		if err := store.AppendUserMessage(ctx, "agent-1", thread, "hi"); err != nil {
			t.Fatalf("append: %v", err)
		}
	}

	threads, err := store.ListThreads("agent-1")
	if err != nil {
		t.Fatalf("list threads: %v", err)
	}
	if len(threads) != 2 {
		t.Fatalf("expected 2 threads, got %v", threads)
	}

	none, err := store.ListThreads("agent-2")
	if err != nil {
		t.Fatalf("list threads for unknown agent: %v", err)
	}
	if len(none) != 0 {
		t.Errorf("expected no threads, got %v", none)
	}
}
