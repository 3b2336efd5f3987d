package conversations

import (
	"context"
	"database/sql"
	"testing"

	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog"

	"github.com/agentry-ai/agentry/llm"
	"github.com/agentry-ai/agentry/migrations"
)

func newTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	if err := migrations.RunMigrations(db, migrations.DialectSQLite, zerolog.Nop()); err != nil {
		t.Fatalf("run migrations: %v", err)
	}
	return db
}

func TestSQLStoreRoundTrip(t *testing.T) {
	store := NewSQLStore(newTestDB(t), DialectSQLite)
	ctx := context.Background()

	if err := store.AppendUserMessage(ctx, "agent-1", "thread-1", "what is the weather?"); err != nil {
		t.Fatalf("append user message: %v", err)
	}
	if err := store.AppendToolCall(ctx, "agent-1", "thread-1", "tool-1", "get_weather", map[string]any{"city": "Oslo"}); err != nil {
		t.Fatalf("append tool call: %v", err)
	}
	if err := store.AppendToolResult(ctx, "agent-1", "thread-1", "tool-1", "get_weather", map[string]any{"temp": 12}, false); err != nil {
		t.Fatalf("append tool result: %v", err)
	}
	if err := store.AppendAssistantMessage(ctx, "agent-1", "thread-1", "it is 12 degrees"); err != nil {
		t.Fatalf("append assistant message: %v", err)
	}

	history, err := store.LoadHistory(ctx, "agent-1", "thread-1")
	if err != nil {
		t.Fatalf("load history: %v", err)
	}
	if len(history) != 4 {
		t.Fatalf("expected 4 messages, got %d", len(history))
	}

	if history[0].Role != llm.RoleUser || history[0].Content[0].Text != "what is the weather?" {
		t.Errorf("unexpected first message: %+v", history[0])
	}

	if history[1].Role != llm.RoleAssistant {
		t.Fatalf("expected assistant tool call message, got role %s", history[1].Role)
	}
	toolUse := history[1].Content[0].ToolUse
	if toolUse == nil || toolUse.ID != "tool-1" || toolUse.Name != "get_weather" {
		t.Errorf("unexpected tool use block: %+v", toolUse)
	}
	if toolUse.Input["city"] != "Oslo" {
		t.Errorf("expected tool input preserved, got %v", toolUse.Input)
	}

	if history[2].Role != llm.RoleUser {
		t.Fatalf("expected tool result as user message, got role %s", history[2].Role)
	}
	toolResult := history[2].Content[0].ToolResult
	if toolResult == nil || toolResult.ID != "tool-1" || toolResult.IsError {
		t.Errorf("unexpected tool result block: %+v", toolResult)
	}

	if history[3].Role != llm.RoleAssistant || history[3].Content[0].Text != "it is 12 degrees" {
		t.Errorf("unexpected final message: %+v", history[3])
	}
}

func TestSQLStoreIdempotentToolInserts(t *testing.T) {
	store := NewSQLStore(newTestDB(t), DialectSQLite)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if err := store.AppendToolCall(ctx, "agent-1", "thread-1", "tool-1", "lookup", map[string]any{"key": "x"}); err != nil {
			t.Fatalf("append tool call %d: %v", i, err)
		}
		if err := store.AppendToolResult(ctx, "agent-1", "thread-1", "tool-1", "lookup", "ok", false); err != nil {
			t.Fatalf("append tool result %d: %v", i, err)
		}
	}

	history, err := store.LoadHistory(ctx, "agent-1", "thread-1")
	if err != nil {
		t.Fatalf("load history: %v", err)
	}
	if len(history) != 2 {
		t.Fatalf("expected duplicates collapsed to 2 messages, got %d", len(history))
	}
	if len(history[0].Content) != 1 || len(history[1].Content) != 1 {
		t.Errorf("expected single block per message, got %d and %d", len(history[0].Content), len(history[1].Content))
	}
}

func TestSQLStoreThreadIsolation(t *testing.T) {
	store := NewSQLStore(newTestDB(t), DialectSQLite)
	ctx := context.Background()

	if err := store.AppendUserMessage(ctx, "agent-1", "thread-1", "hello"); err != nil {
		t.Fatalf("append: %v", err)
	}
	if err := store.AppendUserMessage(ctx, "agent-1", "thread-2", "goodbye"); err != nil {
		t.Fatalf("append: %v", err)
	}
	if err := store.AppendUserMessage(ctx, "agent-2", "thread-1", "other agent"); err != nil {
		t.Fatalf("append: %v", err)
	}

	history, err := store.LoadHistory(ctx, "agent-1", "thread-1")
	if err != nil {
		t.Fatalf("load history: %v", err)
	}
	if len(history) != 1 || history[0].Content[0].Text != "hello" {
		t.Errorf("expected only thread-1 messages for agent-1, got %+v", history)
	}
}
