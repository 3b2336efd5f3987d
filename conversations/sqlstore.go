package conversations

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"

	"github.com/agentry-ai/agentry/llm"
)

// Dialect selects the SQL flavor for placeholder formatting.
type Dialect string

const (
	DialectSQLite   Dialect = "sqlite"
	DialectPostgres Dialect = "postgres"
)

// SQLStore persists conversations in a relational database via database/sql.
// Works against sqlite3 and postgres; the dialect controls placeholders.
type SQLStore struct {
	db      *sql.DB
	builder sq.StatementBuilderType
}

var _ Store = (*SQLStore)(nil)

// NewSQLStore creates a conversation store over db.
func NewSQLStore(db *sql.DB, dialect Dialect) *SQLStore {
	builder := sq.StatementBuilder.PlaceholderFormat(sq.Question)
	if dialect == DialectPostgres {
		builder = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)
	}
	return &SQLStore{db: db, builder: builder}
}

func (s *SQLStore) appendText(ctx context.Context, agentID, threadID, role, content string) error {
	query := s.builder.Insert("conversations").
		Columns("agent_id", "thread_id", "role", "content", "tool_name", "created_at").
		Values(agentID, threadID, role, content, nil, time.Now().Unix())

	queryStr, args, err := query.ToSql()
	if err != nil {
		return fmt.Errorf("build query: %w", err)
	}

	_, err = s.db.ExecContext(ctx, queryStr, args...)
	return err
}

// AppendUserMessage saves a user text message to the conversation history.
func (s *SQLStore) AppendUserMessage(ctx context.Context, agentID, threadID, content string) error {
	return s.appendText(ctx, agentID, threadID, roleUser, content)
}

// AppendAssistantMessage saves an assistant text-only message to the conversation history.
func (s *SQLStore) AppendAssistantMessage(ctx context.Context, agentID, threadID, content string) error {
	return s.appendText(ctx, agentID, threadID, roleAssistant, content)
}

// AppendToolCall saves an assistant message with a tool use block.
// The insert is a no-op when the (agent_id, thread_id, tool_id, role) row
// already exists, so crashed runs can replay without duplicating calls.
func (s *SQLStore) AppendToolCall(ctx context.Context, agentID, threadID, toolID, toolName string, toolInput any) error {
	contentJSON, err := json.Marshal(toolUsePayload{
		ID:    toolID,
		Name:  toolName,
		Input: toolInput,
	})
	if err != nil {
		return fmt.Errorf("marshal tool use data: %w", err)
	}

	return s.appendToolRow(ctx, agentID, threadID, roleAssistant, string(contentJSON), toolName, toolID)
}

// AppendToolResult saves a tool result message, idempotent like AppendToolCall.
func (s *SQLStore) AppendToolResult(ctx context.Context, agentID, threadID, toolID, toolName string, result any, isError bool) error {
	var resultStr string
	if resultBytes, err := json.Marshal(result); err == nil {
		resultStr = string(resultBytes)
	} else {
		resultStr = fmt.Sprintf("%v", result)
	}

	contentJSON, err := json.Marshal(toolResultPayload{
		ID:      toolID,
		Result:  resultStr,
		IsError: isError,
	})
	if err != nil {
		return fmt.Errorf("marshal tool result data: %w", err)
	}

	return s.appendToolRow(ctx, agentID, threadID, roleTool, string(contentJSON), toolName, toolID)
}

// appendToolRow inserts a tool call or result row. ON CONFLICT DO NOTHING
// rides the unique index on (agent_id, thread_id, tool_id, role) and is
// accepted by both sqlite3 and postgres.
func (s *SQLStore) appendToolRow(ctx context.Context, agentID, threadID, role, content, toolName, toolID string) error {
	query := s.builder.Insert("conversations").
		Columns("agent_id", "thread_id", "role", "content", "tool_name", "tool_id", "created_at").
		Values(agentID, threadID, role, content, toolName, toolID, time.Now().Unix()).
		Suffix("ON CONFLICT DO NOTHING")

	queryStr, args, err := query.ToSql()
	if err != nil {
		return fmt.Errorf("build query: %w", err)
	}

	_, err = s.db.ExecContext(ctx, queryStr, args...)
	return err
}

// AppendSystemMessage saves a system message to the conversation history.
func (s *SQLStore) AppendSystemMessage(ctx context.Context, agentID, threadID, content, breakType string) error {
	return s.appendText(ctx, agentID, threadID, roleSystem, content)
}

// LoadHistory returns the stored conversation for (agentID, threadID) as
// llm.Message history in insertion order.
func (s *SQLStore) LoadHistory(ctx context.Context, agentID, threadID string) ([]llm.Message, error) {
	query := s.builder.Select("role", "content", "tool_name", "tool_id", "created_at").
		From("conversations").
		Where(sq.Eq{"agent_id": agentID, "thread_id": threadID}).
		OrderBy("id ASC")

	queryStr, args, err := query.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, queryStr, args...)
	if err != nil {
		return nil, fmt.Errorf("query conversation history: %w", err)
	}
	defer rows.Close() //nolint:errcheck // No remedy for rows close errors

	var records []Record
	for rows.Next() {
		var rec Record
		var toolName, toolID sql.NullString
		if err := rows.Scan(&rec.Role, &rec.Content, &toolName, &toolID, &rec.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan conversation row: %w", err)
		}
		rec.ToolName = toolName.String
		rec.ToolID = toolID.String
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate conversation rows: %w", err)
	}

	return recordsToMessages(records), nil
}
