package conversations

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/agentry-ai/agentry/llm"
)

// FileStore persists conversations as JSON-lines files, one file per thread
// under root/<agentID>/<threadID>.jsonl. Useful for local runs where no
// database is configured.
type FileStore struct {
	root string
	mu   sync.Mutex
}

var _ Store = (*FileStore)(nil)

// NewFileStore creates a file-backed conversation store rooted at root.
// The directory is created if it does not exist.
func NewFileStore(root string) (*FileStore, error) {
	if root == "" {
		return nil, fmt.Errorf("file store root is required")
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("create conversation root: %w", err)
	}
	return &FileStore{root: root}, nil
}

// threadPath builds the storage path for a thread. Path separators in IDs
// are flattened so a crafted thread ID cannot escape the root.
func (s *FileStore) threadPath(agentID, threadID string) string {
	sanitize := func(id string) string {
		id = strings.ReplaceAll(id, string(os.PathSeparator), "_")
		return strings.ReplaceAll(id, "..", "_")
	}
	return filepath.Join(s.root, sanitize(agentID), sanitize(threadID)+".jsonl")
}

func (s *FileStore) appendRecord(agentID, threadID string, rec Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	path := s.threadPath(agentID, threadID)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create agent directory: %w", err)
	}

	line, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal conversation record: %w", err)
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("open thread file: %w", err)
	}
	defer f.Close() //nolint:errcheck // write error is what matters

	if _, err := f.Write(append(line, '\n')); err != nil {
		return fmt.Errorf("append conversation record: %w", err)
	}
	return nil
}

// AppendUserMessage saves a user text message to the thread file.
func (s *FileStore) AppendUserMessage(ctx context.Context, agentID, threadID, content string) error {
	return s.appendRecord(agentID, threadID, Record{
		Role:      roleUser,
		Content:   content,
		CreatedAt: time.Now().Unix(),
	})
}

// AppendAssistantMessage saves an assistant text-only message to the thread file.
func (s *FileStore) AppendAssistantMessage(ctx context.Context, agentID, threadID, content string) error {
	return s.appendRecord(agentID, threadID, Record{
		Role:      roleAssistant,
		Content:   content,
		CreatedAt: time.Now().Unix(),
	})
}

// AppendToolCall saves an assistant tool use to the thread file. Duplicate
// tool IDs from replays are tolerated here and collapsed on load.
func (s *FileStore) AppendToolCall(ctx context.Context, agentID, threadID, toolID, toolName string, toolInput any) error {
	contentJSON, err := json.Marshal(toolUsePayload{
		ID:    toolID,
		Name:  toolName,
		Input: toolInput,
	})
	if err != nil {
		return fmt.Errorf("marshal tool use data: %w", err)
	}

	return s.appendRecord(agentID, threadID, Record{
		Role:      roleAssistant,
		Content:   string(contentJSON),
		ToolName:  toolName,
		ToolID:    toolID,
		CreatedAt: time.Now().Unix(),
	})
}

// AppendToolResult saves a tool result to the thread file.
func (s *FileStore) AppendToolResult(ctx context.Context, agentID, threadID, toolID, toolName string, result any, isError bool) error {
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

	return s.appendRecord(agentID, threadID, Record{
		Role:      roleTool,
		Content:   string(contentJSON),
		ToolName:  toolName,
		ToolID:    toolID,
		CreatedAt: time.Now().Unix(),
	})
}

// AppendSystemMessage saves a system message to the thread file.
func (s *FileStore) AppendSystemMessage(ctx context.Context, agentID, threadID, content, breakType string) error {
	return s.appendRecord(agentID, threadID, Record{
		Role:      roleSystem,
		Content:   content,
		CreatedAt: time.Now().Unix(),
	})
}

// LoadHistory reads the thread file and rebuilds llm.Message history.
// A missing file is an empty conversation, not an error.
func (s *FileStore) LoadHistory(ctx context.Context, agentID, threadID string) ([]llm.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	f, err := os.Open(s.threadPath(agentID, threadID))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("open thread file: %w", err)
	}
	defer f.Close() //nolint:errcheck // read-only

	var records []Record
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		var rec Record
		if err := json.Unmarshal([]byte(line), &rec); err != nil {
			// Skip torn writes from a crashed process
			continue
		}
		records = append(records, rec)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read thread file: %w", err)
	}

	return recordsToMessages(records), nil
}

// ListThreads returns the thread IDs stored for an agent.
func (s *FileStore) ListThreads(agentID string) ([]string, error) {
	entries, err := os.ReadDir(filepath.Join(s.root, agentID))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read agent directory: %w", err)
	}

	var threads []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		if strings.HasSuffix(name, ".jsonl") {
			threads = append(threads, strings.TrimSuffix(name, ".jsonl"))
		}
	}
	return threads, nil
}
