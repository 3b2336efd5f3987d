package gemini

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"strings"
	"sync"

	"github.com/agentry-ai/agentry/llm"
	"github.com/rs/zerolog"
)

// geminiStream implements the llm.Stream interface for Gemini SSE responses.
// Gemini sends complete functionCall parts per chunk, so tool calls are
// emitted as content_block events with their input already parsed.
type geminiStream struct {
	ctx     context.Context
	body    io.ReadCloser
	events  []*llm.StreamEvent
	current int
	mu      sync.Mutex
	cond    *sync.Cond // Condition variable to wait for events
	err     error
	done    bool
	started bool
	logger  zerolog.Logger
}

// newGeminiStream creates a new geminiStream reading SSE chunks from body.
func newGeminiStream(ctx context.Context, body io.ReadCloser, logger zerolog.Logger) *geminiStream {
	gs := &geminiStream{
		ctx:     ctx,
		body:    body,
		events:  make([]*llm.StreamEvent, 0),
		current: -1,
		logger:  logger,
	}
	gs.cond = sync.NewCond(&gs.mu)
	return gs
}

// Next advances to the next event in the stream.
func (s *geminiStream) Next() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		s.started = true
		go s.startStream()
	}

	s.current++

	for s.current >= len(s.events) && !s.done && s.err == nil {
		s.cond.Wait()
	}

	if s.err != nil {
		return false
	}
	if s.done && s.current >= len(s.events) {
		return false
	}

	return s.current < len(s.events)
}

// Event returns the current event.
func (s *geminiStream) Event() *llm.StreamEvent {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.current < 0 || s.current >= len(s.events) {
		return nil
	}
	return s.events[s.current]
}

// Err returns any error that occurred during streaming.
func (s *geminiStream) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Close closes the stream and releases resources.
func (s *geminiStream) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.done = true
	s.cond.Broadcast()
	if s.body != nil {
		return s.body.Close()
	}
	return nil
}

// startStream reads SSE chunks and translates them to stream events.
func (s *geminiStream) startStream() {
	defer s.body.Close() //nolint:errcheck

	// Emit start event
	s.appendEvent(&llm.StreamEvent{
		Type: llm.StreamEventTypeStart,
	})

	var usage *llm.Usage

	scanner := bufio.NewScanner(s.body)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if !strings.HasPrefix(line, "data:") {
			continue
		}
		payload := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
		if payload == "" || payload == "[DONE]" {
			continue
		}

		var chunk generateContentResponse
		if err := json.Unmarshal([]byte(payload), &chunk); err != nil {
			s.logger.Warn().Err(err).Msg("Failed to decode Gemini stream chunk")
			continue
		}

		if chunk.UsageMetadata != nil {
			usage = fromGeminiUsage(chunk.UsageMetadata)
		}

		for _, cand := range chunk.Candidates {
			for _, p := range cand.Content.Parts {
				switch {
				case p.FunctionCall != nil:
					input := p.FunctionCall.Args
					if input == nil {
						input = make(map[string]interface{})
					}
					s.appendEvent(&llm.StreamEvent{
						Type: llm.StreamEventTypeContentBlock,
						Delta: &llm.StreamDelta{
							Type: llm.StreamDeltaTypeToolUse,
							ToolUse: &llm.ToolUseBlock{
								ID:    toolCallID(p.FunctionCall.Name),
								Name:  p.FunctionCall.Name,
								Input: input,
							},
						},
					})
				case p.Text != "":
					s.appendEvent(&llm.StreamEvent{
						Type: llm.StreamEventTypeContentDelta,
						Delta: &llm.StreamDelta{
							Type: llm.StreamDeltaTypeText,
							Text: p.Text,
						},
					})
				}
			}
		}
	}

	if err := scanner.Err(); err != nil {
		s.mu.Lock()
		s.err = err
		s.done = true
		s.cond.Broadcast()
		s.mu.Unlock()
		return
	}

	// Emit message delta with usage, then stop
	s.appendEvent(&llm.StreamEvent{
		Type:  llm.StreamEventTypeMessageDelta,
		Usage: usage,
	})

	s.mu.Lock()
	s.events = append(s.events, &llm.StreamEvent{
		Type:  llm.StreamEventTypeStop,
		Usage: usage,
		Done:  true,
	})
	s.done = true
	s.cond.Broadcast()
	s.mu.Unlock()
}

func (s *geminiStream) appendEvent(event *llm.StreamEvent) {
	s.mu.Lock()
	s.events = append(s.events, event)
	s.cond.Broadcast()
	s.mu.Unlock()
}

// Ensure geminiStream implements llm.Stream
var _ llm.Stream = (*geminiStream)(nil)
