package bedrock

import (
	"github.com/agentry-ai/agentry/llm"
)

// bedrockStream replays a completed Converse response as stream events.
// Events are fully buffered up front, so Next never blocks.
type bedrockStream struct {
	events  []*llm.StreamEvent
	current int
}

// newBedrockStream builds the event sequence for a completed response.
func newBedrockStream(resp *llm.Response) *bedrockStream {
	events := []*llm.StreamEvent{
		{Type: llm.StreamEventTypeStart},
	}

	for _, block := range resp.Content {
		switch block.Type {
		case llm.ContentBlockTypeText:
			events = append(events, &llm.StreamEvent{
				Type: llm.StreamEventTypeContentDelta,
				Delta: &llm.StreamDelta{
					Type: llm.StreamDeltaTypeText,
					Text: block.Text,
				},
			})
		case llm.ContentBlockTypeToolUse:
			events = append(events, &llm.StreamEvent{
				Type: llm.StreamEventTypeContentBlock,
				Delta: &llm.StreamDelta{
					Type:    llm.StreamDeltaTypeToolUse,
					ToolUse: block.ToolUse,
				},
			})
		}
	}

	events = append(events,
		&llm.StreamEvent{
			Type:  llm.StreamEventTypeMessageDelta,
			Usage: resp.Usage,
		},
		&llm.StreamEvent{
			Type:  llm.StreamEventTypeStop,
			Usage: resp.Usage,
			Done:  true,
		},
	)

	return &bedrockStream{
		events:  events,
		current: -1,
	}
}

// Next advances to the next event in the stream.
func (s *bedrockStream) Next() bool {
	if s.current+1 >= len(s.events) {
		return false
	}
	s.current++
	return true
}

// Event returns the current event.
func (s *bedrockStream) Event() *llm.StreamEvent {
	if s.current < 0 || s.current >= len(s.events) {
		return nil
	}
	return s.events[s.current]
}

// Err returns any error that occurred during streaming.
func (s *bedrockStream) Err() error {
	return nil
}

// Close closes the stream and releases resources.
func (s *bedrockStream) Close() error {
	return nil
}

// Ensure bedrockStream implements llm.Stream
var _ llm.Stream = (*bedrockStream)(nil)
