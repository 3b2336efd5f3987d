package llm

import (
	"context"
	"sync"
	"time"
)

// Metrics aggregates token usage and timing data across LLM calls.
// All methods are safe for concurrent use.
type Metrics struct {
	mu               sync.Mutex
	inputTokens      int64
	outputTokens     int64
	calls            int64
	responseTimes    []time.Duration
	timeToFirstToken []time.Duration
	toolCallTimes    map[string][]time.Duration
}

// MetricsSnapshot is a point-in-time copy of accumulated metrics,
// suitable for logging or serialization.
type MetricsSnapshot struct {
	InputTokens      int64                      `json:"input_tokens"`
	OutputTokens     int64                      `json:"output_tokens"`
	TotalTokens      int64                      `json:"total_tokens"`
	Calls            int64                      `json:"calls"`
	ResponseTimes    []time.Duration            `json:"response_times,omitempty"`
	TimeToFirstToken []time.Duration            `json:"time_to_first_token,omitempty"`
	ToolCallTimes    map[string][]time.Duration `json:"tool_call_times,omitempty"`
}

// NewMetrics creates an empty Metrics accumulator.
func NewMetrics() *Metrics {
	return &Metrics{
		toolCallTimes: make(map[string][]time.Duration),
	}
}

// RecordCall records a completed LLM call with its usage and elapsed time.
func (m *Metrics) RecordCall(usage *Usage, elapsed time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.calls++
	m.responseTimes = append(m.responseTimes, elapsed)
	if usage != nil {
		m.inputTokens += usage.InputTokens
		m.outputTokens += usage.OutputTokens
	}
}

// RecordFirstToken records the latency from stream start to the first content delta.
func (m *Metrics) RecordFirstToken(elapsed time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.timeToFirstToken = append(m.timeToFirstToken, elapsed)
}

// RecordToolCall records the execution time of a single tool invocation.
func (m *Metrics) RecordToolCall(toolName string, elapsed time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.toolCallTimes[toolName] = append(m.toolCallTimes[toolName], elapsed)
}

// Merge adds the counters and timings of other into m.
func (m *Metrics) Merge(other *Metrics) {
	if other == nil {
		return
	}
	snap := other.Snapshot()

	m.mu.Lock()
	defer m.mu.Unlock()

	m.inputTokens += snap.InputTokens
	m.outputTokens += snap.OutputTokens
	m.calls += snap.Calls
	m.responseTimes = append(m.responseTimes, snap.ResponseTimes...)
	m.timeToFirstToken = append(m.timeToFirstToken, snap.TimeToFirstToken...)
	for name, times := range snap.ToolCallTimes {
		m.toolCallTimes[name] = append(m.toolCallTimes[name], times...)
	}
}

// Snapshot returns a copy of the accumulated metrics.
func (m *Metrics) Snapshot() MetricsSnapshot {
	m.mu.Lock()
	defer m.mu.Unlock()

	snap := MetricsSnapshot{
		InputTokens:   m.inputTokens,
		OutputTokens:  m.outputTokens,
		TotalTokens:   m.inputTokens + m.outputTokens,
		Calls:         m.calls,
		ResponseTimes: append([]time.Duration(nil), m.responseTimes...),
	}
	snap.TimeToFirstToken = append([]time.Duration(nil), m.timeToFirstToken...)
	if len(m.toolCallTimes) > 0 {
		snap.ToolCallTimes = make(map[string][]time.Duration, len(m.toolCallTimes))
		for name, times := range m.toolCallTimes {
			snap.ToolCallTimes[name] = append([]time.Duration(nil), times...)
		}
	}
	return snap
}

// MetricsRecorder is a Middleware and StreamMiddleware that records token
// usage and response times for every call made through a wrapped Client.
type MetricsRecorder struct {
	metrics *Metrics

	mu     sync.Mutex
	starts map[*Request]time.Time
	first  map[*Request]bool
}

// NewMetricsRecorder creates a MetricsRecorder that writes into metrics.
func NewMetricsRecorder(metrics *Metrics) *MetricsRecorder {
	return &MetricsRecorder{
		metrics: metrics,
		starts:  make(map[*Request]time.Time),
		first:   make(map[*Request]bool),
	}
}

// BeforeRequest implements Middleware.BeforeRequest.
func (r *MetricsRecorder) BeforeRequest(ctx context.Context, req *Request) (*Request, error) {
	r.mu.Lock()
	r.starts[req] = time.Now()
	r.mu.Unlock()
	return req, nil
}

// AfterResponse implements Middleware.AfterResponse.
func (r *MetricsRecorder) AfterResponse(ctx context.Context, req *Request, resp *Response) (*Response, error) {
	r.metrics.RecordCall(resp.Usage, r.takeElapsed(req))
	return resp, nil
}

// OnError implements Middleware.OnError.
func (r *MetricsRecorder) OnError(ctx context.Context, req *Request, err error) error {
	r.takeElapsed(req)
	return err
}

// BeforeStream implements StreamMiddleware.BeforeStream.
func (r *MetricsRecorder) BeforeStream(ctx context.Context, req *Request) (*Request, error) {
	r.mu.Lock()
	r.starts[req] = time.Now()
	r.first[req] = false
	r.mu.Unlock()
	return req, nil
}

// OnStreamEvent implements StreamMiddleware.OnStreamEvent.
func (r *MetricsRecorder) OnStreamEvent(ctx context.Context, req *Request, event *StreamEvent) (*StreamEvent, error) {
	if event == nil {
		return event, nil
	}

	switch event.Type {
	case StreamEventTypeContentDelta:
		r.mu.Lock()
		if seen, tracked := r.first[req]; tracked && !seen {
			r.first[req] = true
			if start, ok := r.starts[req]; ok {
				r.mu.Unlock()
				r.metrics.RecordFirstToken(time.Since(start))
				return event, nil
			}
		}
		r.mu.Unlock()
	case StreamEventTypeStop:
		elapsed := r.takeElapsed(req)
		r.mu.Lock()
		delete(r.first, req)
		r.mu.Unlock()
		r.metrics.RecordCall(event.Usage, elapsed)
	}

	return event, nil
}

// OnStreamError implements StreamMiddleware.OnStreamError.
func (r *MetricsRecorder) OnStreamError(ctx context.Context, req *Request, err error) error {
	r.takeElapsed(req)
	r.mu.Lock()
	delete(r.first, req)
	r.mu.Unlock()
	return err
}

func (r *MetricsRecorder) takeElapsed(req *Request) time.Duration {
	r.mu.Lock()
	defer r.mu.Unlock()

	start, ok := r.starts[req]
	if !ok {
		return 0
	}
	delete(r.starts, req)
	return time.Since(start)
}

var (
	_ Middleware       = (*MetricsRecorder)(nil)
	_ StreamMiddleware = (*MetricsRecorder)(nil)
)
