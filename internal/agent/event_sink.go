package agent

import (
	"context"
	"sync/atomic"
)

// EventSink receives Events during query processing. Implementations must
// be safe to call from multiple goroutines and should not block the caller
// indefinitely.
type EventSink interface {
	Emit(ctx context.Context, e Event)
}

// ChanSink sends events to a channel, dropping them if the channel is full
// rather than blocking the loop.
type ChanSink struct {
	ch chan<- Event
}

// NewChanSink creates a sink that sends to ch. ch should be buffered.
func NewChanSink(ch chan<- Event) *ChanSink {
	return &ChanSink{ch: ch}
}

func (s *ChanSink) Emit(ctx context.Context, e Event) {
	select {
	case s.ch <- e:
	case <-ctx.Done():
	default:
	}
}

// MultiSink fans out events to multiple sinks.
type MultiSink struct {
	sinks []EventSink
}

// NewMultiSink dispatches to every non-nil sink passed in.
func NewMultiSink(sinks ...EventSink) *MultiSink {
	filtered := make([]EventSink, 0, len(sinks))
	for _, s := range sinks {
		if s != nil {
			filtered = append(filtered, s)
		}
	}
	return &MultiSink{sinks: filtered}
}

func (s *MultiSink) Emit(ctx context.Context, e Event) {
	for _, sink := range s.sinks {
		sink.Emit(ctx, e)
	}
}

// CallbackSink wraps a function as an EventSink.
type CallbackSink struct {
	fn func(ctx context.Context, e Event)
}

// NewCallbackSink creates a sink that calls fn for every event.
func NewCallbackSink(fn func(ctx context.Context, e Event)) *CallbackSink {
	return &CallbackSink{fn: fn}
}

func (s *CallbackSink) Emit(ctx context.Context, e Event) {
	if s.fn != nil {
		s.fn(ctx, e)
	}
}

// NopSink discards every event.
type NopSink struct{}

func (NopSink) Emit(ctx context.Context, e Event) {}

// BackpressureConfig sizes the two lanes of a BackpressureSink.
type BackpressureConfig struct {
	// HighPriBuffer sizes the lane for events that must never be dropped
	// (tool lifecycle, answer, done). Default: 32.
	HighPriBuffer int

	// LowPriBuffer sizes the lane for droppable events (thinking,
	// answer_chunk). Default: 256.
	LowPriBuffer int
}

// DefaultBackpressureConfig returns sensible defaults.
func DefaultBackpressureConfig() BackpressureConfig {
	return BackpressureConfig{HighPriBuffer: 32, LowPriBuffer: 256}
}

// BackpressureSink implements two-lane backpressure for event streaming: a
// slow SSE client drops thinking/answer_chunk fragments before it ever
// drops a tool lifecycle or done event.
type BackpressureSink struct {
	highPri chan Event
	lowPri  chan Event
	merged  chan Event
	dropped uint64
	closed  uint32
}

// NewBackpressureSink creates a backpressure-aware sink and its merged
// output channel. The caller must consume the returned channel.
func NewBackpressureSink(config BackpressureConfig) (*BackpressureSink, <-chan Event) {
	if config.HighPriBuffer <= 0 {
		config.HighPriBuffer = 32
	}
	if config.LowPriBuffer <= 0 {
		config.LowPriBuffer = 256
	}

	s := &BackpressureSink{
		highPri: make(chan Event, config.HighPriBuffer),
		lowPri:  make(chan Event, config.LowPriBuffer),
		merged:  make(chan Event, config.HighPriBuffer),
	}
	go s.mergeLoop()
	return s, s.merged
}

func (s *BackpressureSink) mergeLoop() {
	defer close(s.merged)

	for {
		select {
		case e, ok := <-s.highPri:
			if ok {
				s.merged <- e
				continue
			}
			for e := range s.lowPri {
				s.merged <- e
			}
			return
		default:
		}

		select {
		case e, ok := <-s.highPri:
			if ok {
				s.merged <- e
			} else {
				for e := range s.lowPri {
					s.merged <- e
				}
				return
			}
		case e, ok := <-s.lowPri:
			if ok {
				s.merged <- e
			}
		}
	}
}

// Emit routes e to the appropriate lane. High-priority events block until
// space is available or the context is done; low-priority events are
// dropped when the buffer is full.
func (s *BackpressureSink) Emit(ctx context.Context, e Event) {
	if atomic.LoadUint32(&s.closed) == 1 {
		return
	}
	if isDroppableEvent(e.Type) {
		select {
		case s.lowPri <- e:
		default:
			atomic.AddUint64(&s.dropped, 1)
		}
		return
	}

	select {
	case s.highPri <- e:
	case <-ctx.Done():
		select {
		case s.highPri <- e:
		default:
			atomic.AddUint64(&s.dropped, 1)
		}
	}
}

// DroppedCount reports how many low-priority events were dropped.
func (s *BackpressureSink) DroppedCount() uint64 {
	return atomic.LoadUint64(&s.dropped)
}

// Close stops the sink and closes the merged output channel. No further
// Emit calls are accepted afterward.
func (s *BackpressureSink) Close() {
	if !atomic.CompareAndSwapUint32(&s.closed, 0, 1) {
		return
	}
	close(s.highPri)
	close(s.lowPri)
}

// isDroppableEvent reports whether t may be shed under backpressure without
// breaking the client's understanding of the query's outcome.
func isDroppableEvent(t EventType) bool {
	switch t {
	case EventThinking, EventAnswerChunk:
		return true
	default:
		return false
	}
}
