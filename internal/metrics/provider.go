package metrics

import (
	"context"
	"time"

	"github.com/haasonsaas/nexus/internal/agent"
)

// InstrumentedProvider wraps an agent.LLMProvider, timing each Complete call
// from invocation to the stream's terminal chunk. The agent Event schema (6)
// has no dedicated LLM-call event, so this wraps the provider directly
// rather than observing through the event stream.
type InstrumentedProvider struct {
	agent.LLMProvider
	m *Metrics
}

// Instrument wraps provider so every completion call records
// mini_agent_llm_call_duration_seconds.
func Instrument(provider agent.LLMProvider, m *Metrics) *InstrumentedProvider {
	return &InstrumentedProvider{LLMProvider: provider, m: m}
}

// Complete implements agent.LLMProvider.
func (p *InstrumentedProvider) Complete(ctx context.Context, req *agent.CompletionRequest) (<-chan *agent.CompletionChunk, error) {
	start := time.Now()
	upstream, err := p.LLMProvider.Complete(ctx, req)
	if err != nil {
		p.observe(req.Model, time.Since(start))
		return nil, err
	}

	out := make(chan *agent.CompletionChunk)
	go func() {
		defer close(out)
		for chunk := range upstream {
			out <- chunk
			if chunk.Done || chunk.Error != nil {
				p.observe(req.Model, time.Since(start))
			}
		}
	}()
	return out, nil
}

func (p *InstrumentedProvider) observe(model string, elapsed time.Duration) {
	p.m.LLMCallDuration.WithLabelValues(p.LLMProvider.Name(), model).Observe(elapsed.Seconds())
}
