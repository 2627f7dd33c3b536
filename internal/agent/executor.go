package agent

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"github.com/haasonsaas/nexus/pkg/models"
)

// Executor runs the batch of tool calls an assistant turn requested,
// sequentially by default (RuntimeOptions.ToolParallelism == 1) to keep the
// resulting tool messages in a deterministic, replayable order. A
// parallelism greater than 1 runs calls concurrently but still returns
// results in the original call order.
type Executor struct {
	registry *ToolRegistry
	opts     RuntimeOptions
	emitter  *EventEmitter
}

// NewExecutor builds an Executor. A nil emitter discards all tool events.
func NewExecutor(registry *ToolRegistry, opts RuntimeOptions, emitter *EventEmitter) *Executor {
	if emitter == nil {
		emitter = NewEventEmitter(nil)
	}
	return &Executor{registry: registry, opts: opts, emitter: emitter}
}

// ExecuteAll runs every call in calls and returns the populated
// ToolCallRecords (Result/Error/DurationMs filled in) in the same order.
func (e *Executor) ExecuteAll(ctx context.Context, calls []models.ToolCallRecord) []models.ToolCallRecord {
	if len(calls) == 0 {
		return nil
	}

	parallelism := e.opts.ToolParallelism
	if parallelism <= 0 {
		parallelism = 1
	}

	results := make([]models.ToolCallRecord, len(calls))
	if parallelism == 1 {
		for i, call := range calls {
			results[i] = e.executeOne(ctx, call)
		}
		return results
	}

	sem := make(chan struct{}, parallelism)
	var wg sync.WaitGroup
	for i, call := range calls {
		wg.Add(1)
		sem <- struct{}{}
		go func(idx int, c models.ToolCallRecord) {
			defer wg.Done()
			defer func() { <-sem }()
			results[idx] = e.executeOne(ctx, c)
		}(i, call)
	}
	wg.Wait()
	return results
}

// executeOne runs a single call with the configured retry policy, applies
// the result guard, and emits the matching tool_start/tool_end/tool_error
// events. If ctx is already cancelled when called, it aborts before
// emitting anything: a client disconnect mid-query must produce no further
// events past the cancellation point.
func (e *Executor) executeOne(ctx context.Context, call models.ToolCallRecord) models.ToolCallRecord {
	if ctx.Err() != nil {
		record := call
		record.Error = (&Error{Kind: KindCancelled, Cause: ctx.Err()}).Error()
		return record
	}

	start := time.Now()
	e.emitter.ToolStart(ctx, call.ID, call.Name, call.Arguments)

	maxAttempts := e.opts.ToolMaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = 1
	}
	backoff := e.opts.ToolRetryBackoff

	var result *ToolResult
	var callErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		result, callErr = e.invokeWithRecover(ctx, call)
		if callErr == nil {
			break
		}
		if attempt == maxAttempts || ctx.Err() != nil {
			break
		}
		if backoff > 0 {
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
			}
		}
	}

	elapsed := time.Since(start)
	record := call
	record.DurationMs = elapsed.Milliseconds()

	if callErr != nil {
		record.Error = callErr.Error()
		if ctx.Err() == nil {
			e.emitter.ToolError(ctx, call.ID, call.Name, callErr.Error(), elapsed)
		}
		return record
	}

	guarded := e.opts.ToolResultGuard.Apply(call.Name, toModelsToolResult(result))
	if guarded.IsError {
		record.Error = guarded.Content
		if ctx.Err() == nil {
			e.emitter.ToolError(ctx, call.ID, call.Name, guarded.Content, elapsed)
		}
	} else {
		record.Result = guarded.Content
		if ctx.Err() == nil {
			e.emitter.ToolEnd(ctx, call.ID, call.Name, guarded.Content, elapsed)
		}
	}
	return record
}

func (e *Executor) invokeWithRecover(ctx context.Context, call models.ToolCallRecord) (result *ToolResult, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("tool %q panicked: %v\n%s", call.Name, r, debug.Stack())
		}
	}()
	return e.registry.Invoke(ctx, call.Name, call.Arguments)
}
