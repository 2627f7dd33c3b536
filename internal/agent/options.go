package agent

import (
	"log/slog"
	"time"
)

// RuntimeOptions configures tool execution and loop behavior.
type RuntimeOptions struct {
	// MaxIterations limits reasoning/acting rounds per query.
	MaxIterations int

	// ToolParallelism caps concurrent tool execution. Queries execute their
	// own tool calls sequentially by default (ToolParallelism=1); raise it
	// to let independent calls within one round run concurrently.
	ToolParallelism int

	// ToolTimeout applies a default timeout to each tool call.
	ToolTimeout time.Duration

	// ToolMaxAttempts controls retry attempts for tool execution.
	ToolMaxAttempts int

	// ToolRetryBackoff waits between retry attempts.
	ToolRetryBackoff time.Duration

	// DisableToolEvents disables ToolEvent emission while processing.
	DisableToolEvents bool

	// MaxToolCalls limits total tool calls per query (0 = unlimited). Once
	// reached the loop emits a tool_limit notice and forces a final answer.
	MaxToolCalls int

	// ToolCategorySoftLimit is the soft per-tool-name call count (L_soft).
	// Crossing it injects a scratchpad notice nudging the model toward an
	// answer without forcibly ending the query.
	ToolCategorySoftLimit int

	// ToolOverallSoftLimit is the soft total call count across all tools.
	// Like ToolCategorySoftLimit it only nudges; MaxToolCalls is the hard
	// stop.
	ToolOverallSoftLimit int

	// ToolResultGuard redacts tool results before persistence.
	ToolResultGuard ToolResultGuard

	// Logger receives runtime diagnostics.
	Logger *slog.Logger
}

// DefaultRuntimeOptions returns the baseline runtime options.
func DefaultRuntimeOptions() RuntimeOptions {
	return RuntimeOptions{
		MaxIterations:     8,
		ToolParallelism:   1,
		ToolTimeout:       30 * time.Second,
		ToolMaxAttempts:   1,
		ToolRetryBackoff:  0,
		DisableToolEvents: false,
		MaxToolCalls:      25,
		ToolCategorySoftLimit: 4,
		ToolOverallSoftLimit:  8,
		Logger:            slog.Default(),
	}
}

func mergeRuntimeOptions(base RuntimeOptions, override RuntimeOptions) RuntimeOptions {
	merged := base
	if override.MaxIterations > 0 {
		merged.MaxIterations = override.MaxIterations
	}
	if override.ToolParallelism > 0 {
		merged.ToolParallelism = override.ToolParallelism
	}
	if override.ToolTimeout > 0 {
		merged.ToolTimeout = override.ToolTimeout
	}
	if override.ToolMaxAttempts > 0 {
		merged.ToolMaxAttempts = override.ToolMaxAttempts
	}
	if override.ToolRetryBackoff > 0 {
		merged.ToolRetryBackoff = override.ToolRetryBackoff
	}
	if override.DisableToolEvents {
		merged.DisableToolEvents = true
	}
	if override.MaxToolCalls > 0 {
		merged.MaxToolCalls = override.MaxToolCalls
	}
	if override.ToolCategorySoftLimit > 0 {
		merged.ToolCategorySoftLimit = override.ToolCategorySoftLimit
	}
	if override.ToolOverallSoftLimit > 0 {
		merged.ToolOverallSoftLimit = override.ToolOverallSoftLimit
	}
	if override.ToolResultGuard.active() {
		merged.ToolResultGuard = override.ToolResultGuard
	}
	if override.Logger != nil {
		merged.Logger = override.Logger
	}
	return merged
}
