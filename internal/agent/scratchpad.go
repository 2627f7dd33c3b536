package agent

import (
	"encoding/json"
	"fmt"
	"strings"
)

// StepKind identifies which of the four scratchpad step shapes a Step is.
type StepKind string

const (
	StepThought     StepKind = "thought"
	StepAct         StepKind = "act"
	StepObserve     StepKind = "observe"
	StepLimitNotice StepKind = "limit_notice"
)

// Step is one entry in a Scratchpad. Only the fields matching Kind are
// meaningful; the rest are zero.
type Step struct {
	Kind StepKind

	// StepThought
	Thought string

	// StepAct
	CallID    string
	ToolName  string
	Arguments json.RawMessage

	// StepObserve (CallID above identifies which Act this answers)
	OK         bool
	ResultText string
	ErrorText  string
	DurationMs int64

	// StepLimitNotice
	Reason string
}

// Scratchpad accumulates the Thought/Act/Observe/LimitNotice trace for one
// query. Its lifetime is exactly one call into the loop; it is discarded
// once the query completes or is cancelled.
//
// Invariant: every Act appended has a matching Observe appended before the
// next Act, enforced by the loop's call sequence rather than by Scratchpad
// itself.
type Scratchpad struct {
	steps []Step
}

// NewScratchpad returns an empty Scratchpad.
func NewScratchpad() *Scratchpad {
	return &Scratchpad{}
}

// Thought records free-form reasoning text preceding a round of tool calls.
func (s *Scratchpad) Thought(text string) {
	if text == "" {
		return
	}
	s.steps = append(s.steps, Step{Kind: StepThought, Thought: text})
}

// Act records a tool invocation request.
func (s *Scratchpad) Act(callID, toolName string, arguments json.RawMessage) {
	s.steps = append(s.steps, Step{Kind: StepAct, CallID: callID, ToolName: toolName, Arguments: arguments})
}

// Observe records the outcome of the Act identified by callID.
func (s *Scratchpad) Observe(callID string, ok bool, text string, durationMs int64) {
	step := Step{Kind: StepObserve, CallID: callID, OK: ok, DurationMs: durationMs}
	if ok {
		step.ResultText = text
	} else {
		step.ErrorText = text
	}
	s.steps = append(s.steps, step)
}

// LimitNotice records that a soft tool-call limit was crossed.
func (s *Scratchpad) LimitNotice(reason string) {
	s.steps = append(s.steps, Step{Kind: StepLimitNotice, Reason: reason})
}

// ToolCallCount returns the number of Act steps recorded for the given
// tool name (the soft-limit category).
func (s *Scratchpad) ToolCallCount(category string) int {
	n := 0
	for _, st := range s.steps {
		if st.Kind == StepAct && st.ToolName == category {
			n++
		}
	}
	return n
}

// TotalToolCalls returns the number of Act steps recorded across every
// category, for the overall soft limit.
func (s *Scratchpad) TotalToolCalls() int {
	n := 0
	for _, st := range s.steps {
		if st.Kind == StepAct {
			n++
		}
	}
	return n
}

// Steps returns the recorded steps in order. The returned slice must not be
// mutated by the caller.
func (s *Scratchpad) Steps() []Step {
	return s.steps
}

// Render formats the scratchpad as a prompt fragment in chronological
// order. Deterministic given the same steps: no maps, no wall-clock reads.
func (s *Scratchpad) Render() string {
	var b strings.Builder
	for _, st := range s.steps {
		switch st.Kind {
		case StepThought:
			fmt.Fprintf(&b, "Thought: %s\n", st.Thought)
		case StepAct:
			fmt.Fprintf(&b, "Action: %s(%s)\n", st.ToolName, string(st.Arguments))
		case StepObserve:
			if st.OK {
				fmt.Fprintf(&b, "Observation: %s\n", st.ResultText)
			} else {
				fmt.Fprintf(&b, "Observation (error): %s\n", st.ErrorText)
			}
		case StepLimitNotice:
			fmt.Fprintf(&b, "Notice: %s\n", st.Reason)
		}
	}
	return b.String()
}
