package reason

import (
	"context"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"

	"github.com/planweave/planweave/internal/registry"
)

// ToolRunner executes tool invocations requested by the engine. Concrete
// tool implementations live outside the core; the planning operations are
// routed back into the core through the same interface.
type ToolRunner interface {
	Invoke(ctx context.Context, name string, input json.RawMessage) (string, error)
}

// RunnerFunc adapts a function to the ToolRunner interface.
type RunnerFunc func(ctx context.Context, name string, input json.RawMessage) (string, error)

// Invoke calls the underlying function.
func (f RunnerFunc) Invoke(ctx context.Context, name string, input json.RawMessage) (string, error) {
	return f(ctx, name, input)
}

// Event is emitted as the loop progresses, for logging and UI streaming.
type Event struct {
	// Type is one of "text", "tool_use", "tool_result", "done".
	Type string
	// Content is the text or tool result payload.
	Content string
	// Tool is the capability name for tool events.
	Tool string
}

// LoopResult contains the results of one tool loop run.
type LoopResult struct {
	// Output is the final assistant text.
	Output string
	// Iterations is the number of reasoning steps taken.
	Iterations int
	// ToolCalls is the number of tool invocations executed.
	ToolCalls int
	// TokensIn and TokensOut aggregate usage across the run.
	TokensIn  int64
	TokensOut int64
}

// Loop drives an engine exchange and a tool runner until the engine
// produces a final answer or the iteration budget runs out. Cancellation
// is budget-based: the budget counts reasoning steps, not wall clock.
type Loop struct {
	engine  Engine
	runner  ToolRunner
	budget  int
	logger  *zap.Logger
	onEvent func(Event)
}

// NewLoop creates a loop with the given engine, runner and step budget.
// A budget of 0 picks a conservative default.
func NewLoop(engine Engine, runner ToolRunner, budget int, logger *zap.Logger) *Loop {
	if budget <= 0 {
		budget = 20
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Loop{engine: engine, runner: runner, budget: budget, logger: logger}
}

// SetEventHandler sets a callback for streaming events during execution.
func (l *Loop) SetEventHandler(fn func(Event)) {
	l.onEvent = fn
}

func (l *Loop) emit(event Event) {
	if l.onEvent != nil {
		l.onEvent(event)
	}
}

// Run executes the loop with the given prompts and capability subset.
// On budget exhaustion it returns the partial result together with
// ErrBudgetExceeded; the caller decides whether that is fatal.
func (l *Loop) Run(ctx context.Context, system, prompt string, tools []registry.Capability) (*LoopResult, error) {
	result := &LoopResult{}
	ex := l.engine.Open(system, tools)

	out, err := ex.Prompt(ctx, prompt)
	if err != nil {
		return result, err
	}

	for {
		result.Iterations++
		result.TokensIn += out.TokensIn
		result.TokensOut += out.TokensOut

		if out.Text != "" {
			l.emit(Event{Type: "text", Content: out.Text})
		}

		if out.Done && len(out.Invocations) == 0 {
			result.Output = out.Text
			l.emit(Event{Type: "done"})
			return result, nil
		}

		if result.Iterations >= l.budget {
			l.logger.Warn("tool loop budget exhausted",
				zap.Int("budget", l.budget),
				zap.Int("tool_calls", result.ToolCalls))
			result.Output = out.Text
			return result, fmt.Errorf("%w: %d iterations", ErrBudgetExceeded, l.budget)
		}

		results := make([]ToolResult, 0, len(out.Invocations))
		for _, inv := range out.Invocations {
			result.ToolCalls++
			l.emit(Event{Type: "tool_use", Tool: inv.Name, Content: string(inv.Input)})

			content, invokeErr := l.runner.Invoke(ctx, inv.Name, inv.Input)
			tr := ToolResult{ID: inv.ID, Name: inv.Name, Content: content}
			if invokeErr != nil {
				tr.Content = invokeErr.Error()
				tr.IsError = true
			}
			l.emit(Event{Type: "tool_result", Tool: inv.Name, Content: truncateForDisplay(tr.Content)})
			results = append(results, tr)
		}

		out, err = ex.Submit(ctx, results)
		if err != nil {
			return result, err
		}
	}
}

func truncateForDisplay(s string) string {
	if len(s) > 500 {
		return s[:500] + "..."
	}
	return s
}
