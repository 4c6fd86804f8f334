// Package reason provides the reasoning-engine boundary: an interface the
// orchestration core depends on, an Anthropic-backed implementation, and
// the iteration-budgeted tool loop that drives worker executions.
package reason

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/planweave/planweave/internal/registry"
)

// ErrBudgetExceeded indicates a tool loop ran out of its iteration budget.
var ErrBudgetExceeded = errors.New("iteration budget exceeded")

// ToolInvocation is a single tool call requested by the engine.
type ToolInvocation struct {
	// ID correlates the invocation with its result.
	ID string
	// Name is the capability name to invoke.
	Name string
	// Input is the raw JSON arguments.
	Input json.RawMessage
}

// ToolResult carries the outcome of one tool invocation back to the engine.
type ToolResult struct {
	// ID matches the originating invocation.
	ID string
	// Name is the capability that produced the result.
	Name string
	// Content is the textual result.
	Content string
	// IsError marks a failed invocation.
	IsError bool
}

// Outcome is one reasoning step: either a set of tool invocations to run,
// or a final answer when Done is true.
type Outcome struct {
	// Text is the assistant text emitted this step.
	Text string
	// Invocations are the tool calls to execute, empty on a final answer.
	Invocations []ToolInvocation
	// Done is true when the engine produced a final answer.
	Done bool
	// TokensIn and TokensOut report usage for this step.
	TokensIn  int64
	TokensOut int64
}

// Exchange is one conversation with the engine. Implementations hold the
// accumulated message history; the core only sees outcomes.
type Exchange interface {
	// Prompt starts or continues the exchange with user text.
	Prompt(ctx context.Context, text string) (*Outcome, error)
	// Submit returns tool results for the previous outcome's invocations.
	Submit(ctx context.Context, results []ToolResult) (*Outcome, error)
}

// Engine is the black-box reasoning capability. The core depends on this
// contract only, never on provider internals.
type Engine interface {
	// Open begins a fresh exchange with the given system prompt and the
	// capability subset the engine may invoke.
	Open(system string, tools []registry.Capability) Exchange
}
