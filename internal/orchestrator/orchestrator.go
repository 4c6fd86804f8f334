// Package orchestrator drives the control loop: it exposes roadmap and
// worker pool operations to the reasoning engine as tools, snapshots
// state after every reasoning step and tool execution, and applies the
// configured retry policy when workers run out of budget.
package orchestrator

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/planweave/planweave/internal/mode"
	"github.com/planweave/planweave/internal/notebook"
	"github.com/planweave/planweave/internal/pool"
	"github.com/planweave/planweave/internal/reason"
	"github.com/planweave/planweave/internal/registry"
	"github.com/planweave/planweave/internal/roadmap"
	"github.com/planweave/planweave/internal/signal"
	"github.com/planweave/planweave/internal/snapshot"
)

// Retry policies for workers that exhaust their iteration budget.
const (
	// RetrySameWorker re-dispatches to the worker that failed.
	RetrySameWorker = "same-worker"
	// RetryReplace re-dispatches to the next worker in pool order.
	RetryReplace = "replace"
)

// Config holds orchestrator tuning.
type Config struct {
	// Mode controls when planning operations are exposed.
	Mode mode.Mode
	// RetryPolicy is RetrySameWorker or RetryReplace.
	RetryPolicy string
	// MaxAttempts caps dispatches per subtask before it is returned to
	// planned for replanning.
	MaxAttempts int
	// IterationBudget caps reasoning steps in the control loop.
	IterationBudget int
}

// Deps are the collaborators the orchestrator is built from.
type Deps struct {
	Engine   reason.Engine
	Registry *registry.Registry
	Pool     *pool.Manager
	Store    *snapshot.Store
	Signals  *signal.Watcher
	Logger   *zap.Logger
}

// Result summarizes a completed or interrupted run.
type Result struct {
	RunID      string
	Summary    string
	Iterations int
	ToolCalls  int
	TokensIn   int64
	TokensOut  int64
	// Stopped is true when a stop signal ended the run early.
	Stopped bool
	// Paused is true when a pause signal ended the run early; the run
	// can be resumed from its last snapshot.
	Paused bool
}

// Orchestrator owns one run's state: the notebook, the roadmap, the
// worker pool, and the mode controller.
type Orchestrator struct {
	cfg      Config
	engine   reason.Engine
	registry *registry.Registry
	pool     *pool.Manager
	store    *snapshot.Store
	signals  *signal.Watcher
	logger   *zap.Logger
	onEvent  func(reason.Event)

	runID      string
	nb         *notebook.Notebook
	roadmap    *roadmap.Manager
	controller *mode.Controller

	// reopen is set when enter_planning_mode changes the toolset and
	// the exchange must be restarted with planning tools attached.
	reopen bool
}

// New creates an orchestrator for a fresh run.
func New(cfg Config, deps Deps) *Orchestrator {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.RetryPolicy == "" {
		cfg.RetryPolicy = RetrySameWorker
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 3
	}
	if cfg.IterationBudget <= 0 {
		cfg.IterationBudget = 50
	}

	nb := notebook.New()
	return &Orchestrator{
		cfg:        cfg,
		engine:     deps.Engine,
		registry:   deps.Registry,
		pool:       deps.Pool,
		store:      deps.Store,
		signals:    deps.Signals,
		logger:     logger,
		runID:      uuid.New().String(),
		nb:         nb,
		roadmap:    roadmap.NewManager(nb, logger),
		controller: mode.NewController(cfg.Mode),
	}
}

// SetEventHandler registers a callback for streaming progress events.
func (o *Orchestrator) SetEventHandler(fn func(reason.Event)) {
	o.onEvent = fn
}

// RunID returns the identifier snapshots are stored under.
func (o *Orchestrator) RunID() string {
	return o.runID
}

// Notebook returns the session notebook for inspection after a run.
func (o *Orchestrator) Notebook() *notebook.Notebook {
	return o.nb
}

// Run executes the control loop for a new task until the engine
// produces a final answer, the iteration budget runs out, or a signal
// interrupts it.
func (o *Orchestrator) Run(ctx context.Context, task string) (*Result, error) {
	o.nb.RecordUserInput(task)
	o.logger.Info("run started",
		zap.String("run_id", o.runID),
		zap.String("mode", string(o.cfg.Mode)))
	return o.loop(ctx, task)
}

// Resume restores the latest snapshot for a run and continues its
// control loop from the recorded resume point. A snapshot written with
// an unreadable schema version surfaces as ErrIncompatibleVersion so
// the caller can fall back to a fresh run.
func (o *Orchestrator) Resume(ctx context.Context, runID string) (*Result, error) {
	st, meta, err := snapshot.RestoreLatest(o.store, runID)
	if err != nil {
		return nil, fmt.Errorf("restore run %s: %w", runID, err)
	}

	o.runID = runID
	o.nb = st.Notebook
	o.roadmap = roadmap.NewManager(o.nb, o.logger)
	o.controller = mode.Restore(st.Mode, st.PlanningEngaged)
	o.cfg.Mode = st.Mode
	if err := o.pool.Rebuild(st.Workers); err != nil {
		return nil, fmt.Errorf("rebuild worker pool: %w", err)
	}

	o.logger.Info("run resumed",
		zap.String("run_id", runID),
		zap.String("snapshot", meta.ID),
		zap.String("phase", string(meta.Phase)))

	var b strings.Builder
	b.WriteString("You are resuming an interrupted run. Current state follows.\n\n")
	b.WriteString(o.nb.ContextForReasoning())
	if id, ok := st.ResumePoint(); ok {
		fmt.Fprintf(&b, "\nContinue from subtask %d, the first unfinished entry.\n", id)
	} else if o.nb.Roadmap != nil {
		b.WriteString("\nAll subtasks are finished. Produce the final summary.\n")
	}
	return o.loop(ctx, b.String())
}

// loop drives exchanges with the engine. A toolset change (dynamic mode
// engaging planning) restarts the exchange with the notebook replayed.
func (o *Orchestrator) loop(ctx context.Context, prompt string) (*Result, error) {
	res := &Result{RunID: o.runID}

	for {
		o.reopen = false
		ex := o.engine.Open(o.systemPrompt(), o.toolset())

		out, err := ex.Prompt(ctx, prompt)
		for {
			if err != nil {
				return res, fmt.Errorf("reasoning step: %w", err)
			}
			res.Iterations++
			res.TokensIn += out.TokensIn
			res.TokensOut += out.TokensOut
			if out.Text != "" {
				o.emit(reason.Event{Type: "text", Content: out.Text})
			}
			o.capture(snapshot.PhasePostReasoning)

			if out.Done && len(out.Invocations) == 0 {
				res.Summary = out.Text
				o.emit(reason.Event{Type: "done", Content: out.Text})
				o.logger.Info("run finished",
					zap.String("run_id", o.runID),
					zap.Int("iterations", res.Iterations),
					zap.Int("tool_calls", res.ToolCalls))
				return res, nil
			}

			if interrupted, stopped := o.checkSignals(); interrupted {
				res.Stopped = stopped
				res.Paused = !stopped
				res.Summary = o.nb.Summary()
				return res, nil
			}

			if res.Iterations >= o.cfg.IterationBudget {
				res.Summary = o.nb.Summary()
				return res, fmt.Errorf("control loop: %w", reason.ErrBudgetExceeded)
			}

			results := make([]reason.ToolResult, 0, len(out.Invocations))
			for _, inv := range out.Invocations {
				res.ToolCalls++
				o.emit(reason.Event{Type: "tool_use", Tool: inv.Name})
				content, derr := o.dispatch(ctx, inv.Name, inv.Input)
				tr := reason.ToolResult{ID: inv.ID, Name: inv.Name, Content: content}
				if derr != nil {
					tr.Content = derr.Error()
					tr.IsError = true
					o.logger.Warn("operation failed",
						zap.String("operation", inv.Name),
						zap.Error(derr))
				}
				o.emit(reason.Event{Type: "tool_result", Tool: inv.Name, Content: tr.Content})
				results = append(results, tr)
			}
			o.capture(snapshot.PhasePostAction)

			if o.reopen {
				// Planning just engaged: restart the exchange with the
				// planning toolset and the notebook replayed.
				var b strings.Builder
				b.WriteString("Planning mode is engaged. Current state follows.\n\n")
				b.WriteString(o.nb.ContextForReasoning())
				b.WriteString("\nDecompose the task and work the roadmap to completion.\n")
				prompt = b.String()
				break
			}

			out, err = ex.Submit(ctx, results)
		}
	}
}

// checkSignals reports (interrupted, stopped). A pause leaves the run
// resumable from its last snapshot.
func (o *Orchestrator) checkSignals() (bool, bool) {
	if o.signals == nil {
		return false, false
	}
	if o.signals.ShouldStop() {
		o.logger.Info("stop signal received", zap.String("run_id", o.runID))
		return true, true
	}
	if o.signals.ShouldPause() {
		o.logger.Info("pause signal received", zap.String("run_id", o.runID))
		return true, false
	}
	return false, false
}

// toolset returns the capabilities exposed for the current mode state.
func (o *Orchestrator) toolset() []registry.Capability {
	switch {
	case o.cfg.Mode == mode.Disable:
		return nil
	case o.controller.OffersEntry():
		return []registry.Capability{enterPlanningCapability()}
	case o.controller.PlanningEngaged():
		return planningCapabilities()
	default:
		return nil
	}
}

func (o *Orchestrator) systemPrompt() string {
	var b strings.Builder
	b.WriteString("You orchestrate work on the user's task.\n")
	switch {
	case o.cfg.Mode == mode.Disable:
		b.WriteString("Handle the task directly in conversation; no orchestration tools are available.\n")
	case o.controller.PlanningEngaged():
		b.WriteString("Decompose the task into a roadmap, create workers with the capabilities each subtask needs, ")
		b.WriteString("dispatch subtasks in order, and revise the roadmap as results come in. ")
		b.WriteString("When every subtask is done, reply with a final summary of what was accomplished.\n")
	default:
		b.WriteString("For a simple task answer directly. For a complicated multi-step task, call ")
		b.WriteString(OpEnterPlanning)
		b.WriteString(" to get structured planning tools.\n")
	}
	if caps := o.registry.Describe(); len(caps) > 0 {
		b.WriteString("\nWorker capabilities available in the registry:\n")
		for _, line := range caps {
			b.WriteString("- " + line + "\n")
		}
	}
	return b.String()
}

// capture snapshots full state. Snapshot failures are logged, never
// allowed to kill a run mid-flight.
func (o *Orchestrator) capture(phase snapshot.Phase) {
	if o.store == nil {
		return
	}
	st := &snapshot.State{
		Notebook:        o.nb,
		Workers:         o.pool.ShowPool(),
		Mode:            o.controller.Mode(),
		PlanningEngaged: o.controller.PlanningEngaged(),
	}
	if _, err := snapshot.Capture(o.store, o.runID, phase, st); err != nil {
		o.logger.Warn("snapshot failed",
			zap.String("phase", string(phase)),
			zap.Error(err))
	}
}

func (o *Orchestrator) emit(event reason.Event) {
	if o.onEvent != nil {
		o.onEvent(event)
	}
}
