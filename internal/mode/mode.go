// Package mode decides whether planning tools are exposed to the
// reasoning engine: never, always, or at the engine's own judgment.
package mode

import (
	"fmt"

	"github.com/planweave/planweave/internal/roadmap"
)

// ErrPlanningDisabled indicates a planning operation was invoked while the
// session does not expose planning. It is a validation-class error.
var ErrPlanningDisabled = fmt.Errorf("%w: planning disabled", roadmap.ErrValidation)

// Mode is the session-wide planner setting, fixed for the session's lifetime.
type Mode string

const (
	// Disable never exposes planning operations; the reasoning engine only
	// sees the raw capability registry.
	Disable Mode = "disable"
	// Dynamic offers the engine one extra capability, enter_planning_mode,
	// and leaves the decision to its own judgment.
	Dynamic Mode = "dynamic"
	// Enforced exposes planning operations unconditionally and requires
	// decomposition before any other dispatch.
	Enforced Mode = "enforced"
)

// Parse validates a mode string.
func Parse(s string) (Mode, error) {
	switch Mode(s) {
	case Disable, Dynamic, Enforced:
		return Mode(s), nil
	default:
		return "", fmt.Errorf("%w: unknown planner mode %q", roadmap.ErrValidation, s)
	}
}

// Controller tracks whether planning is engaged for a session. The mode
// itself never changes; only the dynamic mode's engagement flag does.
type Controller struct {
	mode      Mode
	inPlanner bool
}

// NewController creates a controller for the given mode. Enforced
// sessions start with planning engaged.
func NewController(m Mode) *Controller {
	return &Controller{
		mode:      m,
		inPlanner: m == Enforced,
	}
}

// Mode returns the session's planner mode.
func (c *Controller) Mode() Mode {
	return c.mode
}

// PlanningEngaged reports whether planning operations are currently
// exposed to the reasoning engine.
func (c *Controller) PlanningEngaged() bool {
	return c.inPlanner
}

// OffersEntry reports whether the enter_planning_mode capability should
// be offered to the engine.
func (c *Controller) OffersEntry() bool {
	return c.mode == Dynamic && !c.inPlanner
}

// EnterPlanning engages planning for a dynamic session. Disable sessions
// can never engage; enforced sessions already have.
func (c *Controller) EnterPlanning() error {
	switch c.mode {
	case Disable:
		return ErrPlanningDisabled
	case Enforced:
		return nil
	}
	c.inPlanner = true
	return nil
}

// Allow checks that a planning operation may run right now.
func (c *Controller) Allow(operation string) error {
	if c.mode == Disable {
		return fmt.Errorf("%w: %s", ErrPlanningDisabled, operation)
	}
	if !c.inPlanner {
		return fmt.Errorf("%w: %s requires entering planning mode first", ErrPlanningDisabled, operation)
	}
	return nil
}

// Restore rebuilds a controller from snapshot state.
func Restore(m Mode, engaged bool) *Controller {
	c := NewController(m)
	if m == Dynamic {
		c.inPlanner = engaged
	}
	return c
}
