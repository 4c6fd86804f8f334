// Package roadmap owns task decomposition and the subtask status state
// machine. The Manager is the sole writer of roadmap state; consumers
// re-fetch via NextUnfinished and never cache positions across a revise.
package roadmap

import (
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/planweave/planweave/internal/notebook"
	"github.com/planweave/planweave/pkg/models"
)

// Common errors for roadmap operations.
var (
	// ErrValidation indicates a malformed specification or illegal transition.
	ErrValidation = errors.New("roadmap validation failed")
	// ErrNotFound indicates an unknown subtask identity index.
	ErrNotFound = errors.New("subtask not found")
)

// validTransitions defines the allowed subtask state transitions.
// Planned → Done is deliberately absent: a subtask must pass through
// dispatch before it can complete.
var validTransitions = map[models.SubtaskState]map[models.SubtaskState]bool{
	models.SubtaskPlanned: {
		models.SubtaskInProcess: true,
	},
	models.SubtaskInProcess: {
		models.SubtaskDone:    true,
		models.SubtaskPlanned: true,
	},
	models.SubtaskDone: {},
}

// CanTransition checks if a subtask state transition is valid.
func CanTransition(from, to models.SubtaskState) bool {
	targets, ok := validTransitions[from]
	if !ok {
		return false
	}
	return targets[to]
}

// Manager owns the roadmap inside a session notebook.
type Manager struct {
	notebook *notebook.Notebook
	logger   *zap.Logger
}

// NewManager creates a roadmap manager writing into the given notebook.
func NewManager(nb *notebook.Notebook, logger *zap.Logger) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{notebook: nb, logger: logger}
}

// Roadmap returns the current roadmap, nil before decomposition.
func (m *Manager) Roadmap() *models.Roadmap {
	return m.notebook.Roadmap
}

// Decompose creates a roadmap from an ordered list of subtask specs.
// All subtasks start planned with attempt 0; the given order is the
// dispatch order. The analysis is recorded in the notebook.
func (m *Manager) Decompose(originalTask, analysis string, specs []models.SubtaskSpec) (*models.Roadmap, error) {
	if len(specs) == 0 {
		return nil, fmt.Errorf("%w: decomposition produced no subtasks", ErrValidation)
	}
	for i, spec := range specs {
		if spec.Description == "" {
			return nil, fmt.Errorf("%w: subtask %d has no description", ErrValidation, i)
		}
	}

	r := &models.Roadmap{OriginalTask: originalTask}
	for _, spec := range specs {
		r.Subtasks = append(r.Subtasks, &models.Subtask{
			ID:    r.NextID,
			Spec:  spec,
			State: models.SubtaskPlanned,
		})
		r.NextID++
	}

	m.notebook.RecordAnalysis(analysis)
	m.notebook.SetRoadmap(r)
	m.logger.Info("roadmap created",
		zap.String("task", originalTask),
		zap.Int("subtasks", len(specs)))
	return r, nil
}

// NextUnfinished scans subtasks in dispatch order and returns the first
// planned or in-process one. The second return is false when every
// subtask is done; the orchestrator reads that as completion, not error.
func (m *Manager) NextUnfinished() (*models.Subtask, bool) {
	r := m.notebook.Roadmap
	if r == nil {
		return nil, false
	}
	for _, st := range r.Subtasks {
		if !st.State.Finished() {
			return st, true
		}
	}
	return nil, false
}

// Get returns the subtask with the given identity index.
func (m *Manager) Get(id int) (*models.Subtask, error) {
	r := m.notebook.Roadmap
	if r == nil {
		return nil, fmt.Errorf("%w: no roadmap exists", ErrNotFound)
	}
	for _, st := range r.Subtasks {
		if st.ID == id {
			return st, nil
		}
	}
	return nil, fmt.Errorf("%w: id %d", ErrNotFound, id)
}

// Add inserts a new subtask at the given dispatch position. Positions of
// later subtasks shift; identity indices do not. Position is clamped to
// the valid range.
func (m *Manager) Add(position int, spec models.SubtaskSpec) (*models.Subtask, error) {
	if spec.Description == "" {
		return nil, fmt.Errorf("%w: subtask has no description", ErrValidation)
	}
	r := m.notebook.Roadmap
	if r == nil {
		return nil, fmt.Errorf("%w: no roadmap exists", ErrNotFound)
	}

	st := &models.Subtask{
		ID:    r.NextID,
		Spec:  spec,
		State: models.SubtaskPlanned,
	}
	r.NextID++

	if position < 0 {
		position = 0
	}
	if position > len(r.Subtasks) {
		position = len(r.Subtasks)
	}
	r.Subtasks = append(r.Subtasks, nil)
	copy(r.Subtasks[position+1:], r.Subtasks[position:])
	r.Subtasks[position] = st

	m.logger.Info("subtask added",
		zap.Int("id", st.ID),
		zap.Int("position", position),
		zap.String("description", spec.Description))
	return st, nil
}

// ReviseSubtask appends an update to the subtask with the given identity
// index and optionally changes its state. An empty newState records a
// note without a transition. Every Done transition carries the update in
// the same call, so no subtask can reach Done without an audit entry.
// InProcess → Planned increments the attempt counter.
func (m *Manager) ReviseSubtask(id int, note string, newState models.SubtaskState) (*models.Subtask, error) {
	st, err := m.Get(id)
	if err != nil {
		return nil, err
	}

	update := models.Update{
		Timestamp: time.Now(),
		Note:      note,
	}

	if newState != "" {
		if !newState.Valid() {
			return nil, fmt.Errorf("%w: unknown state %q", ErrValidation, newState)
		}
		if !CanTransition(st.State, newState) {
			return nil, fmt.Errorf("%w: cannot transition from %s to %s", ErrValidation, st.State, newState)
		}
		if st.State == models.SubtaskInProcess && newState == models.SubtaskPlanned {
			st.Attempt++
		}
		update.StatusChange = newState
		st.State = newState
	}

	st.Updates = append(st.Updates, update)
	m.logger.Info("subtask revised",
		zap.Int("id", st.ID),
		zap.String("state", string(st.State)),
		zap.Int("attempt", st.Attempt),
		zap.String("note", note))
	return st, nil
}

// AssignWorker records that a worker executed the subtask.
func (m *Manager) AssignWorker(id int, workerName string) error {
	st, err := m.Get(id)
	if err != nil {
		return err
	}
	st.AssignedWorkers = append(st.AssignedWorkers, workerName)
	return nil
}

// Remove deletes the subtask with the given identity index. The index is
// retired and never reassigned.
func (m *Manager) Remove(id int) error {
	r := m.notebook.Roadmap
	if r == nil {
		return fmt.Errorf("%w: no roadmap exists", ErrNotFound)
	}
	for i, st := range r.Subtasks {
		if st.ID == id {
			r.Subtasks = append(r.Subtasks[:i], r.Subtasks[i+1:]...)
			m.logger.Info("subtask removed", zap.Int("id", id))
			return nil
		}
	}
	return fmt.Errorf("%w: id %d", ErrNotFound, id)
}
