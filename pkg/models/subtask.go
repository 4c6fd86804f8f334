package models

import "time"

// SubtaskState represents the current state of a subtask in the roadmap.
type SubtaskState string

const (
	// SubtaskPlanned indicates the subtask has not been dispatched yet.
	SubtaskPlanned SubtaskState = "planned"
	// SubtaskInProcess indicates a worker is (or was last) working on it.
	SubtaskInProcess SubtaskState = "in_process"
	// SubtaskDone indicates the subtask completed successfully.
	SubtaskDone SubtaskState = "done"
)

// Valid returns true if the state is a known value.
func (s SubtaskState) Valid() bool {
	switch s {
	case SubtaskPlanned, SubtaskInProcess, SubtaskDone:
		return true
	default:
		return false
	}
}

// Finished returns true for states that need no further dispatch.
func (s SubtaskState) Finished() bool {
	return s == SubtaskDone
}

// SubtaskSpec describes one unit of work produced by task decomposition.
// A spec is immutable once created; changes go through an explicit revise.
type SubtaskSpec struct {
	// Description is the short statement of what the subtask does.
	Description string `json:"description"`
	// InputSummary summarizes the inputs the subtask consumes.
	InputSummary string `json:"input_summary,omitempty"`
	// ExactInput carries verbatim input the worker should receive.
	ExactInput string `json:"exact_input,omitempty"`
	// ExpectedOutput describes what a completed subtask produces.
	ExpectedOutput string `json:"expected_output,omitempty"`
	// ToolNeeds lists capability names the subtask is expected to use.
	ToolNeeds []string `json:"tool_needs,omitempty"`
}

// Update is one append-only entry in a subtask's audit trail.
// Updates are never edited or deleted.
type Update struct {
	// Timestamp is when the update was recorded.
	Timestamp time.Time `json:"timestamp"`
	// Note is the human-readable record of what happened.
	Note string `json:"note"`
	// StatusChange is the state the subtask moved to, if any.
	StatusChange SubtaskState `json:"status_change,omitempty"`
}

// Subtask wraps a spec with its lifecycle state and audit history.
type Subtask struct {
	// ID is the stable identity index assigned at creation.
	// IDs are never reused, even after removal.
	ID int `json:"id"`
	// Spec is the immutable specification for this subtask.
	Spec SubtaskSpec `json:"spec"`
	// State is the current lifecycle state.
	State SubtaskState `json:"state"`
	// Attempt counts how many times the subtask was sent back to planned.
	Attempt int `json:"attempt"`
	// Updates is the append-only audit trail.
	Updates []Update `json:"updates,omitempty"`
	// AssignedWorkers lists worker names that executed this subtask, in order.
	AssignedWorkers []string `json:"assigned_workers,omitempty"`
}

// Roadmap is the ordered collection of subtasks tracking a decomposed goal.
// Slice order is dispatch order.
type Roadmap struct {
	// OriginalTask is the goal as given by the user, immutable once set.
	OriginalTask string `json:"original_task"`
	// Subtasks holds the decomposed work in dispatch order.
	Subtasks []*Subtask `json:"subtasks"`
	// NextID is the next identity index to assign.
	NextID int `json:"next_id"`
}
