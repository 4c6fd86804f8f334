package snapshot

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/planweave/planweave/internal/mode"
	"github.com/planweave/planweave/internal/notebook"
	"github.com/planweave/planweave/pkg/models"
)

// SchemaVersion is the current snapshot payload version. Restore refuses
// payloads written with a different version.
const SchemaVersion = 1

// ErrIncompatibleVersion indicates a snapshot was written with a schema
// version this build cannot read.
var ErrIncompatibleVersion = errors.New("incompatible snapshot version")

// Phase marks where in the control loop a snapshot was taken.
type Phase string

const (
	// PhasePostReasoning is taken after a reasoning step, before any
	// tool execution it requested.
	PhasePostReasoning Phase = "post_reasoning"
	// PhasePostAction is taken after a tool execution completed.
	PhasePostAction Phase = "post_action"
)

// State is the full restorable orchestration state.
type State struct {
	Notebook        *notebook.Notebook  `json:"notebook"`
	Workers         []models.WorkerInfo `json:"workers"`
	Mode            mode.Mode           `json:"mode"`
	PlanningEngaged bool                `json:"planning_engaged"`
}

// ResumePoint returns the ID of the first unfinished subtask in roadmap
// order, or false when there is no roadmap or everything is finished.
func (st *State) ResumePoint() (int, bool) {
	if st.Notebook == nil || st.Notebook.Roadmap == nil {
		return 0, false
	}
	for _, sub := range st.Notebook.Roadmap.Subtasks {
		if !sub.State.Finished() {
			return sub.ID, true
		}
	}
	return 0, false
}

// envelope is the serialized snapshot payload. The schema version rides
// inside the payload as well as in the store row so a payload copied
// between stores stays self-describing.
type envelope struct {
	SchemaVersion int    `json:"schema_version"`
	RunID         string `json:"run_id"`
	Phase         Phase  `json:"phase"`
	CapturedAt    string `json:"captured_at"`
	State         *State `json:"state"`
}

// Capture serializes the given state and stores it as an immutable
// snapshot for the run. Returns the snapshot id.
func Capture(store *Store, runID string, phase Phase, st *State) (string, error) {
	now := time.Now()
	env := envelope{
		SchemaVersion: SchemaVersion,
		RunID:         runID,
		Phase:         phase,
		CapturedAt:    now.UTC().Format(time.RFC3339Nano),
		State:         st,
	}

	payload, err := json.Marshal(env)
	if err != nil {
		return "", fmt.Errorf("serialize snapshot: %w", err)
	}

	id := uuid.New().String()
	meta := Meta{
		ID:            id,
		RunID:         runID,
		Phase:         phase,
		CreatedAt:     now,
		SchemaVersion: SchemaVersion,
	}
	if err := store.Put(meta, payload); err != nil {
		return "", err
	}
	return id, nil
}

// Restore loads the snapshot with the given id and deserializes its
// state. Payloads written with a different schema version are rejected
// with ErrIncompatibleVersion before any state is touched.
func Restore(store *Store, id string) (*State, Meta, error) {
	meta, payload, err := store.Get(id)
	if err != nil {
		return nil, Meta{}, err
	}
	st, err := decode(payload)
	if err != nil {
		return nil, Meta{}, err
	}
	return st, meta, nil
}

// RestoreLatest restores the most recent snapshot for a run.
func RestoreLatest(store *Store, runID string) (*State, Meta, error) {
	meta, err := store.Latest(runID)
	if err != nil {
		return nil, Meta{}, err
	}
	return Restore(store, meta.ID)
}

func decode(payload []byte) (*State, error) {
	// Probe the version before decoding the rest so a format change in
	// State cannot mask the version mismatch with a confusing error.
	var probe struct {
		SchemaVersion int `json:"schema_version"`
	}
	if err := json.Unmarshal(payload, &probe); err != nil {
		return nil, fmt.Errorf("parse snapshot payload: %w", err)
	}
	if probe.SchemaVersion != SchemaVersion {
		return nil, fmt.Errorf("%w: snapshot is v%d, this build reads v%d",
			ErrIncompatibleVersion, probe.SchemaVersion, SchemaVersion)
	}

	var env envelope
	if err := json.Unmarshal(payload, &env); err != nil {
		return nil, fmt.Errorf("parse snapshot payload: %w", err)
	}
	if env.State == nil {
		return nil, fmt.Errorf("parse snapshot payload: missing state")
	}
	return env.State, nil
}
