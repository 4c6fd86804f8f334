package models

// WorkerOrigin records how a worker came to exist in the pool.
type WorkerOrigin string

const (
	// OriginBuiltin marks workers registered from the profile manifest at startup.
	OriginBuiltin WorkerOrigin = "builtin"
	// OriginDynamic marks workers created at runtime by the planner.
	OriginDynamic WorkerOrigin = "dynamic"
)

// WorkerInfo is the durable record of a worker executor.
// The executor itself is rebuilt from this record and the capability
// registry after a restore.
type WorkerInfo struct {
	// Name is unique within a pool.
	Name string `json:"name"`
	// Capabilities is the subset of registry tool names the worker may invoke.
	Capabilities []string `json:"capabilities"`
	// SystemPrompt seeds the worker's reasoning engine.
	SystemPrompt string `json:"system_prompt"`
	// Description summarizes what the worker is good at.
	Description string `json:"description,omitempty"`
	// Origin is builtin or dynamic.
	Origin WorkerOrigin `json:"origin"`
}

// WorkerResponse is the structured payload a worker returns after
// executing a subtask.
type WorkerResponse struct {
	// ProgressSummary describes what the worker accomplished.
	ProgressSummary string `json:"progress_summary"`
	// NextStep is the suggested follow-up, empty if none.
	NextStep string `json:"next_step,omitempty"`
	// GeneratedFiles maps produced file paths to short descriptions.
	GeneratedFiles map[string]string `json:"generated_files,omitempty"`
	// TaskDone reports whether the subtask is complete.
	TaskDone bool `json:"task_done"`
	// DroppedFiles lists reported files that failed the existence check.
	// Filled in during verification; never part of the worker's payload.
	DroppedFiles []string `json:"-"`
}
