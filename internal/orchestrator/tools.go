package orchestrator

import (
	"github.com/planweave/planweave/internal/registry"
)

// Planning operation names. These are the capabilities the control loop
// exposes to the reasoning engine on top of the worker pool.
const (
	OpEnterPlanning  = "enter_planning_mode"
	OpDecompose      = "decompose_task"
	OpNextUnfinished = "get_next_unfinished_subtask"
	OpReviseRoadmap  = "revise_roadmap"
	OpCreateWorker   = "create_worker"
	OpExecuteWorker  = "execute_worker"
	OpShowWorkerPool = "show_worker_pool"
)

// subtaskSpecSchema describes one subtask specification in tool input.
var subtaskSpecSchema = map[string]any{
	"type": "object",
	"properties": map[string]any{
		"description": map[string]any{
			"type":        "string",
			"description": "What the subtask accomplishes",
		},
		"input_summary": map[string]any{
			"type":        "string",
			"description": "Summary of the inputs the subtask needs",
		},
		"exact_input": map[string]any{
			"type":        "string",
			"description": "Verbatim input text the worker must receive",
		},
		"expected_output": map[string]any{
			"type":        "string",
			"description": "What a finished subtask produces",
		},
		"tool_needs": map[string]any{
			"type":        "array",
			"items":       map[string]any{"type": "string"},
			"description": "Capability names the subtask likely requires",
		},
	},
	"required": []string{"description"},
}

// enterPlanningCapability is offered only in dynamic mode, and only
// until planning is engaged.
func enterPlanningCapability() registry.Capability {
	return registry.Capability{
		Name: OpEnterPlanning,
		Description: "Switch into structured planning for a complicated task. " +
			"After this call the roadmap and worker pool operations become available.",
		Properties: map[string]any{
			"working_dir": map[string]any{
				"type":        "string",
				"description": "Directory the task's artifacts should live under; defaults to the current directory",
			},
		},
	}
}

// planningCapabilities returns the full planning toolset.
func planningCapabilities() []registry.Capability {
	return []registry.Capability{
		{
			Name: OpDecompose,
			Description: "Break the original task into an ordered roadmap of subtasks. " +
				"Replaces any existing roadmap.",
			Properties: map[string]any{
				"analysis": map[string]any{
					"type":        "string",
					"description": "Your analysis of the task and how it splits",
				},
				"subtasks": map[string]any{
					"type":        "array",
					"items":       subtaskSpecSchema,
					"description": "Ordered subtask specifications",
				},
			},
			Required: []string{"analysis", "subtasks"},
		},
		{
			Name:        OpNextUnfinished,
			Description: "Return the first subtask in roadmap order that is not done, or report that everything is finished.",
			Properties:  map[string]any{},
		},
		{
			Name: OpReviseRoadmap,
			Description: "Revise the roadmap: record a note or state change on a subtask, " +
				"insert a new subtask at a position, or remove one.",
			Properties: map[string]any{
				"action": map[string]any{
					"type":        "string",
					"enum":        []string{"update", "add", "remove"},
					"description": "What kind of revision to make",
				},
				"subtask_id": map[string]any{
					"type":        "integer",
					"description": "Identity of the subtask to update or remove",
				},
				"note": map[string]any{
					"type":        "string",
					"description": "Audit note recorded with an update",
				},
				"new_state": map[string]any{
					"type":        "string",
					"enum":        []string{"planned", "in_process", "done"},
					"description": "Target state for an update; omit to record a note only",
				},
				"position": map[string]any{
					"type":        "integer",
					"description": "Roadmap position for an added subtask",
				},
				"subtask": subtaskSpecSchema,
			},
			Required: []string{"action"},
		},
		{
			Name: OpCreateWorker,
			Description: "Create a worker with a name, a system prompt, and a subset of the capability registry. " +
				"Set overwrite to replace an existing worker of the same name.",
			Properties: map[string]any{
				"name": map[string]any{
					"type":        "string",
					"description": "Unique worker name",
				},
				"capabilities": map[string]any{
					"type":        "array",
					"items":       map[string]any{"type": "string"},
					"description": "Capability names from the registry",
				},
				"system_prompt": map[string]any{
					"type":        "string",
					"description": "System prompt defining the worker's role",
				},
				"description": map[string]any{
					"type":        "string",
					"description": "Short description of what the worker is for",
				},
				"overwrite": map[string]any{
					"type":        "boolean",
					"description": "Replace an existing worker with the same name",
				},
			},
			Required: []string{"name", "capabilities", "system_prompt"},
		},
		{
			Name: OpExecuteWorker,
			Description: "Dispatch a subtask to a named worker and wait for its structured response. " +
				"Marks the subtask in_process, and done when the worker reports completion.",
			Properties: map[string]any{
				"subtask_id": map[string]any{
					"type":        "integer",
					"description": "Identity of the subtask to execute",
				},
				"worker": map[string]any{
					"type":        "string",
					"description": "Name of the worker to dispatch to",
				},
				"instruction": map[string]any{
					"type":        "string",
					"description": "Extra instruction for the worker beyond the subtask spec",
				},
			},
			Required: []string{"subtask_id", "worker"},
		},
		{
			Name:        OpShowWorkerPool,
			Description: "List the workers currently in the pool with their capabilities.",
			Properties:  map[string]any{},
		},
	}
}
