package orchestrator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/planweave/planweave/internal/reason"
	"github.com/planweave/planweave/internal/snapshot"
	"github.com/planweave/planweave/pkg/models"
)

// dispatch routes one engine tool invocation to the owning manager.
// Errors become error tool results; the engine sees them and adjusts.
func (o *Orchestrator) dispatch(ctx context.Context, name string, input json.RawMessage) (string, error) {
	if name == OpEnterPlanning {
		if err := o.controller.EnterPlanning(); err != nil {
			return "", err
		}
		var args struct {
			WorkingDir string `json:"working_dir"`
		}
		if len(input) > 0 {
			_ = json.Unmarshal(input, &args)
		}
		if args.WorkingDir == "" {
			args.WorkingDir = "."
		}
		o.nb.TaskDir = args.WorkingDir
		o.reopen = true
		o.logger.Info("planning engaged",
			zap.String("run_id", o.runID),
			zap.String("task_dir", args.WorkingDir))
		return "planning mode engaged", nil
	}

	if err := o.controller.Allow(name); err != nil {
		return "", err
	}

	switch name {
	case OpDecompose:
		return o.decompose(input)
	case OpNextUnfinished:
		return o.nextUnfinished()
	case OpReviseRoadmap:
		return o.reviseRoadmap(input)
	case OpCreateWorker:
		return o.createWorker(input)
	case OpExecuteWorker:
		return o.executeWorker(ctx, input)
	case OpShowWorkerPool:
		return o.showPool()
	default:
		return "", fmt.Errorf("unknown operation %q", name)
	}
}

func (o *Orchestrator) decompose(input json.RawMessage) (string, error) {
	var args struct {
		Analysis string               `json:"analysis"`
		Subtasks []models.SubtaskSpec `json:"subtasks"`
	}
	if err := json.Unmarshal(input, &args); err != nil {
		return "", fmt.Errorf("parse decompose input: %w", err)
	}

	task := ""
	if n := len(o.nb.UserInput); n > 0 {
		task = o.nb.UserInput[n-1]
	}
	rm, err := o.roadmap.Decompose(task, args.Analysis, args.Subtasks)
	if err != nil {
		return "", err
	}
	return renderJSON(rm)
}

func (o *Orchestrator) nextUnfinished() (string, error) {
	sub, ok := o.roadmap.NextUnfinished()
	if !ok {
		return "all subtasks are finished", nil
	}
	return renderJSON(sub)
}

func (o *Orchestrator) reviseRoadmap(input json.RawMessage) (string, error) {
	var args struct {
		Action    string              `json:"action"`
		SubtaskID int                 `json:"subtask_id"`
		Note      string              `json:"note"`
		NewState  string              `json:"new_state"`
		Position  int                 `json:"position"`
		Subtask   *models.SubtaskSpec `json:"subtask"`
	}
	if err := json.Unmarshal(input, &args); err != nil {
		return "", fmt.Errorf("parse revise input: %w", err)
	}

	switch args.Action {
	case "update":
		sub, err := o.roadmap.ReviseSubtask(args.SubtaskID, args.Note, models.SubtaskState(args.NewState))
		if err != nil {
			return "", err
		}
		return renderJSON(sub)
	case "add":
		if args.Subtask == nil {
			return "", fmt.Errorf("add requires a subtask specification")
		}
		sub, err := o.roadmap.Add(args.Position, *args.Subtask)
		if err != nil {
			return "", err
		}
		return renderJSON(sub)
	case "remove":
		if err := o.roadmap.Remove(args.SubtaskID); err != nil {
			return "", err
		}
		return fmt.Sprintf("subtask %d removed", args.SubtaskID), nil
	default:
		return "", fmt.Errorf("unknown revise action %q", args.Action)
	}
}

func (o *Orchestrator) createWorker(input json.RawMessage) (string, error) {
	var args struct {
		Name         string   `json:"name"`
		Capabilities []string `json:"capabilities"`
		SystemPrompt string   `json:"system_prompt"`
		Description  string   `json:"description"`
		Overwrite    bool     `json:"overwrite"`
	}
	if err := json.Unmarshal(input, &args); err != nil {
		return "", fmt.Errorf("parse create_worker input: %w", err)
	}

	info := models.WorkerInfo{
		Name:         args.Name,
		Capabilities: args.Capabilities,
		SystemPrompt: args.SystemPrompt,
		Description:  args.Description,
		Origin:       models.OriginDynamic,
	}
	if err := o.pool.CreateWorker(info, args.Overwrite); err != nil {
		return "", err
	}
	return fmt.Sprintf("worker %q created with capabilities: %s",
		args.Name, strings.Join(args.Capabilities, ", ")), nil
}

func (o *Orchestrator) showPool() (string, error) {
	infos := o.pool.ShowPool()
	if len(infos) == 0 {
		return "the worker pool is empty", nil
	}
	return renderJSON(infos)
}

// executeWorker dispatches a subtask, applying the retry policy when
// the worker exhausts its iteration budget. Every retry and outcome is
// recorded on the subtask as an update.
func (o *Orchestrator) executeWorker(ctx context.Context, input json.RawMessage) (string, error) {
	var args struct {
		SubtaskID   int    `json:"subtask_id"`
		Worker      string `json:"worker"`
		Instruction string `json:"instruction"`
	}
	if err := json.Unmarshal(input, &args); err != nil {
		return "", fmt.Errorf("parse execute_worker input: %w", err)
	}

	sub, err := o.roadmap.Get(args.SubtaskID)
	if err != nil {
		return "", err
	}
	if sub.State == models.SubtaskDone {
		return "", fmt.Errorf("subtask %d is already done", sub.ID)
	}
	if sub.State == models.SubtaskPlanned {
		if _, err := o.roadmap.ReviseSubtask(sub.ID,
			"dispatched to worker "+args.Worker, models.SubtaskInProcess); err != nil {
			return "", err
		}
	}

	workerName := args.Worker
	for attempt := 1; ; attempt++ {
		if err := o.roadmap.AssignWorker(sub.ID, workerName); err != nil {
			return "", err
		}

		resp, err := o.pool.Execute(ctx, sub, workerName, args.Instruction)
		if errors.Is(err, reason.ErrBudgetExceeded) {
			note := fmt.Sprintf("worker %s exhausted its iteration budget (attempt %d of %d)",
				workerName, attempt, o.cfg.MaxAttempts)
			o.roadmap.ReviseSubtask(sub.ID, note, "")
			o.capture(snapshot.PhasePostAction)

			if attempt >= o.cfg.MaxAttempts {
				if _, rerr := o.roadmap.ReviseSubtask(sub.ID,
					"attempts exhausted, returned to planned for replanning", models.SubtaskPlanned); rerr != nil {
					return "", rerr
				}
				return fmt.Sprintf("subtask %d failed %d attempts and was returned to planned; revise the roadmap before dispatching it again",
					sub.ID, attempt), nil
			}
			workerName = o.retryWorker(workerName)
			continue
		}
		if err != nil {
			o.roadmap.ReviseSubtask(sub.ID, "worker error: "+err.Error(), "")
			return "", err
		}

		o.nb.MergeGeneratedFiles(resp.GeneratedFiles)
		if len(resp.DroppedFiles) > 0 {
			o.roadmap.ReviseSubtask(sub.ID,
				"dropped unverified files: "+strings.Join(resp.DroppedFiles, ", "), "")
		}

		if resp.TaskDone {
			note := resp.ProgressSummary
			if note == "" {
				note = "worker " + workerName + " reported completion"
			}
			if _, err := o.roadmap.ReviseSubtask(sub.ID, note, models.SubtaskDone); err != nil {
				return "", err
			}
		} else {
			note := "progress: " + resp.ProgressSummary
			if resp.NextStep != "" {
				note += "; next: " + resp.NextStep
			}
			o.roadmap.ReviseSubtask(sub.ID, note, "")
		}
		return renderJSON(resp)
	}
}

// retryWorker picks the worker for the next attempt. The replace policy
// walks the pool in creation order, cycling past the failed worker.
func (o *Orchestrator) retryWorker(failed string) string {
	if o.cfg.RetryPolicy != RetryReplace {
		return failed
	}
	infos := o.pool.ShowPool()
	if len(infos) < 2 {
		return failed
	}
	for i, info := range infos {
		if info.Name == failed {
			return infos[(i+1)%len(infos)].Name
		}
	}
	return infos[0].Name
}

func renderJSON(v any) (string, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return "", fmt.Errorf("render result: %w", err)
	}
	return string(data), nil
}
