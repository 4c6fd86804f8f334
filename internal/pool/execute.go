package pool

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/planweave/planweave/internal/reason"
	"github.com/planweave/planweave/pkg/models"
)

// responseContract tells the worker how to report completion. The final
// message must be a JSON object in this shape.
const responseContract = `
## Response Contract
When you have finished working, reply with a single JSON object:
{
  "progress_summary": "<what you accomplished>",
  "next_step": "<suggested follow-up, or empty string if none>",
  "generated_files": {"<path>": "<short description>"},
  "task_done": true or false
}
Set task_done to true only when the subtask's expected output exists.`

// Execute runs the named worker against a subtask with the given
// instruction. The worker's exchange is seeded with the instruction plus
// the subtask's history, then driven through the tool loop up to the
// iteration budget.
//
// A payload that does not match the expected shape yields ErrParse; a
// budget breach yields a synthetic not-done response together with
// reason.ErrBudgetExceeded. In both cases the caller records the failure
// as an update and leaves the subtask state untouched.
func (m *Manager) Execute(ctx context.Context, subtask *models.Subtask, workerName, instruction string) (*models.WorkerResponse, error) {
	w, ok := m.workers[workerName]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrWorkerNotFound, workerName)
	}

	system := w.info.SystemPrompt + responseContract
	prompt := composePrompt(subtask, instruction)

	loop := reason.NewLoop(m.engine, m.runner, m.budget, m.logger)
	result, err := loop.Run(ctx, system, prompt, w.caps)
	if err != nil {
		if errors.Is(err, reason.ErrBudgetExceeded) {
			m.logger.Warn("worker ran out of budget",
				zap.String("worker", workerName),
				zap.Int("subtask", subtask.ID),
				zap.Int("iterations", result.Iterations))
			synthetic := &models.WorkerResponse{
				ProgressSummary: result.Output,
				NextStep:        fmt.Sprintf("iteration budget (%d) exceeded; retry or replan", m.budget),
				TaskDone:        false,
			}
			return synthetic, err
		}
		return nil, err
	}

	resp, err := ParseWorkerResponse(result.Output)
	if err != nil {
		return nil, err
	}

	m.verifyGeneratedFiles(resp, workerName)

	m.logger.Info("worker finished",
		zap.String("worker", workerName),
		zap.Int("subtask", subtask.ID),
		zap.Bool("task_done", resp.TaskDone),
		zap.Int("iterations", result.Iterations),
		zap.Int("tool_calls", result.ToolCalls))
	return resp, nil
}

// verifyGeneratedFiles drops files the worker claims but that do not
// exist, so the notebook's artifact map never references phantoms. The
// dropped paths are recorded on the response for the caller's audit trail.
func (m *Manager) verifyGeneratedFiles(resp *models.WorkerResponse, workerName string) {
	if m.checkFile == nil {
		return
	}
	for path := range resp.GeneratedFiles {
		if !m.checkFile(path) {
			m.logger.Warn("worker claimed a file that does not exist",
				zap.String("worker", workerName),
				zap.String("path", path))
			delete(resp.GeneratedFiles, path)
			resp.DroppedFiles = append(resp.DroppedFiles, path)
		}
	}
	sort.Strings(resp.DroppedFiles)
}

// composePrompt builds the task-scoped context: the instruction plus the
// subtask's specification and update history.
func composePrompt(subtask *models.Subtask, instruction string) string {
	var b strings.Builder
	b.WriteString(instruction)

	fmt.Fprintf(&b, "\n\n## Subtask %d: %s\n", subtask.ID, subtask.Spec.Description)
	if subtask.Spec.ExactInput != "" {
		fmt.Fprintf(&b, "Input: %s\n", subtask.Spec.ExactInput)
	} else if subtask.Spec.InputSummary != "" {
		fmt.Fprintf(&b, "Input: %s\n", subtask.Spec.InputSummary)
	}
	if subtask.Spec.ExpectedOutput != "" {
		fmt.Fprintf(&b, "Expected output: %s\n", subtask.Spec.ExpectedOutput)
	}
	if subtask.Attempt > 0 {
		fmt.Fprintf(&b, "This is attempt %d.\n", subtask.Attempt+1)
	}

	if len(subtask.Updates) > 0 {
		b.WriteString("\n## History\n")
		for _, u := range subtask.Updates {
			fmt.Fprintf(&b, "- [%s] %s\n", u.Timestamp.Format("15:04:05"), u.Note)
		}
	}
	return b.String()
}

// ParseWorkerResponse extracts the structured completion payload from the
// worker's final text. The payload must be a JSON object containing a
// task_done field; anything else is ErrParse.
func ParseWorkerResponse(output string) (*models.WorkerResponse, error) {
	jsonStart := strings.Index(output, "{")
	jsonEnd := strings.LastIndex(output, "}")
	if jsonStart == -1 || jsonEnd == -1 || jsonEnd <= jsonStart {
		return nil, fmt.Errorf("%w: no JSON object found in %d chars of output", ErrParse, len(output))
	}
	jsonStr := output[jsonStart : jsonEnd+1]

	var probe map[string]json.RawMessage
	if err := json.Unmarshal([]byte(jsonStr), &probe); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrParse, err)
	}
	if _, ok := probe["task_done"]; !ok {
		return nil, fmt.Errorf("%w: payload missing task_done", ErrParse)
	}

	var resp models.WorkerResponse
	if err := json.Unmarshal([]byte(jsonStr), &resp); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrParse, err)
	}
	return &resp, nil
}
