package engine

import (
	"encoding/json"
	"sort"
	"time"

	"github.com/giantswarm/fedctl/internal/workflow"
)

// StepView is one entry of WorkflowView.Steps (spec §6 "WorkflowView").
type StepView struct {
	StepID      string     `json:"step_id"`
	Name        string     `json:"name"`
	Status      string     `json:"status"`
	Attempts    int        `json:"attempts"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	Error       string     `json:"error,omitempty"`
}

// WorkflowView is the read-only snapshot returned by status() and
// rendered by the Gateway's GET /v1/workflows/{id} (spec §6).
type WorkflowView struct {
	WorkflowID string                 `json:"workflow_id"`
	Status     string                 `json:"status"`
	Progress   int                    `json:"progress"`
	CurrentStep string                `json:"current_step,omitempty"`
	Steps      []StepView             `json:"steps"`
	Results    map[string]interface{} `json:"results,omitempty"`
	Error      string                 `json:"error,omitempty"`
	Version    int64                  `json:"version"`
}

// newWorkflowView projects a durable Workflow into its wire view.
func newWorkflowView(wf *workflow.Workflow) WorkflowView {
	view := WorkflowView{
		WorkflowID: wf.ID.String(),
		Status:     string(wf.Status),
		Progress:   wf.Progress(),
		Version:    wf.Version,
	}
	if wf.Error != nil {
		view.Error = wf.Error.Message
		if wf.Error.Kind != "" {
			view.Error = string(wf.Error.Kind) + ": " + wf.Error.Message
		}
	}

	ids := make([]string, 0, len(wf.Steps))
	for id := range wf.Steps {
		ids = append(ids, id)
	}
	depths := wf.Plan.Depths()
	sort.Slice(ids, func(i, j int) bool { return less(ids[i], ids[j], depths) })

	results := make(map[string]interface{})
	for _, id := range ids {
		rec := wf.Steps[id]
		sv := StepView{
			StepID:   id,
			Name:     rec.Step.Name,
			Status:   string(rec.State),
			Attempts: rec.Attempts(),
		}
		if run := rec.LatestRun(); run != nil {
			if !run.DispatchedAt.IsZero() {
				t := run.DispatchedAt
				sv.StartedAt = &t
			}
			if !run.CompletedAt.IsZero() {
				t := run.CompletedAt
				sv.CompletedAt = &t
			}
			if run.ErrorMessage != "" {
				sv.Error = run.ErrorMessage
			}
		}
		if rec.State == workflow.StepRunning {
			view.CurrentStep = id
		}
		view.Steps = append(view.Steps, sv)
		if len(rec.Result) > 0 {
			var decoded interface{}
			if err := json.Unmarshal(rec.Result, &decoded); err == nil {
				results[id] = decoded
			}
		}
	}
	if len(results) > 0 {
		view.Results = results
	}
	return view
}

func less(a, b string, depths map[string]int) bool {
	if depths[a] != depths[b] {
		return depths[a] < depths[b]
	}
	return a < b
}
