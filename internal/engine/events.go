package engine

import (
	"sort"

	"github.com/giantswarm/fedctl/internal/workflow"
)

// recomputeAll re-derives every step's state in ascending DAG-depth
// order (a dependency is always recomputed before its dependents, so a
// single forward pass is sufficient — invariant 3), then the overall
// workflow status. Any step whose derived state changed appends the
// corresponding Event to *fired; the caller assigns Seq and publishes
// them only after this mutation has been durably persisted (spec §7
// "Durability rule").
func recomputeAll(w *workflow.Workflow, fired *[]workflow.Event, nowMillis int64) {
	depths := w.Plan.Depths()
	order := make([]string, 0, len(w.Steps))
	for id := range w.Steps {
		order = append(order, id)
	}
	sort.Slice(order, func(i, j int) bool {
		if depths[order[i]] != depths[order[j]] {
			return depths[order[i]] < depths[order[j]]
		}
		return order[i] < order[j]
	})

	prevStatus := w.Status

	for _, id := range order {
		rec := w.Steps[id]
		prev := rec.State

		upstream := make(map[string]workflow.UpstreamState, len(rec.Step.DependsOn))
		for _, dep := range rec.Step.DependsOn {
			if drec, ok := w.Steps[dep]; ok {
				upstream[dep] = workflow.UpstreamState{State: drec.State, Optional: drec.Step.Policy.Optional}
			}
		}

		next := workflow.DeriveState(rec.Step, rec.Runs, upstream)
		rec.State = next
		if next == prev {
			continue
		}

		if ev, ok := stepEvent(w.ID, rec, next, nowMillis); ok {
			*fired = append(*fired, ev)
		}
	}

	w.Status = workflow.OverallStatus(w.Steps, w.CancelWant, w.DeadlineExceeded)

	if prevStatus != w.Status && isTerminalStatus(w.Status) {
		w.Error = terminalError(w)
		*fired = append(*fired, workflow.Event{
			Kind:       workflow.EventWorkflowTerminal,
			WorkflowID: w.ID,
			At:         nowMillis,
			Detail:     map[string]interface{}{"status": string(w.Status)},
		})
	}
}

// stepEvent maps a step's newly-derived state to the Event kind spec §6
// defines for it. Skipped and Cancelled carry no discrete per-step event
// kind in that enum; they are visible in the WorkflowView snapshot
// instead, and the workflow-level terminal transition still fires
// WorkflowTerminal.
func stepEvent(wfID workflow.ID, rec *workflow.StepRecord, state workflow.StepStatus, nowMillis int64) (workflow.Event, bool) {
	base := workflow.Event{WorkflowID: wfID, StepID: rec.Step.ID, At: nowMillis}

	switch state {
	case workflow.StepReady:
		base.Kind = workflow.EventStepReady
	case workflow.StepRunning:
		base.Kind = workflow.EventStepDispatched
	case workflow.StepSucceeded:
		base.Kind = workflow.EventStepSucceeded
	case workflow.StepFailed:
		if rec.Step.Policy.Optional {
			base.Kind = workflow.EventOptionalStepFailed
		} else {
			base.Kind = workflow.EventStepFailed
		}
	default:
		return workflow.Event{}, false
	}
	return base, true
}

func isTerminalStatus(s workflow.Status) bool {
	switch s {
	case workflow.StatusCompleted, workflow.StatusFailed, workflow.StatusCancelled, workflow.StatusTimedOut:
		return true
	default:
		return false
	}
}

// terminalError summarizes the first fatal-failed step's error as the
// workflow-level WorkflowError (spec §7 "User-visible WorkflowView.error
// carries a stable error-kind tag and a human message").
func terminalError(w *workflow.Workflow) *workflow.WorkflowError {
	if w.Status != workflow.StatusFailed && w.Status != workflow.StatusTimedOut {
		return nil
	}
	var ids []string
	for id := range w.Steps {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		rec := w.Steps[id]
		if rec.State != workflow.StepFailed || rec.Step.Policy.Optional {
			continue
		}
		if run := rec.LatestRun(); run != nil {
			return &workflow.WorkflowError{Kind: run.ErrorKind, Message: run.ErrorMessage}
		}
	}
	return nil
}
