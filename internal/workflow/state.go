package workflow

// UpstreamState is the minimal view of a dependency a step needs to
// derive its own state: its terminal/non-terminal status, and whether a
// Failed status there is fatal (propagates) or optional (does not).
type UpstreamState struct {
	State    StepStatus
	Optional bool
}

// DeriveState computes a step's StepStatus as a pure function of its
// policy, its StepRuns and the derived states of its upstream steps
// (invariant 3). It never mutates its arguments.
//
// Propagation rule (spec §4.6 "Step outcome handling"): a fatal
// (non-optional) upstream Failed, or any upstream Skipped/Cancelled,
// marks this step Skipped. An optional upstream Failed does not — its
// dependents proceed as if the step were absent.
func DeriveState(step PlanStep, runs []StepRun, upstream map[string]UpstreamState) StepStatus {
	for _, dep := range step.DependsOn {
		up := upstream[dep]
		switch up.State {
		case StepFailed:
			if !up.Optional {
				return StepSkipped
			}
		case StepSkipped, StepCancelled:
			return StepSkipped
		}
	}

	if len(runs) == 0 {
		for _, dep := range step.DependsOn {
			up := upstream[dep]
			satisfied := up.State == StepSucceeded || (up.State == StepFailed && up.Optional)
			if !satisfied {
				return StepPending
			}
		}
		return StepReady
	}

	latest := runs[len(runs)-1]
	switch latest.Outcome {
	case OutcomeSucceeded:
		return StepSucceeded
	case OutcomeCancelled:
		return StepCancelled
	case OutcomeFailed, OutcomeTimedOut:
		if step.Policy.Optional {
			return StepFailed
		}
		if len(runs) < step.Policy.Retry.MaxAttempts {
			return StepReady
		}
		return StepFailed
	default:
		return StepRunning
	}
}

// OverallStatus computes a workflow's Status from its step states,
// whether cancellation was requested, and whether the plan's overall
// deadline has elapsed, per invariant 5. deadlineExceeded takes priority
// over both cancellation and fatal failure: once the deadline fires the
// driver force-completes every non-terminal step, and the workflow's
// outcome is TimedOut regardless of how those steps landed (spec §4.6
// "Timeouts").
func OverallStatus(steps map[string]*StepRecord, cancelRequested, deadlineExceeded bool) Status {
	anyNonTerminal := false
	anyFatalFailed := false
	anyCancelled := false

	for _, rec := range steps {
		if !rec.State.Terminal() {
			anyNonTerminal = true
		}
		if rec.State == StepFailed && !rec.Step.Policy.Optional {
			anyFatalFailed = true
		}
		if rec.State == StepCancelled {
			anyCancelled = true
		}
	}

	if anyNonTerminal {
		return StatusRunning
	}
	if deadlineExceeded {
		return StatusTimedOut
	}
	if cancelRequested && (anyCancelled || anyFatalFailed) {
		return StatusCancelled
	}
	if anyFatalFailed {
		return StatusFailed
	}
	return StatusCompleted
}

// EventKind enumerates the WorkflowEvent kinds from spec §6.
type EventKind string

const (
	EventWorkflowSubmitted  EventKind = "WorkflowSubmitted"
	EventStepReady          EventKind = "StepReady"
	EventStepDispatched     EventKind = "StepDispatched"
	EventStepSucceeded      EventKind = "StepSucceeded"
	EventStepFailed         EventKind = "StepFailed"
	EventOptionalStepFailed EventKind = "OptionalStepFailed"
	EventWorkflowTerminal   EventKind = "WorkflowTerminal"
	EventSubscriberLagged   EventKind = "SubscriberLagged"
)

// Event is one entry in a workflow's ordered audit log / status stream
// (spec §6 "Event").
type Event struct {
	Seq        int64                  `json:"seq"`
	Kind       EventKind              `json:"kind"`
	WorkflowID ID                     `json:"workflowId"`
	StepID     string                 `json:"stepId,omitempty"`
	At         int64                  `json:"at"` // unix millis
	Detail     map[string]interface{} `json:"detail,omitempty"`
}
