package workflow

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDeriveState_PendingUntilDepsSucceed(t *testing.T) {
	step := PlanStep{ID: "s2", DependsOn: []string{"s1"}}
	upstream := map[string]UpstreamState{"s1": {State: StepRunning}}
	assert.Equal(t, StepPending, DeriveState(step, nil, upstream))
}

func TestDeriveState_ReadyWhenNoDeps(t *testing.T) {
	step := PlanStep{ID: "s1"}
	assert.Equal(t, StepReady, DeriveState(step, nil, nil))
}

func TestDeriveState_ReadyWhenDepsSucceeded(t *testing.T) {
	step := PlanStep{ID: "s2", DependsOn: []string{"s1"}}
	upstream := map[string]UpstreamState{"s1": {State: StepSucceeded}}
	assert.Equal(t, StepReady, DeriveState(step, nil, upstream))
}

func TestDeriveState_SkippedOnFatalUpstreamFailure(t *testing.T) {
	step := PlanStep{ID: "s2", DependsOn: []string{"s1"}}
	upstream := map[string]UpstreamState{"s1": {State: StepFailed, Optional: false}}
	assert.Equal(t, StepSkipped, DeriveState(step, nil, upstream))
}

func TestDeriveState_ContinuesPastOptionalUpstreamFailure(t *testing.T) {
	step := PlanStep{ID: "s2", DependsOn: []string{"s1"}}
	upstream := map[string]UpstreamState{"s1": {State: StepFailed, Optional: true}}
	assert.Equal(t, StepReady, DeriveState(step, nil, upstream))
}

func TestDeriveState_RunningAfterDispatch(t *testing.T) {
	step := PlanStep{ID: "s1"}
	runs := []StepRun{{StepID: "s1", Attempt: 1, Outcome: ""}}
	assert.Equal(t, StepRunning, DeriveState(step, runs, nil))
}

func TestDeriveState_SucceededTerminal(t *testing.T) {
	step := PlanStep{ID: "s1"}
	runs := []StepRun{{Outcome: OutcomeSucceeded}}
	assert.Equal(t, StepSucceeded, DeriveState(step, runs, nil))
}

func TestDeriveState_RetryableFailureGoesReadyUntilExhausted(t *testing.T) {
	step := PlanStep{ID: "s1", Policy: StepPolicy{Retry: RetryPolicy{MaxAttempts: 3}}}
	runs := []StepRun{{Outcome: OutcomeFailed}}
	assert.Equal(t, StepReady, DeriveState(step, runs, nil))

	runs = []StepRun{{Outcome: OutcomeFailed}, {Outcome: OutcomeFailed}, {Outcome: OutcomeFailed}}
	assert.Equal(t, StepFailed, DeriveState(step, runs, nil))
}

func TestDeriveState_OptionalFailureNeverRetriesAsFatal(t *testing.T) {
	step := PlanStep{ID: "s1", Policy: StepPolicy{Optional: true, Retry: RetryPolicy{MaxAttempts: 3}}}
	runs := []StepRun{{Outcome: OutcomeFailed}}
	assert.Equal(t, StepFailed, DeriveState(step, runs, nil))
}

func TestDeriveState_Cancelled(t *testing.T) {
	step := PlanStep{ID: "s1"}
	runs := []StepRun{{Outcome: OutcomeCancelled}}
	assert.Equal(t, StepCancelled, DeriveState(step, runs, nil))
}

func TestOverallStatus(t *testing.T) {
	tests := []struct {
		name     string
		steps    map[string]*StepRecord
		cancel   bool
		deadline bool
		want     Status
	}{
		{
			name:  "zero steps completed",
			steps: map[string]*StepRecord{},
			want:  StatusCompleted,
		},
		{
			name: "any non-terminal is running",
			steps: map[string]*StepRecord{
				"s1": {State: StepRunning},
			},
			want: StatusRunning,
		},
		{
			name: "all succeeded is completed",
			steps: map[string]*StepRecord{
				"s1": {State: StepSucceeded},
				"s2": {State: StepSucceeded},
			},
			want: StatusCompleted,
		},
		{
			name: "optional step failed is still completed",
			steps: map[string]*StepRecord{
				"s1": {State: StepSucceeded},
				"s2": {Step: PlanStep{Policy: StepPolicy{Optional: true}}, State: StepFailed},
			},
			want: StatusCompleted,
		},
		{
			name: "fatal failure fails workflow",
			steps: map[string]*StepRecord{
				"s1": {State: StepFailed},
				"s2": {State: StepSkipped},
			},
			want: StatusFailed,
		},
		{
			name: "cancellation requested wins over failed",
			steps: map[string]*StepRecord{
				"s1": {State: StepCancelled},
				"s2": {State: StepFailed},
			},
			cancel: true,
			want:   StatusCancelled,
		},
		{
			name: "deadline exceeded wins over failed and cancel",
			steps: map[string]*StepRecord{
				"s1": {State: StepFailed},
				"s2": {State: StepCancelled},
			},
			cancel:   true,
			deadline: true,
			want:     StatusTimedOut,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, OverallStatus(tt.steps, tt.cancel, tt.deadline))
		})
	}
}

func TestWorkflowProgress(t *testing.T) {
	w := &Workflow{Steps: map[string]*StepRecord{
		"s1": {State: StepSucceeded},
		"s2": {State: StepRunning},
		"s3": {State: StepFailed},
	}}
	assert.Equal(t, 66, w.Progress())
}

func TestWorkflowProgress_ZeroSteps(t *testing.T) {
	w := &Workflow{Steps: map[string]*StepRecord{}}
	assert.Equal(t, 100, w.Progress())
}
