package workflow

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/giantswarm/fedctl/internal/errkind"
)

// ID is the opaque 128-bit workflow identifier, rendered as its string
// UUID form on the wire and in storage.
type ID string

// NewID generates a fresh, globally unique WorkflowId.
func NewID() ID {
	return ID(uuid.New().String())
}

func (id ID) String() string { return string(id) }

// Status is the overall, derived status of a workflow.
type Status string

const (
	StatusRunning   Status = "Running"
	StatusCompleted Status = "Completed"
	StatusFailed    Status = "Failed"
	StatusCancelled Status = "Cancelled"
	StatusTimedOut  Status = "TimedOut"
)

// StepStatus is the derived per-step lifecycle state (spec §3, "StepState").
type StepStatus string

const (
	StepPending   StepStatus = "Pending"
	StepReady     StepStatus = "Ready"
	StepRunning   StepStatus = "Running"
	StepSucceeded StepStatus = "Succeeded"
	StepFailed    StepStatus = "Failed"
	StepSkipped   StepStatus = "Skipped"
	StepCancelled StepStatus = "Cancelled"
)

// Terminal reports whether a StepStatus can never transition further.
func (s StepStatus) Terminal() bool {
	switch s {
	case StepSucceeded, StepFailed, StepSkipped, StepCancelled:
		return true
	default:
		return false
	}
}

// RetryPolicy controls how a failed, retryable StepRun is rescheduled.
type RetryPolicy struct {
	MaxAttempts int           `json:"maxAttempts" yaml:"maxAttempts"`
	BaseDelay   time.Duration `json:"baseDelay" yaml:"baseDelay"`
	Factor      float64       `json:"factor" yaml:"factor"`
	Jitter      float64       `json:"jitter" yaml:"jitter"` // fraction, e.g. 0.25 for +/-25%
}

// DefaultRetryPolicy mirrors spec §4.2's default: up to 3 attempts, base
// 500ms, factor 2.0, jitter +/-25%.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{MaxAttempts: 3, BaseDelay: 500 * time.Millisecond, Factor: 2.0, Jitter: 0.25}
}

// StepPolicy is the per-step policy from spec §3 "PlanStep": timeout, max
// retries (via Retry), and whether the step is fatal (default) or optional.
type StepPolicy struct {
	Timeout  time.Duration `json:"timeout" yaml:"timeout"`
	Retry    RetryPolicy   `json:"retry" yaml:"retry"`
	Optional bool          `json:"optional" yaml:"optional"`
}

// PlanStep is one node of a Plan's DAG.
type PlanStep struct {
	ID         string                 `json:"id" yaml:"id"`
	Name       string                 `json:"name" yaml:"name"`
	Capability string                 `json:"capability" yaml:"capability"`
	Args       map[string]interface{} `json:"args" yaml:"args"`
	DependsOn  []string               `json:"dependsOn" yaml:"dependsOn"`
	Policy     StepPolicy             `json:"policy" yaml:"policy"`
}

// Plan is the ordered DAG produced by the Intent Parser Adapter for one
// workflow submission. It is immutable once parsed (spec §3 Lifecycle).
type Plan struct {
	ID                  string     `json:"id"`
	WorkflowType        string     `json:"workflowType"`
	Steps               []PlanStep `json:"steps"`
	ParallelismOverride int        `json:"parallelismOverride,omitempty"`
	OverallDeadline     time.Duration `json:"overallDeadline,omitempty"`
}

// StepByID returns the step with the given id, or false if absent.
func (p *Plan) StepByID(id string) (PlanStep, bool) {
	for _, s := range p.Steps {
		if s.ID == id {
			return s, true
		}
	}
	return PlanStep{}, false
}

// OutcomeKind classifies how one StepRun attempt concluded.
type OutcomeKind string

const (
	OutcomeSucceeded OutcomeKind = "Succeeded"
	OutcomeFailed    OutcomeKind = "Failed"
	OutcomeTimedOut  OutcomeKind = "TimedOut"
	OutcomeCancelled OutcomeKind = "Cancelled"
)

// StepRun is one execution attempt of a PlanStep (spec §3 "StepRun").
type StepRun struct {
	StepID         string          `json:"stepId"`
	Attempt        int             `json:"attempt"`
	MCPID          string          `json:"mcpId"`
	DispatchedAt   time.Time       `json:"dispatchedAt"`
	CompletedAt    time.Time       `json:"completedAt,omitempty"`
	Outcome        OutcomeKind     `json:"outcome"`
	ErrorKind      errkind.Kind    `json:"errorKind,omitempty"`
	ErrorMessage   string          `json:"errorMessage,omitempty"`
	IdempotencyKey string          `json:"idempotencyKey"`
	Result         json.RawMessage `json:"result,omitempty"`
}

// StepRecord is the Engine's live view of one PlanStep: its derived state
// and the full history of attempts against it.
type StepRecord struct {
	Step   PlanStep        `json:"step"`
	State  StepStatus      `json:"state"`
	Runs   []StepRun       `json:"runs"`
	Result json.RawMessage `json:"result,omitempty"`
}

// LatestRun returns the most recent StepRun, or nil if the step has never
// been dispatched.
func (r *StepRecord) LatestRun() *StepRun {
	if len(r.Runs) == 0 {
		return nil
	}
	return &r.Runs[len(r.Runs)-1]
}

// Attempts reports how many StepRuns have been recorded for this step.
func (r *StepRecord) Attempts() int { return len(r.Runs) }

// WorkflowError is the stable, user-visible error surfaced on a terminal
// Failed/TimedOut workflow (spec §7 "Propagation policy").
type WorkflowError struct {
	Kind    errkind.Kind `json:"kind"`
	Message string       `json:"message"`
}

// Workflow is the durable record tracked by the Store and driven by the
// Engine (spec §3 "Workflow").
type Workflow struct {
	ID         ID                     `json:"id"`
	Tenant     string                 `json:"tenant"`
	Intent     string                 `json:"intent"`
	Plan       Plan                   `json:"plan"`
	Status     Status                 `json:"status"`
	Steps      map[string]*StepRecord `json:"steps"`
	Result     json.RawMessage        `json:"result,omitempty"`
	Error      *WorkflowError         `json:"error,omitempty"`
	CreatedAt  time.Time              `json:"createdAt"`
	UpdatedAt  time.Time              `json:"updatedAt"`
	Version    int64                  `json:"version"`
	Audit      []Event                `json:"audit"`
	CancelWant bool                   `json:"cancelWanted"`

	// DeadlineExceeded is set once Plan.OverallDeadline has elapsed; it
	// forces OverallStatus to TimedOut even if the steps the driver force-
	// completed would otherwise derive Failed or Cancelled (spec §4.6
	// "Timeouts").
	DeadlineExceeded bool `json:"deadlineExceeded,omitempty"`
}

// Progress implements invariant 6: 100 * (#terminal steps) / (#total
// steps), rounded down. A zero-step plan is always 100% complete.
func (w *Workflow) Progress() int {
	total := len(w.Steps)
	if total == 0 {
		return 100
	}
	terminal := 0
	for _, rec := range w.Steps {
		if rec.State.Terminal() {
			terminal++
		}
	}
	return 100 * terminal / total
}

// HealthState is the Registry's per-MCP circuit state (spec §4.1).
type HealthState string

const (
	Healthy     HealthState = "Healthy"
	Degraded    HealthState = "Degraded"
	Unreachable HealthState = "Unreachable"
)

// MCPDescriptor is the Registry's catalog entry for one MCP provider
// (spec §3 "MCPDescriptor").
type MCPDescriptor struct {
	ID                string        `json:"id"`
	Endpoint          string        `json:"endpoint"`
	Capabilities      []string      `json:"capabilities"`
	CostTier          int           `json:"costTier"`
	ExpectedLatency   time.Duration `json:"expectedLatency"`
	Health            HealthState   `json:"health"`
	ConsecutiveFailures int         `json:"consecutiveFailures"`
	ConsecutiveSuccess  int         `json:"consecutiveSuccesses"`
	AvgLatency        time.Duration `json:"avgLatency"`
	ConcurrencyLimit  int           `json:"concurrencyLimit"`
}

// HasCapability reports whether the descriptor declares the given tag.
func (d *MCPDescriptor) HasCapability(tag string) bool {
	for _, c := range d.Capabilities {
		if c == tag {
			return true
		}
	}
	return false
}
