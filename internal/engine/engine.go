package engine

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/giantswarm/fedctl/internal/errkind"
	"github.com/giantswarm/fedctl/internal/intent"
	"github.com/giantswarm/fedctl/internal/statusbroker"
	"github.com/giantswarm/fedctl/internal/store"
	"github.com/giantswarm/fedctl/internal/workflow"
	"github.com/giantswarm/fedctl/pkg/logging"
)

// ErrAlreadyTerminal is returned by Cancel when the workflow has already
// reached a terminal state.
var ErrAlreadyTerminal = errors.New("engine: workflow already terminal")

// Matcher is the Capability Matcher contract the Engine dispatches
// through.
type Matcher interface {
	Select(ctx context.Context, tenant, capability string) (workflow.MCPDescriptor, error)
}

// Invoker is the MCP Client Pool contract the Engine dispatches through.
type Invoker interface {
	Invoke(ctx context.Context, desc workflow.MCPDescriptor, step workflow.PlanStep, workflowID string, attempt int, idempotencyKey string, deadline time.Duration) (json.RawMessage, error)
}

// Parser is the Intent Parser Adapter contract.
type Parser interface {
	Parse(ctx context.Context, planID, intentText, workflowTypeHint string) (workflow.Plan, error)
}

// OutcomeRecorder feeds MCP call outcomes back into the Registry's
// health state machine.
type OutcomeRecorder interface {
	RecordOutcome(id string, latency time.Duration, success bool)
}

// Options configures Engine defaults. DefaultParallelism is overridable
// per-Plan (ParallelismOverride) and DefaultStepTimeout per-step
// (StepPolicy); the tenant limits and buffer sizes apply engine-wide.
type Options struct {
	DefaultParallelism int
	DefaultStepTimeout time.Duration
	TenantLimits       map[string]int
	DefaultTenantLimit int
	EventBacklogSize   int
	SubscriberBuffer   int
}

// Engine is the Workflow Engine (spec §4.6): it owns submit/cancel/
// status/subscribe and runs one driver goroutine per active workflow.
type Engine struct {
	store    store.Store
	parser   Parser
	matcher  Matcher
	invoker  Invoker
	outcomes OutcomeRecorder
	broker   *statusbroker.Broker
	quotas   *TenantQuotas

	defaultParallelism int
	defaultStepTimeout time.Duration

	mu        sync.Mutex
	cancelFns map[workflow.ID]context.CancelFunc
	wg        sync.WaitGroup

	rootCtx    context.Context
	rootCancel context.CancelFunc
}

// New constructs an Engine. Call Start to recover any pending workflows
// from st and begin serving.
func New(st store.Store, parser Parser, matcher Matcher, invoker Invoker, outcomes OutcomeRecorder, opts Options) *Engine {
	if opts.DefaultParallelism <= 0 {
		opts.DefaultParallelism = 4
	}
	if opts.DefaultStepTimeout <= 0 {
		opts.DefaultStepTimeout = 30 * time.Second
	}
	rootCtx, rootCancel := context.WithCancel(context.Background())
	return &Engine{
		store:              st,
		parser:             parser,
		matcher:            matcher,
		invoker:            invoker,
		outcomes:           outcomes,
		broker:             statusbroker.New(opts.EventBacklogSize, opts.SubscriberBuffer),
		quotas:             NewTenantQuotas(opts.DefaultTenantLimit, opts.TenantLimits),
		defaultParallelism: opts.DefaultParallelism,
		defaultStepTimeout: opts.DefaultStepTimeout,
		cancelFns:          make(map[workflow.ID]context.CancelFunc),
		rootCtx:            rootCtx,
		rootCancel:         rootCancel,
	}
}

// Start recovers every non-terminal workflow from the Store and resumes
// its driver (spec §7 "recovery repeats the unpublished event").
// Workflows that fail to load (schema drift) are logged and skipped
// rather than aborting recovery of the rest (spec §7 "Poison-pill
// handling").
func (e *Engine) Start(ctx context.Context) error {
	ids, err := e.store.ListPending(ctx)
	if err != nil {
		return fmt.Errorf("engine: listing pending workflows: %w", err)
	}
	for _, id := range ids {
		if _, err := e.store.Load(ctx, id); err != nil {
			logging.Error("Engine", err, "skipping unrecoverable workflow %s on startup", logging.TruncateID(id))
			continue
		}
		e.startDriver(workflow.ID(id))
	}
	return nil
}

// Stop cancels every running driver and waits for them to exit.
func (e *Engine) Stop() {
	e.rootCancel()
	e.wg.Wait()
}

// Submit parses intentText into a Plan, persists the new Workflow, and
// starts its driver (spec §4.6 "submit(intent, hints) -> WorkflowId").
func (e *Engine) Submit(ctx context.Context, tenant, intentText, workflowTypeHint string) (workflow.ID, error) {
	id := workflow.NewID()

	plan, err := e.parser.Parse(ctx, id.String(), intentText, workflowTypeHint)
	if err != nil {
		var perr *intent.ParseError
		if errors.As(err, &perr) {
			return "", errkind.Wrap(errkind.Invalid, perr.Message, err)
		}
		return "", errkind.Wrap(errkind.Internal, "parsing intent", err)
	}

	steps := make(map[string]*workflow.StepRecord, len(plan.Steps))
	for _, s := range plan.Steps {
		steps[s.ID] = &workflow.StepRecord{Step: s, State: workflow.StepPending}
	}
	now := time.Now()
	wf := &workflow.Workflow{
		ID:        id,
		Tenant:    tenant,
		Intent:    intentText,
		Plan:      plan,
		Status:    workflow.StatusRunning,
		Steps:     steps,
		CreatedAt: now,
		UpdatedAt: now,
	}

	// Seed the initial ready set (invariant: a step is Ready once every
	// dependency is Succeeded — for a root step that's vacuously true).
	var fired []workflow.Event
	recomputeAll(wf, &fired, now.UnixMilli())

	if err := e.store.Create(ctx, wf); err != nil {
		return "", fmt.Errorf("engine: persisting new workflow: %w", err)
	}

	submitted := workflow.Event{Kind: workflow.EventWorkflowSubmitted, WorkflowID: id, At: now.UnixMilli()}
	e.appendAndPublish(ctx, id, append([]workflow.Event{submitted}, fired...))

	e.startDriver(id)
	return id, nil
}

// Cancel cooperatively requests a workflow stop: it marks CancelWant in
// the Store and cancels the driver's context, which aborts in-flight
// MCP calls at their next suspension point (spec §5 "Cancellation").
// Idempotent: cancelling an already-cancel-requested workflow succeeds
// with no further effect.
func (e *Engine) Cancel(ctx context.Context, id workflow.ID) error {
	wf, err := e.store.Load(ctx, id.String())
	if err != nil {
		return err
	}
	if isTerminalStatus(wf.Status) {
		return ErrAlreadyTerminal
	}

	_, err = e.store.Update(ctx, id.String(), wf.Version, func(w *workflow.Workflow) error {
		w.CancelWant = true
		return nil
	})
	if err != nil {
		return err
	}

	e.mu.Lock()
	cancel := e.cancelFns[id]
	e.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	logging.Audit(logging.AuditEvent{Action: "workflow_cancel", Outcome: "success", WorkflowID: id.String(), Tenant: wf.Tenant})
	return nil
}

// Status returns a read-only snapshot of a workflow.
func (e *Engine) Status(ctx context.Context, id workflow.ID) (WorkflowView, error) {
	wf, err := e.store.Load(ctx, id.String())
	if err != nil {
		return WorkflowView{}, err
	}
	return newWorkflowView(wf), nil
}

// Subscribe delegates to the Status Broker (spec §4.6
// "subscribe(id) -> Stream<Event>").
func (e *Engine) Subscribe(id workflow.ID) (<-chan workflow.Event, func()) {
	return e.broker.Subscribe(id)
}

func (e *Engine) startDriver(id workflow.ID) {
	ctx, cancel := context.WithCancel(e.rootCtx)
	e.mu.Lock()
	e.cancelFns[id] = cancel
	e.mu.Unlock()

	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		defer func() {
			e.mu.Lock()
			delete(e.cancelFns, id)
			e.mu.Unlock()
			cancel()
		}()
		d := &driver{engine: e, id: id, inFlight: make(map[string]bool), pendingRetry: make(map[string]time.Time)}
		d.run(ctx)
	}()
}

// appendAndPublish assigns sequence numbers via the Store and publishes
// each event only after its append is durable (spec §7 "Durability
// rule").
func (e *Engine) appendAndPublish(ctx context.Context, id workflow.ID, events []workflow.Event) {
	for _, ev := range events {
		seq, err := e.store.AppendEvent(ctx, id.String(), ev)
		if err != nil {
			logging.Error("Engine", err, "appending event %s for workflow %s", ev.Kind, logging.TruncateID(id.String()))
			continue
		}
		ev.Seq = seq
		ev.WorkflowID = id
		e.broker.Publish(id, ev)
	}
}
