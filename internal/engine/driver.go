package engine

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/giantswarm/fedctl/internal/errkind"
	"github.com/giantswarm/fedctl/internal/store"
	"github.com/giantswarm/fedctl/internal/workflow"
	"github.com/giantswarm/fedctl/pkg/logging"
)

// pollInterval bounds how long the driver can go without re-examining
// its ready set even with no outcome or cancellation signal pending —
// this is what notices a backoff deadline or a freed tenant quota slot
// elapsing. Grounded on the teacher's health-probe ticker
// (internal/registry/health.go), the same "ticker-driven re-check"
// idiom applied to a scheduling loop instead of a health check.
const pollInterval = 100 * time.Millisecond

// stepOutcome is what a dispatch goroutine sends back to its driver
// once an Invoke call settles.
type stepOutcome struct {
	stepID string
	run    workflow.StepRun
	mcpID  string
	ok     bool
	taken  time.Duration
}

// driver is the single goroutine that advances one workflow. It is the
// only writer of that workflow's derived state; everything it reads it
// reloads fresh from the Store on every turn (spec §5 "Locking
// discipline": per-workflow state is owned by that workflow's driver).
type driver struct {
	engine *Engine
	id     workflow.ID

	inFlight     map[string]bool
	pendingRetry map[string]time.Time
}

func (d *driver) run(ctx context.Context) {
	outcomes := make(chan stepOutcome, 16)
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		wf, err := d.engine.store.Load(ctx, d.id.String())
		if err != nil {
			logging.Error("Engine", err, "driver: loading workflow %s", logging.TruncateID(d.id.String()))
			return
		}
		if isTerminalStatus(wf.Status) {
			return
		}

		if wf.Plan.OverallDeadline > 0 && !time.Now().Before(wf.CreatedAt.Add(wf.Plan.OverallDeadline)) {
			d.applyDeadlineExceeded(context.Background())
			continue
		}

		d.dispatchReady(ctx, wf, outcomes)

		var deadlineCh <-chan time.Time
		if wf.Plan.OverallDeadline > 0 {
			deadlineCh = time.After(time.Until(wf.CreatedAt.Add(wf.Plan.OverallDeadline)))
		}

		select {
		case <-ctx.Done():
			d.applyCancellation(context.Background())
		case out := <-outcomes:
			d.applyOutcome(ctx, out)
		case <-deadlineCh:
			d.applyDeadlineExceeded(context.Background())
		case <-ticker.C:
		}
	}
}

// dispatchReady picks every Ready step not already in flight or waiting
// out a backoff, in ascending (depth, step_id) order (spec §4.6
// "Ordering & tie-breaks"), and dispatches as many as the per-workflow
// parallelism cap and the tenant's quota allow.
func (d *driver) dispatchReady(ctx context.Context, wf *workflow.Workflow, outcomes chan<- stepOutcome) {
	depths := wf.Plan.Depths()

	type candidate struct {
		step  workflow.PlanStep
		depth int
	}
	var ready []candidate
	running := 0
	for _, rec := range wf.Steps {
		switch rec.State {
		case workflow.StepRunning:
			running++
		case workflow.StepReady:
			if d.inFlight[rec.Step.ID] {
				continue
			}
			if at, waiting := d.pendingRetry[rec.Step.ID]; waiting && time.Now().Before(at) {
				continue
			}
			ready = append(ready, candidate{rec.Step, depths[rec.Step.ID]})
		}
	}
	sort.Slice(ready, func(i, j int) bool {
		if ready[i].depth != ready[j].depth {
			return ready[i].depth < ready[j].depth
		}
		return ready[i].step.ID < ready[j].step.ID
	})

	parallelism := wf.Plan.ParallelismOverride
	if parallelism <= 0 {
		parallelism = d.engine.defaultParallelism
	}
	slots := parallelism - running

	for _, c := range ready {
		if slots <= 0 {
			return
		}
		if !d.engine.quotas.TryAcquire(wf.Tenant) {
			continue
		}
		delete(d.pendingRetry, c.step.ID)
		d.inFlight[c.step.ID] = true
		slots--
		d.dispatchOne(ctx, wf, c.step, outcomes)
	}
}

// dispatchOne persists a new in-flight StepRun for step (flipping its
// derived state to Running and emitting StepDispatched), then launches
// the actual MCP call in its own goroutine.
func (d *driver) dispatchOne(ctx context.Context, wf *workflow.Workflow, step workflow.PlanStep, outcomes chan<- stepOutcome) {
	desc, selectErr := d.engine.matcher.Select(ctx, wf.Tenant, step.Capability)

	attempt := 0
	if rec, ok := wf.Steps[step.ID]; ok {
		attempt = rec.Attempts() + 1
	}
	idempotencyKey := fmt.Sprintf("%s/%s/%d", d.id, step.ID, attempt)
	now := time.Now()

	if selectErr != nil {
		d.persistRun(ctx, step.ID, workflow.StepRun{
			StepID: step.ID, Attempt: attempt, DispatchedAt: now, CompletedAt: now,
			Outcome: workflow.OutcomeFailed, ErrorKind: errkind.KindOf(selectErr),
			ErrorMessage: selectErr.Error(), IdempotencyKey: idempotencyKey,
		})
		d.finishDispatch(step.ID, false)
		d.scheduleRetryIfNeeded(ctx, step.ID)
		return
	}

	placeholder := workflow.StepRun{
		StepID: step.ID, Attempt: attempt, MCPID: desc.ID, DispatchedAt: now,
		IdempotencyKey: idempotencyKey,
	}
	d.persistRun(ctx, step.ID, placeholder)

	timeout := step.Policy.Timeout
	if timeout <= 0 {
		timeout = d.engine.defaultStepTimeout
	}

	tmplCtx := map[string]interface{}{"steps": buildStepsContext(wf)}
	resolvedArgs, argErr := resolveArgs(step.Args, tmplCtx)
	dispatched := step
	if argErr == nil {
		dispatched.Args = resolvedArgs
	}

	go func() {
		defer d.engine.quotas.Release(wf.Tenant)

		start := time.Now()
		var out stepOutcome
		out.stepID = step.ID
		out.mcpID = desc.ID

		if argErr != nil {
			out.run = completedRun(placeholder, workflow.OutcomeFailed, errkind.Invalid, argErr.Error(), nil)
		} else {
			result, err := d.engine.invoker.Invoke(ctx, desc, dispatched, d.id.String(), attempt, idempotencyKey, timeout)
			switch {
			case err == nil:
				out.run = completedRun(placeholder, workflow.OutcomeSucceeded, "", "", result)
				out.ok = true
			case errors.Is(err, context.Canceled):
				out.run = completedRun(placeholder, workflow.OutcomeCancelled, errkind.Cancelled, err.Error(), nil)
			default:
				kind := errkind.KindOf(err)
				outcome := workflow.OutcomeFailed
				if kind == errkind.Timeout {
					outcome = workflow.OutcomeTimedOut
				}
				out.run = completedRun(placeholder, outcome, kind, err.Error(), nil)
			}
		}
		out.taken = time.Since(start)

		if d.engine.outcomes != nil {
			d.engine.outcomes.RecordOutcome(desc.ID, out.taken, out.ok)
		}

		select {
		case outcomes <- out:
		case <-ctx.Done():
		}
	}()
}

func completedRun(base workflow.StepRun, outcome workflow.OutcomeKind, kind errkind.Kind, message string, result []byte) workflow.StepRun {
	base.CompletedAt = time.Now()
	base.Outcome = outcome
	base.ErrorKind = kind
	base.ErrorMessage = message
	base.Result = result
	return base
}

// persistRun appends or replaces run (matched by Attempt) on stepID and
// recomputes+persists derived state, publishing any resulting events.
func (d *driver) persistRun(ctx context.Context, stepID string, run workflow.StepRun) {
	for {
		wf, err := d.engine.store.Load(ctx, d.id.String())
		if err != nil {
			logging.Error("Engine", err, "persistRun: loading workflow %s", logging.TruncateID(d.id.String()))
			return
		}
		expected := wf.Version

		var fired []workflow.Event
		now := time.Now()
		_, err = d.engine.store.Update(ctx, d.id.String(), expected, func(w *workflow.Workflow) error {
			rec, ok := w.Steps[stepID]
			if !ok {
				return nil
			}
			merged := false
			for i := range rec.Runs {
				if rec.Runs[i].Attempt == run.Attempt {
					rec.Runs[i] = run
					merged = true
					break
				}
			}
			if !merged {
				rec.Runs = append(rec.Runs, run)
			}
			if run.Outcome == workflow.OutcomeSucceeded {
				rec.Result = run.Result
			}
			// A non-retryable error kind (e.g. Invalid) must fail the step
			// on its first occurrence regardless of MaxAttempts. DeriveState
			// decides purely by attempt count, so cap the per-record policy
			// to what's already been spent; a placeholder run's ErrorKind is
			// always empty and can never trigger this.
			if (run.Outcome == workflow.OutcomeFailed || run.Outcome == workflow.OutcomeTimedOut) &&
				run.ErrorKind != "" && !run.ErrorKind.Retryable() {
				rec.Step.Policy.Retry.MaxAttempts = len(rec.Runs)
			}
			// A retryable failed/timed-out attempt sends the step back to
			// Ready rather than a terminal Failed, so stepEvent (which only
			// fires on the derived-state transition) never sees a Failed
			// state to report for it. Emit the per-attempt failure here so
			// the event stream still shows it before the step's next
			// StepReady (spec §8 scenario E2: "two StepFailed(transient)
			// before StepSucceeded").
			if (run.Outcome == workflow.OutcomeFailed || run.Outcome == workflow.OutcomeTimedOut) &&
				!rec.Step.Policy.Optional && len(rec.Runs) < rec.Step.Policy.Retry.MaxAttempts {
				fired = append(fired, workflow.Event{
					Kind: workflow.EventStepFailed, WorkflowID: w.ID, StepID: stepID, At: now.UnixMilli(),
					Detail: map[string]interface{}{"attempt": run.Attempt, "errorKind": string(run.ErrorKind), "retrying": true},
				})
			}
			recomputeAll(w, &fired, now.UnixMilli())
			if rec.State == workflow.StepFailed && !rec.Step.Policy.Optional {
				if skipped := w.Plan.Descendants(stepID); len(skipped) > 0 {
					logging.Info("Engine", "step %s failed fatally, skipping descendants %v", stepID, skipped)
				}
			}
			w.UpdatedAt = now
			return nil
		})
		if errors.Is(err, store.ErrConflict) {
			continue
		}
		if err != nil {
			logging.Error("Engine", err, "persisting run for step %s", stepID)
			return
		}
		d.engine.appendAndPublish(ctx, d.id, fired)
		return
	}
}

// applyOutcome merges a settled dispatch's run into the workflow, and
// schedules a retry deadline if the step is retryable and has attempts
// left.
func (d *driver) applyOutcome(ctx context.Context, out stepOutcome) {
	d.persistRun(ctx, out.stepID, out.run)
	d.finishDispatch(out.stepID, out.run.Outcome == workflow.OutcomeSucceeded || out.run.Outcome == workflow.OutcomeCancelled)

	if out.run.Outcome != workflow.OutcomeFailed && out.run.Outcome != workflow.OutcomeTimedOut {
		return
	}
	d.scheduleRetryIfNeeded(ctx, out.stepID)
}

// scheduleRetryIfNeeded sets a backoff deadline for stepID if its
// derived state came back Ready after a failed attempt (i.e. it is
// retryable and has attempts remaining).
func (d *driver) scheduleRetryIfNeeded(ctx context.Context, stepID string) {
	wf, err := d.engine.store.Load(ctx, d.id.String())
	if err != nil {
		return
	}
	rec, ok := wf.Steps[stepID]
	if !ok || rec.State != workflow.StepReady {
		return
	}
	d.pendingRetry[stepID] = time.Now().Add(nextDelay(rec.Step.Policy.Retry, rec.Attempts()))
}

func (d *driver) finishDispatch(stepID string, releaseRetry bool) {
	delete(d.inFlight, stepID)
	if releaseRetry {
		delete(d.pendingRetry, stepID)
	}
}

// applyCancellation marks every non-terminal step Cancelled and
// recomputes overall status (spec §5 "Cancellation is idempotent").
// Runs with ctx.Background() since the driver's own context is already
// done at this point.
func (d *driver) applyCancellation(ctx context.Context) {
	for {
		wf, err := d.engine.store.Load(ctx, d.id.String())
		if err != nil || isTerminalStatus(wf.Status) {
			return
		}
		expected := wf.Version
		now := time.Now()
		var fired []workflow.Event
		_, err = d.engine.store.Update(ctx, d.id.String(), expected, func(w *workflow.Workflow) error {
			for _, rec := range w.Steps {
				if !rec.State.Terminal() {
					rec.Runs = append(rec.Runs, workflow.StepRun{
						StepID: rec.Step.ID, Attempt: rec.Attempts() + 1,
						DispatchedAt: now, CompletedAt: now,
						Outcome: workflow.OutcomeCancelled, ErrorKind: errkind.Cancelled,
						ErrorMessage: "workflow cancelled",
					})
				}
			}
			recomputeAll(w, &fired, now.UnixMilli())
			w.UpdatedAt = now
			return nil
		})
		if errors.Is(err, store.ErrConflict) {
			continue
		}
		if err != nil {
			logging.Error("Engine", err, "applying cancellation to workflow %s", logging.TruncateID(d.id.String()))
			return
		}
		d.engine.appendAndPublish(ctx, d.id, fired)
		return
	}
}

// applyDeadlineExceeded force-completes every non-terminal step as
// TimedOut once Plan.OverallDeadline has elapsed, then recomputes
// overall status (spec §4.6 "Timeouts"; OverallStatus treats
// DeadlineExceeded as taking priority over any other terminal cause).
// Each forced run also caps that step's MaxAttempts so DeriveState
// lands it on Failed rather than scheduling a retry that will never run.
func (d *driver) applyDeadlineExceeded(ctx context.Context) {
	for {
		wf, err := d.engine.store.Load(ctx, d.id.String())
		if err != nil || isTerminalStatus(wf.Status) {
			return
		}
		expected := wf.Version
		now := time.Now()
		var fired []workflow.Event
		_, err = d.engine.store.Update(ctx, d.id.String(), expected, func(w *workflow.Workflow) error {
			for _, rec := range w.Steps {
				if !rec.State.Terminal() {
					rec.Runs = append(rec.Runs, workflow.StepRun{
						StepID: rec.Step.ID, Attempt: rec.Attempts() + 1,
						DispatchedAt: now, CompletedAt: now,
						Outcome: workflow.OutcomeTimedOut, ErrorKind: errkind.Timeout,
						ErrorMessage: "workflow overall deadline exceeded",
					})
					rec.Step.Policy.Retry.MaxAttempts = len(rec.Runs)
				}
			}
			w.DeadlineExceeded = true
			recomputeAll(w, &fired, now.UnixMilli())
			w.UpdatedAt = now
			return nil
		})
		if errors.Is(err, store.ErrConflict) {
			continue
		}
		if err != nil {
			logging.Error("Engine", err, "applying deadline to workflow %s", logging.TruncateID(d.id.String()))
			return
		}
		d.engine.appendAndPublish(ctx, d.id, fired)
		return
	}
}
