// Package engine is the Workflow Engine: it drives each workflow from
// submission to terminal state.
//
// Grounded on the teacher's internal/orchestrator/orchestrator.go for
// the shape of a long-lived coordinating struct owning a registry, a
// mutex, subscriber channels and Start/Stop lifecycle methods; on
// internal/workflow/executor.go for per-step execution and
// text/template-based argument resolution (generalized here from a
// linear step list to DAG-aware ready-set scheduling); and on
// internal/workflow/execution_tracker.go for per-step attempt tracking,
// generalized into workflow.StepRun.
//
// One goroutine ("driver") runs per active workflow. The driver owns
// that workflow's state: it is the only goroutine that applies
// mutations to it, always by loading the current persisted copy,
// deriving the next state, and writing it back through a single
// compare-and-swap Store.Update call. Nothing outside the driver ever
// holds a lock across a suspension point (spec §5 "Locking discipline").
package engine
