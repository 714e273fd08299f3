// Package workflow holds the data model shared by every component of the
// federation orchestrator: Workflow, Plan, PlanStep, StepRun, StepState and
// MCPDescriptor. It has no dependency on the engine, store, registry or
// gateway packages so that all of them can import it without import
// cycles — the same role internal/api played for the orchestrator and
// aggregator in the service-management predecessor of this codebase.
//
// Nothing in this package performs I/O. Plan.Validate enforces DAG
// well-formedness (acyclic, no dangling dependency ids); DeriveState is a
// pure function of a step's policy, its StepRuns and its upstream
// states, matching invariant 3 of the workflow data model.
package workflow
