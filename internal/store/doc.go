// Package store is the Workflow Store (spec §4.5): durable persistence
// of Workflows, their StepRecords, StepRuns, and audit Events, with
// optimistic (compare-and-set) updates keyed on a per-workflow
// monotonic version.
//
// Two implementations are provided, mirroring the teacher's pluggable
// storage-backend convention (internal/config.Storage selects between
// in-memory and file-backed configuration stores):
//
//   - memstore: in-process, RWMutex-guarded, used by tests and the
//     default store_uri=memory://.
//   - sqlstore: durable, Postgres-backed via pgx/sqlx, with goose
//     migrations — grounded on kubernaut's storage stack, the richest
//     persistence layer in the example pack.
package store
