package store

import (
	"context"
	"errors"

	"github.com/giantswarm/fedctl/internal/workflow"
)

// ErrNotFound is returned by Load when no workflow exists for the
// given id.
var ErrNotFound = errors.New("store: workflow not found")

// ErrConflict is returned by Update when expectedVersion does not match
// the workflow's current version — the caller should reload and retry.
var ErrConflict = errors.New("store: version conflict, reload and retry")

// Mutator mutates a loaded workflow in place. Returning an error aborts
// the update without persisting any change.
type Mutator func(*workflow.Workflow) error

// Store is the durable persistence contract the Workflow Engine drives.
// Implementations must make append_event ordering (monotonic per
// workflow) and Update's compare-and-set behavior safe under concurrent
// callers for the same workflow id.
type Store interface {
	// Create atomically inserts wf. Returns an error if wf.ID already exists.
	Create(ctx context.Context, wf *workflow.Workflow) error

	// Load returns the current record for id, or ErrNotFound.
	Load(ctx context.Context, id string) (*workflow.Workflow, error)

	// Update loads the workflow with id, applies mutate, and persists the
	// result only if the stored version still equals expectedVersion.
	// On success it returns the new version; on a version mismatch it
	// returns ErrConflict and the caller should Load and retry.
	Update(ctx context.Context, id string, expectedVersion int64, mutate Mutator) (int64, error)

	// AppendEvent appends ev to id's audit trail, assigning it the next
	// monotonic sequence number for that workflow and returning it.
	// ev.Seq is ignored on input.
	AppendEvent(ctx context.Context, id string, ev workflow.Event) (int64, error)

	// ListPending returns the ids of every workflow whose overall status
	// is non-terminal, for Engine recovery on startup.
	ListPending(ctx context.Context) ([]string, error)
}
