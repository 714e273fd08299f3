// Package memstore is the in-process Workflow Store implementation,
// used for tests and the default store_uri=memory:// configuration. It
// keeps every workflow in a map guarded by a single RWMutex and a
// per-workflow event sequence counter, the same shape the teacher uses
// for its in-memory config/service registries.
package memstore

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/giantswarm/fedctl/internal/store"
	"github.com/giantswarm/fedctl/internal/workflow"
)

type record struct {
	wf       *workflow.Workflow
	nextSeq  int64
}

// Store is an in-memory store.Store.
type Store struct {
	mu      sync.RWMutex
	records map[string]*record
}

// New returns an empty Store.
func New() *Store {
	return &Store{records: make(map[string]*record)}
}

// Create implements store.Store.
func (s *Store) Create(_ context.Context, wf *workflow.Workflow) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.records[wf.ID.String()]; exists {
		return fmt.Errorf("memstore: workflow %s already exists", wf.ID)
	}

	cp := cloneWorkflow(wf)
	s.records[wf.ID.String()] = &record{wf: cp, nextSeq: int64(len(cp.Audit)) + 1}
	return nil
}

// Load implements store.Store.
func (s *Store) Load(_ context.Context, id string) (*workflow.Workflow, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, ok := s.records[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return cloneWorkflow(r.wf), nil
}

// Update implements store.Store's optimistic CAS contract.
func (s *Store) Update(_ context.Context, id string, expectedVersion int64, mutate store.Mutator) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.records[id]
	if !ok {
		return 0, store.ErrNotFound
	}
	if r.wf.Version != expectedVersion {
		return 0, store.ErrConflict
	}

	working := cloneWorkflow(r.wf)
	if err := mutate(working); err != nil {
		return 0, err
	}
	working.Version = expectedVersion + 1

	r.wf = working
	return working.Version, nil
}

// AppendEvent implements store.Store.
func (s *Store) AppendEvent(_ context.Context, id string, ev workflow.Event) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.records[id]
	if !ok {
		return 0, store.ErrNotFound
	}

	ev.Seq = r.nextSeq
	r.nextSeq++
	r.wf.Audit = append(r.wf.Audit, ev)
	return ev.Seq, nil
}

// ListPending implements store.Store.
func (s *Store) ListPending(_ context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var ids []string
	for id, r := range s.records {
		if !isTerminal(r.wf.Status) {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids, nil
}

func isTerminal(status workflow.Status) bool {
	switch status {
	case workflow.StatusCompleted, workflow.StatusFailed, workflow.StatusCancelled, workflow.StatusTimedOut:
		return true
	default:
		return false
	}
}

// cloneWorkflow makes a deep-enough copy that callers mutating the
// returned Workflow never corrupt the store's own state — the same
// defensive-copy discipline the teacher applies when handing out
// cached ServiceClass/config objects.
func cloneWorkflow(wf *workflow.Workflow) *workflow.Workflow {
	cp := *wf
	cp.Steps = make(map[string]*workflow.StepRecord, len(wf.Steps))
	for id, sr := range wf.Steps {
		srCopy := *sr
		srCopy.Runs = append([]workflow.StepRun(nil), sr.Runs...)
		cp.Steps[id] = &srCopy
	}
	cp.Audit = append([]workflow.Event(nil), wf.Audit...)
	return &cp
}
