package sqlstore

import (
	"context"
	"fmt"
	"os"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/giantswarm/fedctl/internal/workflow"
)

// requireDSN mirrors the pack's integration-test convention: skip
// unless a real Postgres instance is configured via environment
// variables, rather than faking the driver.
func requireDSN(t *testing.T) string {
	host := os.Getenv("POSTGRES_HOST")
	if host == "" {
		t.Skip("POSTGRES_HOST not set; skipping sqlstore integration test")
	}
	port := os.Getenv("POSTGRES_PORT")
	if port == "" {
		port = "5432"
	}
	user := os.Getenv("POSTGRES_USER")
	if user == "" {
		user = "postgres"
	}
	pass := os.Getenv("POSTGRES_PASSWORD")
	db := os.Getenv("POSTGRES_DB")
	if db == "" {
		db = "fedctl_test"
	}
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=disable", user, pass, host, port, db)
}

func TestSqlstore_CreateLoadUpdate(t *testing.T) {
	dsn := requireDSN(t)
	ctx := context.Background()

	s, err := Open(ctx, dsn)
	require.NoError(t, err)
	defer s.Close()

	wf := &workflow.Workflow{
		ID:     workflow.NewID(),
		Tenant: "tenant-a",
		Status: workflow.StatusRunning,
		Steps:  map[string]*workflow.StepRecord{"s1": {State: workflow.StepPending}},
	}
	require.NoError(t, s.Create(ctx, wf))

	got, err := s.Load(ctx, wf.ID.String())
	require.NoError(t, err)
	require.Equal(t, workflow.StatusRunning, got.Status)

	newVersion, err := s.Update(ctx, wf.ID.String(), 0, func(w *workflow.Workflow) error {
		w.Status = workflow.StatusCompleted
		return nil
	})
	require.NoError(t, err)
	require.Equal(t, int64(1), newVersion)

	seq, err := s.AppendEvent(ctx, wf.ID.String(), workflow.Event{Kind: workflow.EventWorkflowTerminal})
	require.NoError(t, err)
	require.Equal(t, int64(1), seq)
}
