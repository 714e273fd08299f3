package sqlstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pressly/goose/v3"

	_ "github.com/jackc/pgx/v5/stdlib" // registers the "pgx" database/sql driver

	"github.com/giantswarm/fedctl/internal/errkind"
	"github.com/giantswarm/fedctl/internal/store"
	"github.com/giantswarm/fedctl/internal/workflow"
)

// Store is a Postgres-backed store.Store.
type Store struct {
	db *sqlx.DB
}

// Open connects to dsn, applies pending migrations, and returns a ready Store.
func Open(ctx context.Context, dsn string) (*Store, error) {
	db, err := sqlx.ConnectContext(ctx, "pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("sqlstore: connecting: %w", err)
	}

	goose.SetBaseFS(migrationsFS)
	if err := goose.SetDialect("postgres"); err != nil {
		return nil, fmt.Errorf("sqlstore: setting goose dialect: %w", err)
	}
	if err := goose.Up(db.DB, "migrations"); err != nil {
		return nil, fmt.Errorf("sqlstore: running migrations: %w", err)
	}

	return &Store{db: db}, nil
}

// Close releases the underlying connection pool.
func (s *Store) Close() error { return s.db.Close() }

type workflowRow struct {
	ID           string    `db:"id"`
	Tenant       string    `db:"tenant"`
	Intent       string    `db:"intent"`
	Plan         []byte    `db:"plan"`
	Status       string    `db:"status"`
	Steps        []byte    `db:"steps"`
	Result       []byte    `db:"result"`
	ErrorKind    sql.NullString `db:"error_kind"`
	ErrorMessage sql.NullString `db:"error_message"`
	CreatedAt    time.Time `db:"created_at"`
	UpdatedAt    time.Time `db:"updated_at"`
	Version      int64     `db:"version"`
	CancelWant   bool      `db:"cancel_want"`
}

func (r workflowRow) toWorkflow() (*workflow.Workflow, error) {
	var plan workflow.Plan
	if err := json.Unmarshal(r.Plan, &plan); err != nil {
		return nil, fmt.Errorf("decoding plan: %w", err)
	}
	var steps map[string]*workflow.StepRecord
	if err := json.Unmarshal(r.Steps, &steps); err != nil {
		return nil, fmt.Errorf("decoding steps: %w", err)
	}

	wf := &workflow.Workflow{
		ID:         workflow.ID(r.ID),
		Tenant:     r.Tenant,
		Intent:     r.Intent,
		Plan:       plan,
		Status:     workflow.Status(r.Status),
		Steps:      steps,
		Result:     r.Result,
		CreatedAt:  r.CreatedAt,
		UpdatedAt:  r.UpdatedAt,
		Version:    r.Version,
		CancelWant: r.CancelWant,
	}
	if r.ErrorKind.Valid {
		wf.Error = &workflow.WorkflowError{Kind: errkind.Kind(r.ErrorKind.String), Message: r.ErrorMessage.String}
	}
	return wf, nil
}

func fromWorkflow(wf *workflow.Workflow) (workflowRow, error) {
	plan, err := json.Marshal(wf.Plan)
	if err != nil {
		return workflowRow{}, err
	}
	steps, err := json.Marshal(wf.Steps)
	if err != nil {
		return workflowRow{}, err
	}

	row := workflowRow{
		ID:         wf.ID.String(),
		Tenant:     wf.Tenant,
		Intent:     wf.Intent,
		Plan:       plan,
		Status:     string(wf.Status),
		Steps:      steps,
		Result:     wf.Result,
		CreatedAt:  wf.CreatedAt,
		UpdatedAt:  wf.UpdatedAt,
		Version:    wf.Version,
		CancelWant: wf.CancelWant,
	}
	if wf.Error != nil {
		row.ErrorKind = sql.NullString{String: string(wf.Error.Kind), Valid: true}
		row.ErrorMessage = sql.NullString{String: wf.Error.Message, Valid: true}
	}
	return row, nil
}

// Create implements store.Store.
func (s *Store) Create(ctx context.Context, wf *workflow.Workflow) error {
	row, err := fromWorkflow(wf)
	if err != nil {
		return err
	}

	_, err = s.db.NamedExecContext(ctx, `
		INSERT INTO workflows (id, tenant, intent, plan, status, steps, result, error_kind, error_message, created_at, updated_at, version, cancel_want)
		VALUES (:id, :tenant, :intent, :plan, :status, :steps, :result, :error_kind, :error_message, :created_at, :updated_at, :version, :cancel_want)
	`, row)
	if err != nil {
		return fmt.Errorf("sqlstore: create: %w", err)
	}
	return nil
}

// Load implements store.Store.
func (s *Store) Load(ctx context.Context, id string) (*workflow.Workflow, error) {
	var row workflowRow
	err := s.db.GetContext(ctx, &row, `SELECT * FROM workflows WHERE id = $1`, id)
	if err == sql.ErrNoRows {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("sqlstore: load: %w", err)
	}
	return row.toWorkflow()
}

// Update implements store.Store's CAS contract with a single
// UPDATE ... WHERE version = $N statement; zero rows affected means a
// concurrent writer already advanced the version.
func (s *Store) Update(ctx context.Context, id string, expectedVersion int64, mutate store.Mutator) (int64, error) {
	current, err := s.Load(ctx, id)
	if err != nil {
		return 0, err
	}
	if current.Version != expectedVersion {
		return 0, store.ErrConflict
	}

	if err := mutate(current); err != nil {
		return 0, err
	}
	current.Version = expectedVersion + 1

	row, err := fromWorkflow(current)
	if err != nil {
		return 0, err
	}

	params := map[string]interface{}{
		"id":               row.ID,
		"status":           row.Status,
		"steps":            row.Steps,
		"result":           row.Result,
		"error_kind":       row.ErrorKind,
		"error_message":    row.ErrorMessage,
		"updated_at":       row.UpdatedAt,
		"version":          row.Version,
		"cancel_want":      row.CancelWant,
		"expected_version": expectedVersion,
	}

	res, err := s.db.NamedExecContext(ctx, `
		UPDATE workflows SET
			status = :status, steps = :steps, result = :result,
			error_kind = :error_kind, error_message = :error_message,
			updated_at = :updated_at, version = :version, cancel_want = :cancel_want
		WHERE id = :id AND version = :expected_version
	`, params)
	if err != nil {
		return 0, fmt.Errorf("sqlstore: update: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("sqlstore: update rows affected: %w", err)
	}
	if affected == 0 {
		return 0, store.ErrConflict
	}
	return current.Version, nil
}

// AppendEvent implements store.Store, serializing sequence assignment
// through a transaction per-workflow.
func (s *Store) AppendEvent(ctx context.Context, id string, ev workflow.Event) (int64, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("sqlstore: append_event begin: %w", err)
	}
	defer tx.Rollback()

	var nextSeq int64
	err = tx.GetContext(ctx, &nextSeq, `SELECT COALESCE(MAX(seq), 0) + 1 FROM workflow_events WHERE workflow_id = $1`, id)
	if err != nil {
		return 0, fmt.Errorf("sqlstore: append_event seq: %w", err)
	}

	detail, err := json.Marshal(ev.Detail)
	if err != nil {
		return 0, err
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO workflow_events (workflow_id, seq, kind, step_id, at_millis, detail)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, id, nextSeq, string(ev.Kind), ev.StepID, ev.At, detail)
	if err != nil {
		return 0, fmt.Errorf("sqlstore: append_event insert: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("sqlstore: append_event commit: %w", err)
	}
	return nextSeq, nil
}

// ListPending implements store.Store.
func (s *Store) ListPending(ctx context.Context) ([]string, error) {
	var ids []string
	err := s.db.SelectContext(ctx, &ids, `
		SELECT id FROM workflows WHERE status NOT IN ('Completed', 'Failed', 'Cancelled', 'TimedOut') ORDER BY id
	`)
	if err != nil {
		return nil, fmt.Errorf("sqlstore: list_pending: %w", err)
	}
	return ids, nil
}
