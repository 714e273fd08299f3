package mcpclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"
	"golang.org/x/sync/semaphore"

	"github.com/giantswarm/fedctl/internal/errkind"
	"github.com/giantswarm/fedctl/internal/workflow"
	"github.com/giantswarm/fedctl/pkg/logging"
)

// connectRetries bounds how many times the pool retries establishing
// the HTTP round trip itself (DNS, dial, TLS) before surfacing a
// Transient error to the caller. This is distinct from — and sits
// below — the step-level retry/backoff the Workflow Engine drives off
// a PlanStep's RetryPolicy: those retries create new, individually
// recorded StepRuns; these are invisible plumbing for a single dispatch
// attempt.
const connectRetries = 2

// Pool dispatches capability invocations to remote MCP endpoints,
// bounding per-MCP concurrency and classifying failures into errkind
// so the caller (normally the Workflow Engine) can decide whether a
// step is retryable.
type Pool struct {
	httpClient *http.Client

	mu   sync.Mutex
	sems map[string]*semaphore.Weighted
}

// New returns a Pool using client for outbound calls, or a sane default
// http.Client if client is nil.
func New(client *http.Client) *Pool {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	return &Pool{httpClient: client, sems: make(map[string]*semaphore.Weighted)}
}

func (p *Pool) semaphoreFor(desc workflow.MCPDescriptor) *semaphore.Weighted {
	p.mu.Lock()
	defer p.mu.Unlock()

	limit := int64(desc.ConcurrencyLimit)
	if limit <= 0 {
		limit = 4
	}
	sem, ok := p.sems[desc.ID]
	if !ok {
		sem = semaphore.NewWeighted(limit)
		p.sems[desc.ID] = sem
	}
	return sem
}

// Invoke dispatches a single capability call to desc, honoring both the
// MCP's concurrency cap and deadline. It returns the raw JSON result on
// success, or an *errkind.Error classifying the failure on error.
// workflowID/attempt identify the dispatch for the X-Workflow-Id/
// X-Step-Id/X-Attempt headers (spec §6 "MCP dispatch wire format");
// idempotencyKey is carried in the Idempotency-Key header so a retried
// call dedupes at the provider rather than in the JSON body.
func (p *Pool) Invoke(ctx context.Context, desc workflow.MCPDescriptor, step workflow.PlanStep, workflowID string, attempt int, idempotencyKey string, deadline time.Duration) (json.RawMessage, error) {
	sem := p.semaphoreFor(desc)
	if err := sem.Acquire(ctx, 1); err != nil {
		return nil, errkind.Wrap(errkind.Cancelled, "waiting for mcp concurrency slot", err)
	}
	defer sem.Release(1)

	callCtx := ctx
	var cancel context.CancelFunc
	if deadline > 0 {
		callCtx, cancel = context.WithTimeout(ctx, deadline)
		defer cancel()
	}

	body, err := json.Marshal(step.Args)
	if err != nil {
		return nil, errkind.Wrap(errkind.Invalid, "encoding invoke params", err)
	}

	result, err := backoff.Retry(callCtx, func() (json.RawMessage, error) {
		return p.doOnce(callCtx, desc, step.Capability, workflowID, step.ID, attempt, idempotencyKey, body)
	}, backoff.WithMaxTries(connectRetries+1), backoff.WithBackOff(backoff.NewExponentialBackOff()))
	if err != nil {
		logging.Warn("ClientPool", "invoke %s@%s failed: %v", step.Capability, desc.ID, err)
		return nil, err
	}
	return result, nil
}

func (p *Pool) doOnce(ctx context.Context, desc workflow.MCPDescriptor, method, workflowID, stepID string, attempt int, idempotencyKey string, body []byte) (json.RawMessage, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, desc.Endpoint+"/"+method, bytes.NewReader(body))
	if err != nil {
		return nil, errkind.Wrap(errkind.Internal, "building invoke request", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Idempotency-Key", idempotencyKey)
	req.Header.Set("X-Workflow-Id", workflowID)
	req.Header.Set("X-Step-Id", stepID)
	req.Header.Set("X-Attempt", strconv.Itoa(attempt))

	resp, err := p.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, classifyContextErr(ctx.Err())
		}
		return nil, errkind.Wrap(errkind.Transient, "dispatching to mcp", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, backoff.Permanent(errkind.Wrap(errkind.Transient, "reading mcp response", err))
	}

	if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode == http.StatusServiceUnavailable {
		return nil, backoff.Permanent(errkind.New(errkind.Overloaded, fmt.Sprintf("mcp returned %d", resp.StatusCode)))
	}
	if resp.StatusCode >= 500 {
		return nil, backoff.Permanent(errkind.New(errkind.Transient, fmt.Sprintf("mcp returned %d", resp.StatusCode)))
	}
	if resp.StatusCode >= 400 {
		return nil, backoff.Permanent(errkind.New(errkind.Invalid, fmt.Sprintf("mcp returned %d: %s", resp.StatusCode, raw)))
	}

	var ir invokeResponse
	if err := json.Unmarshal(raw, &ir); err != nil {
		return nil, backoff.Permanent(errkind.Wrap(errkind.Internal, "decoding mcp response", err))
	}
	if ir.Error != nil {
		return nil, backoff.Permanent(errkind.New(classifyWireKind(ir.Error.Kind), ir.Error.Message))
	}
	return ir.Result, nil
}

func classifyContextErr(err error) error {
	if err == context.DeadlineExceeded {
		return backoff.Permanent(errkind.Wrap(errkind.Timeout, "invoke deadline exceeded", err))
	}
	return backoff.Permanent(errkind.Wrap(errkind.Cancelled, "invoke cancelled", err))
}

func classifyWireKind(kind string) errkind.Kind {
	switch errkind.Kind(kind) {
	case errkind.Transient, errkind.Invalid, errkind.Overloaded, errkind.Cancelled, errkind.Timeout, errkind.NoProvider:
		return errkind.Kind(kind)
	default:
		return errkind.Internal
	}
}
