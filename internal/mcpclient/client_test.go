package mcpclient

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/giantswarm/fedctl/internal/errkind"
	"github.com/giantswarm/fedctl/internal/workflow"
)

func TestInvoke_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/image.generate", r.URL.Path)
		assert.Equal(t, "idem-1", r.Header.Get("Idempotency-Key"))
		assert.Equal(t, "wf-1", r.Header.Get("X-Workflow-Id"))
		assert.Equal(t, "s1", r.Header.Get("X-Step-Id"))
		assert.Equal(t, "2", r.Header.Get("X-Attempt"))

		var params map[string]interface{}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&params))
		assert.Equal(t, "a cat", params["prompt"])

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(invokeResponse{Result: json.RawMessage(`{"url":"https://img"}`)})
	}))
	defer srv.Close()

	pool := New(nil)
	desc := workflow.MCPDescriptor{ID: "mcp1", Endpoint: srv.URL, ConcurrencyLimit: 2}
	step := workflow.PlanStep{ID: "s1", Capability: "image.generate", Args: map[string]interface{}{"prompt": "a cat"}}

	result, err := pool.Invoke(context.Background(), desc, step, "wf-1", 2, "idem-1", time.Second)
	require.NoError(t, err)
	assert.JSONEq(t, `{"url":"https://img"}`, string(result))
}

func TestInvoke_WireErrorClassified(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(invokeResponse{Error: &wireError{Kind: "Invalid", Message: "bad args"}})
	}))
	defer srv.Close()

	pool := New(nil)
	desc := workflow.MCPDescriptor{ID: "mcp1", Endpoint: srv.URL, ConcurrencyLimit: 2}
	step := workflow.PlanStep{ID: "s1", Capability: "image.generate"}

	_, err := pool.Invoke(context.Background(), desc, step, "wf-1", 1, "idem-1", time.Second)
	require.Error(t, err)
	ek, ok := errkind.As(err)
	require.True(t, ok)
	assert.Equal(t, errkind.Invalid, ek.Kind)
}

func TestInvoke_OverloadedOn503(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	pool := New(nil)
	desc := workflow.MCPDescriptor{ID: "mcp1", Endpoint: srv.URL, ConcurrencyLimit: 2}
	step := workflow.PlanStep{ID: "s1", Capability: "image.generate"}

	_, err := pool.Invoke(context.Background(), desc, step, "wf-1", 1, "idem-1", time.Second)
	require.Error(t, err)
	ek, ok := errkind.As(err)
	require.True(t, ok)
	assert.Equal(t, errkind.Overloaded, ek.Kind)
}

func TestInvoke_UnknownWireKindDefaultsInternal(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(invokeResponse{Error: &wireError{Kind: "bogus", Message: "??"}})
	}))
	defer srv.Close()

	pool := New(nil)
	desc := workflow.MCPDescriptor{ID: "mcp1", Endpoint: srv.URL, ConcurrencyLimit: 2}
	step := workflow.PlanStep{ID: "s1", Capability: "image.generate"}

	_, err := pool.Invoke(context.Background(), desc, step, "wf-1", 1, "idem-1", time.Second)
	require.Error(t, err)
	ek, ok := errkind.As(err)
	require.True(t, ok)
	assert.Equal(t, errkind.Internal, ek.Kind)
}

func TestInvoke_DeadlineExceeded(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(50 * time.Millisecond)
	}))
	defer srv.Close()

	pool := New(nil)
	desc := workflow.MCPDescriptor{ID: "mcp1", Endpoint: srv.URL, ConcurrencyLimit: 2}
	step := workflow.PlanStep{ID: "s1", Capability: "image.generate"}

	_, err := pool.Invoke(context.Background(), desc, step, "wf-1", 1, "idem-1", 5*time.Millisecond)
	require.Error(t, err)
	ek, ok := errkind.As(err)
	require.True(t, ok)
	assert.Equal(t, errkind.Timeout, ek.Kind)
}

func TestInvoke_ConcurrencyCapBlocksBeyondLimit(t *testing.T) {
	release := make(chan struct{})
	inflight := make(chan struct{}, 10)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		inflight <- struct{}{}
		<-release
		_ = json.NewEncoder(w).Encode(invokeResponse{Result: json.RawMessage(`{}`)})
	}))
	defer srv.Close()

	pool := New(nil)
	desc := workflow.MCPDescriptor{ID: "mcp1", Endpoint: srv.URL, ConcurrencyLimit: 1}
	step := workflow.PlanStep{ID: "s1", Capability: "image.generate"}

	done := make(chan struct{})
	go func() {
		_, _ = pool.Invoke(context.Background(), desc, step, "wf-1", 1, "idem-1", time.Second)
		done <- struct{}{}
	}()
	<-inflight // first call has entered the handler

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := pool.Invoke(ctx, desc, step, "wf-1", 1, "idem-2", time.Second)
	require.Error(t, err) // blocked waiting for the semaphore, context deadline wins

	close(release)
	<-done
}
