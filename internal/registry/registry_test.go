package registry

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/giantswarm/fedctl/internal/errkind"
	"github.com/giantswarm/fedctl/internal/workflow"
)

func desc(id string, caps ...string) workflow.MCPDescriptor {
	return workflow.MCPDescriptor{
		ID:              id,
		Endpoint:        "http://" + id + ".local:8080",
		Capabilities:    caps,
		CostTier:        1,
		ExpectedLatency: 100 * time.Millisecond,
	}
}

func TestRegister_RejectsEmptyCapabilities(t *testing.T) {
	r := New(nil)
	err := r.Register(workflow.MCPDescriptor{ID: "mcp1", Endpoint: "http://mcp1.local"})
	require.Error(t, err)
	ek, ok := errkind.As(err)
	require.True(t, ok)
	assert.Equal(t, errkind.Invalid, ek.Kind)
}

func TestRegister_RejectsInvalidEndpoint(t *testing.T) {
	r := New(nil)
	err := r.Register(workflow.MCPDescriptor{ID: "mcp1", Capabilities: []string{"image.generate"}, Endpoint: "not-a-url"})
	require.Error(t, err)
}

func TestRegister_DefaultsConcurrencyAndHealth(t *testing.T) {
	r := New(nil)
	require.NoError(t, r.Register(desc("mcp1", "image.generate")))
	d, ok := r.Get("mcp1")
	require.True(t, ok)
	assert.Equal(t, 4, d.ConcurrencyLimit)
	assert.Equal(t, workflow.Healthy, d.Health)
}

func TestListByCapability_FiltersAndSorts(t *testing.T) {
	r := New(nil)
	cheap := desc("cheap", "image.generate")
	cheap.CostTier = 1
	pricey := desc("pricey", "image.generate")
	pricey.CostTier = 2
	unrelated := desc("unrelated", "publish.social")

	require.NoError(t, r.Register(cheap))
	require.NoError(t, r.Register(pricey))
	require.NoError(t, r.Register(unrelated))

	out := r.ListByCapability("image.generate")
	require.Len(t, out, 2)
	assert.Equal(t, "cheap", out[0].ID)
	assert.Equal(t, "pricey", out[1].ID)
}

func TestListByCapability_ExcludesUnreachable(t *testing.T) {
	r := New(nil)
	require.NoError(t, r.Register(desc("mcp1", "image.generate")))
	for i := 0; i < defaultFailureThreshold; i++ {
		r.RecordOutcome("mcp1", 10*time.Millisecond, false)
	}
	out := r.ListByCapability("image.generate")
	assert.Empty(t, out)
}

func TestRecordOutcome_DegradesOnHighErrorRate(t *testing.T) {
	r := New(nil)
	require.NoError(t, r.Register(desc("mcp1", "image.generate")))

	// 3 failures out of 4 (75% error rate) without tripping the
	// consecutive-failure threshold (threshold is 5, and we interleave
	// a success to keep ConsecutiveFailures below it).
	r.RecordOutcome("mcp1", 10*time.Millisecond, false)
	r.RecordOutcome("mcp1", 10*time.Millisecond, false)
	r.RecordOutcome("mcp1", 10*time.Millisecond, true)
	r.RecordOutcome("mcp1", 10*time.Millisecond, false)

	d, _ := r.Get("mcp1")
	assert.Equal(t, workflow.Degraded, d.Health)
}

func TestRecordOutcome_UnreachableAfterConsecutiveFailures(t *testing.T) {
	r := New(nil)
	require.NoError(t, r.Register(desc("mcp1", "image.generate")))

	for i := 0; i < defaultFailureThreshold; i++ {
		r.RecordOutcome("mcp1", 10*time.Millisecond, false)
	}
	d, _ := r.Get("mcp1")
	assert.Equal(t, workflow.Unreachable, d.Health)
}

func TestRecordOutcome_RecoversAfterConsecutiveSuccesses(t *testing.T) {
	r := New(nil)
	require.NoError(t, r.Register(desc("mcp1", "image.generate")))

	for i := 0; i < defaultFailureThreshold; i++ {
		r.RecordOutcome("mcp1", 10*time.Millisecond, false)
	}
	d, _ := r.Get("mcp1")
	require.Equal(t, workflow.Unreachable, d.Health)

	for i := 0; i < defaultRecoveryThreshold; i++ {
		r.RecordOutcome("mcp1", 10*time.Millisecond, true)
	}
	d, _ = r.Get("mcp1")
	assert.Equal(t, workflow.Healthy, d.Health)
}

func TestRecordOutcome_HysteresisKeepsDegradedUntilErrorRateClears(t *testing.T) {
	r := New(nil)
	d0 := desc("mcp1", "image.generate")
	require.NoError(t, r.Register(d0))

	// Push into Degraded via a bad error rate.
	for i := 0; i < 10; i++ {
		r.RecordOutcome("mcp1", 10*time.Millisecond, i%2 == 0)
	}
	d, _ := r.Get("mcp1")
	require.Equal(t, workflow.Degraded, d.Health)

	// A couple of successes alone shouldn't flip back to Healthy while
	// the windowed error rate is still high.
	r.RecordOutcome("mcp1", 10*time.Millisecond, true)
	d, _ = r.Get("mcp1")
	assert.Equal(t, workflow.Degraded, d.Health)

	// Enough consecutive successes clear both the consecutive-success
	// bar and (eventually) the windowed error rate.
	for i := 0; i < window; i++ {
		r.RecordOutcome("mcp1", 10*time.Millisecond, true)
	}
	d, _ = r.Get("mcp1")
	assert.Equal(t, workflow.Healthy, d.Health)
}

func TestDeregister(t *testing.T) {
	r := New(nil)
	require.NoError(t, r.Register(desc("mcp1", "image.generate")))
	r.Deregister("mcp1")
	_, ok := r.Get("mcp1")
	assert.False(t, ok)
}

func TestAll_SortedByID(t *testing.T) {
	r := New(nil)
	require.NoError(t, r.Register(desc("zeta", "x")))
	require.NoError(t, r.Register(desc("alpha", "x")))
	out := r.All()
	require.Len(t, out, 2)
	assert.Equal(t, "alpha", out[0].ID)
	assert.Equal(t, "zeta", out[1].ID)
}
