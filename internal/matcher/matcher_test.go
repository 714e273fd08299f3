package matcher

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/giantswarm/fedctl/internal/errkind"
	"github.com/giantswarm/fedctl/internal/workflow"
)

type fakeSource struct {
	byTag map[string][]workflow.MCPDescriptor
}

func (f fakeSource) ListByCapability(tag string) []workflow.MCPDescriptor {
	return f.byTag[tag]
}

func TestSelect_PicksCheapestThenFastest(t *testing.T) {
	src := fakeSource{byTag: map[string][]workflow.MCPDescriptor{
		"image.generate": {
			{ID: "pricey", Health: workflow.Healthy, CostTier: 2},
			{ID: "cheap", Health: workflow.Healthy, CostTier: 1, AvgLatency: 50 * time.Millisecond},
		},
	}}
	m := New(src, nil)
	d, err := m.Select(context.Background(), "tenant-a", "image.generate")
	require.NoError(t, err)
	assert.Equal(t, "cheap", d.ID)
}

func TestSelect_DegradedUsedOnlyWhenNoHealthy(t *testing.T) {
	src := fakeSource{byTag: map[string][]workflow.MCPDescriptor{
		"image.generate": {
			{ID: "degraded1", Health: workflow.Degraded},
		},
	}}
	m := New(src, nil)
	d, err := m.Select(context.Background(), "tenant-a", "image.generate")
	require.NoError(t, err)
	assert.Equal(t, "degraded1", d.ID)
}

func TestSelect_IgnoresDegradedWhenHealthyExists(t *testing.T) {
	src := fakeSource{byTag: map[string][]workflow.MCPDescriptor{
		"image.generate": {
			{ID: "degraded1", Health: workflow.Degraded, CostTier: 0},
			{ID: "healthy1", Health: workflow.Healthy, CostTier: 5},
		},
	}}
	m := New(src, nil)
	d, err := m.Select(context.Background(), "tenant-a", "image.generate")
	require.NoError(t, err)
	assert.Equal(t, "healthy1", d.ID)
}

func TestSelect_RoundRobinsAcrossExactTies(t *testing.T) {
	src := fakeSource{byTag: map[string][]workflow.MCPDescriptor{
		"image.generate": {
			{ID: "a", Health: workflow.Healthy, CostTier: 1},
			{ID: "b", Health: workflow.Healthy, CostTier: 1},
		},
	}}
	m := New(src, nil)

	var seen []string
	for i := 0; i < 4; i++ {
		d, err := m.Select(context.Background(), "tenant-a", "image.generate")
		require.NoError(t, err)
		seen = append(seen, d.ID)
	}
	assert.Equal(t, []string{"a", "b", "a", "b"}, seen)
}

func TestSelect_NoProviderWhenEmpty(t *testing.T) {
	src := fakeSource{byTag: map[string][]workflow.MCPDescriptor{}}
	m := New(src, nil)
	_, err := m.Select(context.Background(), "tenant-a", "image.generate")
	require.Error(t, err)
	ek, ok := errkind.As(err)
	require.True(t, ok)
	assert.Equal(t, errkind.NoProvider, ek.Kind)
}

type denyAllLimiter struct{}

func (denyAllLimiter) Allow(string, string) bool { return false }

func TestSelect_NoProviderWhenRateLimited(t *testing.T) {
	src := fakeSource{byTag: map[string][]workflow.MCPDescriptor{
		"image.generate": {{ID: "a", Health: workflow.Healthy}},
	}}
	m := New(src, denyAllLimiter{})
	_, err := m.Select(context.Background(), "tenant-a", "image.generate")
	require.Error(t, err)
	ek, ok := errkind.As(err)
	require.True(t, ok)
	assert.Equal(t, errkind.NoProvider, ek.Kind)
}

func TestTokenBucketLimiter_AllowsBurstThenThrottles(t *testing.T) {
	l := NewTokenBucketLimiter(1, 2)
	assert.True(t, l.Allow("tenant-a", "mcp1"))
	assert.True(t, l.Allow("tenant-a", "mcp1"))
	assert.False(t, l.Allow("tenant-a", "mcp1"))
}

func TestTokenBucketLimiter_SeparateBucketsPerTenant(t *testing.T) {
	l := NewTokenBucketLimiter(1, 1)
	assert.True(t, l.Allow("tenant-a", "mcp1"))
	assert.True(t, l.Allow("tenant-b", "mcp1"))
}
