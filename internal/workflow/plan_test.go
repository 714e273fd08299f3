package workflow

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/giantswarm/fedctl/internal/errkind"
)

func simplePlan() Plan {
	return Plan{
		ID:           "p1",
		WorkflowType: "blog-post-social",
		Steps: []PlanStep{
			{ID: "s1", Capability: "content.blog"},
			{ID: "s2", Capability: "image.generate", DependsOn: []string{"s1"}},
			{ID: "s3", Capability: "publish.social", DependsOn: []string{"s2"}},
		},
	}
}

func TestPlanValidate_OK(t *testing.T) {
	p := simplePlan()
	require.NoError(t, p.Validate())
}

func TestPlanValidate_DanglingDependency(t *testing.T) {
	p := Plan{Steps: []PlanStep{{ID: "s1", DependsOn: []string{"missing"}}}}
	err := p.Validate()
	require.Error(t, err)
	ek, ok := errkind.As(err)
	require.True(t, ok)
	assert.Equal(t, errkind.Invalid, ek.Kind)
}

func TestPlanValidate_Cycle(t *testing.T) {
	p := Plan{Steps: []PlanStep{
		{ID: "a", DependsOn: []string{"b"}},
		{ID: "b", DependsOn: []string{"a"}},
	}}
	err := p.Validate()
	require.Error(t, err)
	ek, ok := errkind.As(err)
	require.True(t, ok)
	assert.Equal(t, errkind.Invalid, ek.Kind)
}

func TestPlanValidate_DuplicateID(t *testing.T) {
	p := Plan{Steps: []PlanStep{{ID: "a"}, {ID: "a"}}}
	require.Error(t, p.Validate())
}

func TestPlanDepths(t *testing.T) {
	p := simplePlan()
	require.NoError(t, p.Validate())
	depths := p.Depths()
	assert.Equal(t, 0, depths["s1"])
	assert.Equal(t, 1, depths["s2"])
	assert.Equal(t, 2, depths["s3"])
}

func TestPlanDependentsAndDescendants(t *testing.T) {
	p := simplePlan()
	assert.Equal(t, []string{"s2"}, p.Dependents("s1"))
	assert.Equal(t, []string{"s2", "s3"}, p.Descendants("s1"))
	assert.Empty(t, p.Descendants("s3"))
}

func TestZeroStepPlanValidates(t *testing.T) {
	p := Plan{ID: "empty"}
	require.NoError(t, p.Validate())
	assert.Empty(t, p.Depths())
}
