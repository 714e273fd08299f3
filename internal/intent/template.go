package intent

import (
	"embed"
	"fmt"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/giantswarm/fedctl/internal/workflow"
)

//go:embed templates/*.yaml
var builtinTemplatesFS embed.FS

// templateStep mirrors workflow.PlanStep but with a YAML-friendly shape
// (plain maps, a bare optional flag) the way the teacher's ServiceClass
// definitions are unmarshalled before being converted to runtime types.
type templateStep struct {
	ID         string                 `yaml:"id"`
	Name       string                 `yaml:"name"`
	Capability string                 `yaml:"capability"`
	DependsOn  []string               `yaml:"depends_on"`
	Args       map[string]interface{} `yaml:"args"`
	Optional   bool                   `yaml:"optional"`
}

// template is a named, reusable blueprint for a workflow_type.
type template struct {
	WorkflowType string         `yaml:"workflow_type"`
	Triggers     []string       `yaml:"triggers"`
	Steps        []templateStep `yaml:"steps"`
}

func loadBuiltinTemplates() ([]template, error) {
	entries, err := builtinTemplatesFS.ReadDir("templates")
	if err != nil {
		return nil, fmt.Errorf("reading builtin templates: %w", err)
	}

	var out []template
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		raw, err := builtinTemplatesFS.ReadFile("templates/" + entry.Name())
		if err != nil {
			return nil, fmt.Errorf("reading template %s: %w", entry.Name(), err)
		}
		var t template
		if err := yaml.Unmarshal(raw, &t); err != nil {
			return nil, fmt.Errorf("parsing template %s: %w", entry.Name(), err)
		}
		if t.WorkflowType == "" {
			return nil, fmt.Errorf("template %s missing workflow_type", entry.Name())
		}
		out = append(out, t)
	}

	sort.Slice(out, func(i, j int) bool { return out[i].WorkflowType < out[j].WorkflowType })
	return out, nil
}

// matches reports whether intentText loosely matches one of the
// template's trigger phrases (case-insensitive substring containment).
func (t template) matches(intentText string) bool {
	lower := strings.ToLower(intentText)
	for _, trigger := range t.Triggers {
		if strings.Contains(lower, strings.ToLower(trigger)) {
			return true
		}
	}
	return false
}

// expand turns the template into a concrete Plan for the given intent
// text. The literal "{{.Intent}}" placeholder is substituted with the
// raw intent now, since that value is fully known at parse time;
// placeholders referencing other steps' results (e.g.
// "{{.steps.s1.result.title}}") are left untouched for the Workflow
// Engine to resolve at dispatch, once those results actually exist.
func (t template) expand(planID, intentText string) workflow.Plan {
	steps := make([]workflow.PlanStep, 0, len(t.Steps))
	for _, s := range t.Steps {
		steps = append(steps, workflow.PlanStep{
			ID:         s.ID,
			Name:       s.Name,
			Capability: s.Capability,
			DependsOn:  append([]string(nil), s.DependsOn...),
			Args:       substituteIntent(s.Args, intentText),
			Policy: workflow.StepPolicy{
				Retry:    workflow.DefaultRetryPolicy(),
				Optional: s.Optional,
			},
		})
	}
	return workflow.Plan{
		ID:           planID,
		WorkflowType: t.WorkflowType,
		Steps:        steps,
	}
}

func substituteIntent(args map[string]interface{}, intentText string) map[string]interface{} {
	out := make(map[string]interface{}, len(args))
	for k, v := range args {
		if s, ok := v.(string); ok {
			out[k] = strings.ReplaceAll(s, "{{.Intent}}", intentText)
			continue
		}
		out[k] = v
	}
	return out
}
