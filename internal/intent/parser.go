package intent

import (
	"context"
	"fmt"
	"strings"

	"github.com/giantswarm/fedctl/internal/workflow"
)

// CapabilityKnower reports whether any registered MCP declares a given
// capability tag — the Intent Parser Adapter refuses to hand the Engine
// a plan that would deadlock on an unservable step.
type CapabilityKnower interface {
	HasCapability(tag string) bool
}

// Adapter is the Intent Parser Adapter (spec §4.4).
type Adapter struct {
	templates []template
	knower    CapabilityKnower
}

// NewAdapter loads the built-in templates and wires capability
// validation against knower.
func NewAdapter(knower CapabilityKnower) (*Adapter, error) {
	templates, err := loadBuiltinTemplates()
	if err != nil {
		return nil, err
	}
	return &Adapter{templates: templates, knower: knower}, nil
}

// Parse turns intentText (plus an optional workflow-type hint) into a
// validated Plan, or a *ParseError explaining why it could not.
func (a *Adapter) Parse(_ context.Context, planID, intentText, workflowTypeHint string) (workflow.Plan, error) {
	tmpl, err := a.resolveTemplate(intentText, workflowTypeHint)
	if err != nil {
		return workflow.Plan{}, err
	}

	plan := tmpl.expand(planID, intentText)

	if err := plan.Validate(); err != nil {
		return workflow.Plan{}, newParseError(Invalid, err.Error())
	}

	if unknown := a.firstUnknownCapability(plan); unknown != "" {
		return workflow.Plan{}, newParseError(Invalid, fmt.Sprintf("capability %q is not declared by any registered MCP", unknown))
	}

	return plan, nil
}

func (a *Adapter) resolveTemplate(intentText, hint string) (template, error) {
	if hint != "" {
		for _, t := range a.templates {
			if t.WorkflowType == hint {
				return t, nil
			}
		}
		return template{}, newParseError(Unsupported, fmt.Sprintf("no template registered for workflow_type %q", hint))
	}

	var matched []template
	for _, t := range a.templates {
		if t.matches(intentText) {
			matched = append(matched, t)
		}
	}

	switch len(matched) {
	case 0:
		return template{}, newParseError(Unsupported, "no known plan template matches this intent; supply a workflow_type hint")
	case 1:
		return matched[0], nil
	default:
		types := make([]string, len(matched))
		for i, t := range matched {
			types[i] = t.WorkflowType
		}
		return template{}, newParseError(Ambiguous, fmt.Sprintf("intent matches multiple templates (%s); supply a workflow_type hint", strings.Join(types, ", ")))
	}
}

func (a *Adapter) firstUnknownCapability(plan workflow.Plan) string {
	if a.knower == nil {
		return ""
	}
	for _, step := range plan.Steps {
		if !a.knower.HasCapability(step.Capability) {
			return step.Capability
		}
	}
	return ""
}
