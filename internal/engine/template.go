package engine

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"text/template"

	"github.com/giantswarm/fedctl/internal/workflow"
)

// buildStepsContext exposes every step's outcome to template
// resolution, keyed by step id: {"result": <decoded JSON or nil>,
// "unavailable": bool}. A step that has not yet succeeded is
// "unavailable" — this is the sentinel dependents see when an upstream
// optional step failed, per spec §4.6 "Step outcome handling".
func buildStepsContext(wf *workflow.Workflow) map[string]interface{} {
	steps := make(map[string]interface{}, len(wf.Steps))
	for id, rec := range wf.Steps {
		entry := map[string]interface{}{"result": nil, "unavailable": true}
		if rec.State == workflow.StepSucceeded {
			var result interface{}
			if len(rec.Result) > 0 {
				_ = json.Unmarshal(rec.Result, &result)
			}
			entry["result"] = result
			entry["unavailable"] = false
		}
		steps[id] = entry
	}
	return steps
}

// resolveArgs resolves every {{ ... }} template placeholder in args
// against tmplCtx, grounded on the teacher's
// WorkflowExecutor.resolveArguments/resolveValue.
func resolveArgs(args map[string]interface{}, tmplCtx map[string]interface{}) (map[string]interface{}, error) {
	resolved := make(map[string]interface{}, len(args))
	for key, value := range args {
		rv, err := resolveValue(value, tmplCtx)
		if err != nil {
			return nil, fmt.Errorf("resolving argument %q: %w", key, err)
		}
		resolved[key] = rv
	}
	return resolved, nil
}

func resolveValue(value interface{}, tmplCtx map[string]interface{}) (interface{}, error) {
	switch v := value.(type) {
	case string:
		if strings.Contains(v, "{{") && strings.Contains(v, "}}") {
			return resolveTemplateString(v, tmplCtx)
		}
		return v, nil
	case map[string]interface{}:
		out := make(map[string]interface{}, len(v))
		for k, val := range v {
			rv, err := resolveValue(val, tmplCtx)
			if err != nil {
				return nil, err
			}
			out[k] = rv
		}
		return out, nil
	case []interface{}:
		out := make([]interface{}, len(v))
		for i, val := range v {
			rv, err := resolveValue(val, tmplCtx)
			if err != nil {
				return nil, err
			}
			out[i] = rv
		}
		return out, nil
	default:
		return value, nil
	}
}

func resolveTemplateString(s string, tmplCtx map[string]interface{}) (interface{}, error) {
	tmpl, err := template.New("arg").Option("missingkey=error").Parse(s)
	if err != nil {
		return nil, fmt.Errorf("invalid template %q: %w", s, err)
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, tmplCtx); err != nil {
		return nil, fmt.Errorf("executing template %q: %w", s, err)
	}

	result := buf.String()
	var jsonResult interface{}
	if err := json.Unmarshal([]byte(result), &jsonResult); err == nil {
		return jsonResult, nil
	}
	return result, nil
}
