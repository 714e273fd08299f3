// Package intent is the Intent Parser Adapter (spec §4.4). It does not
// itself perform natural-language understanding — that is explicitly
// out of scope (spec.md §1) — but maps free-text intent plus an
// optional workflow-type hint onto one of a small library of built-in
// workflow templates, each of which expands into a concrete,
// already-validated workflow.Plan.
//
// Templates are loaded the way the teacher loads ServiceClass/Capability
// YAML documents (internal/config/loader.go, gopkg.in/yaml.v3): plain
// structs with yaml tags, unmarshalled from embedded documents. Matching
// free text against a template uses simple trigger-phrase containment —
// a stand-in for the real Intent Parser service (spec.md §2, component
// C), which this adapter is a thin wrapper around.
package intent
