// Package gates implements the deterministic quality gates applied to
// generated prompts: v0.1 structural checks (format, completeness) and v0.2
// anti-trampa heuristics (filler, density, repetition, triviality). All gate
// computations are O(n) in output length; no LLM calls.
package gates

import "strings"

// Template names.
const (
	TemplateJSON      = "json"
	TemplateProcedure = "procedure"
	TemplateChecklist = "checklist"
	TemplateExample   = "example"
)

// Template declares gate applicability for one output shape.
type Template struct {
	Name             string
	RequiresJSON     bool
	RequiredSections []string // markdown sections, case-insensitive substring match
	RequiredKeys     []string // JSON top-level keys
	Actionable       bool
	CoverageKeywords []string
}

// builtinTemplates is the fixed template registry.
var builtinTemplates = map[string]Template{
	TemplateJSON: {
		Name:         TemplateJSON,
		RequiresJSON: true,
		RequiredKeys: []string{"role", "directive"},
	},
	TemplateProcedure: {
		Name:             TemplateProcedure,
		Actionable:       true,
		CoverageKeywords: []string{"precondition", "prerequisite", "before", "requires"},
	},
	TemplateChecklist: {
		Name:             TemplateChecklist,
		Actionable:       true,
		CoverageKeywords: []string{"verify", "check", "confirm"},
	},
	TemplateExample: {
		Name: TemplateExample,
	},
}

// ByName returns the named template.
func ByName(name string) (Template, bool) {
	t, ok := builtinTemplates[strings.ToLower(strings.TrimSpace(name))]
	return t, ok
}

// Infer picks the template that matches the output's dominant shape:
// leading { or [ → json, fenced code → example, numbered steps → procedure,
// otherwise checklist when bullets dominate, else procedure.
func Infer(output string) Template {
	trimmed := strings.TrimSpace(output)
	if strings.HasPrefix(trimmed, "{") || strings.HasPrefix(trimmed, "[") {
		return builtinTemplates[TemplateJSON]
	}
	if strings.Contains(output, "```") {
		return builtinTemplates[TemplateExample]
	}
	if len(numberedSteps(output)) >= 2 {
		return builtinTemplates[TemplateProcedure]
	}
	if len(bulletLines(output)) >= 3 {
		return builtinTemplates[TemplateChecklist]
	}
	return builtinTemplates[TemplateProcedure]
}
