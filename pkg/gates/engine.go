package gates

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Severity of a gate evaluation.
type Severity string

const (
	SeverityFail Severity = "FAIL"
	SeverityWarn Severity = "WARN"
	SeveritySkip Severity = "SKIP"
)

// Result is one gate evaluation.
type Result struct {
	GateID   string         `json:"gate_id"`
	Pass     bool           `json:"pass"`
	Severity Severity       `json:"severity"`
	Evidence map[string]any `json:"evidence,omitempty"`
}

// Report is the full evaluation of one output against one template.
// Pass is the conjunction of all active FAIL-severity gates.
type Report struct {
	Template string   `json:"template"`
	Results  []Result `json:"results"`
	Pass     bool     `json:"pass"`
}

// Failures returns the failed FAIL-severity results.
func (r Report) Failures() []Result {
	var out []Result
	for _, res := range r.Results {
		if res.Severity == SeverityFail && !res.Pass {
			out = append(out, res)
		}
	}
	return out
}

// FailureSummary renders the failed gates as a short list for refinement calls.
func (r Report) FailureSummary() string {
	failures := r.Failures()
	if len(failures) == 0 {
		return ""
	}
	var sb strings.Builder
	for _, f := range failures {
		sb.WriteString("- ")
		sb.WriteString(f.GateID)
		for k, v := range f.Evidence {
			sb.WriteString(fmt.Sprintf(" %s=%v", k, v))
		}
		sb.WriteString("\n")
	}
	return strings.TrimRight(sb.String(), "\n")
}

// defaultSeverities per gate id. P2 and E2 ship as WARN; everything else FAIL.
var defaultSeverities = map[string]Severity{
	"format": SeverityFail, "completeness": SeverityFail,
	"A1": SeverityFail, "A2": SeverityFail, "A3": SeverityFail,
	"A4": SeverityFail, "A5": SeverityFail,
	"J1": SeverityFail, "J2": SeverityFail, "J3": SeverityFail,
	"P1": SeverityFail, "P2": SeverityWarn, "P3": SeverityFail,
	"C1": SeverityFail, "C2": SeverityFail,
	"E1": SeverityFail, "E2": SeverityWarn,
}

// Engine evaluates outputs against templates. Severity per gate id is
// configurable; SKIP removes a gate from the overall conjunction.
type Engine struct {
	severities map[string]Severity
}

// NewEngine creates an engine with per-gate severity overrides applied on top
// of the defaults.
func NewEngine(overrides map[string]Severity) *Engine {
	severities := make(map[string]Severity, len(defaultSeverities))
	for id, sev := range defaultSeverities {
		severities[id] = sev
	}
	for id, sev := range overrides {
		severities[id] = sev
	}
	return &Engine{severities: severities}
}

// Evaluate runs every applicable gate over the output.
func (e *Engine) Evaluate(output string, tmpl Template) Report {
	report := Report{Template: tmpl.Name}

	add := func(id string, pass bool, evidence map[string]any) {
		report.Results = append(report.Results, Result{
			GateID:   id,
			Pass:     pass,
			Severity: e.severities[id],
			Evidence: evidence,
		})
	}

	// v0.1 structural tier.
	e.formatGate(output, tmpl, add)
	e.completenessGate(output, tmpl, add)

	// v0.2 anti-trampa core tier.
	e.fillerGate(output, add)
	e.tokenCountGate(output, add)
	e.densityGate(output, add)
	e.repetitionGate(output, add)
	if tmpl.Actionable {
		e.actionVerbGate(output, add)
	}

	// v0.2 template-specific tier.
	switch tmpl.Name {
	case TemplateJSON:
		e.jsonGates(output, tmpl, add)
	case TemplateProcedure:
		e.procedureGates(output, tmpl, add)
	case TemplateChecklist:
		e.checklistGates(output, tmpl, add)
	case TemplateExample:
		e.exampleGates(output, add)
	}

	report.Pass = true
	for _, res := range report.Results {
		if res.Severity == SeverityFail && !res.Pass {
			report.Pass = false
			break
		}
	}
	return report
}

type addFunc func(id string, pass bool, evidence map[string]any)

// formatGate: JSON must parse non-empty; markdown templates must carry every
// declared section; example templates must contain a fenced code block.
// An empty output always fails.
func (e *Engine) formatGate(output string, tmpl Template, add addFunc) {
	trimmed := strings.TrimSpace(output)
	if trimmed == "" {
		add("format", false, map[string]any{"reason": "empty output"})
		return
	}

	if tmpl.RequiresJSON {
		parsed, ok := parseJSONObject(trimmed)
		add("format", ok && len(parsed) > 0, map[string]any{"json_valid": ok})
		return
	}

	if tmpl.Name == TemplateExample {
		hasBlock := len(codeBlocks(output)) > 0
		add("format", hasBlock, map[string]any{"code_blocks": len(codeBlocks(output))})
		return
	}

	lower := strings.ToLower(output)
	var missing []string
	for _, section := range tmpl.RequiredSections {
		if !strings.Contains(lower, strings.ToLower(section)) {
			missing = append(missing, section)
		}
	}
	add("format", len(missing) == 0, map[string]any{"missing_sections": len(missing)})
}

// completenessGate: JSON ≥2 top-level entries; procedure ≥2 numbered steps;
// checklist ≥3 bullets; example needs code plus >50 chars of prose.
func (e *Engine) completenessGate(output string, tmpl Template, add addFunc) {
	switch tmpl.Name {
	case TemplateJSON:
		parsed, ok := parseJSONObject(output)
		add("completeness", ok && len(parsed) >= 2, map[string]any{"entries": len(parsed)})
	case TemplateProcedure:
		steps := numberedSteps(output)
		add("completeness", len(steps) >= 2, map[string]any{"steps": len(steps)})
	case TemplateChecklist:
		bullets := bulletLines(output)
		add("completeness", len(bullets) >= 3, map[string]any{"bullets": len(bullets)})
	case TemplateExample:
		prose := strings.TrimSpace(stripCodeBlocks(output))
		ok := len(codeBlocks(output)) > 0 && len(prose) > 50
		add("completeness", ok, map[string]any{"prose_chars": len(prose)})
	}
}

// A1: ≥2 fillers, or 1 filler in low-density output.
func (e *Engine) fillerGate(output string, add addFunc) {
	fillers := countFillers(output)
	density := contentDensity(output)
	fail := fillers >= 2 || (fillers == 1 && density < 0.35)
	add("A1", !fail, map[string]any{"fillers": fillers})
}

// A2: at least 25 non-trivial tokens.
func (e *Engine) tokenCountGate(output string, add addFunc) {
	count := nonTrivialTokens(output)
	add("A2", count >= 25, map[string]any{"non_trivial_tokens": count})
}

// A3: alphanumeric density at least 0.25.
func (e *Engine) densityGate(output string, add addFunc) {
	density := contentDensity(output)
	add("A3", density >= 0.25, map[string]any{"density": roundTo(density, 3)})
}

// A4: duplicate-line ratio above 30% with at least 6 lines.
func (e *Engine) repetitionGate(output string, add addFunc) {
	ratio, lines := duplicateLineRatio(output)
	fail := lines >= 6 && ratio > 0.30
	add("A4", !fail, map[string]any{"duplicate_ratio": roundTo(ratio, 3), "lines": lines})
}

// A5: at least half of the bullets/steps start with an action verb.
// Vacuously passes when the output has no items; completeness already
// polices missing steps.
func (e *Engine) actionVerbGate(output string, add addFunc) {
	all := items(output)
	if len(all) == 0 {
		add("A5", true, map[string]any{"items": 0})
		return
	}
	actionable := 0
	for _, item := range all {
		if startsWithActionVerb(item) {
			actionable++
		}
	}
	ratio := float64(actionable) / float64(len(all))
	add("A5", ratio >= 0.5, map[string]any{"action_ratio": roundTo(ratio, 3)})
}

// jsonGates: J1 empty-value ratio, J2 trivial strings, J3 required keys.
func (e *Engine) jsonGates(output string, tmpl Template, add addFunc) {
	parsed, ok := parseJSONObject(output)
	if !ok {
		add("J1", false, map[string]any{"reason": "not parseable"})
		add("J2", false, map[string]any{"reason": "not parseable"})
		add("J3", false, map[string]any{"reason": "not parseable"})
		return
	}

	empty, trivial, total := 0, 0, 0
	for _, v := range parsed {
		total++
		if isEmptyValue(v) {
			empty++
		}
		if s, isStr := v.(string); isStr && trivialValues[strings.ToLower(strings.TrimSpace(s))] {
			trivial++
		}
	}

	requiredEmpty := false
	var missing []string
	for _, key := range tmpl.RequiredKeys {
		v, present := parsed[key]
		if !present {
			missing = append(missing, key)
			continue
		}
		if isEmptyValue(v) {
			requiredEmpty = true
		}
	}

	emptyRatio := 0.0
	trivialRatio := 0.0
	if total > 0 {
		emptyRatio = float64(empty) / float64(total)
		trivialRatio = float64(trivial) / float64(total)
	}

	add("J1", emptyRatio <= 0.30 && !requiredEmpty,
		map[string]any{"empty_ratio": roundTo(emptyRatio, 3), "required_empty": requiredEmpty})
	add("J2", trivialRatio <= 0.25, map[string]any{"trivial_ratio": roundTo(trivialRatio, 3)})
	add("J3", len(missing) == 0, map[string]any{"missing_keys": len(missing)})
}

// procedureGates: P1 step non-triviality, P2 step uniqueness, P3 preconditions.
func (e *Engine) procedureGates(output string, tmpl Template, add addFunc) {
	steps := numberedSteps(output)

	weak := 0
	for _, step := range steps {
		if step == "" || !containsActionVerb(step) {
			weak++
		}
	}
	weakRatio := 0.0
	if len(steps) > 0 {
		weakRatio = float64(weak) / float64(len(steps))
	}
	add("P1", len(steps) > 0 && weakRatio <= 0.20, map[string]any{"weak_ratio": roundTo(weakRatio, 3)})

	nearDuplicates := 0
	for i := 0; i < len(steps); i++ {
		for j := i + 1; j < len(steps); j++ {
			if jaccardSimilarity(steps[i], steps[j]) >= 0.85 {
				nearDuplicates++
			}
		}
	}
	add("P2", nearDuplicates == 0, map[string]any{"near_duplicate_pairs": nearDuplicates})

	if len(tmpl.CoverageKeywords) > 0 {
		add("P3", countCoverageHits(output, tmpl.CoverageKeywords) > 0,
			map[string]any{"coverage_keywords": len(tmpl.CoverageKeywords)})
	}
}

// checklistGates: C1 bullet specificity, C2 coverage minimum.
func (e *Engine) checklistGates(output string, tmpl Template, add addFunc) {
	bullets := bulletLines(output)

	vague := 0
	for _, bullet := range bullets {
		if !hasTechnicalTerm(bullet) {
			vague++
		}
	}
	vagueRatio := 0.0
	if len(bullets) > 0 {
		vagueRatio = float64(vague) / float64(len(bullets))
	}
	add("C1", len(bullets) > 0 && vagueRatio <= 0.30, map[string]any{"vague_ratio": roundTo(vagueRatio, 3)})

	if len(tmpl.CoverageKeywords) > 0 {
		missing := len(tmpl.CoverageKeywords) - countCoverageHits(output, tmpl.CoverageKeywords)
		add("C2", missing <= 1, map[string]any{"missing_coverage": missing})
	}
}

// exampleGates: E1 non-trivial code, E2 code/explanation linkage.
func (e *Engine) exampleGates(output string, add addFunc) {
	blocks := codeBlocks(output)
	if len(blocks) == 0 {
		add("E1", false, map[string]any{"reason": "no code block"})
		return
	}

	codeLines := 0
	hasConstructs := false
	var entities []string
	for _, block := range blocks {
		codeLines += nonCommentCodeLines(block)
		if codeConstructRe.MatchString(block) {
			hasConstructs = true
		}
		entities = append(entities, namedEntities(block)...)
	}
	add("E1", codeLines >= 6 && hasConstructs,
		map[string]any{"code_lines": codeLines, "has_constructs": hasConstructs})

	if len(entities) > 0 {
		prose := stripCodeBlocks(output)
		linked := false
		for _, entity := range entities {
			if strings.Contains(prose, entity) {
				linked = true
				break
			}
		}
		add("E2", linked, map[string]any{"entities": len(entities)})
	}
}

func parseJSONObject(text string) (map[string]any, bool) {
	var parsed map[string]any
	if err := json.Unmarshal([]byte(strings.TrimSpace(text)), &parsed); err != nil {
		return nil, false
	}
	return parsed, true
}

func isEmptyValue(v any) bool {
	switch x := v.(type) {
	case nil:
		return true
	case string:
		return strings.TrimSpace(x) == ""
	case []any:
		return len(x) == 0
	case map[string]any:
		return len(x) == 0
	default:
		return false
	}
}

func containsActionVerb(text string) bool {
	for _, tok := range tokenizeWords(text) {
		if actionVerbs[tok] {
			return true
		}
	}
	return false
}

func countCoverageHits(output string, keywords []string) int {
	lower := strings.ToLower(output)
	hits := 0
	for _, kw := range keywords {
		if strings.Contains(lower, strings.ToLower(kw)) {
			hits++
		}
	}
	return hits
}

func roundTo(f float64, digits int) float64 {
	scale := 1.0
	for i := 0; i < digits; i++ {
		scale *= 10
	}
	return float64(int(f*scale+0.5)) / scale
}
