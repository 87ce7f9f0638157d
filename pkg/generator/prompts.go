package generator

import (
	"strconv"
	"strings"

	"github.com/promptforge-dev/promptforge/pkg/models"
)

const systemInstructions = `You are a prompt engineer. You transform raw, terse user ideas into structured, production-grade prompts for downstream LLM consumption.

Respond with a single JSON object and nothing else. The object must have these keys:
- "improved_prompt": the full rendered prompt text
- "role": the role the prompt assigns to the model
- "directive": the core instruction of the prompt
- "framework": one of "chain-of-thought", "tree-of-thoughts", "decomposition", "role-playing"
- "guardrails": a JSON array of explicit constraints (at least one)
- "reasoning": optionally, a short note on your choices
- "confidence": optionally, a number between 0 and 1`

const refinementInstructions = `Quality gates rejected the previous prompt. Produce a revised prompt that addresses every listed failure while preserving the intent of the idea. Respond with the same JSON object format.`

const reflexionInstructions = `Before revising, critique the previous prompt: identify what made it fail the listed checks and what a debugging expert would need that it lacks. Then produce the revised prompt. Respond with the same JSON object format; put the critique in the "reasoning" key.`

// formatIdeaSection builds the raw-idea section of the user message.
func formatIdeaSection(rawIdea, context string) string {
	var sb strings.Builder
	sb.WriteString("## Idea\n")
	sb.WriteString(rawIdea)
	sb.WriteString("\n")
	if context != "" {
		sb.WriteString("\n## Context\n")
		sb.WriteString(context)
		sb.WriteString("\n")
	}
	return sb.String()
}

// formatDemoSection renders retrieved exemplars as demonstrations.
func formatDemoSection(demos []models.Example) string {
	if len(demos) == 0 {
		return ""
	}

	var sb strings.Builder
	sb.WriteString("## Demonstrations\n")
	sb.WriteString("Prior ideas and the structured prompts they became:\n\n")
	for i, demo := range demos {
		sb.WriteString("### Example ")
		sb.WriteString(strconv.Itoa(i + 1))
		sb.WriteString("\n**Idea:** ")
		sb.WriteString(demo.OriginalIdea)
		sb.WriteString("\n**Improved prompt:** ")
		sb.WriteString(demo.ImprovedPrompt)
		sb.WriteString("\n**Framework:** ")
		sb.WriteString(string(demo.Framework))
		if len(demo.Guardrails) > 0 {
			sb.WriteString("\n**Guardrails:** ")
			sb.WriteString(strings.Join(demo.Guardrails, "; "))
		}
		sb.WriteString("\n\n")
	}
	return sb.String()
}

// formatRefinementSection carries the prior candidate and its gate failures
// into an optimization or reflexion call.
func formatRefinementSection(prior, failures string) string {
	var sb strings.Builder
	sb.WriteString("## Previous Prompt\n")
	sb.WriteString(prior)
	sb.WriteString("\n\n## Failed Checks\n")
	if failures == "" {
		sb.WriteString("No specific failures recorded.\n")
	} else {
		sb.WriteString(failures)
		sb.WriteString("\n")
	}
	return sb.String()
}

// buildMessages assembles the conversation for one generation call.
func buildMessages(in Input) (system string, user string) {
	system = systemInstructions
	var sb strings.Builder

	if in.Refinement != nil {
		if in.Refinement.Reflexive {
			system = systemInstructions + "\n\n" + reflexionInstructions
		} else {
			system = systemInstructions + "\n\n" + refinementInstructions
		}
		sb.WriteString(formatRefinementSection(in.Refinement.PriorPrompt, in.Refinement.GateFailures))
		sb.WriteString("\n")
	}

	if demos := formatDemoSection(in.Demos); demos != "" {
		sb.WriteString(demos)
	}
	sb.WriteString(formatIdeaSection(in.RawIdea, in.Context))

	return system, sb.String()
}
