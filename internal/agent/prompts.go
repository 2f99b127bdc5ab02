package agent

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/MimeLyc/taskagent/internal/tools"
)

const promptResultLimit = 4000

func planPrompt(s *State, registry *tools.Registry, terminal string) string {
	var sb strings.Builder
	sb.WriteString(`As master planner, create and refine a plan of action that leads to the final answer.
We are inside a loop. Plan only; the next stages pick and run the tools.

The plan must start with 1-3 sentences of thinking that name the tools you need,
followed by a bullet list of steps in the form tool: note.

<rules>
- Be concise. Make every word count.
- Name tools exactly as listed in available_tools.
- Keep [[PLACEHOLDER]] markers as they are.
- Build on existing_plan and actions_taken. Do not repeat an action without a reason.
`)
	fmt.Fprintf(&sb, "- When the answer is known, plan to call %s.\n", terminal)
	if name := LanguageName(s.Language); name != "" {
		fmt.Fprintf(&sb, "- The task is written in %s. Keep names and quotes in that language.\n", name)
	}
	sb.WriteString("</rules>\n\n")

	writeSection(&sb, "available_tools", toolSummaries(registry))
	writeSection(&sb, "existing_plan", existingPlan(s))
	writeSection(&sb, "actions_taken", formatActions(s.Actions, true))
	fmt.Fprintf(&sb, "Step %d of %d. Write the plan now.\n", s.CurrentStep, s.MaxSteps)
	return sb.String()
}

func decidePrompt(s *State, registry *tools.Registry, terminal string) string {
	var sb strings.Builder
	sb.WriteString(`As a strategist, pick the single next tool that brings us closer to the final answer.

Answer with one JSON object and nothing else:
{"_thoughts": "1-3 sentences about why this tool", "tool": "exact tool name"}

<rules>
- Answer with JSON only. No markdown.
- The tool must be one of available_tools.
`)
	fmt.Fprintf(&sb, "- When the answer is known, pick %s.\n", terminal)
	sb.WriteString("</rules>\n\n")

	writeSection(&sb, "available_tools", toolSummaries(registry))
	writeSection(&sb, "existing_plan", existingPlan(s))
	writeSection(&sb, "actions_taken", formatActions(s.Actions, true))
	fmt.Fprintf(&sb, "Step %d of %d.", s.CurrentStep, s.MaxSteps)
	if s.CurrentStep == s.MaxSteps {
		fmt.Fprintf(&sb, " This is the last step; prefer %s if you can answer.", terminal)
	}
	sb.WriteString("\n")
	return sb.String()
}

func describePrompt(s *State, spec tools.Spec) string {
	var sb strings.Builder
	sb.WriteString(`Your only task is to write the JSON input for the tool below.
Answer with a single JSON object: start with '{', end with '}', escape special characters.
Include only the parameters the tool declares. Take values from existing_plan and actions_taken,
and learn from previous results to avoid repeating mistakes.
As the first property include "_thoughts" with 1-3 sentences about the values you chose.

`)
	writeSection(&sb, "instruction", spec.Instruction())
	writeSection(&sb, "existing_plan", existingPlan(s))
	writeSection(&sb, "actions_taken", formatActions(s.Actions, true))
	return sb.String()
}

func reflectPrompt(s *State, registry *tools.Registry, last *ActionRecord) string {
	var sb strings.Builder
	sb.WriteString(`Reflect on the action that was just performed. Write a short self-note:
did the result move us towards the final answer, what did we learn, what should the next step take into account?
Keep every detail the next stages need; anything you leave out is lost.
Answer with plain text.

`)
	writeSection(&sb, "available_tools", toolSummaries(registry))
	writeSection(&sb, "existing_plan", existingPlan(s))
	if spec, ok := registry.Spec(last.Name); ok {
		writeSection(&sb, "latest_tool", spec.Instruction())
	}
	writeSection(&sb, "latest_action", formatAction(last, false))
	return sb.String()
}

func writeSection(sb *strings.Builder, tag, body string) {
	fmt.Fprintf(sb, "<%s>\n%s\n</%s>\n\n", tag, strings.TrimRight(body, "\n"), tag)
}

func existingPlan(s *State) string {
	if strings.TrimSpace(s.Plan) == "" {
		return "No plan yet. You need to create one."
	}
	return s.Plan
}

func toolSummaries(registry *tools.Registry) string {
	var sb strings.Builder
	for _, spec := range registry.Specs() {
		fmt.Fprintf(&sb, "- %s: %s\n", spec.Name, firstLine(spec.Description))
	}
	return sb.String()
}

func formatActions(actions []*ActionRecord, withReflection bool) string {
	if len(actions) == 0 {
		return "No actions taken yet."
	}
	blocks := make([]string, len(actions))
	for i, a := range actions {
		blocks[i] = formatAction(a, withReflection)
	}
	return strings.Join(blocks, "\n")
}

func formatAction(a *ActionRecord, withReflection bool) string {
	var sb strings.Builder
	sb.WriteString("<action>\n")
	fmt.Fprintf(&sb, "<step>%d</step>\n", a.Step)
	fmt.Fprintf(&sb, "<name>%s</name>\n", a.Name)
	fmt.Fprintf(&sb, "<payload>%s</payload>\n", a.Payload.JSON())
	status := "ok"
	if a.Result.IsError {
		status = "error"
	}
	fmt.Fprintf(&sb, "<result status=%q>%s</result>\n", status, clip(a.Result.Content, promptResultLimit))
	if withReflection && a.Reflection != "" {
		fmt.Fprintf(&sb, "<reflection>%s</reflection>\n", a.Reflection)
	}
	sb.WriteString("</action>")
	return sb.String()
}

func firstLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}

func clip(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	for limit > 0 && !utf8.RuneStart(s[limit]) {
		limit--
	}
	return s[:limit] + "...[truncated]"
}
