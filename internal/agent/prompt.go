package agent

import (
	"fmt"
	"sort"
	"strings"
)

const (
	recentMessages  = 5
	recentReasoning = 3
	recentTools     = 3
)

// buildAgentPrompt assembles the planner prompt from the task, the tool
// catalog, and the tail of the conversation.
func buildAgentPrompt(st *State, catalog map[string][]string) string {
	var b strings.Builder

	b.WriteString("You are a helpful AI assistant with access to various tools.\n\n")
	fmt.Fprintf(&b, "Task: %s\n\n", st.Task)

	b.WriteString("Available Tools:\n")
	categories := make([]string, 0, len(catalog))
	for cat := range catalog {
		categories = append(categories, cat)
	}
	sort.Strings(categories)
	for _, cat := range categories {
		fmt.Fprintf(&b, "- %s: %s\n", cat, strings.Join(catalog[cat], ", "))
	}

	b.WriteString("\nRecent Conversation:\n")
	msgs := st.Messages
	if len(msgs) > recentMessages {
		msgs = msgs[len(msgs)-recentMessages:]
	}
	for _, m := range msgs {
		fmt.Fprintf(&b, "%s: %s\n", m.Role, m.Content)
	}

	b.WriteString(`
Based on the task, determine if you need to use any tools. If so, specify which tools and their parameters in the following format:

TOOL: <tool_name>
PARAMS: <param1=value1, param2=value2>
REASON: <why you need this tool>

If you can answer directly without tools, provide your answer clearly.

Your response:`)

	return b.String()
}

// buildReflectionPrompt assembles the reflection prompt from recent
// reasoning steps, recent tool outcomes, and the iteration counters.
func buildReflectionPrompt(st *State) string {
	var b strings.Builder

	b.WriteString("Reflect on the current progress towards completing this task:\n\n")
	fmt.Fprintf(&b, "Task: %s\n\n", st.Task)

	b.WriteString("Recent Reasoning:\n")
	steps := st.ReasoningSteps
	if len(steps) > recentReasoning {
		steps = steps[len(steps)-recentReasoning:]
	}
	if len(steps) == 0 {
		b.WriteString("No reasoning yet\n")
	} else {
		for _, s := range steps {
			b.WriteString(s)
			b.WriteString("\n")
		}
	}

	b.WriteString("\nRecent Tool Outputs:\n")
	records := st.ToolOutputs
	if len(records) > recentTools {
		records = records[len(records)-recentTools:]
	}
	if len(records) == 0 {
		b.WriteString("No tools used yet\n")
	} else {
		for _, r := range records {
			outcome := "Failed"
			if r.Success {
				outcome = "Success"
			}
			fmt.Fprintf(&b, "- %s: %s\n", r.Tool, outcome)
		}
	}

	fmt.Fprintf(&b, "\nIteration: %d / %d\n", st.Iteration, st.MaxIterations)

	b.WriteString(`
Assess:
1. Are we making progress towards the goal?
2. Do we have enough information to answer?
3. Should we use additional tools or can we provide a final answer?

Provide your confidence level (0.0 to 1.0) and brief reasoning.

Format:
CONFIDENCE: <0.0-1.0>
REASONING: <your assessment>

Your reflection:`)

	return b.String()
}
