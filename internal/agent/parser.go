package agent

import (
	"strconv"
	"strings"
)

// Planner output is adversarial, unreliable text, so the TOOL:/PARAMS:/
// REASON: block format is parsed with a small line-oriented state machine
// rather than regular expressions. A call starts at a TOOL: line and
// accumulates PARAMS:/REASON: lines until the next TOOL: or end of text;
// everything outside blocks is reasoning / candidate final answer.

// ParseToolCalls extracts tool call blocks from a planner response and
// returns them along with the remaining free text.
func ParseToolCalls(response string) ([]ToolCallRequest, string) {
	var (
		calls     []ToolCallRequest
		current   *ToolCallRequest
		reasoning []string
	)

	flush := func() {
		if current != nil {
			calls = append(calls, *current)
			current = nil
		}
	}

	for _, line := range strings.Split(response, "\n") {
		trimmed := strings.TrimSpace(line)
		switch {
		case strings.HasPrefix(trimmed, "TOOL:"):
			flush()
			name := strings.TrimSpace(strings.TrimPrefix(trimmed, "TOOL:"))
			if name == "" {
				continue
			}
			current = &ToolCallRequest{
				Tool:   name,
				Params: make(map[string]any),
			}
		case strings.HasPrefix(trimmed, "PARAMS:") && current != nil:
			parseParams(strings.TrimSpace(strings.TrimPrefix(trimmed, "PARAMS:")), current.Params)
		case strings.HasPrefix(trimmed, "REASON:") && current != nil:
			current.Reason = strings.TrimSpace(strings.TrimPrefix(trimmed, "REASON:"))
		default:
			// Free text is reasoning wherever it appears, before or after
			// a tool block.
			reasoning = append(reasoning, line)
		}
	}
	flush()

	return calls, strings.TrimSpace(strings.Join(reasoning, "\n"))
}

// parseParams splits a parameter line on top-level commas, then each piece
// on the first '='. Pieces without '=' are silently skipped — a malformed
// parameter never invalidates the whole block.
func parseParams(s string, out map[string]any) {
	for _, part := range splitTopLevel(s, ',') {
		key, value, ok := strings.Cut(part, "=")
		if !ok {
			continue
		}
		key = strings.TrimSpace(key)
		if key == "" {
			continue
		}
		out[key] = coerceValue(strings.TrimSpace(value))
	}
}

// splitTopLevel splits s on sep, ignoring separators inside quotes or
// brackets so values like lists and quoted strings survive intact.
func splitTopLevel(s string, sep rune) []string {
	var (
		parts   []string
		start   int
		depth   int
		inQuote rune
	)

	for i, r := range s {
		switch {
		case inQuote != 0:
			if r == inQuote {
				inQuote = 0
			}
		case r == '"' || r == '\'':
			inQuote = r
		case r == '(' || r == '[' || r == '{':
			depth++
		case r == ')' || r == ']' || r == '}':
			if depth > 0 {
				depth--
			}
		case r == sep && depth == 0:
			parts = append(parts, s[start:i])
			start = i + len(string(r))
		}
	}
	parts = append(parts, s[start:])
	return parts
}

// coerceValue converts numeric and boolean literals to typed values so
// schema-validated tools see integers as integers. Quoted strings keep
// their text without the quotes.
func coerceValue(s string) any {
	if len(s) >= 2 {
		if (s[0] == '"' && s[len(s)-1] == '"') || (s[0] == '\'' && s[len(s)-1] == '\'') {
			return s[1 : len(s)-1]
		}
	}
	if i, err := strconv.Atoi(s); err == nil {
		return i
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return f
	}
	if b, err := strconv.ParseBool(s); err == nil {
		return b
	}
	return s
}

// ExtractConfidence finds a CONFIDENCE: line in reflection text and returns
// its value clamped to [0, 1]. Absent or malformed lines yield the neutral
// default of 0.5 so the loop can still make a termination decision.
func ExtractConfidence(reflection string) float64 {
	for _, line := range strings.Split(reflection, "\n") {
		trimmed := strings.TrimSpace(line)
		if !strings.HasPrefix(trimmed, "CONFIDENCE:") {
			continue
		}
		raw := strings.TrimSpace(strings.TrimPrefix(trimmed, "CONFIDENCE:"))
		if fields := strings.Fields(raw); len(fields) > 0 {
			raw = fields[0]
		}
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			continue
		}
		return clamp01(v)
	}
	return 0.5
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
