package tools

import (
	"context"
	"strings"
	"unicode"
)

// WordCountTool reports word, character, line, and sentence counts for a
// piece of text.
type WordCountTool struct{}

func NewWordCountTool() *WordCountTool {
	return &WordCountTool{}
}

func (t *WordCountTool) Name() string        { return "word_count" }
func (t *WordCountTool) Description() string { return "Count words, characters, lines, and sentences in text" }
func (t *WordCountTool) Category() Category  { return CategoryWriting }

// Read-only, safe to auto-approve.
func (t *WordCountTool) RequiresApproval() bool { return false }

func (t *WordCountTool) ArgumentSchema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"text": map[string]any{"type": "string"},
		},
		"required":             []any{"text"},
		"additionalProperties": false,
	}
}

func (t *WordCountTool) ValidateInput(args map[string]any) bool {
	_, ok := args["text"].(string)
	return ok
}

func (t *WordCountTool) Execute(ctx context.Context, args map[string]any) Result {
	text, _ := args["text"].(string)

	words := len(strings.Fields(text))
	chars := len([]rune(text))

	lines := 0
	if text != "" {
		lines = strings.Count(text, "\n") + 1
	}

	sentences := 0
	for _, r := range text {
		if r == '.' || r == '!' || r == '?' {
			sentences++
		}
	}

	avgWordLen := 0.0
	if words > 0 {
		total := 0
		for _, w := range strings.Fields(text) {
			total += len([]rune(strings.TrimFunc(w, unicode.IsPunct)))
		}
		avgWordLen = float64(total) / float64(words)
	}

	return Result{
		Success: true,
		Result: map[string]any{
			"words":           words,
			"characters":      chars,
			"lines":           lines,
			"sentences":       sentences,
			"avg_word_length": avgWordLen,
		},
	}
}
