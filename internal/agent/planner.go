package agent

import "context"

// GenerateOptions are sampling parameters for a planner call.
type GenerateOptions struct {
	MaxNewTokens int
	Temperature  float64
	TopP         float64
	DoSample     bool
}

// Planner is the language model consumed as a black box. Generate must be
// synchronous from the loop's perspective; callers that need a responsive UI
// run the whole loop on a worker goroutine instead.
type Planner interface {
	Generate(ctx context.Context, prompt string, opts GenerateOptions) (string, error)
}
