package agent

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/abstraction-ai/bastion/internal/tools"
)

// stage names the control loop's states.
type stage int

const (
	stageAgent stage = iota + 1
	stageApproval
	stageReasoning
	stageEnd
)

// Approver processes the pending approval queue: decides each queued call,
// executes the approved ones, and leaves the queue empty.
type Approver interface {
	Process(ctx context.Context, st *State)
}

// Catalog supplies the tool listing used in planner prompts.
type Catalog interface {
	Catalog() map[string][]string
}

// LoopConfig holds the control loop's tunables.
type LoopConfig struct {
	MaxIterations int
	MinConfidence float64
	MaxNewTokens  int
	Temperature   float64
	TopP          float64
}

// DefaultLoopConfig mirrors the application defaults.
func DefaultLoopConfig() LoopConfig {
	return LoopConfig{
		MaxIterations: 5,
		MinConfidence: 0.7,
		MaxNewTokens:  512,
		Temperature:   0.7,
		TopP:          0.9,
	}
}

// Loop drives the planner/approval/reflection cycle. One run is strictly
// sequential: each stage completes and mutates the state before the next
// begins. Callers must not start concurrent runs for the same session.
type Loop struct {
	planner  Planner
	approver Approver
	catalog  Catalog
	cfg      LoopConfig
	logger   *zap.Logger
}

// NewLoop wires the loop's collaborators.
func NewLoop(planner Planner, approver Approver, catalog Catalog, cfg LoopConfig, logger *zap.Logger) *Loop {
	if cfg.MaxIterations <= 0 {
		cfg.MaxIterations = DefaultLoopConfig().MaxIterations
	}
	return &Loop{
		planner:  planner,
		approver: approver,
		catalog:  catalog,
		cfg:      cfg,
		logger:   logger,
	}
}

// Run executes the loop for one task and returns the final state.
// Termination is guaranteed: the iteration count strictly increases and
// both routing functions end the run once it reaches MaxIterations.
func (l *Loop) Run(ctx context.Context, task string) (*State, error) {
	st := NewState(task, uuid.New().String(), l.cfg.MaxIterations)

	l.logger.Info("starting agent run",
		zap.String("session_id", st.SessionID),
		zap.String("task", task),
		zap.Int("max_iterations", l.cfg.MaxIterations),
	)

	current := stageAgent
	for current != stageEnd {
		if err := ctx.Err(); err != nil {
			st.Errors = append(st.Errors, fmt.Sprintf("run cancelled: %v", err))
			break
		}

		switch current {
		case stageAgent:
			l.runAgentStage(ctx, st)
			current = l.routeAfterAgent(st)
		case stageApproval:
			l.approver.Process(tools.WithSession(ctx, st.SessionID), st)
			current = stageReasoning
		case stageReasoning:
			l.runReasoningStage(ctx, st)
			current = l.routeAfterReasoning(st)
		}
	}

	l.logger.Info("agent run finished",
		zap.String("session_id", st.SessionID),
		zap.Int("iterations", st.Iteration),
		zap.Float64("confidence", st.Confidence),
		zap.Bool("has_answer", st.FinalAnswer != ""),
		zap.Int("errors", len(st.Errors)),
	)

	return st, nil
}

// runAgentStage asks the planner for the next move and parses tool calls
// out of the free-text response.
func (l *Loop) runAgentStage(ctx context.Context, st *State) {
	prompt := buildAgentPrompt(st, l.catalog.Catalog())

	response, err := l.planner.Generate(ctx, prompt, GenerateOptions{
		MaxNewTokens: l.cfg.MaxNewTokens,
		Temperature:  l.cfg.Temperature,
		TopP:         l.cfg.TopP,
		DoSample:     true,
	})
	if err != nil {
		l.logger.Error("planner call failed", zap.Error(err))
		st.Errors = append(st.Errors, fmt.Sprintf("agent stage: %v", err))
		return
	}

	calls, reasoning := ParseToolCalls(response)

	st.AddMessage("assistant", response)
	if reasoning != "" {
		st.ReasoningSteps = append(st.ReasoningSteps, reasoning)
	}

	if len(calls) > 0 {
		st.PendingApprovals = append(st.PendingApprovals, calls...)
		l.logger.Info("planner requested tool calls",
			zap.Int("count", len(calls)),
		)
	} else {
		st.FinalAnswer = response
	}

	st.Iteration++
}

func (l *Loop) routeAfterAgent(st *State) stage {
	if len(st.PendingApprovals) > 0 {
		return stageApproval
	}
	// A candidate final answer is validated by reflection before we trust it.
	if st.FinalAnswer != "" {
		return stageReasoning
	}
	if st.Iteration >= st.MaxIterations {
		return stageEnd
	}
	return stageReasoning
}

// runReasoningStage reflects on progress at low temperature and records the
// planner's self-assessed confidence.
func (l *Loop) runReasoningStage(ctx context.Context, st *State) {
	prompt := buildReflectionPrompt(st)

	reflection, err := l.planner.Generate(ctx, prompt, GenerateOptions{
		MaxNewTokens: 256,
		Temperature:  0.3,
		TopP:         l.cfg.TopP,
		DoSample:     true,
	})
	if err != nil {
		l.logger.Error("reflection call failed", zap.Error(err))
		st.Errors = append(st.Errors, fmt.Sprintf("reasoning stage: %v", err))
		st.Confidence = 0.5 // neutral default keeps the termination decision possible
		return
	}

	st.Confidence = ExtractConfidence(reflection)
	st.ReasoningSteps = append(st.ReasoningSteps, "Reflection: "+reflection)
	st.AddMessage("system", fmt.Sprintf("Reflection (confidence: %.2f): %s", st.Confidence, reflection))

	l.logger.Info("reflection complete",
		zap.Float64("confidence", st.Confidence),
		zap.Int("iteration", st.Iteration),
	)
}

func (l *Loop) routeAfterReasoning(st *State) stage {
	if st.Confidence >= l.cfg.MinConfidence {
		return stageEnd
	}
	if st.Iteration >= st.MaxIterations {
		return stageEnd
	}
	if len(st.Errors) > 0 {
		return stageEnd
	}
	return stageAgent
}
