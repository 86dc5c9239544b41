// Package approval implements the human-in-the-loop gateway that decides,
// executes, and records the planner's proposed tool calls.
package approval

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/abstraction-ai/bastion/internal/agent"
	"github.com/abstraction-ai/bastion/internal/tools"
)

// Callback asks an external decider (typically a human) whether a single
// proposed tool call may run. It is invoked synchronously; the gateway has
// no timeout of its own, so a hanging callback hangs the run. An approval
// UI that needs a deadline must enforce it inside the callback.
type Callback func(call agent.ToolCallRequest) bool

// Gateway drains the pending-approvals queue: every queued call is either
// approved and executed through the registry, or rejected and reported back
// to the conversation. The queue is always empty when Process returns.
type Gateway struct {
	registry            *tools.Registry
	callback            Callback
	autoApproveReadOnly bool
	logger              *zap.Logger
}

// NewGateway builds a gateway. A nil callback means every call that is not
// auto-approved falls through to the fail-open default: approve with a
// warning. That default exists for headless and test environments; callers
// that mediate real side effects should always configure a callback.
func NewGateway(registry *tools.Registry, callback Callback, autoApproveReadOnly bool, logger *zap.Logger) *Gateway {
	return &Gateway{
		registry:            registry,
		callback:            callback,
		autoApproveReadOnly: autoApproveReadOnly,
		logger:              logger,
	}
}

// Process decides every pending call, executes the approved ones in enqueue
// order, and clears the queue unconditionally. Rejected calls are never
// executed; their names are surfaced to the planner as a system message.
func (g *Gateway) Process(ctx context.Context, st *agent.State) {
	g.logger.Info("processing pending approvals",
		zap.Int("count", len(st.PendingApprovals)),
	)

	var approved []agent.ToolCallRequest
	var rejectedNames []string

	for _, call := range st.PendingApprovals {
		tool, ok := g.registry.Get(call.Tool)
		if !ok {
			// Unknown tools are an implicit rejection, not an error.
			g.logger.Warn("unknown tool in approval queue", zap.String("tool", call.Tool))
			rejectedNames = append(rejectedNames, call.Tool)
			continue
		}

		switch {
		case g.autoApproveReadOnly && !tool.RequiresApproval():
			g.logger.Info("auto-approved read-only tool", zap.String("tool", call.Tool))
			approved = append(approved, call)
			st.ApprovedTools = append(st.ApprovedTools, call.Tool)

		case g.callback != nil:
			if g.callback(call) {
				g.logger.Info("human approved tool", zap.String("tool", call.Tool))
				approved = append(approved, call)
				st.ApprovedTools = append(st.ApprovedTools, call.Tool)
			} else {
				g.logger.Info("human rejected tool", zap.String("tool", call.Tool))
				rejectedNames = append(rejectedNames, call.Tool)
			}

		default:
			g.logger.Warn("no approval callback configured, defaulting to approval",
				zap.String("tool", call.Tool),
			)
			approved = append(approved, call)
			st.ApprovedTools = append(st.ApprovedTools, call.Tool)
		}
	}

	for _, call := range approved {
		g.execute(ctx, st, call)
	}

	st.PendingApprovals = nil

	if len(rejectedNames) > 0 {
		st.AddMessage("system", "The following tools were rejected: "+strings.Join(rejectedNames, ", "))
	}
}

// execute runs one approved call through the gateway's registry and records
// the outcome on the state. Registry failures come back as failed results,
// not errors, so the record is appended either way.
func (g *Gateway) execute(ctx context.Context, st *agent.State, call agent.ToolCallRequest) {
	g.logger.Info("executing approved tool",
		zap.String("tool", call.Tool),
		zap.Any("params", call.Params),
	)

	result := g.registry.Execute(ctx, call.Tool, call.Params, true)

	st.ToolOutputs = append(st.ToolOutputs, agent.ToolRecord{
		Tool:    call.Tool,
		Params:  call.Params,
		Output:  result,
		Success: result.Success,
	})
	st.ToolsUsed = append(st.ToolsUsed, call.Tool)

	if result.Success {
		st.AddMessage("tool", "Tool "+call.Tool+" output: "+resultText(result))
	} else {
		st.AddMessage("tool", "Tool "+call.Tool+" failed: "+result.Error)
	}
}

func resultText(res tools.Result) string {
	if s, ok := res.Result.(string); ok {
		return s
	}
	if res.Result == nil {
		return ""
	}
	return fmt.Sprintf("%v", res.Result)
}
