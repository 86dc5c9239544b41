package approval

import (
	"context"
	"strings"
	"testing"

	"go.uber.org/zap"

	"github.com/abstraction-ai/bastion/internal/agent"
	"github.com/abstraction-ai/bastion/internal/firewall"
	"github.com/abstraction-ai/bastion/internal/tools"
)

// gwTool is a minimal tool for gateway tests.
type gwTool struct {
	name     string
	approval bool
	executed *int
}

func (t *gwTool) Name() string                   { return t.name }
func (t *gwTool) Description() string            { return "test tool" }
func (t *gwTool) Category() tools.Category       { return tools.CategoryWriting }
func (t *gwTool) RequiresApproval() bool         { return t.approval }
func (t *gwTool) ArgumentSchema() map[string]any { return nil }
func (t *gwTool) ValidateInput(map[string]any) bool { return true }

func (t *gwTool) Execute(context.Context, map[string]any) tools.Result {
	if t.executed != nil {
		*t.executed++
	}
	return tools.Result{Success: true, Result: "done"}
}

// testRegistry builds a registry with the firewall disabled so these tests
// exercise approval decisions, not input validation.
func testRegistry(t *testing.T, toolset ...tools.Tool) *tools.Registry {
	t.Helper()
	cfg := firewall.DefaultConfig()
	cfg.Enabled = false
	fw := firewall.New(cfg, zap.NewNop())
	r := tools.NewRegistry(fw, nil, zap.NewNop())
	for _, tool := range toolset {
		if err := r.Register(tool); err != nil {
			t.Fatal(err)
		}
	}
	return r
}

func pendingState(calls ...agent.ToolCallRequest) *agent.State {
	st := agent.NewState("test task", "session-1", 5)
	st.PendingApprovals = calls
	return st
}

func TestGateway_AutoApprovesReadOnly(t *testing.T) {
	executed := 0
	registry := testRegistry(t, &gwTool{name: "word_count", executed: &executed})

	callbackInvoked := false
	g := NewGateway(registry, func(agent.ToolCallRequest) bool {
		callbackInvoked = true
		return false
	}, true, zap.NewNop())

	st := pendingState(agent.ToolCallRequest{Tool: "word_count", Params: map[string]any{"text": "hi"}})
	g.Process(context.Background(), st)

	if callbackInvoked {
		t.Error("callback must not run for auto-approved tools")
	}
	if executed != 1 {
		t.Errorf("tool executed %d times, want 1", executed)
	}
	if len(st.ApprovedTools) != 1 || st.ApprovedTools[0] != "word_count" {
		t.Errorf("approved tools = %v", st.ApprovedTools)
	}
}

func TestGateway_CallbackApproves(t *testing.T) {
	executed := 0
	registry := testRegistry(t, &gwTool{name: "write_file", approval: true, executed: &executed})

	var sawCall agent.ToolCallRequest
	g := NewGateway(registry, func(call agent.ToolCallRequest) bool {
		sawCall = call
		return true
	}, false, zap.NewNop())

	st := pendingState(agent.ToolCallRequest{
		Tool:   "write_file",
		Params: map[string]any{"file_path": "/tmp/out.txt"},
		Reason: "saving results",
	})
	g.Process(context.Background(), st)

	if sawCall.Tool != "write_file" || sawCall.Reason != "saving results" {
		t.Errorf("callback received %+v", sawCall)
	}
	if executed != 1 {
		t.Errorf("tool executed %d times, want 1", executed)
	}
	if len(st.ToolOutputs) != 1 || !st.ToolOutputs[0].Success {
		t.Errorf("tool outputs = %+v", st.ToolOutputs)
	}
	if len(st.ToolsUsed) != 1 || st.ToolsUsed[0] != "write_file" {
		t.Errorf("tools used = %v", st.ToolsUsed)
	}
}

func TestGateway_CallbackRejects(t *testing.T) {
	executed := 0
	registry := testRegistry(t, &gwTool{name: "write_file", approval: true, executed: &executed})

	g := NewGateway(registry, func(agent.ToolCallRequest) bool { return false }, false, zap.NewNop())

	st := pendingState(agent.ToolCallRequest{Tool: "write_file"})
	g.Process(context.Background(), st)

	if executed != 0 {
		t.Error("rejected tool must not execute")
	}
	if len(st.ApprovedTools) != 0 {
		t.Errorf("approved tools = %v", st.ApprovedTools)
	}

	last := st.Messages[len(st.Messages)-1]
	if last.Role != "system" {
		t.Fatalf("last message role = %q", last.Role)
	}
	if last.Content != "The following tools were rejected: write_file" {
		t.Errorf("rejection message = %q", last.Content)
	}
}

func TestGateway_NoCallbackDefaultsToApprove(t *testing.T) {
	// Fail-open default for headless operation: no callback means approve,
	// even for tools that require approval.
	executed := 0
	registry := testRegistry(t, &gwTool{name: "code_executor", approval: true, executed: &executed})

	g := NewGateway(registry, nil, false, zap.NewNop())

	st := pendingState(agent.ToolCallRequest{Tool: "code_executor"})
	g.Process(context.Background(), st)

	if executed != 1 {
		t.Errorf("tool executed %d times, want 1", executed)
	}
	if len(st.ApprovedTools) != 1 {
		t.Errorf("approved tools = %v", st.ApprovedTools)
	}
}

func TestGateway_UnknownToolRejected(t *testing.T) {
	registry := testRegistry(t)

	g := NewGateway(registry, func(agent.ToolCallRequest) bool {
		t.Error("callback must not run for unknown tools")
		return true
	}, false, zap.NewNop())

	st := pendingState(agent.ToolCallRequest{Tool: "ghost_tool"})
	g.Process(context.Background(), st)

	last := st.Messages[len(st.Messages)-1]
	if !strings.Contains(last.Content, "ghost_tool") {
		t.Errorf("rejection message = %q", last.Content)
	}
}

func TestGateway_QueueDrainsUnconditionally(t *testing.T) {
	executed := 0
	registry := testRegistry(t, &gwTool{name: "word_count", executed: &executed})

	g := NewGateway(registry, func(call agent.ToolCallRequest) bool {
		return call.Tool == "word_count"
	}, false, zap.NewNop())

	st := pendingState(
		agent.ToolCallRequest{Tool: "word_count", Params: map[string]any{"text": "a"}},
		agent.ToolCallRequest{Tool: "missing_one"},
		agent.ToolCallRequest{Tool: "word_count", Params: map[string]any{"text": "b"}},
	)
	g.Process(context.Background(), st)

	if len(st.PendingApprovals) != 0 {
		t.Errorf("queue not drained: %v", st.PendingApprovals)
	}
	if executed != 2 {
		t.Errorf("executed = %d, want 2", executed)
	}
}

func TestGateway_ExecutionOrderPreserved(t *testing.T) {
	registry := testRegistry(t,
		&gwTool{name: "first_tool"},
		&gwTool{name: "second_tool"},
	)

	g := NewGateway(registry, nil, false, zap.NewNop())

	st := pendingState(
		agent.ToolCallRequest{Tool: "second_tool"},
		agent.ToolCallRequest{Tool: "first_tool"},
	)
	g.Process(context.Background(), st)

	order := st.ToolsUsed
	if len(order) != 2 || order[0] != "second_tool" || order[1] != "first_tool" {
		t.Errorf("execution order = %v, want enqueue order", order)
	}
}

// failingTool always returns a failed result.
type failingTool struct{ gwTool }

func (t *failingTool) Execute(context.Context, map[string]any) tools.Result {
	return tools.Failure("disk full")
}

func TestGateway_FailedExecutionRecorded(t *testing.T) {
	registry := testRegistry(t, &failingTool{gwTool{name: "flaky"}})

	g := NewGateway(registry, nil, false, zap.NewNop())

	st := pendingState(agent.ToolCallRequest{Tool: "flaky"})
	g.Process(context.Background(), st)

	if len(st.ToolOutputs) != 1 {
		t.Fatalf("tool outputs = %+v", st.ToolOutputs)
	}
	if st.ToolOutputs[0].Success {
		t.Error("expected failed record")
	}

	last := st.Messages[len(st.Messages)-1]
	if !strings.Contains(last.Content, "disk full") {
		t.Errorf("failure message = %q", last.Content)
	}
}
