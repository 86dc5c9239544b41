package agent

import (
	"time"

	"github.com/abstraction-ai/bastion/internal/tools"
)

// Message is one entry in the conversation transcript.
type Message struct {
	Role      string    // "user", "assistant", "system", "tool"
	Content   string
	Timestamp time.Time
}

// ToolCallRequest is a structured tool call proposed by the planner.
// Immutable once enqueued; consumed exactly once by the approval gateway.
type ToolCallRequest struct {
	Tool   string
	Params map[string]any
	Reason string
}

// ToolRecord correlates an executed tool call with its gateway result.
type ToolRecord struct {
	Tool    string
	Params  map[string]any
	Output  tools.Result
	Success bool
}

// State accumulates across one control-loop run. It is owned exclusively by
// the loop and mutated only by the three stages; never shared between
// concurrent runs.
type State struct {
	Messages         []Message
	Task             string
	ToolsUsed        []string
	ToolOutputs      []ToolRecord
	PendingApprovals []ToolCallRequest
	ApprovedTools    []string
	ReasoningSteps   []string
	FinalAnswer      string // empty until the planner produces one
	SessionID        string
	Iteration        int
	MaxIterations    int
	Confidence       float64
	Errors           []string
}

// NewState initializes a run's state with the user task as the first message.
func NewState(task, sessionID string, maxIterations int) *State {
	return &State{
		Messages: []Message{{
			Role:      "user",
			Content:   task,
			Timestamp: time.Now(),
		}},
		Task:          task,
		SessionID:     sessionID,
		MaxIterations: maxIterations,
	}
}

// AddMessage appends a message with the current timestamp.
func (s *State) AddMessage(role, content string) {
	s.Messages = append(s.Messages, Message{
		Role:      role,
		Content:   content,
		Timestamp: time.Now(),
	})
}
