package audit

import (
	"time"

	"go.uber.org/zap"
)

// EventWriter is the interface for persisting tool execution events.
// Write() must NEVER block the caller.
type EventWriter interface {
	Write(event *ToolEvent)
	Close()
}

// ToolEvent records one pass through the execution gateway.
type ToolEvent struct {
	RequestID        string
	SessionID        string
	Timestamp        time.Time
	ToolName         string
	ArgumentsPreview string // first 500 chars
	ArgumentsHash    string // sha256 hex of full arguments
	Verdict          string // "executed", "blocked", "rejected"
	Success          bool
	Error            string
	LatencyMs        float64
}

// Gateway verdicts recorded per event.
const (
	VerdictExecuted = "executed"
	VerdictBlocked  = "blocked"
	VerdictRejected = "rejected"
)

// PreviewLength is the max chars stored in ArgumentsPreview.
const PreviewLength = 500

// TruncatePreview returns the first maxLen characters (runes) of s.
// It never splits a multi-byte UTF-8 character.
func TruncatePreview(s string, maxLen int) string {
	runes := []rune(s)
	if len(runes) <= maxLen {
		return s
	}
	return string(runes[:maxLen])
}

// LogWriter is a fallback EventWriter for sessions without an audit store.
// Events are logged as structured JSON via zap.
type LogWriter struct {
	logger *zap.Logger
}

// NewLogWriter creates a LogWriter that outputs events to the given logger.
func NewLogWriter(logger *zap.Logger) *LogWriter {
	return &LogWriter{logger: logger}
}

func (w *LogWriter) Write(event *ToolEvent) {
	w.logger.Info("tool_event",
		zap.String("request_id", event.RequestID),
		zap.String("session_id", event.SessionID),
		zap.String("tool", event.ToolName),
		zap.String("verdict", event.Verdict),
		zap.Bool("success", event.Success),
		zap.String("error", event.Error),
		zap.Float64("latency_ms", event.LatencyMs),
		zap.String("arguments_preview", event.ArgumentsPreview),
	)
}

func (w *LogWriter) Close() {}
