package tools

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/santhosh-tekuri/jsonschema/v6"
	"go.uber.org/zap"

	"github.com/abstraction-ai/bastion/internal/audit"
	"github.com/abstraction-ai/bastion/internal/firewall"
)

type sessionKey struct{}

// WithSession tags a context with the session ID recorded on audit events.
func WithSession(ctx context.Context, sessionID string) context.Context {
	return context.WithValue(ctx, sessionKey{}, sessionID)
}

func sessionFrom(ctx context.Context) string {
	if id, ok := ctx.Value(sessionKey{}).(string); ok {
		return id
	}
	return ""
}

// Registry maps tool names to implementations and executes them through the
// I/O firewall. Registration happens once at startup; execution is the hot
// path and takes only a read lock.
type Registry struct {
	mu         sync.RWMutex
	tools      map[string]Tool
	byCategory map[Category][]Tool
	schemas    map[string]*jsonschema.Schema

	firewall *firewall.Firewall
	writer   audit.EventWriter
	logger   *zap.Logger
}

// NewRegistry creates an empty registry bound to a firewall and audit writer.
func NewRegistry(fw *firewall.Firewall, writer audit.EventWriter, logger *zap.Logger) *Registry {
	return &Registry{
		tools:      make(map[string]Tool),
		byCategory: make(map[Category][]Tool),
		schemas:    make(map[string]*jsonschema.Schema),
		firewall:   fw,
		writer:     writer,
		logger:     logger,
	}
}

// Register adds a tool, compiling its argument schema once up front so the
// execution path never compiles schemas per call.
func (r *Registry) Register(tool Tool) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	name := tool.Name()
	if _, exists := r.tools[name]; exists {
		return fmt.Errorf("tool %q is already registered", name)
	}

	if raw := tool.ArgumentSchema(); raw != nil {
		compiled, err := compileSchema(name, raw)
		if err != nil {
			return fmt.Errorf("tool %q schema: %w", name, err)
		}
		r.schemas[name] = compiled
	}

	r.tools[name] = tool
	r.byCategory[tool.Category()] = append(r.byCategory[tool.Category()], tool)

	r.logger.Info("registered tool",
		zap.String("tool", name),
		zap.String("category", tool.Category().String()),
		zap.Bool("requires_approval", tool.RequiresApproval()),
	)
	return nil
}

// Get returns the tool registered under name.
func (r *Registry) Get(name string) (Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tools[name]
	return t, ok
}

// All returns every registered tool.
func (r *Registry) All() []Tool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Tool, 0, len(r.tools))
	for _, t := range r.tools {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name() < out[j].Name() })
	return out
}

// Catalog lists tool names grouped by category, for prompt building and the
// status surface.
func (r *Registry) Catalog() map[string][]string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[string][]string, len(r.byCategory))
	for cat, list := range r.byCategory {
		names := make([]string, 0, len(list))
		for _, t := range list {
			names = append(names, t.Name())
		}
		sort.Strings(names)
		out[cat.String()] = names
	}
	return out
}

// Execute runs a tool by name through the full gateway sequence: lookup,
// firewall input validation, tool input validation, invocation, firewall
// output filtering. Tool failures and panics are converted to failed
// results — no error escapes to the control loop.
func (r *Registry) Execute(ctx context.Context, name string, args map[string]any, useFirewall bool) Result {
	start := time.Now()

	tool, ok := r.Get(name)
	if !ok {
		return Failure(fmt.Sprintf("Tool '%s' not found", name))
	}

	if useFirewall {
		if err := r.firewall.ValidateToolExecution(name, args); err != nil {
			r.logger.Warn("firewall blocked tool execution",
				zap.String("tool", name),
				zap.Error(err),
			)
			res := Failure("Security validation failed: " + err.Error())
			r.record(ctx, name, args, audit.VerdictBlocked, res, start)
			return res
		}
	}

	if !r.validateArgs(name, tool, args) {
		res := Failure(fmt.Sprintf("Invalid input for tool '%s'", name))
		r.record(ctx, name, args, audit.VerdictRejected, res, start)
		return res
	}

	result := r.invoke(ctx, tool, args)

	if useFirewall && result.Success {
		result.Result = r.firewall.FilterOutput(result.Result)
	}

	if result.Success {
		r.logger.Info("tool executed",
			zap.String("tool", name),
			zap.Duration("latency", time.Since(start)),
		)
	} else {
		r.logger.Warn("tool execution failed",
			zap.String("tool", name),
			zap.String("error", result.Error),
		)
	}
	r.record(ctx, name, args, audit.VerdictExecuted, result, start)

	return result
}

// validateArgs applies the compiled schema (when present) and the tool's own
// input validation.
func (r *Registry) validateArgs(name string, tool Tool, args map[string]any) bool {
	r.mu.RLock()
	schema := r.schemas[name]
	r.mu.RUnlock()

	if schema != nil {
		if err := schema.Validate(normalizeArgs(args)); err != nil {
			r.logger.Debug("schema validation failed",
				zap.String("tool", name),
				zap.Error(err),
			)
			return false
		}
	}
	return tool.ValidateInput(args)
}

// invoke calls the tool, recovering panics into failed results. The registry
// is the failure boundary: tool implementations never crash the loop.
func (r *Registry) invoke(ctx context.Context, tool Tool, args map[string]any) (result Result) {
	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Error("tool panicked",
				zap.String("tool", tool.Name()),
				zap.Any("panic", rec),
			)
			result = Failure(fmt.Sprintf("tool %q panicked: %v", tool.Name(), rec))
		}
	}()
	return tool.Execute(ctx, args)
}

func (r *Registry) record(ctx context.Context, name string, args map[string]any, verdict string, res Result, start time.Time) {
	if r.writer == nil {
		return
	}

	argsJSON, err := json.Marshal(args)
	if err != nil {
		argsJSON = []byte("{}")
	}
	hash := sha256.Sum256(argsJSON)

	r.writer.Write(&audit.ToolEvent{
		RequestID:        uuid.New().String(),
		SessionID:        sessionFrom(ctx),
		Timestamp:        time.Now(),
		ToolName:         name,
		ArgumentsPreview: audit.TruncatePreview(string(argsJSON), audit.PreviewLength),
		ArgumentsHash:    hex.EncodeToString(hash[:]),
		Verdict:          verdict,
		Success:          res.Success,
		Error:            res.Error,
		LatencyMs:        float64(time.Since(start)) / float64(time.Millisecond),
	})
}

// compileSchema turns a schema document into a compiled validator.
func compileSchema(name string, raw map[string]any) (*jsonschema.Schema, error) {
	doc, err := roundTripJSON(raw)
	if err != nil {
		return nil, err
	}
	c := jsonschema.NewCompiler()
	resource := name + ".schema.json"
	if err := c.AddResource(resource, doc); err != nil {
		return nil, err
	}
	return c.Compile(resource)
}

// roundTripJSON normalizes a Go map into the generic JSON form the schema
// validator expects (e.g. numbers as float64).
func roundTripJSON(v any) (any, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var out any
	if err := json.Unmarshal(b, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// normalizeArgs converts argument values to generic JSON types before schema
// validation so int and float64 arguments validate identically.
func normalizeArgs(args map[string]any) any {
	out, err := roundTripJSON(args)
	if err != nil {
		return map[string]any{}
	}
	return out
}
