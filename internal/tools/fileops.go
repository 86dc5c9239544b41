package tools

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"unicode/utf8"
)

// ReadFileTool reads a text file from disk. Path scoping is enforced by the
// firewall before the tool runs; the tool itself only handles I/O.
type ReadFileTool struct{}

func NewReadFileTool() *ReadFileTool {
	return &ReadFileTool{}
}

func (t *ReadFileTool) Name() string        { return "read_file" }
func (t *ReadFileTool) Description() string { return "Read the contents of a text file" }
func (t *ReadFileTool) Category() Category  { return CategoryFileOps }

// Read-only, safe to auto-approve.
func (t *ReadFileTool) RequiresApproval() bool { return false }

func (t *ReadFileTool) ArgumentSchema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"file_path": map[string]any{"type": "string", "minLength": 1},
		},
		"required":             []any{"file_path"},
		"additionalProperties": false,
	}
}

func (t *ReadFileTool) ValidateInput(args map[string]any) bool {
	p, ok := args["file_path"].(string)
	return ok && p != ""
}

func (t *ReadFileTool) Execute(ctx context.Context, args map[string]any) Result {
	path, _ := args["file_path"].(string)

	data, err := os.ReadFile(path)
	if err != nil {
		return Failure(fmt.Sprintf("read %s: %v", path, err))
	}
	if !utf8.Valid(data) {
		return Failure(fmt.Sprintf("%s is not a text file", path))
	}

	return Result{
		Success: true,
		Result:  string(data),
		Metadata: map[string]any{
			"file_path": path,
			"bytes":     len(data),
		},
	}
}

// WriteFileTool writes text content to disk. Effectful: every call requires
// human approval.
type WriteFileTool struct{}

func NewWriteFileTool() *WriteFileTool {
	return &WriteFileTool{}
}

func (t *WriteFileTool) Name() string        { return "write_file" }
func (t *WriteFileTool) Description() string { return "Write text content to a file" }
func (t *WriteFileTool) Category() Category  { return CategoryFileOps }

func (t *WriteFileTool) RequiresApproval() bool { return true }

func (t *WriteFileTool) ArgumentSchema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"file_path": map[string]any{"type": "string", "minLength": 1},
			"content":   map[string]any{"type": "string"},
		},
		"required":             []any{"file_path", "content"},
		"additionalProperties": false,
	}
}

func (t *WriteFileTool) ValidateInput(args map[string]any) bool {
	p, ok := args["file_path"].(string)
	if !ok || p == "" {
		return false
	}
	_, ok = args["content"].(string)
	return ok
}

func (t *WriteFileTool) Execute(ctx context.Context, args map[string]any) Result {
	path, _ := args["file_path"].(string)
	content, _ := args["content"].(string)

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return Failure(fmt.Sprintf("create parent directory for %s: %v", path, err))
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return Failure(fmt.Sprintf("write %s: %v", path, err))
	}

	return Result{
		Success: true,
		Result:  fmt.Sprintf("wrote %d bytes to %s", len(content), path),
		Metadata: map[string]any{
			"file_path": path,
			"bytes":     len(content),
		},
	}
}
