package tools

import "context"

// Category groups tools for catalog display and prompt building.
type Category int

const (
	CategoryUnspecified Category = iota
	CategoryCoding
	CategoryWeb
	CategoryAccounting
	CategoryWriting
	CategoryFileOps
	CategorySystem
	CategoryDataAnalysis
)

// String returns the lowercase category name.
func (c Category) String() string {
	switch c {
	case CategoryCoding:
		return "coding"
	case CategoryWeb:
		return "web"
	case CategoryAccounting:
		return "accounting"
	case CategoryWriting:
		return "writing"
	case CategoryFileOps:
		return "file_operations"
	case CategorySystem:
		return "system"
	case CategoryDataAnalysis:
		return "data_analysis"
	default:
		return "unspecified"
	}
}

// Result is the outcome of a single tool execution. Exactly one of Result
// and Error is meaningful depending on Success.
type Result struct {
	Success  bool
	Result   any
	Error    string
	Metadata map[string]any
}

// Failure builds a failed result with the given error message.
func Failure(msg string) Result {
	return Result{Success: false, Error: msg}
}

// Tool is the capability contract every tool implements. Tools describe
// themselves (category, approval requirement, argument schema) so the
// firewall and approval gateway can classify calls without knowing the
// implementation.
type Tool interface {
	// Name returns the tool's unique identifier (e.g. "read_file").
	Name() string

	// Description is a one-line summary shown in the planner's tool catalog.
	Description() string

	// Category returns the tool's catalog category.
	Category() Category

	// RequiresApproval reports whether a human must approve each call.
	// Read-only tools return false and are eligible for auto-approval.
	RequiresApproval() bool

	// ArgumentSchema returns a JSON Schema for the tool's arguments,
	// or nil when the tool performs its own validation only.
	ArgumentSchema() map[string]any

	// ValidateInput performs tool-specific argument checks beyond the schema.
	ValidateInput(args map[string]any) bool

	// Execute runs the tool. Implementations report failure through the
	// Result, never by panicking; the registry recovers panics as a last
	// resort failure boundary.
	Execute(ctx context.Context, args map[string]any) Result
}
