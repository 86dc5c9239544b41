package firewall

import (
	"fmt"
	"os"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"unicode/utf8"

	"go.uber.org/zap"
)

// Context classifies an input value and drives which validation rules apply.
type Context int

const (
	ContextGeneral Context = iota + 1
	ContextFilePath
	ContextCode
)

// String returns the lowercase context name.
func (c Context) String() string {
	switch c {
	case ContextFilePath:
		return "file_path"
	case ContextCode:
		return "code"
	default:
		return "general"
	}
}

// InferContext maps an argument name to a validation context. The inference
// table is a stable contract with tool authors: argument names containing
// "path" or "file" are validated as paths, "code" or "script" as code,
// everything else as general input.
func InferContext(argName string) Context {
	lower := strings.ToLower(argName)
	switch {
	case strings.Contains(lower, "path") || strings.Contains(lower, "file"):
		return ContextFilePath
	case strings.Contains(lower, "code") || strings.Contains(lower, "script"):
		return ContextCode
	default:
		return ContextGeneral
	}
}

// systemCallKeywords are rejected in code-context inputs via substring search.
var systemCallKeywords = []string{"system", "popen", "subprocess"}

// truncationMarker is appended when filtered output exceeds the length cap.
const truncationMarker = "\n... (output truncated)"

// Config is the firewall configuration surface. Constructed once at startup
// and replaced wholesale on a settings change — never mutated field by field.
type Config struct {
	Enabled           bool
	AllowedPaths      []string
	BlockedExtensions []string
	MaxFileSizeMB     float64
	MaxOutputLength   int
	FilterSensitive   bool
}

// DefaultConfig returns the firewall defaults: enabled, scoped to the
// current working directory, native executables and shell scripts blocked.
func DefaultConfig() Config {
	cwd, err := os.Getwd()
	if err != nil {
		cwd = "."
	}
	return Config{
		Enabled:           true,
		AllowedPaths:      []string{cwd},
		BlockedExtensions: []string{".exe", ".dll", ".so", ".dylib", ".sh", ".bat", ".cmd", ".ps1"},
		MaxFileSizeMB:     100.0,
		MaxOutputLength:   1_000_000,
		FilterSensitive:   true,
	}
}

// snapshot bundles a config with the path policy derived from it, so readers
// always observe a consistent pair.
type snapshot struct {
	cfg    Config
	policy *PathPolicy
}

// Firewall validates tool inputs and filters tool outputs. Reads load an
// immutable snapshot atomically; Reload swaps the snapshot under a
// single-writer lock, so concurrent validations never observe a torn config.
type Firewall struct {
	matcher *Matcher
	snap    atomic.Pointer[snapshot]
	mu      sync.Mutex // serializes writers in Reload
	logger  *zap.Logger
}

// New builds a firewall from the given config.
func New(cfg Config, logger *zap.Logger) *Firewall {
	f := &Firewall{
		matcher: NewMatcher(),
		logger:  logger,
	}
	f.snap.Store(newSnapshot(cfg))
	logger.Info("i/o firewall initialized",
		zap.Bool("enabled", cfg.Enabled),
		zap.Int("allowed_paths", len(cfg.AllowedPaths)),
	)
	return f
}

func newSnapshot(cfg Config) *snapshot {
	return &snapshot{
		cfg:    cfg,
		policy: NewPathPolicy(cfg.AllowedPaths, cfg.BlockedExtensions, cfg.MaxFileSizeMB),
	}
}

// Reload replaces the configuration snapshot. Safe to call while validations
// are in flight; in-flight calls finish against the old snapshot.
func (f *Firewall) Reload(cfg Config) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.snap.Store(newSnapshot(cfg))
	f.logger.Info("i/o firewall configuration reloaded",
		zap.Bool("enabled", cfg.Enabled),
	)
}

// Config returns the current configuration snapshot.
func (f *Firewall) Config() Config {
	return f.snap.Load().cfg
}

// ValidateInput checks a single value under the given context. Always
// succeeds when the firewall is disabled. Dangerous-pattern matching applies
// to every context; path and code contexts add their own checks; finally the
// stringified value must fit the configured length cap.
func (f *Firewall) ValidateInput(value any, ctx Context) error {
	snap := f.snap.Load()
	if !snap.cfg.Enabled {
		return nil
	}

	text := stringify(value)

	if m := f.matcher.MatchDangerous(text); m != nil {
		f.logger.Warn("firewall blocked dangerous pattern",
			zap.String("rule", m.Rule.Name),
			zap.String("severity", m.Rule.Severity.String()),
		)
		return fmt.Errorf("blocked dangerous pattern in input: %s", m.Rule.Name)
	}

	switch ctx {
	case ContextFilePath:
		if err := snap.policy.Validate(text); err != nil {
			f.logger.Warn("firewall blocked file path", zap.String("path", text), zap.Error(err))
			return err
		}
	case ContextCode:
		lower := strings.ToLower(text)
		for _, kw := range systemCallKeywords {
			if strings.Contains(lower, kw) {
				f.logger.Warn("firewall blocked system call keyword in code",
					zap.String("keyword", kw),
				)
				return fmt.Errorf("code contains potentially dangerous system calls")
			}
		}
	}

	// Rune count, matching the character semantics of output truncation.
	if utf8.RuneCountInString(text) > snap.cfg.MaxOutputLength {
		return fmt.Errorf("input exceeds maximum length of %d characters", snap.cfg.MaxOutputLength)
	}

	return nil
}

// ValidateFilePath applies only the path policy to a candidate path.
func (f *Firewall) ValidateFilePath(path string) error {
	snap := f.snap.Load()
	if !snap.cfg.Enabled {
		return nil
	}
	return snap.policy.Validate(path)
}

// FilterOutput redacts sensitive matches and truncates overlong output.
// Identity when the firewall is disabled or sensitive filtering is off.
// Truncation happens after redaction so a secret can never survive by
// straddling the cut point.
func (f *Firewall) FilterOutput(value any) any {
	snap := f.snap.Load()
	if !snap.cfg.Enabled || !snap.cfg.FilterSensitive {
		return value
	}

	text := stringify(value)
	text, redacted := f.matcher.RedactSensitive(text)
	if redacted > 0 {
		f.logger.Info("firewall redacted sensitive data from output",
			zap.Int("matches", redacted),
		)
	}

	if runes := []rune(text); len(runes) > snap.cfg.MaxOutputLength {
		text = string(runes[:snap.cfg.MaxOutputLength]) + truncationMarker
		f.logger.Info("firewall truncated output",
			zap.Int("max_length", snap.cfg.MaxOutputLength),
		)
	}

	return text
}

// ValidateToolExecution validates every argument of a pending tool call,
// inferring each argument's context from its name. Fails on the first
// invalid argument; the error names the offending argument.
func (f *Firewall) ValidateToolExecution(toolName string, args map[string]any) error {
	snap := f.snap.Load()
	if !snap.cfg.Enabled {
		return nil
	}

	f.logger.Debug("firewall validating tool execution", zap.String("tool", toolName))

	for _, name := range sortedKeys(args) {
		if err := f.ValidateInput(args[name], InferContext(name)); err != nil {
			return fmt.Errorf("argument %q: %w", name, err)
		}
	}
	return nil
}

// Status is a read-only view of the firewall for observability surfaces.
type Status struct {
	Enabled           bool     `json:"enabled"`
	AllowedPaths      []string `json:"allowed_paths"`
	BlockedExtensions []string `json:"blocked_extensions"`
	MaxFileSizeMB     float64  `json:"max_file_size_mb"`
	MaxOutputLength   int      `json:"max_output_length"`
	FilterSensitive   bool     `json:"filter_sensitive"`
	DangerousRules    int      `json:"dangerous_rules"`
	SensitiveRules    int      `json:"sensitive_rules"`
}

// Status returns the current configuration and rule counts. Never mutates.
func (f *Firewall) Status() Status {
	cfg := f.snap.Load().cfg
	return Status{
		Enabled:           cfg.Enabled,
		AllowedPaths:      append([]string(nil), cfg.AllowedPaths...),
		BlockedExtensions: append([]string(nil), cfg.BlockedExtensions...),
		MaxFileSizeMB:     cfg.MaxFileSizeMB,
		MaxOutputLength:   cfg.MaxOutputLength,
		FilterSensitive:   cfg.FilterSensitive,
		DangerousRules:    f.matcher.DangerousRuleCount(),
		SensitiveRules:    f.matcher.SensitiveRuleCount(),
	}
}

// stringify converts an arbitrary argument value to text for pattern
// matching. Strings pass through untouched to avoid quoting artifacts.
func stringify(value any) string {
	if s, ok := value.(string); ok {
		return s
	}
	return fmt.Sprintf("%v", value)
}

// sortedKeys returns map keys in a stable order so validation failures are
// deterministic across runs.
func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
