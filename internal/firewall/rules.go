package firewall

import "regexp"

// RedactionMarker replaces sensitive matches in filtered output. The marker
// itself never matches a sensitive pattern, so redaction is idempotent.
const RedactionMarker = "[REDACTED]"

// Severity classifies how dangerous a rule violation is.
type Severity int

const (
	SeverityLow Severity = iota + 1
	SeverityMedium
	SeverityHigh
	SeverityCritical
)

// String returns the lowercase severity name.
func (s Severity) String() string {
	switch s {
	case SeverityLow:
		return "low"
	case SeverityMedium:
		return "medium"
	case SeverityHigh:
		return "high"
	case SeverityCritical:
		return "critical"
	default:
		return "unspecified"
	}
}

// Rule is a declarative firewall rule backed by a compiled pattern.
// Rules are built once at package init and never mutated during a request.
type Rule struct {
	Name        string
	Description string
	Enabled     bool
	Severity    Severity
	re          *regexp.Regexp
}

// RuleMatch reports which rule fired against an input.
type RuleMatch struct {
	Rule    Rule
	Matched string
}

// Pre-compiled dangerous input patterns — compiled once, never during a request.
var dangerousRules = []Rule{
	{
		Name:        "dynamic_code_execution",
		Description: "dynamic code execution keywords (exec, eval, compile, __import__)",
		Enabled:     true,
		Severity:    SeverityCritical,
		re:          regexp.MustCompile(`(?i)(__import__|exec|eval|compile)\s*\(`),
	},
	{
		Name:        "shell_substitution",
		Description: "shell command substitution $(...)",
		Enabled:     true,
		Severity:    SeverityHigh,
		re:          regexp.MustCompile(`(?i)\$\(.*\)`),
	},
	{
		Name:        "backtick_execution",
		Description: "backtick command execution",
		Enabled:     true,
		Severity:    SeverityHigh,
		re:          regexp.MustCompile("(?i)`.*`"),
	},
	{
		Name:        "destructive_command",
		Description: "destructive shell idiom (rm -rf)",
		Enabled:     true,
		Severity:    SeverityCritical,
		re:          regexp.MustCompile(`(?i);\s*rm\s+-rf`),
	},
	{
		Name:        "pipe_to_shell",
		Description: "piping untrusted data into a shell",
		Enabled:     true,
		Severity:    SeverityHigh,
		re:          regexp.MustCompile(`(?i)\|\s*sh`),
	},
	{
		Name:        "device_write",
		Description: "writes to device files",
		Enabled:     true,
		Severity:    SeverityHigh,
		re:          regexp.MustCompile(`(?i)>\s*/dev/`),
	},
	{
		Name:        "script_injection",
		Description: "script tag injection",
		Enabled:     true,
		Severity:    SeverityMedium,
		re:          regexp.MustCompile(`(?i)<\s*script`),
	},
}

// Pre-compiled sensitive output patterns. Each full match is replaced with
// RedactionMarker so surrounding text keeps its shape.
var sensitiveRules = []Rule{
	{
		Name:        "password_pair",
		Description: "password key-value pairs",
		Enabled:     true,
		Severity:    SeverityHigh,
		re:          regexp.MustCompile(`(?i)(password|passwd|pwd)\s*[:=]\s*[^\s]+`),
	},
	{
		Name:        "api_key_pair",
		Description: "API key key-value pairs",
		Enabled:     true,
		Severity:    SeverityHigh,
		re:          regexp.MustCompile(`(?i)(api[_-]?key|apikey)\s*[:=]\s*[^\s]+`),
	},
	{
		Name:        "secret_pair",
		Description: "secret/token key-value pairs",
		Enabled:     true,
		Severity:    SeverityHigh,
		re:          regexp.MustCompile(`(?i)(secret|token)\s*[:=]\s*[^\s]+`),
	},
	{
		Name:        "email_address",
		Description: "email addresses",
		Enabled:     true,
		Severity:    SeverityLow,
		re:          regexp.MustCompile(`\b[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}\b`),
	},
}

// Matcher applies the dangerous and sensitive rule sets to text.
// Matching is a pure function of the input and the compiled rules.
type Matcher struct {
	dangerous []Rule
	sensitive []Rule
}

// NewMatcher builds a matcher over the default rule sets.
func NewMatcher() *Matcher {
	return &Matcher{
		dangerous: dangerousRules,
		sensitive: sensitiveRules,
	}
}

// MatchDangerous returns the first enabled dangerous rule that matches text,
// or nil if none do. First match wins: validation is fail-closed, so there is
// no value in collecting every violation.
func (m *Matcher) MatchDangerous(text string) *RuleMatch {
	for _, r := range m.dangerous {
		if !r.Enabled {
			continue
		}
		if loc := r.re.FindString(text); loc != "" {
			return &RuleMatch{Rule: r, Matched: loc}
		}
	}
	return nil
}

// RedactSensitive replaces every sensitive match in text with RedactionMarker
// and returns the redacted text plus the number of replacements.
func (m *Matcher) RedactSensitive(text string) (string, int) {
	total := 0
	for _, r := range m.sensitive {
		if !r.Enabled {
			continue
		}
		n := len(r.re.FindAllStringIndex(text, -1))
		if n == 0 {
			continue
		}
		text = r.re.ReplaceAllString(text, RedactionMarker)
		total += n
	}
	return text, total
}

// DangerousRuleCount returns the number of enabled dangerous rules.
func (m *Matcher) DangerousRuleCount() int {
	n := 0
	for _, r := range m.dangerous {
		if r.Enabled {
			n++
		}
	}
	return n
}

// SensitiveRuleCount returns the number of enabled sensitive rules.
func (m *Matcher) SensitiveRuleCount() int {
	n := 0
	for _, r := range m.sensitive {
		if r.Enabled {
			n++
		}
	}
	return n
}
