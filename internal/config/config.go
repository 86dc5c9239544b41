// Package config loads application configuration from YAML with environment
// variable overrides.
package config

import (
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Config is the full application configuration.
type Config struct {
	Agent       AgentConfig       `yaml:"agent"`
	Firewall    FirewallConfig    `yaml:"firewall"`
	HumanInLoop HumanInLoopConfig `yaml:"human_in_loop"`
	Reasoning   ReasoningConfig   `yaml:"reasoning"`
	Web         WebConfig         `yaml:"web"`
	Memory      MemoryConfig      `yaml:"memory"`
	Audit       AuditConfig       `yaml:"audit"`
	Logging     LoggingConfig     `yaml:"logging"`
}

// AgentConfig configures the planner backend.
type AgentConfig struct {
	Name           string  `yaml:"name"`
	BaseURL        string  `yaml:"base_url"`
	APIKey         string  `yaml:"api_key"`
	Model          string  `yaml:"model"`
	Temperature    float64 `yaml:"temperature"`
	TopP           float64 `yaml:"top_p"`
	MaxTokens      int     `yaml:"max_tokens"`
	TimeoutSeconds int     `yaml:"timeout_seconds"`
}

// FirewallConfig configures input/output validation.
type FirewallConfig struct {
	Enabled           bool     `yaml:"enabled"`
	AllowedPaths      []string `yaml:"allowed_paths"`
	BlockedExtensions []string `yaml:"blocked_extensions"`
	MaxFileSizeMB     float64  `yaml:"max_file_size_mb"`
	MaxOutputLength   int      `yaml:"max_output_length"`
	FilterSensitive   bool     `yaml:"filter_sensitive"`
}

// HumanInLoopConfig configures the approval gateway.
type HumanInLoopConfig struct {
	Enabled             bool `yaml:"enabled"`
	AutoApproveReadOnly bool `yaml:"auto_approve_read_only"`
	TimeoutSeconds      int  `yaml:"timeout_seconds"`
}

// ReasoningConfig configures the reflection cycle.
type ReasoningConfig struct {
	Enabled                bool    `yaml:"enabled"`
	MinConfidenceThreshold float64 `yaml:"min_confidence_threshold"`
	MaxIterations          int     `yaml:"max_iterations"`
}

// WebConfig configures outbound HTTP tools. An empty host allowlist
// permits any host.
type WebConfig struct {
	AllowedHosts   []string `yaml:"allowed_hosts"`
	TimeoutSeconds int      `yaml:"timeout_seconds"`
}

// MemoryConfig configures the session cache.
type MemoryConfig struct {
	TTLHours int `yaml:"ttl_hours"`
}

// AuditConfig selects the audit event store. Driver is "sqlite" (default),
// "pgx" for shared Postgres deployments, or "log" to skip persistence and
// emit events through the logger only.
type AuditConfig struct {
	Driver string `yaml:"driver"`
	DSN    string `yaml:"dsn"`
}

// LoggingConfig configures the zap logger.
type LoggingConfig struct {
	Level string `yaml:"level"`
}

// Default returns the built-in configuration.
func Default() Config {
	cwd, err := os.Getwd()
	if err != nil {
		cwd = "."
	}
	return Config{
		Agent: AgentConfig{
			Name:           "Bastion Agent",
			BaseURL:        "http://localhost:8000",
			Model:          "mistral-7b-instruct-v0.3",
			Temperature:    0.7,
			TopP:           0.9,
			MaxTokens:      512,
			TimeoutSeconds: 120,
		},
		Firewall: FirewallConfig{
			Enabled:           true,
			AllowedPaths:      []string{cwd},
			BlockedExtensions: []string{".exe", ".dll", ".so", ".dylib", ".sh", ".bat", ".cmd", ".ps1"},
			MaxFileSizeMB:     100,
			MaxOutputLength:   1_000_000,
			FilterSensitive:   true,
		},
		HumanInLoop: HumanInLoopConfig{
			Enabled:             true,
			AutoApproveReadOnly: false,
			TimeoutSeconds:      300,
		},
		Reasoning: ReasoningConfig{
			Enabled:                true,
			MinConfidenceThreshold: 0.7,
			MaxIterations:          3,
		},
		Web: WebConfig{
			TimeoutSeconds: 30,
		},
		Memory: MemoryConfig{
			TTLHours: 24,
		},
		Audit: AuditConfig{
			Driver: "sqlite",
			DSN:    "./data/audit.db",
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// Load reads the YAML file at path on top of the defaults, then applies
// environment overrides. A missing file is not an error: the defaults plus
// environment are used, matching desktop-first operation where the config
// file is optional.
func Load(path string) (Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	switch {
	case os.IsNotExist(err):
		// fall through to env overrides
	case err != nil:
		return Config{}, fmt.Errorf("config: read %s: %w", path, err)
	default:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("config: parse %s: %w", path, err)
		}
	}

	cfg.applyEnv()

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// applyEnv layers environment variables over the file values. The API key
// in particular should come from the environment, not the config file.
func (c *Config) applyEnv() {
	c.Agent.BaseURL = envOrDefault("BASTION_LLM_BASE_URL", c.Agent.BaseURL)
	c.Agent.APIKey = envOrDefault("BASTION_LLM_API_KEY", c.Agent.APIKey)
	c.Agent.Model = envOrDefault("BASTION_LLM_MODEL", c.Agent.Model)
	c.Audit.Driver = envOrDefault("BASTION_AUDIT_DRIVER", c.Audit.Driver)
	c.Audit.DSN = envOrDefault("BASTION_AUDIT_DSN", c.Audit.DSN)
	c.Logging.Level = envOrDefault("BASTION_LOG_LEVEL", c.Logging.Level)
	c.Reasoning.MaxIterations = envOrDefaultInt("BASTION_MAX_ITERATIONS", c.Reasoning.MaxIterations)
	c.Reasoning.MinConfidenceThreshold = envOrDefaultFloat("BASTION_MIN_CONFIDENCE", c.Reasoning.MinConfidenceThreshold)
}

func (c *Config) validate() error {
	if c.Reasoning.MaxIterations <= 0 {
		return fmt.Errorf("config: reasoning.max_iterations must be positive, got %d", c.Reasoning.MaxIterations)
	}
	if c.Reasoning.MinConfidenceThreshold < 0 || c.Reasoning.MinConfidenceThreshold > 1 {
		return fmt.Errorf("config: reasoning.min_confidence_threshold must be in [0, 1], got %v", c.Reasoning.MinConfidenceThreshold)
	}
	switch c.Audit.Driver {
	case "sqlite", "pgx", "log":
	default:
		return fmt.Errorf("config: unknown audit driver %q", c.Audit.Driver)
	}
	return nil
}

func envOrDefault(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func envOrDefaultInt(key string, defaultVal int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return defaultVal
}

func envOrDefaultFloat(key string, defaultVal float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return defaultVal
}
