package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/abstraction-ai/bastion/internal/agent"
	"github.com/abstraction-ai/bastion/internal/approval"
	"github.com/abstraction-ai/bastion/internal/audit"
	"github.com/abstraction-ai/bastion/internal/config"
	"github.com/abstraction-ai/bastion/internal/firewall"
	"github.com/abstraction-ai/bastion/internal/llm"
	"github.com/abstraction-ai/bastion/internal/memory"
	"github.com/abstraction-ai/bastion/internal/tools"
)

func main() {
	// .env is optional; real environment always wins.
	_ = godotenv.Load()

	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var configPath string

	root := &cobra.Command{
		Use:           "bastion",
		Short:         "Security-mediated AI agent runner",
		Long:          "bastion runs agent tasks behind an I/O firewall with human-in-the-loop tool approval.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", "./config/config.yaml", "path to config file")

	root.AddCommand(newRunCmd(&configPath))
	root.AddCommand(newStatusCmd(&configPath))
	return root
}

func newRunCmd(configPath *string) *cobra.Command {
	var headless bool
	var autoApprove bool

	cmd := &cobra.Command{
		Use:   "run [task]",
		Short: "Run one agent task",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*configPath)
			if err != nil {
				return err
			}
			if autoApprove {
				cfg.HumanInLoop.AutoApproveReadOnly = true
			}
			return runTask(cfg, strings.Join(args, " "), headless)
		},
	}
	cmd.Flags().BoolVar(&headless, "headless", false, "skip interactive approval prompts (fail-open: approves everything)")
	cmd.Flags().BoolVar(&autoApprove, "auto-approve", false, "auto-approve tools that do not require approval")
	return cmd
}

func newStatusCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show firewall configuration and registered tools",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*configPath)
			if err != nil {
				return err
			}
			return printStatus(cfg)
		},
	}
}

func runTask(cfg config.Config, task string, headless bool) error {
	logger := mustBuildLogger(cfg.Logging.Level)
	defer logger.Sync() //nolint:errcheck // best-effort flush

	fw := firewall.New(firewallConfig(cfg.Firewall), logger)

	writer := buildAuditWriter(cfg.Audit, logger)
	defer writer.Close()

	registry := tools.NewRegistry(fw, writer, logger)
	if err := registerBuiltins(registry, cfg); err != nil {
		return err
	}

	client, err := llm.NewClient(llm.ClientConfig{
		BaseURL: cfg.Agent.BaseURL,
		APIKey:  cfg.Agent.APIKey,
		Model:   cfg.Agent.Model,
		Timeout: time.Duration(cfg.Agent.TimeoutSeconds) * time.Second,
	}, logger)
	if err != nil {
		return err
	}

	var callback approval.Callback
	if cfg.HumanInLoop.Enabled && !headless {
		callback = stdinCallback(os.Stdin, os.Stdout)
	}
	gateway := approval.NewGateway(registry, callback, cfg.HumanInLoop.AutoApproveReadOnly, logger)

	store := memory.NewStore(time.Duration(cfg.Memory.TTLHours)*time.Hour, logger)

	loop := agent.NewLoop(client, gateway, registry, agent.LoopConfig{
		MaxIterations: cfg.Reasoning.MaxIterations,
		MinConfidence: cfg.Reasoning.MinConfidenceThreshold,
		MaxNewTokens:  cfg.Agent.MaxTokens,
		Temperature:   cfg.Agent.Temperature,
		TopP:          cfg.Agent.TopP,
	}, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	st, err := loop.Run(ctx, task)
	if err != nil {
		return err
	}

	store.SaveConversation(st.SessionID, st.Messages)

	if st.FinalAnswer != "" {
		fmt.Println(st.FinalAnswer)
	} else {
		fmt.Println("No final answer produced.")
	}
	if len(st.Errors) > 0 {
		for _, e := range st.Errors {
			fmt.Fprintln(os.Stderr, "error:", e)
		}
		return fmt.Errorf("run finished with %d error(s)", len(st.Errors))
	}
	return nil
}

func printStatus(cfg config.Config) error {
	logger := zap.NewNop()
	fw := firewall.New(firewallConfig(cfg.Firewall), logger)

	registry := tools.NewRegistry(fw, nil, logger)
	if err := registerBuiltins(registry, cfg); err != nil {
		return err
	}

	out := map[string]any{
		"firewall": fw.Status(),
		"tools":    registry.Catalog(),
		"reasoning": map[string]any{
			"max_iterations": cfg.Reasoning.MaxIterations,
			"min_confidence": cfg.Reasoning.MinConfidenceThreshold,
		},
		"human_in_loop": map[string]any{
			"enabled":                cfg.HumanInLoop.Enabled,
			"auto_approve_read_only": cfg.HumanInLoop.AutoApproveReadOnly,
		},
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}

func firewallConfig(fc config.FirewallConfig) firewall.Config {
	return firewall.Config{
		Enabled:           fc.Enabled,
		AllowedPaths:      fc.AllowedPaths,
		BlockedExtensions: fc.BlockedExtensions,
		MaxFileSizeMB:     fc.MaxFileSizeMB,
		MaxOutputLength:   fc.MaxOutputLength,
		FilterSensitive:   fc.FilterSensitive,
	}
}

// buildAuditWriter selects the audit store. Falls back to the log writer if
// the configured store cannot be opened, so an unreachable database never
// prevents a session from starting.
func buildAuditWriter(ac config.AuditConfig, logger *zap.Logger) audit.EventWriter {
	if ac.Driver == "log" {
		return audit.NewLogWriter(logger)
	}

	if ac.Driver == "sqlite" {
		if dir := filepath.Dir(ac.DSN); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				logger.Warn("cannot create audit directory, falling back to log writer",
					zap.String("dir", dir),
					zap.Error(err),
				)
				return audit.NewLogWriter(logger)
			}
		}
	}

	w, err := audit.NewSQLWriter(ac.Driver, ac.DSN, logger)
	if err != nil {
		logger.Warn("audit store unavailable, falling back to log writer",
			zap.String("driver", ac.Driver),
			zap.Error(err),
		)
		return audit.NewLogWriter(logger)
	}
	logger.Info("audit store connected", zap.String("driver", ac.Driver))
	return w
}

func registerBuiltins(registry *tools.Registry, cfg config.Config) error {
	builtins := []tools.Tool{
		tools.NewCalculatorTool(),
		tools.NewWordCountTool(),
		tools.NewReadFileTool(),
		tools.NewWriteFileTool(),
		tools.NewHTTPGetTool(cfg.Web.AllowedHosts, time.Duration(cfg.Web.TimeoutSeconds)*time.Second),
	}
	for _, t := range builtins {
		if err := registry.Register(t); err != nil {
			return err
		}
	}
	return nil
}

// stdinCallback prompts on the terminal for each proposed tool call.
// Anything other than an explicit yes is a rejection.
func stdinCallback(in *os.File, out *os.File) approval.Callback {
	reader := bufio.NewReader(in)
	return func(call agent.ToolCallRequest) bool {
		fmt.Fprintf(out, "\nTool approval requested: %s\n", call.Tool)
		if call.Reason != "" {
			fmt.Fprintf(out, "  Reason: %s\n", call.Reason)
		}
		if len(call.Params) > 0 {
			params, _ := json.Marshal(call.Params)
			fmt.Fprintf(out, "  Params: %s\n", params)
		}
		fmt.Fprint(out, "Approve? [y/N]: ")

		line, err := reader.ReadString('\n')
		if err != nil {
			return false
		}
		answer := strings.ToLower(strings.TrimSpace(line))
		return answer == "y" || answer == "yes"
	}
}

func mustBuildLogger(level string) *zap.Logger {
	var zapLevel zapcore.Level
	switch level {
	case "debug":
		zapLevel = zapcore.DebugLevel
	case "warn":
		zapLevel = zapcore.WarnLevel
	case "error":
		zapLevel = zapcore.ErrorLevel
	default:
		zapLevel = zapcore.InfoLevel
	}

	cfg := zap.Config{
		Level:            zap.NewAtomicLevelAt(zapLevel),
		Development:      false,
		Encoding:         "json",
		EncoderConfig:    zap.NewProductionEncoderConfig(),
		OutputPaths:      []string{"stderr"},
		ErrorOutputPaths: []string{"stderr"},
	}

	logger, err := cfg.Build()
	if err != nil {
		panic(fmt.Sprintf("failed to build logger: %v", err))
	}
	return logger
}
