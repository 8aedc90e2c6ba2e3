package main

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/rlmlabs/rlm/internal/config"
)

var (
	// Global flags
	verbose bool
	output  string
	cfgFile string

	// appConfig is loaded once per invocation before any subcommand runs.
	appConfig = config.Default()

	// getenv is swapped in tests.
	getenv = os.Getenv
)

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "rlm",
	Short: "Branch protection and command guards for agent workflows",
	Long: `rlm enforces two guard rails for agent-driven repositories.

Hooks:
  hook pre-push       Git pre-push hook: protected branches need an authorized agent
  hook pre-tool-use   Agent PreToolUse hook: classify shell commands by permission level

Inspection:
  policy show         Show protected branches, agents and blocked patterns
  policy check        Classify a command without running it
  audit list          Show recorded decisions
  hooks init          Print hook snippets to install
  config --show       Show resolved configuration

Agent identity is read from RLM_AGENT and the permission level from
RLM_PERMISSION_LEVEL (readonly, standard, privileged).`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		syncConfigFlagToEnv()
		initConfig(cmd.ErrOrStderr())
	},
}

// exitError carries a process exit code out of a RunE.
type exitError struct {
	code int
}

func (e *exitError) Error() string {
	return fmt.Sprintf("exit status %d", e.code)
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		var ee *exitError
		if !errors.As(err, &ee) {
			//nolint:errcheck // last-chance error output
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		}
		os.Exit(exitCode(err))
	}
}

// exitCode maps a command error to the process exit status.
func exitCode(err error) int {
	var ee *exitError
	if errors.As(err, &ee) {
		return ee.code
	}
	return 1
}

func init() {
	// Global flags available to all commands
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging on stderr")
	rootCmd.PersistentFlags().StringVarP(&output, "output", "o", "", "Output format (table, json, yaml)")
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "Config file (default: .rlm/config.yaml)")
}

// initConfig loads layered configuration and installs the default logger.
// Config problems are logged, never fatal: the hooks must keep working.
func initConfig(logOut io.Writer) {
	cfg, warnings := config.Load(&config.Config{Output: output, Verbose: verbose})
	appConfig = cfg
	setupLogger(logOut, cfg.Verbose)
	for _, w := range warnings {
		slog.Warn("config", "warning", w)
	}
}

// setupLogger routes slog to w at warn level, or debug when verbose.
func setupLogger(w io.Writer, verbose bool) {
	level := slog.LevelWarn
	if verbose {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level})))
}

// GetOutput returns the output format for use by subcommands.
func GetOutput() string {
	if output != "" {
		return output
	}
	return appConfig.Output
}

// GetConfigFile returns the config file path for use by subcommands.
func GetConfigFile() string {
	return cfgFile
}

func syncConfigFlagToEnv() {
	path := strings.TrimSpace(GetConfigFile())
	if path == "" {
		return
	}
	_ = os.Setenv("RLM_CONFIG", path)
}
