package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/rlmlabs/rlm/internal/config"
)

var (
	configShow bool
)

// configEnvVars are listed by "config --show" when set.
var configEnvVars = []string{
	"RLM_CONFIG",
	"RLM_OUTPUT",
	"RLM_VERBOSE",
	"RLM_AUDIT_BACKEND",
	"RLM_AUDIT_PATH",
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration",
	Long: `View rlm configuration.

Configuration priority (highest to lowest):
  1. Command-line flags
  2. Environment variables (RLM_*)
  3. Project config (.rlm/config.yaml)
  4. Home config (~/.rlm/config.yaml)
  5. Defaults

Environment variables:
  RLM_CONFIG          - Explicit config file path (overrides default project config location)
  RLM_OUTPUT          - Default output format (table, json, yaml)
  RLM_VERBOSE         - Enable debug logging (true/1)
  RLM_AUDIT_BACKEND   - Audit backend (none, jsonl, sqlite)
  RLM_AUDIT_PATH      - Audit file path

Hook inputs (names configurable with agent_env / level_env):
  RLM_AGENT             - Agent identity checked by the pre-push hook
  RLM_PERMISSION_LEVEL  - readonly, standard or privileged for pre-tool-use

Examples:
  rlm config --show           # Show resolved configuration
  rlm config --show -o json   # Output as JSON`,
	RunE: runConfig,
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.Flags().BoolVar(&configShow, "show", false, "Show resolved configuration with sources")
}

func runConfig(cmd *cobra.Command, args []string) error {
	if !configShow {
		return cmd.Help()
	}

	resolved := config.Resolve(output, verbose)
	w := cmd.OutOrStdout()

	switch GetOutput() {
	case "json":
		data, err := json.MarshalIndent(resolved, "", "  ")
		if err != nil {
			return fmt.Errorf("marshal config: %w", err)
		}
		_, err = fmt.Fprintln(w, string(data))
		return err

	case "yaml":
		enc := yaml.NewEncoder(w)
		defer enc.Close()
		return enc.Encode(resolved)
	}

	printResolvedConfig(w, resolved)
	return nil
}

//nolint:errcheck // CLI output
func printResolvedConfig(w io.Writer, resolved *config.ResolvedConfig) {
	fmt.Fprintln(w, "rlm Configuration")
	fmt.Fprintln(w, "=================")
	fmt.Fprintln(w)

	fmt.Fprintln(w, "Config files:")
	if dir := config.HomeDir(); dir != "" {
		printConfigFile(w, "Home:   ", filepath.Join(dir, "config.yaml"))
	}
	project := os.Getenv("RLM_CONFIG")
	if project == "" {
		cwd, _ := os.Getwd()
		project = filepath.Join(cwd, ".rlm", "config.yaml")
	}
	printConfigFile(w, "Project:", project)

	fmt.Fprintln(w)
	fmt.Fprintln(w, "Resolved values:")
	fmt.Fprintf(w, "  output:        %v  (from %s)\n", resolved.Output.Value, resolved.Output.Source)
	fmt.Fprintf(w, "  verbose:       %v  (from %s)\n", resolved.Verbose.Value, resolved.Verbose.Source)
	fmt.Fprintf(w, "  agent_env:     %v  (from %s)\n", resolved.AgentEnv.Value, resolved.AgentEnv.Source)
	fmt.Fprintf(w, "  level_env:     %v  (from %s)\n", resolved.LevelEnv.Value, resolved.LevelEnv.Source)
	fmt.Fprintf(w, "  audit.backend: %v  (from %s)\n", resolved.AuditBackend.Value, resolved.AuditBackend.Source)
	fmt.Fprintf(w, "  audit.path:    %v  (from %s)\n", resolved.AuditPath.Value, resolved.AuditPath.Source)
	fmt.Fprintf(w, "  guard.protected_branches:   %s  (from %s)\n", listValue(resolved.ProtectedBranches.Value), resolved.ProtectedBranches.Source)
	fmt.Fprintf(w, "  guard.authorized_agents:    %s  (from %s)\n", listValue(resolved.AuthorizedAgents.Value), resolved.AuthorizedAgents.Source)
	fmt.Fprintf(w, "  classifier.extra_blocked:   %s  (from %s)\n", listValue(resolved.ExtraBlocked.Value), resolved.ExtraBlocked.Source)

	fmt.Fprintln(w)
	fmt.Fprintln(w, "Environment variables (if set):")
	anySet := false
	for _, env := range configEnvVars {
		if v := os.Getenv(env); v != "" {
			fmt.Fprintf(w, "  %s=%s\n", env, v)
			anySet = true
		}
	}
	if !anySet {
		fmt.Fprintln(w, "  (none set)")
	}
}

// listValue joins a resolved list for display.
func listValue(v any) string {
	list, ok := v.([]string)
	if !ok || len(list) == 0 {
		return "(none)"
	}
	return strings.Join(list, ", ")
}

//nolint:errcheck // CLI output
func printConfigFile(w io.Writer, label, path string) {
	if _, err := os.Stat(path); err == nil {
		fmt.Fprintf(w, "  ✓ %s %s\n", label, path)
	} else {
		fmt.Fprintf(w, "  ✗ %s %s (not found)\n", label, path)
	}
}
