package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/rlmlabs/rlm/internal/cmdguard"
	"github.com/rlmlabs/rlm/internal/formatter"
	"github.com/rlmlabs/rlm/internal/policy"
)

var policyCheckLevel string

var policyCmd = &cobra.Command{
	Use:   "policy",
	Short: "Inspect the branch protection and command policy",
}

var policyShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show protected branches, authorized agents and blocked patterns",
	Long: `Show the effective policy after configuration is applied.

Output formats (-o):
  table      Human-readable tables (default)
  json       Machine-readable JSON
  yaml       YAML
  markdown   Markdown section for agent definitions

Examples:
  rlm policy show
  rlm policy show -o markdown > docs/agent-policy.md`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		doc := formatter.NewPolicyDoc(authorization(appConfig), patterns(appConfig), appConfig.AgentEnv, appConfig.LevelEnv)
		return outputPolicy(cmd.OutOrStdout(), doc, GetOutput())
	},
}

var policyCheckCmd = &cobra.Command{
	Use:   "check <command...>",
	Short: "Classify a shell command without running it",
	Long: `Classify a command the way the pre-tool-use hook would.

The level defaults to RLM_PERMISSION_LEVEL, then standard. Exit status is 0
when the command is allowed and 2 when it is blocked.

Examples:
  rlm policy check git push origin main
  rlm policy check --level readonly -- git commit -m wip`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		raw := policyCheckLevel
		if raw == "" {
			raw = strings.TrimSpace(getenv(appConfig.LevelEnv))
		}
		level, known := policy.ParseLevel(raw)
		if !known && raw != "" {
			return fmt.Errorf("unknown level %q (use %s)", raw, levelNames())
		}

		command := strings.Join(args, " ")
		d := cmdguard.New(patterns(appConfig)).Classify(command, level)
		if err := outputCheck(cmd.OutOrStdout(), command, level, d, GetOutput()); err != nil {
			return err
		}
		if !d.Allowed() {
			return &exitError{code: exitCommandBlocked}
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(policyCmd)
	policyCmd.AddCommand(policyShowCmd)
	policyCmd.AddCommand(policyCheckCmd)
	policyCheckCmd.Flags().StringVar(&policyCheckLevel, "level", "", "Permission level: "+levelNames())
}

func levelNames() string {
	names := make([]string, 0, len(policy.Levels()))
	for _, l := range policy.Levels() {
		names = append(names, string(l))
	}
	return strings.Join(names, ", ")
}

func outputPolicy(w io.Writer, doc formatter.PolicyDoc, format string) error {
	switch format {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		enc.SetEscapeHTML(false)
		return enc.Encode(doc)

	case "yaml":
		enc := yaml.NewEncoder(w)
		defer enc.Close()
		return enc.Encode(doc)

	case "markdown", "md":
		return formatter.WritePolicyMarkdown(w, doc)

	default:
		return outputPolicyTable(w, doc)
	}
}

func outputPolicyTable(w io.Writer, doc formatter.PolicyDoc) error {
	//nolint:errcheck // CLI output
	fmt.Fprintf(w, "Protected branches: %s\n", strings.Join(doc.ProtectedBranches, ", "))
	//nolint:errcheck // CLI output
	fmt.Fprintf(w, "Authorized agents (%s): %s\n", doc.AgentEnv, strings.Join(doc.AuthorizedAgents, ", "))
	//nolint:errcheck // CLI output
	fmt.Fprintf(w, "Permission level from: %s\n\n", doc.LevelEnv)

	tbl := formatter.NewTable(w, "TIER", "PATTERN", "REASON").SetMaxWidth(2, 72)
	for _, p := range doc.Always {
		tbl.AddRow("always", p.String(), p.Reason)
	}
	for _, tier := range doc.Tiers {
		for _, p := range tier.Patterns {
			tbl.AddRow(string(tier.Level), p.String(), p.Reason)
		}
	}
	return tbl.Render()
}

// checkResult is the machine-readable form of "policy check".
type checkResult struct {
	Command string         `json:"command" yaml:"command"`
	Level   policy.Level   `json:"level" yaml:"level"`
	Outcome policy.Outcome `json:"outcome" yaml:"outcome"`
	Reason  string         `json:"reason,omitempty" yaml:"reason,omitempty"`
	Pattern string         `json:"pattern,omitempty" yaml:"pattern,omitempty"`
}

func outputCheck(w io.Writer, command string, level policy.Level, d policy.Decision, format string) error {
	res := checkResult{Command: command, Level: level, Outcome: d.Outcome, Reason: d.Reason, Pattern: d.Pattern}
	switch format {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		enc.SetEscapeHTML(false)
		return enc.Encode(res)

	case "yaml":
		enc := yaml.NewEncoder(w)
		defer enc.Close()
		return enc.Encode(res)

	default:
		if d.Allowed() {
			_, err := fmt.Fprintf(w, "ALLOWED at %s level\n", level)
			return err
		}
		_, err := fmt.Fprintf(w, "BLOCKED at %s level: %s\n", level, d.Reason)
		return err
	}
}
