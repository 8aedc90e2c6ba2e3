package main

import (
	"fmt"
	"io/fs"

	"github.com/spf13/cobra"

	"github.com/rlmlabs/rlm/embedded"
)

var hooksOutputFormat string

var hooksCmd = &cobra.Command{
	Use:   "hooks",
	Short: "Generate hook configuration",
	Long: `The hooks command prints the snippets that wire rlm into git and the agent
runtime.

Example workflow:
  rlm hooks init                              # PreToolUse block for settings.json
  rlm hooks init --format shell > .git/hooks/pre-push
  chmod +x .git/hooks/pre-push`,
}

var hooksInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Generate hooks configuration",
	Long: `Generate hook configuration.

Output formats:
  json     PreToolUse hook block for the agent runtime's settings.json
  shell    Git pre-push hook script`,
	Args: cobra.NoArgs,
	RunE: runHooksInit,
}

func init() {
	rootCmd.AddCommand(hooksCmd)
	hooksCmd.AddCommand(hooksInitCmd)
	hooksInitCmd.Flags().StringVar(&hooksOutputFormat, "format", "json", "Output format: json, shell")
}

// hookFiles maps an init format to its file in embedded.HooksFS.
var hookFiles = map[string]string{
	"json":  embedded.SettingsJSON,
	"shell": embedded.PrePushHook,
}

func runHooksInit(cmd *cobra.Command, args []string) error {
	name, ok := hookFiles[hooksOutputFormat]
	if !ok {
		return fmt.Errorf("unknown format: %s (use json or shell)", hooksOutputFormat)
	}
	data, err := fs.ReadFile(embedded.HooksFS, name)
	if err != nil {
		return fmt.Errorf("read embedded %s: %w", name, err)
	}
	_, err = cmd.OutOrStdout().Write(data)
	return err
}
