package main

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/rlmlabs/rlm/internal/config"
	"github.com/rlmlabs/rlm/internal/formatter"
	"github.com/rlmlabs/rlm/internal/storage"
)

var auditLimit int

var auditCmd = &cobra.Command{
	Use:   "audit",
	Short: "Inspect recorded hook decisions",
	Long: `Hook decisions are recorded when an audit backend is configured:

  audit:
    backend: jsonl      # none (default), jsonl or sqlite
    path: ~/.rlm/audit.jsonl

or with RLM_AUDIT_BACKEND / RLM_AUDIT_PATH.`,
}

var auditListCmd = &cobra.Command{
	Use:   "list",
	Short: "List recent decisions, newest first",
	Long: `List recorded decisions, newest first.

Output formats (-o): table (default), json, yaml, jsonl.

Examples:
  rlm audit list
  rlm audit list --limit 5 -o jsonl`,
	Args: cobra.NoArgs,
	RunE: runAuditList,
}

func init() {
	rootCmd.AddCommand(auditCmd)
	auditCmd.AddCommand(auditListCmd)
	auditListCmd.Flags().IntVar(&auditLimit, "limit", 20, "Maximum records to show (0 = all)")
}

func runAuditList(cmd *cobra.Command, args []string) error {
	w := cmd.OutOrStdout()
	backend := appConfig.Audit.Backend
	if backend == "" || backend == storage.BackendNone {
		//nolint:errcheck // CLI output
		fmt.Fprintln(w, "Audit trail disabled (set audit.backend or RLM_AUDIT_BACKEND to jsonl or sqlite)")
		return nil
	}

	path := appConfig.Audit.Path
	if path == "" {
		path = storage.DefaultPath(backend, config.HomeDir())
	}
	s, err := storage.Open(backend, path)
	if err != nil {
		return fmt.Errorf("open audit store: %w", err)
	}
	defer s.Close()

	records, err := s.List(auditLimit)
	if err != nil {
		return fmt.Errorf("list audit records: %w", err)
	}
	return outputAudit(w, records, GetOutput())
}

func outputAudit(w io.Writer, records []storage.Record, format string) error {
	if records == nil {
		records = []storage.Record{}
	}
	switch format {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		enc.SetEscapeHTML(false)
		return enc.Encode(records)

	case "yaml":
		enc := yaml.NewEncoder(w)
		defer enc.Close()
		return enc.Encode(records)

	case "jsonl":
		return formatter.WriteJSONL(w, records)

	default:
		return outputAuditTable(w, records)
	}
}

func outputAuditTable(w io.Writer, records []storage.Record) error {
	if len(records) == 0 {
		//nolint:errcheck // CLI output
		fmt.Fprintln(w, "No decisions recorded")
		return nil
	}

	tbl := formatter.NewTable(w, "TIME", "COMPONENT", "OUTCOME", "ACTOR", "SUBJECT", "REASON").
		SetMaxWidth(4, 40).
		SetMaxWidth(5, 60)
	for _, r := range records {
		tbl.AddRow(
			r.Time.Local().Format("2006-01-02 15:04:05"),
			r.Component,
			string(r.Outcome),
			r.Actor,
			r.Subject,
			r.Reason,
		)
	}
	return tbl.Render()
}
