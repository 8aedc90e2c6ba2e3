package main

import (
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"

	"github.com/rlmlabs/rlm/internal/cmdguard"
	"github.com/rlmlabs/rlm/internal/config"
	"github.com/rlmlabs/rlm/internal/policy"
	"github.com/rlmlabs/rlm/internal/pushguard"
	"github.com/rlmlabs/rlm/internal/storage"
)

// Exit codes understood by the hosts that run the hooks.
const (
	exitPushBlocked    = 1 // git aborts the push on any non-zero status
	exitCommandBlocked = 2 // the agent runtime treats 2 as a block and shows stderr
)

var hookCmd = &cobra.Command{
	Use:   "hook",
	Short: "Hook entry points (run by git and the agent runtime)",
	Long: `Hook entry points. These read their input from stdin and decide with
their exit status; they are not meant to be run by hand.

  pre-push       install as .git/hooks/pre-push (see: rlm hooks init --format shell)
  pre-tool-use   install as a PreToolUse hook for Bash (see: rlm hooks init)`,
}

var hookPrePushCmd = &cobra.Command{
	Use:   "pre-push [remote] [url]",
	Short: "Block pushes to protected branches by unauthorized agents",
	Long: `Reads git pre-push ref updates from stdin:

  <local ref> <local sha> <remote ref> <remote sha>

If any ref targets a protected branch (main, master) and RLM_AGENT is not an
authorized agent (devops, orchestrator, human), the whole push is rejected
with exit status 1. Unset RLM_AGENT is treated as "unknown".`,
	Args: cobra.MaximumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		h := newHookEnv(cmd)
		defer h.close()
		if code := runPrePush(h, args); code != 0 {
			return &exitError{code: code}
		}
		return nil
	},
}

var hookPreToolUseCmd = &cobra.Command{
	Use:   "pre-tool-use",
	Short: "Classify a proposed shell command by permission level",
	Long: `Reads a hook payload from stdin, either {"command": "..."} or
{"tool_input": {"command": "..."}}, and classifies the command at the level in
RLM_PERMISSION_LEVEL (readonly, standard, privileged; default standard).

Exit status 0 allows the command. Exit status 2 blocks it and prints
"BLOCKED: <reason>" on stderr. Payloads that cannot be parsed are allowed.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		h := newHookEnv(cmd)
		defer h.close()
		if code := runPreToolUse(h); code != 0 {
			return &exitError{code: code}
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(hookCmd)
	hookCmd.AddCommand(hookPrePushCmd)
	hookCmd.AddCommand(hookPreToolUseCmd)
}

// hookEnv is everything a hook reads from its process. Tests build one
// directly instead of touching os.Stdin and the real environment.
type hookEnv struct {
	stdin  io.Reader
	stderr io.Writer
	getenv func(string) string
	cfg    *config.Config
	store  storage.Storage
}

func newHookEnv(cmd *cobra.Command) hookEnv {
	return hookEnv{
		stdin:  cmd.InOrStdin(),
		stderr: cmd.ErrOrStderr(),
		getenv: getenv,
		cfg:    appConfig,
		store:  openAudit(appConfig),
	}
}

func (h hookEnv) close() {
	if h.store == nil {
		return
	}
	if err := h.store.Close(); err != nil {
		slog.Warn("close audit store", "error", err)
	}
}

// record appends a decision to the audit trail. Failures are logged only.
func (h hookEnv) record(rec storage.Record) {
	if h.store == nil {
		return
	}
	if err := h.store.Append(rec); err != nil {
		slog.Warn("audit write failed", "component", rec.Component, "error", err)
	}
}

// openAudit opens the configured audit store, falling back to discarding
// records when it cannot be opened.
func openAudit(cfg *config.Config) storage.Storage {
	path := cfg.Audit.Path
	if path == "" {
		path = storage.DefaultPath(cfg.Audit.Backend, config.HomeDir())
	}
	s, err := storage.Open(cfg.Audit.Backend, path)
	if err != nil {
		slog.Warn("audit disabled", "backend", cfg.Audit.Backend, "path", path, "error", err)
		return storage.NopStorage{}
	}
	return s
}

// authorization returns the configured push policy, or the built-in one when
// the configuration is unusable.
func authorization(cfg *config.Config) policy.AuthorizationPolicy {
	auth, err := cfg.Authorization()
	if err != nil {
		slog.Warn("invalid guard config, using built-in policy", "error", err)
		return policy.DefaultAuthorization()
	}
	return auth
}

// patterns returns the configured pattern table, or the built-in one when the
// configuration is unusable.
func patterns(cfg *config.Config) policy.PatternTable {
	table, err := cfg.Patterns()
	if err != nil {
		slog.Warn("invalid classifier config, using built-in patterns", "error", err)
		return policy.DefaultPatterns()
	}
	return table
}

// runPrePush evaluates a git pre-push batch and returns the exit status.
//
// Unlike the command classifier this guard fails closed: if the ref list
// cannot be read completely, the push is refused.
func runPrePush(h hookEnv, args []string) int {
	events, err := pushguard.ParseEvents(h.stdin)
	if err != nil {
		//nolint:errcheck // hook output to stderr
		fmt.Fprintf(h.stderr, "rlm: cannot read pushed refs, refusing push: %v\n", err)
		return exitPushBlocked
	}

	auth := authorization(h.cfg)
	agent := h.getenv(h.cfg.AgentEnv)
	res := pushguard.New(auth).Evaluate(events, agent)

	refs := make([]string, 0, len(events))
	for _, ev := range events {
		refs = append(refs, ev.RemoteRef)
	}
	slog.Debug("pre-push evaluated",
		"component", storage.ComponentPrePush,
		"outcome", res.Decision.Outcome,
		"agent", res.Agent,
		"refs", strings.Join(refs, " "),
	)

	for _, branch := range res.Authorized {
		pushguard.RenderConfirmation(h.stderr, branch, res.Agent)
	}

	subject := strings.Join(refs, " ")
	if !res.Decision.Allowed() {
		subject = res.Branch
	}
	h.record(storage.NewRecord(storage.ComponentPrePush, subject, res.Agent, res.Decision))

	if res.Decision.Allowed() {
		return 0
	}

	opts := pushguard.MessageOptions{
		AgentEnv:         h.cfg.AgentEnv,
		AuthorizedAgents: auth.AuthorizedAgents(),
	}
	if len(args) > 0 {
		opts.Remote = args[0]
	}
	pushguard.RenderDenial(h.stderr, res, opts)
	return exitPushBlocked
}

// runPreToolUse classifies the command in a PreToolUse payload and returns
// the exit status. Payloads without a readable command are allowed.
func runPreToolUse(h hookEnv) int {
	command, ok := cmdguard.ParsePayload(h.stdin)
	if !ok {
		slog.Debug("pre-tool-use payload has no command, allowing", "component", storage.ComponentPreToolUse)
		return 0
	}

	raw := h.getenv(h.cfg.LevelEnv)
	level, known := policy.ParseLevel(raw)
	if !known && raw != "" {
		slog.Warn("unknown permission level, using standard", "level", raw)
	}

	d := cmdguard.New(patterns(h.cfg)).Classify(command, level)
	slog.Debug("pre-tool-use evaluated",
		"component", storage.ComponentPreToolUse,
		"outcome", d.Outcome,
		"level", level,
		"command", command,
	)
	h.record(storage.NewRecord(storage.ComponentPreToolUse, command, string(level), d))

	if d.Allowed() {
		return 0
	}
	//nolint:errcheck // hook output to stderr
	fmt.Fprintf(h.stderr, "BLOCKED: %s\n", d.Reason)
	return exitCommandBlocked
}
