package pushguard

import (
	"fmt"
	"io"
	"strings"
)

// MessageOptions controls the remediation text in rendered messages.
type MessageOptions struct {
	// AgentEnv is the environment variable carrying the agent identity.
	AgentEnv string
	// Remote is the git remote being pushed to. Defaults to "origin".
	Remote string
	// AuthorizedAgents is listed in the denial, in policy order.
	AuthorizedAgents []string
}

func (o MessageOptions) remote() string {
	if o.Remote == "" {
		return "origin"
	}
	return o.Remote
}

func (o MessageOptions) agentEnv() string {
	if o.AgentEnv == "" {
		return "RLM_AGENT"
	}
	return o.AgentEnv
}

// RenderConfirmation writes the one-line note printed for each protected
// branch an authorized agent pushes.
func RenderConfirmation(w io.Writer, branch, agent string) {
	//nolint:errcheck // hook output to stderr
	fmt.Fprintf(w, "✓ Push to protected branch '%s' authorized for agent '%s'\n", branch, agent)
}

// RenderDenial writes the multi-line banner explaining a blocked push and how
// to get it through.
func RenderDenial(w io.Writer, res Result, opts MessageOptions) {
	agents := strings.Join(opts.AuthorizedAgents, ", ")
	action := "Push"
	if res.Blocked != nil && res.Blocked.IsDelete() {
		action = "Delete"
	}

	var b strings.Builder
	b.WriteString("\n")
	b.WriteString("PUSH BLOCKED: protected branch\n")
	b.WriteString("==============================\n")
	b.WriteString("\n")
	fmt.Fprintf(&b, "  %s to '%s' requires an authorized agent.\n", action, res.Branch)
	b.WriteString("\n")
	fmt.Fprintf(&b, "  Branch:            %s\n", res.Branch)
	fmt.Fprintf(&b, "  Agent:             %s\n", res.Agent)
	fmt.Fprintf(&b, "  Authorized agents: %s\n", agents)
	b.WriteString("\n")
	b.WriteString("To continue, either:\n")
	b.WriteString("\n")
	b.WriteString("  1. Push a feature branch and open a pull request:\n")
	b.WriteString("       git checkout -b feature/<name>\n")
	fmt.Fprintf(&b, "       git push -u %s feature/<name>\n", opts.remote())
	b.WriteString("\n")
	if len(opts.AuthorizedAgents) > 0 {
		b.WriteString("  2. Hand the push to an authorized agent:\n")
		fmt.Fprintf(&b, "       %s=%s git push %s %s\n", opts.agentEnv(), opts.AuthorizedAgents[0], opts.remote(), res.Branch)
		b.WriteString("\n")
	}

	//nolint:errcheck // hook output to stderr
	io.WriteString(w, b.String())
}
