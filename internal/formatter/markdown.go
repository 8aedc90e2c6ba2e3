package formatter

import (
	"fmt"
	"io"
	"strings"
	"text/template"

	"github.com/rlmlabs/rlm/internal/policy"
)

// PolicyDoc is the data rendered by WritePolicyMarkdown.
type PolicyDoc struct {
	AgentEnv          string           `json:"agent_env" yaml:"agent_env"`
	LevelEnv          string           `json:"level_env" yaml:"level_env"`
	ProtectedBranches []string         `json:"protected_branches" yaml:"protected_branches"`
	AuthorizedAgents  []string         `json:"authorized_agents" yaml:"authorized_agents"`
	Always            []policy.Pattern `json:"always_blocked" yaml:"always_blocked"`
	Tiers             []TierDoc        `json:"tiers" yaml:"tiers"`
}

// TierDoc lists the patterns a single level owns.
type TierDoc struct {
	Level    policy.Level     `json:"level" yaml:"level"`
	Patterns []policy.Pattern `json:"patterns" yaml:"patterns"`
}

// NewPolicyDoc collects the tables for rendering.
func NewPolicyDoc(auth policy.AuthorizationPolicy, table policy.PatternTable, agentEnv, levelEnv string) PolicyDoc {
	doc := PolicyDoc{
		AgentEnv:          agentEnv,
		LevelEnv:          levelEnv,
		ProtectedBranches: auth.ProtectedBranches(),
		AuthorizedAgents:  auth.AuthorizedAgents(),
		Always:            table.Always(),
	}
	for _, level := range policy.Levels() {
		doc.Tiers = append(doc.Tiers, TierDoc{Level: level, Patterns: table.Tier(level)})
	}
	return doc
}

// WritePolicyMarkdown renders the policy as a markdown section suitable for
// pasting into an agent definition.
func WritePolicyMarkdown(w io.Writer, doc PolicyDoc) error {
	tmpl, err := template.New("policy").Funcs(template.FuncMap{
		"code": mdCode,
		"join": strings.Join,
	}).Parse(policyTemplate)
	if err != nil {
		return fmt.Errorf("parse template: %w", err)
	}
	return tmpl.Execute(w, doc)
}

// mdCode wraps s in backticks, escaping pipes so it survives a table cell.
func mdCode(s string) string {
	return "`" + strings.ReplaceAll(s, "|", `\|`) + "`"
}

const policyTemplate = `## Branch protection

Pushes to {{range $i, $b := .ProtectedBranches}}{{if $i}}, {{end}}{{code $b}}{{end}} are allowed only when ` + "`{{.AgentEnv}}`" + ` is one of: {{join .AuthorizedAgents ", "}}.

## Command classification

Permission level is read from ` + "`{{.LevelEnv}}`" + ` (readonly, standard, privileged; default standard).
Each level also blocks every pattern of the levels above it.

### Always blocked

| Pattern | Reason |
|---------|--------|
{{range .Always}}| {{code .String}} | {{.Reason}} |
{{end}}
{{range .Tiers}}### {{.Level}}

| Pattern | Reason |
|---------|--------|
{{range .Patterns}}| {{code .String}} | {{.Reason}} |
{{end}}
{{end}}`
