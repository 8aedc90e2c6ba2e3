package config

import (
	"errors"
	"os"
	"path/filepath"
	"slices"
	"testing"

	"github.com/rlmlabs/rlm/internal/cmdguard"
	"github.com/rlmlabs/rlm/internal/policy"
)

// isolate points HOME and RLM_CONFIG at a temp dir and clears RLM_* overrides.
func isolate(t *testing.T) (home, project string) {
	t.Helper()
	tmp := t.TempDir()
	home = filepath.Join(tmp, "home")
	project = filepath.Join(tmp, "project", ".rlm", "config.yaml")
	t.Setenv("HOME", home)
	t.Setenv("RLM_CONFIG", project)
	for _, k := range []string{"RLM_OUTPUT", "RLM_VERBOSE", "RLM_AUDIT_BACKEND", "RLM_AUDIT_PATH"} {
		t.Setenv(k, "")
	}
	return home, project
}

func writeYAML(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
}

func TestDefault(t *testing.T) {
	cfg := Default()

	if cfg.Output != "table" {
		t.Errorf("Default Output = %q, want %q", cfg.Output, "table")
	}
	if cfg.Verbose {
		t.Error("Default Verbose = true, want false")
	}
	if cfg.AgentEnv != "RLM_AGENT" {
		t.Errorf("Default AgentEnv = %q, want %q", cfg.AgentEnv, "RLM_AGENT")
	}
	if cfg.LevelEnv != "RLM_PERMISSION_LEVEL" {
		t.Errorf("Default LevelEnv = %q, want %q", cfg.LevelEnv, "RLM_PERMISSION_LEVEL")
	}
	if cfg.Audit.Backend != "none" {
		t.Errorf("Default Audit.Backend = %q, want %q", cfg.Audit.Backend, "none")
	}
}

func TestMerge(t *testing.T) {
	dst := Default()
	dst.Guard.ProtectedBranches = []string{"release"}
	src := &Config{
		Output: "json",
		Guard: GuardConfig{
			ProtectedBranches: []string{"release", "prod"},
			AuthorizedAgents:  []string{"release-bot"},
		},
		Audit: AuditConfig{Backend: "jsonl"},
	}

	result := merge(dst, src)

	if result.Output != "json" {
		t.Errorf("merge Output = %q, want %q", result.Output, "json")
	}
	if result.AgentEnv != "RLM_AGENT" {
		t.Errorf("merge should keep AgentEnv default, got %q", result.AgentEnv)
	}
	if !slices.Equal(result.Guard.ProtectedBranches, []string{"release", "prod"}) {
		t.Errorf("merge ProtectedBranches = %v, want [release prod]", result.Guard.ProtectedBranches)
	}
	if !slices.Equal(result.Guard.AuthorizedAgents, []string{"release-bot"}) {
		t.Errorf("merge AuthorizedAgents = %v", result.Guard.AuthorizedAgents)
	}
	if result.Audit.Backend != "jsonl" {
		t.Errorf("merge Audit.Backend = %q", result.Audit.Backend)
	}
}

func TestLoad_Precedence(t *testing.T) {
	home, project := isolate(t)

	writeYAML(t, filepath.Join(home, ".rlm", "config.yaml"), `
output: yaml
guard:
  protected_branches: [release]
  authorized_agents: [release-bot, human]
audit:
  backend: jsonl
`)
	writeYAML(t, project, `
output: json
classifier:
  extra_blocked:
    - pattern: terraform destroy
      reason: infra teardown
`)
	t.Setenv("RLM_AUDIT_BACKEND", "sqlite")

	cfg, warnings := Load(&Config{Verbose: true})
	if len(warnings) != 0 {
		t.Fatalf("unexpected warnings: %v", warnings)
	}

	if cfg.Output != "json" {
		t.Errorf("Output = %q, want project value json", cfg.Output)
	}
	if !cfg.Verbose {
		t.Error("flag Verbose should win")
	}
	if cfg.Audit.Backend != "sqlite" {
		t.Errorf("Audit.Backend = %q, want env value sqlite", cfg.Audit.Backend)
	}
	if !slices.Equal(cfg.Guard.ProtectedBranches, []string{"release"}) {
		t.Errorf("ProtectedBranches = %v", cfg.Guard.ProtectedBranches)
	}
	if len(cfg.Classifier.ExtraBlocked) != 1 || cfg.Classifier.ExtraBlocked[0].Reason != "infra teardown" {
		t.Errorf("ExtraBlocked = %+v", cfg.Classifier.ExtraBlocked)
	}

	auth, err := cfg.Authorization()
	if err != nil {
		t.Fatalf("Authorization: %v", err)
	}
	if !auth.IsProtected("release") || !auth.IsProtected("main") {
		t.Errorf("protected = %v, want defaults plus release", auth.ProtectedBranches())
	}
	if auth.IsAuthorized("devops") || !auth.IsAuthorized("release-bot") {
		t.Errorf("authorized = %v", auth.AuthorizedAgents())
	}
}

// A project config is writable by the agents it guards, so it cannot change
// who is trusted.
func TestLoad_ProjectCannotSetTrust(t *testing.T) {
	_, project := isolate(t)
	writeYAML(t, project, `
agent_env: PROJECT_AGENT
level_env: PROJECT_LEVEL
guard:
  protected_branches: [release]
  authorized_agents: [unknown]
`)

	cfg, warnings := Load(nil)
	if len(warnings) != 3 {
		t.Fatalf("len(warnings) = %d, want 3: %v", len(warnings), warnings)
	}
	for _, w := range warnings {
		if !errors.Is(w, ErrHomeOnly) {
			t.Errorf("warning %v is not ErrHomeOnly", w)
		}
	}
	if cfg.AgentEnv != "RLM_AGENT" || cfg.LevelEnv != "RLM_PERMISSION_LEVEL" {
		t.Errorf("env names = %q, %q, want defaults", cfg.AgentEnv, cfg.LevelEnv)
	}
	if len(cfg.Guard.AuthorizedAgents) != 0 {
		t.Errorf("AuthorizedAgents = %v, want none from project", cfg.Guard.AuthorizedAgents)
	}

	auth, err := cfg.Authorization()
	if err != nil {
		t.Fatalf("Authorization: %v", err)
	}
	if auth.IsAuthorized(policy.UnknownAgent) {
		t.Error("project config authorized the unknown agent")
	}
	if !auth.IsProtected("release") {
		t.Error("project config should still add protected branches")
	}
}

func TestLoad_MalformedFileWarnsAndFallsBack(t *testing.T) {
	_, project := isolate(t)
	writeYAML(t, project, "output: [unterminated\n")

	cfg, warnings := Load(nil)
	if len(warnings) != 1 {
		t.Fatalf("len(warnings) = %d, want 1", len(warnings))
	}
	if cfg.Output != "table" {
		t.Errorf("Output = %q, want default", cfg.Output)
	}
}

func TestLoad_MissingFilesNoWarnings(t *testing.T) {
	isolate(t)
	cfg, warnings := Load(nil)
	if len(warnings) != 0 {
		t.Fatalf("warnings = %v", warnings)
	}
	if cfg.AgentEnv != "RLM_AGENT" {
		t.Errorf("AgentEnv = %q", cfg.AgentEnv)
	}
}

// Configuration can add patterns but never unblock the built-in ones.
func TestPatterns_ConfigCannotUnblockAlways(t *testing.T) {
	_, project := isolate(t)
	writeYAML(t, project, `
guard:
  protected_branches: [release]
classifier:
  extra_blocked:
    - pattern: kubectl delete namespace
`)

	cfg, _ := Load(nil)
	table, err := cfg.Patterns()
	if err != nil {
		t.Fatalf("Patterns: %v", err)
	}
	c := cmdguard.New(table)

	for _, level := range policy.Levels() {
		if c.Classify("rm -rf /", level).Allowed() {
			t.Errorf("rm -rf / allowed at %s", level)
		}
		if c.Classify("kubectl delete namespace prod", level).Allowed() {
			t.Errorf("configured pattern allowed at %s", level)
		}
	}
	if c.Classify("git push origin release", policy.LevelStandard).Allowed() {
		t.Error("push to configured protected branch allowed at standard")
	}
}

func TestPatterns_InvalidConfig(t *testing.T) {
	cfg := Default()
	cfg.Classifier.ExtraBlocked = []policy.Pattern{{Substring: ""}}
	if _, err := cfg.Patterns(); err == nil {
		t.Fatal("expected error for empty pattern")
	}
}

func TestResolve_Lists(t *testing.T) {
	home, project := isolate(t)
	writeYAML(t, filepath.Join(home, ".rlm", "config.yaml"), `
guard:
  protected_branches: [release]
  authorized_agents: [release-bot]
`)
	writeYAML(t, project, `
guard:
  protected_branches: [prod]
  authorized_agents: [unknown]
classifier:
  extra_blocked:
    - pattern: terraform
      requires: " destroy"
`)

	rc := Resolve("", false)

	if got, _ := rc.ProtectedBranches.Value.([]string); !slices.Equal(got, []string{"main", "master", "release", "prod"}) {
		t.Errorf("ProtectedBranches = %v", rc.ProtectedBranches.Value)
	}
	if rc.ProtectedBranches.Source != SourceProject {
		t.Errorf("ProtectedBranches source = %s, want project", rc.ProtectedBranches.Source)
	}
	if got, _ := rc.AuthorizedAgents.Value.([]string); !slices.Equal(got, []string{"release-bot"}) || rc.AuthorizedAgents.Source != SourceHome {
		t.Errorf("AuthorizedAgents = %+v, want [release-bot] from home", rc.AuthorizedAgents)
	}
	if got, _ := rc.ExtraBlocked.Value.([]string); !slices.Equal(got, []string{"terraform ... destroy"}) {
		t.Errorf("ExtraBlocked = %v", rc.ExtraBlocked.Value)
	}
}

func TestResolve_Sources(t *testing.T) {
	home, project := isolate(t)
	writeYAML(t, filepath.Join(home, ".rlm", "config.yaml"), "output: yaml\nagent_env: AGENT_ID\n")
	writeYAML(t, project, "verbose: true\n")
	t.Setenv("RLM_AUDIT_PATH", "/tmp/audit.jsonl")

	rc := Resolve("", false)

	if rc.Output.Value != "yaml" || rc.Output.Source != SourceHome {
		t.Errorf("Output = %+v, want yaml from home", rc.Output)
	}
	if rc.AgentEnv.Value != "AGENT_ID" || rc.AgentEnv.Source != SourceHome {
		t.Errorf("AgentEnv = %+v", rc.AgentEnv)
	}
	if rc.LevelEnv.Source != SourceDefault {
		t.Errorf("LevelEnv source = %s, want default", rc.LevelEnv.Source)
	}
	if rc.Verbose.Value != true || rc.Verbose.Source != SourceProject {
		t.Errorf("Verbose = %+v, want true from project", rc.Verbose)
	}
	if rc.AuditPath.Value != "/tmp/audit.jsonl" || rc.AuditPath.Source != SourceEnv {
		t.Errorf("AuditPath = %+v", rc.AuditPath)
	}

	if rc.AuthorizedAgents.Source != SourceDefault {
		t.Errorf("AuthorizedAgents source = %s, want default", rc.AuthorizedAgents.Source)
	}
	if rc.ExtraBlocked.Source != SourceDefault {
		t.Errorf("ExtraBlocked source = %s, want default", rc.ExtraBlocked.Source)
	}

	rc = Resolve("json", true)
	if rc.Output.Source != SourceFlag || rc.Verbose.Source != SourceFlag {
		t.Errorf("flags should win: output=%+v verbose=%+v", rc.Output, rc.Verbose)
	}
}
