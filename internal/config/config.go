// Package config provides configuration management for rlm.
// Configuration is loaded from (highest to lowest priority):
// 1. Command-line flags
// 2. Environment variables (RLM_*)
// 3. Project config (.rlm/config.yaml in cwd, or RLM_CONFIG)
// 4. Home config (~/.rlm/config.yaml)
// 5. Defaults
//
// Project config is writable by the agents being guarded, so it can only
// widen protection: extra protected branches and extra always-blocked
// patterns are added to the built-in tables. Settings that decide who is
// trusted (authorized_agents, agent_env, level_env) are read from the home
// config only and ignored, with a warning, at project scope.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/rlmlabs/rlm/internal/policy"
)

// ErrHomeOnly reports a trust setting found in a project config.
var ErrHomeOnly = errors.New("setting is only read from ~/.rlm/config.yaml, ignoring")

// Config holds all rlm configuration.
type Config struct {
	// Output controls the default output format (table, json, yaml).
	Output string `yaml:"output" json:"output"`

	// Verbose enables debug logging on stderr.
	Verbose bool `yaml:"verbose" json:"verbose"`

	// AgentEnv is the environment variable that carries the agent identity.
	// Default: RLM_AGENT. Home config only.
	AgentEnv string `yaml:"agent_env" json:"agent_env"`

	// LevelEnv is the environment variable that carries the permission level.
	// Default: RLM_PERMISSION_LEVEL. Home config only.
	LevelEnv string `yaml:"level_env" json:"level_env"`

	// Guard settings for the pre-push hook.
	Guard GuardConfig `yaml:"guard" json:"guard"`

	// Classifier settings for the pre-tool-use hook.
	Classifier ClassifierConfig `yaml:"classifier" json:"classifier"`

	// Audit settings for the decision trail.
	Audit AuditConfig `yaml:"audit" json:"audit"`
}

// GuardConfig holds push guard settings.
type GuardConfig struct {
	// ProtectedBranches are added to the built-in main and master.
	ProtectedBranches []string `yaml:"protected_branches" json:"protected_branches"`

	// AuthorizedAgents replaces the built-in devops, orchestrator, human
	// when non-empty. Home config only.
	AuthorizedAgents []string `yaml:"authorized_agents" json:"authorized_agents"`
}

// ClassifierConfig holds command classifier settings.
type ClassifierConfig struct {
	// ExtraBlocked patterns are blocked at every permission level.
	ExtraBlocked []policy.Pattern `yaml:"extra_blocked" json:"extra_blocked"`
}

// AuditConfig holds audit trail settings.
type AuditConfig struct {
	// Backend is none, jsonl or sqlite. Default: none
	Backend string `yaml:"backend" json:"backend"`

	// Path is the audit file. Default: ~/.rlm/audit.jsonl or ~/.rlm/audit.db
	Path string `yaml:"path" json:"path"`
}

// Default config values (used in resolution and validation).
const (
	defaultOutput       = "table"
	defaultAgentEnv     = "RLM_AGENT"
	defaultLevelEnv     = "RLM_PERMISSION_LEVEL"
	defaultAuditBackend = "none"
)

// Default returns the default configuration.
func Default() *Config {
	return &Config{
		Output:   defaultOutput,
		Verbose:  false,
		AgentEnv: defaultAgentEnv,
		LevelEnv: defaultLevelEnv,
		Audit: AuditConfig{
			Backend: defaultAuditBackend,
		},
	}
}

// Load loads configuration with proper precedence.
// Priority: flags > env > project > home > defaults
//
// A missing file is skipped silently. A malformed file is skipped too, and
// reported in warnings so hooks can log it without failing.
func Load(flagOverrides *Config) (cfg *Config, warnings []error) {
	cfg = Default()

	layers := []struct {
		path    string
		project bool
	}{
		{homeConfigPath(), false},
		{projectConfigPath(), true},
	}
	for _, layer := range layers {
		fileConfig, err := loadFromPath(layer.path)
		if err != nil {
			if !os.IsNotExist(err) {
				warnings = append(warnings, fmt.Errorf("load %s: %w", layer.path, err))
			}
			continue
		}
		if fileConfig == nil {
			continue
		}
		if layer.project {
			for _, field := range restrictProject(fileConfig) {
				warnings = append(warnings, fmt.Errorf("%s: %w: %s", layer.path, ErrHomeOnly, field))
			}
		}
		cfg = merge(cfg, fileConfig)
	}

	cfg = applyEnv(cfg)

	if flagOverrides != nil {
		cfg = merge(cfg, flagOverrides)
	}

	return cfg, warnings
}

// restrictProject clears the trust settings a project config may not set and
// returns the names of the fields it cleared.
func restrictProject(cfg *Config) []string {
	var cleared []string
	if len(cfg.Guard.AuthorizedAgents) > 0 {
		cfg.Guard.AuthorizedAgents = nil
		cleared = append(cleared, "guard.authorized_agents")
	}
	if cfg.AgentEnv != "" {
		cfg.AgentEnv = ""
		cleared = append(cleared, "agent_env")
	}
	if cfg.LevelEnv != "" {
		cfg.LevelEnv = ""
		cleared = append(cleared, "level_env")
	}
	return cleared
}

// Authorization builds the push guard policy from the configuration.
func (c *Config) Authorization() (policy.AuthorizationPolicy, error) {
	return policy.NewAuthorization(c.Guard.ProtectedBranches, c.Guard.AuthorizedAgents)
}

// Patterns builds the command classifier pattern table. Direct-push and
// delete patterns are generated for every protected branch.
func (c *Config) Patterns() (policy.PatternTable, error) {
	auth, err := c.Authorization()
	if err != nil {
		return policy.PatternTable{}, err
	}
	return policy.NewPatternTable(auth.ProtectedBranches(), c.Classifier.ExtraBlocked)
}

// HomeDir returns the rlm data directory (~/.rlm), or "" if the home
// directory cannot be determined.
func HomeDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".rlm")
}

// homeConfigPath returns the home config path.
func homeConfigPath() string {
	dir := HomeDir()
	if dir == "" {
		return ""
	}
	return filepath.Join(dir, "config.yaml")
}

// projectConfigPath returns the project config path.
func projectConfigPath() string {
	if override := strings.TrimSpace(os.Getenv("RLM_CONFIG")); override != "" {
		return override
	}
	cwd, err := os.Getwd()
	if err != nil {
		return ""
	}
	return filepath.Join(cwd, ".rlm", "config.yaml")
}

// loadFromPath loads config from a YAML file.
func loadFromPath(path string) (*Config, error) {
	if path == "" {
		return nil, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// applyEnv applies environment variable overrides.
func applyEnv(cfg *Config) *Config {
	if v := os.Getenv("RLM_OUTPUT"); v != "" {
		cfg.Output = v
	}
	if os.Getenv("RLM_VERBOSE") == "true" || os.Getenv("RLM_VERBOSE") == "1" {
		cfg.Verbose = true
	}
	if v := os.Getenv("RLM_AUDIT_BACKEND"); v != "" {
		cfg.Audit.Backend = v
	}
	if v := os.Getenv("RLM_AUDIT_PATH"); v != "" {
		cfg.Audit.Path = v
	}
	return cfg
}

// mergeStr overwrites dst with src when src is non-empty.
func mergeStr(dst *string, src string) {
	if src != "" {
		*dst = src
	}
}

// mergeSlice appends src entries to dst, skipping duplicates.
func mergeSlice[T comparable](dst *[]T, src []T) {
	for _, v := range src {
		dup := false
		for _, have := range *dst {
			if have == v {
				dup = true
				break
			}
		}
		if !dup {
			*dst = append(*dst, v)
		}
	}
}

// merge merges src into dst, with src values taking precedence.
// List fields accumulate across layers, except AuthorizedAgents which is
// replaced by the highest layer that sets it.
func merge(dst, src *Config) *Config {
	mergeStr(&dst.Output, src.Output)
	if src.Verbose {
		dst.Verbose = true
	}
	mergeStr(&dst.AgentEnv, src.AgentEnv)
	mergeStr(&dst.LevelEnv, src.LevelEnv)

	mergeSlice(&dst.Guard.ProtectedBranches, src.Guard.ProtectedBranches)
	if len(src.Guard.AuthorizedAgents) > 0 {
		dst.Guard.AuthorizedAgents = append([]string(nil), src.Guard.AuthorizedAgents...)
	}
	mergeSlice(&dst.Classifier.ExtraBlocked, src.Classifier.ExtraBlocked)

	mergeStr(&dst.Audit.Backend, src.Audit.Backend)
	mergeStr(&dst.Audit.Path, src.Audit.Path)

	return dst
}

// Source represents where a config value came from.
type Source string

const (
	SourceDefault Source = "default"
	SourceHome    Source = "~/.rlm/config.yaml"
	SourceProject Source = ".rlm/config.yaml"
	SourceEnv     Source = "environment"
	SourceFlag    Source = "flag"
)

// getEnvString returns the value and whether the env var was set.
func getEnvString(key string) (string, bool) {
	v := os.Getenv(key)
	return v, v != ""
}

// getEnvBool returns the boolean value and whether it was truthy.
func getEnvBool(key string) (bool, bool) {
	v := os.Getenv(key)
	if v == "true" || v == "1" {
		return true, true
	}
	return false, false
}

// resolveStringField resolves a string through the precedence chain.
// Returns the resolved value and its source.
func resolveStringField(home, project, env, flag, def string) resolved {
	result := resolved{Value: def, Source: SourceDefault}

	if home != "" {
		result = resolved{Value: home, Source: SourceHome}
	}
	if project != "" {
		result = resolved{Value: project, Source: SourceProject}
	}
	if env != "" {
		result = resolved{Value: env, Source: SourceEnv}
	}
	if flag != "" {
		result = resolved{Value: flag, Source: SourceFlag}
	}

	return result
}

// ResolvedConfig shows config values with their sources.
type ResolvedConfig struct {
	Output       resolved `json:"output" yaml:"output"`
	Verbose      resolved `json:"verbose" yaml:"verbose"`
	AgentEnv     resolved `json:"agent_env" yaml:"agent_env"`
	LevelEnv     resolved `json:"level_env" yaml:"level_env"`
	AuditBackend resolved `json:"audit_backend" yaml:"audit_backend"`
	AuditPath    resolved `json:"audit_path" yaml:"audit_path"`

	ProtectedBranches resolved `json:"protected_branches" yaml:"protected_branches"`
	AuthorizedAgents  resolved `json:"authorized_agents" yaml:"authorized_agents"`
	ExtraBlocked      resolved `json:"extra_blocked" yaml:"extra_blocked"`
}

type resolved struct {
	Value  interface{} `json:"value" yaml:"value"`
	Source Source      `json:"source" yaml:"source"`
}

// Resolve returns configuration with source tracking.
// Uses precedence chain: flags > env > project > home > defaults.
func Resolve(flagOutput string, flagVerbose bool) *ResolvedConfig {
	home, _ := loadFromPath(homeConfigPath())
	project, _ := loadFromPath(projectConfigPath())
	if home == nil {
		home = &Config{}
	}
	if project == nil {
		project = &Config{}
	}
	restrictProject(project)

	envOutput, _ := getEnvString("RLM_OUTPUT")
	envVerbose, envVerboseSet := getEnvBool("RLM_VERBOSE")
	envAuditBackend, _ := getEnvString("RLM_AUDIT_BACKEND")
	envAuditPath, _ := getEnvString("RLM_AUDIT_PATH")

	rc := &ResolvedConfig{
		Output:       resolveStringField(home.Output, project.Output, envOutput, flagOutput, defaultOutput),
		Verbose:      resolved{Value: false, Source: SourceDefault},
		AgentEnv:     resolveStringField(home.AgentEnv, project.AgentEnv, "", "", defaultAgentEnv),
		LevelEnv:     resolveStringField(home.LevelEnv, project.LevelEnv, "", "", defaultLevelEnv),
		AuditBackend: resolveStringField(home.Audit.Backend, project.Audit.Backend, envAuditBackend, "", defaultAuditBackend),
		AuditPath:    resolveStringField(home.Audit.Path, project.Audit.Path, envAuditPath, "", ""),
	}

	// Resolve verbose (boolean with OR semantics through chain)
	if home.Verbose {
		rc.Verbose = resolved{Value: true, Source: SourceHome}
	}
	if project.Verbose {
		rc.Verbose = resolved{Value: true, Source: SourceProject}
	}
	if envVerboseSet && envVerbose {
		rc.Verbose = resolved{Value: true, Source: SourceEnv}
	}
	if flagVerbose {
		rc.Verbose = resolved{Value: true, Source: SourceFlag}
	}

	// Lists accumulate; the source is the highest layer that added to them.
	defaults := policy.DefaultAuthorization()
	rc.ProtectedBranches = resolveListField(defaults.ProtectedBranches(), home.Guard.ProtectedBranches, project.Guard.ProtectedBranches)
	rc.AuthorizedAgents = resolved{Value: defaults.AuthorizedAgents(), Source: SourceDefault}
	if len(home.Guard.AuthorizedAgents) > 0 {
		rc.AuthorizedAgents = resolved{Value: home.Guard.AuthorizedAgents, Source: SourceHome}
	}
	rc.ExtraBlocked = resolveListField(nil, patternStrings(home.Classifier.ExtraBlocked), patternStrings(project.Classifier.ExtraBlocked))

	return rc
}

// resolveListField appends home and project entries to def, skipping
// duplicates.
func resolveListField(def, home, project []string) resolved {
	result := resolved{Source: SourceDefault}
	values := append([]string{}, def...)
	before := len(values)
	mergeSlice(&values, home)
	if len(values) > before {
		result.Source = SourceHome
	}
	before = len(values)
	mergeSlice(&values, project)
	if len(values) > before {
		result.Source = SourceProject
	}
	result.Value = values
	return result
}

func patternStrings(patterns []policy.Pattern) []string {
	out := make([]string, 0, len(patterns))
	for _, p := range patterns {
		out = append(out, p.String())
	}
	return out
}
