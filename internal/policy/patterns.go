package policy

import (
	"fmt"
	"strings"
)

// Level is a coarse permission tier for shell commands.
type Level string

const (
	LevelReadonly   Level = "readonly"
	LevelStandard   Level = "standard"
	LevelPrivileged Level = "privileged"
)

// Levels returns every permission level, least privileged first.
func Levels() []Level {
	return []Level{LevelReadonly, LevelStandard, LevelPrivileged}
}

// ParseLevel maps a raw level label to a Level. Unknown or empty labels map to
// LevelStandard and ok is false.
func ParseLevel(s string) (level Level, ok bool) {
	switch Level(strings.ToLower(strings.TrimSpace(s))) {
	case LevelReadonly:
		return LevelReadonly, true
	case LevelStandard:
		return LevelStandard, true
	case LevelPrivileged:
		return LevelPrivileged, true
	default:
		return LevelStandard, false
	}
}

// Pattern is a blocked command substring and the reason shown when it matches.
// When Requires is set, the command must also contain it, anywhere; this is
// how flags that git accepts in any position are matched.
type Pattern struct {
	Substring string `json:"pattern" yaml:"pattern"`
	Requires  string `json:"requires,omitempty" yaml:"requires,omitempty"`
	Reason    string `json:"reason" yaml:"reason"`
}

// Matches reports whether command contains the pattern anywhere. This is plain
// substring containment: a commit message quoting "git push origin main" is
// itself blocked. False positives are preferred over missed matches.
func (p Pattern) Matches(command string) bool {
	if p.Substring == "" || !strings.Contains(command, p.Substring) {
		return false
	}
	return p.Requires == "" || strings.Contains(command, p.Requires)
}

// String renders the pattern for messages, e.g. "git push ... --force".
func (p Pattern) String() string {
	if p.Requires == "" {
		return p.Substring
	}
	return p.Substring + " ..." + p.Requires
}

// PatternTable holds the blocked-substring tiers used by the command classifier.
type PatternTable struct {
	always     []Pattern
	readonly   []Pattern
	standard   []Pattern
	privileged []Pattern
}

var alwaysBlocked = []Pattern{
	{Substring: "rm -rf /", Reason: "recursive deletion from the filesystem root"},
	{Substring: "rm -fr /", Reason: "recursive deletion from the filesystem root"},
	{Substring: "rm -rf ~", Reason: "recursive deletion of the home directory"},
	{Substring: "rm -rf $HOME", Reason: "recursive deletion of the home directory"},
	{Substring: "sudo ", Reason: "privilege escalation"},
	{Substring: "su -", Reason: "privilege escalation"},
	{Substring: "su root", Reason: "privilege escalation"},
	{Substring: "chmod 777", Reason: "world-writable permissions"},
	{Substring: "chmod -R 777", Reason: "world-writable permissions"},
	{Substring: "chmod a+rwx", Reason: "world-writable permissions"},
	{Substring: "of=/dev/sd", Reason: "raw write to a block device"},
	{Substring: "of=/dev/nvme", Reason: "raw write to a block device"},
	{Substring: "of=/dev/disk", Reason: "raw write to a block device"},
	{Substring: "> /dev/sd", Reason: "raw write to a block device"},
	{Substring: "> /dev/nvme", Reason: "raw write to a block device"},
	{Substring: "mkfs", Reason: "filesystem formatting"},
	{Substring: ":(){ :|:& };:", Reason: "fork bomb"},
}

var readonlyBlocked = []Pattern{
	{Substring: "git add", Reason: "readonly agents cannot stage changes"},
	{Substring: "git commit", Reason: "readonly agents cannot create commits"},
	{Substring: "git push", Reason: "readonly agents cannot push"},
	{Substring: "git pull", Reason: "readonly agents cannot pull into the working tree"},
	{Substring: "git merge", Reason: "readonly agents cannot merge"},
	{Substring: "git rebase", Reason: "readonly agents cannot rebase"},
	{Substring: "git cherry-pick", Reason: "readonly agents cannot cherry-pick"},
	{Substring: "git reset", Reason: "readonly agents cannot reset"},
	{Substring: "git checkout -b", Reason: "readonly agents cannot create branches"},
	{Substring: "git switch -c", Reason: "readonly agents cannot create branches"},
}

// forcePushBlocked matches the force flag wherever it appears after
// "git push": before the remote, after the refspec, or as a "+" refspec.
var forcePushBlocked = []Pattern{
	{Substring: "git push", Requires: " --force", Reason: "force push rewrites shared history"},
	{Substring: "git push", Requires: " -f", Reason: "force push rewrites shared history"},
	{Substring: "git push", Requires: " +", Reason: "force push rewrites shared history"},
}

// DefaultPatterns returns the built-in pattern table for the default
// protected branches.
func DefaultPatterns() PatternTable {
	t, _ := NewPatternTable(defaultProtectedBranches, nil)
	return t
}

// NewPatternTable builds the pattern tiers for the given protected branches.
// extraAlways adds patterns to the always-blocked tier; the built-in
// always-blocked patterns cannot be removed.
func NewPatternTable(protected []string, extraAlways []Pattern) (PatternTable, error) {
	t := PatternTable{
		always:   append([]Pattern(nil), alwaysBlocked...),
		readonly: append([]Pattern(nil), readonlyBlocked...),
	}
	for _, p := range extraAlways {
		if strings.TrimSpace(p.Substring) == "" {
			return PatternTable{}, ErrEmptyPattern
		}
		if p.Reason == "" {
			p.Reason = "blocked by local policy"
		}
		t.always = append(t.always, p)
	}

	t.standard = []Pattern{
		{Substring: "git merge", Reason: "merges must be performed by a privileged agent (devops or orchestrator)"},
		{Substring: "git rebase", Reason: "rebases must be performed by a privileged agent (devops or orchestrator)"},
	}
	t.privileged = append([]Pattern(nil), forcePushBlocked...)

	for _, b := range appendUnique(nil, protected...) {
		for _, prefix := range []string{"git push origin ", "git push -u origin ", "git push --set-upstream origin "} {
			t.standard = append(t.standard, Pattern{
				Substring: prefix + b,
				Reason:    fmt.Sprintf("direct push to protected branch %q requires a privileged agent (devops or orchestrator)", b),
			})
		}
		reason := fmt.Sprintf("deleting protected branch %q is never allowed", b)
		t.privileged = append(t.privileged,
			Pattern{Substring: "git push origin --delete " + b, Reason: reason},
			Pattern{Substring: "git push origin -d " + b, Reason: reason},
			Pattern{Substring: "git push origin :" + b, Reason: reason},
			Pattern{Substring: "git branch -D " + b, Reason: reason},
			Pattern{Substring: "git branch -d " + b, Reason: reason},
		)
	}
	return t, nil
}

// Always returns a copy of the always-blocked tier.
func (t PatternTable) Always() []Pattern {
	return append([]Pattern(nil), t.always...)
}

// Tier returns a copy of the patterns owned by a single level, without the
// tiers inherited from more privileged levels.
func (t PatternTable) Tier(level Level) []Pattern {
	switch level {
	case LevelReadonly:
		return append([]Pattern(nil), t.readonly...)
	case LevelPrivileged:
		return append([]Pattern(nil), t.privileged...)
	default:
		return append([]Pattern(nil), t.standard...)
	}
}

// Effective returns every level-specific pattern applied at level: its own
// tier followed by the tiers of all more privileged levels. Anything blocked
// at privileged is therefore blocked everywhere.
func (t PatternTable) Effective(level Level) []Pattern {
	var out []Pattern
	switch level {
	case LevelReadonly:
		out = append(out, t.readonly...)
		fallthrough
	case LevelStandard:
		out = append(out, t.standard...)
		fallthrough
	case LevelPrivileged:
		out = append(out, t.privileged...)
	default:
		return t.Effective(LevelStandard)
	}
	return out
}
