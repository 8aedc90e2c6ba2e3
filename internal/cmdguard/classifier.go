package cmdguard

import (
	"fmt"

	"github.com/rlmlabs/rlm/internal/policy"
)

// Classifier evaluates commands against a pattern table.
type Classifier struct {
	table policy.PatternTable
}

// New creates a Classifier for the given table.
func New(table policy.PatternTable) *Classifier {
	return &Classifier{table: table}
}

// Classify decides whether command may run at level.
//
// Evaluation order:
//  1. Always-blocked patterns, regardless of level.
//  2. The level's effective patterns (its own tier plus every more
//     privileged tier).
//
// The first matching pattern wins and is named in the reason. A command that
// matches nothing is allowed.
func (c *Classifier) Classify(command string, level policy.Level) policy.Decision {
	for _, p := range c.table.Always() {
		if p.Matches(command) {
			return policy.Deny(fmt.Sprintf("dangerous command pattern %q: %s", p, p.Reason), p.String())
		}
	}
	for _, p := range c.table.Effective(level) {
		if p.Matches(command) {
			return policy.Deny(fmt.Sprintf("%q is not allowed at %s level: %s", p, level, p.Reason), p.String())
		}
	}
	return policy.Allow("")
}
