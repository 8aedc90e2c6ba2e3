package policy

// Outcome is the terminal state of an evaluation.
type Outcome string

const (
	Allowed Outcome = "allowed"
	Blocked Outcome = "blocked"
)

// Decision is the result of evaluating a push or a command.
type Decision struct {
	Outcome Outcome `json:"outcome" yaml:"outcome"`
	Reason  string  `json:"reason,omitempty" yaml:"reason,omitempty"`
	Pattern string  `json:"pattern,omitempty" yaml:"pattern,omitempty"`
}

// Allow returns a Decision that permits the action.
func Allow(reason string) Decision {
	return Decision{Outcome: Allowed, Reason: reason}
}

// Deny returns a Decision that blocks the action.
func Deny(reason, pattern string) Decision {
	return Decision{Outcome: Blocked, Reason: reason, Pattern: pattern}
}

// Allowed reports whether the decision permits the action.
func (d Decision) Allowed() bool {
	return d.Outcome == Allowed
}
