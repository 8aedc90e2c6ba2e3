package policy

import "errors"

// Sentinel errors for policy construction. Callers match with errors.Is.
var (
	// ErrNoProtectedBranches is returned when a policy protects nothing.
	ErrNoProtectedBranches = errors.New("policy has no protected branches")

	// ErrNoAuthorizedAgents is returned when no agent may push to protected branches.
	ErrNoAuthorizedAgents = errors.New("policy has no authorized agents")

	// ErrEmptyPattern is returned when a configured blocked pattern is blank.
	ErrEmptyPattern = errors.New("blocked pattern must not be empty")
)
