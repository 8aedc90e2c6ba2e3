// Package policy holds the immutable authorization and command pattern tables
// shared by the push guard and the command classifier.
//
// Tables are built once per process, from the compiled-in defaults optionally
// extended by configuration, and never mutated afterwards. Accessors hand out
// copies so callers cannot alter a policy another component is reading.
package policy

import (
	"slices"
	"strings"
)

// UnknownAgent is the identity assumed when the agent variable is unset.
const UnknownAgent = "unknown"

var (
	defaultProtectedBranches = []string{"main", "master"}
	defaultAuthorizedAgents  = []string{"devops", "orchestrator", "human"}
)

// AuthorizationPolicy names the protected branches and the agent identities
// allowed to push to them.
type AuthorizationPolicy struct {
	protected  []string
	authorized []string
}

// DefaultAuthorization returns the built-in policy: main and master are
// protected, devops, orchestrator and human may push to them.
func DefaultAuthorization() AuthorizationPolicy {
	return AuthorizationPolicy{
		protected:  slices.Clone(defaultProtectedBranches),
		authorized: slices.Clone(defaultAuthorizedAgents),
	}
}

// NewAuthorization builds a policy from explicit lists. Extra protected
// branches are added to the defaults; a non-empty agents list replaces the
// default authorized set. Blank entries are dropped and duplicates collapsed.
func NewAuthorization(extraProtected, agents []string) (AuthorizationPolicy, error) {
	p := DefaultAuthorization()
	p.protected = appendUnique(p.protected, extraProtected...)
	if len(agents) > 0 {
		p.authorized = appendUnique(nil, agents...)
	}
	if err := p.Validate(); err != nil {
		return AuthorizationPolicy{}, err
	}
	return p, nil
}

// Validate reports whether the policy can make decisions at all.
func (p AuthorizationPolicy) Validate() error {
	if len(p.protected) == 0 {
		return ErrNoProtectedBranches
	}
	if len(p.authorized) == 0 {
		return ErrNoAuthorizedAgents
	}
	return nil
}

// IsProtected reports whether branch is a protected branch name.
func (p AuthorizationPolicy) IsProtected(branch string) bool {
	return slices.Contains(p.protected, branch)
}

// IsAuthorized reports whether agent may push to protected branches.
// The comparison is exact: "DevOps" is not "devops".
func (p AuthorizationPolicy) IsAuthorized(agent string) bool {
	return slices.Contains(p.authorized, agent)
}

// ProtectedBranches returns a copy of the protected branch list.
func (p AuthorizationPolicy) ProtectedBranches() []string {
	return slices.Clone(p.protected)
}

// AuthorizedAgents returns a copy of the authorized agent list in policy order.
func (p AuthorizationPolicy) AuthorizedAgents() []string {
	return slices.Clone(p.authorized)
}

// NormalizeAgent maps an empty identity to UnknownAgent. Surrounding
// whitespace is not trimmed; the identity is compared as asserted.
func NormalizeAgent(agent string) string {
	if agent == "" {
		return UnknownAgent
	}
	return agent
}

func appendUnique(dst []string, values ...string) []string {
	for _, v := range values {
		v = strings.TrimSpace(v)
		if v == "" || slices.Contains(dst, v) {
			continue
		}
		dst = append(dst, v)
	}
	return dst
}
