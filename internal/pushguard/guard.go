package pushguard

import (
	"fmt"

	"github.com/rlmlabs/rlm/internal/policy"
)

// Result is the outcome of evaluating a batch of push events.
type Result struct {
	Decision policy.Decision `json:"decision"`

	// Agent is the identity the batch was evaluated for, after defaulting.
	Agent string `json:"agent"`

	// Blocked is the event that caused a block. Nil when allowed.
	Blocked *PushEvent `json:"blocked,omitempty"`

	// Branch is the protected branch named by Blocked.
	Branch string `json:"branch,omitempty"`

	// Authorized lists protected branches the agent was allowed to push, in
	// input order.
	Authorized []string `json:"authorized,omitempty"`
}

// Guard evaluates pushes against an authorization policy.
type Guard struct {
	policy policy.AuthorizationPolicy
}

// New creates a Guard for the given policy.
func New(p policy.AuthorizationPolicy) *Guard {
	return &Guard{policy: p}
}

// Policy returns the policy the guard enforces.
func (g *Guard) Policy() policy.AuthorizationPolicy {
	return g.policy
}

// Evaluate decides whether the batch may be pushed by agent. An empty agent
// is evaluated as policy.UnknownAgent. Evaluation stops at the first protected
// ref the agent may not push; that single ref blocks the whole batch.
func (g *Guard) Evaluate(events []PushEvent, agent string) Result {
	res := Result{Agent: policy.NormalizeAgent(agent)}

	for i := range events {
		branch, ok := events[i].Branch()
		if !ok || !g.policy.IsProtected(branch) {
			continue
		}
		if g.policy.IsAuthorized(res.Agent) {
			res.Authorized = append(res.Authorized, branch)
			continue
		}
		ev := events[i]
		res.Blocked = &ev
		res.Branch = branch
		res.Decision = policy.Deny(
			fmt.Sprintf("agent %q is not authorized to push to protected branch %q", res.Agent, branch),
			branchRefPrefix+branch,
		)
		return res
	}

	res.Decision = policy.Allow("")
	return res
}
