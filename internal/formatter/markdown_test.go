package formatter

import (
	"bytes"
	"strings"
	"testing"

	"github.com/rlmlabs/rlm/internal/policy"
)

func TestWritePolicyMarkdown(t *testing.T) {
	doc := NewPolicyDoc(policy.DefaultAuthorization(), policy.DefaultPatterns(), "RLM_AGENT", "RLM_PERMISSION_LEVEL")

	var buf bytes.Buffer
	if err := WritePolicyMarkdown(&buf, doc); err != nil {
		t.Fatalf("WritePolicyMarkdown: %v", err)
	}
	out := buf.String()

	for _, want := range []string{
		"## Branch protection",
		"`main`, `master`",
		"`RLM_AGENT` is one of: devops, orchestrator, human",
		"`RLM_PERMISSION_LEVEL`",
		"### Always blocked",
		"| `rm -rf /` |",
		"### readonly",
		"### standard",
		"### privileged",
		"| `git push ... --force` |",
		`:\|:&`,
	} {
		if !strings.Contains(out, want) {
			t.Errorf("markdown missing %q:\n%s", want, out)
		}
	}
}

func TestNewPolicyDoc_TiersInLevelOrder(t *testing.T) {
	doc := NewPolicyDoc(policy.DefaultAuthorization(), policy.DefaultPatterns(), "A", "L")
	if len(doc.Tiers) != 3 {
		t.Fatalf("len(Tiers) = %d, want 3", len(doc.Tiers))
	}
	for i, level := range policy.Levels() {
		if doc.Tiers[i].Level != level {
			t.Errorf("Tiers[%d].Level = %s, want %s", i, doc.Tiers[i].Level, level)
		}
		if len(doc.Tiers[i].Patterns) == 0 {
			t.Errorf("tier %s has no patterns", level)
		}
	}
}
