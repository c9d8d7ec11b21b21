package agents

import (
	"testing"

	"github.com/agentfleet/pilot/internal/config"
)

func TestSkillsFromPolicyMapsRoleFields(t *testing.T) {
	policy := config.Default()
	policy.Roles = []config.RolePolicy{
		{Name: "frontend", Keywords: []string{"ui", "css"}, FilePatterns: []string{"src/components/**"}, Areas: []string{"frontend"}},
	}

	skills := SkillsFromPolicy(policy)
	if len(skills) != 1 {
		t.Fatalf("expected 1 skill, got %d", len(skills))
	}
	if skills[0].Role != "frontend" || len(skills[0].Keywords) != 2 || len(skills[0].Patterns) != 1 {
		t.Fatalf("unexpected skill mapping: %+v", skills[0])
	}
}

func TestPromptFilename(t *testing.T) {
	if got := PromptFilename("backend"); got != "backend.md" {
		t.Fatalf("got %q, want backend.md", got)
	}
	if got := PromptFilename(""); got != "engineer.md" {
		t.Fatalf("got %q, want engineer.md fallback", got)
	}
}
