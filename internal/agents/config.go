package agents

import (
	"github.com/agentfleet/pilot/internal/config"
	"github.com/agentfleet/pilot/internal/router"
)

// SkillsFromPolicy builds the router's skill registry from the policy
// document's declared roles (spec §4.F input).
func SkillsFromPolicy(policy config.Policy) []router.Skill {
	skills := make([]router.Skill, 0, len(policy.Roles))
	for _, r := range policy.Roles {
		skills = append(skills, router.Skill{
			Role:     r.Name,
			Keywords: r.Keywords,
			Patterns: r.FilePatterns,
			Areas:    r.Areas,
		})
	}
	return skills
}

// PromptFilename returns the capsule prompt file conventionally associated
// with a role (e.g. "frontend" -> "frontend.md").
func PromptFilename(role string) string {
	if role == "" {
		return "engineer.md"
	}
	return role + ".md"
}
