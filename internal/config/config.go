// Package config loads the orchestrator's single YAML policy document
// (spec §6 Configuration) with documented defaults applied the way
// cmd/cliaimonitor applied configs/teams.yaml / configs/projects.yaml
// defaults.
package config

import (
	"os"

	"gopkg.in/yaml.v3"

	"github.com/agentfleet/pilot/internal/pilotlerr"
)

// SessionPolicy is the "session" config section.
type SessionPolicy struct {
	MaxConcurrentSessions int `yaml:"max_concurrent_sessions"`
	HeartbeatIntervalSec  int `yaml:"heartbeat_interval_sec"`
}

// OrchestratorPolicy is the "orchestrator" config section.
type OrchestratorPolicy struct {
	DriftThreshold     float64 `yaml:"drift_threshold"`
	RequireTestsPass   bool    `yaml:"require_tests_pass"`
	AutoReassignStale  bool    `yaml:"auto_reassign_stale"`
}

// RelevanceWeights is the memory.relevance_weights sub-section (spec §4.D).
type RelevanceWeights struct {
	Recency    float64 `yaml:"recency"`
	Frequency  float64 `yaml:"frequency"`
	Similarity float64 `yaml:"similarity"`
	Links      float64 `yaml:"links"`
}

// MemoryBudgets is the memory.budgets sub-section.
type MemoryBudgets struct {
	MaxEntriesPerChannel int `yaml:"max_entries_per_channel"`
}

// Summarization is the memory.summarization sub-section.
type Summarization struct {
	HalfLifeDays     float64 `yaml:"half_life_days"`
	FullThreshold    float64 `yaml:"full_threshold"`
	SummaryAfterDays float64 `yaml:"summary_after_days"`
	ArchiveAfterDays float64 `yaml:"archive_after_days"`
	MaxSummaryLen    int     `yaml:"max_summary_len"`
}

// Loading is the memory.loading sub-section.
type Loading struct {
	RelevanceThreshold float64 `yaml:"relevance_threshold"`
	TierFullThreshold  float64 `yaml:"tier_full_threshold"`
}

// Eviction is the memory.eviction sub-section.
type Eviction struct {
	TriggerPct                float64 `yaml:"trigger_pct"`
	TargetPct                 float64 `yaml:"target_pct"`
	MinEntriesForConsolidation int    `yaml:"min_entries_for_consolidation"`
}

// MemoryPolicy is the "memory" config section.
type MemoryPolicy struct {
	RelevanceWeights RelevanceWeights `yaml:"relevance_weights"`
	Budgets          MemoryBudgets    `yaml:"budgets"`
	Summarization    Summarization    `yaml:"summarization"`
	Loading          Loading          `yaml:"loading"`
	Eviction         Eviction         `yaml:"eviction"`
}

// DriftThresholds is drift_prevention.thresholds.
type DriftThresholds struct {
	Aligned  float64 `yaml:"aligned"`
	Monitor  float64 `yaml:"monitor"`
}

// Guardrails is drift_prevention.guardrails.
type Guardrails struct {
	WarnOnMonitor     bool `yaml:"warn_on_monitor"`
	BlockOnDivergent  bool `yaml:"block_on_divergent"`
	AutoRefresh       bool `yaml:"auto_refresh"`
	MaxRefreshesPerStep int `yaml:"max_refreshes_per_step"`
}

// DriftPreventionPolicy is the "drift_prevention" config section.
type DriftPreventionPolicy struct {
	Enabled       bool            `yaml:"enabled"`
	Thresholds    DriftThresholds `yaml:"thresholds"`
	ExcludedTools []string        `yaml:"excluded_tools"`
	Guardrails    Guardrails      `yaml:"guardrails"`
}

// NotificationRouting is notifications.routing.
type NotificationRouting struct {
	Critical []string `yaml:"critical"`
	Warning  []string `yaml:"warning"`
	Info     []string `yaml:"info"`
}

// NotificationsPolicy is the "notifications" config section.
type NotificationsPolicy struct {
	Channels             []string            `yaml:"channels"`
	Routing              NotificationRouting `yaml:"routing"`
	DigestIntervalMinutes int                `yaml:"digest_interval_minutes"`
	PrimaryChannel       string              `yaml:"primary_channel"`
}

// SSHProvider / DockerProvider are execution.providers sub-sections.
type SSHProvider struct {
	Enabled bool     `yaml:"enabled"`
	Hosts   []string `yaml:"hosts"`
	MaxHostCap int   `yaml:"max_host_cap"`
}

type DockerProvider struct {
	Enabled    bool `yaml:"enabled"`
	MaxContainers int `yaml:"max_containers"`
}

// ExecutionProviders is execution.providers.
type ExecutionProviders struct {
	SSH    SSHProvider    `yaml:"ssh"`
	Docker DockerProvider `yaml:"docker"`
}

// ExecutionPolicy is the "execution" config section.
type ExecutionPolicy struct {
	Providers ExecutionProviders `yaml:"providers"`
}

// WorktreePolicy is the "worktree" config section.
type WorktreePolicy struct {
	BaseBranch string `yaml:"base_branch"`
}

// RolePolicy declares one role's skill registry entry for the task router
// (spec §4.F input). Kept as configuration data per spec §9's guidance to
// keep keyword tables tunable without code changes.
type RolePolicy struct {
	Name        string   `yaml:"name"`
	Keywords    []string `yaml:"keywords"`
	FilePatterns []string `yaml:"file_patterns"`
	Areas       []string `yaml:"areas"`
}

// Policy is the single YAML policy document (spec §6 "Configuration").
type Policy struct {
	Session         SessionPolicy         `yaml:"session"`
	Orchestrator    OrchestratorPolicy    `yaml:"orchestrator"`
	Memory          MemoryPolicy          `yaml:"memory"`
	DriftPrevention DriftPreventionPolicy `yaml:"drift_prevention"`
	Notifications   NotificationsPolicy   `yaml:"notifications"`
	Execution       ExecutionPolicy       `yaml:"execution"`
	Worktree        WorktreePolicy        `yaml:"worktree"`
	Roles           []RolePolicy          `yaml:"roles"`
}

// Default returns the policy document's documented defaults (each one
// matches a default stated in spec §4).
func Default() Policy {
	return Policy{
		Session: SessionPolicy{
			MaxConcurrentSessions: 8,
			HeartbeatIntervalSec:  30,
		},
		Orchestrator: OrchestratorPolicy{
			DriftThreshold:    0.3,
			RequireTestsPass:  false,
			AutoReassignStale: false,
		},
		Memory: MemoryPolicy{
			RelevanceWeights: RelevanceWeights{Recency: 0.30, Frequency: 0.25, Similarity: 0.25, Links: 0.20},
			Budgets:          MemoryBudgets{MaxEntriesPerChannel: 50},
			Summarization: Summarization{
				HalfLifeDays:     7,
				FullThreshold:    0.5,
				SummaryAfterDays: 7,
				ArchiveAfterDays: 30,
				MaxSummaryLen:    400,
			},
			Loading: Loading{RelevanceThreshold: 0.2, TierFullThreshold: 0.6},
			Eviction: Eviction{
				TriggerPct:                 100,
				TargetPct:                  75,
				MinEntriesForConsolidation: 20,
			},
		},
		DriftPrevention: DriftPreventionPolicy{
			Enabled: true,
			Thresholds: DriftThresholds{
				Aligned: 0.6,
				Monitor: 0.3,
			},
			ExcludedTools: nil,
			Guardrails: Guardrails{
				WarnOnMonitor:       true,
				BlockOnDivergent:    true,
				AutoRefresh:         true,
				MaxRefreshesPerStep: 3,
			},
		},
		Notifications: NotificationsPolicy{
			Channels: []string{"terminal"},
			Routing: NotificationRouting{
				Critical: []string{"all"},
				Warning:  []string{"primary"},
				Info:     []string{"digest"},
			},
			DigestIntervalMinutes: 15,
			PrimaryChannel:        "terminal",
		},
		Execution: ExecutionPolicy{
			Providers: ExecutionProviders{
				SSH:    SSHProvider{Enabled: false, MaxHostCap: 4},
				Docker: DockerProvider{Enabled: false, MaxContainers: 4},
			},
		},
		Worktree: WorktreePolicy{BaseBranch: "main"},
	}
}

// Load reads a YAML policy document from path, merging it over Default()
// so missing keys fall back to documented defaults, mirroring
// cmd/cliaimonitor's configs/teams.yaml loading behavior.
func Load(path string) (Policy, error) {
	policy := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return policy, nil
		}
		return policy, pilotlerr.New(pilotlerr.IO, "config.Load read", err)
	}

	// Decode onto the defaults so a document naming only some sections
	// doesn't zero the rest.
	if err := yaml.Unmarshal(data, &policy); err != nil {
		return policy, pilotlerr.New(pilotlerr.Corrupt, "config.Load unmarshal", err)
	}
	return policy, nil
}

// RoleByName finds a role policy by name, or nil.
func (p Policy) RoleByName(name string) *RolePolicy {
	for i := range p.Roles {
		if p.Roles[i].Name == name {
			return &p.Roles[i]
		}
	}
	return nil
}
