package relevance

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// ArchiveFunc persists an archived entry; callers typically pass
// memory.Store.Archive so the relevance engine doesn't need to import the
// memory package's concrete types.
type ArchiveFunc func(channel string, entry interface{}) error

// TargetState computes the lifecycle transition for e under cfg at time
// now, or "" if no transition applies (spec §4.D):
//   full -> summary    when relevance < fullThreshold && age >= summaryAfterDays
//   summary -> archived when age >= archiveAfterDays
func TargetState(e Entry, relevance float64, cfg Config, now time.Time) State {
	ageDays := now.Sub(e.LastAccessed).Hours() / 24
	switch e.State {
	case StateFull:
		if relevance < cfg.FullThreshold && ageDays >= cfg.SummaryAfterDays {
			return StateSummary
		}
	case StateSummary:
		if ageDays >= cfg.ArchiveAfterDays {
			return StateArchived
		}
	}
	return ""
}

// Summarise retains identifier, tags, files, access/link counts and
// concatenates textual payload fields (in stable key order) with " | ",
// truncated to maxLen with a "…" sentinel.
func Summarise(e Entry, maxLen int) Entry {
	keys := make([]string, 0, len(e.Payload))
	for k := range e.Payload {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var parts []string
	for _, k := range keys {
		if s, ok := e.Payload[k].(string); ok && s != "" {
			parts = append(parts, s)
		}
	}
	text := strings.Join(parts, " | ")
	if maxLen > 0 && len(text) > maxLen {
		const ellipsis = "…"
		if maxLen > len(ellipsis) {
			text = text[:maxLen-len(ellipsis)] + ellipsis
		} else {
			text = text[:maxLen]
		}
	}

	out := e
	out.State = StateSummary
	out.Payload = map[string]interface{}{"summary": text}
	return out
}

// Archive marks e archived and appends it to the channel's archive log via
// archiveFn, recording provenance fields the way spec §4.D demands.
func Archive(e Entry, channel string, archiveFn ArchiveFunc, now time.Time) error {
	record := map[string]interface{}{
		"id":            e.ID,
		"tags":          e.Tags,
		"files":         e.Files,
		"access_count":  e.AccessCount,
		"link_count":    e.LinkCount,
		"payload":       e.Payload,
		"_state":        string(StateArchived),
		"_sourceChannel": channel,
		"_archivedAt":   now,
	}
	if archiveFn == nil {
		return fmt.Errorf("relevance.Archive: no archive sink configured")
	}
	return archiveFn(channel, record)
}

// ConsolidateResult reports what Consolidate did to a batch.
type ConsolidateResult struct {
	Kept       []Entry
	Summarized []Entry
	Archived   []Entry
}

// Consolidate is a no-op (returns all entries as Kept) if entries has fewer
// than cfg.MinEntriesForConsolidation members. Otherwise each entry is
// rescored against ctx and transitioned per TargetState.
func Consolidate(entries []Entry, channel string, ctx Context, cfg Config, archiveFn ArchiveFunc, now time.Time) (ConsolidateResult, error) {
	if len(entries) < cfg.MinEntriesForConsolidation {
		return ConsolidateResult{Kept: entries}, nil
	}

	scored := ScoreBatch(entries, ctx, cfg, now, 0)
	var result ConsolidateResult
	for _, s := range scored {
		target := TargetState(s.Entry, s.Relevance, cfg, now)
		switch target {
		case StateArchived:
			if err := Archive(s.Entry, channel, archiveFn, now); err != nil {
				return result, err
			}
			archived := s.Entry
			archived.State = StateArchived
			result.Archived = append(result.Archived, archived)
		case StateSummary:
			summarized := Summarise(s.Entry, cfg.MaxSummaryLen)
			result.Summarized = append(result.Summarized, summarized)
			result.Kept = append(result.Kept, summarized)
		default:
			result.Kept = append(result.Kept, s.Entry)
		}
	}
	return result, nil
}

// EvictResult reports what Evict kept/archived.
type EvictResult struct {
	Kept     []Entry
	Archived []Entry
}

// Evict triggers when len(entries) exceeds triggerPct% of budget; it keeps
// the top targetPct% of budget by relevance and archives the rest (spec
// §4.D, P10).
func Evict(entries []Entry, channel string, budget int, ctx Context, cfg Config, archiveFn ArchiveFunc, now time.Time) (EvictResult, error) {
	triggerCount := int(float64(budget) * cfg.EvictionTriggerPct / 100)
	if len(entries) <= triggerCount {
		return EvictResult{Kept: entries}, nil
	}

	targetCount := int(float64(budget) * cfg.EvictionTargetPct / 100)
	scored := ScoreBatch(entries, ctx, cfg, now, 0) // sorted descending by relevance

	var result EvictResult
	for i, s := range scored {
		if i < targetCount {
			result.Kept = append(result.Kept, s.Entry)
			continue
		}
		if err := Archive(s.Entry, channel, archiveFn, now); err != nil {
			return result, err
		}
		archived := s.Entry
		archived.State = StateArchived
		result.Archived = append(result.Archived, archived)
	}
	return result, nil
}

// LoadedEntry is one entry returned by GetRelevantMemory, tagged with its
// loading tier.
type LoadedEntry struct {
	Entry     Entry
	Relevance float64
	Tier      State // StateFull or StateSummary — never StateArchived
}

// GetRelevantMemory scores every entry against taskCtx, filters to
// relevance >= cfg.LoadingRelevanceThreshold, labels each kept entry Full
// if score >= cfg.TierFullThreshold else Summary, and returns up to limit
// (spec §4.D "Tiered loading").
func GetRelevantMemory(entries []Entry, taskCtx Context, cfg Config, now time.Time, limit int) []LoadedEntry {
	scored := ScoreBatch(entries, taskCtx, cfg, now, 0)
	var out []LoadedEntry
	for _, s := range scored {
		if s.Relevance < cfg.LoadingRelevanceThreshold {
			continue
		}
		tier := StateSummary
		if s.Relevance >= cfg.TierFullThreshold {
			tier = StateFull
		}
		out = append(out, LoadedEntry{Entry: s.Entry, Relevance: s.Relevance, Tier: tier})
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out
}
