package drift

import (
	"path/filepath"
	"regexp"
	"strings"
)

// stopWords is a fixed English stop-word list (spec §4.G: "keep them as
// configuration data ... so they can be tuned without touching code").
var stopWords = map[string]struct{}{
	"a": {}, "an": {}, "and": {}, "are": {}, "as": {}, "at": {}, "be": {},
	"by": {}, "for": {}, "from": {}, "has": {}, "have": {}, "in": {},
	"into": {}, "is": {}, "it": {}, "its": {}, "of": {}, "on": {}, "or": {},
	"that": {}, "the": {}, "this": {}, "to": {}, "was": {}, "will": {},
	"with": {}, "we": {}, "you": {}, "your": {}, "can": {}, "should": {},
}

var nonWord = regexp.MustCompile(`[^a-z0-9]+`)

func contentWords(text string) map[string]struct{} {
	words := map[string]struct{}{}
	for _, w := range nonWord.Split(strings.ToLower(text), -1) {
		if w == "" {
			continue
		}
		if _, stop := stopWords[w]; stop {
			continue
		}
		words[w] = struct{}{}
	}
	return words
}

func jaccardSets(a, b map[string]struct{}) float64 {
	if len(a) == 0 && len(b) == 0 {
		return 0
	}
	inter := 0
	union := map[string]struct{}{}
	for w := range a {
		union[w] = struct{}{}
		if _, ok := b[w]; ok {
			inter++
		}
	}
	for w := range b {
		union[w] = struct{}{}
	}
	if len(union) == 0 {
		return 0
	}
	return float64(inter) / float64(len(union))
}

func trim(s string, n int) string {
	if len(s) > n {
		return s[:n]
	}
	return s
}

// ScoreKeyword is the Jaccard overlap of content words extracted from the
// plan step (description + file basenames) against the tool use (name,
// target file, command/content snippet each trimmed to 500 chars).
func ScoreKeyword(step PlanStep, tool ToolUse) float64 {
	var stepText strings.Builder
	stepText.WriteString(step.Description)
	for _, f := range step.Files {
		stepText.WriteString(" ")
		stepText.WriteString(filepath.Base(f))
	}

	var toolText strings.Builder
	toolText.WriteString(tool.Name)
	toolText.WriteString(" ")
	toolText.WriteString(trim(tool.FilePath, 500))
	toolText.WriteString(" ")
	toolText.WriteString(trim(tool.Command, 500))
	toolText.WriteString(" ")
	toolText.WriteString(trim(tool.ContentSnippet, 500))

	return jaccardSets(contentWords(stepText.String()), contentWords(toolText.String()))
}

// ScorePath is a fuzzy path-overlap score: exact basename match counts 1.0,
// substring containment counts 0.5, normalised by the number of tool paths
// considered (here always the single tool.FilePath).
func ScorePath(step PlanStep, tool ToolUse) float64 {
	if tool.FilePath == "" || len(step.Files) == 0 {
		return 0
	}
	toolBase := filepath.Base(tool.FilePath)

	best := 0.0
	for _, f := range step.Files {
		stepBase := filepath.Base(f)
		if stepBase == toolBase {
			best = 1.0
			break
		}
		if strings.Contains(f, toolBase) || strings.Contains(tool.FilePath, stepBase) {
			if best < 0.5 {
				best = 0.5
			}
		}
	}
	return best
}

// Intent is the inferred purpose of either a plan step or a tool use.
type Intent string

const (
	IntentWrite   Intent = "write"
	IntentRead    Intent = "read"
	IntentExecute Intent = "execute"
	IntentTest    Intent = "test"
	IntentUnknown Intent = "unknown"
)

var writeVerbs = regexp.MustCompile(`(?i)\b(write|edit|implement|refactor|fix|add|update|create|modify|remove|delete)\b`)
var readVerbs = regexp.MustCompile(`(?i)\b(read|review|inspect|check|look|investigate|understand|explore)\b`)
var testVerbs = regexp.MustCompile(`(?i)\b(test|verify|validate)\b`)
var executeVerbs = regexp.MustCompile(`(?i)\b(run|execute|build|deploy|install)\b`)

// InferPlanIntent infers a plan step's intent by regex over its verbs.
// Checked in priority order test > write > read > execute since a
// description mentioning "test" governs even if it also says "check".
func InferPlanIntent(description string) Intent {
	switch {
	case testVerbs.MatchString(description):
		return IntentTest
	case writeVerbs.MatchString(description):
		return IntentWrite
	case readVerbs.MatchString(description):
		return IntentRead
	case executeVerbs.MatchString(description):
		return IntentExecute
	default:
		return IntentUnknown
	}
}

var bashTestRegexp = regexp.MustCompile(`(?i)\b(go test|npm test|pytest|jest|rspec|ctest)\b`)
var bashReadRegexp = regexp.MustCompile(`(?i)^\s*(cat|ls|grep|find|head|tail|less|more)\b`)
var bashWriteRegexp = regexp.MustCompile(`(?i)^\s*(echo .* ?>|sed -i|tee |mkdir|touch|cp |mv |rm )`)

// ToolCategory maps a tool name (and, for Bash, its command) to an intent.
func ToolCategory(tool ToolUse) Intent {
	switch tool.Name {
	case "Edit", "Write":
		return IntentWrite
	case "Read", "Glob", "Grep":
		return IntentRead
	case "Bash":
		cmd := tool.Command
		switch {
		case bashTestRegexp.MatchString(cmd):
			return IntentTest
		case bashReadRegexp.MatchString(cmd):
			return IntentRead
		case bashWriteRegexp.MatchString(cmd):
			return IntentWrite
		default:
			return IntentExecute
		}
	default:
		return IntentUnknown
	}
}

// ScoreActionType is 1.0 when the plan's inferred intent matches the tool's
// category, else 0.
func ScoreActionType(step PlanStep, tool ToolUse) float64 {
	planIntent := InferPlanIntent(step.Description)
	toolIntent := ToolCategory(tool)
	if planIntent == IntentUnknown || toolIntent == IntentUnknown {
		return 0
	}
	if planIntent == toolIntent {
		return 1
	}
	return 0
}

// Score computes the weighted composite drift score (spec §4.G):
// 0.40*keyword + 0.35*path + 0.25*action-type.
func Score(step PlanStep, tool ToolUse) (float64, Breakdown) {
	b := Breakdown{
		Keyword:    ScoreKeyword(step, tool),
		Path:       ScorePath(step, tool),
		ActionType: ScoreActionType(step, tool),
	}
	return 0.40*b.Keyword + 0.35*b.Path + 0.25*b.ActionType, b
}

// Classify maps a score to its level using the configured thresholds.
func Classify(score float64, cfg GuardrailConfig) Level {
	switch {
	case score >= cfg.AlignedThreshold:
		return LevelAligned
	case score >= cfg.MonitorThreshold:
		return LevelMonitor
	default:
		return LevelDivergent
	}
}
