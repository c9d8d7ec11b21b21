// Package router implements skill-registry scoring and agent selection with
// a confidence gate (spec §4.F).
package router

import (
	"path"
	"sort"
	"strings"
)

// DefaultConfidenceThreshold is the minimum score a role must clear to be
// returned as the best match.
const DefaultConfidenceThreshold = 0.3

// Weights for the four router sub-scores.
const (
	WeightKeyword     = 0.35
	WeightFilePattern = 0.30
	WeightArea        = 0.20
	WeightAffinity    = 0.15
)

// Skill is one role's entry in the skill registry: the keywords, file glob
// patterns, and declared work areas it claims.
type Skill struct {
	Role     string
	Keywords []string
	Patterns []string // glob patterns matched against task.Files
	Areas    []string
}

// Task is the routable work item: title/description/labels feed the
// keyword and area scores, Files feeds the file-pattern score.
type Task struct {
	Title       string
	Description string
	Labels      []string
	Files       []string
}

// AffinityFunc computes the optional registry-bonus sub-score for a role
// against a task (spec's "affinity — optional registry bonus"), grounded
// on internal/projectregistry. Return 0 if no bonus applies.
type AffinityFunc func(role string, task Task) float64

// ClaimedCountFunc returns how many tasks a role currently has claimed,
// used to break ties (fewest-claimed wins).
type ClaimedCountFunc func(role string) int

// Breakdown is one role's four sub-scores.
type Breakdown struct {
	Keyword     float64
	FilePattern float64
	Area        float64
	Affinity    float64
}

// Candidate is one scored role.
type Candidate struct {
	Role      string
	Score     float64
	Breakdown Breakdown
}

// Result is the router's decision for one task.
type Result struct {
	Matched   bool
	Best      Candidate
	Ranked    []Candidate // descending by score
	Reason    string
}

func normalizedText(t Task) string {
	parts := []string{t.Title, t.Description}
	parts = append(parts, t.Labels...)
	return strings.ToLower(strings.Join(parts, " "))
}

func countHits(text string, words []string, cap int) int {
	hits := 0
	for _, w := range words {
		if w == "" {
			continue
		}
		if strings.Contains(text, strings.ToLower(w)) {
			hits++
			if hits >= cap {
				return cap
			}
		}
	}
	return hits
}

// scoreKeyword is the fraction of a role's keywords present in the task
// text, capped at 1 after 3 hits.
func scoreKeyword(s Skill, text string) float64 {
	if len(s.Keywords) == 0 {
		return 0
	}
	hits := countHits(text, s.Keywords, 3)
	return float64(hits) / 3
}

// scoreFilePattern is the fraction of task files matching any of the
// role's glob patterns.
func scoreFilePattern(s Skill, files []string) float64 {
	if len(files) == 0 || len(s.Patterns) == 0 {
		return 0
	}
	matched := 0
	for _, f := range files {
		for _, pat := range s.Patterns {
			if globMatch(pat, f) {
				matched++
				break
			}
		}
	}
	return float64(matched) / float64(len(files))
}

// globMatch supports a doublestar-style "**" segment in addition to
// path.Match's single-segment "*", since role patterns like
// "src/components/**" must match arbitrarily deep paths.
func globMatch(pattern, name string) bool {
	if strings.Contains(pattern, "**") {
		prefix := strings.SplitN(pattern, "**", 2)[0]
		return strings.HasPrefix(name, prefix)
	}
	ok, err := path.Match(pattern, name)
	return err == nil && ok
}

// scoreArea is keyword-in-text hits against declared areas, capped at 1
// after 2 hits.
func scoreArea(s Skill, text string) float64 {
	if len(s.Areas) == 0 {
		return 0
	}
	hits := countHits(text, s.Areas, 2)
	return float64(hits) / 2
}

// Route scores every candidate skill against task and returns the
// top-scoring role whose score clears threshold, or a "no match" result
// carrying the ranked score list (spec §4.F, Scenario 6).
func Route(task Task, skills []Skill, threshold float64, affinity AffinityFunc, claimedCount ClaimedCountFunc) Result {
	if threshold <= 0 {
		threshold = DefaultConfidenceThreshold
	}
	text := normalizedText(task)

	candidates := make([]Candidate, 0, len(skills))
	for _, s := range skills {
		b := Breakdown{
			Keyword:     scoreKeyword(s, text),
			FilePattern: scoreFilePattern(s, task.Files),
			Area:        scoreArea(s, text),
		}
		if affinity != nil {
			b.Affinity = affinity(s.Role, task)
		}
		score := WeightKeyword*b.Keyword + WeightFilePattern*b.FilePattern + WeightArea*b.Area + WeightAffinity*b.Affinity
		candidates = append(candidates, Candidate{Role: s.Role, Score: score, Breakdown: b})
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].Score != candidates[j].Score {
			return candidates[i].Score > candidates[j].Score
		}
		// Tie-break: fewest currently-claimed tasks, then stable role order
		// (SliceStable preserves registration order for exact ties).
		if claimedCount != nil {
			ci := claimedCount(candidates[i].Role)
			cj := claimedCount(candidates[j].Role)
			if ci != cj {
				return ci < cj
			}
		}
		return false
	})

	if len(candidates) == 0 {
		return Result{Matched: false, Ranked: candidates, Reason: "no candidate roles registered"}
	}

	best := candidates[0]
	if best.Score >= threshold {
		return Result{Matched: true, Best: best, Ranked: candidates}
	}

	return Result{
		Matched: false,
		Best:    best,
		Ranked:  candidates,
		Reason:  "no role cleared the confidence threshold",
	}
}
