package relevance

import (
	"math"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// ScoreRecency = 2^(-Δdays/H). A missing or invalid timestamp scores 0
// (spec §4.D). Monotonically non-increasing with age (P5).
func ScoreRecency(lastAccessed time.Time, now time.Time, halfLifeDays float64) float64 {
	if lastAccessed.IsZero() || halfLifeDays <= 0 {
		return 0
	}
	deltaDays := now.Sub(lastAccessed).Hours() / 24
	if deltaDays < 0 {
		deltaDays = 0
	}
	return math.Pow(2, -deltaDays/halfLifeDays)
}

// ScoreFrequency = log(1+accessCount) / log(1+maxAccessCount). Zero access
// count or a non-positive max scores 0. Monotonically non-decreasing with
// access count (P5).
func ScoreFrequency(accessCount, maxAccessCount int) float64 {
	if accessCount <= 0 || maxAccessCount <= 0 {
		return 0
	}
	return math.Log(1+float64(accessCount)) / math.Log(1+float64(maxAccessCount))
}

// ScoreLinks = min(1, linkCount/maxLinkCount).
func ScoreLinks(linkCount, maxLinkCount int) float64 {
	if linkCount <= 0 || maxLinkCount <= 0 {
		return 0
	}
	ratio := float64(linkCount) / float64(maxLinkCount)
	if ratio > 1 {
		return 1
	}
	return ratio
}

func jaccard(a, b []string) (float64, bool) {
	if len(a) == 0 && len(b) == 0 {
		return 0, false
	}
	setA := map[string]struct{}{}
	for _, v := range a {
		setA[strings.ToLower(v)] = struct{}{}
	}
	setB := map[string]struct{}{}
	for _, v := range b {
		setB[strings.ToLower(v)] = struct{}{}
	}
	if len(setA) == 0 || len(setB) == 0 {
		return 0, true
	}
	union := map[string]struct{}{}
	inter := 0
	for k := range setA {
		union[k] = struct{}{}
		if _, ok := setB[k]; ok {
			inter++
		}
	}
	for k := range setB {
		union[k] = struct{}{}
	}
	return float64(inter) / float64(len(union)), true
}

func basenames(paths []string) []string {
	out := make([]string, 0, len(paths))
	for _, p := range paths {
		out = append(out, filepath.Base(p))
	}
	return out
}

// ScoreSimilarity averages the tag-Jaccard and file-basename-Jaccard
// scores when both sides have data for that dimension, case-insensitive
// and commutative (P7): sim(A,B) == sim(B,A).
func ScoreSimilarity(a, b Context) float64 {
	var sum float64
	var count int

	if tagScore, present := jaccard(a.Tags, b.Tags); present {
		sum += tagScore
		count++
	}
	if fileScore, present := jaccard(basenames(a.Files), basenames(b.Files)); present {
		sum += fileScore
		count++
	}
	if count == 0 {
		return 0
	}
	return sum / float64(count)
}

// Composite clamps the weighted sum of sub-scores to [0,1].
func Composite(w Weights, b Breakdown) float64 {
	v := w.Recency*b.Recency + w.Frequency*b.Frequency + w.Similarity*b.Similarity + w.Links*b.Links
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// Score computes the full breakdown + composite for one entry against ctx.
// maxAccessCount/maxLinkCount are the batch maxima Frequency/Links are
// normalised against.
func Score(e Entry, ctx Context, cfg Config, now time.Time, maxAccessCount, maxLinkCount int) Scored {
	b := Breakdown{
		Recency:    ScoreRecency(e.LastAccessed, now, cfg.HalfLifeDays),
		Frequency:  ScoreFrequency(e.AccessCount, maxAccessCount),
		Similarity: ScoreSimilarity(Context{Tags: e.Tags, Files: e.Files}, ctx),
		Links:      ScoreLinks(e.LinkCount, maxLinkCount),
	}
	return Scored{Entry: e, Relevance: Composite(cfg.Weights, b), Breakdown: b}
}

// ScoreBatch scores every entry against ctx, sorts descending by relevance,
// and optionally limits the result. maxAccessCount/maxLinkCount are derived
// from the batch itself.
func ScoreBatch(entries []Entry, ctx Context, cfg Config, now time.Time, limit int) []Scored {
	maxAccess, maxLinks := 0, 0
	for _, e := range entries {
		if e.AccessCount > maxAccess {
			maxAccess = e.AccessCount
		}
		if e.LinkCount > maxLinks {
			maxLinks = e.LinkCount
		}
	}

	out := make([]Scored, 0, len(entries))
	for _, e := range entries {
		out = append(out, Score(e, ctx, cfg, now, maxAccess, maxLinks))
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Relevance > out[j].Relevance })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}
