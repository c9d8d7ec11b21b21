package projectregistry

import "strings"

// DuplicateThreshold is the name-similarity score (spec I5) at or above
// which an insert must surface the match as a likely duplicate.
const DuplicateThreshold = 0.75

// trigrams returns the set of overlapping 3-character substrings of the
// lowercased input, padded so short names still produce at least one
// trigram.
func trigrams(s string) map[string]struct{} {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return map[string]struct{}{}
	}
	padded := "  " + s + " "
	set := make(map[string]struct{})
	for i := 0; i+3 <= len(padded); i++ {
		set[padded[i:i+3]] = struct{}{}
	}
	return set
}

// Similarity scores two names by Jaccard overlap of their character
// trigram sets: |intersection| / |union|. Identical strings score 1.0;
// completely disjoint strings score 0.0.
func Similarity(a, b string) float64 {
	ta, tb := trigrams(a), trigrams(b)
	if len(ta) == 0 && len(tb) == 0 {
		return 1.0
	}
	if len(ta) == 0 || len(tb) == 0 {
		return 0.0
	}
	intersection := 0
	for g := range ta {
		if _, ok := tb[g]; ok {
			intersection++
		}
	}
	union := len(ta) + len(tb) - intersection
	if union == 0 {
		return 0.0
	}
	return float64(intersection) / float64(union)
}
