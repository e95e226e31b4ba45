package ui

import (
	"sort"
	"strings"
)

const (
	// MaxDistance is the largest edit distance still offered as a suggestion
	MaxDistance = 3
	// MaxSuggestions caps the number of suggestions
	MaxSuggestions = 3
)

// Suggest returns up to MaxSuggestions candidates within MaxDistance
// edits of target, closest first. Matching ignores case, and ties keep
// the candidates' order.
//
//	Suggest("usres", []string{"users", "orders"}) // ["users"]
func Suggest(target string, candidates []string) []string {
	type match struct {
		value string
		dist  int
	}

	lower := strings.ToLower(target)
	var matches []match
	for _, c := range candidates {
		if d := Distance(lower, strings.ToLower(c)); d <= MaxDistance {
			matches = append(matches, match{value: c, dist: d})
		}
	}
	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].dist < matches[j].dist
	})

	out := make([]string, 0, min(len(matches), MaxSuggestions))
	for i := 0; i < len(matches) && i < MaxSuggestions; i++ {
		out = append(out, matches[i].value)
	}
	return out
}

// Distance returns the Levenshtein distance between a and b, counted in
// bytes.
func Distance(a, b string) int {
	if len(a) == 0 {
		return len(b)
	}
	if len(b) == 0 {
		return len(a)
	}

	prev := make([]int, len(b)+1)
	cur := make([]int, len(b)+1)
	for j := range prev {
		prev[j] = j
	}
	for i := 1; i <= len(a); i++ {
		cur[0] = i
		for j := 1; j <= len(b); j++ {
			cost := 1
			if a[i-1] == b[j-1] {
				cost = 0
			}
			cur[j] = min(prev[j]+1, cur[j-1]+1, prev[j-1]+cost)
		}
		prev, cur = cur, prev
	}
	return prev[len(b)]
}
