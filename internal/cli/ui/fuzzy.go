package ui

import (
	"sort"
	"strings"
)

// MaxSuggestionDistance is the largest edit distance still offered as a suggestion
const MaxSuggestionDistance = 3

// Suggest returns up to limit candidates closest to target, ignoring case.
// Ties keep candidate order.
//
//	Suggest("Ordrs", []string{"Orders", "Customer"}, 3) // ["Orders"]
func Suggest(target string, candidates []string, limit int) []string {
	type match struct {
		value    string
		distance int
	}

	t := strings.ToLower(target)
	var matches []match
	for _, c := range candidates {
		if d := Distance(t, strings.ToLower(c)); d <= MaxSuggestionDistance {
			matches = append(matches, match{value: c, distance: d})
		}
	}
	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].distance < matches[j].distance
	})

	out := make([]string, 0, min(limit, len(matches)))
	for i := 0; i < len(matches) && i < limit; i++ {
		out = append(out, matches[i].value)
	}
	return out
}

// Distance is the Levenshtein distance between a and b, counted in runes
func Distance(a, b string) int {
	ra, rb := []rune(a), []rune(b)
	prev := make([]int, len(rb)+1)
	curr := make([]int, len(rb)+1)
	for j := range prev {
		prev[j] = j
	}

	for i := 1; i <= len(ra); i++ {
		curr[0] = i
		for j := 1; j <= len(rb); j++ {
			cost := 1
			if ra[i-1] == rb[j-1] {
				cost = 0
			}
			curr[j] = min(prev[j]+1, curr[j-1]+1, prev[j-1]+cost)
		}
		prev, curr = curr, prev
	}
	return prev[len(rb)]
}
