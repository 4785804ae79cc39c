// Package relevance scores how close a candidate string is to a search query.
// Score is distance-like: the lower the value the more relevant the candidate.
// Candidates containing the query (or contained in it) get a bonus and may score below zero.
package relevance

import (
	"strings"
	"unicode/utf8"

	"github.com/adrg/strutil/metrics"
	"github.com/agnivade/levenshtein"
)

const (
	// Share of Jaro-Winkler in the similarity part, the rest goes to token set similarity
	WinklerWeight = 0.7

	// Subtracted when one string contains another
	ContainBonus = 1.75

	editDistanceWeight = 0.75

	// Winkler prefix boost applies only above this Jaro similarity
	boostThreshold = 0.7
	prefixScale    = 0.1
	maxPrefixLen   = 4
)

var jaro = metrics.NewJaro()

// Score compares query and candidate case-insensitively
func Score(query string, candidate string) float64 {
	a, b := strings.ToLower(query), strings.ToLower(candidate)

	score := WinklerWeight*(1-WinklerSimilarity(a, b)) +
		(1-WinklerWeight)*(1-TokenSetSimilarity(a, b)) +
		EditDistance(a, b)

	if strings.Contains(a, b) || strings.Contains(b, a) {
		score -= ContainBonus
	}

	return score
}

// TokenSetSimilarity is Jaccard index of whitespace separated tokens, 0 for two empty sets
func TokenSetSimilarity(a string, b string) float64 {
	tokens := make(map[string]uint8)
	for _, tok := range strings.Fields(a) {
		tokens[tok] |= 1
	}
	for _, tok := range strings.Fields(b) {
		tokens[tok] |= 2
	}

	if len(tokens) == 0 {
		return 0
	}

	var common int
	for _, seen := range tokens {
		if seen == 3 {
			common++
		}
	}

	return float64(common) / float64(len(tokens))
}

// EditDistance is Levenshtein distance normalized by the longer string and scaled by 0.75
func EditDistance(a string, b string) float64 {
	maxLen := max(utf8.RuneCountInString(a), utf8.RuneCountInString(b))
	if maxLen == 0 {
		return 0
	}

	return editDistanceWeight * float64(levenshtein.ComputeDistance(a, b)) / float64(maxLen)
}

// WinklerSimilarity is Jaro-Winkler similarity in [0, 1]
// Common prefix of up to 4 runes boosts Jaro similarity above 0.7, weaker matches are left as is
func WinklerSimilarity(a string, b string) float64 {
	switch {
	case a == b:
		return 1
	case a == "" || b == "":
		return 0
	}

	sim := jaro.Compare(a, b)
	if sim <= boostThreshold {
		return sim
	}

	return sim + prefixScale*float64(commonPrefixLen(a, b, maxPrefixLen))*(1-sim)
}

func commonPrefixLen(a string, b string, limit int) int {
	ra, rb := []rune(a), []rune(b)

	n := 0
	for n < limit && n < len(ra) && n < len(rb) && ra[n] == rb[n] {
		n++
	}
	return n
}
