// Package fuzzy provides approximate string matching over whole strings
// and over record field sets. Similarity is the longest-matching-blocks
// ratio of difflib's SequenceMatcher, in [0, 1].
package fuzzy

import (
	"strings"

	"github.com/pmezard/go-difflib/difflib"
)

// Block is a run of identical characters shared by the two compared
// strings: A and B are the start offsets in each, Size the run length.
type Block = difflib.Match

// Ratio returns the similarity of a and b.
func Ratio(a, b string) float64 {
	return difflib.NewMatcher(chars(a), chars(b)).Ratio()
}

// RatioJunk is Ratio with the characters in junk treated as junk, so
// runs of separators do not inflate the score.
func RatioJunk(a, b, junk string) float64 {
	return newMatcher(a, b, junk).Ratio()
}

// Blocks returns the matching blocks of a and b, longest-first ordering
// as produced by SequenceMatcher (terminated by a zero-size sentinel).
func Blocks(a, b, junk string) []Block {
	return newMatcher(a, b, junk).GetMatchingBlocks()
}

func newMatcher(a, b, junk string) *difflib.SequenceMatcher {
	if junk == "" {
		return difflib.NewMatcher(chars(a), chars(b))
	}
	isJunk := func(s string) bool { return strings.Contains(junk, s) }
	return difflib.NewMatcherWithJunk(chars(a), chars(b), true, isJunk)
}

// chars splits s into per-rune elements so the matcher compares
// character sequences, not lines.
func chars(s string) []string {
	out := make([]string, 0, len(s))
	for _, r := range s {
		out = append(out, string(r))
	}
	return out
}

// MatchFields averages the per-field similarity of target and candidate
// over the given field names. Fields that are absent or not strings on
// either side are skipped. Returns 0 when no field could be compared.
func MatchFields(target, candidate map[string]any, fields []string) float64 {
	var sum float64
	n := 0
	for _, f := range fields {
		ts, ok := target[f].(string)
		if !ok {
			continue
		}
		cs, ok := candidate[f].(string)
		if !ok {
			continue
		}
		sum += Ratio(strings.ToLower(ts), strings.ToLower(cs))
		n++
	}
	if n == 0 {
		return 0
	}
	return sum / float64(n)
}

// FindBestMatch scans candidates in order and returns the one with the
// highest MatchFields score at or above threshold. Ties keep the
// earliest candidate. The second return is false when nothing reaches
// the threshold.
func FindBestMatch(target map[string]any, candidates []map[string]any, fields []string, threshold float64) (map[string]any, bool) {
	var best map[string]any
	bestScore := 0.0
	for _, c := range candidates {
		if score := MatchFields(target, c, fields); score > bestScore {
			bestScore = score
			best = c
		}
	}
	if best == nil || bestScore < threshold {
		return nil, false
	}
	return best, true
}

// ClosestName returns the option most similar to name, if its ratio
// reaches cutoff.
func ClosestName(name string, options []string, cutoff float64) (string, bool) {
	best := ""
	bestScore := 0.0
	for _, opt := range options {
		if score := Ratio(name, opt); score > bestScore {
			bestScore = score
			best = opt
		}
	}
	if bestScore < cutoff {
		return "", false
	}
	return best, true
}
