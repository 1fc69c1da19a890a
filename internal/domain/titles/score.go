// Package titles scores clip title candidates against proven title framework
// patterns so the best variant can be surfaced first.
package titles

import (
	"regexp"
	"sort"
	"strings"
)

var patterns = []struct {
	name   string
	re     *regexp.Regexp
	weight float64
}{
	{"list", regexp.MustCompile(`\b\d+\s+(things|ways|reasons|tips|secrets|tricks|hacks)\b`), 0.20},
	{"numbers", regexp.MustCompile(`\b\d+\b`), 0.15},
	{"how_to", regexp.MustCompile(`\b(how to|how do|how can)\b`), 0.15},
	{"mistakes", regexp.MustCompile(`\b(mistake|error|wrong|fail)\b`), 0.15},
	{"secret", regexp.MustCompile(`\b(secret|hack|trick|hidden)\b`), 0.15},
	{"why", regexp.MustCompile(`\b(why|reason|reasons)\b`), 0.10},
	{"best", regexp.MustCompile(`\b(best|top|ultimate)\b`), 0.10},
	{"emotional", regexp.MustCompile(`\b(amazing|incredible|shocking|insane|obsessed|love|hate|fear)\b`), 0.10},
	{"tutorial", regexp.MustCompile(`\b(tutorial|guide|step by step|learn)\b`), 0.10},
	{"vs", regexp.MustCompile(`\b(vs|versus|compared)\b`), 0.05},
}

// Score returns a pattern-match score in [0..1].
func Score(title string) float64 {
	t := strings.ToLower(strings.TrimSpace(title))
	if t == "" {
		return 0
	}
	score := 0.0
	for _, p := range patterns {
		if p.re.MatchString(t) {
			score += p.weight
		}
	}
	if score > 1 {
		score = 1
	}
	return score
}

// Rank orders titles best-first; the sort is stable so equally scored
// variants keep their upstream order.
func Rank(in []string) []string {
	out := make([]string, len(in))
	copy(out, in)
	sort.SliceStable(out, func(i, j int) bool { return Score(out[i]) > Score(out[j]) })
	return out
}
