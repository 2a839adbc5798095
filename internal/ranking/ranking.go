// Package ranking scores discovered detail-page links by the numeric
// popularity tokens found in their surrounding text.
package ranking

import (
	"math"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/kumma49/kuaishou-topn-downloader/internal/model"
)

const (
	minTopN = 1
	maxTopN = 50
)

// A popularity token is a digit run with optional grouping/decimal
// separators, optionally followed by a ten-thousand unit ("w" or "万").
var (
	numTokenRegex = regexp.MustCompile(`([0-9][0-9.,]*)([wW万])?`)
	nonDigitRegex = regexp.MustCompile(`[^0-9]`)
)

// Score extracts a popularity value from context text. The heuristic counts
// any numeric token, not just like counters; context like "3 days ago" scores
// too. Kept as-is because every observed page variant agrees on it.
func Score(context string) int {
	m := numTokenRegex.FindStringSubmatch(context)
	if m == nil {
		return 0
	}

	if m[2] != "" {
		v, err := strconv.ParseFloat(strings.ReplaceAll(m[1], ",", ""), 64)
		if err != nil {
			return 0
		}
		return int(math.Round(v * 10000))
	}

	n, err := strconv.Atoi(nonDigitRegex.ReplaceAllString(m[1], ""))
	if err != nil {
		return 0
	}
	return n
}

// Rank scores every candidate and returns the top N by descending score.
// The sort is stable: equal scores keep their discovery order.
func Rank(links []model.CandidateLink, topN int) []model.ScoredCandidate {
	if topN < minTopN {
		topN = minTopN
	}
	if topN > maxTopN {
		topN = maxTopN
	}

	scored := make([]model.ScoredCandidate, len(links))
	for i, link := range links {
		scored[i] = model.ScoredCandidate{
			CandidateLink: link,
			Popularity:    Score(link.ContextText),
		}
	}

	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].Popularity > scored[j].Popularity
	})

	if len(scored) > topN {
		scored = scored[:topN]
	}
	return scored
}
