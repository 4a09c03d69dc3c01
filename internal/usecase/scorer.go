package usecase

import (
	"fmt"
	"sort"
	"strings"
)

// Scorer rates the similarity of two normalized names on a 0-100 scale
type Scorer interface {
	Name() string
	Score(a, b string) float64
}

const (
	ScorerTokenSort = "token_sort"
	ScorerSequence  = "sequence"
)

// ScorerByName returns the scorer registered under name
func ScorerByName(name string) (Scorer, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case ScorerTokenSort, "":
		return TokenSortScorer{}, nil
	case ScorerSequence:
		return SequenceScorer{}, nil
	}
	return nil, fmt.Errorf("unknown scorer %q", name)
}

// TokenSortScorer compares names after sorting their whitespace tokens, so
// word order does not matter. The ratio is the normalized indel similarity:
// 100 * 2*LCS / (len(a)+len(b)).
type TokenSortScorer struct{}

func (TokenSortScorer) Name() string { return ScorerTokenSort }

func (TokenSortScorer) Score(a, b string) float64 {
	return indelRatio(sortTokens(a), sortTokens(b))
}

// SequenceScorer is the Ratcliff/Obershelp ratio over characters:
// 100 * 2*M / (len(a)+len(b)) where M counts characters in the recursively
// found longest common blocks.
type SequenceScorer struct{}

func (SequenceScorer) Name() string { return ScorerSequence }

func (SequenceScorer) Score(a, b string) float64 {
	ra, rb := []rune(a), []rune(b)
	if len(ra) == 0 || len(rb) == 0 {
		return 0
	}
	m := matchingCharacters(ra, rb)
	return 200 * float64(m) / float64(len(ra)+len(rb))
}

func sortTokens(s string) string {
	tokens := strings.Fields(s)
	sort.Strings(tokens)
	return strings.Join(tokens, " ")
}

func indelRatio(a, b string) float64 {
	ra, rb := []rune(a), []rune(b)
	if len(ra) == 0 || len(rb) == 0 {
		return 0
	}
	lcs := longestCommonSubsequence(ra, rb)
	return 200 * float64(lcs) / float64(len(ra)+len(rb))
}

// longestCommonSubsequence is the classic DP kept to two rows
func longestCommonSubsequence(r1, r2 []rune) int {
	m := len(r1)
	n := len(r2)

	prev := make([]int, n+1)
	curr := make([]int, n+1)

	for i := 1; i <= m; i++ {
		curr[0] = 0
		for j := 1; j <= n; j++ {
			if r1[i-1] == r2[j-1] {
				curr[j] = prev[j-1] + 1
			} else {
				curr[j] = max(prev[j], curr[j-1])
			}
		}
		prev, curr = curr, prev
	}

	return prev[n]
}

// matchingCharacters sums the sizes of the matching blocks found by
// repeatedly taking the longest common substring and recursing on both sides.
// Among equally long blocks the one starting earliest in a, then in b, wins.
func matchingCharacters(a, b []rune) int {
	positions := make(map[rune][]int)
	for j, r := range b {
		positions[r] = append(positions[r], j)
	}

	type span struct{ alo, ahi, blo, bhi int }
	queue := []span{{0, len(a), 0, len(b)}}
	total := 0

	for len(queue) > 0 {
		s := queue[len(queue)-1]
		queue = queue[:len(queue)-1]

		i, j, k := longestMatch(a, positions, s.alo, s.ahi, s.blo, s.bhi)
		if k == 0 {
			continue
		}
		total += k
		if s.alo < i && s.blo < j {
			queue = append(queue, span{s.alo, i, s.blo, j})
		}
		if i+k < s.ahi && j+k < s.bhi {
			queue = append(queue, span{i + k, s.ahi, j + k, s.bhi})
		}
	}
	return total
}

func longestMatch(a []rune, positions map[rune][]int, alo, ahi, blo, bhi int) (int, int, int) {
	besti, bestj, bestsize := alo, blo, 0
	lengths := map[int]int{}
	for i := alo; i < ahi; i++ {
		next := map[int]int{}
		for _, j := range positions[a[i]] {
			if j < blo {
				continue
			}
			if j >= bhi {
				break
			}
			k := lengths[j-1] + 1
			next[j] = k
			if k > bestsize {
				besti, bestj, bestsize = i-k+1, j-k+1, k
			}
		}
		lengths = next
	}
	return besti, bestj, bestsize
}
