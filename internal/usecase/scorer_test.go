package usecase

import (
	"math"
	"strings"
	"testing"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenSortScorer(t *testing.T) {
	s := TokenSortScorer{}

	testCases := []struct {
		name string
		a, b string
		want float64
	}{
		{"identical", "SABONETE LIQUIDO ROSA", "SABONETE LIQUIDO ROSA", 100},
		{"reordered tokens", "LIQUIDO ROSA SABONETE", "SABONETE LIQUIDO ROSA", 100},
		{"one substitution", "abc", "abd", 200.0 * 2 / 6},
		{"disjoint", "abc", "xyz", 0},
		{"empty left", "", "abc", 0},
		{"empty right", "abc", "", 0},
		{"extra spaces ignored", "  B   A ", "A B", 100},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.InDelta(t, tc.want, s.Score(tc.a, tc.b), 1e-9)
		})
	}
}

func TestSequenceScorer(t *testing.T) {
	s := SequenceScorer{}

	testCases := []struct {
		name string
		a, b string
		want float64
	}{
		{"identical", "KAIAK", "KAIAK", 100},
		{"shifted block", "abcd", "bcde", 75},
		{"two blocks", "abcd", "abxcd", 200.0 * 4 / 9},
		{"swapped characters", "ab", "ba", 50},
		{"order sensitive", "ROSA SABONETE", "SABONETE ROSA", 200.0 * 8 / 26},
		{"empty", "", "abc", 0},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.InDelta(t, tc.want, s.Score(tc.a, tc.b), 1e-9)
		})
	}
}

func TestScorerByName(t *testing.T) {
	s, err := ScorerByName("sequence")
	require.NoError(t, err)
	assert.Equal(t, ScorerSequence, s.Name())

	s, err = ScorerByName("")
	require.NoError(t, err)
	assert.Equal(t, ScorerTokenSort, s.Name())

	_, err = ScorerByName("jaro")
	assert.Error(t, err)
}

func TestScoresStayInRange(t *testing.T) {
	faker := gofakeit.New(7)
	scorers := []Scorer{TokenSortScorer{}, SequenceScorer{}}

	for i := 0; i < 300; i++ {
		a := strings.ToUpper(faker.Sentence(faker.Number(1, 5)))
		b := strings.ToUpper(faker.Sentence(faker.Number(1, 5)))
		for _, s := range scorers {
			score := s.Score(a, b)
			if math.IsNaN(score) || score < 0 || score > 100 {
				t.Fatalf("%s.Score(%q, %q) = %v, want within [0,100]", s.Name(), a, b, score)
			}
			if self := s.Score(a, a); math.Abs(self-100) > 1e-9 {
				t.Fatalf("%s.Score(%q, itself) = %v, want 100", s.Name(), a, self)
			}
		}
		// indel similarity is symmetric
		assert.InDelta(t, TokenSortScorer{}.Score(a, b), TokenSortScorer{}.Score(b, a), 1e-9)
	}
}
