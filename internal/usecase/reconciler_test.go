package usecase

import (
	"context"
	"errors"
	"testing"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codmatch/backend/internal/domain"
)

func catalogTable(rows ...[]string) *domain.Table {
	t := domain.NewTable("Produtos", []string{"COD", "Produto", "Marca"})
	t.Rows = rows
	return t
}

func TestSelectBest(t *testing.T) {
	matches := []domain.MatchResult{
		{Candidate: "A", Score: 70, RawScore: 70, Identifier: "1"},
		{Candidate: "B", Score: 90, RawScore: 89.6, Identifier: "2"},
		{Candidate: "A", Score: 95, RawScore: 95, Identifier: "3"},
		{Candidate: "B", Score: 90, RawScore: 90.4, Identifier: "4"},
		{Candidate: "C", Score: 80, RawScore: 80, Identifier: "5"},
		{Candidate: "C", Score: 80, RawScore: 80, Identifier: "6"},
	}

	best := SelectBest(matches)

	require.Len(t, best, 3)
	assert.Equal(t, "A", best[0].Candidate)
	assert.Equal(t, "3", best[0].Identifier)
	// both round to 90; the unrounded score decides
	assert.Equal(t, "B", best[1].Candidate)
	assert.Equal(t, "4", best[1].Identifier)
	// exact tie keeps the first seen
	assert.Equal(t, "C", best[2].Candidate)
	assert.Equal(t, "5", best[2].Identifier)
	// input untouched
	assert.Equal(t, "1", matches[0].Identifier)
}

func TestResolvedIdentifiers(t *testing.T) {
	matches := []domain.MatchResult{
		{Candidate: "A", Score: 99, RawScore: 99, Accepted: true, Identifier: " "},
		{Candidate: "A", Score: 80, RawScore: 80, Accepted: true, Identifier: "NATBRA-1"},
		{Candidate: "B", Score: 99, RawScore: 99, Accepted: false, Identifier: "NATBRA-2"},
	}

	resolved := ResolvedIdentifiers(matches)

	assert.Equal(t, map[string]string{"A": "NATBRA-1"}, resolved)
}

func TestReconcile(t *testing.T) {
	t.Run("fills blank identifier", func(t *testing.T) {
		table := catalogTable(
			[]string{"", "SABONETE LIQUIDO ROSA", "Natura"},
			[]string{"  ", "CREME", "Natura"},
		)
		r := NewReconciler(nil, false)

		stats, err := r.Reconcile(table, "COD", "Produto", map[string]string{
			"SABONETE LIQUIDO ROSA": "NATBRA-100",
			"CREME":                 "NATBRA-200",
		})

		require.NoError(t, err)
		assert.Equal(t, ReconcileStats{Filled: 2}, stats)
		assert.Equal(t, "NATBRA-100", table.Value(0, "COD"))
		assert.Equal(t, "NATBRA-200", table.Value(1, "COD"))
	})

	t.Run("never overwrites an existing identifier", func(t *testing.T) {
		table := catalogTable([]string{"123", "X", "Natura"})
		r := NewReconciler(nil, false)

		stats, err := r.Reconcile(table, "COD", "Produto", map[string]string{"X": "NATBRA-999"})

		require.NoError(t, err)
		assert.Equal(t, 1, stats.Kept)
		assert.Equal(t, 0, stats.Filled)
		assert.Equal(t, "123", table.Value(0, "COD"))
	})

	t.Run("keys rows with the supplied function", func(t *testing.T) {
		table := catalogTable([]string{"", "  Sabonete Líquido Rosa ", "Natura"})
		catalog := mustNormalizer(t, ProfileCatalog)
		r := NewReconciler(catalog.Normalize, false)

		_, err := r.Reconcile(table, "COD", "Produto", map[string]string{"SABONETE LIQUIDO ROSA": "NATBRA-1"})

		require.NoError(t, err)
		assert.Equal(t, "NATBRA-1", table.Value(0, "COD"))
		// display name is preserved
		assert.Equal(t, "  Sabonete Líquido Rosa ", table.Value(0, "Produto"))
	})

	t.Run("creates missing identifier column", func(t *testing.T) {
		table := domain.NewTable("Sheet1", []string{"Produto"})
		table.Rows = [][]string{{"A"}, {"B"}}
		r := NewReconciler(nil, false)

		stats, err := r.Reconcile(table, "COD", "Produto", map[string]string{"B": "7"})

		require.NoError(t, err)
		assert.Equal(t, ReconcileStats{Filled: 1, Unmatched: 1}, stats)
		assert.Equal(t, "", table.Value(0, "COD"))
		assert.Equal(t, "7", table.Value(1, "COD"))
	})

	t.Run("missing name column", func(t *testing.T) {
		table := domain.NewTable("Sheet1", []string{"COD"})
		r := NewReconciler(nil, false)

		_, err := r.Reconcile(table, "COD", "Produto", nil)

		assert.True(t, errors.Is(err, domain.ErrColumnNotFound))
	})
}

func TestReconcileNeverTouchesFilledRows(t *testing.T) {
	faker := gofakeit.New(11)
	r := NewReconciler(nil, false)

	for i := 0; i < 50; i++ {
		table := catalogTable()
		resolved := map[string]string{}
		var before []string
		for j := 0; j < faker.Number(1, 20); j++ {
			name := faker.Noun()
			id := ""
			if faker.Bool() {
				id = faker.Numerify("####")
			}
			table.Rows = append(table.Rows, []string{id, name, ""})
			before = append(before, id)
			resolved[name] = "NEW-" + faker.Numerify("###")
		}

		_, err := r.Reconcile(table, "COD", "Produto", resolved)
		require.NoError(t, err)

		for row, id := range before {
			if id != "" {
				assert.Equal(t, id, table.Value(row, "COD"))
			} else {
				assert.NotEmpty(t, table.Value(row, "COD"))
			}
		}
	}
}

// End to end: noisy invoice text resolves an empty catalog identifier
func TestNormalizeMatchReconcile(t *testing.T) {
	ctx := context.Background()
	invoice := mustNormalizer(t, ProfileInvoice)
	catalog := mustNormalizer(t, ProfileCatalog)
	table := catalogTable(
		[]string{"", "SABONETE LIQUIDO ROSA", "Natura"},
		[]string{"123", "X", "Natura"},
	)
	candidates := []string{catalog.Normalize("SABONETE LIQUIDO ROSA"), catalog.Normalize("X")}
	svc := NewMatchingService(MatchConfig{Threshold: ThresholdOf(62)})

	noisy := invoice.Normalize("SAB LIQ ROSA")
	require.Equal(t, "SABONETE LIQUIDO ROSA", noisy)

	match, err := svc.FindBestMatch(ctx, noisy, candidates)
	require.NoError(t, err)
	assert.Equal(t, 100, match.Score)
	match.Identifier = "NATBRA-555"

	other := domain.MatchResult{Candidate: "X", Score: 95, RawScore: 95, Accepted: true, Identifier: "NATBRA-999"}
	resolved := ResolvedIdentifiers([]domain.MatchResult{*match, other})

	_, err = NewReconciler(catalog.Normalize, false).Reconcile(table, "COD", "Produto", resolved)
	require.NoError(t, err)
	assert.Equal(t, "NATBRA-555", table.Value(0, "COD"))
	assert.Equal(t, "123", table.Value(1, "COD"))
}
