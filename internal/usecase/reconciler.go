package usecase

import (
	"fmt"
	"log"
	"sort"
	"strings"

	"github.com/codmatch/backend/internal/domain"
)

// ReconcileStats counts what a reconciliation pass did
type ReconcileStats struct {
	Filled    int `json:"filled"`    // blank identifiers that received a value
	Kept      int `json:"kept"`      // rows whose existing identifier was left alone
	Unmatched int `json:"unmatched"` // blank rows with no resolved identifier
}

// Reconciler merges resolved identifiers into a catalog table. It only ever
// writes into blank identifier cells.
type Reconciler struct {
	key                func(string) string
	enableDebugLogging bool
}

// NewReconciler creates a reconciler that looks rows up by key(name).
// A nil key compares trimmed names.
func NewReconciler(key func(string) string, enableDebugLogging bool) *Reconciler {
	if key == nil {
		key = strings.TrimSpace
	}
	return &Reconciler{key: key, enableDebugLogging: enableDebugLogging}
}

// SelectBest keeps one match per canonical name: the highest-scoring one,
// with ties going to the match seen first. Output is ordered by score.
func SelectBest(matches []domain.MatchResult) []domain.MatchResult {
	sorted := make([]domain.MatchResult, len(matches))
	copy(sorted, matches)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].RawScore > sorted[j].RawScore
	})

	seen := make(map[string]bool, len(sorted))
	best := make([]domain.MatchResult, 0, len(sorted))
	for _, m := range sorted {
		if seen[m.Candidate] {
			continue
		}
		seen[m.Candidate] = true
		best = append(best, m)
	}
	return best
}

// ResolvedIdentifiers maps each canonical name to the identifier of its best
// accepted match. Matches without an identifier take no part.
func ResolvedIdentifiers(matches []domain.MatchResult) map[string]string {
	usable := make([]domain.MatchResult, 0, len(matches))
	for _, m := range matches {
		if m.Accepted && !domain.IsBlank(m.Identifier) {
			usable = append(usable, m)
		}
	}

	resolved := make(map[string]string)
	for _, m := range SelectBest(usable) {
		resolved[m.Candidate] = strings.TrimSpace(m.Identifier)
	}
	return resolved
}

// Reconcile fills blank cells of idColumn from resolved, looking rows up by
// the key of their nameColumn value. The identifier column is created when
// missing. Non-blank identifiers are never modified.
func (r *Reconciler) Reconcile(table *domain.Table, idColumn, nameColumn string, resolved map[string]string) (ReconcileStats, error) {
	var stats ReconcileStats

	nameIdx := table.ColumnIndex(nameColumn)
	if nameIdx < 0 {
		return stats, fmt.Errorf("%w: %q in sheet %q", domain.ErrColumnNotFound, nameColumn, table.Name)
	}
	idIdx := table.EnsureColumn(idColumn)

	for row := range table.Rows {
		if !domain.IsBlank(table.Cell(row, idIdx)) {
			stats.Kept++
			continue
		}

		id, ok := resolved[r.key(table.Cell(row, nameIdx))]
		if !ok || domain.IsBlank(id) {
			stats.Unmatched++
			continue
		}

		table.SetCell(row, idIdx, id)
		stats.Filled++

		if r.enableDebugLogging {
			log.Printf("[RECONCILE] Row %d %q → %s", row+2, table.Cell(row, nameIdx), id)
		}
	}

	return stats, nil
}
