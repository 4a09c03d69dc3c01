package usecase

import (
	"context"
	"fmt"
	"log"
	"sort"
	"strings"

	"github.com/codmatch/backend/internal/domain"
)

// DuplicateGroup lists the rows sharing one identifier
type DuplicateGroup struct {
	Identifier string `json:"identifier"`
	Rows       []int  `json:"rows"` // zero-based data row indexes
}

// DuplicateReport summarizes a quarantine pass
type DuplicateReport struct {
	Groups  []DuplicateGroup `json:"groups"`
	Cleared int              `json:"cleared"`
}

// FindDuplicateIDs groups rows by trimmed identifier and returns the groups
// with more than one row, in order of first appearance. Blank identifiers
// are ignored.
func FindDuplicateIDs(table *domain.Table, idColumn string) ([]DuplicateGroup, error) {
	idIdx := table.ColumnIndex(idColumn)
	if idIdx < 0 {
		return nil, fmt.Errorf("%w: %q in sheet %q", domain.ErrColumnNotFound, idColumn, table.Name)
	}

	rowsByID := make(map[string][]int)
	var order []string
	for row := range table.Rows {
		id := strings.TrimSpace(table.Cell(row, idIdx))
		if id == "" {
			continue
		}
		if _, ok := rowsByID[id]; !ok {
			order = append(order, id)
		}
		rowsByID[id] = append(rowsByID[id], row)
	}

	var groups []DuplicateGroup
	for _, id := range order {
		if rows := rowsByID[id]; len(rows) > 1 {
			groups = append(groups, DuplicateGroup{Identifier: id, Rows: rows})
		}
	}
	return groups, nil
}

// QuarantineDuplicateIDs blanks the identifier on every row of every
// duplicate group. No rows are removed.
func QuarantineDuplicateIDs(table *domain.Table, idColumn string) (DuplicateReport, error) {
	groups, err := FindDuplicateIDs(table, idColumn)
	if err != nil {
		return DuplicateReport{}, err
	}

	idIdx := table.ColumnIndex(idColumn)
	report := DuplicateReport{Groups: groups}
	for _, g := range groups {
		for _, row := range g.Rows {
			table.SetCell(row, idIdx, "")
			report.Cleared++
		}
	}
	return report, nil
}

// Identifiers returns the duplicated identifiers, sorted
func (r DuplicateReport) Identifiers() []string {
	ids := make([]string, 0, len(r.Groups))
	for _, g := range r.Groups {
		ids = append(ids, g.Identifier)
	}
	sort.Strings(ids)
	return ids
}

// QuarantineCatalog loads the catalog, blanks every duplicated identifier and
// writes the result to output.
func QuarantineCatalog(ctx context.Context, workbooks Workbooks, recorder domain.RunRecorder, source CatalogSource, output string) (report DuplicateReport, err error) {
	run := startRun(ctx, recorder, "duplicates", source.Path)
	var summary domain.RunSummary
	defer func() { run.finish(ctx, summary, err) }()

	catalog, err := source.Load(workbooks)
	if err != nil {
		return DuplicateReport{}, err
	}
	report, err = QuarantineDuplicateIDs(catalog.Table, catalog.IDColumn)
	if err != nil {
		return DuplicateReport{}, err
	}
	for _, g := range report.Groups {
		log.Printf("[DUPLICATES] %s shared by %d rows", g.Identifier, len(g.Rows))
	}

	if err := source.writeCatalog(workbooks, output, catalog); err != nil {
		return DuplicateReport{}, fmt.Errorf("write quarantined catalog: %w", err)
	}
	log.Printf("[DUPLICATES] %d identifiers cleared on %d rows; saved to %s", len(report.Groups), report.Cleared, output)

	summary = domain.RunSummary{Output: output, Records: catalog.Table.Len(), Accepted: len(report.Groups), Filled: report.Cleared}
	return report, nil
}
