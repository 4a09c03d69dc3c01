package usecase

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/codmatch/backend/internal/domain"
)

// MergeConfig holds configuration for the workbook merge
type MergeConfig struct {
	Catalog            CatalogSource
	UpdatedPath        string
	UpdatedSheet       string
	OutputPath         string
	EnableDebugLogging bool
}

// MergeResult summarizes a workbook merge
type MergeResult struct {
	Known      int // product names with a code in the updated workbook
	Reconcile  ReconcileStats
	OutputPath string
}

// WorkbookMerger fills blank catalog codes from another workbook by exact
// (trimmed) product name.
type WorkbookMerger struct {
	workbooks Workbooks
	recorder  domain.RunRecorder
	config    MergeConfig
}

// NewWorkbookMerger creates a merger. recorder may be nil.
func NewWorkbookMerger(workbooks Workbooks, recorder domain.RunRecorder, config MergeConfig) *WorkbookMerger {
	return &WorkbookMerger{workbooks: workbooks, recorder: recorder, config: config}
}

// Run merges the updated workbook into the catalog and writes OutputPath
func (m *WorkbookMerger) Run(ctx context.Context) (result *MergeResult, err error) {
	cfg := m.config
	run := startRun(ctx, m.recorder, "merge", cfg.UpdatedPath)
	var summary domain.RunSummary
	defer func() { run.finish(ctx, summary, err) }()

	catalog, err := cfg.Catalog.Load(m.workbooks)
	if err != nil {
		return nil, err
	}
	updated, err := CatalogSource{Path: cfg.UpdatedPath, Sheet: cfg.UpdatedSheet, Columns: cfg.Catalog.Columns}.Load(m.workbooks)
	if err != nil {
		return nil, fmt.Errorf("load updated workbook: %w", err)
	}

	codes := CodesByName(updated)
	stats, err := NewReconciler(nil, cfg.EnableDebugLogging).Reconcile(catalog.Table, catalog.IDColumn, catalog.NameColumn, codes)
	if err != nil {
		return nil, err
	}

	if err := cfg.Catalog.writeCatalog(m.workbooks, cfg.OutputPath, catalog); err != nil {
		return nil, fmt.Errorf("write merged catalog: %w", err)
	}
	log.Printf("[MERGE] %d known codes: filled %d, kept %d, unmatched %d; saved to %s",
		len(codes), stats.Filled, stats.Kept, stats.Unmatched, cfg.OutputPath)

	summary = domain.RunSummary{Output: cfg.OutputPath, Records: catalog.Table.Len(), Accepted: len(codes), Filled: stats.Filled}
	return &MergeResult{Known: len(codes), Reconcile: stats, OutputPath: cfg.OutputPath}, nil
}

// CodesByName maps trimmed product names to trimmed codes. When a name
// repeats, the last non-blank code wins; blank codes are ignored.
func CodesByName(catalog *domain.Catalog) map[string]string {
	codes := make(map[string]string, len(catalog.Entries))
	for _, e := range catalog.Entries {
		name, code := strings.TrimSpace(e.Name), strings.TrimSpace(e.ID)
		if name == "" || code == "" {
			continue
		}
		codes[name] = code
	}
	return codes
}
