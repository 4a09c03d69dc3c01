package usecase

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strconv"
	"strings"

	"github.com/codmatch/backend/internal/domain"
)

// Column names of the magazine match report
const (
	ReportMagazineCode    = "Código da Revista"
	ReportMagazineProduct = "Produto na Revista"
	ReportMagazinePage    = "Página da Revista"
	ReportBaseProduct     = "Produto na Base (Match)"
	ReportBaseCode        = "Código na Base (COD)"
	ReportBasePrice       = "Preço Venda na Base"
	ReportScore           = "Score de Similaridade (%)"
)

// MagazineReportColumns is the column order of the magazine match report
var MagazineReportColumns = []string{
	ReportMagazineCode, ReportMagazineProduct, ReportMagazinePage, ReportBaseProduct,
	ReportBaseCode, ReportBasePrice, ReportScore,
}

// Delimited reads and writes delimiter-separated text files
type Delimited interface {
	domain.DelimitedReader
	domain.DelimitedWriter
}

// DefaultMagazineThreshold is the inclusive sequence score cutoff
const DefaultMagazineThreshold = 75.0

// MagazineConfig holds configuration for the magazine pipeline
type MagazineConfig struct {
	Catalog            CatalogSource
	CSVPath            string
	Delimiter          rune
	Threshold          *float64 // nil uses DefaultMagazineThreshold
	ReportPath         string
	ReportDelimiter    rune
	OutputPath         string
	EnableDebugLogging bool
}

// MagazineMatchResult summarizes a magazine match run
type MagazineMatchResult struct {
	Records    int
	Matches    []domain.MatchResult
	ReportPath string
}

// MagazineMergeResult summarizes a report merge
type MagazineMergeResult struct {
	ReportRows int
	Reconcile  ReconcileStats
	OutputPath string
}

// MagazinePipeline matches a magazine product listing against the catalog
// and merges the magazine codes back into blank catalog identifiers.
type MagazinePipeline struct {
	workbooks   Workbooks
	delimited   Delimited
	normalizers *Normalizers
	recorder    domain.RunRecorder
	config      MagazineConfig
}

// NewMagazinePipeline creates a magazine pipeline. recorder may be nil.
func NewMagazinePipeline(workbooks Workbooks, delimited Delimited, normalizers *Normalizers, recorder domain.RunRecorder, config MagazineConfig) *MagazinePipeline {
	if config.Threshold == nil {
		config.Threshold = ThresholdOf(DefaultMagazineThreshold)
	}
	if config.Delimiter == 0 {
		config.Delimiter = ';'
	}
	if config.ReportDelimiter == 0 {
		config.ReportDelimiter = ','
	}
	return &MagazinePipeline{
		workbooks:   workbooks,
		delimited:   delimited,
		normalizers: normalizers,
		recorder:    recorder,
		config:      config,
	}
}

// Match scores every magazine product against the catalog with the sequence
// scorer and writes the accepted matches to the report file.
func (p *MagazinePipeline) Match(ctx context.Context) (result *MagazineMatchResult, err error) {
	cfg := p.config
	if samePath(cfg.ReportPath, cfg.CSVPath) || samePath(cfg.ReportPath, cfg.Catalog.Path) {
		return nil, fmt.Errorf("%w: report %s would overwrite an input file", domain.ErrInvalidRequest, cfg.ReportPath)
	}

	run := startRun(ctx, p.recorder, "magazine", cfg.CSVPath)
	var summary domain.RunSummary
	defer func() { run.finish(ctx, summary, err) }()

	records, err := p.readMagazine()
	if err != nil {
		return nil, err
	}
	catalog, err := cfg.Catalog.Load(p.workbooks)
	if err != nil {
		return nil, err
	}

	// Entries whose name cleans to nothing take no part
	var candidates []string
	var entries []int
	for i, e := range catalog.Entries {
		if cleaned := p.normalizers.Magazine.Normalize(e.Name); cleaned != "" {
			candidates = append(candidates, cleaned)
			entries = append(entries, i)
		}
	}

	matcher := NewMatchingService(MatchConfig{
		Scorer:             SequenceScorer{},
		Threshold:          cfg.Threshold,
		InclusiveThreshold: true,
		EnableDebugLogging: cfg.EnableDebugLogging,
	})

	result = &MagazineMatchResult{Records: len(records)}
	report := domain.NewTable("relatorio", MagazineReportColumns)

	for _, record := range records {
		cleaned := p.normalizers.Magazine.Normalize(record.Name)
		if cleaned == "" {
			continue
		}
		match, matchErr := matcher.FindBestMatch(ctx, cleaned, candidates)
		if matchErr != nil && !errors.Is(matchErr, domain.ErrLowConfidence) {
			return nil, matchErr
		}
		if match == nil || !match.Accepted {
			continue
		}

		entry := catalog.Entries[entries[match.CandidateIndex]]
		match.Record = record
		match.Candidate = entry.Name
		match.Identifier = record.PartialID
		result.Matches = append(result.Matches, *match)
		run.match(ctx, *match)

		report.AppendRow(map[string]string{
			ReportMagazineCode:    record.PartialID,
			ReportMagazineProduct: record.Name,
			ReportMagazinePage:    record.Page,
			ReportBaseProduct:     entry.Name,
			ReportBaseCode:        entry.ID,
			ReportBasePrice:       entry.SalePrice,
			ReportScore:           strconv.Itoa(match.Score),
		})
	}

	if err := p.delimited.WriteDelimited(cfg.ReportPath, report, cfg.ReportDelimiter); err != nil {
		return nil, fmt.Errorf("write magazine report: %w", err)
	}
	result.ReportPath = cfg.ReportPath
	log.Printf("[MAGAZINE] %d of %d magazine products matched; report saved to %s",
		len(result.Matches), len(records), cfg.ReportPath)

	summary = domain.RunSummary{Output: cfg.ReportPath, Records: len(records), Accepted: len(result.Matches)}
	return result, nil
}

// readMagazine loads the magazine listing. Rows without a product name are
// skipped.
func (p *MagazinePipeline) readMagazine() ([]domain.NoisyRecord, error) {
	table, err := p.delimited.ReadDelimited(p.config.CSVPath, p.config.Delimiter)
	if err != nil {
		return nil, fmt.Errorf("read magazine listing: %w", err)
	}
	nameIdx := table.ColumnIndex("Produto")
	if nameIdx < 0 {
		return nil, fmt.Errorf("%w: %q in %s", domain.ErrColumnNotFound, "Produto", p.config.CSVPath)
	}
	codeIdx := optionalColumn(table, "Código", "Codigo")
	pageIdx := optionalColumn(table, "Página", "Pagina")

	records := make([]domain.NoisyRecord, 0, table.Len())
	for row := range table.Rows {
		name := strings.TrimSpace(table.Cell(row, nameIdx))
		if name == "" {
			continue
		}
		records = append(records, domain.NoisyRecord{
			Name:      name,
			PartialID: strings.TrimSpace(table.Cell(row, codeIdx)),
			Page:      strings.TrimSpace(table.Cell(row, pageIdx)),
			Source:    table.Name,
		})
	}
	return records, nil
}

// Merge reads the match report and fills blank catalog identifiers with the
// magazine code of the best report row for each catalog product.
func (p *MagazinePipeline) Merge(ctx context.Context) (result *MagazineMergeResult, err error) {
	cfg := p.config
	run := startRun(ctx, p.recorder, "magazine-merge", cfg.ReportPath)
	var summary domain.RunSummary
	defer func() { run.finish(ctx, summary, err) }()

	report, err := p.delimited.ReadDelimited(cfg.ReportPath, cfg.ReportDelimiter)
	if err != nil {
		return nil, fmt.Errorf("read magazine report: %w", err)
	}
	matches, err := reportMatches(report)
	if err != nil {
		return nil, err
	}

	catalog, err := cfg.Catalog.Load(p.workbooks)
	if err != nil {
		return nil, err
	}

	reconciler := NewReconciler(nil, cfg.EnableDebugLogging)
	stats, err := reconciler.Reconcile(catalog.Table, catalog.IDColumn, catalog.NameColumn, ResolvedIdentifiers(matches))
	if err != nil {
		return nil, err
	}

	if err := cfg.Catalog.writeCatalog(p.workbooks, cfg.OutputPath, catalog); err != nil {
		return nil, fmt.Errorf("write merged catalog: %w", err)
	}
	log.Printf("[MAGAZINE] Merged %d report rows: filled %d, kept %d, unmatched %d; saved to %s",
		len(matches), stats.Filled, stats.Kept, stats.Unmatched, cfg.OutputPath)

	summary = domain.RunSummary{Output: cfg.OutputPath, Records: len(matches), Accepted: len(matches), Filled: stats.Filled}
	return &MagazineMergeResult{ReportRows: len(matches), Reconcile: stats, OutputPath: cfg.OutputPath}, nil
}

// reportMatches turns report rows back into accepted matches keyed by the
// trimmed catalog product name
func reportMatches(report *domain.Table) ([]domain.MatchResult, error) {
	codeIdx := report.ColumnIndex(ReportMagazineCode)
	baseIdx := report.ColumnIndex(ReportBaseProduct)
	if codeIdx < 0 || baseIdx < 0 {
		return nil, fmt.Errorf("%w: report needs %q and %q", domain.ErrColumnNotFound, ReportMagazineCode, ReportBaseProduct)
	}
	scoreIdx := report.ColumnIndex(ReportScore)

	matches := make([]domain.MatchResult, 0, report.Len())
	for row := range report.Rows {
		base := strings.TrimSpace(report.Cell(row, baseIdx))
		if base == "" {
			continue
		}
		score, _ := strconv.Atoi(strings.TrimSpace(report.Cell(row, scoreIdx)))
		matches = append(matches, domain.MatchResult{
			Record:     domain.NoisyRecord{Name: report.Value(row, ReportMagazineProduct)},
			Candidate:  base,
			Score:      score,
			RawScore:   float64(score),
			Accepted:   true,
			Identifier: strings.TrimSpace(report.Cell(row, codeIdx)),
		})
	}
	return matches, nil
}

// optionalColumn returns the index of the first alias present, or -1
func optionalColumn(table *domain.Table, aliases ...string) int {
	name := table.FindColumn(aliases...)
	if name == "" {
		return -1
	}
	return table.ColumnIndex(name)
}
