package usecase

import (
	"context"
	"errors"
	"fmt"
	"log"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/codmatch/backend/internal/domain"
	"github.com/google/uuid"
)

// Workbooks reads and writes spreadsheet files
type Workbooks interface {
	domain.WorkbookReader
	domain.WorkbookWriter
}

// Report columns of the invoice matches workbook
var invoiceReportColumns = []string{
	"Arquivo", "Linha", "Descrição NF", "Descrição Limpa", "Cod Natura",
	"Produto Match", "Similaridade", "Quantidade", "Valor Total", "COD",
}

// InvoiceConfig holds configuration for the invoice import
type InvoiceConfig struct {
	Catalog            CatalogSource
	Dir                string
	Pattern            string
	DescriptionColumn  string
	Threshold          *float64 // nil uses DefaultThreshold
	CodePrefix         string
	Client             string
	MovementType       string
	Notes              string
	Status             string
	PaymentMethod      string
	MovementSheet      string
	ReportPath         string
	OutputPath         string
	EnableDebugLogging bool
}

// InvoiceResult summarizes an invoice import run
type InvoiceResult struct {
	Files      []string
	Lines      int
	Matches    []domain.MatchResult // accepted lines only
	Movements  []domain.Movement
	Reconcile  ReconcileStats
	ReportPath string
	OutputPath string
}

// InvoicePipeline imports supplier invoices: every line is matched to the
// catalog, accepted lines become stock entries and resolved codes are
// written into blank catalog identifiers.
type InvoicePipeline struct {
	workbooks   Workbooks
	normalizers *Normalizers
	recorder    domain.RunRecorder
	config      InvoiceConfig
	glob        func(pattern string) ([]string, error)
	now         func() time.Time
	newSaleID   func() string
}

// NewInvoicePipeline creates an invoice pipeline. recorder may be nil.
func NewInvoicePipeline(workbooks Workbooks, normalizers *Normalizers, recorder domain.RunRecorder, config InvoiceConfig) *InvoicePipeline {
	if config.Pattern == "" {
		config.Pattern = "nf*.xlsx"
	}
	if config.DescriptionColumn == "" {
		config.DescriptionColumn = "DESCRIÇÃO"
	}
	if config.MovementSheet == "" {
		config.MovementSheet = "Movimento"
	}

	return &InvoicePipeline{
		workbooks:   workbooks,
		normalizers: normalizers,
		recorder:    recorder,
		config:      config,
		glob:        filepath.Glob,
		now:         time.Now,
		newSaleID:   NewSaleID,
	}
}

// NewSaleID returns a short random movement id such as "E-27B7FB"
func NewSaleID() string {
	return "E-" + strings.ToUpper(uuid.NewString()[:6])
}

// invoiceLine is one parsed invoice row
type invoiceLine struct {
	file        string
	row         int
	description string
	quantity    string
	value       string
}

// Run executes the import. The catalog workbook is never overwritten.
func (p *InvoicePipeline) Run(ctx context.Context) (result *InvoiceResult, err error) {
	cfg := p.config
	if samePath(cfg.OutputPath, cfg.Catalog.Path) {
		return nil, fmt.Errorf("%w: output %s would overwrite the catalog", domain.ErrInvalidRequest, cfg.OutputPath)
	}

	run := startRun(ctx, p.recorder, "invoice", filepath.Join(cfg.Dir, cfg.Pattern))
	var summary domain.RunSummary
	defer func() { run.finish(ctx, summary, err) }()

	catalog, err := cfg.Catalog.Load(p.workbooks)
	if err != nil {
		return nil, err
	}
	movements, err := p.loadMovements()
	if err != nil {
		return nil, err
	}

	lines, files, err := p.readInvoices()
	if err != nil {
		return nil, err
	}
	log.Printf("[INVOICE] %d lines read from %d files", len(lines), len(files))

	matcher := NewMatchingService(MatchConfig{
		Scorer:             TokenSortScorer{},
		Threshold:          cfg.Threshold,
		EnableDebugLogging: cfg.EnableDebugLogging,
	})
	candidates := CandidateNames(catalog, p.normalizers.Catalog)

	result = &InvoiceResult{Files: files, Lines: len(lines)}
	report := domain.NewTable("Relacionados", invoiceReportColumns)
	runDate := p.now().Format("02/01/2006")

	for _, line := range lines {
		cleaned := p.normalizers.Invoice.Normalize(line.description)
		if cleaned == "" {
			continue
		}

		match, matchErr := matcher.FindBestMatch(ctx, cleaned, candidates)
		if matchErr != nil && !errors.Is(matchErr, domain.ErrLowConfidence) {
			return nil, matchErr
		}
		if match == nil || !match.Accepted {
			if cfg.EnableDebugLogging && match != nil {
				log.Printf("[INVOICE] %s:%d %q below threshold (%d)", line.file, line.row, cleaned, match.Score)
			}
			continue
		}

		code := ExtractInvoiceCode(line.description)
		match.Record = domain.NoisyRecord{
			Name:      line.description,
			PartialID: code,
			Source:    line.file,
			Page:      strconv.Itoa(line.row),
			Quantity:  line.quantity,
			Value:     line.value,
		}
		if code != "" {
			match.Identifier = cfg.CodePrefix + code
		}
		result.Matches = append(result.Matches, *match)
		run.match(ctx, *match)

		movement := domain.Movement{
			Date:          runDate,
			ProductID:     match.Identifier,
			Product:       TitleCase(match.Candidate),
			Client:        cfg.Client,
			Type:          cfg.MovementType,
			Quantity:      line.quantity,
			CostTotal:     line.value,
			Notes:         cfg.Notes,
			Status:        cfg.Status,
			PaymentMethod: cfg.PaymentMethod,
			SaleID:        p.newSaleID(),
		}
		result.Movements = append(result.Movements, movement)
		movements.AppendRow(movement.Values())

		report.AppendRow(map[string]string{
			"Arquivo":         line.file,
			"Linha":           strconv.Itoa(line.row),
			"Descrição NF":    line.description,
			"Descrição Limpa": cleaned,
			"Cod Natura":      code,
			"Produto Match":   match.Candidate,
			"Similaridade":    strconv.Itoa(match.Score),
			"Quantidade":      line.quantity,
			"Valor Total":     line.value,
			"COD":             match.Identifier,
		})
	}
	log.Printf("[INVOICE] %d of %d lines matched", len(result.Matches), len(lines))

	reconciler := NewReconciler(p.normalizers.Catalog.Normalize, cfg.EnableDebugLogging)
	result.Reconcile, err = reconciler.Reconcile(catalog.Table, catalog.IDColumn, catalog.NameColumn, ResolvedIdentifiers(result.Matches))
	if err != nil {
		return nil, err
	}
	log.Printf("[INVOICE] Codes filled: %d, kept: %d, unmatched: %d",
		result.Reconcile.Filled, result.Reconcile.Kept, result.Reconcile.Unmatched)

	if cfg.ReportPath != "" {
		if err := p.workbooks.WriteWorkbook(cfg.ReportPath, report); err != nil {
			return nil, fmt.Errorf("write invoice report: %w", err)
		}
		result.ReportPath = cfg.ReportPath
	}

	if err := cfg.Catalog.writeCatalog(p.workbooks, cfg.OutputPath, catalog, movements); err != nil {
		return nil, fmt.Errorf("write updated workbook: %w", err)
	}
	result.OutputPath = cfg.OutputPath
	log.Printf("[INVOICE] Saved %s (%d new movements)", cfg.OutputPath, len(result.Movements))

	summary = domain.RunSummary{
		Output:   cfg.OutputPath,
		Records:  len(lines),
		Accepted: len(result.Matches),
		Filled:   result.Reconcile.Filled,
	}
	return result, nil
}

// loadMovements reads the existing movement sheet, or starts an empty one
func (p *InvoicePipeline) loadMovements() (*domain.Table, error) {
	sheets, err := p.workbooks.SheetNames(p.config.Catalog.Path)
	if err != nil {
		return nil, err
	}
	for _, s := range sheets {
		if s == p.config.MovementSheet {
			return p.workbooks.ReadSheet(p.config.Catalog.Path, s)
		}
	}
	return domain.NewTable(p.config.MovementSheet, domain.MovementColumns), nil
}

// readInvoices reads the first sheet of every invoice file. Unreadable files
// are logged and skipped; a file missing a required column aborts the run.
func (p *InvoicePipeline) readInvoices() ([]invoiceLine, []string, error) {
	pattern := filepath.Join(p.config.Dir, p.config.Pattern)
	paths, err := p.glob(pattern)
	if err != nil {
		return nil, nil, fmt.Errorf("glob %s: %w", pattern, err)
	}
	if len(paths) == 0 {
		return nil, nil, fmt.Errorf("%w: %s", domain.ErrNoInputFiles, pattern)
	}
	sort.Strings(paths)

	var lines []invoiceLine
	var files []string
	for _, path := range paths {
		table, err := readFirstSheet(p.workbooks, path)
		if err != nil {
			log.Printf("[INVOICE] Skipping %s: %v", filepath.Base(path), err)
			continue
		}
		log.Printf("[INVOICE] Reading %s", filepath.Base(path))

		parsed, err := p.parseInvoice(filepath.Base(path), table)
		if err != nil {
			return nil, nil, err
		}
		lines = append(lines, parsed...)
		files = append(files, path)
	}
	if len(files) == 0 {
		return nil, nil, fmt.Errorf("%w: no readable file matches %s", domain.ErrNoInputFiles, pattern)
	}
	return lines, files, nil
}

func (p *InvoicePipeline) parseInvoice(file string, table *domain.Table) ([]invoiceLine, error) {
	descCol := table.FindColumn(p.config.DescriptionColumn, foldDiacritics(p.config.DescriptionColumn))
	if descCol == "" {
		return nil, fmt.Errorf("%w: %q in %s", domain.ErrColumnNotFound, p.config.DescriptionColumn, file)
	}
	qtyCol := firstHeaderContaining(table, "QUANT", "QTD")
	valueCol := firstHeaderContaining(table, "VALOR TOTAL", "V. TOTAL", "TOTAL")
	if qtyCol < 0 || valueCol < 0 {
		return nil, fmt.Errorf("%w: quantity or value column in %s", domain.ErrColumnNotFound, file)
	}
	descIdx := table.ColumnIndex(descCol)

	lines := make([]invoiceLine, 0, table.Len())
	for row := range table.Rows {
		desc := strings.TrimSpace(table.Cell(row, descIdx))
		if desc == "" {
			continue
		}
		lines = append(lines, invoiceLine{
			file:        file,
			row:         row + 2,
			description: desc,
			quantity:    strings.TrimSpace(table.Cell(row, qtyCol)),
			value:       strings.TrimSpace(table.Cell(row, valueCol)),
		})
	}
	return lines, nil
}

// firstHeaderContaining returns the index of the first header, in sheet
// order, containing any of the fragments (case-insensitive), or -1.
func firstHeaderContaining(table *domain.Table, fragments ...string) int {
	for i, h := range table.Header {
		upper := strings.ToUpper(h)
		for _, f := range fragments {
			if strings.Contains(upper, f) {
				return i
			}
		}
	}
	return -1
}

func readFirstSheet(reader domain.WorkbookReader, path string) (*domain.Table, error) {
	sheets, err := reader.SheetNames(path)
	if err != nil {
		return nil, err
	}
	if len(sheets) == 0 {
		return nil, fmt.Errorf("%w: %s has no sheets", domain.ErrSheetNotFound, path)
	}
	return reader.ReadSheet(path, sheets[0])
}

// samePath reports whether a and b name the same file
func samePath(a, b string) bool {
	if a == "" || b == "" {
		return false
	}
	absA, errA := filepath.Abs(a)
	absB, errB := filepath.Abs(b)
	if errA != nil || errB != nil {
		return filepath.Clean(a) == filepath.Clean(b)
	}
	return absA == absB
}
