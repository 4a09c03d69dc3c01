package usecase

import (
	"context"
	"fmt"
	"log"
	"regexp"
	"strings"

	"github.com/codmatch/backend/internal/domain"
)

// Columns added to the sales sheet
const (
	SalesSerialColumn = "Serial Produto"
	SalesSKUColumn    = "Cod Produto"
)

var (
	separatorSpacesPattern = regexp.MustCompile(`\s*\|\s*`)
	repeatedSeparators     = regexp.MustCompile(`\|+`)
)

// CleanObservation standardizes an observation cell: slashes become "|",
// spaces around separators and repeated separators are removed, and the
// result is trimmed and uppercased. Empty input stays empty.
func CleanObservation(s string) string {
	s = strings.NewReplacer("/", "|", `\`, "|").Replace(s)
	s = separatorSpacesPattern.ReplaceAllString(s, "|")
	s = repeatedSeparators.ReplaceAllString(s, "|")
	return strings.ToUpper(strings.TrimSpace(s))
}

// DescriptiveSKU builds "COL-CATEGO-NOME-VOLUME" from the first 3 letters of
// the collection, 6 of the category and 4 of the first name word, all
// uppercase with spaces removed.
func DescriptiveSKU(collection, category, name, volume string) string {
	nameWord := ""
	if words := strings.Fields(name); len(words) > 0 {
		nameWord = words[0]
	}
	return strings.Join([]string{
		truncateRunes(compactUpper(collection), 3),
		truncateRunes(compactUpper(category), 6),
		truncateRunes(strings.ToUpper(nameWord), 4),
		compactUpper(volume),
	}, "-")
}

// Serial returns prefix followed by n zero-padded to 5 digits
func Serial(prefix string, n int) string {
	return fmt.Sprintf("%s%05d", prefix, n)
}

func compactUpper(s string) string {
	return strings.ReplaceAll(strings.ToUpper(strings.TrimSpace(s)), " ", "")
}

func truncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) > n {
		r = r[:n]
	}
	return string(r)
}

// SalesConfig holds configuration for the sales sheet tidy-up
type SalesConfig struct {
	Path               string
	Sheet              string
	ObservationsColumn string
	SerialPrefix       string
	OutputPath         string
}

// SalesResult summarizes a tidy-up run
type SalesResult struct {
	Rows       int
	Dropped    int
	OutputPath string
}

// SalesTidier cleans the sales sheet and numbers its products
type SalesTidier struct {
	workbooks Workbooks
	recorder  domain.RunRecorder
	config    SalesConfig
}

// NewSalesTidier creates a tidier. recorder may be nil.
func NewSalesTidier(workbooks Workbooks, recorder domain.RunRecorder, config SalesConfig) *SalesTidier {
	if config.ObservationsColumn == "" {
		config.ObservationsColumn = "Observações"
	}
	if config.SerialPrefix == "" {
		config.SerialPrefix = "NAT-"
	}
	return &SalesTidier{workbooks: workbooks, recorder: recorder, config: config}
}

// Run cleans observations, drops rows without a product, adds the serial and
// SKU columns first and writes OutputPath.
func (s *SalesTidier) Run(ctx context.Context) (result *SalesResult, err error) {
	cfg := s.config
	if samePath(cfg.OutputPath, cfg.Path) {
		return nil, fmt.Errorf("%w: output %s would overwrite the sales workbook", domain.ErrInvalidRequest, cfg.OutputPath)
	}

	run := startRun(ctx, s.recorder, "sales", cfg.Path)
	var summary domain.RunSummary
	defer func() { run.finish(ctx, summary, err) }()

	sheets, err := s.workbooks.SheetNames(cfg.Path)
	if err != nil {
		return nil, err
	}
	sheet := ChooseSheet(sheets, cfg.Sheet)
	if sheet == "" {
		return nil, fmt.Errorf("%w: %s has no sheets", domain.ErrSheetNotFound, cfg.Path)
	}
	table, err := s.workbooks.ReadSheet(cfg.Path, sheet)
	if err != nil {
		return nil, err
	}

	obsIdx := table.ColumnIndex(cfg.ObservationsColumn)
	productIdx := table.ColumnIndex("Produto")
	if obsIdx < 0 || productIdx < 0 {
		return nil, fmt.Errorf("%w: %q and %q are required in %q", domain.ErrColumnNotFound, cfg.ObservationsColumn, "Produto", sheet)
	}
	collectionIdx := optionalColumn(table, "Coleção", "Colecao")
	categoryIdx := optionalColumn(table, "Categoria")
	nameIdx := optionalColumn(table, "Nome")
	volumeIdx := optionalColumn(table, "Volume")

	kept := make([][]string, 0, table.Len())
	for row := range table.Rows {
		if domain.IsBlank(table.Cell(row, productIdx)) {
			continue
		}
		table.SetCell(row, obsIdx, CleanObservation(table.Cell(row, obsIdx)))
		kept = append(kept, table.Rows[row])
	}
	dropped := table.Len() - len(kept)
	table.Rows = kept

	serialIdx := table.EnsureColumn(SalesSerialColumn)
	skuIdx := table.EnsureColumn(SalesSKUColumn)
	for row := range table.Rows {
		table.SetCell(row, serialIdx, Serial(cfg.SerialPrefix, row+1))
		table.SetCell(row, skuIdx, DescriptiveSKU(
			table.Cell(row, collectionIdx),
			table.Cell(row, categoryIdx),
			table.Cell(row, nameIdx),
			table.Cell(row, volumeIdx),
		))
	}
	table.MoveColumnsFirst(SalesSerialColumn, SalesSKUColumn)

	if err := s.workbooks.WriteWorkbook(cfg.OutputPath, table); err != nil {
		return nil, fmt.Errorf("write sales workbook: %w", err)
	}
	log.Printf("[SALES] %d rows numbered, %d without product dropped; saved to %s", table.Len(), dropped, cfg.OutputPath)

	summary = domain.RunSummary{Output: cfg.OutputPath, Records: table.Len() + dropped, Accepted: table.Len()}
	return &SalesResult{Rows: table.Len(), Dropped: dropped, OutputPath: cfg.OutputPath}, nil
}
