package usecase

import (
	"fmt"
	"log"

	"github.com/codmatch/backend/internal/domain"
)

// CatalogColumns names the catalog sheet columns. Each field lists the
// header tried first; known spelling variants are tried after it.
type CatalogColumns struct {
	ID         string
	Name       string
	Brand      string
	Collection string
	Category   string
	Unit       string
	Volume     string
	CostPrice  string
	SalePrice  string
}

// DefaultCatalogColumns returns the store's product sheet layout
func DefaultCatalogColumns() CatalogColumns {
	return CatalogColumns{
		ID:         "COD",
		Name:       "Produto",
		Brand:      "Marca",
		Collection: "Coleção",
		Category:   "Categoria",
		Unit:       "Unidade",
		Volume:     "Volume",
		CostPrice:  "Preço Custo",
		SalePrice:  "Preço Venda",
	}
}

var columnVariants = map[string][]string{
	"Coleção":     {"Colecao", "Coleçao"},
	"Preço Custo": {"Preco Custo"},
	"Preço Venda": {"Preco Venda"},
}

func findColumn(table *domain.Table, name string) string {
	if name == "" {
		return ""
	}
	return table.FindColumn(append([]string{name}, columnVariants[name]...)...)
}

// NewCatalog builds typed entries over a product table. The name column is
// required; a missing identifier column is added empty.
func NewCatalog(table *domain.Table, columns CatalogColumns) (*domain.Catalog, error) {
	nameCol := findColumn(table, columns.Name)
	if nameCol == "" {
		return nil, fmt.Errorf("%w: %q in sheet %q", domain.ErrColumnNotFound, columns.Name, table.Name)
	}
	idCol := findColumn(table, columns.ID)
	if idCol == "" {
		table.EnsureColumn(columns.ID)
		idCol = columns.ID
	}

	brand := findColumn(table, columns.Brand)
	collection := findColumn(table, columns.Collection)
	category := findColumn(table, columns.Category)
	unit := findColumn(table, columns.Unit)
	volume := findColumn(table, columns.Volume)
	cost := findColumn(table, columns.CostPrice)
	sale := findColumn(table, columns.SalePrice)

	value := func(row int, column string) string {
		if column == "" {
			return ""
		}
		return table.Value(row, column)
	}

	entries := make([]domain.CatalogEntry, 0, table.Len())
	for row := range table.Rows {
		entries = append(entries, domain.CatalogEntry{
			Row:        row,
			ID:         value(row, idCol),
			Name:       value(row, nameCol),
			Brand:      value(row, brand),
			Collection: value(row, collection),
			Category:   value(row, category),
			Unit:       value(row, unit),
			Volume:     value(row, volume),
			CostPrice:  value(row, cost),
			SalePrice:  value(row, sale),
		})
	}

	return &domain.Catalog{
		Table:      table,
		Entries:    entries,
		IDColumn:   idCol,
		NameColumn: nameCol,
	}, nil
}

// CatalogLoader reads the product catalog from a workbook
type CatalogLoader struct {
	reader  domain.WorkbookReader
	sheet   string
	columns CatalogColumns
}

// NewCatalogLoader creates a loader. An empty sheet name reads the first sheet.
func NewCatalogLoader(reader domain.WorkbookReader, sheet string, columns CatalogColumns) *CatalogLoader {
	return &CatalogLoader{reader: reader, sheet: sheet, columns: columns}
}

// Load reads the catalog sheet from path. When the configured sheet is
// absent the first sheet is used, as store workbooks are often renamed.
func (l *CatalogLoader) Load(path string) (*domain.Catalog, error) {
	sheets, err := l.reader.SheetNames(path)
	if err != nil {
		return nil, fmt.Errorf("open catalog: %w", err)
	}
	sheet := ChooseSheet(sheets, l.sheet)
	if sheet == "" {
		return nil, fmt.Errorf("%w: %s has no sheets", domain.ErrSheetNotFound, path)
	}
	if l.sheet != "" && sheet != l.sheet {
		log.Printf("[CATALOG] Sheet %q not found in %s, using %q", l.sheet, path, sheet)
	}

	table, err := l.reader.ReadSheet(path, sheet)
	if err != nil {
		return nil, fmt.Errorf("read catalog sheet %q: %w", sheet, err)
	}

	catalog, err := NewCatalog(table, l.columns)
	if err != nil {
		return nil, err
	}
	log.Printf("[CATALOG] Loaded %d products from %s (%s)", len(catalog.Entries), path, sheet)
	return catalog, nil
}

// ChooseSheet returns want when present in sheets, else the first sheet,
// else "".
func ChooseSheet(sheets []string, want string) string {
	for _, s := range sheets {
		if want != "" && s == want {
			return s
		}
	}
	if len(sheets) == 0 {
		return ""
	}
	return sheets[0]
}

// CandidateNames normalizes every catalog name with n, keeping entry order
func CandidateNames(catalog *domain.Catalog, n *Normalizer) []string {
	names := make([]string, len(catalog.Entries))
	for i, e := range catalog.Entries {
		names[i] = n.Normalize(e.Name)
	}
	return names
}

// CatalogSource locates the catalog sheet inside a workbook
type CatalogSource struct {
	Path    string
	Sheet   string
	Columns CatalogColumns
}

// Load reads the catalog. Zero Columns select DefaultCatalogColumns.
func (s CatalogSource) Load(reader domain.WorkbookReader) (*domain.Catalog, error) {
	columns := s.Columns
	if columns.Name == "" {
		columns = DefaultCatalogColumns()
	}
	return NewCatalogLoader(reader, s.Sheet, columns).Load(s.Path)
}

// writeCatalog writes the catalog table, named after the configured sheet,
// plus any extra sheets to output. Writing over the source is refused.
func (s CatalogSource) writeCatalog(writer domain.WorkbookWriter, output string, catalog *domain.Catalog, extra ...*domain.Table) error {
	if samePath(output, s.Path) {
		return fmt.Errorf("%w: output %s would overwrite the catalog", domain.ErrInvalidRequest, output)
	}
	if s.Sheet != "" {
		catalog.Table.Name = s.Sheet
	}
	sheets := append([]*domain.Table{catalog.Table}, extra...)
	return writer.WriteWorkbook(output, sheets...)
}
