package spreadsheet

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/codmatch/backend/internal/domain"
)

// plainNumber matches values safe to store as numbers: no leading zeros,
// no thousands separators, dot decimals only.
var plainNumber = regexp.MustCompile(`^-?(0|[1-9]\d{0,14})(\.\d+)?$`)

// Workbook reads and writes .xlsx files as domain tables
type Workbook struct {
	textColumns map[string]bool
}

// NewWorkbook creates a workbook adapter. Columns named in textColumns are
// always written as text, so identifiers like "00123" keep their zeros.
func NewWorkbook(textColumns ...string) *Workbook {
	text := make(map[string]bool, len(textColumns))
	for _, c := range textColumns {
		text[strings.ToUpper(strings.TrimSpace(c))] = true
	}
	return &Workbook{textColumns: text}
}

// SheetNames lists the sheets of the workbook at path, in tab order
func (w *Workbook) SheetNames(path string) ([]string, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open Excel file: %w", err)
	}
	defer f.Close()

	return f.GetSheetList(), nil
}

// ReadSheet loads one sheet. The first row is the header; fully blank rows
// are skipped.
func (w *Workbook) ReadSheet(path, sheet string) (*domain.Table, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open Excel file: %w", err)
	}
	defer f.Close()

	if idx, err := f.GetSheetIndex(sheet); err != nil || idx < 0 {
		return nil, fmt.Errorf("%w: %q in %s", domain.ErrSheetNotFound, sheet, filepath.Base(path))
	}

	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("failed to get rows: %w", err)
	}

	if len(rows) == 0 {
		return domain.NewTable(sheet, nil), nil
	}

	header := make([]string, len(rows[0]))
	for i, h := range rows[0] {
		h = strings.TrimSpace(h)
		if h == "" {
			h = fmt.Sprintf("Coluna %d", i+1)
		}
		header[i] = h
	}

	table := domain.NewTable(sheet, header)
	for _, row := range rows[1:] {
		if isEmptyRow(row) {
			continue
		}
		table.Rows = append(table.Rows, row)
	}
	return table, nil
}

// WriteWorkbook saves the tables as sheets of a new workbook at path,
// replacing any existing file. Parent directories are created.
func (w *Workbook) WriteWorkbook(path string, sheets ...*domain.Table) error {
	if len(sheets) == 0 {
		return fmt.Errorf("no sheets to write")
	}

	f := excelize.NewFile()
	defer f.Close()

	// Header style
	headerStyle, err := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Size: 11},
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"#D9E1F2"}, Pattern: 1},
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center"},
	})
	if err != nil {
		return fmt.Errorf("failed to create header style: %w", err)
	}

	defaultSheet := f.GetSheetName(0)
	for i, table := range sheets {
		name := table.Name
		if name == "" {
			name = fmt.Sprintf("Sheet%d", i+1)
		}

		if i == 0 {
			if err := f.SetSheetName(defaultSheet, name); err != nil {
				return fmt.Errorf("failed to name sheet %q: %w", name, err)
			}
		} else if _, err := f.NewSheet(name); err != nil {
			return fmt.Errorf("failed to create sheet %q: %w", name, err)
		}

		if err := w.writeSheet(f, name, table, headerStyle); err != nil {
			return err
		}
	}

	f.SetActiveSheet(0)

	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create output directory: %w", err)
		}
	}

	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("failed to save Excel file: %w", err)
	}
	return nil
}

func (w *Workbook) writeSheet(f *excelize.File, sheet string, table *domain.Table, headerStyle int) error {
	if len(table.Header) == 0 {
		return nil
	}

	header := make([]interface{}, len(table.Header))
	text := make([]bool, len(table.Header))
	for i, h := range table.Header {
		header[i] = h
		text[i] = w.textColumns[strings.ToUpper(strings.TrimSpace(h))]
	}
	if err := f.SetSheetRow(sheet, "A1", &header); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}
	last, _ := excelize.CoordinatesToCellName(len(header), 1)
	if err := f.SetCellStyle(sheet, "A1", last, headerStyle); err != nil {
		return fmt.Errorf("failed to style header: %w", err)
	}

	for r := range table.Rows {
		values := make([]interface{}, len(table.Header))
		for c := range table.Header {
			values[c] = cellValue(table.Cell(r, c), text[c])
		}
		cell, _ := excelize.CoordinatesToCellName(1, r+2)
		if err := f.SetSheetRow(sheet, cell, &values); err != nil {
			return fmt.Errorf("failed to write row %d: %w", r+2, err)
		}
	}

	// Column widths
	for i, h := range table.Header {
		col, _ := excelize.ColumnNumberToName(i + 1)
		width := float64(len([]rune(h)) + 4)
		if width < 12 {
			width = 12
		}
		if width > 60 {
			width = 60
		}
		f.SetColWidth(sheet, col, col, width)
	}
	return nil
}

// cellValue returns the value to store for s: a float for plain numbers in
// non-text columns, the string otherwise.
func cellValue(s string, text bool) interface{} {
	if text || !plainNumber.MatchString(s) {
		return s
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return s
	}
	return v
}

func isEmptyRow(row []string) bool {
	for _, cell := range row {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}
