package csvfile

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/transform"

	"github.com/codmatch/backend/internal/domain"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// Store reads and writes delimiter-separated files as domain tables
type Store struct{}

// NewStore creates a delimited text store
func NewStore() *Store {
	return &Store{}
}

// ReadDelimited loads path with the given delimiter. UTF-8 (with or without
// BOM) is expected; files that are not valid UTF-8 are decoded as
// Windows-1252. Rows with more fields than the header are skipped.
func (s *Store) ReadDelimited(path string, delimiter rune) (*domain.Table, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}

	data = bytes.TrimPrefix(data, utf8BOM)
	if !utf8.Valid(data) {
		decoded, _, err := transform.Bytes(charmap.Windows1252.NewDecoder(), data)
		if err != nil {
			return nil, fmt.Errorf("failed to decode %s: %w", filepath.Base(path), err)
		}
		log.Printf("[CSV] %s is not UTF-8, decoded as Windows-1252", filepath.Base(path))
		data = decoded
	}

	reader := csv.NewReader(bytes.NewReader(data))
	reader.Comma = delimiter
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	header, err := reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("%s is empty", filepath.Base(path))
		}
		return nil, fmt.Errorf("failed to read CSV header: %w", err)
	}
	for i := range header {
		header[i] = strings.TrimSpace(header[i])
	}

	table := domain.NewTable(strings.TrimSuffix(filepath.Base(path), filepath.Ext(path)), header)
	line := 1
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		line++
		if err != nil {
			return nil, fmt.Errorf("failed to read CSV line %d: %w", line, err)
		}
		if len(record) > len(header) {
			log.Printf("[CSV] Skipping line %d of %s: %d fields, header has %d", line, filepath.Base(path), len(record), len(header))
			continue
		}
		if isEmptyRecord(record) {
			continue
		}
		table.Rows = append(table.Rows, record)
	}

	return table, nil
}

// WriteDelimited writes table to path as UTF-8, creating parent directories
func (s *Store) WriteDelimited(path string, table *domain.Table, delimiter rune) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create output directory: %w", err)
		}
	}

	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	writer.Comma = delimiter

	if err := writer.Write(table.Header); err != nil {
		return fmt.Errorf("failed to write CSV header: %w", err)
	}
	for r := range table.Rows {
		record := make([]string, len(table.Header))
		for c := range table.Header {
			record[c] = table.Cell(r, c)
		}
		if err := writer.Write(record); err != nil {
			return fmt.Errorf("failed to write CSV row %d: %w", r+1, err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return fmt.Errorf("failed to flush CSV: %w", err)
	}
	return file.Close()
}

func isEmptyRecord(record []string) bool {
	for _, f := range record {
		if strings.TrimSpace(f) != "" {
			return false
		}
	}
	return true
}
