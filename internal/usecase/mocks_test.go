package usecase

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/codmatch/backend/internal/domain"
)

// MockCacheRepository is a mock implementation of domain.CacheRepository
type MockCacheRepository struct {
	data      map[string][]byte
	getError  error
	setError  error
	getCalled bool
	setCalled bool
}

func NewMockCacheRepository() *MockCacheRepository {
	return &MockCacheRepository{
		data: make(map[string][]byte),
	}
}

func (m *MockCacheRepository) Get(ctx context.Context, key string) ([]byte, error) {
	m.getCalled = true
	if m.getError != nil {
		return nil, m.getError
	}
	if value, ok := m.data[key]; ok {
		return value, nil
	}
	return nil, domain.ErrCacheMiss
}

func (m *MockCacheRepository) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	m.setCalled = true
	if m.setError != nil {
		return m.setError
	}
	m.data[key] = value
	return nil
}

func (m *MockCacheRepository) Delete(ctx context.Context, key string) error {
	delete(m.data, key)
	return nil
}

func (m *MockCacheRepository) Exists(ctx context.Context, key string) (bool, error) {
	_, ok := m.data[key]
	return ok, nil
}

// MockWorkbooks is an in-memory workbook store implementing both
// domain.WorkbookReader and domain.WorkbookWriter
type MockWorkbooks struct {
	mu      sync.Mutex
	files   map[string][]*domain.Table
	readErr map[string]error
}

func NewMockWorkbooks() *MockWorkbooks {
	return &MockWorkbooks{
		files:   make(map[string][]*domain.Table),
		readErr: make(map[string]error),
	}
}

func (m *MockWorkbooks) Put(path string, sheets ...*domain.Table) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.files[path] = sheets
}

func (m *MockWorkbooks) Sheet(path, name string) *domain.Table {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, t := range m.files[path] {
		if t.Name == name {
			return t
		}
	}
	return nil
}

func (m *MockWorkbooks) SheetNames(path string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.readErr[path]; err != nil {
		return nil, err
	}
	sheets, ok := m.files[path]
	if !ok {
		return nil, fmt.Errorf("open %s: file does not exist", path)
	}
	names := make([]string, len(sheets))
	for i, t := range sheets {
		names[i] = t.Name
	}
	return names, nil
}

func (m *MockWorkbooks) ReadSheet(path, sheet string) (*domain.Table, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.readErr[path]; err != nil {
		return nil, err
	}
	for _, t := range m.files[path] {
		if t.Name == sheet {
			return t.Clone(), nil
		}
	}
	return nil, fmt.Errorf("%w: %s in %s", domain.ErrSheetNotFound, sheet, path)
}

func (m *MockWorkbooks) WriteWorkbook(path string, sheets ...*domain.Table) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	copies := make([]*domain.Table, len(sheets))
	for i, t := range sheets {
		copies[i] = t.Clone()
	}
	m.files[path] = copies
	return nil
}

// MockDelimited is an in-memory store for delimited text tables
type MockDelimited struct {
	files map[string]*domain.Table
}

func NewMockDelimited() *MockDelimited {
	return &MockDelimited{files: make(map[string]*domain.Table)}
}

func (m *MockDelimited) ReadDelimited(path string, delimiter rune) (*domain.Table, error) {
	t, ok := m.files[path]
	if !ok {
		return nil, fmt.Errorf("open %s: file does not exist", path)
	}
	return t.Clone(), nil
}

func (m *MockDelimited) WriteDelimited(path string, table *domain.Table, delimiter rune) error {
	m.files[path] = table.Clone()
	return nil
}

// MockRecorder captures run ledger calls
type MockRecorder struct {
	runs     []string
	matches  []domain.MatchResult
	finished []domain.RunSummary
}

func (m *MockRecorder) StartRun(ctx context.Context, pipeline, input string) (int64, error) {
	m.runs = append(m.runs, pipeline)
	return int64(len(m.runs)), nil
}

func (m *MockRecorder) RecordMatch(ctx context.Context, runID int64, match domain.MatchResult) error {
	m.matches = append(m.matches, match)
	return nil
}

func (m *MockRecorder) FinishRun(ctx context.Context, runID int64, summary domain.RunSummary) error {
	m.finished = append(m.finished, summary)
	return nil
}

func newTable(name string, header []string, rows ...[]string) *domain.Table {
	t := domain.NewTable(name, header)
	t.Rows = rows
	return t
}

func mustNormalizers() *Normalizers {
	n, err := NewNormalizers(nil, false)
	if err != nil {
		panic(err)
	}
	return n
}
