package domain

import (
	"context"
	"time"
)

// CacheRepository defines the interface for caching operations.
// Values are stored encoded; callers own the encoding.
type CacheRepository interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	Exists(ctx context.Context, key string) (bool, error)
}

// WorkbookReader reads worksheets from spreadsheet files
type WorkbookReader interface {
	SheetNames(path string) ([]string, error)
	ReadSheet(path, sheet string) (*Table, error)
}

// WorkbookWriter writes one or more tables into a new spreadsheet file
type WorkbookWriter interface {
	WriteWorkbook(path string, sheets ...*Table) error
}

// PageFetcher retrieves HTML pages from the retailer site
type PageFetcher interface {
	Fetch(ctx context.Context, rawURL string) (string, error)
	// Reconnect drops pooled connections and switches the User-Agent
	Reconnect(userAgent string)
}

// LinkSearcher runs a web search and returns result links in page order
type LinkSearcher interface {
	SearchLinks(ctx context.Context, query string) ([]string, error)
}

// RunRecorder keeps a ledger of pipeline runs and their accepted matches
type RunRecorder interface {
	StartRun(ctx context.Context, pipeline, input string) (int64, error)
	RecordMatch(ctx context.Context, runID int64, match MatchResult) error
	FinishRun(ctx context.Context, runID int64, summary RunSummary) error
}

// DelimitedReader reads delimiter-separated text files with a header row
type DelimitedReader interface {
	ReadDelimited(path string, delimiter rune) (*Table, error)
}

// DelimitedWriter writes a table as delimiter-separated text
type DelimitedWriter interface {
	WriteDelimited(path string, table *Table, delimiter rune) error
}

// ProductPageParser extracts product data from retailer HTML
type ProductPageParser interface {
	Products(page string) ([]RetailProduct, error)
	Code(page string) string
	Blocked(page string) bool
}
