package app

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/codmatch/backend/config"
	"github.com/codmatch/backend/internal/domain"
	"github.com/codmatch/backend/internal/usecase"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	dir := t.TempDir()
	return &config.Config{
		Cache: config.CacheConfig{TTL: time.Hour},
		Catalog: config.CatalogConfig{
			Path:       filepath.Join(dir, "BD_Loja.xlsx"),
			Sheet:      "Produtos",
			IDColumn:   "Codigo",
			NameColumn: "Descricao",
			Threshold:  62,
		},
		Magazine: config.MagazineConfig{Delimiter: ";", ReportDelimiter: ","},
		Retail: config.RetailConfig{
			BaseURL:           "https://www.natura.com.br",
			TitleSelector:     "h4",
			CodePattern:       `NATBRA-\d+`,
			RequestsPerSecond: 1,
			UserAgents:        []string{"agent-a"},
			OutputPath:        filepath.Join(dir, "out.xlsx"),
			SearchEngine:      config.SearchEngineConfig{Enabled: true, URL: "https://search.test/search", Site: "natura.com.br"},
		},
	}
}

func TestNew(t *testing.T) {
	t.Run("without ledger", func(t *testing.T) {
		a, err := New(testConfig(t))
		require.NoError(t, err)
		defer a.Close()

		assert.Nil(t, a.Ledger)
		assert.Nil(t, a.Recorder(), "a disabled ledger must be a nil interface")
		assert.NotNil(t, a.Normalizers)
	})

	t.Run("with ledger", func(t *testing.T) {
		cfg := testConfig(t)
		cfg.Store.Path = filepath.Join(t.TempDir(), "runs.db")

		a, err := New(cfg)
		require.NoError(t, err)
		defer a.Close()

		require.NotNil(t, a.Recorder())
		id, err := a.Recorder().StartRun(context.Background(), "invoice", "nf.xlsx")
		require.NoError(t, err)
		assert.Positive(t, id)
	})

	t.Run("custom abbreviations", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "abbreviations.yaml")
		require.NoError(t, os.WriteFile(path, []byte("abbreviations:\n  - pattern: '\\bDES\\b'\n    replacement: DESODORANTE\n"), 0o644))

		cfg := testConfig(t)
		cfg.Normalizer.AbbreviationsPath = path
		a, err := New(cfg)
		require.NoError(t, err)

		assert.Equal(t, "KAIAK DESODORANTE", a.Normalizers.Invoice.Normalize("kaiak des"))
	})

	t.Run("missing abbreviations file", func(t *testing.T) {
		cfg := testConfig(t)
		cfg.Normalizer.AbbreviationsPath = filepath.Join(t.TempDir(), "missing.yaml")
		_, err := New(cfg)
		assert.Error(t, err)
	})
}

func TestCatalogSource(t *testing.T) {
	a, err := New(testConfig(t))
	require.NoError(t, err)

	source := a.CatalogSource()
	assert.Equal(t, "Produtos", source.Sheet)
	assert.Equal(t, "Codigo", source.Columns.ID)
	assert.Equal(t, "Descricao", source.Columns.Name)
	assert.Equal(t, usecase.DefaultCatalogColumns().Volume, source.Columns.Volume)
}

func TestLoadCatalog_RoundTrip(t *testing.T) {
	cfg := testConfig(t)
	a, err := New(cfg)
	require.NoError(t, err)

	table := domain.NewTable("Produtos", []string{"Codigo", "Descricao"})
	table.Rows = [][]string{{"00123", "Kaiak Aventura"}, {"", "Ekos Castanha"}}
	require.NoError(t, a.Workbooks.WriteWorkbook(cfg.Catalog.Path, table))

	catalog, err := a.LoadCatalog()
	require.NoError(t, err)
	require.Len(t, catalog.Entries, 2)
	assert.Equal(t, "00123", catalog.Entries[0].ID)
	assert.Equal(t, "Ekos Castanha", catalog.Entries[1].Name)

	svc := a.LookupService(nil, catalog)
	assert.Equal(t, 2, svc.CatalogSize())
}

func TestLookupService_ZeroThreshold(t *testing.T) {
	cfg := testConfig(t)
	cfg.Catalog.Threshold = 0
	a, err := New(cfg)
	require.NoError(t, err)

	svc := a.LookupService(nil, nil)
	match, err := svc.MatchCandidates(context.Background(), usecase.MatchRequest{
		Name:       "Batom",
		Candidates: []string{"Kaiak Aventura"},
	})
	require.NoError(t, err)
	assert.True(t, match.Accepted)
}

func TestRetailLookup(t *testing.T) {
	t.Run("builds with search engine", func(t *testing.T) {
		a, err := New(testConfig(t))
		require.NoError(t, err)

		lookup, err := a.RetailLookup()
		require.NoError(t, err)
		assert.Equal(t, "https://www.natura.com.br/s/produtos?busca=Kaiak+100+ml", lookup.SearchURL("Kaiak 100 ml"))
	})

	t.Run("rejects bad code pattern", func(t *testing.T) {
		cfg := testConfig(t)
		cfg.Retail.CodePattern = "NATBRA-("
		a, err := New(cfg)
		require.NoError(t, err)

		_, err = a.RetailLookup()
		assert.ErrorIs(t, err, domain.ErrInvalidRequest)
	})
}
