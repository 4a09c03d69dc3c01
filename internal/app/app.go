// Package app wires configuration into the pipelines and services shared by
// the command-line tool and the server.
package app

import (
	"fmt"
	"log"
	"time"

	"github.com/codmatch/backend/config"
	"github.com/codmatch/backend/internal/domain"
	"github.com/codmatch/backend/internal/infrastructure/csvfile"
	"github.com/codmatch/backend/internal/infrastructure/retail"
	"github.com/codmatch/backend/internal/infrastructure/spreadsheet"
	"github.com/codmatch/backend/internal/infrastructure/store"
	"github.com/codmatch/backend/internal/infrastructure/websearch"
	"github.com/codmatch/backend/internal/usecase"
)

// App holds the adapters built once per process
type App struct {
	Config      *config.Config
	Workbooks   *spreadsheet.Workbook
	Delimited   *csvfile.Store
	Normalizers *usecase.Normalizers
	Ledger      *store.Ledger // nil when store.path is empty
}

// New builds the adapters for cfg and opens the run ledger when configured
func New(cfg *config.Config) (*App, error) {
	var abbreviations []usecase.Abbreviation
	if path := cfg.Normalizer.AbbreviationsPath; path != "" {
		loaded, err := usecase.LoadAbbreviations(path)
		if err != nil {
			return nil, err
		}
		abbreviations = loaded
		log.Printf("[APP] Loaded %d abbreviations from %s", len(loaded), path)
	}

	normalizers, err := usecase.NewNormalizers(abbreviations, cfg.Logging.Debug)
	if err != nil {
		return nil, fmt.Errorf("build normalizers: %w", err)
	}

	a := &App{
		Config:      cfg,
		Workbooks:   spreadsheet.NewWorkbook(cfg.Catalog.IDColumn, usecase.ReportMagazineCode, usecase.SalesSerialColumn, usecase.SalesSKUColumn),
		Delimited:   csvfile.NewStore(),
		Normalizers: normalizers,
	}

	if cfg.Store.Path != "" {
		ledger, err := store.Open(cfg.Store.Path)
		if err != nil {
			return nil, fmt.Errorf("open run ledger: %w", err)
		}
		a.Ledger = ledger
		log.Printf("[APP] Run ledger: %s", cfg.Store.Path)
	}

	return a, nil
}

// Close releases the run ledger
func (a *App) Close() error {
	if a.Ledger == nil {
		return nil
	}
	return a.Ledger.Close()
}

// Recorder returns the ledger as a RunRecorder, or nil when disabled
func (a *App) Recorder() domain.RunRecorder {
	if a.Ledger == nil {
		return nil
	}
	return a.Ledger
}

// CatalogSource locates the catalog sheet and its key columns
func (a *App) CatalogSource() usecase.CatalogSource {
	columns := usecase.DefaultCatalogColumns()
	columns.ID = a.Config.Catalog.IDColumn
	columns.Name = a.Config.Catalog.NameColumn
	return usecase.CatalogSource{
		Path:    a.Config.Catalog.Path,
		Sheet:   a.Config.Catalog.Sheet,
		Columns: columns,
	}
}

// LoadCatalog reads the catalog named by the configuration
func (a *App) LoadCatalog() (*domain.Catalog, error) {
	return a.CatalogSource().Load(a.Workbooks)
}

// LookupService builds the interactive lookup service over catalog
func (a *App) LookupService(cache domain.CacheRepository, catalog *domain.Catalog) *usecase.LookupService {
	return usecase.NewLookupService(cache, catalog, a.Normalizers, usecase.LookupServiceConfig{
		CacheTTL:           a.Config.Cache.TTL,
		Threshold:          usecase.ThresholdOf(a.Config.Catalog.Threshold),
		EnableDebugLogging: a.Config.Logging.Debug,
	})
}

// InvoicePipeline builds the invoice import
func (a *App) InvoicePipeline() *usecase.InvoicePipeline {
	c := a.Config.Invoice
	return usecase.NewInvoicePipeline(a.Workbooks, a.Normalizers, a.Recorder(), usecase.InvoiceConfig{
		Catalog:            a.CatalogSource(),
		Dir:                c.Dir,
		Pattern:            c.Pattern,
		DescriptionColumn:  c.DescriptionColumn,
		Threshold:          usecase.ThresholdOf(c.Threshold),
		CodePrefix:         c.CodePrefix,
		Client:             c.Client,
		MovementType:       c.MovementType,
		Notes:              c.Notes,
		Status:             c.Status,
		PaymentMethod:      c.PaymentMethod,
		MovementSheet:      c.MovementSheet,
		ReportPath:         c.ReportPath,
		OutputPath:         c.OutputPath,
		EnableDebugLogging: a.Config.Logging.Debug,
	})
}

// MagazinePipeline builds the magazine match and report merge
func (a *App) MagazinePipeline() *usecase.MagazinePipeline {
	c := a.Config.Magazine
	return usecase.NewMagazinePipeline(a.Workbooks, a.Delimited, a.Normalizers, a.Recorder(), usecase.MagazineConfig{
		Catalog:            a.CatalogSource(),
		CSVPath:            c.CSVPath,
		Delimiter:          config.Rune(c.Delimiter),
		Threshold:          usecase.ThresholdOf(c.Threshold),
		ReportPath:         c.ReportPath,
		ReportDelimiter:    config.Rune(c.ReportDelimiter),
		OutputPath:         c.OutputPath,
		EnableDebugLogging: a.Config.Logging.Debug,
	})
}

// WorkbookMerger builds the base/updated workbook merge
func (a *App) WorkbookMerger() *usecase.WorkbookMerger {
	c := a.Config.Merge
	return usecase.NewWorkbookMerger(a.Workbooks, a.Recorder(), usecase.MergeConfig{
		Catalog:            a.CatalogSource(),
		UpdatedPath:        c.UpdatedPath,
		UpdatedSheet:       c.UpdatedSheet,
		OutputPath:         c.OutputPath,
		EnableDebugLogging: a.Config.Logging.Debug,
	})
}

// SalesTidier builds the sales sheet tidy-up
func (a *App) SalesTidier() *usecase.SalesTidier {
	c := a.Config.Sales
	return usecase.NewSalesTidier(a.Workbooks, a.Recorder(), usecase.SalesConfig{
		Path:               c.Path,
		Sheet:              c.Sheet,
		ObservationsColumn: c.ObservationsColumn,
		SerialPrefix:       c.SerialPrefix,
		OutputPath:         c.OutputPath,
	})
}

// RetailLookup builds the retailer code lookup with its HTTP clients
func (a *App) RetailLookup() (*usecase.RetailLookup, error) {
	c := a.Config.Retail

	parser, err := retail.NewParser(c.BaseURL, c.TitleSelector, c.CodePattern)
	if err != nil {
		return nil, err
	}

	userAgent := ""
	if len(c.UserAgents) > 0 {
		userAgent = c.UserAgents[0]
	}
	client := retail.NewClient(retail.ClientConfig{
		RequestsPerSecond: c.RequestsPerSecond,
		Timeout:           30 * time.Second,
		UserAgent:         userAgent,
	})
	client.SetDebug(a.Config.Logging.Debug)

	var searcher domain.LinkSearcher
	searchSite := ""
	if c.SearchEngine.Enabled {
		searcher = websearch.NewClient(websearch.Config{
			URL:       c.SearchEngine.URL,
			UserAgent: userAgent,
		})
		searchSite = c.SearchEngine.Site
	}

	return usecase.NewRetailLookup(a.Workbooks, client, parser, searcher, a.Normalizers, a.Recorder(), usecase.RetailLookupConfig{
		Catalog:            a.CatalogSource(),
		BaseURL:            c.BaseURL,
		SearchPath:         c.SearchPath,
		Threshold:          usecase.ThresholdOf(c.Threshold),
		PauseEvery:         c.PauseEvery,
		PreSearchPause:     pause(c.PreSearchPause),
		BetweenPause:       pause(c.BetweenPause),
		LongPause:          pause(c.LongPause),
		ReloadPause:        pause(c.ReloadPause),
		BlockBackoff:       pause(c.BlockBackoff),
		MaxBlockRetries:    c.MaxBlockRetries,
		UserAgents:         c.UserAgents,
		SearchSite:         searchSite,
		OutputPath:         c.OutputPath,
		EnableDebugLogging: a.Config.Logging.Debug,
	}), nil
}

func pause(p config.PauseRange) usecase.Pause {
	return usecase.Pause{Min: p.Min, Max: p.Max}
}
