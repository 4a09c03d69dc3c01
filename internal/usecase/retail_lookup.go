package usecase

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math/rand"
	"net/url"
	"strings"
	"time"

	"github.com/codmatch/backend/internal/domain"
)

// Pause is a randomized wait between Min and Max
type Pause struct {
	Min time.Duration
	Max time.Duration
}

// Sleeper waits for d or until ctx is done
type Sleeper func(ctx context.Context, d time.Duration) error

// SleepContext is the real Sleeper
func SleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

var (
	noiseTitleWords   = []string{"cookies", "privacidade", "banner", "promo"}
	variantTitleWords = []string{"kit", "refil", "miniatura"}
)

// DefaultRetailThreshold is the inclusive token-sort cutoff for retailer titles
const DefaultRetailThreshold = 54.0

// RetailLookupConfig holds configuration for the retailer code lookup
type RetailLookupConfig struct {
	Catalog            CatalogSource
	BaseURL            string
	SearchPath         string
	Threshold          *float64 // nil uses DefaultRetailThreshold
	PauseEvery         int
	PreSearchPause     Pause
	BetweenPause       Pause
	LongPause          Pause
	ReloadPause        Pause
	BlockBackoff       Pause
	MaxBlockRetries    int // 0 retries a blocked page forever
	UserAgents         []string
	SearchSite         string // web search fallback, e.g. "natura.com.br"
	OutputPath         string
	EnableDebugLogging bool
}

// RetailLookupResult summarizes a lookup run
type RetailLookupResult struct {
	Missing    int      `json:"missing"`
	Searched   int      `json:"searched"`
	Found      int      `json:"found"`
	NotFound   []string `json:"notFound"`
	OutputPath string   `json:"outputPath"`
}

// RetailLookup fills missing catalog codes by searching the retailer site,
// one product at a time, falling back to a web search.
type RetailLookup struct {
	workbooks  Workbooks
	fetcher    domain.PageFetcher
	parser     domain.ProductPageParser
	searcher   domain.LinkSearcher
	normalizer *Normalizer
	recorder   domain.RunRecorder
	config     RetailLookupConfig
	matching   *MatchingService
	sleep      Sleeper
	random     func() float64
	sinceLong  int
}

// NewRetailLookup creates the lookup. searcher and recorder may be nil; a nil
// searcher disables the web search fallback.
func NewRetailLookup(
	workbooks Workbooks,
	fetcher domain.PageFetcher,
	parser domain.ProductPageParser,
	searcher domain.LinkSearcher,
	normalizers *Normalizers,
	recorder domain.RunRecorder,
	config RetailLookupConfig,
) *RetailLookup {
	if config.Threshold == nil {
		config.Threshold = ThresholdOf(DefaultRetailThreshold)
	}
	if config.SearchPath == "" {
		config.SearchPath = "/s/produtos?busca="
	}
	config.BaseURL = strings.TrimRight(config.BaseURL, "/")

	return &RetailLookup{
		workbooks:  workbooks,
		fetcher:    fetcher,
		parser:     parser,
		searcher:   searcher,
		normalizer: normalizers.Catalog,
		recorder:   recorder,
		config:     config,
		matching: NewMatchingService(MatchConfig{
			Scorer:             TokenSortScorer{},
			Threshold:          config.Threshold,
			InclusiveThreshold: true,
			EnableDebugLogging: config.EnableDebugLogging,
		}),
		sleep:  SleepContext,
		random: rand.Float64,
	}
}

// SearchTerm joins collection, name and volume with single spaces
func SearchTerm(collection, name, volume string) string {
	return strings.Join(strings.Fields(collection+" "+name+" "+volume), " ")
}

// IsRefill reports whether the product or its short name mention a refill
func IsRefill(product, name string) bool {
	return strings.Contains(strings.ToLower(product+" "+name), "refil")
}

// FilterRetailProducts drops cookie, banner and promo tiles. Kits, refills
// and miniatures are dropped unless refill is set, in which case only
// refills are kept.
func FilterRetailProducts(products []domain.RetailProduct, refill bool) []domain.RetailProduct {
	kept := make([]domain.RetailProduct, 0, len(products))
	for _, p := range products {
		title := strings.ToLower(p.Title)
		if containsAny(title, noiseTitleWords) {
			continue
		}
		if refill {
			if !strings.Contains(title, "refil") {
				continue
			}
		} else if containsAny(title, variantTitleWords) {
			continue
		}
		kept = append(kept, p)
	}
	return kept
}

func containsAny(s string, words []string) bool {
	for _, w := range words {
		if strings.Contains(s, w) {
			return true
		}
	}
	return false
}

// Run processes every catalog row without a code and writes the catalog,
// with the codes found, to OutputPath. Failures on a single row leave its
// code blank.
func (r *RetailLookup) Run(ctx context.Context) (result *RetailLookupResult, err error) {
	cfg := r.config
	if samePath(cfg.OutputPath, cfg.Catalog.Path) {
		return nil, fmt.Errorf("%w: output %s would overwrite the catalog", domain.ErrInvalidRequest, cfg.OutputPath)
	}

	run := startRun(ctx, r.recorder, "retail", cfg.Catalog.Path)
	var summary domain.RunSummary
	defer func() { run.finish(ctx, summary, err) }()

	catalog, err := cfg.Catalog.Load(r.workbooks)
	if err != nil {
		return nil, err
	}
	table := catalog.Table
	collectionCol := findColumn(table, "Coleção")
	nameCol := table.FindColumn("Nome", "nome")
	volumeCol := table.FindColumn("Volume", "volume")
	if collectionCol == "" || nameCol == "" || volumeCol == "" {
		return nil, fmt.Errorf("%w: Coleção, Nome and Volume are required in %q", domain.ErrColumnNotFound, table.Name)
	}
	idIdx := table.ColumnIndex(catalog.IDColumn)

	result = &RetailLookupResult{OutputPath: cfg.OutputPath}
	var pending []domain.CatalogEntry
	for _, e := range catalog.Entries {
		if domain.IsBlank(e.ID) {
			pending = append(pending, e)
		}
	}
	result.Missing = len(pending)
	log.Printf("[RETAIL] %d products without code to process", len(pending))

	r.sinceLong = 0
	for i, e := range pending {
		name := table.Value(e.Row, nameCol)
		term := SearchTerm(table.Value(e.Row, collectionCol), name, table.Value(e.Row, volumeCol))
		if term == "" {
			log.Printf("[RETAIL] [%d] empty search term, skipping", e.Row+2)
			continue
		}
		refill := IsRefill(e.Name, name)
		log.Printf("[RETAIL] [%d/%d] [%d] Searching %q (refill=%v)", i+1, len(pending), e.Row+2, term, refill)

		if err := r.pause(ctx, cfg.PreSearchPause); err != nil {
			return nil, err
		}
		match, lookupErr := r.LookupCode(ctx, term, e.Name, refill)
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		result.Searched++

		if match != nil {
			table.SetCell(e.Row, idIdx, match.Identifier)
			result.Found++
			run.match(ctx, *match)
			log.Printf("[RETAIL]     → %s", match.Identifier)
		} else {
			result.NotFound = append(result.NotFound, e.Name)
			if lookupErr != nil && !errors.Is(lookupErr, domain.ErrCodeNotFound) {
				log.Printf("[RETAIL]     → NÃO ENCONTRADO (%v)", lookupErr)
			} else {
				log.Printf("[RETAIL]     → NÃO ENCONTRADO")
			}
		}

		if err := r.paceAfterSearch(ctx); err != nil {
			return nil, err
		}
	}

	if err := cfg.Catalog.writeCatalog(r.workbooks, cfg.OutputPath, catalog); err != nil {
		return nil, fmt.Errorf("write catalog with codes: %w", err)
	}
	log.Printf("[RETAIL] Finished: %d/%d codes found; saved to %s", result.Found, result.Searched, cfg.OutputPath)

	summary = domain.RunSummary{Output: cfg.OutputPath, Records: result.Missing, Accepted: result.Found, Filled: result.Found}
	return result, nil
}

// LookupCode searches the retailer for term and matches fullName against the
// product tiles. When that finds no code the web search fallback is tried.
// The returned match carries the code as Identifier.
func (r *RetailLookup) LookupCode(ctx context.Context, term, fullName string, refill bool) (*domain.MatchResult, error) {
	match, err := r.searchRetailer(ctx, term, fullName, refill)
	if match != nil {
		return match, nil
	}
	if err != nil {
		if ctx.Err() != nil {
			return nil, err
		}
		log.Printf("[RETAIL] Retailer search for %q failed: %v", term, err)
	}

	if r.searcher == nil || r.config.SearchSite == "" {
		return nil, fmt.Errorf("%w: %s", domain.ErrCodeNotFound, fullName)
	}
	match, err = r.searchWeb(ctx, fullName)
	if err != nil {
		return nil, err
	}
	if match == nil {
		return nil, fmt.Errorf("%w: %s", domain.ErrCodeNotFound, fullName)
	}
	return match, nil
}

// SearchURL returns the retailer search page address for term
func (r *RetailLookup) SearchURL(term string) string {
	return r.config.BaseURL + r.config.SearchPath + url.QueryEscape(term)
}

func (r *RetailLookup) searchRetailer(ctx context.Context, term, fullName string, refill bool) (*domain.MatchResult, error) {
	page, err := r.fetchPage(ctx, r.SearchURL(term))
	if err != nil {
		return nil, err
	}
	products, err := r.parser.Products(page)
	if err != nil {
		return nil, err
	}
	if len(products) == 0 {
		r.debugf("No products on the search page for %q", term)
		return nil, nil
	}
	products = FilterRetailProducts(products, refill)
	if len(products) == 0 {
		r.debugf("No valid products left after filtering for %q", term)
		return nil, nil
	}

	titles := make([]string, len(products))
	for i, p := range products {
		titles[i] = r.normalizer.Normalize(p.Title)
	}
	best, err := r.matching.FindBestMatch(ctx, r.normalizer.Normalize(fullName), titles)
	if best == nil {
		return nil, err
	}
	chosen := products[best.CandidateIndex]
	log.Printf("[RETAIL]     best title %q (similarity %d%%)", chosen.Title, best.Score)
	if !best.Accepted || chosen.URL == "" {
		return nil, nil
	}

	productPage, err := r.fetchPage(ctx, chosen.URL)
	if err != nil {
		return nil, err
	}
	code := r.parser.Code(productPage)
	if code == "" {
		code = r.parser.Code(chosen.URL)
	}
	if code == "" {
		return nil, nil
	}

	best.Record = domain.NoisyRecord{Name: fullName, Source: chosen.URL}
	best.Candidate = chosen.Title
	best.Identifier = code
	return best, nil
}

// searchWeb looks for "site:<site> name" and takes the code from the first
// product link, or else from any link on the site.
func (r *RetailLookup) searchWeb(ctx context.Context, fullName string) (*domain.MatchResult, error) {
	site := r.config.SearchSite
	links, err := r.searcher.SearchLinks(ctx, "site:"+site+" "+fullName)
	if err != nil {
		return nil, fmt.Errorf("web search: %w", err)
	}

	found := func(link, code string) *domain.MatchResult {
		return &domain.MatchResult{
			Record:     domain.NoisyRecord{Name: fullName, Source: link},
			Candidate:  link,
			Accepted:   true,
			Identifier: code,
		}
	}

	for _, link := range links {
		if strings.Contains(link, site+"/p/") {
			if code := r.parser.Code(link); code != "" {
				return found(link, code), nil
			}
			break
		}
	}
	for _, link := range links {
		if !strings.Contains(link, site) {
			continue
		}
		if code := r.parser.Code(link); code != "" {
			return found(link, code), nil
		}
	}
	return nil, nil
}

// fetchPage fetches rawURL, recovering from block pages: a reload after a
// short pause, then a long back-off with a fresh User-Agent and connection.
func (r *RetailLookup) fetchPage(ctx context.Context, rawURL string) (string, error) {
	for retries := 0; ; retries++ {
		page, err := r.fetcher.Fetch(ctx, rawURL)
		if !r.blocked(page, err) {
			return page, err
		}
		log.Printf("[RETAIL] Blocked by retailer, reloading %s", rawURL)

		if err := r.pause(ctx, r.config.ReloadPause); err != nil {
			return "", err
		}
		page, err = r.fetcher.Fetch(ctx, rawURL)
		if !r.blocked(page, err) {
			log.Printf("[RETAIL] Reload cleared the block")
			return page, err
		}

		if limit := r.config.MaxBlockRetries; limit > 0 && retries >= limit {
			return "", fmt.Errorf("%w: still blocked after %d reconnects", domain.ErrBlocked, retries)
		}

		wait := r.pick(r.config.BlockBackoff)
		log.Printf("[RETAIL] Still blocked, pausing %s before reconnecting", wait.Round(time.Second))
		if err := r.wait(ctx, wait); err != nil {
			return "", err
		}
		userAgent := r.nextUserAgent()
		r.fetcher.Reconnect(userAgent)
		r.debugf("Reconnected with User-Agent %q", userAgent)
	}
}

func (r *RetailLookup) blocked(page string, err error) bool {
	if err != nil {
		return errors.Is(err, domain.ErrBlocked)
	}
	return r.parser.Blocked(page)
}

func (r *RetailLookup) nextUserAgent() string {
	agents := r.config.UserAgents
	if len(agents) == 0 {
		return ""
	}
	i := int(r.random() * float64(len(agents)))
	if i >= len(agents) {
		i = len(agents) - 1
	}
	return agents[i]
}

func (r *RetailLookup) paceAfterSearch(ctx context.Context) error {
	r.sinceLong++
	if every := r.config.PauseEvery; every > 0 && r.sinceLong >= every {
		wait := r.pick(r.config.LongPause)
		log.Printf("[RETAIL] Long pause started at %s, waiting %s", time.Now().Format("15:04:05"), wait.Round(time.Second))
		if err := r.wait(ctx, wait); err != nil {
			return err
		}
		r.sinceLong = 0
	}
	return r.pause(ctx, r.config.BetweenPause)
}

func (r *RetailLookup) pick(p Pause) time.Duration {
	if p.Max <= p.Min {
		return p.Min
	}
	return p.Min + time.Duration(r.random()*float64(p.Max-p.Min))
}

func (r *RetailLookup) pause(ctx context.Context, p Pause) error {
	return r.wait(ctx, r.pick(p))
}

func (r *RetailLookup) wait(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	return r.sleep(ctx, d)
}

func (r *RetailLookup) debugf(format string, args ...interface{}) {
	if r.config.EnableDebugLogging {
		log.Printf("[RETAIL] "+format, args...)
	}
}
