package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/codmatch/backend/internal/domain"
)

func testCatalog(t *testing.T) *domain.Catalog {
	t.Helper()
	table := newTable("Produtos", []string{"COD", "Produto", "Marca", "Preço Venda"},
		[]string{"NATBRA-100", "Sabonete Líquido Rosa", "Natura", "39,90"},
		[]string{"", "Creme Corporal Tododia", "Natura", "59,90"},
		[]string{"NATBRA-100", "Kaiak Aventura 100ml", "Natura", "149,90"},
	)
	catalog, err := NewCatalog(table, DefaultCatalogColumns())
	if err != nil {
		t.Fatalf("NewCatalog() error = %v", err)
	}
	return catalog
}

func TestNewLookupService(t *testing.T) {
	cache := NewMockCacheRepository()

	t.Run("creates service with default values", func(t *testing.T) {
		svc := NewLookupService(cache, nil, mustNormalizers(), LookupServiceConfig{})
		if svc == nil {
			t.Fatal("expected service to be created")
		}
		if svc.cacheTTL != 24*time.Hour {
			t.Errorf("cacheTTL = %v, want 24h", svc.cacheTTL)
		}
		if svc.CatalogSize() != 0 {
			t.Errorf("CatalogSize() = %d, want 0", svc.CatalogSize())
		}
	})

	t.Run("creates service with custom values", func(t *testing.T) {
		svc := NewLookupService(cache, testCatalog(t), mustNormalizers(), LookupServiceConfig{
			CacheTTL:  time.Hour,
			Threshold: ThresholdOf(70),
		})
		if svc.cacheTTL != time.Hour {
			t.Errorf("cacheTTL = %v, want 1h", svc.cacheTTL)
		}
		if svc.matchingService.Threshold() != 70 {
			t.Errorf("threshold = %v, want 70", svc.matchingService.Threshold())
		}
		if len(svc.candidates) != 3 || svc.candidates[0] != "SABONETE LIQUIDO ROSA" {
			t.Errorf("candidates = %v", svc.candidates)
		}
	})
}

func TestLookup(t *testing.T) {
	ctx := context.Background()

	t.Run("returns error for empty name", func(t *testing.T) {
		svc := NewLookupService(NewMockCacheRepository(), testCatalog(t), mustNormalizers(), LookupServiceConfig{})
		_, err := svc.Lookup(ctx, " ", ProfileCatalog)
		if !errors.Is(err, domain.ErrInvalidRequest) {
			t.Errorf("error = %v, want ErrInvalidRequest", err)
		}
	})

	t.Run("returns error for unknown profile", func(t *testing.T) {
		svc := NewLookupService(NewMockCacheRepository(), testCatalog(t), mustNormalizers(), LookupServiceConfig{})
		_, err := svc.Lookup(ctx, "creme", Profile("receipt"))
		if !errors.Is(err, domain.ErrInvalidRequest) {
			t.Errorf("error = %v, want ErrInvalidRequest", err)
		}
	})

	t.Run("matches invoice text and caches result", func(t *testing.T) {
		cache := NewMockCacheRepository()
		svc := NewLookupService(cache, testCatalog(t), mustNormalizers(), LookupServiceConfig{})

		result, err := svc.Lookup(ctx, "*12345-SAB LIQ ROSA", ProfileInvoice)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if result.Source != "Catalog" {
			t.Errorf("Source = %v, want Catalog", result.Source)
		}
		if result.Normalized != "SABONETE LIQUIDO ROSA" {
			t.Errorf("Normalized = %q", result.Normalized)
		}
		if result.Match.Score != 100 || result.Match.Identifier != "NATBRA-100" {
			t.Errorf("Match = %+v", result.Match)
		}
		if result.Entry == nil || result.Entry.SalePrice != "39,90" {
			t.Errorf("Entry = %+v", result.Entry)
		}
		if !cache.setCalled {
			t.Error("expected cache.Set to be called")
		}
		if _, ok := cache.data["lookup:invoice:SABONETE LIQUIDO ROSA"]; !ok {
			t.Errorf("cache keys = %v", cache.data)
		}
	})

	t.Run("returns cached data on cache hit", func(t *testing.T) {
		cache := NewMockCacheRepository()
		cached, _ := json.Marshal(&LookupResult{
			Normalized: "CREME",
			Profile:    ProfileCatalog,
			Match:      &domain.MatchResult{Candidate: "CREME", Score: 99, Accepted: true, Identifier: "NATBRA-7"},
			Source:     "Catalog",
		})
		cache.data["lookup:catalog:CREME"] = cached
		svc := NewLookupService(cache, testCatalog(t), mustNormalizers(), LookupServiceConfig{})

		result, err := svc.Lookup(ctx, "creme", ProfileCatalog)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if result.Source != "Cache" {
			t.Errorf("Source = %v, want Cache", result.Source)
		}
		if result.Match.Identifier != "NATBRA-7" {
			t.Errorf("Identifier = %v, want NATBRA-7", result.Match.Identifier)
		}
		if result.Query != "creme" {
			t.Errorf("Query = %q, want creme", result.Query)
		}
	})

	t.Run("ignores undecodable cache entries", func(t *testing.T) {
		cache := NewMockCacheRepository()
		cache.data["lookup:catalog:CREME CORPORAL TODODIA"] = []byte("{not json")
		svc := NewLookupService(cache, testCatalog(t), mustNormalizers(), LookupServiceConfig{})

		result, err := svc.Lookup(ctx, "Creme Corporal Tododia", ProfileCatalog)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if result.Source != "Catalog" {
			t.Errorf("Source = %v, want Catalog", result.Source)
		}
	})

	t.Run("returns low confidence error with data and skips cache", func(t *testing.T) {
		cache := NewMockCacheRepository()
		svc := NewLookupService(cache, testCatalog(t), mustNormalizers(), LookupServiceConfig{Threshold: ThresholdOf(90)})

		result, err := svc.Lookup(ctx, "perfume floral", ProfileCatalog)
		if !errors.Is(err, domain.ErrLowConfidence) {
			t.Errorf("error = %v, want ErrLowConfidence", err)
		}
		if result == nil || result.Match == nil {
			t.Fatal("expected result to be returned even with low confidence")
		}
		if cache.setCalled {
			t.Error("low confidence results must not be cached")
		}
	})

	t.Run("returns no candidates for empty catalog", func(t *testing.T) {
		svc := NewLookupService(NewMockCacheRepository(), nil, mustNormalizers(), LookupServiceConfig{})
		_, err := svc.Lookup(ctx, "creme", ProfileCatalog)
		if !errors.Is(err, domain.ErrNoCandidates) {
			t.Errorf("error = %v, want ErrNoCandidates", err)
		}
	})
}

func TestMatchCandidates(t *testing.T) {
	ctx := context.Background()
	svc := NewLookupService(NewMockCacheRepository(), nil, mustNormalizers(), LookupServiceConfig{})

	t.Run("returns original candidate text", func(t *testing.T) {
		match, err := svc.MatchCandidates(ctx, MatchRequest{
			Name:       "SAB LIQ ROSA",
			Candidates: []string{"Creme", "Sabonete Líquido Rosa"},
			Profile:    ProfileInvoice,
		})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if match.Candidate != "Sabonete Líquido Rosa" || match.Score != 100 {
			t.Errorf("match = %+v", match)
		}
	})

	t.Run("rejects unknown scorer", func(t *testing.T) {
		_, err := svc.MatchCandidates(ctx, MatchRequest{Name: "x", Candidates: []string{"x"}, Scorer: "jaro"})
		if !errors.Is(err, domain.ErrInvalidRequest) {
			t.Errorf("error = %v, want ErrInvalidRequest", err)
		}
	})

	t.Run("rejects threshold out of range", func(t *testing.T) {
		_, err := svc.MatchCandidates(ctx, MatchRequest{Name: "x", Candidates: []string{"x"}, Threshold: ThresholdOf(120)})
		if !errors.Is(err, domain.ErrInvalidRequest) {
			t.Errorf("error = %v, want ErrInvalidRequest", err)
		}
	})

	t.Run("honours an explicit zero threshold", func(t *testing.T) {
		match, err := svc.MatchCandidates(ctx, MatchRequest{
			Name:       "perfume floral",
			Candidates: []string{"Creme"},
			Threshold:  ThresholdOf(0),
		})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !match.Accepted {
			t.Errorf("match = %+v, want accepted", match)
		}
	})

	t.Run("falls back to the service threshold", func(t *testing.T) {
		match, err := svc.MatchCandidates(ctx, MatchRequest{Name: "perfume floral", Candidates: []string{"Creme"}})
		if !errors.Is(err, domain.ErrLowConfidence) {
			t.Errorf("error = %v, want ErrLowConfidence", err)
		}
		if match == nil || match.Accepted {
			t.Errorf("match = %+v, want rejected", match)
		}
	})

	t.Run("empty candidates", func(t *testing.T) {
		_, err := svc.MatchCandidates(ctx, MatchRequest{Name: "x"})
		if !errors.Is(err, domain.ErrNoCandidates) {
			t.Errorf("error = %v, want ErrNoCandidates", err)
		}
	})
}

func TestLookupDuplicates(t *testing.T) {
	svc := NewLookupService(NewMockCacheRepository(), testCatalog(t), mustNormalizers(), LookupServiceConfig{})

	groups, err := svc.Duplicates()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(groups) != 1 || groups[0].Identifier != "NATBRA-100" || len(groups[0].Rows) != 2 {
		t.Errorf("groups = %+v", groups)
	}
}
