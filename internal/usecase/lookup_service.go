package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/codmatch/backend/internal/domain"
)

// LookupServiceConfig holds configuration for the lookup service
type LookupServiceConfig struct {
	CacheTTL           time.Duration
	Threshold          *float64 // nil uses DefaultThreshold
	EnableDebugLogging bool
}

// LookupResult is the answer to a single-name catalog lookup
type LookupResult struct {
	Query      string               `json:"query"`
	Normalized string               `json:"normalized"`
	Profile    Profile              `json:"profile"`
	Match      *domain.MatchResult  `json:"match"`
	Entry      *domain.CatalogEntry `json:"entry,omitempty"`
	Source     string               `json:"source"`
	CachedAt   time.Time            `json:"cachedAt,omitempty"`
}

// MatchRequest scores one name against caller-supplied candidates
type MatchRequest struct {
	Name       string
	Candidates []string
	Profile    Profile
	Scorer     string
	Threshold  *float64 // nil uses the service threshold
	Inclusive  bool
}

// LookupService answers interactive lookups against the loaded catalog
type LookupService struct {
	cache              domain.CacheRepository
	catalog            *domain.Catalog
	normalizers        *Normalizers
	candidates         []string
	matchingService    *MatchingService
	cacheTTL           time.Duration
	enableDebugLogging bool
}

// NewLookupService creates a new lookup service with dependencies
func NewLookupService(
	cache domain.CacheRepository,
	catalog *domain.Catalog,
	normalizers *Normalizers,
	config LookupServiceConfig,
) *LookupService {
	matchingService := NewMatchingService(MatchConfig{
		Threshold:          config.Threshold,
		EnableDebugLogging: config.EnableDebugLogging,
	})

	cacheTTL := config.CacheTTL
	if cacheTTL == 0 {
		cacheTTL = 24 * time.Hour
	}

	if catalog == nil {
		catalog = &domain.Catalog{Table: domain.NewTable("Produtos", nil)}
	}

	return &LookupService{
		cache:              cache,
		catalog:            catalog,
		normalizers:        normalizers,
		candidates:         CandidateNames(catalog, normalizers.Catalog),
		matchingService:    matchingService,
		cacheTTL:           cacheTTL,
		enableDebugLogging: config.EnableDebugLogging,
	}
}

// CatalogSize returns the number of loaded catalog entries
func (s *LookupService) CatalogSize() int {
	return len(s.catalog.Entries)
}

// Normalize cleans text with the given profile
func (s *LookupService) Normalize(text string, profile Profile) (string, error) {
	n, err := s.normalizer(profile)
	if err != nil {
		return "", err
	}
	return n.Normalize(text), nil
}

// Lookup finds the catalog entry for a noisy product name.
// Flow: normalize -> check cache -> match catalog -> cache -> return
func (s *LookupService) Lookup(ctx context.Context, name string, profile Profile) (*LookupResult, error) {
	if strings.TrimSpace(name) == "" {
		return nil, domain.ErrInvalidRequest
	}
	if profile == "" {
		profile = ProfileCatalog
	}
	n, err := s.normalizer(profile)
	if err != nil {
		return nil, err
	}

	normalized := n.Normalize(name)
	if normalized == "" {
		return nil, fmt.Errorf("%w: %q normalizes to nothing", domain.ErrInvalidRequest, name)
	}

	cacheKey := fmt.Sprintf("lookup:%s:%s", profile, normalized)

	// Try cache first
	if cached, err := s.getFromCache(ctx, cacheKey); err == nil {
		cached.Query = name
		cached.Source = "Cache"
		return cached, nil
	}

	match, err := s.matchingService.FindBestMatch(ctx, normalized, s.candidates)
	if err != nil && !errors.Is(err, domain.ErrLowConfidence) {
		return nil, err
	}
	if match == nil {
		return nil, domain.ErrNoCandidates
	}

	entry := s.catalog.Entries[match.CandidateIndex]
	match.Record = domain.NoisyRecord{Name: name}
	match.Identifier = strings.TrimSpace(entry.ID)

	result := &LookupResult{
		Query:      name,
		Normalized: normalized,
		Profile:    profile,
		Match:      match,
		Entry:      &entry,
		Source:     "Catalog",
	}

	if err != nil {
		// Don't cache low confidence results
		return result, err
	}

	if err := s.setInCache(ctx, cacheKey, result); err != nil {
		log.Printf("[LOOKUP] Failed to cache %q: %v", cacheKey, err)
	}

	return result, nil
}

// MatchCandidates scores a name against an explicit candidate list. The name
// is cleaned with the request profile, the candidates with the catalog profile.
func (s *LookupService) MatchCandidates(ctx context.Context, req MatchRequest) (*domain.MatchResult, error) {
	if strings.TrimSpace(req.Name) == "" {
		return nil, domain.ErrInvalidRequest
	}
	if req.Profile == "" {
		req.Profile = ProfileCatalog
	}
	n, err := s.normalizer(req.Profile)
	if err != nil {
		return nil, err
	}
	scorer, err := ScorerByName(req.Scorer)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrInvalidRequest, err)
	}
	threshold := s.matchingService.Threshold()
	if req.Threshold != nil {
		threshold = *req.Threshold
	}
	if threshold < 0 || threshold > 100 {
		return nil, fmt.Errorf("%w: threshold must be between 0 and 100", domain.ErrInvalidRequest)
	}

	candidates := make([]string, len(req.Candidates))
	for i, c := range req.Candidates {
		candidates[i] = s.normalizers.Catalog.Normalize(c)
	}

	svc := NewMatchingService(MatchConfig{
		Scorer:             scorer,
		Threshold:          ThresholdOf(threshold),
		InclusiveThreshold: req.Inclusive,
		EnableDebugLogging: s.enableDebugLogging,
	})

	match, err := svc.FindBestMatch(ctx, n.Normalize(req.Name), candidates)
	if match == nil {
		if err == nil {
			err = domain.ErrNoCandidates
		}
		return nil, err
	}
	match.Record = domain.NoisyRecord{Name: req.Name}
	match.Candidate = req.Candidates[match.CandidateIndex]
	return match, err
}

// Duplicates lists identifier groups shared by more than one catalog row
func (s *LookupService) Duplicates() ([]DuplicateGroup, error) {
	if s.catalog.IDColumn == "" {
		return nil, nil
	}
	return FindDuplicateIDs(s.catalog.Table, s.catalog.IDColumn)
}

func (s *LookupService) normalizer(profile Profile) (*Normalizer, error) {
	n := s.normalizers.For(profile)
	if n == nil {
		return nil, fmt.Errorf("%w: unknown profile %q", domain.ErrInvalidRequest, profile)
	}
	return n, nil
}

// getFromCache retrieves a lookup result from cache
func (s *LookupService) getFromCache(ctx context.Context, key string) (*LookupResult, error) {
	data, err := s.cache.Get(ctx, key)
	if err != nil {
		return nil, err
	}

	var result LookupResult
	if err := json.Unmarshal(data, &result); err != nil {
		return nil, domain.ErrCacheMiss
	}
	return &result, nil
}

// setInCache stores a lookup result in cache
func (s *LookupService) setInCache(ctx context.Context, key string, result *LookupResult) error {
	result.CachedAt = time.Now()
	data, err := json.Marshal(result)
	if err != nil {
		return err
	}
	return s.cache.Set(ctx, key, data, s.cacheTTL)
}
