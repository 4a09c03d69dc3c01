package usecase

import (
	"context"
	"log"
	"math"
	"strings"

	"github.com/codmatch/backend/internal/domain"
)

// DefaultThreshold is used when MatchConfig.Threshold is nil
const DefaultThreshold = 62.0

// ThresholdOf returns v as an explicit threshold; 0 accepts every match
func ThresholdOf(v float64) *float64 {
	return &v
}

// MatchConfig holds configuration for the matching service
type MatchConfig struct {
	Scorer             Scorer
	Threshold          *float64
	InclusiveThreshold bool // accept score == Threshold
	EnableDebugLogging bool
}

// MatchingService picks the catalog name most similar to a noisy name
type MatchingService struct {
	scorer             Scorer
	threshold          float64
	inclusive          bool
	enableDebugLogging bool
}

// NewMatchingService creates a new matching service with the given configuration
func NewMatchingService(config MatchConfig) *MatchingService {
	threshold := DefaultThreshold
	if config.Threshold != nil {
		threshold = *config.Threshold
	}

	scorer := config.Scorer
	if scorer == nil {
		scorer = TokenSortScorer{}
	}

	return &MatchingService{
		scorer:             scorer,
		threshold:          threshold,
		inclusive:          config.InclusiveThreshold,
		enableDebugLogging: config.EnableDebugLogging,
	}
}

// Threshold returns the acceptance threshold
func (s *MatchingService) Threshold() float64 {
	return s.threshold
}

// Accepts reports whether score clears the threshold
func (s *MatchingService) Accepts(score float64) bool {
	if s.inclusive {
		return score >= s.threshold
	}
	return score > s.threshold
}

// FindBestMatch scores name against every candidate and returns the best one.
// Ties keep the first candidate seen. An empty candidate list yields
// (nil, nil). When the best score does not clear the threshold the match is
// still returned, together with ErrLowConfidence.
func (s *MatchingService) FindBestMatch(
	ctx context.Context,
	name string,
	candidates []string,
) (*domain.MatchResult, error) {
	if strings.TrimSpace(name) == "" {
		return nil, domain.ErrInvalidRequest
	}

	if len(candidates) == 0 {
		return nil, nil
	}

	if s.enableDebugLogging {
		log.Printf("[MATCH] Searching for: %q (%s, %d candidates)", name, s.scorer.Name(), len(candidates))
	}

	bestIndex := -1
	highestScore := -1.0 // Initialize to -1 so any score (including 0) is considered

	for i, candidate := range candidates {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		score := clampScore(s.scorer.Score(name, candidate))
		if score > highestScore {
			highestScore = score
			bestIndex = i
		}
	}

	best := &domain.MatchResult{
		Record:         domain.NoisyRecord{Name: name},
		Candidate:      candidates[bestIndex],
		CandidateIndex: bestIndex,
		Score:          int(math.RoundToEven(highestScore)),
		RawScore:       highestScore,
		Accepted:       s.Accepts(highestScore),
	}

	if s.enableDebugLogging {
		log.Printf("[MATCH] Best match: %q (score: %.1f, accepted: %v)", best.Candidate, highestScore, best.Accepted)
	}

	if !best.Accepted {
		return best, domain.ErrLowConfidence
	}

	return best, nil
}

func clampScore(score float64) float64 {
	if math.IsNaN(score) || score < 0 {
		return 0
	}
	if score > 100 {
		return 100
	}
	return score
}
