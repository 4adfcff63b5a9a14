// Package match computes ranked, classified property lists for demand posts,
// degrading gracefully when semantic scoring is unavailable.
package match

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/casavia/matchengine/internal/domain"
	"github.com/casavia/matchengine/internal/metrics"
)

// Default policy values.
const (
	DefaultThreshold          = 70.0
	DefaultMaxRecommendations = 10
	DefaultMaxCandidates      = 200
)

// Service is the matching engine.
type Service struct {
	demands   DemandReader
	props     PropertyLister
	embs      EmbeddingReader
	syncer    Synchronizer
	store     MatchStore
	threshold float64
	maxRecs   int
	maxCands  int
	logger    *zap.Logger
}

// New creates a matching engine with default policy values.
func New(
	demands DemandReader, props PropertyLister, embs EmbeddingReader,
	syncer Synchronizer, store MatchStore, logger *zap.Logger,
) *Service {
	return &Service{
		demands:   demands,
		props:     props,
		embs:      embs,
		syncer:    syncer,
		store:     store,
		threshold: DefaultThreshold,
		maxRecs:   DefaultMaxRecommendations,
		maxCands:  DefaultMaxCandidates,
		logger:    logger,
	}
}

// WithPolicy overrides the classification threshold and result caps.
func (s *Service) WithPolicy(threshold float64, maxRecommendations, maxCandidates int) *Service {
	if threshold > 0 {
		s.threshold = threshold
	}
	if maxRecommendations > 0 {
		s.maxRecs = maxRecommendations
	}
	if maxCandidates > 0 {
		s.maxCands = maxCandidates
	}
	return s
}

// ComputeMatches produces the ranked, classified result for a demand post.
func (s *Service) ComputeMatches(ctx context.Context, demandID string) (domain.MatchResult, error) {
	return s.compute(ctx, demandID, false)
}

// RefreshMatches forces the demand embedding sync even when current, then
// re-runs the full computation. Used when the user explicitly searches again.
// Prior match records for the demand are superseded.
func (s *Service) RefreshMatches(ctx context.Context, demandID string) (domain.MatchResult, error) {
	return s.compute(ctx, demandID, true)
}

func (s *Service) compute(ctx context.Context, demandID string, force bool) (domain.MatchResult, error) {
	d, err := s.demands.GetByID(ctx, demandID)
	if err != nil {
		return domain.MatchResult{}, fmt.Errorf("load demand: %w", err)
	}

	constraints := d.Constraints()
	if err := constraints.Validate(); err != nil {
		return domain.MatchResult{}, err
	}

	// The candidate set bounds the scoring workload and guarantees
	// non-semantic correctness even with no embeddings at all.
	candidates, err := s.props.ListActive(ctx, constraints, s.maxCands)
	if err != nil {
		return domain.MatchResult{}, fmt.Errorf("list candidates: %w", err)
	}

	demandVec, degraded := s.resolveDemandVector(ctx, &d, force)

	var propEmbs map[string]domain.Embedding
	if !degraded && len(candidates) > 0 {
		ids := make([]string, len(candidates))
		for i := range candidates {
			ids[i] = candidates[i].ID
		}
		propEmbs, err = s.embs.GetBatch(ctx, domain.OwnerProperty, ids)
		if err != nil {
			// Matching must stay usable: score everything by constraint
			// proximity instead of failing the request.
			s.logger.Warn("Failed to load candidate embeddings, degrading",
				zap.String("demand_id", demandID), zap.Error(err))
			degraded = true
		}
	}

	ranked := s.scoreCandidates(candidates, constraints, demandVec, propEmbs, degraded)

	result := s.partition(ranked)
	result.Degraded = degraded

	mode := "semantic"
	if degraded {
		mode = "degraded"
	}
	metrics.MatchComputationsTotal.WithLabelValues(mode).Inc()

	// Audit records: persistence failures are logged, never user-facing.
	s.persist(ctx, demandID, result)

	return result, nil
}

// resolveDemandVector returns the demand vector, attempting one synchronous
// sync when stale or missing. Provider unavailability degrades the whole
// computation to constraint-only scoring instead of erroring: the system
// never returns an empty result purely because the provider is down.
func (s *Service) resolveDemandVector(ctx context.Context, d *domain.DemandPost, force bool) ([]float32, bool) {
	vec, err := s.syncer.DemandVector(ctx, d, force)
	if err == nil {
		return vec, false
	}
	if errors.Is(err, domain.ErrProviderUnavailable) || errors.Is(err, domain.ErrVectorDimMismatch) {
		s.logger.Warn("Semantic scoring unavailable, using constraint-only ranking",
			zap.String("demand_id", d.ID), zap.Error(err))
		return nil, true
	}
	// Store-level failures also degrade rather than fail the request; the
	// candidate query has already proven the store reachable, so this is rare.
	s.logger.Warn("Demand vector resolution failed, using constraint-only ranking",
		zap.String("demand_id", d.ID), zap.Error(err))
	return nil, true
}

func (s *Service) scoreCandidates(
	candidates []domain.Property,
	c domain.Constraints,
	demandVec []float32,
	propEmbs map[string]domain.Embedding,
	degraded bool,
) []domain.RankedProperty {
	ranked := make([]domain.RankedProperty, 0, len(candidates))

	for i := range candidates {
		p := candidates[i]

		if !degraded {
			if emb, ok := propEmbs[p.ID]; ok {
				if vec, current := s.syncer.CurrentPropertyVector(&p, &emb); current {
					cos, err := domain.CosineSimilarity(demandVec, vec)
					if err == nil {
						score := domain.SimilarityScore(cos)
						ranked = append(ranked, domain.RankedProperty{
							Property:    p,
							Score:       score,
							Explanation: explainSemantic(score, &p, c),
							Semantic:    true,
						})
						continue
					}
					s.logger.Error("Incompatible candidate vector",
						zap.String("property_id", p.ID), zap.Error(err))
				}
			}
		}

		// No current embedding: score by constraint proximity so a useful
		// list is still produced.
		score := constraintScore(&p, c)
		ranked = append(ranked, domain.RankedProperty{
			Property:    p,
			Score:       score,
			Explanation: explainConstraint(&p, c),
			Semantic:    false,
		})
	}

	return ranked
}

// partition splits ranked entries at the threshold, sorts each side by score
// descending with listing recency as tie-break, and caps recommendations.
func (s *Service) partition(ranked []domain.RankedProperty) domain.MatchResult {
	var result domain.MatchResult

	for i := range ranked {
		if ranked[i].Score >= s.threshold {
			ranked[i].Kind = domain.KindMatch
			result.Matches = append(result.Matches, ranked[i])
		} else {
			ranked[i].Kind = domain.KindRecommendation
			result.Recommendations = append(result.Recommendations, ranked[i])
		}
	}

	sortRanked(result.Matches)
	sortRanked(result.Recommendations)

	if len(result.Recommendations) > s.maxRecs {
		result.Recommendations = result.Recommendations[:s.maxRecs]
	}

	return result
}

func sortRanked(entries []domain.RankedProperty) {
	sort.SliceStable(entries, func(i, j int) bool {
		if entries[i].Score != entries[j].Score {
			return entries[i].Score > entries[j].Score
		}
		return entries[i].Property.CreatedAt.After(entries[j].Property.CreatedAt)
	})
}

func (s *Service) persist(ctx context.Context, demandID string, result domain.MatchResult) {
	records := make([]domain.Match, 0, len(result.Matches)+len(result.Recommendations))
	for _, lists := range [][]domain.RankedProperty{result.Matches, result.Recommendations} {
		for _, r := range lists {
			records = append(records, domain.Match{
				ID:          uuid.NewString(),
				DemandID:    demandID,
				PropertyID:  r.Property.ID,
				Score:       r.Score,
				Kind:        r.Kind,
				Explanation: r.Explanation,
			})
		}
	}

	if err := s.store.ReplaceForDemand(ctx, demandID, records); err != nil {
		s.logger.Warn("Failed to persist match records",
			zap.String("demand_id", demandID),
			zap.Int("records", len(records)),
			zap.Error(err))
	}
}
