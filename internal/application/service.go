// Package application implements the score service use cases on top of the
// engine, the collectors, and the storage layers.
package application

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/aimaneth/blitzproof/internal/cache"
	"github.com/aimaneth/blitzproof/internal/collect"
	"github.com/aimaneth/blitzproof/internal/persistence"
	"github.com/aimaneth/blitzproof/internal/score"
	"github.com/aimaneth/blitzproof/internal/telemetry/metrics"
)

// ValidationError marks an admin payload the service refuses to store.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// Notifier receives score change events. The websocket hub implements it;
// a nil notifier is valid and drops events.
type Notifier interface {
	ScoreUpdated(s score.BlitzProofScore)
}

// CombinedData is the score and metadata bundle served by the combined
// endpoint. Info is nil when no metadata row exists.
type CombinedData struct {
	Score score.BlitzProofScore  `json:"score"`
	Info  *persistence.TokenInfo `json:"info,omitempty"`
}

// ScoreService implements the read, recalculation, and admin paths.
type ScoreService struct {
	engine    *score.Engine
	collector *collect.Aggregator
	repos     *persistence.Repository
	cache     *cache.Cache
	notifier  Notifier
	now       func() time.Time
}

// NewScoreService wires the service. The cache and notifier may be nil;
// the service then runs uncached and silent.
func NewScoreService(engine *score.Engine, collector *collect.Aggregator, repos *persistence.Repository, c *cache.Cache, notifier Notifier) *ScoreService {
	return &ScoreService{
		engine:    engine,
		collector: collector,
		repos:     repos,
		cache:     c,
		notifier:  notifier,
		now:       time.Now,
	}
}

// GetScore serves the three-tier read path: cache, then store, then a full
// computation with write-through.
func (s *ScoreService) GetScore(ctx context.Context, tokenID string) (score.BlitzProofScore, error) {
	if s.cache != nil {
		if cached, ok := s.cache.GetScore(ctx, tokenID); ok {
			return cached, nil
		}
	}

	stored, err := s.repos.Scores.Get(ctx, tokenID)
	if err == nil {
		if s.cache != nil {
			s.cache.SetScore(ctx, stored)
		}
		return stored, nil
	}
	if !errors.Is(err, persistence.ErrNotFound) {
		return score.BlitzProofScore{}, fmt.Errorf("load score for %s: %w", tokenID, err)
	}

	return s.compute(ctx, tokenID, "")
}

// Recalculate forces a fresh computation, bypassing both read tiers. A
// non-empty contractAddress overrides the metadata lookup for the security
// collector.
func (s *ScoreService) Recalculate(ctx context.Context, tokenID, contractAddress string) (score.BlitzProofScore, error) {
	if s.cache != nil {
		s.cache.DeleteScore(ctx, tokenID)
	}
	return s.compute(ctx, tokenID, contractAddress)
}

// compute collects raw data, scores it, persists the result, and fills the
// cache. Collectors never fail, so the only error path is storage.
func (s *ScoreService) compute(ctx context.Context, tokenID, contractAddress string) (score.BlitzProofScore, error) {
	start := s.now()

	if contractAddress == "" {
		contractAddress = s.contractAddress(ctx, tokenID)
	}
	raw := s.collector.Collect(ctx, tokenID, contractAddress)
	computed := s.engine.Compute(raw)

	result := score.BlitzProofScore{
		TokenID:      tokenID,
		OverallScore: computed.OverallScore,
		Rating:       computed.Rating,
		Categories:   computed.Categories,
		Summary:      computed.Summary,
		LastUpdated:  s.now().UTC(),
		UpdatedBy:    score.SystemActor,
	}

	if err := s.repos.Scores.Upsert(ctx, result); err != nil {
		return score.BlitzProofScore{}, fmt.Errorf("persist score for %s: %w", tokenID, err)
	}
	metrics.Default().RecordScoreWrite("system")

	if s.cache != nil {
		s.cache.SetScore(ctx, result)
	}

	duration := s.now().Sub(start)
	metrics.Default().ObserveComputeDuration(duration)
	log.Info().
		Str("token_id", tokenID).
		Int("overall_score", result.OverallScore).
		Str("rating", string(result.Rating)).
		Dur("duration", duration).
		Msg("Score computed")

	s.notify(result)
	return result, nil
}

// contractAddress resolves the token's contract address from metadata,
// best effort. Security scoring degrades to unaudited without it.
func (s *ScoreService) contractAddress(ctx context.Context, tokenID string) string {
	if s.cache != nil {
		if info, ok := s.cache.GetInfo(ctx, tokenID); ok {
			return info.ContractAddress
		}
	}

	info, err := s.repos.TokenInfo.Get(ctx, tokenID)
	if err != nil {
		if !errors.Is(err, persistence.ErrNotFound) {
			log.Warn().Err(err).Str("token_id", tokenID).Msg("Contract address lookup failed")
		}
		return ""
	}
	return info.ContractAddress
}

// UpdateScore stores an admin-authored score. The write is a plain insert:
// overwriting an existing row through this path is rejected with
// persistence.ErrDuplicate.
func (s *ScoreService) UpdateScore(ctx context.Context, in score.BlitzProofScore) (score.BlitzProofScore, error) {
	if err := validateScore(in); err != nil {
		return score.BlitzProofScore{}, err
	}

	in.LastUpdated = s.now().UTC()
	if in.UpdatedBy == "" {
		in.UpdatedBy = "admin"
	}

	if err := s.repos.Scores.Insert(ctx, in); err != nil {
		return score.BlitzProofScore{}, err
	}
	metrics.Default().RecordScoreWrite("admin")

	// Invalidate regardless of whether the cache held the token, so the
	// next read serves the admin row.
	if s.cache != nil {
		s.cache.DeleteScore(ctx, in.TokenID)
	}

	log.Info().
		Str("token_id", in.TokenID).
		Str("updated_by", in.UpdatedBy).
		Int("overall_score", in.OverallScore).
		Msg("Admin score stored")

	s.notify(in)
	return in, nil
}

// GetCombined loads the score and the token metadata concurrently.
func (s *ScoreService) GetCombined(ctx context.Context, tokenID string) (CombinedData, error) {
	var (
		wg       sync.WaitGroup
		sc       score.BlitzProofScore
		scoreErr error
		info     persistence.TokenInfo
		infoErr  error
	)

	wg.Add(2)
	go func() {
		defer wg.Done()
		sc, scoreErr = s.GetScore(ctx, tokenID)
	}()
	go func() {
		defer wg.Done()
		info, infoErr = s.GetInfo(ctx, tokenID)
	}()
	wg.Wait()

	if scoreErr != nil {
		return CombinedData{}, scoreErr
	}

	combined := CombinedData{Score: sc}
	switch {
	case infoErr == nil:
		combined.Info = &info
	case errors.Is(infoErr, persistence.ErrNotFound):
		// Metadata is optional.
	default:
		return CombinedData{}, infoErr
	}

	return combined, nil
}

// GetInfo loads token metadata through the cache.
func (s *ScoreService) GetInfo(ctx context.Context, tokenID string) (persistence.TokenInfo, error) {
	if s.cache != nil {
		if info, ok := s.cache.GetInfo(ctx, tokenID); ok {
			return info, nil
		}
	}

	info, err := s.repos.TokenInfo.Get(ctx, tokenID)
	if err != nil {
		return persistence.TokenInfo{}, err
	}

	if s.cache != nil {
		s.cache.SetInfo(ctx, info)
	}
	return info, nil
}

// UpdateInfo stores curated token metadata and invalidates its cache entry.
func (s *ScoreService) UpdateInfo(ctx context.Context, info persistence.TokenInfo) (persistence.TokenInfo, error) {
	if info.TokenID == "" {
		return persistence.TokenInfo{}, &ValidationError{Field: "token_id", Reason: "must not be empty"}
	}

	info.UpdatedAt = s.now().UTC()
	if err := s.repos.TokenInfo.Upsert(ctx, info); err != nil {
		return persistence.TokenInfo{}, err
	}

	if s.cache != nil {
		s.cache.DeleteInfo(ctx, info.TokenID)
	}
	return info, nil
}

// DeleteTokenData removes the score row, the metadata row, and both cache
// entries. Each step is attempted even when an earlier one fails; the
// first storage error is reported.
func (s *ScoreService) DeleteTokenData(ctx context.Context, tokenID string) error {
	var firstErr error

	if err := s.repos.Scores.Delete(ctx, tokenID); err != nil {
		firstErr = err
		log.Error().Err(err).Str("token_id", tokenID).Msg("Score row deletion failed")
	}
	if err := s.repos.TokenInfo.Delete(ctx, tokenID); err != nil {
		if firstErr == nil {
			firstErr = err
		}
		log.Error().Err(err).Str("token_id", tokenID).Msg("Token info deletion failed")
	}

	if s.cache != nil {
		s.cache.DeleteScore(ctx, tokenID)
		s.cache.DeleteInfo(ctx, tokenID)
	}

	return firstErr
}

func (s *ScoreService) notify(sc score.BlitzProofScore) {
	if s.notifier != nil {
		s.notifier.ScoreUpdated(sc)
	}
}

// validateScore bounds-checks an admin payload.
func validateScore(in score.BlitzProofScore) error {
	if in.TokenID == "" {
		return &ValidationError{Field: "token_id", Reason: "must not be empty"}
	}
	if in.OverallScore < 0 || in.OverallScore > 100 {
		return &ValidationError{Field: "overall_score", Reason: "must be between 0 and 100"}
	}
	if in.Rating == "" {
		return &ValidationError{Field: "rating", Reason: "must not be empty"}
	}
	for field, v := range map[string]int{
		"categories.code_security": in.Categories.CodeSecurity,
		"categories.market":        in.Categories.Market,
		"categories.governance":    in.Categories.Governance,
		"categories.fundamental":   in.Categories.Fundamental,
		"categories.community":     in.Categories.Community,
		"categories.operational":   in.Categories.Operational,
	} {
		if v < 0 || v > 100 {
			return &ValidationError{Field: field, Reason: "must be between 0 and 100"}
		}
	}
	for field, v := range map[string]int{
		"summary.verified":      in.Summary.Verified,
		"summary.informational": in.Summary.Informational,
		"summary.warnings":      in.Summary.Warnings,
		"summary.critical":      in.Summary.Critical,
	} {
		if v < 0 {
			return &ValidationError{Field: field, Reason: "must not be negative"}
		}
	}
	return nil
}
