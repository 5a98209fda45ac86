package usecase

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/cigarlens/backend/internal/domain"
)

// successConfidence is the confidence above which a scan counts as successful
const successConfidence = 0.5

// StatsTracker accumulates running recognition statistics per catalog key
type StatsTracker struct {
	repo   domain.StatsRepository
	now    domain.Clock
	logger *zap.Logger
}

// NewStatsTracker creates a new stats tracker. A nil clock uses time.Now.
func NewStatsTracker(repo domain.StatsRepository, now domain.Clock, logger *zap.Logger) *StatsTracker {
	if now == nil {
		now = time.Now
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StatsTracker{repo: repo, now: now, logger: logger.Named("stats")}
}

// Record folds one scan into the statistics for (brand, name).
// Failures are logged and never returned.
func (t *StatsTracker) Record(ctx context.Context, brand, name string, confidence float64, imageFound, hasDetails bool) {
	key := domain.CacheKey(brand, name)
	scannedAt := t.now()

	err := t.repo.UpdateStats(ctx, key, func(s *domain.RecognitionStats) {
		s.TotalScans++
		if confidence > successConfidence {
			s.SuccessfulScans++
		}
		if hasDetails {
			s.DetailedScans++
		}

		n := float64(s.TotalScans)
		s.AverageConfidence += (confidence - s.AverageConfidence) / n
		s.ImageSuccessRate += (boolToFloat(imageFound) - s.ImageSuccessRate) / n
		s.LastScannedAt = scannedAt
	})
	if err != nil {
		t.logger.Warn("failed to record recognition stats", zap.String("key", key), zap.Error(err))
	}
}

// GetStats reads the statistics for (brand, name).
func (t *StatsTracker) GetStats(ctx context.Context, brand, name string) (*domain.RecognitionStats, error) {
	return t.repo.GetStats(ctx, domain.CacheKey(brand, name))
}

func boolToFloat(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
