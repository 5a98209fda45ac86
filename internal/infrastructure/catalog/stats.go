package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/cigarlens/backend/internal/domain"
)

const statsColumns = "key, total_scans, successful_scans, detailed_scans, average_confidence, image_success_rate, last_scanned_at"

type rowScanner interface {
	Scan(dest ...any) error
}

func scanStats(row rowScanner) (*domain.RecognitionStats, error) {
	var (
		stats       domain.RecognitionStats
		lastScanned sql.NullString
	)
	if err := row.Scan(&stats.Key, &stats.TotalScans, &stats.SuccessfulScans, &stats.DetailedScans,
		&stats.AverageConfidence, &stats.ImageSuccessRate, &lastScanned); err != nil {
		return nil, err
	}
	stats.LastScannedAt = parseTime(lastScanned)
	return &stats, nil
}

// GetStats reads the statistics for key.
func (s *Store) GetStats(ctx context.Context, key string) (*domain.RecognitionStats, error) {
	stats, err := scanStats(s.db.QueryRowContext(ctx, "SELECT "+statsColumns+" FROM recognition_stats WHERE key = ?", key))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get stats: %w", err)
	}
	return stats, nil
}

// UpdateStats reads the current statistics for key, applies fn and writes the result in one transaction.
// A missing row starts from the zero value.
func (s *Store) UpdateStats(ctx context.Context, key string, fn func(*domain.RecognitionStats)) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin stats update: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	stats, err := scanStats(tx.QueryRowContext(ctx, "SELECT "+statsColumns+" FROM recognition_stats WHERE key = ?", key))
	switch {
	case errors.Is(err, sql.ErrNoRows):
		stats = &domain.RecognitionStats{Key: key}
	case err != nil:
		return fmt.Errorf("read stats: %w", err)
	}

	fn(stats)
	stats.Key = key

	var lastScanned sql.NullString
	if !stats.LastScannedAt.IsZero() {
		lastScanned = sql.NullString{String: formatTime(stats.LastScannedAt), Valid: true}
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO recognition_stats (`+statsColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET
			total_scans = excluded.total_scans,
			successful_scans = excluded.successful_scans,
			detailed_scans = excluded.detailed_scans,
			average_confidence = excluded.average_confidence,
			image_success_rate = excluded.image_success_rate,
			last_scanned_at = excluded.last_scanned_at`,
		stats.Key, stats.TotalScans, stats.SuccessfulScans, stats.DetailedScans,
		stats.AverageConfidence, stats.ImageSuccessRate, lastScanned)
	if err != nil {
		return fmt.Errorf("write stats: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit stats update: %w", err)
	}
	return nil
}
