package usecase

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/cigarlens/backend/internal/domain"
)

// Reconciliation outcomes reported to metrics
const (
	reconcileCreated = "created"
	reconcileMerged  = "merged"
	reconcileMatched = "matched"
	reconcileFailed  = "failed"
)

// ReconciliationService attaches recognition results to the catalog, merging
// missing fields into existing entries or creating new brand and catalog entries.
// Existing non-empty fields are never overwritten.
type ReconciliationService struct {
	catalog domain.CatalogRepository
	brands  domain.BrandRepository
	matcher *CatalogMatcher
	metrics Metrics
	logger  *zap.Logger
}

// NewReconciliationService creates a new reconciliation service
func NewReconciliationService(catalog domain.CatalogRepository, brands domain.BrandRepository, matcher *CatalogMatcher, metrics Metrics, logger *zap.Logger) *ReconciliationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ReconciliationService{
		catalog: catalog,
		brands:  brands,
		matcher: matcher,
		metrics: metricsOrNop(metrics),
		logger:  logger.Named("reconciliation"),
	}
}

// Reconcile merges result into the catalog. imageURL overrides result.ImageURL when set.
// DataComplete in the outcome describes the matched entry before any merge.
func (s *ReconciliationService) Reconcile(ctx context.Context, result *domain.RecognitionResult, imageURL string) (*domain.ReconcileOutcome, error) {
	if result == nil || (result.Brand == "" && result.Name == "") {
		return nil, fmt.Errorf("%w: result has neither brand nor name", domain.ErrInvalidRequest)
	}
	if imageURL == "" {
		imageURL = result.ImageURL
	}

	outcome, err := s.reconcile(ctx, result, imageURL)
	if err != nil {
		s.metrics.Reconciliation(reconcileFailed)
		return nil, err
	}

	switch {
	case outcome.Created:
		s.metrics.Reconciliation(reconcileCreated)
	case outcome.Updated:
		s.metrics.Reconciliation(reconcileMerged)
	default:
		s.metrics.Reconciliation(reconcileMatched)
	}
	return outcome, nil
}

func (s *ReconciliationService) reconcile(ctx context.Context, result *domain.RecognitionResult, imageURL string) (*domain.ReconcileOutcome, error) {
	existing, err := s.matcher.FindExact(ctx, result.Brand, result.Name)
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		return nil, fmt.Errorf("find catalog entry: %w", err)
	}

	brand, err := s.ensureBrand(ctx, result)
	if err != nil {
		return nil, err
	}

	if existing != nil {
		return s.mergeExisting(ctx, existing, brand, result, imageURL)
	}

	entry := newCatalogEntry(result, brand, imageURL)
	if err := s.catalog.CreateEntry(ctx, entry); err != nil {
		if !errors.Is(err, domain.ErrDuplicateEntry) {
			return nil, fmt.Errorf("create catalog entry: %w", err)
		}
		// Another request created the entry after our lookup
		existing, err = s.matcher.FindExact(ctx, result.Brand, result.Name)
		if err != nil {
			return nil, fmt.Errorf("reload duplicate catalog entry: %w", err)
		}
		s.logger.Info("catalog entry created concurrently, merging instead", zap.String("id", existing.ID))
		return s.mergeExisting(ctx, existing, brand, result, imageURL)
	}

	if brand != nil {
		brand.CigarCount++
		if err := s.brands.UpdateBrand(ctx, brand); err != nil {
			s.logger.Warn("failed to update brand cigar count", zap.String("brand", brand.Name), zap.Error(err))
		}
	}

	s.logger.Info("created catalog entry",
		zap.String("id", entry.ID),
		zap.String("brand", entry.Brand),
		zap.String("name", entry.Name),
		zap.String("size", entry.Size))

	return &domain.ReconcileOutcome{
		Matched:      false,
		DataComplete: DataComplete(entry),
		BrandID:      entry.BrandID,
		CatalogIDs:   []string{entry.ID},
		Entries:      []*domain.CatalogEntry{entry},
		Created:      true,
	}, nil
}

// mergeExisting backfills an incomplete entry and leaves a complete one untouched.
func (s *ReconciliationService) mergeExisting(ctx context.Context, existing *domain.CatalogEntry, brand *domain.BrandEntry, result *domain.RecognitionResult, imageURL string) (*domain.ReconcileOutcome, error) {
	complete := DataComplete(existing)
	outcome := &domain.ReconcileOutcome{
		Matched:      true,
		DataComplete: complete,
		BrandID:      existing.BrandID,
		CatalogIDs:   []string{existing.ID},
		Entries:      []*domain.CatalogEntry{existing},
	}

	if complete {
		return outcome, nil
	}

	changed := MergeInto(existing, result, imageURL)
	if existing.BrandID == "" && brand != nil {
		existing.BrandID = brand.ID
		changed = true
	}
	if !changed {
		return outcome, nil
	}

	if err := s.catalog.UpdateEntry(ctx, existing); err != nil {
		return nil, fmt.Errorf("update catalog entry: %w", err)
	}
	s.matcher.Invalidate(ctx, existing.Brand, existing.Name)
	s.matcher.Invalidate(ctx, result.Brand, result.Name)

	s.logger.Info("merged recognition into catalog entry", zap.String("id", existing.ID))
	outcome.BrandID = existing.BrandID
	outcome.Updated = true
	return outcome, nil
}

// ensureBrand finds or creates the brand of result, backfilling empty brand fields.
// A result without a brand yields nil.
func (s *ReconciliationService) ensureBrand(ctx context.Context, result *domain.RecognitionResult) (*domain.BrandEntry, error) {
	normalized := domain.Normalize(result.Brand)
	if normalized == "" {
		return nil, nil
	}

	brand, err := s.brands.FindBrand(ctx, normalized)
	switch {
	case err == nil:
		if backfillBrand(brand, result) {
			if err := s.brands.UpdateBrand(ctx, brand); err != nil {
				return nil, fmt.Errorf("update brand: %w", err)
			}
		}
		return brand, nil
	case !errors.Is(err, domain.ErrNotFound):
		return nil, fmt.Errorf("find brand: %w", err)
	}

	brand = &domain.BrandEntry{Name: result.Brand, NormalizedName: normalized}
	backfillBrand(brand, result)
	fillString(&brand.Country, result.Origin)
	if err := s.brands.CreateBrand(ctx, brand); err != nil {
		if !errors.Is(err, domain.ErrDuplicateEntry) {
			return nil, fmt.Errorf("create brand: %w", err)
		}
		return s.brands.FindBrand(ctx, normalized)
	}
	return brand, nil
}

// backfillBrand copies brand info into empty brand fields and reports whether anything changed.
func backfillBrand(brand *domain.BrandEntry, result *domain.RecognitionResult) bool {
	info := result.BrandInfo
	if info == nil {
		return false
	}
	changed := fillString(&brand.Country, info.Country)
	changed = fillString(&brand.Description, info.Description) || changed
	if brand.FoundedYear == 0 && info.FoundedYear > 0 {
		brand.FoundedYear = info.FoundedYear
		changed = true
	}
	return changed
}

// DataComplete reports whether entry has brand, name, origin and strength plus at least
// one of description, flavor tags or images.
func DataComplete(entry *domain.CatalogEntry) bool {
	if entry.Brand == "" || entry.Name == "" || entry.Origin == "" || !entry.Strength.Known() {
		return false
	}
	return entry.Description != "" || len(entry.FlavorProfile) > 0 || len(entry.Images) > 0
}

// MergeInto fills empty fields of entry from result and appends imageURL when new.
// Non-empty fields are never changed. It reports whether entry changed.
func MergeInto(entry *domain.CatalogEntry, result *domain.RecognitionResult, imageURL string) bool {
	changed := fillString(&entry.Origin, result.Origin)
	if entry.Size == "" {
		changed = fillString(&entry.Size, ExtractSize(result.Brand, result.Name, result.Size)) || changed
	}
	changed = fillString(&entry.Wrapper, deref(result.Wrapper)) || changed
	changed = fillString(&entry.Binder, deref(result.Binder)) || changed
	changed = fillString(&entry.Filler, deref(result.Filler)) || changed
	changed = fillString(&entry.Description, result.Description) || changed

	if !entry.Strength.Known() && result.Strength.Known() {
		entry.Strength = result.Strength
		changed = true
	}
	if len(entry.FlavorProfile) == 0 && len(result.FlavorProfile) > 0 {
		entry.FlavorProfile = append([]string(nil), result.FlavorProfile...)
		changed = true
	}
	changed = fillList(&entry.TastingNotes.FirstThird, result.TastingNotes.FirstThird) || changed
	changed = fillList(&entry.TastingNotes.SecondThird, result.TastingNotes.SecondThird) || changed
	changed = fillList(&entry.TastingNotes.FinalThird, result.TastingNotes.FinalThird) || changed

	if entry.Rating == nil && result.Rating != nil && result.RatingSource != "" {
		rating := *result.Rating
		entry.Rating = &rating
		entry.RatingSource = result.RatingSource
		changed = true
	}

	if imageURL != "" && !entry.HasImage(imageURL) {
		entry.Images = append(entry.Images, imageURL)
		changed = true
	}
	return changed
}

// newCatalogEntry builds the entry created for an unseen product.
func newCatalogEntry(result *domain.RecognitionResult, brand *domain.BrandEntry, imageURL string) *domain.CatalogEntry {
	entry := &domain.CatalogEntry{
		Brand:         result.Brand,
		Name:          result.Name,
		Size:          ExtractSize(result.Brand, result.Name, result.Size),
		Origin:        result.Origin,
		Wrapper:       deref(result.Wrapper),
		Binder:        deref(result.Binder),
		Filler:        deref(result.Filler),
		Strength:      result.Strength,
		FlavorProfile: append([]string(nil), result.FlavorProfile...),
		TastingNotes:  result.TastingNotes,
		Description:   result.Description,
	}
	if entry.Name == "" {
		entry.Name = result.Brand
	}
	if !entry.Strength.Known() {
		entry.Strength = domain.StrengthUnknown
	}
	if brand != nil {
		entry.BrandID = brand.ID
	}
	if result.Rating != nil && result.RatingSource != "" {
		rating := *result.Rating
		entry.Rating = &rating
		entry.RatingSource = result.RatingSource
	}
	if imageURL != "" {
		entry.Images = []string{imageURL}
	}
	return entry
}

func fillString(dst *string, v string) bool {
	if *dst != "" || v == "" {
		return false
	}
	*dst = v
	return true
}

func fillList(dst *[]string, v []string) bool {
	if len(*dst) > 0 || len(v) == 0 {
		return false
	}
	*dst = append([]string(nil), v...)
	return true
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
