package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/cigarlens/backend/internal/domain"
)

const entryColumns = `e.id, e.brand_id, e.brand, e.name, e.normalized_brand, e.normalized_name,
	e.search_keywords_json, e.size, e.origin, e.wrapper, e.binder, e.filler, e.strength,
	e.flavor_profile_json, e.tasting_notes_json, e.description, e.rating, e.rating_source,
	e.images_json, e.created_at, e.updated_at,
	s.key, s.total_scans, s.successful_scans, s.detailed_scans, s.average_confidence,
	s.image_success_rate, s.last_scanned_at`

const entryFrom = `FROM catalog_entries e
	LEFT JOIN recognition_stats s ON s.key = e.normalized_brand || '_' || e.normalized_name`

func scanEntry(scanner rowScanner) (*domain.CatalogEntry, error) {
	var (
		entry                                 domain.CatalogEntry
		brandID, size, origin                 sql.NullString
		wrapper, binder, filler, strength     sql.NullString
		keywords, flavors, notes, images      sql.NullString
		description, ratingSource             sql.NullString
		rating                                sql.NullFloat64
		createdRaw, updatedRaw                sql.NullString
		statsKey, lastScanned                 sql.NullString
		totalScans, successScans, detailScans sql.NullInt64
		avgConfidence, imageRate              sql.NullFloat64
	)

	if err := scanner.Scan(
		&entry.ID, &brandID, &entry.Brand, &entry.Name, &entry.NormalizedBrand, &entry.NormalizedName,
		&keywords, &size, &origin, &wrapper, &binder, &filler, &strength,
		&flavors, &notes, &description, &rating, &ratingSource,
		&images, &createdRaw, &updatedRaw,
		&statsKey, &totalScans, &successScans, &detailScans, &avgConfidence,
		&imageRate, &lastScanned,
	); err != nil {
		return nil, err
	}

	entry.BrandID = brandID.String
	entry.Size = size.String
	entry.Origin = origin.String
	entry.Wrapper = wrapper.String
	entry.Binder = binder.String
	entry.Filler = filler.String
	entry.Strength = domain.Strength(strength.String)
	entry.Description = description.String
	entry.RatingSource = ratingSource.String
	if rating.Valid {
		r := rating.Float64
		entry.Rating = &r
	}
	decodeJSON(keywords, &entry.SearchKeywords)
	decodeJSON(flavors, &entry.FlavorProfile)
	decodeJSON(notes, &entry.TastingNotes)
	decodeJSON(images, &entry.Images)
	entry.CreatedAt = parseTime(createdRaw)
	entry.UpdatedAt = parseTime(updatedRaw)

	if statsKey.Valid {
		entry.Stats = &domain.RecognitionStats{
			Key:               statsKey.String,
			TotalScans:        totalScans.Int64,
			SuccessfulScans:   successScans.Int64,
			DetailedScans:     detailScans.Int64,
			AverageConfidence: avgConfidence.Float64,
			ImageSuccessRate:  imageRate.Float64,
			LastScannedAt:     parseTime(lastScanned),
		}
	}

	return &entry, nil
}

// FindByNormalized returns the entry whose normalized brand and name equal the arguments.
func (s *Store) FindByNormalized(ctx context.Context, normalizedBrand, normalizedName string) (*domain.CatalogEntry, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT "+entryColumns+" "+entryFrom+" WHERE e.normalized_brand = ? AND e.normalized_name = ?",
		normalizedBrand, normalizedName)

	entry, err := scanEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find catalog entry: %w", err)
	}
	return entry, nil
}

// FindByKeywords returns every entry sharing any of the first ten keywords,
// most shared keywords first, then by id.
func (s *Store) FindByKeywords(ctx context.Context, keywords []string) ([]*domain.CatalogEntry, error) {
	if len(keywords) == 0 {
		return nil, nil
	}
	if len(keywords) > domain.MaxKeywordQuery {
		keywords = keywords[:domain.MaxKeywordQuery]
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(keywords)), ",")
	args := make([]any, 0, len(keywords))
	for _, k := range keywords {
		args = append(args, k)
	}

	rows, err := s.db.QueryContext(ctx,
		"SELECT "+entryColumns+" "+entryFrom+
			" JOIN (SELECT entry_id, COUNT(*) AS hits FROM catalog_keywords"+
			" WHERE keyword IN ("+placeholders+") GROUP BY entry_id) k ON k.entry_id = e.id"+
			" ORDER BY k.hits DESC, e.id",
		args...)
	if err != nil {
		return nil, fmt.Errorf("query catalog keywords: %w", err)
	}
	defer rows.Close()

	var entries []*domain.CatalogEntry
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("scan catalog entry: %w", err)
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

// GetEntry reads one entry by id.
func (s *Store) GetEntry(ctx context.Context, id string) (*domain.CatalogEntry, error) {
	row := s.db.QueryRowContext(ctx, "SELECT "+entryColumns+" "+entryFrom+" WHERE e.id = ?", id)
	entry, err := scanEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get catalog entry: %w", err)
	}
	return entry, nil
}

// CreateEntry inserts entry, filling id, normalized keys, keywords and timestamps when empty.
// A second entry with the same normalized key fails with domain.ErrDuplicateEntry.
func (s *Store) CreateEntry(ctx context.Context, entry *domain.CatalogEntry) error {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.NormalizedBrand == "" {
		entry.NormalizedBrand = domain.Normalize(entry.Brand)
	}
	if entry.NormalizedName == "" {
		entry.NormalizedName = domain.Normalize(entry.Name)
	}
	if len(entry.SearchKeywords) == 0 {
		entry.SearchKeywords = domain.SearchKeywords(entry.Brand, entry.Name)
	}
	now := s.now()
	entry.CreatedAt = now
	entry.UpdatedAt = now

	args, err := entryArgs(entry)
	if err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin create entry: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO catalog_entries (
			brand_id, brand, name, normalized_brand, normalized_name, search_keywords_json,
			size, origin, wrapper, binder, filler, strength, flavor_profile_json,
			tasting_notes_json, description, rating, rating_source, images_json,
			updated_at, id, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		append(args, entry.ID, formatTime(entry.CreatedAt))...)
	if isUniqueViolation(err) {
		return fmt.Errorf("%w: %s/%s", domain.ErrDuplicateEntry, entry.NormalizedBrand, entry.NormalizedName)
	}
	if err != nil {
		return fmt.Errorf("insert catalog entry: %w", err)
	}

	if err := replaceKeywords(ctx, tx, entry.ID, entry.SearchKeywords); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit create entry: %w", err)
	}
	return nil
}

// UpdateEntry overwrites the mutable fields of an existing entry.
func (s *Store) UpdateEntry(ctx context.Context, entry *domain.CatalogEntry) error {
	entry.UpdatedAt = s.now()
	args, err := entryArgs(entry)
	if err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin update entry: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	res, err := tx.ExecContext(ctx,
		`UPDATE catalog_entries SET
			brand_id = ?, brand = ?, name = ?, normalized_brand = ?, normalized_name = ?,
			search_keywords_json = ?, size = ?, origin = ?, wrapper = ?, binder = ?, filler = ?,
			strength = ?, flavor_profile_json = ?, tasting_notes_json = ?, description = ?,
			rating = ?, rating_source = ?, images_json = ?, updated_at = ?
		WHERE id = ?`,
		append(args, entry.ID)...)
	if isUniqueViolation(err) {
		return fmt.Errorf("%w: %s/%s", domain.ErrDuplicateEntry, entry.NormalizedBrand, entry.NormalizedName)
	}
	if err != nil {
		return fmt.Errorf("update catalog entry: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.ErrNotFound
	}

	if err := replaceKeywords(ctx, tx, entry.ID, entry.SearchKeywords); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit update entry: %w", err)
	}
	return nil
}

// entryArgs returns the column values shared by insert and update, ending with updated_at.
func entryArgs(entry *domain.CatalogEntry) ([]any, error) {
	keywords, err := encodeJSON(entry.SearchKeywords)
	if err != nil {
		return nil, fmt.Errorf("encode keywords: %w", err)
	}
	flavors, err := encodeJSON(entry.FlavorProfile)
	if err != nil {
		return nil, fmt.Errorf("encode flavor profile: %w", err)
	}
	notes, err := encodeJSON(entry.TastingNotes)
	if err != nil {
		return nil, fmt.Errorf("encode tasting notes: %w", err)
	}
	images, err := encodeJSON(entry.Images)
	if err != nil {
		return nil, fmt.Errorf("encode images: %w", err)
	}

	return []any{
		nullableString(entry.BrandID), entry.Brand, entry.Name, entry.NormalizedBrand, entry.NormalizedName,
		keywords, nullableString(entry.Size), nullableString(entry.Origin), nullableString(entry.Wrapper),
		nullableString(entry.Binder), nullableString(entry.Filler), nullableString(string(entry.Strength)),
		flavors, notes, nullableString(entry.Description), nullableFloat(entry.Rating),
		nullableString(entry.RatingSource), images, formatTime(entry.UpdatedAt),
	}, nil
}

func replaceKeywords(ctx context.Context, tx *sql.Tx, entryID string, keywords []string) error {
	if _, err := tx.ExecContext(ctx, "DELETE FROM catalog_keywords WHERE entry_id = ?", entryID); err != nil {
		return fmt.Errorf("clear keywords: %w", err)
	}
	for _, k := range keywords {
		if _, err := tx.ExecContext(ctx,
			"INSERT OR IGNORE INTO catalog_keywords (entry_id, keyword) VALUES (?, ?)", entryID, k); err != nil {
			return fmt.Errorf("insert keyword: %w", err)
		}
	}
	return nil
}
