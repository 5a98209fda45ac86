package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/cigarlens/backend/internal/domain"
)

const brandColumns = "id, name, normalized_name, country, description, founded_year, cigar_count, created_at, updated_at"

func scanBrand(row *sql.Row) (*domain.BrandEntry, error) {
	var (
		brand                  domain.BrandEntry
		country, description   sql.NullString
		foundedYear            sql.NullInt64
		createdRaw, updatedRaw sql.NullString
	)
	if err := row.Scan(&brand.ID, &brand.Name, &brand.NormalizedName, &country, &description,
		&foundedYear, &brand.CigarCount, &createdRaw, &updatedRaw); err != nil {
		return nil, err
	}
	brand.Country = country.String
	brand.Description = description.String
	brand.FoundedYear = int(foundedYear.Int64)
	brand.CreatedAt = parseTime(createdRaw)
	brand.UpdatedAt = parseTime(updatedRaw)
	return &brand, nil
}

// FindBrand looks a brand up by its normalized name.
func (s *Store) FindBrand(ctx context.Context, normalizedName string) (*domain.BrandEntry, error) {
	row := s.db.QueryRowContext(ctx, "SELECT "+brandColumns+" FROM brands WHERE normalized_name = ?", normalizedName)
	brand, err := scanBrand(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find brand: %w", err)
	}
	return brand, nil
}

// CreateBrand inserts a brand, assigning an id and normalized name when missing.
func (s *Store) CreateBrand(ctx context.Context, brand *domain.BrandEntry) error {
	if brand.ID == "" {
		brand.ID = uuid.NewString()
	}
	if brand.NormalizedName == "" {
		brand.NormalizedName = domain.Normalize(brand.Name)
	}
	now := s.now()
	brand.CreatedAt = now
	brand.UpdatedAt = now

	_, err := s.db.ExecContext(ctx,
		"INSERT INTO brands ("+brandColumns+") VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)",
		brand.ID, brand.Name, brand.NormalizedName, nullableString(brand.Country),
		nullableString(brand.Description), nullableInt(brand.FoundedYear), brand.CigarCount,
		formatTime(brand.CreatedAt), formatTime(brand.UpdatedAt))
	if isUniqueViolation(err) {
		return fmt.Errorf("%w: brand %s", domain.ErrDuplicateEntry, brand.NormalizedName)
	}
	if err != nil {
		return fmt.Errorf("insert brand: %w", err)
	}
	return nil
}

// UpdateBrand overwrites the mutable brand fields.
func (s *Store) UpdateBrand(ctx context.Context, brand *domain.BrandEntry) error {
	brand.UpdatedAt = s.now()
	res, err := s.db.ExecContext(ctx,
		`UPDATE brands SET name = ?, country = ?, description = ?, founded_year = ?,
			cigar_count = ?, updated_at = ? WHERE id = ?`,
		brand.Name, nullableString(brand.Country), nullableString(brand.Description),
		nullableInt(brand.FoundedYear), brand.CigarCount, formatTime(brand.UpdatedAt), brand.ID)
	if err != nil {
		return fmt.Errorf("update brand: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.ErrNotFound
	}
	return nil
}
