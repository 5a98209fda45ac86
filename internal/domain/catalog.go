package domain

import (
	"slices"
	"time"
)

// CatalogEntry is one size-variant of a product in the catalog
type CatalogEntry struct {
	ID              string            `json:"id"`
	BrandID         string            `json:"brandId,omitempty"`
	Brand           string            `json:"brand"`
	Name            string            `json:"name"`
	NormalizedBrand string            `json:"normalizedBrand"`
	NormalizedName  string            `json:"normalizedName"`
	SearchKeywords  []string          `json:"searchKeywords"`
	Size            string            `json:"size,omitempty"`
	Origin          string            `json:"origin,omitempty"`
	Wrapper         string            `json:"wrapper,omitempty"`
	Binder          string            `json:"binder,omitempty"`
	Filler          string            `json:"filler,omitempty"`
	Strength        Strength          `json:"strength,omitempty"`
	FlavorProfile   []string          `json:"flavorProfile,omitempty"`
	TastingNotes    TastingNotes      `json:"tastingNotes"`
	Description     string            `json:"description,omitempty"`
	Rating          *float64          `json:"rating,omitempty"`
	RatingSource    string            `json:"ratingSource,omitempty"`
	Images          []string          `json:"images,omitempty"`
	Stats           *RecognitionStats `json:"stats,omitempty"`
	CreatedAt       time.Time         `json:"createdAt"`
	UpdatedAt       time.Time         `json:"updatedAt"`
}

// HasImage reports whether url is already in the image list.
func (e *CatalogEntry) HasImage(url string) bool {
	for _, img := range e.Images {
		if img == url {
			return true
		}
	}
	return false
}

// Clone returns a deep copy of the entry.
func (e *CatalogEntry) Clone() *CatalogEntry {
	if e == nil {
		return nil
	}
	c := *e
	c.SearchKeywords = slices.Clone(e.SearchKeywords)
	c.FlavorProfile = slices.Clone(e.FlavorProfile)
	c.Images = slices.Clone(e.Images)
	c.TastingNotes = TastingNotes{
		FirstThird:  slices.Clone(e.TastingNotes.FirstThird),
		SecondThird: slices.Clone(e.TastingNotes.SecondThird),
		FinalThird:  slices.Clone(e.TastingNotes.FinalThird),
	}
	if e.Rating != nil {
		rating := *e.Rating
		c.Rating = &rating
	}
	if e.Stats != nil {
		stats := *e.Stats
		c.Stats = &stats
	}
	return &c
}

// BrandEntry is brand-level metadata
type BrandEntry struct {
	ID             string    `json:"id"`
	Name           string    `json:"name"`
	NormalizedName string    `json:"normalizedName"`
	Country        string    `json:"country,omitempty"`
	Description    string    `json:"description,omitempty"`
	FoundedYear    int       `json:"foundedYear,omitempty"`
	CigarCount     int       `json:"cigarCount"`
	CreatedAt      time.Time `json:"createdAt"`
	UpdatedAt      time.Time `json:"updatedAt"`
}

// RecognitionStats are running recognition statistics for one catalog key
type RecognitionStats struct {
	Key               string    `json:"key"`
	TotalScans        int64     `json:"totalScans"`
	SuccessfulScans   int64     `json:"successfulScans"`
	DetailedScans     int64     `json:"detailedScans"`
	AverageConfidence float64   `json:"averageConfidence"`
	ImageSuccessRate  float64   `json:"imageSuccessRate"`
	LastScannedAt     time.Time `json:"lastScannedAt"`
}

// FuzzyMatch is a scored fuzzy catalog candidate
type FuzzyMatch struct {
	Entry      *CatalogEntry `json:"entry"`
	Similarity float64       `json:"similarity"`
}

// ReconcileOutcome is the effective set of records after reconciliation
type ReconcileOutcome struct {
	Matched      bool            `json:"matched"`
	DataComplete bool            `json:"dataComplete"`
	BrandID      string          `json:"brandId"`
	CatalogIDs   []string        `json:"catalogIds"`
	Entries      []*CatalogEntry `json:"entries"`
	Updated      bool            `json:"updated"`
	Created      bool            `json:"created"`
}
