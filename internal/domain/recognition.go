package domain

import "strings"

// Strength is the body/strength class of a cigar
type Strength string

const (
	StrengthMild       Strength = "mild"
	StrengthMildMedium Strength = "mild-medium"
	StrengthMedium     Strength = "medium"
	StrengthMediumFull Strength = "medium-full"
	StrengthFull       Strength = "full"
	StrengthUnknown    Strength = "unknown"
)

// ParseStrength maps free-form strength text ("Medium to Full", "MEDIUM_FULL") onto the enumeration.
func ParseStrength(s string) Strength {
	v := strings.ToLower(strings.TrimSpace(s))
	v = strings.NewReplacer(" to ", "-", "_", "-", " ", "-", "/", "-").Replace(v)
	switch v {
	case "mild", "light":
		return StrengthMild
	case "mild-medium", "mild-to-medium", "light-medium":
		return StrengthMildMedium
	case "medium":
		return StrengthMedium
	case "medium-full", "medium-to-full":
		return StrengthMediumFull
	case "full", "strong", "full-bodied":
		return StrengthFull
	default:
		return StrengthUnknown
	}
}

// Known reports whether s carries information.
func (s Strength) Known() bool {
	return s != "" && s != StrengthUnknown
}

// TastingNotes holds notes for each third of the smoke
type TastingNotes struct {
	FirstThird  []string `json:"firstThird"`
	SecondThird []string `json:"secondThird"`
	FinalThird  []string `json:"finalThird"`
}

// Empty reports whether no third has notes.
func (t TastingNotes) Empty() bool {
	return len(t.FirstThird) == 0 && len(t.SecondThird) == 0 && len(t.FinalThird) == 0
}

// BrandInfo is brand-level metadata reported by a backend alongside a recognition
type BrandInfo struct {
	Country     string `json:"country,omitempty"`
	Description string `json:"description,omitempty"`
	FoundedYear int    `json:"foundedYear,omitempty"`
}

// RecognitionResult is the canonical output of one recognition pass.
// Catalog-verified results carry Confidence 1.0; inferred results stay at or below MaxInferredConfidence.
type RecognitionResult struct {
	Brand         string       `json:"brand"`
	Name          string       `json:"name"` // full product name including size
	Origin        string       `json:"origin"`
	Size          string       `json:"size"`
	FlavorProfile []string     `json:"flavorProfile"`
	Strength      Strength     `json:"strength"`
	Wrapper       *string      `json:"wrapper"`
	Binder        *string      `json:"binder"`
	Filler        *string      `json:"filler"`
	TastingNotes  TastingNotes `json:"tastingNotes"`
	Description   string       `json:"description"`
	Rating        *float64     `json:"rating"` // 0-100, only with a named source
	RatingSource  string       `json:"ratingSource,omitempty"`
	Confidence    float64      `json:"confidence"`
	ImageURL      string       `json:"imageUrl,omitempty"`
	BrandInfo     *BrandInfo   `json:"brandInfo,omitempty"`

	HasDetailedInfo bool   `json:"hasDetailedInfo"`
	CatalogID       string `json:"catalogId,omitempty"`
	Model           string `json:"model,omitempty"` // backend that produced the base result
}

const (
	// VerifiedConfidence is the fixed confidence of catalog-verified results
	VerifiedConfidence = 1.0
	// MaxInferredConfidence is the top of the highest inferred confidence band
	MaxInferredConfidence = 0.95
)

// InferenceRequest is one prompt sent to a backend, optionally with an image
type InferenceRequest struct {
	Prompt   string
	Image    []byte
	MIMEType string
	JSON     bool // ask the backend for application/json output
}

// CandidateSource records where a backend candidate came from
type CandidateSource string

const (
	SourceAdmin      CandidateSource = "admin"
	SourceDiscovered CandidateSource = "discovered"
	SourceDefault    CandidateSource = "default"
)

// ModelCandidate is one backend identifier in the ordered attempt list
type ModelCandidate struct {
	ID     string
	Source CandidateSource
}
