package usecase

import (
	"encoding/json"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/cigarlens/backend/internal/domain"
)

// defaultConfidence is assumed when a backend omits the confidence field
const defaultConfidence = 0.5

var (
	thinkTagPattern = regexp.MustCompile(`(?s)^\s*<think>.*?</think>\s*`)
	fencePattern    = regexp.MustCompile("(?s)```[a-zA-Z]*\\s*(.*?)\\s*```")
	urlPattern      = regexp.MustCompile(`https?://[^\s"'<>` + "`" + `)\]]+`)
)

// ExtractJSON returns the first balanced JSON object in a backend response,
// after dropping leading <think> blocks and markdown fences.
func ExtractJSON(response string) (string, error) {
	cleaned := thinkTagPattern.ReplaceAllString(response, "")
	if m := fencePattern.FindStringSubmatch(cleaned); m != nil && strings.Contains(m[1], "{") {
		cleaned = m[1]
	}

	if obj, ok := extractBalancedObject(cleaned); ok && json.Valid([]byte(obj)) {
		return obj, nil
	}

	trimmed := strings.TrimSpace(cleaned)
	if strings.HasPrefix(trimmed, "{") && json.Valid([]byte(trimmed)) {
		return trimmed, nil
	}
	return "", fmt.Errorf("%w: no JSON object found", domain.ErrParse)
}

// extractBalancedObject finds the first brace-balanced object, ignoring braces inside strings.
func extractBalancedObject(s string) (string, bool) {
	start := strings.IndexByte(s, '{')
	if start == -1 {
		return "", false
	}

	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(s); i++ {
		c := s[i]
		if escaped {
			escaped = false
			continue
		}
		if c == '\\' && inString {
			escaped = true
			continue
		}
		if c == '"' {
			inString = !inString
			continue
		}
		if inString {
			continue
		}
		switch c {
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return s[start : i+1], true
			}
		}
	}
	return "", false
}

// rawRecognition mirrors the prompt schema with tolerant field types
type rawRecognition struct {
	Brand         json.RawMessage `json:"brand"`
	Name          json.RawMessage `json:"name"`
	Origin        json.RawMessage `json:"origin"`
	Size          json.RawMessage `json:"size"`
	FlavorProfile json.RawMessage `json:"flavorProfile"`
	Strength      json.RawMessage `json:"strength"`
	Wrapper       json.RawMessage `json:"wrapper"`
	Binder        json.RawMessage `json:"binder"`
	Filler        json.RawMessage `json:"filler"`
	TastingNotes  struct {
		FirstThird  json.RawMessage `json:"firstThird"`
		SecondThird json.RawMessage `json:"secondThird"`
		FinalThird  json.RawMessage `json:"finalThird"`
	} `json:"tastingNotes"`
	Description  json.RawMessage `json:"description"`
	Rating       json.RawMessage `json:"rating"`
	RatingSource json.RawMessage `json:"ratingSource"`
	Confidence   json.RawMessage `json:"confidence"`
	BrandInfo    *struct {
		Country     json.RawMessage `json:"country"`
		Description json.RawMessage `json:"description"`
		FoundedYear json.RawMessage `json:"foundedYear"`
	} `json:"brandInfo"`
}

// ParseRecognition decodes a backend response into a RecognitionResult.
// Errors match domain.ErrParse.
func ParseRecognition(response string) (*domain.RecognitionResult, error) {
	obj, err := ExtractJSON(response)
	if err != nil {
		return nil, err
	}

	var raw rawRecognition
	if err := json.Unmarshal([]byte(obj), &raw); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrParse, err)
	}

	result := &domain.RecognitionResult{
		Brand:         flexibleString(raw.Brand),
		Name:          flexibleString(raw.Name),
		Origin:        flexibleString(raw.Origin),
		Size:          flexibleString(raw.Size),
		FlavorProfile: flexibleList(raw.FlavorProfile),
		Strength:      domain.ParseStrength(flexibleString(raw.Strength)),
		Wrapper:       optionalString(raw.Wrapper),
		Binder:        optionalString(raw.Binder),
		Filler:        optionalString(raw.Filler),
		TastingNotes: domain.TastingNotes{
			FirstThird:  flexibleList(raw.TastingNotes.FirstThird),
			SecondThird: flexibleList(raw.TastingNotes.SecondThird),
			FinalThird:  flexibleList(raw.TastingNotes.FinalThird),
		},
		Description: flexibleString(raw.Description),
		Confidence:  normalizeConfidence(raw.Confidence),
	}
	if result.Brand == "" && result.Name == "" {
		return nil, fmt.Errorf("%w: response names neither brand nor product", domain.ErrParse)
	}

	// Ratings without a named source are discarded
	if source := flexibleString(raw.RatingSource); source != "" {
		if rating, ok := flexibleNumber(raw.Rating); ok && rating >= 0 && rating <= 100 {
			result.Rating = &rating
			result.RatingSource = source
		}
	}

	if raw.BrandInfo != nil {
		info := &domain.BrandInfo{
			Country:     flexibleString(raw.BrandInfo.Country),
			Description: flexibleString(raw.BrandInfo.Description),
		}
		if year, ok := flexibleNumber(raw.BrandInfo.FoundedYear); ok && year > 0 {
			info.FoundedYear = int(year)
		}
		if *info != (domain.BrandInfo{}) {
			result.BrandInfo = info
		}
	}
	return result, nil
}

// ExtractImageURL returns the first http(s) URL of a bare-URL backend response.
// A "null" answer or a response without a URL yields false.
func ExtractImageURL(response string) (string, bool) {
	cleaned := strings.TrimSpace(thinkTagPattern.ReplaceAllString(response, ""))
	cleaned = strings.Trim(cleaned, "`\"' \n")
	switch strings.ToLower(cleaned) {
	case "", "null", "none", "n/a":
		return "", false
	}

	u := urlPattern.FindString(cleaned)
	u = strings.TrimRight(u, ".,;:!?")
	if u == "" {
		return "", false
	}
	return u, true
}

// normalizeConfidence accepts fractions or percentages and clamps to the inferred band ceiling.
func normalizeConfidence(raw json.RawMessage) float64 {
	c, ok := flexibleNumber(raw)
	if !ok || math.IsNaN(c) {
		return defaultConfidence
	}
	if c > 1 {
		c /= 100
	}
	return math.Max(0, math.Min(c, domain.MaxInferredConfidence))
}

// flexibleString converts strings, numbers and booleans to text. null and placeholder values are empty.
func flexibleString(raw json.RawMessage) string {
	if len(raw) == 0 || string(raw) == "null" {
		return ""
	}

	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		s = strings.TrimSpace(s)
		switch strings.ToLower(s) {
		case "null", "none", "n/a", "unknown":
			return ""
		}
		return s
	}

	var n float64
	if err := json.Unmarshal(raw, &n); err == nil {
		return strconv.FormatFloat(n, 'f', -1, 64)
	}

	var b bool
	if err := json.Unmarshal(raw, &b); err == nil {
		return strconv.FormatBool(b)
	}
	return ""
}

func optionalString(raw json.RawMessage) *string {
	s := flexibleString(raw)
	if s == "" {
		return nil
	}
	return &s
}

// flexibleList accepts a JSON array of strings or a comma-separated string.
func flexibleList(raw json.RawMessage) []string {
	if len(raw) == 0 || string(raw) == "null" {
		return nil
	}

	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil {
		s := flexibleString(raw)
		if s == "" {
			return nil
		}
		for _, part := range strings.Split(s, ",") {
			items = append(items, json.RawMessage(strconv.Quote(part)))
		}
	}

	out := make([]string, 0, len(items))
	for _, item := range items {
		if s := flexibleString(item); s != "" {
			out = append(out, s)
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

// flexibleNumber accepts JSON numbers and numeric strings such as "92" or "92%".
func flexibleNumber(raw json.RawMessage) (float64, bool) {
	if len(raw) == 0 || string(raw) == "null" {
		return 0, false
	}

	var n float64
	if err := json.Unmarshal(raw, &n); err == nil {
		return n, true
	}

	s := strings.TrimSuffix(flexibleString(raw), "%")
	n, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0, false
	}
	return n, true
}
