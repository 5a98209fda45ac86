package usecase

import (
	"fmt"
	"strings"
)

const resultSchema = `{
  "brand": "string",
  "name": "full product name including size/vitola",
  "origin": "country of manufacture",
  "size": "vitola, e.g. Robusto",
  "flavorProfile": ["ordered flavor tags"],
  "strength": "mild | mild-medium | medium | medium-full | full | unknown",
  "wrapper": "string or null",
  "binder": "string or null",
  "filler": "string or null",
  "tastingNotes": {
    "firstThird": ["notes"],
    "secondThird": ["notes"],
    "finalThird": ["notes"]
  },
  "description": "string",
  "rating": "number 0-100 or null",
  "ratingSource": "named publication for the rating, or null",
  "confidence": "number between 0 and 1",
  "brandInfo": {
    "country": "string or null",
    "description": "string or null",
    "foundedYear": "number or null"
  }
}`

const confidenceRules = `Confidence rules:
- 0.85-0.95: the product is identified with certainty and the details come from verified knowledge.
- 0.65-0.80: details are plausibly inferred (for example a wrapper color implying a likely blend). Phrase inferred values with a qualifier such as "likely" or "typical".
- 0.50-0.65: there is no basis for an answer. Set unknown fields to null.
Never exceed 0.95.

Rating rules:
- Only report a rating that a named external source (for example Cigar Aficionado) published. Put the source name in "ratingSource".
- Never estimate or invent a rating. Without a named source, "rating" and "ratingSource" are null.`

// BuildImagePrompt builds the prompt for recognizing a cigar from a photo.
func BuildImagePrompt(hint string) string {
	var b strings.Builder
	b.WriteString("You are a cigar expert. Identify the cigar in this image from its band, wrapper and shape.\n")
	if hint = strings.TrimSpace(hint); hint != "" {
		fmt.Fprintf(&b, "The user says it may be: %q. Use this only if the image agrees.\n", hint)
	}
	b.WriteString("\nRespond with only a JSON object matching this schema, without markdown:\n")
	b.WriteString(resultSchema)
	b.WriteString("\n\n")
	b.WriteString(confidenceRules)
	b.WriteString("\n")
	return b.String()
}

// BuildTextPrompt builds the prompt for looking up a cigar by name.
func BuildTextPrompt(name, brand string) string {
	var b strings.Builder
	b.WriteString("You are a cigar expert. Provide details for this cigar.\n")
	fmt.Fprintf(&b, "Name: %s\n", strings.TrimSpace(name))
	if brand = strings.TrimSpace(brand); brand != "" {
		fmt.Fprintf(&b, "Brand: %s\n", brand)
	}
	b.WriteString("\nRespond with only a JSON object matching this schema, without markdown:\n")
	b.WriteString(resultSchema)
	b.WriteString("\n\n")
	b.WriteString(confidenceRules)
	b.WriteString("\n")
	return b.String()
}

// BuildImageURLPrompt asks for one direct product image URL.
func BuildImageURLPrompt(brand, name string) string {
	subject := strings.TrimSpace(name)
	if brand = strings.TrimSpace(brand); brand != "" && !hasBrandPrefix(subject, brand) {
		subject = brand + " " + subject
	}
	return fmt.Sprintf(`Give one direct URL to a product photo of a single %s cigar from a retailer or manufacturer website.
The URL must point directly at an image file (jpg, png or webp), not at a web page, search result or redirect.
Respond with only the bare URL. If you do not know one, respond with null.`, subject)
}
