package usecase

import (
	"net/url"
	"path"
	"regexp"
	"sort"
	"strings"

	"github.com/cigarlens/backend/internal/domain"
)

// Image URL score weights
const (
	topDomainPoints      = 60
	trustedDomainPoints  = 40
	imageExtensionPoints = 30
	cdnHostPoints        = 20
	shallowPathPoints    = 10
	largeImagePoints     = 10
	mediumImagePoints    = 5
	productPathPoints    = 5
	singleItemPoints     = 5
	bandLabelPoints      = 5
	hexSegmentPenalty    = -15
	multiPackPenalty     = -20
	thumbnailPenalty     = -10

	shallowPathMaxSegments = 3
	largeImageMinSide      = 800
	mediumImageMinSide     = 400
)

var (
	topImageDomains = []string{"cigaraficionado.com", "famous-smoke.com"}

	trustedImageDomains = []string{
		"jrcigars.com",
		"cigarsinternational.com",
		"holts.com",
		"thompsoncigar.com",
		"cigarpage.com",
		"neptunecigar.com",
		"smallbatchcigar.com",
		"atlanticcigar.com",
		"cigar.com",
		"halfwheel.com",
		"cigar-coop.com",
	}

	redirectDomains = []string{
		"t.co",
		"bit.ly",
		"goo.gl",
		"ow.ly",
		"lnkd.in",
		"tinyurl.com",
		"l.facebook.com",
		"lm.facebook.com",
		"out.reddit.com",
		"href.li",
	}

	// Google paths that wrap another URL instead of serving an image
	googleWrapperPaths = []string{"/imgres", "/search", "/url"}

	rejectedPathSegments = map[string]bool{
		"cache":      true,
		"temp":       true,
		"tmp":        true,
		"resize":     true,
		"resized":    true,
		"thumb":      true,
		"thumbs":     true,
		"thumbnail":  true,
		"thumbnails": true,
	}

	imageExtensions = map[string]bool{".jpg": true, ".jpeg": true, ".png": true, ".webp": true, ".gif": true}

	cdnLabelPattern    = regexp.MustCompile(`^(cdn|static|images?|img|media)\d*$`)
	hexSegmentPattern  = regexp.MustCompile(`(?i)[0-9a-f]{24,}`)
	singleItemPattern  = regexp.MustCompile(`(?i)\b(single|individual)\b`)
	bandLabelPattern   = regexp.MustCompile(`(?i)\b(band|label)\b`)
	multiPackPattern   = regexp.MustCompile(`(?i)\b(box|boxes|bundle|bundles|pack|packs|sampler)\b`)
	thumbnailIndicator = regexp.MustCompile(`(?i)(thumb|[-_]small\b|[-_]sm\b|[-_]\d{2,3}x\d{2,3}\b|[?&](w|width)=\d{2,3}\b)`)
)

// RankedImage is an image search hit with its quality score
type RankedImage struct {
	Item  domain.ImageSearchItem
	Score int
}

// IsRejectedImageURL reports whether raw must never be probed or returned:
// unparseable or non-http URLs, link redirectors, Google wrapper pages,
// and low-quality path segments.
func IsRejectedImageURL(raw string) bool {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil || u.Host == "" {
		return true
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return true
	}

	host := strings.ToLower(u.Hostname())
	if matchesDomain(host, redirectDomains) {
		return true
	}
	if isGoogleHost(host) {
		p := strings.ToLower(u.Path)
		for _, wrapper := range googleWrapperPaths {
			if p == wrapper || strings.HasPrefix(p, wrapper+"/") {
				return true
			}
		}
	}

	for _, segment := range pathSegments(u.Path) {
		if rejectedPathSegments[strings.ToLower(segment)] {
			return true
		}
	}
	return false
}

// ScoreImage rates an image search hit. Higher is better; the score may be negative.
func ScoreImage(item domain.ImageSearchItem) int {
	u, err := url.Parse(item.URL)
	if err != nil {
		return 0
	}
	host := strings.ToLower(u.Hostname())
	segments := pathSegments(u.Path)
	lowerPath := strings.ToLower(u.Path)
	text := strings.ToLower(u.Path + " " + item.Title)

	score := 0
	switch {
	case matchesDomain(host, topImageDomains):
		score += topDomainPoints
	case matchesDomain(host, trustedImageDomains):
		score += trustedDomainPoints
	}

	if imageExtensions[strings.ToLower(path.Ext(u.Path))] {
		score += imageExtensionPoints
	}
	if firstLabel, _, _ := strings.Cut(host, "."); cdnLabelPattern.MatchString(firstLabel) || strings.Contains(host, "cdn") {
		score += cdnHostPoints
	}
	if len(segments) <= shallowPathMaxSegments {
		score += shallowPathPoints
	}

	switch {
	case item.Width >= largeImageMinSide && item.Height >= largeImageMinSide:
		score += largeImagePoints
	case item.Width >= mediumImageMinSide && item.Height >= mediumImageMinSide:
		score += mediumImagePoints
	}

	if strings.Contains(lowerPath, "/product") {
		score += productPathPoints
	}
	if singleItemPattern.MatchString(wordText(text)) {
		score += singleItemPoints
	}
	if bandLabelPattern.MatchString(wordText(text)) {
		score += bandLabelPoints
	}

	for _, segment := range segments {
		if hexSegmentPattern.MatchString(segment) {
			score += hexSegmentPenalty
			break
		}
	}
	if multiPackPattern.MatchString(wordText(text)) {
		score += multiPackPenalty
	}
	if thumbnailIndicator.MatchString(u.Path + "?" + u.RawQuery) {
		score += thumbnailPenalty
	}

	return score
}

// RankImages drops rejected hits and orders the rest by descending score.
// Equal scores keep search order.
func RankImages(items []domain.ImageSearchItem) []RankedImage {
	ranked := make([]RankedImage, 0, len(items))
	for _, item := range items {
		if IsRejectedImageURL(item.URL) {
			continue
		}
		ranked = append(ranked, RankedImage{Item: item, Score: ScoreImage(item)})
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Score > ranked[j].Score
	})
	return ranked
}

// BuildImageQuery builds the web image search query for a product.
func BuildImageQuery(brand, name string) string {
	brand = strings.TrimSpace(brand)
	name = strings.TrimSpace(name)

	subject := name
	if brand != "" && !hasBrandPrefix(name, brand) {
		subject = strings.TrimSpace(brand + " " + name)
	}
	return subject + " cigar single -box -bundle"
}

func hasBrandPrefix(name, brand string) bool {
	return domain.StripBrandPrefix(name, brand) != strings.TrimSpace(name)
}

func matchesDomain(host string, domains []string) bool {
	for _, d := range domains {
		if host == d || strings.HasSuffix(host, "."+d) {
			return true
		}
	}
	return false
}

func isGoogleHost(host string) bool {
	return host == "google.com" || strings.HasSuffix(host, ".google.com") ||
		strings.HasPrefix(host, "google.") || strings.Contains(host, ".google.")
}

func pathSegments(p string) []string {
	var segments []string
	for _, s := range strings.Split(p, "/") {
		if s != "" {
			segments = append(segments, s)
		}
	}
	return segments
}

// wordText turns URL separators into spaces so keyword patterns match on word boundaries.
func wordText(s string) string {
	return strings.NewReplacer("-", " ", "_", " ", "/", " ", ".", " ").Replace(s)
}
