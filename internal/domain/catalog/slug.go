package catalog

import (
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode"

	"github.com/storefront/landedcost/internal/domain/shared"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// MaxSlugLength bounds generated and stored slugs
const MaxSlugLength = 80

// FallbackSlug is used when a name has no transliterable characters
const FallbackSlug = "product"

var (
	slugSeparators = regexp.MustCompile(`[^a-z0-9]+`)
	slugPattern    = regexp.MustCompile(`^[a-z0-9]+(?:-[a-z0-9]+)*$`)
)

// Slugify derives a URL slug from a display name: accents are stripped,
// letters lowercased and every other run of characters collapsed to a
// single hyphen.
func Slugify(name string) string {
	t := transform.Chain(norm.NFKD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(t, name)
	if err != nil {
		folded = name
	}
	s := slugSeparators.ReplaceAllString(strings.ToLower(folded), "-")
	s = truncateSlug(strings.Trim(s, "-"), MaxSlugLength)
	if s == "" {
		return FallbackSlug
	}
	return s
}

// SlugWithSuffix appends "-n" to base, trimming base so the result still
// fits MaxSlugLength.
func SlugWithSuffix(base string, n int) string {
	return withSuffix(base, strconv.Itoa(n))
}

// SlugWithTimestamp appends a base-36 nanosecond timestamp to base.
func SlugWithTimestamp(base string, at time.Time) string {
	return withSuffix(base, strconv.FormatInt(at.UnixNano(), 36))
}

// ValidateSlug checks a stored slug
func ValidateSlug(slug string) error {
	if slug == "" {
		return shared.NewDomainError("INVALID_SLUG", "Slug cannot be empty")
	}
	if len(slug) > MaxSlugLength {
		return shared.NewDomainError("INVALID_SLUG", "Slug cannot exceed 80 characters")
	}
	if !slugPattern.MatchString(slug) {
		return shared.NewDomainError("INVALID_SLUG", "Slug can only contain lowercase letters, digits and single hyphens")
	}
	return nil
}

func withSuffix(base, suffix string) string {
	room := MaxSlugLength - len(suffix) - 1
	return truncateSlug(base, room) + "-" + suffix
}

func truncateSlug(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	return strings.TrimRight(s[:limit], "-")
}
