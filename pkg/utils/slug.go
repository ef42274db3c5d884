package utils

import (
	"regexp"
	"strings"

	"github.com/gosimple/slug"
)

// SlugPattern is the accepted shape for organization and event slugs: lowercase alphanumeric and hyphens.
var SlugPattern = regexp.MustCompile(`^[a-z0-9][a-z0-9-]{1,63}$`)

// MaxSlugLength bounds generated slugs.
const MaxSlugLength = 64

// Slugify turns a human title into a URL slug ("Summer Jam 2025!" -> "summer-jam-2025").
// Returns "" when nothing usable is left.
func Slugify(s string) string {
	out := slug.Make(strings.TrimSpace(s))
	if len(out) > MaxSlugLength {
		out = strings.TrimRight(out[:MaxSlugLength], "-")
	}
	return out
}

// SlugWithSuffix appends "-suffix", trimming the base so the result stays within MaxSlugLength.
func SlugWithSuffix(base, suffix string) string {
	room := MaxSlugLength - len(suffix) - 1
	if room < 1 {
		return suffix
	}
	if len(base) > room {
		base = strings.TrimRight(base[:room], "-")
	}
	if base == "" {
		return suffix
	}
	return base + "-" + suffix
}

// ValidSlug reports whether s matches SlugPattern.
func ValidSlug(s string) bool {
	return SlugPattern.MatchString(s)
}
