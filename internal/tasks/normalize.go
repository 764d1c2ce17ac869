package tasks

import (
	"regexp"
	"strings"

	"github.com/jriverox/tidal-top7/internal/models"
	"github.com/jriverox/tidal-top7/internal/shared"
)

const bom = "\ufeff"

// Known misspellings and how the catalog spells them.
var defaultNameFixes = map[string]string{
	"mathew good":      "matthew good",
	"mathew good band": "matthew good band",
	"thronley":         "thornley",
	"matchbox twenty":  "matchbox 20",
	"vast":             "VAST",
	"pilot speed":      "Pilate",
}

// Names the catalog also lists the artist under.
var defaultAlternates = map[string][]string{
	"matchbox twenty": {"matchbox 20"},
	"matchbox 20":     {"matchbox twenty"},
	"pilot speed":     {"pilate"},
	"vast":            {"VAST"},
}

var andWord = regexp.MustCompile(`(?i)\s+and\s+`)

// Normalizer derives the ordered search variants for an artist name.
type Normalizer struct {
	fixes      map[string]string
	alternates map[string][]string
}

// NewNormalizer returns a normalizer using the built-in tables extended by names.
// Entries in names replace built-in entries with the same (case-insensitive) key.
func NewNormalizer(names shared.NamesConfig) *Normalizer {
	n := &Normalizer{
		fixes:      make(map[string]string, len(defaultNameFixes)+len(names.Fixes)),
		alternates: make(map[string][]string, len(defaultAlternates)+len(names.Alternates)),
	}
	for k, v := range defaultNameFixes {
		n.fixes[k] = v
	}
	for k, v := range defaultAlternates {
		n.alternates[k] = v
	}
	for k, v := range names.Fixes {
		n.fixes[strings.ToLower(strings.TrimSpace(k))] = v
	}
	for k, v := range names.Alternates {
		n.alternates[strings.ToLower(strings.TrimSpace(k))] = v
	}
	return n
}

// Variants returns the trimmed name followed by its corrections, alternates and &/and swap.
//
// The result never holds two entries that differ only by case. A blank name yields nil.
func (n *Normalizer) Variants(name string) []string {
	base := strings.TrimSpace(strings.TrimPrefix(name, bom))
	if base == "" {
		return nil
	}

	candidates := []string{base}
	key := strings.ToLower(base)

	if fix, ok := n.fixes[key]; ok {
		candidates = append(candidates, fix)
	}
	candidates = append(candidates, n.alternates[key]...)

	hasAmp := strings.Contains(base, "&")
	hasAnd := andWord.MatchString(base)
	switch {
	case hasAmp && !hasAnd:
		candidates = append(candidates, strings.ReplaceAll(base, "&", "and"))
	case hasAnd && !hasAmp:
		candidates = append(candidates, andWord.ReplaceAllString(base, " & "))
	}

	return dedupFold(candidates)
}

// Query builds the [models.ArtistQuery] for a raw name.
func (n *Normalizer) Query(name string) models.ArtistQuery {
	return models.ArtistQuery{Raw: name, Variants: n.Variants(name)}
}

func dedupFold(values []string) []string {
	seen := make(map[string]struct{}, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		k := strings.ToLower(v)
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, v)
	}
	return out
}
