// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package usage parses free-text drug usage strings from protocol tables into
// dose, unit, frequency, and route fields. Each field is extracted by its own
// pattern so a miss in one never affects the others.
package usage

import (
	"regexp"
	"strings"

	"github.com/pdiddy/protocol-analyzer/pkg/types"
)

// Go's \b is ASCII-only, so Cyrillic tokens are delimited by explicit
// non-letter classes instead.
const (
	leftEdge  = `(?:^|[^\p{L}])`
	rightEdge = `(?:$|[^\p{L}])`
)

// dosagePattern matches "<number> <unit>" pairs. The number is either
// space-grouped thousands ("1 000") or a plain integer with an optional
// decimal part. Longer unit spellings come first because alternation is
// leftmost-first.
var dosagePattern = regexp.MustCompile(`(?i)(?:^|[^\d\p{L}])` +
	`(\d{1,3}(?:[\s\x{00A0}\x{202F}]\d{3})+|\d+(?:[.,]\d+)?)\s*` +
	`(мкг|мг|мл|г|ме|ед|mcg|mg|ml|g|iu|me)` + rightEdge)

// yearPattern matches a calendar year, which "2023 г." spells like a dose in grams.
var yearPattern = regexp.MustCompile(`^(?:19|20)\d{2}$`)

var groupSeparators = regexp.MustCompile(`[\s\x{00A0}\x{202F}]`)

// frequencyPattern matches "2 раза в день", "1-2 раза в сутки", "3 times a day".
var frequencyPattern = regexp.MustCompile(`(?i)\d+(?:\s*-\s*\d+)?\s*(?:раз[аы]?\s+в\s+(?:день|сутки|неделю|месяц)|times?\s+(?:a|per)\s+(?:day|week|month))`)

// routePattern captures the first route token. Drip variants precede their
// plain forms for the same leftmost-first reason.
var routePattern = regexp.MustCompile(`(?i)` + leftEdge + `(` + strings.Join([]string{
	`в/в[\s-]*капельно`,
	`внутривенно[\s-]*капельно`,
	`в/в`,
	`внутривенно`,
	`в/м`,
	`внутримышечно`,
	`п/к`,
	`подкожно`,
	`перорально`,
	`внутрь`,
	`per\s+os`,
}, "|") + `)` + rightEdge)

var routeSeparators = regexp.MustCompile(`[\s-]+`)

// routeSynonyms maps a lower-cased route token to its canonical English term.
var routeSynonyms = map[string]string{
	"в/в капельно":         "intravenous drip",
	"внутривенно капельно": "intravenous drip",
	"в/в":                  "intravenous",
	"внутривенно":          "intravenous",
	"в/м":                  "intramuscular",
	"внутримышечно":        "intramuscular",
	"п/к":                  "subcutaneous",
	"подкожно":             "subcutaneous",
	"перорально":           "oral",
	"внутрь":               "oral",
	"per os":               "oral",
}

// Normalize extracts structured fields from a usage string. It is
// deterministic and never fails: absent data yields types.NotAvailable.
func Normalize(s string) types.NormalizedFields {
	f := types.NormalizedFields{
		ParsedDosage:    types.NotAvailable,
		ParsedUnits:     types.NotAvailable,
		ParsedFrequency: types.NotAvailable,
		ParsedRouteRaw:  types.NotAvailable,
		NormalizedRoute: types.UnknownRoute,
	}

	if dose, unit, ok := findDosage(s); ok {
		f.ParsedDosage = dose
		f.ParsedUnits = unit
	}

	if m := frequencyPattern.FindString(s); m != "" {
		f.ParsedFrequency = m
	}

	if m := routePattern.FindStringSubmatch(s); m != nil {
		f.ParsedRouteRaw = m[1]
		f.NormalizedRoute = NormalizeRoute(m[1])
	}

	return f
}

// findDosage returns the first dose and unit in s, skipping calendar years
// written with "г.".
func findDosage(s string) (dose, unit string, ok bool) {
	// Matches consume their edge characters, so each search restarts right
	// after the previous unit rather than after the whole match.
	for pos := 0; pos < len(s); {
		loc := dosagePattern.FindStringSubmatchIndex(s[pos:])
		if loc == nil {
			break
		}
		num, u := s[pos+loc[2]:pos+loc[3]], s[pos+loc[4]:pos+loc[5]]
		if strings.EqualFold(u, "г") && yearPattern.MatchString(num) {
			pos += loc[5]
			continue
		}
		dose = groupSeparators.ReplaceAllString(num, "")
		return strings.ReplaceAll(dose, ",", "."), u, true
	}
	return "", "", false
}

// NormalizeRoute maps a raw route token to its canonical English term, or
// types.UnknownRoute when the token has no mapping. Spaces and hyphens are
// ignored, so "в/в-капельно" and "в/вкапельно" map like "в/в капельно".
func NormalizeRoute(raw string) string {
	if canonical, ok := routeIndex[routeKey(raw)]; ok {
		return canonical
	}
	return types.UnknownRoute
}

// routeIndex is routeSynonyms keyed by routeKey.
var routeIndex = func() map[string]string {
	idx := make(map[string]string, len(routeSynonyms))
	for token, canonical := range routeSynonyms {
		idx[routeKey(token)] = canonical
	}
	return idx
}()

func routeKey(token string) string {
	return routeSeparators.ReplaceAllString(strings.ToLower(token), "")
}
