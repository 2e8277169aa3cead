package enrich

import (
	"regexp"
	"strings"
)

var (
	emailPattern = regexp.MustCompile(`[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}`)
	phonePattern = regexp.MustCompile(`\+?\d{1,3}[-.\s]?\(?\d{2,4}\)?[-.\s]?\d{3,4}[-.\s]?\d{3,4}`)
	urlPattern   = regexp.MustCompile(`https?://[^\s<>"']+`)
	moneyPattern = regexp.MustCompile(`[$€£]\s?\d[\d,]*(\.\d+)?\s?(million|billion|thousand|k|m|b)?|\d[\d,]*(\.\d+)?\s?(USD|EUR|GBP|dollars|euros)`)
	datePattern  = regexp.MustCompile(`\b(\d{4}-\d{2}-\d{2}|\d{1,2}/\d{1,2}/\d{2,4}|(January|February|March|April|May|June|July|August|September|October|November|December)\s+\d{1,2},?\s+\d{4})\b`)

	// orgSuffixes distinguishes ORG mentions from bare capitalized phrases.
	orgSuffixes = []string{"Inc", "Inc.", "Corp", "Corp.", "LLC", "Ltd", "Ltd.", "Co", "Co.", "Foundation", "Institute", "University"}

	// capitalizedRun matches runs of 1-4 capitalized words, the candidate
	// pool for PERSON/ORG/LOCATION before suffix/gazetteer disambiguation.
	capitalizedRun = regexp.MustCompile(`\b([A-Z][a-zA-Z'-]+(\s+[A-Z][a-zA-Z'-]+){0,3})\b`)

	locationGazetteer = buildLocationGazetteer()
)

func buildLocationGazetteer() map[string]bool {
	names := []string{
		"United States", "United Kingdom", "New York", "Los Angeles", "San Francisco",
		"London", "Paris", "Berlin", "Tokyo", "Beijing", "Moscow", "Canada", "Germany",
		"France", "Japan", "China", "Russia", "India", "Brazil", "Australia", "Europe",
		"Asia", "Africa",
	}
	out := make(map[string]bool, len(names))
	for _, n := range names {
		out[n] = true
	}
	return out
}

// ExtractEntities runs pattern-based recognition for all eight entity
// types: direct regex matches for EMAIL/PHONE/URL/MONEY/DATE, then a
// capitalized-run scan disambiguated by suffix list (ORG) and gazetteer
// (LOCATION), defaulting remaining runs to PERSON.
func ExtractEntities(content string) []Entity {
	var entities []Entity

	entities = append(entities, matchAll(content, emailPattern, EntityEmail, normalizeLower)...)
	entities = append(entities, matchAll(content, urlPattern, EntityURL, normalizeLower)...)
	entities = append(entities, matchAll(content, moneyPattern, EntityMoney, normalizeMoney)...)
	entities = append(entities, matchAll(content, datePattern, EntityDate, normalizeLower)...)
	entities = append(entities, matchAll(content, phonePattern, EntityPhone, normalizeDigitsOnly)...)

	for _, loc := range capitalizedRun.FindAllStringIndex(content, -1) {
		value := content[loc[0]:loc[1]]
		entityType := classifyCapitalizedRun(value)
		entities = append(entities, Entity{
			Type:       entityType,
			Value:      value,
			Normalized: strings.ToLower(value),
			Span:       [2]int{loc[0], loc[1]},
		})
	}

	return entities
}

func classifyCapitalizedRun(value string) EntityType {
	if locationGazetteer[value] {
		return EntityLocation
	}
	for _, suffix := range orgSuffixes {
		if strings.HasSuffix(value, suffix) {
			return EntityOrg
		}
	}
	return EntityPerson
}

func matchAll(content string, pattern *regexp.Regexp, entityType EntityType, normalize func(string) string) []Entity {
	var out []Entity
	for _, loc := range pattern.FindAllStringIndex(content, -1) {
		value := content[loc[0]:loc[1]]
		out = append(out, Entity{
			Type:       entityType,
			Value:      value,
			Normalized: normalize(value),
			Span:       [2]int{loc[0], loc[1]},
		})
	}
	return out
}

func normalizeLower(s string) string { return strings.ToLower(strings.TrimSpace(s)) }

func normalizeMoney(s string) string {
	return strings.Map(func(r rune) rune {
		if r == ' ' {
			return -1
		}
		return r
	}, strings.ToLower(s))
}

func normalizeDigitsOnly(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}
