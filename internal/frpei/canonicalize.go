package frpei

import (
	"net/url"
	"regexp"
	"strings"
)

// trackingParams are stripped during canonicalization; this list covers
// the common analytics/ad query parameters, not an exhaustive registry.
var trackingParams = map[string]struct{}{
	"utm_source": {}, "utm_medium": {}, "utm_campaign": {}, "utm_term": {}, "utm_content": {},
	"gclid": {}, "fbclid": {}, "ref": {}, "mc_cid": {}, "mc_eid": {},
}

var titleSuffixPattern = regexp.MustCompile(`(?i)\s*[-|–—:]\s*(home|homepage)\s*$`)

var whitespacePattern = regexp.MustCompile(`\s+`)

// canonicalizeURL lowercases the host, strips the fragment and known
// tracking params, and drops a trailing slash, satisfying
// canonicalize(canonicalize(x)) == canonicalize(x).
func canonicalizeURL(raw string) (canonical string, domain string) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil || u.Host == "" {
		return raw, ""
	}
	u.Host = strings.ToLower(u.Host)
	u.Fragment = ""

	if u.RawQuery != "" {
		values := u.Query()
		for key := range values {
			if _, tracked := trackingParams[strings.ToLower(key)]; tracked {
				values.Del(key)
			}
		}
		u.RawQuery = values.Encode()
	}

	u.Path = strings.TrimSuffix(u.Path, "/")
	if u.Path == "" {
		u.Path = "/"
	}

	return u.String(), u.Hostname()
}

// canonicalizeTitle trims, collapses internal whitespace, and strips
// common "- Home" / "| Homepage" suffixes some sites append.
func canonicalizeTitle(raw string) string {
	t := whitespacePattern.ReplaceAllString(strings.TrimSpace(raw), " ")
	t = titleSuffixPattern.ReplaceAllString(t, "")
	return strings.TrimSpace(t)
}

// Canonicalize turns a RawCandidate into a partially-built Candidate;
// ranking, enrichment, and ID assignment happen in later stages.
func Canonicalize(raw RawCandidate) Candidate {
	canonicalURL, domain := canonicalizeURL(raw.URL)
	return Candidate{
		Provider:        raw.Provider,
		SourceProviders: []string{raw.Provider},
		CanonicalURL:    canonicalURL,
		CanonicalDomain: domain,
		Title:           canonicalizeTitle(raw.Title),
		Snippet:         raw.Snippet,
		ContentType:     raw.ContentType,
		Relevance:       raw.Relevance,
		Popularity:      raw.Popularity,
	}
}
