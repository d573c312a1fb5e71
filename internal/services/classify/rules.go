package classify

import (
	"regexp"
	"strings"

	"golang.org/x/net/publicsuffix"

	"factline/internal/domain"
)

// Rule maps claim phrasing to a verdict. Rules are checked in order and the
// first match wins, so a rule set always classifies the same text the same
// way.
type Rule struct {
	// Phrases match if any one of them occurs in the slugified text.
	Phrases    []string
	Verdict    domain.Verdict
	Confidence float64
	Reason     string
	Sources    []domain.Source
}

var nonSlugChars = regexp.MustCompile(`[^\pL\pN]+`)

// Slugify lower-cases text and strips everything that is not a letter or
// digit, so "Le500,000" and "le500000" compare equal.
func Slugify(orig string) string {
	return strings.ToLower(nonSlugChars.ReplaceAllString(orig, ""))
}

// matches reports whether any phrase of r occurs in slug.
func (r Rule) matches(slug string) bool {
	for _, p := range r.Phrases {
		if p == "" {
			continue
		}
		if strings.Contains(slug, Slugify(p)) {
			return true
		}
	}
	return false
}

// authorityScores ranks source hosts by registrable domain. Anything not
// listed scores 0.4.
var authorityScores = map[string]float64{
	"gov.sl":      0.95,
	"who.int":     0.9,
	"reuters.com": 0.85,
	"bbc.com":     0.8,
	"awoko.org":   0.6,
}

const defaultAuthority = 0.4

// AuthorityFor scores a source URL by its registrable domain (eTLD+1).
func AuthorityFor(rawurl string) float64 {
	host := rawurl
	if i := strings.Index(host, "://"); i >= 0 {
		host = host[i+3:]
	}
	if i := strings.IndexAny(host, "/?#"); i >= 0 {
		host = host[:i]
	}
	registrable, err := publicsuffix.EffectiveTLDPlusOne(host)
	if err != nil {
		registrable = host
	}
	if score, ok := authorityScores[strings.ToLower(registrable)]; ok {
		return score
	}
	return defaultAuthority
}

// DefaultRules is the seed rule table for claims circulating on local
// messaging channels. Operators swap in their own table at construction.
func DefaultRules() []Rule {
	return []Rule{
		{
			Phrases:    []string{"government giving le500,000", "free le500,000", "cash for all citizens"},
			Verdict:    domain.VerdictFalse,
			Confidence: 0.92,
			Reason:     "Matches known cash-handout hoax circulating on messaging platforms",
			Sources: []domain.Source{
				{URL: "https://mic.gov.sl/advisories", Title: "Ministry of Information advisory on cash transfer rumours"},
			},
		},
		{
			Phrases:    []string{"drinking salt water cures", "garlic cures covid", "bitter kola cures"},
			Verdict:    domain.VerdictFalse,
			Confidence: 0.9,
			Reason:     "Contradicts WHO guidance on unproven remedies",
			Sources: []domain.Source{
				{URL: "https://www.who.int/health-topics/infodemic", Title: "WHO infodemic guidance"},
			},
		},
		{
			Phrases:    []string{"election date has been moved", "voting postponed"},
			Verdict:    domain.VerdictMisleading,
			Confidence: 0.7,
			Reason:     "Partially true in past cycles but no current official announcement",
			Sources: []domain.Source{
				{URL: "https://ec.gov.sl", Title: "Electoral Commission announcements"},
			},
		},
		{
			Phrases:    []string{"new education policy"},
			Verdict:    domain.VerdictUnverified,
			Confidence: 0.45,
			Reason:     "Policy announcement not yet confirmed by an official source",
		},
	}
}
