package authority

import (
	"net/url"
	"strings"
)

// Tier grades how authoritative a web host is for clinical evidence
type Tier int

const (
	TierPrimary   Tier = 1 // Regulators, public health bodies, academic institutions
	TierSecondary Tier = 2 // Professional societies and established clinical references
	TierTertiary  Tier = 3 // Everything else
)

// Classifier maps hosts to authority tiers. The built-in tables cover the
// hosts that dominate medical search results; unknown hosts are tertiary.
type Classifier struct {
	primaryMap   map[string]bool
	secondaryMap map[string]bool
}

// primaryDomains are regulators, registries and public health bodies
var primaryDomains = []string{
	"who.int",
	"nih.gov",
	"ncbi.nlm.nih.gov",
	"cdc.gov",
	"fda.gov",
	"ema.europa.eu",
	"clinicaltrials.gov",
	"cochrane.org",
	"cochranelibrary.com",
	"nice.org.uk",
}

// secondaryDomains are professional societies and clinical references
var secondaryDomains = []string{
	"heart.org",
	"diabetes.org",
	"cancer.org",
	"acc.org",
	"escardio.org",
	"uptodate.com",
	"mayoclinic.org",
	"medscape.com",
	"aafp.org",
	"idsociety.org",
}

// NewClassifier builds a classifier with the built-in tables plus any extra
// domain overrides ("host" -> tier).
func NewClassifier(overrides map[string]Tier) *Classifier {
	c := &Classifier{
		primaryMap:   make(map[string]bool, len(primaryDomains)),
		secondaryMap: make(map[string]bool, len(secondaryDomains)),
	}
	for _, domain := range primaryDomains {
		c.primaryMap[domain] = true
	}
	for _, domain := range secondaryDomains {
		c.secondaryMap[domain] = true
	}
	for domain, tier := range overrides {
		switch tier {
		case TierPrimary:
			c.primaryMap[domain] = true
			delete(c.secondaryMap, domain)
		case TierSecondary:
			c.secondaryMap[domain] = true
			delete(c.primaryMap, domain)
		}
	}
	return c
}

// Classify grades a URL's host. Subdomains inherit their parent's tier.
func (c *Classifier) Classify(rawURL string) Tier {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return TierTertiary
	}

	host := parsed.Hostname()
	if host == "" {
		// Bare hosts like "who.int/page" parse with an empty Host
		host = strings.SplitN(rawURL, "/", 2)[0]
	}
	host = strings.ToLower(host)

	if matchesDomain(host, c.primaryMap) {
		return TierPrimary
	}
	if matchesDomain(host, c.secondaryMap) {
		return TierSecondary
	}

	// Government and academic hosts count as primary even when unlisted
	for _, suffix := range []string{".gov", ".edu", ".ac.uk", ".nhs.uk"} {
		if strings.HasSuffix(host, suffix) {
			return TierPrimary
		}
	}

	return TierTertiary
}

func matchesDomain(host string, domains map[string]bool) bool {
	if domains[host] {
		return true
	}
	for domain := range domains {
		if strings.HasSuffix(host, "."+domain) {
			return true
		}
	}
	return false
}
