// Package resolver classifies submitted paper URLs by provider and extracts
// the canonical identifier the matching metadata client needs.
package resolver

import (
	"errors"
	"net/url"
	"regexp"
	"strings"

	"github.com/paperstack/backend/internal/domain"
)

// ErrUnresolvableIdentifier means the URL belongs to a known provider but no
// identifier pattern matched. Callers decide whether the generic PDF locator
// may take over.
var ErrUnresolvableIdentifier = errors.New("no identifier found in provider URL")

var (
	// arXiv: "abs/2301.00001", "pdf/2301.00001v2.pdf", legacy "abs/hep-th/9901001".
	arxivModernPattern = regexp.MustCompile(`(?:abs|pdf)/(\d+\.\d+(?:v\d+)?)`)
	arxivLegacyPattern = regexp.MustCompile(`(?:abs|pdf)/([a-z-]+/\d+)`)

	// PubMed: numeric PMID in the path, or a PMC article id.
	pmidPattern = regexp.MustCompile(`pubmed(?:\.ncbi\.nlm\.nih\.gov)?/(\d+)`)
	pmcPattern  = regexp.MustCompile(`pmc/articles/(PMC\d+)`)

	// bioRxiv/medRxiv: DOI from the content path, version and extension stripped.
	rxivPattern = regexp.MustCompile(`/content/(10\.\d+/[^/?#]+?)(?:v\d+)?(?:\.full)?(?:\.pdf)?(?:[?#].*)?$`)
)

// hostTable maps host substrings to source kinds, checked in order.
var hostTable = []struct {
	substr string
	kind   string
}{
	{"arxiv.org", domain.SourceArxiv},
	{"pubmed", domain.SourcePubmed},
	{"ncbi.nlm.nih.gov", domain.SourcePubmed},
	{"biorxiv.org", domain.SourceBiorxiv},
	{"medrxiv.org", domain.SourceMedrxiv},
	{"archive.org", domain.SourceArchive},
	{"scholar.google", domain.SourceScholar},
}

// Resolve classifies rawURL and extracts the provider identifier.
// Unrecognized hosts classify as SourceOther with an empty identifier and no
// error. A recognized provider host without a matching identifier pattern
// returns the kind together with ErrUnresolvableIdentifier.
func Resolve(rawURL string) (kind, providerID string, err error) {
	u, parseErr := url.Parse(strings.TrimSpace(rawURL))
	if parseErr != nil || u.Host == "" {
		return domain.SourceOther, "", nil
	}

	host := strings.ToLower(u.Host)
	kind = domain.SourceOther
	for _, entry := range hostTable {
		if strings.Contains(host, entry.substr) {
			kind = entry.kind
			break
		}
	}

	switch kind {
	case domain.SourceArxiv:
		if m := arxivModernPattern.FindStringSubmatch(u.Path); m != nil {
			return kind, m[1], nil
		}
		if m := arxivLegacyPattern.FindStringSubmatch(u.Path); m != nil {
			return kind, m[1], nil
		}
		return kind, "", ErrUnresolvableIdentifier
	case domain.SourcePubmed:
		full := host + u.Path
		if m := pmcPattern.FindStringSubmatch(full); m != nil {
			return kind, m[1], nil
		}
		if m := pmidPattern.FindStringSubmatch(full); m != nil {
			return kind, m[1], nil
		}
		return kind, "", ErrUnresolvableIdentifier
	case domain.SourceBiorxiv, domain.SourceMedrxiv:
		if m := rxivPattern.FindStringSubmatch(u.Path); m != nil {
			return kind, m[1], nil
		}
		return kind, "", ErrUnresolvableIdentifier
	default:
		// archive.org and Google Scholar carry no structured identifier;
		// they go straight to the generic PDF locator, like "other".
		return kind, "", nil
	}
}
