// Package domainx maps free-form tenant domains onto the canonical
// <label><suffix> form and derives the URLs the IdP client is configured with.
package domainx

import (
	"net/http"
	"net/url"
	"regexp"
	"strings"

	"github.com/secufusion/iamplane/pkg/errx"
)

var ErrRegistry = errx.NewRegistry("DOMAIN")

var (
	CodeInvalidDomain = ErrRegistry.RegisterNumbered("INVALID_DOMAIN", 1007, errx.TypeValidation, http.StatusBadRequest, "Domain is invalid.")
	CodeInvalidSuffix = ErrRegistry.Register("INVALID_DOMAIN_SUFFIX", errx.TypeValidation, http.StatusBadRequest, "Configured domain suffix is invalid.")
)

func ErrInvalidDomain(raw string) *errx.Error {
	return ErrRegistry.New(CodeInvalidDomain).WithDetail("domain", raw)
}

var (
	labelPattern  = regexp.MustCompile(`^[a-z0-9-]+$`)
	suffixPattern = regexp.MustCompile(`^(\.[a-z0-9]([a-z0-9-]*[a-z0-9])?)+$`)
)

// Normalizer canonicalizes domains against one environment-wide suffix.
type Normalizer struct {
	suffix string
}

// NewNormalizer validates suffix, which must start with a dot, e.g. ".motivitylabs.net".
func NewNormalizer(suffix string) (*Normalizer, error) {
	suffix = strings.ToLower(strings.TrimSpace(suffix))
	if !suffixPattern.MatchString(suffix) {
		return nil, ErrRegistry.New(CodeInvalidSuffix).WithDetail("suffix", suffix)
	}
	return &Normalizer{suffix: suffix}, nil
}

func (n *Normalizer) Suffix() string { return n.suffix }

// Normalize returns the canonical form of raw.
//
// Scheme, path, query and port are dropped. A value that already ends with
// the suffix is kept as is; anything else keeps only its first label. The
// result always matches ^[a-z0-9-]+<suffix>$, so Normalize is idempotent.
func (n *Normalizer) Normalize(raw string) (string, error) {
	host := Host(raw)
	if host == "" {
		return "", ErrInvalidDomain(raw)
	}

	if label, ok := strings.CutSuffix(host, n.suffix); ok {
		if !labelPattern.MatchString(label) {
			return "", ErrInvalidDomain(raw)
		}
		return host, nil
	}
	// A value that mentions the suffix anywhere else is a typo, not a label.
	if strings.Contains(host, strings.TrimPrefix(n.suffix, ".")) {
		return "", ErrInvalidDomain(raw)
	}

	label, _, _ := strings.Cut(host, ".")
	if !labelPattern.MatchString(label) {
		return "", ErrInvalidDomain(raw)
	}
	return label + n.suffix, nil
}

// Host lower-cases raw and strips scheme, path, query, port and a trailing
// dot. It applies no suffix rules.
func Host(raw string) string {
	host := strings.ToLower(strings.TrimSpace(raw))
	host = strings.TrimPrefix(host, "https://")
	host = strings.TrimPrefix(host, "http://")
	if i := strings.IndexAny(host, "/?#"); i >= 0 {
		host = host[:i]
	}
	if i := strings.IndexByte(host, ':'); i >= 0 {
		host = host[:i]
	}
	return strings.TrimSuffix(host, ".")
}

// Origin is the https origin of a canonical domain.
func Origin(canonical string) string {
	return "https://" + canonical
}

// RedirectURI is the wildcard redirect registered on the tenant's OIDC client.
func RedirectURI(canonical string) string {
	return Origin(canonical) + "/*"
}

// LoginURL is the authorization-code entry point of a tenant's realm.
func LoginURL(idpBase, tenantName, canonical string) string {
	return strings.TrimRight(idpBase, "/") +
		"/realms/" + tenantName +
		"/protocol/openid-connect/auth?client_id=" + tenantName +
		"&redirect_uri=" + url.QueryEscape(Origin(canonical)) +
		"&response_type=code"
}
