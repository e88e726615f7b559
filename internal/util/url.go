package util

import (
	"net/url"
	"regexp"
	"strings"

	"golang.org/x/net/publicsuffix"
)

// maxRedirectDepth bounds how many nested click-tracker layers are unwrapped.
const maxRedirectDepth = 10

// redirectorHost matches the marketplace click-tracking hosts, e.g.
// click.mercadolivre.com.br or click1.mercadolivre.com.br.
var redirectorHost = regexp.MustCompile(`^click\d*\.`)

// trackingParams are listing parameters that carry session, position or
// recommendation-engine state and never identify the item.
var trackingParams = map[string]bool{
	"searchVariation":   true,
	"position":          true,
	"search_layout":     true,
	"deal_print_id":     true,
	"tracking_id":       true,
	"reco_backend":      true,
	"reco_client":       true,
	"reco_item_pos":     true,
	"reco_backend_type": true,
	"reco_id":           true,
	"c_id":              true,
	"c_uid":             true,
	"source":            true,
	"is_advertising":    true,
	"wid":               true,
	"sid":               true,
	"polycard_client":   true,
}

var trackingParamPattern = regexp.MustCompile(`^(utm_.*|gclid|fbclid|msclkid|dclid|_ga.*|mc_.*)$`)

func isTrackingParam(key string) bool {
	return trackingParams[key] || trackingParamPattern.MatchString(key)
}

func parseAbsolute(raw string) (*url.URL, bool) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, false
	}
	return u, true
}

// NormalizePermalink canonicalizes a listing URL: nested click-tracker
// redirects are unwrapped, tracking parameters dropped and the fragment
// cleared. Input that is not an absolute URL is returned unchanged.
func NormalizePermalink(rawURL string) string {
	u, ok := parseAbsolute(rawURL)
	if !ok {
		return rawURL
	}

	for depth := 0; depth < maxRedirectDepth && redirectorHost.MatchString(u.Hostname()); depth++ {
		target := u.Query().Get("url")
		if target == "" {
			break
		}
		next, ok := parseAbsolute(target)
		if !ok {
			break
		}
		u = next
	}

	query := u.Query()
	for key := range query {
		if isTrackingParam(key) {
			query.Del(key)
		}
	}
	u.RawQuery = query.Encode()
	u.ForceQuery = false
	u.Fragment = ""
	u.RawFragment = ""

	return u.String()
}

// StripFragment removes the fragment from rawURL. Fragments are client-side
// routing state and never reach the server.
func StripFragment(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return rawURL
	}
	u.Fragment = ""
	u.RawFragment = ""
	return u.String()
}

// ResolveURL resolves ref against base. It reports false when either side
// cannot be parsed or the result is not absolute.
func ResolveURL(base, ref string) (string, bool) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return "", false
	}
	b, err := url.Parse(base)
	if err != nil {
		return "", false
	}
	r, err := url.Parse(ref)
	if err != nil {
		return "", false
	}
	resolved := b.ResolveReference(r)
	if resolved.Scheme == "" || resolved.Host == "" {
		return "", false
	}
	return resolved.String(), true
}

// GetDomain returns the registrable domain of rawURL (e.g. "mercadolivre.com.br"
// for "https://produto.mercadolivre.com.br/MLB-1"), or "" when it cannot be
// determined.
func GetDomain(rawURL string) string {
	u, ok := parseAbsolute(rawURL)
	if !ok {
		return ""
	}
	host := strings.TrimPrefix(u.Hostname(), "www.")
	domain, err := publicsuffix.EffectiveTLDPlusOne(host)
	if err != nil {
		return host
	}
	return domain
}
