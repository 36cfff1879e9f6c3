package engine

import (
	"net/url"
	"strings"
)

// SiteStrategy carries the per-site tweaks of the rendered fetch and the
// block classifier. Sites are matched by host substring.
type SiteStrategy struct {
	// Domain is matched as a substring of the lower-cased host.
	Domain string

	// WarmupURL, if set, is visited before a direct login URL so the
	// session picks up the cookies the site expects.
	WarmupURL string

	// LinkSelectors are tried after the generic login-link selectors.
	LinkSelectors []string

	// ErrorMarker flags a site error page when present in a body shorter
	// than ErrorMaxLen bytes.
	ErrorMarker string
	ErrorMaxLen int
}

var siteStrategies = []SiteStrategy{
	{
		Domain:        "amazon.com",
		WarmupURL:     "https://www.amazon.com",
		LinkSelectors: []string{"#nav-link-accountList", `a[href*="ap/signin"]`},
		ErrorMarker:   "ap_error",
		ErrorMaxLen:   5000,
	},
	{
		Domain:        "github.com",
		LinkSelectors: []string{`a[href="/login"]`},
	},
	{
		Domain:        "linkedin.com",
		LinkSelectors: []string{`a[href*="/login"]`},
	},
}

// LookupSite returns the strategy whose domain occurs in host, if any.
func LookupSite(host string) (SiteStrategy, bool) {
	host = strings.ToLower(host)
	for _, s := range siteStrategies {
		if strings.Contains(host, s.Domain) {
			return s, true
		}
	}
	return SiteStrategy{}, false
}

// LookupSiteURL is LookupSite for a full URL. Unparseable URLs match nothing.
func LookupSiteURL(rawURL string) (SiteStrategy, bool) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return SiteStrategy{}, false
	}
	return LookupSite(u.Hostname())
}

// HasErrorPage reports whether html looks like the site's own error page.
func (s SiteStrategy) HasErrorPage(html string) bool {
	if s.ErrorMarker == "" {
		return false
	}
	return len(html) < s.ErrorMaxLen && strings.Contains(strings.ToLower(html), s.ErrorMarker)
}

var loginKeywords = []string{"login", "signin", "sign-in", "sign_in", "auth", "authenticate", "log-in"}

// IsLoginURL reports whether the URL itself points at a login page.
func IsLoginURL(rawURL string) bool {
	lower := strings.ToLower(rawURL)
	for _, kw := range loginKeywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}
