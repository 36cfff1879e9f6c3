package scraper

import (
	"strings"

	"github.com/use-agent/authscout/engine"
)

// minStaticLen is the smallest static body trusted without a second look.
const minStaticLen = 1000

// Verdict is the outcome of Classify. Reason is a short metric-friendly
// label, empty when Escalate is false.
type Verdict struct {
	Escalate bool
	Reason   string
}

// blockRule flags bodies that look like a block page or a JavaScript shell.
type blockRule struct {
	reason string
	all    []string
}

var blockRules = []blockRule{
	{"captcha", []string{"captcha"}},
	{"robot_detected", []string{"robot", "detected"}},
	{"access_denied", []string{"access denied"}},
	{"javascript_required", []string{"please enable javascript"}},
	{"blocked", []string{"blocked"}},
	{"cloudflare_challenge", []string{"cloudflare", "checking"}},
}

// Classify decides whether statically fetched html should be re-fetched
// with the browser. found is the locator's verdict on the same html.
func Classify(html, pageURL string, found bool) Verdict {
	if len(html) < minStaticLen {
		return Verdict{Escalate: true, Reason: "short_body"}
	}

	lower := strings.ToLower(html)
	for _, r := range blockRules {
		if containsAll(lower, r.all) {
			return Verdict{Escalate: true, Reason: r.reason}
		}
	}

	if site, ok := engine.LookupSiteURL(pageURL); ok && site.HasErrorPage(html) {
		return Verdict{Escalate: true, Reason: "site_error"}
	}

	if !found && !engine.IsLoginURL(pageURL) {
		return Verdict{Escalate: true, Reason: "no_form"}
	}
	return Verdict{}
}

func containsAll(s string, subs []string) bool {
	for _, sub := range subs {
		if !strings.Contains(s, sub) {
			return false
		}
	}
	return true
}
