package locator

import (
	"strings"

	"github.com/andybalholm/cascadia"
	"golang.org/x/net/html"
)

// Keyword sets used by the matchers. All comparisons are on lower-cased
// attribute values.
var (
	identityKeywords     = []string{"user", "login", "email", "account", "phone"}
	identityKeywordsWide = []string{"user", "login", "email", "account", "phone", "mobile"}
	hintKeywords         = []string{"email", "phone", "user", "login", "account"}
	placeholderKeywords  = []string{"email", "phone", "user", "login", "account", "username"}
	autocompleteKeywords = []string{"username", "email", "tel"}
	containerKeywords    = []string{"login", "signin", "sign-in", "auth", "authentication", "form"}
	submitKeywords       = []string{"submit", "login", "sign"}
	submitTexts          = []string{"sign in", "login", "log in", "submit", "continue", "next"}
)

// attr returns the value of key on n, or "".
func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

func tag(name string) cascadia.Selector {
	return func(n *html.Node) bool {
		return n.Type == html.ElementNode && n.Data == name
	}
}

func and(sels ...cascadia.Selector) cascadia.Selector {
	return func(n *html.Node) bool {
		for _, s := range sels {
			if !s(n) {
				return false
			}
		}
		return true
	}
}

func or(sels ...cascadia.Selector) cascadia.Selector {
	return func(n *html.Node) bool {
		for _, s := range sels {
			if s(n) {
				return true
			}
		}
		return false
	}
}

// attrIs matches a case-insensitive attribute value.
func attrIs(key, value string) cascadia.Selector {
	return func(n *html.Node) bool {
		return strings.EqualFold(strings.TrimSpace(attr(n, key)), value)
	}
}

// attrHas matches when the lower-cased attribute contains any keyword.
func attrHas(key string, keywords []string) cascadia.Selector {
	return func(n *html.Node) bool {
		return containsAny(strings.ToLower(attr(n, key)), keywords)
	}
}

// textHas matches when the element's text contains any keyword.
func textHas(keywords []string) cascadia.Selector {
	return func(n *html.Node) bool {
		return containsAny(strings.ToLower(nodeText(n)), keywords)
	}
}

func containsAny(s string, keywords []string) bool {
	if s == "" {
		return false
	}
	for _, kw := range keywords {
		if strings.Contains(s, kw) {
			return true
		}
	}
	return false
}

func nodeText(n *html.Node) string {
	var b strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			b.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return b.String()
}

var (
	input  = tag("input")
	button = tag("button")
	form   = tag("form")

	passwordInput = and(input, attrIs("type", "password"))

	// identifierInput decides whether a walked container also holds
	// something a user would type an identity into.
	identifierInput = and(input, or(
		attrIs("type", "text"),
		attrIs("type", "email"),
		attrHas("name", identityKeywords),
		attrHas("id", identityKeywords),
		attrHas("placeholder", hintKeywords),
		attrHas("aria-label", hintKeywords),
	))

	// authContainer matches containers whose class or id names them as a
	// login area.
	authContainer = or(
		attrHas("class", containerKeywords),
		attrHas("id", containerKeywords),
	)
)

// usernameRules are tried in order; the first rule with a match inside the
// container wins.
var usernameRules = []cascadia.Selector{
	and(input, attrIs("type", "text")),
	and(input, attrIs("type", "email")),
	and(input, attrIs("type", "tel")),
	and(input, attrHas("name", identityKeywordsWide)),
	and(input, attrHas("id", identityKeywordsWide)),
	and(input, attrHas("placeholder", placeholderKeywords)),
	and(input, attrHas("aria-label", hintKeywords)),
	and(input, attrHas("autocomplete", autocompleteKeywords)),
}

var submitNamed = or(
	attrHas("class", submitKeywords),
	attrHas("id", submitKeywords),
	attrHas("name", submitKeywords),
)

// submitRules are tried in order like usernameRules.
var submitRules = []cascadia.Selector{
	and(input, attrIs("type", "submit")),
	and(button, attrIs("type", "submit")),
	and(input, attrIs("type", "button"), submitNamed),
	and(button, submitNamed),
	and(button, textHas(submitTexts)),
}
