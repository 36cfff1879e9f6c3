// Package locator finds the login form of an HTML page.
//
// Locate is pure: it never fetches, never errors and never panics. Pages
// without a password input yield an AuthComponent with Found=false.
package locator

import (
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/andybalholm/cascadia"
	"github.com/use-agent/authscout/models"
	"golang.org/x/net/html"
)

const (
	// maxWalkDepth bounds the ancestor walk from a password input.
	maxWalkDepth = 10

	// maxFallbackDepth bounds the search for any multi-input ancestor.
	maxFallbackDepth = 5
)

// container is the resolved logical form.
type container struct {
	sel *goquery.Selection

	// qualified is false for the last-resort container, which is then
	// not reported as a form element.
	qualified bool
}

// Locate parses rawHTML and describes the login form anchored on its
// first suitable password input. baseURL is used to resolve the form
// action.
func Locate(rawHTML, baseURL string) models.AuthComponent {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(rawHTML))
	if err != nil {
		return models.AuthComponent{}
	}

	passwords := doc.FindMatcher(passwordInput)
	if passwords.Length() == 0 {
		return models.AuthComponent{}
	}

	c := resolveContainer(passwords)

	comp := models.AuthComponent{
		Found:         true,
		HTMLSnippet:   outerHTML(c.sel),
		UsernameInput: outerHTML(firstMatch(c.sel, usernameRules)),
		PasswordInput: outerHTML(passwordIn(c.sel)),
		SubmitButton:  outerHTML(firstMatch(c.sel, submitRules)),
		Method:        "GET",
		Action:        baseURL,
	}
	if c.qualified {
		comp.FormElement = comp.HTMLSnippet
	}

	if isForm(c.sel) {
		if m := strings.TrimSpace(c.sel.AttrOr("method", "")); m != "" {
			comp.Method = strings.ToUpper(m)
		}
		comp.Action = resolveAction(baseURL, strings.TrimSpace(c.sel.AttrOr("action", "")))
	}
	return comp
}

// resolveContainer picks the logical form for the given password inputs.
// A <form> ancestor of any password input wins; otherwise the first
// container found by the ancestor walk is used.
func resolveContainer(passwords *goquery.Selection) container {
	var walked *goquery.Selection

	for i := range passwords.Nodes {
		pw := passwords.Eq(i)

		if f := pw.ParentsMatcher(form).First(); f.Length() > 0 {
			return container{sel: f, qualified: true}
		}
		if walked == nil {
			walked = walkAncestors(pw)
		}
	}
	if walked != nil {
		return container{sel: walked, qualified: true}
	}
	return fallbackContainer(passwords.First())
}

// walkAncestors climbs from the input's parent looking for an element that
// holds both credential inputs, or that is named like a login area.
func walkAncestors(pw *goquery.Selection) *goquery.Selection {
	parent := pw.Parent()
	for depth := 0; depth < maxWalkDepth && isElement(parent); depth++ {
		if goquery.NodeName(parent) == "body" {
			break
		}
		hasPassword := parent.FindMatcher(passwordInput).Length() > 0
		if hasPassword && parent.FindMatcher(identifierInput).Length() > 0 {
			return parent
		}
		if hasPassword && authContainer(parent.Get(0)) {
			return parent
		}
		parent = parent.Parent()
	}
	return nil
}

// fallbackContainer handles pages where nothing qualified: the nearest
// ancestor with at least two inputs, else the grandparent, parent or the
// input itself.
func fallbackContainer(pw *goquery.Selection) container {
	parent := pw.Parent()
	for i := 0; i < maxFallbackDepth && isElement(parent); i++ {
		if parent.FindMatcher(input).Length() >= 2 {
			return container{sel: parent, qualified: true}
		}
		parent = parent.Parent()
	}

	switch p := pw.Parent(); {
	case isElement(p.Parent()):
		return container{sel: p.Parent()}
	case isElement(p):
		return container{sel: p}
	default:
		return container{sel: pw}
	}
}

// firstMatch applies rules in order and returns the first element in
// document order matched by the first rule that matches anything.
func firstMatch(c *goquery.Selection, rules []cascadia.Selector) *goquery.Selection {
	for _, rule := range rules {
		if m := c.FindMatcher(rule).First(); m.Length() > 0 {
			return m
		}
	}
	return nil
}

// passwordIn returns the first password input inside c, or c itself when
// c is the password input.
func passwordIn(c *goquery.Selection) *goquery.Selection {
	if c.Length() > 0 && passwordInput(c.Get(0)) {
		return c
	}
	return c.FindMatcher(passwordInput).First()
}

// resolveAction joins action against baseURL. An empty action or a
// resolution failure keeps baseURL.
func resolveAction(baseURL, action string) string {
	if action == "" {
		return baseURL
	}
	base, err := url.Parse(baseURL)
	if err != nil {
		return baseURL
	}
	ref, err := base.Parse(action)
	if err != nil {
		return baseURL
	}
	return ref.String()
}

func isElement(s *goquery.Selection) bool {
	return s != nil && s.Length() > 0 && s.Get(0).Type == html.ElementNode
}

func isForm(s *goquery.Selection) bool {
	return isElement(s) && form(s.Get(0))
}

func outerHTML(s *goquery.Selection) string {
	if s == nil || s.Length() == 0 {
		return ""
	}
	h, err := goquery.OuterHtml(s)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(h)
}
