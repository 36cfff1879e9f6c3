package scraper

import (
	"net/url"
	"strings"

	"github.com/use-agent/authscout/models"
)

// NormalizeURL trims raw, assumes https when no scheme is given and
// requires an http(s) URL with a host.
func NormalizeURL(raw string) (string, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return "", models.NewScrapeError(models.ErrCodeInvalidURL, models.MsgInvalidURL, nil)
	}
	if !strings.Contains(s, "://") {
		s = "https://" + s
	}

	u, err := url.Parse(s)
	if err != nil {
		return "", models.NewScrapeError(models.ErrCodeInvalidURL, models.MsgInvalidURL, err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Hostname() == "" {
		return "", models.NewScrapeError(models.ErrCodeInvalidURL, models.MsgInvalidURL, nil)
	}
	return u.String(), nil
}

// originOf returns scheme://host of an already normalised URL.
func originOf(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return rawURL
	}
	return u.Scheme + "://" + u.Host
}
