// Package useragent classifies inbound requests as social or search crawlers.
package useragent

import "strings"

// DefaultPatterns lists the crawler identifiers recognised when no list is configured.
var DefaultPatterns = []string{
	"WhatsApp",
	"facebookexternalhit",
	"Facebot",
	"TelegramBot",
	"Twitterbot",
	"LinkedInBot",
	"Slackbot",
	"Discordbot",
	"Pinterest",
	"Googlebot",
	"bingbot",
}

// Detector reports whether a User-Agent belongs to a crawler.
type Detector interface {
	IsCrawler(userAgent string) bool
}

// Classifier matches user agents against a fixed set of substrings.
// Matching is case-sensitive; crawler tokens are published with exact casing.
type Classifier struct {
	patterns []string
}

// New builds a Classifier, ignoring blank entries and duplicates.
func New(patterns []string) *Classifier {
	c := &Classifier{}
	seen := make(map[string]struct{}, len(patterns))
	for _, raw := range patterns {
		p := strings.TrimSpace(raw)
		if p == "" {
			continue
		}
		if _, dup := seen[p]; dup {
			continue
		}
		seen[p] = struct{}{}
		c.patterns = append(c.patterns, p)
	}
	return c
}

// IsCrawler reports whether userAgent contains any configured pattern.
func (c *Classifier) IsCrawler(userAgent string) bool {
	_, ok := c.Match(userAgent)
	return ok
}

// Match returns the first pattern contained in userAgent.
func (c *Classifier) Match(userAgent string) (string, bool) {
	if c == nil || userAgent == "" {
		return "", false
	}
	for _, p := range c.patterns {
		if strings.Contains(userAgent, p) {
			return p, true
		}
	}
	return "", false
}

// Patterns returns a copy of the active pattern list.
func (c *Classifier) Patterns() []string {
	if c == nil {
		return nil
	}
	return append([]string(nil), c.patterns...)
}
