package useragent

import (
	"regexp"
	"strings"
)

// defaultBotPatterns cover common crawlers, social previews and monitoring
// tools. Matching is case-insensitive substring search.
var defaultBotPatterns = []string{
	"bot", "spider", "crawler", "slurp", "archiver",
	"facebookexternalhit", "whatsapp", "telegram", "slack", "linkedin",
	"lighthouse", "pingdom", "uptimerobot", "monitor", "scraper",
	"headless", "phantomjs", "python-requests", "curl/", "wget/",
}

var botNamePattern = regexp.MustCompile(`(?i)([a-z0-9\-_]+(?:bot|spider|crawler))`)

// BotDetector classifies user agents as automated clients based on a
// substring pattern set. Detection is a pure function of its input: the same
// string always yields the same answer.
type BotDetector struct {
	patterns []string
}

var defaultBotDetector = NewBotDetector()

// NewBotDetector builds a detector from the default pattern set plus any
// extra patterns. Patterns are matched case-insensitively as substrings.
func NewBotDetector(extra ...string) *BotDetector {
	patterns := make([]string, 0, len(defaultBotPatterns)+len(extra))
	patterns = append(patterns, defaultBotPatterns...)
	for _, p := range extra {
		patterns = append(patterns, strings.ToLower(p))
	}
	return &BotDetector{patterns: patterns}
}

// IsBot reports whether the user agent matches any configured pattern.
// An empty user agent is treated as a bot: real browsers always send one.
func (d *BotDetector) IsBot(userAgent string) bool {
	if userAgent == "" {
		return true
	}
	lower := strings.ToLower(userAgent)
	for _, pattern := range d.patterns {
		if strings.Contains(lower, pattern) {
			return true
		}
	}
	return false
}

// BotName extracts a readable bot name from the user agent, falling back to
// "Unknown Bot" when no name-shaped token exists.
func (d *BotDetector) BotName(userAgent string) string {
	if match := botNamePattern.FindString(userAgent); match != "" {
		return titleCaser.String(strings.ToLower(match))
	}
	return "Unknown Bot"
}
