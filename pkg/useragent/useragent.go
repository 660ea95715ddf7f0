package useragent

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Device types represent the category of device that made the request.
const (
	DeviceTypeBot     = "bot"
	DeviceTypeMobile  = "mobile"
	DeviceTypeTablet  = "tablet"
	DeviceTypeDesktop = "desktop"
	DeviceTypeUnknown = "unknown"
)

// UserAgent contains the parsed attributes of a user agent string.
type UserAgent struct {
	raw        string
	deviceType string
	os         string
	browser    string
	botName    string
}

// String returns the raw user agent string.
func (ua UserAgent) String() string { return ua.raw }

// DeviceType returns one of the DeviceType constants.
func (ua UserAgent) DeviceType() string { return ua.deviceType }

// OS returns the operating system name or "unknown".
func (ua UserAgent) OS() string { return ua.os }

// Browser returns the browser name or "unknown".
func (ua UserAgent) Browser() string { return ua.browser }

// BotName returns the detected bot name, empty for non-bots.
func (ua UserAgent) BotName() string { return ua.botName }

// IsBot reports whether the user agent matched the bot pattern set.
func (ua UserAgent) IsBot() bool { return ua.deviceType == DeviceTypeBot }

// IsMobile reports whether the device is a phone.
func (ua UserAgent) IsMobile() bool { return ua.deviceType == DeviceTypeMobile }

// ParseOption customizes parsing.
type ParseOption func(*parseConfig)

type parseConfig struct {
	botDetector *BotDetector
}

// WithBotDetector replaces the default bot pattern set.
func WithBotDetector(d *BotDetector) ParseOption {
	return func(c *parseConfig) {
		if d != nil {
			c.botDetector = d
		}
	}
}

// Parse classifies a user agent string.
func Parse(raw string, opts ...ParseOption) UserAgent {
	cfg := parseConfig{botDetector: defaultBotDetector}
	for _, opt := range opts {
		opt(&cfg)
	}

	ua := UserAgent{raw: raw}
	if raw == "" {
		ua.deviceType = DeviceTypeUnknown
		ua.os = "unknown"
		ua.browser = "unknown"
		return ua
	}

	lower := strings.ToLower(raw)

	if cfg.botDetector.IsBot(raw) {
		ua.deviceType = DeviceTypeBot
		ua.botName = cfg.botDetector.BotName(raw)
		ua.os = "unknown"
		ua.browser = parseBrowser(lower)
		return ua
	}

	ua.deviceType = parseDeviceType(lower)
	ua.os = parseOS(lower)
	ua.browser = parseBrowser(lower)
	return ua
}

type keywordSet []string

func (k keywordSet) matches(s string) bool {
	for _, keyword := range k {
		if strings.Contains(s, keyword) {
			return true
		}
	}
	return false
}

var (
	tabletKeywords  = keywordSet{"ipad", "tablet", "kindle", "silk", "sm-t", "gt-p"}
	mobileKeywords  = keywordSet{"mobile", "iphone", "ipod", "android", "windows phone", "iemobile", "blackberry"}
	desktopKeywords = keywordSet{"windows", "macintosh", "mac os x", "linux", "x11", "cros"}
)

// parseDeviceType classifies devices. Order matters: tablets carry mobile
// markers too, so they are checked first; Android without "mobile" is a
// tablet by convention.
func parseDeviceType(lower string) string {
	switch {
	case tabletKeywords.matches(lower):
		return DeviceTypeTablet
	case strings.Contains(lower, "android") && !strings.Contains(lower, "mobile"):
		return DeviceTypeTablet
	case mobileKeywords.matches(lower):
		return DeviceTypeMobile
	case desktopKeywords.matches(lower):
		return DeviceTypeDesktop
	default:
		return DeviceTypeUnknown
	}
}

func parseOS(lower string) string {
	switch {
	case strings.Contains(lower, "windows phone"):
		return "windows phone"
	case strings.Contains(lower, "windows"):
		return "windows"
	case strings.Contains(lower, "iphone"), strings.Contains(lower, "ipad"), strings.Contains(lower, "ipod"):
		return "ios"
	case strings.Contains(lower, "mac os x"), strings.Contains(lower, "macintosh"):
		return "macos"
	case strings.Contains(lower, "android"):
		return "android"
	case strings.Contains(lower, "cros"):
		return "chromeos"
	case strings.Contains(lower, "linux"), strings.Contains(lower, "x11"):
		return "linux"
	default:
		return "unknown"
	}
}

// parseBrowser identifies the browser family. Order matters: Chrome-family
// browsers embed "chrome" and Safari embeds "safari" in nearly every UA, so
// the more specific markers come first.
func parseBrowser(lower string) string {
	switch {
	case strings.Contains(lower, "edg/"), strings.Contains(lower, "edge"):
		return "edge"
	case strings.Contains(lower, "opr/"), strings.Contains(lower, "opera"):
		return "opera"
	case strings.Contains(lower, "firefox"):
		return "firefox"
	case strings.Contains(lower, "chrome"), strings.Contains(lower, "crios"):
		return "chrome"
	case strings.Contains(lower, "safari"):
		return "safari"
	case strings.Contains(lower, "msie"), strings.Contains(lower, "trident"):
		return "ie"
	default:
		return "unknown"
	}
}

var titleCaser = cases.Title(language.English)
