package ingest

import (
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"net/url"
	"strings"

	"github.com/trackkit/trackkit/pkg/clientip"
	"github.com/trackkit/trackkit/pkg/privacy"
)

// RequestContextFromHTTP builds a RequestContext from an inbound HTTP
// request: the conventional entry point for the thin transport layer.
func RequestContextFromHTTP(r *http.Request, sessionToken string) RequestContext {
	return RequestContext{
		SessionToken: sessionToken,
		UserAgent:    r.UserAgent(),
		IP:           clientip.GetIP(r),
		Country:      r.Header.Get("CF-IPCountry"),
	}
}

// hashIP returns a salted SHA-256 digest of the client IP, or "" for an
// empty IP. The cleartext never reaches storage.
func hashIP(ip, salt string) string {
	if ip == "" {
		return ""
	}
	sum := sha256.Sum256([]byte(salt + ip))
	return hex.EncodeToString(sum[:])
}

// trafficAttribution is the source/medium/campaign triple derived from the
// referrer and UTM parameters.
type trafficAttribution struct {
	source   string
	medium   string
	campaign string
}

var searchEngines = map[string]string{
	"google":     "google",
	"bing":       "bing",
	"duckduckgo": "duckduckgo",
	"yahoo":      "yahoo",
	"yandex":     "yandex",
	"baidu":      "baidu",
}

var socialNetworks = map[string]string{
	"facebook":  "facebook",
	"instagram": "instagram",
	"twitter":   "twitter",
	"x.com":     "twitter",
	"t.co":      "twitter",
	"linkedin":  "linkedin",
	"reddit":    "reddit",
	"youtube":   "youtube",
	"tiktok":    "tiktok",
}

// attribute derives traffic attribution. UTM parameters on the landing URL
// win over referrer classification; no referrer and no UTM means direct.
func attribute(pageURL, referrer string) trafficAttribution {
	if u, err := url.Parse(pageURL); err == nil {
		q := u.Query()
		if source := q.Get("utm_source"); source != "" {
			return trafficAttribution{
				source:   source,
				medium:   q.Get("utm_medium"),
				campaign: q.Get("utm_campaign"),
			}
		}
	}

	if referrer == "" {
		return trafficAttribution{source: "direct", medium: "none"}
	}

	ref, err := url.Parse(referrer)
	if err != nil || ref.Host == "" {
		return trafficAttribution{source: "direct", medium: "none"}
	}

	host := strings.ToLower(ref.Host)
	for needle, name := range searchEngines {
		if strings.Contains(host, needle) {
			return trafficAttribution{source: name, medium: "organic"}
		}
	}
	for needle, name := range socialNetworks {
		if strings.Contains(host, needle) {
			return trafficAttribution{source: name, medium: "social"}
		}
	}

	return trafficAttribution{source: host, medium: "referral"}
}

// categoryOf maps event types onto consent categories. Errors and
// performance samples are essential; everything else is analytics.
func categoryOf(t EventType) privacy.Category {
	switch t {
	case EventError, EventPerformance:
		return privacy.CategoryEssential
	default:
		return privacy.CategoryAnalytics
	}
}
