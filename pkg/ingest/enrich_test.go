package ingest

import (
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/trackkit/trackkit/pkg/privacy"
)

func TestAttribute(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		pageURL  string
		referrer string
		want     trafficAttribution
	}{
		{
			name:     "utm parameters win over referrer",
			pageURL:  "https://example.com/?utm_source=newsletter&utm_medium=email&utm_campaign=launch",
			referrer: "https://www.google.com/",
			want:     trafficAttribution{source: "newsletter", medium: "email", campaign: "launch"},
		},
		{
			name:     "search engine referrer",
			pageURL:  "https://example.com/pricing",
			referrer: "https://www.google.com/search?q=example",
			want:     trafficAttribution{source: "google", medium: "organic"},
		},
		{
			name:     "social referrer",
			pageURL:  "https://example.com/",
			referrer: "https://t.co/abc123",
			want:     trafficAttribution{source: "twitter", medium: "social"},
		},
		{
			name:     "plain referrer",
			pageURL:  "https://example.com/",
			referrer: "https://blog.partner.io/post",
			want:     trafficAttribution{source: "blog.partner.io", medium: "referral"},
		},
		{
			name:    "no referrer is direct",
			pageURL: "https://example.com/",
			want:    trafficAttribution{source: "direct", medium: "none"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, attribute(tt.pageURL, tt.referrer))
		})
	}
}

func TestHashIP(t *testing.T) {
	t.Parallel()

	assert.Empty(t, hashIP("", "salt"))

	a := hashIP("203.0.113.7", "salt")
	b := hashIP("203.0.113.7", "salt")
	assert.Equal(t, a, b, "hash is deterministic")
	assert.Len(t, a, 64)

	assert.NotEqual(t, a, hashIP("203.0.113.7", "other-salt"), "salt changes the digest")
	assert.NotEqual(t, a, hashIP("203.0.113.8", "salt"))
}

func TestCategoryOf(t *testing.T) {
	t.Parallel()

	assert.Equal(t, privacy.CategoryEssential, categoryOf(EventError))
	assert.Equal(t, privacy.CategoryEssential, categoryOf(EventPerformance))
	assert.Equal(t, privacy.CategoryAnalytics, categoryOf(EventPageView))
	assert.Equal(t, privacy.CategoryAnalytics, categoryOf(EventConversion))
}

func TestRequestContextFromHTTP(t *testing.T) {
	t.Parallel()

	r := httptest.NewRequest("POST", "/track", nil)
	r.Header.Set("User-Agent", "agent")
	r.Header.Set("X-Real-IP", "198.51.100.4")
	r.Header.Set("CF-IPCountry", "NL")

	rc := RequestContextFromHTTP(r, "tok")
	assert.Equal(t, "tok", rc.SessionToken)
	assert.Equal(t, "agent", rc.UserAgent)
	assert.Equal(t, "198.51.100.4", rc.IP)
	assert.Equal(t, "NL", rc.Country)
}
