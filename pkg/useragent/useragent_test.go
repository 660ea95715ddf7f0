package useragent_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/trackkit/trackkit/pkg/useragent"
)

const (
	chromeMacUA    = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"
	safariIPhoneUA = "Mozilla/5.0 (iPhone; CPU iPhone OS 17_0 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.0 Mobile/15E148 Safari/604.1"
	firefoxLinuxUA = "Mozilla/5.0 (X11; Linux x86_64; rv:121.0) Gecko/20100101 Firefox/121.0"
	ipadUA         = "Mozilla/5.0 (iPad; CPU OS 16_6 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/16.6 Mobile/15E148 Safari/604.1"
	googlebotUA    = "Mozilla/5.0 (compatible; Googlebot/2.1; +http://www.google.com/bot.html)"
)

func TestParse(t *testing.T) {
	t.Parallel()

	t.Run("desktop chrome on macos", func(t *testing.T) {
		ua := useragent.Parse(chromeMacUA)
		assert.Equal(t, useragent.DeviceTypeDesktop, ua.DeviceType())
		assert.Equal(t, "macos", ua.OS())
		assert.Equal(t, "chrome", ua.Browser())
		assert.False(t, ua.IsBot())
	})

	t.Run("mobile safari on ios", func(t *testing.T) {
		ua := useragent.Parse(safariIPhoneUA)
		assert.Equal(t, useragent.DeviceTypeMobile, ua.DeviceType())
		assert.Equal(t, "ios", ua.OS())
		assert.Equal(t, "safari", ua.Browser())
		assert.True(t, ua.IsMobile())
	})

	t.Run("desktop firefox on linux", func(t *testing.T) {
		ua := useragent.Parse(firefoxLinuxUA)
		assert.Equal(t, useragent.DeviceTypeDesktop, ua.DeviceType())
		assert.Equal(t, "linux", ua.OS())
		assert.Equal(t, "firefox", ua.Browser())
	})

	t.Run("ipad is a tablet", func(t *testing.T) {
		ua := useragent.Parse(ipadUA)
		assert.Equal(t, useragent.DeviceTypeTablet, ua.DeviceType())
		assert.Equal(t, "ios", ua.OS())
	})

	t.Run("empty string is treated as a bot device", func(t *testing.T) {
		ua := useragent.Parse("")
		assert.Equal(t, useragent.DeviceTypeUnknown, ua.DeviceType())
	})
}

func TestBotDetector(t *testing.T) {
	t.Parallel()

	t.Run("default patterns catch crawlers", func(t *testing.T) {
		ua := useragent.Parse(googlebotUA)
		assert.True(t, ua.IsBot())
		assert.Equal(t, useragent.DeviceTypeBot, ua.DeviceType())
		assert.Equal(t, "Googlebot", ua.BotName())
	})

	t.Run("detection is a pure function", func(t *testing.T) {
		det := useragent.NewBotDetector()
		for n := 0; n < 3; n++ {
			assert.True(t, det.IsBot(googlebotUA))
			assert.False(t, det.IsBot(chromeMacUA))
		}
	})

	t.Run("custom pattern extends default set", func(t *testing.T) {
		det := useragent.NewBotDetector("mycorp-probe")
		assert.True(t, det.IsBot("MyCorp-Probe/1.0"))
		assert.False(t, det.IsBot(chromeMacUA))

		ua := useragent.Parse("MyCorp-Probe/1.0", useragent.WithBotDetector(det))
		assert.True(t, ua.IsBot())
	})

	t.Run("empty user agent is a bot", func(t *testing.T) {
		det := useragent.NewBotDetector()
		assert.True(t, det.IsBot(""))
	})
}
