// Package useragent classifies HTTP User-Agent strings into the device,
// browser, operating system and bot attributes the ingestion pipeline
// attaches to every event.
//
// Classification is fast string matching over keyword sets; no allow-list is
// complete, so results are best-effort and unknown values are reported as
// "unknown" rather than guessed.
//
// Bot detection is a pure function over a pattern set. The default set covers
// common crawlers and monitoring tools; deployments can extend it:
//
//	det := useragent.NewBotDetector("mycorp-probe", "synthetic-check")
//	ua := useragent.Parse(raw, useragent.WithBotDetector(det))
//	if ua.IsBot() { ... }
package useragent
