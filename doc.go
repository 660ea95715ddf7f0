// Package trackkit is a behavioral-analytics toolkit: event ingestion,
// session tracking, controlled experiments and funnel analysis, backed by a
// key-value store for hot state and a columnar store for history.
//
// Each concern lives in its own package under pkg/ and can be used alone;
// this package wires them into a ready-to-run Kit:
//
//	store := kv.NewMemory(time.Minute)
//	events := columnar.NewMemory()
//	kit, err := trackkit.New(events, store)
//	if err != nil {
//		log.Fatal(err)
//	}
//	go kit.Run(ctx)
//
//	kit.Pipeline.Track(ctx, raw, reqCtx)
//
// Production deployments pass kv.Connect and columnar.Connect results
// instead of the in-memory stores.
package trackkit
