// Package ingest implements the event ingestion and batching pipeline:
// inbound raw events are validated, bound to a visitor session, enriched with
// device/geo/bot attributes, sampled, and buffered in a bounded in-memory
// queue that a background flusher writes to the columnar store in batches.
//
// Track is fire-and-forget: the caller pays for validation, session
// resolution and an in-memory enqueue, never for store I/O. A batch is
// flushed when the queue reaches the configured size threshold or when the
// flush interval elapses, whichever comes first. A failed flush is re-queued
// at the front of the queue so event order is preserved; sustained backend
// unavailability degrades to bounded queue growth and then to counted
// oldest-first shedding, never to a silent drop.
//
// # Usage
//
//	pipeline, err := ingest.NewPipeline(events, sessions,
//	    ingest.WithConfig(cfg),
//	    ingest.WithConsent(consentChecker),
//	)
//	if err != nil {
//	    return err
//	}
//	pipeline.Start(ctx)
//	defer pipeline.Stop()
//
//	eventID, err := pipeline.Track(ctx, raw, reqCtx)
package ingest
