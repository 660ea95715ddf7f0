// Package columnar provides the append-only event store collaborator: batched
// inserts of analytics records, ad-hoc analytical queries and DDL commands.
//
// The package is storage-agnostic: any backend satisfying the Store interface
// can be plugged in. A PostgreSQL implementation on pgx ships for production
// use, and an in-memory implementation ships for tests.
//
// Inserts are at-least-once from the pipeline's perspective: a flush that
// failed mid-way may be retried whole, so the backing store (or a downstream
// dedup key such as event_id) must tolerate duplicates.
//
// Tables consumed and produced by the kit: events, sessions, conversions and
// experiments, each partitioned by time and retained per a configurable TTL
// owned by the store.
package columnar
