// Package funnel measures how sessions move through ordered sequences of
// events.
//
// A funnel is an ordered list of steps, each matching events by type, page
// URL or property values. A session enters the funnel at its first event
// matching step 0, and each later step counts only when matched at or after
// the previous step's match, within the conversion window of that first
// entry. Presence alone is not enough: a session that performs step 1
// before step 0 has not reached step 1.
//
// Analysis runs against the columnar event store, with segment and cohort
// partitions and touchpoint attribution for completed funnels. Live
// per-session progress is tracked in the key-value store with a TTL equal
// to the conversion window.
package funnel
