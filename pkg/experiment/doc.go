// Package experiment implements controlled experimentation: deterministic,
// sticky assignment of visitors to variants and statistically rigorous
// evaluation of the results.
//
// # Assignment
//
// Assignment is a pure function of (user, experiment): the same pair always
// lands in the same variant, across restarts and across implementations. The
// bucket is computed as
//
//	xxhash64(user_id + ":" + experiment_id) / 2^64
//
// mapped onto the cumulative variant weights in declared order. xxhash was
// chosen because it has first-class implementations in every major language;
// inputs are the raw UTF-8 bytes of the two ids joined by a colon. Changing
// either the hash or the encoding after launch reshuffles every visitor.
//
// The persisted assignment in the key-value store remains authoritative: once
// stored it is returned unconditionally, even if variant weights change.
//
// # Analysis
//
// Results are evaluated with a two-proportion z-test against the first
// declared variant (the control). Below the minimum sample size the engine
// reports insufficient data instead of a spurious significance verdict.
package experiment
