// Package cache provides a small thread-safe LRU cache used for in-process
// working sets such as experiment definitions, so hot lookups avoid a
// round trip to the key-value store.
//
// The cache is an explicit, injected object per the kit's no-global-state
// rule; construct one and hand it to the component that needs it.
package cache
