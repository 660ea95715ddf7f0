// Package kv provides the key-value store collaborator used across the kit
// for session documents, sticky experiment assignments, variant counters and
// live funnel progress.
//
// The package is storage-agnostic: any backend satisfying the Store interface
// can be plugged in. A Redis implementation built on go-redis ships for
// production use, and a concurrent in-memory implementation ships for tests
// and single-process deployments.
//
// # Key namespaces
//
// Callers own their key layout; the conventional namespaces are:
//
//	session:<id>                        session documents
//	experiment:config:<id>              experiment definitions
//	experiment:stats:<id>:<variant>     running variant counters
//	experiment:<id>:<user>              sticky variant assignments
//	funnel:progress:<session>:<funnel>  live funnel progress
//
// # Usage
//
//	client, err := kv.Connect(ctx, cfg)
//	if err != nil {
//	    return err
//	}
//	store := kv.NewRedis(client)
//	err = store.Set(ctx, "session:abc", payload, 30*time.Minute)
package kv
