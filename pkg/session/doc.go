// Package session owns the visitor session lifecycle: a session is created
// on the first request from a visitor without a valid token, updated by every
// event that belongs to it, and ended either explicitly or by a periodic
// sweep once it has been inactive beyond the configured timeout.
//
// Sessions move through three states:
//
//	absent ──► active ──► ended
//
// Ended is terminal. Further activity against an ended session is rejected;
// the visitor gets a fresh session under a new identifier.
//
// All updates are read-modify-write against the injected key-value store and
// serialize per session through sharded locks, so the page_views/bounce
// invariant (bounce is true exactly when page_views <= 1) holds at every
// observable point even under concurrent events for the same visitor.
//
// # Usage
//
//	manager := session.NewManager(store,
//	    session.WithConfig(cfg),
//	    session.WithLogger(log),
//	)
//	sess, err := manager.ResolveOrCreate(ctx, token, session.Context{
//	    Referrer: referrer,
//	})
//	_, err = manager.RecordActivity(ctx, sess.ID, "page_view")
//
// The idle sweep runs on its own ticker, independent of traffic:
//
//	manager.Start(ctx)
//	defer manager.Stop()
package session
