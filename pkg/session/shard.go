package session

import (
	"hash/fnv"
	"sync"
)

const shardCount = 64

// shardedLocks serializes read-modify-write cycles per session without a
// global lock: two updates to the same session always contend, updates to
// different sessions almost never do.
type shardedLocks struct {
	shards [shardCount]sync.Mutex
}

func (l *shardedLocks) lock(sessionID string) *sync.Mutex {
	h := fnv.New32a()
	_, _ = h.Write([]byte(sessionID))
	return &l.shards[h.Sum32()%shardCount]
}
