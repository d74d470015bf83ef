package entry

import (
	"sync"

	"github.com/disgoorg/snowflake/v2"
)

const lockShards = 32

type lockKey struct {
	messageID snowflake.ID
	targetID  int64
}

type keyedLock struct {
	mu   sync.Mutex
	refs int
}

type lockShard struct {
	mu    sync.Mutex
	locks map[lockKey]*keyedLock
}

// KeyedLocks is a table of exclusive sections indexed by (message, target).
// Entries are created on demand and dropped once no caller holds or waits on them.
type KeyedLocks struct {
	shards [lockShards]lockShard
}

// NewKeyedLocks creates an empty lock table.
func NewKeyedLocks() *KeyedLocks {
	k := &KeyedLocks{}
	for i := range k.shards {
		k.shards[i].locks = make(map[lockKey]*keyedLock)
	}
	return k
}

func (k *KeyedLocks) shard(key lockKey) *lockShard {
	return &k.shards[(uint64(key.messageID)^uint64(key.targetID))%lockShards]
}

// Lock blocks until the section of (messageID, targetID) is free and returns
// the function releasing it. The release function must be called exactly once.
func (k *KeyedLocks) Lock(messageID snowflake.ID, targetID int64) func() {
	key := lockKey{messageID: messageID, targetID: targetID}
	s := k.shard(key)

	s.mu.Lock()
	l, ok := s.locks[key]
	if !ok {
		l = &keyedLock{}
		s.locks[key] = l
	}
	l.refs++
	s.mu.Unlock()

	l.mu.Lock()

	return func() {
		l.mu.Unlock()

		s.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(s.locks, key)
		}
		s.mu.Unlock()
	}
}

// Len returns the number of sections currently held or awaited.
func (k *KeyedLocks) Len() int {
	n := 0
	for i := range k.shards {
		s := &k.shards[i]
		s.mu.Lock()
		n += len(s.locks)
		s.mu.Unlock()
	}
	return n
}
