package service

import (
	"hash/fnv"
	"sync"

	"github.com/joinguard/joinguard/model"
)

const keyLockShards = 64

// keyLock serializes event processing per (chat, user) key so that a racing
// answer and timeout cannot both win.
type keyLock struct {
	shards [keyLockShards]sync.Mutex
}

func (l *keyLock) Lock(key model.RecordKey) (unlock func()) {
	h := fnv.New32a()
	_, _ = h.Write(key.Bytes())
	mu := &l.shards[h.Sum32()%keyLockShards]
	mu.Lock()
	return mu.Unlock
}
