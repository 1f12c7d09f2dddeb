package service

import "sync"

// KeyedMutex serializes transitions per applicant. The application service
// and the moderation gateway share one instance so a timer fire, a
// submission and a moderator decision for the same identity are totally
// ordered. Entries are never reaped; the map is bounded by the number of
// applicants ever seen, which is small for this workload.
type KeyedMutex struct {
	mu      sync.Mutex
	entries map[int64]*sync.Mutex
}

func NewKeyedMutex() *KeyedMutex {
	return &KeyedMutex{entries: make(map[int64]*sync.Mutex)}
}

func (k *KeyedMutex) Lock(id int64) {
	k.mu.Lock()
	m, ok := k.entries[id]
	if !ok {
		m = &sync.Mutex{}
		k.entries[id] = m
	}
	k.mu.Unlock()
	m.Lock()
}

func (k *KeyedMutex) Unlock(id int64) {
	k.mu.Lock()
	m := k.entries[id]
	k.mu.Unlock()
	m.Unlock()
}
