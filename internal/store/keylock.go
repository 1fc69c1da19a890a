package store

import "sync"

// KeyLocks hands out one mutex per key so every read-modify-write of a keyed
// document goes through a single writer for that key. The upload session
// store shares this discipline.
type KeyLocks struct {
	mu sync.Mutex
	m  map[string]*sync.Mutex
}

func NewKeyLocks() *KeyLocks {
	return &KeyLocks{m: make(map[string]*sync.Mutex)}
}

// Lock acquires the mutex for key and returns its unlock func.
func (k *KeyLocks) Lock(key string) func() {
	k.mu.Lock()
	l, ok := k.m[key]
	if !ok {
		l = &sync.Mutex{}
		k.m[key] = l
	}
	k.mu.Unlock()
	l.Lock()
	return l.Unlock
}
