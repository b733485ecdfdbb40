package cache

import (
	"strings"
	"sync"
	"time"
)

type localEntry struct {
	value   []byte
	expires time.Time
}

// localStore is a mutex-guarded TTL map holding JSON-encoded values.
type localStore struct {
	mu      sync.RWMutex
	entries map[string]localEntry
	now     func() time.Time
}

var local = newLocalStore()

func newLocalStore() *localStore {
	return &localStore{entries: make(map[string]localEntry), now: time.Now}
}

func (s *localStore) get(key string) ([]byte, bool) {
	s.mu.RLock()
	e, ok := s.entries[key]
	s.mu.RUnlock()
	if !ok {
		return nil, false
	}
	if s.now().After(e.expires) {
		s.mu.Lock()
		if cur, still := s.entries[key]; still && cur.expires.Equal(e.expires) {
			delete(s.entries, key)
		}
		s.mu.Unlock()
		return nil, false
	}
	return e.value, true
}

func (s *localStore) set(key string, value []byte, ttl time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	if len(s.entries) >= 4096 {
		for k, e := range s.entries {
			if now.After(e.expires) {
				delete(s.entries, k)
			}
		}
	}
	s.entries[key] = localEntry{value: value, expires: now.Add(ttl)}
}

func (s *localStore) del(keys ...string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, k := range keys {
		delete(s.entries, k)
	}
}

func (s *localStore) delPrefix(prefix string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for k := range s.entries {
		if strings.HasPrefix(k, prefix) {
			delete(s.entries, k)
		}
	}
}

func (s *localStore) reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = make(map[string]localEntry)
}

// ResetLocal clears the in-process fallback. Tests in other packages use it
// to isolate cached reads between cases.
func ResetLocal() {
	local.reset()
}
