package store

import (
	"context"
	"strings"
	"sync"
	"time"
)

type memEntry struct {
	rec     Record
	expires time.Time
}

// Memory is the in-process store used when REDIS_URL is empty.
type Memory struct {
	mu      sync.RWMutex
	ttl     time.Duration
	entries map[string]memEntry
	now     func() time.Time
}

func NewMemory(ttl time.Duration) *Memory {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Memory{ttl: ttl, entries: make(map[string]memEntry), now: time.Now}
}

func (m *Memory) Save(_ context.Context, rec Record) error {
	id := strings.TrimSpace(rec.GameID)
	now := m.now()

	m.mu.Lock()
	defer m.mu.Unlock()
	if cur, ok := m.entries[id]; ok && now.Before(cur.expires) && len(cur.rec.MovesUCI) > len(rec.MovesUCI) {
		return ErrStaleSnapshot
	}
	m.entries[id] = memEntry{rec: cloneRecord(rec), expires: now.Add(m.ttl)}
	m.sweepLocked(now)
	return nil
}

func (m *Memory) Load(_ context.Context, gameID string) (Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.entries[strings.TrimSpace(gameID)]
	if !ok || !m.now().Before(e.expires) {
		return Record{}, ErrNotFound
	}
	return cloneRecord(e.rec), nil
}

func (m *Memory) Close() error { return nil }

func (m *Memory) sweepLocked(now time.Time) {
	for id, e := range m.entries {
		if !now.Before(e.expires) {
			delete(m.entries, id)
		}
	}
}

func cloneRecord(r Record) Record {
	r.MovesUCI = append([]string(nil), r.MovesUCI...)
	r.Analyses = append(r.Analyses[:0:0], r.Analyses...)
	return r
}
