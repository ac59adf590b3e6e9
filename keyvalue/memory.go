package keyvalue

import (
	"context"
	"sync"
	"time"
)

type memEntry struct {
	value     string
	expiresAt time.Time // zero means no expiry
}

// Memory is an in-process Cache with per-entry TTLs and an optional entry
// bound. It is meant for single-process deployments and tests; cross-process
// sharing needs the SQLite or Redis backends. A background goroutine prunes
// expired entries once a second.
type Memory struct {
	mu         sync.Mutex
	entries    map[string]*memEntry
	maxEntries int
	stop       chan struct{}

	// nowFunc is used for testing; defaults to time.Now.
	nowFunc func() time.Time
}

// NewMemory creates a Memory store evicting the soonest-expiring entry once
// maxEntries is exceeded. maxEntries <= 0 means unbounded.
func NewMemory(maxEntries int) *Memory {
	m := &Memory{
		entries:    make(map[string]*memEntry),
		maxEntries: maxEntries,
		stop:       make(chan struct{}),
		nowFunc:    time.Now,
	}
	go m.pruneLoop()
	return m
}

func (m *Memory) Get(_ context.Context, key string) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[key]
	if !ok {
		return "", false, nil
	}
	if !e.expiresAt.IsZero() && m.nowFunc().After(e.expiresAt) {
		delete(m.entries, key)
		return "", false, nil
	}
	return e.value, true, nil
}

func (m *Memory) Set(_ context.Context, key, value string, ttlSeconds int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.entries[key]; !exists && m.maxEntries > 0 && len(m.entries) >= m.maxEntries {
		m.evictSoonest()
	}

	e := &memEntry{value: value}
	if ttlSeconds > 0 {
		e.expiresAt = m.nowFunc().Add(time.Duration(ttlSeconds) * time.Second)
	}
	m.entries[key] = e
	return nil
}

func (m *Memory) Delete(_ context.Context, key string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.entries[key]
	delete(m.entries, key)
	return ok, nil
}

// Stop terminates the background prune goroutine.
func (m *Memory) Stop() {
	close(m.stop)
}

func (m *Memory) pruneLoop() {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			m.prune()
		case <-m.stop:
			return
		}
	}
}

func (m *Memory) prune() {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.nowFunc()
	for k, e := range m.entries {
		if !e.expiresAt.IsZero() && now.After(e.expiresAt) {
			delete(m.entries, k)
		}
	}
}

// evictSoonest removes the entry closest to expiry, falling back to an
// arbitrary entry when nothing has a TTL. Caller must hold m.mu.
func (m *Memory) evictSoonest() {
	var victim string
	var victimExp time.Time
	first := true
	for k, e := range m.entries {
		if first || (!e.expiresAt.IsZero() && (victimExp.IsZero() || e.expiresAt.Before(victimExp))) {
			victim = k
			victimExp = e.expiresAt
			first = false
		}
	}
	if !first {
		delete(m.entries, victim)
	}
}
