package session

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/riyad899/Jtech-sub000/internal/cart"
	"golang.org/x/sync/singleflight"
)

// StorageFactory returns the persistence backend for a session, or nil for a
// memory-only cart.
type StorageFactory func(sessionID string) cart.Storage

type entry struct {
	store    *cart.Store
	lastUsed time.Time
}

// Manager hands out one cart store per session, loading it from storage on
// first use. Sessions left idle are closed by EvictIdle; their persisted
// copy is reloaded on the next Get.
type Manager struct {
	mu      sync.Mutex
	stores  map[string]*entry
	storage StorageFactory
	sfg     singleflight.Group // prevents double loads of the same session
	log     *slog.Logger
	opts    []cart.Option
	observe func(sessionID string, c cart.Change)
	now     func() time.Time
}

func NewManager(storage StorageFactory, log *slog.Logger, opts ...cart.Option) *Manager {
	return &Manager{
		stores:  make(map[string]*entry),
		storage: storage,
		log:     log,
		opts:    append([]cart.Option{cart.WithLogger(log)}, opts...),
		now:     time.Now,
	}
}

func (m *Manager) Get(ctx context.Context, sessionID string) *cart.Store {
	if s, ok := m.touch(sessionID); ok {
		return s
	}

	v, _, _ := m.sfg.Do(sessionID, func() (interface{}, error) {
		if s, ok := m.touch(sessionID); ok {
			return s, nil
		}

		var st cart.Storage
		if m.storage != nil {
			st = m.storage(sessionID)
		}
		s := cart.Open(context.WithoutCancel(ctx), st, m.opts...)
		m.log.DebugContext(ctx, "cart session opened",
			"session_id", sessionID, "lines", len(s.Lines()), "persistent", s.Persistent())

		m.mu.Lock()
		if fn := m.observe; fn != nil {
			s.Subscribe(func(c cart.Change) { fn(sessionID, c) })
		}
		m.stores[sessionID] = &entry{store: s, lastUsed: m.now()}
		m.mu.Unlock()
		return s, nil
	})
	return v.(*cart.Store)
}

func (m *Manager) touch(sessionID string) (*cart.Store, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.stores[sessionID]
	if !ok {
		return nil, false
	}
	e.lastUsed = m.now()
	return e.store, true
}

// Observe registers fn to be told about every change of every store opened
// from now on. Call it before the first Get.
func (m *Manager) Observe(fn func(sessionID string, c cart.Change)) {
	m.mu.Lock()
	m.observe = fn
	m.mu.Unlock()
}

// Evict closes and forgets a session's store. Its persisted copy stays.
func (m *Manager) Evict(sessionID string) {
	m.mu.Lock()
	e, ok := m.stores[sessionID]
	delete(m.stores, sessionID)
	m.mu.Unlock()
	if ok {
		e.store.Close()
	}
}

// EvictIdle closes every store not used for at least ttl and returns how many
// were closed.
func (m *Manager) EvictIdle(ttl time.Duration) int {
	cutoff := m.now().Add(-ttl)

	m.mu.Lock()
	var idle []*cart.Store
	for id, e := range m.stores {
		if !e.lastUsed.After(cutoff) {
			idle = append(idle, e.store)
			delete(m.stores, id)
		}
	}
	m.mu.Unlock()

	for _, s := range idle {
		s.Close()
	}
	return len(idle)
}

// RunEvictor calls EvictIdle every interval until ctx is done.
func (m *Manager) RunEvictor(ctx context.Context, ttl, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			if n := m.EvictIdle(ttl); n > 0 {
				m.log.Debug("idle cart sessions evicted", "count", n, "open", m.Len())
			}
		case <-ctx.Done():
			return
		}
	}
}

func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.stores)
}

// Close flushes every open store.
func (m *Manager) Close() {
	m.mu.Lock()
	stores := m.stores
	m.stores = make(map[string]*entry)
	m.mu.Unlock()

	for _, e := range stores {
		e.store.Close()
	}
}
