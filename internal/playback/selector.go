package playback

import (
	"context"
	"sync"
	"time"

	"github.com/carelib/carelib/internal/catalog"
	"github.com/carelib/carelib/internal/liff"
	"github.com/carelib/carelib/internal/progress"
)

// Selector owns the active topic for one device and drives the catalog view
// and playback session from it. The startup topic comes from the deep-link
// address; unknown or absent topics fall back to the first catalog category.
type Selector struct {
	mu       sync.Mutex
	cat      *catalog.Catalog
	store    *progress.Store
	deviceID string
	session  *Session
	address  string
}

func NewSelector(ctx context.Context, cat *catalog.Catalog, store *progress.Store, deviceID, rawURL string) *Selector {
	topic := cat.DefaultCategory()
	if t, ok := liff.Resolve(rawURL, "topic"); ok && cat.HasCategory(t) {
		topic = t
	}

	sel := &Selector{
		cat:      cat,
		store:    store,
		deviceID: deviceID,
		session:  NewSession(cat, store, deviceID, topic),
		address:  rawURL,
	}
	sel.setAddress(map[string]string{"topic": topic})

	// Deep-linked item: open it if it exists, otherwise silently fall back
	// to the plain topic view.
	if v, ok := liff.Resolve(rawURL, "v"); ok {
		if _, exists := cat.Item(v); exists {
			sel.OpenItem(ctx, v)
		}
	}
	return sel
}

func (s *Selector) Session() *Session { return s.session }

func (s *Selector) Topic() string { return s.session.Topic() }

// Address is the shareable deep-link address reflecting the current state.
func (s *Selector) Address() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.address
}

// SelectTopic switches the active topic: any open item is closed and the
// item deep-link parameter is dropped from the address. Unknown keys are
// ignored and the current topic is returned unchanged.
func (s *Selector) SelectTopic(ctx context.Context, key string) string {
	if !s.cat.HasCategory(key) {
		return s.session.Topic()
	}
	// Re-selecting the active topic must not disturb an open item.
	if key == s.session.Topic() {
		return key
	}
	s.session.SetTopic(ctx, key)
	s.setAddress(map[string]string{"topic": key, "v": ""})
	return key
}

// OpenItem opens an item and records it in the deep-link address.
func (s *Selector) OpenItem(ctx context.Context, itemID string) {
	s.session.Open(ctx, itemID)
	if cur, ok := s.session.Current(); ok && cur == itemID {
		s.setAddress(map[string]string{"topic": s.session.Topic(), "v": itemID})
	}
}

// Step moves the open item to its next or previous neighbor, keeping the
// deep-link address pointed at the newly opened item.
func (s *Selector) Step(ctx context.Context, forward bool) (string, bool) {
	var itemID string
	var moved bool
	if forward {
		itemID, moved = s.session.Next(ctx)
	} else {
		itemID, moved = s.session.Prev(ctx)
	}
	if moved {
		s.setAddress(map[string]string{"topic": s.session.Topic(), "v": itemID})
	}
	return itemID, moved
}

// CloseItem closes the session and drops the item parameter.
func (s *Selector) CloseItem(ctx context.Context) {
	s.session.Close(ctx)
	s.setAddress(map[string]string{"v": ""})
}

// View builds the current topic's display rows against the latest stored
// progress snapshot.
func (s *Selector) View(ctx context.Context, searchText string) catalog.View {
	pr := s.store.Load(ctx, s.deviceID)
	return catalog.BuildView(s.cat, pr, s.session.Topic(), searchText)
}

// ContinueItem resolves the "continue watching" target for the active
// topic: the last item opened there, if it still exists.
func (s *Selector) ContinueItem(ctx context.Context) (catalog.Item, bool) {
	pr := s.store.Load(ctx, s.deviceID)
	last := pr.LastOpenedIn(s.session.Topic())
	if last == "" {
		return catalog.Item{}, false
	}
	return s.cat.Item(last)
}

// SuggestedNext picks what to watch next in the active topic.
func (s *Selector) SuggestedNext(ctx context.Context) (catalog.Item, bool) {
	pr := s.store.Load(ctx, s.deviceID)
	items := catalog.TopicItems(s.cat, s.session.Topic())
	return catalog.NextItem(items, pr, pr.LastOpenedIn(s.session.Topic()))
}

// StartItem picks the entry point for a first visit to the active topic.
func (s *Selector) StartItem() (catalog.Item, bool) {
	return catalog.StartItem(catalog.TopicItems(s.cat, s.session.Topic()))
}

func (s *Selector) setAddress(params map[string]string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if updated, err := liff.SetParams(s.address, params); err == nil {
		s.address = updated
	}
}

// Manager hands out one selector per device, created lazily from the first
// request's address. A catalog reload invalidates cached selectors so new
// requests see the fresh dataset, and selectors idle past selectorIdleTTL
// are evicted in the background. Progress is persisted, so a fresh selector
// for a returning device rebuilds from the store.
type Manager struct {
	mu        sync.Mutex
	store     *progress.Store
	selectors map[string]*managerEntry
}

type managerEntry struct {
	sel      *Selector
	lastSeen time.Time
}

const selectorIdleTTL = time.Hour

func NewManager(store *progress.Store) *Manager {
	m := &Manager{store: store, selectors: make(map[string]*managerEntry)}
	go m.cleanup()
	return m
}

func (m *Manager) ForDevice(ctx context.Context, cat *catalog.Catalog, deviceID, rawURL string) *Selector {
	m.mu.Lock()
	defer m.mu.Unlock()
	if e, ok := m.selectors[deviceID]; ok && e.sel.cat == cat {
		e.lastSeen = time.Now()
		return e.sel
	}
	sel := NewSelector(ctx, cat, m.store, deviceID, rawURL)
	m.selectors[deviceID] = &managerEntry{sel: sel, lastSeen: time.Now()}
	return sel
}

func (m *Manager) cleanup() {
	for {
		time.Sleep(10 * time.Minute)
		m.evictIdle(time.Now().Add(-selectorIdleTTL))
	}
}

func (m *Manager) evictIdle(cutoff time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for deviceID, e := range m.selectors {
		if e.lastSeen.Before(cutoff) {
			delete(m.selectors, deviceID)
		}
	}
}
