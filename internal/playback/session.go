// Package playback tracks the single currently-open item per device and the
// auto-watch heuristic around it.
package playback

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/carelib/carelib/internal/catalog"
	"github.com/carelib/carelib/internal/progress"
)

// AutoWatchThreshold is how long an item must stay open before it counts as
// watched. A proxy for engagement, not a playback-position measurement.
const AutoWatchThreshold = 10 * time.Second

var ErrClosed = errors.New("no item is open")

// TimerFactory schedules a single-shot callback and returns its cancel
// function. Injectable so tests drive the auto-watch timer directly.
type TimerFactory func(d time.Duration, f func()) (stop func())

func defaultTimer(d time.Duration, f func()) func() {
	t := time.AfterFunc(d, f)
	return func() { t.Stop() }
}

// Session is the playback state machine for one device: Closed, or Open on
// exactly one item. At most one auto-watch timer is ever pending; arming a
// new one cancels the previous.
type Session struct {
	mu       sync.Mutex
	cat      *catalog.Catalog
	store    *progress.Store
	deviceID string

	topic    string
	itemID   string
	openedAt time.Time

	now      func() time.Time
	newTimer TimerFactory
	stop     func()
}

func NewSession(cat *catalog.Catalog, store *progress.Store, deviceID, topic string) *Session {
	return &Session{
		cat:      cat,
		store:    store,
		deviceID: deviceID,
		topic:    topic,
		now:      time.Now,
		newTimer: defaultTimer,
	}
}

// SetClock overrides the wall clock and timer scheduling. Test hook.
func (s *Session) SetClock(now func() time.Time, newTimer TimerFactory) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
	s.newTimer = newTimer
}

func (s *Session) Topic() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.topic
}

// SetTopic switches the session's topic, closing any open item first.
func (s *Session) SetTopic(ctx context.Context, key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.close(ctx)
	s.topic = key
}

// Current returns the open item id, or false when closed.
func (s *Session) Current() (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.itemID, s.itemID != ""
}

// Open makes itemID the active item: records it as last opened for the
// topic and arms the auto-watch timer. Opening an unknown id is a logged
// no-op, never an error surfaced to the viewer.
func (s *Session) Open(ctx context.Context, itemID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.open(ctx, itemID)
}

// Close ends playback. When the item stayed open at least the threshold the
// close marks it watched as a catch-up for a timer that never got to fire.
func (s *Session) Close(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.close(ctx)
}

// ToggleWatched flips the watched state of the open item.
func (s *Session) ToggleWatched(ctx context.Context) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.itemID == "" {
		return false, ErrClosed
	}
	return s.store.ToggleWatched(ctx, s.deviceID, s.itemID), nil
}

// Next moves to the following item in the topic's sorted sequence,
// equivalent to closing and reopening. Returns the new item id.
func (s *Session) Next(ctx context.Context) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.step(ctx, 1)
}

// Prev moves to the preceding item in the topic's sorted sequence.
func (s *Session) Prev(ctx context.Context) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.step(ctx, -1)
}

// Neighbors returns the prev/next item ids around the open item within the
// topic's sorted, unsearched sequence. Empty string means no neighbor.
func (s *Session) Neighbors() (prev, next string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.neighbors()
}

func (s *Session) open(ctx context.Context, itemID string) {
	if _, ok := s.cat.Item(itemID); !ok {
		slog.Warn("playback: open of unknown item ignored", "item_id", itemID, "device_id", s.deviceID)
		return
	}
	s.cancelTimer()

	s.itemID = itemID
	s.openedAt = s.now()
	s.store.SetLastOpened(ctx, s.deviceID, s.topic, itemID)

	opened := itemID
	s.stop = s.newTimer(AutoWatchThreshold, func() {
		s.autoWatch(opened)
	})
}

func (s *Session) close(ctx context.Context) {
	if s.itemID == "" {
		return
	}
	if s.now().Sub(s.openedAt) >= AutoWatchThreshold {
		s.store.MarkWatched(ctx, s.deviceID, s.itemID)
	}
	s.cancelTimer()
	s.itemID = ""
}

func (s *Session) neighbors() (prev, next string) {
	if s.itemID == "" {
		return "", ""
	}
	items := catalog.TopicItems(s.cat, s.topic)
	for i, it := range items {
		if it.ID == s.itemID {
			if i > 0 {
				prev = items[i-1].ID
			}
			if i+1 < len(items) {
				next = items[i+1].ID
			}
			return prev, next
		}
	}
	return "", ""
}

func (s *Session) step(ctx context.Context, dir int) (string, bool) {
	if s.itemID == "" {
		return "", false
	}
	prev, next := s.neighbors()
	target := next
	if dir < 0 {
		target = prev
	}
	if target == "" {
		return "", false
	}
	s.close(ctx)
	s.open(ctx, target)
	return target, true
}

func (s *Session) cancelTimer() {
	if s.stop != nil {
		s.stop()
		s.stop = nil
	}
}

// autoWatch fires from the timer: the item counts as watched only if it is
// still the open one.
func (s *Session) autoWatch(itemID string) {
	s.mu.Lock()
	if s.itemID != itemID {
		s.mu.Unlock()
		return
	}
	s.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	s.store.MarkWatched(ctx, s.deviceID, itemID)
}
