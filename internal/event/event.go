// Package event models simulated earthquake events (element-level slip
// records) and the derived rupture properties used to explain ground-motion
// variability.
package event

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/banshee-data/rotvar/internal/monitoring"
)

// ErrMissingTiming is returned when an event record carries no per-element
// first-slip times.
var ErrMissingTiming = errors.New("event doesn't have timing information")

// Location is a point on or below the surface; Depth is in km, positive down.
type Location struct {
	Latitude  float64
	Longitude float64
	Depth     float64
}

// Element is one fault element participating in an event.
type Element struct {
	ID     int
	Center Location
}

// Record is the slip history of an event on one fault section.
// FirstSlipTimes is parallel to Elements, in seconds, and nil when the
// catalog was produced without timing output.
type Record struct {
	Elements       []Element
	FirstSlipTimes []float64
}

// Event is a simulated earthquake.
type Event struct {
	ID        int
	Magnitude float64
	Records   []Record
}

// Store loads events by ID.
type Store interface {
	LoadEvents(ctx context.Context, ids []int) ([]Event, error)
}

// Map lazily loads a fixed set of events the first time any is requested and
// serves them read-only afterwards.
type Map struct {
	store Store
	ids   []int

	mu     sync.RWMutex
	events map[int]*Event
}

// NewMap returns a map that will load ids from store on first access.
func NewMap(store Store, ids []int) *Map {
	uniq := make(map[int]bool, len(ids))
	var sorted []int
	for _, id := range ids {
		if !uniq[id] {
			uniq[id] = true
			sorted = append(sorted, id)
		}
	}
	sort.Ints(sorted)
	return &Map{store: store, ids: sorted}
}

// NewMapFrom wraps already loaded events.
func NewMapFrom(events []Event) *Map {
	m := &Map{events: make(map[int]*Event, len(events))}
	for i := range events {
		m.events[events[i].ID] = &events[i]
		m.ids = append(m.ids, events[i].ID)
	}
	sort.Ints(m.ids)
	return m
}

// IDs returns the event IDs covered by this map, sorted.
func (m *Map) IDs() []int { return m.ids }

// Get returns the event with the given ID, loading all events on first use.
// Once loaded, readers share the lock.
func (m *Map) Get(ctx context.Context, id int) (*Event, error) {
	m.mu.RLock()
	events := m.events
	m.mu.RUnlock()
	if events == nil {
		var err error
		if events, err = m.load(ctx); err != nil {
			return nil, err
		}
	}
	e, ok := events[id]
	if !ok {
		return nil, fmt.Errorf("event %d not loaded", id)
	}
	return e, nil
}

func (m *Map) load(ctx context.Context) (map[int]*Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.events == nil {
		if err := m.loadLocked(ctx); err != nil {
			return nil, err
		}
	}
	return m.events, nil
}

func (m *Map) loadLocked(ctx context.Context) error {
	if m.store == nil {
		return errors.New("no event store configured")
	}
	monitoring.Logf("Loading %d events...", len(m.ids))
	events, err := m.store.LoadEvents(ctx, m.ids)
	if err != nil {
		return fmt.Errorf("load events: %w", err)
	}
	if len(events) != len(m.ids) {
		return fmt.Errorf("loaded %d events, expected %d", len(events), len(m.ids))
	}
	loaded := make(map[int]*Event, len(events))
	for i := range events {
		loaded[events[i].ID] = &events[i]
	}
	m.events = loaded
	return nil
}
