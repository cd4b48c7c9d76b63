package pamixer

import (
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"sync"

	"github.com/jfreymuth/pamixer/proto"
)

// ErrNotFound is returned for lookups of objects that are not cached.
var ErrNotFound = errors.New("pamixer: object not found")

// DefaultIgnoredApps are application ids of mixers whose capture streams are never cached.
var DefaultIgnoredApps = []string{
	"org.PulseAudio.pavucontrol",
	"org.gnome.VolumeControl",
	"org.kde.kmixd",
}

// requester is the request side of a server connection.
type requester interface {
	RequestAsync(req proto.RequestArgs, rpl proto.Reply, done func(error))
}

// A Cache mirrors the server's sinks, sources, sink inputs, source outputs and cards.
//
// All mutations happen on the session's main loop. Each one holds the write lock
// for its whole duration, so readers never see a partial update.
// The read methods return copies and may be called from any goroutine.
type Cache struct {
	mu      sync.RWMutex
	objects [numKinds]map[uint32]*Object
	meters  meters
	ignore  map[string]bool

	notifier *notifier
	metrics  *Metrics
	log      *slog.Logger
}

type cacheConfig struct {
	log        *slog.Logger
	metrics    *Metrics
	notifier   *notifier
	ignoreApps []string
	peaks      bool
	peakRate   uint32
	post       func(func()) bool
}

func newCache(cfg cacheConfig) *Cache {
	c := &Cache{
		ignore:   make(map[string]bool),
		notifier: cfg.notifier,
		metrics:  cfg.metrics,
		log:      cfg.log,
		meters: meters{
			enabled: cfg.peaks,
			rate:    cfg.peakRate,
			post:    cfg.post,
			streams: make(map[uint32]*MonitorStream),
			own:     make(map[uint32]bool),
		},
	}
	for i := range c.objects {
		c.objects[i] = make(map[uint32]*Object)
	}
	for _, id := range cfg.ignoreApps {
		if id != "" {
			c.ignore[id] = true
		}
	}
	if c.notifier == nil {
		c.notifier = &notifier{}
	}
	if c.log == nil {
		c.log = discardLogger()
	}
	if c.meters.rate == 0 {
		c.meters.rate = DefaultPeakRate
	}
	return c
}

func (k Kind) valid() bool { return k >= 0 && k < numKinds }

// setConn sets the connection used for metering streams.
func (c *Cache) setConn(conn requester) {
	c.mu.Lock()
	c.meters.conn = conn
	c.mu.Unlock()
}

// Get returns a copy of one object.
func (c *Cache) Get(kind Kind, index uint32) (Object, error) {
	if !kind.valid() {
		return Object{}, fmt.Errorf("%w: invalid kind %d", ErrNotFound, int(kind))
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	o, ok := c.objects[kind][index]
	if !ok {
		return Object{}, fmt.Errorf("%w: %s %d", ErrNotFound, kind, index)
	}
	return o.clone(), nil
}

// List returns copies of all objects of one kind, ordered by index.
func (c *Cache) List(kind Kind) []Object {
	if !kind.valid() {
		return nil
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.listLocked(kind)
}

func (c *Cache) listLocked(kind Kind) []Object {
	m := c.objects[kind]
	list := make([]Object, 0, len(m))
	for _, index := range slices.Sorted(maps.Keys(m)) {
		list = append(list, m[index].clone())
	}
	return list
}

// Len returns the number of cached objects of one kind.
func (c *Cache) Len(kind Kind) int {
	if !kind.valid() {
		return 0
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.objects[kind])
}

// A Snapshot is a consistent copy of the whole cache.
type Snapshot struct {
	Sinks         []Object
	Sources       []Object
	Inputs        []Object
	SourceOutputs []Object
	Cards         []Object
}

// Of returns the objects of one kind.
func (s *Snapshot) Of(kind Kind) []Object {
	switch kind {
	case KindSink:
		return s.Sinks
	case KindSource:
		return s.Sources
	case KindInput:
		return s.Inputs
	case KindSourceOutput:
		return s.SourceOutputs
	case KindCard:
		return s.Cards
	}
	return nil
}

// Snapshot copies all five collections under one read lock.
func (c *Cache) Snapshot() Snapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return Snapshot{
		Sinks:         c.listLocked(KindSink),
		Sources:       c.listLocked(KindSource),
		Inputs:        c.listLocked(KindInput),
		SourceOutputs: c.listLocked(KindSourceOutput),
		Cards:         c.listLocked(KindCard),
	}
}

// View calls fn for every object of one kind in index order, holding the read lock.
// fn must not modify or retain o, and must not call other Cache methods.
// Iteration stops when fn returns false.
func (c *Cache) View(kind Kind, fn func(o *Object) bool) {
	if !kind.valid() {
		return
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	m := c.objects[kind]
	for _, index := range slices.Sorted(maps.Keys(m)) {
		if !fn(m[index]) {
			return
		}
	}
}

// Remove deletes an object and releases its metering stream.
// Removing an object that is not cached does nothing.
func (c *Cache) Remove(kind Kind, index uint32) {
	if !kind.valid() {
		return
	}
	c.mu.Lock()
	if kind == KindSourceOutput {
		delete(c.meters.own, index)
	}
	o, ok := c.objects[kind][index]
	if !ok {
		c.mu.Unlock()
		return
	}
	c.release(o)
	delete(c.objects[kind], index)
	c.metrics.setObjects(kind, len(c.objects[kind]))
	c.mu.Unlock()

	c.notifier.notify()
}

// Clear releases every metering stream and empties the cache.
func (c *Cache) Clear() {
	c.mu.Lock()
	empty := true
	for _, k := range Kinds {
		for _, o := range c.objects[k] {
			c.release(o)
			empty = false
		}
		clear(c.objects[k])
		c.metrics.setObjects(k, 0)
	}
	clear(c.meters.own)
	c.mu.Unlock()

	if !empty {
		c.notifier.notify()
	}
}

// lookupOrCreate returns the object for index, creating it if needed.
// The cache lock must be held.
func (c *Cache) lookupOrCreate(kind Kind, index uint32) (*Object, bool) {
	m := c.objects[kind]
	if o, ok := m[index]; ok {
		return o, false
	}
	o := &Object{Kind: kind, Index: index, MonitorIndex: proto.Undefined}
	m[index] = o
	c.metrics.setObjects(kind, len(m))
	return o, true
}
