package logging

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"
)

// DefaultRingCapacity is the number of entries kept by NewRing(0).
const DefaultRingCapacity = 1000

// Entry is one captured log record.
type Entry struct {
	Time    time.Time      `json:"timestamp"`
	Level   string         `json:"level"`
	Message string         `json:"message"`
	Attrs   map[string]any `json:"attrs,omitempty"`
}

type ringStore struct {
	mu       sync.Mutex
	entries  []Entry
	start    int
	size     int
	nextSub  int
	subs     map[int]chan Entry
	minLevel slog.Leveler
}

// Ring is a slog.Handler keeping the most recent entries in memory.
// Handlers derived with WithAttrs or WithGroup share the same buffer.
type Ring struct {
	store  *ringStore
	attrs  []slog.Attr
	groups []string
}

// NewRing creates a ring holding up to capacity entries at or above level.
// A capacity <= 0 uses DefaultRingCapacity; a nil level records everything
// from Info upwards.
func NewRing(capacity int, level slog.Leveler) *Ring {
	if capacity <= 0 {
		capacity = DefaultRingCapacity
	}
	if level == nil {
		level = slog.LevelInfo
	}
	return &Ring{store: &ringStore{
		entries:  make([]Entry, capacity),
		subs:     make(map[int]chan Entry),
		minLevel: level,
	}}
}

func (r *Ring) Enabled(_ context.Context, level slog.Level) bool {
	return level >= r.store.minLevel.Level()
}

func (r *Ring) Handle(_ context.Context, rec slog.Record) error {
	e := Entry{
		Time:    rec.Time.UTC(),
		Level:   rec.Level.String(),
		Message: rec.Message,
	}
	if n := len(r.attrs) + rec.NumAttrs(); n > 0 {
		e.Attrs = make(map[string]any, n)
		for _, a := range r.attrs {
			addAttr(e.Attrs, "", a)
		}
		prefix := r.prefix()
		rec.Attrs(func(a slog.Attr) bool {
			addAttr(e.Attrs, prefix, a)
			return true
		})
	}
	r.store.append(e)
	return nil
}

func (r *Ring) prefix() string {
	if len(r.groups) == 0 {
		return ""
	}
	return strings.Join(r.groups, ".") + "."
}

// addAttr flattens a into m, joining group names with dots.
func addAttr(m map[string]any, prefix string, a slog.Attr) {
	a.Value = a.Value.Resolve()
	if a.Equal(slog.Attr{}) {
		return
	}
	if a.Value.Kind() == slog.KindGroup {
		inner := prefix
		if a.Key != "" {
			inner = prefix + a.Key + "."
		}
		for _, ga := range a.Value.Group() {
			addAttr(m, inner, ga)
		}
		return
	}
	switch v := a.Value.Any().(type) {
	case error:
		m[prefix+a.Key] = v.Error()
	case time.Duration:
		m[prefix+a.Key] = v.String()
	default:
		m[prefix+a.Key] = v
	}
}

func (r *Ring) WithAttrs(attrs []slog.Attr) slog.Handler {
	if len(attrs) == 0 {
		return r
	}
	next := *r
	next.attrs = make([]slog.Attr, 0, len(r.attrs)+len(attrs))
	next.attrs = append(next.attrs, r.attrs...)
	prefix := r.prefix()
	for _, a := range attrs {
		if prefix != "" {
			a.Key = prefix + a.Key
		}
		next.attrs = append(next.attrs, a)
	}
	return &next
}

func (r *Ring) WithGroup(name string) slog.Handler {
	if name == "" {
		return r
	}
	next := *r
	next.groups = append(append([]string(nil), r.groups...), name)
	return &next
}

// Entries returns up to limit of the most recent entries, oldest first.
// A limit <= 0 returns everything held.
func (r *Ring) Entries(limit int) []Entry {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()

	n := s.size
	if limit > 0 && limit < n {
		n = limit
	}
	out := make([]Entry, n)
	first := s.start + s.size - n
	for i := range n {
		out[i] = s.entries[(first+i)%len(s.entries)]
	}
	return out
}

// Len returns the number of entries held.
func (r *Ring) Len() int {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	return r.store.size
}

// Clear drops every entry.
func (r *Ring) Clear() {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()
	s.start, s.size = 0, 0
	clear(s.entries)
}

// Subscribe returns a channel receiving every entry appended from now on
// and a function that ends the subscription. Entries are dropped for a
// subscriber whose buffer of size buffer is full.
func (r *Ring) Subscribe(buffer int) (<-chan Entry, func()) {
	if buffer < 1 {
		buffer = 1
	}
	s := r.store
	ch := make(chan Entry, buffer)

	s.mu.Lock()
	id := s.nextSub
	s.nextSub++
	s.subs[id] = ch
	s.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.subs, id)
			s.mu.Unlock()
			close(ch)
		})
	}
}

func (s *ringStore) append(e Entry) {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := (s.start + s.size) % len(s.entries)
	s.entries[idx] = e
	if s.size < len(s.entries) {
		s.size++
	} else {
		s.start = (s.start + 1) % len(s.entries)
	}

	for _, ch := range s.subs {
		select {
		case ch <- e:
		default:
		}
	}
}
