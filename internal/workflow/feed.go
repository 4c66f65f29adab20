package workflow

import "sync"

// Feed fans acknowledged writes out to in-process subscribers. Each subscriber
// keeps its own view of the matching set and a one-slot channel; Publish replaces
// any snapshot the subscriber has not consumed yet.
type Feed struct {
	mu   sync.Mutex
	subs map[*Watcher]struct{}
}

func NewFeed() *Feed {
	return &Feed{subs: map[*Watcher]struct{}{}}
}

// Subscribe registers a subscriber seeded with initial and delivers that first
// snapshot immediately.
func (f *Feed) Subscribe(filter Filter, initial []RequestRecord) Subscription {
	w := f.Watch(filter)
	w.Seed(initial)
	return w
}

// Watch registers a subscriber whose initial listing is not loaded yet. Records
// published before Seed are kept but nothing is delivered until Seed runs.
func (f *Feed) Watch(filter Filter) *Watcher {
	w := &Watcher{
		feed:   f,
		filter: filter,
		docs:   map[string]RequestRecord{},
		seen:   map[string]int64{},
		ch:     make(chan []RequestRecord, 1),
	}
	f.mu.Lock()
	f.subs[w] = struct{}{}
	f.mu.Unlock()
	return w
}

// Publish hands one acknowledged record to every subscriber.
func (f *Feed) Publish(rec RequestRecord) {
	f.mu.Lock()
	subs := make([]*Watcher, 0, len(f.subs))
	for s := range f.subs {
		subs = append(subs, s)
	}
	f.mu.Unlock()

	for _, s := range subs {
		s.apply(rec)
	}
}

// Subscribers returns the number of live subscriptions.
func (f *Feed) Subscribers() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.subs)
}

func (f *Feed) remove(s *Watcher) {
	f.mu.Lock()
	delete(f.subs, s)
	f.mu.Unlock()
}

// Watcher is one subscription on a Feed.
type Watcher struct {
	feed   *Feed
	filter Filter

	mu     sync.Mutex
	docs   map[string]RequestRecord
	seen   map[string]int64
	ch     chan []RequestRecord
	seeded bool
	closed bool
}

func (s *Watcher) Updates() <-chan []RequestRecord { return s.ch }

func (s *Watcher) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	close(s.ch)
	s.mu.Unlock()
	s.feed.remove(s)
}

// Seed merges the initial listing and delivers the first snapshot. A record
// published since Watch wins over an older listed copy.
func (s *Watcher) Seed(initial []RequestRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	for _, r := range initial {
		s.merge(r)
	}
	s.seeded = true
	s.deliver()
}

func (s *Watcher) apply(rec RequestRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	if s.merge(rec) && s.seeded {
		s.deliver()
	}
}

// merge records rec unless a newer or equal version was already seen and
// reports whether the visible set changed. Must be called with s.mu held.
func (s *Watcher) merge(rec RequestRecord) bool {
	// Redis delivery may reorder; never go back in time.
	if v, ok := s.seen[rec.ID]; ok && v >= rec.Version {
		return false
	}
	s.seen[rec.ID] = rec.Version
	if s.filter.Matches(rec) {
		s.docs[rec.ID] = rec
		return true
	}
	if _, known := s.docs[rec.ID]; known {
		delete(s.docs, rec.ID)
		return true
	}
	return false
}

// deliver must be called with s.mu held.
func (s *Watcher) deliver() {
	snap := make([]RequestRecord, 0, len(s.docs))
	for _, r := range s.docs {
		snap = append(snap, r)
	}
	SortRecords(snap)
	select {
	case <-s.ch:
	default:
	}
	s.ch <- snap
}
