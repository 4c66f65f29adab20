package workflow

import (
	"context"
	"fmt"
	"sync"
)

// MemoryStore is an in-process Store for tests and local development.
type MemoryStore struct {
	mu   sync.Mutex
	docs map[string]RequestRecord
	feed *Feed
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{docs: map[string]RequestRecord{}, feed: NewFeed()}
}

func (s *MemoryStore) Create(ctx context.Context, rec RequestRecord) (string, error) {
	if rec.ID == "" {
		return "", fmt.Errorf("%w: id required", ErrInvalidPayload)
	}
	c, err := Clone(rec)
	if err != nil {
		return "", err
	}
	c.Version = 1

	s.mu.Lock()
	if _, ok := s.docs[c.ID]; ok {
		s.mu.Unlock()
		return "", fmt.Errorf("%w: %s already exists", ErrConflict, c.ID)
	}
	s.docs[c.ID] = c
	s.feed.Publish(c)
	s.mu.Unlock()
	return c.ID, nil
}

func (s *MemoryStore) Get(ctx context.Context, id string) (RequestRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.docs[id]
	if !ok {
		return RequestRecord{}, ErrNotFound
	}
	return Clone(r)
}

func (s *MemoryStore) List(ctx context.Context, f Filter) ([]RequestRecord, error) {
	s.mu.Lock()
	out := make([]RequestRecord, 0, len(s.docs))
	for _, r := range s.docs {
		if !f.Matches(r) {
			continue
		}
		c, err := Clone(r)
		if err != nil {
			s.mu.Unlock()
			return nil, err
		}
		out = append(out, c)
	}
	s.mu.Unlock()
	SortRecords(out)
	return out, nil
}

func (s *MemoryStore) Update(ctx context.Context, id string, u Update) (RequestRecord, error) {
	if err := ctx.Err(); err != nil {
		return RequestRecord{}, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	s.mu.Lock()
	cur, ok := s.docs[id]
	if !ok {
		s.mu.Unlock()
		return RequestRecord{}, ErrNotFound
	}
	next, err := ApplyUpdate(cur, u)
	if err != nil {
		s.mu.Unlock()
		return RequestRecord{}, err
	}
	s.docs[id] = next
	// Publish under the lock so subscribers observe versions in order.
	s.feed.Publish(next)
	s.mu.Unlock()
	return next, nil
}

func (s *MemoryStore) Subscribe(ctx context.Context, f Filter) (Subscription, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	initial := make([]RequestRecord, 0, len(s.docs))
	for _, r := range s.docs {
		c, err := Clone(r)
		if err != nil {
			return nil, err
		}
		initial = append(initial, c)
	}
	return s.feed.Subscribe(f, initial), nil
}
