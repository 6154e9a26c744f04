// Package inmem provides a bounded, TTL-evicting in-memory conversation
// store. Entries expire after inactivity and the store caps its entry count,
// evicting the least recently updated conversation when full.
package inmem

import (
	"context"
	"sync"
	"time"

	"github.com/orderflow-ai/orderflow/runtime/conversation"
)

type (
	// Store is an in-memory conversation.Store. Each conversation id has its
	// own lock so concurrent turns for the same conversation serialize while
	// unrelated conversations proceed in parallel.
	Store struct {
		mu      sync.Mutex
		entries map[string]*entry
		ttl     time.Duration
		maxSize int
		now     func() time.Time

		janitorCancel context.CancelFunc
		janitorDone   chan struct{}
	}

	entry struct {
		mu    sync.Mutex
		state *conversation.State
	}

	// Options configures the store.
	Options struct {
		// TTL evicts conversations idle longer than this. Zero uses a one hour
		// default.
		TTL time.Duration
		// MaxEntries bounds the store size. Zero uses 10000.
		MaxEntries int
		// CleanupInterval runs a background sweep of expired entries. Zero
		// disables the janitor; expired entries are still dropped on access.
		CleanupInterval time.Duration
		// Clock overrides the wall clock for tests.
		Clock func() time.Time
	}
)

const (
	defaultTTL        = time.Hour
	defaultMaxEntries = 10000
)

// New builds an in-memory store. Call Close to stop the background janitor
// when CleanupInterval is set.
func New(opts Options) *Store {
	ttl := opts.TTL
	if ttl <= 0 {
		ttl = defaultTTL
	}
	maxSize := opts.MaxEntries
	if maxSize <= 0 {
		maxSize = defaultMaxEntries
	}
	now := opts.Clock
	if now == nil {
		now = time.Now
	}
	s := &Store{
		entries: make(map[string]*entry),
		ttl:     ttl,
		maxSize: maxSize,
		now:     now,
	}
	if opts.CleanupInterval > 0 {
		ctx, cancel := context.WithCancel(context.Background())
		s.janitorCancel = cancel
		s.janitorDone = make(chan struct{})
		go s.janitor(ctx, opts.CleanupInterval)
	}
	return s
}

// Close stops the background janitor if one is running.
func (s *Store) Close() {
	if s.janitorCancel != nil {
		s.janitorCancel()
		<-s.janitorDone
	}
}

// Get returns the state for id, or nil when absent or expired.
func (s *Store) Get(_ context.Context, id string) (*conversation.State, error) {
	s.mu.Lock()
	e, ok := s.entries[id]
	if ok && s.expired(e.state) {
		delete(s.entries, id)
		ok = false
	}
	s.mu.Unlock()
	if !ok {
		return nil, nil
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return cloneState(e.state), nil
}

// Put stores the state under its id, refreshing its TTL.
func (s *Store) Put(_ context.Context, state *conversation.State) error {
	if state == nil || state.ID == "" {
		return nil
	}
	s.mu.Lock()
	e, ok := s.entries[state.ID]
	if !ok {
		e = &entry{}
		s.entries[state.ID] = e
		s.evictOverflowLocked()
	}
	s.mu.Unlock()

	e.mu.Lock()
	defer e.mu.Unlock()
	st := cloneState(state)
	if st.UpdatedAt.IsZero() {
		st.UpdatedAt = s.now()
	}
	e.state = st
	return nil
}

// Delete removes the state for id.
func (s *Store) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	delete(s.entries, id)
	s.mu.Unlock()
	return nil
}

// Update applies fn to the current state under the per-conversation lock and
// stores the result. A nil returned state deletes the conversation.
func (s *Store) Update(_ context.Context, id string, fn func(*conversation.State) (*conversation.State, error)) (*conversation.State, error) {
	s.mu.Lock()
	e, ok := s.entries[id]
	if ok && s.expired(e.state) {
		e.state = nil
	}
	if !ok {
		e = &entry{}
		s.entries[id] = e
		s.evictOverflowLocked()
	}
	s.mu.Unlock()

	e.mu.Lock()
	defer e.mu.Unlock()
	next, err := fn(cloneState(e.state))
	if err != nil {
		return nil, err
	}
	if next == nil {
		s.mu.Lock()
		delete(s.entries, id)
		s.mu.Unlock()
		return nil, nil
	}
	if next.UpdatedAt.IsZero() {
		next.UpdatedAt = s.now()
	}
	e.state = cloneState(next)
	return next, nil
}

// Len reports the current entry count.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

func (s *Store) expired(state *conversation.State) bool {
	if state == nil {
		return false
	}
	return s.now().Sub(state.UpdatedAt) > s.ttl
}

// evictOverflowLocked drops the least recently updated conversations until
// the store fits its bound. Caller holds s.mu.
func (s *Store) evictOverflowLocked() {
	for len(s.entries) > s.maxSize {
		oldestID := ""
		var oldest time.Time
		for id, e := range s.entries {
			if e.state == nil {
				continue
			}
			if oldestID == "" || e.state.UpdatedAt.Before(oldest) {
				oldestID = id
				oldest = e.state.UpdatedAt
			}
		}
		if oldestID == "" {
			return
		}
		delete(s.entries, oldestID)
	}
}

func (s *Store) janitor(ctx context.Context, interval time.Duration) {
	defer close(s.janitorDone)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.mu.Lock()
			for id, e := range s.entries {
				if s.expired(e.state) {
					delete(s.entries, id)
				}
			}
			s.mu.Unlock()
		}
	}
}

func cloneState(src *conversation.State) *conversation.State {
	if src == nil {
		return nil
	}
	dst := &conversation.State{
		ID:        src.ID,
		UserID:    src.UserID,
		Messages:  append([]conversation.Message(nil), src.Messages...),
		UpdatedAt: src.UpdatedAt,
	}
	if src.PendingAction != nil {
		pa := *src.PendingAction
		if src.PendingAction.Params != nil {
			pa.Params = make(map[string]any, len(src.PendingAction.Params))
			for k, v := range src.PendingAction.Params {
				pa.Params[k] = v
			}
		}
		dst.PendingAction = &pa
	}
	return dst
}
