// Package redis provides a Redis-backed conversation.Store. Conversations are
// stored as JSON values with a TTL refreshed on every write, so idle
// conversations expire server-side without a janitor.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/orderflow-ai/orderflow/runtime/conversation"
)

type (
	// Commands captures the subset of the go-redis client used by the store.
	// It is satisfied by *redis.Client so tests can substitute a fake.
	Commands interface {
		Get(ctx context.Context, key string) *redis.StringCmd
		Set(ctx context.Context, key string, value any, expiration time.Duration) *redis.StatusCmd
		Del(ctx context.Context, keys ...string) *redis.IntCmd
	}

	// Options configures the store.
	Options struct {
		// Client is the Redis client. Required.
		Client Commands
		// KeyPrefix namespaces conversation keys. Empty uses "conversation:".
		KeyPrefix string
		// TTL expires idle conversations. Zero uses one hour.
		TTL time.Duration
		// Clock overrides the wall clock for tests.
		Clock func() time.Time
	}

	// Store implements conversation.Store on Redis. Update serializes
	// same-conversation writers within the process with per-key locks; the
	// read-modify-write itself is not atomic across processes.
	Store struct {
		client Commands
		prefix string
		ttl    time.Duration
		now    func() time.Time

		mu    sync.Mutex
		locks map[string]*sync.Mutex
	}
)

const defaultTTL = time.Hour

// New builds a Redis-backed conversation store.
func New(opts Options) (*Store, error) {
	if opts.Client == nil {
		return nil, errors.New("redis client is required")
	}
	prefix := opts.KeyPrefix
	if prefix == "" {
		prefix = "conversation:"
	}
	ttl := opts.TTL
	if ttl <= 0 {
		ttl = defaultTTL
	}
	now := opts.Clock
	if now == nil {
		now = time.Now
	}
	return &Store{
		client: opts.Client,
		prefix: prefix,
		ttl:    ttl,
		now:    now,
		locks:  make(map[string]*sync.Mutex),
	}, nil
}

// Get returns the state for id, or nil when absent or expired.
func (s *Store) Get(ctx context.Context, id string) (*conversation.State, error) {
	raw, err := s.client.Get(ctx, s.key(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("redis get conversation %s: %w", id, err)
	}
	var state conversation.State
	if err := json.Unmarshal(raw, &state); err != nil {
		return nil, fmt.Errorf("decode conversation %s: %w", id, err)
	}
	return &state, nil
}

// Put stores the state under its id, refreshing its TTL.
func (s *Store) Put(ctx context.Context, state *conversation.State) error {
	if state == nil || state.ID == "" {
		return nil
	}
	if state.UpdatedAt.IsZero() {
		state.UpdatedAt = s.now()
	}
	raw, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("encode conversation %s: %w", state.ID, err)
	}
	if err := s.client.Set(ctx, s.key(state.ID), raw, s.ttl).Err(); err != nil {
		return fmt.Errorf("redis set conversation %s: %w", state.ID, err)
	}
	return nil
}

// Delete removes the state for id.
func (s *Store) Delete(ctx context.Context, id string) error {
	if err := s.client.Del(ctx, s.key(id)).Err(); err != nil {
		return fmt.Errorf("redis del conversation %s: %w", id, err)
	}
	return nil
}

// Update applies fn to the current state under the per-conversation lock and
// stores the result. A nil returned state deletes the conversation.
func (s *Store) Update(ctx context.Context, id string, fn func(*conversation.State) (*conversation.State, error)) (*conversation.State, error) {
	lock := s.lockFor(id)
	lock.Lock()
	defer lock.Unlock()

	state, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	next, err := fn(state)
	if err != nil {
		return nil, err
	}
	if next == nil {
		return nil, s.Delete(ctx, id)
	}
	if next.ID == "" {
		next.ID = id
	}
	next.UpdatedAt = s.now()
	if err := s.Put(ctx, next); err != nil {
		return nil, err
	}
	return next, nil
}

func (s *Store) key(id string) string {
	return s.prefix + id
}

func (s *Store) lockFor(id string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	lock, ok := s.locks[id]
	if !ok {
		lock = &sync.Mutex{}
		s.locks[id] = lock
	}
	return lock
}
