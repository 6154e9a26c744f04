package inmem

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/orderflow-ai/orderflow/runtime/conversation"
)

var storeNow = time.Date(2026, 8, 1, 9, 0, 0, 0, time.UTC)

type manualClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *manualClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *manualClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func TestPutAndGet(t *testing.T) {
	s := New(Options{})
	defer s.Close()

	state := &conversation.State{ID: "c1", UserID: "u1"}
	state.Append("user", "hello", storeNow)
	require.NoError(t, s.Put(context.Background(), state))

	got, err := s.Get(context.Background(), "c1")
	require.NoError(t, err)
	require.NotNil(t, got)
	require.Equal(t, "u1", got.UserID)
	require.Len(t, got.Messages, 1)
}

func TestGetMissingReturnsNil(t *testing.T) {
	s := New(Options{})
	defer s.Close()

	got, err := s.Get(context.Background(), "nope")
	require.NoError(t, err)
	require.Nil(t, got)
}

func TestGetReturnsCopy(t *testing.T) {
	s := New(Options{})
	defer s.Close()

	require.NoError(t, s.Put(context.Background(), &conversation.State{ID: "c1"}))
	first, err := s.Get(context.Background(), "c1")
	require.NoError(t, err)
	first.Messages = append(first.Messages, conversation.Message{Role: "user", Content: "mutated"})

	second, err := s.Get(context.Background(), "c1")
	require.NoError(t, err)
	require.Empty(t, second.Messages, "mutating a returned state must not affect the store")
}

func TestDelete(t *testing.T) {
	s := New(Options{})
	defer s.Close()

	require.NoError(t, s.Put(context.Background(), &conversation.State{ID: "c1"}))
	require.NoError(t, s.Delete(context.Background(), "c1"))

	got, err := s.Get(context.Background(), "c1")
	require.NoError(t, err)
	require.Nil(t, got)
}

func TestTTLExpiry(t *testing.T) {
	clock := &manualClock{now: storeNow}
	s := New(Options{TTL: time.Hour, Clock: clock.Now})
	defer s.Close()

	require.NoError(t, s.Put(context.Background(), &conversation.State{ID: "c1", UpdatedAt: storeNow}))

	clock.Advance(30 * time.Minute)
	got, err := s.Get(context.Background(), "c1")
	require.NoError(t, err)
	require.NotNil(t, got)

	clock.Advance(31 * time.Minute)
	got, err = s.Get(context.Background(), "c1")
	require.NoError(t, err)
	require.Nil(t, got, "idle conversation past TTL must expire")
}

func TestMaxEntriesEvictsOldest(t *testing.T) {
	clock := &manualClock{now: storeNow}
	s := New(Options{MaxEntries: 3, Clock: clock.Now})
	defer s.Close()

	for i := 1; i <= 4; i++ {
		clock.Advance(time.Minute)
		require.NoError(t, s.Put(context.Background(), &conversation.State{
			ID:        fmt.Sprintf("c%d", i),
			UpdatedAt: clock.Now(),
		}))
	}
	require.Equal(t, 3, s.Len())

	got, err := s.Get(context.Background(), "c1")
	require.NoError(t, err)
	require.Nil(t, got, "least recently updated conversation must be evicted")
}

func TestUpdateCreatesAndAppends(t *testing.T) {
	s := New(Options{})
	defer s.Close()

	state, err := s.Update(context.Background(), "c1", func(cur *conversation.State) (*conversation.State, error) {
		require.Nil(t, cur)
		next := &conversation.State{ID: "c1", UserID: "u1"}
		next.Append("user", "first", storeNow)
		return next, nil
	})
	require.NoError(t, err)
	require.Len(t, state.Messages, 1)

	state, err = s.Update(context.Background(), "c1", func(cur *conversation.State) (*conversation.State, error) {
		require.NotNil(t, cur)
		cur.Append("assistant", "reply", storeNow)
		return cur, nil
	})
	require.NoError(t, err)
	require.Len(t, state.Messages, 2)
}

func TestUpdateNilDeletes(t *testing.T) {
	s := New(Options{})
	defer s.Close()

	require.NoError(t, s.Put(context.Background(), &conversation.State{ID: "c1"}))
	_, err := s.Update(context.Background(), "c1", func(*conversation.State) (*conversation.State, error) {
		return nil, nil
	})
	require.NoError(t, err)

	got, err := s.Get(context.Background(), "c1")
	require.NoError(t, err)
	require.Nil(t, got)
}

func TestUpdateSerializesSameConversation(t *testing.T) {
	s := New(Options{})
	defer s.Close()

	const turns = 50
	var wg sync.WaitGroup
	for i := 0; i < turns; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			_, err := s.Update(context.Background(), "c1", func(cur *conversation.State) (*conversation.State, error) {
				if cur == nil {
					cur = &conversation.State{ID: "c1"}
				}
				cur.Append("user", fmt.Sprintf("turn %d", n), storeNow)
				return cur, nil
			})
			require.NoError(t, err)
		}(i)
	}
	wg.Wait()

	got, err := s.Get(context.Background(), "c1")
	require.NoError(t, err)
	require.Len(t, got.Messages, turns, "concurrent turns for one conversation must all land")
}

func TestJanitorSweepsExpired(t *testing.T) {
	clock := &manualClock{now: storeNow}
	s := New(Options{TTL: time.Minute, CleanupInterval: 5 * time.Millisecond, Clock: clock.Now})
	defer s.Close()

	require.NoError(t, s.Put(context.Background(), &conversation.State{ID: "c1", UpdatedAt: storeNow}))
	clock.Advance(2 * time.Minute)

	require.Eventually(t, func() bool { return s.Len() == 0 }, time.Second, 10*time.Millisecond)
}
