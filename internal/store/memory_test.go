package store

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/arstate/FAFA-BIMBEL/internal/model"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore() *MemoryStore {
	return NewMemoryStore(zerolog.Nop())
}

func next(t *testing.T, sub *Subscription) Snapshot {
	t.Helper()
	select {
	case snap, ok := <-sub.Updates():
		require.True(t, ok, "subscription closed")
		return snap
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for update")
		return Snapshot{}
	}
}

func expectNone(t *testing.T, sub *Subscription) {
	t.Helper()
	select {
	case snap, ok := <-sub.Updates():
		if ok {
			t.Fatalf("unexpected update: %s", snap.Raw)
		}
	case <-time.After(50 * time.Millisecond):
	}
}

func TestMemoryStore_WriteRead(t *testing.T) {
	ctx := context.Background()
	s := newTestStore()

	snap, err := s.Read(ctx, "classes/c1")
	require.NoError(t, err)
	assert.False(t, snap.Exists())

	require.NoError(t, s.Write(ctx, "classes/c1", model.ClassSession{ID: "c1", Name: "Kelas A", AccessCode: "ABC234"}))

	snap, err = s.Read(ctx, "classes/c1")
	require.NoError(t, err)
	var c model.ClassSession
	require.NoError(t, snap.Decode(&c))
	assert.Equal(t, "Kelas A", c.Name)
	assert.Equal(t, "ABC234", c.AccessCode)

	name, err := s.Read(ctx, "classes/c1/name")
	require.NoError(t, err)
	assert.JSONEq(t, `"Kelas A"`, string(name.Raw))
}

func TestMemoryStore_WriteReplacesSubtree(t *testing.T) {
	ctx := context.Background()
	s := newTestStore()

	require.NoError(t, s.Write(ctx, "x", map[string]any{"a": 1, "b": 2}))
	require.NoError(t, s.Write(ctx, "x", map[string]any{"c": 3}))

	snap, err := s.Read(ctx, "x")
	require.NoError(t, err)
	assert.JSONEq(t, `{"c":3}`, string(snap.Raw))

	// A child write shadows a scalar ancestor.
	require.NoError(t, s.Write(ctx, "x/c/d", "deep"))
	snap, err = s.Read(ctx, "x")
	require.NoError(t, err)
	assert.JSONEq(t, `{"c":{"d":"deep"}}`, string(snap.Raw))
}

func TestMemoryStore_NullFieldsNeverStored(t *testing.T) {
	ctx := context.Background()
	s := newTestStore()

	require.NoError(t, s.Write(ctx, "x", map[string]any{"a": 1, "b": nil}))
	keys, err := s.Keys(ctx, "x")
	require.NoError(t, err)
	assert.Equal(t, []string{"a"}, keys)
}

func TestMemoryStore_Update(t *testing.T) {
	ctx := context.Background()
	s := newTestStore()

	require.NoError(t, s.Write(ctx, "users/u1", map[string]any{"name": "Budi", "is_online": false, "last_active": "t0"}))
	require.NoError(t, s.Update(ctx, "users/u1", map[string]any{"is_online": true, "last_active": nil}))

	snap, err := s.Read(ctx, "users/u1")
	require.NoError(t, err)
	assert.JSONEq(t, `{"name":"Budi","is_online":true}`, string(snap.Raw))
}

func TestMemoryStore_AppendIsOrderedAndAssignsID(t *testing.T) {
	ctx := context.Background()
	s := newTestStore()

	var ids []string
	for i := 0; i < 20; i++ {
		c := &model.Comment{Text: "hi"}
		id, err := s.Append(ctx, "threads/t1", c)
		require.NoError(t, err)
		assert.Equal(t, id, c.ID)
		ids = append(ids, id)
	}

	keys, err := s.Keys(ctx, "threads/t1")
	require.NoError(t, err)
	assert.Equal(t, ids, keys)
}

func TestMemoryStore_WriteIfAbsent(t *testing.T) {
	ctx := context.Background()
	s := newTestStore()

	ok, err := s.WriteIfAbsent(ctx, "usernames/budi", "u1")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = s.WriteIfAbsent(ctx, "usernames/budi", "u2")
	require.NoError(t, err)
	assert.False(t, ok)

	snap, err := s.Read(ctx, "usernames/budi")
	require.NoError(t, err)
	assert.JSONEq(t, `"u1"`, string(snap.Raw))
}

func TestMemoryStore_WriteIfAbsent_ConcurrentSingleWinner(t *testing.T) {
	ctx := context.Background()
	s := newTestStore()

	var wg sync.WaitGroup
	var mu sync.Mutex
	wins := 0
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := s.WriteIfAbsent(ctx, "results/s1", map[string]any{"score": 50})
			assert.NoError(t, err)
			if ok {
				mu.Lock()
				wins++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, wins)
}

func TestMemoryStore_Remove(t *testing.T) {
	ctx := context.Background()
	s := newTestStore()

	require.NoError(t, s.Write(ctx, "q", map[string]any{"q1": map[string]any{"text": "?"}, "q2": map[string]any{"text": "!"}}))
	require.NoError(t, s.Remove(ctx, "q/q1"))

	keys, err := s.Keys(ctx, "q")
	require.NoError(t, err)
	assert.Equal(t, []string{"q2"}, keys)
}

func TestMemoryStore_InvalidPath(t *testing.T) {
	ctx := context.Background()
	s := newTestStore()

	assert.ErrorIs(t, s.Write(ctx, "a//b", 1), ErrInvalidPath)
	_, err := s.Read(ctx, "")
	assert.ErrorIs(t, err, ErrInvalidPath)
	_, err = s.Subscribe(ctx, "a/")
	assert.ErrorIs(t, err, ErrInvalidPath)
}

func TestMemoryStore_Subscribe(t *testing.T) {
	ctx := context.Background()
	s := newTestStore()
	require.NoError(t, s.Write(ctx, "items/i1/comments/s1/c0", map[string]any{"text": "first"}))

	sub, err := s.Subscribe(ctx, "items/i1/comments/s1")
	require.NoError(t, err)
	defer sub.Close()

	initial := next(t, sub)
	assert.JSONEq(t, `{"c0":{"text":"first"}}`, string(initial.Raw))

	t.Run("subtree change delivers", func(t *testing.T) {
		require.NoError(t, s.Write(ctx, "items/i1/comments/s1/c1", map[string]any{"text": "second"}))
		snap := next(t, sub)
		assert.JSONEq(t, `{"c0":{"text":"first"},"c1":{"text":"second"}}`, string(snap.Raw))
	})

	t.Run("sibling change is silent", func(t *testing.T) {
		require.NoError(t, s.Write(ctx, "items/i1/comments/s2/c0", map[string]any{"text": "other"}))
		expectNone(t, sub)
	})

	t.Run("ancestor replace delivers", func(t *testing.T) {
		require.NoError(t, s.Remove(ctx, "items/i1"))
		snap := next(t, sub)
		assert.False(t, snap.Exists())
	})
}

func TestMemoryStore_SubscribeAbsentPath(t *testing.T) {
	ctx := context.Background()
	s := newTestStore()

	sub, err := s.Subscribe(ctx, "config/ai_credential")
	require.NoError(t, err)
	defer sub.Close()

	assert.False(t, next(t, sub).Exists())
	require.NoError(t, s.Write(ctx, "config/ai_credential", "key"))
	assert.JSONEq(t, `"key"`, string(next(t, sub).Raw))
}

func TestMemoryStore_SubscriptionEndsWithContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	s := newTestStore()

	sub, err := s.Subscribe(ctx, "x")
	require.NoError(t, err)
	next(t, sub)

	cancel()
	select {
	case _, ok := <-sub.Updates():
		assert.False(t, ok)
	case <-time.After(2 * time.Second):
		t.Fatal("subscription not closed after cancel")
	}

	require.NoError(t, s.Write(context.Background(), "x", 1))
	s.hub.mu.Lock()
	assert.Empty(t, s.hub.subs)
	s.hub.mu.Unlock()
}

func TestMemoryStore_SubscriberSeesAppendsInOrder(t *testing.T) {
	ctx := context.Background()
	s := newTestStore()

	sub, err := s.Subscribe(ctx, "t")
	require.NoError(t, err)
	defer sub.Close()
	next(t, sub)

	for i := 0; i < 5; i++ {
		_, err := s.Append(ctx, "t", map[string]any{"n": i})
		require.NoError(t, err)
	}

	var last Snapshot
	for i := 0; i < 5; i++ {
		last = next(t, sub)
	}
	children, err := last.Children()
	require.NoError(t, err)
	require.Len(t, children, 5)
	for i, c := range children {
		var v struct{ N int }
		require.NoError(t, c.Decode(&v))
		assert.Equal(t, i, v.N)
	}
}
