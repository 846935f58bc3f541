package presence

import (
	"context"
	"testing"
	"time"

	"github.com/arstate/FAFA-BIMBEL/internal/config"
	"github.com/arstate/FAFA-BIMBEL/internal/model"
	"github.com/arstate/FAFA-BIMBEL/internal/store"
	ws "github.com/arstate/FAFA-BIMBEL/internal/websocket"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	store    *store.MemoryStore
	registry *MemoryRegistry
	tracker  *Tracker
	clock    time.Time
}

func newFixture(t *testing.T) *fixture {
	return newFixtureWithTTL(t, 45*time.Second)
}

func newFixtureWithTTL(t *testing.T, ttl time.Duration) *fixture {
	t.Helper()
	f := &fixture{
		store:    store.NewMemoryStore(zerolog.Nop()),
		registry: NewMemoryRegistry(ttl),
		clock:    time.Date(2025, 3, 1, 8, 0, 0, 0, time.UTC),
	}
	now := func() time.Time { return f.clock }
	f.registry.now = now
	f.tracker = NewTracker(f.store, f.registry, zerolog.Nop())
	f.tracker.now = now

	require.NoError(t, f.store.Write(context.Background(), store.Paths.User("u1"), model.User{
		ID: "u1", Username: "budi", Name: "Budi", Role: model.RoleStudent,
	}))
	return f
}

func (f *fixture) user(t *testing.T) model.User {
	t.Helper()
	snap, err := f.store.Read(context.Background(), store.Paths.User("u1"))
	require.NoError(t, err)
	var u model.User
	require.NoError(t, snap.Decode(&u))
	return u
}

func TestTracker_ConnectAndClose(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	conn, err := f.tracker.Connect(ctx, "u1")
	require.NoError(t, err)
	assert.True(t, f.user(t).IsOnline)

	f.clock = f.clock.Add(time.Minute)
	require.NoError(t, conn.Heartbeat(ctx))
	conn.Close(ctx)

	u := f.user(t)
	assert.False(t, u.IsOnline)
	require.NotNil(t, u.LastActive)
	assert.True(t, u.LastActive.Equal(f.clock))
}

func TestTracker_StaysOnlineUntilLastConnectionCloses(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	a, err := f.tracker.Connect(ctx, "u1")
	require.NoError(t, err)
	b, err := f.tracker.Connect(ctx, "u1")
	require.NoError(t, err)

	a.Close(ctx)
	assert.True(t, f.user(t).IsOnline)

	b.Close(ctx)
	assert.False(t, f.user(t).IsOnline)
}

func TestTracker_ReconnectReassertsOnline(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	a, err := f.tracker.Connect(ctx, "u1")
	require.NoError(t, err)
	a.Close(ctx)
	a.Close(ctx)
	assert.False(t, f.user(t).IsOnline)

	_, err = f.tracker.Connect(ctx, "u1")
	require.NoError(t, err)
	assert.True(t, f.user(t).IsOnline)
}

func TestTracker_AdminAndUnknownUsersAreNotTracked(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	for _, id := range []string{model.AdminID, "ghost"} {
		conn, err := f.tracker.Connect(ctx, id)
		require.NoError(t, err)
		conn.Close(ctx)

		snap, err := f.store.Read(ctx, store.Paths.User(id))
		require.NoError(t, err)
		assert.False(t, snap.Exists(), id)
	}
}

func TestTracker_SweepMarksExpiredConnectionsOffline(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	_, err := f.tracker.Connect(ctx, "u1")
	require.NoError(t, err)

	swept, err := f.tracker.Sweep(ctx)
	require.NoError(t, err)
	assert.Zero(t, swept)
	assert.True(t, f.user(t).IsOnline)

	// No heartbeat for longer than the TTL, as if the instance had died.
	f.clock = f.clock.Add(2 * time.Minute)
	swept, err = f.tracker.Sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, swept)
	assert.False(t, f.user(t).IsOnline)
}

func TestCheckTTL(t *testing.T) {
	assert.NoError(t, CheckTTL(config.Load().PresenceTTL, ws.PingPeriod))
	assert.ErrorIs(t, CheckTTL(45*time.Second, ws.PingPeriod), ErrTTLTooShort)
	assert.ErrorIs(t, CheckTTL(ws.PingPeriod, ws.PingPeriod), ErrTTLTooShort)
}

func TestTracker_DefaultTTLSurvivesUntilFirstPong(t *testing.T) {
	ctx := context.Background()
	f := newFixtureWithTTL(t, config.Load().PresenceTTL)

	conn, err := f.tracker.Connect(ctx, "u1")
	require.NoError(t, err)

	f.clock = f.clock.Add(ws.PingPeriod - time.Second)
	swept, err := f.tracker.Sweep(ctx)
	require.NoError(t, err)
	assert.Zero(t, swept)
	assert.True(t, f.user(t).IsOnline)

	f.clock = f.clock.Add(time.Second)
	require.NoError(t, conn.Heartbeat(ctx))
	assert.True(t, f.user(t).IsOnline)
}

func TestTracker_HeartbeatRestoresOnline(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	conn, err := f.tracker.Connect(ctx, "u1")
	require.NoError(t, err)

	f.clock = f.clock.Add(50 * time.Second)
	swept, err := f.tracker.Sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, swept)
	assert.False(t, f.user(t).IsOnline)

	f.clock = f.clock.Add(5 * time.Second)
	require.NoError(t, conn.Heartbeat(ctx))
	u := f.user(t)
	assert.True(t, u.IsOnline)
	require.NotNil(t, u.LastActive)
	assert.True(t, u.LastActive.Equal(f.clock))

	// A closed connection no longer counts, whatever arrives late.
	conn.Close(ctx)
	require.NoError(t, conn.Heartbeat(ctx))
	assert.False(t, f.user(t).IsOnline)
}

// hookRegistry runs a callback once, right after the named call, to
// interleave another connection with a disconnect.
type hookRegistry struct {
	Registry
	after string
	hook  func()
}

func (r *hookRegistry) fire(call string) {
	if r.hook != nil && r.after == call {
		h := r.hook
		r.hook = nil
		h()
	}
}

func (r *hookRegistry) Unregister(ctx context.Context, userID, connID string) (int, error) {
	n, err := r.Registry.Unregister(ctx, userID, connID)
	r.fire("unregister")
	return n, err
}

func (r *hookRegistry) Live(ctx context.Context, userID string) (int, error) {
	n, err := r.Registry.Live(ctx, userID)
	r.fire("live")
	return n, err
}

func TestTracker_ReconnectDuringCloseStaysOnline(t *testing.T) {
	for _, after := range []string{"unregister", "live"} {
		t.Run(after, func(t *testing.T) {
			ctx := context.Background()
			f := newFixture(t)
			reg := &hookRegistry{Registry: f.registry, after: after}
			f.tracker.registry = reg

			old, err := f.tracker.Connect(ctx, "u1")
			require.NoError(t, err)

			reg.hook = func() {
				_, err := f.tracker.Connect(ctx, "u1")
				require.NoError(t, err)
			}
			old.Close(ctx)

			live, err := f.registry.Live(ctx, "u1")
			require.NoError(t, err)
			assert.Equal(t, 1, live)
			assert.True(t, f.user(t).IsOnline)
		})
	}
}

func TestTracker_SweepRestoresLiveUsers(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	_, err := f.tracker.Connect(ctx, "u1")
	require.NoError(t, err)
	require.NoError(t, f.store.Update(ctx, store.Paths.User("u1"), map[string]any{"is_online": false}))

	swept, err := f.tracker.Sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, swept)
	assert.True(t, f.user(t).IsOnline)

	swept, err = f.tracker.Sweep(ctx)
	require.NoError(t, err)
	assert.Zero(t, swept)
}

func TestMemoryRegistry_Expiry(t *testing.T) {
	ctx := context.Background()
	clock := time.Now()
	r := NewMemoryRegistry(10 * time.Second)
	r.now = func() time.Time { return clock }

	require.NoError(t, r.Register(ctx, "u1", "c1"))
	require.NoError(t, r.Register(ctx, "u1", "c2"))

	clock = clock.Add(8 * time.Second)
	require.NoError(t, r.Heartbeat(ctx, "u1", "c2"))

	clock = clock.Add(5 * time.Second)
	n, err := r.Live(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	n, err = r.Unregister(ctx, "u1", "c2")
	require.NoError(t, err)
	assert.Zero(t, n)
}
