// Package presence keeps users' is_online and last_active fields in step
// with their realtime connections.
package presence

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/arstate/FAFA-BIMBEL/internal/model"
	"github.com/arstate/FAFA-BIMBEL/internal/store"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// ErrTTLTooShort is returned by CheckTTL when connection entries would expire
// between two heartbeats of a healthy connection.
var ErrTTLTooShort = errors.New("presence: connection ttl must exceed the heartbeat period")

// CheckTTL validates a registry TTL against the heartbeat period.
func CheckTTL(ttl, heartbeat time.Duration) error {
	if ttl <= heartbeat {
		return fmt.Errorf("%w: ttl %s, heartbeat %s", ErrTTLTooShort, ttl, heartbeat)
	}
	return nil
}

// Tracker marks users online when they connect and offline when their last
// connection goes away.
type Tracker struct {
	store    store.Store
	registry Registry
	now      func() time.Time
	log      zerolog.Logger
}

func NewTracker(s store.Store, registry Registry, log zerolog.Logger) *Tracker {
	return &Tracker{
		store:    s,
		registry: registry,
		now:      time.Now,
		log:      log.With().Str("component", "presence").Logger(),
	}
}

// Connection is one live transport connection of a user.
type Connection struct {
	ID     string
	UserID string

	tracker *Tracker
	tracked bool
	closed  atomic.Bool
	once    sync.Once
}

// Connect registers the connection before asserting is_online, so the
// offline hook exists for every connection that was ever marked online.
// The admin and unknown users get an inert connection.
func (t *Tracker) Connect(ctx context.Context, userID string) (*Connection, error) {
	conn := &Connection{ID: uuid.NewString(), UserID: userID, tracker: t}
	if userID == model.AdminID {
		return conn, nil
	}

	exists, err := t.userExists(ctx, userID)
	if err != nil {
		return nil, err
	}
	if !exists {
		t.log.Warn().Str("user_id", userID).Msg("Presence requested for unknown user")
		return conn, nil
	}

	if err := t.registry.Register(ctx, userID, conn.ID); err != nil {
		return nil, err
	}
	conn.tracked = true

	if err := t.store.Update(ctx, store.Paths.User(userID), map[string]any{
		"is_online":   true,
		"last_active": t.now().UTC(),
	}); err != nil {
		conn.Close(ctx)
		return nil, err
	}
	t.log.Debug().Str("user_id", userID).Str("conn_id", conn.ID).Msg("User online")
	return conn, nil
}

// Heartbeat keeps the connection counted as live and restores is_online if
// a sweep or another connection's close cleared it in the meantime.
func (c *Connection) Heartbeat(ctx context.Context) error {
	if !c.tracked || c.closed.Load() {
		return nil
	}
	t := c.tracker
	if err := t.registry.Heartbeat(ctx, c.UserID, c.ID); err != nil {
		return err
	}
	online, err := t.isOnline(ctx, c.UserID)
	if err != nil || online {
		return err
	}
	return t.markOnline(ctx, c.UserID)
}

// Close runs the disconnect hook once. The user is marked offline only when
// no other live connection remains.
func (c *Connection) Close(ctx context.Context) {
	c.once.Do(func() {
		c.closed.Store(true)
		if !c.tracked {
			return
		}
		t := c.tracker
		remaining, err := t.registry.Unregister(ctx, c.UserID, c.ID)
		if err != nil {
			t.log.Error().Err(err).Str("user_id", c.UserID).Msg("Failed to unregister connection")
			return
		}
		if remaining > 0 {
			return
		}
		if _, err := t.settleOffline(ctx, c.UserID); err != nil {
			t.log.Error().Err(err).Str("user_id", c.UserID).Msg("Failed to mark user offline")
		}
	})
}

// Sweep reconciles is_online with the registry: users flagged online without
// a live connection (an instance died without closing its connections) go
// offline, users flagged offline that still have one come back online. It
// returns how many users were changed.
func (t *Tracker) Sweep(ctx context.Context) (int, error) {
	ids, err := t.store.Keys(ctx, store.Paths.Users())
	if err != nil {
		return 0, err
	}

	changed := 0
	for _, id := range ids {
		online, err := t.isOnline(ctx, id)
		if err != nil {
			return changed, err
		}
		live, err := t.registry.Live(ctx, id)
		if err != nil {
			return changed, err
		}

		switch {
		case online && live == 0:
			offline, err := t.settleOffline(ctx, id)
			if err != nil {
				return changed, err
			}
			if offline {
				changed++
			}
		case !online && live > 0:
			if err := t.markOnline(ctx, id); err != nil {
				return changed, err
			}
			changed++
		}
	}
	return changed, nil
}

// settleOffline marks the user offline unless a connection is live. A
// connection registers before it writes is_online, so re-checking the
// registry after the write catches a Connect that raced with it; the flag is
// then restored. It reports whether the user ended offline.
func (t *Tracker) settleOffline(ctx context.Context, userID string) (bool, error) {
	live, err := t.registry.Live(ctx, userID)
	if err != nil || live > 0 {
		return false, err
	}
	if err := t.markOffline(ctx, userID); err != nil {
		return false, err
	}

	live, err = t.registry.Live(ctx, userID)
	if err != nil || live == 0 {
		return err == nil, err
	}
	t.log.Debug().Str("user_id", userID).Msg("Connection raced with disconnect")
	return false, t.markOnline(ctx, userID)
}

func (t *Tracker) markOnline(ctx context.Context, userID string) error {
	exists, err := t.userExists(ctx, userID)
	if err != nil || !exists {
		return err
	}
	t.log.Debug().Str("user_id", userID).Msg("User online")
	return t.store.Update(ctx, store.Paths.User(userID), map[string]any{
		"is_online":   true,
		"last_active": t.now().UTC(),
	})
}

func (t *Tracker) markOffline(ctx context.Context, userID string) error {
	exists, err := t.userExists(ctx, userID)
	if err != nil || !exists {
		return err
	}
	t.log.Debug().Str("user_id", userID).Msg("User offline")
	return t.store.Update(ctx, store.Paths.User(userID), map[string]any{
		"is_online":   false,
		"last_active": t.now().UTC(),
	})
}

func (t *Tracker) isOnline(ctx context.Context, userID string) (bool, error) {
	snap, err := t.store.Read(ctx, store.Join(store.Paths.User(userID), "is_online"))
	if err != nil {
		return false, err
	}
	var online bool
	if !snap.Exists() || snap.Decode(&online) != nil {
		return false, nil
	}
	return online, nil
}

func (t *Tracker) userExists(ctx context.Context, userID string) (bool, error) {
	snap, err := t.store.Read(ctx, store.Join(store.Paths.User(userID), "username"))
	if err != nil {
		return false, err
	}
	return snap.Exists(), nil
}
