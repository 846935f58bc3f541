package store

import (
	"bytes"
	"context"
	"encoding/json"
	"sync"

	"github.com/rs/zerolog"
)

// readFunc loads the current snapshot at a path.
type readFunc func(ctx context.Context, path string) (Snapshot, error)

// hub fans change notifications out to the subscriptions of one store.
type hub struct {
	mu   sync.Mutex
	subs map[*Subscription]struct{}
	log  zerolog.Logger
}

func newHub(log zerolog.Logger) *hub {
	return &hub{
		subs: make(map[*Subscription]struct{}),
		log:  log,
	}
}

// subscribe registers a subscription and primes it with the current value.
// Holding mu across the read keeps the initial value ordered before any
// delivery for a later change.
func (h *hub) subscribe(ctx context.Context, path string, read readFunc) (*Subscription, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	snap, err := read(ctx, path)
	if err != nil {
		return nil, err
	}
	sub := newSubscription(ctx, path, h)
	h.subs[sub] = struct{}{}
	sub.push(snap)
	return sub, nil
}

// deliver pushes a fresh value to every subscription affected by a change at changed.
func (h *hub) deliver(ctx context.Context, changed string, read readFunc) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for sub := range h.subs {
		if !related(sub.path, changed) {
			continue
		}
		snap, err := read(ctx, sub.path)
		if err != nil {
			h.log.Error().Err(err).Str("path", sub.path).Msg("Failed to read value for subscriber")
			continue
		}
		sub.push(snap)
	}
}

func (h *hub) remove(sub *Subscription) {
	h.mu.Lock()
	delete(h.subs, sub)
	h.mu.Unlock()
}

// Subscription is a live feed of snapshots for one path. Values are queued
// without bound so a slow consumer never stalls writers; consecutive
// identical values are collapsed.
type Subscription struct {
	path string
	hub  *hub

	mu     sync.Mutex
	queue  []Snapshot
	last   json.RawMessage
	primed bool

	signal    chan struct{}
	out       chan Snapshot
	done      chan struct{}
	closeOnce sync.Once
}

func newSubscription(ctx context.Context, path string, h *hub) *Subscription {
	s := &Subscription{
		path:   path,
		hub:    h,
		signal: make(chan struct{}, 1),
		out:    make(chan Snapshot),
		done:   make(chan struct{}),
	}
	go s.run()
	go func() {
		select {
		case <-ctx.Done():
			s.Close()
		case <-s.done:
		}
	}()
	return s
}

// Path is the subscribed path.
func (s *Subscription) Path() string { return s.path }

// Updates yields snapshots in change order. It is closed after Close.
func (s *Subscription) Updates() <-chan Snapshot { return s.out }

// Close releases the subscription. No value is delivered after it returns.
func (s *Subscription) Close() {
	s.closeOnce.Do(func() {
		s.hub.remove(s)
		close(s.done)
	})
}

func (s *Subscription) push(snap Snapshot) {
	s.mu.Lock()
	if s.primed && bytes.Equal(s.last, snap.Raw) {
		s.mu.Unlock()
		return
	}
	s.primed = true
	s.last = snap.Raw
	s.queue = append(s.queue, snap)
	s.mu.Unlock()

	select {
	case s.signal <- struct{}{}:
	default:
	}
}

func (s *Subscription) run() {
	defer close(s.out)
	for {
		select {
		case <-s.done:
			return
		case <-s.signal:
		}
		for {
			s.mu.Lock()
			if len(s.queue) == 0 {
				s.mu.Unlock()
				break
			}
			next := s.queue[0]
			s.queue = s.queue[1:]
			s.mu.Unlock()

			select {
			case <-s.done:
				return
			default:
			}
			select {
			case s.out <- next:
			case <-s.done:
				return
			}
		}
	}
}
