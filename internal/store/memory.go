package store

import (
	"context"
	"encoding/json"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// MemoryStore keeps every leaf in a process-local map. Change delivery runs
// while the write lock is held, so subscribers observe writes in order.
type MemoryStore struct {
	mu     sync.RWMutex
	leaves map[string]json.RawMessage
	hub    *hub
}

// NewMemoryStore returns an empty in-memory store.
func NewMemoryStore(log zerolog.Logger) *MemoryStore {
	return &MemoryStore{
		leaves: make(map[string]json.RawMessage),
		hub:    newHub(log.With().Str("component", "memory_store").Logger()),
	}
}

func (s *MemoryStore) Read(ctx context.Context, path string) (Snapshot, error) {
	if err := ValidatePath(path); err != nil {
		return Snapshot{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.readLocked(ctx, path)
}

func (s *MemoryStore) Write(ctx context.Context, path string, value any) error {
	leaves, err := prepare(path, value)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.replaceLocked(path, leaves)
	s.hub.deliver(ctx, path, s.readLocked)
	return nil
}

func (s *MemoryStore) Append(ctx context.Context, collection string, value any) (string, error) {
	if err := ValidatePath(collection); err != nil {
		return "", err
	}
	id, err := NewID()
	if err != nil {
		return "", err
	}
	if v, ok := value.(Identifiable); ok {
		v.AssignID(id)
	}
	if err := s.Write(ctx, Join(collection, id), value); err != nil {
		return "", err
	}
	return id, nil
}

func (s *MemoryStore) Update(ctx context.Context, path string, fields map[string]any) error {
	if err := ValidatePath(path); err != nil {
		return err
	}
	if len(fields) == 0 {
		return nil
	}
	staged := make(map[string][]leaf, len(fields))
	for k, v := range fields {
		child := Join(path, k)
		leaves, err := prepare(child, v)
		if err != nil {
			return err
		}
		staged[child] = leaves
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for child, leaves := range staged {
		s.replaceLocked(child, leaves)
	}
	s.hub.deliver(ctx, path, s.readLocked)
	return nil
}

func (s *MemoryStore) Remove(ctx context.Context, path string) error {
	if err := ValidatePath(path); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.replaceLocked(path, nil)
	s.hub.deliver(ctx, path, s.readLocked)
	return nil
}

func (s *MemoryStore) WriteIfAbsent(ctx context.Context, path string, value any) (bool, error) {
	leaves, err := prepare(path, value)
	if err != nil {
		return false, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.existsLocked(path) {
		return false, nil
	}
	s.replaceLocked(path, leaves)
	s.hub.deliver(ctx, path, s.readLocked)
	return true, nil
}

func (s *MemoryStore) Keys(_ context.Context, path string) ([]string, error) {
	if err := ValidatePath(path); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	prefix := path + "/"
	seen := make(map[string]struct{})
	for p := range s.leaves {
		if rest, ok := strings.CutPrefix(p, prefix); ok {
			key, _, _ := strings.Cut(rest, "/")
			seen[key] = struct{}{}
		}
	}
	keys := make([]string, 0, len(seen))
	for k := range seen {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys, nil
}

func (s *MemoryStore) Subscribe(ctx context.Context, path string) (*Subscription, error) {
	if err := ValidatePath(path); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.hub.subscribe(ctx, path, s.readLocked)
}

func (s *MemoryStore) readLocked(_ context.Context, path string) (Snapshot, error) {
	var found []leaf
	for p, v := range s.leaves {
		if within(p, path) {
			found = append(found, leaf{path: p, value: v})
		}
	}
	raw, err := build(path, found)
	if err != nil {
		return Snapshot{}, err
	}
	return Snapshot{Path: path, Raw: raw}, nil
}

func (s *MemoryStore) existsLocked(path string) bool {
	for p := range s.leaves {
		if within(p, path) {
			return true
		}
	}
	return false
}

// replaceLocked drops the subtree at path and any ancestor leaf it would
// shadow, then stores leaves.
func (s *MemoryStore) replaceLocked(path string, leaves []leaf) {
	for p := range s.leaves {
		if within(p, path) {
			delete(s.leaves, p)
		}
	}
	for _, a := range ancestors(path) {
		delete(s.leaves, a)
	}
	for _, l := range leaves {
		s.leaves[l.path] = l.value
	}
}

// NewID returns a time-ordered unique id so append order matches creation order.
func NewID() (string, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return "", err
	}
	return id.String(), nil
}
