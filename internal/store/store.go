// Package store is the hierarchical content repository. Values are JSON
// documents addressed by slash-separated paths; subscribers receive the
// current value of a path whenever it or anything beneath it changes.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"sort"
)

var (
	ErrNotFound    = errors.New("store: path not found")
	ErrInvalidPath = errors.New("store: invalid path")
)

// Store is implemented by the memory and postgres backends.
type Store interface {
	// Read returns the value at path. A missing path yields a snapshot whose
	// Exists reports false, not an error.
	Read(ctx context.Context, path string) (Snapshot, error)
	// Write replaces the value at path and everything beneath it.
	Write(ctx context.Context, path string, value any) error
	// Append writes value under a freshly generated child id of collection.
	Append(ctx context.Context, collection string, value any) (string, error)
	// Update writes each field as a child of path. A nil field removes it.
	Update(ctx context.Context, path string, fields map[string]any) error
	Remove(ctx context.Context, path string) error
	// WriteIfAbsent writes value only if nothing exists at path yet.
	WriteIfAbsent(ctx context.Context, path string, value any) (bool, error)
	// Keys lists the child ids directly under path, sorted.
	Keys(ctx context.Context, path string) ([]string, error)
	// Subscribe delivers the current value at path, then a fresh value after
	// every change to path, its subtree or an ancestor that replaces it.
	// The subscription ends when ctx is done or Close is called.
	Subscribe(ctx context.Context, path string) (*Subscription, error)
}

// Identifiable values receive the generated id before Append stores them.
type Identifiable interface {
	AssignID(id string)
}

// Snapshot is the value found at a path at one point in time.
type Snapshot struct {
	Path string
	Raw  json.RawMessage
}

// Exists reports whether any value was stored at the path.
func (s Snapshot) Exists() bool { return len(s.Raw) > 0 }

// Key is the last segment of the snapshot's path.
func (s Snapshot) Key() string { return lastSegment(s.Path) }

// Decode unmarshals the value into v.
func (s Snapshot) Decode(v any) error {
	if !s.Exists() {
		return ErrNotFound
	}
	return json.Unmarshal(s.Raw, v)
}

// Children splits an object value into one snapshot per child, ordered by key.
// Scalars and absent values have no children.
func (s Snapshot) Children() ([]Snapshot, error) {
	if !s.Exists() || !isObject(s.Raw) {
		return nil, nil
	}
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(s.Raw, &obj); err != nil {
		return nil, err
	}
	keys := make([]string, 0, len(obj))
	for k := range obj {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	children := make([]Snapshot, 0, len(keys))
	for _, k := range keys {
		children = append(children, Snapshot{Path: s.Path + "/" + k, Raw: obj[k]})
	}
	return children, nil
}
