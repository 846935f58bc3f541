package store

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// leaf is one stored scalar or array, keyed by its full path.
type leaf struct {
	path  string
	value json.RawMessage
}

func encode(value any) (json.RawMessage, error) {
	switch v := value.(type) {
	case json.RawMessage:
		return v, nil
	case []byte:
		return v, nil
	}
	return json.Marshal(value)
}

func isObject(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) > 0 && trimmed[0] == '{'
}

// flatten splits a JSON document into leaves beneath path. Objects are
// recursed, nulls and empty objects produce nothing.
func flatten(path string, raw json.RawMessage, out []leaf) ([]leaf, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return out, nil
	}
	if trimmed[0] != '{' {
		var buf bytes.Buffer
		if err := json.Compact(&buf, trimmed); err != nil {
			return nil, err
		}
		return append(out, leaf{path: path, value: buf.Bytes()}), nil
	}

	var obj map[string]json.RawMessage
	if err := json.Unmarshal(trimmed, &obj); err != nil {
		return nil, err
	}
	var err error
	for k, v := range obj {
		if err := validateSegment(k); err != nil {
			return nil, fmt.Errorf("key under %q: %w", path, err)
		}
		if out, err = flatten(path+"/"+k, v, out); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// build reassembles the value at root from the leaves at or beneath it.
func build(root string, leaves []leaf) (json.RawMessage, error) {
	if len(leaves) == 0 {
		return nil, nil
	}
	tree := make(map[string]any)
	for _, l := range leaves {
		if l.path == root {
			return l.value, nil
		}
		segs := strings.Split(strings.TrimPrefix(l.path, root+"/"), "/")
		node := tree
		for _, s := range segs[:len(segs)-1] {
			child, ok := node[s].(map[string]any)
			if !ok {
				child = make(map[string]any)
				node[s] = child
			}
			node = child
		}
		node[segs[len(segs)-1]] = l.value
	}
	return json.Marshal(tree)
}

// prepare validates path and flattens value into the leaves to store.
func prepare(path string, value any) ([]leaf, error) {
	if err := ValidatePath(path); err != nil {
		return nil, err
	}
	raw, err := encode(value)
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", path, err)
	}
	return flatten(path, raw, nil)
}
