// Package options provides the ordered option map shared by processors and configurations.
package options

import (
	"fmt"
	"sort"
)

// Map is an insertion-ordered string-keyed option map.
// A nil *Map behaves as an empty map for all read operations.
type Map struct {
	keys   []string
	values map[string]interface{}
}

// Pair is a single key/value entry used to build a Map.
type Pair struct {
	Key   string
	Value interface{}
}

// New builds a Map from pairs, keeping their order. A repeated key keeps its
// first position and takes the last value.
func New(pairs ...Pair) *Map {
	m := &Map{values: make(map[string]interface{}, len(pairs))}
	for _, p := range pairs {
		m.Set(p.Key, p.Value)
	}
	return m
}

// Set stores value under key. New keys are appended at the end.
func (m *Map) Set(key string, value interface{}) {
	if m.values == nil {
		m.values = make(map[string]interface{})
	}
	if _, ok := m.values[key]; !ok {
		m.keys = append(m.keys, key)
	}
	m.values[key] = value
}

// Get returns the value stored under key.
func (m *Map) Get(key string) (interface{}, bool) {
	if m == nil {
		return nil, false
	}
	v, ok := m.values[key]
	return v, ok
}

// String returns the value under key when it is a string.
func (m *Map) String(key string) (string, bool) {
	v, ok := m.Get(key)
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}

// Int returns the value under key when it is an integer (any numeric kind
// holding an integral value).
func (m *Map) Int(key string) (int, bool) {
	v, ok := m.Get(key)
	if !ok {
		return 0, false
	}
	switch n := v.(type) {
	case int:
		return n, true
	case int64:
		return int(n), true
	case int32:
		return int(n), true
	case uint64:
		return int(n), true
	case float64:
		if n == float64(int(n)) {
			return int(n), true
		}
	}
	return 0, false
}

// Map returns the nested option map under key.
func (m *Map) Map(key string) (*Map, bool) {
	v, ok := m.Get(key)
	if !ok {
		return nil, false
	}
	return From(v)
}

// Delete removes key.
func (m *Map) Delete(key string) {
	if m == nil {
		return
	}
	if _, ok := m.values[key]; !ok {
		return
	}
	delete(m.values, key)
	for i, k := range m.keys {
		if k == key {
			m.keys = append(m.keys[:i:i], m.keys[i+1:]...)
			break
		}
	}
}

// Len returns the number of entries.
func (m *Map) Len() int {
	if m == nil {
		return 0
	}
	return len(m.keys)
}

// Keys returns the keys in order.
func (m *Map) Keys() []string {
	if m == nil {
		return nil
	}
	out := make([]string, len(m.keys))
	copy(out, m.keys)
	return out
}

// Each calls fn for every entry in order until fn returns false.
func (m *Map) Each(fn func(key string, value interface{}) bool) {
	if m == nil {
		return
	}
	for _, k := range m.keys {
		if !fn(k, m.values[k]) {
			return
		}
	}
}

// Clone returns a shallow copy. Nested maps are shared.
func (m *Map) Clone() *Map {
	out := &Map{values: make(map[string]interface{}, m.Len())}
	m.Each(func(k string, v interface{}) bool {
		out.Set(k, v)
		return true
	})
	return out
}

// ToMap converts the map (recursively) to plain Go maps.
func (m *Map) ToMap() map[string]interface{} {
	out := make(map[string]interface{}, m.Len())
	m.Each(func(k string, v interface{}) bool {
		out[k] = plain(v)
		return true
	})
	return out
}

func plain(v interface{}) interface{} {
	switch t := v.(type) {
	case *Map:
		return t.ToMap()
	case []interface{}:
		out := make([]interface{}, len(t))
		for i, e := range t {
			out[i] = plain(e)
		}
		return out
	default:
		return v
	}
}

// Merge returns base ∪ override as a new map. Keys from override win on
// collision and keep base's position; new keys are appended in override order.
// The merge is shallow: nested maps are replaced, never combined.
func Merge(base, override *Map) *Map {
	out := base.Clone()
	override.Each(func(k string, v interface{}) bool {
		out.Set(k, v)
		return true
	})
	return out
}

// From converts v to a *Map. Accepted inputs are *Map, Map, map[string]any,
// map[string]string and nil (empty map). Plain Go maps are given sorted key
// order since they carry none.
func From(v interface{}) (*Map, bool) {
	switch t := v.(type) {
	case nil:
		return New(), true
	case *Map:
		if t == nil {
			return New(), true
		}
		return t, true
	case Map:
		return &t, true
	case map[string]interface{}:
		out := New()
		for _, k := range sortedKeys(t) {
			out.Set(k, t[k])
		}
		return out, true
	case map[string]string:
		out := New()
		keys := make([]string, 0, len(t))
		for k := range t {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			out.Set(k, t[k])
		}
		return out, true
	}
	return nil, false
}

// MustFrom is From for literals in wiring code and tests.
func MustFrom(v interface{}) *Map {
	m, ok := From(v)
	if !ok {
		panic(fmt.Sprintf("options: cannot convert %T to an option map", v))
	}
	return m
}

func sortedKeys(m map[string]interface{}) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
