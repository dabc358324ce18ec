// Copyright 2024-2026 Aiku AI

package query

import (
	"maps"
	"slices"
	"strconv"
)

// Properties is an ordered set of unique keys with string values. A key that
// is present with an empty value is distinct from an absent key.
//
// Properties taken from a parsed frame or answer must be treated as read-only;
// Merge, With and Filter return new values.
type Properties struct {
	keys   []string
	values map[string]string
}

// NewProperties creates an empty property set.
func NewProperties() *Properties {
	return &Properties{values: make(map[string]string)}
}

// PropertiesFromMap creates a property set from m, ordered by key.
func PropertiesFromMap(m map[string]string) *Properties {
	p := &Properties{values: make(map[string]string, len(m))}
	for _, k := range slices.Sorted(maps.Keys(m)) {
		p.set(k, m[k])
	}
	return p
}

func (p *Properties) set(key, value string) {
	if _, ok := p.values[key]; !ok {
		p.keys = append(p.keys, key)
	}
	p.values[key] = value
}

// Get returns the value for key and whether it is present.
func (p *Properties) Get(key string) (string, bool) {
	if p == nil {
		return "", false
	}
	v, ok := p.values[key]
	return v, ok
}

// Value returns the value for key, or an empty string if absent.
func (p *Properties) Value(key string) string {
	v, _ := p.Get(key)
	return v
}

// Has reports whether key is present.
func (p *Properties) Has(key string) bool {
	_, ok := p.Get(key)
	return ok
}

// Int parses the value for key as an integer.
func (p *Properties) Int(key string) (int, bool) {
	v, ok := p.Get(key)
	if !ok {
		return 0, false
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, false
	}
	return n, true
}

// Len returns the number of keys.
func (p *Properties) Len() int {
	if p == nil {
		return 0
	}
	return len(p.keys)
}

// Keys returns the keys in insertion order.
func (p *Properties) Keys() []string {
	if p == nil {
		return nil
	}
	return slices.Clone(p.keys)
}

// Map returns a copy of the key/value pairs.
func (p *Properties) Map() map[string]string {
	if p == nil {
		return map[string]string{}
	}
	return maps.Clone(p.values)
}

// Clone returns an independent copy.
func (p *Properties) Clone() *Properties {
	if p == nil {
		return NewProperties()
	}
	return &Properties{keys: slices.Clone(p.keys), values: maps.Clone(p.values)}
}

// Merge returns a new set holding p's pairs overlaid with other's. Keys new
// to p are appended in other's order.
func (p *Properties) Merge(other *Properties) *Properties {
	out := p.Clone()
	if other == nil {
		return out
	}
	for _, k := range other.keys {
		out.set(k, other.values[k])
	}
	return out
}

// With returns a copy of p with key set to value.
func (p *Properties) With(key, value string) *Properties {
	out := p.Clone()
	out.set(key, value)
	return out
}

// Filter returns a copy holding only the keys for which keep returns true.
func (p *Properties) Filter(keep func(key string) bool) *Properties {
	out := NewProperties()
	if p == nil {
		return out
	}
	for _, k := range p.keys {
		if keep(k) {
			out.set(k, p.values[k])
		}
	}
	return out
}

// Equal reports whether both sets hold the same pairs, ignoring order.
func (p *Properties) Equal(other *Properties) bool {
	if p.Len() != other.Len() {
		return false
	}
	for _, k := range p.Keys() {
		v, ok := other.Get(k)
		if !ok || v != p.values[k] {
			return false
		}
	}
	return true
}
