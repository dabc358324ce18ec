// Copyright 2024-2026 Aiku AI

package query

import (
	"slices"
	"testing"
)

func TestPropertiesMerge(t *testing.T) {
	t.Parallel()
	base := PropertiesFromMap(map[string]string{"cid": "5", "channel_name": "Lobby"})
	add := NewProperties().With("channel_name", "Hall").With("channel_description", "")
	merged := base.Merge(add)

	if got := merged.Value("channel_name"); got != "Hall" {
		t.Errorf("channel_name: got %q, want %q", got, "Hall")
	}
	if v, ok := merged.Get("channel_description"); !ok || v != "" {
		t.Errorf("channel_description: got (%q, %v), want (\"\", true)", v, ok)
	}
	wantKeys := []string{"channel_name", "cid", "channel_description"}
	if got := merged.Keys(); !slices.Equal(got, wantKeys) {
		t.Errorf("keys: got %v, want %v", got, wantKeys)
	}
	if base.Value("channel_name") != "Lobby" {
		t.Error("Merge must not modify the receiver")
	}
}

func TestPropertiesNilSafe(t *testing.T) {
	t.Parallel()
	var p *Properties
	if p.Has("x") || p.Len() != 0 || p.Value("x") != "" {
		t.Error("nil properties should behave as empty")
	}
	if p.Merge(NewProperties().With("a", "1")).Value("a") != "1" {
		t.Error("Merge on nil should yield other's pairs")
	}
}

func TestPropertiesIntAndFilter(t *testing.T) {
	t.Parallel()
	p := PropertiesFromMap(map[string]string{"clid": "12", "client_nickname": "Bob", "bad": "x"})
	if n, ok := p.Int("clid"); !ok || n != 12 {
		t.Errorf("Int(clid): got (%d, %v)", n, ok)
	}
	if _, ok := p.Int("bad"); ok {
		t.Error("Int(bad) should fail")
	}
	only := p.Filter(func(k string) bool { return k == "clid" })
	if only.Len() != 1 || !only.Has("clid") {
		t.Errorf("Filter: got %v", only.Map())
	}
	if !p.Equal(p.Clone()) {
		t.Error("clone should be equal")
	}
	if p.Equal(only) {
		t.Error("filtered set should differ")
	}
}
