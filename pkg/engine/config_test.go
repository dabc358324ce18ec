// Copyright 2024-2026 Aiku AI

package engine

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"gopkg.in/yaml.v3"
)

func TestExampleConfigParses(t *testing.T) {
	t.Parallel()
	var cfg Config
	if err := yaml.Unmarshal([]byte(ExampleConfig), &cfg); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if err := cfg.PostProcess(); err != nil {
		t.Fatalf("PostProcess: %v", err)
	}
	if cfg.Query.Address != "localhost:10011" {
		t.Errorf("Address: got %q", cfg.Query.Address)
	}
	if len(cfg.Query.NotifyEvents) != 6 {
		t.Errorf("NotifyEvents: got %v", cfg.Query.NotifyEvents)
	}
	if cfg.RefreshConfig().ChannelInterval != 180*time.Second {
		t.Errorf("ChannelInterval: got %s", cfg.RefreshConfig().ChannelInterval)
	}
	if _, err := cfg.Logging.Compile(); err != nil {
		t.Errorf("Logging.Compile: %v", err)
	}
}

func TestConfigPostProcessDefaults(t *testing.T) {
	t.Parallel()
	cfg := &Config{Query: QueryConfig{Address: "ts:10011", ServerID: 1}}
	if err := cfg.PostProcess(); err != nil {
		t.Fatalf("PostProcess: %v", err)
	}
	if cfg.RequestTimeout() != 10*time.Second {
		t.Errorf("RequestTimeout: got %s", cfg.RequestTimeout())
	}
	if cfg.Query.GreetingLines != 2 {
		t.Errorf("GreetingLines: got %d", cfg.Query.GreetingLines)
	}
	rc := cfg.RefreshConfig()
	if rc.ClientInterval != 60*time.Second || rc.ChannelInterval != 180*time.Second {
		t.Errorf("RefreshConfig: got %+v", rc)
	}
	if cfg.Relay.SubjectPrefix != "ts3.events" {
		t.Errorf("SubjectPrefix: got %q", cfg.Relay.SubjectPrefix)
	}
}

func TestConfigPostProcessValidation(t *testing.T) {
	t.Parallel()
	cfg := &Config{Relay: RelayConfig{Enabled: true}}
	err := cfg.PostProcess()
	if err == nil {
		t.Fatal("PostProcess should fail")
	}
	for _, want := range []string{"query.address", "query.server_id", "relay.url"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error %q should mention %s", err, want)
		}
	}
}

func TestLoadUpgradesConfig(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "config.yaml")
	old := `
query:
    address: ts.example.com:10011
    server_id: 4
    notify_events: [server]
cache:
    client_refresh: 15
`
	if err := os.WriteFile(path, []byte(old), 0o600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	cfg, err := Load(path, false)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Query.Address != "ts.example.com:10011" || cfg.Query.ServerID != 4 {
		t.Errorf("query: got %+v", cfg.Query)
	}
	if len(cfg.Query.NotifyEvents) != 1 || cfg.Query.NotifyEvents[0] != "server" {
		t.Errorf("NotifyEvents: got %v", cfg.Query.NotifyEvents)
	}
	if cfg.Cache.ClientRefresh != 15 || cfg.Cache.ChannelRefresh != 180 {
		t.Errorf("cache: got %+v", cfg.Cache)
	}
	if cfg.Query.Nickname != "ts3query" {
		t.Errorf("Nickname should come from the example config, got %q", cfg.Query.Nickname)
	}

	saved, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if !strings.Contains(string(saved), "subject_prefix") {
		t.Error("upgraded config should be written back with new fields")
	}
}

func TestLoadNoUpdateKeepsFile(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "config.yaml")
	old := "query:\n    address: ts:10011\n    server_id: 1\n"
	if err := os.WriteFile(path, []byte(old), 0o600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	if _, err := Load(path, true); err != nil {
		t.Fatalf("Load: %v", err)
	}
	saved, _ := os.ReadFile(path)
	if string(saved) != old {
		t.Error("Load with noUpdate must not rewrite the file")
	}
}
