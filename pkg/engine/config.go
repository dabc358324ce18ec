// Copyright 2024-2026 Aiku AI

package engine

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"time"

	up "go.mau.fi/util/configupgrade"
	"go.mau.fi/zeroconfig"
	"gopkg.in/yaml.v3"

	"github.com/aiku/ts3query/pkg/cache"
)

//go:embed example-config.yaml
var ExampleConfig string

// EnvPassword overrides query.password when set.
const EnvPassword = "TS3QUERY_PASSWORD"

// QueryConfig holds the connection and login settings.
type QueryConfig struct {
	Address      string   `yaml:"address"`
	Username     string   `yaml:"username"`
	Password     string   `yaml:"password"`
	ServerID     int      `yaml:"server_id"`
	Nickname     string   `yaml:"nickname"`
	NotifyEvents []string `yaml:"notify_events"`
	// DialTimeout and RequestTimeout are in seconds.
	DialTimeout    int `yaml:"dial_timeout"`
	RequestTimeout int `yaml:"request_timeout"`
	GreetingLines  int `yaml:"greeting_lines"`
}

// CacheConfig holds the refresh intervals in seconds.
type CacheConfig struct {
	ClientRefresh  int `yaml:"client_refresh"`
	ChannelRefresh int `yaml:"channel_refresh"`
}

// RelayConfig configures the NATS relay.
type RelayConfig struct {
	Enabled       bool   `yaml:"enabled"`
	URL           string `yaml:"url"`
	Name          string `yaml:"name"`
	SubjectPrefix string `yaml:"subject_prefix"`
}

// Config is the engine configuration file.
type Config struct {
	Query        QueryConfig       `yaml:"query"`
	Cache        CacheConfig       `yaml:"cache"`
	Relay        RelayConfig       `yaml:"relay"`
	AdminAPIAddr string            `yaml:"admin_api_addr"`
	Logging      zeroconfig.Config `yaml:"logging"`
}

func (c *Config) UnmarshalYAML(node *yaml.Node) error {
	type rawConfig Config
	return node.Decode((*rawConfig)(c))
}

// PostProcess applies environment overrides and defaults, then validates.
func (c *Config) PostProcess() error {
	if pw := os.Getenv(EnvPassword); pw != "" {
		c.Query.Password = pw
	}
	if c.Query.DialTimeout <= 0 {
		c.Query.DialTimeout = 10
	}
	if c.Query.RequestTimeout <= 0 {
		c.Query.RequestTimeout = 10
	}
	if c.Query.GreetingLines <= 0 {
		c.Query.GreetingLines = 2
	}
	if c.Cache.ClientRefresh <= 0 {
		c.Cache.ClientRefresh = int(cache.DefaultClientRefresh / time.Second)
	}
	if c.Cache.ChannelRefresh <= 0 {
		c.Cache.ChannelRefresh = int(cache.DefaultChannelRefresh / time.Second)
	}
	if c.Relay.SubjectPrefix == "" {
		c.Relay.SubjectPrefix = "ts3.events"
	}

	var errs []error
	if c.Query.Address == "" {
		errs = append(errs, errors.New("query.address is required"))
	}
	if c.Query.ServerID <= 0 {
		errs = append(errs, fmt.Errorf("query.server_id must be positive, got %d", c.Query.ServerID))
	}
	if c.Relay.Enabled && c.Relay.URL == "" {
		errs = append(errs, errors.New("relay.url is required when the relay is enabled"))
	}
	return errors.Join(errs...)
}

// DialTimeout returns the dial timeout as duration.
func (c *Config) DialTimeout() time.Duration {
	return time.Duration(c.Query.DialTimeout) * time.Second
}

// RequestTimeout returns the per-request timeout as duration.
func (c *Config) RequestTimeout() time.Duration {
	return time.Duration(c.Query.RequestTimeout) * time.Second
}

// RefreshConfig returns the cache refresher settings.
func (c *Config) RefreshConfig() cache.RefreshConfig {
	return cache.RefreshConfig{
		ClientInterval:  time.Duration(c.Cache.ClientRefresh) * time.Second,
		ChannelInterval: time.Duration(c.Cache.ChannelRefresh) * time.Second,
		RequestTimeout:  c.RequestTimeout(),
	}
}

func upgradeConfig(helper up.Helper) {
	helper.Copy(up.Str, "query", "address")
	helper.Copy(up.Str, "query", "username")
	helper.Copy(up.Str, "query", "password")
	helper.Copy(up.Int, "query", "server_id")
	helper.Copy(up.Str, "query", "nickname")
	helper.Copy(up.List, "query", "notify_events")
	helper.Copy(up.Int, "query", "dial_timeout")
	helper.Copy(up.Int, "query", "request_timeout")
	helper.Copy(up.Int, "query", "greeting_lines")
	helper.Copy(up.Int, "cache", "client_refresh")
	helper.Copy(up.Int, "cache", "channel_refresh")
	helper.Copy(up.Bool, "relay", "enabled")
	helper.Copy(up.Str, "relay", "url")
	helper.Copy(up.Str, "relay", "name")
	helper.Copy(up.Str, "relay", "subject_prefix")
	helper.Copy(up.Str, "admin_api_addr")
	helper.Copy(up.Map, "logging")
}

// Upgrader copies the values of an existing config onto ExampleConfig.
var Upgrader up.BaseUpgrader = &up.StructUpgrader{
	SimpleUpgrader: up.SimpleUpgrader(upgradeConfig),
	Blocks: [][]string{
		{"cache"},
		{"relay"},
		{"admin_api_addr"},
		{"logging"},
	},
	Base: ExampleConfig,
}

// Load upgrades the config file at path in place (unless noUpdate is set)
// and parses it.
func Load(path string, noUpdate bool) (*Config, error) {
	data, _, err := up.Do(path, !noUpdate, Upgrader)
	if err != nil {
		return nil, fmt.Errorf("failed to upgrade config: %w", err)
	}
	var cfg Config
	if err = yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err = cfg.PostProcess(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &cfg, nil
}
