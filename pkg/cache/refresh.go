// Copyright 2024-2026 Aiku AI

package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/aiku/ts3query/pkg/event"
	"github.com/aiku/ts3query/pkg/query"
)

// Default refresh intervals.
const (
	DefaultClientRefresh  = 60 * time.Second
	DefaultChannelRefresh = 180 * time.Second
)

// Requester sends a request and waits for its answer. *query.Connection
// implements it.
type Requester interface {
	Do(ctx context.Context, req *query.Request) (*query.Answer, error)
}

// Firer delivers events. *event.Bus implements it.
type Firer interface {
	Fire(evt event.Event)
}

// ClientsRefreshed is fired after the client map was replaced.
type ClientsRefreshed struct {
	Clients []*Client
}

// Kind implements event.Event.
func (ClientsRefreshed) Kind() event.Kind { return event.KindRefreshClients }

// ChannelsRefreshed is fired after the channel map was replaced.
type ChannelsRefreshed struct {
	Channels []*Channel
}

// Kind implements event.Event.
func (ChannelsRefreshed) Kind() event.Kind { return event.KindRefreshChannels }

// RefreshConfig holds the refresh intervals and the per-request timeout.
type RefreshConfig struct {
	ClientInterval  time.Duration
	ChannelInterval time.Duration
	RequestTimeout  time.Duration
}

// Refresher periodically replaces the cache with full server listings,
// correcting drift from missed or duplicated notifications.
type Refresher struct {
	log       zerolog.Logger
	cache     *DataCache
	requester Requester
	events    Firer
	cfg       RefreshConfig
}

// NewRefresher creates a refresher. Zero intervals fall back to the defaults.
func NewRefresher(log zerolog.Logger, cache *DataCache, requester Requester, events Firer, cfg RefreshConfig) *Refresher {
	if cfg.ClientInterval <= 0 {
		cfg.ClientInterval = DefaultClientRefresh
	}
	if cfg.ChannelInterval <= 0 {
		cfg.ChannelInterval = DefaultChannelRefresh
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 10 * time.Second
	}
	return &Refresher{
		log:       log.With().Str("component", "cache_refresher").Logger(),
		cache:     cache,
		requester: requester,
		events:    events,
		cfg:       cfg,
	}
}

// Run refreshes both caches immediately and then on their intervals until
// ctx is done.
func (r *Refresher) Run(ctx context.Context) {
	r.refreshLogged(ctx, "clients", r.RefreshClients)
	r.refreshLogged(ctx, "channels", r.RefreshChannels)

	clientTicker := time.NewTicker(r.cfg.ClientInterval)
	defer clientTicker.Stop()
	channelTicker := time.NewTicker(r.cfg.ChannelInterval)
	defer channelTicker.Stop()
	for {
		select {
		case <-ctx.Done():
			r.log.Debug().AnErr("reason", ctx.Err()).Msg("Cache refresher stopped")
			return
		case <-clientTicker.C:
			r.refreshLogged(ctx, "clients", r.RefreshClients)
		case <-channelTicker.C:
			r.refreshLogged(ctx, "channels", r.RefreshChannels)
		}
	}
}

func (r *Refresher) refreshLogged(ctx context.Context, what string, fn func(context.Context) (int, error)) {
	n, err := fn(ctx)
	if err != nil {
		r.log.Err(err).Str("cache", what).Msg("Cache refresh failed")
		return
	}
	r.log.Debug().Str("cache", what).Int("count", n).Msg("Cache refreshed")
}

// RefreshClients replaces the client map with the current client list.
func (r *Refresher) RefreshClients(ctx context.Context) (int, error) {
	req := query.NewRequest("clientlist").
		Option("uid").Option("away").Option("voice").Option("times").
		Option("groups").Option("info").Option("country")
	n, err := r.list(ctx, req, func(rows []*query.Properties) int {
		clients := make([]*Client, 0, len(rows))
		for _, row := range rows {
			client, err := NewClient(row)
			if err != nil {
				r.log.Warn().Err(err).Msg("Skipping client list row")
				continue
			}
			clients = append(clients, client)
		}
		r.cache.ReplaceClients(clients)
		return len(clients)
	})
	if err != nil {
		return 0, err
	}
	if r.events != nil {
		r.events.Fire(ClientsRefreshed{Clients: r.cache.ClientList()})
	}
	return n, nil
}

// RefreshChannels replaces the channel map with the current channel list.
func (r *Refresher) RefreshChannels(ctx context.Context) (int, error) {
	req := query.NewRequest("channellist").
		Option("topic").Option("flags").Option("voice").
		Option("limits").Option("icon").Option("secondsempty")
	n, err := r.list(ctx, req, func(rows []*query.Properties) int {
		channels := make([]*Channel, 0, len(rows))
		for _, row := range rows {
			channel, err := NewChannel(row)
			if err != nil {
				r.log.Warn().Err(err).Msg("Skipping channel list row")
				continue
			}
			channels = append(channels, channel)
		}
		r.cache.ReplaceChannels(channels)
		return len(channels)
	})
	if err != nil {
		return 0, err
	}
	if r.events != nil {
		r.events.Fire(ChannelsRefreshed{Channels: r.cache.ChannelList()})
	}
	return n, nil
}

// list sends req and applies its rows from the request's completion
// callback. The callback runs on the connection reader before the next
// inbound line, so notifications that follow the answer are applied on top
// of the new listing instead of being overwritten by it.
func (r *Refresher) list(ctx context.Context, req *query.Request, apply func(rows []*query.Properties) int) (int, error) {
	ctx, cancel := context.WithTimeout(ctx, r.cfg.RequestTimeout)
	defer cancel()
	applied := make(chan int, 1)
	req.OnDone(func(answer *query.Answer) {
		if answer.OK() || answer.Empty() {
			applied <- apply(answer.Rows())
		}
	})
	answer, err := r.requester.Do(ctx, req)
	var qerr *query.QueryError
	if err != nil && !(errors.As(err, &qerr) && answer != nil && answer.Empty()) {
		return 0, fmt.Errorf("%s: %w", req.Command(), err)
	}
	select {
	case n := <-applied:
		return n, nil
	case <-ctx.Done():
		return 0, fmt.Errorf("%s: %w", req.Command(), ctx.Err())
	}
}
