// Copyright 2024-2026 Aiku AI

package engine

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/aiku/ts3query/pkg/cache"
	"github.com/aiku/ts3query/pkg/event"
	"github.com/aiku/ts3query/pkg/query"
	"github.com/aiku/ts3query/pkg/relay"
)

// Engine is the composition root. It owns the query connection and wires it
// through the marshaller and bus to the cache watchers, the permission
// tracker and the optional relay.
type Engine struct {
	Config      *Config
	Log         zerolog.Logger
	Bus         *event.Bus
	Cache       *cache.DataCache
	Permissions *PermissionTracker

	conn      *query.Connection
	refresher *cache.Refresher
	publisher *relay.NATSPublisher
	admin     *http.Server
	self      *query.Properties

	cancel   context.CancelFunc
	wg       sync.WaitGroup
	stopOnce sync.Once
}

// New creates an engine and registers the built-in listeners.
func New(cfg *Config, log zerolog.Logger) *Engine {
	e := &Engine{
		Config:      cfg,
		Log:         log,
		Bus:         event.NewBus(log),
		Cache:       cache.New(log),
		Permissions: NewPermissionTracker(log),
	}
	e.Bus.Register(e.Permissions)
	e.Bus.Register(cache.NewTargetInjector(e.Cache))
	e.Bus.Register(cache.NewClientWatcher(log, e.Cache))
	e.Bus.Register(cache.NewChannelWatcher(log, e.Cache))
	return e
}

// Start connects, logs in, registers for notifications and starts the cache
// refresher and admin API. It returns once the connection is ready. ctx only
// bounds the start-up; background work runs until Stop.
func (e *Engine) Start(ctx context.Context) error {
	if e.Config.Relay.Enabled {
		pub, err := relay.Connect(e.Log, relay.NATSConfig{URL: e.Config.Relay.URL, Name: e.Config.Relay.Name})
		if err != nil {
			return fmt.Errorf("failed to connect relay: %w", err)
		}
		e.publisher = pub
		e.Bus.Register(relay.New(e.Log, pub, e.Config.Relay.SubjectPrefix))
	}

	dispatcher := event.NewDispatcher(event.NewMarshaller(e.Log), e.Bus)
	dialCtx, cancelDial := context.WithTimeout(ctx, e.Config.DialTimeout())
	defer cancelDial()
	e.Log.Info().Str("addr", e.Config.Query.Address).Msg("Connecting to query interface")
	conn, err := query.Dial(dialCtx, e.Config.Query.Address, query.Options{
		Log:           e.Log,
		Notifications: dispatcher,
		OnAnswer:      dispatcher.HandleAnswer,
		GreetingLines: e.Config.Query.GreetingLines,
	})
	if err != nil {
		e.closePublisher()
		return err
	}
	if err = conn.ReadGreeting(dialCtx); err != nil {
		_ = conn.Close()
		e.closePublisher()
		return err
	}
	conn.Start()
	e.conn = conn

	if err = e.login(ctx); err != nil {
		_ = conn.Close()
		e.closePublisher()
		return fmt.Errorf("failed to log in: %w", err)
	}

	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	e.cancel = cancel
	e.refresher = cache.NewRefresher(e.Log, e.Cache, conn, e.Bus, e.Config.RefreshConfig())
	e.wg.Add(2)
	go func() {
		defer e.wg.Done()
		e.refresher.Run(runCtx)
	}()
	go func() {
		defer e.wg.Done()
		<-conn.Done()
		e.Bus.Fire(event.StateEvent{State: event.KindDisconnected, Err: conn.Err()})
	}()
	e.startAdminAPI()

	e.Log.Info().
		Int("server_id", e.Config.Query.ServerID).
		Str("client_id", e.self.Value("client_id")).
		Msg("Query connection ready")
	e.Bus.Fire(event.StateEvent{State: event.KindConnected})
	return nil
}

// Run starts the engine and blocks until ctx is done or the connection
// fails. A failed connection is returned as error.
func (e *Engine) Run(ctx context.Context) error {
	if err := e.Start(ctx); err != nil {
		return err
	}
	select {
	case <-ctx.Done():
		e.Stop()
		return nil
	case <-e.conn.Done():
		err := e.conn.Err()
		e.Stop()
		return err
	}
}

// Stop shuts everything down. It is safe to call more than once.
func (e *Engine) Stop() {
	e.stopOnce.Do(func() {
		if e.cancel != nil {
			e.cancel()
		}
		if e.admin != nil {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			if err := e.admin.Shutdown(ctx); err != nil {
				e.Log.Warn().Err(err).Msg("Failed to shut down admin API")
			}
			cancel()
		}
		if e.conn != nil {
			if err := e.conn.Close(); err != nil {
				e.Log.Warn().Err(err).Msg("Failed to close query connection")
			}
		}
		e.wg.Wait()
		e.closePublisher()
		e.Log.Info().Msg("Engine stopped")
	})
}

// Connection returns the query connection, nil before Start.
func (e *Engine) Connection() *query.Connection {
	return e.conn
}

// Self returns the whoami answer received at login.
func (e *Engine) Self() *query.Properties {
	return e.self.Clone()
}

// Do sends a request and waits up to the configured request timeout.
func (e *Engine) Do(ctx context.Context, req *query.Request) (*query.Answer, error) {
	if e.conn == nil {
		return nil, query.ErrClosed
	}
	ctx, cancel := context.WithTimeout(ctx, e.Config.RequestTimeout())
	defer cancel()
	return e.conn.Do(ctx, req)
}

// RefreshCache refreshes both caches immediately.
func (e *Engine) RefreshCache(ctx context.Context) (clients, channels int, err error) {
	if e.refresher == nil {
		return 0, 0, query.ErrClosed
	}
	clients, errClients := e.refresher.RefreshClients(ctx)
	channels, errChannels := e.refresher.RefreshChannels(ctx)
	return clients, channels, errors.Join(errClients, errChannels)
}

func (e *Engine) login(ctx context.Context) error {
	q := e.Config.Query
	var reqs []*query.Request
	if q.Username != "" {
		reqs = append(reqs, query.NewRequest("login").
			Set("client_login_name", q.Username).
			Set("client_login_password", q.Password))
	}
	reqs = append(reqs, query.NewRequest("use").Set("sid", q.ServerID))
	if q.Nickname != "" {
		reqs = append(reqs, query.NewRequest("clientupdate").Set("client_nickname", q.Nickname))
	}
	for _, name := range q.NotifyEvents {
		req := query.NewRequest("servernotifyregister").Set("event", name)
		if name == "channel" {
			req.Set("id", 0)
		}
		reqs = append(reqs, req)
	}
	for _, req := range reqs {
		if _, err := e.Do(ctx, req); err != nil {
			return fmt.Errorf("%s: %w", req.Command(), err)
		}
	}

	answer, err := e.Do(ctx, query.NewRequest("whoami"))
	if err != nil {
		return fmt.Errorf("whoami: %w", err)
	}
	e.self = answer.First()
	return nil
}

func (e *Engine) closePublisher() {
	if e.publisher == nil {
		return
	}
	if err := e.publisher.Close(); err != nil {
		e.Log.Warn().Err(err).Msg("Failed to close relay")
	}
	e.publisher = nil
}
