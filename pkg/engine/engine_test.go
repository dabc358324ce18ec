// Copyright 2024-2026 Aiku AI

package engine

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"net/http/httptest"
	"slices"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/aiku/ts3query/pkg/event"
	"github.com/aiku/ts3query/pkg/query"
)

// fakeTS3 is a scripted query server on a local TCP port.
type fakeTS3 struct {
	ln net.Listener

	mu       sync.Mutex
	conn     net.Conn
	commands []string
}

func startFakeTS3(t *testing.T) *fakeTS3 {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	f := &fakeTS3{ln: ln}
	go f.serve()
	t.Cleanup(func() {
		_ = ln.Close()
		f.mu.Lock()
		if f.conn != nil {
			_ = f.conn.Close()
		}
		f.mu.Unlock()
	})
	return f
}

func (f *fakeTS3) serve() {
	conn, err := f.ln.Accept()
	if err != nil {
		return
	}
	f.mu.Lock()
	f.conn = conn
	f.mu.Unlock()
	f.write("TS3", "Welcome to the TeamSpeak 3 ServerQuery interface, type \"help\" for a list of commands.")

	reader := bufio.NewReader(conn)
	for {
		line, err := reader.ReadString('\n')
		if err != nil {
			return
		}
		line = strings.TrimSpace(line)
		command, _, _ := strings.Cut(line, " ")
		f.mu.Lock()
		f.commands = append(f.commands, line)
		f.mu.Unlock()
		f.write(f.answer(command)...)
	}
}

func (f *fakeTS3) answer(command string) []string {
	switch command {
	case "whoami":
		return []string{"virtualserver_status=online virtualserver_id=1 client_id=3 client_nickname=ts3query", "error id=0 msg=ok"}
	case "clientlist":
		return []string{
			`clid=3 cid=1 client_nickname=ts3query client_type=1|clid=7 cid=1 client_nickname=Bob client_type=0 client_unique_identifier=abc=`,
			"error id=0 msg=ok",
		}
	case "channellist":
		return []string{`cid=1 pid=0 channel_order=0 channel_name=Default\sChannel`, "error id=0 msg=ok"}
	case "serveredit":
		return []string{`error id=2568 msg=insufficient\sclient\spermissions failed_permid=4`}
	default:
		return []string{"error id=0 msg=ok"}
	}
}

// write sends lines under the lock so notifications never split an answer.
func (f *fakeTS3) write(lines ...string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, line := range lines {
		_, _ = fmt.Fprintf(f.conn, "%s\n\r", line)
	}
}

func (f *fakeTS3) Commands() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return slices.Clone(f.commands)
}

func testConfig(addr string) *Config {
	cfg := &Config{
		Query: QueryConfig{
			Address:      addr,
			Username:     "serveradmin",
			Password:     "secret",
			ServerID:     1,
			Nickname:     "ts3query",
			NotifyEvents: []string{"server", "channel"},
		},
	}
	_ = cfg.PostProcess()
	return cfg
}

func eventually(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func startEngine(t *testing.T) (*Engine, *fakeTS3) {
	t.Helper()
	srv := startFakeTS3(t)
	e := New(testConfig(srv.ln.Addr().String()), zerolog.Nop())
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := e.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	t.Cleanup(e.Stop)
	return e, srv
}

func TestEngineLoginSequence(t *testing.T) {
	t.Parallel()
	e, srv := startEngine(t)
	want := []string{
		"login client_login_name=serveradmin client_login_password=secret",
		"use sid=1",
		"clientupdate client_nickname=ts3query",
		"servernotifyregister event=server",
		"servernotifyregister event=channel id=0",
		"whoami",
	}
	got := srv.Commands()
	if len(got) < len(want) || !slices.Equal(got[:len(want)], want) {
		t.Fatalf("commands: got %q, want prefix %q", got, want)
	}
	if e.Self().Value("client_id") != "3" {
		t.Errorf("self: got %v", e.Self().Map())
	}
}

func TestEngineCacheFollowsNotifications(t *testing.T) {
	t.Parallel()
	e, srv := startEngine(t)
	eventually(t, "initial refresh", func() bool {
		_, ok := e.Cache.Client(7)
		return ok && len(e.Cache.Channels()) == 1
	})

	srv.write("notifyclientleftview cfid=1 ctid=0 reasonid=8 reasonmsg=bye clid=7")
	eventually(t, "client 7 removed", func() bool {
		_, ok := e.Cache.Clients()[7]
		return !ok
	})

	srv.write(`notifychannelcreated cid=2 cpid=1 channel_name=Sub invokerid=3 invokername=ts3query invokeruid=x`)
	eventually(t, "channel 2 created", func() bool {
		ch, ok := e.Cache.Channel(2)
		return ok && ch.ParentID() == 1
	})
}

func TestEngineOutlivesStartContext(t *testing.T) {
	t.Parallel()
	srv := startFakeTS3(t)
	e := New(testConfig(srv.ln.Addr().String()), zerolog.Nop())
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	if err := e.Start(ctx); err != nil {
		cancel()
		t.Fatalf("Start: %v", err)
	}
	cancel()
	t.Cleanup(e.Stop)

	eventually(t, "refresh after start context ended", func() bool {
		_, ok := e.Cache.Client(7)
		return ok && len(e.Cache.Channels()) == 1
	})
	clients, channels, err := e.RefreshCache(context.Background())
	if err != nil {
		t.Fatalf("RefreshCache: %v", err)
	}
	if clients != 2 || channels != 1 {
		t.Errorf("RefreshCache: got %d clients, %d channels", clients, channels)
	}
}

func TestEnginePermissionFailures(t *testing.T) {
	t.Parallel()
	e, _ := startEngine(t)
	ctx := context.Background()
	if _, err := e.Do(ctx, query.NewRequest("serveredit").Set("virtualserver_name", "x")); err == nil {
		t.Fatal("expected permission error")
	}
	eventually(t, "permission failure recorded", func() bool {
		return len(e.Permissions.Failures()) == 1
	})
	entry := e.Permissions.Failures()[0]
	if !strings.Contains(entry, "serveredit -> insufficient client permissions (2568)") {
		t.Errorf("entry: got %q", entry)
	}
}

func TestEngineStateEvents(t *testing.T) {
	t.Parallel()
	srv := startFakeTS3(t)
	e := New(testConfig(srv.ln.Addr().String()), zerolog.Nop())
	states := make(chan event.StateEvent, 4)
	handler := func(evt event.Event) error {
		states <- evt.(event.StateEvent)
		return nil
	}
	e.Bus.On(event.KindConnected, event.PriorityNormal, handler)
	e.Bus.On(event.KindDisconnected, event.PriorityNormal, handler)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := e.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	e.Stop()

	var got []event.Kind
	for len(got) < 2 {
		select {
		case s := <-states:
			got = append(got, s.State)
			if s.Err != nil {
				t.Errorf("state %s: unexpected error %v", s.State, s.Err)
			}
		case <-time.After(2 * time.Second):
			t.Fatalf("states: got %v, want connected and disconnected", got)
		}
	}
	if got[0] != event.KindConnected || got[1] != event.KindDisconnected {
		t.Errorf("states: got %v", got)
	}
}

func TestEngineStartFailsOnRejectedLogin(t *testing.T) {
	t.Parallel()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer ln.Close()
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		_, _ = fmt.Fprint(conn, "TS3\n\rWelcome\n\r")
		reader := bufio.NewReader(conn)
		if _, err = reader.ReadString('\n'); err != nil {
			return
		}
		_, _ = fmt.Fprint(conn, "error id=520 msg=invalid\\sloginname\\sor\\spassword\n\r")
		_, _ = reader.ReadString('\n')
	}()

	e := New(testConfig(ln.Addr().String()), zerolog.Nop())
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	err = e.Start(ctx)
	if err == nil || !strings.Contains(err.Error(), "login") {
		t.Fatalf("Start: got %v, want login error", err)
	}
}

func TestAdminAPIRefreshCache(t *testing.T) {
	t.Parallel()
	e, _ := startEngine(t)
	api := httptest.NewServer(e.AdminHandler())
	defer api.Close()

	resp, err := http.Post(api.URL+"/api/refresh-cache", "application/json", nil)
	if err != nil {
		t.Fatalf("POST: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status: got %d, want 200", resp.StatusCode)
	}
	var body map[string]int
	if err = json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body["clients"] != 2 || body["channels"] != 1 {
		t.Errorf("body: got %v, want clients=2 channels=1", body)
	}

	get, err := http.Get(api.URL + "/api/refresh-cache")
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	get.Body.Close()
	if get.StatusCode != http.StatusMethodNotAllowed {
		t.Errorf("GET status: got %d, want 405", get.StatusCode)
	}
}

func TestAdminAPIPermissionFailures(t *testing.T) {
	t.Parallel()
	e := New(testConfig("127.0.0.1:1"), zerolog.Nop())
	api := httptest.NewServer(e.AdminHandler())
	defer api.Close()

	resp, err := http.Get(api.URL + "/api/permission-failures")
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	defer resp.Body.Close()
	var failures []string
	if err = json.NewDecoder(resp.Body).Decode(&failures); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if failures == nil || len(failures) != 0 {
		t.Errorf("failures: got %#v, want empty list", failures)
	}
}

func TestAdminAPIRefreshWithoutConnection(t *testing.T) {
	t.Parallel()
	e := New(testConfig("127.0.0.1:1"), zerolog.Nop())
	rec := httptest.NewRecorder()
	e.HandleRefreshCache(rec, httptest.NewRequest(http.MethodPost, "/api/refresh-cache", nil))
	if rec.Code != http.StatusBadGateway {
		t.Errorf("status: got %d, want 502", rec.Code)
	}
}
