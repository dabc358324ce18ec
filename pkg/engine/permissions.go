// Copyright 2024-2026 Aiku AI

package engine

import (
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/aiku/ts3query/pkg/event"
	"github.com/aiku/ts3query/pkg/query"
)

// PermissionTracker records answers failing with insufficient permissions so
// operators can see which grants the query account lacks.
type PermissionTracker struct {
	log zerolog.Logger
	now func() time.Time

	mu       sync.Mutex
	failures []string
}

// NewPermissionTracker creates an empty tracker.
func NewPermissionTracker(log zerolog.Logger) *PermissionTracker {
	return &PermissionTracker{
		log: log.With().Str("component", "permissions").Logger(),
		now: time.Now,
	}
}

// Subscriptions implements event.Listener.
func (p *PermissionTracker) Subscriptions() []event.Subscription {
	return []event.Subscription{
		{Kind: event.KindAnswer, Priority: event.PrioritySystem, Handle: p.onAnswer, Name: "permission_tracker"},
	}
}

func (p *PermissionTracker) onAnswer(evt event.Event) error {
	ae, ok := evt.(event.AnswerEvent)
	if !ok || ae.Answer == nil {
		return nil
	}
	status := ae.Answer.Status()
	if status.ID != query.ErrIDInsufficientPermissions {
		return nil
	}
	command := ""
	if req := ae.Answer.Request(); req != nil {
		command = req.Command()
	}
	p.log.Warn().
		Str("command", command).
		Int("error_id", status.ID).
		Str("error_msg", status.Message).
		Int("failed_permid", status.FailedPermID).
		Msg("Insufficient permissions for query request")
	entry := fmt.Sprintf("%s | %s -> %s (%d)", p.now().Format(time.RFC3339), command, status.Message, status.ID)
	p.mu.Lock()
	p.failures = append(p.failures, entry)
	p.mu.Unlock()
	return nil
}

// Failures returns the recorded failures, oldest first.
func (p *PermissionTracker) Failures() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return slices.Clone(p.failures)
}
