/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package session

import (
	"context"
	"runtime/debug"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/kvn147/Speak-Easy-Copy/internal/events"
	"github.com/kvn147/Speak-Easy-Copy/internal/telemetry"
)

// taskGroup runs detached collaborator work and lets shutdown and tests wait for it.
// Once closed it refuses new work.
type taskGroup struct {
	mu     sync.Mutex
	closed bool
	wg     sync.WaitGroup
	logger zerolog.Logger
}

// Go starts fn unless the group is closed. It reports whether fn was started.
func (g *taskGroup) Go(name string, fn func()) bool {
	g.mu.Lock()
	if g.closed {
		g.mu.Unlock()
		g.logger.Debug().Str("task", name).Msg("session tasks closed, work refused")
		return false
	}
	g.wg.Add(1)
	g.mu.Unlock()

	go func() {
		defer g.wg.Done()
		defer func() {
			if r := recover(); r != nil {
				g.logger.Error().
					Str("task", name).
					Interface("panic", r).
					Bytes("stack", debug.Stack()).
					Msg("session task panicked")
			}
		}()
		fn()
	}()
	return true
}

func (g *taskGroup) Wait() { g.wg.Wait() }

// Close refuses further work and waits for running tasks.
func (g *taskGroup) Close() {
	g.mu.Lock()
	g.closed = true
	g.mu.Unlock()
	g.wg.Wait()
}

// env is shared by the session components.
type env struct {
	registry *Registry
	tasks    *taskGroup
	events   events.Publisher
	now      func() time.Time
	ctx      context.Context
	timeout  time.Duration
	logger   zerolog.Logger
}

// callContext bounds a single collaborator call made for s.
func (e *env) callContext(s *Session) (context.Context, context.CancelFunc) {
	ctx := telemetry.WithSession(e.ctx, s.ConnID, s.UserID)
	if e.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, e.timeout)
}

// liveLocked reports whether results may still be folded into s. Caller holds s.mu.
func (e *env) liveLocked(s *Session) bool {
	return s.state == StateStreaming && e.registry.Holds(s)
}

func (e *env) publish(eventType events.EventType, s *Session, payload events.Payload) {
	if e.events == nil {
		return
	}
	if payload == nil {
		payload = events.Payload{}
	}
	payload["conn_id"] = s.ConnID
	payload["user_id"] = s.UserID
	e.events.Publish(eventType, payload)
}

func (e *env) sessionLogger(s *Session) zerolog.Logger {
	return e.logger.With().Str("conn_id", s.ConnID).Str("user_id", s.UserID).Logger()
}
