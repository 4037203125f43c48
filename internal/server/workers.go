/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package server

import (
	"context"
	"time"

	"github.com/kvn147/Speak-Easy-Copy/internal/db"
	"github.com/kvn147/Speak-Easy-Copy/internal/events"
)

func (s *Server) startBackgroundWorkers() {
	ctx, cancel := context.WithCancel(context.Background())
	s.bgCancel = cancel

	// Start database metrics updater
	if s.db != nil {
		s.bgWG.Add(1)
		go func() {
			defer s.bgWG.Done()
			ticker := time.NewTicker(30 * time.Second)
			defer ticker.Stop()

			for {
				select {
				case <-ctx.Done():
					return
				case <-ticker.C:
					db.UpdateConnectionMetrics(s.db)
				}
			}
		}()
	}

	for _, eventType := range events.AllEventTypes {
		sub := s.bus.Subscribe(eventType)
		s.bgWG.Add(1)
		go func(eventType events.EventType, sub events.Subscriber) {
			defer s.bgWG.Done()
			s.runEventLogger(ctx, eventType, sub)
		}(eventType, sub)
	}
}

// runEventLogger writes every session event of one type to the log until ctx is done.
func (s *Server) runEventLogger(ctx context.Context, eventType events.EventType, sub events.Subscriber) {
	logger := s.logger.With().Str("component", "event_log").Str("event", string(eventType)).Logger()
	defer s.bus.Unsubscribe(eventType, sub)

	for {
		select {
		case <-ctx.Done():
			return
		case payload, ok := <-sub:
			if !ok {
				return
			}
			logger.Debug().Fields(map[string]any(payload)).Msg("session event")
		}
	}
}

func (s *Server) stopBackgroundWorkers() {
	if s.bgCancel == nil {
		return
	}
	s.bgCancel()
	s.bgWG.Wait()
	s.bgCancel = nil
}
