/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package stream

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/rs/zerolog"
	ws "nhooyr.io/websocket"
)

// connection is the outbound half of one websocket. It implements session.Emitter.
type connection struct {
	id     string
	conn   *ws.Conn
	out    chan Envelope
	done   chan struct{}
	once   sync.Once
	now    func() time.Time
	logger zerolog.Logger
}

func newConnection(id string, conn *ws.Conn, queue int, now func() time.Time, logger zerolog.Logger) *connection {
	return &connection{
		id:     id,
		conn:   conn,
		out:    make(chan Envelope, queue),
		done:   make(chan struct{}),
		now:    now,
		logger: logger,
	}
}

// Emit queues a notification for the writer loop. It never blocks: after the connection
// closed, or when the queue is full, the notification is dropped.
func (c *connection) Emit(kind string, data any) {
	env := Envelope{Type: kind, ConnID: c.id, Timestamp: c.now().UTC(), Data: data}
	select {
	case <-c.done:
		c.logger.Debug().Str("type", kind).Msg("connection closed, dropping notification")
		return
	default:
	}
	select {
	case c.out <- env:
	default:
		c.logger.Warn().Str("type", kind).Msg("outbound queue full, dropping notification")
	}
}

func (c *connection) close() {
	c.once.Do(func() { close(c.done) })
}

func (c *connection) write(ctx context.Context, env Envelope, timeout time.Duration) error {
	data, err := json.Marshal(env)
	if err != nil {
		c.logger.Error().Err(err).Str("type", env.Type).Msg("failed to encode notification")
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return c.conn.Write(ctx, ws.MessageText, data)
}
