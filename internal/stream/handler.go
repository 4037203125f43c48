/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package stream carries live session traffic over websockets.
package stream

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	ws "nhooyr.io/websocket"

	"github.com/kvn147/Speak-Easy-Copy/internal/auth"
	"github.com/kvn147/Speak-Easy-Copy/internal/session"
	"github.com/kvn147/Speak-Easy-Copy/internal/telemetry"
)

// Sessions is the session lifecycle the handler routes to.
type Sessions interface {
	Start(connID, userID, fallbackUserID string, emitter session.Emitter, now time.Time) *session.Session
	HandleFrame(connID string, frame []byte, now time.Time) error
	HandleAudio(connID string, chunk []byte, now time.Time) error
	Stop(connID string, now time.Time) bool
	Disconnect(connID string, now time.Time)
}

const reasonShutdown = "server shutting down"

// Config tunes the websocket transport.
type Config struct {
	ReadLimit      int64
	QueueSize      int
	PingInterval   time.Duration
	WriteTimeout   time.Duration
	OriginPatterns []string
}

// DefaultConfig returns the transport defaults.
func DefaultConfig() Config {
	return Config{
		ReadLimit:    16 << 20,
		QueueSize:    64,
		PingInterval: 15 * time.Second,
		WriteTimeout: 10 * time.Second,
	}
}

// Handler accepts session websockets.
type Handler struct {
	sessions Sessions
	cfg      Config
	now      func() time.Time
	logger   zerolog.Logger

	mu      sync.Mutex
	closing bool
	conns   map[string]context.CancelFunc
	connsWG sync.WaitGroup
}

// NewHandler creates a websocket handler routing to sessions.
func NewHandler(sessions Sessions, cfg Config, logger zerolog.Logger) *Handler {
	def := DefaultConfig()
	if cfg.ReadLimit <= 0 {
		cfg.ReadLimit = def.ReadLimit
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = def.QueueSize
	}
	if cfg.PingInterval <= 0 {
		cfg.PingInterval = def.PingInterval
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = def.WriteTimeout
	}
	return &Handler{
		sessions: sessions,
		cfg:      cfg,
		now:      time.Now,
		logger:   logger.With().Str("component", "stream_ws").Logger(),
		conns:    make(map[string]context.CancelFunc),
	}
}

// track registers a connection unless the handler is shutting down.
func (h *Handler) track(connID string, cancel context.CancelFunc) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closing {
		return false
	}
	h.conns[connID] = cancel
	h.connsWG.Add(1)
	return true
}

func (h *Handler) untrack(connID string) {
	h.mu.Lock()
	delete(h.conns, connID)
	h.mu.Unlock()
	h.connsWG.Done()
}

// Shutdown refuses new connections, closes the open ones and waits until each has been
// handed back to the session manager or ctx is done.
func (h *Handler) Shutdown(ctx context.Context) error {
	h.mu.Lock()
	h.closing = true
	open := len(h.conns)
	for _, cancel := range h.conns {
		cancel()
	}
	h.mu.Unlock()

	if open > 0 {
		h.logger.Info().Int("connections", open).Msg("closing session websockets")
	}

	done := make(chan struct{})
	go func() {
		h.connsWG.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// ServeHTTP upgrades the request and runs the connection until either side closes it.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	connID := uuid.NewString()
	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()
	if !h.track(connID, cancel) {
		http.Error(w, "server shutting down", http.StatusServiceUnavailable)
		return
	}
	defer h.untrack(connID)

	opts := &ws.AcceptOptions{OriginPatterns: h.cfg.OriginPatterns}
	if len(h.cfg.OriginPatterns) == 0 {
		opts.InsecureSkipVerify = true
	}
	conn, err := ws.Accept(w, r, opts)
	if err != nil {
		h.logger.Error().Err(err).Msg("websocket accept failed")
		return
	}
	defer conn.Close(ws.StatusInternalError, "server error")
	conn.SetReadLimit(h.cfg.ReadLimit)

	telemetry.WebsocketConnections.Inc()
	defer telemetry.WebsocketConnections.Dec()

	fallbackOwner := auth.OwnerFromContext(r.Context())
	logger := h.logger.With().Str("conn_id", connID).Logger()
	c := newConnection(connID, conn, h.cfg.QueueSize, h.now, logger)

	logger.Info().Str("remote_addr", r.RemoteAddr).Bool("authenticated", fallbackOwner != "").Msg("client connected")

	// Inbound messages are routed in arrival order by this single reader.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			typ, data, err := conn.Read(ctx)
			if err != nil {
				status := ws.CloseStatus(err)
				if status != ws.StatusNormalClosure && status != ws.StatusGoingAway && !errors.Is(err, context.Canceled) {
					logger.Debug().Err(err).Msg("websocket read error")
				}
				return
			}
			h.route(c, fallbackOwner, typ, data)
		}
	}()

	reason := h.writeLoop(ctx, c, done)

	c.close()
	cancel()
	<-done
	h.sessions.Disconnect(connID, h.now())
	logger.Info().Str("reason", reason).Msg("client disconnected")
	status := ws.StatusNormalClosure
	if reason == reasonShutdown {
		status = ws.StatusGoingAway
	}
	conn.Close(status, reason)
}

// writeLoop drains the outbound queue and pings the client until the reader stops or a
// write fails. It returns the close reason.
func (h *Handler) writeLoop(ctx context.Context, c *connection, done <-chan struct{}) string {
	pingTicker := time.NewTicker(h.cfg.PingInterval)
	defer pingTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			return reasonShutdown

		case <-done:
			return "client disconnected"

		case <-pingTicker.C:
			if err := c.write(ctx, Envelope{Type: TypePing, Timestamp: h.now().UTC()}, h.cfg.WriteTimeout); err != nil {
				c.logger.Debug().Err(err).Msg("ping failed")
				return "ping failed"
			}

		case env := <-c.out:
			if err := c.write(ctx, env, h.cfg.WriteTimeout); err != nil {
				c.logger.Debug().Err(err).Str("type", env.Type).Msg("write failed")
				return "write failed"
			}
		}
	}
}

func (h *Handler) route(c *connection, fallbackOwner string, typ ws.MessageType, data []byte) {
	now := h.now()

	if typ == ws.MessageBinary {
		kind, payload, err := splitFrame(data)
		if err != nil {
			c.logger.Debug().Msg("ignoring empty binary frame")
			return
		}
		switch kind {
		case KindVideoChunk:
			err = h.sessions.HandleFrame(c.id, payload, now)
		case KindAudioChunk:
			err = h.sessions.HandleAudio(c.id, payload, now)
		default:
			c.logger.Warn().Uint8("kind", kind).Msg("unknown binary frame kind")
			return
		}
		if errors.Is(err, session.ErrNoSession) {
			c.logger.Debug().Uint8("kind", kind).Msg("media before stream-start, ignoring")
		}
		return
	}

	cmd, err := decodeCommand(data)
	if err != nil {
		c.logger.Warn().Err(err).Msg("invalid websocket message")
		return
	}

	switch cmd.Type {
	case TypeStreamStart:
		start := cmd.startData()
		h.sessions.Start(c.id, start.UserID, fallbackOwner, c, now)
	case TypeStreamStop:
		if !h.sessions.Stop(c.id, now) {
			c.logger.Debug().Msg("stream-stop without active session")
		}
	case TypePong:
	default:
		c.logger.Warn().Str("type", cmd.Type).Msg("unknown message type")
	}
}
