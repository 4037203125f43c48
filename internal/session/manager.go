/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package session

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"github.com/kvn147/Speak-Easy-Copy/internal/analysis"
	"github.com/kvn147/Speak-Easy-Copy/internal/events"
	"github.com/kvn147/Speak-Easy-Copy/internal/telemetry"
)

// ErrNoSession is returned when an operation targets a connection without a live session.
var ErrNoSession = errors.New("no active session")

// Config holds the pacing and lifecycle tunables.
type Config struct {
	FrameInterval       time.Duration
	AudioInterval       time.Duration
	MinAudioChunks      int
	AdviceCooldown      time.Duration
	Retention           time.Duration
	AdviceWindow        time.Duration
	AudioSubChunkSize   int
	AudioFormat         analysis.AudioFormat
	FinalizeDelay       time.Duration
	PersistOnDisconnect bool
	RecordingEnabled    bool
	RecordingMaxBytes   int
	CallTimeout         time.Duration
	DefaultUserID       string
}

// DefaultConfig returns the standard pacing.
func DefaultConfig() Config {
	return Config{
		FrameInterval:     2 * time.Second,
		AudioInterval:     6 * time.Second,
		MinAudioChunks:    15,
		AdviceCooldown:    15 * time.Second,
		Retention:         60 * time.Second,
		AdviceWindow:      30 * time.Second,
		AudioSubChunkSize: 8192,
		AudioFormat: analysis.AudioFormat{
			SampleRateHz: 48000,
			Encoding:     "pcm",
			LanguageCode: "en-US",
		},
		FinalizeDelay:     time.Second,
		RecordingMaxBytes: 64 << 20,
		CallTimeout:       30 * time.Second,
		DefaultUserID:     "anonymous",
	}
}

// Deps are the collaborators a Manager drives. Nil analysis collaborators are replaced by
// analysis.Disabled.
type Deps struct {
	Detector    analysis.EmotionDetector
	Transcriber analysis.Transcriber
	Advisor     analysis.AdviceGenerator
	Summarizer  analysis.Summarizer
	Archive     Archive
	Events      events.Publisher
	Clock       func() time.Time
	Logger      zerolog.Logger
}

// Manager owns the session lifecycle for every connection.
type Manager struct {
	cfg Config
	env *env

	sampler    *EmotionSampler
	aggregator *TranscriptAggregator
	advice     *AdviceScheduler
	finalizer  *Finalizer

	cancel context.CancelFunc
}

// NewManager wires the session components.
func NewManager(cfg Config, deps Deps) *Manager {
	if deps.Clock == nil {
		deps.Clock = time.Now
	}
	if deps.Detector == nil {
		deps.Detector = analysis.Disabled{Reason: "emotion detection not configured"}
	}
	if deps.Transcriber == nil {
		deps.Transcriber = analysis.Disabled{Reason: "transcription not configured"}
	}
	if deps.Advisor == nil {
		deps.Advisor = analysis.Disabled{Reason: "advice generation not configured"}
	}
	if deps.Summarizer == nil {
		deps.Summarizer = analysis.Disabled{Reason: "summary generation not configured"}
	}
	if cfg.DefaultUserID == "" {
		cfg.DefaultUserID = "anonymous"
	}

	logger := deps.Logger.With().Str("component", "session").Logger()
	ctx, cancel := context.WithCancel(context.Background())

	e := &env{
		registry: NewRegistry(),
		tasks:    &taskGroup{logger: logger},
		events:   deps.Events,
		now:      deps.Clock,
		ctx:      ctx,
		timeout:  cfg.CallTimeout,
		logger:   logger,
	}

	recordLimit := 0
	if cfg.RecordingEnabled {
		recordLimit = cfg.RecordingMaxBytes
	}

	m := &Manager{cfg: cfg, env: e, cancel: cancel}
	m.advice = &AdviceScheduler{
		env:       e,
		generator: deps.Advisor,
		cooldown:  cfg.AdviceCooldown,
		window:    cfg.AdviceWindow,
	}
	m.sampler = &EmotionSampler{
		env:       e,
		detector:  deps.Detector,
		interval:  cfg.FrameInterval,
		retention: cfg.Retention,
	}
	m.aggregator = &TranscriptAggregator{
		env:          e,
		transcriber:  deps.Transcriber,
		advice:       m.advice,
		format:       cfg.AudioFormat,
		interval:     cfg.AudioInterval,
		minChunks:    cfg.MinAudioChunks,
		subChunkSize: cfg.AudioSubChunkSize,
		retention:    cfg.Retention,
		recordLimit:  recordLimit,
	}
	if deps.Archive != nil {
		m.finalizer = &Finalizer{
			env:        e,
			summarizer: deps.Summarizer,
			archive:    deps.Archive,
			delay:      cfg.FinalizeDelay,
			recordings: cfg.RecordingEnabled,
		}
	}
	return m
}

// Start creates the session for a connection and acknowledges it. The owner is the
// client-supplied user id, else fallbackUserID, else the configured default. A repeated
// start for a live session re-acknowledges it without resetting state.
func (m *Manager) Start(connID, userID, fallbackUserID string, emitter Emitter, now time.Time) *Session {
	owner := firstNonEmpty(userID, fallbackUserID, m.cfg.DefaultUserID)
	s, added := m.env.registry.Add(newSession(connID, owner, emitter, now))
	logger := m.env.sessionLogger(s)

	if added {
		telemetry.ActiveSessions.Inc()
		m.env.publish(events.EventSessionStarted, s, nil)
		logger.Info().Msg("session started")
	} else {
		logger.Debug().Msg("stream-start on live session, re-acknowledging")
	}
	s.emitter.Emit(NotifyStreamReady, StreamReady{Message: readyMessage, UserID: s.UserID})
	return s
}

// HandleFrame routes a video frame. Frames for connections without a session are ignored.
func (m *Manager) HandleFrame(connID string, frame []byte, now time.Time) error {
	s, ok := m.env.registry.Get(connID)
	if !ok {
		return ErrNoSession
	}
	m.sampler.OnFrame(s, frame, now)
	return nil
}

// HandleAudio routes an audio chunk. Chunks for connections without a session are ignored.
func (m *Manager) HandleAudio(connID string, chunk []byte, now time.Time) error {
	s, ok := m.env.registry.Get(connID)
	if !ok {
		return ErrNoSession
	}
	m.aggregator.OnAudioChunk(s, chunk, now)
	return nil
}

// Stop closes the session for a connection and schedules its finalization. It reports
// false when there was no session to stop.
func (m *Manager) Stop(connID string, now time.Time) bool {
	s, ok := m.env.registry.Remove(connID)
	if !ok {
		return false
	}
	snap, closed := s.close(now)
	if !closed {
		return false
	}
	telemetry.ActiveSessions.Dec()

	m.env.publish(events.EventSessionStopped, s, events.Payload{
		"reason":           "stop",
		"duration_seconds": snap.Duration().Seconds(),
		"frames_analyzed":  snap.FrameCount,
	})
	logger := m.env.sessionLogger(s)
	logger.Info().
		Dur("duration", snap.Duration()).
		Int("frames_analyzed", snap.FrameCount).
		Int("mood_entries", len(snap.MoodHistory)).
		Msg("session stopped")

	m.finalize(snap, s.emitter)
	return true
}

// Disconnect tears down the session for a closed connection. Unless PersistOnDisconnect is
// set, the captured data is discarded without finalization.
func (m *Manager) Disconnect(connID string, now time.Time) {
	s, ok := m.env.registry.Remove(connID)
	if !ok {
		return
	}
	logger := m.env.sessionLogger(s)

	if m.cfg.PersistOnDisconnect {
		snap, closed := s.close(now)
		if !closed {
			return
		}
		telemetry.ActiveSessions.Dec()
		m.env.publish(events.EventSessionStopped, s, events.Payload{"reason": "disconnect"})
		logger.Info().Msg("connection dropped, finalizing session")
		m.finalize(snap, nil)
		return
	}

	if !s.discard() {
		return
	}
	telemetry.ActiveSessions.Dec()
	m.env.publish(events.EventSessionDiscarded, s, events.Payload{"reason": "disconnect"})
	logger.Info().Msg("connection dropped, session discarded")
}

func (m *Manager) finalize(snap Snapshot, emitter Emitter) {
	if m.finalizer == nil {
		m.env.logger.Warn().Str("conn_id", snap.ConnID).Msg("no archive configured, session not persisted")
		return
	}
	m.finalizer.Schedule(snap, emitter)
}

// Session returns the live session for a connection.
func (m *Manager) Session(connID string) (*Session, bool) {
	return m.env.registry.Get(connID)
}

// ActiveSessions returns the number of live sessions.
func (m *Manager) ActiveSessions() int {
	return m.env.registry.Len()
}

// Wait blocks until all in-flight collaborator work and finalizations have finished.
func (m *Manager) Wait() {
	m.env.tasks.Wait()
}

// Close skips pending finalize delays, refuses new collaborator work and waits for
// in-flight work.
func (m *Manager) Close() error {
	m.cancel()
	m.env.tasks.Close()
	return nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
