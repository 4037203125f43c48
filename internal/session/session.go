/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package session coordinates live coaching sessions: it paces incoming video frames and
// audio chunks against the analysis collaborators, keeps each session's rolling state and
// finalizes sessions into archived conversations.
package session

import (
	"sync"
	"time"

	"github.com/kvn147/Speak-Easy-Copy/internal/coaching"
	"github.com/kvn147/Speak-Easy-Copy/internal/ledger"
	"github.com/kvn147/Speak-Easy-Copy/internal/models"
)

// State is the lifecycle state of a session. A connection without a session is idle.
type State int

const (
	StateStreaming State = iota + 1
	StateFinalizing
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateStreaming:
		return "streaming"
	case StateFinalizing:
		return "finalizing"
	case StateClosed:
		return "closed"
	default:
		return "idle"
	}
}

// Session is the server-side state of one streaming connection. All mutable fields are
// guarded by mu.
type Session struct {
	ConnID    string
	UserID    string
	StartTime time.Time

	emitter Emitter

	mu    sync.Mutex
	state State

	frameCount              int
	lastFoldedFrame         int
	lastProcessedTime       time.Time
	lastAudioProcessedTime  time.Time
	lastAdviceGeneratedTime time.Time

	currentEmotion     string
	previousEmotion    string
	lastLabel          string
	emotionJustChanged bool
	emotionErrorSent   bool

	fullTranscript string
	audioChunks    [][]byte
	transcribing   bool

	moodHistory        *ledger.Ledger[models.MoodEntry]
	transcriptSegments *ledger.Ledger[models.TranscriptSegment]
	lastAdvice         []string

	recording          []byte
	recordingTruncated bool
}

func newSession(connID, userID string, emitter Emitter, now time.Time) *Session {
	if emitter == nil {
		emitter = discardEmitter{}
	}
	return &Session{
		ConnID:                  connID,
		UserID:                  userID,
		StartTime:               now,
		emitter:                 emitter,
		state:                   StateStreaming,
		lastAdviceGeneratedTime: now,
		moodHistory:             ledger.New[models.MoodEntry](),
		transcriptSegments:      ledger.New[models.TranscriptSegment](),
		lastAdvice:              coaching.DefaultSuggestions(),
	}
}

// Snapshot is a point-in-time copy of a session's state.
type Snapshot struct {
	ConnID    string
	UserID    string
	State     State
	StartTime time.Time
	EndTime   time.Time

	FrameCount              int
	LastProcessedTime       time.Time
	LastAudioProcessedTime  time.Time
	LastAdviceGeneratedTime time.Time

	CurrentEmotion     string
	PreviousEmotion    string
	EmotionJustChanged bool

	FullTranscript     string
	BufferedChunks     int
	Transcribing       bool
	MoodHistory        []models.MoodEntry
	TranscriptSegments []models.TranscriptSegment
	LastAdvice         []string

	Recording          []byte
	RecordingTruncated bool
}

// Duration is the session length at the time of the snapshot.
func (s Snapshot) Duration() time.Duration {
	if s.EndTime.IsZero() {
		return 0
	}
	return s.EndTime.Sub(s.StartTime)
}

// Snapshot copies the session state.
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

func (s *Session) snapshotLocked() Snapshot {
	return Snapshot{
		ConnID:                  s.ConnID,
		UserID:                  s.UserID,
		State:                   s.state,
		StartTime:               s.StartTime,
		FrameCount:              s.frameCount,
		LastProcessedTime:       s.lastProcessedTime,
		LastAudioProcessedTime:  s.lastAudioProcessedTime,
		LastAdviceGeneratedTime: s.lastAdviceGeneratedTime,
		CurrentEmotion:          s.currentEmotion,
		PreviousEmotion:         s.previousEmotion,
		EmotionJustChanged:      s.emotionJustChanged,
		FullTranscript:          s.fullTranscript,
		BufferedChunks:          len(s.audioChunks),
		Transcribing:            s.transcribing,
		MoodHistory:             s.moodHistory.All(),
		TranscriptSegments:      s.transcriptSegments.All(),
		LastAdvice:              append([]string(nil), s.lastAdvice...),
		Recording:               append([]byte(nil), s.recording...),
		RecordingTruncated:      s.recordingTruncated,
	}
}

// State reports the lifecycle state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// close moves a streaming session through finalizing to closed and returns the data
// finalization needs. It returns false if the session was already closed.
func (s *Session) close(now time.Time) (Snapshot, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateStreaming {
		return Snapshot{}, false
	}
	s.state = StateFinalizing
	snap := s.snapshotLocked()
	snap.EndTime = now
	s.state = StateClosed
	s.audioChunks = nil
	s.recording = nil
	return snap, true
}

// discard closes the session without producing finalization data.
func (s *Session) discard() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StateClosed {
		return false
	}
	s.state = StateClosed
	s.audioChunks = nil
	s.recording = nil
	return true
}

// recordLocked keeps raw audio for the recording variant, up to limit bytes.
func (s *Session) recordLocked(chunk []byte, limit int) {
	if limit <= 0 || s.recordingTruncated {
		return
	}
	if len(s.recording)+len(chunk) > limit {
		s.recordingTruncated = true
		return
	}
	s.recording = append(s.recording, chunk...)
}
