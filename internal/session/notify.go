/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package session

import (
	"time"

	"github.com/kvn147/Speak-Easy-Copy/internal/analysis"
)

// Client notification types.
const (
	NotifyStreamReady       = "stream-ready"
	NotifyEmotionDetected   = "emotion-detected"
	NotifyEmotionError      = "emotion-error"
	NotifyAdviceUpdate      = "advice-update"
	NotifyRecordingSaved    = "recording-saved"
	NotifyRecordingError    = "recording-error"
	NotifyConversationSaved = "conversation-saved"
)

// Emitter delivers notifications to a session's client connection. Emit must not block;
// notifications for a closed connection are dropped.
type Emitter interface {
	Emit(kind string, data any)
}

// EmitterFunc adapts a function to Emitter.
type EmitterFunc func(kind string, data any)

// Emit calls f.
func (f EmitterFunc) Emit(kind string, data any) { f(kind, data) }

type discardEmitter struct{}

func (discardEmitter) Emit(string, any) {}

// StreamReady acknowledges stream-start.
type StreamReady struct {
	Message string `json:"message"`
	UserID  string `json:"userId"`
}

// EmotionDetected reports one detection result.
type EmotionDetected struct {
	Timestamp time.Time       `json:"timestamp"`
	Emotion   string          `json:"emotion"`
	Faces     []analysis.Face `json:"faces"`
}

// ErrorMessage carries a user-facing error.
type ErrorMessage struct {
	Message string `json:"message"`
}

// AdviceUpdate carries a new set of suggestions.
type AdviceUpdate struct {
	Options        []string  `json:"options"`
	Emotion        string    `json:"emotion"`
	EmotionChanged bool      `json:"emotionChanged"`
	Timestamp      time.Time `json:"timestamp"`
}

// RecordingSaved reports the stored raw audio.
type RecordingSaved struct {
	Key   string `json:"key"`
	Bytes int    `json:"bytes"`
}

// ConversationSaved reports the archived conversation.
type ConversationSaved struct {
	ID    string `json:"id"`
	Title string `json:"title"`
}

const (
	readyMessage       = "Server ready to analyze emotions and transcribe audio"
	credentialsMessage = "Analysis credentials are not configured. Set AWS_ACCESS_KEY_ID and AWS_SECRET_ACCESS_KEY for the server."
)
