/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package session

import (
	"bytes"
	"strings"
	"sync/atomic"
	"time"

	"github.com/kvn147/Speak-Easy-Copy/internal/analysis"
	"github.com/kvn147/Speak-Easy-Copy/internal/events"
	"github.com/kvn147/Speak-Easy-Copy/internal/models"
	"github.com/kvn147/Speak-Easy-Copy/internal/telemetry"
)

// TranscriptAggregator buffers audio chunks and transcribes them in batches.
type TranscriptAggregator struct {
	*env
	transcriber  analysis.Transcriber
	advice       *AdviceScheduler
	format       analysis.AudioFormat
	interval     time.Duration
	minChunks    int
	subChunkSize int
	retention    time.Duration
	recordLimit  int
}

// OnAudioChunk buffers chunk and starts a transcription batch when the interval has passed,
// enough chunks are buffered and no batch is in flight. It reports whether a batch started.
func (t *TranscriptAggregator) OnAudioChunk(s *Session, chunk []byte, now time.Time) bool {
	s.mu.Lock()
	if s.state != StateStreaming {
		s.mu.Unlock()
		return false
	}
	s.audioChunks = append(s.audioChunks, chunk)
	s.recordLocked(chunk, t.recordLimit)

	if s.transcribing || now.Sub(s.lastAudioProcessedTime) < t.interval || len(s.audioChunks) < t.minChunks {
		s.mu.Unlock()
		return false
	}
	s.lastAudioProcessedTime = now
	batch := s.audioChunks
	s.audioChunks = nil
	s.transcribing = true
	s.mu.Unlock()

	payload := bytes.Join(batch, nil)
	if !t.tasks.Go("transcribe", func() { t.transcribe(s, payload, len(batch)) }) {
		s.mu.Lock()
		s.transcribing = false
		s.mu.Unlock()
		return false
	}
	return true
}

func (t *TranscriptAggregator) transcribe(s *Session, payload []byte, chunks int) {
	logger := t.sessionLogger(s)

	ctx, cancel := t.callContext(s)
	defer cancel()

	audio := make(chan []byte)
	go func() {
		defer close(audio)
		for _, part := range analysis.SplitAudio(payload, t.subChunkSize) {
			select {
			case audio <- part:
			case <-ctx.Done():
				return
			}
		}
	}()

	var newText atomic.Bool
	err := t.transcriber.Transcribe(ctx, audio, t.format, func(r analysis.TranscriptResult) {
		if !r.IsFinal {
			return
		}
		text := strings.TrimSpace(r.Text)
		if text == "" {
			return
		}
		if t.appendText(s, text) {
			newText.Store(true)
		}
	})

	s.mu.Lock()
	s.transcribing = false
	s.mu.Unlock()

	if err != nil {
		telemetry.TranscriptionBatchesTotal.WithLabelValues("error").Inc()
		logger.Warn().Err(err).Int("chunks", chunks).Int("bytes", len(payload)).Msg("transcription batch failed")
		return
	}
	telemetry.TranscriptionBatchesTotal.WithLabelValues("ok").Inc()
	logger.Debug().Int("chunks", chunks).Int("bytes", len(payload)).Bool("new_text", newText.Load()).Msg("transcription batch complete")

	if newText.Load() {
		t.advice.MaybeGenerate(s, t.now())
	}
}

// appendText adds a final transcript segment. It returns false for closed sessions.
func (t *TranscriptAggregator) appendText(s *Session, text string) bool {
	at := t.now()

	s.mu.Lock()
	if !t.liveLocked(s) {
		s.mu.Unlock()
		return false
	}
	if s.fullTranscript == "" {
		s.fullTranscript = text
	} else {
		s.fullTranscript += " " + text
	}
	s.transcriptSegments.Append(models.TranscriptSegment{At: at, Text: text})
	s.transcriptSegments.Prune(t.retention, at)
	s.mu.Unlock()

	telemetry.TranscriptSegmentsTotal.Inc()
	t.publish(events.EventTranscriptAppended, s, events.Payload{"text": text, "words": len(strings.Fields(text))})
	return true
}
