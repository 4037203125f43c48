/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package session

import (
	"time"

	"github.com/kvn147/Speak-Easy-Copy/internal/analysis"
	"github.com/kvn147/Speak-Easy-Copy/internal/coaching"
	"github.com/kvn147/Speak-Easy-Copy/internal/events"
	"github.com/kvn147/Speak-Easy-Copy/internal/models"
	"github.com/kvn147/Speak-Easy-Copy/internal/telemetry"
)

// EmotionSampler forwards at most one frame per interval to the emotion detector and
// folds the results into the session.
type EmotionSampler struct {
	*env
	detector  analysis.EmotionDetector
	interval  time.Duration
	retention time.Duration
}

// OnFrame handles one inbound video frame. It reports whether the frame was sent for
// detection; frames inside the sampling interval are dropped silently.
func (e *EmotionSampler) OnFrame(s *Session, frame []byte, now time.Time) bool {
	s.mu.Lock()
	if s.state != StateStreaming || now.Sub(s.lastProcessedTime) < e.interval {
		s.mu.Unlock()
		telemetry.FramesTotal.WithLabelValues("dropped").Inc()
		return false
	}
	s.lastProcessedTime = now
	s.frameCount++
	frameNo := s.frameCount
	s.mu.Unlock()

	if !e.tasks.Go("detect", func() { e.detect(s, frame, frameNo) }) {
		telemetry.FramesTotal.WithLabelValues("dropped").Inc()
		return false
	}
	telemetry.FramesTotal.WithLabelValues("processed").Inc()
	return true
}

func (e *EmotionSampler) detect(s *Session, frame []byte, frameNo int) {
	logger := e.sessionLogger(s)

	ctx, cancel := e.callContext(s)
	faces, err := e.detector.Detect(ctx, frame)
	cancel()

	if err != nil {
		telemetry.DetectionsTotal.WithLabelValues(detectionFailure(err)).Inc()
		e.fail(s, err)
		logger.Warn().Err(err).Int("frame", frameNo).Msg("emotion detection failed, frame dropped")
		return
	}

	s.mu.Lock()
	if !e.liveLocked(s) {
		s.mu.Unlock()
		logger.Debug().Int("frame", frameNo).Msg("discarding detection for closed session")
		return
	}
	// Results are folded in frame order.
	if folded := s.lastFoldedFrame; frameNo <= folded {
		s.mu.Unlock()
		logger.Debug().Int("frame", frameNo).Int("folded", folded).Msg("discarding stale detection")
		return
	}
	s.lastFoldedFrame = frameNo
	at := e.now()
	s.emotionErrorSent = false

	if len(faces) == 0 {
		s.currentEmotion = coaching.NoFaceDetected
		s.mu.Unlock()

		telemetry.DetectionsTotal.WithLabelValues("no_face").Inc()
		s.emitter.Emit(NotifyEmotionDetected, EmotionDetected{Timestamp: at, Emotion: coaching.NoFaceDetected, Faces: []analysis.Face{}})
		logger.Debug().Int("frame", frameNo).Msg("no face detected")
		return
	}

	dominant := faces[0]
	label := coaching.BareLabel(dominant.DominantLabel)
	if label == "" {
		label = string(coaching.EmotionUnknown)
	}

	changed := s.lastLabel != "" && s.lastLabel != label
	previous := s.lastLabel
	if changed {
		s.previousEmotion = previous
	}
	s.emotionJustChanged = changed
	s.lastLabel = label
	s.currentEmotion = coaching.FormatEmotion(label, dominant.Confidence)
	current := s.currentEmotion

	s.moodHistory.Append(models.MoodEntry{At: at, Emotion: label, Confidence: dominant.Confidence})
	s.moodHistory.Prune(e.retention, at)
	s.mu.Unlock()

	telemetry.DetectionsTotal.WithLabelValues("face").Inc()
	s.emitter.Emit(NotifyEmotionDetected, EmotionDetected{Timestamp: at, Emotion: current, Faces: faces})
	e.publish(events.EventEmotionDetected, s, events.Payload{"emotion": label, "confidence": dominant.Confidence, "faces": len(faces)})
	if changed {
		e.publish(events.EventEmotionChanged, s, events.Payload{"from": previous, "to": label})
		logger.Info().Str("from", previous).Str("to", label).Msg("emotion changed")
	}
	logger.Debug().Int("frame", frameNo).Str("emotion", current).Msg("emotion detected")
}

// fail surfaces credential problems to the client once until a detection succeeds again.
func (e *EmotionSampler) fail(s *Session, err error) {
	if !analysis.IsCredentialError(err) {
		return
	}
	s.mu.Lock()
	notify := e.liveLocked(s) && !s.emotionErrorSent
	if notify {
		s.emotionErrorSent = true
	}
	s.mu.Unlock()

	if notify {
		s.emitter.Emit(NotifyEmotionError, ErrorMessage{Message: credentialsMessage})
	}
}

func detectionFailure(err error) string {
	if analysis.IsCredentialError(err) {
		return "credentials"
	}
	return "error"
}
