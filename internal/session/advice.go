/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package session

import (
	"strings"
	"time"

	"github.com/kvn147/Speak-Easy-Copy/internal/analysis"
	"github.com/kvn147/Speak-Easy-Copy/internal/coaching"
	"github.com/kvn147/Speak-Easy-Copy/internal/events"
	"github.com/kvn147/Speak-Easy-Copy/internal/telemetry"
)

// AdviceScheduler requests coaching suggestions at most once per cooldown.
type AdviceScheduler struct {
	*env
	generator analysis.AdviceGenerator
	cooldown  time.Duration
	window    time.Duration
}

// MaybeGenerate dispatches an advice request when the session has an emotion, a
// non-empty transcript and the cooldown has elapsed. The cooldown is claimed at dispatch,
// so concurrent callers produce a single request. It reports whether a request started.
func (a *AdviceScheduler) MaybeGenerate(s *Session, now time.Time) bool {
	s.mu.Lock()
	if !a.liveLocked(s) ||
		s.currentEmotion == "" ||
		strings.TrimSpace(s.fullTranscript) == "" ||
		now.Sub(s.lastAdviceGeneratedTime) < a.cooldown {
		s.mu.Unlock()
		return false
	}
	s.lastAdviceGeneratedTime = now

	current := coaching.BareLabel(s.currentEmotion)
	changed := s.emotionJustChanged ||
		(coaching.IsLabel(s.currentEmotion) && s.previousEmotion != "" && s.previousEmotion != current)

	transcript := s.fullTranscript
	if recent := s.transcriptSegments.Recent(a.window, now); len(recent) > 0 {
		texts := make([]string, 0, len(recent))
		for _, seg := range recent {
			texts = append(texts, seg.Text)
		}
		transcript = strings.Join(texts, " ")
	}

	req := coaching.AdviceRequest{
		Emotion:         s.currentEmotion,
		EmotionChanged:  changed,
		PreviousEmotion: s.previousEmotion,
		MoodTrail:       s.moodHistory.Recent(a.window, now),
		Transcript:      transcript,
	}
	s.mu.Unlock()

	return a.tasks.Go("advice", func() { a.generate(s, req) })
}

func (a *AdviceScheduler) generate(s *Session, req coaching.AdviceRequest) {
	logger := a.sessionLogger(s)

	ctx, cancel := a.callContext(s)
	options, err := a.generator.GenerateAdvice(ctx, req)
	cancel()

	source := "generated"
	if err != nil || !coaching.ValidSuggestions(options) {
		source = "fallback"
		logger.Warn().Err(err).Int("options", len(options)).Msg("advice generation failed, using fallback suggestions")
		options = coaching.FallbackSuggestions()
	}

	at := a.now()
	s.mu.Lock()
	if !a.liveLocked(s) {
		s.mu.Unlock()
		logger.Debug().Msg("discarding advice for closed session")
		return
	}
	s.lastAdvice = options
	if source == "generated" {
		s.emotionJustChanged = false
	}
	s.mu.Unlock()

	telemetry.AdviceTotal.WithLabelValues(source).Inc()
	s.emitter.Emit(NotifyAdviceUpdate, AdviceUpdate{
		Options:        options,
		Emotion:        req.Emotion,
		EmotionChanged: req.EmotionChanged,
		Timestamp:      at,
	})
	a.publish(events.EventAdviceGenerated, s, events.Payload{
		"source":          source,
		"emotion":         coaching.BareLabel(req.Emotion),
		"emotion_changed": req.EmotionChanged,
	})
	logger.Info().Str("source", source).Str("emotion", req.Emotion).Bool("emotion_changed", req.EmotionChanged).Msg("advice emitted")
}
