/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package session

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/kvn147/Speak-Easy-Copy/internal/analysis"
	"github.com/kvn147/Speak-Easy-Copy/internal/archive"
	"github.com/kvn147/Speak-Easy-Copy/internal/coaching"
	"github.com/kvn147/Speak-Easy-Copy/internal/events"
	"github.com/kvn147/Speak-Easy-Copy/internal/telemetry"
)

// Archive persists finished sessions.
type Archive interface {
	SaveConversation(ctx context.Context, c archive.Conversation) (string, error)
	SaveRecording(ctx context.Context, ownerID, conversationID string, pcm []byte) (string, error)
}

// Finalizer summarizes and archives closed sessions. It works only from the snapshot taken
// at close and never reads the registry.
type Finalizer struct {
	*env
	summarizer analysis.Summarizer
	archive    Archive
	delay      time.Duration
	recordings bool
}

// Schedule runs finalization for snap after the configured delay. The emitter receives
// the outcome if the connection is still open.
func (f *Finalizer) Schedule(snap Snapshot, emitter Emitter) {
	if emitter == nil {
		emitter = discardEmitter{}
	}
	started := f.tasks.Go("finalize", func() {
		if f.delay > 0 {
			timer := time.NewTimer(f.delay)
			select {
			case <-timer.C:
			case <-f.ctx.Done():
				timer.Stop()
			}
		}
		f.finalize(snap, emitter)
	})
	if !started {
		telemetry.FinalizationsTotal.WithLabelValues("failed").Inc()
		f.logger.Warn().Str("conn_id", snap.ConnID).Str("user_id", snap.UserID).Msg("session manager closed, conversation not persisted")
		f.publishSnap(events.EventConversationFailed, snap, events.Payload{"error": "session manager closed"})
	}
}

func (f *Finalizer) finalize(snap Snapshot, emitter Emitter) {
	logger := f.logger.With().Str("conn_id", snap.ConnID).Str("user_id", snap.UserID).Logger()
	// Shutdown must not abort a finalization that has already started.
	base := telemetry.WithSession(context.WithoutCancel(f.ctx), snap.ConnID, snap.UserID)

	duration := snap.Duration()
	summary := f.summarize(base, snap, duration)

	conv := archive.Conversation{
		ID:              uuid.NewString(),
		OwnerID:         snap.UserID,
		Title:           conversationTitle(snap.StartTime),
		StartedAt:       snap.StartTime,
		Duration:        duration,
		FramesAnalyzed:  snap.FrameCount,
		DominantEmotion: coaching.DominantEmotion(snap.MoodHistory),
		Summary:         summary,
		Feedback:        snap.LastAdvice,
		Transcript:      snap.FullTranscript,
		Segments:        snap.TranscriptSegments,
		MoodHistory:     snap.MoodHistory,
	}

	ctx, cancel := f.callBase(base)
	id, err := f.archive.SaveConversation(ctx, conv)
	cancel()
	if err != nil {
		telemetry.FinalizationsTotal.WithLabelValues("failed").Inc()
		f.publishSnap(events.EventConversationFailed, snap, events.Payload{"error": err.Error()})
		logger.Error().Err(err).Msg("failed to archive conversation")
	} else {
		conv.ID = id
		telemetry.FinalizationsTotal.WithLabelValues("saved").Inc()
		emitter.Emit(NotifyConversationSaved, ConversationSaved{ID: id, Title: conv.Title})
		f.publishSnap(events.EventConversationSaved, snap, events.Payload{
			"conversation_id":  id,
			"duration_seconds": duration.Seconds(),
			"frames_analyzed":  snap.FrameCount,
		})
		logger.Info().
			Str("conversation_id", id).
			Dur("duration", duration).
			Int("frames_analyzed", snap.FrameCount).
			Int("transcript_chars", len(snap.FullTranscript)).
			Msg("conversation archived")
	}

	if f.recordings && len(snap.Recording) > 0 {
		f.saveRecording(base, snap, conv.ID, emitter)
	}
}

func (f *Finalizer) summarize(base context.Context, snap Snapshot, duration time.Duration) string {
	ctx, cancel := f.callBase(base)
	defer cancel()

	summary, err := f.summarizer.Summarize(ctx, coaching.SummaryRequest{
		MoodHistory: snap.MoodHistory,
		Transcript:  snap.FullTranscript,
		Duration:    duration,
	})
	if err != nil || summary == "" {
		f.logger.Warn().Err(err).Str("conn_id", snap.ConnID).Msg("summary generation failed, storing placeholder")
		return coaching.PlaceholderSummary(duration, err)
	}
	return summary
}

func (f *Finalizer) saveRecording(base context.Context, snap Snapshot, conversationID string, emitter Emitter) {
	ctx, cancel := f.callBase(base)
	defer cancel()

	key, err := f.archive.SaveRecording(ctx, snap.UserID, conversationID, snap.Recording)
	if err != nil {
		f.logger.Error().Err(err).Str("conn_id", snap.ConnID).Msg("failed to store recording")
		emitter.Emit(NotifyRecordingError, ErrorMessage{Message: "Failed to save recording"})
		return
	}
	if snap.RecordingTruncated {
		f.logger.Warn().Str("conn_id", snap.ConnID).Int("bytes", len(snap.Recording)).Msg("recording exceeded size cap and was truncated")
	}
	emitter.Emit(NotifyRecordingSaved, RecordingSaved{Key: key, Bytes: len(snap.Recording)})
}

func (f *Finalizer) callBase(base context.Context) (context.Context, context.CancelFunc) {
	if f.timeout <= 0 {
		return context.WithCancel(base)
	}
	return context.WithTimeout(base, f.timeout)
}

func (f *Finalizer) publishSnap(eventType events.EventType, snap Snapshot, payload events.Payload) {
	if f.events == nil {
		return
	}
	payload["conn_id"] = snap.ConnID
	payload["user_id"] = snap.UserID
	f.events.Publish(eventType, payload)
}

func conversationTitle(start time.Time) string {
	return fmt.Sprintf("Conversation on %s", start.UTC().Format("Jan 2, 2006 at 15:04 UTC"))
}
