/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package analysis

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/transcribestreaming"
	"github.com/aws/aws-sdk-go-v2/service/transcribestreaming/types"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"

	"github.com/kvn147/Speak-Easy-Copy/internal/telemetry"
)

// transcriptionStream is the part of the Transcribe event stream the streamer drives.
type transcriptionStream interface {
	Send(ctx context.Context, chunk []byte) error
	CloseSend() error
	Events() <-chan types.TranscriptResultStream
	Err() error
	Close() error
}

type streamStarter func(ctx context.Context, input *transcribestreaming.StartStreamTranscriptionInput) (transcriptionStream, error)

// TranscribeStreamer transcribes PCM audio with Amazon Transcribe streaming.
type TranscribeStreamer struct {
	start  streamStarter
	logger zerolog.Logger
}

// NewTranscribeStreamer creates a streamer from an AWS configuration.
func NewTranscribeStreamer(cfg aws.Config, logger zerolog.Logger) *TranscribeStreamer {
	client := transcribestreaming.NewFromConfig(cfg)
	start := func(ctx context.Context, input *transcribestreaming.StartStreamTranscriptionInput) (transcriptionStream, error) {
		out, err := client.StartStreamTranscription(ctx, input)
		if err != nil {
			return nil, err
		}
		return sdkStream{out.GetStream()}, nil
	}
	return newTranscribeStreamer(start, logger)
}

func newTranscribeStreamer(start streamStarter, logger zerolog.Logger) *TranscribeStreamer {
	return &TranscribeStreamer{
		start:  start,
		logger: logger.With().Str("component", "transcribe").Logger(),
	}
}

// Transcribe sends every chunk read from audio as an audio event, closes the input side,
// and reports the first alternative of the first result of each transcript event to fn.
func (t *TranscribeStreamer) Transcribe(ctx context.Context, audio <-chan []byte, format AudioFormat, fn func(TranscriptResult)) (err error) {
	ctx, span := telemetry.StartCollaboratorSpan(ctx, "transcribe", "StartStreamTranscription")
	defer span.End()

	started := time.Now()
	defer func() {
		telemetry.ObserveCollaborator("transcribe", started, err)
		telemetry.RecordError(span, err)
	}()

	stream, err := t.start(ctx, &transcribestreaming.StartStreamTranscriptionInput{
		LanguageCode:         types.LanguageCode(format.LanguageCode),
		MediaEncoding:        types.MediaEncoding(format.Encoding),
		MediaSampleRateHertz: aws.Int32(int32(format.SampleRateHz)),
	})
	if err != nil {
		// Drain so the producer never blocks on an abandoned channel.
		for range audio {
		}
		return classify("start stream transcription", err)
	}
	defer stream.Close()

	sendErr := make(chan error, 1)
	go func() {
		var sendFailure error
		sent := 0
		for chunk := range audio {
			if sendFailure != nil {
				continue
			}
			if err := stream.Send(ctx, chunk); err != nil {
				sendFailure = fmt.Errorf("send audio event: %w", err)
				continue
			}
			sent++
		}
		if err := stream.CloseSend(); err != nil && sendFailure == nil {
			sendFailure = fmt.Errorf("close audio stream: %w", err)
		}
		t.logger.Debug().Int("chunks", sent).Msg("audio sent")
		sendErr <- sendFailure
	}()

	results := 0
	for event := range stream.Events() {
		te, ok := event.(*types.TranscriptResultStreamMemberTranscriptEvent)
		if !ok || te.Value.Transcript == nil || len(te.Value.Transcript.Results) == 0 {
			continue
		}
		result := te.Value.Transcript.Results[0]
		if len(result.Alternatives) == 0 {
			continue
		}
		results++
		fn(TranscriptResult{
			Text:    aws.ToString(result.Alternatives[0].Transcript),
			IsFinal: !result.IsPartial,
		})
	}

	if err := <-sendErr; err != nil {
		return classify("transcribe", err)
	}
	if err := stream.Err(); err != nil {
		return classify("transcript stream", err)
	}
	span.SetAttributes(attribute.Int("speakeasy.transcript_results", results))
	return nil
}

// SplitAudio cuts payload into consecutive chunks of at most size bytes.
func SplitAudio(payload []byte, size int) [][]byte {
	if size <= 0 || len(payload) <= size {
		if len(payload) == 0 {
			return nil
		}
		return [][]byte{payload}
	}
	chunks := make([][]byte, 0, (len(payload)+size-1)/size)
	for offset := 0; offset < len(payload); offset += size {
		end := min(offset+size, len(payload))
		chunks = append(chunks, payload[offset:end])
	}
	return chunks
}

type sdkStream struct {
	*transcribestreaming.StartStreamTranscriptionEventStream
}

func (s sdkStream) Send(ctx context.Context, chunk []byte) error {
	return s.StartStreamTranscriptionEventStream.Send(ctx, &types.AudioStreamMemberAudioEvent{
		Value: types.AudioEvent{AudioChunk: chunk},
	})
}

func (s sdkStream) CloseSend() error {
	return s.Writer.Close()
}
