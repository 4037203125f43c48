/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package analysis defines the external analysis collaborators used by a live session
// (face emotion detection, streaming transcription, advice and summary generation) and
// their AWS and OpenAI adapters.
package analysis

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/aws/smithy-go"

	"github.com/kvn147/Speak-Easy-Copy/internal/coaching"
)

// ErrCredentials marks failures caused by missing or invalid provider credentials.
var ErrCredentials = errors.New("analysis credentials missing or invalid")

// EmotionScore is one emotion estimate for a face.
type EmotionScore struct {
	Type       string  `json:"type"`
	Confidence float64 `json:"confidence"`
}

// Face is a single detected face.
type Face struct {
	DominantLabel string         `json:"dominant_emotion"`
	Confidence    float64        `json:"confidence"`
	Emotions      []EmotionScore `json:"emotions,omitempty"`
	AgeLow        int            `json:"age_low,omitempty"`
	AgeHigh       int            `json:"age_high,omitempty"`
	Gender        string         `json:"gender,omitempty"`
}

// AudioFormat describes the PCM stream handed to a transcriber.
type AudioFormat struct {
	SampleRateHz int
	Encoding     string
	LanguageCode string
}

// TranscriptResult is one transcription result; partial results have IsFinal false.
type TranscriptResult struct {
	Text    string
	IsFinal bool
}

// EmotionDetector detects faces and their emotions in a still image.
type EmotionDetector interface {
	Detect(ctx context.Context, image []byte) ([]Face, error)
}

// Transcriber streams audio to a speech-to-text service and reports each result to fn.
// It returns when the audio channel is drained and the result stream ends.
type Transcriber interface {
	Transcribe(ctx context.Context, audio <-chan []byte, format AudioFormat, fn func(TranscriptResult)) error
}

// AdviceGenerator produces coaching suggestions.
type AdviceGenerator interface {
	GenerateAdvice(ctx context.Context, req coaching.AdviceRequest) ([]string, error)
}

// Summarizer produces the post-session review document text.
type Summarizer interface {
	Summarize(ctx context.Context, req coaching.SummaryRequest) (string, error)
}

// DominantEmotion picks the highest-confidence emotion from scores.
func DominantEmotion(scores []EmotionScore) (EmotionScore, bool) {
	var best EmotionScore
	found := false
	for _, s := range scores {
		if !found || s.Confidence > best.Confidence {
			best, found = s, true
		}
	}
	return best, found
}

var credentialErrorCodes = map[string]struct{}{
	"UnrecognizedClientException":         {},
	"InvalidSignatureException":           {},
	"MissingAuthenticationTokenException": {},
	"ExpiredTokenException":               {},
	"AccessDeniedException":               {},
	"InvalidClientTokenId":                {},
	"SignatureDoesNotMatch":               {},
}

// IsCredentialError reports whether err was caused by provider credentials rather than by
// the request itself.
func IsCredentialError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrCredentials) {
		return true
	}
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		if _, ok := credentialErrorCodes[apiErr.ErrorCode()]; ok {
			return true
		}
	}
	return strings.Contains(strings.ToLower(err.Error()), "credentials")
}

// classify wraps err with the failing operation, tagging credential failures with
// ErrCredentials.
func classify(op string, err error) error {
	if IsCredentialError(err) && !errors.Is(err, ErrCredentials) {
		return fmt.Errorf("%s: %w: %w", op, ErrCredentials, err)
	}
	return fmt.Errorf("%s: %w", op, err)
}
