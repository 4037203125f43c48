/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package analysis

import (
	"context"
	"fmt"

	"github.com/kvn147/Speak-Easy-Copy/internal/coaching"
)

// Disabled stands in for a collaborator whose provider is not configured. Every call fails
// with ErrCredentials so callers degrade the same way they do for a misconfigured provider.
type Disabled struct {
	Reason string
}

func (d Disabled) err(op string) error {
	return fmt.Errorf("%s: %w: %s", op, ErrCredentials, d.Reason)
}

// Detect implements EmotionDetector.
func (d Disabled) Detect(context.Context, []byte) ([]Face, error) {
	return nil, d.err("detect faces")
}

// Transcribe implements Transcriber. The audio channel is drained.
func (d Disabled) Transcribe(_ context.Context, audio <-chan []byte, _ AudioFormat, _ func(TranscriptResult)) error {
	for range audio {
	}
	return d.err("transcribe")
}

// GenerateAdvice implements AdviceGenerator.
func (d Disabled) GenerateAdvice(context.Context, coaching.AdviceRequest) ([]string, error) {
	return nil, d.err("generate advice")
}

// Summarize implements Summarizer.
func (d Disabled) Summarize(context.Context, coaching.SummaryRequest) (string, error) {
	return "", d.err("summarize")
}
