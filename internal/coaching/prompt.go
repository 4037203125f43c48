/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package coaching

import (
	"fmt"
	"strings"
	"time"

	"github.com/kvn147/Speak-Easy-Copy/internal/models"
)

// AdviceRequest is the context handed to the advice generator.
type AdviceRequest struct {
	Emotion         string
	EmotionChanged  bool
	PreviousEmotion string
	MoodTrail       []models.MoodEntry
	Transcript      string
}

// SummaryRequest is the context handed to the summarizer at finalization.
type SummaryRequest struct {
	MoodHistory []models.MoodEntry
	Transcript  string
	Duration    time.Duration
}

// AdviceSystemPrompt instructs the model on the response shape.
const AdviceSystemPrompt = `You are a real-time conversation coach. The user is in a live conversation and sees your suggestions on screen.
Reply with ONLY a JSON array of exactly 4 short strings (max 12 words each). Each string is a concrete thing the user could say or do next.`

// SummarySystemPrompt instructs the model on the summary document shape.
const SummarySystemPrompt = `You write concise post-conversation reviews in markdown.
Use the sections "## Overview", "## Emotional Arc", "## What Went Well" and "## Try Next Time". Keep it under 250 words.`

// BuildAdvicePrompt renders the user prompt for advice generation.
func BuildAdvicePrompt(req AdviceRequest) string {
	var b strings.Builder

	label := BareLabel(req.Emotion)
	fmt.Fprintf(&b, "Their current expression: %s\n", req.Emotion)
	if req.EmotionChanged && req.PreviousEmotion != "" {
		fmt.Fprintf(&b, "Their mood just shifted from %s to %s.\n", req.PreviousEmotion, label)
	}
	fmt.Fprintf(&b, "Coaching strategy: %s\n", Guidance(label))

	if len(req.MoodTrail) > 0 {
		b.WriteString("\nMood over the last 30 seconds:\n")
		for _, m := range req.MoodTrail {
			fmt.Fprintf(&b, "- %s %s\n", m.At.UTC().Format("15:04:05"), FormatEmotion(m.Emotion, m.Confidence))
		}
	}

	b.WriteString("\nWhat was said recently:\n")
	b.WriteString(strings.TrimSpace(req.Transcript))
	b.WriteString("\n\nGive 4 response options as a JSON array of strings.")
	return b.String()
}

// BuildSummaryPrompt renders the user prompt for the post-session summary.
func BuildSummaryPrompt(req SummaryRequest) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Conversation length: %s\n", req.Duration.Round(time.Second))
	if dominant := DominantEmotion(req.MoodHistory); dominant != "" {
		fmt.Fprintf(&b, "Most frequent expression: %s\n", dominant)
	}

	if len(req.MoodHistory) > 0 {
		b.WriteString("\nMood timeline:\n")
		for _, m := range req.MoodHistory {
			fmt.Fprintf(&b, "- %s %s\n", m.At.UTC().Format("15:04:05"), FormatEmotion(m.Emotion, m.Confidence))
		}
	}

	transcript := strings.TrimSpace(req.Transcript)
	if transcript == "" {
		transcript = "(no speech was transcribed)"
	}
	b.WriteString("\nTranscript:\n")
	b.WriteString(transcript)
	return b.String()
}

// DominantEmotion returns the most frequent label in history; on a tie the label that
// reached the count first wins. Empty history yields "".
func DominantEmotion(history []models.MoodEntry) string {
	counts := make(map[string]int, len(history))
	best, bestCount := "", 0
	for _, m := range history {
		counts[m.Emotion]++
		if c := counts[m.Emotion]; c > bestCount {
			best, bestCount = m.Emotion, c
		}
	}
	return best
}
