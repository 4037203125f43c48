/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package coaching holds the conversation-coaching vocabulary: emotion labels,
// per-emotion guidance, prompt construction and suggestion parsing.
package coaching

import (
	"fmt"
	"strings"
)

// Emotion is a dominant-emotion label as reported by the face detector.
type Emotion string

const (
	EmotionHappy     Emotion = "HAPPY"
	EmotionSad       Emotion = "SAD"
	EmotionAngry     Emotion = "ANGRY"
	EmotionConfused  Emotion = "CONFUSED"
	EmotionDisgusted Emotion = "DISGUSTED"
	EmotionSurprised Emotion = "SURPRISED"
	EmotionCalm      Emotion = "CALM"
	EmotionFear      Emotion = "FEAR"
	EmotionUnknown   Emotion = "UNKNOWN"
)

// NoFaceDetected is stored as the current emotion when a sample contains no faces.
const NoFaceDetected = "No face detected"

const defaultGuidance = "Stay curious and attentive. Ask an open question and mirror what you hear before steering the conversation."

var guidance = map[Emotion]string{
	EmotionHappy:     "They are engaged and positive. Build on the momentum: share enthusiasm, deepen the topic, and move toward a concrete next step.",
	EmotionSad:       "They seem low. Slow down, acknowledge the feeling, and offer support before pushing any agenda.",
	EmotionAngry:     "They are frustrated. Stay calm, validate the concern without getting defensive, and ask what would make it right.",
	EmotionConfused:  "They look puzzled. Pause, simplify, and check understanding with a short clarifying question.",
	EmotionDisgusted: "They are reacting negatively. Acknowledge the reaction, ask what put them off, and be ready to change direction.",
	EmotionSurprised: "They were caught off guard. Give them a moment, explain the surprise, and invite their reaction.",
	EmotionCalm:      "They are relaxed and receptive. A good moment for thoughtful questions or to raise something important.",
	EmotionFear:      "They seem anxious. Reassure them, lower the stakes, and give them room to voice concerns.",
	EmotionUnknown:   defaultGuidance,
}

// Guidance returns the coaching strategy for a label, or a general strategy for labels
// outside the known set. Confidence suffixes are ignored.
func Guidance(label string) string {
	if text, ok := guidance[Emotion(strings.ToUpper(BareLabel(label)))]; ok {
		return text
	}
	return defaultGuidance
}

// BareLabel strips the confidence suffix: "HAPPY (90.0%)" -> "HAPPY".
func BareLabel(emotion string) string {
	if idx := strings.Index(emotion, " ("); idx >= 0 {
		return strings.TrimSpace(emotion[:idx])
	}
	return strings.TrimSpace(emotion)
}

// FormatEmotion renders a label with its confidence, e.g. "HAPPY (90.0%)".
func FormatEmotion(label string, confidence float64) string {
	return fmt.Sprintf("%s (%.1f%%)", label, confidence)
}

// IsLabel reports whether emotion carries a real label rather than being empty or the
// no-face sentinel.
func IsLabel(emotion string) bool {
	return emotion != "" && emotion != NoFaceDetected
}
