/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package models

import "time"

// MoodEntry is one dominant-emotion observation for a session.
type MoodEntry struct {
	At         time.Time `json:"timestamp" yaml:"timestamp"`
	Emotion    string    `json:"emotion" yaml:"emotion"`
	Confidence float64   `json:"confidence" yaml:"confidence"`
}

// Timestamp implements ledger.Timestamped.
func (m MoodEntry) Timestamp() time.Time {
	return m.At
}

// TranscriptSegment is one finalized piece of transcribed speech.
type TranscriptSegment struct {
	At   time.Time `json:"timestamp"`
	Text string    `json:"text"`
}

// Timestamp implements ledger.Timestamped.
func (t TranscriptSegment) Timestamp() time.Time {
	return t.At
}
