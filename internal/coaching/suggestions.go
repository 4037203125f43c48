/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package coaching

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

// SuggestionCount is the number of options shown to the user at once.
const SuggestionCount = 4

// ErrMalformedResponse is returned when generated text is not a list of exactly
// SuggestionCount non-empty strings.
var ErrMalformedResponse = errors.New("malformed suggestion response")

// DefaultSuggestions seeds a new session before any advice has been generated.
func DefaultSuggestions() []string {
	return []string{
		"Open with a friendly question about their day.",
		"Listen for a topic they light up about.",
		"Share something brief about yourself.",
		"Ask a follow-up on what they just said.",
	}
}

// FallbackSuggestions is used when advice generation fails or returns garbage.
func FallbackSuggestions() []string {
	return []string{
		"Ask an open-ended question to keep them talking.",
		"Reflect back what you just heard in your own words.",
		"Check in on how they feel about the topic.",
		"Share a short related experience, then hand the turn back.",
	}
}

// ParseSuggestions extracts the first JSON array from free text and validates that it holds
// exactly n non-empty strings. Text whose first JSON value is an object is rejected, even
// when the object wraps an array.
func ParseSuggestions(text string, n int) ([]string, error) {
	raw := extractJSONArray(text)
	if raw == "" {
		return nil, fmt.Errorf("%w: no JSON array found", ErrMalformedResponse)
	}

	var items []any
	if err := json.Unmarshal([]byte(raw), &items); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	if len(items) != n {
		return nil, fmt.Errorf("%w: expected %d items, got %d", ErrMalformedResponse, n, len(items))
	}

	out := make([]string, 0, n)
	for i, item := range items {
		s, ok := item.(string)
		if !ok || strings.TrimSpace(s) == "" {
			return nil, fmt.Errorf("%w: item %d is not a non-empty string", ErrMalformedResponse, i)
		}
		out = append(out, strings.TrimSpace(s))
	}
	return out, nil
}

// ValidSuggestions reports whether options is a usable advice set.
func ValidSuggestions(options []string) bool {
	if len(options) != SuggestionCount {
		return false
	}
	for _, o := range options {
		if strings.TrimSpace(o) == "" {
			return false
		}
	}
	return true
}

func extractJSONArray(text string) string {
	text = strings.TrimSpace(text)
	// Strip markdown code fences the model sometimes adds.
	text = strings.TrimPrefix(text, "```json")
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimSuffix(text, "```")

	start := strings.IndexAny(text, "[{")
	if start < 0 || text[start] != '[' {
		return ""
	}
	end := strings.LastIndex(text, "]")
	if end <= start {
		return ""
	}
	return text[start : end+1]
}

// PlaceholderSummary is stored when summary generation fails, so that finalization never
// blocks on the summarizer.
func PlaceholderSummary(duration time.Duration, cause error) string {
	reason := "the summary service was unavailable"
	if cause != nil {
		reason = "the summary service returned an error"
	}
	return fmt.Sprintf("Summary not available: %s. The session lasted %s; the transcript and mood timeline below are complete.",
		reason, duration.Round(time.Second))
}
