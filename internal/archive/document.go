/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package archive

import (
	"bytes"
	"errors"
	"fmt"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/kvn147/Speak-Easy-Copy/internal/models"
)

const frontMatterDelimiter = "---"

// ErrInvalidDocument is returned when a stored document cannot be parsed.
var ErrInvalidDocument = errors.New("invalid conversation document")

// Conversation is a finished session ready to be archived.
type Conversation struct {
	ID              string
	OwnerID         string
	Title           string
	StartedAt       time.Time
	Duration        time.Duration
	FramesAnalyzed  int
	DominantEmotion string
	Summary         string
	Feedback        []string
	Transcript      string
	Segments        []models.TranscriptSegment
	MoodHistory     []models.MoodEntry
}

// FrontMatter is the YAML header of a conversation document.
type FrontMatter struct {
	Title           string   `yaml:"title"`
	Date            string   `yaml:"date"`
	DurationSeconds float64  `yaml:"duration_seconds,omitempty"`
	FramesAnalyzed  int      `yaml:"frames_analyzed,omitempty"`
	DominantEmotion string   `yaml:"dominant_emotion,omitempty"`
	Summary         string   `yaml:"summary,omitempty"`
	Feedback        Feedback `yaml:"feedback,omitempty"`
	Dialogue        string   `yaml:"dialogue,omitempty"`
}

// Feedback accepts either a single string or a list of strings.
type Feedback []string

// UnmarshalYAML implements yaml.Unmarshaler.
func (f *Feedback) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.ScalarNode:
		if node.Value == "" {
			*f = nil
			return nil
		}
		*f = Feedback{node.Value}
		return nil
	case yaml.SequenceNode:
		var items []string
		if err := node.Decode(&items); err != nil {
			return err
		}
		*f = items
		return nil
	default:
		return fmt.Errorf("feedback: unexpected yaml node kind %d", node.Kind)
	}
}

// Document is a parsed conversation document.
type Document struct {
	FrontMatter
	Body string
}

// RenderDocument renders c as markdown with YAML front matter.
func RenderDocument(c Conversation) ([]byte, error) {
	fm := FrontMatter{
		Title:           c.Title,
		Date:            c.StartedAt.UTC().Format(time.RFC3339),
		DurationSeconds: roundSeconds(c.Duration),
		FramesAnalyzed:  c.FramesAnalyzed,
		DominantEmotion: c.DominantEmotion,
		Summary:         c.Summary,
		Feedback:        Feedback(c.Feedback),
	}
	header, err := yaml.Marshal(fm)
	if err != nil {
		return nil, fmt.Errorf("marshal front matter: %w", err)
	}

	var buf bytes.Buffer
	buf.WriteString(frontMatterDelimiter + "\n")
	buf.Write(header)
	buf.WriteString(frontMatterDelimiter + "\n\n")

	buf.WriteString("# Dialogue\n\n")
	switch {
	case len(c.Segments) > 0:
		for _, seg := range c.Segments {
			fmt.Fprintf(&buf, "**[%s]** %s\n\n", offset(c.StartedAt, seg.At), strings.TrimSpace(seg.Text))
		}
	case strings.TrimSpace(c.Transcript) != "":
		buf.WriteString(strings.TrimSpace(c.Transcript) + "\n\n")
	default:
		buf.WriteString("_No speech was transcribed._\n\n")
	}

	buf.WriteString("# Mood Timeline\n\n")
	if len(c.MoodHistory) == 0 {
		buf.WriteString("_No facial expressions were analyzed._\n\n")
	}
	for _, m := range c.MoodHistory {
		fmt.Fprintf(&buf, "- %s %s (%.1f%%)\n", offset(c.StartedAt, m.At), m.Emotion, m.Confidence)
	}
	if len(c.MoodHistory) > 0 {
		buf.WriteString("\n")
	}

	buf.WriteString("# Summary\n\n")
	buf.WriteString(strings.TrimSpace(c.Summary) + "\n")

	return buf.Bytes(), nil
}

// ParseDocument splits a stored document into front matter and body. Documents without
// front matter are returned with the whole content as body.
func ParseDocument(data []byte) (Document, error) {
	text := strings.ReplaceAll(string(data), "\r\n", "\n")
	if !strings.HasPrefix(text, frontMatterDelimiter+"\n") {
		return Document{Body: text}, nil
	}

	rest := text[len(frontMatterDelimiter)+1:]
	end := strings.Index(rest, "\n"+frontMatterDelimiter)
	var header string
	switch {
	case strings.HasPrefix(rest, frontMatterDelimiter):
		header, rest = "", rest[len(frontMatterDelimiter):]
	case end >= 0:
		header, rest = rest[:end+1], rest[end+1+len(frontMatterDelimiter):]
	default:
		return Document{}, fmt.Errorf("%w: unterminated front matter", ErrInvalidDocument)
	}

	var doc Document
	if err := yaml.Unmarshal([]byte(header), &doc.FrontMatter); err != nil {
		return Document{}, fmt.Errorf("%w: %v", ErrInvalidDocument, err)
	}
	doc.Body = strings.TrimLeft(strings.TrimPrefix(rest, "\n"), "\n")
	return doc, nil
}

// Dialogue returns the dialogue of the document: the front matter field when present,
// otherwise the Dialogue section of the body, otherwise the whole body.
func (d Document) Dialogue() string {
	if d.FrontMatter.Dialogue != "" {
		return d.FrontMatter.Dialogue
	}
	if section, ok := d.section("Dialogue"); ok {
		return section
	}
	return strings.TrimSpace(d.Body)
}

// Time returns the parsed document date, or the zero time.
func (d Document) Time() time.Time {
	for _, layout := range []string{time.RFC3339Nano, time.RFC3339, "2006-01-02"} {
		if t, err := time.Parse(layout, d.Date); err == nil {
			return t
		}
	}
	return time.Time{}
}

func (d Document) section(name string) (string, bool) {
	heading := "# " + name
	lines := strings.Split(d.Body, "\n")
	start := -1
	for i, line := range lines {
		if strings.TrimSpace(line) == heading {
			start = i + 1
			break
		}
	}
	if start < 0 {
		return "", false
	}
	end := len(lines)
	for i := start; i < len(lines); i++ {
		if strings.HasPrefix(lines[i], "# ") {
			end = i
			break
		}
	}
	return strings.TrimSpace(strings.Join(lines[start:end], "\n")), true
}

func offset(start, at time.Time) string {
	d := at.Sub(start)
	if d < 0 {
		d = 0
	}
	total := int(d / time.Second)
	return fmt.Sprintf("%02d:%02d", total/60, total%60)
}

func roundSeconds(d time.Duration) float64 {
	return float64(d.Round(100*time.Millisecond)) / float64(time.Second)
}
