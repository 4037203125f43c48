package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/kvn147/Speak-Easy-Copy/internal/analysis"
	"github.com/kvn147/Speak-Easy-Copy/internal/archive"
	"github.com/kvn147/Speak-Easy-Copy/internal/coaching"
	"github.com/kvn147/Speak-Easy-Copy/internal/events"
)

var t0 = time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock(at time.Time) *fakeClock { return &fakeClock{now: at} }

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Set(at time.Time) {
	c.mu.Lock()
	c.now = at
	c.mu.Unlock()
}

type fakeDetector struct {
	mu      sync.Mutex
	calls   int
	results [][]analysis.Face
	err     error
	release chan struct{}
}

func (d *fakeDetector) Detect(ctx context.Context, _ []byte) ([]analysis.Face, error) {
	if d.release != nil {
		<-d.release
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.calls++
	if d.err != nil {
		return nil, d.err
	}
	if len(d.results) == 0 {
		return nil, nil
	}
	faces := d.results[0]
	d.results = d.results[1:]
	return faces, nil
}

func (d *fakeDetector) Calls() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.calls
}

func face(label string, confidence float64) []analysis.Face {
	return []analysis.Face{{DominantLabel: label, Confidence: confidence}}
}

type fakeTranscriber struct {
	mu      sync.Mutex
	calls   int
	bytes   []int
	parts   []int
	results [][]analysis.TranscriptResult
	err     error
}

func (f *fakeTranscriber) Transcribe(_ context.Context, audio <-chan []byte, _ analysis.AudioFormat, fn func(analysis.TranscriptResult)) error {
	total, parts := 0, 0
	for chunk := range audio {
		total += len(chunk)
		parts++
	}

	f.mu.Lock()
	f.calls++
	f.bytes = append(f.bytes, total)
	f.parts = append(f.parts, parts)
	err := f.err
	var results []analysis.TranscriptResult
	if len(f.results) > 0 {
		results = f.results[0]
		f.results = f.results[1:]
	}
	f.mu.Unlock()

	if err != nil {
		return err
	}
	for _, r := range results {
		fn(r)
	}
	return nil
}

func (f *fakeTranscriber) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func final(text string) analysis.TranscriptResult {
	return analysis.TranscriptResult{Text: text, IsFinal: true}
}

type fakeAdvisor struct {
	mu       sync.Mutex
	requests []coaching.AdviceRequest
	options  []string
	err      error
}

func (a *fakeAdvisor) GenerateAdvice(_ context.Context, req coaching.AdviceRequest) ([]string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.requests = append(a.requests, req)
	if a.err != nil {
		return nil, a.err
	}
	if a.options != nil {
		return a.options, nil
	}
	return []string{"one", "two", "three", "four"}, nil
}

func (a *fakeAdvisor) Requests() []coaching.AdviceRequest {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]coaching.AdviceRequest(nil), a.requests...)
}

type fakeSummarizer struct {
	text string
	err  error
}

func (s fakeSummarizer) Summarize(context.Context, coaching.SummaryRequest) (string, error) {
	return s.text, s.err
}

type fakeArchive struct {
	mu            sync.Mutex
	conversations []archive.Conversation
	recordings    map[string][]byte
	err           error
}

func (a *fakeArchive) SaveConversation(_ context.Context, c archive.Conversation) (string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.err != nil {
		return "", a.err
	}
	a.conversations = append(a.conversations, c)
	return c.ID, nil
}

func (a *fakeArchive) SaveRecording(_ context.Context, ownerID, conversationID string, pcm []byte) (string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.recordings == nil {
		a.recordings = make(map[string][]byte)
	}
	key := ownerID + "/" + conversationID + ".pcm"
	a.recordings[key] = pcm
	return key, nil
}

func (a *fakeArchive) Conversations() []archive.Conversation {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]archive.Conversation(nil), a.conversations...)
}

type notification struct {
	kind string
	data any
}

type recordingEmitter struct {
	mu    sync.Mutex
	items []notification
}

func (e *recordingEmitter) Emit(kind string, data any) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.items = append(e.items, notification{kind: kind, data: data})
}

func (e *recordingEmitter) Of(kind string) []any {
	e.mu.Lock()
	defer e.mu.Unlock()
	var out []any
	for _, n := range e.items {
		if n.kind == kind {
			out = append(out, n.data)
		}
	}
	return out
}

type harness struct {
	m           *Manager
	clock       *fakeClock
	detector    *fakeDetector
	transcriber *fakeTranscriber
	advisor     *fakeAdvisor
	archive     *fakeArchive
	bus         *events.Bus
	emitter     *recordingEmitter
}

func newHarness(mutate func(*Config)) *harness {
	cfg := DefaultConfig()
	cfg.FinalizeDelay = 0
	if mutate != nil {
		mutate(&cfg)
	}
	h := &harness{
		clock:       newFakeClock(t0),
		detector:    &fakeDetector{},
		transcriber: &fakeTranscriber{},
		advisor:     &fakeAdvisor{},
		archive:     &fakeArchive{},
		bus:         events.NewBus(),
		emitter:     &recordingEmitter{},
	}
	h.m = NewManager(cfg, Deps{
		Detector:    h.detector,
		Transcriber: h.transcriber,
		Advisor:     h.advisor,
		Summarizer:  fakeSummarizer{text: "## Overview\nA short chat."},
		Archive:     h.archive,
		Events:      h.bus,
		Clock:       h.clock.Now,
		Logger:      zerolog.Nop(),
	})
	return h
}

func (h *harness) start(connID string) *Session {
	return h.m.Start(connID, "user-1", "", h.emitter, t0)
}

var errBoom = errors.New("boom")

// gatedDetector returns a fixed result per frame and holds each call until its gate closes.
type gatedDetector struct {
	gates   map[string]chan struct{}
	results map[string][]analysis.Face
}

func (d *gatedDetector) Detect(ctx context.Context, frame []byte) ([]analysis.Face, error) {
	select {
	case <-d.gates[string(frame)]:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	return d.results[string(frame)], nil
}
