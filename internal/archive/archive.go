/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package archive stores finished conversations as per-owner markdown documents.
package archive

import (
	"context"
	"errors"
	"fmt"
	"path"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/kvn147/Speak-Easy-Copy/internal/cache"
	"github.com/kvn147/Speak-Easy-Copy/internal/storage"
	"github.com/kvn147/Speak-Easy-Copy/internal/telemetry"
)

const (
	documentExt         = ".md"
	recordingExt        = ".pcm"
	documentContentType = "text/markdown; charset=utf-8"
	pcmContentType      = "audio/L16"
)

var (
	// ErrConversationNotFound is returned when the owner has no such conversation.
	ErrConversationNotFound = errors.New("conversation not found")
	// ErrInvalidName is returned for owner ids or names that would escape the owner prefix.
	ErrInvalidName = errors.New("invalid conversation name")
)

// Header is one entry of an owner's conversation listing.
type Header struct {
	ID              string    `json:"id"`
	Title           string    `json:"title"`
	Date            time.Time `json:"date"`
	DurationSeconds float64   `json:"duration_seconds,omitempty"`
	DominantEmotion string    `json:"dominant_emotion,omitempty"`
}

// Detail is a parsed conversation document.
type Detail struct {
	ID              string    `json:"id"`
	Title           string    `json:"title"`
	Date            time.Time `json:"date"`
	Dialogue        string    `json:"dialogue"`
	Feedback        []string  `json:"feedback"`
	Summary         string    `json:"summary"`
	DurationSeconds float64   `json:"duration_seconds,omitempty"`
	FramesAnalyzed  int       `json:"frames_analyzed,omitempty"`
	DominantEmotion string    `json:"dominant_emotion,omitempty"`
}

// ListingCache caches per-owner listings.
type ListingCache interface {
	GetConversationList(ctx context.Context, ownerID string) ([]cache.CachedConversation, bool)
	SetConversationList(ctx context.Context, ownerID string, list []cache.CachedConversation) error
	InvalidateConversationList(ctx context.Context, ownerID string) error
}

// Option configures a Service.
type Option func(*Service)

// WithCatalog indexes saved conversations and serves listings from the catalog.
func WithCatalog(c *Catalog) Option {
	return func(s *Service) { s.catalog = c }
}

// WithCache caches listings and invalidates them on save.
func WithCache(c ListingCache) Option {
	return func(s *Service) { s.cache = c }
}

// Service reads and writes conversation documents under <owner>/<name>.
type Service struct {
	store   storage.ObjectStore
	catalog *Catalog
	cache   ListingCache
	logger  zerolog.Logger
}

// NewService creates an archive over store.
func NewService(store storage.ObjectStore, logger zerolog.Logger, opts ...Option) *Service {
	s := &Service{
		store:  store,
		logger: logger.With().Str("component", "archive").Logger(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Put stores raw document content for an owner.
func (s *Service) Put(ctx context.Context, ownerID, name string, content []byte) error {
	key, err := documentKey(ownerID, name)
	if err != nil {
		return err
	}
	if err := s.store.Put(ctx, key, content, documentContentType); err != nil {
		return fmt.Errorf("put %s: %w", key, err)
	}
	s.invalidate(ctx, ownerID)
	return nil
}

// Get returns raw document content, or ErrConversationNotFound.
func (s *Service) Get(ctx context.Context, ownerID, name string) ([]byte, error) {
	key, err := documentKey(ownerID, name)
	if err != nil {
		return nil, err
	}
	data, err := s.store.Get(ctx, key)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, ErrConversationNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", key, err)
	}
	return data, nil
}

// List returns the document names of an owner, newest first.
func (s *Service) List(ctx context.Context, ownerID string) ([]string, error) {
	objects, err := s.documents(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(objects))
	for _, obj := range objects {
		names = append(names, strings.TrimSuffix(path.Base(obj.Key), documentExt))
	}
	return names, nil
}

// SaveConversation renders and stores c and returns its id. An id is generated when c
// has none.
func (s *Service) SaveConversation(ctx context.Context, c Conversation) (string, error) {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	key, err := documentKey(c.OwnerID, c.ID)
	if err != nil {
		return "", err
	}

	doc, err := RenderDocument(c)
	if err != nil {
		return "", err
	}
	if err := s.store.Put(ctx, key, doc, documentContentType); err != nil {
		telemetry.ArchiveWritesTotal.WithLabelValues("conversation", "error").Inc()
		return "", fmt.Errorf("store conversation %s: %w", c.ID, err)
	}
	telemetry.ArchiveWritesTotal.WithLabelValues("conversation", "ok").Inc()

	if s.catalog != nil {
		if err := s.catalog.Record(ctx, c, key); err != nil {
			// The document is the source of truth; the catalog can be rebuilt.
			s.logger.Warn().Err(err).Str("conversation_id", c.ID).Msg("catalog write failed")
		}
	}
	s.invalidate(ctx, c.OwnerID)

	s.logger.Debug().Str("owner_id", c.OwnerID).Str("key", key).Int("bytes", len(doc)).Msg("conversation stored")
	return c.ID, nil
}

// SaveRecording stores raw PCM audio next to the conversation document.
func (s *Service) SaveRecording(ctx context.Context, ownerID, conversationID string, pcm []byte) (string, error) {
	if conversationID == "" {
		conversationID = uuid.NewString()
	}
	if err := validateSegment(ownerID); err != nil {
		return "", err
	}
	if err := validateSegment(conversationID); err != nil {
		return "", err
	}
	key := ownerID + "/" + conversationID + recordingExt
	if err := s.store.Put(ctx, key, pcm, pcmContentType); err != nil {
		telemetry.ArchiveWritesTotal.WithLabelValues("recording", "error").Inc()
		return "", fmt.Errorf("store recording %s: %w", key, err)
	}
	telemetry.ArchiveWritesTotal.WithLabelValues("recording", "ok").Inc()
	return key, nil
}

// Conversations lists an owner's conversations, newest first.
func (s *Service) Conversations(ctx context.Context, ownerID string) ([]Header, error) {
	if err := validateSegment(ownerID); err != nil {
		return nil, err
	}

	if s.cache != nil {
		if cached, ok := s.cache.GetConversationList(ctx, ownerID); ok {
			return fromCached(cached), nil
		}
	}

	var (
		headers []Header
		err     error
	)
	if s.catalog != nil {
		headers, err = s.catalog.List(ctx, ownerID)
	} else {
		headers, err = s.scan(ctx, ownerID)
	}
	if err != nil {
		return nil, err
	}

	if s.cache != nil {
		if err := s.cache.SetConversationList(ctx, ownerID, toCached(headers)); err != nil {
			s.logger.Debug().Err(err).Str("owner_id", ownerID).Msg("listing cache write failed")
		}
	}
	return headers, nil
}

// Conversation returns the parsed document id of ownerID.
func (s *Service) Conversation(ctx context.Context, ownerID, id string) (Detail, error) {
	data, err := s.Get(ctx, ownerID, id)
	if err != nil {
		return Detail{}, err
	}
	doc, err := ParseDocument(data)
	if err != nil {
		return Detail{}, err
	}

	title := doc.Title
	if title == "" {
		title = id
	}
	feedback := []string(doc.Feedback)
	if feedback == nil {
		feedback = []string{}
	}
	summary := doc.Summary
	if summary == "" {
		summary, _ = doc.section("Summary")
	}
	return Detail{
		ID:              id,
		Title:           title,
		Date:            doc.Time(),
		Dialogue:        doc.Dialogue(),
		Feedback:        feedback,
		Summary:         summary,
		DurationSeconds: doc.DurationSeconds,
		FramesAnalyzed:  doc.FramesAnalyzed,
		DominantEmotion: doc.DominantEmotion,
	}, nil
}

// scan builds headers by reading every document of the owner.
func (s *Service) scan(ctx context.Context, ownerID string) ([]Header, error) {
	objects, err := s.documents(ctx, ownerID)
	if err != nil {
		return nil, err
	}

	headers := make([]Header, 0, len(objects))
	for _, obj := range objects {
		id := strings.TrimSuffix(path.Base(obj.Key), documentExt)
		h := Header{ID: id, Title: id, Date: obj.LastModified}

		data, err := s.store.Get(ctx, obj.Key)
		if errors.Is(err, storage.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", obj.Key, err)
		}
		doc, err := ParseDocument(data)
		if err != nil {
			s.logger.Warn().Err(err).Str("key", obj.Key).Msg("skipping unparseable conversation header")
		} else {
			if doc.Title != "" {
				h.Title = doc.Title
			}
			if t := doc.Time(); !t.IsZero() {
				h.Date = t
			}
			h.DurationSeconds = doc.DurationSeconds
			h.DominantEmotion = doc.DominantEmotion
		}
		headers = append(headers, h)
	}

	sort.SliceStable(headers, func(i, j int) bool {
		return headers[i].Date.After(headers[j].Date)
	})
	return headers, nil
}

// documents lists an owner's .md objects, newest first.
func (s *Service) documents(ctx context.Context, ownerID string) ([]storage.ObjectInfo, error) {
	if err := validateSegment(ownerID); err != nil {
		return nil, err
	}
	objects, err := s.store.List(ctx, ownerID+"/")
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", ownerID, err)
	}

	docs := objects[:0]
	for _, obj := range objects {
		if strings.HasSuffix(obj.Key, documentExt) {
			docs = append(docs, obj)
		}
	}
	sort.SliceStable(docs, func(i, j int) bool {
		return docs[i].LastModified.After(docs[j].LastModified)
	})
	return docs, nil
}

func (s *Service) invalidate(ctx context.Context, ownerID string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.InvalidateConversationList(ctx, ownerID); err != nil {
		s.logger.Debug().Err(err).Str("owner_id", ownerID).Msg("listing cache invalidation failed")
	}
}

func documentKey(ownerID, name string) (string, error) {
	name = strings.TrimSuffix(name, documentExt)
	if err := validateSegment(ownerID); err != nil {
		return "", err
	}
	if err := validateSegment(name); err != nil {
		return "", err
	}
	return ownerID + "/" + name + documentExt, nil
}

func validateSegment(s string) error {
	if s == "" || s == "." || s == ".." || strings.ContainsAny(s, "/\\") {
		return fmt.Errorf("%w: %q", ErrInvalidName, s)
	}
	return nil
}

func toCached(headers []Header) []cache.CachedConversation {
	out := make([]cache.CachedConversation, 0, len(headers))
	for _, h := range headers {
		out = append(out, cache.CachedConversation(h))
	}
	return out
}

func fromCached(list []cache.CachedConversation) []Header {
	out := make([]Header, 0, len(list))
	for _, c := range list {
		out = append(out, Header(c))
	}
	return out
}
