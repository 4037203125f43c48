package archive

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"gorm.io/gorm/logger"

	"github.com/kvn147/Speak-Easy-Copy/internal/cache"
	"github.com/kvn147/Speak-Easy-Copy/internal/config"
	"github.com/kvn147/Speak-Easy-Copy/internal/db"
	"github.com/kvn147/Speak-Easy-Copy/internal/models"
	"github.com/kvn147/Speak-Easy-Copy/internal/storage"
)

var start = time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC)

func sampleConversation(id string, at time.Time) Conversation {
	return Conversation{
		ID:              id,
		OwnerID:         "user-1",
		Title:           "Conversation " + id,
		StartedAt:       at,
		Duration:        95 * time.Second,
		FramesAnalyzed:  12,
		DominantEmotion: "HAPPY",
		Summary:         "Friendly chat about weekend plans.",
		Feedback:        []string{"Ask a follow-up", "Share a story", "Mirror their energy", "Smile"},
		Transcript:      "hello there how are you",
		Segments: []models.TranscriptSegment{
			{At: at.Add(5 * time.Second), Text: "hello there"},
			{At: at.Add(72 * time.Second), Text: "how are you"},
		},
		MoodHistory: []models.MoodEntry{
			{At: at.Add(2 * time.Second), Emotion: "HAPPY", Confidence: 91.25},
		},
	}
}

func newTestService(t *testing.T, opts ...Option) (*Service, *storage.FilesystemStore) {
	t.Helper()
	store := storage.NewFilesystemStore(t.TempDir(), zerolog.Nop())
	return NewService(store, zerolog.Nop(), opts...), store
}

func TestRenderAndParseDocument(t *testing.T) {
	doc, err := RenderDocument(sampleConversation("c1", start))
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	text := string(doc)
	for _, want := range []string{"# Dialogue", "**[00:05]** hello there", "**[01:12]** how are you", "# Mood Timeline", "- 00:02 HAPPY (91.2%)", "# Summary"} {
		if !strings.Contains(text, want) {
			t.Fatalf("rendered document missing %q:\n%s", want, text)
		}
	}

	parsed, err := ParseDocument(doc)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if parsed.Title != "Conversation c1" || parsed.DominantEmotion != "HAPPY" || parsed.FramesAnalyzed != 12 {
		t.Fatalf("unexpected front matter: %+v", parsed.FrontMatter)
	}
	if !parsed.Time().Equal(start) {
		t.Fatalf("unexpected date: %v", parsed.Time())
	}
	if parsed.DurationSeconds != 95 {
		t.Fatalf("unexpected duration: %v", parsed.DurationSeconds)
	}
	if len(parsed.Feedback) != 4 {
		t.Fatalf("unexpected feedback: %v", parsed.Feedback)
	}
	dialogue := parsed.Dialogue()
	if !strings.Contains(dialogue, "hello there") || strings.Contains(dialogue, "Mood Timeline") {
		t.Fatalf("unexpected dialogue section: %q", dialogue)
	}
}

func TestRenderEmptySession(t *testing.T) {
	doc, err := RenderDocument(Conversation{ID: "c0", OwnerID: "u", Title: "Empty", StartedAt: start, Summary: "Nothing happened."})
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if !strings.Contains(string(doc), "_No speech was transcribed._") {
		t.Fatalf("expected empty dialogue marker:\n%s", doc)
	}
}

func TestParseHandWrittenDocument(t *testing.T) {
	data := []byte("---\ntitle: Welcome Conversation\ndate: 2026-01-05T10:00:00Z\nsummary: Intro\nfeedback: Great first conversation!\n---\n\n## User\nHello!\n")
	doc, err := ParseDocument(data)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(doc.Feedback) != 1 || doc.Feedback[0] != "Great first conversation!" {
		t.Fatalf("expected scalar feedback as single item, got %v", doc.Feedback)
	}
	if got := doc.Dialogue(); !strings.HasPrefix(got, "## User") {
		t.Fatalf("expected whole body as dialogue, got %q", got)
	}
}

func TestParseDocumentWithoutFrontMatter(t *testing.T) {
	doc, err := ParseDocument([]byte("just text"))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if doc.Body != "just text" || doc.Title != "" {
		t.Fatalf("unexpected document: %+v", doc)
	}

	if _, err := ParseDocument([]byte("---\ntitle: x\n")); !errors.Is(err, ErrInvalidDocument) {
		t.Fatalf("expected ErrInvalidDocument, got %v", err)
	}
}

func TestServiceSaveAndRead(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()

	id, err := svc.SaveConversation(ctx, sampleConversation("c1", start))
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	if id != "c1" {
		t.Fatalf("expected provided id, got %q", id)
	}
	if _, err := store.Get(ctx, "user-1/c1.md"); err != nil {
		t.Fatalf("expected document at owner key: %v", err)
	}

	detail, err := svc.Conversation(ctx, "user-1", "c1")
	if err != nil {
		t.Fatalf("conversation: %v", err)
	}
	if detail.Title != "Conversation c1" || detail.Summary != "Friendly chat about weekend plans." {
		t.Fatalf("unexpected detail: %+v", detail)
	}
	if len(detail.Feedback) != 4 || !strings.Contains(detail.Dialogue, "how are you") {
		t.Fatalf("unexpected detail body: %+v", detail)
	}
}

func TestServiceGeneratesID(t *testing.T) {
	svc, _ := newTestService(t)
	conv := sampleConversation("", start)

	id, err := svc.SaveConversation(context.Background(), conv)
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	if id == "" {
		t.Fatal("expected generated id")
	}
}

func TestServiceMissingConversation(t *testing.T) {
	svc, _ := newTestService(t)

	if _, err := svc.Conversation(context.Background(), "user-1", "nope"); !errors.Is(err, ErrConversationNotFound) {
		t.Fatalf("expected ErrConversationNotFound, got %v", err)
	}
	if _, err := svc.Get(context.Background(), "other", "c1"); !errors.Is(err, ErrConversationNotFound) {
		t.Fatalf("expected ErrConversationNotFound, got %v", err)
	}
}

func TestServiceRejectsEscapingNames(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	if _, err := svc.Get(ctx, "user-1", "../user-2/c1"); !errors.Is(err, ErrInvalidName) {
		t.Fatalf("expected ErrInvalidName, got %v", err)
	}
	if _, err := svc.Conversations(ctx, ".."); !errors.Is(err, ErrInvalidName) {
		t.Fatalf("expected ErrInvalidName, got %v", err)
	}
}

func TestServiceListsNewestFirstAndSkipsRecordings(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	for i, id := range []string{"older", "newer"} {
		if _, err := svc.SaveConversation(ctx, sampleConversation(id, start.Add(time.Duration(i)*time.Hour))); err != nil {
			t.Fatalf("save %s: %v", id, err)
		}
	}
	key, err := svc.SaveRecording(ctx, "user-1", "newer", []byte{1, 2, 3, 4})
	if err != nil {
		t.Fatalf("save recording: %v", err)
	}
	if key != "user-1/newer.pcm" {
		t.Fatalf("unexpected recording key: %q", key)
	}
	if err := svc.Put(ctx, "user-2", "theirs", []byte("---\ntitle: Theirs\n---\n")); err != nil {
		t.Fatalf("put: %v", err)
	}

	names, err := svc.List(ctx, "user-1")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(names) != 2 {
		t.Fatalf("expected two documents, got %v", names)
	}

	headers, err := svc.Conversations(ctx, "user-1")
	if err != nil {
		t.Fatalf("conversations: %v", err)
	}
	if len(headers) != 2 || headers[0].ID != "newer" || headers[1].ID != "older" {
		t.Fatalf("expected newest first, got %+v", headers)
	}
}

func TestServiceCatalogListing(t *testing.T) {
	database, err := db.Open(config.DatabaseSQLite, ":memory:", logger.Silent)
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	defer db.Close(database)
	if err := db.Migrate(database); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	svc, _ := newTestService(t, WithCatalog(NewCatalog(database)))
	ctx := context.Background()

	for i, id := range []string{"a", "b", "c"} {
		if _, err := svc.SaveConversation(ctx, sampleConversation(id, start.Add(time.Duration(i)*time.Minute))); err != nil {
			t.Fatalf("save %s: %v", id, err)
		}
	}
	// Saving again upserts rather than duplicating.
	if _, err := svc.SaveConversation(ctx, sampleConversation("a", start)); err != nil {
		t.Fatalf("resave: %v", err)
	}

	headers, err := svc.Conversations(ctx, "user-1")
	if err != nil {
		t.Fatalf("conversations: %v", err)
	}
	if len(headers) != 3 || headers[0].ID != "c" || headers[2].ID != "a" {
		t.Fatalf("unexpected catalog listing: %+v", headers)
	}
	if headers[0].DurationSeconds != 95 || headers[0].DominantEmotion != "HAPPY" {
		t.Fatalf("unexpected catalog header: %+v", headers[0])
	}
}

type fakeListingCache struct {
	lists       map[string][]cache.CachedConversation
	invalidated []string
}

func (f *fakeListingCache) GetConversationList(_ context.Context, ownerID string) ([]cache.CachedConversation, bool) {
	list, ok := f.lists[ownerID]
	return list, ok
}

func (f *fakeListingCache) SetConversationList(_ context.Context, ownerID string, list []cache.CachedConversation) error {
	f.lists[ownerID] = list
	return nil
}

func (f *fakeListingCache) InvalidateConversationList(_ context.Context, ownerID string) error {
	f.invalidated = append(f.invalidated, ownerID)
	delete(f.lists, ownerID)
	return nil
}

func TestServiceListingCache(t *testing.T) {
	fc := &fakeListingCache{lists: map[string][]cache.CachedConversation{}}
	svc, _ := newTestService(t, WithCache(fc))
	ctx := context.Background()

	if _, err := svc.SaveConversation(ctx, sampleConversation("c1", start)); err != nil {
		t.Fatalf("save: %v", err)
	}
	if len(fc.invalidated) != 1 || fc.invalidated[0] != "user-1" {
		t.Fatalf("expected invalidation on save, got %v", fc.invalidated)
	}

	if _, err := svc.Conversations(ctx, "user-1"); err != nil {
		t.Fatalf("conversations: %v", err)
	}
	if len(fc.lists["user-1"]) != 1 {
		t.Fatalf("expected listing to be cached, got %v", fc.lists)
	}

	fc.lists["user-1"] = []cache.CachedConversation{{ID: "cached", Title: "From cache"}}
	headers, err := svc.Conversations(ctx, "user-1")
	if err != nil {
		t.Fatalf("conversations: %v", err)
	}
	if len(headers) != 1 || headers[0].ID != "cached" {
		t.Fatalf("expected cached listing, got %+v", headers)
	}
}
