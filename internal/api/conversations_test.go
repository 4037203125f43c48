package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/kvn147/Speak-Easy-Copy/internal/archive"
	"github.com/kvn147/Speak-Easy-Copy/internal/auth"
	"github.com/kvn147/Speak-Easy-Copy/internal/storage"
)

var testSecret = []byte("api-test-secret")

func newTestRouter(t *testing.T, conversations Conversations) chi.Router {
	t.Helper()
	r := chi.NewRouter()
	New(conversations, auth.NewVerifier(testSecret), zerolog.Nop()).Routes(r)
	return r
}

func tokenFor(t *testing.T, owner string) string {
	t.Helper()
	token, err := auth.Issue(testSecret, auth.Claims{UserID: owner}, time.Hour)
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}
	return token
}

func doGet(r http.Handler, path, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)
	return rr
}

func seededArchive(t *testing.T) *archive.Service {
	t.Helper()
	svc := archive.NewService(storage.NewFilesystemStore(t.TempDir(), zerolog.Nop()), zerolog.Nop())
	base := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	for i, id := range []string{"first", "second"} {
		_, err := svc.SaveConversation(context.Background(), archive.Conversation{
			ID:         id,
			OwnerID:    "alice",
			Title:      "Talk " + id,
			StartedAt:  base.Add(time.Duration(i) * time.Hour),
			Duration:   30 * time.Second,
			Summary:    "Summary of " + id,
			Feedback:   []string{"Keep going"},
			Transcript: "hi",
		})
		if err != nil {
			t.Fatalf("seed %s: %v", id, err)
		}
	}
	return svc
}

func TestConversationsRequireToken(t *testing.T) {
	r := newTestRouter(t, seededArchive(t))

	for _, path := range []string{"/api/v1/conversations", "/api/v1/conversations/first"} {
		rr := doGet(r, path, "")
		if rr.Code != http.StatusUnauthorized {
			t.Fatalf("%s: expected 401, got %d", path, rr.Code)
		}
		rr = doGet(r, path, "not-a-token")
		if rr.Code != http.StatusUnauthorized {
			t.Fatalf("%s with bad token: expected 401, got %d", path, rr.Code)
		}
	}
}

func TestConversationsListNewestFirst(t *testing.T) {
	r := newTestRouter(t, seededArchive(t))

	rr := doGet(r, "/api/v1/conversations", tokenFor(t, "alice"))
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d body=%s", rr.Code, rr.Body.String())
	}
	var list []map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &list); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(list) != 2 || list[0]["id"] != "second" || list[1]["id"] != "first" {
		t.Fatalf("unexpected listing: %v", list)
	}
	if list[0]["title"] != "Talk second" || list[0]["date"] == nil {
		t.Fatalf("expected title and date in listing: %v", list[0])
	}
}

func TestConversationsListEmptyForOtherOwner(t *testing.T) {
	r := newTestRouter(t, seededArchive(t))

	rr := doGet(r, "/api/v1/conversations", tokenFor(t, "bob"))
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	if body := rr.Body.String(); body != "[]\n" {
		t.Fatalf("expected empty array, got %q", body)
	}
}

func TestConversationDetail(t *testing.T) {
	r := newTestRouter(t, seededArchive(t))

	rr := doGet(r, "/api/v1/conversations/first", tokenFor(t, "alice"))
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d body=%s", rr.Code, rr.Body.String())
	}
	var detail archive.Detail
	if err := json.Unmarshal(rr.Body.Bytes(), &detail); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if detail.ID != "first" || detail.Summary != "Summary of first" || len(detail.Feedback) != 1 {
		t.Fatalf("unexpected detail: %+v", detail)
	}

	// Another owner cannot read it.
	rr = doGet(r, "/api/v1/conversations/first", tokenFor(t, "bob"))
	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for other owner, got %d", rr.Code)
	}
}

func TestConversationDetailMissing(t *testing.T) {
	r := newTestRouter(t, seededArchive(t))

	rr := doGet(r, "/api/v1/conversations/nope", tokenFor(t, "alice"))
	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rr.Code)
	}
	var body map[string]string
	_ = json.Unmarshal(rr.Body.Bytes(), &body)
	if body["error"] != "conversation_not_found" {
		t.Fatalf("unexpected error body: %v", body)
	}
}

type failingConversations struct{}

func (failingConversations) Conversations(context.Context, string) ([]archive.Header, error) {
	return nil, errors.New("storage down")
}

func (failingConversations) Conversation(context.Context, string, string) (archive.Detail, error) {
	return archive.Detail{}, archive.ErrInvalidName
}

func TestConversationsErrors(t *testing.T) {
	r := newTestRouter(t, failingConversations{})
	token := tokenFor(t, "alice")

	if rr := doGet(r, "/api/v1/conversations", token); rr.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rr.Code)
	}
	if rr := doGet(r, "/api/v1/conversations/x", token); rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rr.Code)
	}
}
