package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	ws "nhooyr.io/websocket"

	"github.com/kvn147/Speak-Easy-Copy/internal/auth"
	"github.com/kvn147/Speak-Easy-Copy/internal/config"
)

const testSigningKey = "server-test-key"

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	return &config.Config{
		Environment:        "test",
		HTTPBind:           "127.0.0.1",
		HTTPPort:           0,
		JWTSigningKey:      testSigningKey,
		DefaultUserID:      "anonymous",
		DBBackend:          config.DatabaseSQLite,
		DBDSN:              ":memory:",
		DataRoot:           t.TempDir(),
		AWSRegion:          "us-east-1",
		AWSAccessKeyID:     "test",
		AWSSecretAccessKey: "test",
		FrameInterval:      2 * time.Second,
		AudioInterval:      6 * time.Second,
		MinAudioChunks:     15,
		AdviceCooldown:     15 * time.Second,
		Retention:          60 * time.Second,
		AdviceWindow:       30 * time.Second,
		AudioSubChunkSize:  8192,
		SampleRateHz:       48000,
		LanguageCode:       "en-US",
		FinalizeDelay:      10 * time.Millisecond,
		CallTimeout:        5 * time.Second,
		WSReadLimit:        1 << 20,
		EventBus:           config.EventBusMemory,
	}
}

func newTestServer(t *testing.T) (*Server, *httptest.Server) {
	t.Helper()
	srv, err := New(testConfig(t), zerolog.Nop())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(func() {
		ts.Close()
		if err := srv.Close(); err != nil {
			t.Errorf("Close: %v", err)
		}
	})
	return srv, ts
}

func TestHealthz(t *testing.T) {
	_, ts := newTestServer(t)

	resp, err := http.Get(ts.URL + "/healthz")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	var body map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body["status"] != "ok" || body["active_sessions"] != float64(0) {
		t.Fatalf("unexpected health body: %v", body)
	}
}

func TestConversationsRequireAuth(t *testing.T) {
	_, ts := newTestServer(t)

	resp, err := http.Get(ts.URL + "/api/v1/conversations")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", resp.StatusCode)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	_, ts := newTestServer(t)

	resp, err := http.Get(ts.URL + "/metrics")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
}

// TestSessionArchivedAndListed drives a session over the websocket and reads the saved
// conversation back through the REST API.
func TestSessionArchivedAndListed(t *testing.T) {
	srv, ts := newTestServer(t)

	token, err := auth.Issue([]byte(testSigningKey), auth.Claims{UserID: "u1"}, time.Hour)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + auth.StreamPath + "?token=" + token
	conn, _, err := ws.Dial(ctx, wsURL, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close(ws.StatusNormalClosure, "")

	// No userId in stream-start: the token supplies the owner.
	if err := conn.Write(ctx, ws.MessageText, []byte(`{"type":"stream-start"}`)); err != nil {
		t.Fatalf("write start: %v", err)
	}
	ready := readUntil(t, ctx, conn, "stream-ready")
	if data, _ := ready["data"].(map[string]any); data["userId"] != "u1" {
		t.Fatalf("expected token owner, got %v", ready["data"])
	}
	if n := srv.sessions.ActiveSessions(); n != 1 {
		t.Fatalf("expected one active session, got %d", n)
	}

	if err := conn.Write(ctx, ws.MessageText, []byte(`{"type":"stream-stop"}`)); err != nil {
		t.Fatalf("write stop: %v", err)
	}
	saved := readUntil(t, ctx, conn, "conversation-saved")
	data, _ := saved["data"].(map[string]any)
	id, _ := data["id"].(string)
	if id == "" {
		t.Fatalf("expected conversation id, got %v", saved)
	}

	req, _ := http.NewRequest(http.MethodGet, ts.URL+"/api/v1/conversations", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	var list []map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&list); err != nil {
		t.Fatalf("decode list: %v", err)
	}
	if len(list) != 1 || list[0]["id"] != id {
		t.Fatalf("expected saved conversation in listing, got %v", list)
	}
}

func TestShutdownHandsBackLiveSessions(t *testing.T) {
	srv, ts := newTestServer(t)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	conn, _, err := ws.Dial(ctx, "ws"+strings.TrimPrefix(ts.URL, "http")+auth.StreamPath, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close(ws.StatusNormalClosure, "")

	if err := conn.Write(ctx, ws.MessageText, []byte(`{"type":"stream-start","data":{"userId":"u2"}}`)); err != nil {
		t.Fatalf("write start: %v", err)
	}
	readUntil(t, ctx, conn, "stream-ready")

	if err := srv.Shutdown(ctx); err != nil {
		t.Fatalf("Shutdown: %v", err)
	}
	if n := srv.sessions.ActiveSessions(); n != 0 {
		t.Fatalf("expected no live sessions after shutdown, got %d", n)
	}
}

func readUntil(t *testing.T, ctx context.Context, conn *ws.Conn, want string) map[string]any {
	t.Helper()
	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			t.Fatalf("waiting for %s: %v", want, err)
		}
		var env map[string]any
		if err := json.Unmarshal(data, &env); err != nil {
			t.Fatalf("decode %q: %v", data, err)
		}
		if env["type"] == want {
			return env
		}
	}
}
