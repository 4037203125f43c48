package coaching

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/kvn147/Speak-Easy-Copy/internal/models"
)

func TestBareLabel(t *testing.T) {
	cases := map[string]string{
		"HAPPY (90.0%)":  "HAPPY",
		"CALM":           "CALM",
		"  SAD (12.5%) ": "SAD",
		"":               "",
		NoFaceDetected:   NoFaceDetected,
	}
	for in, want := range cases {
		if got := BareLabel(in); got != want {
			t.Errorf("BareLabel(%q)=%q, want %q", in, got, want)
		}
	}
}

func TestFormatEmotion(t *testing.T) {
	if got := FormatEmotion("HAPPY", 90); got != "HAPPY (90.0%)" {
		t.Fatalf("FormatEmotion=%q", got)
	}
}

func TestGuidance_DefaultsForUnknownLabels(t *testing.T) {
	if Guidance("HAPPY (88.1%)") == defaultGuidance {
		t.Fatal("expected HAPPY to have specific guidance")
	}
	if got := Guidance("BORED"); got != defaultGuidance {
		t.Fatalf("expected default guidance for unknown label, got %q", got)
	}
	if got := Guidance("angry"); got != guidance[EmotionAngry] {
		t.Fatalf("expected label lookup to be case-insensitive, got %q", got)
	}
}

func TestParseSuggestions(t *testing.T) {
	text := "Sure! Here are some options:\n```json\n[\"Ask about their weekend\", \"Smile\", \"Share a story\", \"Nod along\"]\n```"
	got, err := ParseSuggestions(text, 4)
	if err != nil {
		t.Fatalf("ParseSuggestions: %v", err)
	}
	if len(got) != 4 || got[0] != "Ask about their weekend" {
		t.Fatalf("unexpected suggestions: %#v", got)
	}
}

func TestParseSuggestions_RejectsMalformed(t *testing.T) {
	bad := []string{
		"no json here",
		`["one", "two", "three"]`,
		`["one", "two", "three", 4]`,
		`["one", "two", "", "four"]`,
		`{"options": ["a", "b", "c", "d"]`,
		`{"options": ["a", "b", "c", "d"]}`,
		"Here you go: {\"options\": [\"a\", \"b\", \"c\", \"d\"]}",
		`[not valid json]`,
	}
	for _, text := range bad {
		if _, err := ParseSuggestions(text, 4); !errors.Is(err, ErrMalformedResponse) {
			t.Errorf("ParseSuggestions(%q) err=%v, want ErrMalformedResponse", text, err)
		}
	}
}

func TestParseSuggestions_AcceptsBracketsInsideItems(t *testing.T) {
	got, err := ParseSuggestions(`["Ask [gently] about work", "Smile", "Share a story", "Nod along"]`, 4)
	if err != nil {
		t.Fatalf("ParseSuggestions: %v", err)
	}
	if got[0] != "Ask [gently] about work" {
		t.Fatalf("unexpected first suggestion: %q", got[0])
	}
}

func TestDefaultAndFallbackSetsAreValid(t *testing.T) {
	if !ValidSuggestions(DefaultSuggestions()) {
		t.Fatal("default suggestions must be a valid set")
	}
	if !ValidSuggestions(FallbackSuggestions()) {
		t.Fatal("fallback suggestions must be a valid set")
	}
	if ValidSuggestions([]string{"a", "b"}) {
		t.Fatal("a short list must not be valid")
	}
}

func TestBuildAdvicePrompt_IncludesTransitionAndTrail(t *testing.T) {
	at := time.Date(2026, 1, 2, 15, 4, 5, 0, time.UTC)
	prompt := BuildAdvicePrompt(AdviceRequest{
		Emotion:         "SAD (70.0%)",
		EmotionChanged:  true,
		PreviousEmotion: "HAPPY",
		MoodTrail:       []models.MoodEntry{{At: at, Emotion: "SAD", Confidence: 70}},
		Transcript:      "I lost my keys",
	})

	for _, want := range []string{"from HAPPY to SAD", "15:04:05 SAD (70.0%)", "I lost my keys", guidance[EmotionSad]} {
		if !strings.Contains(prompt, want) {
			t.Errorf("prompt missing %q:\n%s", want, prompt)
		}
	}
}

func TestDominantEmotion(t *testing.T) {
	history := []models.MoodEntry{{Emotion: "CALM"}, {Emotion: "HAPPY"}, {Emotion: "HAPPY"}, {Emotion: "CALM"}}
	if got := DominantEmotion(history); got != "HAPPY" {
		t.Fatalf("DominantEmotion=%q, want HAPPY", got)
	}
	if got := DominantEmotion(nil); got != "" {
		t.Fatalf("DominantEmotion(nil)=%q", got)
	}
}

func TestPlaceholderSummary(t *testing.T) {
	got := PlaceholderSummary(90*time.Second, errors.New("boom"))
	if !strings.Contains(got, "1m30s") {
		t.Fatalf("expected duration in placeholder, got %q", got)
	}
}
