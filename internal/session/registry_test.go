package session

import (
	"sync"
	"testing"
	"time"

	"github.com/kvn147/Speak-Easy-Copy/internal/models"
)

func segmentAt(at time.Time, text string) models.TranscriptSegment {
	return models.TranscriptSegment{At: at, Text: text}
}

func TestRegistry_AddGetRemove(t *testing.T) {
	r := NewRegistry()
	s := newSession("c1", "u", nil, t0)

	if got, added := r.Add(s); !added || got != s {
		t.Fatal("expected session to be added")
	}
	other := newSession("c1", "u2", nil, t0)
	if got, added := r.Add(other); added || got != s {
		t.Fatal("expected existing session to win")
	}
	if !r.Holds(s) || r.Holds(other) {
		t.Fatal("Holds should only match the registered instance")
	}
	if got, ok := r.Remove("c1"); !ok || got != s {
		t.Fatal("expected removal of registered session")
	}
	if _, ok := r.Remove("c1"); ok {
		t.Fatal("second removal must be a no-op")
	}
	if r.Len() != 0 {
		t.Fatalf("expected empty registry, got %d", r.Len())
	}
}

func TestRegistry_ConcurrentAccess(t *testing.T) {
	r := NewRegistry()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			id := string(rune('a' + i%26))
			r.Add(newSession(id, "u", nil, t0))
			r.Get(id)
			r.Remove(id)
		}(i)
	}
	wg.Wait()
}
