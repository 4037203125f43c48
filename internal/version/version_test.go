package version

import "testing"

func TestCommitNeverEmpty(t *testing.T) {
	if Commit() == "" {
		t.Fatal("expected a revision or \"unknown\"")
	}
	if Version == "" {
		t.Fatal("expected a default version")
	}
}
