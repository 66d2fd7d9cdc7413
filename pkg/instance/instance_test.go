package instance

import "testing"

func TestGetIDPrefersDyno(t *testing.T) {
	t.Setenv("DYNO", "web.1")
	t.Setenv("HOSTNAME", "pod-abc")
	if got := GetID(); got != "web.1" {
		t.Fatalf("expected dyno id, got %q", got)
	}
}

func TestGetIDFallsBack(t *testing.T) {
	t.Setenv("DYNO", "")
	t.Setenv("HOSTNAME", " ")
	if got := GetID(); got != defaultID {
		t.Fatalf("expected %q, got %q", defaultID, got)
	}
}
