package faults

import (
	"errors"
	"fmt"
	"testing"
)

func TestKindOfWrapped(t *testing.T) {
	base := New(Remote, "a.jpg", "404 model not found", nil)
	wrapped := fmt.Errorf("recognize: %w", base)

	if got := KindOf(wrapped); got != Remote {
		t.Fatalf("kind = %v, want remote", got)
	}
	if !Is(wrapped, Remote) {
		t.Fatalf("expected Is(remote)")
	}
	if Is(nil, Remote) {
		t.Fatalf("nil error must not match any kind")
	}
	if got := KindOf(errors.New("boom")); got != Unexpected {
		t.Fatalf("kind = %v, want unexpected", got)
	}
}

func TestErrorMessage(t *testing.T) {
	if got := New(Remote, "", "500 oops", nil).Error(); got != "500 oops" {
		t.Fatalf("message = %q", got)
	}
	if got := New(Decode, "", "decode image", errors.New("bad header")).Error(); got != "decode image: bad header" {
		t.Fatalf("message = %q", got)
	}
	if got := New(Render, "", "", nil).Error(); got != "render" {
		t.Fatalf("message = %q", got)
	}
}

func TestClassifyKeepsExisting(t *testing.T) {
	orig := New(NotFound, "x", "missing", nil)
	if got := Classify(Network, "x", orig); KindOf(got) != NotFound {
		t.Fatalf("classify overwrote kind: %v", KindOf(got))
	}
	if got := Classify(Network, "x", errors.New("dial")); KindOf(got) != Network {
		t.Fatalf("classify kind = %v, want network", KindOf(got))
	}
	if Classify(Network, "x", nil) != nil {
		t.Fatalf("classify(nil) must be nil")
	}
}
