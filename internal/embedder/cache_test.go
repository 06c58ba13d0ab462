package embedder

import (
	"context"
	"testing"
)

type fakeEmbedder struct {
	calls int
	vec   []float32
}

func (f *fakeEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	f.calls++
	return f.vec, nil
}

func (f *fakeEmbedder) Close() error { return nil }

func TestCachedEmbedderSkipsRepeatedInference(t *testing.T) {
	fake := &fakeEmbedder{vec: []float32{0.1, 0.2, 0.3}}
	c := NewCached(fake)

	ctx := context.Background()
	if _, err := c.Embed(ctx, "what is a goroutine"); err != nil {
		t.Fatalf("embed: %v", err)
	}
	if _, err := c.Embed(ctx, "what is a goroutine"); err != nil {
		t.Fatalf("embed: %v", err)
	}
	if fake.calls != 1 {
		t.Fatalf("expected 1 underlying inference call, got %d", fake.calls)
	}

	if _, err := c.Embed(ctx, "what is a channel"); err != nil {
		t.Fatalf("embed: %v", err)
	}
	if fake.calls != 2 {
		t.Fatalf("expected 2 underlying inference calls after a new text, got %d", fake.calls)
	}
}

func TestContentHashStable(t *testing.T) {
	a := ContentHash("hello")
	b := ContentHash("hello")
	if a != b {
		t.Fatalf("expected stable hash, got %q and %q", a, b)
	}
	if ContentHash("hello") == ContentHash("world") {
		t.Fatalf("expected distinct hashes for distinct input")
	}
}
