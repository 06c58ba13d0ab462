package vecstore

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/google/uuid"

	"github.com/iammorganparry/memorize-mcp/internal/embedder"
)

func setupTestStore(t *testing.T) *Store {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(dbPath)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// unitVector returns a Dim-length vector that is 1.0 in position i and 0
// elsewhere, giving predictable cosine distances between fixtures.
func unitVector(i int) []float32 {
	v := make([]float32, embedder.Dim)
	v[i%embedder.Dim] = 1.0
	return v
}

func TestTopicRoundTripAndDedup(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	topic, err := s.UpsertTopic(ctx, "golang concurrency", unitVector(0))
	if err != nil {
		t.Fatalf("upsert topic: %v", err)
	}
	if topic.Name != "golang concurrency" {
		t.Fatalf("unexpected topic name %q", topic.Name)
	}

	found, err := s.FindSimilarTopic(ctx, unitVector(0), 0.20)
	if err != nil {
		t.Fatalf("find similar topic: %v", err)
	}
	if found == nil || found.Name != "golang concurrency" {
		t.Fatalf("expected identical vector to match existing topic, got %+v", found)
	}

	notFound, err := s.FindSimilarTopic(ctx, unitVector(100), 0.20)
	if err != nil {
		t.Fatalf("find similar topic: %v", err)
	}
	if notFound != nil {
		t.Fatalf("expected orthogonal vector not to match, got %+v", notFound)
	}
}

func TestSearchQAFiltersByTopicAndMerged(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	if _, err := s.InsertQA(ctx, uuid.NewString(), "how do channels work", "channels are typed pipes", "go", unitVector(0)); err != nil {
		t.Fatalf("insert qa: %v", err)
	}
	otherID := uuid.NewString()
	if _, err := s.InsertQA(ctx, otherID, "how do slices grow", "slices grow via append", "go", unitVector(1)); err != nil {
		t.Fatalf("insert qa: %v", err)
	}
	if _, err := s.InsertQA(ctx, uuid.NewString(), "what is a monad", "a monad is a monoid in the category of endofunctors", "haskell", unitVector(2)); err != nil {
		t.Fatalf("insert qa: %v", err)
	}

	results, err := s.SearchQA(ctx, unitVector(0), "go", true, 5)
	if err != nil {
		t.Fatalf("search qa: %v", err)
	}
	for _, r := range results {
		if r.Topic != "go" {
			t.Fatalf("expected only go-topic results, got %q", r.Topic)
		}
	}

	if err := s.MarkMerged(ctx, []string{otherID}); err != nil {
		t.Fatalf("mark merged: %v", err)
	}
	afterMerge, err := s.SearchQA(ctx, unitVector(1), "go", true, 5)
	if err != nil {
		t.Fatalf("search qa: %v", err)
	}
	for _, r := range afterMerge {
		if r.ID == otherID {
			t.Fatalf("expected merged record to be excluded from search")
		}
	}
}

func TestKnowledgeRoundTrip(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	id := uuid.NewString()
	src := []string{"q1", "q2"}
	if _, err := s.InsertKnowledge(ctx, id, "go", "goroutines are cheap green threads", src, unitVector(0)); err != nil {
		t.Fatalf("insert knowledge: %v", err)
	}

	results, err := s.SearchKnowledge(ctx, unitVector(0), "go", 5)
	if err != nil {
		t.Fatalf("search knowledge: %v", err)
	}
	if len(results) != 1 || results[0].ID != id {
		t.Fatalf("expected to find inserted knowledge, got %+v", results)
	}
	if len(results[0].SourceQuestions) != 2 {
		t.Fatalf("expected 2 source questions, got %v", results[0].SourceQuestions)
	}
}
