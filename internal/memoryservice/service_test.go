package memoryservice

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/iammorganparry/memorize-mcp/internal/embedder"
	"github.com/iammorganparry/memorize-mcp/internal/vecstore"
)

// fakeEmbedder maps every string to a deterministic one-hot unit vector
// chosen by an FNV-1a hash of the text, so identical strings land at
// distance 0 and tests control closeness by reusing the same text.
type fakeEmbedder struct{}

func (fakeEmbedder) Close() error { return nil }

func (fakeEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	v := make([]float32, embedder.Dim)
	var h uint32 = 2166136261
	for _, c := range text {
		h ^= uint32(c)
		h *= 16777619
	}
	v[int(h)%embedder.Dim] = 1.0
	return v, nil
}

type fakeSampler struct {
	response string
	prompts  []string
}

func (f *fakeSampler) CreateMessage(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	f.prompts = append(f.prompts, userPrompt)
	return f.response, nil
}

func newTestService(t *testing.T, sampler Sampler) *Service {
	t.Helper()
	store, err := vecstore.Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return New(store, fakeEmbedder{}, sampler, logger)
}

func TestStoreQAThenQueryQA(t *testing.T) {
	svc := newTestService(t, nil)
	ctx := context.Background()

	if _, err := svc.StoreQA(ctx, "how do goroutines work", "they are cheap green threads", "golang concurrency"); err != nil {
		t.Fatalf("store qa: %v", err)
	}

	result, err := svc.QueryQA(ctx, "how do goroutines work", "golang concurrency", 5)
	if err != nil {
		t.Fatalf("query qa: %v", err)
	}
	if len(result.Results) != 1 {
		t.Fatalf("expected 1 result, got %d", len(result.Results))
	}
}

func TestQueryQAColdStartReturnsEmpty(t *testing.T) {
	svc := newTestService(t, nil)
	result, err := svc.QueryQA(context.Background(), "anything", "a topic nobody has stored yet", 5)
	if err != nil {
		t.Fatalf("query qa: %v", err)
	}
	if len(result.Results) != 0 {
		t.Fatalf("expected cold-start refusal to return empty results, got %d", len(result.Results))
	}
	if result.Topic != "" {
		t.Fatalf("expected empty topic on cold-start refusal, got %q", result.Topic)
	}
}

func TestStoreQARejectsMissingFields(t *testing.T) {
	svc := newTestService(t, nil)
	if _, err := svc.StoreQA(context.Background(), "", "answer", "topic"); err == nil {
		t.Fatal("expected error for missing question")
	}
}

func TestMergeKnowledgeRequiresSampler(t *testing.T) {
	svc := newTestService(t, nil)
	_, err := svc.MergeKnowledge(context.Background(), nil, 0)
	if err != ErrNoSampler {
		t.Fatalf("expected ErrNoSampler, got %v", err)
	}
}

func TestMergeKnowledgeDistillsClusterAndMarksMerged(t *testing.T) {
	sampler := &fakeSampler{response: "goroutines are cheap and multiplexed onto OS threads."}
	svc := newTestService(t, sampler)
	ctx := context.Background()

	if _, err := svc.StoreQA(ctx, "how do goroutines work", "they are cheap green threads", "golang concurrency"); err != nil {
		t.Fatalf("store qa 1: %v", err)
	}
	if _, err := svc.StoreQA(ctx, "how do goroutines work", "they multiplex onto OS threads", "golang concurrency"); err != nil {
		t.Fatalf("store qa 2: %v", err)
	}

	result, err := svc.MergeKnowledge(ctx, []string{"golang concurrency"}, 0)
	if err != nil {
		t.Fatalf("merge knowledge: %v", err)
	}
	if len(result.Merged) != 1 {
		t.Fatalf("expected 1 distilled knowledge entry, got %d", len(result.Merged))
	}
	if result.Skipped != 0 {
		t.Fatalf("expected 0 skipped clusters, got %d", result.Skipped)
	}
	if len(sampler.prompts) != 1 {
		t.Fatalf("expected exactly 1 sampling call, got %d", len(sampler.prompts))
	}

	remaining, err := svc.QueryQA(ctx, "how do goroutines work", "golang concurrency", 5)
	if err != nil {
		t.Fatalf("query qa after merge: %v", err)
	}
	if len(remaining.Results) != 0 {
		t.Fatalf("expected merged records excluded from further queries, got %d", len(remaining.Results))
	}
}

func TestMergeKnowledgeSkipsClusterOnSamplingFailure(t *testing.T) {
	sampler := &fakeSampler{response: ""}
	svc := newTestService(t, sampler)
	ctx := context.Background()

	if _, err := svc.StoreQA(ctx, "how do goroutines work", "they are cheap green threads", "golang concurrency"); err != nil {
		t.Fatalf("store qa 1: %v", err)
	}
	if _, err := svc.StoreQA(ctx, "how do goroutines work", "they multiplex onto OS threads", "golang concurrency"); err != nil {
		t.Fatalf("store qa 2: %v", err)
	}

	result, err := svc.MergeKnowledge(ctx, []string{"golang concurrency"}, 0)
	if err != nil {
		t.Fatalf("merge knowledge: %v", err)
	}
	if len(result.Merged) != 0 {
		t.Fatalf("expected 0 distilled entries when sampling returns empty text, got %d", len(result.Merged))
	}
	if result.Skipped != 1 {
		t.Fatalf("expected 1 skipped cluster, got %d", result.Skipped)
	}
}
