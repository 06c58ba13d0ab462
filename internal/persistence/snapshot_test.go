package persistence

import (
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/iammorganparry/memorize-mcp/internal/embedder"
	"github.com/iammorganparry/memorize-mcp/internal/vecstore"
)

type fixedEmbedder struct{ calls int }

func (f *fixedEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	f.calls++
	v := make([]float32, embedder.Dim)
	v[0] = 1.0
	return v, nil
}
func (f *fixedEmbedder) Close() error { return nil }

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func TestSyncOnStartupNoSnapshotIsNotAnError(t *testing.T) {
	dir := t.TempDir()
	store, err := vecstore.Open(filepath.Join(dir, "store.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	defer store.Close()

	if err := SyncOnStartup(context.Background(), store, &fixedEmbedder{}, dir, testLogger()); err != nil {
		t.Fatalf("sync with no snapshot: %v", err)
	}
}

func TestSyncOnStartupInsertsMissingSnapshotEntries(t *testing.T) {
	dir := t.TempDir()
	store, err := vecstore.Open(filepath.Join(dir, "store.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	defer store.Close()

	snapshot := Snapshot{
		Version: 1,
		Topics:  []TopicEntry{{TopicName: "go"}},
		QaRecords: []QaEntry{
			{Question: "what is a goroutine", Answer: "a lightweight thread", Topic: "go"},
		},
		Knowledge: []KnowledgeEntry{
			{KnowledgeText: "goroutines are cheap", Topic: "go", SourceQuestions: []string{"what is a goroutine"}},
		},
	}
	writeSnapshot(t, dir, snapshot)

	fake := &fixedEmbedder{}
	if err := SyncOnStartup(context.Background(), store, fake, dir, testLogger()); err != nil {
		t.Fatalf("sync: %v", err)
	}

	ctx := context.Background()
	topics, err := store.AllTopics(ctx)
	if err != nil || len(topics) != 1 {
		t.Fatalf("expected 1 topic after sync, got %d (err=%v)", len(topics), err)
	}
	qa, err := store.AllQA(ctx)
	if err != nil || len(qa) != 1 {
		t.Fatalf("expected 1 qa record after sync, got %d (err=%v)", len(qa), err)
	}
	knowledge, err := store.AllKnowledge(ctx)
	if err != nil || len(knowledge) != 1 {
		t.Fatalf("expected 1 knowledge entry after sync, got %d (err=%v)", len(knowledge), err)
	}
	if fake.calls == 0 {
		t.Fatalf("expected re-embedding since snapshot entries had no saved vector")
	}
}

func TestSyncOnStartupIsIdempotent(t *testing.T) {
	dir := t.TempDir()
	store, err := vecstore.Open(filepath.Join(dir, "store.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	defer store.Close()

	snapshot := Snapshot{Topics: []TopicEntry{{TopicName: "go"}}}
	writeSnapshot(t, dir, snapshot)

	fake := &fixedEmbedder{}
	if err := SyncOnStartup(context.Background(), store, fake, dir, testLogger()); err != nil {
		t.Fatalf("first sync: %v", err)
	}
	if err := SyncOnStartup(context.Background(), store, fake, dir, testLogger()); err != nil {
		t.Fatalf("second sync: %v", err)
	}

	topics, err := store.AllTopics(context.Background())
	if err != nil {
		t.Fatalf("list topics: %v", err)
	}
	if len(topics) != 1 {
		t.Fatalf("expected sync to stay idempotent, got %d topics", len(topics))
	}
}

func writeSnapshot(t *testing.T, dir string, snapshot Snapshot) {
	t.Helper()
	body, err := json.Marshal(snapshot)
	if err != nil {
		t.Fatalf("marshal snapshot: %v", err)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(JSONPath(dir), body, 0o644); err != nil {
		t.Fatalf("write snapshot: %v", err)
	}
}
