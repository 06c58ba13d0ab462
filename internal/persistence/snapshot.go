// Package persistence loads and exports the memorize_data.json snapshot that
// backs up the vector store's contents, and reconciles the two at startup.
package persistence

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/iammorganparry/memorize-mcp/internal/embedder"
	"github.com/iammorganparry/memorize-mcp/internal/vecstore"
)

const jsonFilename = "memorize_data.json"

// TopicEntry, QaEntry, and KnowledgeEntry are the JSON-facing shapes for each
// entity. When a loaded entry carries a Vector of embedder.Dim length,
// reconciliation inserts it as is instead of re-embedding. Export does not
// write vectors, so snapshots it produces carry none and their entries are
// re-embedded from text on restore.
type TopicEntry struct {
	TopicName string    `json:"topic_name"`
	Vector    []float32 `json:"vector,omitempty"`
}

type QaEntry struct {
	Question string    `json:"question"`
	Answer   string    `json:"answer"`
	Topic    string    `json:"topic"`
	Merged   bool      `json:"merged"`
	Vector   []float32 `json:"vector,omitempty"`
}

type KnowledgeEntry struct {
	KnowledgeText   string    `json:"knowledge_text"`
	Topic           string    `json:"topic"`
	SourceQuestions []string  `json:"source_questions"`
	Vector          []float32 `json:"vector,omitempty"`
}

// Snapshot is the on-disk shape of memorize_data.json.
type Snapshot struct {
	Version    int              `json:"version"`
	ExportedAt string           `json:"exported_at"`
	Topics     []TopicEntry     `json:"topics"`
	QaRecords  []QaEntry        `json:"qa_records"`
	Knowledge  []KnowledgeEntry `json:"knowledge"`
}

// DefaultDataDir returns ~/.memorize-mcp, matching the reference
// implementation's default_data_dir.
func DefaultDataDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("determine home directory: %w", err)
	}
	return filepath.Join(home, ".memorize-mcp"), nil
}

// JSONPath returns the snapshot file path within dataDir.
func JSONPath(dataDir string) string {
	return filepath.Join(dataDir, jsonFilename)
}

// Export dumps the full store contents to dataDir/memorize_data.json,
// pretty-printed. Called at shutdown and, when reconciliation finds
// store-only records, also at startup.
func Export(ctx context.Context, store *vecstore.Store, dataDir string) error {
	topics, err := store.AllTopics(ctx)
	if err != nil {
		return fmt.Errorf("dump topics: %w", err)
	}
	qa, err := store.AllQA(ctx)
	if err != nil {
		return fmt.Errorf("dump qa: %w", err)
	}
	knowledge, err := store.AllKnowledge(ctx)
	if err != nil {
		return fmt.Errorf("dump knowledge: %w", err)
	}

	snapshot := Snapshot{
		Version:    1,
		ExportedAt: time.Now().UTC().Format(time.RFC3339),
		Topics:     make([]TopicEntry, len(topics)),
		QaRecords:  make([]QaEntry, len(qa)),
		Knowledge:  make([]KnowledgeEntry, len(knowledge)),
	}
	for i, t := range topics {
		snapshot.Topics[i] = TopicEntry{TopicName: t.Name}
	}
	for i, r := range qa {
		snapshot.QaRecords[i] = QaEntry{Question: r.Question, Answer: r.Answer, Topic: r.Topic, Merged: r.Merged}
	}
	for i, k := range knowledge {
		snapshot.Knowledge[i] = KnowledgeEntry{KnowledgeText: k.Text, Topic: k.Topic, SourceQuestions: k.SourceQuestions}
	}

	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}
	body, err := json.MarshalIndent(snapshot, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}
	if err := os.WriteFile(JSONPath(dataDir), body, 0o644); err != nil {
		return fmt.Errorf("write snapshot: %w", err)
	}
	return nil
}

// Load reads and parses dataDir/memorize_data.json. Returns (nil, nil) if the
// file does not exist yet.
func Load(dataDir string) (*Snapshot, error) {
	body, err := os.ReadFile(JSONPath(dataDir))
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read snapshot: %w", err)
	}
	var snapshot Snapshot
	if err := json.Unmarshal(body, &snapshot); err != nil {
		return nil, fmt.Errorf("parse snapshot: %w", err)
	}
	return &snapshot, nil
}

// SyncOnStartup reconciles the JSON snapshot with the vector store:
//
//  1. every snapshot entry absent from the store is inserted, reusing its
//     saved vector when present and dimensionally correct, or re-embedding
//     from text otherwise;
//  2. if, after that, the store holds any entry absent from the snapshot
//     (e.g. a shutdown export was interrupted on a previous run), the whole
//     store is re-exported immediately rather than left to drift until the
//     next graceful shutdown.
//
// Missing snapshot files are not an error; a fresh store simply starts empty.
func SyncOnStartup(ctx context.Context, store *vecstore.Store, emb embedder.Embedder, dataDir string, logger *slog.Logger) error {
	snapshot, err := Load(dataDir)
	if err != nil {
		return err
	}
	if snapshot == nil {
		logger.Info("no existing snapshot found, starting with an empty store", "path", JSONPath(dataDir))
		return nil
	}

	logger.Info("loaded snapshot",
		"version", snapshot.Version,
		"exported_at", snapshot.ExportedAt,
		"topics", len(snapshot.Topics),
		"qa_records", len(snapshot.QaRecords),
		"knowledge", len(snapshot.Knowledge),
	)

	var addedTopics, addedQA, addedKnowledge int

	for _, t := range snapshot.Topics {
		existing, err := store.GetTopicByName(ctx, t.TopicName)
		if err != nil && !errors.Is(err, vecstore.ErrNotFound) {
			return fmt.Errorf("check topic %q: %w", t.TopicName, err)
		}
		if existing != nil {
			continue
		}
		vec, err := resolveVector(ctx, emb, t.Vector, t.TopicName)
		if err != nil {
			return fmt.Errorf("embed topic %q: %w", t.TopicName, err)
		}
		if _, err := store.UpsertTopic(ctx, t.TopicName, vec); err != nil {
			return fmt.Errorf("insert topic %q: %w", t.TopicName, err)
		}
		addedTopics++
	}

	for _, r := range snapshot.QaRecords {
		exists, err := store.QAExistsByKey(ctx, r.Question, r.Answer, r.Topic)
		if err != nil {
			return fmt.Errorf("check qa %q: %w", r.Question, err)
		}
		if exists {
			continue
		}
		vec, err := resolveVector(ctx, emb, r.Vector, r.Question)
		if err != nil {
			return fmt.Errorf("embed qa %q: %w", r.Question, err)
		}
		rec, err := store.InsertQA(ctx, uuid.NewString(), r.Question, r.Answer, r.Topic, vec)
		if err != nil {
			return fmt.Errorf("insert qa %q: %w", r.Question, err)
		}
		if r.Merged {
			if err := store.MarkMerged(ctx, []string{rec.ID}); err != nil {
				return fmt.Errorf("mark restored qa merged: %w", err)
			}
		}
		addedQA++
	}

	for _, k := range snapshot.Knowledge {
		exists, err := store.KnowledgeExistsByKey(ctx, k.Topic, k.KnowledgeText)
		if err != nil {
			return fmt.Errorf("check knowledge %q: %w", k.KnowledgeText, err)
		}
		if exists {
			continue
		}
		vec, err := resolveVector(ctx, emb, k.Vector, k.KnowledgeText)
		if err != nil {
			return fmt.Errorf("embed knowledge %q: %w", k.KnowledgeText, err)
		}
		if _, err := store.InsertKnowledge(ctx, uuid.NewString(), k.Topic, k.KnowledgeText, k.SourceQuestions, vec); err != nil {
			return fmt.Errorf("insert knowledge %q: %w", k.KnowledgeText, err)
		}
		addedKnowledge++
	}

	if addedTopics+addedQA+addedKnowledge > 0 {
		logger.Info("json -> store sync", "topics", addedTopics, "qa_records", addedQA, "knowledge", addedKnowledge)
	}

	dbTopics, err := store.AllTopics(ctx)
	if err != nil {
		return err
	}
	dbQA, err := store.AllQA(ctx)
	if err != nil {
		return err
	}
	dbKnowledge, err := store.AllKnowledge(ctx)
	if err != nil {
		return err
	}

	jsonTopics := make(map[string]struct{}, len(snapshot.Topics))
	for _, t := range snapshot.Topics {
		jsonTopics[t.TopicName] = struct{}{}
	}
	jsonQA := make(map[[3]string]struct{}, len(snapshot.QaRecords))
	for _, r := range snapshot.QaRecords {
		jsonQA[[3]string{r.Question, r.Answer, r.Topic}] = struct{}{}
	}
	jsonKnowledge := make(map[[2]string]struct{}, len(snapshot.Knowledge))
	for _, k := range snapshot.Knowledge {
		jsonKnowledge[[2]string{k.KnowledgeText, k.Topic}] = struct{}{}
	}

	hasExtra := false
	for _, t := range dbTopics {
		if _, ok := jsonTopics[t.Name]; !ok {
			hasExtra = true
			break
		}
	}
	if !hasExtra {
		for _, r := range dbQA {
			if _, ok := jsonQA[[3]string{r.Question, r.Answer, r.Topic}]; !ok {
				hasExtra = true
				break
			}
		}
	}
	if !hasExtra {
		for _, k := range dbKnowledge {
			if _, ok := jsonKnowledge[[2]string{k.Text, k.Topic}]; !ok {
				hasExtra = true
				break
			}
		}
	}

	if hasExtra {
		logger.Info("store has records missing from snapshot, re-exporting")
		if err := Export(ctx, store, dataDir); err != nil {
			return fmt.Errorf("re-export snapshot: %w", err)
		}
	}

	return nil
}

func resolveVector(ctx context.Context, emb embedder.Embedder, saved []float32, text string) ([]float32, error) {
	if len(saved) == embedder.Dim {
		return saved, nil
	}
	return emb.Embed(ctx, text)
}
