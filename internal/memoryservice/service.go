// Package memoryservice implements the store_qa/query_qa/merge_knowledge
// operations and the knowledge:// resource lookup on top of the vector
// store and local embedder.
package memoryservice

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/iammorganparry/memorize-mcp/internal/embedder"
	"github.com/iammorganparry/memorize-mcp/internal/vecstore"
)

const (
	// TopicDedupThreshold is the cosine distance below which a newly
	// embedded topic name is folded into an existing topic instead of
	// creating a new one.
	TopicDedupThreshold float32 = 0.20
	// TopicMatchThreshold is the looser distance used when resolving a
	// query/recall context to an existing topic; contexts are full
	// sentences rather than short topic names, so the bar is more forgiving.
	TopicMatchThreshold float32 = 0.40
	// MergeThreshold is the cosine distance within which two QA records in
	// the same topic are considered part of the same cluster.
	MergeThreshold float32 = 0.15
	// MergeSuggestThreshold is the cosine distance within which a
	// just-stored QA record's existing neighbors are surfaced as
	// merge_candidates. Same value as MergeThreshold today but a distinct
	// constant since store_qa's advisory suggestion and merge_knowledge's
	// clustering are different jobs that happen to share a default.
	MergeSuggestThreshold float32 = 0.15
	// DefaultSearchLimit bounds ordinary top-k searches.
	DefaultSearchLimit = 5
	// mergeCandidateScanLimit bounds how many neighbors store_qa considers
	// when surfacing merge_candidates.
	mergeCandidateScanLimit = 50
)

// Sampler issues an MCP sampling/createMessage request back through the
// client connection and returns the text of the reply. Implemented by the
// MCP server so this package never imports the transport layer.
type Sampler interface {
	CreateMessage(ctx context.Context, systemPrompt, userPrompt string) (string, error)
}

// Service is the facade every MCP tool and the recall HTTP handler call
// into.
type Service struct {
	store    *vecstore.Store
	embedder embedder.Embedder
	sampler  Sampler
	logger   *slog.Logger
}

// New constructs a Service. sampler may be nil; MergeKnowledge fails with
// ErrNoSampler until one is set with SetSampler.
func New(store *vecstore.Store, emb embedder.Embedder, sampler Sampler, logger *slog.Logger) *Service {
	return &Service{store: store, embedder: emb, sampler: sampler, logger: logger}
}

// SetSampler installs the sampler MergeKnowledge uses. mcpserver.NewServer
// calls it when it constructs the stdio server.
func (s *Service) SetSampler(sampler Sampler) {
	s.sampler = sampler
}

// MergeCandidate is an existing QA record close enough to a just-stored one
// that the caller might want to fold them together with merge_knowledge.
type MergeCandidate struct {
	Question string
	Distance float32
}

// StoreQAResult reports the topic a QA pair was actually filed under, which
// may differ from the caller-supplied topic string after semantic dedup,
// plus any existing records close enough to be worth merging.
type StoreQAResult struct {
	Topic           string
	QA              *vecstore.QaRecord
	MergeCandidates []MergeCandidate
}

// StoreQA embeds topic and question, resolves topic to an existing
// semantically-similar one when present, files the pair under it, and
// surfaces (without acting on) any existing records in the same topic close
// enough to be merge candidates. The server never auto-merges on store;
// merging stays an explicit, user-triggered operation.
func (s *Service) StoreQA(ctx context.Context, question, answer, topic string) (*StoreQAResult, error) {
	if question == "" || answer == "" || topic == "" {
		return nil, fmt.Errorf("%w: question, answer, and topic are required", ErrInvalidInput)
	}

	resolvedTopic, err := s.resolveTopic(ctx, topic)
	if err != nil {
		return nil, err
	}

	qVec, err := s.embedder.Embed(ctx, question)
	if err != nil {
		return nil, fmt.Errorf("%w: embed question: %v", ErrStorage, err)
	}

	rec, err := s.store.InsertQA(ctx, uuid.NewString(), question, answer, resolvedTopic, qVec)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStorage, err)
	}

	neighbors, err := s.store.SimilarQAWithinTopic(ctx, qVec, resolvedTopic, rec.ID, MergeSuggestThreshold, mergeCandidateScanLimit)
	if err != nil {
		return nil, fmt.Errorf("%w: similar qa within topic: %v", ErrStorage, err)
	}
	candidates := make([]MergeCandidate, len(neighbors))
	for i, n := range neighbors {
		candidates[i] = MergeCandidate{Question: n.Question, Distance: n.Distance}
	}

	s.logger.Info("stored qa", "topic", resolvedTopic, "question", truncate(question, 80), "merge_candidates", len(candidates))
	return &StoreQAResult{Topic: resolvedTopic, QA: rec, MergeCandidates: candidates}, nil
}

// resolveTopic embeds name, looks for a semantically similar existing topic
// within TopicDedupThreshold, and reuses it; otherwise creates a new topic.
func (s *Service) resolveTopic(ctx context.Context, name string) (string, error) {
	vec, err := s.embedder.Embed(ctx, name)
	if err != nil {
		return "", fmt.Errorf("%w: embed topic: %v", ErrStorage, err)
	}

	existing, err := s.store.FindSimilarTopic(ctx, vec, TopicDedupThreshold)
	if err != nil {
		return "", fmt.Errorf("%w: find similar topic: %v", ErrStorage, err)
	}
	if existing != nil {
		return existing.Name, nil
	}

	created, err := s.store.UpsertTopic(ctx, name, vec)
	if err != nil {
		return "", fmt.Errorf("%w: create topic: %v", ErrStorage, err)
	}
	return created.Name, nil
}

// QueryQAResult is the resolved topic (empty on cold-start miss) plus the
// matching QA records within it.
type QueryQAResult struct {
	Topic   string
	Results []vecstore.QaRecord
}

// QueryQA embeds context to find the best-matching topic, then searches
// within it for question. Returns an empty Results slice (never an error)
// when no topic is close enough to context — the cold-start refusal
// spec.md requires instead of guessing across unrelated topics.
func (s *Service) QueryQA(ctx context.Context, question, queryContext string, limit int) (*QueryQAResult, error) {
	if queryContext == "" {
		return nil, fmt.Errorf("%w: context is required", ErrInvalidInput)
	}
	if limit <= 0 {
		limit = DefaultSearchLimit
	}

	ctxVec, err := s.embedder.Embed(ctx, queryContext)
	if err != nil {
		return nil, fmt.Errorf("%w: embed context: %v", ErrStorage, err)
	}

	topic, err := s.store.FindSimilarTopic(ctx, ctxVec, TopicMatchThreshold)
	if err != nil {
		return nil, fmt.Errorf("%w: find topic: %v", ErrStorage, err)
	}
	if topic == nil {
		return &QueryQAResult{Results: []vecstore.QaRecord{}}, nil
	}

	qVec := ctxVec
	if question != "" {
		qVec, err = s.embedder.Embed(ctx, question)
		if err != nil {
			return nil, fmt.Errorf("%w: embed question: %v", ErrStorage, err)
		}
	}

	results, err := s.store.SearchQA(ctx, qVec, topic.Name, true, limit)
	if err != nil {
		return nil, fmt.Errorf("%w: search qa: %v", ErrStorage, err)
	}
	return &QueryQAResult{Topic: topic.Name, Results: results}, nil
}

// ReadKnowledgeResource backs the knowledge://{topic}/{query} resource
// template: embed query, restrict to the given (already-resolved) topic
// name, return the nearest distilled knowledge entries.
func (s *Service) ReadKnowledgeResource(ctx context.Context, topic, query string) ([]vecstore.Knowledge, error) {
	if topic == "" || query == "" {
		return nil, fmt.Errorf("%w: topic and query are required", ErrInvalidInput)
	}
	vec, err := s.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("%w: embed query: %v", ErrStorage, err)
	}
	results, err := s.store.SearchKnowledge(ctx, vec, topic, DefaultSearchLimit)
	if err != nil {
		return nil, fmt.Errorf("%w: search knowledge: %v", ErrStorage, err)
	}
	return results, nil
}

// RecallTopicAndKnowledge resolves context to a topic (using
// TopicMatchThreshold, the same looser bar QueryQA uses) and returns its
// knowledge entries, for the recall HTTP endpoint. Returns an empty slice
// when no topic matches closely enough.
func (s *Service) RecallTopicAndKnowledge(ctx context.Context, queryContext string, limit int) ([]vecstore.Knowledge, error) {
	if queryContext == "" {
		return nil, fmt.Errorf("%w: context is required", ErrInvalidInput)
	}
	if limit <= 0 {
		limit = DefaultSearchLimit
	}

	vec, err := s.embedder.Embed(ctx, queryContext)
	if err != nil {
		return nil, fmt.Errorf("%w: embed context: %v", ErrStorage, err)
	}
	topic, err := s.store.FindSimilarTopic(ctx, vec, TopicMatchThreshold)
	if err != nil {
		return nil, fmt.Errorf("%w: find topic: %v", ErrStorage, err)
	}
	if topic == nil {
		return []vecstore.Knowledge{}, nil
	}
	return s.store.SearchKnowledge(ctx, vec, topic.Name, limit)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
