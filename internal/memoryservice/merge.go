package memoryservice

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/iammorganparry/memorize-mcp/internal/metrics"
	"github.com/iammorganparry/memorize-mcp/internal/vecstore"
)

const mergeSystemPrompt = `You are a knowledge synthesis assistant. Given a cluster of similar ` +
	`question/answer pairs captured from an engineer's conversations, write a single concise ` +
	`paragraph of durable knowledge that generalizes across all of them. Do not mention the ` +
	`individual questions; state the underlying fact or practice directly.`

// mergeCandidatePool bounds how many unmerged records within one topic are
// considered per merge_knowledge call, keeping the clustering pass and the
// resulting sampling prompt bounded in size.
const mergeCandidatePool = 100

// MergedKnowledge describes one distilled cluster produced by MergeKnowledge.
type MergedKnowledge struct {
	Topic           string   `json:"topic"`
	Text            string   `json:"text"`
	SourceQuestions []string `json:"source_questions"`
}

// MergeResult is the outcome of a merge_knowledge call. Skipped counts
// clusters that were dropped because sampling failed or was denied — the
// rest of the call still proceeds and merges what it can.
type MergeResult struct {
	Merged  []MergedKnowledge `json:"merged"`
	Skipped int               `json:"skipped"`
}

// MergeKnowledge clusters unmerged QA records within the given topics (or
// every known topic, when topics is empty) by mutual cosine-distance
// proximity, asks the connected MCP client to distill each cluster of two or
// more records into a knowledge paragraph via sampling, and stores the
// result.
func (s *Service) MergeKnowledge(ctx context.Context, topics []string, threshold float32) (*MergeResult, error) {
	if s.sampler == nil {
		return nil, ErrNoSampler
	}
	if threshold <= 0 {
		threshold = MergeThreshold
	}

	targetTopics := topics
	if len(targetTopics) == 0 {
		all, err := s.store.ListTopics(ctx)
		if err != nil {
			return nil, fmt.Errorf("%w: list topics: %v", ErrStorage, err)
		}
		targetTopics = all
	}

	result := &MergeResult{}
	for _, topic := range targetTopics {
		clusters, err := s.clusterTopic(ctx, topic, threshold)
		if err != nil {
			return nil, err
		}
		for _, cluster := range clusters {
			if len(cluster) < 2 {
				metrics.MergeClustersTotal.WithLabelValues("too_small").Inc()
				continue
			}
			knowledge, err := s.distillCluster(ctx, topic, cluster)
			if err != nil {
				metrics.MergeClustersTotal.WithLabelValues("error").Inc()
				s.logger.Warn("skipping cluster after distill failure", "topic", topic, "size", len(cluster), "error", err)
				result.Skipped++
				continue
			}
			metrics.MergeClustersTotal.WithLabelValues("distilled").Inc()
			result.Merged = append(result.Merged, *knowledge)
		}
	}
	return result, nil
}

// clusterTopic groups topic's unmerged QA records into connected components
// under threshold cosine distance, using the store's ANN index as the
// adjacency oracle rather than an O(n^2) in-memory comparison.
func (s *Service) clusterTopic(ctx context.Context, topic string, threshold float32) ([][]vecstore.QaRecord, error) {
	candidates, err := s.store.ListUnmergedByTopic(ctx, topic)
	if err != nil {
		return nil, fmt.Errorf("%w: list unmerged qa: %v", ErrStorage, err)
	}
	if len(candidates) > mergeCandidatePool {
		candidates = candidates[:mergeCandidatePool]
	}

	byID := make(map[string]vecstore.QaRecord, len(candidates))
	for _, c := range candidates {
		byID[c.ID] = c
	}

	visited := make(map[string]bool, len(candidates))
	var clusters [][]vecstore.QaRecord

	for _, seed := range candidates {
		if visited[seed.ID] {
			continue
		}
		component := s.expandComponent(ctx, topic, seed, threshold, visited, byID)
		clusters = append(clusters, component)
	}
	return clusters, nil
}

// expandComponent runs a breadth-first search from seed, using
// SimilarQAWithinTopic as the neighbor function, and returns every record
// reachable within threshold of some record already in the component.
func (s *Service) expandComponent(ctx context.Context, topic string, seed vecstore.QaRecord, threshold float32, visited map[string]bool, byID map[string]vecstore.QaRecord) []vecstore.QaRecord {
	queue := []vecstore.QaRecord{seed}
	visited[seed.ID] = true
	component := []vecstore.QaRecord{seed}

	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]

		vec, err := s.store.VectorForQA(ctx, current.ID)
		if err != nil {
			s.logger.Warn("failed to load qa vector during clustering", "id", current.ID, "error", err)
			continue
		}

		neighbors, err := s.store.SimilarQAWithinTopic(ctx, vec, topic, current.ID, threshold, mergeCandidatePool)
		if err != nil {
			s.logger.Warn("similarity search failed during clustering", "id", current.ID, "error", err)
			continue
		}

		for _, n := range neighbors {
			if visited[n.ID] {
				continue
			}
			if _, known := byID[n.ID]; !known {
				continue
			}
			visited[n.ID] = true
			component = append(component, n)
			queue = append(queue, n)
		}
	}
	return component
}

// distillCluster asks the connected MCP client to synthesize a knowledge
// paragraph from cluster via sampling/createMessage, embeds and stores the
// result, and marks every source record merged.
func (s *Service) distillCluster(ctx context.Context, topic string, cluster []vecstore.QaRecord) (*MergedKnowledge, error) {
	prompt := buildMergePrompt(cluster)

	text, err := s.sampler.CreateMessage(ctx, mergeSystemPrompt, prompt)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSampling, err)
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, fmt.Errorf("%w: sampling returned empty text", ErrSampling)
	}

	vec, err := s.embedder.Embed(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("%w: embed distilled knowledge: %v", ErrStorage, err)
	}

	questions := make([]string, len(cluster))
	ids := make([]string, len(cluster))
	for i, rec := range cluster {
		questions[i] = rec.Question
		ids[i] = rec.ID
	}

	if _, err := s.store.InsertKnowledge(ctx, uuid.NewString(), topic, text, questions, vec); err != nil {
		return nil, fmt.Errorf("%w: insert knowledge: %v", ErrStorage, err)
	}
	if err := s.store.MarkMerged(ctx, ids); err != nil {
		return nil, fmt.Errorf("%w: mark merged: %v", ErrStorage, err)
	}

	s.logger.Info("distilled knowledge cluster", "topic", topic, "source_count", len(cluster))
	return &MergedKnowledge{Topic: topic, Text: text, SourceQuestions: questions}, nil
}

func buildMergePrompt(cluster []vecstore.QaRecord) string {
	var b strings.Builder
	b.WriteString("Synthesize the following question/answer pairs into one paragraph of durable knowledge:\n\n")
	for i, rec := range cluster {
		fmt.Fprintf(&b, "%d. Q: %s\n   A: %s\n", i+1, rec.Question, rec.Answer)
	}
	return b.String()
}
