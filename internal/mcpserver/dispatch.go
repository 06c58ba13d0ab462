package mcpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/iammorganparry/memorize-mcp/internal/memoryservice"
	"github.com/iammorganparry/memorize-mcp/internal/metrics"
)

func (s *Server) dispatchTool(ctx context.Context, name string, args map[string]interface{}) (string, bool) {
	var text string
	var isError bool
	switch name {
	case "store_qa":
		text, isError = s.toolStoreQA(ctx, args)
	case "query_qa":
		text, isError = s.toolQueryQA(ctx, args)
	case "merge_knowledge":
		text, isError = s.toolMergeKnowledge(ctx, args)
	default:
		text, isError = fmt.Sprintf("unknown tool: %s", name), true
	}

	outcome := "ok"
	if isError {
		outcome = "error"
	}
	metrics.ToolInvocationsTotal.WithLabelValues(name, outcome).Inc()
	return text, isError
}

// storeQAResponse is the store_qa tool's wire shape: whether the pair was
// stored, the topic it actually landed under, and any existing records
// close enough that the caller might want to fold them in with
// merge_knowledge. The server never merges these on its own.
type storeQAResponse struct {
	Stored          bool               `json:"stored"`
	Topic           string             `json:"topic"`
	MergeCandidates []storeQACandidate `json:"merge_candidates"`
}

type storeQACandidate struct {
	Question string  `json:"question"`
	Distance float32 `json:"distance"`
}

func (s *Server) toolStoreQA(ctx context.Context, args map[string]interface{}) (string, bool) {
	question, _ := args["question"].(string)
	answer, _ := args["answer"].(string)
	topic, _ := args["topic"].(string)

	result, err := s.svc.StoreQA(ctx, question, answer, topic)
	if err != nil {
		return toolError(err)
	}

	candidates := make([]storeQACandidate, len(result.MergeCandidates))
	for i, c := range result.MergeCandidates {
		candidates[i] = storeQACandidate{Question: c.Question, Distance: c.Distance}
	}

	body, _ := json.MarshalIndent(storeQAResponse{
		Stored:          true,
		Topic:           result.Topic,
		MergeCandidates: candidates,
	}, "", "  ")
	return string(body), false
}

// queryQAResponse is the query_qa tool's wire shape. Topic is omitted when
// the cold-start refusal found no matching topic and Results is empty.
type queryQAResponse struct {
	Topic   string              `json:"topic,omitempty"`
	Results []queryQAResultItem `json:"results"`
}

type queryQAResultItem struct {
	Question string  `json:"question"`
	Answer   string  `json:"answer"`
	Score    float32 `json:"score"`
}

func (s *Server) toolQueryQA(ctx context.Context, args map[string]interface{}) (string, bool) {
	question, _ := args["question"].(string)
	queryContext, _ := args["context"].(string)
	limit := memoryservice.DefaultSearchLimit
	if v, ok := args["limit"].(float64); ok {
		limit = int(v)
	}

	result, err := s.svc.QueryQA(ctx, question, queryContext, limit)
	if err != nil {
		return toolError(err)
	}

	items := make([]queryQAResultItem, len(result.Results))
	for i, r := range result.Results {
		items[i] = queryQAResultItem{Question: r.Question, Answer: r.Answer, Score: r.Distance}
	}

	body, _ := json.MarshalIndent(queryQAResponse{Topic: result.Topic, Results: items}, "", "  ")
	return string(body), false
}

func (s *Server) toolMergeKnowledge(ctx context.Context, args map[string]interface{}) (string, bool) {
	var topics []string
	if topic, ok := args["topic"].(string); ok && topic != "" {
		topics = []string{topic}
	}
	var threshold float32
	if v, ok := args["threshold"].(float64); ok {
		threshold = float32(v)
	}

	result, err := s.svc.MergeKnowledge(ctx, topics, threshold)
	if err != nil {
		return toolError(err)
	}

	body, _ := json.MarshalIndent(result, "", "  ")
	return string(body), false
}

func toolError(err error) (string, bool) {
	if errors.Is(err, memoryservice.ErrInvalidInput) {
		return err.Error(), true
	}
	if errors.Is(err, memoryservice.ErrNoSampler) {
		return "merge_knowledge requires a client with sampling support connected", true
	}
	return err.Error(), true
}
