// Package recall serves the lightweight HTTP surface editor hooks poll for
// prompt-injection context: GET /api/recall, plus /healthz and /metrics.
package recall

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/iammorganparry/memorize-mcp/internal/memoryservice"
	"github.com/iammorganparry/memorize-mcp/internal/metrics"
)

// RecallItem is one entry in a /api/recall response.
type RecallItem struct {
	Kind  string  `json:"type"`
	Text  string  `json:"text"`
	Topic string  `json:"topic"`
	Score float32 `json:"score"`
}

type handler struct {
	svc *memoryservice.Service
}

// Recall handles GET /api/recall?context=...&limit=.... A missing or empty
// context is a 400; everything else, including no match found, is a 200
// with an empty array — spec.md's cold-start refusal extends to this
// endpoint too.
func (h *handler) Recall(w http.ResponseWriter, r *http.Request) {
	ctxParam := r.URL.Query().Get("context")
	if ctxParam == "" {
		metrics.RecallRequestsTotal.WithLabelValues("missing_context").Inc()
		writeJSON(w, http.StatusBadRequest, []RecallItem{})
		return
	}

	limit := memoryservice.DefaultSearchLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if v, err := strconv.Atoi(raw); err == nil && v > 0 {
			limit = v
		}
	}

	results, err := h.svc.RecallTopicAndKnowledge(r.Context(), ctxParam, limit)
	if err != nil {
		metrics.RecallRequestsTotal.WithLabelValues("error").Inc()
		writeJSON(w, http.StatusInternalServerError, []RecallItem{})
		return
	}

	items := make([]RecallItem, len(results))
	for i, k := range results {
		items[i] = RecallItem{Kind: "knowledge", Text: k.Text, Topic: k.Topic, Score: k.Distance}
	}
	outcome := "hit"
	if len(items) == 0 {
		outcome = "miss"
	}
	metrics.RecallRequestsTotal.WithLabelValues(outcome).Inc()
	writeJSON(w, http.StatusOK, items)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
