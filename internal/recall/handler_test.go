package recall

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/iammorganparry/memorize-mcp/internal/embedder"
	"github.com/iammorganparry/memorize-mcp/internal/memoryservice"
	"github.com/iammorganparry/memorize-mcp/internal/vecstore"
)

type fixedEmbedder struct{}

func (fixedEmbedder) Close() error { return nil }
func (fixedEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	v := make([]float32, embedder.Dim)
	v[0] = 1.0
	return v, nil
}

func newTestRouter(t *testing.T) http.Handler {
	t.Helper()
	store, err := vecstore.Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	svc := memoryservice.New(store, fixedEmbedder{}, nil, logger)
	return NewRouter(svc, alwaysReady{}, logger)
}

type alwaysReady struct{}

func (alwaysReady) Ready() (bool, bool) { return true, true }

func TestRecallRequiresContext(t *testing.T) {
	router := newTestRouter(t)
	req := httptest.NewRequest(http.MethodGet, "/api/recall", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for missing context, got %d", rec.Code)
	}
}

func TestRecallReturnsEmptyArrayOnColdStart(t *testing.T) {
	router := newTestRouter(t)
	req := httptest.NewRequest(http.MethodGet, "/api/recall?context=something+nobody+asked+about", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 even with no match, got %d", rec.Code)
	}
	var items []RecallItem
	if err := json.Unmarshal(rec.Body.Bytes(), &items); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(items) != 0 {
		t.Fatalf("expected empty result, got %d items", len(items))
	}
}

func TestHealthzReportsReadiness(t *testing.T) {
	router := newTestRouter(t)
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}
