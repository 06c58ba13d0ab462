// Package embedder provides local sentence-embedding inference for memorize-mcp.
package embedder

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/knights-analytics/hugot"
	"github.com/knights-analytics/hugot/pipelines"

	"github.com/iammorganparry/memorize-mcp/internal/metrics"
)

// Dim is the fixed output dimensionality every vector in the store must match.
const Dim = 384

// Embedder turns text into a normalized Dim-length dense vector.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	Close() error
}

// ModelLoadError wraps a failure to construct a local inference session.
type ModelLoadError struct {
	ModelDir string
	Err      error
}

func (e *ModelLoadError) Error() string {
	return fmt.Sprintf("load model from %s: %v", e.ModelDir, e.Err)
}

func (e *ModelLoadError) Unwrap() error { return e.Err }

// Local is a hugot-backed ONNX sentence embedder. hugot's pipeline is not
// safe for concurrent Run calls, so every Embed is serialized through mu,
// matching the single-writer inference contract the rest of the service
// assumes.
type Local struct {
	mu       sync.Mutex
	session  *hugot.Session
	pipeline *pipelines.FeatureExtractionPipeline
}

// Load constructs a Local embedder from a directory containing model.onnx
// and tokenizer.json (the layout produced by hugot's model downloader and by
// the scripts/ directory of the reference implementation this server is
// based on).
func Load(modelDir string) (*Local, error) {
	session, err := hugot.NewORTSession()
	if err != nil {
		return nil, &ModelLoadError{ModelDir: modelDir, Err: err}
	}

	cfg := hugot.FeatureExtractionConfig{
		ModelPath: modelDir,
		Name:      "memorize-encoder",
	}
	pipeline, err := hugot.NewPipeline(session, cfg)
	if err != nil {
		session.Destroy()
		return nil, &ModelLoadError{ModelDir: modelDir, Err: err}
	}

	l := &Local{session: session, pipeline: pipeline}

	// Canary embed to catch a dimension mismatch before the server starts
	// accepting requests.
	vec, err := l.embedLocked(context.Background(), "memorize-mcp startup check")
	if err != nil {
		l.Close()
		return nil, &ModelLoadError{ModelDir: modelDir, Err: err}
	}
	if len(vec) != Dim {
		l.Close()
		return nil, &ModelLoadError{
			ModelDir: modelDir,
			Err:      fmt.Errorf("model produced %d-dim vectors, expected %d", len(vec), Dim),
		}
	}

	return l, nil
}

// Embed runs the encoder on text and returns an L2-normalized Dim-length vector.
func (l *Local) Embed(ctx context.Context, text string) ([]float32, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.embedLocked(ctx, text)
}

func (l *Local) embedLocked(ctx context.Context, text string) ([]float32, error) {
	start := time.Now()
	defer func() { metrics.EmbeddingDuration.Observe(time.Since(start).Seconds()) }()

	out, err := l.pipeline.RunPipeline([]string{text})
	if err != nil {
		return nil, fmt.Errorf("run inference: %w", err)
	}
	if len(out.Embeddings) != 1 {
		return nil, fmt.Errorf("expected 1 embedding, got %d", len(out.Embeddings))
	}
	return normalize(out.Embeddings[0]), nil
}

// Close releases the underlying ONNX runtime session.
func (l *Local) Close() error {
	if l.session != nil {
		return l.session.Destroy()
	}
	return nil
}

// normalize L2-normalizes v. A zero vector has no direction to preserve, so
// a unit-vector component is substituted to keep the ‖v‖₂≈1 invariant every
// stored embedding must satisfy.
func normalize(v []float32) []float32 {
	var sumSq float64
	for _, f := range v {
		sumSq += float64(f) * float64(f)
	}
	norm := math.Sqrt(sumSq)
	out := make([]float32, len(v))
	if norm == 0 {
		if len(out) > 0 {
			out[0] = 1
		}
		return out
	}
	for i, f := range v {
		out[i] = float32(float64(f) / norm)
	}
	return out
}
