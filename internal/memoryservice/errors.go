package memoryservice

import "errors"

var (
	// ErrInvalidInput marks a caller-supplied argument that failed
	// validation before any store or embedder call was made.
	ErrInvalidInput = errors.New("invalid input")
	// ErrStorage wraps a failure from the embedder or vector store.
	ErrStorage = errors.New("storage error")
	// ErrSampling wraps a failure while distilling knowledge via the MCP
	// client's sampling capability.
	ErrSampling = errors.New("sampling error")
	// ErrNoSampler is returned by MergeKnowledge when no Sampler has been
	// set on the Service.
	ErrNoSampler = errors.New("no sampling peer connected")
)
