package domain

import "errors"

var (
	// ErrNotFound signals a missing catalog record.
	ErrNotFound = errors.New("not found")
	// ErrStoreUnavailable signals that the record store cannot be reached.
	ErrStoreUnavailable = errors.New("record store unavailable")
	// ErrInvalidQuery signals a malformed search or filter input.
	ErrInvalidQuery = errors.New("invalid query")
	// ErrMissingCredential signals a missing completion-service API key.
	// Turn-fatal: the chat endpoint refuses the request up front.
	ErrMissingCredential = errors.New("completion service credential missing")
	// ErrCompletionUnavailable signals a failed completion-service call.
	ErrCompletionUnavailable = errors.New("completion service unavailable")
	// ErrEmbeddingProviderError signals an embedding provider failure.
	ErrEmbeddingProviderError = errors.New("embedding provider error")
	// ErrRateLimited signals a rate limit hit.
	ErrRateLimited = errors.New("rate limited")
)
