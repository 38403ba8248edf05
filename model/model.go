// Package model abstracts the hosted language model as a single fallible
// text-completion capability. The lifecycle core depends only on the Client
// interface; the Anthropic implementation lives alongside it.
package model

import (
	"context"
	"errors"
)

// Sentinel errors for model calls.
var (
	// ErrUnavailable indicates the model capability could not be reached
	// (network error, timeout, rate limit). Callers treat it as a
	// recoverable failure per their fail-closed policy.
	ErrUnavailable = errors.New("model capability unavailable")

	// ErrEmptyResponse indicates the model returned no usable text.
	ErrEmptyResponse = errors.New("empty response from model")
)

// Request describes one summarize call.
type Request struct {
	// Instructions is the system-level guidance for the call (the
	// compression or summary prompt). It is part of the cache key upstream:
	// changed instructions must never reuse stale results.
	Instructions string

	// Input is the text to summarize or compress.
	Input string

	// MaxOutputTokens bounds the response size. Zero means the
	// implementation default.
	MaxOutputTokens int
}

// Client is the model capability: summarize(text, instructions,
// max_output_size) -> text | error. Implementations own their retry and
// backoff policy for transient failures; callers only see success or error.
type Client interface {
	Summarize(ctx context.Context, req Request) (string, error)
}
