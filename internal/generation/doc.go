// Package generation provides interfaces and implementations for interacting
// with external AI/LLM services for embedding generation. It abstracts the
// details of the embedding API integration (Gemini), allowing the queue core
// to treat embedding generation as an opaque, possibly-slow, possibly-failing
// operation without coupling to a specific external service.
package generation
