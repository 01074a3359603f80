// Package gemini provides an implementation of the generation.Embedder
// interface that uses Google's Gemini embedding API to produce vector
// embeddings for queue items.
//
// This package is an infrastructure adapter in the hexagonal architecture,
// connecting the queue core to Google's external Gemini AI service. It
// translates between the application's domain models and the Gemini API
// without exposing the details of the external service to the core.
//
// Key components:
//
// 1. GeminiEmbedder:
//   - Implements the generation.Embedder interface
//   - Handles communication with the Gemini embedding API
//   - Maps API responses to generation.EmbeddingResult values
//
// 2. Error Handling:
//   - Implements retry logic with exponential backoff for transient errors
//   - Categorizes and translates API errors to application-specific errors
//
// The package depends on the google.golang.org/genai client library for
// communicating with the Gemini API, and handles authentication, request
// formatting, and response processing according to Google's API
// specifications.
package gemini
