package generation

import "errors"

// Common errors returned by the generation package
var (
	// ErrGenerationFailed is returned when embedding generation fails for any general reason
	ErrGenerationFailed = errors.New("failed to generate embedding")

	// ErrInvalidResponse is returned when the model response cannot be parsed or is malformed
	ErrInvalidResponse = errors.New("invalid response from embedding model")

	// ErrTransientFailure is returned for temporary errors that might resolve on retry
	ErrTransientFailure = errors.New("transient error during embedding generation")

	// ErrInvalidConfig is returned when the embedder configuration is invalid
	ErrInvalidConfig = errors.New("invalid embedder configuration")
)
