package gemini

import "errors"

// Error definitions for the gemini package.
var (
	// ErrEmptyContent is returned when a queue item carries no content
	// to embed.
	ErrEmptyContent = errors.New("item content cannot be empty")

	// ErrEmptyEmbedding is returned when the API responds without any
	// embedding values.
	ErrEmptyEmbedding = errors.New("embedding response contained no values")
)
