// Package generator abstracts the external language-model service behind a
// two-call contract: free-form text generation and schema-constrained object
// generation. All failures surface as *GenerationError so callers can apply
// their fixed fallbacks without inspecting provider internals.
package generator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
)

// Generator is the language-model boundary consumed by the session engine
// and the weekly summarizer. Implementations must be safe for concurrent use.
type Generator interface {
	// GenerateText produces free-form text for the prompt.
	GenerateText(ctx context.Context, req TextRequest) (string, error)

	// GenerateObject produces a JSON object conforming to req.Schema.
	// The returned payload is validated against the schema before it is
	// handed back; numeric bounds are enforced by the caller's domain types.
	GenerateObject(ctx context.Context, req ObjectRequest) (json.RawMessage, error)

	// Name returns the backing provider name.
	Name() string
}

// TextRequest describes a text generation call.
type TextRequest struct {
	// System is the optional system prompt.
	System string
	// Prompt is the user-visible prompt body.
	Prompt string
	// Model overrides the provider's default model when non-empty.
	Model string
	// MaxTokens caps the output length (0 = provider default).
	MaxTokens int
	// Temperature controls randomness.
	Temperature float32
}

// ObjectRequest describes a structured generation call.
type ObjectRequest struct {
	TextRequest

	// Schema is the required shape of the response object.
	Schema *Schema
	// SchemaName labels the schema for providers that require one.
	SchemaName string
}

// GenerationError wraps any failure of the language-model service, including
// malformed responses that fail schema validation.
type GenerationError struct {
	Provider string
	Op       string // "text" or "object"
	Err      error
}

func (e *GenerationError) Error() string {
	return fmt.Sprintf("generator %s: %s: %v", e.Provider, e.Op, e.Err)
}

func (e *GenerationError) Unwrap() error { return e.Err }

// IsGenerationError reports whether err is (or wraps) a GenerationError.
func IsGenerationError(err error) bool {
	var ge *GenerationError
	return errors.As(err, &ge)
}

func textErr(provider string, err error) error {
	return &GenerationError{Provider: provider, Op: "text", Err: err}
}

func objectErr(provider string, err error) error {
	return &GenerationError{Provider: provider, Op: "object", Err: err}
}
