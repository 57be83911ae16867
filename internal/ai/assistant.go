// Package ai defines the text generation contract used by the ranking engine
// and the retry policy shared by every provider.
package ai

import (
	"context"
	"errors"
)

// ErrEmptyResponse is returned when a provider answers without any text.
var ErrEmptyResponse = errors.New("model returned empty response")

// Generator sends a system instruction and a user prompt to a language model
// and returns the textual answer.
type Generator interface {
	GenerateContent(ctx context.Context, system, prompt string) (string, error)
	Provider() string
	Model() string
}
