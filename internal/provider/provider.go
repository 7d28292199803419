// Package provider abstracts the interchangeable LLM backends behind one
// capability set: submit content for extraction, validate a credential.
package provider

import (
	"context"
	"encoding/json"
	"fmt"
)

// ID identifies a supported backend.
type ID string

const (
	Gemini     ID = "gemini"
	OpenAI     ID = "openai"
	OpenRouter ID = "openrouter"
)

// IDs lists every supported backend.
var IDs = []ID{Gemini, OpenAI, OpenRouter}

// Supported reports whether id names a known backend.
func Supported(id ID) bool {
	for _, known := range IDs {
		if id == known {
			return true
		}
	}
	return false
}

// Config is everything needed for one extraction call. It is supplied per
// call by the settings collaborator; the core holds no cached credential.
type Config struct {
	ProviderID ID
	Model      string
	APIKey     string
}

// Client is the fixed capability set every backend implements.
type Client interface {
	// Extract submits the source text and instruction prompt in one
	// provider-specific request and returns the parsed raw response body
	// unmodified. Non-2xx statuses and empty bodies are errors carrying
	// the raw status text for classification.
	Extract(ctx context.Context, sourceText, instructionPrompt string) (json.RawMessage, error)

	// ValidateAPIKey issues the cheapest capability probe (listing
	// models) with the credential in a header. A blank credential
	// short-circuits to false without any network call. A definitive
	// provider rejection is (false, nil); transport failures are errors.
	ValidateAPIKey(ctx context.Context, credential string) (bool, error)
}

// ConfigurationError is caller misuse detected before any network
// activity. It is never retried.
type ConfigurationError struct {
	Field  string
	Reason string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("invalid provider configuration: %s %s", e.Field, e.Reason)
}

// redactKey returns a loggable form of a credential: at most a four-rune
// prefix. Credentials are never logged in full.
func redactKey(key string) string {
	runes := []rune(key)
	if len(runes) <= 4 {
		return "****"
	}
	return string(runes[:4]) + "****"
}
