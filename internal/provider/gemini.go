package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
)

const (
	geminiBaseURL = "https://generativelanguage.googleapis.com"
	geminiTimeout = 60 * time.Second
)

// GeminiClient calls the Gemini REST API directly over HTTP.
type GeminiClient struct {
	http  *resty.Client
	model string
}

// NewGemini builds a client against the public Gemini endpoint. The API key
// goes into a header per request, never into the URL or body.
func NewGemini(apiKey, model string) *GeminiClient {
	return &GeminiClient{
		http: resty.New().
			SetBaseURL(geminiBaseURL).
			SetHeader("Content-Type", "application/json").
			SetHeader("x-goog-api-key", apiKey).
			SetTimeout(geminiTimeout),
		model: model,
	}
}

type geminiPart struct {
	Text string `json:"text"`
}

type geminiContent struct {
	Parts []geminiPart `json:"parts"`
}

type geminiGenerationConfig struct {
	ResponseMIMEType string `json:"responseMimeType"`
}

type geminiRequest struct {
	Contents         []geminiContent        `json:"contents"`
	GenerationConfig geminiGenerationConfig `json:"generationConfig"`
}

func (c *GeminiClient) Extract(ctx context.Context, sourceText, instructionPrompt string) (json.RawMessage, error) {
	// Gemini takes one combined text part; the instruction goes after the
	// source so the document reads first.
	body := geminiRequest{
		Contents: []geminiContent{
			{Parts: []geminiPart{{Text: sourceText + "\n\n" + instructionPrompt}}},
		},
		GenerationConfig: geminiGenerationConfig{ResponseMIMEType: "application/json"},
	}

	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(body).
		Post("/v1beta/models/" + c.model + ":generateContent")
	if err != nil {
		return nil, fmt.Errorf("gemini request failed: %w", err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("gemini API error %d: %s", resp.StatusCode(), resp.String())
	}
	raw := resp.Body()
	if len(raw) == 0 {
		return nil, fmt.Errorf("gemini API returned an empty response body")
	}
	return json.RawMessage(raw), nil
}

func (c *GeminiClient) ValidateAPIKey(ctx context.Context, credential string) (bool, error) {
	if strings.TrimSpace(credential) == "" {
		return false, nil
	}
	resp, err := c.http.R().
		SetContext(ctx).
		SetHeader("x-goog-api-key", credential).
		Get("/v1beta/models")
	if err != nil {
		return false, fmt.Errorf("gemini key probe failed: %w", err)
	}
	switch resp.StatusCode() {
	case http.StatusOK:
		return true, nil
	case http.StatusBadRequest, http.StatusUnauthorized, http.StatusForbidden:
		// Gemini answers 400 with "API key not valid" for bad keys.
		return false, nil
	default:
		return false, fmt.Errorf("gemini key probe error %d: %s", resp.StatusCode(), resp.String())
	}
}
