package nugget

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/tidwall/gjson"
)

// NormalizationError reports a provider payload that could not be mapped
// onto the canonical response. It is never retried: resending an identical
// request will not fix a malformed payload.
type NormalizationError struct {
	Provider string
	Reason   string
}

func (e *NormalizationError) Error() string {
	return fmt.Sprintf("normalize %s response: %s", e.Provider, e.Reason)
}

// textPaths maps a provider id to the nesting path of the model's text
// payload inside the raw response body.
var textPaths = map[string]string{
	"gemini":     "candidates.0.content.parts.0.text",
	"openai":     "choices.0.message.content",
	"openrouter": "choices.0.message.content",
}

// Normalize maps a raw provider response body onto the canonical Response.
// Unknown vendor fields are ignored; a missing or non-array nugget list is
// a loud, distinct failure. The returned response always passes Check.
func Normalize(raw []byte, providerID string) (Response, error) {
	path, ok := textPaths[providerID]
	if !ok {
		return Response{}, &NormalizationError{Provider: providerID, Reason: "unsupported provider"}
	}
	if !gjson.ValidBytes(raw) {
		return Response{}, &NormalizationError{Provider: providerID, Reason: "response body is not valid JSON"}
	}

	text := gjson.GetBytes(raw, path)
	if !text.Exists() || text.String() == "" {
		return Response{}, &NormalizationError{Provider: providerID, Reason: "text payload missing at " + path}
	}

	payload := stripFences(text.String())
	if !gjson.Valid(payload) {
		return Response{}, &NormalizationError{Provider: providerID, Reason: "model output is not valid JSON"}
	}

	arr := gjson.Get(payload, "golden_nuggets")
	if !arr.Exists() {
		return Response{}, &NormalizationError{Provider: providerID, Reason: "golden_nuggets array is absent"}
	}
	if !arr.IsArray() {
		return Response{}, &NormalizationError{Provider: providerID, Reason: "golden_nuggets is not an array"}
	}

	resp := Response{Nuggets: []Nugget{}}
	for _, elem := range arr.Array() {
		resp.Nuggets = append(resp.Nuggets, Nugget{
			Type:         Type(strings.ToLower(elem.Get("type").String())),
			StartContent: firstOf(elem, "startContent", "start_content"),
			EndContent:   firstOf(elem, "endContent", "end_content"),
			Synthesis:    firstOf(elem, "synthesis", "content"),
		})
	}
	if err := resp.Check(); err != nil {
		return Response{}, &NormalizationError{Provider: providerID, Reason: err.Error()}
	}
	return resp, nil
}

// firstOf returns the first non-empty string among the field-name variants
// different models emit for the same canonical field.
func firstOf(elem gjson.Result, keys ...string) string {
	for _, k := range keys {
		if v := elem.Get(k); v.Exists() && v.String() != "" {
			return v.String()
		}
	}
	return ""
}

// stripFences removes a surrounding markdown code fence, which some models
// add around JSON output even when told not to.
func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}

// validFromJSON is the tolerant half of Valid: anything that serializes to
// the canonical shape counts, anything else is false, never a panic.
func validFromJSON(candidate any) bool {
	var raw []byte
	switch v := candidate.(type) {
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		marshaled, err := json.Marshal(candidate)
		if err != nil {
			return false
		}
		raw = marshaled
	}
	if !gjson.ValidBytes(raw) {
		return false
	}
	arr := gjson.GetBytes(raw, "golden_nuggets")
	if !arr.Exists() || !arr.IsArray() {
		return false
	}
	for _, elem := range arr.Array() {
		if !knownType(elem.Get("type").String()) {
			return false
		}
		for _, field := range []string{"startContent", "endContent", "synthesis"} {
			v := elem.Get(field)
			if v.Type != gjson.String || v.String() == "" {
				return false
			}
		}
	}
	return true
}

func knownType(s string) bool {
	for _, t := range Types {
		if Type(s) == t {
			return true
		}
	}
	return false
}
