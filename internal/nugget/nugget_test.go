package nugget

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validNuggetJSON() string {
	return `{"golden_nuggets":[{"type":"tool","startContent":"start here","endContent":"end here","synthesis":"why it matters"}]}`
}

func TestValid(t *testing.T) {
	tests := []struct {
		name      string
		candidate any
		want      bool
	}{
		{"canonical payload", validNuggetJSON(), true},
		{"empty nugget list", `{"golden_nuggets":[]}`, true},
		{"bogus type", `{"golden_nuggets":[{"type":"bogus","startContent":"a","endContent":"b","synthesis":"c"}]}`, false},
		{"empty startContent", `{"golden_nuggets":[{"type":"tool","startContent":"","endContent":"b","synthesis":"c"}]}`, false},
		{"missing synthesis", `{"golden_nuggets":[{"type":"tool","startContent":"a","endContent":"b"}]}`, false},
		{"nuggets not an array", `{"golden_nuggets":"nope"}`, false},
		{"nuggets absent", `{"other":1}`, false},
		{"not an object", `"just a string"`, false},
		{"nil", nil, false},
		{"map candidate", map[string]any{"golden_nuggets": []any{}}, true},
		{"struct candidate", Response{Nuggets: []Nugget{{Type: TypeMedia, StartContent: "a", EndContent: "b", Synthesis: "c"}}}, true},
		{"struct with bad type", Response{Nuggets: []Nugget{{Type: "bogus", StartContent: "a", EndContent: "b", Synthesis: "c"}}}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Valid(tt.candidate))
		})
	}
}

func TestNormalizeOpenAI(t *testing.T) {
	raw := []byte(`{"id":"chatcmpl-1","object":"chat.completion","choices":[{"index":0,"message":{"role":"assistant","content":"{\"golden_nuggets\":[{\"type\":\"explanation\",\"startContent\":\"begin\",\"endContent\":\"finish\",\"synthesis\":\"insight\"}]}"},"finish_reason":"stop"}],"usage":{"total_tokens":42}}`)
	resp, err := Normalize(raw, "openai")
	require.NoError(t, err)
	require.Len(t, resp.Nuggets, 1)
	assert.Equal(t, TypeExplanation, resp.Nuggets[0].Type)
	assert.Equal(t, "begin", resp.Nuggets[0].StartContent)
	assert.True(t, Valid(resp))
}

func TestNormalizeGemini(t *testing.T) {
	raw := []byte(`{"candidates":[{"content":{"parts":[{"text":"{\"golden_nuggets\":[{\"type\":\"analogy\",\"start_content\":\"like a\",\"end_content\":\"for code\",\"synthesis\":\"a useful frame\"}]}"},{"extra":"ignored"}],"role":"model"},"finishReason":"STOP","safetyRatings":[]}],"usageMetadata":{"totalTokenCount":7}}`)
	resp, err := Normalize(raw, "gemini")
	require.NoError(t, err)
	require.Len(t, resp.Nuggets, 1)
	assert.Equal(t, TypeAnalogy, resp.Nuggets[0].Type)
	assert.Equal(t, "like a", resp.Nuggets[0].StartContent)
	assert.Equal(t, "for code", resp.Nuggets[0].EndContent)
	assert.True(t, Valid(resp))
}

func TestNormalizeOpenRouterFencedOutput(t *testing.T) {
	inner := "```json\n{\"golden_nuggets\":[{\"type\":\"tool\",\"startContent\":\"x\",\"endContent\":\"y\",\"synthesis\":\"z\"}]}\n```"
	raw, err := wrapChatCompletion(inner)
	require.NoError(t, err)
	resp, err := Normalize(raw, "openrouter")
	require.NoError(t, err)
	require.Len(t, resp.Nuggets, 1)
	assert.Equal(t, TypeTool, resp.Nuggets[0].Type)
}

func TestNormalizeFailures(t *testing.T) {
	tests := []struct {
		name     string
		raw      string
		provider string
	}{
		{"unsupported provider", validNuggetJSON(), "watson"},
		{"body not json", "<html>502</html>", "openai"},
		{"text payload missing", `{"choices":[]}`, "openai"},
		{"model output not json", `{"choices":[{"message":{"content":"sorry, I cannot help"}}]}`, "openai"},
		{"nugget array absent", `{"choices":[{"message":{"content":"{\"items\":[]}"}}]}`, "openai"},
		{"nugget array mistyped", `{"choices":[{"message":{"content":"{\"golden_nuggets\":{}}"}}]}`, "openai"},
		{"nugget fails check", `{"choices":[{"message":{"content":"{\"golden_nuggets\":[{\"type\":\"bogus\",\"startContent\":\"a\",\"endContent\":\"b\",\"synthesis\":\"c\"}]}"}}]}`, "openai"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Normalize([]byte(tt.raw), tt.provider)
			require.Error(t, err)
			var normErr *NormalizationError
			assert.ErrorAs(t, err, &normErr)
		})
	}
}

// wrapChatCompletion builds a minimal chat-completion body whose message
// content is the given string, escaping it the way a real body would.
func wrapChatCompletion(content string) ([]byte, error) {
	body := map[string]any{
		"choices": []any{
			map[string]any{"message": map[string]any{"role": "assistant", "content": content}},
		},
	}
	return json.Marshal(body)
}
