package provider

// Known model names per provider. Vendors add models faster than this list
// updates, so unknown names are allowed with a logged warning rather than
// rejected (see Factory.ValidateModel).
var knownModels = map[ID][]string{
	Gemini: {
		"gemini-2.5-pro",
		"gemini-2.5-flash",
		"gemini-2.0-flash",
	},
	OpenAI: {
		"gpt-4o",
		"gpt-4o-mini",
		"gpt-4.1",
		"gpt-4.1-mini",
	},
	OpenRouter: {
		"openai/gpt-4o-mini",
		"anthropic/claude-sonnet-4",
		"google/gemini-2.5-flash",
		"meta-llama/llama-3.1-70b-instruct",
	},
}

// defaultModels is the fallback when the settings store carries no override.
var defaultModels = map[ID]string{
	Gemini:     "gemini-2.5-flash",
	OpenAI:     "gpt-4o-mini",
	OpenRouter: "openai/gpt-4o-mini",
}

// DefaultModel returns the hard-coded default model for a provider, or ""
// for an unsupported id.
func DefaultModel(id ID) string {
	return defaultModels[id]
}

func isKnownModel(id ID, model string) bool {
	for _, m := range knownModels[id] {
		if m == model {
			return true
		}
	}
	return false
}
