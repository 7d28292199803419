package extract

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"nugget-extractor/internal/llmerr"
	"nugget-extractor/internal/nugget"
	"nugget-extractor/internal/provider"
	"nugget-extractor/internal/retry"
)

// stubFactory hands back a fixed client, or a construction error.
type stubFactory struct {
	client provider.Client
	err    error
}

func (f *stubFactory) New(provider.Config) (provider.Client, error) {
	return f.client, f.err
}

func testService(client provider.Client) *Service {
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewService(log, &stubFactory{client: client}, fastExecutor(log))
}

func fastExecutor(log *slog.Logger) *retry.Executor {
	e := retry.NewExecutor(log)
	e.BaseDelay = time.Millisecond
	return e
}

func testConfig() provider.Config {
	return provider.Config{ProviderID: provider.OpenAI, Model: "gpt-4o-mini", APIKey: "sk-test"}
}

const testSource = "Intro paragraph. The pomodoro technique keeps focus sharp over long sessions. Closing thoughts."

func chatBody(t *testing.T, content string) json.RawMessage {
	t.Helper()
	body, err := json.Marshal(map[string]any{
		"choices": []any{map[string]any{"message": map[string]any{"role": "assistant", "content": content}}},
	})
	require.NoError(t, err)
	return body
}

func TestExtractHappyPath(t *testing.T) {
	client := new(provider.MockClient)
	content := `{"golden_nuggets":[{"type":"tool","startContent":"The pomodoro technique","endContent":"over long sessions.","synthesis":"A cheap way to protect focus."}]}`
	client.On("Extract", mock.Anything, testSource, mock.Anything).
		Return(chatBody(t, content), nil).Once()

	res, err := testService(client).Extract(context.Background(), testConfig(), Request{SourceText: testSource})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Attempts)
	require.Len(t, res.Nuggets, 1)

	n := res.Nuggets[0]
	assert.Equal(t, nugget.TypeTool, n.Type)
	require.NotNil(t, n.Match)
	assert.Equal(t, 1.0, n.Match.Confidence)
	span := testSource[n.Match.StartOffset:n.Match.EndOffset]
	assert.Equal(t, "The pomodoro technique keeps focus sharp over long sessions.", span)
	client.AssertExpectations(t)
}

func TestExtractUsesDefaultPrompt(t *testing.T) {
	client := new(provider.MockClient)
	client.On("Extract", mock.Anything, testSource, DefaultPrompt).
		Return(chatBody(t, `{"golden_nuggets":[]}`), nil).Once()

	_, err := testService(client).Extract(context.Background(), testConfig(), Request{SourceText: testSource})
	require.NoError(t, err)
	client.AssertExpectations(t)
}

func TestExtractConfigurationErrorBeforeNetwork(t *testing.T) {
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	svc := NewService(log, &stubFactory{err: &provider.ConfigurationError{Field: "api key", Reason: "is missing"}}, fastExecutor(log))

	_, err := svc.Extract(context.Background(), provider.Config{}, Request{SourceText: testSource})
	var cfgErr *provider.ConfigurationError
	require.ErrorAs(t, err, &cfgErr)
}

func TestExtractRetriesTransientFailure(t *testing.T) {
	client := new(provider.MockClient)
	client.On("Extract", mock.Anything, mock.Anything, mock.Anything).
		Return(nil, errors.New("connection reset by peer")).Once()
	client.On("Extract", mock.Anything, mock.Anything, mock.Anything).
		Return(chatBody(t, `{"golden_nuggets":[]}`), nil).Once()

	res, err := testService(client).Extract(context.Background(), testConfig(), Request{SourceText: testSource})
	require.NoError(t, err)
	assert.Equal(t, 2, res.Attempts)
	client.AssertExpectations(t)
}

func TestExtractCredentialErrorNotRetried(t *testing.T) {
	client := new(provider.MockClient)
	client.On("Extract", mock.Anything, mock.Anything, mock.Anything).
		Return(nil, errors.New("401: invalid API key")).Once()

	res, err := testService(client).Extract(context.Background(), testConfig(), Request{SourceText: testSource})
	require.Error(t, err)
	assert.Equal(t, 1, res.Attempts)
	var enhanced *llmerr.Error
	require.ErrorAs(t, err, &enhanced)
	assert.Equal(t, llmerr.KindInvalidCredential, enhanced.Kind)
	client.AssertExpectations(t)
}

func TestExtractNormalizationFailureIsTerminal(t *testing.T) {
	client := new(provider.MockClient)
	client.On("Extract", mock.Anything, mock.Anything, mock.Anything).
		Return(json.RawMessage(`{"unexpected":"shape"}`), nil).Once()

	_, err := testService(client).Extract(context.Background(), testConfig(), Request{SourceText: testSource})
	var normErr *nugget.NormalizationError
	require.ErrorAs(t, err, &normErr)
	// Exactly one call: a malformed payload is not fixed by resending.
	client.AssertNumberOfCalls(t, "Extract", 1)
}

func TestExtractNoMatchDegradesGracefully(t *testing.T) {
	client := new(provider.MockClient)
	content := `{"golden_nuggets":[{"type":"explanation","startContent":"text that exists nowhere in the source at all","endContent":"equally absent closing words here","synthesis":"still worth surfacing"}]}`
	client.On("Extract", mock.Anything, mock.Anything, mock.Anything).
		Return(chatBody(t, content), nil).Once()

	res, err := testService(client).Extract(context.Background(), testConfig(), Request{SourceText: testSource})
	require.NoError(t, err)
	require.Len(t, res.Nuggets, 1)
	assert.Nil(t, res.Nuggets[0].Match, "unmatched nuggets carry no span but are still returned")
}

func TestValidateAPIKey(t *testing.T) {
	client := new(provider.MockClient)
	client.On("ValidateAPIKey", mock.Anything, "sk-test").Return(true, nil).Once()

	ok, err := testService(client).ValidateAPIKey(context.Background(), testConfig())
	require.NoError(t, err)
	assert.True(t, ok)
	client.AssertExpectations(t)
}
