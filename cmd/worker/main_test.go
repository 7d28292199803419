package main

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	"nugget-extractor/internal/app"
	"nugget-extractor/internal/config"
	"nugget-extractor/internal/extract"
	"nugget-extractor/internal/matcher"
	"nugget-extractor/internal/nugget"
	"nugget-extractor/internal/provider"
	"nugget-extractor/internal/queue"
	"nugget-extractor/internal/retry"
	"nugget-extractor/internal/settings"
	"nugget-extractor/internal/store"
)

type fixedFactory struct {
	client provider.Client
}

func (f *fixedFactory) New(provider.Config) (provider.Client, error) { return f.client, nil }

func newTestDeps(client provider.Client, st store.Store) app.Deps {
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	executor := retry.NewExecutor(log)
	executor.BaseDelay = time.Millisecond
	settingsStore := settings.NewMemoryStore()
	return app.Deps{
		Config: config.Config{
			DefaultProvider: "openai",
			OpenAIAPIKey:    "sk-test",
		},
		Log:       log,
		Store:     st,
		Settings:  settingsStore,
		Factory:   provider.NewFactory(log, settingsStore),
		Extractor: extract.NewService(log, &fixedFactory{client: client}, executor),
	}
}

func chatBody(t *testing.T, content string) json.RawMessage {
	t.Helper()
	body, err := json.Marshal(map[string]any{
		"choices": []any{map[string]any{"message": map[string]any{"role": "assistant", "content": content}}},
	})
	if err != nil {
		t.Fatalf("marshal chat body: %v", err)
	}
	return body
}

func TestHandleExtractCompletesRun(t *testing.T) {
	runID := uuid.New()
	source := "Some intro. Write tests before the fix to lock the bug in place. The end."
	content := `{"golden_nuggets":[{"type":"explanation","startContent":"Write tests before the fix","endContent":"lock the bug in place.","synthesis":"Regression tests first."}]}`

	client := new(provider.MockClient)
	client.On("Extract", mock.Anything, source, mock.Anything).Return(chatBody(t, content), nil).Once()

	st := new(store.MockStore)
	st.On("CompleteRun", mock.Anything, runID, 1, mock.MatchedBy(func(nuggets []store.SavedNugget) bool {
		return len(nuggets) == 1 && nuggets[0].StartOffset != nil && nuggets[0].Type == "explanation"
	})).Return(nil).Once()

	deps := newTestDeps(client, st)
	err := handleExtract(context.Background(), deps, queue.Job{
		RunID:      runID,
		Provider:   "openai",
		SourceText: source,
	})
	if err != nil {
		t.Fatalf("handleExtract returned %v", err)
	}
	st.AssertExpectations(t)
	client.AssertExpectations(t)
}

func TestHandleExtractTerminalFailureMarksRunFailed(t *testing.T) {
	runID := uuid.New()
	client := new(provider.MockClient)
	client.On("Extract", mock.Anything, mock.Anything, mock.Anything).
		Return(nil, errors.New("Invalid API key provided")).Once()

	st := new(store.MockStore)
	st.On("FailRun", mock.Anything, runID, 1, mock.MatchedBy(func(msg string) bool {
		return msg != ""
	})).Return(nil).Once()

	deps := newTestDeps(client, st)
	err := handleExtract(context.Background(), deps, queue.Job{
		RunID:      runID,
		Provider:   "openai",
		SourceText: "text",
	})
	// Terminal failures are swallowed so the queue does not requeue them.
	if err != nil {
		t.Fatalf("handleExtract returned %v, want nil", err)
	}
	st.AssertExpectations(t)
}

func TestHandleExtractTransientFailureRequeues(t *testing.T) {
	client := new(provider.MockClient)
	client.On("Extract", mock.Anything, mock.Anything, mock.Anything).
		Return(nil, errors.New("connection refused"))

	st := new(store.MockStore) // FailRun must not be called

	deps := newTestDeps(client, st)
	err := handleExtract(context.Background(), deps, queue.Job{
		RunID:      uuid.New(),
		Provider:   "openai",
		SourceText: "text",
	})
	if err == nil {
		t.Fatal("expected an error so the queue requeues the task")
	}
	st.AssertExpectations(t)
}

func nuggetOf(typ, start, end, synthesis string) nugget.Nugget {
	return nugget.Nugget{Type: nugget.Type(typ), StartContent: start, EndContent: end, Synthesis: synthesis}
}

func matchOf(start, end int, conf float64) *matcher.Match {
	return &matcher.Match{StartOffset: start, EndOffset: end, Confidence: conf}
}

func TestToSavedKeepsOrderAndOffsets(t *testing.T) {
	runID := uuid.New()
	located := []extract.LocatedNugget{
		{Nugget: nuggetOf("tool", "a", "b", "c"), Match: nil},
		{Nugget: nuggetOf("media", "d", "e", "f"), Match: matchOf(3, 9, 0.8)},
	}
	saved := toSaved(runID, located)
	if len(saved) != 2 {
		t.Fatalf("len = %d, want 2", len(saved))
	}
	if saved[0].Index != 0 || saved[1].Index != 1 {
		t.Error("order must follow the model's output order")
	}
	if saved[0].StartOffset != nil {
		t.Error("unmatched nugget should have nil offsets")
	}
	if saved[1].StartOffset == nil || *saved[1].StartOffset != 3 || *saved[1].EndOffset != 9 {
		t.Error("matched nugget offsets not carried over")
	}
}
