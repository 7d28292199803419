package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/ledongthuc/pdf"

	"nugget-extractor/internal/app"
	"nugget-extractor/internal/extract"
	"nugget-extractor/internal/httputil"
	"nugget-extractor/internal/llmerr"
	"nugget-extractor/internal/nugget"
	"nugget-extractor/internal/provider"
	"nugget-extractor/internal/queue"
	"nugget-extractor/internal/store"
)

func main() {
	deps, err := app.Build()
	if err != nil {
		slog.Default().Error("failed to build dependencies", "err", err)
		os.Exit(1)
	}
	r := httputil.NewRouter(deps.Log)

	r.Post("/api/extract", extractHandler(deps))
	r.Post("/api/runs", submitRunHandler(deps))
	r.Get("/api/runs/{id}", runStatusHandler(deps))
	r.Post("/api/providers/{id}/validate-key", validateKeyHandler(deps))
	r.Get("/healthz", httputil.HealthHandler(deps.Log))

	addr := fmt.Sprintf(":%d", deps.Config.Port)
	deps.Log.Info("gateway listening", "addr", addr)
	if err := http.ListenAndServe(addr, r); err != nil {
		deps.Log.Error("server failed", "err", err)
	}
}

type extractRequest struct {
	Provider          string `json:"provider"`
	SourceText        string `json:"source_text"`
	InstructionPrompt string `json:"instruction_prompt"`
}

// extractHandler runs the whole pipeline synchronously and returns the
// located nuggets in the response.
func extractHandler(deps app.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		var req extractRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			httputil.Fail(deps.Log, w, "invalid request body", err, http.StatusBadRequest)
			return
		}
		if strings.TrimSpace(req.SourceText) == "" {
			httputil.Fail(deps.Log, w, "source_text is required", nil, http.StatusBadRequest)
			return
		}

		cfg, err := deps.ResolveProviderConfig(ctx, req.Provider)
		if err != nil {
			httputil.Fail(deps.Log, w, err.Error(), err, http.StatusBadRequest)
			return
		}

		result, err := deps.Extractor.Extract(ctx, cfg, extract.Request{
			SourceText:        req.SourceText,
			InstructionPrompt: req.InstructionPrompt,
		})
		if err != nil {
			writeExtractionError(deps.Log, w, err)
			return
		}
		httputil.WriteJSON(w, http.StatusOK, result)
	}
}

// submitRunHandler accepts an extraction job (JSON body, or a multipart
// txt/pdf upload) and queues it for the worker.
func submitRunHandler(deps app.Deps) http.HandlerFunc {
	maxUploadSize := deps.Config.MaxUploadSize

	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		var req extractRequest
		if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
			if r.ContentLength > maxUploadSize {
				httputil.Fail(deps.Log, w, fmt.Sprintf("file too large (max %d bytes)", maxUploadSize), nil, http.StatusBadRequest)
				return
			}
			file, header, err := r.FormFile("file")
			if err != nil {
				httputil.Fail(deps.Log, w, "file is required", err, http.StatusBadRequest)
				return
			}
			defer file.Close()
			if header.Size > maxUploadSize {
				httputil.Fail(deps.Log, w, fmt.Sprintf("file too large (max %d bytes)", maxUploadSize), nil, http.StatusBadRequest)
				return
			}
			content, err := io.ReadAll(file)
			if err != nil {
				httputil.Fail(deps.Log, w, "failed to read file", err, http.StatusInternalServerError)
				return
			}
			req.SourceText = extractText(deps, header.Filename, content)
			req.Provider = r.FormValue("provider")
			req.InstructionPrompt = r.FormValue("instruction_prompt")
		} else {
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
				httputil.Fail(deps.Log, w, "invalid request body", err, http.StatusBadRequest)
				return
			}
		}
		if strings.TrimSpace(req.SourceText) == "" {
			httputil.Fail(deps.Log, w, "source_text is required", nil, http.StatusBadRequest)
			return
		}

		cfg, err := deps.ResolveProviderConfig(ctx, req.Provider)
		if err != nil {
			httputil.Fail(deps.Log, w, err.Error(), err, http.StatusBadRequest)
			return
		}

		run, err := deps.Store.CreateRun(ctx, string(cfg.ProviderID), cfg.Model, req.SourceText)
		if err != nil {
			httputil.Fail(deps.Log, w, "failed to persist run", err, http.StatusInternalServerError)
			return
		}

		job := queue.Job{
			RunID:             run.ID,
			Provider:          string(cfg.ProviderID),
			SourceText:        req.SourceText,
			InstructionPrompt: req.InstructionPrompt,
		}
		if err := queue.EnqueueWithRetry(ctx, deps.Queue, job, 3, 200*time.Millisecond); err != nil {
			failRun(deps, w, run.ID, "failed to enqueue run; please retry", err)
			return
		}

		httputil.WriteJSON(w, http.StatusAccepted, map[string]any{
			"run_id": run.ID.String(),
			"status": run.Status,
		})
	}
}

func runStatusHandler(deps app.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		runID, err := uuid.Parse(chi.URLParam(r, "id"))
		if err != nil {
			httputil.Fail(deps.Log, w, "invalid run id", err, http.StatusBadRequest)
			return
		}
		run, err := deps.Store.GetRun(ctx, runID)
		if errors.Is(err, store.ErrRunNotFound) {
			httputil.Fail(deps.Log, w, "run not found", err, http.StatusNotFound)
			return
		}
		if err != nil {
			httputil.Fail(deps.Log, w, "failed to load run", err, http.StatusInternalServerError)
			return
		}

		resp := map[string]any{
			"run_id":   run.ID.String(),
			"provider": run.Provider,
			"model":    run.Model,
			"status":   run.Status,
			"attempts": run.Attempts,
		}
		if run.Error != "" {
			resp["error"] = run.Error
		}
		if run.Status == store.StatusCompleted {
			nuggets, err := deps.Store.ListNuggets(ctx, runID)
			if err != nil {
				httputil.Fail(deps.Log, w, "failed to load nuggets", err, http.StatusInternalServerError)
				return
			}
			resp["nuggets"] = nuggets
		}
		httputil.WriteJSON(w, http.StatusOK, resp)
	}
}

type validateKeyRequest struct {
	APIKey string `json:"api_key"`
}

func validateKeyHandler(deps app.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		providerID := provider.ID(chi.URLParam(r, "id"))
		if !provider.Supported(providerID) {
			httputil.Fail(deps.Log, w, "unsupported provider", nil, http.StatusBadRequest)
			return
		}
		var req validateKeyRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			httputil.Fail(deps.Log, w, "invalid request body", err, http.StatusBadRequest)
			return
		}

		if strings.TrimSpace(req.APIKey) == "" {
			httputil.WriteJSON(w, http.StatusOK, map[string]any{"valid": false})
			return
		}

		valid, err := deps.Extractor.ValidateAPIKey(r.Context(), provider.Config{
			ProviderID: providerID,
			APIKey:     req.APIKey,
		})
		if err != nil {
			writeExtractionError(deps.Log, w, err)
			return
		}
		httputil.WriteJSON(w, http.StatusOK, map[string]any{"valid": valid})
	}
}

// writeExtractionError maps pipeline failures onto HTTP statuses while
// keeping the enhanced, remediation-bearing message as the body.
func writeExtractionError(log *slog.Logger, w http.ResponseWriter, err error) {
	status := http.StatusBadGateway

	var cfgErr *provider.ConfigurationError
	var normErr *nugget.NormalizationError
	var enhanced *llmerr.Error
	switch {
	case errors.As(err, &cfgErr):
		status = http.StatusBadRequest
	case errors.As(err, &normErr):
		status = http.StatusBadGateway
	case errors.As(err, &enhanced):
		switch enhanced.Kind {
		case llmerr.KindInvalidCredential, llmerr.KindAccessDenied:
			status = http.StatusUnauthorized
		case llmerr.KindInvalidRequest:
			status = http.StatusBadRequest
		case llmerr.KindRateLimited:
			status = http.StatusTooManyRequests
		case llmerr.KindRequestTimeout:
			status = http.StatusGatewayTimeout
		}
	}
	httputil.Fail(log, w, err.Error(), err, status)
}

// failRun marks the run failed before reporting the HTTP error.
func failRun(deps app.Deps, w http.ResponseWriter, runID uuid.UUID, message string, err error) {
	// A background context so the run still gets marked when the request
	// context is already done.
	if upErr := deps.Store.FailRun(context.Background(), runID, 0, message); upErr != nil {
		deps.Log.Error("failed to mark run failed", "run_id", runID, "err", upErr)
	}
	httputil.Fail(deps.Log.With("run_id", runID), w, message, err, http.StatusInternalServerError)
}

// extractText extracts text from uploaded files, with PDF support.
func extractText(deps app.Deps, filename string, content []byte) string {
	if strings.HasSuffix(strings.ToLower(filename), ".pdf") {
		text, err := extractPDF(content)
		if err != nil {
			deps.Log.Warn("pdf extraction failed, using raw bytes", "err", err, "filename", filename)
			return string(content)
		}
		return text
	}
	// Treat other files as plain text
	return string(content)
}

func extractPDF(content []byte) (string, error) {
	reader := bytes.NewReader(content)
	pdfReader, err := pdf.NewReader(reader, int64(len(content)))
	if err != nil {
		return "", err
	}

	var textBuilder strings.Builder
	numPages := pdfReader.NumPage()

	for pageNum := 1; pageNum <= numPages; pageNum++ {
		page := pdfReader.Page(pageNum)
		if page.V.IsNull() || page.V.Key("Contents").Kind() == pdf.Null {
			continue
		}

		text, err := page.GetPlainText(nil)
		if err != nil {
			// Skip pages that fail to extract
			continue
		}
		textBuilder.WriteString(text)
		textBuilder.WriteString("\n")
	}

	return textBuilder.String(), nil
}
