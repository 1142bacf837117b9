package metadata

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/filefolio/docfolio/constants"
)

// OllamaConfig configures the local-model strategy.
type OllamaConfig struct {
	BaseURL     string // default http://localhost:11434
	Model       string // default llama3.2
	Temperature float32
	Timeout     time.Duration // per-request bound; expiry counts as strategy failure
}

// OllamaStrategy derives metadata through a local Ollama instance using a
// single /api/generate exchange constrained to JSON output.
type OllamaStrategy struct {
	cfg        OllamaConfig
	httpClient *http.Client
	logger     *slog.Logger
}

func NewOllamaStrategy(cfg OllamaConfig, logger *slog.Logger) *OllamaStrategy {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = "http://localhost:11434"
	}
	if cfg.Model == "" {
		cfg.Model = "llama3.2"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 45 * time.Second
	}
	return &OllamaStrategy{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		logger:     logger,
	}
}

func (*OllamaStrategy) Name() string { return "ollama" }

func (s *OllamaStrategy) Derive(ctx context.Context, req Request) (Result, error) {
	rid := uuid.New().String()
	start := time.Now()

	s.logger.Info("llm.derive.start",
		"req_id", rid,
		"model", s.cfg.Model,
		"text_len", len(req.Text),
		"existing_tags", len(req.ExistingTags),
	)

	body := map[string]any{
		"model":  s.cfg.Model,
		"system": buildSystemPrompt(req.ExistingTags),
		"prompt": buildUserPrompt(req),
		"format": "json",
		"stream": false,
		"options": map[string]any{
			"temperature": s.cfg.Temperature,
		},
	}

	ctx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
	defer cancel()

	raw, err := s.post(ctx, strings.TrimRight(s.cfg.BaseURL, "/")+"/api/generate", body)
	if err != nil {
		s.logger.Error("llm.derive.http_error",
			"req_id", rid, "error", err,
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
		return Result{}, err
	}

	var envelope struct {
		Response string `json:"response"`
	}
	if err := json.Unmarshal(raw, &envelope); err != nil {
		s.logger.Error("llm.derive.decode_error",
			"req_id", rid, "error", err, "raw_bytes", len(raw),
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
		return Result{}, fmt.Errorf("decode ollama response: %w", err)
	}
	if strings.TrimSpace(envelope.Response) == "" {
		return Result{}, fmt.Errorf("empty model response")
	}

	cleaned, _, err := normalizeAndSanitizeJSON([]byte(envelope.Response), s.logger)
	if err != nil {
		s.logger.Error("llm.derive.sanitize_failed",
			"req_id", rid, "error", err,
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
		return Result{}, err
	}

	schema := buildMetadataJSONSchema()
	if err := validateJSONAgainstSchema(schema, cleaned); err != nil {
		s.logger.Error("llm.derive.schema_validation_failed",
			"req_id", rid, "error", err, "content", string(cleaned),
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
		return Result{}, fmt.Errorf("schema validation failed: %w", err)
	}

	var out modelResponse
	if err := json.Unmarshal(cleaned, &out); err != nil {
		return Result{}, fmt.Errorf("unmarshal fields: %w", err)
	}

	category, _ := constants.Canonicalize(out.Category)
	s.logger.Info("llm.derive.ok",
		"req_id", rid,
		"category", category,
		"tags", len(out.Tags),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return Result{
		Category:          category,
		Tags:              out.Tags,
		SuggestedFilename: sanitizeSuggestedFilename(out.SuggestedFilename),
		DerivedBy:         constants.DerivedByLLM,
	}, nil
}

func (s *OllamaStrategy) post(ctx context.Context, url string, body map[string]any) ([]byte, error) {
	b, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(b))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("ollama http error: %w", err)
	}
	defer func(body io.ReadCloser) {
		if cerr := body.Close(); cerr != nil {
			s.logger.Warn("ollama response body close error", "error", cerr)
		}
	}(resp.Body)

	raw, _ := io.ReadAll(resp.Body)
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("ollama status %d: %s", resp.StatusCode, string(raw))
	}
	return raw, nil
}

// sanitizeSuggestedFilename keeps model-proposed names shell- and
// path-safe; empty result means "let the deriver build one".
func sanitizeSuggestedFilename(name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return ""
	}
	base := strings.TrimSuffix(name, ".pdf")
	base = sanitizeNamePart(strings.ReplaceAll(base, "_", "-"))
	if base == "" {
		return ""
	}
	return strings.ReplaceAll(base, "-", "_") + ".pdf"
}
