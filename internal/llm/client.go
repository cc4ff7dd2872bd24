// Package llm provides the completion client used by the extraction and
// classification pipelines.
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/stephennewman/contextmemo-sub002/internal/common/config"
	apperrors "github.com/stephennewman/contextmemo-sub002/internal/common/errors"
	"github.com/stephennewman/contextmemo-sub002/internal/common/logger"
	"github.com/stephennewman/contextmemo-sub002/internal/common/metrics"
)

// Client calls the hosted completion API. Retries are bounded with
// exponential backoff; the context deadline always wins.
type Client struct {
	baseURL     string
	apiKey      string
	model       string
	maxTokens   int
	temperature float64
	timeout     time.Duration
	maxRetries  int
	client      *http.Client
	logger      logger.Logger
}

func NewClient(cfg *config.Config, log logger.Logger) *Client {
	return &Client{
		baseURL:     cfg.APIs.GenAI.BaseURL,
		apiKey:      cfg.APIs.GenAI.APIKey,
		model:       cfg.APIs.GenAI.Model,
		maxTokens:   cfg.APIs.GenAI.MaxTokens,
		temperature: cfg.APIs.GenAI.Temperature,
		timeout:     config.GetDuration(cfg.APIs.GenAI.Timeout),
		maxRetries:  cfg.APIs.GenAI.MaxRetries,
		// No client timeout: the per-call context carries the deadline.
		client: &http.Client{},
		logger: log.WithFields(map[string]interface{}{"component": "llm"}),
	}
}

type completionRequest struct {
	Model       string  `json:"model"`
	Prompt      string  `json:"prompt"`
	MaxTokens   int     `json:"max_tokens"`
	Temperature float64 `json:"temperature"`
}

type completionResponse struct {
	Text string `json:"text"`
}

// Complete sends one prompt and returns the raw completion text. The
// operation label is only used for metrics.
func (c *Client) Complete(ctx context.Context, operation, prompt string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	body, _ := json.Marshal(completionRequest{
		Model:       c.model,
		Prompt:      prompt,
		MaxTokens:   c.maxTokens,
		Temperature: c.temperature,
	})

	var resp *http.Response
	var lastErr error

	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			backoff := time.Duration(100*(1<<(attempt-1))) * time.Millisecond
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				metrics.LLMCallsTotal.WithLabelValues(operation, "timeout").Inc()
				return "", apperrors.NewLLMTimeoutError()
			}
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/completions", bytes.NewReader(body))
		if err != nil {
			return "", apperrors.NewLLMSynthesisFailedError(err)
		}
		req.Header.Set("Content-Type", "application/json")
		if c.apiKey != "" {
			req.Header.Set("Authorization", "Bearer "+c.apiKey)
		}

		resp, lastErr = c.client.Do(req)
		if lastErr == nil {
			if resp.StatusCode == http.StatusOK {
				break
			}
			resp.Body.Close()
			lastErr = fmt.Errorf("status %d", resp.StatusCode)
			resp = nil
		}

		if ctx.Err() != nil {
			metrics.LLMCallsTotal.WithLabelValues(operation, "timeout").Inc()
			return "", apperrors.NewLLMTimeoutError()
		}
	}

	if lastErr != nil {
		if ctx.Err() == context.DeadlineExceeded {
			metrics.LLMCallsTotal.WithLabelValues(operation, "timeout").Inc()
			return "", apperrors.NewLLMTimeoutError()
		}
		metrics.LLMCallsTotal.WithLabelValues(operation, "error").Inc()
		return "", apperrors.NewLLMSynthesisFailedError(lastErr)
	}

	if resp == nil {
		metrics.LLMCallsTotal.WithLabelValues(operation, "error").Inc()
		return "", apperrors.NewLLMSynthesisFailedError(errors.New("no successful response after retries"))
	}
	defer resp.Body.Close()

	var apiResponse completionResponse
	if err := json.NewDecoder(resp.Body).Decode(&apiResponse); err != nil {
		metrics.LLMCallsTotal.WithLabelValues(operation, "error").Inc()
		return "", apperrors.NewLLMSynthesisFailedError(fmt.Errorf("decode response: %w", err))
	}

	if strings.TrimSpace(apiResponse.Text) == "" {
		metrics.LLMCallsTotal.WithLabelValues(operation, "empty").Inc()
		return "", apperrors.NewLLMSynthesisFailedError(errors.New("empty completion"))
	}

	c.logger.Debug("completion received", map[string]interface{}{
		"operation": operation,
		"length":    len(apiResponse.Text),
	})
	metrics.LLMCallsTotal.WithLabelValues(operation, "success").Inc()

	return apiResponse.Text, nil
}
