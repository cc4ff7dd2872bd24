package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stephennewman/contextmemo-sub002/internal/common/config"
	apperrors "github.com/stephennewman/contextmemo-sub002/internal/common/errors"
	"github.com/stephennewman/contextmemo-sub002/internal/common/logger"
)

func newClientForTest(t *testing.T, handler http.Handler, timeoutMs int) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	cfg := &config.Config{}
	cfg.APIs.GenAI.BaseURL = srv.URL
	cfg.APIs.GenAI.Model = "test-model"
	cfg.APIs.GenAI.Timeout = timeoutMs
	return NewClient(cfg, logger.NewNoOpLogger())
}

func TestCompleteReturnsText(t *testing.T) {
	client := newClientForTest(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req completionRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "test-model", req.Model)
		json.NewEncoder(w).Encode(completionResponse{Text: "the answer"})
	}), 5000)

	text, err := client.Complete(context.Background(), "test_op", "a prompt")
	require.NoError(t, err)
	assert.Equal(t, "the answer", text)
}

func TestCompleteUpstreamFailureMapsToBadGateway(t *testing.T) {
	client := newClientForTest(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}), 5000)

	_, err := client.Complete(context.Background(), "test_op", "a prompt")
	require.Error(t, err)

	var stdErr *apperrors.StandardError
	require.ErrorAs(t, err, &stdErr)
	assert.Equal(t, apperrors.ErrCodeLLMSynthesisFailed, stdErr.Code)

	apiErr := apperrors.ToAPIError(err)
	assert.Equal(t, http.StatusBadGateway, apiErr.Status)
	assert.Equal(t, "LLM_SYNTHESIS_FAILED", apiErr.Code)
}

func TestCompleteEmptyCompletionFails(t *testing.T) {
	client := newClientForTest(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(completionResponse{Text: "   "})
	}), 5000)

	_, err := client.Complete(context.Background(), "test_op", "a prompt")
	require.Error(t, err)

	var stdErr *apperrors.StandardError
	require.ErrorAs(t, err, &stdErr)
	assert.Equal(t, apperrors.ErrCodeLLMSynthesisFailed, stdErr.Code)
}

func TestCompleteDeadlineMapsToGatewayTimeout(t *testing.T) {
	client := newClientForTest(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
		json.NewEncoder(w).Encode(completionResponse{Text: "late"})
	}), 20)

	_, err := client.Complete(context.Background(), "test_op", "a prompt")
	require.Error(t, err)

	var stdErr *apperrors.StandardError
	require.ErrorAs(t, err, &stdErr)
	assert.Equal(t, apperrors.ErrCodeLLMTimeout, stdErr.Code)

	apiErr := apperrors.ToAPIError(err)
	assert.Equal(t, http.StatusGatewayTimeout, apiErr.Status)
}
