package verify

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/christo725/seen/internal/gemini"
)

// newModelServer returns a generateContent stub whose per-call responses come
// from the supplied texts; calls beyond the list repeat the last entry.
func newModelServer(t *testing.T, calls *atomic.Int64, texts ...string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := calls.Add(1)
		idx := int(n) - 1
		if idx >= len(texts) {
			idx = len(texts) - 1
		}
		resp := map[string]interface{}{
			"candidates": []map[string]interface{}{
				{"content": map[string]interface{}{
					"parts": []map[string]string{{"text": texts[idx]}},
				}},
			},
		}
		w.Header().Set("Content-Type", "application/json")
		if err := writeJSON(w, resp); err != nil {
			t.Errorf("failed to write stub response: %v", err)
		}
	}))
}

func writeJSON(w http.ResponseWriter, v interface{}) error {
	return json.NewEncoder(w).Encode(v)
}

func newTestVerifier(baseURL string, sleeps *[]time.Duration) *Verifier {
	client := gemini.NewClient(gemini.Config{
		APIKey:  "test-key",
		BaseURL: baseURL + "/v1beta",
		Model:   "gemini-2.5-flash",
	}, zap.NewNop())
	return &Verifier{
		gemini:       client,
		httpClient:   &http.Client{Timeout: 5 * time.Second},
		log:          zap.NewNop(),
		sleep:        func(d time.Duration) { *sleeps = append(*sleeps, d) },
		pollInterval: time.Millisecond,
		pollTimeout:  50 * time.Millisecond,
		batchLimit:   10,
	}
}

func TestInvokeModel_FirstAttemptSucceeds(t *testing.T) {
	var calls atomic.Int64
	ts := newModelServer(t, &calls, `{"status": "verified", "result": "fine"}`)
	defer ts.Close()

	var sleeps []time.Duration
	v := newTestVerifier(ts.URL, &sleeps)

	parsed, err := v.invokeModel(context.Background(), gemini.GenerateRequest{Prompt: "check"})
	require.NoError(t, err)
	assert.Equal(t, "verified", parsed["status"])
	assert.Equal(t, int64(1), calls.Load())
	assert.Empty(t, sleeps)
}

func TestInvokeModel_ParseFailuresRetryThenSucceed(t *testing.T) {
	var calls atomic.Int64
	ts := newModelServer(t, &calls,
		"I cannot answer in JSON right now.",
		"still prose, no object",
		`{"status": "verified", "result": "third time lucky"}`)
	defer ts.Close()

	var sleeps []time.Duration
	v := newTestVerifier(ts.URL, &sleeps)

	parsed, err := v.invokeModel(context.Background(), gemini.GenerateRequest{Prompt: "check"})
	require.NoError(t, err)
	assert.Equal(t, "third time lucky", parsed["result"])
	assert.Equal(t, int64(3), calls.Load())
	assert.Equal(t, []time.Duration{time.Second, 2 * time.Second}, sleeps)
}

func TestInvokeModel_ExhaustionReturnsLastError(t *testing.T) {
	var calls atomic.Int64
	ts := newModelServer(t, &calls, "never any JSON here")
	defer ts.Close()

	var sleeps []time.Duration
	v := newTestVerifier(ts.URL, &sleeps)

	_, err := v.invokeModel(context.Background(), gemini.GenerateRequest{Prompt: "check"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), fmt.Sprintf("after %d attempts", maxAttempts))
	assert.ErrorIs(t, err, ErrNoJSON)
	assert.Equal(t, int64(maxAttempts), calls.Load())
	assert.Equal(t, []time.Duration{time.Second, 2 * time.Second}, sleeps)
}

func TestInvokeModel_TransportErrorsRetried(t *testing.T) {
	var calls atomic.Int64
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		writeJSON(w, map[string]interface{}{
			"candidates": []map[string]interface{}{
				{"content": map[string]interface{}{
					"parts": []map[string]string{{"text": `{"status": "verified"}`}},
				}},
			},
		})
	}))
	defer ts.Close()

	var sleeps []time.Duration
	v := newTestVerifier(ts.URL, &sleeps)

	parsed, err := v.invokeModel(context.Background(), gemini.GenerateRequest{Prompt: "check"})
	require.NoError(t, err)
	assert.Equal(t, "verified", parsed["status"])
	assert.Equal(t, int64(3), calls.Load())
}
