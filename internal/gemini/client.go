// Package gemini is a thin HTTP client for the Gemini generateContent and
// Files APIs. Each call is a single attempt; retry policy belongs to the
// caller, which also owns parse-failure recovery.
package gemini

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
)

const systemInstruction = "You are a content verification assistant. You check user-supplied descriptions of photos and videos against trusted contextual data and the media itself. Respond with a single JSON object and nothing else."

// Client talks to the Gemini API.
type Client struct {
	apiKey          string
	baseURL         string
	model           string
	maxOutputTokens int
	enableWebSearch bool

	httpClient *http.Client
	log        *zap.Logger

	mu          sync.Mutex
	lastRequest time.Time
}

// NewClient creates a Gemini client from config.
func NewClient(cfg Config, log *zap.Logger) *Client {
	model := strings.TrimSpace(cfg.Model)
	if model == "" {
		model = DefaultConfig("").Model
	}
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = DefaultConfig("").BaseURL
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = DefaultConfig("").Timeout
	}
	maxTokens := cfg.MaxOutputTokens
	if maxTokens == 0 {
		maxTokens = DefaultConfig("").MaxOutputTokens
	}
	return &Client{
		apiKey:          cfg.APIKey,
		baseURL:         baseURL,
		model:           model,
		maxOutputTokens: maxTokens,
		enableWebSearch: cfg.EnableWebSearch,
		httpClient:      &http.Client{Timeout: timeout},
		log:             log,
	}
}

// Model returns the configured model name.
func (c *Client) Model() string {
	return c.model
}

// GenerateRequest is one content-generation call. At most one of the inline
// and file-reference attachments is set; neither means a text-only call.
type GenerateRequest struct {
	Prompt string

	// Inline base64 media (images).
	InlineMIME string
	InlineData string

	// Staged-file reference (videos).
	FileMIME string
	FileURI  string
}

// Generate sends a single generateContent call and returns the model's text.
// Media parts go first, prompt text last, per API convention.
func (c *Client) Generate(ctx context.Context, req GenerateRequest) (string, error) {
	if c.apiKey == "" {
		return "", fmt.Errorf("API key not configured")
	}
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.httpClient.Timeout)
		defer cancel()
	}

	startTime := time.Now()

	var parts []Part
	switch {
	case req.InlineData != "":
		parts = append(parts, Part{InlineData: &Blob{MIMEType: req.InlineMIME, Data: req.InlineData}})
	case req.FileURI != "":
		parts = append(parts, Part{FileData: &FileData{MIMEType: req.FileMIME, FileURI: req.FileURI}})
	}
	parts = append(parts, Part{Text: req.Prompt})

	body := Request{
		Contents: []Content{{Role: "user", Parts: parts}},
		SystemInstruction: &Content{
			Parts: []Part{{Text: systemInstruction}},
		},
		GenerationConfig: GenerationConfig{
			Temperature:     0.2,
			MaxOutputTokens: c.maxOutputTokens,
		},
	}
	if c.enableWebSearch {
		body.Tools = []Tool{{GoogleSearch: &GoogleSearch{}}}
	}

	c.throttle()

	jsonData, err := json.Marshal(body)
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	url := fmt.Sprintf("%s/models/%s:generateContent?key=%s", c.baseURL, c.model, c.apiKey)
	httpReq, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewReader(jsonData))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("API request failed with status %d: %s", resp.StatusCode, string(respBody))
	}

	var parsed Response
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return "", fmt.Errorf("failed to parse response: %w", err)
	}
	if parsed.Error != nil {
		return "", fmt.Errorf("API error: %s", parsed.Error.Message)
	}
	if len(parsed.Candidates) == 0 || len(parsed.Candidates[0].Content.Parts) == 0 {
		return "", fmt.Errorf("no completion returned")
	}

	var result strings.Builder
	for _, part := range parsed.Candidates[0].Content.Parts {
		result.WriteString(part.Text)
	}
	text := strings.TrimSpace(result.String())

	c.log.Debug("generateContent completed",
		zap.Duration("elapsed", time.Since(startTime)),
		zap.Int("response_len", len(text)))
	return text, nil
}

// throttle enforces a minimum spacing between API requests.
func (c *Client) throttle() {
	c.mu.Lock()
	elapsed := time.Since(c.lastRequest)
	if elapsed < 100*time.Millisecond {
		time.Sleep(100*time.Millisecond - elapsed)
	}
	c.lastRequest = time.Now()
	c.mu.Unlock()
}
