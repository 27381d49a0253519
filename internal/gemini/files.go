package gemini

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"
)

// ErrFileProcessing is returned when a staged file ends in a failed state.
var ErrFileProcessing = errors.New("remote file processing failed")

// ErrFileTimeout is returned when a staged file does not become ready within
// the polling ceiling.
var ErrFileTimeout = errors.New("timed out waiting for remote file to become ready")

// UploadFile stages a local file via the Files API resumable-upload protocol
// and returns its metadata. The returned file may still be processing; use
// WaitForActive before referencing it in a generate call.
func (c *Client) UploadFile(ctx context.Context, path, mimeType string) (*File, error) {
	if c.apiKey == "" {
		return nil, fmt.Errorf("API key required")
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	defer f.Close()

	stat, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("failed to stat file: %w", err)
	}
	size := stat.Size()

	if mimeType == "" {
		mimeType = "application/octet-stream"
	}

	c.log.Debug("staging file", zap.String("path", path), zap.Int64("size", size), zap.String("mime", mimeType))

	// Start a resumable session. The upload host hangs off /upload/v1beta.
	uploadBase := strings.Replace(c.baseURL, "/v1beta", "/upload/v1beta", 1)
	url := fmt.Sprintf("%s/files?key=%s", uploadBase, c.apiKey)

	metadata := map[string]interface{}{
		"file": map[string]string{
			"displayName": filepath.Base(path),
		},
	}
	jsonMeta, err := json.Marshal(metadata)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewReader(jsonMeta))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Goog-Upload-Protocol", "resumable")
	req.Header.Set("X-Goog-Upload-Command", "start")
	req.Header.Set("X-Goog-Upload-Header-Content-Length", fmt.Sprintf("%d", size))
	req.Header.Set("X-Goog-Upload-Header-Content-Type", mimeType)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("upload start request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("upload start failed (status %d): %s", resp.StatusCode, body)
	}

	uploadURL := resp.Header.Get("X-Goog-Upload-URL")
	if uploadURL == "" {
		return nil, fmt.Errorf("no upload URL returned in headers")
	}

	// Send the bytes and finalize.
	if _, err := f.Seek(0, 0); err != nil {
		return nil, err
	}
	reqUpload, err := http.NewRequestWithContext(ctx, "POST", uploadURL, f)
	if err != nil {
		return nil, err
	}
	reqUpload.Header.Set("Content-Length", fmt.Sprintf("%d", size))
	reqUpload.Header.Set("X-Goog-Upload-Offset", "0")
	reqUpload.Header.Set("X-Goog-Upload-Command", "upload, finalize")

	respUpload, err := c.httpClient.Do(reqUpload)
	if err != nil {
		return nil, fmt.Errorf("upload data failed: %w", err)
	}
	defer respUpload.Body.Close()

	if respUpload.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(respUpload.Body)
		return nil, fmt.Errorf("upload finalization failed (status %d): %s", respUpload.StatusCode, body)
	}

	var result uploadResponse
	if err := json.NewDecoder(respUpload.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("failed to parse upload response: %w", err)
	}
	if result.File.URI == "" {
		return nil, fmt.Errorf("no file uri found in upload response")
	}
	if result.File.MIMEType == "" {
		result.File.MIMEType = mimeType
	}

	c.log.Debug("file staged", zap.String("name", result.File.Name), zap.String("uri", result.File.URI))
	return &result.File, nil
}

// GetFile retrieves metadata for a staged file by resource name ("files/...").
func (c *Client) GetFile(ctx context.Context, name string) (*File, error) {
	if c.apiKey == "" {
		return nil, fmt.Errorf("API key required")
	}
	if !strings.HasPrefix(name, "files/") {
		name = "files/" + name
	}

	url := fmt.Sprintf("%s/%s?key=%s", c.baseURL, name, c.apiKey)
	req, err := http.NewRequestWithContext(ctx, "GET", url, nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("get file failed with status %d", resp.StatusCode)
	}

	var file File
	if err := json.NewDecoder(resp.Body).Decode(&file); err != nil {
		return nil, err
	}
	return &file, nil
}

// DeleteFile removes a staged file from provider storage.
func (c *Client) DeleteFile(ctx context.Context, name string) error {
	if c.apiKey == "" {
		return fmt.Errorf("API key required")
	}
	if !strings.HasPrefix(name, "files/") {
		name = "files/" + name
	}

	url := fmt.Sprintf("%s/%s?key=%s", c.baseURL, name, c.apiKey)
	req, err := http.NewRequestWithContext(ctx, "DELETE", url, nil)
	if err != nil {
		return err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("delete file failed with status %d", resp.StatusCode)
	}
	return nil
}

// WaitForActive polls a staged file until it reaches ACTIVE. A FAILED state
// or the timeout ceiling is terminal. Timeout here is a ceiling on this
// staging step, not a cancellation of the surrounding run.
func (c *Client) WaitForActive(ctx context.Context, name string, interval, timeout time.Duration) (*File, error) {
	deadline := time.Now().Add(timeout)
	for {
		file, err := c.GetFile(ctx, name)
		if err != nil {
			return nil, fmt.Errorf("failed to poll file state: %w", err)
		}
		switch file.State {
		case FileStateActive:
			return file, nil
		case FileStateFailed:
			return nil, fmt.Errorf("%w: file %s", ErrFileProcessing, name)
		}
		if time.Now().Add(interval).After(deadline) {
			return nil, fmt.Errorf("%w: file %s after %s", ErrFileTimeout, name, timeout)
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(interval):
		}
	}
}
