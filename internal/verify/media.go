package verify

import (
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"net/http"
	"os"
	"path"
	"strings"

	"go.uber.org/zap"

	"github.com/christo725/seen/internal/gemini"
)

// fetchImage downloads an image and returns its MIME type and base64 payload.
// A non-success download is fatal to the verification attempt.
func (v *Verifier) fetchImage(ctx context.Context, mediaURL string) (string, string, error) {
	req, err := http.NewRequestWithContext(ctx, "GET", mediaURL, nil)
	if err != nil {
		return "", "", fmt.Errorf("failed to build image request: %w", err)
	}
	resp, err := v.httpClient.Do(req)
	if err != nil {
		return "", "", fmt.Errorf("image download failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", "", fmt.Errorf("image download failed with status %d", resp.StatusCode)
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", "", fmt.Errorf("failed to read image body: %w", err)
	}

	mime := resp.Header.Get("Content-Type")
	if mime == "" || !strings.HasPrefix(mime, "image/") {
		mime = imageMIMEFromURL(mediaURL)
	}
	return mime, base64.StdEncoding.EncodeToString(data), nil
}

// stageVideo downloads a video, spools it to a temporary file, uploads it to
// provider file storage, and waits for the remote file to become ready. The
// temporary file is removed on every exit path. If staging fails after the
// remote file was created, the remote file is deleted before the error
// propagates; on success the caller owns the remote file and must delete it
// exactly once when the verification call completes or fails.
func (v *Verifier) stageVideo(ctx context.Context, mediaURL string) (*gemini.File, error) {
	req, err := http.NewRequestWithContext(ctx, "GET", mediaURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build video request: %w", err)
	}
	resp, err := v.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("video download failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("video download failed with status %d", resp.StatusCode)
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read video body: %w", err)
	}

	mime := videoMIMEFromURL(mediaURL)

	tmp, err := os.CreateTemp("", "seen-video-*"+path.Ext(urlPath(mediaURL)))
	if err != nil {
		return nil, fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return nil, fmt.Errorf("failed to spool video: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return nil, fmt.Errorf("failed to close temp file: %w", err)
	}

	file, err := v.gemini.UploadFile(ctx, tmpName, mime)
	if err != nil {
		return nil, fmt.Errorf("video staging failed: %w", err)
	}

	ready, err := v.gemini.WaitForActive(ctx, file.Name, v.pollInterval, v.pollTimeout)
	if err != nil {
		// The partially-created remote file is a liability; clean it up
		// before propagating.
		if derr := v.gemini.DeleteFile(ctx, file.Name); derr != nil {
			v.log.Warn("failed to delete unready remote file",
				zap.String("file", file.Name), zap.Error(derr))
		}
		return nil, err
	}
	if ready.MIMEType == "" {
		ready.MIMEType = mime
	}
	return ready, nil
}

func urlPath(rawURL string) string {
	if idx := strings.IndexAny(rawURL, "?#"); idx != -1 {
		rawURL = rawURL[:idx]
	}
	return rawURL
}

// videoMIMEFromURL infers a MIME type from the URL's file extension,
// defaulting to a generic video type when unrecognized.
func videoMIMEFromURL(rawURL string) string {
	switch strings.ToLower(path.Ext(urlPath(rawURL))) {
	case ".mp4", ".m4v":
		return "video/mp4"
	case ".mov":
		return "video/quicktime"
	case ".avi":
		return "video/x-msvideo"
	case ".webm":
		return "video/webm"
	case ".mkv":
		return "video/x-matroska"
	case ".mpg", ".mpeg":
		return "video/mpeg"
	case ".3gp":
		return "video/3gpp"
	default:
		return "video/mp4"
	}
}

func imageMIMEFromURL(rawURL string) string {
	switch strings.ToLower(path.Ext(urlPath(rawURL))) {
	case ".png":
		return "image/png"
	case ".gif":
		return "image/gif"
	case ".webp":
		return "image/webp"
	case ".heic":
		return "image/heic"
	default:
		return "image/jpeg"
	}
}
