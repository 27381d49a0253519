// Package verify implements the content-verification orchestration: gather
// contextual signals, stage media with the AI provider, invoke the model with
// bounded retries, and normalize its JSON response into a persisted record.
package verify

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/christo725/seen/internal/config"
	"github.com/christo725/seen/internal/gemini"
	"github.com/christo725/seen/internal/groundtruth"
	"github.com/christo725/seen/internal/model"
	"github.com/christo725/seen/internal/store"
)

// ErrPersist marks a failure to write the verification result back. It is
// distinct from a verification failure: the verification itself may have
// succeeded even though the write did not.
var ErrPersist = errors.New("failed to persist verification result")

// Verifier drives the verification pipeline. All collaborators are injected;
// the Verifier holds no ambient global state.
type Verifier struct {
	store    *store.Store
	gemini   *gemini.Client
	gatherer *groundtruth.Gatherer

	httpClient   *http.Client
	log          *zap.Logger
	sleep        func(time.Duration)
	pollInterval time.Duration
	pollTimeout  time.Duration
	batchLimit   int

	// Concurrent triggers for the same upload id collapse into one run.
	group singleflight.Group
}

// New builds a Verifier.
func New(st *store.Store, client *gemini.Client, gatherer *groundtruth.Gatherer, cfg config.VerificationConfig, log *zap.Logger) *Verifier {
	batchLimit := cfg.BatchLimit
	if batchLimit <= 0 {
		batchLimit = 10
	}
	return &Verifier{
		store:        st,
		gemini:       client,
		gatherer:     gatherer,
		httpClient:   &http.Client{Timeout: 2 * time.Minute},
		log:          log,
		sleep:        time.Sleep,
		pollInterval: config.ParseDuration(cfg.PollInterval, time.Second),
		pollTimeout:  config.ParseDuration(cfg.PollTimeout, 30*time.Second),
		batchLimit:   batchLimit,
	}
}

// VerifyUpload runs the full pipeline for one upload id. Concurrent calls
// for the same id share a single run and its outcome.
func (v *Verifier) VerifyUpload(ctx context.Context, id string) (Result, error) {
	res, err, shared := v.group.Do(id, func() (interface{}, error) {
		return v.verifyOnce(ctx, id)
	})
	if shared {
		v.log.Debug("verification run shared with concurrent trigger", zap.String("upload_id", id))
	}
	result, _ := res.(Result)
	return result, err
}

func (v *Verifier) verifyOnce(ctx context.Context, id string) (Result, error) {
	up, err := v.store.Get(ctx, id)
	if err != nil {
		return Result{}, err
	}

	start := time.Now()
	v.log.Info("verification started",
		zap.String("upload_id", id), zap.String("media_kind", up.MediaKind))

	// Contextual signals degrade gracefully; gathering never fails the run.
	var snap groundtruth.Snapshot
	if up.HasCoordinate() {
		snap = v.gatherer.Gather(ctx, *up.Latitude, *up.Longitude, up.CapturedAt)
	}

	alerts := LexicalAlerts(up.Description, snap)
	prompt := BuildPrompt(up.Description, snap, alerts, mediaKindLabel(up.MediaKind))

	req := gemini.GenerateRequest{Prompt: prompt}
	var staged *gemini.File

	switch up.MediaKind {
	case model.MediaKindImage:
		mime, data, err := v.fetchImage(ctx, up.MediaURL)
		if err != nil {
			return v.recordFailure(ctx, id, err)
		}
		req.InlineMIME = mime
		req.InlineData = data
	case model.MediaKindVideo:
		staged, err = v.stageVideo(ctx, up.MediaURL)
		if err != nil {
			return v.recordFailure(ctx, id, err)
		}
		req.FileMIME = staged.MIMEType
		req.FileURI = staged.URI
	}

	// The remote file slot belongs to this run alone and must be released
	// exactly once whatever the outcome, including retry exhaustion.
	if staged != nil {
		defer func() {
			cleanupCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
			defer cancel()
			if derr := v.gemini.DeleteFile(cleanupCtx, staged.Name); derr != nil {
				v.log.Warn("failed to delete remote file",
					zap.String("file", staged.Name), zap.Error(derr))
			}
		}()
	}

	parsed, err := v.invokeModel(ctx, req)
	if err != nil {
		return v.recordFailure(ctx, id, err)
	}

	result := Normalize(parsed, alerts)

	if err := v.store.UpdateVerification(ctx, id, result.Verified, result.Status, result.Text); err != nil {
		return result, fmt.Errorf("%w: %v", ErrPersist, err)
	}

	v.log.Info("verification completed",
		zap.String("upload_id", id),
		zap.String("status", result.Status),
		zap.Int("issues", len(result.Issues)),
		zap.Duration("elapsed", time.Since(start)))
	return result, nil
}

// recordFailure persists the terminal failed state so the record reads as
// "attempted and failed", then propagates the original error.
func (v *Verifier) recordFailure(ctx context.Context, id string, cause error) (Result, error) {
	result := FailureResult(cause)
	if err := v.store.UpdateVerification(ctx, id, false, result.Status, result.Text); err != nil {
		v.log.Error("failed to record verification failure",
			zap.String("upload_id", id), zap.Error(err))
	}
	v.log.Warn("verification failed", zap.String("upload_id", id), zap.Error(cause))
	return result, cause
}

// Outcome is one record's result in a batch run.
type Outcome struct {
	UploadID string
	Result   Result
	Err      error
}

// VerifyPending verifies uploads still awaiting verification, strictly one at
// a time, bounded by limit (the configured batch limit when limit <= 0). One
// record's terminal failure does not abort the batch.
func (v *Verifier) VerifyPending(ctx context.Context, limit int) ([]Outcome, error) {
	if limit <= 0 || limit > v.batchLimit {
		limit = v.batchLimit
	}
	pending, err := v.store.ListPendingVerification(ctx, limit)
	if err != nil {
		return nil, err
	}

	outcomes := make([]Outcome, 0, len(pending))
	for _, up := range pending {
		result, err := v.VerifyUpload(ctx, up.ID)
		outcomes = append(outcomes, Outcome{UploadID: up.ID, Result: result, Err: err})
		if ctx.Err() != nil {
			break
		}
	}
	return outcomes, nil
}
