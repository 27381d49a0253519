package verify

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/christo725/seen/internal/gemini"
)

// maxAttempts is the total model-invocation budget per verification run.
const maxAttempts = 3

// invokeModel drives the model with bounded retries. A failed attempt is
// either the call itself erroring or the response not containing a
// recoverable JSON object; each failure waits 2^(n-1) seconds before attempt
// n+1 (1s, 2s, no wait after the final attempt). Exhaustion returns the last
// error so callers can distinguish "attempted and failed" from "unverified".
func (v *Verifier) invokeModel(ctx context.Context, req gemini.GenerateRequest) (map[string]interface{}, error) {
	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if attempt > 1 {
			v.sleep(time.Duration(1<<(attempt-2)) * time.Second)
		}

		raw, err := v.gemini.Generate(ctx, req)
		if err != nil {
			lastErr = err
			v.log.Warn("model invocation failed",
				zap.Int("attempt", attempt), zap.Error(err))
			continue
		}

		parsed, err := ParseModelJSON(raw)
		if err != nil {
			lastErr = err
			v.log.Warn("model response unparseable",
				zap.Int("attempt", attempt), zap.Int("response_len", len(raw)), zap.Error(err))
			continue
		}
		return parsed, nil
	}
	return nil, fmt.Errorf("verification failed after %d attempts: %w", maxAttempts, lastErr)
}
