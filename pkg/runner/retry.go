package runner

import (
	"context"
	"time"

	"github.com/arjanchaudharyy/flowdeck/pkg/models"
)

// RunWithRetry dispatches the invocation under the component's retry policy.
// Attempt 1 is not a retry; only retryable error kinds trigger another
// attempt, with exponential backoff between attempts.
func (r *Runner) RunWithRetry(
	ctx context.Context,
	cfg models.RunnerConfig,
	policy models.RetryPolicy,
	execute models.ExecuteFunc,
	params map[string]any,
	execCtx *models.ExecutionContext,
) (map[string]any, error) {
	policy = policy.Normalized()

	var lastErr error

	for attempt := 1; attempt <= policy.MaxAttempts; attempt++ {
		result, err := r.Run(ctx, cfg, execute, params, execCtx)
		if err == nil {
			return result, nil
		}

		lastErr = err
		kind := models.KindOf(err)

		if !policy.ShouldRetry(attempt, kind) {
			return nil, err
		}

		interval := policy.BackoffInterval(attempt + 1)
		r.logger.InfoContext(ctx, "Retrying component",
			"component_ref", execCtx.ComponentRef,
			"attempt", attempt,
			"max_attempts", policy.MaxAttempts,
			"error_kind", string(kind),
			"backoff", interval.String())

		if err := sleepContext(ctx, interval); err != nil {
			return nil, lastErr
		}
	}

	return nil, lastErr
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
