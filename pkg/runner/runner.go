// Package runner dispatches component execution over the three execution
// targets: inline (same process), docker (isolated container) and remote
// (service endpoint).
package runner

import (
	"context"
	"log/slog"
	"net/http"
	"sync"

	"github.com/docker/docker/client"

	"github.com/arjanchaudharyy/flowdeck/pkg/models"
)

// Runner executes component bodies according to their runner config.
type Runner struct {
	logger  *slog.Logger
	secrets models.SecretSource
	http    *http.Client

	dockerOnce sync.Once
	docker     client.APIClient
	dockerErr  error
}

// NewRunner creates a runner. The docker client is created lazily on the
// first docker-kind dispatch, so processes that never run containers need no
// docker daemon.
func NewRunner(logger *slog.Logger, secrets models.SecretSource, httpClient *http.Client) *Runner {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}

	return &Runner{
		logger:  logger.With("module", "runner"),
		secrets: secrets,
		http:    httpClient,
	}
}

// Run dispatches one invocation on the target named by cfg.Kind. The switch
// is exhaustive over the closed union; an unknown tag is fatal.
func (r *Runner) Run(
	ctx context.Context,
	cfg models.RunnerConfig,
	execute models.ExecuteFunc,
	params map[string]any,
	execCtx *models.ExecutionContext,
) (map[string]any, error) {
	switch cfg.Kind {
	case models.RunnerInline:
		return r.runInline(ctx, execute, params, execCtx)
	case models.RunnerDocker:
		return r.runDocker(ctx, cfg.Docker, params, execCtx)
	case models.RunnerRemote:
		return r.runRemote(ctx, cfg.Remote, params, execCtx)
	default:
		return nil, &models.UnsupportedRunnerError{RunnerKind: string(cfg.Kind)}
	}
}

func (r *Runner) dockerClient() (client.APIClient, error) {
	r.dockerOnce.Do(func() {
		r.docker, r.dockerErr = client.NewClientWithOpts(
			client.FromEnv,
			client.WithAPIVersionNegotiation(),
		)
	})

	return r.docker, r.dockerErr
}
