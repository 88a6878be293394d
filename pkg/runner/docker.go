package runner

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/image"
	"github.com/docker/docker/pkg/stdcopy"

	"github.com/arjanchaudharyy/flowdeck/pkg/models"
)

const (
	// Markers delimiting the structured result block a containerized
	// component prints on stdout. Everything outside the block is treated
	// as free-form log output.
	resultBeginMarker = "-----FLOWDECK RESULT BEGIN-----"
	resultEndMarker   = "-----FLOWDECK RESULT END-----"

	defaultContainerTimeout = 5 * time.Minute
)

// runDocker owns the full container lifecycle: create, start, stream output,
// wait for exit, remove. The whole lifecycle runs under a single timeout; on
// timeout the container is force-removed and the partial stdout captured so
// far is preserved on the error.
func (r *Runner) runDocker(
	ctx context.Context,
	cfg *models.DockerRunnerConfig,
	params map[string]any,
	execCtx *models.ExecutionContext,
) (map[string]any, error) {
	cli, err := r.dockerClient()
	if err != nil {
		return nil, &ContainerError{Image: cfg.Image, Message: "docker client unavailable", Err: err}
	}

	timeout := defaultContainerTimeout
	if cfg.TimeoutSeconds > 0 {
		timeout = time.Duration(cfg.TimeoutSeconds) * time.Second
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	encodedParams, err := json.Marshal(params)
	if err != nil {
		return nil, &ContainerError{Image: cfg.Image, Message: "encoding params", Err: err}
	}

	if err := r.ensureImage(ctx, cfg.Image); err != nil {
		return nil, err
	}

	containerConfig := &container.Config{
		Image: cfg.Image,
		Cmd:   cfg.Command,
		Env:   containerEnv(cfg.Env, execCtx, encodedParams),
	}

	hostConfig := &container.HostConfig{}
	if cfg.Network != "" {
		hostConfig.NetworkMode = container.NetworkMode(cfg.Network)
	}

	created, err := cli.ContainerCreate(ctx, containerConfig, hostConfig, nil, nil, "")
	if err != nil {
		return nil, &ContainerError{Image: cfg.Image, Message: "creating container", Err: err}
	}

	containerID := created.ID

	defer func() {
		// Removal uses a fresh context: the lifecycle context may already
		// be expired, and a leaked container is worse than a late removal.
		removeCtx, removeCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer removeCancel()

		if err := cli.ContainerRemove(removeCtx, containerID, container.RemoveOptions{Force: true}); err != nil {
			r.logger.ErrorContext(removeCtx, "Failed to remove container",
				"container_id", containerID, "image", cfg.Image, "error", err)
		}
	}()

	if err := cli.ContainerStart(ctx, containerID, container.StartOptions{}); err != nil {
		return nil, &ContainerError{Image: cfg.Image, ContainerID: containerID, Message: "starting container", Err: err}
	}

	r.logger.InfoContext(ctx, "Container started",
		"container_id", containerID, "image", cfg.Image, "component_ref", execCtx.ComponentRef)

	stdout, stderr, streamErr := r.streamContainerOutput(ctx, cli, containerID)

	exitCode, waitErr := waitForContainer(ctx, cli, containerID)
	if waitErr != nil {
		containerErr := &ContainerError{
			Image:         cfg.Image,
			ContainerID:   containerID,
			Message:       "waiting for container",
			PartialOutput: stdout,
			Err:           waitErr,
		}
		if errors.Is(waitErr, context.DeadlineExceeded) {
			return nil, &TimeoutError{
				Subject: fmt.Sprintf("container %s", cfg.Image),
				Err:     containerErr,
			}
		}

		return nil, containerErr
	}

	if streamErr != nil {
		r.logger.ErrorContext(ctx, "Container output stream ended with error",
			"container_id", containerID, "error", streamErr)
	}

	if stderr != "" {
		r.logger.InfoContext(ctx, "Container stderr",
			"container_id", containerID, "stderr", truncateForLog(stderr))
	}

	if exitCode != 0 {
		return nil, &ContainerError{
			Image:         cfg.Image,
			ContainerID:   containerID,
			ExitCode:      exitCode,
			Message:       fmt.Sprintf("exited with code %d", exitCode),
			PartialOutput: stdout,
		}
	}

	result, err := parseResultBlock(stdout)
	if err != nil {
		return nil, &ContainerError{
			Image:         cfg.Image,
			ContainerID:   containerID,
			Message:       "parsing result block",
			PartialOutput: stdout,
			Err:           err,
		}
	}

	return result, nil
}

func (r *Runner) ensureImage(ctx context.Context, ref string) error {
	cli, err := r.dockerClient()
	if err != nil {
		return &ContainerError{Image: ref, Message: "docker client unavailable", Err: err}
	}

	reader, err := cli.ImagePull(ctx, ref, image.PullOptions{})
	if err != nil {
		return &ContainerError{Image: ref, Message: "pulling image", Err: err}
	}

	defer func() {
		_ = reader.Close()
	}()

	// The pull stream must be drained for the pull to complete.
	if _, err := io.Copy(io.Discard, reader); err != nil {
		return &ContainerError{Image: ref, Message: "pulling image", Err: err}
	}

	return nil
}

func (r *Runner) streamContainerOutput(ctx context.Context, cli containerLogger, containerID string) (string, string, error) {
	logs, err := cli.ContainerLogs(ctx, containerID, container.LogsOptions{
		ShowStdout: true,
		ShowStderr: true,
		Follow:     true,
	})
	if err != nil {
		return "", "", err
	}

	defer func() {
		_ = logs.Close()
	}()

	var stdout, stderr bytes.Buffer

	_, err = stdcopy.StdCopy(&stdout, &stderr, logs)

	return stdout.String(), stderr.String(), err
}

type containerLogger interface {
	ContainerLogs(ctx context.Context, containerID string, options container.LogsOptions) (io.ReadCloser, error)
}

type containerWaiter interface {
	ContainerWait(ctx context.Context, containerID string, condition container.WaitCondition) (<-chan container.WaitResponse, <-chan error)
}

func waitForContainer(ctx context.Context, cli containerWaiter, containerID string) (int64, error) {
	statusCh, errCh := cli.ContainerWait(ctx, containerID, container.WaitConditionNotRunning)

	select {
	case status := <-statusCh:
		if status.Error != nil {
			return 0, errors.New(status.Error.Message)
		}

		return status.StatusCode, nil
	case err := <-errCh:
		return 0, err
	case <-ctx.Done():
		return 0, ctx.Err()
	}
}

func containerEnv(env map[string]string, execCtx *models.ExecutionContext, encodedParams []byte) []string {
	entries := make([]string, 0, len(env)+3)
	for key, value := range env {
		entries = append(entries, key+"="+value)
	}

	sort.Strings(entries)

	entries = append(entries,
		"FLOWDECK_RUN_ID="+execCtx.RunID,
		"FLOWDECK_NODE_REF="+execCtx.ComponentRef,
		"FLOWDECK_PARAMS="+string(encodedParams),
	)

	return entries
}

// parseResultBlock extracts the JSON payload between the result markers.
// A container that prints no block at all is treated as producing an empty
// result, matching components that only emit logs.
func parseResultBlock(stdout string) (map[string]any, error) {
	begin := strings.LastIndex(stdout, resultBeginMarker)
	if begin == -1 {
		return map[string]any{}, nil
	}

	rest := stdout[begin+len(resultBeginMarker):]

	end := strings.Index(rest, resultEndMarker)
	if end == -1 {
		return nil, fmt.Errorf("result block not terminated")
	}

	payload := strings.TrimSpace(rest[:end])

	var result map[string]any
	if err := json.Unmarshal([]byte(payload), &result); err != nil {
		return nil, fmt.Errorf("result block is not a JSON object: %w", err)
	}

	return result, nil
}

func truncateForLog(s string) string {
	const limit = 2048
	if len(s) <= limit {
		return s
	}

	return s[:limit] + "...(truncated)"
}
