package runner

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/arjanchaudharyy/flowdeck/pkg/models"
)

type remoteRequest struct {
	RunID        string         `json:"run_id"`
	ComponentRef string         `json:"component_ref"`
	Params       map[string]any `json:"params"`
}

type remoteResponse struct {
	Outputs map[string]any `json:"outputs"`
	Error   string         `json:"error,omitempty"`
}

// runDocker's sibling for the remote target: a single POST carrying the
// params, authenticated with a bearer token resolved from the secret source.
func (r *Runner) runRemote(
	ctx context.Context,
	cfg *models.RemoteRunnerConfig,
	params map[string]any,
	execCtx *models.ExecutionContext,
) (map[string]any, error) {
	body, err := json.Marshal(remoteRequest{
		RunID:        execCtx.RunID,
		ComponentRef: execCtx.ComponentRef,
		Params:       params,
	})
	if err != nil {
		return nil, &ServiceError{Endpoint: cfg.Endpoint, Message: "encoding request", Err: err}
	}

	request, err := http.NewRequestWithContext(ctx, http.MethodPost, cfg.Endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, &ServiceError{Endpoint: cfg.Endpoint, Message: "building request", Err: err}
	}

	request.Header.Set("Content-Type", "application/json")

	if cfg.AuthSecretName != "" {
		token, err := r.secrets.Secret(ctx, cfg.AuthSecretName)
		if err != nil {
			return nil, &ServiceError{Endpoint: cfg.Endpoint, Message: "resolving auth secret", Err: err}
		}

		request.Header.Set("Authorization", "Bearer "+token)
	}

	response, err := r.http.Do(request)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, &TimeoutError{
				Subject: fmt.Sprintf("remote call to %s", cfg.Endpoint),
				Err:     err,
			}
		}

		return nil, &ServiceError{Endpoint: cfg.Endpoint, Message: "request failed", Err: err}
	}

	defer func() {
		_ = response.Body.Close()
	}()

	payload, err := io.ReadAll(io.LimitReader(response.Body, 4<<20))
	if err != nil {
		return nil, &ServiceError{Endpoint: cfg.Endpoint, Message: "reading response", Err: err}
	}

	if response.StatusCode < 200 || response.StatusCode > 299 {
		return nil, &ServiceError{
			Endpoint:   cfg.Endpoint,
			StatusCode: response.StatusCode,
			Message:    truncateForLog(string(payload)),
		}
	}

	var decoded remoteResponse
	if err := json.Unmarshal(payload, &decoded); err != nil {
		return nil, &ServiceError{Endpoint: cfg.Endpoint, Message: "decoding response", Err: err}
	}

	if decoded.Error != "" {
		return nil, &ServiceError{Endpoint: cfg.Endpoint, Message: decoded.Error}
	}

	if decoded.Outputs == nil {
		decoded.Outputs = map[string]any{}
	}

	return decoded.Outputs, nil
}
