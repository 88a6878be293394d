package runner

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arjanchaudharyy/flowdeck/pkg/models"
	"github.com/arjanchaudharyy/flowdeck/pkg/schema"
	"github.com/arjanchaudharyy/flowdeck/pkg/secrets"
)

func newTestRunner(httpClient *http.Client) *Runner {
	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))

	return NewRunner(logger, secrets.NewStaticSource(map[string]string{
		"REMOTE_TOKEN": "tok-123",
	}), httpClient)
}

func testExecCtx(ref string) *models.ExecutionContext {
	return &models.ExecutionContext{
		RunID:        "run-1",
		ComponentRef: ref,
		Logger:       slog.New(slog.NewTextHandler(os.Stdout, nil)),
	}
}

func TestRun_Inline(t *testing.T) {
	r := newTestRunner(nil)

	execute := func(_ context.Context, params map[string]any, _ *models.ExecutionContext) (map[string]any, error) {
		return map[string]any{"echo": params["message"]}, nil
	}

	outputs, err := r.Run(context.Background(), models.InlineRunner(), execute,
		map[string]any{"message": "hello"}, testExecCtx("a"))

	require.NoError(t, err)
	assert.Equal(t, "hello", outputs["echo"])
}

func TestRun_InlineWithoutExecute(t *testing.T) {
	r := newTestRunner(nil)

	_, err := r.Run(context.Background(), models.InlineRunner(), nil, nil, testExecCtx("a"))

	var configErr *schema.ConfigurationError

	require.ErrorAs(t, err, &configErr)
	assert.Equal(t, models.KindConfiguration, models.KindOf(err))
}

func TestRun_InlinePanicRecovered(t *testing.T) {
	r := newTestRunner(nil)

	execute := func(_ context.Context, _ map[string]any, _ *models.ExecutionContext) (map[string]any, error) {
		panic("component bug")
	}

	outputs, err := r.Run(context.Background(), models.InlineRunner(), execute, nil, testExecCtx("a"))

	require.Error(t, err)
	assert.Nil(t, outputs)
	assert.Contains(t, err.Error(), "component bug")
}

func TestRun_UnsupportedKind(t *testing.T) {
	r := newTestRunner(nil)

	_, err := r.Run(context.Background(), models.RunnerConfig{Kind: "quantum"}, nil, nil, testExecCtx("a"))

	var unsupportedErr *models.UnsupportedRunnerError

	require.ErrorAs(t, err, &unsupportedErr)
	assert.Equal(t, "quantum", unsupportedErr.RunnerKind)
}

func TestRun_RemoteSuccess(t *testing.T) {
	var gotAuth string

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"outputs":{"status":"done"}}`))
	}))
	defer server.Close()

	r := newTestRunner(server.Client())

	cfg := models.RemoteRunner(models.RemoteRunnerConfig{
		Endpoint:       server.URL,
		AuthSecretName: "REMOTE_TOKEN",
	})

	outputs, err := r.Run(context.Background(), cfg, nil, map[string]any{"n": 1}, testExecCtx("remote"))

	require.NoError(t, err)
	assert.Equal(t, "done", outputs["status"])
	assert.Equal(t, "Bearer tok-123", gotAuth)
}

func TestRun_RemoteServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "upstream exploded", http.StatusBadGateway)
	}))
	defer server.Close()

	r := newTestRunner(server.Client())
	cfg := models.RemoteRunner(models.RemoteRunnerConfig{Endpoint: server.URL})

	_, err := r.Run(context.Background(), cfg, nil, nil, testExecCtx("remote"))

	var serviceErr *ServiceError

	require.ErrorAs(t, err, &serviceErr)
	assert.Equal(t, http.StatusBadGateway, serviceErr.StatusCode)
	assert.Equal(t, models.KindService, models.KindOf(err))
}

func TestRun_RemoteApplicationError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"error":"division by zero"}`))
	}))
	defer server.Close()

	r := newTestRunner(server.Client())
	cfg := models.RemoteRunner(models.RemoteRunnerConfig{Endpoint: server.URL})

	_, err := r.Run(context.Background(), cfg, nil, nil, testExecCtx("remote"))

	var serviceErr *ServiceError

	require.ErrorAs(t, err, &serviceErr)
	assert.Equal(t, "division by zero", serviceErr.Message)
}

func TestRun_RemoteEmptyOutputs(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{}`))
	}))
	defer server.Close()

	r := newTestRunner(server.Client())
	cfg := models.RemoteRunner(models.RemoteRunnerConfig{Endpoint: server.URL})

	outputs, err := r.Run(context.Background(), cfg, nil, nil, testExecCtx("remote"))

	require.NoError(t, err)
	assert.NotNil(t, outputs)
	assert.Empty(t, outputs)
}

func TestRunWithRetry_SucceedsAfterTransientFailures(t *testing.T) {
	r := newTestRunner(nil)

	var attempts atomic.Int32

	execute := func(_ context.Context, _ map[string]any, _ *models.ExecutionContext) (map[string]any, error) {
		if attempts.Add(1) < 3 {
			return nil, &ServiceError{Endpoint: "svc", Message: "flaky"}
		}

		return map[string]any{"ok": true}, nil
	}

	policy := models.RetryPolicy{
		MaxAttempts:            3,
		InitialIntervalSeconds: 0.001,
		MaximumIntervalSeconds: 0.001,
		BackoffCoefficient:     2,
	}

	outputs, err := r.RunWithRetry(context.Background(), models.InlineRunner(), policy, execute, nil, testExecCtx("flaky"))

	require.NoError(t, err)
	assert.Equal(t, true, outputs["ok"])
	assert.Equal(t, int32(3), attempts.Load())
}

func TestRunWithRetry_NonRetryableFailsImmediately(t *testing.T) {
	r := newTestRunner(nil)

	var attempts atomic.Int32

	execute := func(_ context.Context, _ map[string]any, _ *models.ExecutionContext) (map[string]any, error) {
		attempts.Add(1)

		return nil, &schema.ValidationError{Subject: "params", FieldErrors: map[string][]string{"url": {"is required"}}}
	}

	policy := models.RetryPolicy{MaxAttempts: 5, InitialIntervalSeconds: 0.001}

	_, err := r.RunWithRetry(context.Background(), models.InlineRunner(), policy, execute, nil, testExecCtx("strict"))

	require.Error(t, err)
	assert.Equal(t, models.KindValidation, models.KindOf(err))
	assert.Equal(t, int32(1), attempts.Load())
}

func TestRunWithRetry_ExhaustsAttempts(t *testing.T) {
	r := newTestRunner(nil)

	var attempts atomic.Int32

	execute := func(_ context.Context, _ map[string]any, _ *models.ExecutionContext) (map[string]any, error) {
		attempts.Add(1)

		return nil, &ServiceError{Endpoint: "svc", Message: "still down"}
	}

	policy := models.RetryPolicy{MaxAttempts: 3, InitialIntervalSeconds: 0.001, MaximumIntervalSeconds: 0.001}

	_, err := r.RunWithRetry(context.Background(), models.InlineRunner(), policy, execute, nil, testExecCtx("down"))

	require.Error(t, err)
	assert.Equal(t, int32(3), attempts.Load())
}

func TestRunWithRetry_CancelledDuringBackoff(t *testing.T) {
	r := newTestRunner(nil)

	ctx, cancel := context.WithCancel(context.Background())

	execute := func(_ context.Context, _ map[string]any, _ *models.ExecutionContext) (map[string]any, error) {
		cancel()

		return nil, &ServiceError{Endpoint: "svc", Message: "flaky"}
	}

	policy := models.RetryPolicy{MaxAttempts: 3, InitialIntervalSeconds: 10}

	_, err := r.RunWithRetry(ctx, models.InlineRunner(), policy, execute, nil, testExecCtx("slow"))

	var serviceErr *ServiceError

	require.ErrorAs(t, err, &serviceErr)
}

func TestParseResultBlock(t *testing.T) {
	tests := []struct {
		name    string
		stdout  string
		want    map[string]any
		wantErr bool
	}{
		{
			name:   "well formed block",
			stdout: "setup logs\n" + resultBeginMarker + "\n{\"count\": 2}\n" + resultEndMarker + "\n",
			want:   map[string]any{"count": float64(2)},
		},
		{
			name:   "no block means empty outputs",
			stdout: "just logs, no result",
			want:   map[string]any{},
		},
		{
			name: "last block wins",
			stdout: resultBeginMarker + "\n{\"n\": 1}\n" + resultEndMarker +
				"\nmore logs\n" + resultBeginMarker + "\n{\"n\": 2}\n" + resultEndMarker,
			want: map[string]any{"n": float64(2)},
		},
		{
			name:    "unterminated block",
			stdout:  resultBeginMarker + "\n{\"n\": 1}",
			wantErr: true,
		},
		{
			name:    "non-object payload",
			stdout:  resultBeginMarker + "\n[1, 2]\n" + resultEndMarker,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseResultBlock(tt.stdout)
			if tt.wantErr {
				require.Error(t, err)

				return
			}

			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestContainerError_Taxonomy(t *testing.T) {
	base := errors.New("exit status 1")
	err := &ContainerError{Image: "python:3.12", ExitCode: 1, Err: base}

	assert.Equal(t, models.KindContainer, models.KindOf(err))
	assert.ErrorIs(t, err, base)
}

func TestTimeoutError_Taxonomy(t *testing.T) {
	err := &TimeoutError{Subject: "container run", Err: context.DeadlineExceeded}

	assert.Equal(t, models.KindTimeout, models.KindOf(err))
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
