package capture

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arjanchaudharyy/flowdeck/pkg/models"
	"github.com/arjanchaudharyy/flowdeck/pkg/objectstore"
	"github.com/arjanchaudharyy/flowdeck/pkg/persistence"
	"github.com/arjanchaudharyy/flowdeck/pkg/persistence/file"
	"github.com/arjanchaudharyy/flowdeck/pkg/schema"
)

func newTestRecorder(t *testing.T, threshold int) *Recorder {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))
	records := file.NewNodeIORepository(t.TempDir())
	blobs := objectstore.NewFileStore(t.TempDir())

	return NewRecorder(records, blobs, logger, threshold)
}

func secretComponent() *models.Component {
	return &models.Component{
		ID:     "http_request",
		Runner: models.InlineRunner(),
		InputSchema: &models.SchemaDefinition{
			Fields: map[string]*models.Field{
				"url":   {Type: models.FieldTypeString, Required: true},
				"token": {Type: models.FieldTypeString, Secret: true},
			},
		},
		OutputSchema: &models.SchemaDefinition{
			Fields: map[string]*models.Field{
				"body": {Type: models.FieldTypeString},
			},
		},
	}
}

func TestCapture_CompleteLifecycle(t *testing.T) {
	ctx := context.Background()
	recorder := newTestRecorder(t, 0)

	c, err := recorder.Begin(ctx, "run-1", "fetch", "http_request", secretComponent(), map[string]any{
		"url":   "https://example.com",
		"token": "hunter2",
	})
	require.NoError(t, err)

	require.NoError(t, c.Complete(ctx, map[string]any{"body": "ok"}))

	record, err := recorder.Fetch(ctx, "run-1", "fetch")
	require.NoError(t, err)

	assert.Equal(t, models.IOStatusCompleted, record.Status)
	assert.Equal(t, "https://example.com", record.Inputs["url"])
	assert.Equal(t, schema.MaskToken, record.Inputs["token"])
	assert.Equal(t, "ok", record.Outputs["body"])
	assert.NotNil(t, record.CompletedAt)
	assert.Empty(t, record.Error)
}

func TestCapture_Fail(t *testing.T) {
	ctx := context.Background()
	recorder := newTestRecorder(t, 0)

	c, err := recorder.Begin(ctx, "run-1", "fetch", "http_request", secretComponent(), map[string]any{"url": "u"})
	require.NoError(t, err)

	require.NoError(t, c.Fail(ctx, &schema.ValidationError{
		Subject:     "params",
		FieldErrors: map[string][]string{"url": {"is required"}},
	}))

	record, err := recorder.Fetch(ctx, "run-1", "fetch")
	require.NoError(t, err)

	assert.Equal(t, models.IOStatusFailed, record.Status)
	assert.Equal(t, string(models.KindValidation), record.ErrorKind)
	assert.Contains(t, record.Error, "url")
}

func TestCapture_Skip(t *testing.T) {
	ctx := context.Background()
	recorder := newTestRecorder(t, 0)

	c, err := recorder.Begin(ctx, "run-1", "later", "log", nil, nil)
	require.NoError(t, err)
	require.NoError(t, c.Skip(ctx))

	record, err := recorder.Fetch(ctx, "run-1", "later")
	require.NoError(t, err)
	assert.Equal(t, models.IOStatusSkipped, record.Status)
}

func TestCapture_FinalizedRecordIsImmutable(t *testing.T) {
	ctx := context.Background()
	recorder := newTestRecorder(t, 0)

	c, err := recorder.Begin(ctx, "run-1", "fetch", "http_request", secretComponent(), nil)
	require.NoError(t, err)
	require.NoError(t, c.Complete(ctx, map[string]any{"body": "first"}))

	err = c.Complete(ctx, map[string]any{"body": "second"})
	assert.True(t, persistence.IsRecordFinalized(err))
}

func TestCapture_SpillRoundTrip(t *testing.T) {
	ctx := context.Background()
	recorder := newTestRecorder(t, 64)

	big := strings.Repeat("x", 512)

	c, err := recorder.Begin(ctx, "run-1", "fetch", "http_request", secretComponent(), map[string]any{"url": big})
	require.NoError(t, err)
	require.NoError(t, c.Complete(ctx, map[string]any{"body": big}))

	// The stored record holds spill markers, not the payloads.
	stored, err := recorder.records.RecordByRun(ctx, "run-1", "fetch")
	require.NoError(t, err)
	assert.True(t, models.IsSpillMarker(stored.Inputs))
	assert.True(t, models.IsSpillMarker(stored.Outputs))
	assert.Equal(t, "node-io/run-1/fetch/inputs.json", stored.Inputs["ref"])

	// Fetch resolves the markers back to the full payloads.
	resolved, err := recorder.Fetch(ctx, "run-1", "fetch")
	require.NoError(t, err)
	assert.Equal(t, big, resolved.Inputs["url"])
	assert.Equal(t, big, resolved.Outputs["body"])
}

func TestCapture_SmallPayloadStaysInline(t *testing.T) {
	ctx := context.Background()
	recorder := newTestRecorder(t, 1024)

	c, err := recorder.Begin(ctx, "run-1", "fetch", "http_request", secretComponent(), map[string]any{"url": "small"})
	require.NoError(t, err)
	require.NoError(t, c.Complete(ctx, map[string]any{"body": "tiny"}))

	stored, err := recorder.records.RecordByRun(ctx, "run-1", "fetch")
	require.NoError(t, err)
	assert.False(t, models.IsSpillMarker(stored.Inputs))
	assert.False(t, models.IsSpillMarker(stored.Outputs))
}

func TestCapture_UnavailableSpillDegrades(t *testing.T) {
	ctx := context.Background()
	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))
	records := file.NewNodeIORepository(t.TempDir())
	recorder := NewRecorder(records, failingStore{}, logger, 16)

	big := strings.Repeat("y", 128)

	c, err := recorder.Begin(ctx, "run-1", "fetch", "http_request", nil, map[string]any{"data": big})
	require.NoError(t, err)
	require.NoError(t, c.Complete(ctx, nil))

	record, err := recorder.Fetch(ctx, "run-1", "fetch")
	require.NoError(t, err)

	// The read succeeds with a placeholder instead of the lost payload.
	assert.True(t, models.IsSpillMarker(record.Inputs))
	assert.Contains(t, record.Inputs["error"], "spilled payload unavailable")
}

// failingStore accepts writes and fails every read.
type failingStore struct{}

func (failingStore) Put(_ context.Context, _ string, _ []byte) error {
	return nil
}

func (failingStore) Get(_ context.Context, _ string) ([]byte, error) {
	return nil, errors.New("blob store offline")
}
