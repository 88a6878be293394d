package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel/trace"

	"github.com/arjanchaudharyy/flowdeck/pkg/approvals"
	"github.com/arjanchaudharyy/flowdeck/pkg/capture"
	"github.com/arjanchaudharyy/flowdeck/pkg/components"
	"github.com/arjanchaudharyy/flowdeck/pkg/engine"
	"github.com/arjanchaudharyy/flowdeck/pkg/eventbus"
	"github.com/arjanchaudharyy/flowdeck/pkg/models"
	"github.com/arjanchaudharyy/flowdeck/pkg/objectstore"
	"github.com/arjanchaudharyy/flowdeck/pkg/persistence"
	"github.com/arjanchaudharyy/flowdeck/pkg/registry"
	"github.com/arjanchaudharyy/flowdeck/pkg/runner"
	"github.com/arjanchaudharyy/flowdeck/pkg/secrets"
)

// StackConfig collects the connection settings shared by every binary.
type StackConfig struct {
	DatabaseURL   string
	ObjectStore   string
	EventBus      string
	ApprovalRedis string
	Tracer        trace.Tracer
}

// Stack holds the wired runtime for one process.
type Stack struct {
	Persistence persistence.Persistence
	ObjectStore models.BlobStore
	EventBus    eventbus.EventBus
	Registry    *registry.Registry
	Recorder    *capture.Recorder
	Approvals   *approvals.Service
	Engine      *engine.Engine

	logger *slog.Logger
}

// NewStack wires persistence, blob storage, the event bus, the component
// registry and the engine from connection settings.
func NewStack(ctx context.Context, logger *slog.Logger, cfg StackConfig) (*Stack, error) {
	store, err := NewPersistence(ctx, logger, cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to create persistence: %w", err)
	}

	blobs, err := NewObjectStore(ctx, cfg.ObjectStore)
	if err != nil {
		return nil, fmt.Errorf("failed to create object store: %w", err)
	}

	bus := NewEventBus(cfg.EventBus, logger)

	resolver, err := newApprovalResolver(cfg.ApprovalRedis, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create approval resolver: %w", err)
	}

	approvalService := approvals.NewService(store.ApprovalRepository(), resolver, logger)

	reg, err := NewRegistry(logger, components.Deps{Approvals: approvalService})
	if err != nil {
		return nil, fmt.Errorf("failed to register components: %w", err)
	}

	secretSource := secrets.NewEnvSource()
	httpClient := &http.Client{Timeout: 60 * time.Second}

	recorder := capture.NewRecorder(store.NodeIORepository(), blobs, logger, capture.DefaultSpillThreshold)

	eng := engine.NewEngine(engine.Config{
		Registry: reg,
		Runner:   runner.NewRunner(logger, secretSource, httpClient),
		Recorder: recorder,
		Logger:   logger,
		Tracer:   cfg.Tracer,
		Services: &models.Services{
			Secrets: secretSource,
			Storage: blobs,
			HTTP:    httpClient,
			Tracer:  cfg.Tracer,
		},
		EventBus: bus,
	})

	return &Stack{
		Persistence: store,
		ObjectStore: blobs,
		EventBus:    bus,
		Registry:    reg,
		Recorder:    recorder,
		Approvals:   approvalService,
		Engine:      eng,
		logger:      logger,
	}, nil
}

// Close releases the stack's connections in reverse wiring order.
func (s *Stack) Close(ctx context.Context) {
	if err := s.EventBus.Close(); err != nil {
		s.logger.ErrorContext(ctx, "Failed to close event bus", "error", err)
	}

	if err := s.Persistence.Close(ctx); err != nil {
		s.logger.ErrorContext(ctx, "Failed to close persistence", "error", err)
	}
}

// NewObjectStore selects a blob store from a URL. A minio:// URL targets
// an S3-compatible server, anything else is treated as a local directory.
func NewObjectStore(ctx context.Context, storeURL string) (models.BlobStore, error) {
	provider, rest, found := strings.Cut(storeURL, "://")
	if !found || provider == "file" {
		root := storeURL
		if found {
			root = rest
		}

		if root == "" {
			root = "./data/blobs"
		}

		return objectstore.NewFileStore(root), nil
	}

	if provider != "minio" && provider != "s3" {
		return nil, fmt.Errorf("unsupported object store provider: %s", provider)
	}

	cfg, err := objectstore.ParseMinioURL(storeURL)
	if err != nil {
		return nil, err
	}

	return objectstore.NewMinioStore(ctx, cfg)
}

func newApprovalResolver(redisURL string, logger *slog.Logger) (approvals.Resolver, error) {
	if redisURL == "" {
		return approvals.NewMemoryResolver(), nil
	}

	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis URL: %w", err)
	}

	return approvals.NewRedisResolver(redis.NewClient(opts), logger), nil
}
