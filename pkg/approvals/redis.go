package approvals

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"

	"github.com/arjanchaudharyy/flowdeck/pkg/models"
)

const signalChannelPrefix = "flowdeck:approvals:"

// RedisResolver routes resolution signals over redis pub/sub so a gate can
// be resolved from a different process than the one executing the run.
type RedisResolver struct {
	client *redis.Client
	logger *slog.Logger
}

// NewRedisResolver creates a resolver on an existing redis client.
func NewRedisResolver(client *redis.Client, logger *slog.Logger) *RedisResolver {
	return &RedisResolver{
		client: client,
		logger: logger.With("module", "approvals"),
	}
}

// Await implements Resolver by subscribing to the request's signal channel.
func (r *RedisResolver) Await(ctx context.Context, requestID string) (<-chan models.ApprovalSignal, func(), error) {
	pubsub := r.client.Subscribe(ctx, signalChannelPrefix+requestID)

	// Force the subscription to be established before the caller starts
	// waiting, otherwise an early signal can be lost.
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()

		return nil, nil, fmt.Errorf("subscribing to approval channel: %w", err)
	}

	signals := make(chan models.ApprovalSignal, 1)

	go func() {
		for message := range pubsub.Channel() {
			var signal models.ApprovalSignal
			if err := json.Unmarshal([]byte(message.Payload), &signal); err != nil {
				r.logger.Error("Discarding malformed approval signal",
					"request_id", requestID, "error", err)

				continue
			}

			select {
			case signals <- signal:
			default:
			}

			return
		}
	}()

	release := func() {
		_ = pubsub.Close()
	}

	return signals, release, nil
}

// Resolve implements Resolver by publishing the signal.
func (r *RedisResolver) Resolve(ctx context.Context, signal models.ApprovalSignal) error {
	payload, err := json.Marshal(signal)
	if err != nil {
		return fmt.Errorf("encoding approval signal: %w", err)
	}

	if err := r.client.Publish(ctx, signalChannelPrefix+signal.RequestID, payload).Err(); err != nil {
		return fmt.Errorf("publishing approval signal: %w", err)
	}

	return nil
}
